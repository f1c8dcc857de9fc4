package analysis

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RawFunction is one function definition as reported by the engine.
// The schema is fixed by the engine contract; anything else is rejected.
type RawFunction struct {
	Name       string `json:"name"`
	File       string `json:"file"`
	LineNumber int    `json:"lineNumber"`
	Code       string `json:"code"`
	Signature  string `json:"signature"`
}

// RawCall is one call-site record as reported by the engine.
// Name is the callee, Method the enclosing function.
type RawCall struct {
	Name       string `json:"name"`
	Method     string `json:"method"`
	File       string `json:"file"`
	LineNumber int    `json:"lineNumber"`
}

// CallEdge is a cleaned caller→callee edge. External marks a callee that
// resolves to a name outside the submitted source (accepted by policy).
type CallEdge struct {
	Caller   string `json:"caller"`
	Callee   string `json:"callee"`
	File     string `json:"file"`
	Line     int    `json:"line"`
	External bool   `json:"external,omitempty"`
}

// Bundle is the full per-submission result set the facade serves on fetch.
type Bundle struct {
	Functions      []RawFunction `json:"functions"`
	Calls          []RawCall     `json:"call_graph"`
	CleanFunctions []RawFunction `json:"cleaned_functions"`
	CleanCalls     []CallEdge    `json:"cleaned_call_graph"`
	TreeLines      []string      `json:"call_graph_tree"`
	Meta           RunMeta       `json:"meta"`
}

// ParseRawFunctions decodes the engine's function-extraction payload.
// The payload is externally sourced and untrusted: records missing the
// mandatory fields violate the engine contract and are rejected.
func ParseRawFunctions(data []byte) ([]RawFunction, error) {
	var recs []map[string]json.RawMessage
	if err := decodeRecords(data, &recs); err != nil {
		return nil, WrapError(KindCleaningError, "function payload is not a JSON record list", err)
	}
	out := make([]RawFunction, 0, len(recs))
	for i, rec := range recs {
		var fn RawFunction
		if err := fillString(rec, "name", &fn.Name); err != nil {
			return nil, recordErr("function", i, err)
		}
		if err := fillString(rec, "file", &fn.File); err != nil {
			return nil, recordErr("function", i, err)
		}
		if err := fillInt(rec, "lineNumber", &fn.LineNumber); err != nil {
			return nil, recordErr("function", i, err)
		}
		// code and signature may legitimately be empty (e.g. <empty> stubs)
		fillOptionalString(rec, "code", &fn.Code)
		fillOptionalString(rec, "signature", &fn.Signature)
		out = append(out, fn)
	}
	return out, nil
}

// ParseRawCalls decodes the engine's call-extraction payload.
func ParseRawCalls(data []byte) ([]RawCall, error) {
	var recs []map[string]json.RawMessage
	if err := decodeRecords(data, &recs); err != nil {
		return nil, WrapError(KindCleaningError, "call payload is not a JSON record list", err)
	}
	out := make([]RawCall, 0, len(recs))
	for i, rec := range recs {
		var c RawCall
		if err := fillString(rec, "name", &c.Name); err != nil {
			return nil, recordErr("call", i, err)
		}
		if err := fillString(rec, "method", &c.Method); err != nil {
			return nil, recordErr("call", i, err)
		}
		if err := fillString(rec, "file", &c.File); err != nil {
			return nil, recordErr("call", i, err)
		}
		if err := fillInt(rec, "lineNumber", &c.LineNumber); err != nil {
			return nil, recordErr("call", i, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// decodeRecords accepts either a list of records or a single record object,
// which the engine emits for single-result extractions.
func decodeRecords(data []byte, recs *[]map[string]json.RawMessage) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		*recs = nil
		return nil
	}
	if strings.HasPrefix(trimmed, "{") {
		var one map[string]json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &one); err != nil {
			return err
		}
		*recs = []map[string]json.RawMessage{one}
		return nil
	}
	return json.Unmarshal([]byte(trimmed), recs)
}

func fillString(rec map[string]json.RawMessage, key string, dst *string) error {
	raw, ok := rec[key]
	if !ok {
		return fmt.Errorf("missing field %q", key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %q is not a string", key)
	}
	return nil
}

func fillOptionalString(rec map[string]json.RawMessage, key string, dst *string) {
	if raw, ok := rec[key]; ok {
		_ = json.Unmarshal(raw, dst)
	}
}

func fillInt(rec map[string]json.RawMessage, key string, dst *int) error {
	raw, ok := rec[key]
	if !ok {
		return fmt.Errorf("missing field %q", key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// Joern occasionally stringifies line numbers; tolerate that only.
		var s string
		if serr := json.Unmarshal(raw, &s); serr == nil {
			if _, ferr := fmt.Sscanf(s, "%d", dst); ferr == nil {
				return nil
			}
		}
		return fmt.Errorf("field %q is not an integer", key)
	}
	return nil
}

func recordErr(kind string, idx int, err error) error {
	return NewError(KindCleaningError, fmt.Sprintf("%s record %d: %v", kind, idx, err))
}
