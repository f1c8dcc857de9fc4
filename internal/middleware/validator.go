package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var (
	submissionIDPattern = regexp.MustCompile(`^[a-f0-9]{32,128}$`)
	tenantIDPattern     = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)
)

// ValidateSubmissionID checks the content-addressed id format (lowercase hex).
func ValidateSubmissionID(id string) error {
	if id == "" {
		return fmt.Errorf("submission id cannot be empty")
	}
	if !submissionIDPattern.MatchString(id) {
		return fmt.Errorf("invalid submission id format")
	}
	return nil
}

// ValidateTenantID checks tenant identifiers used in URLs and storage keys.
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant cannot be empty")
	}
	if !tenantIDPattern.MatchString(tenant) {
		return fmt.Errorf("invalid tenant id format")
	}
	return nil
}

// ValidateArchiveFilename ensures the uploaded form file looks like a zip
// and carries no shell/path metacharacters.
func ValidateArchiveFilename(name string) error {
	if name == "" {
		return fmt.Errorf("no file selected")
	}
	if !strings.HasSuffix(strings.ToLower(name), ".zip") {
		return fmt.Errorf("file must be a zip file")
	}
	dangerous := []string{"../", "..", "$(", "`", "&", "|", ";", "\n", "\r"}
	for _, d := range dangerous {
		if strings.Contains(name, d) {
			return fmt.Errorf("invalid characters in file name")
		}
	}
	return nil
}
