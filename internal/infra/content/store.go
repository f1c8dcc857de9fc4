package content

import (
	"archive/zip"
	"bytes"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	domain "github.com/bryanwahyu/automaton-cpg/internal/domain/analysis"
)

// sourceExtensions are the C/C++ file suffixes a submission must contain
// at least one of.
var sourceExtensions = map[string]struct{}{
	".c": {},
	".cpp": {}, ".cc": {}, ".cxx": {}, ".C": {}, ".c++": {}, ".cp": {}, ".CPP": {},
	".h": {}, ".hpp": {}, ".hh": {}, ".hxx": {}, ".H": {}, ".h++": {},
}

// Store stages uploaded source archives under a content-addressed directory.
type Store struct {
	codeDir string
}

func New(codeDir string) (*Store, error) {
	if err := os.MkdirAll(codeDir, 0o755); err != nil {
		return nil, err
	}
	return &Store{codeDir: codeDir}, nil
}

// Stage validates the archive, derives its content id and extracts the tree
// to <codeDir>/<id>. Extraction is skipped when the id is already staged, so
// byte-identical (or merely re-ordered) uploads map onto one staging.
func (s *Store) Stage(archive []byte) (domain.Staged, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return domain.Staged{}, domain.WrapError(domain.KindInvalidArchive, "archive is not a valid zip", err)
	}

	entries, sourceFiles, err := readEntries(zr)
	if err != nil {
		return domain.Staged{}, err
	}
	if len(entries) == 0 {
		return domain.Staged{}, domain.NewError(domain.KindEmptySubmission, "archive contains no files")
	}
	if sourceFiles == 0 {
		return domain.Staged{}, domain.NewError(domain.KindEmptySubmission, "archive contains no C/C++ source files")
	}

	id := contentID(entries)
	target := filepath.Join(s.codeDir, id)

	if _, err := os.Stat(target); os.IsNotExist(err) {
		if err := extract(entries, target); err != nil {
			os.RemoveAll(target)
			return domain.Staged{}, err
		}
	}

	return domain.Staged{
		ID:          domain.SubmissionID(id),
		Path:        target,
		SourceFiles: sourceFiles,
	}, nil
}

// Path returns the staged tree location for an id, without staging anything.
func (s *Store) Path(id domain.SubmissionID) string {
	return filepath.Join(s.codeDir, string(id))
}

type entry struct {
	name string
	data []byte
}

func readEntries(zr *zip.Reader) ([]entry, int, error) {
	var entries []entry
	sourceFiles := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name, err := normalizeName(f.Name)
		if err != nil {
			return nil, 0, err
		}
		rc, err := f.Open()
		if err != nil {
			return nil, 0, domain.WrapError(domain.KindInvalidArchive, fmt.Sprintf("cannot open entry %s", f.Name), err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, 0, domain.WrapError(domain.KindInvalidArchive, fmt.Sprintf("cannot read entry %s", f.Name), err)
		}
		if _, ok := sourceExtensions[filepath.Ext(name)]; ok {
			sourceFiles++
		}
		entries = append(entries, entry{name: name, data: data})
	}
	return entries, sourceFiles, nil
}

// normalizeName cleans an archive entry path and rejects traversal outside
// the staging root (zip-slip).
func normalizeName(name string) (string, error) {
	name = strings.TrimPrefix(filepath.ToSlash(name), "/")
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) || filepath.IsAbs(clean) {
		return "", domain.NewError(domain.KindInvalidArchive, fmt.Sprintf("entry escapes archive root: %s", name))
	}
	return filepath.ToSlash(clean), nil
}

// contentID hashes the normalized (path, content) pairs in sorted path order,
// so entry order inside the zip never changes the id.
func contentID(entries []entry) string {
	sorted := make([]entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })

	h := sha512.New()
	for _, e := range sorted {
		h.Write([]byte(e.name))
		h.Write([]byte{0})
		h.Write(e.data)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func extract(entries []entry, target string) error {
	for _, e := range entries {
		dst := filepath.Join(target, filepath.FromSlash(e.name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return fmt.Errorf("staging %s: %w", e.name, err)
		}
		if err := os.WriteFile(dst, e.data, 0o644); err != nil {
			return fmt.Errorf("staging %s: %w", e.name, err)
		}
	}
	return nil
}
