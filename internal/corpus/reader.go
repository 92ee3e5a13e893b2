// Package corpus discovers corpus input files (line-delimited JSON, one
// record per document) and streams their lines.
package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/nearsift/nearsift/domain"
)

// Reader discovers and reads .jsonl corpus files.
type Reader struct{}

// NewReader creates a corpus file reader.
func NewReader() *Reader {
	return &Reader{}
}

// CollectFiles finds all corpus files under paths. A path may be a single
// file or a directory, walked recursively; files are filtered to
// IsValidCorpusFile and any include/exclude glob patterns, then returned in
// lexicographic order, the default processing order across files per the
// ordering-guarantees contract.
func (r *Reader) CollectFiles(paths []string, includePatterns, excludePatterns []string) ([]string, error) {
	if err := validatePatterns(includePatterns); err != nil {
		return nil, err
	}
	if err := validatePatterns(excludePatterns); err != nil {
		return nil, err
	}

	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, domain.NewFileNotFoundError(path, err)
		}

		if info.IsDir() {
			dirFiles, err := r.collectFromDirectory(path, includePatterns, excludePatterns)
			if err != nil {
				return nil, err
			}
			files = append(files, dirFiles...)
		} else if IsValidCorpusFile(path) && matchesFilters(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
	}

	sort.Strings(files)
	return files, nil
}

// IsValidCorpusFile reports whether path has the corpus file extension.
func IsValidCorpusFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".jsonl"
}

func (r *Reader) collectFromDirectory(dirPath string, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	walkFunc := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dirPath {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if IsValidCorpusFile(path) && matchesFilters(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.WalkDir(dirPath, walkFunc); err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dirPath, err)
	}
	return files, nil
}

func matchesFilters(path string, includePatterns, excludePatterns []string) bool {
	for _, pattern := range excludePatterns {
		if matchesGlob(pattern, path) {
			return false
		}
	}
	if len(includePatterns) == 0 {
		return true
	}
	for _, pattern := range includePatterns {
		if matchesGlob(pattern, path) {
			return true
		}
	}
	return false
}

func matchesGlob(pattern, path string) bool {
	if matched, _ := doublestar.Match(pattern, filepath.Base(path)); matched {
		return true
	}
	if matched, _ := doublestar.Match(pattern, path); matched {
		return true
	}
	return false
}

func validatePatterns(patterns []string) error {
	for _, pattern := range patterns {
		if pattern == "" {
			return domain.NewInvalidInputError("empty glob pattern not allowed", nil)
		}
		if !doublestar.ValidatePattern(pattern) {
			return domain.NewInvalidInputError(fmt.Sprintf("invalid glob pattern: %s", pattern), nil)
		}
	}
	return nil
}

// rawRecord is one parsed JSON-lines record, carrying only the fields the
// core reads.
type rawRecord struct {
	Text string `json:"text"`
}

// DocumentFunc is called once per non-blank line that parses with a
// non-empty "text" field, with its 1-based line number and text body;
// malformed lines are reported via a MalformedFunc rather
// than stopping the scan, per the MalformedInput policy (skip line,
// continue file).
type DocumentFunc func(lineNo int, text string)

// MalformedFunc is called for a line that failed to parse as JSON.
type MalformedFunc func(lineNo int, err error)

// ReadLines streams path line-by-line, calling onDocument for every
// non-blank line that parses with a non-empty "text" field, and
// onMalformed for lines that fail to parse. Blank lines are silently
// skipped.
func (r *Reader) ReadLines(path string, onDocument DocumentFunc, onMalformed MalformedFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return domain.NewFileNotFoundError(path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		var rec rawRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			if onMalformed != nil {
				onMalformed(lineNo, err)
			}
			continue
		}
		if rec.Text == "" {
			continue
		}
		onDocument(lineNo, rec.Text)
	}

	if err := scanner.Err(); err != nil && err != io.EOF {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}
