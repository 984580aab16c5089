// Package sanitize normalizes raw drop files before publication by discarding columns
// that carry no usable header.
package sanitize

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CleanedSuffix is appended to the base name of sanitized output files.
const CleanedSuffix = "-cleaned"

var (
	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

	// Header written by dataframe exporters for an unlabelled index column ("Unnamed: 0").
	syntheticHeader = regexp.MustCompile(`^Unnamed`)

	removeFile = os.Remove
)

// MalformedInputError reports a file that could not be read as a table.
// The input file is left untouched when this is returned.
type MalformedInputError struct {
	Path string
	Err  error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed input %s: %v", e.Path, e.Err)
}

func (e *MalformedInputError) Unwrap() error {
	return e.Err
}

// Sanitize rewrites the table at path keeping only columns with a valid header.
// The result is written to <name>-cleaned.csv beside the input and the input is removed.
// An input that is already a -cleaned.csv file is rewritten in place.
func Sanitize(path string) (string, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	records, err := parseTable(path, payload)
	if err != nil {
		return "", &MalformedInputError{Path: path, Err: err}
	}
	if len(records) == 0 {
		return "", &MalformedInputError{Path: path, Err: errors.New("no header row found")}
	}

	keep := ValidColumns(records[0])
	if len(keep) == 0 {
		return "", &MalformedInputError{Path: path, Err: errors.New("no columns with a valid header")}
	}
	cleanedPath := CleanedPath(path)

	if err := writeColumns(cleanedPath, records, keep); err != nil {
		return "", err
	}

	if cleanedPath != path {
		if err := removeFile(path); err != nil {
			// Only the original may remain, so a retry starts from the same state.
			_ = os.Remove(cleanedPath)
			return "", fmt.Errorf("failed to remove original %s: %w", path, err)
		}
	}
	return cleanedPath, nil
}

// ValidColumns returns the indexes of header cells that are neither blank nor synthetic.
func ValidColumns(header []string) []int {
	keep := make([]int, 0, len(header))
	for idx, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" || syntheticHeader.MatchString(name) {
			continue
		}
		keep = append(keep, idx)
	}
	return keep
}

// CleanedPath returns the sibling path a sanitized copy of path is written to.
func CleanedPath(path string) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	if strings.EqualFold(ext, ".csv") && strings.HasSuffix(base, CleanedSuffix) {
		return path
	}
	return base + CleanedSuffix + ".csv"
}

func parseTable(path string, payload []byte) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return parseExcel(payload)
	default:
		return parseCSV(payload)
	}
}

func parseCSV(payload []byte) ([][]string, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, errors.New("file is empty")
	}

	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func parseExcel(payload []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

// writeColumns writes the selected columns to a temp file in the target directory and
// renames it over target, so a failed write never leaves a truncated output behind.
func writeColumns(target string, records [][]string, keep []int) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".sanitize-*")
	if err != nil {
		return fmt.Errorf("failed to create output for %s: %w", target, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	writer := csv.NewWriter(tmp)
	row := make([]string, len(keep))
	for _, record := range records {
		for i, col := range keep {
			if col < len(record) {
				row[i] = record[col]
			} else {
				row[i] = ""
			}
		}
		if err := writer.Write(row); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("failed to write %s: %w", target, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to flush %s: %w", target, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", target, err)
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to move output into place %s: %w", target, err)
	}
	return nil
}
