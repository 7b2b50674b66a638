package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/medibots/ml-platform/pkg/common/models"
)

// ErrTableNotFound is returned when no candidate location holds the file.
var ErrTableNotFound = errors.New("table not found")

// missingMarkers are cells read as null.
var missingMarkers = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
}

// Table is a header plus string rows, as read from a CSV reference file.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// ResolvePath returns the first existing location of path: as given (which
// is relative to the working directory when not absolute), then joined onto
// each of dirs in order.
func ResolvePath(path string, dirs ...string) (string, error) {
	if path == "" {
		return "", ErrTableNotFound
	}
	candidates := []string{path}
	if !filepath.IsAbs(path) {
		for _, dir := range dirs {
			if dir != "" {
				candidates = append(candidates, filepath.Join(dir, path))
			}
		}
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrTableNotFound, path)
}

// InstallDir is the directory holding the running executable, or "" when it
// cannot be determined.
func InstallDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// ReadTable resolves and parses a CSV file with a header row.
func ReadTable(path string, dirs ...string) (*Table, error) {
	resolved, err := ResolvePath(path, dirs...)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(resolved)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := DecodeTable(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", resolved, err)
	}
	t.Name = filepath.Base(resolved)
	return t, nil
}

func DecodeTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	t := &Table{Header: header}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// WriteTable writes the table to path, replacing it atomically.
func WriteTable(path string, t *Table) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(t.Header); err != nil {
		tmp.Close()
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (t *Table) Len() int {
	return len(t.Rows)
}

// Column returns the index of a header, or -1.
func (t *Table) Column(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

func (t *Table) HasColumn(name string) bool {
	return t.Column(name) >= 0
}

// Cell returns the raw cell and whether it holds a value.
func (t *Table) Cell(row int, col int) (string, bool) {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return "", false
	}
	v := strings.TrimSpace(t.Rows[row][col])
	if _, missing := missingMarkers[strings.ToLower(v)]; missing {
		return "", false
	}
	return v, true
}

// Records converts every row into a record of raw strings, with missing
// cells as nil. Values still need normalizing.
func (t *Table) Records() []models.Record {
	out := make([]models.Record, 0, len(t.Rows))
	for i := range t.Rows {
		rec := make(models.Record, len(t.Header))
		for col, name := range t.Header {
			if v, ok := t.Cell(i, col); ok {
				rec[name] = v
			} else {
				rec[name] = nil
			}
		}
		out = append(out, rec)
	}
	return out
}

// SetColumn adds or replaces a column with the given per-row values.
func (t *Table) SetColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %s has %d values for %d rows", name, len(values), len(t.Rows))
	}
	col := t.Column(name)
	if col < 0 {
		t.Header = append(t.Header, name)
		col = len(t.Header) - 1
	}
	for i := range t.Rows {
		for len(t.Rows[i]) <= col {
			t.Rows[i] = append(t.Rows[i], "")
		}
		t.Rows[i][col] = values[i]
	}
	return nil
}

// DropColumn removes a column if present.
func (t *Table) DropColumn(name string) {
	col := t.Column(name)
	if col < 0 {
		return
	}
	t.Header = append(t.Header[:col:col], t.Header[col+1:]...)
	for i, row := range t.Rows {
		if col < len(row) {
			t.Rows[i] = append(row[:col:col], row[col+1:]...)
		}
	}
}
