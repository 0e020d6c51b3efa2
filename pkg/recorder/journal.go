package recorder

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// Journal appends records to a JSON-lines file. The file is opened and
// closed around every append and is never truncated.
type Journal struct {
	path   string
	schema Schema
}

// NewJournal returns a journal writing to path in the given schema
func NewJournal(path string, schema Schema) *Journal {
	if schema == "" {
		schema = SchemaLegacy
	}
	return &Journal{path: path, schema: schema}
}

// Path returns the journal file location
func (j *Journal) Path() string {
	return j.path
}

// Append writes exactly one newline-terminated line for the record
func (j *Journal) Append(r Record) (err error) {
	line, err := r.Encode(j.schema)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	if dir := filepath.Dir(j.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create journal directory: %w", err)
		}
	}

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close journal: %w", cerr)
		}
	}()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// ReadJournal loads every record from a journal file. Blank lines are skipped.
func ReadJournal(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		r, err := DecodeRecord(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return records, nil
}
