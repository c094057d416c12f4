package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"txDecoder/internal/model"
)

const maxLineBytes = 16 << 20

// JsonlFile appends records to a JSONL file.
type JsonlFile struct {
	path string
	mu   sync.Mutex
}

func NewJsonlFile(path string) *JsonlFile {
	return &JsonlFile{path: path}
}

// Path returns the file path.
func (f *JsonlFile) Path() string {
	return f.path
}

// Truncate empties the file, creating it when missing.
func (f *JsonlFile) Truncate() error {
	dir := filepath.Dir(f.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("truncate output file: %w", err)
	}
	return file.Close()
}

// PutTransactions appends transactions as JSON lines.
func (f *JsonlFile) PutTransactions(txs []model.Transaction) error {
	return appendLines(f, txs)
}

func appendLines[T any](f *JsonlFile, records []T) error {
	if len(records) == 0 {
		return nil
	}

	dir := filepath.Dir(f.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	encoder := json.NewEncoder(writer)
	for _, record := range records {
		if err := encoder.Encode(record); err != nil {
			return fmt.Errorf("write %s record: %w", filepath.Base(f.path), err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}

	return nil
}

// JsonlEventSink writes events and diagnostics to two JSONL files. An empty
// diagnostics path drops diagnostics.
type JsonlEventSink struct {
	events      *JsonlFile
	diagnostics *JsonlFile
}

func NewJsonlEventSink(eventsPath, diagnosticsPath string) *JsonlEventSink {
	sink := &JsonlEventSink{events: NewJsonlFile(eventsPath)}
	if diagnosticsPath != "" {
		sink.diagnostics = NewJsonlFile(diagnosticsPath)
	}
	return sink
}

// Truncate empties both files so a run replaces earlier output.
func (s *JsonlEventSink) Truncate() error {
	if err := s.events.Truncate(); err != nil {
		return err
	}
	if s.diagnostics != nil {
		return s.diagnostics.Truncate()
	}
	return nil
}

func (s *JsonlEventSink) PutEvents(_ context.Context, events []model.DecodedEvent) error {
	return appendLines(s.events, events)
}

func (s *JsonlEventSink) PutDiagnostics(_ context.Context, diags []model.Diagnostic) error {
	if s.diagnostics == nil {
		return nil
	}
	return appendLines(s.diagnostics, diags)
}

// ReadTransactions loads every transaction of a JSONL file. Blank lines are skipped.
// Repeated hashes, as left by fetching the same transaction twice, are
// returned once; the first occurrence wins.
func ReadTransactions(path string) ([]model.Transaction, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var txs []model.Transaction
	seen := make(map[common.Hash]struct{})
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var tx model.Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, fmt.Errorf("parse transaction at line %d: %w", line, err)
		}
		if _, dup := seen[tx.Hash]; dup {
			continue
		}
		seen[tx.Hash] = struct{}{}
		txs = append(txs, tx)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input file: %w", err)
	}
	return txs, nil
}
