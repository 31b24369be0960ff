// Package sink persists enriched documents: an append-only NDJSON
// journal, a search-index publisher, and the dead-letter file that
// catches what the index refuses.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ndjsonFile is an append-only newline-delimited JSON file. Writes are
// serialized and synced so a crash never leaves a torn line behind a
// reported success.
type ndjsonFile struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

func openNDJSON(path string) (*ndjsonFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create directory for %s: %w", path, err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &ndjsonFile{f: f, path: path}, nil
}

func (n *ndjsonFile) append(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	data = append(data, '\n')

	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := n.f.Write(data); err != nil {
		return fmt.Errorf("append to %s: %w", n.path, err)
	}
	if err := n.f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", n.path, err)
	}
	return nil
}

func (n *ndjsonFile) close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.f.Close()
}

// Journal is the local NDJSON record of every processed document. It is
// written before any publish attempt, so the journal is the source of
// truth even when the index is down.
type Journal struct {
	file *ndjsonFile
}

// OpenJournal opens or creates the journal at path.
func OpenJournal(path string) (*Journal, error) {
	file, err := openNDJSON(path)
	if err != nil {
		return nil, err
	}
	return &Journal{file: file}, nil
}

// Append writes one document as a single JSON line.
func (j *Journal) Append(v any) error { return j.file.append(v) }

// Close releases the underlying file.
func (j *Journal) Close() error { return j.file.close() }

// DeadLetter collects documents the index rejected or that exhausted
// their publish retries.
type DeadLetter struct {
	file *ndjsonFile
}

// OpenDeadLetter opens or creates the dead-letter file at path.
func OpenDeadLetter(path string) (*DeadLetter, error) {
	file, err := openNDJSON(path)
	if err != nil {
		return nil, err
	}
	return &DeadLetter{file: file}, nil
}

// Append writes one rejected document as a single JSON line.
func (d *DeadLetter) Append(v any) error { return d.file.append(v) }

// Close releases the underlying file.
func (d *DeadLetter) Close() error { return d.file.close() }
