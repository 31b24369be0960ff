// Package pipeline drives the enrichment loop: it tails the alert
// stream, deduplicates records, runs the provider, and hands results to
// the sink.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"
)

// Source yields raw alert lines. Next blocks until a complete line is
// available or the context ends.
type Source interface {
	Next(ctx context.Context) (string, error)
}

const defaultIdlePoll = time.Second

// FileSource tails a newline-delimited alert file. A partially written
// line at the end of the file is held back until its newline arrives,
// so a writer mid-append never produces a truncated record.
type FileSource struct {
	path string
	poll time.Duration

	f       *os.File
	r       *bufio.Reader
	partial strings.Builder
}

// NewFileSource tails path, polling every poll when no data is
// available. A non-positive poll selects the one second default.
func NewFileSource(path string, poll time.Duration) *FileSource {
	if poll <= 0 {
		poll = defaultIdlePoll
	}
	return &FileSource{path: path, poll: poll}
}

// Next returns the next complete line without its trailing newline. A
// missing file is treated as idle: the source keeps polling until the
// file appears.
func (s *FileSource) Next(ctx context.Context) (string, error) {
	for {
		if s.f == nil {
			f, err := os.Open(s.path) //nolint:gosec // G304: path comes from operator config
			if err != nil {
				if werr := wait(ctx, s.poll); werr != nil {
					return "", werr
				}
				continue
			}
			s.f = f
			s.r = bufio.NewReader(f)
		}

		chunk, err := s.r.ReadString('\n')
		s.partial.WriteString(chunk)

		if err == nil {
			line := strings.TrimRight(s.partial.String(), "\r\n")
			s.partial.Reset()
			return line, nil
		}
		if errors.Is(err, io.EOF) {
			if werr := wait(ctx, s.poll); werr != nil {
				return "", werr
			}
			continue
		}
		return "", err
	}
}

// Close releases the tailed file.
func (s *FileSource) Close() error {
	if s.f == nil {
		return nil
	}
	return s.f.Close()
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
