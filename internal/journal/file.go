package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"commitvault/internal/logger"
)

// FileJournal appends one JSON document per line. Suitable for local
// development; the Postgres journal is the durable option.
type FileJournal struct {
	path string
	log  *logger.Logger

	mu      sync.Mutex
	f       *os.File
	size    int64
	lastSeq uint64
}

type FileOption func(*FileJournal)

func WithLogger(l *logger.Logger) FileOption {
	return func(fj *FileJournal) { fj.log = l }
}

// NewFileJournal opens (or creates) the journal at path and positions it
// after the last stored entry. An unterminated final line is what a crash
// mid-append leaves behind; it is cut off before the file is reopened.
func NewFileJournal(path string, opts ...FileOption) (*FileJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	fj := &FileJournal{path: path, log: logger.Nop()}
	for _, opt := range opts {
		opt(fj)
	}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	entries, complete, err := decodeLines(data)
	if err != nil {
		return nil, err
	}
	if complete < len(data) {
		fj.log.Warn().
			Str("path", path).
			Int("dropped_bytes", len(data)-complete).
			Msg("journal ends in a partial entry, truncating")
		if err := os.Truncate(path, int64(complete)); err != nil {
			return nil, fmt.Errorf("truncate journal: %w", err)
		}
	}
	if n := len(entries); n > 0 {
		fj.lastSeq = entries[n-1].Seq
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	fj.f = f
	fj.size = int64(complete)
	return fj, nil
}

func (fj *FileJournal) Append(_ context.Context, e Entry) error {
	fj.mu.Lock()
	defer fj.mu.Unlock()
	if fj.f == nil {
		return ErrClosed
	}
	if e.Seq != fj.lastSeq+1 {
		return fmt.Errorf("append seq %d after %d: %w", e.Seq, fj.lastSeq, ErrSequenceConflict)
	}
	line, err := json.Marshal(e)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := fj.f.Write(line); err != nil {
		return fj.rollback(fmt.Errorf("write journal: %w", err))
	}
	if err := fj.f.Sync(); err != nil {
		return fj.rollback(fmt.Errorf("sync journal: %w", err))
	}
	fj.size += int64(len(line))
	fj.lastSeq = e.Seq
	return nil
}

// rollback cuts the file back to the last acknowledged entry so the next
// append does not land after partial bytes.
func (fj *FileJournal) rollback(cause error) error {
	if err := fj.f.Truncate(fj.size); err != nil {
		return errors.Join(cause, fmt.Errorf("truncate journal: %w", err))
	}
	return cause
}

func (fj *FileJournal) Load(_ context.Context) ([]Entry, error) {
	fj.mu.Lock()
	defer fj.mu.Unlock()
	data, err := os.ReadFile(fj.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entries, _, err := decodeLines(data)
	return entries, err
}

func (fj *FileJournal) Close() error {
	fj.mu.Lock()
	defer fj.mu.Unlock()
	if fj.f == nil {
		return nil
	}
	err := fj.f.Close()
	fj.f = nil
	return err
}

// decodeLines parses every newline-terminated line of data and returns the
// length of that prefix. Trailing bytes without a newline are not an error.
func decodeLines(data []byte) ([]Entry, int, error) {
	var out []Entry
	off, line := 0, 0
	for off < len(data) {
		nl := bytes.IndexByte(data[off:], '\n')
		if nl < 0 {
			break
		}
		raw := data[off : off+nl]
		off += nl + 1
		line++
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, 0, fmt.Errorf("decode journal line %d: %w", line, err)
		}
		out = append(out, e)
	}
	return out, off, nil
}
