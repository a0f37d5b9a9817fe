package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/tailored-agentic-units/concierge/core/protocol"
)

const (
	historyFile = "history.jsonl"
	summaryFile = "summary.json"
)

// FileStore persists each session under root/<escaped session id>/ as a
// JSON Lines history file and a JSON summary file. Summary writes are
// atomic (temp file + rename); history writes append whole lines.
type FileStore struct {
	root string
	mu   sync.Mutex
}

// NewFileStore creates a Store backed by the filesystem under root.
func NewFileStore(root string) *FileStore {
	return &FileStore{root: root}
}

func (s *FileStore) dir(sessionID string) string {
	return filepath.Join(s.root, url.PathEscape(sessionID))
}

func (s *FileStore) Append(_ context.Context, sessionID string, turns ...protocol.Turn) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	var buf []byte
	for _, t := range turns {
		line, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, sessionID, err)
		}
		buf = append(append(buf, line...), '\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.dir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, sessionID, err)
	}

	f, err := os.OpenFile(filepath.Join(dir, historyFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, sessionID, err)
	}

	if _, err := f.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, sessionID, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, sessionID, err)
	}

	return nil
}

func (s *FileStore) Turns(_ context.Context, sessionID string) ([]protocol.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(filepath.Join(s.dir(sessionID), historyFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []protocol.Turn{}, nil
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, sessionID, err)
	}
	defer f.Close()

	turns := []protocol.Turn{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var t protocol.Turn
		if err := json.Unmarshal(scanner.Bytes(), &t); err != nil {
			return nil, fmt.Errorf("%w: %w: %s: %v", ErrLoadFailed, ErrCorrupt, sessionID, err)
		}
		turns = append(turns, t)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, sessionID, err)
	}

	return turns, nil
}

func (s *FileStore) Recent(ctx context.Context, sessionID string, n int) ([]protocol.Turn, error) {
	turns, err := s.Turns(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return tail(turns, n), nil
}

func (s *FileStore) LoadSummary(_ context.Context, sessionID string) (Summary, error) {
	data, err := os.ReadFile(filepath.Join(s.dir(sessionID), summaryFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Summary{}, nil
		}
		return Summary{}, fmt.Errorf("%w: %s: %v", ErrLoadFailed, sessionID, err)
	}

	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return Summary{}, fmt.Errorf("%w: %w: %s: %v", ErrLoadFailed, ErrCorrupt, sessionID, err)
	}
	return summary, nil
}

func (s *FileStore) SaveSummary(_ context.Context, sessionID string, summary Summary) error {
	if sessionID == "" {
		return ErrEmptySessionID
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, sessionID, err)
	}

	dir := s.dir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, sessionID, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, sessionID, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, sessionID, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, sessionID, err)
	}

	if err := os.Rename(tmpName, filepath.Join(dir, summaryFile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %s: %v", ErrSaveFailed, sessionID, err)
	}

	return nil
}

// Ping verifies the root directory can be created and written.
func (s *FileStore) Ping(context.Context) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	tmp, err := os.CreateTemp(s.root, ".ping-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	name := tmp.Name()
	tmp.Close()
	return os.Remove(name)
}

func (s *FileStore) Close() error { return nil }
