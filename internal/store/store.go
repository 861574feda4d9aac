// Package store persists pelican's conversation state on disk: an append-only
// JSONL message log, the curated memory document, the rolling auto-summary,
// and the consolidation cursor.
package store

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pelicandev/pelican/internal/schema"
)

const (
	logFile     = "messages.jsonl"
	memoryFile  = "MEMORY.md"
	summaryFile = "SUMMARY.md"
	cursorFile  = "cursor.json"

	// Log lines can carry pasted documents; allow up to 1 MB per line.
	maxLineSize = 1024 * 1024
)

// record is the wire form of one log line. Tool-call metadata is deliberately
// absent: audit entries store their payload as plain content.
type record struct {
	Role      schema.Role `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
	Channel   string      `json:"channel,omitempty"`
	SenderID  string      `json:"sender_id,omitempty"`
}

type cursorState struct {
	Cursor int `json:"last_consolidated"`
}

// Store owns the on-disk conversation state for one workspace directory.
// All methods are safe for concurrent use.
type Store struct {
	mu  sync.Mutex
	dir string

	logPath     string
	memoryPath  string
	summaryPath string
	cursorPath  string
}

// New opens (creating if needed) the store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", dir, err)
	}
	return &Store{
		dir:         dir,
		logPath:     filepath.Join(dir, logFile),
		memoryPath:  filepath.Join(dir, memoryFile),
		summaryPath: filepath.Join(dir, summaryFile),
		cursorPath:  filepath.Join(dir, cursorFile),
	}, nil
}

// Dir returns the workspace directory the store is rooted at.
func (s *Store) Dir() string { return s.dir }

// Append writes one message to the end of the log.
func (s *Store) Append(msg schema.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(msg)
}

// AppendAll writes messages to the log in order, stopping at the first error.
func (s *Store) AppendAll(msgs ...schema.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		if err := s.appendLocked(m); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) appendLocked(msg schema.Message) error {
	rec := record{
		Role:      msg.Role,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
		Channel:   msg.Channel,
		SenderID:  msg.SenderID,
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	f, err := os.OpenFile(s.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append log: %w", err)
	}
	return nil
}

// LoadHistory returns messages from the log in order. A positive limit keeps
// only the last limit entries; limit <= 0 returns everything. Malformed lines
// are skipped with a warning so one corrupt entry cannot sink the log.
func (s *Store) LoadHistory(limit int) ([]schema.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.logPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()

	var msgs []schema.Message
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec record
		if err := json.Unmarshal(line, &rec); err != nil {
			slog.Warn("skipping malformed log line", "line", lineNo, "error", err)
			continue
		}
		msgs = append(msgs, schema.Message{
			Role:      rec.Role,
			Content:   rec.Content,
			Timestamp: rec.Timestamp,
			Channel:   rec.Channel,
			SenderID:  rec.SenderID,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan log: %w", err)
	}

	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// CuratedMemory returns the contents of MEMORY.md, or "" when absent.
func (s *Store) CuratedMemory() string {
	return s.readFile(s.memoryPath)
}

// WriteCuratedMemory replaces MEMORY.md.
func (s *Store) WriteCuratedMemory(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(s.memoryPath, []byte(text), 0o600); err != nil {
		return fmt.Errorf("write memory: %w", err)
	}
	return nil
}

// AutoSummary returns the contents of SUMMARY.md, or "" when absent.
func (s *Store) AutoSummary() string {
	return s.readFile(s.summaryPath)
}

// Cursor returns the consolidation cursor: the count of conversational
// messages already folded into the auto-summary. Missing or unreadable state
// means nothing has been consolidated.
func (s *Store) Cursor() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.cursorPath)
	if err != nil {
		return 0
	}
	var st cursorState
	if err := json.Unmarshal(data, &st); err != nil {
		slog.Warn("unreadable cursor state, treating as zero", "error", err)
		return 0
	}
	if st.Cursor < 0 {
		return 0
	}
	return st.Cursor
}

// SaveConsolidated persists a new auto-summary and cursor as one unit: either
// both take effect or, on cursor-write failure, the previous summary is
// restored so an unsaved cursor never points past an already-replaced summary.
func (s *Store) SaveConsolidated(summary string, cursor int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, hadPrev := s.readFileRaw(s.summaryPath)
	if err := os.WriteFile(s.summaryPath, []byte(summary), 0o600); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	data, err := json.Marshal(cursorState{Cursor: cursor})
	if err == nil {
		err = os.WriteFile(s.cursorPath, data, 0o600)
	}
	if err != nil {
		if hadPrev {
			if rerr := os.WriteFile(s.summaryPath, prev, 0o600); rerr != nil {
				slog.Error("failed to restore summary after cursor write failure", "error", rerr)
			}
		} else if rerr := os.Remove(s.summaryPath); rerr != nil {
			slog.Error("failed to remove summary after cursor write failure", "error", rerr)
		}
		return fmt.Errorf("write cursor: %w", err)
	}
	return nil
}

func (s *Store) readFile(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, _ := s.readFileRaw(path)
	return string(data)
}

func (s *Store) readFileRaw(path string) ([]byte, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read store file", "path", path, "error", err)
		}
		return nil, false
	}
	return data, true
}
