// Package interaction keeps the bounded chat ledger: question/answer pairs
// grouped by a caller-chosen session id.
package interaction

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

// Default cap policy.
const (
	DefaultMaxEntries    = 1000
	DefaultRetainEntries = 500
)

const snapshotVersion = 1

var evictedEntries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "pagepilot_interaction_evictions_total",
	Help: "Interaction entries dropped by the size cap.",
})

// Entry is one question/answer pair. Entries are never modified after Append.
type Entry struct {
	SessionID string    `json:"sessionId"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Time      time.Time `json:"time"`
}

// Log is the interaction ledger used by the chat handlers.
type Log interface {
	Append(sessionID, question, answer string) (Entry, error)
	History(sessionID string) []Entry
	Clear(sessionID string) (int, error)
	Len() int
}

// Options configures NewFileLog.
type Options struct {
	// Path of the JSON snapshot. Empty keeps the log in memory.
	Path string
	// MaxEntries triggers truncation when exceeded. Defaults to DefaultMaxEntries.
	MaxEntries int
	// RetainEntries survive truncation. Defaults to DefaultRetainEntries and must
	// be below MaxEntries.
	RetainEntries int
}

type snapshot struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	Entries   []Entry   `json:"entries"`
}

// FileLog is a Log held in memory and mirrored to a JSON snapshot after each
// mutation.
type FileLog struct {
	mu      sync.RWMutex
	entries []Entry
	path    string
	max     int
	retain  int
	now     func() time.Time
}

// NewFileLog creates a log and loads an existing snapshot from opts.Path.
func NewFileLog(opts Options) (*FileLog, error) {
	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	retain := opts.RetainEntries
	if retain <= 0 {
		retain = DefaultRetainEntries
	}
	if retain >= maxEntries {
		return nil, fmt.Errorf("retain entries (%d) must be below max entries (%d)", retain, maxEntries)
	}

	l := &FileLog{
		entries: make([]Entry, 0),
		path:    opts.Path,
		max:     maxEntries,
		retain:  retain,
		now:     time.Now,
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

// Append records a pair stamped with the current time, applies the cap and
// persists. A persistence error is returned after the in-memory append.
func (l *FileLog) Append(sessionID, question, answer string) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{SessionID: sessionID, Question: question, Answer: answer, Time: l.now().UTC()}
	l.entries = append(l.entries, e)
	l.enforceCap()
	return e, l.saveLocked()
}

// enforceCap keeps only the most recent retain entries once the log grows past
// max. Callers hold l.mu.
func (l *FileLog) enforceCap() {
	if len(l.entries) <= l.max {
		return
	}
	dropped := len(l.entries) - l.retain
	kept := make([]Entry, l.retain)
	copy(kept, l.entries[dropped:])
	l.entries = kept
	evictedEntries.Add(float64(dropped))
	log.WithFields(log.Fields{"dropped": dropped, "kept": l.retain}).Debug("interaction log truncated")
}

// History returns the entries for sessionID in insertion order.
func (l *FileLog) History(sessionID string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0)
	for _, e := range l.entries {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out
}

// Clear removes every entry for sessionID and returns how many were removed.
// When the snapshot cannot be written nothing is removed.
func (l *FileLog) Clear(sessionID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.entries[:0:0]
	for _, e := range l.entries {
		if e.SessionID != sessionID {
			kept = append(kept, e)
		}
	}
	removed := len(l.entries) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	// Persist first so a failed write leaves the log untouched.
	if err := l.writeSnapshot(kept); err != nil {
		return 0, err
	}
	l.entries = kept
	return removed, nil
}

// Len returns the total number of entries across all sessions.
func (l *FileLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *FileLog) saveLocked() error {
	return l.writeSnapshot(l.entries)
}

func (l *FileLog) writeSnapshot(entries []Entry) error {
	if l.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create interaction log dir: %w", err)
	}
	data, err := json.MarshalIndent(snapshot{
		Version:   snapshotVersion,
		UpdatedAt: l.now().UTC(),
		Entries:   entries,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode interaction log: %w", err)
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write interaction log: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace interaction log: %w", err)
	}
	return nil
}

func (l *FileLog) load() error {
	if l.path == "" {
		return nil
	}
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read interaction log: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode interaction log: %w", err)
	}
	if snap.Entries != nil {
		l.entries = snap.Entries
	}
	l.enforceCap()
	return nil
}
