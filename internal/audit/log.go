package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dyike/CortexTrade/models"
)

// Entry is one line of the audit log.
type Entry struct {
	Timestamp   time.Time        `json:"timestamp"`
	CycleID     string           `json:"cycle_id"`
	Symbol      string           `json:"symbol"`
	Action      models.Action    `json:"action"`
	Explanation string           `json:"explanation"`
	TxHash      *string          `json:"tx_hash"`
	PHS         float64          `json:"phs"`
	Votes       models.VoteTally `json:"votes"`
}

// Log appends one JSON line per decision. Each line is written with a single
// write on an O_APPEND descriptor so readers tailing the file never see a
// torn record.
type Log struct {
	path string
	mu   sync.Mutex
}

func New(path string) (*Log, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("audit log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &Log{path: path}, nil
}

func (l *Log) Path() string { return l.path }

func NewEntry(d models.Decision) Entry {
	parts := make([]string, 0, len(d.Explanations))
	for _, v := range d.Explanations {
		parts = append(parts, fmt.Sprintf("%s: %s - %s", v.Agent, v.Action, strings.TrimSpace(v.Explanation)))
	}
	e := Entry{
		Timestamp:   d.DecidedAt.UTC(),
		CycleID:     d.CycleID,
		Symbol:      d.Symbol,
		Action:      d.Action,
		Explanation: strings.Join(parts, " | "),
		PHS:         d.PHS,
		Votes:       d.Votes,
	}
	if d.TxHash != "" {
		tx := d.TxHash
		e.TxHash = &tx
	}
	return e
}

func (l *Log) Record(_ context.Context, d models.Decision) error {
	line, err := json.Marshal(NewEntry(d))
	if err != nil {
		return fmt.Errorf("encode audit entry: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// Read returns the last limit entries, oldest first. limit <= 0 returns all.
// A trailing partial line is ignored.
func Read(path string, limit int) ([]Entry, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan audit log: %w", err)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}
