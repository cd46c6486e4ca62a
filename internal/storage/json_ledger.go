package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vishalmysore/moltbookcore/internal/core/domain"
	"github.com/vishalmysore/moltbookcore/internal/core/ports"
)

// JSONLedger is the file-backed audit trail used when no database is
// configured.
type JSONLedger struct {
	FilePath string
	mu       sync.Mutex
	Data     ledgerData
}

type ledgerData struct {
	Activities   []domain.Activity    `json:"activities"`
	Observations []domain.Observation `json:"observations"`
	Logs         []domain.LogEntry    `json:"logs"`
}

func NewJSONLedger(filePath string) (*JSONLedger, error) {
	l := &JSONLedger{FilePath: filePath}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}
	if err := l.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return l, nil
}

var _ ports.Ledger = (*JSONLedger)(nil)

func (l *JSONLedger) loadFromFile() error {
	file, err := os.ReadFile(l.FilePath)
	if err != nil {
		return err
	}
	return json.Unmarshal(file, &l.Data)
}

func (l *JSONLedger) saveToFile() error {
	data, err := json.MarshalIndent(l.Data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(l.FilePath, data, 0644)
}

func (l *JSONLedger) TrackAction(ctx context.Context, kind, input, output string, success bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Data.Activities = append(l.Data.Activities, domain.Activity{
		ID:        uuid.NewString(),
		Kind:      kind,
		Input:     input,
		Output:    output,
		Success:   success,
		CreatedAt: time.Now(),
	})
	return l.saveToFile()
}

func (l *JSONLedger) TrackObservation(ctx context.Context, postID, summary string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Data.Observations = append(l.Data.Observations, domain.Observation{
		ID:        uuid.NewString(),
		PostID:    postID,
		Summary:   summary,
		CreatedAt: time.Now(),
	})
	return l.saveToFile()
}

func (l *JSONLedger) TrackLog(ctx context.Context, message string) error {
	return l.appendLog("info", message)
}

func (l *JSONLedger) TrackError(ctx context.Context, message string) error {
	return l.appendLog("error", message)
}

func (l *JSONLedger) appendLog(level, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Data.Logs = append(l.Data.Logs, domain.LogEntry{
		ID:        uuid.NewString(),
		Level:     level,
		Message:   message,
		CreatedAt: time.Now(),
	})
	return l.saveToFile()
}
