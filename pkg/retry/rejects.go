package retry

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"
)

// FailureType причина, по которой пачка попала в отклоненные
type FailureType string

const (
	FailureMaxAttempts  FailureType = "max_attempts_exceeded"
	FailureNonRetryable FailureType = "non_retryable"
)

// Reject - одна пачка строк, которую не удалось записать
type Reject struct {
	ID          string      `json:"id"`
	Timestamp   time.Time   `json:"timestamp"`
	Source      string      `json:"source,omitempty"` // например "upsert [dbo].[Products]"
	Attempts    int         `json:"attempts"`
	LastError   string      `json:"last_error"`
	FailureType FailureType `json:"failure_type"`
	Data        any         `json:"data,omitempty"`
}

// Rejects - JSON-файл отклоненных пачек для последующей повторной загрузки
type Rejects struct {
	mu      sync.RWMutex
	config  RejectsConfig
	entries []Reject
	counter int
}

// OpenRejects открывает файл отклоненных, загружая существующие записи
func OpenRejects(config RejectsConfig) (*Rejects, error) {
	r := &Rejects{config: config}

	data, err := os.ReadFile(config.FilePath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read rejects file: %w", err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &r.entries); err != nil {
			return nil, fmt.Errorf("failed to unmarshal rejects: %w", err)
		}
	}
	r.counter = len(r.entries)
	return r, nil
}

// Add добавляет запись и сразу сохраняет файл
func (r *Rejects) Add(entry Reject) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counter++
	entry.ID = fmt.Sprintf("rej-%d-%d", entry.Timestamp.Unix(), r.counter)
	r.entries = append(r.entries, entry)

	if r.config.MaxSize > 0 && len(r.entries) > r.config.MaxSize {
		r.entries = r.entries[len(r.entries)-r.config.MaxSize:]
	}

	return r.saveUnsafe()
}

// Entries возвращает копию записей
func (r *Rejects) Entries() []Reject {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Reject, len(r.entries))
	copy(out, r.entries)
	return out
}

// Size возвращает количество записей
func (r *Rejects) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// CleanupOld удаляет записи старше RetentionPeriod
func (r *Rejects) CleanupOld() int {
	if r.config.RetentionPeriod == 0 {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.config.RetentionPeriod)
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}

	removed := len(r.entries) - len(kept)
	if removed > 0 {
		r.entries = kept
		r.saveUnsafe()
	}
	return removed
}

// Save сохраняет файл
func (r *Rejects) Save() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveUnsafe()
}

// saveUnsafe вызывается под r.mu
func (r *Rejects) saveUnsafe() error {
	data, err := json.MarshalIndent(r.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rejects: %w", err)
	}
	if err := os.WriteFile(r.config.FilePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write rejects file: %w", err)
	}
	return nil
}
