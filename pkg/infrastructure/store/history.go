package store

import (
	"fmt"
	"os"
	"sync"

	"github.com/getship/shipd/pkg/domain/entities"
)

// HistoryLog is the append-only, newest-first build history. Entries are
// never edited or removed.
type HistoryLog struct {
	mu   sync.Mutex
	path string
}

type historyDocument struct {
	Builds []entities.BuildRecord `json:"builds"`
}

func NewHistoryLog(path string) (*HistoryLog, error) {
	l := &HistoryLog{path: path}
	var doc historyDocument
	err := readDocument(path, &doc)
	if os.IsNotExist(err) {
		if err := writeDocument(path, &historyDocument{Builds: []entities.BuildRecord{}}); err != nil {
			return nil, fmt.Errorf("initialize build history: %w", err)
		}
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load build history: %w", err)
	}
	return l, nil
}

func (l *HistoryLog) load() (*historyDocument, error) {
	var doc historyDocument
	if err := readDocument(l.path, &doc); err != nil {
		return nil, fmt.Errorf("load build history: %w", err)
	}
	return &doc, nil
}

// Append prepends a record so the document stays newest-first.
func (l *HistoryLog) Append(rec entities.BuildRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, err := l.load()
	if err != nil {
		return err
	}
	doc.Builds = append([]entities.BuildRecord{rec}, doc.Builds...)
	if err := writeDocument(l.path, doc); err != nil {
		return fmt.Errorf("persist build history: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first. limit <= 0 means all.
// Failed builds are filtered out unless includeFailed is set.
func (l *HistoryLog) List(limit int, includeFailed bool) ([]entities.BuildRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	doc, err := l.load()
	if err != nil {
		return nil, err
	}
	out := make([]entities.BuildRecord, 0, len(doc.Builds))
	for _, rec := range doc.Builds {
		if !includeFailed && !rec.Success {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// LatestSuccessful returns the most recent successful record, or NotFound
// when the log holds none.
func (l *HistoryLog) LatestSuccessful() (*entities.BuildRecord, error) {
	recs, err := l.List(1, false)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, entities.NewNotFoundError("no successful builds recorded")
	}
	return &recs[0], nil
}
