package transcript

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gofrs/flock"
)

var (
	// ErrNoMatches is returned when no run matches the query.
	ErrNoMatches = errors.New("no transcripts found")
	// ErrManyMatches is returned when several runs match the query.
	ErrManyMatches = errors.New("multiple transcripts matched the input")
)

const (
	indexFileName      = "index.jsonl"
	compactMinOps      = 256
	compactScaleFactor = 4

	// MinPrefixLen is the shortest run id prefix Find accepts.
	MinPrefixLen = 4
	// ShortIDLen is the run id length shown in listings. It spans the
	// timestamp and sequence bits of a v7 id.
	ShortIDLen = 18
)

// Record describes one recorded run.
type Record struct {
	RunID      string    `json:"run_id"`
	WorkflowID string    `json:"workflow_id"`
	Workflow   string    `json:"workflow"`
	ChatID     string    `json:"chat_id"`
	UserID     string    `json:"user_id"`
	Query      string    `json:"query"`
	StartedAt  time.Time `json:"started_at"`
	Frames     int       `json:"frames"`
	Failed     bool      `json:"failed"`
}

type indexEvent struct {
	Op     string  `json:"op"`
	ID     string  `json:"id,omitempty"`
	Record *Record `json:"record,omitempty"`
}

// Index is an append-only JSON lines index of recorded runs, shared between
// processes through a file lock.
type Index struct {
	mu      sync.RWMutex
	path    string
	lock    *flock.Flock
	records map[string]Record
	ops     int
}

func openIndex(dir string) (*Index, error) {
	idx := &Index{
		path:    filepath.Join(dir, indexFileName),
		lock:    flock.New(filepath.Join(dir, "index.lock")),
		records: map[string]Record{},
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Save upserts a run record.
func (x *Index) Save(rec Record) error {
	if strings.TrimSpace(rec.RunID) == "" {
		return fmt.Errorf("save record: %w", errInvalidID)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	x.records[rec.RunID] = rec
	if err := x.appendLocked(indexEvent{Op: "upsert", Record: &rec}); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return x.compactIfNeededLocked()
}

// Delete removes a run record.
func (x *Index) Delete(id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.records[id]; !ok {
		return nil
	}
	delete(x.records, id)
	if err := x.appendLocked(indexEvent{Op: "delete", ID: id}); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return x.compactIfNeededLocked()
}

// Find resolves a run by id prefix.
func (x *Index) Find(prefix string) (*Record, error) {
	if len(prefix) < MinPrefixLen {
		return nil, fmt.Errorf("%w: %q is shorter than %d characters", ErrNoMatches, prefix, MinPrefixLen)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	var found []Record
	for id, rec := range x.records {
		if strings.HasPrefix(id, prefix) {
			found = append(found, rec)
		}
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNoMatches, prefix)
	case 1:
		return &found[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrManyMatches, prefix)
	}
}

// List returns every record, most recent first.
func (x *Index) List() []Record {
	x.mu.RLock()
	out := make([]Record, 0, len(x.records))
	for _, rec := range x.records {
		out = append(out, rec)
	}
	x.mu.RUnlock()

	slices.SortFunc(out, func(a, b Record) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		return strings.Compare(a.RunID, b.RunID)
	})
	return out
}

func (x *Index) load() error {
	if err := x.lock.Lock(); err != nil {
		return fmt.Errorf("could not lock index file: %w", err)
	}
	defer func() { _ = x.lock.Unlock() }()

	file, err := os.Open(x.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("could not open index file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var evt indexEvent
		if err := json.Unmarshal([]byte(line), &evt); err != nil {
			return fmt.Errorf("could not parse index event: %w", err)
		}
		if err := x.apply(&evt); err != nil {
			return err
		}
		x.ops++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("could not scan index file: %w", err)
	}
	return nil
}

func (x *Index) apply(evt *indexEvent) error {
	switch evt.Op {
	case "upsert":
		if evt.Record == nil || evt.Record.RunID == "" {
			return fmt.Errorf("invalid upsert event: missing record")
		}
		x.records[evt.Record.RunID] = *evt.Record
	case "delete":
		if evt.ID == "" {
			return fmt.Errorf("invalid delete event: empty id")
		}
		delete(x.records, evt.ID)
	default:
		return fmt.Errorf("invalid index event op: %q", evt.Op)
	}
	return nil
}

func (x *Index) appendLocked(evt indexEvent) error {
	if err := x.lock.Lock(); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = x.lock.Unlock() }()

	file, err := os.OpenFile(x.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = file.Close() }()

	bts, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal index event: %w", err)
	}
	bts = append(bts, '\n')
	if _, err := file.Write(bts); err != nil {
		return fmt.Errorf("write index event: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	x.ops++
	return nil
}

func (x *Index) compactIfNeededLocked() error {
	if x.ops < compactMinOps {
		return nil
	}
	if len(x.records) > 0 && x.ops < len(x.records)*compactScaleFactor {
		return nil
	}
	return x.compactLocked()
}

func (x *Index) compactLocked() error {
	if err := x.lock.Lock(); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = x.lock.Unlock() }()

	tmpPath := x.path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open compacted index: %w", err)
	}

	enc := json.NewEncoder(file)
	for _, rec := range x.records {
		if err := enc.Encode(indexEvent{Op: "upsert", Record: &rec}); err != nil {
			_ = file.Close()
			return fmt.Errorf("write compacted index: %w", err)
		}
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync compacted index: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close compacted index: %w", err)
	}
	if err := os.Rename(tmpPath, x.path); err != nil {
		return fmt.Errorf("replace index with compacted version: %w", err)
	}
	_ = syncDir(filepath.Dir(x.path))

	x.ops = len(x.records)
	return nil
}
