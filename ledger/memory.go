package ledger

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Memory is an in-process Ledger. It backs dry runs and tests.
type Memory struct {
	mu      sync.Mutex
	nextID  int
	records map[string]Record
	logs    []Entry
}

var _ Ledger = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{records: map[string]Record{}}
}

func (m *Memory) Ensure(ctx context.Context) error { return nil }

func (m *Memory) Applied(ctx context.Context) (map[string]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]Record{}
	for file, r := range m.records {
		if r.Applied() {
			out[file] = r
		}
	}
	return out, nil
}

func (m *Memory) Record(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.records[rec.File]; ok {
		rec.ID = old.ID
	} else {
		m.nextID++
		rec.ID = strconv.Itoa(m.nextID)
	}
	if rec.AppliedAt.IsZero() {
		rec.AppliedAt = time.Now().UTC()
	}
	m.records[rec.File] = rec
	return nil
}

func (m *Memory) Get(ctx context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

func (m *Memory) Remove(ctx context.Context, file string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[file]; !ok {
		return ErrNotFound
	}
	delete(m.records, file)
	return nil
}

func (m *Memory) History(ctx context.Context, filter Filter) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, r := range m.records {
		if filter.Collection != "" && !strings.Contains(strings.ToLower(r.Collection), strings.ToLower(filter.Collection)) {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	sortNewestFirst(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *Memory) Log(ctx context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	m.logs = append(m.logs, entry)
	return nil
}

func (m *Memory) Logs(ctx context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0, len(m.logs))
	for i := len(m.logs) - 1; i >= 0; i-- {
		out = append(out, m.logs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) Close(ctx context.Context) error { return nil }

// sortNewestFirst orders by AppliedAt descending, then numeric ID descending.
func sortNewestFirst(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		if !recs[i].AppliedAt.Equal(recs[j].AppliedAt) {
			return recs[i].AppliedAt.After(recs[j].AppliedAt)
		}
		a, errA := strconv.Atoi(recs[i].ID)
		b, errB := strconv.Atoi(recs[j].ID)
		if errA == nil && errB == nil {
			return a > b
		}
		return recs[i].ID > recs[j].ID
	})
}
