package storage

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

type memCollection struct {
	info    CollectionInfo
	records []memRecord
	index   map[string]int
}

type memRecord struct {
	seq int64
	rec Record
}

// MemStore is an in-process VectorStore. It mirrors SQLiteStore semantics
// and is used for tests and for runs configured with backend "memory".
type MemStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	seq         int64
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{collections: make(map[string]*memCollection)}
}

func (m *MemStore) Close() error { return nil }

func (m *MemStore) EnsureCollection(_ context.Context, name string, vectorSize int) (CollectionInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[name]; ok {
		return c.info, nil
	}
	info := CollectionInfo{Name: name, VectorSize: vectorSize, Distance: DistanceCosine}
	m.collections[name] = &memCollection{info: info, index: make(map[string]int)}
	info.Created = true
	return info, nil
}

func (m *MemStore) get(name string) (*memCollection, error) {
	c, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return c, nil
}

func (m *MemStore) Upsert(_ context.Context, collection string, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(collection)
	if err != nil {
		return err
	}
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("upserting into %s: record id is required", collection)
		}
		if err := checkDimension(collection, c.info.VectorSize, r.Vector); err != nil {
			return err
		}
	}
	for _, r := range records {
		r = cloneRecord(r)
		if i, ok := c.index[r.ID]; ok {
			c.records[i].rec = r
			continue
		}
		m.seq++
		c.index[r.ID] = len(c.records)
		c.records = append(c.records, memRecord{seq: m.seq, rec: r})
	}
	return nil
}

func (m *MemStore) Scroll(_ context.Context, collection string, req ScrollRequest) (ScrollPage, error) {
	if err := req.Filter.Validate(); err != nil {
		return ScrollPage{}, err
	}
	var after int64
	if req.Offset != "" {
		n, err := strconv.ParseInt(req.Offset, 10, 64)
		if err != nil {
			return ScrollPage{}, fmt.Errorf("invalid scroll offset %q: %w", req.Offset, err)
		}
		after = n
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 100
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.get(collection)
	if err != nil {
		return ScrollPage{}, err
	}
	var (
		page    ScrollPage
		lastSeq int64
	)
	for _, r := range c.records {
		if r.seq <= after || !req.Filter.Matches(r.rec.Payload) {
			continue
		}
		if len(page.Records) == limit {
			page.Next = strconv.FormatInt(lastSeq, 10)
			break
		}
		page.Records = append(page.Records, cloneRecord(r.rec))
		lastSeq = r.seq
	}
	return page, nil
}

func (m *MemStore) Search(_ context.Context, collection string, vector []float32, filter Filter, limit int) ([]ScoredRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.get(collection)
	if err != nil {
		return nil, err
	}
	var hits []ScoredRecord
	for _, r := range c.records {
		if r.rec.Vector == nil || !filter.Matches(r.rec.Payload) {
			continue
		}
		hits = append(hits, ScoredRecord{Record: cloneRecord(r.rec), Score: cosine(vector, r.rec.Vector)})
	}
	return topK(hits, limit), nil
}

func (m *MemStore) Delete(_ context.Context, collection string, filter Filter) (int, error) {
	if filter.Empty() {
		return 0, ErrEmptyFilter
	}
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, err := m.get(collection)
	if err != nil {
		return 0, err
	}
	kept := c.records[:0]
	removed := 0
	for _, r := range c.records {
		if filter.Matches(r.rec.Payload) {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	c.records = kept
	c.index = make(map[string]int, len(kept))
	for i, r := range kept {
		c.index[r.rec.ID] = i
	}
	return removed, nil
}

func (m *MemStore) Count(_ context.Context, collection string, filter Filter) (int, error) {
	if err := filter.Validate(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, err := m.get(collection)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, r := range c.records {
		if filter.Matches(r.rec.Payload) {
			n++
		}
	}
	return n, nil
}

// cloneRecord copies the top level of the payload and the vector so callers
// cannot mutate stored state.
func cloneRecord(r Record) Record {
	out := Record{ID: r.ID}
	if r.Vector != nil {
		out.Vector = append([]float32(nil), r.Vector...)
	}
	if r.Payload != nil {
		out.Payload = make(map[string]any, len(r.Payload))
		for k, v := range r.Payload {
			out.Payload[k] = v
		}
	}
	return out
}
