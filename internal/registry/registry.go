package registry

import (
	"sort"
	"strings"
	"sync"
	"time"

	"lpr-service/internal/domain/plate"
)

// Registry holds the best-known record per plate number for one session.
//
// Ordering: an entry is stamped with the batch generation and its position in
// that batch whenever it is inserted or upgraded. Snapshots list entries by
// generation, newest first, and by batch position within a generation. Entries
// a batch leaves untouched keep their stamp, so resubmitting a batch changes
// neither content nor order.
//
// Remaining days are recomputed on every read, so a long-running session
// crossing midnight never serves a stale count.
type Registry struct {
	mu         sync.RWMutex
	entries    map[string]*entry
	generation uint64
	now        func() time.Time
}

type entry struct {
	record     plate.Record
	generation uint64
	position   int
}

// SubmitResult summarises how a batch was folded into the registry.
type SubmitResult struct {
	Inserted int `json:"inserted"`
	Upgraded int `json:"upgraded"`
	Kept     int `json:"kept"`
}

type Option func(*Registry)

// WithClock sets the clock used to evaluate remaining days on read.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

func New(opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SubmitBatch folds records into the registry. A record is inserted when its
// plate is new, replaces the current entry only when it brings a known expiry
// the entry lacks, and is dropped otherwise. Records are not validated.
func (r *Registry) SubmitBatch(records []plate.Record) SubmitResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res SubmitResult
	if len(records) == 0 {
		return res
	}

	r.generation++
	for i, rec := range records {
		current, ok := r.entries[rec.PlateNumber]
		if !ok {
			r.entries[rec.PlateNumber] = &entry{record: rec, generation: r.generation, position: i}
			res.Inserted++
			continue
		}

		kept, replaced := plate.Upgrade(current.record, rec)
		if !replaced {
			res.Kept++
			continue
		}
		current.record = kept
		current.generation = r.generation
		current.position = i
		res.Upgraded++
	}
	return res
}

// Clear drops every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]*entry)
}

// Query returns the records whose plate number contains substr, ignoring case.
// An empty substr matches every record.
func (r *Registry) Query(substr string) []plate.Record {
	needle := strings.ToLower(substr)
	return r.collect(func(rec plate.Record) bool {
		return strings.Contains(strings.ToLower(rec.PlateNumber), needle)
	})
}

// Snapshot returns a copy of all records, newest activity first.
func (r *Registry) Snapshot() []plate.Record {
	return r.collect(nil)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.entries)
}

func (r *Registry) collect(keep func(plate.Record) bool) []plate.Record {
	now := r.now()

	r.mu.RLock()
	ordered := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if keep == nil || keep(e.record) {
			ordered = append(ordered, e)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].generation != ordered[j].generation {
			return ordered[i].generation > ordered[j].generation
		}
		return ordered[i].position < ordered[j].position
	})

	out := make([]plate.Record, len(ordered))
	for i, e := range ordered {
		out[i] = e.record.AsOf(now)
	}
	r.mu.RUnlock()
	return out
}
