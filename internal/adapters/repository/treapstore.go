package repository

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/pacer/internal/domain/model"
	"github.com/okian/pacer/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Records live in a map keyed by ID. A treap keyed by (CreatedAt ASC, ID ASC)
// orders them in time, so in-order traversal yields time order, range scans
// only visit matching nodes and pruning splits off the expired prefix.

const secondsPerDay = 86400

type key struct {
	at int64
	id string
}

func (a key) less(b key) bool {
	if a.at != b.at {
		return a.at < b.at
	}
	return a.id < b.id
}

// treap node
type node struct {
	key   key
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

func insert(n *node, k key, prio uint64) *node {
	if n == nil {
		return &node{key: k, prio: prio, size: 1}
	}
	if k.less(n.key) {
		n.left = insert(n.left, k, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, k, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

// split returns the nodes with keys < k and the nodes with keys >= k.
func split(n *node, k key) (*node, *node) {
	if n == nil {
		return nil, nil
	}
	if n.key.less(k) {
		l, r := split(n.right, k)
		n.right = l
		fix(n)
		return n, r
	}
	l, r := split(n.left, k)
	n.left = r
	fix(n)
	return l, n
}

func collectAll(n *node, byID map[string]model.WorkoutRecord, out *[]model.WorkoutRecord) {
	if n == nil {
		return
	}
	collectAll(n.left, byID, out)
	if rec, ok := byID[n.key.id]; ok {
		*out = append(*out, rec)
	}
	collectAll(n.right, byID, out)
}

// collectRange appends records with start <= at <= end in time order.
func collectRange(n *node, start, end int64, byID map[string]model.WorkoutRecord, out *[]model.WorkoutRecord) {
	if n == nil {
		return
	}
	if n.key.at >= start {
		collectRange(n.left, start, end, byID, out)
	}
	if n.key.at >= start && n.key.at <= end {
		if rec, ok := byID[n.key.id]; ok {
			*out = append(*out, rec)
		}
	}
	if n.key.at <= end {
		collectRange(n.right, start, end, byID, out)
	}
}

// collectNewest appends up to limit records, newest first.
func collectNewest(n *node, limit int, byID map[string]model.WorkoutRecord, out *[]model.WorkoutRecord) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectNewest(n.right, limit, byID, out)
	if len(*out) < limit {
		if rec, ok := byID[n.key.id]; ok {
			*out = append(*out, rec)
		}
	}
	if len(*out) < limit {
		collectNewest(n.left, limit, byID, out)
	}
}

func forEach(n *node, fn func(key)) {
	if n == nil {
		return
	}
	forEach(n.left, fn)
	fn(n.key)
	forEach(n.right, fn)
}

// TreapStore is the default Store. It is safe for concurrent use.
type TreapStore struct {
	mu      sync.RWMutex
	root    *node
	byID    map[string]model.WorkoutRecord
	version atomic.Uint64

	now  func() time.Time
	prio func() uint64
}

// NewTreapStore constructs an empty store.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{
		byID: make(map[string]model.WorkoutRecord),
		now:  time.Now,
		prio: rand.Uint64,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// insertLocked assumes the write lock is held.
func (s *TreapStore) insertLocked(rec model.WorkoutRecord) bool {
	if _, ok := s.byID[rec.ID]; ok {
		return false
	}
	s.byID[rec.ID] = rec
	s.root = insert(s.root, key{at: rec.CreatedAt, id: rec.ID}, s.prio())
	return true
}

// Insert stores rec unless its ID is already present.
func (s *TreapStore) Insert(rec model.WorkoutRecord) bool {
	return s.InsertMany([]model.WorkoutRecord{rec}) == 1
}

// InsertMany inserts recs and returns the number of new records.
func (s *TreapStore) InsertMany(recs []model.WorkoutRecord) int {
	if len(recs) == 0 {
		return 0
	}

	s.mu.Lock()
	added := 0
	for _, rec := range recs {
		if rec.ID == "" {
			continue
		}
		if s.insertLocked(rec) {
			added++
		}
	}
	size := len(s.byID)
	if added > 0 {
		s.version.Add(1)
	}
	s.mu.Unlock()

	metrics.RecordRecordsIngested(added)
	metrics.RecordRecordsDuplicate(len(recs) - added)
	metrics.UpdateStoreRecords(size)
	return added
}

// ReplaceAll drops every record and stores recs.
func (s *TreapStore) ReplaceAll(recs []model.WorkoutRecord) {
	s.mu.Lock()
	s.root = nil
	s.byID = make(map[string]model.WorkoutRecord, len(recs))
	for _, rec := range recs {
		if rec.ID != "" {
			s.insertLocked(rec)
		}
	}
	size := len(s.byID)
	s.version.Add(1)
	s.mu.Unlock()

	metrics.UpdateStoreRecords(size)
}

// Get returns the record with id.
func (s *TreapStore) Get(id string) (model.WorkoutRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[id]
	if !ok {
		return model.WorkoutRecord{}, ErrNotFound
	}
	return rec, nil
}

// All returns every record in time order.
func (s *TreapStore) All() []model.WorkoutRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.WorkoutRecord, 0, len(s.byID))
	collectAll(s.root, s.byID, &out)
	return out
}

// Recent returns the newest n records, newest first.
func (s *TreapStore) Recent(n int) ([]model.WorkoutRecord, error) {
	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.WorkoutRecord, 0, min(n, len(s.byID)))
	collectNewest(s.root, n, s.byID, &out)
	return out, nil
}

// Len returns the number of stored records.
func (s *TreapStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Version returns the change counter.
func (s *TreapStore) Version() uint64 {
	return s.version.Load()
}

func (s *TreapStore) QueryByOwner(owner string) []model.WorkoutRecord {
	return s.Query(ByOwner(owner))
}

func (s *TreapStore) QueryByActivity(kind model.ActivityKind) []model.WorkoutRecord {
	return s.Query(ByActivity(kind))
}

// QueryByTimeRange returns records with start <= CreatedAt <= end in time order.
func (s *TreapStore) QueryByTimeRange(start, end int64) []model.WorkoutRecord {
	if start > end {
		return []model.WorkoutRecord{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.WorkoutRecord, 0)
	collectRange(s.root, start, end, s.byID, &out)
	return out
}

// Query returns records matching every predicate in time order.
func (s *TreapStore) Query(preds ...Predicate) []model.WorkoutRecord {
	return Filter(s.All(), preds...)
}

// Prune removes records older than the retention window.
// A non-positive maxAgeDays uses DefaultRetentionDays.
func (s *TreapStore) Prune(maxAgeDays int) int {
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultRetentionDays
	}
	cutoff := s.now().Unix() - int64(maxAgeDays)*secondsPerDay

	s.mu.Lock()
	expired, kept := split(s.root, key{at: cutoff})
	removed := nsize(expired)
	forEach(expired, func(k key) { delete(s.byID, k.id) })
	s.root = kept
	size := len(s.byID)
	if removed > 0 {
		s.version.Add(1)
	}
	s.mu.Unlock()

	metrics.RecordRecordsPruned(removed)
	metrics.UpdateStoreRecords(size)
	return removed
}
