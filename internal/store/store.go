// Package store keeps the latest decoded message per COB-ID with
// secondary indexes by node id and message type. It answers "current
// network state" queries; the pipeline's queue serves every-frame
// consumers.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/danmuck/canprobe/internal/canopen"
)

// Record is one decoded CAN message. Records are values; the store
// copies nothing on read, so callers must not mutate Data.
type Record struct {
	Time   time.Time
	CobID  uint16
	NodeID uint8
	Type   canopen.MessageType
	Data   []byte
	Seq    uint64
}

// NewRecord derives node id and message type from the COB-ID.
func NewRecord(ts time.Time, cobID uint16, data []byte, seq uint64) Record {
	return Record{
		Time:   ts,
		CobID:  cobID,
		NodeID: canopen.NodeID(cobID),
		Type:   canopen.Classify(cobID),
		Data:   data,
		Seq:    seq,
	}
}

// Stale reports whether the record is older than maxAge at now. The
// store never evicts on staleness; the last known value stays
// meaningful, so this is a query-time predicate only.
func (r Record) Stale(maxAge time.Duration, now time.Time) bool {
	return now.Sub(r.Time) > maxAge
}

// Store is a concurrent latest-value table keyed by COB-ID. A single
// read-write lock guards the primary map and both indexes, so readers
// never observe a primary entry without its index entries or the
// reverse.
type Store struct {
	mu     sync.RWMutex
	byCob  map[uint16]Record
	byNode map[uint8]map[uint16]struct{}
	byType map[canopen.MessageType]map[uint16]struct{}
}

func New() *Store {
	return &Store{
		byCob:  make(map[uint16]Record),
		byNode: make(map[uint8]map[uint16]struct{}),
		byType: make(map[canopen.MessageType]map[uint16]struct{}),
	}
}

// Upsert replaces any record for the same COB-ID and updates both
// indexes in the same critical section. Old index entries are removed
// before the new ones are inserted in case the derived category or node
// changed for the id.
func (s *Store) Upsert(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byCob[r.CobID]; ok {
		s.unindex(old)
	}
	s.byCob[r.CobID] = r
	s.index(r)
}

func (s *Store) index(r Record) {
	nodes, ok := s.byNode[r.NodeID]
	if !ok {
		nodes = make(map[uint16]struct{})
		s.byNode[r.NodeID] = nodes
	}
	nodes[r.CobID] = struct{}{}

	types, ok := s.byType[r.Type]
	if !ok {
		types = make(map[uint16]struct{})
		s.byType[r.Type] = types
	}
	types[r.CobID] = struct{}{}
}

func (s *Store) unindex(r Record) {
	if nodes, ok := s.byNode[r.NodeID]; ok {
		delete(nodes, r.CobID)
		if len(nodes) == 0 {
			delete(s.byNode, r.NodeID)
		}
	}
	if types, ok := s.byType[r.Type]; ok {
		delete(types, r.CobID)
		if len(types) == 0 {
			delete(s.byType, r.Type)
		}
	}
}

// Get returns the latest record for a COB-ID.
func (s *Store) Get(cobID uint16) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.byCob[cobID]
	return r, ok
}

// ByNode returns the latest records for every COB-ID attributed to the
// node, ordered by COB-ID.
func (s *Store) ByNode(nodeID uint8) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byNode[nodeID])
}

// ByType returns the latest records of one message type, ordered by
// COB-ID.
func (s *Store) ByType(t canopen.MessageType) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byType[t])
}

func (s *Store) collect(ids map[uint16]struct{}) []Record {
	if len(ids) == 0 {
		return nil
	}
	out := make([]Record, 0, len(ids))
	for id := range ids {
		out = append(out, s.byCob[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CobID < out[j].CobID })
	return out
}

// All returns every stored record ordered by COB-ID.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.byCob))
	for _, r := range s.byCob {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CobID < out[j].CobID })
	return out
}

// Len reports the number of distinct COB-IDs held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byCob)
}

// Clear purges the primary map and both indexes. This is the only purge
// path; staleness never evicts.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byCob = make(map[uint16]Record)
	s.byNode = make(map[uint8]map[uint16]struct{})
	s.byType = make(map[canopen.MessageType]map[uint16]struct{})
}
