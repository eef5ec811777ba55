package escrow

import "github.com/veloride/settlement-core/internal/domain/model"

// MemStore is the in-memory Store used by the in-process node and tests.
// Escrow IDs are monotonically increasing from 1. Not safe for concurrent
// use on its own; the contract serializes access.
type MemStore struct {
	records map[int64]*model.EscrowRecord
	byRide  map[string]int64
	nextID  int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		records: make(map[int64]*model.EscrowRecord),
		byRide:  make(map[string]int64),
	}
}

func (s *MemStore) Get(escrowID int64) (*model.EscrowRecord, bool) {
	rec, ok := s.records[escrowID]
	return rec, ok
}

func (s *MemStore) Put(rec *model.EscrowRecord) {
	s.records[rec.EscrowID] = rec
}

func (s *MemStore) IDByRide(rideID string) (int64, bool) {
	id, ok := s.byRide[rideID]
	return id, ok
}

func (s *MemStore) BindRide(rideID string, escrowID int64) {
	s.byRide[rideID] = escrowID
}

func (s *MemStore) NextID() int64 {
	s.nextID++
	return s.nextID
}
