package verification

import "github.com/veloride/settlement-core/internal/domain/model"

// MemStore is the in-memory Store used by the in-process node and tests.
// Not safe for concurrent use on its own; the registry serializes access.
type MemStore struct {
	records    map[model.Party]*model.VerificationRecord
	byDriverID map[string]model.Party
	verifiers  map[model.Party]*model.VerifierRecord
}

func NewMemStore() *MemStore {
	return &MemStore{
		records:    make(map[model.Party]*model.VerificationRecord),
		byDriverID: make(map[string]model.Party),
		verifiers:  make(map[model.Party]*model.VerifierRecord),
	}
}

func (s *MemStore) Get(address model.Party) (*model.VerificationRecord, bool) {
	rec, ok := s.records[address]
	return rec, ok
}

func (s *MemStore) Put(rec *model.VerificationRecord) {
	s.records[rec.DriverAddress] = rec
}

func (s *MemStore) AddressByDriverID(driverID string) (model.Party, bool) {
	addr, ok := s.byDriverID[driverID]
	return addr, ok
}

func (s *MemStore) BindDriverID(driverID string, address model.Party) {
	s.byDriverID[driverID] = address
}

func (s *MemStore) GetVerifier(address model.Party) (*model.VerifierRecord, bool) {
	rec, ok := s.verifiers[address]
	return rec, ok
}

func (s *MemStore) PutVerifier(rec *model.VerifierRecord) {
	s.verifiers[rec.Address] = rec
}

func (s *MemStore) Verifiers() []model.VerifierRecord {
	out := make([]model.VerifierRecord, 0, len(s.verifiers))
	for _, rec := range s.verifiers {
		out = append(out, *rec)
	}
	return out
}
