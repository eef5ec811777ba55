package local

import (
	"fmt"
	"sync"

	"github.com/veloride/settlement-core/internal/domain/model"
	"github.com/veloride/settlement-core/internal/ledger"
)

// MemBank is an in-memory value store with atomic batch transfers.
type MemBank struct {
	mu       sync.Mutex
	balances map[model.Party]int64
}

func NewMemBank() *MemBank {
	return &MemBank{balances: make(map[model.Party]int64)}
}

// Mint credits a party out of thin air. Dev and test seeding only.
func (b *MemBank) Mint(party model.Party, amount int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[party] += amount
}

// TransferBatch applies all transfers or none. Validation runs against a
// scratch copy so a failure mid-batch cannot leave funds half-moved.
func (b *MemBank) TransferBatch(transfers []ledger.Transfer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	scratch := make(map[model.Party]int64, len(transfers)*2)
	for _, t := range transfers {
		if t.Amount <= 0 {
			return fmt.Errorf("transfer amount must be positive, got %d", t.Amount)
		}
		if t.From == model.ZeroParty || t.To == model.ZeroParty {
			return fmt.Errorf("transfer requires two accounts")
		}
		if _, ok := scratch[t.From]; !ok {
			scratch[t.From] = b.balances[t.From]
		}
		if _, ok := scratch[t.To]; !ok {
			scratch[t.To] = b.balances[t.To]
		}
		if scratch[t.From] < t.Amount {
			return fmt.Errorf("insufficient funds: %s has %d, needs %d", t.From, scratch[t.From], t.Amount)
		}
		scratch[t.From] -= t.Amount
		scratch[t.To] += t.Amount
	}
	for party, balance := range scratch {
		b.balances[party] = balance
	}
	return nil
}

func (b *MemBank) Balance(party model.Party) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[party]
}
