package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/veloride/settlement-core/internal/domain/model"
	"github.com/veloride/settlement-core/internal/ledger"
)

func (c *Client) submit(ctx context.Context, method string, params []interface{}) (ledger.Receipt, error) {
	result, err := c.call(ctx, method, params)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("%s: %w", method, err)
	}

	var dto receiptDTO
	if err := json.Unmarshal(result, &dto); err != nil {
		return ledger.Receipt{}, fmt.Errorf("unmarshal receipt: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, dto.Time)
	if err != nil {
		return ledger.Receipt{}, fmt.Errorf("parse receipt time: %w", err)
	}
	return ledger.Receipt{
		Sequence: dto.Sequence,
		TxHash:   dto.TxHash,
		EscrowID: dto.EscrowID,
		Time:     ts,
	}, nil
}

func (c *Client) CreateEscrow(ctx context.Context, rideID string, driver, passenger model.Party, amount int64) (ledger.Receipt, error) {
	return c.submit(ctx, "escrow_create", []interface{}{rideID, string(driver), string(passenger), amount})
}

func (c *Client) Release(ctx context.Context, escrowID int64, caller model.Party) (ledger.Receipt, error) {
	return c.submit(ctx, "escrow_release", []interface{}{escrowID, string(caller)})
}

func (c *Client) Refund(ctx context.Context, escrowID int64, caller model.Party) (ledger.Receipt, error) {
	return c.submit(ctx, "escrow_refund", []interface{}{escrowID, string(caller)})
}

func (c *Client) SettleSplit(ctx context.Context, escrowID int64, driverFee int64, caller model.Party) (ledger.Receipt, error) {
	return c.submit(ctx, "escrow_settleSplit", []interface{}{escrowID, driverFee, string(caller)})
}

func (c *Client) Dispute(ctx context.Context, escrowID int64, caller model.Party) (ledger.Receipt, error) {
	return c.submit(ctx, "escrow_dispute", []interface{}{escrowID, string(caller)})
}

func (c *Client) ResolveDispute(ctx context.Context, escrowID int64, releaseToDriver bool, caller model.Party) (ledger.Receipt, error) {
	return c.submit(ctx, "escrow_resolveDispute", []interface{}{escrowID, releaseToDriver, string(caller)})
}

func (c *Client) GetEscrow(ctx context.Context, escrowID int64) (*model.EscrowRecord, error) {
	result, err := c.call(ctx, "escrow_getDetails", []interface{}{escrowID})
	if err != nil {
		return nil, fmt.Errorf("escrow_getDetails(%d): %w", escrowID, err)
	}
	return unmarshalEscrow(result)
}

func (c *Client) GetEscrowByRide(ctx context.Context, rideID string) (*model.EscrowRecord, error) {
	result, err := c.call(ctx, "escrow_getByRide", []interface{}{rideID})
	if err != nil {
		return nil, fmt.Errorf("escrow_getByRide(%s): %w", rideID, err)
	}
	return unmarshalEscrow(result)
}

func unmarshalEscrow(result json.RawMessage) (*model.EscrowRecord, error) {
	if string(result) == "null" {
		return nil, ledger.ErrNotFound
	}
	var rec model.EscrowRecord
	if err := json.Unmarshal(result, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal escrow: %w", err)
	}
	return &rec, nil
}

func (c *Client) AddVerifier(ctx context.Context, caller, address model.Party, name string) (ledger.Receipt, error) {
	return c.submit(ctx, "registry_addVerifier", []interface{}{string(caller), string(address), name})
}

func (c *Client) RemoveVerifier(ctx context.Context, caller, address model.Party) (ledger.Receipt, error) {
	return c.submit(ctx, "registry_removeVerifier", []interface{}{string(caller), string(address)})
}

func (c *Client) VerifyDriver(ctx context.Context, verifier, driverAddress model.Party, driverID, documentHash, offLedgerRef string) (ledger.Receipt, error) {
	return c.submit(ctx, "registry_verifyDriver", []interface{}{string(verifier), string(driverAddress), driverID, documentHash, offLedgerRef})
}

func (c *Client) RejectDriver(ctx context.Context, verifier, driverAddress model.Party, driverID, reason string) (ledger.Receipt, error) {
	return c.submit(ctx, "registry_rejectDriver", []interface{}{string(verifier), string(driverAddress), driverID, reason})
}

func (c *Client) SuspendDriver(ctx context.Context, verifier, driverAddress model.Party, reason string) (ledger.Receipt, error) {
	return c.submit(ctx, "registry_suspendDriver", []interface{}{string(verifier), string(driverAddress), reason})
}

func (c *Client) UpdateReputationScore(ctx context.Context, verifier, driverAddress model.Party, newScore int) (ledger.Receipt, error) {
	return c.submit(ctx, "registry_updateReputation", []interface{}{string(verifier), string(driverAddress), newScore})
}

func (c *Client) RenewVerification(ctx context.Context, verifier, driverAddress model.Party) (ledger.Receipt, error) {
	return c.submit(ctx, "registry_renewVerification", []interface{}{string(verifier), string(driverAddress)})
}

func (c *Client) IsDriverVerified(ctx context.Context, driverAddress model.Party) (bool, error) {
	result, err := c.call(ctx, "registry_isDriverVerified", []interface{}{string(driverAddress)})
	if err != nil {
		return false, fmt.Errorf("registry_isDriverVerified(%s): %w", driverAddress, err)
	}
	var verified bool
	if err := json.Unmarshal(result, &verified); err != nil {
		return false, fmt.Errorf("unmarshal verified flag: %w", err)
	}
	return verified, nil
}

func (c *Client) GetVerification(ctx context.Context, driverAddress model.Party) (*model.VerificationRecord, error) {
	result, err := c.call(ctx, "registry_getVerification", []interface{}{string(driverAddress)})
	if err != nil {
		return nil, fmt.Errorf("registry_getVerification(%s): %w", driverAddress, err)
	}
	if string(result) == "null" {
		return nil, ledger.ErrNotFound
	}
	var rec model.VerificationRecord
	if err := json.Unmarshal(result, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal verification: %w", err)
	}
	return &rec, nil
}

func (c *Client) HeadSequence(ctx context.Context) (int64, error) {
	result, err := c.call(ctx, "ledger_headSequence", []interface{}{})
	if err != nil {
		return 0, fmt.Errorf("ledger_headSequence: %w", err)
	}
	var head int64
	if err := json.Unmarshal(result, &head); err != nil {
		return 0, fmt.Errorf("unmarshal head sequence: %w", err)
	}
	return head, nil
}

func (c *Client) EstimateCost(ctx context.Context, transition model.Transition) (ledger.Cost, error) {
	result, err := c.call(ctx, "ledger_estimateCost", []interface{}{string(transition)})
	if err != nil {
		return ledger.Cost{}, fmt.Errorf("ledger_estimateCost(%s): %w", transition, err)
	}
	var units int64
	if err := json.Unmarshal(result, &units); err != nil {
		return ledger.Cost{}, fmt.Errorf("unmarshal cost: %w", err)
	}
	return ledger.Cost{Transition: transition, Units: units}, nil
}

func (c *Client) Events(ctx context.Context, fromSeq, toSeq int64) ([]ledger.Event, error) {
	result, err := c.call(ctx, "ledger_getEvents", []interface{}{fromSeq, toSeq})
	if err != nil {
		return nil, fmt.Errorf("ledger_getEvents(%d, %d): %w", fromSeq, toSeq, err)
	}
	var events []ledger.Event
	if err := json.Unmarshal(result, &events); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}
	return events, nil
}
