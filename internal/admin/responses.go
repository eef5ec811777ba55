package admin

import (
	"encoding/json"
	"time"

	"github.com/veloride/settlement-core/internal/domain/model"
)

type escrowResponse struct {
	EscrowID       int64  `json:"escrow_id"`
	RideID         string `json:"ride_id"`
	DriverParty    string `json:"driver_party"`
	PassengerParty string `json:"passenger_party"`
	Amount         int64  `json:"amount"`
	Status         string `json:"status"`
	DriverShare    int64  `json:"driver_share"`
	PlatformFee    int64  `json:"platform_fee"`
	PassengerShare int64  `json:"passenger_share"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

func escrowResponseFrom(rec *model.EscrowRecord) escrowResponse {
	return escrowResponse{
		EscrowID:       rec.EscrowID,
		RideID:         rec.RideID,
		DriverParty:    string(rec.DriverParty),
		PassengerParty: string(rec.PassengerParty),
		Amount:         rec.Amount,
		Status:         string(rec.Status),
		DriverShare:    rec.DriverShare,
		PlatformFee:    rec.PlatformFee,
		PassengerShare: rec.PassengerShare,
		CreatedAt:      rec.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      rec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func escrowsResponse(recs []model.EscrowRecord) []escrowResponse {
	out := make([]escrowResponse, len(recs))
	for i := range recs {
		out[i] = escrowResponseFrom(&recs[i])
	}
	return out
}

type verificationResponse struct {
	DriverAddress   string `json:"driver_address"`
	DriverID        string `json:"driver_id"`
	DocumentHash    string `json:"document_hash"`
	Status          string `json:"status"`
	VerifiedAt      string `json:"verified_at,omitempty"`
	ExpiresAt       string `json:"expires_at,omitempty"`
	Verifier        string `json:"verifier,omitempty"`
	ReputationScore int    `json:"reputation_score"`
	VerifiedNow     bool   `json:"verified_now"`
}

func verificationResponseFrom(rec *model.VerificationRecord) verificationResponse {
	resp := verificationResponse{
		DriverAddress:   string(rec.DriverAddress),
		DriverID:        rec.DriverID,
		DocumentHash:    rec.DocumentHash,
		Status:          string(rec.Status),
		Verifier:        string(rec.Verifier),
		ReputationScore: rec.ReputationScore,
		VerifiedNow:     rec.VerifiedNow(time.Now()),
	}
	if !rec.VerifiedAt.IsZero() {
		resp.VerifiedAt = rec.VerifiedAt.UTC().Format(time.RFC3339)
	}
	if !rec.ExpiresAt.IsZero() {
		resp.ExpiresAt = rec.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func verificationsResponse(recs []model.VerificationRecord) []verificationResponse {
	out := make([]verificationResponse, len(recs))
	for i := range recs {
		out[i] = verificationResponseFrom(&recs[i])
	}
	return out
}

type jobResponse struct {
	ID             string          `json:"id"`
	IdempotencyKey string          `json:"idempotency_key"`
	Transition     string          `json:"transition"`
	Payload        json.RawMessage `json:"payload"`
	State          string          `json:"state"`
	AttemptCount   int             `json:"attempt_count"`
	LastError      string          `json:"last_error,omitempty"`
	EscrowID       *int64          `json:"escrow_id,omitempty"`
	CreatedAt      string          `json:"created_at"`
	ConfirmedAt    string          `json:"confirmed_at,omitempty"`
}

func jobResponseFrom(job *model.ReconciliationJob) jobResponse {
	resp := jobResponse{
		ID:             job.ID.String(),
		IdempotencyKey: job.IdempotencyKey,
		Transition:     string(job.Transition),
		Payload:        job.Payload,
		State:          string(job.State),
		AttemptCount:   job.AttemptCount,
		LastError:      job.LastError,
		EscrowID:       job.EscrowID,
		CreatedAt:      job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if job.ConfirmedAt != nil {
		resp.ConfirmedAt = job.ConfirmedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func jobsResponse(jobs []model.ReconciliationJob) []jobResponse {
	out := make([]jobResponse, len(jobs))
	for i := range jobs {
		out[i] = jobResponseFrom(&jobs[i])
	}
	return out
}
