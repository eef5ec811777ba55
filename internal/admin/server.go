// Package admin exposes the operational HTTP API: mirror inspection, job
// management, verifier governance, and driver lifecycle actions that do
// not arrive as ride events.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/veloride/settlement-core/internal/domain/model"
	"github.com/veloride/settlement-core/internal/gateway"
	"github.com/veloride/settlement-core/internal/ledger"
	"github.com/veloride/settlement-core/internal/reconcile"
	"github.com/veloride/settlement-core/internal/store"
)

const maxRequestBodyBytes = 1 << 20 // 1 MB

var allowedEscrowStatuses = map[model.EscrowStatus]bool{
	model.EscrowActive:   true,
	model.EscrowReleased: true,
	model.EscrowRefunded: true,
	model.EscrowDisputed: true,
}

var allowedVerificationStatuses = map[model.VerificationStatus]bool{
	model.VerificationPending:   true,
	model.VerificationVerified:  true,
	model.VerificationRejected:  true,
	model.VerificationSuspended: true,
}

var allowedJobStates = map[model.JobState]bool{
	model.JobPending:   true,
	model.JobSubmitted: true,
	model.JobConfirmed: true,
	model.JobFailed:    true,
	model.JobCancelled: true,
}

// JobManager is the slice of the coordinator the admin API needs.
type JobManager interface {
	CancelJob(ctx context.Context, id uuid.UUID) (bool, error)
	RetryJob(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	PurgeConfirmed(ctx context.Context, retention time.Duration) (int64, error)
}

// Server provides the HTTP admin API.
type Server struct {
	escrows       store.EscrowRepository
	verifications store.VerificationRepository
	jobs          store.JobRepository
	outbox        store.OutboxRepository
	jobMgr        JobManager
	gw            *gateway.Gateway
	operator      model.Party
	logger        *slog.Logger
}

func NewServer(
	escrows store.EscrowRepository,
	verifications store.VerificationRepository,
	jobs store.JobRepository,
	outbox store.OutboxRepository,
	jobMgr JobManager,
	gw *gateway.Gateway,
	operator model.Party,
	logger *slog.Logger,
) *Server {
	return &Server{
		escrows:       escrows,
		verifications: verifications,
		jobs:          jobs,
		outbox:        outbox,
		jobMgr:        jobMgr,
		gw:            gw,
		operator:      operator,
		logger:        logger.With("component", "admin"),
	}
}

// Handler returns the HTTP handler for the admin API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /admin/v1/escrows", s.handleListEscrows)
	mux.HandleFunc("GET /admin/v1/escrows/{ride_id}", s.handleGetEscrow)
	mux.HandleFunc("GET /admin/v1/verifications", s.handleListVerifications)
	mux.HandleFunc("GET /admin/v1/verifications/{driver_id}", s.handleGetVerification)
	mux.HandleFunc("GET /admin/v1/jobs", s.handleListJobs)
	mux.HandleFunc("GET /admin/v1/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("POST /admin/v1/jobs/{id}/cancel", s.handleCancelJob)
	mux.HandleFunc("POST /admin/v1/jobs/{id}/retry", s.handleRetryJob)
	mux.HandleFunc("POST /admin/v1/jobs/purge", s.handlePurgeJobs)
	mux.HandleFunc("POST /admin/v1/verifiers", s.handleAddVerifier)
	mux.HandleFunc("DELETE /admin/v1/verifiers/{address}", s.handleRemoveVerifier)
	mux.HandleFunc("POST /admin/v1/drivers/{driver_id}/suspend", s.handleSuspendDriver)
	mux.HandleFunc("POST /admin/v1/drivers/{driver_id}/renew", s.handleRenewVerification)
	mux.HandleFunc("POST /admin/v1/drivers/{driver_id}/score", s.handleUpdateScore)
	mux.HandleFunc("GET /admin/v1/outbox", s.handleOutboxStatus)
	mux.HandleFunc("GET /admin/v1/cost", s.handleEstimateCost)
	mux.HandleFunc("GET /admin/v1/health", s.handleHealth)
	return mux
}

// writeJSON writes v as JSON with the given HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSONBody reads and decodes a JSON request body into v.
// Returns false (and writes an error response) if decoding fails.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, `{"error":"invalid JSON body"}`, http.StatusBadRequest)
		return false
	}
	return true
}

func limitOffset(r *http.Request) (int, int) {
	limit := 50
	offset := 0
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v >= 0 {
		offset = v
	}
	return limit, offset
}

func (s *Server) handleListEscrows(w http.ResponseWriter, r *http.Request) {
	status := model.EscrowStatus(r.URL.Query().Get("status"))
	if status != "" && !allowedEscrowStatuses[status] {
		http.Error(w, `{"error":"invalid status value"}`, http.StatusBadRequest)
		return
	}
	limit, offset := limitOffset(r)

	escrows, err := s.escrows.List(r.Context(), status, limit, offset)
	if err != nil {
		s.logger.Error("list escrows failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, escrowsResponse(escrows))
}

func (s *Server) handleGetEscrow(w http.ResponseWriter, r *http.Request) {
	rideID := r.PathValue("ride_id")
	rec, err := s.escrows.GetByRideID(r.Context(), rideID)
	if err != nil {
		s.logger.Error("get escrow failed", "ride_id", rideID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, `{"error":"escrow not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, escrowResponseFrom(rec))
}

func (s *Server) handleListVerifications(w http.ResponseWriter, r *http.Request) {
	status := model.VerificationStatus(r.URL.Query().Get("status"))
	if status != "" && !allowedVerificationStatuses[status] {
		http.Error(w, `{"error":"invalid status value"}`, http.StatusBadRequest)
		return
	}
	limit, offset := limitOffset(r)

	recs, err := s.verifications.List(r.Context(), status, limit, offset)
	if err != nil {
		s.logger.Error("list verifications failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, verificationsResponse(recs))
}

func (s *Server) handleGetVerification(w http.ResponseWriter, r *http.Request) {
	driverID := r.PathValue("driver_id")
	rec, err := s.verifications.GetByDriverID(r.Context(), driverID)
	if err != nil {
		s.logger.Error("get verification failed", "driver_id", driverID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, `{"error":"verification not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, verificationResponseFrom(rec))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	state := model.JobState(r.URL.Query().Get("state"))
	if state == "" {
		state = model.JobFailed
	}
	if !allowedJobStates[state] {
		http.Error(w, `{"error":"invalid state value"}`, http.StatusBadRequest)
		return
	}
	limit, _ := limitOffset(r)

	jobs, err := s.jobs.ListByState(r.Context(), state, limit)
	if err != nil {
		s.logger.Error("list jobs failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, jobsResponse(jobs))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid job id"}`, http.StatusBadRequest)
		return
	}
	job, err := s.jobs.GetByID(r.Context(), id)
	if err != nil {
		s.logger.Error("get job failed", "job_id", id, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if job == nil {
		http.Error(w, `{"error":"job not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, jobResponseFrom(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid job id"}`, http.StatusBadRequest)
		return
	}
	cancelled, err := s.jobMgr.CancelJob(r.Context(), id)
	if err != nil {
		s.logger.Error("cancel job failed", "job_id", id, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if !cancelled {
		http.Error(w, `{"error":"job already left pending"}`, http.StatusConflict)
		return
	}
	s.logger.Info("job cancelled via admin API", "job_id", id)
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}

func (s *Server) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid job id"}`, http.StatusBadRequest)
		return
	}
	newID, err := s.jobMgr.RetryJob(r.Context(), id)
	if err != nil {
		if errors.Is(err, reconcile.ErrKeyBusy) {
			http.Error(w, `{"error":"key has an in-flight job"}`, http.StatusConflict)
			return
		}
		s.logger.Warn("retry job refused", "job_id", id, "error", err)
		http.Error(w, fmt.Sprintf(`{"error":%q}`, err.Error()), http.StatusBadRequest)
		return
	}
	s.logger.Info("job retried via admin API", "job_id", id, "new_job_id", newID)
	writeJSON(w, http.StatusCreated, map[string]string{"job_id": newID.String()})
}

type purgeJobsRequest struct {
	OlderThanHours int `json:"older_than_hours"`
}

func (s *Server) handlePurgeJobs(w http.ResponseWriter, r *http.Request) {
	var req purgeJobsRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.OlderThanHours < 24 {
		http.Error(w, `{"error":"older_than_hours must be at least 24"}`, http.StatusBadRequest)
		return
	}
	n, err := s.jobMgr.PurgeConfirmed(r.Context(), time.Duration(req.OlderThanHours)*time.Hour)
	if err != nil {
		s.logger.Error("purge jobs failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"purged": n})
}

type addVerifierRequest struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

func (s *Server) handleAddVerifier(w http.ResponseWriter, r *http.Request) {
	var req addVerifierRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Address == "" {
		http.Error(w, `{"error":"address is required"}`, http.StatusBadRequest)
		return
	}
	out := s.gw.Submit(r.Context(), model.Transition("add_verifier"), func(ctx context.Context, client ledger.Client) (ledger.Receipt, error) {
		return client.AddVerifier(ctx, s.operator, model.Party(req.Address), req.Name)
	})
	s.respondOutcome(w, out, "add verifier", "address", req.Address)
}

func (s *Server) handleRemoveVerifier(w http.ResponseWriter, r *http.Request) {
	address := r.PathValue("address")
	out := s.gw.Submit(r.Context(), model.Transition("remove_verifier"), func(ctx context.Context, client ledger.Client) (ledger.Receipt, error) {
		return client.RemoveVerifier(ctx, s.operator, model.Party(address))
	})
	s.respondOutcome(w, out, "remove verifier", "address", address)
}

type suspendDriverRequest struct {
	Verifier string `json:"verifier"`
	Reason   string `json:"reason"`
}

func (s *Server) handleSuspendDriver(w http.ResponseWriter, r *http.Request) {
	driverID := r.PathValue("driver_id")
	var req suspendDriverRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Verifier == "" || req.Reason == "" {
		http.Error(w, `{"error":"verifier and reason are required"}`, http.StatusBadRequest)
		return
	}
	addr, ok := s.resolveDriverAddress(w, r, driverID)
	if !ok {
		return
	}
	out := s.gw.Submit(r.Context(), model.Transition("suspend_driver"), func(ctx context.Context, client ledger.Client) (ledger.Receipt, error) {
		return client.SuspendDriver(ctx, model.Party(req.Verifier), addr, req.Reason)
	})
	s.respondOutcome(w, out, "suspend driver", "driver_id", driverID)
}

type renewVerificationRequest struct {
	Verifier string `json:"verifier"`
}

func (s *Server) handleRenewVerification(w http.ResponseWriter, r *http.Request) {
	driverID := r.PathValue("driver_id")
	var req renewVerificationRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Verifier == "" {
		http.Error(w, `{"error":"verifier is required"}`, http.StatusBadRequest)
		return
	}
	addr, ok := s.resolveDriverAddress(w, r, driverID)
	if !ok {
		return
	}
	out := s.gw.Submit(r.Context(), model.Transition("renew_verification"), func(ctx context.Context, client ledger.Client) (ledger.Receipt, error) {
		return client.RenewVerification(ctx, model.Party(req.Verifier), addr)
	})
	s.respondOutcome(w, out, "renew verification", "driver_id", driverID)
}

type updateScoreRequest struct {
	Verifier string `json:"verifier"`
	Score    int    `json:"score"`
}

func (s *Server) handleUpdateScore(w http.ResponseWriter, r *http.Request) {
	driverID := r.PathValue("driver_id")
	var req updateScoreRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Verifier == "" {
		http.Error(w, `{"error":"verifier is required"}`, http.StatusBadRequest)
		return
	}
	if req.Score < 0 || req.Score > model.MaxReputationScore {
		http.Error(w, `{"error":"score out of range"}`, http.StatusBadRequest)
		return
	}
	addr, ok := s.resolveDriverAddress(w, r, driverID)
	if !ok {
		return
	}
	out := s.gw.Submit(r.Context(), model.Transition("update_score"), func(ctx context.Context, client ledger.Client) (ledger.Receipt, error) {
		return client.UpdateReputationScore(ctx, model.Party(req.Verifier), addr, req.Score)
	})
	s.respondOutcome(w, out, "update reputation score", "driver_id", driverID)
}

// resolveDriverAddress maps a driver id to its ledger address through the
// mirror. Returns false after writing the error response.
func (s *Server) resolveDriverAddress(w http.ResponseWriter, r *http.Request, driverID string) (model.Party, bool) {
	rec, err := s.verifications.GetByDriverID(r.Context(), driverID)
	if err != nil {
		s.logger.Error("resolve driver failed", "driver_id", driverID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return "", false
	}
	if rec == nil {
		http.Error(w, `{"error":"driver not found"}`, http.StatusNotFound)
		return "", false
	}
	return rec.DriverAddress, true
}

// respondOutcome maps a gateway outcome to an HTTP response. Admin
// submissions are synchronous: there is no durable job behind them, so an
// indeterminate outcome is surfaced to the operator to check and retry.
func (s *Server) respondOutcome(w http.ResponseWriter, out gateway.Outcome, action string, keyName, key string) {
	switch out.Status {
	case gateway.OutcomeConfirmed:
		s.logger.Info(action+" confirmed via admin API", keyName, key, "sequence", out.Receipt.Sequence)
		writeJSON(w, http.StatusOK, map[string]any{
			"confirmed": true,
			"sequence":  out.Receipt.Sequence,
			"tx_hash":   out.Receipt.TxHash,
		})
	case gateway.OutcomeRejected:
		s.logger.Warn(action+" rejected", keyName, key, "reason", out.Reason)
		http.Error(w, fmt.Sprintf(`{"error":%q}`, out.Reason.Error()), http.StatusUnprocessableEntity)
	default:
		s.logger.Error(action+" outcome indeterminate", keyName, key, "error", out.Err)
		http.Error(w, `{"error":"ledger outcome unknown, verify before retrying"}`, http.StatusBadGateway)
	}
}

func (s *Server) handleOutboxStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := s.outbox.CountUnpublished(r.Context())
	if err != nil {
		s.logger.Error("outbox status failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending": pending})
}

func (s *Server) handleEstimateCost(w http.ResponseWriter, r *http.Request) {
	transition := model.Transition(r.URL.Query().Get("transition"))
	if transition == "" {
		http.Error(w, `{"error":"transition query param required"}`, http.StatusBadRequest)
		return
	}
	cost, err := s.gw.EstimateCost(r.Context(), transition)
	if err != nil {
		s.logger.Error("estimate cost failed", "transition", transition, "error", err)
		http.Error(w, `{"error":"cost estimation failed"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"transition": cost.Transition,
		"units":      cost.Units,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
