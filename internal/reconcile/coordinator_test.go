package reconcile

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/veloride/settlement-core/internal/domain/event"
	"github.com/veloride/settlement-core/internal/domain/model"
	"github.com/veloride/settlement-core/internal/gateway"
	"github.com/veloride/settlement-core/internal/ledger"
	"github.com/veloride/settlement-core/internal/ledger/mocks"
	"github.com/veloride/settlement-core/internal/privacy"
)

const operator = model.Party("acct-operator")

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCodec(t *testing.T) *privacy.Codec {
	t.Helper()
	c, err := privacy.NewCodec(bytes.Repeat([]byte{0x42}, 32), []byte("salt"))
	require.NoError(t, err)
	return c
}

type harness struct {
	coord         *Coordinator
	jobs          *fakeJobs
	escrows       *fakeEscrows
	verifications *fakeVerifications
	outbox        *fakeOutbox
	client        *mocks.MockClient
	alerter       *recordingAlerter
	codec         *privacy.Codec
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	gw := gateway.New(client, gateway.Config{}, testLogger())

	cfg.Operator = operator
	jobs := &fakeJobs{}
	escrows := &fakeEscrows{}
	verifications := &fakeVerifications{}
	outbox := &fakeOutbox{}
	alerter := &recordingAlerter{}
	codec := testCodec(t)
	coord := New(cfg, stubDB(t), escrows, verifications, jobs, outbox, gw, codec, alerter, testLogger())
	return &harness{
		coord:         coord,
		jobs:          jobs,
		escrows:       escrows,
		verifications: verifications,
		outbox:        outbox,
		client:        client,
		alerter:       alerter,
		codec:         codec,
	}
}

func TestOnRideAccepted_CreatesPendingJob(t *testing.T) {
	h := newHarness(t, Config{})

	id, err := h.coord.OnRideAccepted(context.Background(), event.RideAccepted{
		RideID:         "ride-1",
		DriverParty:    "acct-d",
		PassengerParty: "acct-p",
		Amount:         1000,
	})
	require.NoError(t, err)

	job := h.jobs.byID(id)
	require.NotNil(t, job)
	assert.Equal(t, model.JobPending, job.State)
	assert.Equal(t, "ride-1", job.IdempotencyKey)
	assert.Equal(t, model.TransitionCreateEscrow, job.Transition)

	var ev event.RideAccepted
	require.NoError(t, json.Unmarshal(job.Payload, &ev))
	assert.Equal(t, int64(1000), ev.Amount)
}

func TestOnRideAccepted_Validation(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	_, err := h.coord.OnRideAccepted(ctx, event.RideAccepted{DriverParty: "d", PassengerParty: "p", Amount: 10})
	assert.Error(t, err, "missing ride id")

	_, err = h.coord.OnRideAccepted(ctx, event.RideAccepted{RideID: "r", DriverParty: "d", PassengerParty: "p", Amount: 0})
	assert.Error(t, err, "non-positive amount")

	_, err = h.coord.OnRideAccepted(ctx, event.RideAccepted{RideID: "r", DriverParty: "d", PassengerParty: "d", Amount: 10})
	assert.Error(t, err, "equal parties")

	_, err = h.coord.OnRideAccepted(ctx, event.RideAccepted{RideID: "r", PassengerParty: "p", Amount: 10})
	assert.Error(t, err, "zero driver")

	assert.Equal(t, 0, h.jobs.count(), "invalid events must not persist jobs")
}

func TestOnRideAccepted_DuplicateSuppressed(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	ev := event.RideAccepted{RideID: "ride-1", DriverParty: "d", PassengerParty: "p", Amount: 1000}

	first, err := h.coord.OnRideAccepted(ctx, ev)
	require.NoError(t, err)

	// Same event again while the job is in flight: same job, no new row.
	second, err := h.coord.OnRideAccepted(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, h.jobs.count())
}

func TestOnRideAccepted_DuplicateSuppressedAfterConfirm(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	ev := event.RideAccepted{RideID: "ride-1", DriverParty: "d", PassengerParty: "p", Amount: 1000}

	first, err := h.coord.OnRideAccepted(ctx, ev)
	require.NoError(t, err)
	require.NoError(t, h.jobs.MarkConfirmedTx(ctx, nil, first, nil))

	second, err := h.coord.OnRideAccepted(ctx, ev)
	require.NoError(t, err)
	assert.Equal(t, first, second, "redelivery after confirmation returns the settled job")
	assert.Equal(t, 1, h.jobs.count())
}

func TestCreateJob_KeyBusyOnDifferentTransition(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	_, err := h.coord.OnRideAccepted(ctx, event.RideAccepted{RideID: "ride-1", DriverParty: "d", PassengerParty: "p", Amount: 1000})
	require.NoError(t, err)

	// Different transition for the same ride while creation is in flight.
	_, err = h.coord.OnRideCompleted(ctx, event.RideCompleted{RideID: "ride-1"})
	assert.ErrorIs(t, err, ErrKeyBusy)
}

func TestCreateJob_KeyFreeAfterFailure(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	id, err := h.coord.OnRideAccepted(ctx, event.RideAccepted{RideID: "ride-1", DriverParty: "d", PassengerParty: "p", Amount: 1000})
	require.NoError(t, err)
	require.NoError(t, h.jobs.MarkFailed(ctx, id, "ledger revert"))

	_, err = h.coord.OnRideCompleted(ctx, event.RideCompleted{RideID: "ride-1"})
	assert.NoError(t, err, "a failed job releases its key")
}

func TestOnRideCancelled_FeeSelectsTransition(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	id, err := h.coord.OnRideCancelled(ctx, event.RideCancelled{RideID: "ride-1", DriverFee: 0})
	require.NoError(t, err)
	assert.Equal(t, model.TransitionRefund, h.jobs.byID(id).Transition)

	id, err = h.coord.OnRideCancelled(ctx, event.RideCancelled{RideID: "ride-2", DriverFee: 250})
	require.NoError(t, err)
	assert.Equal(t, model.TransitionCancelSplit, h.jobs.byID(id).Transition)

	_, err = h.coord.OnRideCancelled(ctx, event.RideCancelled{RideID: "ride-3", DriverFee: -1})
	assert.Error(t, err)
}

func TestOnDisputeRaised_RequiresRaisedBy(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.coord.OnDisputeRaised(context.Background(), event.DisputeRaised{RideID: "ride-1"})
	assert.Error(t, err)

	id, err := h.coord.OnDisputeRaised(context.Background(), event.DisputeRaised{RideID: "ride-1", RaisedBy: "acct-p"})
	require.NoError(t, err)
	assert.Equal(t, model.TransitionDispute, h.jobs.byID(id).Transition)
}

func TestOnDriverDocumentsSubmitted_ApproveSealsBlob(t *testing.T) {
	h := newHarness(t, Config{})
	blob := []byte(`{"license_no":"D-1234567"}`)

	id, err := h.coord.OnDriverDocumentsSubmitted(context.Background(), event.DriverDocumentsSubmitted{
		DriverID:      "drv-1",
		DriverAddress: "acct-drv-1",
		DocumentBlob:  blob,
		Approve:       true,
		Verifier:      "acct-verifier",
	})
	require.NoError(t, err)

	job := h.jobs.byID(id)
	require.NotNil(t, job)
	assert.Equal(t, model.TransitionVerifyDriver, job.Transition)
	assert.Equal(t, "drv-1", job.IdempotencyKey)

	var p verificationPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Equal(t, privacy.HashDocument(blob), p.DocumentHash)

	// The durable payload must not contain the raw document, only the
	// sealed reference, which decrypts back to the original blob.
	assert.NotContains(t, string(job.Payload), "D-1234567")
	sealed, err := hex.DecodeString(p.OffLedgerRef)
	require.NoError(t, err)
	opened, err := h.codec.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, blob, opened)
}

func TestOnDriverDocumentsSubmitted_Reject(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.coord.OnDriverDocumentsSubmitted(context.Background(), event.DriverDocumentsSubmitted{
		DriverID:      "drv-1",
		DriverAddress: "acct-drv-1",
		Approve:       false,
		Verifier:      "acct-verifier",
	})
	assert.Error(t, err, "rejection requires a reason")

	id, err := h.coord.OnDriverDocumentsSubmitted(context.Background(), event.DriverDocumentsSubmitted{
		DriverID:      "drv-1",
		DriverAddress: "acct-drv-1",
		Approve:       false,
		Reason:        "document expired",
		Verifier:      "acct-verifier",
	})
	require.NoError(t, err)

	job := h.jobs.byID(id)
	assert.Equal(t, model.TransitionRejectDriver, job.Transition)

	var p verificationPayload
	require.NoError(t, json.Unmarshal(job.Payload, &p))
	assert.Empty(t, p.DocumentHash, "rejections carry no document")
	assert.Empty(t, p.OffLedgerRef)
	assert.Equal(t, "document expired", p.Reason)
}

func TestCancelJob(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	id, err := h.coord.OnRideAccepted(ctx, event.RideAccepted{RideID: "ride-1", DriverParty: "d", PassengerParty: "p", Amount: 1000})
	require.NoError(t, err)

	ok, err := h.coord.CancelJob(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.JobCancelled, h.jobs.byID(id).State)

	// Already cancelled: not pending any more.
	ok, err = h.coord.CancelJob(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCancelJob_RefusedOnceSubmitted(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	id, err := h.coord.OnRideAccepted(ctx, event.RideAccepted{RideID: "ride-1", DriverParty: "d", PassengerParty: "p", Amount: 1000})
	require.NoError(t, err)
	claimed, err := h.jobs.ClaimPending(ctx, id)
	require.NoError(t, err)
	require.True(t, claimed)

	ok, err := h.coord.CancelJob(ctx, id)
	require.NoError(t, err)
	assert.False(t, ok, "submitted jobs may already have a ledger effect")
	assert.Equal(t, model.JobSubmitted, h.jobs.byID(id).State)
}

func TestRetryJob_OnlyFromFailed(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	id, err := h.coord.OnRideAccepted(ctx, event.RideAccepted{RideID: "ride-1", DriverParty: "d", PassengerParty: "p", Amount: 1000})
	require.NoError(t, err)

	_, err = h.coord.RetryJob(ctx, id)
	assert.Error(t, err, "pending jobs cannot be retried")

	require.NoError(t, h.jobs.MarkFailed(ctx, id, "ledger revert"))
	cloneID, err := h.coord.RetryJob(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, id, cloneID)

	clone := h.jobs.byID(cloneID)
	require.NotNil(t, clone)
	assert.Equal(t, model.JobPending, clone.State)
	assert.Equal(t, "ride-1", clone.IdempotencyKey)
	assert.Equal(t, model.TransitionCreateEscrow, clone.Transition)
	assert.Equal(t, 0, clone.AttemptCount)
}

func TestProcessJob_DeterministicRevertFailsJob(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	id, err := h.coord.OnDriverDocumentsSubmitted(ctx, event.DriverDocumentsSubmitted{
		DriverID:      "drv-1",
		DriverAddress: "acct-drv-2",
		DocumentBlob:  []byte("doc"),
		Approve:       true,
		Verifier:      "acct-verifier",
	})
	require.NoError(t, err)

	// The address is already bound to another driver id on the ledger.
	h.client.EXPECT().
		VerifyDriver(gomock.Any(), model.Party("acct-verifier"), model.Party("acct-drv-2"), "drv-1", gomock.Any(), gomock.Any()).
		Return(ledger.Receipt{}, ledger.ErrDriverIDTaken)

	require.NoError(t, h.coord.processJob(ctx, id))

	job := h.jobs.byID(id)
	assert.Equal(t, model.JobFailed, job.State)
	assert.Contains(t, job.LastError, "driver id")
}

func TestProcessJob_IndeterminateNotLandedRequeues(t *testing.T) {
	h := newHarness(t, Config{MaxAttempts: 8, BaseBackoff: time.Minute})
	ctx := context.Background()

	id, err := h.coord.OnDriverDocumentsSubmitted(ctx, event.DriverDocumentsSubmitted{
		DriverID:      "drv-1",
		DriverAddress: "acct-drv-1",
		DocumentBlob:  []byte("doc"),
		Approve:       true,
		Verifier:      "acct-verifier",
	})
	require.NoError(t, err)

	// Transport failure on submit, then the reconcile read shows no record:
	// the transition never landed and the job goes back to pending.
	h.client.EXPECT().
		VerifyDriver(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(ledger.Receipt{}, errors.New("connection refused"))
	h.client.EXPECT().
		GetVerification(gomock.Any(), model.Party("acct-drv-1")).
		Return(nil, ledger.ErrNotFound)

	require.NoError(t, h.coord.processJob(ctx, id))

	job := h.jobs.byID(id)
	assert.Equal(t, model.JobPending, job.State, "not-landed jobs requeue for another attempt")
	assert.Equal(t, 1, job.AttemptCount)
	assert.Contains(t, job.LastError, "connection refused")
}

func TestProcessJob_MirrorWriteFailureDoesNotResubmit(t *testing.T) {
	h := newHarness(t, Config{MaxAttempts: 8, BaseBackoff: time.Minute})
	ctx := context.Background()

	id, err := h.coord.OnDriverDocumentsSubmitted(ctx, event.DriverDocumentsSubmitted{
		DriverID:      "drv-1",
		DriverAddress: "acct-drv-1",
		DocumentBlob:  []byte("doc"),
		Approve:       true,
		Verifier:      "acct-verifier",
	})
	require.NoError(t, err)

	verified := &model.VerificationRecord{
		DriverAddress: "acct-drv-1",
		DriverID:      "drv-1",
		Status:        model.VerificationVerified,
		Verifier:      "acct-verifier",
	}
	// The ledger accepts the submission exactly once; a second VerifyDriver
	// call on any pass would fail the controller.
	h.client.EXPECT().
		VerifyDriver(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(ledger.Receipt{Sequence: 9}, nil).
		Times(1)
	// The confirm-side read fails on the first pass, then shows the landed
	// record on the next.
	h.client.EXPECT().
		GetVerification(gomock.Any(), model.Party("acct-drv-1")).
		Return(nil, errors.New("connection refused"))
	h.client.EXPECT().
		GetVerification(gomock.Any(), model.Party("acct-drv-1")).
		Return(verified, nil).
		Times(2)

	require.NoError(t, h.coord.processJob(ctx, id))

	// The ledger effect is applied, so the job must not go back to pending.
	job := h.jobs.byID(id)
	assert.Equal(t, model.JobSubmitted, job.State, "an applied transition is only reconciled by read")
	assert.Equal(t, 1, job.AttemptCount)
	assert.Contains(t, job.LastError, "mirror confirmed transition")

	require.NoError(t, h.coord.processJob(ctx, id))

	assert.Equal(t, model.JobConfirmed, h.jobs.byID(id).State)
	stored := h.verifications.byAddress("acct-drv-1")
	require.NotNil(t, stored)
	assert.Equal(t, model.VerificationVerified, stored.Status)
}

func TestProcessJob_RecoveredSubmittedConfirmsByRead(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	// A job interrupted between submit and confirm, as left behind by a
	// crash. No submission is expected: recovery resolves it purely off
	// ledger reads.
	payload, err := json.Marshal(verificationPayload{
		DriverID:      "drv-1",
		DriverAddress: "acct-drv-1",
		DocumentHash:  "hash-1",
		Approve:       true,
		Verifier:      "acct-verifier",
	})
	require.NoError(t, err)
	job := &model.ReconciliationJob{
		ID:             uuid.New(),
		IdempotencyKey: "drv-1",
		Transition:     model.TransitionVerifyDriver,
		Payload:        payload,
		State:          model.JobSubmitted,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, h.jobs.Create(ctx, job))

	h.client.EXPECT().
		GetVerification(gomock.Any(), model.Party("acct-drv-1")).
		Return(&model.VerificationRecord{
			DriverAddress: "acct-drv-1",
			DriverID:      "drv-1",
			DocumentHash:  "hash-1",
			Status:        model.VerificationVerified,
			Verifier:      "acct-verifier",
		}, nil).
		Times(2)

	require.NoError(t, h.coord.processJob(ctx, job.ID))

	assert.Equal(t, model.JobConfirmed, h.jobs.byID(job.ID).State)

	stored := h.verifications.byAddress("acct-drv-1")
	require.NotNil(t, stored)
	assert.Equal(t, model.VerificationVerified, stored.Status)

	events, err := h.outbox.ListUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.KindDriverVerificationChanged, events[0].Kind)
	assert.Equal(t, "drv-1", events[0].Key)
}

func TestProcessJob_RecoveredReleaseConfirmsByRead(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	payload, err := json.Marshal(event.RideCompleted{RideID: "ride-1", FinalAmount: 1200})
	require.NoError(t, err)
	job := &model.ReconciliationJob{
		ID:             uuid.New(),
		IdempotencyKey: "ride-1",
		Transition:     model.TransitionRelease,
		Payload:        payload,
		State:          model.JobSubmitted,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, h.jobs.Create(ctx, job))

	released := &model.EscrowRecord{
		EscrowID:       7,
		RideID:         "ride-1",
		DriverParty:    "acct-d",
		PassengerParty: "acct-p",
		Amount:         1000,
		Status:         model.EscrowReleased,
		DriverShare:    975,
		PlatformFee:    25,
	}
	h.client.EXPECT().GetEscrowByRide(gomock.Any(), "ride-1").Return(released, nil).Times(2)

	require.NoError(t, h.coord.processJob(ctx, job.ID))

	confirmed := h.jobs.byID(job.ID)
	assert.Equal(t, model.JobConfirmed, confirmed.State)
	require.NotNil(t, confirmed.EscrowID)
	assert.Equal(t, int64(7), *confirmed.EscrowID)

	stored := h.escrows.byRide("ride-1")
	require.NotNil(t, stored)
	assert.Equal(t, model.EscrowReleased, stored.Status)

	events, err := h.outbox.ListUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.KindEscrowSettled, events[0].Kind)

	var settled event.EscrowSettled
	require.NoError(t, json.Unmarshal(events[0].Payload, &settled))
	assert.Equal(t, int64(1200), settled.FinalAmount)
}

func TestProcessJob_ExhaustionFailsAndPages(t *testing.T) {
	h := newHarness(t, Config{MaxAttempts: 1})
	ctx := context.Background()

	id, err := h.coord.OnDriverDocumentsSubmitted(ctx, event.DriverDocumentsSubmitted{
		DriverID:      "drv-1",
		DriverAddress: "acct-drv-1",
		DocumentBlob:  []byte("doc"),
		Approve:       true,
		Verifier:      "acct-verifier",
	})
	require.NoError(t, err)

	h.client.EXPECT().
		VerifyDriver(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(ledger.Receipt{}, errors.New("connection refused"))
	h.client.EXPECT().
		GetVerification(gomock.Any(), model.Party("acct-drv-1")).
		Return(nil, ledger.ErrNotFound)

	require.NoError(t, h.coord.processJob(ctx, id))

	job := h.jobs.byID(id)
	assert.Equal(t, model.JobFailed, job.State)

	alerts := h.alerter.sent()
	require.Len(t, alerts, 1)
	assert.Equal(t, "drv-1", alerts[0].Key)
	assert.Equal(t, string(model.TransitionVerifyDriver), alerts[0].Fields["transition"])
}

func TestProcessJob_MissingJobIsNoop(t *testing.T) {
	h := newHarness(t, Config{})
	assert.NoError(t, h.coord.processJob(context.Background(), uuid.New()))
}

func TestCheckLanded_EscrowTransitions(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	job := &model.ReconciliationJob{IdempotencyKey: "ride-1", Transition: model.TransitionRelease}

	h.client.EXPECT().GetEscrowByRide(gomock.Any(), "ride-1").
		Return(&model.EscrowRecord{Status: model.EscrowActive}, nil)
	landed, err := h.coord.checkLanded(ctx, job)
	require.NoError(t, err)
	assert.False(t, landed)

	h.client.EXPECT().GetEscrowByRide(gomock.Any(), "ride-1").
		Return(&model.EscrowRecord{Status: model.EscrowReleased}, nil)
	landed, err = h.coord.checkLanded(ctx, job)
	require.NoError(t, err)
	assert.True(t, landed)

	// A creation has landed as soon as the record exists.
	job = &model.ReconciliationJob{IdempotencyKey: "ride-1", Transition: model.TransitionCreateEscrow}
	h.client.EXPECT().GetEscrowByRide(gomock.Any(), "ride-1").
		Return(&model.EscrowRecord{Status: model.EscrowActive}, nil)
	landed, err = h.coord.checkLanded(ctx, job)
	require.NoError(t, err)
	assert.True(t, landed)

	h.client.EXPECT().GetEscrowByRide(gomock.Any(), "ride-1").
		Return(nil, ledger.ErrNotFound)
	landed, err = h.coord.checkLanded(ctx, job)
	require.NoError(t, err)
	assert.False(t, landed)

	// A dispute may already have been resolved past Disputed.
	job = &model.ReconciliationJob{IdempotencyKey: "ride-1", Transition: model.TransitionDispute}
	h.client.EXPECT().GetEscrowByRide(gomock.Any(), "ride-1").
		Return(&model.EscrowRecord{Status: model.EscrowRefunded}, nil)
	landed, err = h.coord.checkLanded(ctx, job)
	require.NoError(t, err)
	assert.True(t, landed)
}

func TestCheckLanded_ReadErrorPropagates(t *testing.T) {
	h := newHarness(t, Config{})

	job := &model.ReconciliationJob{IdempotencyKey: "ride-1", Transition: model.TransitionRelease}
	h.client.EXPECT().GetEscrowByRide(gomock.Any(), "ride-1").
		Return(nil, errors.New("node down"))

	_, err := h.coord.checkLanded(context.Background(), job)
	assert.Error(t, err, "transport errors are not a not-landed verdict")
}

func TestCheckLanded_VerificationTransitions(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	payload, err := json.Marshal(verificationPayload{DriverID: "drv-1", DriverAddress: "acct-drv-1"})
	require.NoError(t, err)
	job := &model.ReconciliationJob{IdempotencyKey: "drv-1", Transition: model.TransitionVerifyDriver, Payload: payload}

	h.client.EXPECT().GetVerification(gomock.Any(), model.Party("acct-drv-1")).
		Return(&model.VerificationRecord{Status: model.VerificationVerified}, nil)
	landed, err := h.coord.checkLanded(ctx, job)
	require.NoError(t, err)
	assert.True(t, landed)

	h.client.EXPECT().GetVerification(gomock.Any(), model.Party("acct-drv-1")).
		Return(&model.VerificationRecord{Status: model.VerificationPending}, nil)
	landed, err = h.coord.checkLanded(ctx, job)
	require.NoError(t, err)
	assert.False(t, landed)
}

func TestBuildSubmit_UnknownTransition(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.coord.buildSubmit(&model.ReconciliationJob{Transition: model.Transition("mystery")})
	assert.ErrorIs(t, err, ErrUnknownTransition)
}

func TestBuildSubmit_ResolvesEscrowIDByRide(t *testing.T) {
	h := newHarness(t, Config{})
	payload, err := json.Marshal(event.RideCompleted{RideID: "ride-1"})
	require.NoError(t, err)

	fn, err := h.coord.buildSubmit(&model.ReconciliationJob{Transition: model.TransitionRelease, Payload: payload})
	require.NoError(t, err)

	h.client.EXPECT().GetEscrowByRide(gomock.Any(), "ride-1").
		Return(&model.EscrowRecord{EscrowID: 7}, nil)
	h.client.EXPECT().Release(gomock.Any(), int64(7), operator).
		Return(ledger.Receipt{Sequence: 1}, nil)

	_, err = fn(context.Background(), h.client)
	assert.NoError(t, err)
}

func TestBuildSubmit_BadPayloadIsTerminal(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	// Plant a job with a corrupt payload directly.
	job := &model.ReconciliationJob{
		ID:             uuid.New(),
		IdempotencyKey: "drv-1",
		Transition:     model.TransitionVerifyDriver,
		Payload:        []byte("{not json"),
		State:          model.JobPending,
	}
	require.NoError(t, h.jobs.Create(ctx, job))

	require.NoError(t, h.coord.processJob(ctx, job.ID))
	assert.Equal(t, model.JobFailed, h.jobs.byID(job.ID).State)
}

func TestScheduleRetry_ReenqueuesAfterBackoff(t *testing.T) {
	h := newHarness(t, Config{MaxAttempts: 8, BaseBackoff: time.Millisecond})

	id := seedJob(t, h.jobs, "ride-1", model.JobSubmitted)
	require.NoError(t, h.coord.scheduleRetry(context.Background(), h.jobs.byID(id), errors.New("node down"), true))

	assert.Eventually(t, func() bool { return h.queuedJobs() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.JobPending, h.jobs.byID(id).State)
}

func TestScheduleRetry_BackoffAbandonedOnShutdown(t *testing.T) {
	h := newHarness(t, Config{MaxAttempts: 8, BaseBackoff: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	id := seedJob(t, h.jobs, "ride-1", model.JobSubmitted)
	require.NoError(t, h.coord.scheduleRetry(ctx, h.jobs.byID(id), errors.New("node down"), false))

	// The backoff was armed against a finished run; it must never land a
	// job on a queue no worker drains any more.
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, h.queuedJobs())
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	c := New(Config{BaseBackoff: time.Second, MaxBackoff: 10 * time.Second, Operator: operator},
		nil, &fakeEscrows{}, &fakeVerifications{}, &fakeJobs{}, &fakeOutbox{}, nil, nil, &recordingAlerter{}, testLogger())

	assert.Equal(t, 1*time.Second, c.backoff(1))
	assert.Equal(t, 2*time.Second, c.backoff(2))
	assert.Equal(t, 4*time.Second, c.backoff(3))
	assert.Equal(t, 8*time.Second, c.backoff(4))
	assert.Equal(t, 10*time.Second, c.backoff(5))
	assert.Equal(t, 10*time.Second, c.backoff(20))
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{}, nil, &fakeEscrows{}, &fakeVerifications{}, &fakeJobs{}, &fakeOutbox{}, nil, nil, &recordingAlerter{}, testLogger())
	assert.Equal(t, 4, c.cfg.Workers)
	assert.Equal(t, 256, c.cfg.QueueSize)
	assert.Equal(t, 8, c.cfg.MaxAttempts)
	assert.Equal(t, time.Second, c.cfg.BaseBackoff)
	assert.Equal(t, 2*time.Minute, c.cfg.MaxBackoff)
	assert.Len(t, c.queues, 4)
}
