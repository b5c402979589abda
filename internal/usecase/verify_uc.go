package usecase

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"course-receipt-verification/internal/config"
	"course-receipt-verification/internal/domain"
	"course-receipt-verification/internal/domain/model"
	"course-receipt-verification/internal/domain/normalize"
	"course-receipt-verification/internal/domain/ports/adapter"
	"course-receipt-verification/internal/domain/ports/repository"
)

// Compile-time check
var _ VerifyUseCase = (*verifyUC)(nil)

// Locker serializes the fingerprint check-then-insert across instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

// ValidateRequest is one receipt submission as the API boundary hands it in.
type ValidateRequest struct {
	TargetID       string
	Plan           model.PlanType
	CustomerName   string
	CustomerPhone  string
	CustomerEmail  string
	PaymentMethod  string
	DeclaredAmount int64
	Image          []byte
	ImageMime      string
	ImageRef       string
	Notes          string
	IsRenewal      bool
	IsUpgrade      bool
}

// ValidateOutcome is the engine's verdict. Exactly one of the Valid=false
// rejection, AutoApproved, ReadyToPurchase or ManualReview shapes is set.
type ValidateOutcome struct {
	Valid           bool
	Reason          model.RejectReason
	Message         string
	SubmissionID    string
	AutoApproved    bool
	ReadyToPurchase bool
	ManualReview    bool
	AccessEnd       *time.Time
	Plan            model.PlanType
	Results         []ReconcileResult // grants applied when the fast path reconciled
}

// ConfirmResult reports the outcome of the explicit confirmation action.
type ConfirmResult struct {
	SubmissionID    string
	Status          model.SubmissionStatus
	Plan            model.PlanType
	AccessEnd       *time.Time // nil for lifetime grants
	AlreadyApproved bool
	Results         []ReconcileResult
}

type VerifyUseCase interface {
	// Validate runs the full decision pipeline for one submitted receipt.
	// A transient extraction failure returns domain.ErrExtractionUnavailable;
	// every deterministic verdict is a ValidateOutcome, not an error.
	Validate(ctx context.Context, req *ValidateRequest) (*ValidateOutcome, error)
	// Confirm finalizes an auto-approved or pending-confirmation submission.
	// Idempotent: re-confirming returns the recorded access end with no new
	// side effects.
	Confirm(ctx context.Context, submissionID string) (*ConfirmResult, error)
}

type verifyUC struct {
	subs      repository.SubmissionRepository
	fps       repository.FingerprintRepository
	attempts  repository.AttemptRepository
	enrolls   repository.EnrollmentRepository
	enrollUC  EnrollUseCase
	extractor adapter.FieldExtractor
	notifier  adapter.Notifier
	locker    Locker
	tm        repository.TransactionManager
	policy    *config.PolicyConfig
	log       *zerolog.Logger

	extractTimeout time.Duration
	lockTTL        time.Duration
	now            func() time.Time
}

func NewVerifyUseCase(
	subs repository.SubmissionRepository,
	fps repository.FingerprintRepository,
	attempts repository.AttemptRepository,
	enrolls repository.EnrollmentRepository,
	enrollUC EnrollUseCase,
	extractor adapter.FieldExtractor,
	notifier adapter.Notifier,
	locker Locker,
	tm repository.TransactionManager,
	policy *config.PolicyConfig,
	extractTimeout, lockTTL time.Duration,
	logger *zerolog.Logger,
) *verifyUC {
	l := logger.With().Str("component", "VerifyUC").Logger()
	return &verifyUC{
		subs:           subs,
		fps:            fps,
		attempts:       attempts,
		enrolls:        enrolls,
		enrollUC:       enrollUC,
		extractor:      extractor,
		notifier:       notifier,
		locker:         locker,
		tm:             tm,
		policy:         policy,
		log:            &l,
		extractTimeout: extractTimeout,
		lockTTL:        lockTTL,
		now:            time.Now,
	}
}

// liveStatuses are the submission states that block a second use of the same
// image or fingerprint. Rejected submissions are inert.
var liveStatuses = []model.SubmissionStatus{
	model.SubmissionStatusAutoApproved,
	model.SubmissionStatusPendingConf,
	model.SubmissionStatusManualReview,
	model.SubmissionStatusConfirmed,
	model.SubmissionStatusApproved,
}

func (u *verifyUC) Validate(ctx context.Context, req *ValidateRequest) (*ValidateOutcome, error) {
	if req == nil || req.ImageRef == "" || len(req.Image) == 0 || req.TargetID == "" {
		return nil, domain.ErrInvalidArgument
	}
	phone := normalize.Phone(req.CustomerPhone)
	scope := model.AttemptScopeKey(phone, req.TargetID)

	// The attempt itself counts, before the outcome is known. Extraction
	// outages also consume a slot here but never a rejection reason.
	count, err := u.attempts.Increment(ctx, repository.NoTX, scope)
	if err != nil {
		u.log.Warn().Err(err).Str("scope", scope).Msg("attempt increment failed")
	}

	// Duplicate image screen runs before extraction and is never escalated.
	existing, err := u.subs.FindByImageRef(ctx, repository.NoTX, req.ImageRef, liveStatuses)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return u.rejectOutcome(ctx, req, phone, model.ReasonDuplicateImage)
	}

	exCtx, cancel := context.WithTimeout(ctx, u.extractTimeout)
	defer cancel()
	fields, usage, err := u.extractor.Extract(exCtx, req.Image, req.ImageMime)
	if err != nil {
		u.log.Warn().Err(err).Str("extractor", u.extractor.Name()).Msg("extraction unavailable")
		return nil, domain.ErrExtractionUnavailable
	}
	u.log.Debug().
		Int("confidence", fields.Confidence).
		Int("prompt_tokens", usage.PromptTokens).
		Bool("usage_estimated", usage.Estimated).
		Msg("fields extracted")

	escalate := count >= u.policy.EscalationThreshold && metadataComplete(req)

	if res := formatChecks(fields); !res.ok {
		return u.resolveRejection(ctx, req, phone, fields, res.reason, escalate)
	}
	if res := confidenceGate(fields, u.policy.MinConfidence); !res.ok {
		return u.resolveRejection(ctx, req, phone, fields, res.reason, escalate)
	}

	// Below the auto threshold, or with incomplete metadata, the receipt is
	// accepted for later review rather than rejected.
	if fields.Confidence < u.policy.AutoConfidence || !metadataComplete(req) {
		return u.acceptPending(ctx, req, phone, fields)
	}

	if res := freshnessCheck(fields.DateText, u.now()); !res.ok {
		return u.resolveRejection(ctx, req, phone, fields, res.reason, escalate)
	}

	fp := fingerprintFrom(fields)
	if !fp.Comparable() {
		// Without a reference or the full tuple the receipt cannot be
		// deduplicated, so it never auto-approves; an admin confirm
		// carries the replay risk instead.
		return u.acceptPending(ctx, req, phone, fields)
	}
	match, err := u.fps.FindMatch(ctx, repository.NoTX, fp)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if match != nil {
		// Literal reuse is a hard stop, escalation or not.
		return u.rejectOutcome(ctx, req, phone, model.ReasonDuplicateReceipt)
	}

	if res := recipientCheck(fields, u.policy); !res.ok {
		return u.resolveRejection(ctx, req, phone, fields, res.reason, escalate)
	}

	expected, priced := u.policy.ExpectedAmount(string(req.Plan), req.TargetID)
	amount, hasAmount := extractedAmount(fields)
	if !priced || !hasAmount {
		return u.resolveRejection(ctx, req, phone, fields, model.ReasonAmountMismatch, escalate)
	}
	upgrade := u.upgradePriceFor(ctx, req, phone)
	if res := amountCheck(amount, expected, upgrade, u.policy); !res.ok {
		return u.resolveRejection(ctx, req, phone, fields, res.reason, escalate)
	}

	return u.approve(ctx, req, phone, fields, fp, expected)
}

// upgradePriceFor returns the dynamic monthly-to-yearly upgrade price when
// the submitter holds a usable monthly enrollment for the target, else nil.
func (u *verifyUC) upgradePriceFor(ctx context.Context, req *ValidateRequest, phone string) *int64 {
	if req.Plan != model.PlanYearly || req.TargetID == model.TargetAllAccess {
		return nil
	}
	yearly, ok := u.policy.ExpectedAmount(string(model.PlanYearly), req.TargetID)
	if !ok {
		return nil
	}
	cur, err := u.enrolls.FindActive(ctx, repository.NoTX, phone, req.TargetID)
	if err != nil || cur == nil {
		return nil
	}
	if cur.Plan != model.PlanMonthly || !cur.Usable(u.now()) {
		return nil
	}
	p := upgradePrice(yearly, cur.AmountMinor, u.policy)
	return &p
}

// resolveRejection turns a failed check into either a hard rejection or, at
// the escalation threshold, a manual-review submission.
func (u *verifyUC) resolveRejection(ctx context.Context, req *ValidateRequest, phone string, fields *adapter.ExtractedFields, reason model.RejectReason, escalate bool) (*ValidateOutcome, error) {
	if !escalate {
		return u.rejectOutcome(ctx, req, phone, reason)
	}

	// Escalation still blocks literal reuse: the dedup check runs
	// unconditionally before anything is saved for review.
	fp := fingerprintFrom(fields)
	if fp.Comparable() {
		match, err := u.fps.FindMatch(ctx, repository.NoTX, fp)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if match != nil {
			return u.rejectOutcome(ctx, req, phone, model.ReasonDuplicateReceipt)
		}
	}

	sub := u.newSubmission(req, phone, model.SubmissionStatusManualReview)
	sub.Reason = string(reason) // what the pipeline would have rejected with
	if err := u.persistWithFingerprint(ctx, sub, fp, model.FingerprintStatusPending); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return u.rejectOutcome(ctx, req, phone, model.ReasonDuplicateReceipt)
		}
		return nil, err
	}
	u.log.Info().Str("submission_id", sub.ID).Str("would_reject", string(reason)).Msg("escalated to manual review")
	u.notifyReviewQueued(sub)

	return &ValidateOutcome{
		Valid:        true,
		ManualReview: true,
		SubmissionID: sub.ID,
		Message:      "Your receipt was saved. An admin will verify it shortly.",
	}, nil
}

// acceptPending records a valid-but-unverifiable submission that waits for
// the explicit confirmation step.
func (u *verifyUC) acceptPending(ctx context.Context, req *ValidateRequest, phone string, fields *adapter.ExtractedFields) (*ValidateOutcome, error) {
	fp := fingerprintFrom(fields)
	if fp.Comparable() {
		match, err := u.fps.FindMatch(ctx, repository.NoTX, fp)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if match != nil {
			return u.rejectOutcome(ctx, req, phone, model.ReasonDuplicateReceipt)
		}
	}

	sub := u.newSubmission(req, phone, model.SubmissionStatusPendingConf)
	if err := u.persistWithFingerprint(ctx, sub, fp, model.FingerprintStatusPending); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return u.rejectOutcome(ctx, req, phone, model.ReasonDuplicateReceipt)
		}
		return nil, err
	}

	return &ValidateOutcome{
		Valid:           true,
		ReadyToPurchase: true,
		SubmissionID:    sub.ID,
		Message:         "Receipt accepted. An admin will review your payment shortly.",
	}, nil
}

// approve finishes the high-confidence path: fingerprint and submission are
// written atomically; fast-path plans reconcile synchronously.
func (u *verifyUC) approve(ctx context.Context, req *ValidateRequest, phone string, fields *adapter.ExtractedFields, fp *model.ReceiptFingerprint, expected int64) (*ValidateOutcome, error) {
	fastPath := u.policy.AutoConfirm(string(req.Plan)) ||
		(req.TargetID == model.TargetAllAccess && req.Plan == model.PlanYearly)

	fpStatus := model.FingerprintStatusPending
	if fastPath {
		fpStatus = model.FingerprintStatusApproved
	}

	sub := u.newSubmission(req, phone, model.SubmissionStatusAutoApproved)
	if amt, ok := extractedAmount(fields); ok {
		sub.DeclaredAmount = amt
	}
	if err := u.persistWithFingerprint(ctx, sub, fp, fpStatus); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return u.rejectOutcome(ctx, req, phone, model.ReasonDuplicateReceipt)
		}
		return nil, err
	}

	out := &ValidateOutcome{
		Valid:        true,
		AutoApproved: true,
		SubmissionID: sub.ID,
		Plan:         sub.Plan,
	}

	if fastPath {
		results, err := u.enrollUC.Reconcile(ctx, sub)
		if err != nil {
			return nil, err
		}
		now := u.now()
		if err := u.subs.UpdateStatus(ctx, repository.NoTX, sub.ID, model.SubmissionStatusConfirmed, "", &now); err != nil {
			return nil, err
		}
		sub.Status = model.SubmissionStatusConfirmed
		out.AccessEnd = latestAccessEnd(results)
		out.Results = results
		u.notifyDecided(sub)
	}
	return out, nil
}

// persistWithFingerprint writes the submission and (when comparable) its
// fingerprint in one transaction, serialized by a per-fingerprint lock so two
// concurrent copies of the same receipt cannot both pass the dedup check.
func (u *verifyUC) persistWithFingerprint(ctx context.Context, sub *model.PaymentSubmission, fp *model.ReceiptFingerprint, fpStatus model.FingerprintStatus) error {
	key := fingerprintLockKey(fp)
	token, err := u.locker.TryLock(ctx, key, u.lockTTL)
	if err != nil {
		return err
	}
	defer func() { _ = u.locker.Unlock(ctx, key, token) }()

	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if fp.Comparable() {
			if match, err := u.fps.FindMatch(ctx, tx, fp); err != nil && !errors.Is(err, domain.ErrNotFound) {
				return err
			} else if match != nil {
				return domain.ErrAlreadyExists
			}
		}
		if err := u.subs.Save(ctx, tx, sub); err != nil {
			return err
		}
		if !fp.Comparable() {
			return nil
		}
		fp.ID = uuid.NewString()
		fp.SubmissionID = sub.ID
		fp.Status = fpStatus
		fp.CreatedAt = u.now()
		fp.UpdatedAt = fp.CreatedAt
		return u.fps.Save(ctx, tx, fp)
	})
}

// rejectOutcome records the rejected attempt in the ledger and returns the
// user-facing verdict.
func (u *verifyUC) rejectOutcome(ctx context.Context, req *ValidateRequest, phone string, reason model.RejectReason) (*ValidateOutcome, error) {
	sub := u.newSubmission(req, phone, model.SubmissionStatusRejected)
	sub.Reason = string(reason)
	now := u.now()
	sub.ResolvedAt = &now
	if err := u.subs.Save(ctx, repository.NoTX, sub); err != nil {
		u.log.Error().Err(err).Str("reason", string(reason)).Msg("failed to record rejection")
	}
	u.notifyDecided(sub)
	return &ValidateOutcome{
		Valid:        false,
		Reason:       reason,
		Message:      reason.Message(),
		SubmissionID: sub.ID,
	}, nil
}

func (u *verifyUC) Confirm(ctx context.Context, submissionID string) (*ConfirmResult, error) {
	if submissionID == "" {
		return nil, domain.ErrInvalidArgument
	}
	sub, err := u.subs.FindByID(ctx, repository.NoTX, submissionID)
	if err != nil {
		return nil, err
	}

	switch sub.Status {
	case model.SubmissionStatusConfirmed, model.SubmissionStatusApproved:
		enrolls, err := u.enrolls.ListBySubmission(ctx, repository.NoTX, sub.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return &ConfirmResult{
			SubmissionID:    sub.ID,
			Status:          sub.Status,
			Plan:            sub.Plan,
			AccessEnd:       latestEnrollmentEnd(enrolls),
			AlreadyApproved: true,
		}, nil
	case model.SubmissionStatusRejected:
		return nil, domain.ErrSubmissionFinal
	case model.SubmissionStatusManualReview:
		return nil, domain.ErrSubmissionNotReviewable
	}
	if !sub.Status.CanTransition(model.SubmissionStatusConfirmed) {
		return nil, domain.ErrSubmissionNotReviewable
	}

	results, err := u.enrollUC.Reconcile(ctx, sub)
	if err != nil {
		return nil, err
	}
	if fp, err := u.fps.FindBySubmission(ctx, repository.NoTX, sub.ID); err == nil && fp != nil {
		if err := u.fps.UpdateStatus(ctx, repository.NoTX, fp.ID, model.FingerprintStatusApproved); err != nil {
			u.log.Error().Err(err).Str("fingerprint_id", fp.ID).Msg("fingerprint promotion failed")
		}
	}
	now := u.now()
	if err := u.subs.UpdateStatus(ctx, repository.NoTX, sub.ID, model.SubmissionStatusConfirmed, "", &now); err != nil {
		return nil, err
	}
	sub.Status = model.SubmissionStatusConfirmed
	u.notifyDecided(sub)

	return &ConfirmResult{
		SubmissionID: sub.ID,
		Status:       model.SubmissionStatusConfirmed,
		Plan:         sub.Plan,
		AccessEnd:    latestAccessEnd(results),
		Results:      results,
	}, nil
}

func (u *verifyUC) newSubmission(req *ValidateRequest, phone string, status model.SubmissionStatus) *model.PaymentSubmission {
	now := u.now()
	return &model.PaymentSubmission{
		ID:             ulid.Make().String(),
		TargetID:       req.TargetID,
		Plan:           req.Plan,
		CustomerName:   req.CustomerName,
		CustomerPhone:  phone,
		CustomerEmail:  req.CustomerEmail,
		PaymentMethod:  req.PaymentMethod,
		DeclaredAmount: req.DeclaredAmount,
		ImageRef:       req.ImageRef,
		Notes:          req.Notes,
		IsRenewal:      req.IsRenewal,
		IsUpgrade:      req.IsUpgrade,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (u *verifyUC) notifyDecided(sub *model.PaymentSubmission) {
	if u.notifier == nil {
		return
	}
	s := *sub
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := u.notifier.SubmissionDecided(ctx, &s); err != nil {
			u.log.Warn().Err(err).Str("submission_id", s.ID).Msg("decision notification failed")
		}
	}()
}

func (u *verifyUC) notifyReviewQueued(sub *model.PaymentSubmission) {
	if u.notifier == nil {
		return
	}
	s := *sub
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := u.notifier.ManualReviewQueued(ctx, &s); err != nil {
			u.log.Warn().Err(err).Str("submission_id", s.ID).Msg("review alert failed")
		}
	}()
}

// --- helpers ---

func extractedAmount(f *adapter.ExtractedFields) (int64, bool) {
	if f.AmountText == nil {
		return 0, false
	}
	return normalize.Amount(*f.AmountText)
}

// fingerprintFrom normalizes the extracted fields into a fingerprint. ID,
// submission link and status are set at persist time.
func fingerprintFrom(f *adapter.ExtractedFields) *model.ReceiptFingerprint {
	fp := &model.ReceiptFingerprint{}
	if f == nil {
		return fp
	}
	if f.ReferenceText != nil {
		if ref := normalize.Reference(*f.ReferenceText); ref != "" {
			fp.Reference = &ref
		}
	}
	if f.DateText != nil {
		if iso, ok := normalize.Date(*f.DateText); ok {
			fp.TxDate = &iso
		}
	}
	if f.TimeText != nil {
		if t := normalize.Clock(*f.TimeText); t != "" {
			fp.TxTime = &t
		}
	}
	if f.AmountText != nil {
		if amt, ok := normalize.Amount(*f.AmountText); ok {
			fp.AmountMinor = &amt
		}
	}
	if f.SenderPhoneText != nil {
		if p := normalize.Phone(*f.SenderPhoneText); p != "" {
			fp.SenderPhone = &p
		}
	}
	return fp
}

// fingerprintLockKey prefers the reference; receipts without one lock on the
// identifying tuple instead.
func fingerprintLockKey(fp *model.ReceiptFingerprint) string {
	if fp.Reference != nil && *fp.Reference != "" {
		return "fp:ref:" + *fp.Reference
	}
	key := "fp:tuple:"
	for _, p := range []*string{fp.TxDate, fp.TxTime, fp.SenderPhone} {
		if p != nil {
			key += *p
		}
		key += "|"
	}
	if fp.AmountMinor != nil {
		key += strconv.FormatInt(*fp.AmountMinor, 10)
	}
	return key
}

func latestAccessEnd(results []ReconcileResult) *time.Time {
	var out *time.Time
	for i := range results {
		if results[i].AccessEnd == nil {
			continue
		}
		if out == nil || results[i].AccessEnd.After(*out) {
			out = results[i].AccessEnd
		}
	}
	return out
}

func latestEnrollmentEnd(enrolls []*model.Enrollment) *time.Time {
	var out *time.Time
	for _, e := range enrolls {
		if e.AccessEnd == nil {
			continue
		}
		if out == nil || e.AccessEnd.After(*out) {
			out = e.AccessEnd
		}
	}
	return out
}
