//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"course-receipt-verification/internal/domain"
	"course-receipt-verification/internal/domain/model"
	"course-receipt-verification/internal/domain/normalize"
	"course-receipt-verification/internal/domain/ports/adapter"
	"course-receipt-verification/internal/domain/ports/repository"
)

// fixedNow keeps the pipeline's freshness and window arithmetic stable.
var fixedNow = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func strp(s string) *string { return &s }

// goodFields is a receipt that passes every automated check for the monthly
// plan of testPolicy: fresh date, valid payee, exact amount.
func goodFields() *adapter.ExtractedFields {
	return &adapter.ExtractedFields{
		LooksLikePaymentUI:    true,
		HasVisibleAmount:      true,
		HasVisibleReference:   true,
		Confidence:            97,
		AmountText:            strp("25.00"),
		DateText:              strp("07-Jan-2026"),
		TimeText:              strp("9:41 AM"),
		ReferenceText:         strp("TX-2026 0107.001"),
		RecipientName:         strp("Course Academy LLC"),
		RecipientIsValidPayee: true,
		SenderName:            strp("Jane Doe"),
		SenderPhoneText:       strp("+1 (555) 123-4567"),
	}
}

func goodRequest() *ValidateRequest {
	return &ValidateRequest{
		TargetID:       "course-go",
		Plan:           model.PlanMonthly,
		CustomerName:   "Jane Doe",
		CustomerPhone:  "+1 555 123 4567",
		CustomerEmail:  "jane@example.com",
		PaymentMethod:  "bank_transfer",
		DeclaredAmount: 2500,
		Image:          []byte("fake-image-bytes"),
		ImageMime:      "image/jpeg",
		ImageRef:       "sha256-aaaa",
	}
}

type verifyDeps struct {
	subs      *MockSubmissionRepo
	fps       *MockFingerprintRepo
	attempts  *MockAttemptRepo
	enrolls   *MockEnrollmentRepo
	courses   *MockCourseRepo
	extractor *MockExtractor
	notifier  *MockNotifier
	locker    *MockLocker
	enrollUC  *enrollUC
	uc        *verifyUC
}

func newVerifyDeps(fields *adapter.ExtractedFields) *verifyDeps {
	d := &verifyDeps{
		subs:     NewMockSubmissionRepo(),
		fps:      NewMockFingerprintRepo(),
		attempts: NewMockAttemptRepo(),
		enrolls:  NewMockEnrollmentRepo(),
		courses: NewMockCourseRepo(
			&model.Course{ID: "course-go", Title: "Go", Live: true},
			&model.Course{ID: "course-sql", Title: "SQL", Live: true},
			&model.Course{ID: "course-old", Title: "Retired", Live: false},
		),
		extractor: &MockExtractor{Fields: fields},
		notifier:  &MockNotifier{},
		locker:    NewMockLocker(),
	}
	policy := testPolicy()
	log := newTestLogger()
	tm := &MockTxManager{}

	d.enrollUC = NewEnrollUseCase(d.enrolls, d.courses, d.attempts, tm, policy, log)
	d.enrollUC.now = func() time.Time { return fixedNow }

	d.uc = NewVerifyUseCase(d.subs, d.fps, d.attempts, d.enrolls, d.enrollUC,
		d.extractor, d.notifier, d.locker, tm, policy,
		5*time.Second, 10*time.Second, log)
	d.uc.now = func() time.Time { return fixedNow }
	return d
}

func TestVerifyUC_Validate_AutoApprove(t *testing.T) {
	t.Run("monthly plan auto-approves and confirms in one pass", func(t *testing.T) {
		// --- Arrange ---
		d := newVerifyDeps(goodFields())

		// --- Act ---
		out, err := d.uc.Validate(context.Background(), goodRequest())

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !out.Valid || !out.AutoApproved {
			t.Fatalf("expected auto-approved outcome, got %+v", out)
		}
		sub, err := d.subs.FindByID(context.Background(), repository.NoTX, out.SubmissionID)
		if err != nil {
			t.Fatalf("submission was not saved: %v", err)
		}
		if sub.Status != model.SubmissionStatusConfirmed {
			t.Errorf("expected fast-path status confirmed, got %s", sub.Status)
		}
		wantEnd := fixedNow.AddDate(0, 1, 0)
		if out.AccessEnd == nil || !out.AccessEnd.Equal(wantEnd) {
			t.Errorf("expected access end %v, got %v", wantEnd, out.AccessEnd)
		}
		if out.Plan != model.PlanMonthly || len(out.Results) != 1 || !out.Results[0].Created {
			t.Errorf("expected one created grant reported, got plan=%s results=%+v", out.Plan, out.Results)
		}
		fp, err := d.fps.FindBySubmission(context.Background(), repository.NoTX, sub.ID)
		if err != nil {
			t.Fatalf("fingerprint was not saved: %v", err)
		}
		if fp.Status != model.FingerprintStatusApproved {
			t.Errorf("fast-path fingerprint should be approved, got %s", fp.Status)
		}
		if fp.Reference == nil || *fp.Reference != "TX20260107001" {
			t.Errorf("reference not normalized: %+v", fp.Reference)
		}
		scope := model.AttemptScopeKey(normalize.Phone("+1 555 123 4567"), "course-go")
		if n, _ := d.attempts.Get(context.Background(), repository.NoTX, scope); n != 0 {
			t.Errorf("attempt counter should be reset after grant, got %d", n)
		}
	})

	t.Run("all-access yearly fans out over live courses", func(t *testing.T) {
		// --- Arrange ---
		fields := goodFields()
		fields.AmountText = strp("600.00")
		d := newVerifyDeps(fields)
		req := goodRequest()
		req.TargetID = model.TargetAllAccess
		req.Plan = model.PlanYearly
		req.DeclaredAmount = 60000

		// --- Act ---
		out, err := d.uc.Validate(context.Background(), req)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !out.AutoApproved {
			t.Fatalf("expected auto-approved outcome, got %+v", out)
		}
		wantEnd := fixedNow.AddDate(1, 0, 0)
		if out.AccessEnd == nil || !out.AccessEnd.Equal(wantEnd) {
			t.Errorf("expected access end %v, got %v", wantEnd, out.AccessEnd)
		}
		for _, courseID := range []string{"course-go", "course-sql"} {
			if _, err := d.enrolls.FindActive(context.Background(), repository.NoTX, normalize.Phone(req.CustomerPhone), courseID); err != nil {
				t.Errorf("expected enrollment for %s: %v", courseID, err)
			}
		}
		if _, err := d.enrolls.FindActive(context.Background(), repository.NoTX, normalize.Phone(req.CustomerPhone), "course-old"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("retired course must not be granted, got err=%v", err)
		}
	})
}

func TestVerifyUC_Validate_Pending(t *testing.T) {
	t.Run("confidence between gates yields pending confirmation", func(t *testing.T) {
		// --- Arrange ---
		fields := goodFields()
		fields.Confidence = 90
		d := newVerifyDeps(fields)

		// --- Act ---
		out, err := d.uc.Validate(context.Background(), goodRequest())

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !out.Valid || !out.ReadyToPurchase {
			t.Fatalf("expected ready-to-purchase outcome, got %+v", out)
		}
		sub, _ := d.subs.FindByID(context.Background(), repository.NoTX, out.SubmissionID)
		if sub.Status != model.SubmissionStatusPendingConf {
			t.Errorf("expected pending_confirmation, got %s", sub.Status)
		}
		fp, err := d.fps.FindBySubmission(context.Background(), repository.NoTX, sub.ID)
		if err != nil {
			t.Fatalf("fingerprint was not saved: %v", err)
		}
		if fp.Status != model.FingerprintStatusPending {
			t.Errorf("pending submission keeps a pending fingerprint, got %s", fp.Status)
		}
	})

	t.Run("non-deduplicatable receipt never auto-approves", func(t *testing.T) {
		// --- Arrange ---
		// no reference and no sender phone: the fingerprint carries
		// neither identity, so replay cannot be detected
		fields := goodFields()
		fields.ReferenceText = nil
		fields.SenderPhoneText = nil
		d := newVerifyDeps(fields)

		// --- Act ---
		out, err := d.uc.Validate(context.Background(), goodRequest())

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out.AutoApproved {
			t.Fatal("receipt without a dedup identity must not auto-approve")
		}
		if !out.ReadyToPurchase {
			t.Fatalf("expected ready-to-purchase outcome, got %+v", out)
		}
		sub, err := d.subs.FindByID(context.Background(), repository.NoTX, out.SubmissionID)
		if err != nil {
			t.Fatalf("submission was not saved: %v", err)
		}
		if sub.Status != model.SubmissionStatusPendingConf {
			t.Errorf("expected pending_confirmation, got %s", sub.Status)
		}
		if granted, _ := d.enrolls.ListBySubmission(context.Background(), repository.NoTX, sub.ID); len(granted) != 0 {
			t.Error("no access may be granted without a confirmation step")
		}

		// a second screenshot of the same payment must not slip through
		// the auto path either
		req2 := goodRequest()
		req2.ImageRef = "sha256-other"
		out2, err := d.uc.Validate(context.Background(), req2)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out2.AutoApproved {
			t.Fatal("resubmission must not auto-approve either")
		}
	})

	t.Run("incomplete metadata blocks the auto path even at high confidence", func(t *testing.T) {
		// --- Arrange ---
		d := newVerifyDeps(goodFields())
		req := goodRequest()
		req.PaymentMethod = ""

		// --- Act ---
		out, err := d.uc.Validate(context.Background(), req)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !out.ReadyToPurchase || out.AutoApproved {
			t.Fatalf("expected ready-to-purchase outcome, got %+v", out)
		}
	})
}

func TestVerifyUC_Validate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(f *adapter.ExtractedFields)
		reason model.RejectReason
	}{
		{
			name:   "human photo",
			mutate: func(f *adapter.ExtractedFields) { f.LooksLikeHumanPhoto = true },
			reason: model.ReasonHumanPhotoDetected,
		},
		{
			name:   "not a payment screen",
			mutate: func(f *adapter.ExtractedFields) { f.LooksLikePaymentUI = false },
			reason: model.ReasonNotAPaymentReceipt,
		},
		{
			name:   "amount not visible",
			mutate: func(f *adapter.ExtractedFields) { f.HasVisibleAmount = false },
			reason: model.ReasonAmountNotVisible,
		},
		{
			name:   "reference not visible",
			mutate: func(f *adapter.ExtractedFields) { f.HasVisibleReference = false },
			reason: model.ReasonReferenceNotVisible,
		},
		{
			name:   "confidence below floor",
			mutate: func(f *adapter.ExtractedFields) { f.Confidence = 60 },
			reason: model.ReasonLowConfidence,
		},
		{
			name:   "receipt too old",
			mutate: func(f *adapter.ExtractedFields) { f.DateText = strp("27-Dec-2025") },
			reason: model.ReasonReceiptTooOld,
		},
		{
			name:   "receipt dated in the future",
			mutate: func(f *adapter.ExtractedFields) { f.DateText = strp("15-Jan-2026") },
			reason: model.ReasonReceiptDateInFuture,
		},
		{
			name:   "unreadable date",
			mutate: func(f *adapter.ExtractedFields) { f.DateText = strp("someday") },
			reason: model.ReasonReceiptDateUnparsable,
		},
		{
			name: "wrong recipient",
			mutate: func(f *adapter.ExtractedFields) {
				f.RecipientIsValidPayee = false
				f.RecipientName = strp("Someone Else")
			},
			reason: model.ReasonWrongRecipient,
		},
		{
			name:   "amount does not match the plan",
			mutate: func(f *adapter.ExtractedFields) { f.AmountText = strp("99.00") },
			reason: model.ReasonAmountMismatch,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			fields := goodFields()
			tc.mutate(fields)
			d := newVerifyDeps(fields)

			// --- Act ---
			out, err := d.uc.Validate(context.Background(), goodRequest())

			// --- Assert ---
			if err != nil {
				t.Fatalf("expected no error, but got: %v", err)
			}
			if out.Valid {
				t.Fatalf("expected rejection, got %+v", out)
			}
			if out.Reason != tc.reason {
				t.Errorf("expected reason %s, got %s", tc.reason, out.Reason)
			}
			sub, err := d.subs.FindByID(context.Background(), repository.NoTX, out.SubmissionID)
			if err != nil {
				t.Fatalf("rejection was not recorded: %v", err)
			}
			if sub.Status != model.SubmissionStatusRejected || sub.ResolvedAt == nil {
				t.Errorf("rejection not finalized: status=%s resolved=%v", sub.Status, sub.ResolvedAt)
			}
		})
	}
}

func TestVerifyUC_Validate_Duplicates(t *testing.T) {
	t.Run("duplicate image is rejected before extraction", func(t *testing.T) {
		// --- Arrange ---
		d := newVerifyDeps(goodFields())
		req := goodRequest()
		prior := &model.PaymentSubmission{
			ID:       "prior",
			ImageRef: req.ImageRef,
			Status:   model.SubmissionStatusConfirmed,
		}
		if err := d.subs.Save(context.Background(), repository.NoTX, prior); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		// --- Act ---
		out, err := d.uc.Validate(context.Background(), req)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out.Valid || out.Reason != model.ReasonDuplicateImage {
			t.Fatalf("expected DuplicateImage rejection, got %+v", out)
		}
		if d.extractor.calls != 0 {
			t.Errorf("extraction must not run for a duplicate image, ran %d times", d.extractor.calls)
		}
	})

	t.Run("rejected prior submission does not block the same image", func(t *testing.T) {
		// --- Arrange ---
		d := newVerifyDeps(goodFields())
		req := goodRequest()
		prior := &model.PaymentSubmission{
			ID:       "prior",
			ImageRef: req.ImageRef,
			Status:   model.SubmissionStatusRejected,
		}
		if err := d.subs.Save(context.Background(), repository.NoTX, prior); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		// --- Act ---
		out, err := d.uc.Validate(context.Background(), req)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !out.AutoApproved {
			t.Fatalf("expected auto-approval, got %+v", out)
		}
	})

	t.Run("known fingerprint reference is a hard stop", func(t *testing.T) {
		// --- Arrange ---
		d := newVerifyDeps(goodFields())
		seed := &model.ReceiptFingerprint{
			ID:           "fp-1",
			SubmissionID: "other",
			Reference:    strp("TX20260107001"),
			Status:       model.FingerprintStatusApproved,
		}
		if err := d.fps.Save(context.Background(), repository.NoTX, seed); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		// --- Act ---
		out, err := d.uc.Validate(context.Background(), goodRequest())

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out.Valid || out.Reason != model.ReasonDuplicateReceipt {
			t.Fatalf("expected DuplicateReceipt rejection, got %+v", out)
		}
	})

	t.Run("tuple match without a reference also blocks", func(t *testing.T) {
		// --- Arrange ---
		fields := goodFields()
		fields.ReferenceText = nil
		fields.HasVisibleReference = true
		d := newVerifyDeps(fields)
		amt := int64(2500)
		seed := &model.ReceiptFingerprint{
			ID:           "fp-2",
			SubmissionID: "other",
			TxDate:       strp("2026-01-07"),
			TxTime:       strp("09:41"),
			AmountMinor:  &amt,
			SenderPhone:  strp("15551234567"),
			Status:       model.FingerprintStatusPending,
		}
		if err := d.fps.Save(context.Background(), repository.NoTX, seed); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		// --- Act ---
		out, err := d.uc.Validate(context.Background(), goodRequest())

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out.Valid || out.Reason != model.ReasonDuplicateReceipt {
			t.Fatalf("expected DuplicateReceipt rejection, got %+v", out)
		}
	})
}

func TestVerifyUC_Validate_Escalation(t *testing.T) {
	t.Run("threshold attempt with complete metadata escalates instead of rejecting", func(t *testing.T) {
		// --- Arrange ---
		fields := goodFields()
		fields.AmountText = strp("99.00") // would reject with AmountMismatch
		d := newVerifyDeps(fields)
		req := goodRequest()
		scope := model.AttemptScopeKey(normalize.Phone(req.CustomerPhone), req.TargetID)
		for i := 0; i < 3; i++ {
			if _, err := d.attempts.Increment(context.Background(), repository.NoTX, scope); err != nil {
				t.Fatalf("seed failed: %v", err)
			}
		}

		// --- Act ---
		out, err := d.uc.Validate(context.Background(), req)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !out.Valid || !out.ManualReview {
			t.Fatalf("expected manual-review outcome, got %+v", out)
		}
		sub, err := d.subs.FindByID(context.Background(), repository.NoTX, out.SubmissionID)
		if err != nil {
			t.Fatalf("submission was not saved: %v", err)
		}
		if sub.Status != model.SubmissionStatusManualReview {
			t.Errorf("expected manual_review status, got %s", sub.Status)
		}
		if sub.Reason != string(model.ReasonAmountMismatch) {
			t.Errorf("expected the would-be reason recorded, got %q", sub.Reason)
		}
		fp, err := d.fps.FindBySubmission(context.Background(), repository.NoTX, sub.ID)
		if err != nil {
			t.Fatalf("escalated submission must carry a fingerprint: %v", err)
		}
		if fp.Status != model.FingerprintStatusPending {
			t.Errorf("expected pending fingerprint, got %s", fp.Status)
		}
	})

	t.Run("escalation never bypasses the duplicate check", func(t *testing.T) {
		// --- Arrange ---
		fields := goodFields()
		fields.AmountText = strp("99.00")
		d := newVerifyDeps(fields)
		req := goodRequest()
		scope := model.AttemptScopeKey(normalize.Phone(req.CustomerPhone), req.TargetID)
		for i := 0; i < 5; i++ {
			_, _ = d.attempts.Increment(context.Background(), repository.NoTX, scope)
		}
		seed := &model.ReceiptFingerprint{
			ID:           "fp-1",
			SubmissionID: "other",
			Reference:    strp("TX20260107001"),
			Status:       model.FingerprintStatusApproved,
		}
		if err := d.fps.Save(context.Background(), repository.NoTX, seed); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		// --- Act ---
		out, err := d.uc.Validate(context.Background(), req)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out.Valid || out.Reason != model.ReasonDuplicateReceipt {
			t.Fatalf("expected DuplicateReceipt rejection, got %+v", out)
		}
	})

	t.Run("incomplete metadata never escalates", func(t *testing.T) {
		// --- Arrange ---
		fields := goodFields()
		fields.Confidence = 60
		d := newVerifyDeps(fields)
		req := goodRequest()
		req.CustomerName = ""
		scope := model.AttemptScopeKey(normalize.Phone(req.CustomerPhone), req.TargetID)
		for i := 0; i < 5; i++ {
			_, _ = d.attempts.Increment(context.Background(), repository.NoTX, scope)
		}

		// --- Act ---
		out, err := d.uc.Validate(context.Background(), req)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out.Valid || out.Reason != model.ReasonLowConfidence {
			t.Fatalf("expected plain rejection, got %+v", out)
		}
	})
}

func TestVerifyUC_Validate_Failures(t *testing.T) {
	t.Run("extraction outage is transient and still counts the attempt", func(t *testing.T) {
		// --- Arrange ---
		d := newVerifyDeps(nil)
		d.extractor.Err = domain.ErrExtractionUnavailable
		req := goodRequest()
		scope := model.AttemptScopeKey(normalize.Phone(req.CustomerPhone), req.TargetID)

		// --- Act ---
		_, err := d.uc.Validate(context.Background(), req)

		// --- Assert ---
		if !errors.Is(err, domain.ErrExtractionUnavailable) {
			t.Fatalf("expected ErrExtractionUnavailable, got %v", err)
		}
		if n, _ := d.attempts.Get(context.Background(), repository.NoTX, scope); n != 1 {
			t.Errorf("attempt should be counted on outage, got %d", n)
		}
	})

	t.Run("lock contention surfaces as an error, never a verdict", func(t *testing.T) {
		// --- Arrange ---
		d := newVerifyDeps(goodFields())
		d.locker.Fail = true

		// --- Act ---
		_, err := d.uc.Validate(context.Background(), goodRequest())

		// --- Assert ---
		if !errors.Is(err, domain.ErrLockNotAcquired) {
			t.Fatalf("expected ErrLockNotAcquired, got %v", err)
		}
	})

	t.Run("missing image or target is invalid input", func(t *testing.T) {
		d := newVerifyDeps(goodFields())
		for _, req := range []*ValidateRequest{
			nil,
			{TargetID: "course-go", ImageRef: "r"},
			{TargetID: "course-go", Image: []byte("x")},
			{Image: []byte("x"), ImageRef: "r"},
		} {
			if _, err := d.uc.Validate(context.Background(), req); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("expected ErrInvalidArgument for %+v, got %v", req, err)
			}
		}
	})
}

func TestVerifyUC_Validate_Upgrade(t *testing.T) {
	t.Run("monthly subscriber pays the dynamic upgrade price for yearly", func(t *testing.T) {
		// --- Arrange ---
		// yearly 25000 - paid 2500 + adjust 200 = 22700 minor units
		fields := goodFields()
		fields.AmountText = strp("227.00")
		d := newVerifyDeps(fields)
		req := goodRequest()
		req.Plan = model.PlanYearly
		phone := normalize.Phone(req.CustomerPhone)
		curEnd := fixedNow.AddDate(0, 0, 20)
		existing := &model.Enrollment{
			ID:           "enr-1",
			SubjectPhone: phone,
			CourseID:     req.TargetID,
			Plan:         model.PlanMonthly,
			AccessStart:  fixedNow.AddDate(0, 0, -10),
			AccessEnd:    &curEnd,
			Status:       model.EnrollmentStatusActive,
			SubmissionID: "old-sub",
			AmountMinor:  2500,
			CreatedAt:    fixedNow.AddDate(0, 0, -10),
		}
		if err := d.enrolls.Save(context.Background(), repository.NoTX, existing); err != nil {
			t.Fatalf("seed failed: %v", err)
		}

		// --- Act ---
		out, err := d.uc.Validate(context.Background(), req)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !out.AutoApproved {
			t.Fatalf("expected auto-approval at the upgrade price, got %+v", out)
		}
		// yearly is not fast-path; confirmation finishes the grant
		res, err := d.uc.Confirm(context.Background(), out.SubmissionID)
		if err != nil {
			t.Fatalf("confirm failed: %v", err)
		}
		wantEnd := curEnd.AddDate(0, 11, 0)
		if res.AccessEnd == nil || !res.AccessEnd.Equal(wantEnd) {
			t.Errorf("expected upgrade window end %v, got %v", wantEnd, res.AccessEnd)
		}
	})

	t.Run("upgrade price is rejected without an active monthly enrollment", func(t *testing.T) {
		// --- Arrange ---
		fields := goodFields()
		fields.AmountText = strp("227.00")
		d := newVerifyDeps(fields)
		req := goodRequest()
		req.Plan = model.PlanYearly

		// --- Act ---
		out, err := d.uc.Validate(context.Background(), req)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if out.Valid || out.Reason != model.ReasonAmountMismatch {
			t.Fatalf("expected AmountMismatch, got %+v", out)
		}
	})
}

func TestVerifyUC_Confirm(t *testing.T) {
	seedPending := func(t *testing.T, d *verifyDeps) *model.PaymentSubmission {
		t.Helper()
		sub := &model.PaymentSubmission{
			ID:             "sub-1",
			TargetID:       "course-go",
			Plan:           model.PlanMonthly,
			CustomerPhone:  "15551234567",
			DeclaredAmount: 2500,
			ImageRef:       "sha256-bbbb",
			Status:         model.SubmissionStatusPendingConf,
			CreatedAt:      fixedNow,
		}
		if err := d.subs.Save(context.Background(), repository.NoTX, sub); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		fp := &model.ReceiptFingerprint{
			ID:           "fp-1",
			SubmissionID: sub.ID,
			Reference:    strp("REF1"),
			Status:       model.FingerprintStatusPending,
		}
		if err := d.fps.Save(context.Background(), repository.NoTX, fp); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
		return sub
	}

	t.Run("confirming a pending submission grants access", func(t *testing.T) {
		// --- Arrange ---
		d := newVerifyDeps(goodFields())
		sub := seedPending(t, d)

		// --- Act ---
		res, err := d.uc.Confirm(context.Background(), sub.ID)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if res.Status != model.SubmissionStatusConfirmed || res.AlreadyApproved {
			t.Fatalf("expected fresh confirmation, got %+v", res)
		}
		wantEnd := fixedNow.AddDate(0, 1, 0)
		if res.AccessEnd == nil || !res.AccessEnd.Equal(wantEnd) {
			t.Errorf("expected access end %v, got %v", wantEnd, res.AccessEnd)
		}
		fp, _ := d.fps.FindBySubmission(context.Background(), repository.NoTX, sub.ID)
		if fp.Status != model.FingerprintStatusApproved {
			t.Errorf("fingerprint should be promoted on confirm, got %s", fp.Status)
		}
	})

	t.Run("re-confirming is idempotent", func(t *testing.T) {
		// --- Arrange ---
		d := newVerifyDeps(goodFields())
		sub := seedPending(t, d)
		first, err := d.uc.Confirm(context.Background(), sub.ID)
		if err != nil {
			t.Fatalf("first confirm failed: %v", err)
		}

		// --- Act ---
		second, err := d.uc.Confirm(context.Background(), sub.ID)

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !second.AlreadyApproved {
			t.Fatalf("expected AlreadyApproved on re-confirm, got %+v", second)
		}
		if second.AccessEnd == nil || !second.AccessEnd.Equal(*first.AccessEnd) {
			t.Errorf("re-confirm must return the recorded window, got %v want %v", second.AccessEnd, first.AccessEnd)
		}
	})

	t.Run("terminal and review states refuse confirmation", func(t *testing.T) {
		d := newVerifyDeps(goodFields())
		for _, tc := range []struct {
			status model.SubmissionStatus
			want   error
		}{
			{model.SubmissionStatusRejected, domain.ErrSubmissionFinal},
			{model.SubmissionStatusManualReview, domain.ErrSubmissionNotReviewable},
			{model.SubmissionStatusSubmitted, domain.ErrSubmissionNotReviewable},
		} {
			sub := &model.PaymentSubmission{ID: "sub-" + string(tc.status), Status: tc.status}
			if err := d.subs.Save(context.Background(), repository.NoTX, sub); err != nil {
				t.Fatalf("seed failed: %v", err)
			}
			if _, err := d.uc.Confirm(context.Background(), sub.ID); !errors.Is(err, tc.want) {
				t.Errorf("status %s: expected %v, got %v", tc.status, tc.want, err)
			}
		}
	})

	t.Run("unknown and empty ids", func(t *testing.T) {
		d := newVerifyDeps(goodFields())
		if _, err := d.uc.Confirm(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if _, err := d.uc.Confirm(context.Background(), ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}
