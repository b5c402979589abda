//go:build !integration

package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"course-receipt-verification/internal/config"
	"course-receipt-verification/internal/domain"
	"course-receipt-verification/internal/domain/model"
	"course-receipt-verification/internal/domain/ports/adapter"
	"course-receipt-verification/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger { l := zerolog.Nop(); return &l }

// testPolicy mirrors the default production thresholds with a small price
// table for two courses plus the all-access rate.
func testPolicy() *config.PolicyConfig {
	return &config.PolicyConfig{
		PlanAmounts: map[string]int64{
			"monthly":  2500,
			"yearly":   25000,
			"onetime":  12000,
			"lifetime": 50000,
		},
		AllAccessYearlyMinor:  60000,
		AutoConfirmPlans:      []string{"monthly"},
		AmountToleranceMinor:  500,
		UpgradeToleranceMinor: 1000,
		UpgradeAdjustMinor:    200,
		UpgradeFloorMinor:     100,
		MinConfidence:         85,
		AutoConfidence:        95,
		EscalationThreshold:   4,
		PayeeNames:            []string{"Course Academy", "ACME Pay"},
		PayeePhone:            "15550000000",
	}
}

// ---------------- transaction manager ----------------

type noTx struct{}

type MockTxManager struct{}

func (m *MockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, noTx{})
}

// ---------------- submission repo ----------------

type MockSubmissionRepo struct {
	mu   sync.Mutex
	byID map[string]*model.PaymentSubmission

	SaveFunc func(ctx context.Context, tx repository.Tx, s *model.PaymentSubmission) error
}

func NewMockSubmissionRepo() *MockSubmissionRepo {
	return &MockSubmissionRepo{byID: map[string]*model.PaymentSubmission{}}
}

func (m *MockSubmissionRepo) Save(ctx context.Context, tx repository.Tx, s *model.PaymentSubmission) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, tx, s); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.byID[s.ID] = &cp
	return nil
}

func (m *MockSubmissionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubmissionRepo) FindByImageRef(ctx context.Context, tx repository.Tx, imageRef string, statuses []model.SubmissionStatus) (*model.PaymentSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byID {
		if s.ImageRef != imageRef {
			continue
		}
		for _, st := range statuses {
			if s.Status == st {
				cp := *s
				return &cp, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubmissionRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.SubmissionStatus, reason string, resolvedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	if reason != "" {
		s.Reason = reason
	}
	if resolvedAt != nil {
		s.ResolvedAt = resolvedAt
	}
	return nil
}

func (m *MockSubmissionRepo) UpdateReview(ctx context.Context, tx repository.Tx, id string, status model.SubmissionStatus, note string, resolvedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Status = status
	s.ReviewNote = note
	if resolvedAt != nil {
		s.ResolvedAt = resolvedAt
	}
	return nil
}

func (m *MockSubmissionRepo) ListByStatus(ctx context.Context, tx repository.Tx, status model.SubmissionStatus, offset, limit int) ([]*model.PaymentSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentSubmission
	for _, s := range m.byID {
		if s.Status == status {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockSubmissionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

// ---------------- fingerprint repo ----------------

type MockFingerprintRepo struct {
	mu   sync.Mutex
	byID map[string]*model.ReceiptFingerprint
}

func NewMockFingerprintRepo() *MockFingerprintRepo {
	return &MockFingerprintRepo{byID: map[string]*model.ReceiptFingerprint{}}
}

func strEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m *MockFingerprintRepo) live(fp *model.ReceiptFingerprint) bool {
	return fp.Status == model.FingerprintStatusPending || fp.Status == model.FingerprintStatusApproved
}

func (m *MockFingerprintRepo) Save(ctx context.Context, tx repository.Tx, fp *model.ReceiptFingerprint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if fp.Reference != nil && m.live(fp) {
		for _, e := range m.byID {
			if m.live(e) && e.Reference != nil && *e.Reference == *fp.Reference {
				return domain.ErrAlreadyExists
			}
		}
	}
	cp := *fp
	m.byID[fp.ID] = &cp
	return nil
}

func (m *MockFingerprintRepo) FindMatch(ctx context.Context, tx repository.Tx, q *model.ReceiptFingerprint) (*model.ReceiptFingerprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byID {
		if !m.live(e) {
			continue
		}
		if q.Reference != nil && e.Reference != nil && *q.Reference == *e.Reference {
			cp := *e
			return &cp, nil
		}
		if q.TxDate != nil && q.AmountMinor != nil && q.SenderPhone != nil &&
			e.TxDate != nil && e.AmountMinor != nil && e.SenderPhone != nil &&
			*q.TxDate == *e.TxDate && *q.AmountMinor == *e.AmountMinor &&
			*q.SenderPhone == *e.SenderPhone && strEq(q.TxTime, e.TxTime) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockFingerprintRepo) FindBySubmission(ctx context.Context, tx repository.Tx, submissionID string) (*model.ReceiptFingerprint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byID {
		if e.SubmissionID == submissionID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockFingerprintRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.FingerprintStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Status = status
	return nil
}

// ---------------- attempt repo ----------------

type MockAttemptRepo struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMockAttemptRepo() *MockAttemptRepo {
	return &MockAttemptRepo{counts: map[string]int{}}
}

func (m *MockAttemptRepo) Increment(ctx context.Context, tx repository.Tx, scopeKey string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[scopeKey]++
	return m.counts[scopeKey], nil
}

func (m *MockAttemptRepo) Get(ctx context.Context, tx repository.Tx, scopeKey string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[scopeKey], nil
}

func (m *MockAttemptRepo) Reset(ctx context.Context, tx repository.Tx, scopeKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, scopeKey)
	return nil
}

// ---------------- enrollment repo ----------------

type MockEnrollmentRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Enrollment

	expireNow func() time.Time
}

func NewMockEnrollmentRepo() *MockEnrollmentRepo {
	return &MockEnrollmentRepo{byID: map[string]*model.Enrollment{}, expireNow: time.Now}
}

func (m *MockEnrollmentRepo) Save(ctx context.Context, tx repository.Tx, e *model.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.byID[e.ID] = &cp
	return nil
}

func (m *MockEnrollmentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *MockEnrollmentRepo) FindActive(ctx context.Context, tx repository.Tx, subjectPhone, courseID string) (*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *model.Enrollment
	for _, e := range m.byID {
		if e.SubjectPhone != subjectPhone || e.CourseID != courseID || e.Status != model.EnrollmentStatusActive {
			continue
		}
		if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
			latest = e
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *MockEnrollmentRepo) ListBySubmission(ctx context.Context, tx repository.Tx, submissionID string) ([]*model.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Enrollment
	for _, e := range m.byID {
		if e.SubmissionID == submissionID {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CourseID < out[j].CourseID })
	return out, nil
}

func (m *MockEnrollmentRepo) ExpireDue(ctx context.Context, tx repository.Tx) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.expireNow()
	n := 0
	for _, e := range m.byID {
		if e.Status == model.EnrollmentStatusActive && e.AccessEnd != nil && e.AccessEnd.Before(now) {
			e.Status = model.EnrollmentStatusExpired
			n++
		}
	}
	return n, nil
}

func (m *MockEnrollmentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.EnrollmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	e.Status = status
	return nil
}

// ---------------- course repo ----------------

type MockCourseRepo struct {
	mu   sync.Mutex
	byID map[string]*model.Course
}

func NewMockCourseRepo(courses ...*model.Course) *MockCourseRepo {
	m := &MockCourseRepo{byID: map[string]*model.Course{}}
	for _, c := range courses {
		cp := *c
		m.byID[c.ID] = &cp
	}
	return m
}

func (m *MockCourseRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCourseRepo) ListLive(ctx context.Context, tx repository.Tx) ([]*model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Course
	for _, c := range m.byID {
		if c.Live {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---------------- extractor / locker / notifier ----------------

type MockExtractor struct {
	Fields *adapter.ExtractedFields
	Usage  adapter.ExtractionUsage
	Err    error
	calls  int
}

func (m *MockExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*adapter.ExtractedFields, adapter.ExtractionUsage, error) {
	m.calls++
	if m.Err != nil {
		return nil, adapter.ExtractionUsage{}, m.Err
	}
	cp := *m.Fields
	return &cp, m.Usage, nil
}

func (m *MockExtractor) Name() string { return "mock" }

type MockLocker struct {
	mu   sync.Mutex
	held map[string]bool
	Fail bool
}

func NewMockLocker() *MockLocker { return &MockLocker{held: map[string]bool{}} }

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail || m.held[key] {
		return "", domain.ErrLockNotAcquired
	}
	m.held[key] = true
	return "tok-" + key, nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	return nil
}

type MockNotifier struct {
	mu       sync.Mutex
	decided  []*model.PaymentSubmission
	reviewed []*model.PaymentSubmission
}

func (m *MockNotifier) SubmissionDecided(ctx context.Context, sub *model.PaymentSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decided = append(m.decided, sub)
	return nil
}

func (m *MockNotifier) ManualReviewQueued(ctx context.Context, sub *model.PaymentSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviewed = append(m.reviewed, sub)
	return nil
}
