package api

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"course-receipt-verification/internal/domain"
	"course-receipt-verification/internal/domain/model"
	"course-receipt-verification/internal/domain/normalize"
	"course-receipt-verification/internal/infra/metrics"
	red "course-receipt-verification/internal/infra/redis"
	"course-receipt-verification/internal/usecase"
)

type validateResponse struct {
	Valid           bool       `json:"valid"`
	Reason          string     `json:"reason,omitempty"`
	Message         string     `json:"message,omitempty"`
	SubmissionID    string     `json:"submission_id,omitempty"`
	AutoApproved    bool       `json:"auto_approved,omitempty"`
	ReadyToPurchase bool       `json:"ready_to_purchase,omitempty"`
	ManualReview    bool       `json:"manual_review,omitempty"`
	AccessEnd       *time.Time `json:"access_end,omitempty"`
}

type confirmRequest struct {
	SubmissionID string `json:"submission_id"`
}

type confirmResponse struct {
	SubmissionID    string     `json:"submission_id"`
	Status          string     `json:"status"`
	AccessEnd       *time.Time `json:"access_end,omitempty"`
	AlreadyApproved bool       `json:"already_approved,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	req, err := s.parseValidateRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	phone := normalize.Phone(req.CustomerPhone)
	if phone == "" {
		http.Error(w, "customer_phone is required", http.StatusBadRequest)
		return
	}
	if s.limiter != nil {
		ok, err := s.limiter.Allow(r.Context(), red.SubmitterKey(phone), s.policy.RateLimitPerPhone, s.policy.RateLimitWindow)
		if err != nil {
			s.log.Warn().Err(err).Msg("rate limiter unavailable")
		} else if !ok {
			http.Error(w, "Too many attempts. Try again later.", http.StatusTooManyRequests)
			return
		}
	}

	out, err := s.verifyUC.Validate(r.Context(), req)
	if err != nil {
		s.writeValidateError(w, err)
		metrics.IncValidate("unavailable", "")
		metrics.ObserveValidateDuration("unavailable", time.Since(start).Seconds())
		return
	}

	outcome := "rejected"
	switch {
	case out.AutoApproved:
		outcome = "auto_approved"
	case out.ReadyToPurchase:
		outcome = "pending_confirmation"
	case out.ManualReview:
		outcome = "manual_review"
		metrics.IncEscalation()
	}
	metrics.IncValidate(outcome, string(out.Reason))
	metrics.ObserveValidateDuration(outcome, time.Since(start).Seconds())
	recordReconciled(out.Plan, out.Results)

	writeJSON(w, http.StatusOK, validateResponse{
		Valid:           out.Valid,
		Reason:          string(out.Reason),
		Message:         out.Message,
		SubmissionID:    out.SubmissionID,
		AutoApproved:    out.AutoApproved,
		ReadyToPurchase: out.ReadyToPurchase,
		ManualReview:    out.ManualReview,
		AccessEnd:       out.AccessEnd,
	})
}

// parseValidateRequest accepts multipart uploads (field "receipt") and JSON
// bodies with a base64 image. The image ref is the content hash, which is what
// the duplicate-image screen compares.
func (s *Server) parseValidateRequest(r *http.Request) (*usecase.ValidateRequest, error) {
	ct := r.Header.Get("Content-Type")

	var (
		req   usecase.ValidateRequest
		image []byte
		mime  string
	)

	if strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(s.maxImage + 1<<20); err != nil {
			return nil, errors.New("invalid multipart body")
		}
		f, hdr, err := r.FormFile("receipt")
		if err != nil {
			return nil, errors.New("receipt image is required")
		}
		defer f.Close()
		image, err = io.ReadAll(io.LimitReader(f, s.maxImage+1))
		if err != nil {
			return nil, errors.New("failed to read receipt image")
		}
		mime = hdr.Header.Get("Content-Type")

		req.TargetID = r.FormValue("target_id")
		req.Plan = model.PlanType(r.FormValue("plan"))
		req.CustomerName = r.FormValue("customer_name")
		req.CustomerPhone = r.FormValue("customer_phone")
		req.CustomerEmail = r.FormValue("customer_email")
		req.PaymentMethod = r.FormValue("payment_method")
		req.Notes = r.FormValue("notes")
		req.DeclaredAmount, _ = strconv.ParseInt(r.FormValue("declared_amount"), 10, 64)
		req.IsRenewal, _ = strconv.ParseBool(r.FormValue("is_renewal"))
		req.IsUpgrade, _ = strconv.ParseBool(r.FormValue("is_upgrade"))
	} else {
		var body struct {
			TargetID       string `json:"target_id"`
			Plan           string `json:"plan"`
			CustomerName   string `json:"customer_name"`
			CustomerPhone  string `json:"customer_phone"`
			CustomerEmail  string `json:"customer_email"`
			PaymentMethod  string `json:"payment_method"`
			DeclaredAmount int64  `json:"declared_amount"`
			Notes          string `json:"notes"`
			IsRenewal      bool   `json:"is_renewal"`
			IsUpgrade      bool   `json:"is_upgrade"`
			ImageBase64    string `json:"image_base64"`
			ImageMime      string `json:"image_mime"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, s.maxImage*2)).Decode(&body); err != nil {
			return nil, errors.New("invalid request body")
		}
		var err error
		image, err = base64.StdEncoding.DecodeString(body.ImageBase64)
		if err != nil || len(image) == 0 {
			return nil, errors.New("receipt image is required")
		}
		mime = body.ImageMime

		req.TargetID = body.TargetID
		req.Plan = model.PlanType(body.Plan)
		req.CustomerName = body.CustomerName
		req.CustomerPhone = body.CustomerPhone
		req.CustomerEmail = body.CustomerEmail
		req.PaymentMethod = body.PaymentMethod
		req.DeclaredAmount = body.DeclaredAmount
		req.Notes = body.Notes
		req.IsRenewal = body.IsRenewal
		req.IsUpgrade = body.IsUpgrade
	}

	if int64(len(image)) > s.maxImage {
		return nil, errors.New("receipt image too large")
	}
	if req.TargetID == "" {
		return nil, errors.New("target_id is required")
	}
	if !req.Plan.Valid() {
		return nil, errors.New("unknown plan")
	}
	if mime == "" {
		mime = "image/jpeg"
	}

	sum := sha256.Sum256(image)
	req.Image = image
	req.ImageMime = mime
	req.ImageRef = hex.EncodeToString(sum[:])
	return &req, nil
}

func (s *Server) writeValidateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		http.Error(w, "invalid submission", http.StatusBadRequest)
	case errors.Is(err, domain.ErrExtractionUnavailable), errors.Is(err, domain.ErrLockNotAcquired):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"retryable": true,
			"message":   model.ReasonExtractionUnavailable.Message(),
		})
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var body confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.SubmissionID == "" {
		http.Error(w, "submission_id is required", http.StatusBadRequest)
		return
	}

	res, err := s.verifyUC.Confirm(r.Context(), body.SubmissionID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.NotFound(w, r)
		case errors.Is(err, domain.ErrSubmissionFinal), errors.Is(err, domain.ErrSubmissionNotReviewable):
			http.Error(w, "submission cannot be confirmed", http.StatusConflict)
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, "invalid submission id", http.StatusBadRequest)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	recordReconciled(res.Plan, res.Results)
	writeJSON(w, http.StatusOK, confirmResponse{
		SubmissionID:    res.SubmissionID,
		Status:          string(res.Status),
		AccessEnd:       res.AccessEnd,
		AlreadyApproved: res.AlreadyApproved,
	})
}

// recordReconciled mirrors reconcile outcomes into the enrollment counter.
func recordReconciled(plan model.PlanType, results []usecase.ReconcileResult) {
	for _, r := range results {
		switch {
		case r.Created:
			metrics.IncReconciled(string(plan), "created")
		case r.Extended:
			metrics.IncReconciled(string(plan), "extended")
		default:
			metrics.IncReconciled(string(plan), "noop")
		}
	}
}

// ===== Admin =====

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !s.auth.CheckPassword(body.Password) {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	token, err := s.auth.Mint(w)
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, _ *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReviewList(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	subs, err := s.reviewUC.ListPending(r.Context(), offset, limit)
	if err != nil {
		http.Error(w, "failed to list review queue", http.StatusInternalServerError)
		return
	}
	if offset == 0 {
		metrics.SetReviewQueueDepth(len(subs))
	}

	writeJSON(w, http.StatusOK, struct {
		Data   []*model.PaymentSubmission `json:"data"`
		Offset int                        `json:"offset"`
		Limit  int                        `json:"limit"`
	}{Data: subs, Offset: offset, Limit: limit})
}

func (s *Server) handleReviewVerdict(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var body struct {
		Approve bool   `json:"approve"`
		Note    string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res, err := s.reviewUC.Review(r.Context(), id, body.Approve, body.Note)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.NotFound(w, r)
		case errors.Is(err, domain.ErrSubmissionNotReviewable):
			http.Error(w, "submission is not awaiting review", http.StatusConflict)
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, "invalid submission id", http.StatusBadRequest)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	if body.Approve {
		metrics.IncReviewVerdict("approved")
	} else {
		metrics.IncReviewVerdict("rejected")
	}
	recordReconciled(res.Plan, res.Results)
	writeJSON(w, http.StatusOK, confirmResponse{
		SubmissionID: res.SubmissionID,
		Status:       string(res.Status),
		AccessEnd:    res.AccessEnd,
	})
}

func (s *Server) handleSubmissionDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.reviewUC.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.NotFound(w, r)
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, "invalid submission id", http.StatusBadRequest)
		default:
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}
	metrics.IncReviewVerdict("deleted")
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
