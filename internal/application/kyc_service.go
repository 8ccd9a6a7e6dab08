package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/E-ugine/kyc-verification-backend/internal/domain"
	"github.com/E-ugine/kyc-verification-backend/internal/ports"
)

// KYCService drives the application lifecycle. It holds no state of its own:
// every decision is taken against the repository.
type KYCService struct {
	repo    ports.ApplicationRepository
	docs    ports.DocumentStore
	cache   ports.StatusCache
	metrics ports.WorkflowMetrics
	logger  ports.Logger
	now     func() time.Time
}

type Option func(*KYCService)

func WithStatusCache(cache ports.StatusCache) Option {
	return func(s *KYCService) { s.cache = cache }
}

func WithMetrics(m ports.WorkflowMetrics) Option {
	return func(s *KYCService) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *KYCService) { s.now = now }
}

func NewKYCService(repo ports.ApplicationRepository, docs ports.DocumentStore, logger ports.Logger, opts ...Option) *KYCService {
	s := &KYCService{
		repo:    repo,
		docs:    docs,
		metrics: noopMetrics{},
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type pendingDocument struct {
	bucket domain.Bucket
	doc    domain.Document
	assign func(ref string)
}

func (s *KYCService) Submit(ctx context.Context, sub domain.Submission) (domain.Application, error) {
	if err := validateStruct(sub); err != nil {
		s.metrics.SubmissionFailed("validation")
		return domain.Application{}, err
	}
	dob, err := domain.ParseDate(sub.DateOfBirth)
	if err != nil {
		s.metrics.SubmissionFailed("validation")
		return domain.Application{}, err
	}

	_, err = s.repo.GetByIDNumber(ctx, sub.IDNumber)
	switch {
	case err == nil:
		s.metrics.SubmissionFailed("duplicate")
		return domain.Application{}, domain.ErrDuplicateIdentifier
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Application{}, err
	}

	app := domain.Application{
		FullName:    sub.FullName,
		DateOfBirth: dob,
		IDNumber:    sub.IDNumber,
		Country:     sub.Country,
		Address:     sub.Address,
		Status:      domain.StatusPending,
	}

	// Every document is validated before any of them is written.
	var docs []pendingDocument
	if sub.Selfie != nil {
		doc, err := s.docs.Validate("selfie", *sub.Selfie)
		if err != nil {
			s.metrics.SubmissionFailed("upload")
			return domain.Application{}, err
		}
		docs = append(docs, pendingDocument{bucket: domain.BucketSelfies, doc: doc, assign: func(ref string) { app.SelfieRef = &ref }})
	}
	if sub.IDDocument != nil {
		doc, err := s.docs.Validate("id_doc", *sub.IDDocument)
		if err != nil {
			s.metrics.SubmissionFailed("upload")
			return domain.Application{}, err
		}
		docs = append(docs, pendingDocument{bucket: domain.BucketIDDocs, doc: doc, assign: func(ref string) { app.IDDocumentRef = &ref }})
	}

	saved := make([]string, 0, len(docs))
	for _, d := range docs {
		ref, err := s.docs.Save(ctx, d.bucket, d.doc)
		if err != nil {
			s.discard(ctx, saved)
			s.metrics.SubmissionFailed("upload")
			return domain.Application{}, err
		}
		saved = append(saved, ref)
		d.assign(ref)
	}

	app.CreatedAt = s.now()
	created, err := s.repo.Create(ctx, app)
	if err != nil {
		s.discard(ctx, saved)
		if errors.Is(err, domain.ErrDuplicateIdentifier) {
			s.metrics.SubmissionFailed("duplicate")
			return domain.Application{}, err
		}
		s.metrics.SubmissionFailed("persistence")
		s.logger.Error(ctx, "failed to persist kyc application", "id_number", sub.IDNumber, "error", err)
		return domain.Application{}, err
	}
	s.metrics.SubmissionAccepted()
	s.logger.Info(ctx, "kyc application submitted", "application_id", created.ID, "documents", len(saved))
	return created, nil
}

func (s *KYCService) discard(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if err := s.docs.Delete(ctx, ref); err != nil {
			s.logger.Warn(ctx, "failed to remove orphaned document", "ref", ref, "error", err)
		}
	}
}

// Review moves a pending application to a terminal status. A reason is
// required when rejecting and refused when approving.
func (s *KYCService) Review(ctx context.Context, id int64, action domain.Status, reason string) (domain.Application, error) {
	reason = strings.TrimSpace(reason)
	var rejection *string
	switch action {
	case domain.StatusApproved:
		if reason != "" {
			return domain.Application{}, domain.NewFieldError("rejection_reason", "must be empty when approving")
		}
	case domain.StatusRejected:
		if reason == "" {
			return domain.Application{}, domain.NewFieldError("rejection_reason", "is required when rejecting an application")
		}
		rejection = &reason
	default:
		return domain.Application{}, domain.NewFieldError("action", "must be approved or rejected")
	}

	updated, err := s.repo.UpdateStatus(ctx, domain.StatusUpdate{
		ID:              id,
		From:            domain.StatusPending,
		To:              action,
		RejectionReason: rejection,
		UpdatedAt:       s.now(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			s.logger.Warn(ctx, "review rejected: application already decided", "application_id", id)
		}
		return domain.Application{}, err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, updated.IDNumber); err != nil {
			s.logger.Warn(ctx, "failed to invalidate status cache", "application_id", id, "error", err)
		}
	}
	s.metrics.Reviewed(action)
	s.logger.Info(ctx, "kyc application reviewed", "application_id", id, "status", string(action))
	return updated, nil
}

func (s *KYCService) GetByID(ctx context.Context, id int64) (domain.Application, error) {
	if id <= 0 {
		return domain.Application{}, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *KYCService) GetByIDNumber(ctx context.Context, idNumber string) (domain.Application, error) {
	if idNumber == "" {
		return domain.Application{}, domain.ErrNotFound
	}
	return s.repo.GetByIDNumber(ctx, idNumber)
}

// Status serves the public status lookup, reading through the status cache
// when one is configured. Only decided applications are cached, since a pending
// view read before a concurrent review would outlive the decision. Cache
// failures degrade to a repository read.
func (s *KYCService) Status(ctx context.Context, idNumber string) (domain.StatusView, error) {
	if idNumber == "" {
		return domain.StatusView{}, domain.ErrNotFound
	}
	if s.cache != nil {
		view, ok, err := s.cache.Get(ctx, idNumber)
		if err != nil {
			s.logger.Warn(ctx, "status cache read failed", "error", err)
		} else if ok {
			return view, nil
		}
	}
	app, err := s.repo.GetByIDNumber(ctx, idNumber)
	if err != nil {
		return domain.StatusView{}, err
	}
	view := app.StatusView()
	if s.cache != nil && view.Status != domain.StatusPending {
		if err := s.cache.Set(ctx, view); err != nil {
			s.logger.Warn(ctx, "status cache write failed", "error", err)
		}
	}
	return view, nil
}

func (s *KYCService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Application, error) {
	if err := validateStruct(filter); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter)
}

func (s *KYCService) Stats(ctx context.Context) (domain.Stats, error) {
	stats, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	stats.Total = stats.Approved + stats.Rejected + stats.Pending
	return stats, nil
}

func (s *KYCService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

type noopMetrics struct{}

func (noopMetrics) SubmissionAccepted()     {}
func (noopMetrics) SubmissionFailed(string) {}
func (noopMetrics) Reviewed(domain.Status)  {}
func (noopMetrics) LoginAttempt(bool)       {}
