package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"agrokoperasi/backend/internal/audit"
	"agrokoperasi/backend/internal/cache"
	"agrokoperasi/backend/internal/domain"
	"agrokoperasi/backend/internal/export"
	"agrokoperasi/backend/internal/metrics"
	"agrokoperasi/backend/internal/store"
)

var (
	ErrAccessDenied       = errors.New("access denied")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Audit          *audit.Recorder
	Reports        cache.ReportCache
	ReportCacheTTL time.Duration
	Archiver       export.Archiver
	Metrics        *metrics.Metrics
	Logger         *zap.Logger
	LoginDomain    string
}

type Service struct {
	repo        store.Repository
	audit       *audit.Recorder
	reports     cache.ReportCache
	reportTTL   time.Duration
	archiver    export.Archiver
	metrics     *metrics.Metrics
	log         *zap.Logger
	loginDomain string
	now         func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewRecorder(opts.Logger.Named("audit"), opts.Metrics, repo)
	}
	if opts.Reports == nil {
		opts.Reports = cache.NoopReportCache{}
	}
	if opts.ReportCacheTTL <= 0 {
		opts.ReportCacheTTL = 30 * time.Second
	}
	if opts.Archiver == nil {
		opts.Archiver = export.NoopArchiver{}
	}

	return &Service{
		repo:        repo,
		audit:       opts.Audit,
		reports:     opts.Reports,
		reportTTL:   opts.ReportCacheTTL,
		archiver:    opts.Archiver,
		metrics:     opts.Metrics,
		log:         opts.Logger,
		loginDomain: strings.TrimPrefix(strings.TrimSpace(opts.LoginDomain), "@"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) actor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.UserID == "" {
		return domain.Actor{}, fmt.Errorf("%w: authentication required", ErrAccessDenied)
	}
	return actor, nil
}

func (s *Service) record(ctx context.Context, action string, entity string, entityID string, oldValue any, newValue any, details string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{UserID: "system", Username: "system", Role: "system"}
	}
	s.audit.Record(ctx, audit.Entry(actor, action, entity, entityID, oldValue, newValue, details))
}

// observe counts a workflow outcome. Domain rejections are kept apart from
// infrastructure failures.
func (s *Service) observe(workflow string, err error) {
	switch {
	case err == nil:
		s.metrics.ObserveWorkflow(workflow, metrics.OutcomeOK)
	case isDomainError(err):
		s.metrics.ObserveWorkflow(workflow, metrics.OutcomeRejected)
	default:
		s.metrics.ObserveWorkflow(workflow, metrics.OutcomeError)
		s.log.Error("workflow failed", zap.String("workflow", workflow), zap.Error(err))
	}
}

func isDomainError(err error) bool {
	for _, target := range []error{
		store.ErrNotFound, store.ErrInsufficientStock, store.ErrInsufficientQuantity, store.ErrInvalidState,
		store.ErrValidation, store.ErrEmptyOrder, store.ErrNotAvailable, ErrAccessDenied,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Service) invalidateReports(ctx context.Context, prefixes ...string) {
	for _, prefix := range prefixes {
		if err := s.reports.DeletePrefix(ctx, prefix); err != nil {
			s.log.Warn("report cache invalidation failed", zap.String("prefix", prefix), zap.Error(err))
		}
	}
}

// parseDate accepts a calendar date or a full RFC3339 timestamp.
func parseDate(field string, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s is required", store.ErrValidation, field)
	}
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %s must be YYYY-MM-DD or RFC3339", store.ErrValidation, field)
}

func parseOptionalDate(field string, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	t, err := parseDate(field, value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func requireNonNegative(field string, value decimal.Decimal) error {
	if value.IsNegative() {
		return fmt.Errorf("%w: %s must not be negative", store.ErrValidation, field)
	}
	return nil
}

func requirePositive(field string, value decimal.Decimal) error {
	if !value.IsPositive() {
		return fmt.Errorf("%w: %s must be greater than zero", store.ErrValidation, field)
	}
	return nil
}

func requireQuantityScale(field string, value decimal.Decimal) error {
	if !store.FitsQuantityScale(value) {
		return fmt.Errorf("%w: %s allows at most %d decimal places", store.ErrValidation, field, store.QuantityScale)
	}
	return nil
}

func hasRole(role string, roles ...string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func defaultString(value string, fallback string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	return value
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	return s.audit.List(ctx, limit)
}
