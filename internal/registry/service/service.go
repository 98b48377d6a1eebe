// Package service orchestrates name registration: validate, check
// uniqueness, resolve the parent, split the payment, move funds, commit the
// record, and notify — all or nothing. Any failure before the final commit
// leaves the registry exactly as it was.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"registrar/internal/events"
	"registrar/internal/registry/fees"
	regmetrics "registrar/internal/registry/metrics"
	"registrar/internal/registry/models"
	"registrar/internal/registry/store"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
	"registrar/pkg/requestcontext"
)

// RegistryStore owns the registry state. Reserve/Commit/Release bracket the
// fund transfers so a failed registration can be rolled back before it
// becomes visible.
type RegistryStore interface {
	Exists(ctx context.Context, name models.Name) (bool, error)
	OwnerOf(ctx context.Context, name models.Name) (id.AccountID, error)
	Reserve(ctx context.Context, name models.Name) error
	Commit(ctx context.Context, name models.Name, owner id.AccountID, at time.Time) (models.DomainRecord, error)
	Release(ctx context.Context, name models.Name) error
	Page(ctx context.Context, start, end int) ([]models.Name, error)
	Count(ctx context.Context) (int, error)
	Fee(ctx context.Context) (int64, error)
	SetFee(ctx context.Context, fee int64) error
}

// Bank is the external fund-transfer collaborator.
type Bank interface {
	Transfer(ctx context.Context, from, to id.AccountID, amount int64) error
}

// EventPublisher receives the registry's observable notifications.
type EventPublisher interface {
	Emit(ctx context.Context, event events.Event) error
}

// OwnerCache fronts OwnerOf for the public read path.
type OwnerCache interface {
	Get(ctx context.Context, name models.Name) (id.AccountID, bool)
	Put(ctx context.Context, name models.Name, owner id.AccountID)
}

// Service is the registration orchestrator.
type Service struct {
	store    RegistryStore
	bank     Bank
	treasury id.AccountID
	feeAdmin id.AccountID

	cache   OwnerCache
	events  EventPublisher
	metrics *regmetrics.Metrics
	logger  *slog.Logger
	tracer  trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithEventPublisher(publisher EventPublisher) Option {
	return func(s *Service) { s.events = publisher }
}

func WithMetrics(m *regmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithOwnerCache(c OwnerCache) Option {
	return func(s *Service) { s.cache = c }
}

// New constructs the Service. The treasury receives the non-parent share of
// every payment; feeAdmin is the only principal allowed to change the fee.
// Both must be real identities.
func New(registry RegistryStore, bank Bank, treasury, feeAdmin id.AccountID, opts ...Option) (*Service, error) {
	if treasury.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "treasury identity cannot be zero")
	}
	if feeAdmin.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "fee admin identity cannot be zero")
	}
	s := &Service{
		store:    registry,
		bank:     bank,
		treasury: treasury,
		feeAdmin: feeAdmin,
		tracer:   otel.Tracer("registrar/registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register claims rawName for caller against payment. The sequence is
// reserve → transfer → commit: the slot is held before any money moves, and
// the reservation is released (with a compensating refund of the parent
// share if needed) when a transfer fails. Only a fully paid registration is
// ever committed.
func (s *Service) Register(ctx context.Context, rawName string, payment int64, caller id.AccountID) (models.DomainRecord, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "registry.register",
		trace.WithAttributes(attribute.String("registry.name", rawName)))
	defer span.End()

	record, err := s.register(ctx, rawName, payment, caller)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if s.metrics != nil {
			s.metrics.IncrementRegistrationFailure(string(dErrors.CodeOf(err)))
		}
		return models.DomainRecord{}, err
	}

	span.SetAttributes(
		attribute.Int("registry.level", record.Level),
		attribute.Int("registry.position", record.Position),
	)
	span.SetStatus(otelcodes.Ok, "")
	if s.metrics != nil {
		s.metrics.IncrementNamesRegistered()
		s.metrics.ObserveRegister(start)
	}
	return record, nil
}

func (s *Service) register(ctx context.Context, rawName string, payment int64, caller id.AccountID) (models.DomainRecord, error) {
	if caller.IsNil() {
		return models.DomainRecord{}, dErrors.New(dErrors.CodeValidation, "caller identity cannot be zero")
	}

	name, err := models.ParseName(rawName)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return models.DomainRecord{}, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return models.DomainRecord{}, err
	}

	exists, err := s.store.Exists(ctx, name)
	if err != nil {
		return models.DomainRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check name availability")
	}
	if exists {
		return models.DomainRecord{}, dErrors.Newf(dErrors.CodeConflict, "name %q is already registered", name)
	}

	fee, err := s.store.Fee(ctx)
	if err != nil {
		return models.DomainRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load fee")
	}
	// Overpayment is accepted and forwarded whole into the split.
	if payment < fee {
		return models.DomainRecord{}, dErrors.Newf(dErrors.CodeBadRequest,
			"payment %d below registration fee %d", payment, fee)
	}

	var parentOwner id.AccountID
	if parent, ok := name.Parent(); ok {
		parentOwner, err = s.store.OwnerOf(ctx, parent)
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.DomainRecord{}, dErrors.Newf(dErrors.CodeNotFound,
				"parent name %q is not registered", parent)
		}
		if err != nil {
			return models.DomainRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve parent owner")
		}
	}

	split := fees.Split(payment, name.Level())

	if err := s.store.Reserve(ctx, name); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return models.DomainRecord{}, dErrors.Newf(dErrors.CodeConflict, "name %q is already registered", name)
		}
		return models.DomainRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve name")
	}

	if err := s.transfer(ctx, name, caller, parentOwner, split); err != nil {
		return models.DomainRecord{}, err
	}

	record, err := s.store.Commit(ctx, name, caller, requestcontext.Now(ctx))
	if err != nil {
		// Funds already moved; a failed commit here is a store fault, not a
		// business outcome, and must be surfaced loudly.
		s.logError(ctx, "commit failed after successful transfers",
			"name", name.String(), "error", err)
		return models.DomainRecord{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to commit registration")
	}

	if s.cache != nil {
		s.cache.Put(ctx, name, caller)
	}
	s.emit(ctx, events.Event{
		Type:  events.TypeNameRegistered,
		Name:  name.String(),
		Owner: caller.String(),
	})
	s.logInfo(ctx, "name registered",
		"name", name.String(),
		"owner", caller.String(),
		"level", record.Level,
		"payment", payment,
	)
	return record, nil
}

// transfer moves the two shares, rolling back on failure: the reservation is
// always released, and a parent share already paid is refunded before the
// error surfaces.
func (s *Service) transfer(ctx context.Context, name models.Name, caller, parentOwner id.AccountID, split fees.Distribution) error {
	if split.ParentShare > 0 {
		if err := s.bank.Transfer(ctx, caller, parentOwner, split.ParentShare); err != nil {
			s.release(ctx, name)
			return dErrors.Wrap(err, dErrors.CodePaymentFailed, "transfer to parent owner failed")
		}
	}
	if err := s.bank.Transfer(ctx, caller, s.treasury, split.TreasuryShare); err != nil {
		if split.ParentShare > 0 {
			if refundErr := s.bank.Transfer(ctx, parentOwner, caller, split.ParentShare); refundErr != nil {
				s.logError(ctx, "refund of parent share failed",
					"name", name.String(), "error", refundErr)
			}
		}
		s.release(ctx, name)
		return dErrors.Wrap(err, dErrors.CodePaymentFailed, "transfer to treasury failed")
	}
	return nil
}

func (s *Service) release(ctx context.Context, name models.Name) {
	if err := s.store.Release(ctx, name); err != nil {
		s.logError(ctx, "failed to release reservation",
			"name", name.String(), "error", err)
	}
}

// UpdateFee replaces the registration fee. Only the fee admin may call it.
func (s *Service) UpdateFee(ctx context.Context, newFee int64, caller id.AccountID) error {
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "caller identity cannot be zero")
	}
	if caller != s.feeAdmin {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not allowed to update the fee")
	}
	if err := s.store.SetFee(ctx, newFee); err != nil {
		if errors.Is(err, store.ErrFeeOutOfRange) {
			return dErrors.Newf(dErrors.CodeOutOfRange,
				"fee must be within [1, %d], got %d", models.MaxFee, newFee)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update fee")
	}

	if s.metrics != nil {
		s.metrics.IncrementFeeUpdates()
	}
	s.emit(ctx, events.Event{
		Type: events.TypeFeeUpdated,
		Fee:  newFee,
	})
	s.logInfo(ctx, "fee updated", "fee", newFee)
	return nil
}

// Owner resolves the committed owner of rawName, consulting the cache first.
func (s *Service) Owner(ctx context.Context, rawName string) (id.AccountID, error) {
	name, err := models.ParseName(rawName)
	if err != nil {
		return id.AccountID{}, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}

	if s.cache != nil {
		if owner, ok := s.cache.Get(ctx, name); ok {
			if s.metrics != nil {
				s.metrics.OwnerCacheHits.Inc()
			}
			return owner, nil
		}
		if s.metrics != nil {
			s.metrics.OwnerCacheMisses.Inc()
		}
	}

	owner, err := s.store.OwnerOf(ctx, name)
	if errors.Is(err, sentinel.ErrNotFound) {
		return id.AccountID{}, dErrors.Newf(dErrors.CodeNotFound, "name %q is not registered", name)
	}
	if err != nil {
		return id.AccountID{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve owner")
	}
	if s.cache != nil {
		s.cache.Put(ctx, name, owner)
	}
	return owner, nil
}

// ListNames returns the registered names in slots [start, end) of
// registration order.
func (s *Service) ListNames(ctx context.Context, start, end int) ([]models.Name, error) {
	names, err := s.store.Page(ctx, start, end)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrInvalidRange):
			return nil, dErrors.Newf(dErrors.CodeBadRequest,
				"invalid range [%d, %d): start must be less than end", start, end)
		case errors.Is(err, store.ErrOutOfBounds):
			count, countErr := s.store.Count(ctx)
			if countErr != nil {
				return nil, dErrors.Wrap(countErr, dErrors.CodeInternal, "failed to count names")
			}
			return nil, dErrors.Newf(dErrors.CodeOutOfRange,
				"range end %d exceeds registered count %d", end, count)
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list names")
		}
	}
	return names, nil
}

// CurrentFee exposes the price callers must cover.
func (s *Service) CurrentFee(ctx context.Context) (int64, error) {
	fee, err := s.store.Fee(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load fee")
	}
	return fee, nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Emit(ctx, event); err != nil {
		s.logError(ctx, "failed to emit event", "type", string(event.Type), "error", err)
	}
}

func (s *Service) logInfo(ctx context.Context, msg string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, msg, attributes...)
}

func (s *Service) logError(ctx context.Context, msg string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	s.logger.ErrorContext(ctx, msg, attributes...)
}
