package registry

import (
	"log/slog"

	"registrar/internal/platform/middleware"
	"registrar/internal/registry/handler"
	"registrar/internal/registry/service"
	id "registrar/pkg/domain"
)

// Service exposes name registration, fee management, and enumeration.
type Service = service.Service

// Handler wires HTTP endpoints to the registry service.
type Handler = handler.Handler

// NewService constructs the registry service with required dependencies.
func NewService(store service.RegistryStore, bank service.Bank, treasury, feeAdmin id.AccountID, opts ...service.Option) (*Service, error) {
	return service.New(store, bank, treasury, feeAdmin, opts...)
}

// NewHandler constructs an HTTP handler for registry routes.
func NewHandler(s *Service, resolver middleware.CallerResolver, logger *slog.Logger) *Handler {
	return handler.New(s, resolver, logger)
}
