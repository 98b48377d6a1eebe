package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"registrar/internal/platform/middleware"
	"registrar/internal/registry/models"
	id "registrar/pkg/domain"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/requestcontext"
)

// Service defines the registry operations the transport layer needs.
type Service interface {
	Register(ctx context.Context, rawName string, payment int64, caller id.AccountID) (models.DomainRecord, error)
	UpdateFee(ctx context.Context, newFee int64, caller id.AccountID) error
	Owner(ctx context.Context, rawName string) (id.AccountID, error)
	ListNames(ctx context.Context, start, end int) ([]models.Name, error)
	CurrentFee(ctx context.Context) (int64, error)
}

// Handler wires registry endpoints onto a chi router. It delegates to the
// service without embedding business logic so transport concerns stay
// isolated.
type Handler struct {
	logger   *slog.Logger
	registry Service
	resolver middleware.CallerResolver
}

// New creates a registry Handler.
func New(registry Service, resolver middleware.CallerResolver, logger *slog.Logger) *Handler {
	return &Handler{
		logger:   logger,
		registry: registry,
		resolver: resolver,
	}
}

// Register mounts the registry routes. Reads are public; mutations require
// an authenticated caller.
func (h *Handler) Register(r chi.Router) {
	router := chi.NewRouter()
	router.Use(middleware.Recovery(h.logger))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(h.logger))
	router.Use(middleware.ContentTypeJSON)

	router.Get("/registry/names", h.handleListNames)
	router.Get("/registry/names/{name}/owner", h.handleGetOwner)
	router.Get("/registry/fee", h.handleGetFee)

	router.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireAuth(h.resolver, h.logger))
		authed.Post("/registry/names", h.handleRegisterName)
		authed.Put("/registry/fee", h.handleUpdateFee)
	})

	r.Mount("/", router)
}

type registerNameRequest struct {
	Name    string `json:"name"`
	Payment int64  `json:"payment"`
}

func (h *Handler) handleRegisterName(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := requestcontext.CallerID(ctx)
	if caller.IsNil() {
		// Unreachable when RequireAuth is mounted; guard anyway.
		h.logger.ErrorContext(ctx, "caller missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(ctx))
		writeError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req registerNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	record, err := h.registry.Register(ctx, req.Name, req.Payment, caller)
	if err != nil {
		h.logFailure(ctx, "register name failed", err)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(record)
}

func (h *Handler) handleGetOwner(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rawName := chi.URLParam(r, "name")

	owner, err := h.registry.Owner(ctx, rawName)
	if err != nil {
		h.logFailure(ctx, "owner lookup failed", err)
		writeError(w, err)
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]string{
		"name":  rawName,
		"owner": owner.String(),
	})
}

func (h *Handler) handleListNames(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	start, err := queryInt(r, "start")
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "start must be an integer"))
		return
	}
	end, err := queryInt(r, "end")
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "end must be an integer"))
		return
	}

	names, err := h.registry.ListNames(ctx, start, end)
	if err != nil {
		h.logFailure(ctx, "list names failed", err)
		writeError(w, err)
		return
	}

	out := make([]string, len(names))
	for i, name := range names {
		out[i] = name.String()
	}
	_ = json.NewEncoder(w).Encode(map[string][]string{"names": out})
}

type updateFeeRequest struct {
	Fee int64 `json:"fee"`
}

func (h *Handler) handleUpdateFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	caller := requestcontext.CallerID(ctx)
	if caller.IsNil() {
		writeError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	var req updateFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	if err := h.registry.UpdateFee(ctx, req.Fee, caller); err != nil {
		h.logFailure(ctx, "fee update failed", err)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetFee(w http.ResponseWriter, r *http.Request) {
	fee, err := h.registry.CurrentFee(r.Context())
	if err != nil {
		h.logFailure(r.Context(), "fee lookup failed", err)
		writeError(w, err)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]int64{"fee": fee})
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	level := slog.LevelWarn
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"error", err.Error(),
		"request_id", requestcontext.RequestID(ctx),
	)
}

func queryInt(r *http.Request, key string) (int, error) {
	return strconv.Atoi(r.URL.Query().Get(key))
}

// writeError centralizes domain error translation to HTTP responses, keeping
// the JSON error envelope consistent across endpoints.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   string(code),
		"message": dErrors.MessageOf(err),
	})
}
