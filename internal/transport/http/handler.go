package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"rollcall/internal/attendance"
	"rollcall/internal/outcome"
	"rollcall/internal/registry/models"
	"rollcall/pkg/platform/httputil"
	"rollcall/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service,OutcomeLog

// Service defines the attendance operations the handler exposes.
type Service interface {
	Connect(ctx context.Context, address string) (attendance.SessionView, error)
	AddStudent(ctx context.Context, address, name string) (models.Student, error)
	RemoveStudent(ctx context.Context, address string) error
	MarkAttendance(ctx context.Context, address string) (models.Student, error)
	MarkOwnAttendance(ctx context.Context) (models.Student, error)
	Roster() attendance.RosterView
	Session() attendance.SessionView
	Resync(ctx context.Context) (attendance.RosterView, error)
}

// OutcomeLog serves recently completed transactions.
type OutcomeLog interface {
	Recent(n int) []outcome.Event
}

const (
	defaultOutcomeLimit = 50
	maxOutcomeLimit     = 500
)

// Handler wires registry endpoints to the attendance service.
type Handler struct {
	service Service
	log     OutcomeLog
	logger  *slog.Logger
	// timeout bounds how long a request waits for ledger confirmation. The
	// call is not cancelled when it expires; its outcome still lands.
	timeout time.Duration
	// submitLimit wraps the routes that submit ledger transactions.
	submitLimit func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithSubmitLimit applies mw to every route that submits a transaction.
func WithSubmitLimit(mw func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.submitLimit = mw
	}
}

// New constructs a handler. A nil log disables GET /outcomes.
func New(service Service, log OutcomeLog, logger *slog.Logger, timeout time.Duration, opts ...Option) *Handler {
	h := &Handler{service: service, log: log, logger: logger, timeout: timeout}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts registry endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/students", h.HandleRoster)
	r.Group(func(r chi.Router) {
		if h.submitLimit != nil {
			r.Use(h.submitLimit)
		}
		r.Post("/students", h.HandleAddStudent)
		r.Delete("/students/{address}", h.HandleRemoveStudent)
		r.Post("/students/{address}/attendance", h.HandleMarkAttendance)
		r.Post("/attendance", h.HandleMarkOwnAttendance)
	})

	r.Get("/session", h.HandleSession)
	r.Post("/session", h.HandleConnect)
	r.Post("/session/resync", h.HandleResync)

	if h.log != nil {
		r.Get("/outcomes", h.HandleOutcomes)
	}
}

// HandleRoster handles GET /students.
func (h *Handler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Roster())
}

// HandleAddStudent handles POST /students.
func (h *Handler) HandleAddStudent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[AddStudentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	student, err := h.service.AddStudent(ctx, req.Address, req.Name)
	if err != nil {
		h.fail(ctx, w, "add student failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, student)
}

// HandleRemoveStudent handles DELETE /students/{address}.
func (h *Handler) HandleRemoveStudent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	if err := h.service.RemoveStudent(ctx, chi.URLParam(r, "address")); err != nil {
		h.fail(ctx, w, "remove student failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMarkAttendance handles POST /students/{address}/attendance.
func (h *Handler) HandleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	student, err := h.service.MarkAttendance(ctx, chi.URLParam(r, "address"))
	if err != nil {
		h.fail(ctx, w, "mark attendance failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, student)
}

// HandleMarkOwnAttendance handles POST /attendance.
func (h *Handler) HandleMarkOwnAttendance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	student, err := h.service.MarkOwnAttendance(ctx)
	if err != nil {
		h.fail(ctx, w, "mark own attendance failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, student)
}

// HandleSession handles GET /session.
func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Session())
}

// HandleConnect handles POST /session.
func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ConnectRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	view, err := h.service.Connect(ctx, req.Address)
	if err != nil {
		h.fail(ctx, w, "connect failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// HandleResync handles POST /session/resync.
func (h *Handler) HandleResync(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.withTimeout(r.Context())
	defer cancel()

	roster, err := h.service.Resync(ctx)
	if err != nil {
		h.fail(ctx, w, "resync failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, roster)
}

// HandleOutcomes handles GET /outcomes?limit=n, newest first.
func (h *Handler) HandleOutcomes(w http.ResponseWriter, r *http.Request) {
	limit := defaultOutcomeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			httputil.WriteError(w, invalidLimit())
			return
		}
		limit = min(n, maxOutcomeLimit)
	}
	events := h.log.Recent(limit)
	if events == nil {
		events = []outcome.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, OutcomesResponse{Count: len(events), Outcomes: events})
}

func (h *Handler) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, h.timeout)
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
