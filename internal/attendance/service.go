// Package attendance orchestrates the client flows: connecting an account,
// registry mutations through the gateway, and the cached roster and session
// views the transport layer serves.
package attendance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rollcall/internal/cache"
	"rollcall/internal/gateway"
	"rollcall/internal/ledger"
	"rollcall/internal/registry/models"
	"rollcall/internal/session"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Gateway,Roster,AttendanceReader

// Gateway submits mutating calls and waits for their terminal outcome.
type Gateway interface {
	Execute(ctx context.Context, from id.Address, cmd models.Command) (gateway.Outcome, error)
}

// Roster is the state cache surface the service reads and resyncs.
type Roster interface {
	Snapshot() cache.Snapshot
	Contains(address id.Address) bool
	Resync(ctx context.Context, identity id.Address) (cache.Snapshot, error)
}

// AttendanceReader reads a single account's attendance from the ledger.
type AttendanceReader interface {
	GetAttendance(ctx context.Context, address id.Address) (uint64, error)
}

// RosterView is the cached registry as served to clients.
type RosterView struct {
	Count    uint64           `json:"count"`
	Students []models.Student `json:"students"`
	Stale    bool             `json:"stale"`
	SyncedAt time.Time        `json:"synced_at"`
}

// SessionView is the acting account's state.
type SessionView struct {
	session.View
	Registered bool `json:"registered"`
}

// Service is safe for concurrent use. It holds no locks across ledger calls;
// ordering of mutations is the ledger's job.
type Service struct {
	gateway Gateway
	roster  Roster
	reader  AttendanceReader
	session *session.Session
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// New constructs a Service. The session must also be subscribed to the
// gateway so outcomes whose callers stopped waiting still reach it.
func New(gw Gateway, roster Roster, reader AttendanceReader, sess *session.Session, opts ...Option) *Service {
	s := &Service{
		gateway: gw,
		roster:  roster,
		reader:  reader,
		session: sess,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect makes address the active account, reads its attendance and
// rebuilds the roster from the ledger.
func (s *Service) Connect(ctx context.Context, address string) (SessionView, error) {
	addr, err := id.ParseAddress(address)
	if err != nil {
		return SessionView{}, err
	}

	gen := s.session.SetActive(addr)
	count, err := s.reader.GetAttendance(ctx, addr)
	if err != nil {
		return SessionView{}, translate(err, "failed to read attendance")
	}
	s.session.SetAttendance(gen, count)

	if _, err := s.roster.Resync(ctx, addr); err != nil {
		return SessionView{}, translate(err, "failed to load roster")
	}
	s.logger.InfoContext(ctx, "account connected",
		"identity", addr.String(),
		"attendance", count,
	)
	return s.Session(), nil
}

// AddStudent registers a student and returns the ledger's record of it.
func (s *Service) AddStudent(ctx context.Context, address, name string) (models.Student, error) {
	cmd, err := models.ParseAddStudent(address, name)
	if err != nil {
		return models.Student{}, err
	}
	out, err := s.execute(ctx, cmd)
	if err != nil {
		return models.Student{}, err
	}
	return out.Receipt.Student, nil
}

// RemoveStudent deregisters a student.
func (s *Service) RemoveStudent(ctx context.Context, address string) error {
	cmd, err := models.ParseRemoveStudent(address)
	if err != nil {
		return err
	}
	_, err = s.execute(ctx, cmd)
	return err
}

// MarkAttendance records one check-in for address.
func (s *Service) MarkAttendance(ctx context.Context, address string) (models.Student, error) {
	cmd, err := models.ParseMarkAttendance(address)
	if err != nil {
		return models.Student{}, err
	}
	out, err := s.execute(ctx, cmd)
	if err != nil {
		return models.Student{}, err
	}
	return out.Receipt.Student, nil
}

// MarkOwnAttendance records a check-in for the active account.
func (s *Service) MarkOwnAttendance(ctx context.Context) (models.Student, error) {
	active, ok := s.session.Active()
	if !ok {
		return models.Student{}, errNoAccount()
	}
	return s.MarkAttendance(ctx, active.Hex())
}

// Roster returns the cached registry in enumeration order.
func (s *Service) Roster() RosterView {
	return viewOf(s.roster.Snapshot())
}

// Session returns the acting account's state.
func (s *Service) Session() SessionView {
	return SessionView{View: s.session.View(), Registered: s.IsRegistered()}
}

// IsRegistered reports whether the active account is in the cached roster.
// Addresses compare by bytes, so checksum casing never matters.
func (s *Service) IsRegistered() bool {
	active, ok := s.session.Active()
	if !ok {
		return false
	}
	return s.roster.Contains(active)
}

// Resync rebuilds the roster from the ledger on behalf of the active account.
func (s *Service) Resync(ctx context.Context) (RosterView, error) {
	active, _ := s.session.Active()
	snap, err := s.roster.Resync(ctx, active)
	if err != nil {
		return RosterView{}, translate(err, "failed to resync roster")
	}
	return viewOf(snap), nil
}

func (s *Service) execute(ctx context.Context, cmd models.Command) (gateway.Outcome, error) {
	from, ok := s.session.Active()
	if !ok {
		return gateway.Outcome{}, errNoAccount()
	}

	op := models.Describe(cmd)
	s.session.Begin(cmd)
	out, err := s.gateway.Execute(ctx, from, cmd)
	if err != nil {
		// A busy slot belongs to an earlier call still tracked under op, and an
		// abandoned wait is ended by the outcome subscriber.
		if !errors.Is(err, gateway.ErrSlotBusy) && ctx.Err() == nil {
			s.session.End(cmd)
		}
		s.logger.WarnContext(ctx, "registry operation failed",
			"command", op,
			"from", from.String(),
			"error", err,
		)
		return out, translate(err, "registry operation failed")
	}
	if out.Receipt == nil {
		return out, dErrors.Wrap(ledger.ErrProviderUnavailable, dErrors.CodeUnavailable, "outcome unknown")
	}

	s.logger.InfoContext(ctx, "registry operation confirmed",
		"command", op,
		"from", from.String(),
		"tx", out.Hash.Short(),
	)
	return out, nil
}

func viewOf(snap cache.Snapshot) RosterView {
	students := snap.Students
	if students == nil {
		students = []models.Student{}
	}
	return RosterView{
		Count:    snap.Count(),
		Students: students,
		Stale:    snap.Stale,
		SyncedAt: snap.SyncedAt,
	}
}

func errNoAccount() error {
	return dErrors.Wrap(ledger.ErrProviderUnavailable, dErrors.CodeUnavailable, "no active account")
}

// translate maps gateway and ledger failures to domain error codes. Errors
// that already carry a code pass through.
func translate(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, gateway.ErrSlotBusy):
		return dErrors.Wrap(err, dErrors.CodeConflict, "operation already pending")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "stopped waiting for confirmation")
	}

	var le *ledger.Error
	if !errors.As(err, &le) {
		if errors.Is(err, id.ErrInvalidAddress) {
			return dErrors.Wrap(err, dErrors.CodeValidation, "invalid address")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
	switch le.Category {
	case ledger.CategoryInvalidAddress:
		return dErrors.Wrap(err, dErrors.CodeValidation, "invalid address")
	case ledger.CategoryDuplicateStudent:
		return dErrors.Wrap(err, dErrors.CodeConflict, le.Reason)
	case ledger.CategoryNotFound:
		return dErrors.Wrap(err, dErrors.CodeNotFound, le.Reason)
	case ledger.CategoryUnavailable:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "ledger unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeUnprocessable, le.Reason)
	}
}
