package session

import (
	"context"
	"log/slog"

	"rollcall/internal/identity"
	id "rollcall/pkg/domain"
)

// AttendanceReader is the ledger read the listener needs.
type AttendanceReader interface {
	GetAttendance(ctx context.Context, address id.Address) (uint64, error)
}

// Listener applies identity changes to a Session.
//
// On a switch it re-reads only the new account's attendance. The cached
// roster is left as it was: roster entries belong to the registry, not to
// the acting account, and are refreshed by resync.
type Listener struct {
	feed    *identity.Feed
	reader  AttendanceReader
	session *Session
	logger  *slog.Logger
}

func NewListener(feed *identity.Feed, reader AttendanceReader, session *Session, logger *slog.Logger) *Listener {
	return &Listener{feed: feed, reader: reader, session: session, logger: logger}
}

// Run subscribes to the feed and handles events until ctx ends or the
// feed closes.
func (l *Listener) Run(ctx context.Context) error {
	sub := l.feed.Subscribe()
	defer sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-sub.Events():
			if !ok {
				return nil
			}
			l.Handle(ctx, e)
		}
	}
}

// Handle applies one identity event.
func (l *Listener) Handle(ctx context.Context, e identity.Event) {
	if !e.Present {
		l.session.Clear()
		l.logger.InfoContext(ctx, "no active account")
		return
	}

	gen := l.session.SetActive(e.Address)
	count, err := l.reader.GetAttendance(ctx, e.Address)
	if err != nil {
		l.logger.WarnContext(ctx, "attendance refresh failed",
			"identity", e.Address.String(),
			"error", err,
		)
		return
	}
	if !l.session.SetAttendance(gen, count) {
		l.logger.DebugContext(ctx, "discarding attendance for previous identity",
			"identity", e.Address.String(),
		)
		return
	}
	l.logger.InfoContext(ctx, "active account changed",
		"identity", e.Address.String(),
		"attendance", count,
	)
}
