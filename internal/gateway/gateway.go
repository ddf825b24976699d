// Package gateway submits registry commands to the ledger and tracks each
// transaction to exactly one terminal outcome. It never retries.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rollcall/internal/gateway/metrics"
	"rollcall/internal/ledger"
	"rollcall/internal/registry/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/circuit"
	"rollcall/pkg/platform/sentinel"
)

// ErrSlotBusy is returned when the same (method, target) is already pending.
var ErrSlotBusy = fmt.Errorf("operation already pending: %w", sentinel.ErrConflict)

type slot struct {
	method models.Method
	target id.Address
}

func slotOf(cmd models.Command) slot {
	return slot{method: cmd.Method(), target: cmd.Target()}
}

// Gateway is safe for concurrent use. Distinct slots proceed concurrently.
type Gateway struct {
	ledger      ledger.Ledger
	breaker     *circuit.Breaker
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	subscribers []Subscriber
	now         func() time.Time

	mu     sync.Mutex
	slots  map[slot]*Handle
	closed bool

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Gateway.
type Option func(*Gateway)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithBreaker replaces the default ledger circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(g *Gateway) {
		g.breaker = b
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(g *Gateway) {
		g.tracer = t
	}
}

// WithSubscriber adds an outcome subscriber. Subscribers are called in
// registration order.
func WithSubscriber(s Subscriber) Option {
	return func(g *Gateway) {
		g.subscribers = append(g.subscribers, s)
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// New creates a gateway over l.
func New(l ledger.Ledger, opts ...Option) *Gateway {
	g := &Gateway{
		ledger:  l,
		breaker: circuit.New("ledger"),
		logger:  slog.Default(),
		tracer:  otel.Tracer("rollcall/gateway"),
		now:     time.Now,
		slots:   make(map[slot]*Handle),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.base, g.cancel = context.WithCancel(context.Background())
	return g
}

// Subscribe adds a subscriber after construction.
func (g *Gateway) Subscribe(s Subscriber) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subscribers = append(g.subscribers, s)
}

// Submit validates cmd, claims its slot and sends it to the ledger on
// behalf of from. On success the returned Handle is Pending.
func (g *Gateway) Submit(ctx context.Context, from id.Address, cmd models.Command) (*Handle, error) {
	ctx, span := g.tracer.Start(ctx, "gateway.Submit", trace.WithAttributes(
		attribute.String("ledger.method", string(cmd.Method())),
		attribute.String("ledger.target", cmd.Target().String()),
	))
	defer span.End()

	if err := cmd.Validate(); err != nil {
		span.SetStatus(codes.Error, "invalid command")
		return nil, err
	}

	if !g.breaker.Allow() {
		g.metrics.IncrementFailFast()
		span.SetStatus(codes.Error, "circuit open")
		return nil, ledger.Unavailable(cmd.Method(), fmt.Errorf("circuit %s open: %w", g.breaker.Name(), sentinel.ErrUnavailable))
	}

	h, err := g.claim(cmd)
	if err != nil {
		g.metrics.IncrementSlotBusy()
		span.SetStatus(codes.Error, "slot busy")
		return nil, err
	}

	submittedAt := g.now()
	hash, err := g.ledger.Send(ctx, from, cmd)
	if err != nil {
		g.release(h)
		g.wg.Done()
		g.recordTransport(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		g.logger.WarnContext(ctx, "transaction submit failed",
			"call_id", h.id.String(),
			"command", models.Describe(cmd),
			"from", from.String(),
			"error", err,
		)
		return nil, err
	}
	if g.breaker.RecordSuccess() {
		g.logger.InfoContext(ctx, "ledger circuit closed", "breaker", g.breaker.Name())
	}
	h.setPending(hash)
	g.metrics.IncrementSubmitted(string(cmd.Method()))
	span.SetAttributes(attribute.String("ledger.tx", hash.String()))

	g.logger.InfoContext(ctx, "transaction submitted",
		"call_id", h.id.String(),
		"command", models.Describe(cmd),
		"from", from.String(),
		"tx", hash.Short(),
	)

	trackCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(g.base, cancel)
	go func() {
		defer g.wg.Done()
		defer cancel()
		defer stop()
		g.track(trackCtx, h, from, submittedAt)
	}()
	return h, nil
}

// Execute submits cmd and waits for its outcome.
func (g *Gateway) Execute(ctx context.Context, from id.Address, cmd models.Command) (Outcome, error) {
	h, err := g.Submit(ctx, from, cmd)
	if err != nil {
		return Outcome{}, err
	}
	return h.Wait(ctx)
}

// SlotState reports the lifecycle state of the (method, target) slot.
func (g *Gateway) SlotState(method models.Method, target id.Address) State {
	g.mu.Lock()
	h, ok := g.slots[slot{method: method, target: target}]
	g.mu.Unlock()
	if !ok {
		return StateIdle
	}
	return h.State()
}

// Pending lists commands whose outcome is not yet known.
func (g *Gateway) Pending() []models.Command {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.Command, 0, len(g.slots))
	for _, h := range g.slots {
		out = append(out, h.cmd)
	}
	return out
}

// Breaker exposes the ledger circuit breaker state.
func (g *Gateway) Breaker() *circuit.Breaker {
	return g.breaker
}

// Close refuses new submissions and waits for tracked transactions until
// ctx ends, after which tracking is abandoned.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		g.cancel()
		return nil
	case <-ctx.Done():
		g.cancel()
		<-done
		return ctx.Err()
	}
}

func (g *Gateway) claim(cmd models.Command) (*Handle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ledger.Unavailable(cmd.Method(), sentinel.ErrClosed)
	}
	key := slotOf(cmd)
	if _, busy := g.slots[key]; busy {
		return nil, fmt.Errorf("%s: %w", models.Describe(cmd), ErrSlotBusy)
	}
	h := newHandle(cmd)
	g.slots[key] = h
	// Added under mu: Close marks closed under mu before it waits.
	g.wg.Add(1)
	return h, nil
}

func (g *Gateway) release(h *Handle) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.slots[h.slot] == h {
		delete(g.slots, h.slot)
	}
}

func (g *Gateway) track(ctx context.Context, h *Handle, from id.Address, submittedAt time.Time) {
	ctx, span := g.tracer.Start(ctx, "gateway.track", trace.WithAttributes(
		attribute.String("ledger.method", string(h.cmd.Method())),
		attribute.String("ledger.tx", h.Hash().String()),
	))
	defer span.End()

	out := Outcome{
		ID:          h.id,
		Hash:        h.Hash(),
		From:        from,
		Command:     h.cmd,
		SubmittedAt: submittedAt,
	}

	receipt, err := g.ledger.WaitReceipt(ctx, out.Hash)
	switch {
	case err != nil:
		g.recordTransport(err)
		out.State = StateRejected
		out.Err = err
		if !ledger.IsUnavailable(err) && !errors.Is(err, context.Canceled) {
			out.Reason = ledger.ReasonOf(err)
		}
	case receipt.Status == ledger.StatusConfirmed:
		out.State = StateConfirmed
		out.Receipt = receipt
	default:
		out.State = StateRejected
		out.Receipt = receipt
		out.Reason = receipt.Reason
		out.Err = receipt.Err()
	}
	out.CompletedAt = g.now()

	if out.Err != nil {
		span.SetStatus(codes.Error, out.State.String())
	}
	g.metrics.ObserveOutcome(string(h.cmd.Method()), out.State.String(), out.CompletedAt.Sub(submittedAt))
	g.logOutcome(ctx, out)

	h.setOutcome(out)
	g.mu.Lock()
	subscribers := append([]Subscriber(nil), g.subscribers...)
	g.mu.Unlock()
	for _, s := range subscribers {
		s.HandleOutcome(ctx, out)
	}
	g.release(h)
	close(h.done)
}

func (g *Gateway) logOutcome(ctx context.Context, out Outcome) {
	attrs := []any{
		"call_id", out.ID.String(),
		"command", models.Describe(out.Command),
		"tx", out.Hash.Short(),
		"state", out.State.String(),
		"duration_ms", out.CompletedAt.Sub(out.SubmittedAt).Milliseconds(),
	}
	switch {
	case out.Confirmed():
		g.logger.InfoContext(ctx, "transaction confirmed", attrs...)
	case out.Receipt != nil:
		g.logger.WarnContext(ctx, "transaction rejected", append(attrs, "reason", out.Reason)...)
	default:
		g.logger.ErrorContext(ctx, "transaction outcome unknown", append(attrs, "error", out.Err)...)
	}
}

// recordTransport feeds connectivity failures to the breaker. Ledger-side
// rejections say nothing about connectivity.
func (g *Gateway) recordTransport(err error) {
	if !ledger.IsUnavailable(err) {
		return
	}
	if g.breaker.RecordFailure() {
		g.logger.Warn("ledger circuit opened", "breaker", g.breaker.Name())
	}
}
