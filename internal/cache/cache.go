// Package cache holds the client's local mirror of ledger registry state.
//
// The cache is written only from the ledger's own answers: confirmed
// receipts (confirm-then-apply) and full resynchronizations. It never
// applies a mutation optimistically.
package cache

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"rollcall/internal/cache/metrics"
	"rollcall/internal/gateway"
	"rollcall/internal/ledger"
	"rollcall/internal/registry/models"
	id "rollcall/pkg/domain"
)

const (
	defaultParallelism    = 8
	defaultResyncAttempts = 3
	// maxStudents bounds the roster size a resync will allocate for.
	maxStudents = 1 << 20
)

// errRosterMoved signals that the ledger changed during a resync read.
var errRosterMoved = errors.New("roster changed during resync")

// Snapshot is a point-in-time copy of the cached roster.
type Snapshot struct {
	// Students in ledger index order.
	Students []models.Student `json:"students"`
	// Identity is the account the last resync ran for.
	Identity id.Address `json:"identity"`
	SyncedAt time.Time  `json:"synced_at"`
	// Stale is set when the cache is known to disagree with the ledger.
	Stale bool `json:"stale"`
}

// Count returns the number of students in the snapshot.
func (s Snapshot) Count() uint64 {
	return uint64(len(s.Students))
}

// Cache is safe for concurrent use.
type Cache struct {
	reader      ledger.Reader
	mirror      Mirror
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
	now         func() time.Time
	parallelism int
	attempts    int

	mu       sync.RWMutex
	registry *models.Registry
	identity id.Address
	syncedAt time.Time
	stale    bool
	// floor is the ledger sequence the installed registry was read at.
	// Receipts at or below it are already reflected.
	floor uint64
	// applied holds the newest receipt applied per student above floor.
	applied map[id.Address]*ledger.Receipt

	group    singleflight.Group
	resyncMu sync.Mutex

	scheduled atomic.Bool
	base      context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// Option configures a Cache.
type Option func(*Cache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithMirror sets the write-through snapshot mirror.
func WithMirror(m Mirror) Option {
	return func(c *Cache) {
		if m != nil {
			c.mirror = m
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Cache) {
		c.tracer = t
	}
}

// WithParallelism bounds concurrent ledger reads during a resync.
func WithParallelism(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// WithResyncAttempts bounds how often a resync restarts when the ledger
// changes underneath it.
func WithResyncAttempts(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.attempts = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty cache reading from r.
func New(r ledger.Reader, opts ...Option) *Cache {
	c := &Cache{
		reader:      r,
		mirror:      NopMirror{},
		logger:      slog.Default(),
		tracer:      otel.Tracer("rollcall/cache"),
		now:         time.Now,
		parallelism: defaultParallelism,
		attempts:    defaultResyncAttempts,
		registry:    models.NewRegistry(),
		applied:     make(map[id.Address]*ledger.Receipt),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.base, c.cancel = context.WithCancel(context.Background())
	return c
}

// Seed installs a snapshot obtained elsewhere, such as the mirror of a
// previous process. Seeded state is always stale until the next resync.
func (c *Cache) Seed(snap Snapshot) {
	reg := models.NewRegistry()
	for _, s := range snap.Students {
		reg.Put(s)
	}
	c.mu.Lock()
	c.registry = reg
	c.identity = snap.Identity
	c.syncedAt = snap.SyncedAt
	c.stale = true
	c.mu.Unlock()
	c.metrics.SetStudents(reg.StudentCount())
}

// HandleOutcome applies gateway outcomes, making the cache a gateway
// subscriber. Rejections that contradict the cache mark it stale.
func (c *Cache) HandleOutcome(ctx context.Context, out gateway.Outcome) {
	switch {
	case out.Confirmed():
		c.ApplyConfirmed(ctx, out.Receipt)
	case out.Receipt == nil:
		c.markStale(ctx, "transaction outcome unknown")
	default:
		c.checkRejection(ctx, out.Receipt)
	}
}

// ApplyConfirmed mutates the cache from a confirmed receipt's post-state.
// Receipts that are not confirmed, already covered by the last resync, or
// older than one already applied for the same student are ignored.
func (c *Cache) ApplyConfirmed(ctx context.Context, r *ledger.Receipt) {
	if r == nil || r.Status != ledger.StatusConfirmed {
		return
	}

	c.mu.Lock()
	if c.supersededLocked(r) {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "skipping superseded receipt",
			"tx", r.Hash.Short(),
			"sequence", r.Sequence,
		)
		return
	}
	if r.Sequence != 0 {
		c.applied[r.Target] = r
	}
	c.applyLocked(r)
	size := c.registry.StudentCount()
	drift := size != r.StudentCount
	if drift {
		c.stale = true
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.metrics.IncrementApply(string(r.Method))
	c.metrics.SetStudents(size)
	c.writeMirror(ctx, snap)

	if drift {
		c.metrics.IncrementDrift()
		c.logger.WarnContext(ctx, "cache drift detected",
			"tx", r.Hash.Short(),
			"cached_count", size,
			"ledger_count", r.StudentCount,
		)
		c.scheduleResync()
	}
}

func (c *Cache) supersededLocked(r *ledger.Receipt) bool {
	if r.Sequence == 0 {
		return false
	}
	if r.Sequence <= c.floor {
		return true
	}
	prev, ok := c.applied[r.Target]
	return ok && r.Sequence <= prev.Sequence
}

func (c *Cache) applyLocked(r *ledger.Receipt) {
	switch r.Method {
	case models.MethodAddStudent, models.MethodMarkAttendance:
		if r.Registered {
			c.registry.Put(r.Student)
		}
	case models.MethodRemoveStudent:
		c.registry.Delete(r.Target)
	}
}

// installLocked swaps in a registry read at sequence floor and replays the
// receipts applied meanwhile that the read could not have seen. It reports
// whether the replayed state disagrees with the newest receipt's count.
func (c *Cache) installLocked(reg *models.Registry, floor uint64) (drift bool) {
	c.floor = max(c.floor, floor)
	var late []*ledger.Receipt
	for addr, r := range c.applied {
		if r.Sequence <= c.floor {
			delete(c.applied, addr)
			continue
		}
		late = append(late, r)
	}
	slices.SortFunc(late, func(a, b *ledger.Receipt) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})

	c.registry = reg
	for _, r := range late {
		c.applyLocked(r)
	}
	if len(late) == 0 {
		return false
	}
	return c.registry.StudentCount() != late[len(late)-1].StudentCount
}

func (c *Cache) checkRejection(ctx context.Context, r *ledger.Receipt) {
	present := c.Contains(r.Target)
	contradicts := false
	switch ledger.Classify(r.Reason) {
	case ledger.CategoryDuplicateStudent:
		contradicts = !present
	case ledger.CategoryNotFound, ledger.CategoryNotRegistered:
		contradicts = present
	}
	if contradicts {
		c.markStale(ctx, fmt.Sprintf("ledger rejected %s with %q", r.Method, r.Reason))
	}
}

func (c *Cache) markStale(ctx context.Context, why string) {
	c.mu.Lock()
	c.stale = true
	c.mu.Unlock()
	c.metrics.IncrementDrift()
	c.logger.WarnContext(ctx, "cache marked stale", "reason", why)
	c.scheduleResync()
}

// scheduleResync starts a background resync for the current identity
// unless one is already scheduled.
func (c *Cache) scheduleResync() {
	if !c.scheduled.CompareAndSwap(false, true) {
		return
	}
	c.mu.RLock()
	identity := c.identity
	c.mu.RUnlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.scheduled.Store(false)
		if c.base.Err() != nil {
			return
		}
		if _, err := c.Resync(c.base, identity); err != nil && c.base.Err() == nil {
			c.logger.Error("scheduled resync failed", "identity", identity.String(), "error", err)
		}
	}()
}

// Resync rebuilds the cache from ledger reads and swaps it in atomically.
// Concurrent calls for the same identity share one read; calls for
// different identities run one at a time.
func (c *Cache) Resync(ctx context.Context, identity id.Address) (Snapshot, error) {
	v, err, _ := c.group.Do(identity.Hex(), func() (any, error) {
		c.resyncMu.Lock()
		defer c.resyncMu.Unlock()
		return c.resync(ctx, identity)
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

func (c *Cache) resync(ctx context.Context, identity id.Address) (Snapshot, error) {
	ctx, span := c.tracer.Start(ctx, "cache.Resync", trace.WithAttributes(
		attribute.String("identity", identity.String()),
	))
	defer span.End()
	start := c.now()

	var (
		reg   *models.Registry
		seq   uint64
		err   error
		moved bool
	)
	for attempt := 1; attempt <= c.attempts; attempt++ {
		reg, seq, err = c.read(ctx)
		if err == nil {
			moved = false
			break
		}
		if !errors.Is(err, errRosterMoved) {
			span.RecordError(err)
			c.metrics.ObserveResync("error", c.now().Sub(start))
			c.logger.ErrorContext(ctx, "resync failed", "identity", identity.String(), "error", err)
			return Snapshot{}, err
		}
		moved = true
		c.logger.DebugContext(ctx, "roster moved during resync, restarting", "attempt", attempt)
	}
	if moved && reg == nil {
		c.metrics.ObserveResync("error", c.now().Sub(start))
		return Snapshot{}, err
	}

	c.mu.Lock()
	drift := c.installLocked(reg, seq)
	c.identity = identity
	c.syncedAt = c.now()
	c.stale = moved || drift
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if drift {
		c.metrics.IncrementDrift()
		c.logger.WarnContext(ctx, "receipts replayed over resync disagree with ledger count")
		c.scheduleResync()
	}

	result := "ok"
	if moved {
		result = "stale"
	}
	c.metrics.ObserveResync(result, c.now().Sub(start))
	c.metrics.SetStudents(snap.Count())
	c.writeMirror(ctx, snap)

	c.logger.InfoContext(ctx, "roster resynchronized",
		"identity", identity.String(),
		"students", snap.Count(),
		"stale", snap.Stale,
		"duration_ms", c.now().Sub(start).Milliseconds(),
	)
	return snap, nil
}

// read performs one pass: sequence and count, then every index slot and its
// details, then sequence and count again. It returns the sequence the pass
// started at. errRosterMoved means the ledger changed between reads; a
// non-nil registry alongside it is the best effort of that pass.
func (c *Cache) read(ctx context.Context) (*models.Registry, uint64, error) {
	seq, err := c.reader.LastSequence(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("read ledger sequence: %w", err)
	}
	count, err := c.reader.GetStudentCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("read student count: %w", err)
	}
	if count > maxStudents {
		return nil, 0, fmt.Errorf("ledger reports %d students, more than the %d a resync reads", count, maxStudents)
	}

	students := make([]models.Student, count)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for i := range count {
		g.Go(func() error {
			addr, err := c.reader.StudentAddressAt(gctx, i)
			if err != nil {
				if ledger.ReasonOf(err) == ledger.ReasonIndexOutOfRange {
					return errRosterMoved
				}
				return fmt.Errorf("read index %d: %w", i, err)
			}
			details, err := c.reader.StudentDetails(gctx, addr)
			if err != nil {
				return fmt.Errorf("read details of %s: %w", addr, err)
			}
			if details.Name == "" {
				// registered students always have a name; this one left
				return errRosterMoved
			}
			students[i] = models.Student{
				Address:         addr,
				Name:            details.Name,
				AttendanceCount: details.AttendanceCount,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, seq, err
	}

	reg := models.NewRegistry()
	for _, s := range students {
		reg.Put(s)
	}

	after, err := c.reader.GetStudentCount(ctx)
	if err != nil {
		return nil, seq, fmt.Errorf("read student count: %w", err)
	}
	seqAfter, err := c.reader.LastSequence(ctx)
	if err != nil {
		return nil, seq, fmt.Errorf("read ledger sequence: %w", err)
	}
	if after != count || reg.StudentCount() != count || seqAfter != seq {
		return reg, seq, errRosterMoved
	}
	return reg, seq, nil
}

// Students returns the cached roster in ledger index order.
func (c *Cache) Students() []models.Student {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry.Enumerate()
}

// Student returns the cached record for address.
func (c *Cache) Student(address id.Address) (models.Student, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry.Student(address)
}

func (c *Cache) Contains(address id.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry.Contains(address)
}

func (c *Cache) Count() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry.StudentCount()
}

// Attendance returns the cached count for address, zero when absent.
func (c *Cache) Attendance(address id.Address) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registry.GetAttendance(address)
}

func (c *Cache) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Close stops scheduled resyncs and waits for any in progress.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Cache) snapshotLocked() Snapshot {
	return Snapshot{
		Students: c.registry.Enumerate(),
		Identity: c.identity,
		SyncedAt: c.syncedAt,
		Stale:    c.stale,
	}
}

func (c *Cache) writeMirror(ctx context.Context, snap Snapshot) {
	if err := c.mirror.Store(context.WithoutCancel(ctx), snap); err != nil {
		c.metrics.IncrementMirrorErrors()
		c.logger.WarnContext(ctx, "snapshot mirror write failed", "error", err)
	}
}
