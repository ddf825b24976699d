// Package memory is an in-process ledger. It enforces the registry rules
// authoritatively, orders every transaction through a single sequencer
// goroutine, and confirms asynchronously, so it behaves like a remote ledger
// from the client's point of view. It backs development servers and tests.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"rollcall/internal/ledger"
	"rollcall/internal/registry/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

const (
	defaultQueueSize = 1024
	// defaultRetention is how long a receipt stays readable after it is applied.
	defaultRetention = 10 * time.Minute
)

type contract struct {
	mu       sync.RWMutex
	owner    id.Address
	registry *models.Registry
	// lastSeq is the newest sequence applied, kept with the state it produced.
	lastSeq uint64
}

type txEntry struct {
	hash     ledger.TxHash
	from     id.Address
	registry id.Address
	cmd      models.Command
	done     chan struct{}
	receipt  *ledger.Receipt
}

// Network hosts any number of published registries behind one sequencer.
type Network struct {
	mu        sync.Mutex
	contracts map[id.Address]*contract
	// txs holds unconfirmed transactions only. Applied ones move to receipts
	// and expire after the retention period.
	txs       map[ledger.TxHash]*txEntry
	receipts  *gocache.Cache
	retention time.Duration
	nonce     uint64
	sequence  uint64
	offline   bool
	gate      chan struct{}

	queue  chan *txEntry
	closed chan struct{}
	wg     sync.WaitGroup

	policy ledger.Policy
	delay  time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Network.
type Option func(*Network)

// WithPolicy sets the access-control rule applied to every transaction.
func WithPolicy(p ledger.Policy) Option {
	return func(n *Network) {
		n.policy = p
	}
}

// WithConfirmationDelay makes the sequencer wait before applying each
// transaction, simulating block time.
func WithConfirmationDelay(d time.Duration) Option {
	return func(n *Network) {
		n.delay = d
	}
}

// WithReceiptRetention sets how long applied receipts stay readable.
func WithReceiptRetention(d time.Duration) Option {
	return func(n *Network) {
		if d > 0 {
			n.retention = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *Network) {
		n.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(n *Network) {
		if now != nil {
			n.now = now
		}
	}
}

// NewNetwork starts the sequencer. Call Close to stop it.
func NewNetwork(opts ...Option) *Network {
	n := &Network{
		contracts: make(map[id.Address]*contract),
		txs:       make(map[ledger.TxHash]*txEntry),
		queue:     make(chan *txEntry, defaultQueueSize),
		closed:    make(chan struct{}),
		policy:    ledger.PolicyOpen,
		retention: defaultRetention,
		now:       time.Now,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.receipts = gocache.New(n.retention, n.retention)
	n.wg.Add(1)
	go n.run()
	return n
}

// Publish creates an empty registry owned by owner and returns its address.
func (n *Network) Publish(_ context.Context, owner id.Address, salt []byte) (id.Address, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.offline {
		return id.Address{}, ledger.Unavailable("", sentinel.ErrUnavailable)
	}
	addr := ledger.RegistryAddress(owner, salt)
	if _, exists := n.contracts[addr]; exists {
		return id.Address{}, fmt.Errorf("registry %s: %w", addr, sentinel.ErrConflict)
	}
	n.contracts[addr] = &contract{owner: owner, registry: models.NewRegistry()}
	n.logger.Info("registry published", "registry", addr.String(), "owner", owner.String())
	return addr, nil
}

// Registry returns the ledger client bound to a published registry.
func (n *Network) Registry(address id.Address) (*Ledger, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.contracts[address]; !ok {
		return nil, fmt.Errorf("registry %s: %w", address, sentinel.ErrNotFound)
	}
	return &Ledger{network: n, address: address}, nil
}

// SetOffline simulates losing the connection: every call fails with
// ProviderUnavailable until it is set back.
func (n *Network) SetOffline(offline bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.offline = offline
}

// Pause holds the sequencer so submitted transactions stay pending.
func (n *Network) Pause() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.gate == nil {
		n.gate = make(chan struct{})
	}
}

// Resume releases a paused sequencer.
func (n *Network) Resume() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.gate != nil {
		close(n.gate)
		n.gate = nil
	}
}

// Close stops the sequencer. Pending transactions never confirm.
func (n *Network) Close() {
	n.mu.Lock()
	select {
	case <-n.closed:
		n.mu.Unlock()
		return
	default:
	}
	close(n.closed)
	if n.gate != nil {
		close(n.gate)
		n.gate = nil
	}
	n.mu.Unlock()
	n.wg.Wait()
}

func (n *Network) submit(ctx context.Context, registry, from id.Address, cmd models.Command) (ledger.TxHash, error) {
	n.mu.Lock()
	if n.offline {
		n.mu.Unlock()
		return ledger.TxHash{}, ledger.Unavailable(cmd.Method(), sentinel.ErrUnavailable)
	}
	select {
	case <-n.closed:
		n.mu.Unlock()
		return ledger.TxHash{}, ledger.Unavailable(cmd.Method(), sentinel.ErrClosed)
	default:
	}
	n.nonce++
	entry := &txEntry{
		hash:     ledger.NewTxHash(from, cmd, n.nonce),
		from:     from,
		registry: registry,
		cmd:      cmd,
		done:     make(chan struct{}),
	}
	n.txs[entry.hash] = entry
	n.mu.Unlock()

	select {
	case n.queue <- entry:
		return entry.hash, nil
	case <-ctx.Done():
		n.mu.Lock()
		delete(n.txs, entry.hash)
		n.mu.Unlock()
		return ledger.TxHash{}, ctx.Err()
	case <-n.closed:
		return ledger.TxHash{}, ledger.Unavailable(cmd.Method(), sentinel.ErrClosed)
	}
}

func (n *Network) waitReceipt(ctx context.Context, hash ledger.TxHash) (*ledger.Receipt, error) {
	n.mu.Lock()
	entry, ok := n.txs[hash]
	var kept any
	if !ok {
		kept, ok = n.receipts.Get(hash.String())
	}
	n.mu.Unlock()
	if kept != nil {
		r := *kept.(*ledger.Receipt)
		return &r, nil
	}
	if !ok {
		return nil, ledger.NewError(ledger.CategoryRejected, "", "unknown transaction "+hash.Short(), sentinel.ErrNotFound)
	}
	select {
	case <-entry.done:
		r := *entry.receipt
		return &r, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-n.closed:
		return nil, ledger.Unavailable(entry.cmd.Method(), sentinel.ErrClosed)
	}
}

func (n *Network) run() {
	defer n.wg.Done()
	for {
		select {
		case <-n.closed:
			return
		case entry := <-n.queue:
			if !n.waitTurn() {
				return
			}
			n.apply(entry)
		}
	}
}

// waitTurn blocks while paused and for the confirmation delay. It returns
// false when the network closed meanwhile.
func (n *Network) waitTurn() bool {
	n.mu.Lock()
	gate := n.gate
	n.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-n.closed:
			return false
		}
	}
	if n.delay > 0 {
		select {
		case <-time.After(n.delay):
		case <-n.closed:
			return false
		}
	}
	return true
}

func (n *Network) apply(entry *txEntry) {
	n.mu.Lock()
	c := n.contracts[entry.registry]
	n.sequence++
	seq := n.sequence
	n.mu.Unlock()

	receipt := &ledger.Receipt{
		Hash:     entry.hash,
		From:     entry.from,
		Method:   entry.cmd.Method(),
		Target:   entry.cmd.Target(),
		Sequence: seq,
	}

	c.mu.Lock()
	switch {
	case !n.policy.Permits(c.owner, entry.from, entry.cmd):
		receipt.Status = ledger.StatusRejected
		receipt.Reason = ledger.ReasonUnauthorized
	default:
		student, err := c.registry.Apply(entry.cmd)
		if err != nil {
			receipt.Status = ledger.StatusRejected
			receipt.Reason = models.Reason(err)
		} else {
			receipt.Status = ledger.StatusConfirmed
			receipt.Student = student
		}
	}
	receipt.Registered = c.registry.Contains(receipt.Target)
	receipt.StudentCount = c.registry.StudentCount()
	c.lastSeq = seq
	c.mu.Unlock()
	receipt.ConfirmedAt = n.now()

	n.logger.Debug("transaction applied",
		"tx", entry.hash.Short(),
		"method", string(receipt.Method),
		"status", string(receipt.Status),
		"sequence", seq,
	)

	n.mu.Lock()
	entry.receipt = receipt
	delete(n.txs, entry.hash)
	n.receipts.Set(entry.hash.String(), receipt, gocache.DefaultExpiration)
	n.mu.Unlock()
	close(entry.done)
}

func (n *Network) contract(address id.Address, method models.Method) (*contract, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.offline {
		return nil, ledger.Unavailable(method, sentinel.ErrUnavailable)
	}
	c, ok := n.contracts[address]
	if !ok {
		return nil, ledger.NewError(ledger.CategoryRejected, method, "no registry at "+address.String(), sentinel.ErrNotFound)
	}
	return c, nil
}
