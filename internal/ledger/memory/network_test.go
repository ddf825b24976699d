package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"rollcall/internal/ledger"
	"rollcall/internal/registry/models"
	id "rollcall/pkg/domain"
)

var (
	owner = id.MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	alice = id.MustParseAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	bob   = id.MustParseAddress("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")
)

type NetworkSuite struct {
	suite.Suite
	network *Network
	ledger  *Ledger
	ctx     context.Context
}

func TestNetworkSuite(t *testing.T) {
	suite.Run(t, new(NetworkSuite))
}

func (s *NetworkSuite) SetupTest() {
	s.ctx = context.Background()
	s.network = NewNetwork()
	addr, err := s.network.Publish(s.ctx, owner, []byte("salt"))
	s.Require().NoError(err)
	s.ledger, err = s.network.Registry(addr)
	s.Require().NoError(err)
}

func (s *NetworkSuite) TearDownTest() {
	s.network.Close()
}

func (s *NetworkSuite) send(from id.Address, cmd models.Command) *ledger.Receipt {
	hash, err := s.ledger.Send(s.ctx, from, cmd)
	s.Require().NoError(err)
	receipt, err := s.ledger.WaitReceipt(s.ctx, hash)
	s.Require().NoError(err)
	return receipt
}

func (s *NetworkSuite) TestConfirmedReceiptCarriesPostState() {
	r := s.send(owner, models.AddStudentCommand{Address: alice, Name: "Alice"})
	s.Equal(ledger.StatusConfirmed, r.Status)
	s.Equal("Alice", r.Student.Name)
	s.True(r.Registered)
	s.Equal(uint64(1), r.StudentCount)
	s.NoError(r.Err())

	r = s.send(alice, models.MarkAttendanceCommand{Address: alice})
	s.Equal(uint64(1), r.Student.AttendanceCount)

	count, err := s.ledger.GetAttendance(s.ctx, alice)
	s.NoError(err)
	s.Equal(uint64(1), count)
}

func (s *NetworkSuite) TestRejectionsCarryReasonVerbatim() {
	s.send(owner, models.AddStudentCommand{Address: alice, Name: "Alice"})

	r := s.send(owner, models.AddStudentCommand{Address: alice, Name: "Bob"})
	s.Equal(ledger.StatusRejected, r.Status)
	s.Equal(models.ReasonDuplicateStudent, r.Reason)
	s.ErrorIs(r.Err(), ledger.ErrDuplicateStudent)

	r = s.send(owner, models.MarkAttendanceCommand{Address: bob})
	s.Equal(models.ReasonNotRegistered, r.Reason)
	s.ErrorIs(r.Err(), ledger.ErrNotRegistered)

	r = s.send(owner, models.RemoveStudentCommand{Address: bob})
	s.ErrorIs(r.Err(), ledger.ErrNotFound)

	details, err := s.ledger.StudentDetails(s.ctx, alice)
	s.NoError(err)
	s.Equal("Alice", details.Name)
}

func (s *NetworkSuite) TestReads() {
	s.send(owner, models.AddStudentCommand{Address: alice, Name: "Alice"})
	s.send(owner, models.AddStudentCommand{Address: bob, Name: "Bob"})

	count, err := s.ledger.GetStudentCount(s.ctx)
	s.NoError(err)
	s.Equal(uint64(2), count)

	addr, err := s.ledger.StudentAddressAt(s.ctx, 1)
	s.NoError(err)
	s.Equal(bob, addr)

	_, err = s.ledger.StudentAddressAt(s.ctx, 2)
	s.ErrorIs(err, ledger.ErrLedgerRejected)
	s.Equal(ledger.ReasonIndexOutOfRange, ledger.ReasonOf(err))

	details, err := s.ledger.StudentDetails(s.ctx, owner)
	s.NoError(err)
	s.Equal(models.StudentDetails{}, details)
}

func (s *NetworkSuite) TestSequenceIsTotalOrder() {
	first := s.send(owner, models.AddStudentCommand{Address: alice, Name: "Alice"})
	second := s.send(owner, models.AddStudentCommand{Address: bob, Name: "Bob"})
	s.Less(first.Sequence, second.Sequence)

	last, err := s.ledger.LastSequence(s.ctx)
	s.Require().NoError(err)
	s.Equal(second.Sequence, last)
}

func (s *NetworkSuite) TestPauseKeepsTransactionsPending() {
	s.network.Pause()
	hash, err := s.ledger.Send(s.ctx, owner, models.AddStudentCommand{Address: alice, Name: "Alice"})
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(s.ctx, 20*time.Millisecond)
	defer cancel()
	_, err = s.ledger.WaitReceipt(ctx, hash)
	s.ErrorIs(err, context.DeadlineExceeded)

	count, err := s.ledger.GetStudentCount(s.ctx)
	s.NoError(err)
	s.Equal(uint64(0), count, "reads must not observe unconfirmed writes")

	s.network.Resume()
	r, err := s.ledger.WaitReceipt(s.ctx, hash)
	s.Require().NoError(err)
	s.Equal(ledger.StatusConfirmed, r.Status)
}

func (s *NetworkSuite) TestOffline() {
	s.network.SetOffline(true)
	_, err := s.ledger.Send(s.ctx, owner, models.AddStudentCommand{Address: alice, Name: "Alice"})
	s.ErrorIs(err, ledger.ErrProviderUnavailable)
	_, err = s.ledger.GetStudentCount(s.ctx)
	s.ErrorIs(err, ledger.ErrProviderUnavailable)

	s.network.SetOffline(false)
	_, err = s.ledger.GetStudentCount(s.ctx)
	s.NoError(err)
}

func (s *NetworkSuite) TestUnknownTransaction() {
	_, err := s.ledger.WaitReceipt(s.ctx, ledger.TxHash{1})
	s.ErrorIs(err, ledger.ErrLedgerRejected)
}

func (s *NetworkSuite) TestReceiptIsReadableMoreThanOnce() {
	hash, err := s.ledger.Send(s.ctx, owner, models.AddStudentCommand{Address: alice, Name: "Alice"})
	s.Require().NoError(err)
	first, err := s.ledger.WaitReceipt(s.ctx, hash)
	s.Require().NoError(err)
	second, err := s.ledger.WaitReceipt(s.ctx, hash)
	s.Require().NoError(err)
	s.Equal(first, second)
}

func TestNetwork_AppliedTransactionsExpire(t *testing.T) {
	ctx := context.Background()
	n := NewNetwork(WithReceiptRetention(20 * time.Millisecond))
	defer n.Close()
	addr, err := n.Publish(ctx, owner, nil)
	require.NoError(t, err)
	l, err := n.Registry(addr)
	require.NoError(t, err)

	hash, err := l.Send(ctx, owner, models.AddStudentCommand{Address: alice, Name: "Alice"})
	require.NoError(t, err)
	_, err = l.WaitReceipt(ctx, hash)
	require.NoError(t, err)

	n.mu.Lock()
	tracked := len(n.txs)
	n.mu.Unlock()
	assert.Zero(t, tracked, "applied transactions leave the pending table")

	require.Eventually(t, func() bool {
		_, err := l.WaitReceipt(ctx, hash)
		return errors.Is(err, ledger.ErrLedgerRejected)
	}, time.Second, 10*time.Millisecond)
}

func TestNetwork_Policy(t *testing.T) {
	ctx := context.Background()
	n := NewNetwork(WithPolicy(ledger.PolicySelf))
	defer n.Close()
	addr, err := n.Publish(ctx, owner, nil)
	if err != nil {
		t.Fatal(err)
	}
	l, err := n.Registry(addr)
	if err != nil {
		t.Fatal(err)
	}

	run := func(from id.Address, cmd models.Command) *ledger.Receipt {
		t.Helper()
		hash, err := l.Send(ctx, from, cmd)
		if err != nil {
			t.Fatal(err)
		}
		r, err := l.WaitReceipt(ctx, hash)
		if err != nil {
			t.Fatal(err)
		}
		return r
	}

	if r := run(alice, models.AddStudentCommand{Address: alice, Name: "Alice"}); r.Reason != ledger.ReasonUnauthorized {
		t.Fatalf("expected unauthorized add, got %+v", r)
	}
	if r := run(owner, models.AddStudentCommand{Address: alice, Name: "Alice"}); r.Status != ledger.StatusConfirmed {
		t.Fatalf("owner add rejected: %s", r.Reason)
	}
	if r := run(bob, models.MarkAttendanceCommand{Address: alice}); r.Reason != ledger.ReasonUnauthorized {
		t.Fatalf("expected unauthorized mark by another account, got %+v", r)
	}
	if r := run(alice, models.MarkAttendanceCommand{Address: alice}); r.Status != ledger.StatusConfirmed {
		t.Fatalf("self mark rejected: %s", r.Reason)
	}
}

func TestNetwork_PublishAndLookup(t *testing.T) {
	ctx := context.Background()
	n := NewNetwork()
	defer n.Close()

	addr, err := n.Publish(ctx, owner, []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if addr != ledger.RegistryAddress(owner, []byte("a")) {
		t.Fatal("published address must be derived from owner and salt")
	}
	if _, err := n.Publish(ctx, owner, []byte("a")); err == nil {
		t.Fatal("expected conflict publishing the same salt twice")
	}
	if _, err := n.Registry(alice); err == nil {
		t.Fatal("expected lookup of unknown registry to fail")
	}
}
