package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rollcall/internal/gateway/metrics"
	"rollcall/internal/ledger"
	"rollcall/internal/ledger/mocks"
	"rollcall/internal/registry/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/circuit"
)

var (
	owner = id.MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	alice = id.MustParseAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	bob   = id.MustParseAddress("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")
)

type recorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recorder) HandleOutcome(_ context.Context, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recorder) all() []Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Outcome(nil), r.outcomes...)
}

type GatewaySuite struct {
	suite.Suite
	ctx      context.Context
	ledger   *mocks.MockLedger
	recorder *recorder
	gateway  *Gateway
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.ctx = context.Background()
	ctrl := gomock.NewController(s.T())
	s.ledger = mocks.NewMockLedger(ctrl)
	s.recorder = &recorder{}
	s.gateway = New(s.ledger,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
		WithSubscriber(s.recorder),
		WithBreaker(circuit.New("test-ledger", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))),
	)
}

func (s *GatewaySuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.NoError(s.gateway.Close(ctx))
}

func hashOf(b byte) ledger.TxHash {
	return ledger.TxHash{b}
}

func confirmed(hash ledger.TxHash, cmd models.Command, student models.Student, count uint64) *ledger.Receipt {
	return &ledger.Receipt{
		Hash:         hash,
		Method:       cmd.Method(),
		Target:       cmd.Target(),
		Status:       ledger.StatusConfirmed,
		Student:      student,
		Registered:   cmd.Method() != models.MethodRemoveStudent,
		StudentCount: count,
	}
}

func (s *GatewaySuite) TestConfirmedOutcome() {
	cmd := models.AddStudentCommand{Address: alice, Name: "Alice"}
	receipt := confirmed(hashOf(1), cmd, models.Student{Address: alice, Name: "Alice"}, 1)
	s.ledger.EXPECT().Send(gomock.Any(), owner, cmd).Return(hashOf(1), nil)
	s.ledger.EXPECT().WaitReceipt(gomock.Any(), hashOf(1)).Return(receipt, nil)

	h, err := s.gateway.Submit(s.ctx, owner, cmd)
	s.Require().NoError(err)

	out, err := h.Wait(s.ctx)
	s.Require().NoError(err)
	s.True(out.Confirmed())
	s.Equal(StateConfirmed, h.State())
	s.Equal(receipt, out.Receipt)
	s.Equal(hashOf(1), out.Hash)
	s.Equal(owner, out.From)

	s.Len(s.recorder.all(), 1, "subscribers see the outcome before Wait returns")
	s.Equal(StateIdle, s.gateway.SlotState(models.MethodAddStudent, alice))
}

func (s *GatewaySuite) TestRejectedOutcomeKeepsReasonVerbatim() {
	cmd := models.AddStudentCommand{Address: alice, Name: "Alice"}
	s.ledger.EXPECT().Send(gomock.Any(), owner, cmd).Return(hashOf(2), nil)
	s.ledger.EXPECT().WaitReceipt(gomock.Any(), hashOf(2)).Return(&ledger.Receipt{
		Hash:   hashOf(2),
		Method: cmd.Method(),
		Target: alice,
		Status: ledger.StatusRejected,
		Reason: models.ReasonDuplicateStudent,
	}, nil)

	out, err := s.gateway.Execute(s.ctx, owner, cmd)
	s.ErrorIs(err, ledger.ErrDuplicateStudent)
	s.Equal(StateRejected, out.State)
	s.Equal("Student already exists", out.Reason)
	s.Len(s.recorder.all(), 1)
}

func (s *GatewaySuite) TestInvalidCommandNeverReachesLedger() {
	_, err := s.gateway.Submit(s.ctx, owner, models.MarkAttendanceCommand{})
	s.ErrorIs(err, id.ErrInvalidAddress)

	_, err = s.gateway.Submit(s.ctx, owner, models.AddStudentCommand{Address: alice, Name: "  "})
	s.ErrorIs(err, models.ErrInvalidName)
}

func (s *GatewaySuite) TestSameSlotIsRefusedWhilePending() {
	cmd := models.MarkAttendanceCommand{Address: alice}
	other := models.MarkAttendanceCommand{Address: bob}
	release := make(chan struct{})

	s.ledger.EXPECT().Send(gomock.Any(), alice, cmd).Return(hashOf(3), nil)
	s.ledger.EXPECT().Send(gomock.Any(), bob, other).Return(hashOf(4), nil)
	s.ledger.EXPECT().WaitReceipt(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, hash ledger.TxHash) (*ledger.Receipt, error) {
			<-release
			if hash == hashOf(3) {
				return confirmed(hash, cmd, models.Student{Address: alice, AttendanceCount: 1}, 2), nil
			}
			return confirmed(hash, other, models.Student{Address: bob, AttendanceCount: 1}, 2), nil
		}).Times(2)

	first, err := s.gateway.Submit(s.ctx, alice, cmd)
	s.Require().NoError(err)
	s.Equal(StatePending, first.State())
	s.Equal(StatePending, s.gateway.SlotState(models.MethodMarkAttendance, alice))

	_, err = s.gateway.Submit(s.ctx, alice, cmd)
	s.ErrorIs(err, ErrSlotBusy)

	second, err := s.gateway.Submit(s.ctx, bob, other)
	s.Require().NoError(err, "distinct targets proceed concurrently")
	s.Len(s.gateway.Pending(), 2)

	close(release)
	_, err = first.Wait(s.ctx)
	s.NoError(err)
	_, err = second.Wait(s.ctx)
	s.NoError(err)
	s.Empty(s.gateway.Pending())
}

func (s *GatewaySuite) TestAbandonedWaitStillDeliversOutcome() {
	cmd := models.RemoveStudentCommand{Address: alice}
	release := make(chan struct{})
	s.ledger.EXPECT().Send(gomock.Any(), owner, cmd).Return(hashOf(5), nil)
	s.ledger.EXPECT().WaitReceipt(gomock.Any(), hashOf(5)).DoAndReturn(
		func(ctx context.Context, hash ledger.TxHash) (*ledger.Receipt, error) {
			<-release
			return confirmed(hash, cmd, models.Student{Address: alice, Name: "Alice"}, 0), nil
		})

	callerCtx, cancel := context.WithCancel(s.ctx)
	h, err := s.gateway.Submit(callerCtx, owner, cmd)
	s.Require().NoError(err)
	cancel()

	_, err = h.Wait(callerCtx)
	s.ErrorIs(err, context.Canceled)
	s.Equal(StatePending, h.State())

	close(release)
	<-h.Done()
	s.Equal(StateConfirmed, h.State())
	s.Require().Len(s.recorder.all(), 1)
	s.True(s.recorder.all()[0].Confirmed())
	s.Equal(StateIdle, s.gateway.SlotState(models.MethodRemoveStudent, alice))
}

func (s *GatewaySuite) TestSendFailureFreesSlot() {
	cmd := models.MarkAttendanceCommand{Address: alice}
	s.ledger.EXPECT().Send(gomock.Any(), alice, cmd).Return(ledger.TxHash{}, errors.New("nonce too low"))

	_, err := s.gateway.Submit(s.ctx, alice, cmd)
	s.Error(err)
	s.Equal(StateIdle, s.gateway.SlotState(models.MethodMarkAttendance, alice))
	s.False(s.gateway.Breaker().IsOpen(), "non-transport failures do not trip the breaker")
	s.Empty(s.recorder.all())

	ctx, cancel := context.WithTimeout(s.ctx, 100*time.Millisecond)
	defer cancel()
	s.NoError(s.gateway.Close(ctx), "a failed send leaves nothing to wait for")
}

func (s *GatewaySuite) TestCloseWaitsForCallClaimedBeforeIt() {
	cmd := models.MarkAttendanceCommand{Address: alice}
	sending := make(chan struct{})
	unblock := make(chan struct{})
	s.ledger.EXPECT().Send(gomock.Any(), alice, cmd).DoAndReturn(
		func(context.Context, id.Address, models.Command) (ledger.TxHash, error) {
			close(sending)
			<-unblock
			return hashOf(9), nil
		})
	s.ledger.EXPECT().WaitReceipt(gomock.Any(), hashOf(9)).
		Return(confirmed(hashOf(9), cmd, models.Student{Address: alice, AttendanceCount: 1}, 1), nil)

	submitted := make(chan error, 1)
	go func() {
		_, err := s.gateway.Submit(s.ctx, alice, cmd)
		submitted <- err
	}()
	<-sending

	closed := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, 2*time.Second)
		defer cancel()
		closed <- s.gateway.Close(ctx)
	}()

	select {
	case <-closed:
		s.Fail("Close returned while a claimed call was still sending")
	case <-time.After(50 * time.Millisecond):
	}

	close(unblock)
	s.NoError(<-submitted)
	s.NoError(<-closed)
	s.Require().Len(s.recorder.all(), 1)
	s.True(s.recorder.all()[0].Confirmed())
}

func (s *GatewaySuite) TestBreakerFailsFastAfterTransportFailures() {
	cmd := models.MarkAttendanceCommand{Address: alice}
	s.ledger.EXPECT().Send(gomock.Any(), alice, cmd).
		Return(ledger.TxHash{}, ledger.Unavailable(models.MethodMarkAttendance, errors.New("connection refused"))).
		Times(2)

	for range 2 {
		_, err := s.gateway.Submit(s.ctx, alice, cmd)
		s.ErrorIs(err, ledger.ErrProviderUnavailable)
	}
	s.True(s.gateway.Breaker().IsOpen())

	_, err := s.gateway.Submit(s.ctx, alice, cmd)
	s.ErrorIs(err, ledger.ErrProviderUnavailable)
}

func (s *GatewaySuite) TestLostConnectionWhileWaitingIsTerminal() {
	cmd := models.MarkAttendanceCommand{Address: alice}
	s.ledger.EXPECT().Send(gomock.Any(), alice, cmd).Return(hashOf(6), nil)
	s.ledger.EXPECT().WaitReceipt(gomock.Any(), hashOf(6)).
		Return(nil, ledger.Unavailable(models.MethodMarkAttendance, errors.New("socket closed")))

	out, err := s.gateway.Execute(s.ctx, alice, cmd)
	s.ErrorIs(err, ledger.ErrProviderUnavailable)
	s.Equal(StateRejected, out.State)
	s.Nil(out.Receipt)
	s.Empty(out.Reason)
}

func (s *GatewaySuite) TestClosedGatewayRefusesSubmissions() {
	s.Require().NoError(s.gateway.Close(s.ctx))
	_, err := s.gateway.Submit(s.ctx, alice, models.MarkAttendanceCommand{Address: alice})
	s.ErrorIs(err, ledger.ErrProviderUnavailable)
}

func TestState_String(t *testing.T) {
	for state, want := range map[State]string{
		StateIdle:      "idle",
		StateSubmitted: "submitted",
		StatePending:   "pending",
		StateConfirmed: "confirmed",
		StateRejected:  "rejected",
	} {
		if got := state.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", state, got, want)
		}
	}
}
