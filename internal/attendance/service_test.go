package attendance

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"rollcall/internal/attendance/mocks"
	"rollcall/internal/cache"
	cachemetrics "rollcall/internal/cache/metrics"
	"rollcall/internal/gateway"
	"rollcall/internal/ledger"
	"rollcall/internal/ledger/memory"
	"rollcall/internal/registry/models"
	"rollcall/internal/session"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/sentinel"
)

var (
	owner = id.MustParseAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	alice = id.MustParseAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	bob   = id.MustParseAddress("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ServiceSuite exercises the service against mocked collaborators.
type ServiceSuite struct {
	suite.Suite
	ctx     context.Context
	ctrl    *gomock.Controller
	gateway *mocks.MockGateway
	roster  *mocks.MockRoster
	reader  *mocks.MockAttendanceReader
	session *session.Session
	service *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.ctrl = gomock.NewController(s.T())
	s.gateway = mocks.NewMockGateway(s.ctrl)
	s.roster = mocks.NewMockRoster(s.ctrl)
	s.reader = mocks.NewMockAttendanceReader(s.ctrl)
	s.session = session.New()
	s.service = New(s.gateway, s.roster, s.reader, s.session, WithLogger(discardLogger()))
}

func (s *ServiceSuite) TestConnect() {
	s.Run("sets identity, reads attendance and resyncs", func() {
		s.reader.EXPECT().GetAttendance(gomock.Any(), alice).Return(uint64(4), nil)
		s.roster.EXPECT().Resync(gomock.Any(), alice).Return(cache.Snapshot{}, nil)
		s.roster.EXPECT().Contains(alice).Return(true)

		view, err := s.service.Connect(s.ctx, alice.Hex())

		s.Require().NoError(err)
		s.Require().NotNil(view.ActiveAddress)
		s.Equal(alice, *view.ActiveAddress)
		s.Equal(uint64(4), view.Attendance)
		s.True(view.Registered)
	})

	s.Run("rejects malformed address without touching the ledger", func() {
		_, err := s.service.Connect(s.ctx, "0x1234")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unreachable ledger is unavailable", func() {
		s.reader.EXPECT().GetAttendance(gomock.Any(), bob).
			Return(uint64(0), ledger.Unavailable("", errors.New("dial tcp: connection refused")))

		_, err := s.service.Connect(s.ctx, bob.Hex())
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})
}

func (s *ServiceSuite) TestMutationsRequireActiveAccount() {
	_, err := s.service.AddStudent(s.ctx, alice.Hex(), "Alice")
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.ErrorIs(err, ledger.ErrProviderUnavailable)

	_, err = s.service.MarkOwnAttendance(s.ctx)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestInvalidInputNeverReachesGateway() {
	s.session.SetActive(owner)

	_, err := s.service.AddStudent(s.ctx, "not-an-address", "Alice")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.AddStudent(s.ctx, alice.Hex(), "   ")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	err = s.service.RemoveStudent(s.ctx, id.Address{}.Hex())
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ServiceSuite) TestAddStudent_ReturnsReceiptRecord() {
	s.session.SetActive(owner)
	student := models.Student{Address: alice, Name: "Alice"}
	s.gateway.EXPECT().
		Execute(gomock.Any(), owner, models.AddStudentCommand{Address: alice, Name: "Alice"}).
		Return(gateway.Outcome{
			State:   gateway.StateConfirmed,
			Receipt: &ledger.Receipt{Status: ledger.StatusConfirmed, Student: student},
		}, nil)

	got, err := s.service.AddStudent(s.ctx, alice.Hex(), "  Alice ")

	s.Require().NoError(err)
	s.Equal(student, got)
}

func (s *ServiceSuite) TestErrorTranslation() {
	rejected := func(method models.Method, reason string) error {
		return ledger.Rejected(method, reason)
	}
	cases := []struct {
		name     string
		err      error
		wantCode dErrors.Code
		wantMsg  string
	}{
		{"duplicate", rejected(models.MethodMarkAttendance, models.ReasonDuplicateStudent), dErrors.CodeConflict, "Student already exists"},
		{"not found", rejected(models.MethodMarkAttendance, models.ReasonNotFound), dErrors.CodeNotFound, "Student not found"},
		{"not registered", rejected(models.MethodMarkAttendance, models.ReasonNotRegistered), dErrors.CodeUnprocessable, "Student not registered"},
		{"other revert", rejected(models.MethodMarkAttendance, ledger.ReasonUnauthorized), dErrors.CodeUnprocessable, "caller not authorized"},
		{"unavailable", ledger.Unavailable(models.MethodMarkAttendance, sentinel.ErrUnavailable), dErrors.CodeUnavailable, "ledger unavailable"},
		{"slot busy", gateway.ErrSlotBusy, dErrors.CodeConflict, "operation already pending"},
		{"deadline", context.DeadlineExceeded, dErrors.CodeTimeout, "stopped waiting for confirmation"},
		{"unknown", errors.New("boom"), dErrors.CodeInternal, "registry operation failed"},
	}

	s.session.SetActive(owner)
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.gateway.EXPECT().Execute(gomock.Any(), owner, gomock.Any()).Return(gateway.Outcome{}, tc.err)

			_, err := s.service.MarkAttendance(s.ctx, alice.Hex())

			s.True(dErrors.HasCode(err, tc.wantCode), "got %v", err)
			var de *dErrors.Error
			s.Require().ErrorAs(err, &de)
			s.Equal(tc.wantMsg, de.Message)
		})
	}
}

func (s *ServiceSuite) TestPendingDescriptors() {
	s.session.SetActive(owner)
	cmd := models.MarkAttendanceCommand{Address: alice}
	op := models.Describe(cmd)

	s.Run("busy slot keeps the earlier call's descriptor", func() {
		s.session.Begin(cmd)
		s.gateway.EXPECT().Execute(gomock.Any(), owner, gomock.Any()).Return(gateway.Outcome{}, gateway.ErrSlotBusy)

		_, err := s.service.MarkAttendance(s.ctx, alice.Hex())

		s.Error(err)
		s.Contains(s.session.View().Pending, op)
		s.session.End(cmd)
	})

	s.Run("failed submit clears the descriptor", func() {
		s.gateway.EXPECT().Execute(gomock.Any(), owner, gomock.Any()).
			DoAndReturn(func(context.Context, id.Address, models.Command) (gateway.Outcome, error) {
				s.Contains(s.session.View().Pending, op)
				return gateway.Outcome{}, ledger.Unavailable(models.MethodMarkAttendance, sentinel.ErrUnavailable)
			})

		_, err := s.service.MarkAttendance(s.ctx, alice.Hex())

		s.Error(err)
		s.Empty(s.session.View().Pending)
	})
}

func (s *ServiceSuite) TestUnknownOutcomeIsUnavailable() {
	s.session.SetActive(owner)
	s.gateway.EXPECT().Execute(gomock.Any(), owner, gomock.Any()).
		Return(gateway.Outcome{State: gateway.StateRejected}, nil)

	_, err := s.service.MarkAttendance(s.ctx, alice.Hex())
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ServiceSuite) TestIsRegistered() {
	s.False(s.service.IsRegistered())

	s.session.SetActive(alice)
	s.roster.EXPECT().Contains(alice).Return(false)
	s.False(s.service.IsRegistered())
}

// TestService_EndToEnd runs the full client stack against the in-memory ledger.
func TestService_EndToEnd(t *testing.T) {
	ctx := context.Background()
	network := memory.NewNetwork()
	defer network.Close()
	addr, err := network.Publish(ctx, owner, []byte("e2e"))
	require.NoError(t, err)
	l, err := network.Registry(addr)
	require.NoError(t, err)

	sess := session.New()
	c := cache.New(l, cache.WithLogger(discardLogger()), cache.WithMetrics(cachemetrics.New(prometheus.NewRegistry())))
	defer c.Close()
	gw := gateway.New(l, gateway.WithLogger(discardLogger()), gateway.WithSubscriber(c), gateway.WithSubscriber(sess))
	defer func() { require.NoError(t, gw.Close(ctx)) }()
	svc := New(gw, c, l, sess, WithLogger(discardLogger()))

	_, err = svc.Connect(ctx, owner.Hex())
	require.NoError(t, err)

	_, err = svc.AddStudent(ctx, alice.Hex(), "Alice")
	require.NoError(t, err)
	_, err = svc.AddStudent(ctx, owner.Hex(), "Owner")
	require.NoError(t, err)

	_, err = svc.AddStudent(ctx, alice.Hex(), "Alice again")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))

	student, err := svc.MarkOwnAttendance(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), student.AttendanceCount)

	view := svc.Session()
	assert.Equal(t, uint64(1), view.Attendance)
	assert.True(t, view.Registered)
	assert.Empty(t, view.Pending)

	roster := svc.Roster()
	assert.Equal(t, uint64(2), roster.Count)
	assert.Equal(t, []id.Address{alice, owner}, []id.Address{roster.Students[0].Address, roster.Students[1].Address})

	_, err = svc.MarkAttendance(ctx, bob.Hex())
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnprocessable))

	require.NoError(t, svc.RemoveStudent(ctx, owner.Hex()))
	assert.Equal(t, uint64(0), svc.Session().Attendance)
	assert.False(t, svc.IsRegistered())

	resynced, err := svc.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), resynced.Count)
	assert.False(t, resynced.Stale)
}
