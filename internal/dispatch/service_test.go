package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"message-notifier/internal/channels"
	"message-notifier/internal/common/config"
	apperrors "message-notifier/internal/common/errors"
	"message-notifier/internal/common/logger"
	"message-notifier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	args := m.Called(ctx, id)
	if n, ok := args.Get(0).(*models.Notification); ok {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) MarkFailed(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) MarkSent(ctx context.Context, id string, channel models.Channel, sentAt time.Time) error {
	return m.Called(ctx, id, channel, sentAt).Error(0)
}

func (m *MockStore) RecordFailedCycle(ctx context.Context, id string, retryCount int, channel models.Channel) error {
	return m.Called(ctx, id, retryCount, channel).Error(0)
}

// countingSender records how often it was invoked.
type countingSender struct {
	ok    bool
	panic interface{}
	calls int
}

func (c *countingSender) Send(context.Context, models.Recipient, string) bool {
	c.calls++
	if c.panic != nil {
		panic(c.panic)
	}
	return c.ok
}

var (
	fixedNow     = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	defaultOrder = []models.Channel{models.ChannelSMS, models.ChannelEmail, models.ChannelTelegram}
)

func pending(retries int) *models.Notification {
	return &models.Notification{
		ID:         "n-1",
		Recipient:  models.Recipient{ID: "u-1", Email: "a@example.com", PhoneNumber: "79990001122", TelegramID: "42"},
		Message:    "hello",
		Status:     models.StatusPending,
		RetryCount: retries,
		CreatedAt:  fixedNow.Add(-time.Hour),
	}
}

func newService(t *testing.T, store Store, senders map[models.Channel]channels.Sender) *Service {
	t.Helper()
	reg := channels.NewRegistry()
	for ch, s := range senders {
		reg.Register(ch, s)
	}
	svc, err := NewService(Policy{ChannelOrder: defaultOrder, MaxRetries: 3}, store, reg, logger.NewTestLogger(t))
	require.NoError(t, err)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestDispatchOnce_FirstSuccessfulChannelWins(t *testing.T) {
	ctx := context.Background()
	sms := &countingSender{ok: false}
	email := &countingSender{ok: true}
	telegram := &countingSender{ok: true}

	store := new(MockStore)
	store.On("GetByID", ctx, "n-1").Return(pending(1), nil)
	store.On("MarkSent", mock.Anything, "n-1", models.ChannelEmail, fixedNow).Return(nil)

	svc := newService(t, store, map[models.Channel]channels.Sender{
		models.ChannelSMS: sms, models.ChannelEmail: email, models.ChannelTelegram: telegram,
	})

	n, err := svc.DispatchOnce(ctx, "n-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusSent, n.Status)
	assert.Equal(t, models.ChannelEmail, n.LastChannel)
	require.NotNil(t, n.SentAt)
	assert.Equal(t, fixedNow, *n.SentAt)
	assert.Equal(t, 1, n.RetryCount, "retry count untouched on success")

	assert.Equal(t, 1, sms.calls)
	assert.Equal(t, 1, email.calls)
	assert.Equal(t, 0, telegram.calls, "channels after the first success are never tried")

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "RecordFailedCycle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchOnce_FirstChannelSucceeds(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("GetByID", ctx, "n-1").Return(pending(0), nil)
	store.On("MarkSent", mock.Anything, "n-1", models.ChannelSMS, fixedNow).Return(nil)

	email := &countingSender{ok: true}
	svc := newService(t, store, map[models.Channel]channels.Sender{
		models.ChannelSMS: &countingSender{ok: true}, models.ChannelEmail: email,
	})

	n, err := svc.DispatchOnce(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChannelSMS, n.LastChannel)
	assert.Equal(t, 0, email.calls)
	store.AssertExpectations(t)
}

func TestDispatchOnce_AllChannelsFail(t *testing.T) {
	ctx := context.Background()
	sms := &countingSender{ok: false}
	email := &countingSender{ok: false}
	telegram := &countingSender{ok: false}

	store := new(MockStore)
	store.On("GetByID", ctx, "n-1").Return(pending(1), nil)
	store.On("RecordFailedCycle", mock.Anything, "n-1", 2, models.ChannelTelegram).Return(nil)

	svc := newService(t, store, map[models.Channel]channels.Sender{
		models.ChannelSMS: sms, models.ChannelEmail: email, models.ChannelTelegram: telegram,
	})

	n, err := svc.DispatchOnce(ctx, "n-1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPending, n.Status)
	assert.Equal(t, 2, n.RetryCount)
	assert.Equal(t, models.ChannelTelegram, n.LastChannel)
	assert.Nil(t, n.SentAt)
	assert.Equal(t, 1, sms.calls)
	assert.Equal(t, 1, email.calls)
	assert.Equal(t, 1, telegram.calls)

	store.AssertExpectations(t)
	store.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything)
}

func TestDispatchOnce_CeilingReachedMarksFailedWithoutSending(t *testing.T) {
	for _, retries := range []int{3, 4} {
		ctx := context.Background()
		sms := &countingSender{ok: true}

		store := new(MockStore)
		store.On("GetByID", ctx, "n-1").Return(pending(retries), nil)
		store.On("MarkFailed", mock.Anything, "n-1").Return(nil)

		svc := newService(t, store, map[models.Channel]channels.Sender{models.ChannelSMS: sms})

		n, err := svc.DispatchOnce(ctx, "n-1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, n.Status)
		assert.Equal(t, retries, n.RetryCount)
		assert.Equal(t, 0, sms.calls)
		store.AssertExpectations(t)
	}
}

func TestDispatchOnce_FailedOnlyOnCallAfterCeiling(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("GetByID", ctx, "n-1").Return(pending(2), nil).Once()
	store.On("RecordFailedCycle", mock.Anything, "n-1", 3, models.ChannelTelegram).Return(nil).Once()

	svc := newService(t, store, map[models.Channel]channels.Sender{
		models.ChannelSMS:      &countingSender{},
		models.ChannelEmail:    &countingSender{},
		models.ChannelTelegram: &countingSender{},
	})

	n, err := svc.DispatchOnce(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, n.Status, "the cycle that reaches the ceiling leaves the record pending")
	assert.Equal(t, 3, n.RetryCount)

	store.On("GetByID", ctx, "n-1").Return(pending(3), nil).Once()
	store.On("MarkFailed", mock.Anything, "n-1").Return(nil).Once()

	n, err = svc.DispatchOnce(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, n.Status)
	store.AssertExpectations(t)
}

func TestDispatchOnce_TerminalRecordsAreLeftAlone(t *testing.T) {
	sentAt := fixedNow.Add(-time.Minute)
	tests := []struct {
		name string
		rec  *models.Notification
	}{
		{
			name: "sent",
			rec: &models.Notification{ID: "n-1", Status: models.StatusSent, LastChannel: models.ChannelEmail, SentAt: &sentAt},
		},
		{
			name: "failed",
			rec:  &models.Notification{ID: "n-1", Status: models.StatusFailed, RetryCount: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			sms := &countingSender{ok: true}
			store := new(MockStore)
			store.On("GetByID", ctx, "n-1").Return(tt.rec, nil)

			svc := newService(t, store, map[models.Channel]channels.Sender{models.ChannelSMS: sms})

			n, err := svc.DispatchOnce(ctx, "n-1")
			require.NoError(t, err)
			assert.Equal(t, tt.rec.Status, n.Status)
			assert.Equal(t, tt.rec.SentAt, n.SentAt)
			assert.Equal(t, 0, sms.calls)

			store.AssertExpectations(t)
			store.AssertNotCalled(t, "MarkSent", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			store.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything)
			store.AssertNotCalled(t, "RecordFailedCycle", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDispatchOnce_PanickingSenderCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("GetByID", ctx, "n-1").Return(pending(0), nil)
	store.On("MarkSent", mock.Anything, "n-1", models.ChannelEmail, fixedNow).Return(nil)

	sms := &countingSender{panic: "index out of range"}
	svc := newService(t, store, map[models.Channel]channels.Sender{
		models.ChannelSMS:   sms,
		models.ChannelEmail: &countingSender{ok: true},
	})

	n, err := svc.DispatchOnce(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, n.Status)
	assert.Equal(t, models.ChannelEmail, n.LastChannel)
	assert.Equal(t, 1, sms.calls)
	store.AssertExpectations(t)
}

func TestDispatchOnce_UnregisteredChannelCountsAsFailure(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	store.On("GetByID", ctx, "n-1").Return(pending(0), nil)
	store.On("RecordFailedCycle", mock.Anything, "n-1", 1, models.ChannelTelegram).Return(nil)

	svc := newService(t, store, map[models.Channel]channels.Sender{
		models.ChannelSMS: &countingSender{ok: false},
	})

	n, err := svc.DispatchOnce(ctx, "n-1")
	require.NoError(t, err)
	assert.Equal(t, models.ChannelTelegram, n.LastChannel)
	store.AssertExpectations(t)
}

func TestDispatchOnce_NotFound(t *testing.T) {
	ctx := context.Background()
	notFound := apperrors.NewNotificationNotFoundError("missing", errors.New("no rows"))

	store := new(MockStore)
	store.On("GetByID", ctx, "missing").Return(nil, notFound)

	sms := &countingSender{ok: true}
	svc := newService(t, store, map[models.Channel]channels.Sender{models.ChannelSMS: sms})

	n, err := svc.DispatchOnce(ctx, "missing")
	assert.Nil(t, n)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotificationNotFound))
	assert.Equal(t, 0, sms.calls)
}

func TestDispatchOnce_PersistenceErrorsSurface(t *testing.T) {
	ctx := context.Background()
	dbErr := apperrors.NewQueryExecutionFailedError("mark sent", errors.New("connection reset"))

	store := new(MockStore)
	store.On("GetByID", ctx, "n-1").Return(pending(0), nil)
	store.On("MarkSent", mock.Anything, "n-1", models.ChannelSMS, fixedNow).Return(dbErr)

	svc := newService(t, store, map[models.Channel]channels.Sender{models.ChannelSMS: &countingSender{ok: true}})

	_, err := svc.DispatchOnce(ctx, "n-1")
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeQueryExecutionFailed))
}

// slowSender reports ok only after the delay, regardless of ctx.
type slowSender struct {
	delay time.Duration
	ok    bool
}

func (s slowSender) Send(context.Context, models.Recipient, string) bool {
	time.Sleep(s.delay)
	return s.ok
}

// liveContext matches a context that is neither cancelled nor past its deadline.
var liveContext = mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil })

func TestDispatchOnce_OutcomeWrittenAfterCallerDeadline(t *testing.T) {
	tests := []struct {
		name   string
		ok     bool
		expect func(store *MockStore)
		check  func(t *testing.T, n *models.Notification)
	}{
		{
			name: "sent",
			ok:   true,
			expect: func(store *MockStore) {
				store.On("MarkSent", liveContext, "n-1", models.ChannelSMS, fixedNow).Return(nil).Once()
			},
			check: func(t *testing.T, n *models.Notification) {
				assert.Equal(t, models.StatusSent, n.Status)
				assert.Equal(t, models.ChannelSMS, n.LastChannel)
			},
		},
		{
			name: "all channels failed",
			ok:   false,
			expect: func(store *MockStore) {
				store.On("RecordFailedCycle", liveContext, "n-1", 1, models.ChannelSMS).Return(nil).Once()
			},
			check: func(t *testing.T, n *models.Notification) {
				assert.Equal(t, models.StatusPending, n.Status)
				assert.Equal(t, 1, n.RetryCount)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			store := new(MockStore)
			store.On("GetByID", ctx, "n-1").Return(pending(0), nil)
			tt.expect(store)

			reg := channels.NewRegistry()
			reg.Register(models.ChannelSMS, slowSender{delay: 60 * time.Millisecond, ok: tt.ok})
			svc, err := NewService(Policy{ChannelOrder: []models.Channel{models.ChannelSMS}, MaxRetries: 3},
				store, reg, logger.NewTestLogger(t))
			require.NoError(t, err)
			svc.now = func() time.Time { return fixedNow }

			n, err := svc.DispatchOnce(ctx, "n-1")
			require.NoError(t, err)
			require.Error(t, ctx.Err())
			tt.check(t, n)
			store.AssertExpectations(t)
		})
	}
}

func TestNewService_RejectsBadPolicy(t *testing.T) {
	_, err := NewService(Policy{MaxRetries: 3}, new(MockStore), channels.NewRegistry(), logger.NewNoOpLogger())
	assert.Error(t, err)

	_, err = NewService(Policy{ChannelOrder: defaultOrder, MaxRetries: -1}, new(MockStore), channels.NewRegistry(), logger.NewNoOpLogger())
	assert.Error(t, err)
}

func TestPolicyFromConfig(t *testing.T) {
	policy, err := PolicyFromConfig(config.DispatchConfig{ChannelOrder: []string{"telegram", "sms"}, MaxRetries: 5})
	require.NoError(t, err)
	assert.Equal(t, []models.Channel{models.ChannelTelegram, models.ChannelSMS}, policy.ChannelOrder)
	assert.Equal(t, 5, policy.MaxRetries)

	_, err = PolicyFromConfig(config.DispatchConfig{ChannelOrder: []string{"fax"}})
	assert.Error(t, err)
}
