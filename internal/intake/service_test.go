package intake

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"message-notifier/internal/common/errors"
	"message-notifier/internal/common/logger"
	"message-notifier/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Create(ctx context.Context, recipientID, message string) (*models.Notification, error) {
	args := m.Called(ctx, recipientID, message)
	if n, ok := args.Get(0).(*models.Notification); ok {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	args := m.Called(ctx, id)
	if n, ok := args.Get(0).(*models.Notification); ok {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockTrigger struct {
	mock.Mock
}

func (m *MockTrigger) Enqueue(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func pendingNotification() *models.Notification {
	return &models.Notification{
		ID:        "4b7f0c3e-1d2a-4c55-9f5e-0e8c2d7a9b11",
		Recipient: models.Recipient{ID: "user-1"},
		Message:   "hello",
		Status:    models.StatusPending,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestService_Submit(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and enqueues", func(t *testing.T) {
		store, trigger := new(MockStore), new(MockTrigger)
		n := pendingNotification()
		store.On("Create", ctx, "user-1", "hello").Return(n, nil)
		trigger.On("Enqueue", ctx, n.ID).Return(nil)

		got, err := NewService(store, trigger, logger.NewTestLogger(t)).Submit(ctx, "user-1", "hello")
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.Equal(t, 0, got.RetryCount)
		store.AssertExpectations(t)
		trigger.AssertExpectations(t)
	})

	t.Run("enqueue failure keeps record", func(t *testing.T) {
		store, trigger := new(MockStore), new(MockTrigger)
		n := pendingNotification()
		store.On("Create", ctx, "user-1", "hello").Return(n, nil)
		trigger.On("Enqueue", ctx, n.ID).Return(errors.NewEnqueueFailedError(n.ID, stderrors.New("broker down")))

		got, err := NewService(store, trigger, logger.NewTestLogger(t)).Submit(ctx, "user-1", "hello")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeEnqueueFailed))
		require.NotNil(t, got)
		assert.Equal(t, n.ID, got.ID)
		assert.Equal(t, models.StatusPending, got.Status)
	})

	t.Run("unknown recipient is not enqueued", func(t *testing.T) {
		store, trigger := new(MockStore), new(MockTrigger)
		store.On("Create", ctx, "ghost", "hello").Return(nil, errors.NewRecipientNotFoundError("ghost", nil))

		got, err := NewService(store, trigger, logger.NewTestLogger(t)).Submit(ctx, "ghost", "hello")
		require.Error(t, err)
		assert.Nil(t, got)
		assert.True(t, errors.HasCode(err, errors.ErrCodeRecipientNotFound))
		trigger.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	})
}

func TestService_Get(t *testing.T) {
	ctx := context.Background()
	store := new(MockStore)
	n := pendingNotification()
	store.On("GetByID", ctx, n.ID).Return(n, nil)

	got, err := NewService(store, new(MockTrigger), logger.NewNoOpLogger()).Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Same(t, n, got)
}
