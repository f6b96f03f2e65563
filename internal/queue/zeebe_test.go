package queue

import (
	"context"
	stderrors "errors"
	"testing"

	"message-notifier/internal/common/errors"
	"message-notifier/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockProcessStarter struct {
	mock.Mock
}

func (m *MockProcessStarter) CreateProcessInstance(ctx context.Context, processID string, vars map[string]interface{}) (int64, error) {
	args := m.Called(ctx, processID, vars)
	return args.Get(0).(int64), args.Error(1)
}

func TestZeebeTrigger_Enqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("starts dispatch process", func(t *testing.T) {
		starter := new(MockProcessStarter)
		starter.On("CreateProcessInstance", ctx, "notification-dispatch",
			map[string]interface{}{"notificationId": "n-1"}).Return(int64(2251799813685249), nil)

		err := NewZeebeTrigger(starter, "notification-dispatch", logger.NewTestLogger(t)).Enqueue(ctx, "n-1")
		require.NoError(t, err)
		starter.AssertExpectations(t)
	})

	t.Run("engine failure becomes enqueue error", func(t *testing.T) {
		starter := new(MockProcessStarter)
		starter.On("CreateProcessInstance", ctx, "notification-dispatch", mock.Anything).
			Return(int64(0), stderrors.New("unavailable"))

		err := NewZeebeTrigger(starter, "notification-dispatch", logger.NewTestLogger(t)).Enqueue(ctx, "n-1")
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.ErrCodeEnqueueFailed))
	})
}
