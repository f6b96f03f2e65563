package channels

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"message-notifier/internal/common/config"
	"message-notifier/internal/common/logger"
	"message-notifier/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockSNSService struct {
	PublishFunc func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

func (m *MockSNSService) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	return m.PublishFunc(ctx, params, optFns...)
}

func smsRuServer(t *testing.T, body string) (*httptest.Server, *url.URL) {
	t.Helper()
	var (
		mu   sync.Mutex
		last = &url.URL{}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		*last = *r.URL
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, last
}

func smsConfig(baseURL string) config.SMSChannelConfig {
	var cfg config.SMSChannelConfig
	cfg.Provider = "smsru"
	cfg.Timeout = 2000
	cfg.SMSRu.APIID = "api-123"
	cfg.SMSRu.BaseURL = baseURL
	return cfg
}

func TestSMSRuSender_Send(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		phone string
		body  string
		want  bool
	}{
		{
			name:  "single number accepted",
			phone: "79990001122",
			body:  `{"status":"OK","status_code":100,"sms":{"79990001122":{"status":"OK","status_code":100,"sms_id":"1"}}}`,
			want:  true,
		},
		{
			name:  "every leg accepted",
			phone: "79990001122,79990003344",
			body:  `{"status":"OK","status_code":100,"sms":{"79990001122":{"status":"OK","status_code":100},"79990003344":{"status":"OK","status_code":100}}}`,
			want:  true,
		},
		{
			name:  "one leg rejected fails the attempt",
			phone: "79990001122,79990003344",
			body:  `{"status":"OK","status_code":100,"sms":{"79990001122":{"status":"OK","status_code":100},"79990003344":{"status":"ERROR","status_code":207,"status_text":"no route"}}}`,
			want:  false,
		},
		{
			name:  "empty sms map",
			phone: "79990001122",
			body:  `{"status":"ERROR","status_code":200,"sms":{}}`,
			want:  false,
		},
		{
			name:  "non json body",
			phone: "79990001122",
			body:  `<html>gateway timeout</html>`,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := smsRuServer(t, tt.body)
			s := NewSMSRuSender(smsConfig(server.URL), logger.NewTestLogger(t))

			got := s.Send(ctx, models.Recipient{ID: "u1", PhoneNumber: tt.phone}, "hello")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSMSRuSender_RequestShape(t *testing.T) {
	server, last := smsRuServer(t, `{"status":"OK","sms":{"79990001122":{"status_code":100}}}`)
	s := NewSMSRuSender(smsConfig(server.URL), logger.NewTestLogger(t))

	require.True(t, s.Send(context.Background(), models.Recipient{ID: "u1", PhoneNumber: "79990001122"}, "hi there"))

	assert.Equal(t, "/sms/send", last.Path)
	q := last.Query()
	assert.Equal(t, "api-123", q.Get("api_id"))
	assert.Equal(t, "79990001122", q.Get("to"))
	assert.Equal(t, "hi there", q.Get("msg"))
	assert.Equal(t, "1", q.Get("json"))
}

func TestSMSRuSender_MissingInputs(t *testing.T) {
	server, _ := smsRuServer(t, `{}`)

	cfg := smsConfig(server.URL)
	cfg.SMSRu.APIID = ""
	assert.False(t, NewSMSRuSender(cfg, logger.NewTestLogger(t)).
		Send(context.Background(), models.Recipient{ID: "u1", PhoneNumber: "79990001122"}, "hi"))

	assert.False(t, NewSMSRuSender(smsConfig(server.URL), logger.NewTestLogger(t)).
		Send(context.Background(), models.Recipient{ID: "u1"}, "hi"))
}

func TestSMSRuSender_Unreachable(t *testing.T) {
	server, _ := smsRuServer(t, `{}`)
	addr := server.URL
	server.Close()

	assert.False(t, NewSMSRuSender(smsConfig(addr), logger.NewTestLogger(t)).
		Send(context.Background(), models.Recipient{ID: "u1", PhoneNumber: "79990001122"}, "hi"))
}

func TestSNSSender_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("all legs published", func(t *testing.T) {
		var phones []string
		api := &MockSNSService{PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			phones = append(phones, *params.PhoneNumber)
			return &sns.PublishOutput{}, nil
		}}

		ok := NewSNSSender(api, "NOTIFY", logger.NewTestLogger(t)).
			Send(ctx, models.Recipient{ID: "u1", PhoneNumber: "+15550001,+15550002"}, "hello")
		assert.True(t, ok)
		assert.Equal(t, []string{"+15550001", "+15550002"}, phones)
	})

	t.Run("partial failure reports false without skipping later legs", func(t *testing.T) {
		var phones []string
		api := &MockSNSService{PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			phones = append(phones, *params.PhoneNumber)
			if *params.PhoneNumber == "+15550001" {
				return nil, errors.New("InvalidParameter")
			}
			return &sns.PublishOutput{}, nil
		}}

		ok := NewSNSSender(api, "", logger.NewTestLogger(t)).
			Send(ctx, models.Recipient{ID: "u1", PhoneNumber: "+15550001,+15550002"}, "hello")
		assert.False(t, ok)
		assert.Equal(t, []string{"+15550001", "+15550002"}, phones)
	})

	t.Run("no phone", func(t *testing.T) {
		api := &MockSNSService{PublishFunc: func(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
			t.Fatal("publish must not be called")
			return nil, nil
		}}
		assert.False(t, NewSNSSender(api, "", logger.NewTestLogger(t)).Send(ctx, models.Recipient{ID: "u1"}, "hello"))
	})
}
