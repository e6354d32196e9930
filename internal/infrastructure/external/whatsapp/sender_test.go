package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/marketplace-returns/internal/application/port"
	"github.com/garyjia/marketplace-returns/internal/domain/notification"
)

var rendered = &notification.RenderedMessage{
	TemplateCode: "wa_return_approved",
	Channel:      notification.ChannelWhatsApp,
	Header:       "Return update",
	Body:         "Hi Asha, return RET-1 is approved",
	Buttons:      []notification.Button{{Text: "Track", URL: "https://shop.example/r/RET-1"}},
	Params:       []string{"Asha", "RET-1"},
}

var asha = port.Recipient{Name: "Asha", Address: "+15550100"}

func TestSend_Success(t *testing.T) {
	var got sendRequest
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message_id":"wamid.1"}`))
	}))
	defer srv.Close()

	s := NewSender(Config{Endpoint: srv.URL, APIToken: "secret", Sender: "+15550000"}, nil, zap.NewNop())

	receipt, err := s.Send(context.Background(), rendered, asha, "return.approved:1:whatsapp")
	require.NoError(t, err)

	assert.Equal(t, "wamid.1", receipt.ProviderRef)
	assert.False(t, receipt.Duplicate)
	assert.Equal(t, "return.approved:1:whatsapp", headers.Get(IdempotencyHeader))
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
	assert.Equal(t, "+15550100", got.To)
	assert.Equal(t, []string{"Asha", "RET-1"}, got.Params)
	assert.Equal(t, "wa_return_approved", got.Template)
	require.Len(t, got.Buttons, 1)
	assert.Equal(t, "https://shop.example/r/RET-1", got.Buttons[0].URL)
}

func TestSend_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   error
		duplicate bool
	}{
		{"server error", http.StatusBadGateway, `{"error":"upstream"}`, port.ErrTransient, false},
		{"rate limited", http.StatusTooManyRequests, ``, port.ErrTransient, false},
		{"bad number", http.StatusBadRequest, `{"error":"invalid recipient"}`, port.ErrPermanent, false},
		{"unauthorized", http.StatusUnauthorized, ``, port.ErrPermanent, false},
		{"already accepted", http.StatusConflict, `{"message_id":"wamid.0"}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s := NewSender(Config{Endpoint: srv.URL}, nil, zap.NewNop())
			receipt, err := s.Send(context.Background(), rendered, asha, "k")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.duplicate, receipt.Duplicate)
			assert.Equal(t, "wamid.0", receipt.ProviderRef)
		})
	}
}

type failingClient struct{}

func (failingClient) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection reset by peer")
}

func TestSend_NetworkErrorIsTransient(t *testing.T) {
	s := NewSender(Config{Endpoint: "http://gateway.invalid/send"}, failingClient{}, zap.NewNop())

	_, err := s.Send(context.Background(), rendered, asha, "k")

	assert.ErrorIs(t, err, port.ErrTransient)
	assert.False(t, port.IsPermanent(err))
}

func TestChannel(t *testing.T) {
	assert.Equal(t, notification.ChannelWhatsApp, NewSender(Config{}, nil, zap.NewNop()).Channel())
}
