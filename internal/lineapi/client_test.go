package lineapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/line-webhook-bridge/internal/config"
	domerrors "github.com/garyellow/line-webhook-bridge/internal/errors"
	"github.com/garyellow/line-webhook-bridge/internal/metrics"
)

type recordedRequest struct {
	Method   string
	Path     string
	Auth     string
	RetryKey string
	Body     map[string]any
}

type fakeLINE struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (f *fakeLINE) record(r *http.Request) {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, recordedRequest{
		Method:   r.Method,
		Path:     r.URL.Path,
		Auth:     r.Header.Get("Authorization"),
		RetryKey: r.Header.Get("X-Line-Retry-Key"),
		Body:     body,
	})
}

func (f *fakeLINE) last(t *testing.T) recordedRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *fakeLINE, *metrics.Metrics) {
	t.Helper()

	fake := &fakeLINE{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fake.record(r)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	m := metrics.New(prometheus.NewRegistry())
	client, err := New(Config{
		ChannelToken: "test-token",
		Endpoint:     srv.URL,
		Timeout:      200 * time.Millisecond,
		Metrics:      m,
	})
	require.NoError(t, err)

	return client, fake, m
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestReplyMessage(t *testing.T) {
	t.Parallel()

	client, fake, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"sentMessages":[{"id":"1","quoteToken":"q"}]}`)
	})

	err := client.ReplyMessage(context.Background(), "tok1", "Hello, Alice! You said: hi")
	require.NoError(t, err)

	req := fake.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/v2/bot/message/reply", req.Path)
	assert.Equal(t, "Bearer test-token", req.Auth)
	assert.Equal(t, "tok1", req.Body["replyToken"])

	messages, ok := req.Body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "text", msg["type"])
	assert.Equal(t, "Hello, Alice! You said: hi", msg["text"])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LineAPIRequestsTotal.WithLabelValues(OpReply, "success")))
}

func TestReplyMessage_StaleToken(t *testing.T) {
	t.Parallel()

	client, _, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"message":"Invalid reply token"}`)
	})

	err := client.ReplyMessage(context.Background(), "expired", "hi")
	require.Error(t, err)
	assert.True(t, domerrors.IsStaleToken(err))

	var remote *domerrors.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusBadRequest, remote.Status)
	assert.Contains(t, remote.Body, "Invalid reply token")
	assert.Equal(t, OpReply, remote.Operation)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.LineAPIRequestsTotal.WithLabelValues(OpReply, "stale_token")))
}

func TestPushMessage(t *testing.T) {
	t.Parallel()

	client, fake, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"sentMessages":[]}`)
	})

	require.NoError(t, client.PushMessage(context.Background(), "U1", "綁定成功"))
	first := fake.last(t)
	require.NoError(t, client.PushMessage(context.Background(), "U1", "綁定成功"))
	second := fake.last(t)

	assert.Equal(t, "/v2/bot/message/push", first.Path)
	assert.Equal(t, "U1", first.Body["to"])
	assert.NotEmpty(t, first.RetryKey)
	assert.NotEqual(t, first.RetryKey, second.RetryKey, "each push gets a fresh retry key")
}

func TestPushMessage_ServerError(t *testing.T) {
	t.Parallel()

	client, fake, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, `{"message":"oops"}`)
	})

	err := client.PushMessage(context.Background(), "U1", "hi")
	require.Error(t, err)
	assert.True(t, domerrors.IsRemote(err))
	assert.False(t, domerrors.IsNotFound(err))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Len(t, fake.requests, 1, "push is never retried")
}

func TestGetUserProfile(t *testing.T) {
	t.Parallel()

	client, fake, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"userId":"U1","displayName":"Alice","pictureUrl":"https://example.com/a.png","statusMessage":"hey"}`)
	})

	profile, err := client.GetUserProfile(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, &UserProfile{
		UserID:        "U1",
		DisplayName:   "Alice",
		PictureURL:    "https://example.com/a.png",
		StatusMessage: "hey",
	}, profile)

	req := fake.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/v2/bot/profile/U1", req.Path)
}

func TestGetUserProfile_NotFound(t *testing.T) {
	t.Parallel()

	client, _, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"message":"Not found"}`)
	})

	profile, err := client.GetUserProfile(context.Background(), "Unknown")
	assert.Nil(t, profile)
	require.Error(t, err)
	assert.True(t, domerrors.IsNotFound(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LineAPIRequestsTotal.WithLabelValues(OpGetProfile, "not_found")))
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	client, _, m := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-time.After(2 * time.Second):
		}
		writeJSON(w, http.StatusOK, `{}`)
	})
	defer close(release)

	err := client.ReplyMessage(context.Background(), "tok", "hi")
	require.Error(t, err)

	var remote *domerrors.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, 0, remote.Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LineAPIRequestsTotal.WithLabelValues(OpReply, "timeout")))
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	client, fake, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.ReplyMessage(ctx, "tok", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Empty(t, fake.requests)
}

func TestTextMessages_TruncatesToLimit(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("哈", config.LINEMaxTextMessageLength+10)
	msgs := textMessages(long)
	require.Len(t, msgs, 1)

	text := msgs[0].(*messaging_api.TextMessage).Text
	assert.Equal(t, config.LINEMaxTextMessageLength, len([]rune(text)))

	short := textMessages("hi")
	assert.Equal(t, "hi", short[0].(*messaging_api.TextMessage).Text)
}
