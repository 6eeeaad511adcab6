package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-github/v66/github"
	deploymocks "github.com/marcelsud/deployhook/deploy/mocks"
	"github.com/marcelsud/deployhook/logsink"
	"github.com/marcelsud/deployhook/metrics"
	"github.com/marcelsud/deployhook/tenant"
	"github.com/marcelsud/deployhook/webhook"
	"github.com/marcelsud/deployhook/webhook/mocks"
	"github.com/marcelsud/deployhook/webhook/payload"
	"github.com/marcelsud/deployhook/webhook/signature"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

/*
 * The first tests drive the handler with a mocked classifier. The receiver
 * tests further down wire the real classifier to an in-memory tenant store,
 * so only the deployment itself is mocked.
 */

const (
	bobSecret = "bob-secret"
	pushBody  = `{"ref":"refs/heads/main","pusher":{"name":"alice"},"repository":{"full_name":"org/repo"}}`
)

type response struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	App        string `json:"app"`
	Event      string `json:"event"`
	Ref        string `json:"ref"`
	Repository string `json:"repository"`
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) response {
	t.Helper()
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, strconv.Itoa(w.Body.Len()), w.Header().Get("Content-Length"))
	var res response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res
}

type handledRequest struct {
	reason string
	code   int
}

type fakeRecorder struct {
	metrics.Nop
	requests []handledRequest
}

func (r *fakeRecorder) RequestHandled(_ context.Context, reason string, code int) {
	r.requests = append(r.requests, handledRequest{reason: reason, code: code})
}

func TestPostWebhook_Rejection(t *testing.T) {
	ctx := context.Background()
	classifier := mocks.NewUseCase(t)
	dispatcher := deploymocks.NewUseCase(t)
	recorder := &fakeRecorder{}

	classifier.On("Classify", mock.Anything, webhook.MatchRequest(func(req webhook.Request) bool {
		return req.Path == "/webhook/bob" && string(req.Body) == "{}"
	})).Return(webhook.Event{}, &webhook.Rejection{Reason: webhook.InvalidSignature, Message: "Invalid signature"}).Once()

	h := WebhookHandlers(ctx, classifier, dispatcher, recorder, nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook/bob", strings.NewReader("{}"))
	assert.NoError(t, err)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	res := decodeResponse(t, w)
	assert.Equal(t, "error", res.Status)
	assert.Equal(t, "Invalid signature", res.Message)
	assert.Equal(t, []handledRequest{{reason: "invalid_signature", code: http.StatusUnauthorized}}, recorder.requests)
}

func TestPostWebhook_UnexpectedError(t *testing.T) {
	ctx := context.Background()
	classifier := mocks.NewUseCase(t)
	classifier.On("Classify", mock.Anything, mock.Anything).Return(webhook.Event{}, errors.New("boom")).Once()

	h := WebhookHandlers(ctx, classifier, deploymocks.NewUseCase(t), metrics.Nop{}, nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook/bob", strings.NewReader("{}"))
	assert.NoError(t, err)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	res := decodeResponse(t, w)
	assert.Equal(t, "error", res.Status)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestPostWebhook_PushRespondsBeforeDispatch(t *testing.T) {
	ctx := context.Background()
	classifier := mocks.NewUseCase(t)
	dispatcher := deploymocks.NewUseCase(t)
	recorder := &fakeRecorder{}

	classifier.On("Classify", mock.Anything, mock.Anything).Return(webhook.Event{
		Tenant: "bob",
		Kind:   webhook.Push,
		Name:   "push",
		Push:   &payload.Push{Ref: "refs/heads/main", Pusher: "alice", Repository: "org/repo"},
	}, nil).Once()

	w := httptest.NewRecorder()
	dispatcher.On("Dispatch", mock.Anything, "bob").Run(func(args mock.Arguments) {
		assert.True(t, w.Flushed, "response must be flushed before the deployment starts")
		assert.Contains(t, w.Body.String(), "Deployment started")
	}).Once()

	h := WebhookHandlers(ctx, classifier, dispatcher, recorder, nil)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook/bob", strings.NewReader(pushBody))
	assert.NoError(t, err)
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	res := decodeResponse(t, w)
	assert.Equal(t, response{
		Status:     "success",
		Message:    "Deployment started",
		App:        "bob",
		Ref:        "refs/heads/main",
		Repository: "org/repo",
	}, res)
	assert.Equal(t, []handledRequest{{reason: "accepted", code: http.StatusOK}}, recorder.requests)
}

func TestWebhookHandlers_Health(t *testing.T) {
	ctx := context.Background()
	h := WebhookHandlers(ctx, mocks.NewUseCase(t), deploymocks.NewUseCase(t), metrics.Nop{}, nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/health", nil)
	assert.NoError(t, err)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestWebhookHandlers_Metrics(t *testing.T) {
	ctx := context.Background()
	metricsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("deployhook_requests_total 1\n"))
	})
	h := WebhookHandlers(ctx, mocks.NewUseCase(t), deploymocks.NewUseCase(t), metrics.Nop{}, metricsHandler)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "/metrics", nil)
	assert.NoError(t, err)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "deployhook_requests_total")
}

// receiver wires the real classifier to an in-memory store where bob is
// configured and carol exists without a secret
func receiver(t *testing.T) (http.Handler, *deploymocks.UseCase, *logsink.Memory) {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/deployhook/apps.json", []byte(`{"bob":{},"carol":{}}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/etc/deployhook/webhooks.json", []byte(`{"bob":{"secret":"`+bobSecret+`"}}`), 0o600))

	mem := logsink.NewMemory()
	store := tenant.NewFileStore(fs, "/etc/deployhook/apps.json", "/etc/deployhook/webhooks.json")
	classifier := webhook.NewService(store, logsink.New([]logsink.Sink{mem}))
	dispatcher := deploymocks.NewUseCase(t)

	return WebhookHandlers(context.Background(), classifier, dispatcher, metrics.Nop{}, nil), dispatcher, mem
}

func githubRequest(t *testing.T, method, path, event string, body []byte, secret string) *http.Request {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), method, path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.EventHeader, event)
	req.Header.Set(webhook.DeliveryHeader, "72d3162e-cc78-11e3-81ab-4c9367dc0958")
	req.Header.Set(signature.Header, signature.Sign(body, []byte(secret)))
	return req
}

func TestReceiver_Ping(t *testing.T) {
	h, _, mem := receiver(t)

	// the dispatcher mock has no expectations, any Dispatch call fails the test
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, githubRequest(t, http.MethodPost, "/webhook/bob", "ping", []byte(`{"zen":"Keep it logically awesome."}`), bobSecret))

		assert.Equal(t, http.StatusOK, w.Code)
		res := decodeResponse(t, w)
		assert.Equal(t, "success", res.Status)
		assert.Equal(t, "Pong! Webhook configured successfully.", res.Message)
		assert.Equal(t, "bob", res.App)
	}
	assert.Len(t, mem.Messages(logsink.Info), 6)
}

func TestReceiver_Push(t *testing.T) {
	h, dispatcher, _ := receiver(t)
	dispatcher.On("Dispatch", mock.Anything, "bob").Once()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, githubRequest(t, http.MethodPost, "/webhook/bob/", "push", []byte(pushBody), bobSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	res := decodeResponse(t, w)
	assert.Equal(t, "Deployment started", res.Message)
	assert.Equal(t, "bob", res.App)
	assert.Equal(t, "refs/heads/main", res.Ref)
	assert.Equal(t, "org/repo", res.Repository)
	dispatcher.AssertNumberOfCalls(t, "Dispatch", 1)
}

func TestReceiver_PushBuiltWithGitHubTypes(t *testing.T) {
	h, dispatcher, _ := receiver(t)
	dispatcher.On("Dispatch", mock.Anything, "bob").Once()

	body, err := json.Marshal(github.PushEvent{
		Ref:    github.String("refs/heads/release"),
		Pusher: &github.CommitAuthor{Name: github.String("alice")},
		Repo:   &github.PushEventRepository{FullName: github.String("org/service")},
	})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, githubRequest(t, http.MethodPost, "/webhook/bob", "push", body, bobSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	res := decodeResponse(t, w)
	assert.Equal(t, "refs/heads/release", res.Ref)
	assert.Equal(t, "org/service", res.Repository)
}

func TestReceiver_OtherEvent(t *testing.T) {
	h, _, _ := receiver(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, githubRequest(t, http.MethodPost, "/webhook/bob", "issues", []byte(`{"action":"opened"}`), bobSecret))

	assert.Equal(t, http.StatusOK, w.Code)
	res := decodeResponse(t, w)
	assert.Equal(t, "Event 'issues' acknowledged but not processed.", res.Message)
	assert.Equal(t, "bob", res.App)
	assert.Equal(t, "issues", res.Event)
}

func TestReceiver_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		path    string
		event   string
		body    []byte
		secret  string
		code    int
		message string
	}{
		{
			name:    "wrong method",
			method:  http.MethodGet,
			path:    "/webhook/bob",
			event:   "push",
			body:    []byte(pushBody),
			secret:  bobSecret,
			code:    http.StatusMethodNotAllowed,
			message: "Method not allowed. Use POST.",
		},
		{
			name:    "wrong method on a known route",
			method:  http.MethodPost,
			path:    "/health",
			event:   "ping",
			body:    []byte(`{}`),
			secret:  bobSecret,
			code:    http.StatusBadRequest,
			message: "Invalid webhook URL. Expected /webhook/<app>",
		},
		{
			name:    "missing app",
			method:  http.MethodPost,
			path:    "/webhook",
			event:   "ping",
			body:    []byte(`{}`),
			secret:  bobSecret,
			code:    http.StatusBadRequest,
			message: "Invalid webhook URL. Expected /webhook/<app>",
		},
		{
			name:    "nested path",
			method:  http.MethodPost,
			path:    "/webhook/bob/extra",
			event:   "ping",
			body:    []byte(`{}`),
			secret:  bobSecret,
			code:    http.StatusBadRequest,
			message: "Invalid webhook URL. Expected /webhook/<app>",
		},
		{
			name:    "unknown app",
			method:  http.MethodPost,
			path:    "/webhook/mallory",
			event:   "ping",
			body:    []byte(`{}`),
			secret:  bobSecret,
			code:    http.StatusNotFound,
			message: "App not found",
		},
		{
			name:    "app without secret",
			method:  http.MethodPost,
			path:    "/webhook/carol",
			event:   "ping",
			body:    []byte(`{}`),
			secret:  bobSecret,
			code:    http.StatusUnauthorized,
			message: "Webhook not configured for this app",
		},
		{
			name:    "empty body",
			method:  http.MethodPost,
			path:    "/webhook/bob",
			event:   "push",
			body:    []byte{},
			secret:  bobSecret,
			code:    http.StatusBadRequest,
			message: "Empty payload",
		},
		{
			name:    "payload one byte over the limit",
			method:  http.MethodPost,
			path:    "/webhook/bob",
			event:   "push",
			body:    bytes.Repeat([]byte("a"), webhook.MaxPayloadBytes+1),
			secret:  bobSecret,
			code:    http.StatusRequestEntityTooLarge,
			message: "Payload too large. Maximum size is 10MB.",
		},
		{
			name:    "wrong secret",
			method:  http.MethodPost,
			path:    "/webhook/bob",
			event:   "push",
			body:    []byte(pushBody),
			secret:  "not-bob-secret",
			code:    http.StatusUnauthorized,
			message: "Invalid signature",
		},
		{
			name:    "invalid json push",
			method:  http.MethodPost,
			path:    "/webhook/bob",
			event:   "push",
			body:    []byte(`{"ref":`),
			secret:  bobSecret,
			code:    http.StatusBadRequest,
			message: "Invalid JSON payload: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, dispatcher, _ := receiver(t)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, githubRequest(t, tt.method, tt.path, tt.event, tt.body, tt.secret))

			assert.Equal(t, tt.code, w.Code)
			res := decodeResponse(t, w)
			assert.Equal(t, "error", res.Status)
			assert.True(t, strings.HasPrefix(res.Message, tt.message), "message %q", res.Message)
			dispatcher.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
		})
	}
}

func TestReceiver_EncodedNewlineInPathStaysOnOneLogLine(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/deployhook/apps.json", []byte(`{"bob":{}}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/etc/deployhook/webhooks.json", []byte(`{"bob":{"secret":"`+bobSecret+`"}}`), 0o600))
	file, err := logsink.OpenFile(fs, "/var/log/deployhook/webhook.log")
	require.NoError(t, err)
	defer file.Close()

	store := tenant.NewFileStore(fs, "/etc/deployhook/apps.json", "/etc/deployhook/webhooks.json")
	classifier := webhook.NewService(store, logsink.New([]logsink.Sink{file}))
	h := WebhookHandlers(context.Background(), classifier, deploymocks.NewUseCase(t), metrics.Nop{}, nil)

	path := "/webhook/x%0A[2026-01-01%2000:00:00]%20[INFO]%20Deployment%20completed%20for%20bob"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, githubRequest(t, http.MethodPost, path, "ping", []byte(`{}`), bobSecret))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	data, err := afero.ReadFile(fs, "/var/log/deployhook/webhook.log")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 1, "log file:\n%s", data)
	assert.Contains(t, lines[0], "[WARN] Invalid webhook URL: /webhook/x%0A")
	for _, line := range lines {
		assert.False(t, strings.HasPrefix(line, "[2026-01-01 00:00:00]"), "injected log line %q", line)
	}
}

func TestReceiver_OversizeBodyIsNotReadFully(t *testing.T) {
	h, _, _ := receiver(t)
	body := &countingReader{remaining: 3 * webhook.MaxPayloadBytes}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, "/webhook/bob", body)
	require.NoError(t, err)
	req.Header.Set(signature.Header, "sha256=00")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.LessOrEqual(t, body.read, webhook.MaxPayloadBytes+1)
}

// countingReader produces remaining bytes of 'a' and counts what was consumed
type countingReader struct {
	remaining int
	read      int
}

func (r *countingReader) Read(p []byte) (int, error) {
	if r.remaining == 0 {
		return 0, io.EOF
	}
	n := len(p)
	if n > r.remaining {
		n = r.remaining
	}
	for i := 0; i < n; i++ {
		p[i] = 'a'
	}
	r.remaining -= n
	r.read += n
	return n, nil
}
