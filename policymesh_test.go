package policymesh_test

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/policymesh"
	"github.com/ashita-ai/policymesh/internal/testutil"
)

type recordingProvider struct {
	mu     sync.Mutex
	reply  string
	err    error
	calls  int
	models []string
	last   []policymesh.Message
}

func (p *recordingProvider) Chat(_ context.Context, messages []policymesh.Message, model string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.models = append(p.models, model)
	p.last = messages
	return p.reply, p.err
}

func (p *recordingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func intPtr(n int) *int { return &n }

func newApp(t *testing.T, local, cloud policymesh.ChatProvider, extra ...policymesh.Option) *policymesh.App {
	t.Helper()
	t.Setenv("AUDIT_ENABLED", "")
	opts := []policymesh.Option{
		policymesh.WithLogger(testutil.TestLogger()),
		policymesh.WithVersion("test"),
		policymesh.WithDatabaseURL("sqlite://"),
		policymesh.WithPolicy(policymesh.Policy{
			SensitivityKeywords:         []string{" Salary "},
			CostMaxPromptLengthForLocal: intPtr(20),
		}),
		policymesh.WithLocalProvider(local),
		policymesh.WithCloudProvider(cloud),
	}
	app, err := policymesh.New(append(opts, extra...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })
	return app
}

func postChat(t *testing.T, h http.Handler, body string) map[string]any {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, out["request_id"], rec.Header().Get("X-Request-ID"))
	return out
}

func getAudit(t *testing.T, h http.Handler, id string) map[string]any {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/"+id, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestAppRoutesThroughCustomProviders(t *testing.T) {
	local := &recordingProvider{reply: "from local"}
	cloud := &recordingProvider{reply: "from cloud"}
	h := newApp(t, local, cloud).Handler()

	out := postChat(t, h, `{"messages":[{"role":"user","content":"what is my SALARY band and why is it so low"}]}`)
	assert.Equal(t, "local", out["provider"])
	assert.Equal(t, []any{"sensitive_keyword_match"}, out["reason_codes"])
	assert.Equal(t, "from local", out["content"])

	out = postChat(t, h, `{"messages":[{"role":"user","content":"a long question that is not sensitive at all"}],"model":"gpt-4o"}`)
	assert.Equal(t, "cloud", out["provider"])
	assert.Equal(t, []any{"default_openai"}, out["reason_codes"])
	assert.Equal(t, "from cloud", out["content"])

	assert.Equal(t, 1, local.callCount())
	assert.Equal(t, 1, cloud.callCount())
	assert.Equal(t, []string{"gpt-4o"}, cloud.models)
	require.Len(t, cloud.last, 1)
	assert.Equal(t, policymesh.RoleUser, cloud.last[0].Role)

	ev := getAudit(t, h, out["request_id"].(string))
	assert.Equal(t, "success", ev["status"])
	assert.Equal(t, "provider=cloud,reason_codes=default_openai", ev["decision"])
}

func TestAppProviderErrorCategories(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category string
		message  string
	}{
		{"categorized", &policymesh.ProviderError{Category: policymesh.FailureAuth, Message: "bad key"}, "auth_error", "bad key"},
		{"wrapped", errors.Join(errors.New("ctx"), &policymesh.ProviderError{Category: policymesh.FailureServer}), "server_error", "server_error"},
		{"deadline", context.DeadlineExceeded, "timeout", context.DeadlineExceeded.Error()},
		{"plain", errors.New("boom"), "unknown", "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			local := &recordingProvider{}
			cloud := &recordingProvider{err: tt.err}
			h := newApp(t, local, cloud).Handler()

			out := postChat(t, h, `{"messages":[{"role":"user","content":"this prompt is long enough for cloud"}]}`)
			assert.Equal(t, "cloud", out["provider"])
			assert.Nil(t, out["content"])
			assert.Equal(t, tt.message, out["error"])

			ev := getAudit(t, h, out["request_id"].(string))
			assert.Equal(t, "failure", ev["status"])
			assert.Equal(t, tt.category, ev["failure_category"])
		})
	}
}

func TestAppExtensionPoints(t *testing.T) {
	var order []string
	mw := func(tag string) policymesh.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, tag)
				next.ServeHTTP(w, r)
			})
		}
	}
	app := newApp(t, &recordingProvider{}, &recordingProvider{},
		policymesh.WithMiddleware(mw("outer")),
		policymesh.WithMiddleware(mw("inner")),
		policymesh.WithExtraRoutes(func(mux *http.ServeMux) {
			mux.HandleFunc("GET /v1/extra", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("extra"))
			})
		}),
	)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/extra", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "extra", rec.Body.String())
	assert.Equal(t, []string{"outer", "inner"}, order)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAppRoutesReflectsPinnedPolicy(t *testing.T) {
	usd := 0.01
	price := 0.5
	app := newApp(t, &recordingProvider{}, &recordingProvider{}, policymesh.WithPolicy(policymesh.Policy{
		SensitivityKeywords:      []string{"a", "b", ""},
		DefaultProvider:          policymesh.ProviderLocal,
		CostMaxUSDForLocal:       &usd,
		CloudInputUSDPer1KTokens: &price,
	}))

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/routes", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.EqualValues(t, 2, out["sensitivity_keyword_count"])
	assert.Equal(t, "local", out["default_provider"])
	assert.Equal(t, true, out["cost_usd_mode"])
	assert.EqualValues(t, 1000, out["cost_max_prompt_length_for_local"])
	assert.EqualValues(t, 4, out["cost_chars_per_token"])
}

func TestAppPinnedZeroLengthThreshold(t *testing.T) {
	local := &recordingProvider{reply: "from local"}
	cloud := &recordingProvider{reply: "from cloud"}
	app := newApp(t, local, cloud, policymesh.WithPolicy(policymesh.Policy{
		CostMaxPromptLengthForLocal: intPtr(0),
	}))
	h := app.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/routes", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var routes map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &routes))
	assert.EqualValues(t, 0, routes["cost_max_prompt_length_for_local"])

	out := postChat(t, h, `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, "cloud", out["provider"])
	assert.Equal(t, []any{"default_openai"}, out["reason_codes"])
	assert.Equal(t, 0, local.callCount())
}

func TestAppAuditDisabled(t *testing.T) {
	app := newApp(t, &recordingProvider{reply: "ok"}, &recordingProvider{reply: "ok"}, policymesh.WithDatabaseURL(""))
	h := app.Handler()

	out := postChat(t, h, `{"messages":[{"role":"user","content":"hi"}]}`)
	assert.Equal(t, "ok", out["content"])

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audit/"+out["request_id"].(string), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	assert.Contains(t, rec.Body.String(), `"audit":"disabled"`)
}

func TestNewFailsOnBadDatabaseURL(t *testing.T) {
	t.Setenv("AUDIT_ENABLED", "")
	_, err := policymesh.New(
		policymesh.WithLogger(testutil.TestLogger()),
		policymesh.WithDatabaseURL("mysql://nope"),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database scheme")
}

func TestAppRunStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	app, err := policymesh.New(
		policymesh.WithLogger(testutil.TestLogger()),
		policymesh.WithPort(port),
		policymesh.WithDatabaseURL(""),
		policymesh.WithLocalProvider(&recordingProvider{}),
		policymesh.WithCloudProvider(&recordingProvider{}),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(port)) + "/v1/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
