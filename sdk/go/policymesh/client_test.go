package policymesh

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// mockServer creates an httptest server that mimics the Policy Mesh API.
func mockServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, handler := range handlers {
		mux.HandleFunc(pattern, handler)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: serverURL + "/", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for empty BaseURL")
	}
}

func TestChatSendsMessagesAndDecodesReply(t *testing.T) {
	var got ChatRequest
	var ua string
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/chat": func(w http.ResponseWriter, r *http.Request) {
			ua = r.Header.Get("User-Agent")
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("decode request: %v", err)
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"request_id":   "req-1",
				"provider":     "local",
				"reason_codes": []string{"cost_prefer_local"},
				"content":      "hi there",
			})
		},
	})

	resp, err := newTestClient(t, srv.URL).Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleSystem, Content: "be brief"}, {Role: RoleUser, Content: "hello"}},
		Model:    "llama3",
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.RequestID != "req-1" || resp.Provider != ProviderLocal {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Failed() || resp.Text() != "hi there" {
		t.Errorf("expected content reply, got %+v", resp)
	}
	if len(got.Messages) != 2 || got.Messages[1].Content != "hello" || got.Model != "llama3" {
		t.Errorf("server received %+v", got)
	}
	if ua != userAgent {
		t.Errorf("expected User-Agent %q, got %q", userAgent, ua)
	}
}

func TestChatProviderFailureIsNotAnError(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"POST /v1/chat": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"request_id":   "req-2",
				"provider":     "cloud",
				"reason_codes": []string{"default_openai"},
				"error":        "openai: 401 Unauthorized",
			})
		},
	})

	resp, err := newTestClient(t, srv.URL).Ask(context.Background(), "a question")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if !resp.Failed() || resp.Text() != "" {
		t.Errorf("expected failed response, got %+v", resp)
	}
}

func TestChatRejectsEmptyMessages(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	if _, err := c.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected error for empty messages")
	}
}

func TestErrorTypesMapCorrectly(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		code    string
		checkFn func(error) bool
	}{
		{"400", http.StatusBadRequest, "INVALID_INPUT", IsInvalidInput},
		{"404", http.StatusNotFound, "NOT_FOUND", IsNotFound},
		{"413", http.StatusRequestEntityTooLarge, "INVALID_INPUT", IsTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := mockServer(t, map[string]http.HandlerFunc{
				"GET /v1/audit/{id}": func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, tt.status, map[string]any{
						"error": map[string]any{"code": tt.code, "message": "nope"},
						"meta":  map[string]any{"request_id": "x"},
					})
				},
			})

			_, err := newTestClient(t, srv.URL).AuditEvent(context.Background(), "abc")
			if !tt.checkFn(err) {
				t.Fatalf("check failed for %v", err)
			}
			var apiErr *Error
			if !errors.As(err, &apiErr) || apiErr.Code != tt.code || apiErr.Message != "nope" {
				t.Errorf("unexpected error %#v", err)
			}
		})
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/health": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		},
	})

	_, err := newTestClient(t, srv.URL).Health(context.Background())
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if apiErr.Code != "Bad Gateway" || !strings.Contains(apiErr.Message, "upstream down") {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestAuditEventEscapesID(t *testing.T) {
	var path string
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/audit/{id}": func(w http.ResponseWriter, r *http.Request) {
			path = r.PathValue("id")
			writeJSON(w, http.StatusOK, map[string]any{
				"request_id": path,
				"decision":   "provider=local,reason_codes=sensitive_keyword_match",
				"status":     "success",
				"latency_ms": 12.5,
				"created_at": time.Now().UTC().Format(time.RFC3339),
			})
		},
	})

	ev, err := newTestClient(t, srv.URL).AuditEvent(context.Background(), "a/b")
	if err != nil {
		t.Fatalf("AuditEvent failed: %v", err)
	}
	if path != "a/b" || ev.RequestID != "a/b" {
		t.Errorf("expected escaped id to round trip, got path %q", path)
	}
	if ev.FailureCategory != nil || ev.LatencyMs != 12.5 {
		t.Errorf("unexpected event %+v", ev)
	}
}

func TestRoutesDecodesUSDFields(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/routes": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{
				"rule_order":                       []string{"sensitivity", "cost", "default"},
				"sensitivity_keyword_count":        3,
				"cost_max_prompt_length_for_local": 1000,
				"default_provider":                 "cloud",
				"cost_usd_mode":                    true,
				"cost_max_usd_for_local":           0.01,
				"cloud_input_usd_per_1k_tokens":    0.5,
				"cost_chars_per_token":             4,
				"reason_codes":                     []string{"sensitive_keyword_match", "cost_prefer_local", "default_openai"},
			})
		},
	})

	r, err := newTestClient(t, srv.URL).Routes(context.Background())
	if err != nil {
		t.Fatalf("Routes failed: %v", err)
	}
	if !r.CostUSDMode || r.CostMaxUSDForLocal == nil || *r.CostMaxUSDForLocal != 0.01 {
		t.Errorf("unexpected routes %+v", r)
	}
	if r.CostCharsPerToken == nil || *r.CostCharsPerToken != 4 {
		t.Errorf("expected chars per token 4, got %v", r.CostCharsPerToken)
	}
	if len(r.RuleOrder) != 3 || r.RuleOrder[0] != "sensitivity" {
		t.Errorf("unexpected rule order %v", r.RuleOrder)
	}
}

func TestTimeoutHandling(t *testing.T) {
	srv := mockServer(t, map[string]http.HandlerFunc{
		"GET /v1/health": func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		},
	})

	c, err := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := c.Health(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
}
