package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mind-engage/quizgrade/internal/grading"
)

func outputText(text string) string {
	b, _ := json.Marshal(map[string]any{
		"output": []any{map[string]any{
			"type": "message",
			"role": "assistant",
			"content": []any{map[string]any{
				"type": "output_text",
				"text": text,
			}},
		}},
	})
	return string(b)
}

func newTestClient(t *testing.T, url string, retries int) *Client {
	t.Helper()
	c, err := New(Config{BaseURL: url, APIKey: "sk-test", Model: "grader-1", MaxRetries: retries, BaseBackoff: time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

var sampleReq = grading.Request{
	QuestionID:    "q2",
	Question:      "What does photosynthesis do?",
	ModelAnswer:   "Converts light energy into chemical energy.",
	StudentAnswer: "photosynthesis converts light to chemical energy.",
	MaxPoints:     2,
}

func TestClient_GradeSendsStructuredRequest(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" || r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("unexpected request: %s auth=%q", r.URL.Path, r.Header.Get("Authorization"))
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		_, _ = io.WriteString(w, outputText(`{"kind":"graded","score":1.5,"confidence":"medium","explanation":"Mostly right.","reason":null}`))
	}))
	defer srv.Close()

	raw, err := newTestClient(t, srv.URL, 0).Grade(context.Background(), sampleReq)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	resp, err := grading.DecodeResponse(raw)
	if err != nil {
		t.Fatalf("projected output must decode: %v (%s)", err, raw)
	}
	if resp.Graded == nil || resp.Graded.Score != 1.5 || resp.Graded.Confidence != "medium" {
		t.Fatalf("unexpected verdict: %#v", resp.Graded)
	}

	if got["model"] != "grader-1" {
		t.Fatalf("model not sent: %v", got["model"])
	}
	format := got["text"].(map[string]any)["format"].(map[string]any)
	if format["type"] != "json_schema" || format["strict"] != true {
		t.Fatalf("expected strict json_schema format, got %v", format)
	}
	input := got["input"].([]any)
	user := input[1].(map[string]any)["content"].(string)
	if !strings.Contains(user, `"student_answer":"photosynthesis converts light to chemical energy."`) || !strings.Contains(user, `"max_points":2`) {
		t.Fatalf("request fields missing from prompt: %s", user)
	}
}

func TestClient_RefusalBecomesRefusedKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"output":[{"type":"message","role":"assistant","content":[{"type":"refusal","refusal":"cannot help"}]}]}`)
	}))
	defer srv.Close()

	raw, err := newTestClient(t, srv.URL, 0).Grade(context.Background(), sampleReq)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	resp, err := grading.DecodeResponse(raw)
	if err != nil || resp.Refused == nil || resp.Refused.Reason != "cannot help" {
		t.Fatalf("expected refusal, got %#v err=%v", resp, err)
	}
}

func TestClient_RetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, outputText(`{"kind":"graded","score":2,"confidence":"high","explanation":"ok","reason":null}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL, 3).Grade(context.Background(), sampleReq); err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL, 3).Grade(context.Background(), sampleReq)
	var he *httpError
	if !errors.As(err, &he) || he.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Fatalf("401 must not be retried, got %d attempts", n)
	}
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv.URL, 2).Grade(context.Background(), sampleReq); err == nil {
		t.Fatalf("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected 1 + 2 retries, got %d", n)
	}
}

func TestProject(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"kind":"graded","score":1,"confidence":"high","explanation":"x","reason":null}`, `{"confidence":"high","explanation":"x","kind":"graded","score":1}`},
		{`{"kind":"refused","score":null,"confidence":null,"explanation":null,"reason":"no"}`, `{"kind":"refused","reason":"no"}`},
		{`{"score":1,"extra":true}`, `{"extra":true,"score":1}`},
		{`not json`, `not json`},
	}
	for _, tc := range cases {
		if got := string(project([]byte(tc.in))); got != tc.want {
			t.Fatalf("project(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestNew_RequiresBaseURLAndModel(t *testing.T) {
	if _, err := New(Config{Model: "m"}, nil); err == nil {
		t.Fatalf("expected error without base url")
	}
	if _, err := New(Config{BaseURL: "http://x"}, nil); err == nil {
		t.Fatalf("expected error without model")
	}
}

func TestConfig_CallBudgetCoversRetrySleeps(t *testing.T) {
	cases := []struct {
		cfg  Config
		want time.Duration
	}{
		{Config{Timeout: 30 * time.Second, MaxRetries: 0}, 30 * time.Second},
		{Config{Timeout: 30 * time.Second, MaxRetries: 2}, 90*time.Second + 24*time.Second},
		{Config{MaxRetries: -1}, defaultTimeout},
		{Config{Timeout: 5 * time.Second, MaxRetries: 1}, 10*time.Second + 12*time.Second},
	}
	for _, tc := range cases {
		got := tc.cfg.CallBudget()
		if got != tc.want {
			t.Fatalf("CallBudget(%+v) = %v, want %v", tc.cfg, got, tc.want)
		}
		attempts := time.Duration(tc.cfg.MaxRetries + 1)
		if tc.cfg.MaxRetries > 0 && got <= tc.cfg.Timeout*attempts {
			t.Fatalf("budget %v leaves no room for backoff", got)
		}
	}
}
