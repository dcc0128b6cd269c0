package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"form-orchestrator/internal/client"
	"form-orchestrator/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// statusScript serves the gateway and status endpoints, replaying a fixed
// sequence of status bodies.
type statusScript struct {
	bodies []string

	polls atomic.Int64
}

func (s *statusScript) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/applications", func(w http.ResponseWriter, r *http.Request) {
		var params client.SubmissionParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Error(err)
		}
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"executionArn":"exec-1"}`))
	})
	mux.HandleFunc("/applications/status", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("executionArn") != "exec-1" {
			http.NotFound(w, r)
			return
		}
		n := s.polls.Add(1)
		i := int(n) - 1
		if i >= len(s.bodies) {
			i = len(s.bodies) - 1
		}
		w.Write([]byte(s.bodies[i]))
	})
	return mux
}

func newTestPoller(srv *httptest.Server) *client.Poller {
	p := client.NewPoller(srv.URL+"/applications", srv.URL+"/applications/status", testLogger())
	p.PollInterval = 5 * time.Millisecond
	p.MaxWait = time.Second
	return p
}

func TestPoller_RunReturnsOutputOnSuccess(t *testing.T) {
	script := &statusScript{bodies: []string{
		`{"status":"PENDING","stageIndex":0}`,
		`{"status":"RUNNING","stageIndex":1}`,
		`{"status":"RUNNING","stageIndex":2}`,
		`{"status":"SUCCEEDED","stageIndex":3,"output":{"formText":"done"}}`,
	}}
	srv := httptest.NewServer(script.handler(t))
	defer srv.Close()

	p := newTestPoller(srv)
	var updates []client.StatusUpdate
	p.OnProgress = func(u client.StatusUpdate) { updates = append(updates, u) }

	output, err := p.Run(context.Background(), client.SubmissionParams{
		Username:        "alice",
		ApplicationForm: "canexport_application_fomr",
		DocumentCount:   3,
		StoragePrefix:   "documents/alice",
	})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if string(output) != `{"formText":"done"}` {
		t.Errorf("output = %s", output)
	}
	if len(updates) != 3 {
		t.Errorf("progress updates = %d, want one per non-terminal poll", len(updates))
	}
	if script.polls.Load() != 4 {
		t.Errorf("status queries = %d, want 4", script.polls.Load())
	}
}

func TestPoller_StopsOnFailure(t *testing.T) {
	script := &statusScript{bodies: []string{
		`{"status":"RUNNING","stageIndex":1}`,
		`{"status":"FAILED","stageIndex":1,"cause":"KnowledgeBaseSync: sync job failed"}`,
	}}
	srv := httptest.NewServer(script.handler(t))
	defer srv.Close()

	_, err := newTestPoller(srv).Run(context.Background(), client.SubmissionParams{Username: "alice"})
	var execErr *client.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("Run() = %v, want *ExecutionError", err)
	}
	if execErr.Status != domain.ExecutionStatusFailed {
		t.Errorf("Status = %s", execErr.Status)
	}
	if execErr.Cause != "KnowledgeBaseSync: sync job failed" {
		t.Errorf("Cause = %q", execErr.Cause)
	}
	if script.polls.Load() != 2 {
		t.Errorf("status queries after terminal state = %d, want 2", script.polls.Load())
	}
}

func TestPoller_RejectedSubmissionIsNotPolled(t *testing.T) {
	script := &statusScript{}
	mux := http.NewServeMux()
	mux.HandleFunc("/applications", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Validation failed"}`, http.StatusBadRequest)
	})
	mux.HandleFunc("/applications/status", func(w http.ResponseWriter, r *http.Request) {
		script.polls.Add(1)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	if _, err := newTestPoller(srv).Run(context.Background(), client.SubmissionParams{}); err == nil {
		t.Fatal("Run() succeeded on a rejected submission")
	}
	if script.polls.Load() != 0 {
		t.Errorf("status polled %d times after rejection, want 0", script.polls.Load())
	}
}

func TestPoller_WaitBudgetExhausted(t *testing.T) {
	script := &statusScript{bodies: []string{`{"status":"RUNNING","stageIndex":1}`}}
	srv := httptest.NewServer(script.handler(t))
	defer srv.Close()

	p := newTestPoller(srv)
	p.PollInterval = 10 * time.Millisecond
	p.MaxWait = 100 * time.Millisecond

	_, err := p.Wait(context.Background(), "exec-1")
	if !errors.Is(err, client.ErrWaitTimeout) {
		t.Fatalf("Wait() = %v, want ErrWaitTimeout", err)
	}
	// One query at t=0 plus one per interval inside the budget.
	if polls := script.polls.Load(); polls < 2 || polls > 12 {
		t.Errorf("status queries = %d, want bounded by the wait budget", polls)
	}
}

func TestPoller_WaitHonorsContext(t *testing.T) {
	script := &statusScript{bodies: []string{`{"status":"RUNNING","stageIndex":1}`}}
	srv := httptest.NewServer(script.handler(t))
	defer srv.Close()

	p := newTestPoller(srv)
	p.PollInterval = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := p.Wait(ctx, "exec-1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want context.DeadlineExceeded", err)
	}
}

func TestPoller_UnknownExecution(t *testing.T) {
	srv := httptest.NewServer((&statusScript{}).handler(t))
	defer srv.Close()

	if _, err := newTestPoller(srv).Wait(context.Background(), "missing"); !errors.Is(err, domain.ErrExecutionNotFound) {
		t.Errorf("Wait(missing) = %v, want ErrExecutionNotFound", err)
	}
}
