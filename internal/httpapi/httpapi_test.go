package httpapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"internship-digest/internal/config"
	"internship-digest/internal/events"
	"internship-digest/internal/pipeline"
	"internship-digest/internal/poll"
)

type testEnv struct {
	deps    Deps
	stored  map[string]string
}

func newTestEnv(t *testing.T, run poll.RunFunc) *testEnv {
	t.Helper()
	env := &testEnv{stored: map[string]string{}}

	var cfgVal atomic.Value
	cfgVal.Store(config.Default())
	path := filepath.Join(t.TempDir(), "config.yml")
	hub := events.NewHub()

	env.deps = Deps{
		BaseCtx:     context.Background(),
		Runner:      poll.NewRunner(run, hub),
		Hub:         hub,
		CfgVal:      &cfgVal,
		UserCfgPath: path,
		LoadCfg:     func() (config.Config, error) { return config.Load(path) },
		SetWebhook: func(account, url string) error {
			env.stored[account] = url
			return nil
		},
		DeleteWebhook: func(account string) error {
			if _, ok := env.stored[account]; !ok {
				return errors.New("secret not found in keyring")
			}
			delete(env.stored, account)
			return nil
		},
	}
	return env
}

func okRun(context.Context) (pipeline.Result, error) {
	return pipeline.Result{RunID: "r1", Entries: 4, Delivered: true}, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	mux := NewMux(newTestEnv(t, okRun).deps)
	rec := do(t, mux, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("health = %d %s", rec.Code, rec.Body)
	}
	if rec := do(t, mux, http.MethodPost, "/health", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health = %d", rec.Code)
	}
}

func TestTriggerRunAndStatus(t *testing.T) {
	env := newTestEnv(t, okRun)
	mux := NewMux(env.deps)

	rec := do(t, mux, http.MethodPost, "/runs", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("POST /runs = %d %s", rec.Code, rec.Body)
	}

	deadline := time.Now().Add(2 * time.Second)
	var st poll.Status
	for time.Now().Before(deadline) {
		rec = do(t, mux, http.MethodGet, "/runs/status", "")
		if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
			t.Fatal(err)
		}
		if st.Runs == 1 && !st.Running {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if st.Runs != 1 || st.LastRunID != "r1" || st.LastEntries != 4 {
		t.Fatalf("status = %+v", st)
	}
}

func TestTriggerWhileRunningConflicts(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	env := newTestEnv(t, func(context.Context) (pipeline.Result, error) {
		close(entered)
		<-release
		return pipeline.Result{}, nil
	})
	defer close(release)
	mux := NewMux(env.deps)

	if rec := do(t, mux, http.MethodPost, "/runs", ""); rec.Code != http.StatusAccepted {
		t.Fatalf("first trigger = %d", rec.Code)
	}
	<-entered
	rec := do(t, mux, http.MethodPost, "/runs", "")
	if rec.Code != http.StatusConflict || !strings.Contains(rec.Body.String(), "already_running") {
		t.Fatalf("second trigger = %d %s", rec.Code, rec.Body)
	}
}

func TestWebhookSecret(t *testing.T) {
	env := newTestEnv(t, okRun)
	mux := NewMux(env.deps)
	acct := config.Default().Notify.KeyringAccount

	if rec := do(t, mux, http.MethodPost, "/api/secrets/webhook", `{"url":"not a url"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad url accepted: %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodPost, "/api/secrets/webhook", `{`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json accepted: %d", rec.Code)
	}

	rec := do(t, mux, http.MethodPost, "/api/secrets/webhook", `{"url":" https://discord.com/api/webhooks/1/abc "}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("set = %d %s", rec.Code, rec.Body)
	}
	if env.stored[acct] != "https://discord.com/api/webhooks/1/abc" {
		t.Fatalf("stored = %v", env.stored)
	}

	if rec := do(t, mux, http.MethodDelete, "/api/secrets/webhook", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d", rec.Code)
	}
	if rec := do(t, mux, http.MethodDelete, "/api/secrets/webhook", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("second delete = %d", rec.Code)
	}
}

func TestConfigGetPut(t *testing.T) {
	env := newTestEnv(t, okRun)
	mux := NewMux(env.deps)

	rec := do(t, mux, http.MethodGet, "/config", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), config.DefaultRepoURL) {
		t.Fatalf("GET /config = %d %s", rec.Code, rec.Body)
	}

	cfg := config.Default()
	cfg.Schedule.IntervalHours = 12
	b, _ := json.Marshal(cfg)
	rec = do(t, mux, http.MethodPut, "/config", string(b))
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT /config = %d %s", rec.Code, rec.Body)
	}
	if got := env.deps.CfgVal.Load().(config.Config); got.Schedule.IntervalHours != 12 {
		t.Fatalf("config not reloaded: %+v", got.Schedule)
	}

	cfg.App.Port = 0
	b, _ = json.Marshal(cfg)
	rec = do(t, mux, http.MethodPut, "/config", string(b))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "app.port") {
		t.Fatalf("invalid PUT = %d %s", rec.Code, rec.Body)
	}

	rec = do(t, mux, http.MethodPut, "/config", `{"nope":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field accepted: %d", rec.Code)
	}

	rec = do(t, mux, http.MethodGet, "/config/validate", "")
	var vr config.Validation
	if err := json.Unmarshal(rec.Body.Bytes(), &vr); err != nil || !vr.OK() {
		t.Fatalf("validate = %s (%v)", rec.Body, err)
	}
}

func TestEventsStream(t *testing.T) {
	env := newTestEnv(t, okRun)
	srv := httptest.NewServer(Handler(NewMux(env.deps)))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if ct := res.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}
	if res.Header.Get("X-Request-ID") == "" {
		t.Fatal("request id header missing")
	}

	sc := bufio.NewScanner(res.Body)
	var seen []string
	triggered := false
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e events.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		seen = append(seen, e.Type)
		if e.Type == events.TypePing && !triggered {
			triggered = true
			if _, err := env.deps.Runner.RunOnce(context.Background()); err != nil {
				t.Fatal(err)
			}
		}
		if e.Type == events.TypeRunFinished {
			break
		}
	}
	want := []string{events.TypePing, events.TypeRunStarted, events.TypeRunFinished}
	if strings.Join(seen, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", seen, want)
	}
}

func TestLocalOnly(t *testing.T) {
	h := LocalOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	for addr, want := range map[string]int{
		"127.0.0.1:5000": http.StatusTeapot,
		"[::1]:5000":     http.StatusTeapot,
		"192.0.2.1:1234": http.StatusForbidden,
		"garbage":        http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("RemoteAddr %s: status %d, want %d", addr, rec.Code, want)
		}
	}
}

func TestRecoverTurnsPanicInto500(t *testing.T) {
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") }), RequestID, Recover)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "internal_error") {
		t.Fatalf("got %d %s", rec.Code, rec.Body)
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusConflict, "already_running", "busy")
	}), RequestID)
	req := httptest.NewRequest(http.MethodPost, "/runs", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var e APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatal(err)
	}
	if e.Error.Status != http.StatusConflict || e.Error.Code != "already_running" || e.Error.RequestID != "req-42" {
		t.Fatalf("envelope = %+v", e.Error)
	}
}

func TestMethodNotAllowedListsMethods(t *testing.T) {
	mux := NewMux(newTestEnv(t, okRun).deps)
	rec := do(t, mux, http.MethodPatch, "/config", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PATCH /config = %d", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != "GET, PUT" {
		t.Fatalf("Allow = %q", got)
	}
	var e APIError
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil || e.Error.Code != "method_not_allowed" {
		t.Fatalf("body = %s (%v)", rec.Body, err)
	}
}

func TestWriteJSONUnencodable(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]any{"ch": make(chan int)})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "encode_failed") {
		t.Fatalf("body = %s", rec.Body)
	}
}

func TestDecodeJSONLimits(t *testing.T) {
	var v struct {
		URL string `json:"url"`
	}
	big := `{"url":"` + strings.Repeat("a", maxBody) + `"}`
	for name, body := range map[string]string{
		"trailing": `{"url":"x"} {"url":"y"}`,
		"unknown":  `{"url":"x","extra":1}`,
		"too big":  big,
	} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		if decodeJSON(rec, req, &v) {
			t.Errorf("%s: accepted", name)
			continue
		}
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: code = %d", name, rec.Code)
		}
	}
}
