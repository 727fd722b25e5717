package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"internship-digest/internal/domain"
)

func staticURL(u string) EndpointFunc {
	return func(context.Context) (string, error) { return u, nil }
}

func TestNotifyPostsContent(t *testing.T) {
	var got map[string]any
	var ctype string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		ctype = r.Header.Get("Content-Type")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	msg := domain.FormattedMessage("**hdr**\n1. **Acme** — *Intern* — `NYC`")
	if err := New(staticURL(srv.URL+"/api/webhooks/1/tok"), Config{}).Notify(context.Background(), msg); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if ctype != "application/json" {
		t.Errorf("Content-Type = %q", ctype)
	}
	if len(got) != 1 || got["content"] != msg.String() {
		t.Fatalf("payload = %#v", got)
	}
}

func TestNotifyMissingEndpointMakesNoRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	cases := map[string]EndpointSource{
		"nil source":   nil,
		"empty value":  staticURL("   "),
		"source error": EndpointFunc(func(context.Context) (string, error) { return "", errors.New("store down") }),
		"not absolute": staticURL("discord.com/api/webhooks/1"),
		"bad scheme":   staticURL("ftp://example.com/hook"),
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			err := New(src, Config{}).Notify(context.Background(), "x")
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Fatalf("err = %v, want ErrConfiguration", err)
			}
		})
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("server received %d requests", n)
	}
}

func TestNotifyNonSuccessStatus(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New(staticURL(srv.URL), Config{}).Notify(context.Background(), "x")
	if !errors.Is(err, domain.ErrDelivery) {
		t.Fatalf("err = %v, want ErrDelivery", err)
	}
	var de *domain.Error
	if !errors.As(err, &de) || de.Status != http.StatusInternalServerError {
		t.Fatalf("status missing: %#v", de)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected exactly one attempt, got %d", n)
	}
}

func TestNotifyNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	u := srv.URL + "/api/webhooks/1/secret-token"
	srv.Close()

	err := New(staticURL(u), Config{Timeout: time.Second}).Notify(context.Background(), "x")
	if !errors.Is(err, domain.ErrDelivery) {
		t.Fatalf("err = %v, want ErrDelivery", err)
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Fatalf("error leaks the webhook token: %v", err)
	}
}

func TestNotifyResolvesEndpointPerCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var calls int32
	src := EndpointFunc(func(context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return srv.URL, nil
		}
		return "", nil
	})
	n := New(src, Config{})
	if err := n.Notify(context.Background(), "x"); err != nil {
		t.Fatalf("first Notify: %v", err)
	}
	if err := n.Notify(context.Background(), "x"); !errors.Is(err, domain.ErrConfiguration) {
		t.Fatalf("second Notify err = %v, want ErrConfiguration", err)
	}
}

func TestNotifyCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := New(staticURL(srv.URL), Config{}).Notify(ctx, "x")
	if !errors.Is(err, domain.ErrDelivery) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestNotifyMinIntervalSpacesPosts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	n := New(staticURL(srv.URL), Config{MinInterval: 150 * time.Millisecond})
	start := time.Now()
	for i := 0; i < 2; i++ {
		if err := n.Notify(context.Background(), "x"); err != nil {
			t.Fatal(err)
		}
	}
	if d := time.Since(start); d < 100*time.Millisecond {
		t.Fatalf("second post was not delayed (%v)", d)
	}
}

func TestWriterPrintsMessage(t *testing.T) {
	var b strings.Builder
	if err := (Writer{W: &b}).Notify(context.Background(), "hello\n1. x"); err != nil {
		t.Fatal(err)
	}
	if b.String() != "hello\n1. x\n" {
		t.Fatalf("wrote %q", b.String())
	}
}
