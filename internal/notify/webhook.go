package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"internship-digest/internal/domain"

	"golang.org/x/time/rate"
)

// EndpointSource supplies the webhook URL. It is asked on every Notify call.
type EndpointSource interface {
	WebhookURL(ctx context.Context) (string, error)
}

// EndpointFunc adapts a function to EndpointSource.
type EndpointFunc func(ctx context.Context) (string, error)

func (f EndpointFunc) WebhookURL(ctx context.Context) (string, error) { return f(ctx) }

type Config struct {
	Timeout     time.Duration
	MinInterval time.Duration // spacing between posts from this notifier; 0 disables
	Client      *http.Client  // overrides Timeout when set
}

// Webhook posts a message as {"content": "..."} in a single request. It
// never retries.
type Webhook struct {
	endpoint EndpointSource
	hc       *http.Client
	limiter  *rate.Limiter
}

func New(endpoint EndpointSource, cfg Config) *Webhook {
	hc := cfg.Client
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if cfg.MinInterval > 0 {
		lim = rate.NewLimiter(rate.Every(cfg.MinInterval), 1)
	}
	return &Webhook{endpoint: endpoint, hc: hc, limiter: lim}
}

func (w *Webhook) Name() string { return "notify" }

type payload struct {
	Content string `json:"content"`
}

func (w *Webhook) Notify(ctx context.Context, msg domain.FormattedMessage) error {
	raw, err := w.resolve(ctx)
	if err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &domain.Error{Kind: domain.KindConfiguration, Op: "parse webhook url", Err: fmt.Errorf("webhook url must be an absolute http(s) url")}
	}
	host := u.Host

	if err := w.limiter.Wait(ctx); err != nil {
		return &domain.Error{Kind: domain.KindDelivery, Op: "wait", URL: host, Err: err}
	}

	body, err := json.Marshal(payload{Content: msg.String()})
	if err != nil {
		return &domain.Error{Kind: domain.KindDelivery, Op: "encode payload", Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, raw, bytes.NewReader(body))
	if err != nil {
		return &domain.Error{Kind: domain.KindDelivery, Op: "build request", URL: host, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "internship-digest/1.0")

	res, err := w.hc.Do(req)
	if err != nil {
		// *url.Error repeats the full URL, which carries the webhook token
		var ue *url.Error
		if errors.As(err, &ue) {
			err = ue.Err
		}
		log.Printf("[notify] post failed host=%s err=%v", host, err)
		return &domain.Error{Kind: domain.KindDelivery, Op: "post", URL: host, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 256))
		log.Printf("[notify] upstream status=%s host=%s body=%q", res.Status, host, string(b))
		return &domain.Error{
			Kind:   domain.KindDelivery,
			Op:     "post",
			URL:    host,
			Status: res.StatusCode,
			Err:    fmt.Errorf("unexpected status %s", strings.TrimSpace(res.Status)),
		}
	}
	_, _ = io.Copy(io.Discard, res.Body)

	log.Printf("[notify] message sent host=%s status=%d bytes=%d", host, res.StatusCode, len(body))
	return nil
}

func (w *Webhook) resolve(ctx context.Context) (string, error) {
	if w.endpoint == nil {
		return "", &domain.Error{Kind: domain.KindConfiguration, Op: "resolve webhook url"}
	}
	raw, err := w.endpoint.WebhookURL(ctx)
	if err != nil {
		return "", &domain.Error{Kind: domain.KindConfiguration, Op: "resolve webhook url", Err: err}
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", &domain.Error{Kind: domain.KindConfiguration, Op: "resolve webhook url", Err: fmt.Errorf("webhook url is not set")}
	}
	return raw, nil
}
