package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"internship-digest/internal/domain"
	"internship-digest/internal/source"

	"github.com/google/uuid"
)

type Fetcher interface {
	Fetch(ctx context.Context) (*source.Snapshot, error)
}

type Extractor interface {
	Digest(path string) (domain.Digest, error)
	Render(d domain.Digest) domain.FormattedMessage
}

type Notifier interface {
	Notify(ctx context.Context, msg domain.FormattedMessage) error
}

// Pipeline runs fetch, extract and notify strictly in order.
type Pipeline struct {
	Fetcher   Fetcher
	Extractor Extractor
	Notifier  Notifier
}

type Result struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Entries    int
	Skipped    int
	Message    domain.FormattedMessage
	Delivered  bool
}

// StageError names the stage a run failed in. Err is a *domain.Error for
// every failure in the taxonomy, or the context error when the run was aborted.
type StageError struct {
	RunID string
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

type runIDKey struct{}

// WithRunID makes Run use id instead of generating one.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func RunIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(runIDKey{}).(string)
	return id
}

// FailureKind is the taxonomy kind of err, or "cancelled" when the run was
// aborted through its context.
func FailureKind(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "cancelled"
	}
	return string(domain.KindOf(err))
}

// Run performs one complete run. The snapshot is removed on every exit path,
// including cancellation.
func (p *Pipeline) Run(ctx context.Context) (res Result, err error) {
	id := RunIDFrom(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	res = Result{RunID: id, StartedAt: time.Now().UTC()}
	defer func() {
		res.FinishedAt = time.Now().UTC()
		if err != nil {
			log.Printf("[pipeline] run=%s failed kind=%s err=%v", res.RunID, FailureKind(err), err)
			return
		}
		log.Printf("[pipeline] run=%s ok entries=%d skipped=%d dur_ms=%d",
			res.RunID, res.Entries, res.Skipped, res.FinishedAt.Sub(res.StartedAt).Milliseconds())
	}()

	fail := func(stage string, err error) error {
		return &StageError{RunID: res.RunID, Stage: stage, Err: err}
	}

	log.Printf("[pipeline] run=%s started", res.RunID)

	snap, err := p.Fetcher.Fetch(ctx)
	if err != nil {
		return res, fail("fetch", err)
	}
	defer func() {
		if cerr := snap.Close(); cerr != nil {
			log.Printf("[pipeline] run=%s cleanup failed path=%s err=%v", res.RunID, snap.Root, cerr)
		}
	}()

	if err := ctx.Err(); err != nil {
		return res, fail("extract", err)
	}
	digest, err := p.Extractor.Digest(snap.DocumentPath)
	if err != nil {
		return res, fail("extract", err)
	}
	res.Entries = digest.Len()
	for _, e := range digest.Entries {
		if e.Skipped() {
			res.Skipped++
		}
	}
	res.Message = p.Extractor.Render(digest)
	log.Printf("[extract] run=%s entries=%d skipped=%d", res.RunID, res.Entries, res.Skipped)

	if err := ctx.Err(); err != nil {
		return res, fail("notify", err)
	}
	if err := p.Notifier.Notify(ctx, res.Message); err != nil {
		return res, fail("notify", err)
	}
	res.Delivered = true
	return res, nil
}
