package poll

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"internship-digest/internal/events"
	"internship-digest/internal/pipeline"
	"internship-digest/internal/scheduler"

	"github.com/google/uuid"
)

var ErrAlreadyRunning = errors.New("a run is already in progress")

type Status struct {
	LastRunAt     string `json:"last_run_at"`
	LastOkAt      string `json:"last_ok_at"`
	LastRunID     string `json:"last_run_id"`
	LastError     string `json:"last_error"`
	LastErrorKind string `json:"last_error_kind,omitempty"`
	LastEntries   int    `json:"last_entries"`
	Runs          int    `json:"runs"`
	Running       bool   `json:"running"`
}

// RunFunc performs one run. The run id is on ctx (pipeline.RunIDFrom).
type RunFunc func(ctx context.Context) (pipeline.Result, error)

// Runner serializes runs inside one process and keeps the last outcome.
type Runner struct {
	run     RunFunc
	hub     *events.Hub
	running atomic.Bool
	status  atomic.Value // Status
}

func NewRunner(run RunFunc, hub *events.Hub) *Runner {
	r := &Runner{run: run, hub: hub}
	r.status.Store(Status{})
	return r
}

func (r *Runner) Status() Status {
	return r.status.Load().(Status)
}

// RunOnce runs the pipeline unless a run is already in progress.
func (r *Runner) RunOnce(ctx context.Context) (pipeline.Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		return pipeline.Result{}, ErrAlreadyRunning
	}
	return r.execute(ctx)
}

// Go starts a run in the background and calls done with its outcome.
// It returns ErrAlreadyRunning at once when a run is in progress.
func (r *Runner) Go(ctx context.Context, done func(pipeline.Result, error)) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	go func() {
		res, err := r.execute(ctx)
		if done != nil {
			done(res, err)
		}
	}()
	return nil
}

func (r *Runner) execute(ctx context.Context) (pipeline.Result, error) {
	defer r.running.Store(false)

	st := r.Status()
	st.Running = true
	st.LastRunAt = time.Now().Format(time.RFC3339)
	r.status.Store(st)

	id := uuid.NewString()
	r.hub.Publish(events.MakeEvent("", events.TypeRunStarted, 1, events.RunSummary{RunID: id}))

	res, err := r.run(pipeline.WithRunID(ctx, id))
	if res.RunID == "" {
		res.RunID = id
	}

	st = r.Status()
	st.Running = false
	st.Runs++
	st.LastRunID = res.RunID
	st.LastEntries = res.Entries
	summary := events.RunSummary{RunID: res.RunID, Entries: res.Entries, Skipped: res.Skipped}
	if err != nil {
		st.LastError = err.Error()
		st.LastErrorKind = pipeline.FailureKind(err)
		summary.Error = st.LastError
		summary.ErrorKind = st.LastErrorKind
	} else {
		st.LastError = ""
		st.LastErrorKind = ""
		st.LastOkAt = time.Now().Format(time.RFC3339)
		summary.OK = true
	}
	r.status.Store(st)
	r.hub.Publish(events.MakeEvent("", events.TypeRunFinished, 1, summary))
	return res, err
}

// Start drives RunOnce from the scheduler until ctx is done.
func (r *Runner) Start(ctx context.Context, interval time.Duration, runOnStart bool) {
	log.Printf("[poll] scheduling every %s (run_on_start=%v)", interval, runOnStart)
	scheduler.Every(ctx, interval, "poll", scheduler.Options{RunImmediately: runOnStart}, func(ctx context.Context) error {
		_, err := r.RunOnce(ctx)
		if errors.Is(err, ErrAlreadyRunning) {
			log.Printf("[poll] skipped tick: %v", err)
			return nil
		}
		return err
	})
}
