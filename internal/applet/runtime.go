package applet

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/kjstillabower/wind-applet/internal/models"
	"github.com/kjstillabower/wind-applet/internal/observability"
)

// ErrStopped is returned by Post once the loop has exited.
var ErrStopped = errors.New("applet loop stopped")

const defaultQueueSize = 64

// Fetcher performs one station fetch. It must always return an observation,
// substituting the zero value on failure.
type Fetcher interface {
	Fetch(ctx context.Context, loc models.Location) models.Observation
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, loc models.Location) models.Observation

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, loc models.Location) models.Observation {
	return f(ctx, loc)
}

// Presenter renders snapshots and owns the popover surface. All calls come from
// the loop goroutine.
type Presenter interface {
	Render(s Snapshot)
	ShowPopup(id PopupID)
	DestroyPopup(id PopupID)
}

type nopPresenter struct{}

func (nopPresenter) Render(Snapshot)      {}
func (nopPresenter) ShowPopup(PopupID)    {}
func (nopPresenter) DestroyPopup(PopupID) {}

// Runtime is the single-consumer event loop around an Applet. Events are
// applied one at a time in arrival order. Fetches run on their own goroutines
// and re-enter as UpdateObservation events; they are neither deduplicated nor
// cancelled when superseded, so the last one to finish wins.
type Runtime struct {
	applet    *Applet
	fetcher   Fetcher
	presenter Presenter
	logger    *zap.Logger

	events  chan Event
	done    chan struct{}
	stop    sync.Once
	fetches sync.WaitGroup
}

// RuntimeOptions configures a Runtime.
type RuntimeOptions struct {
	QueueSize int
	Logger    *zap.Logger
}

// NewRuntime wires a to a fetcher and presenter. presenter may be nil.
func NewRuntime(a *Applet, fetcher Fetcher, presenter Presenter, opts RuntimeOptions) *Runtime {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if presenter == nil {
		presenter = nopPresenter{}
	}
	return &Runtime{
		applet:    a,
		fetcher:   fetcher,
		presenter: presenter,
		logger:    opts.Logger,
		events:    make(chan Event, opts.QueueSize),
		done:      make(chan struct{}),
	}
}

// Post queues e for the loop. It blocks while the queue is full and fails once
// ctx is done or the loop has exited. Safe for concurrent use.
func (r *Runtime) Post(ctx context.Context, e Event) error {
	select {
	case <-r.done:
		observability.AppletEventsDroppedTotal.WithLabelValues(EventName(e)).Inc()
		return ErrStopped
	default:
	}
	select {
	case r.events <- e:
		return nil
	case <-r.done:
		observability.AppletEventsDroppedTotal.WithLabelValues(EventName(e)).Inc()
		return ErrStopped
	case <-ctx.Done():
		observability.AppletEventsDroppedTotal.WithLabelValues(EventName(e)).Inc()
		return ctx.Err()
	}
}

// Run refreshes once immediately, then processes events until ctx is done.
// Fetches in flight receive ctx and are abandoned with it.
func (r *Runtime) Run(ctx context.Context) error {
	defer r.stop.Do(func() { close(r.done) })

	r.presenter.Render(r.applet.Snapshot())
	r.handle(ctx, Tick{})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e := <-r.events:
			r.handle(ctx, e)
		}
	}
}

// Done is closed when Run returns.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}

// WaitForFetches blocks until every started fetch has finished or ctx is done.
func (r *Runtime) WaitForFetches(ctx context.Context) error {
	finished := make(chan struct{})
	go func() {
		r.fetches.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runtime) handle(ctx context.Context, e Event) {
	name := EventName(e)
	observability.AppletEventsTotal.WithLabelValues(name).Inc()

	cmds := r.applet.Update(e)
	for _, cmd := range cmds {
		r.execute(ctx, cmd)
	}
	r.presenter.Render(r.applet.Snapshot())
}

func (r *Runtime) execute(ctx context.Context, cmd Command) {
	switch c := cmd.(type) {
	case FetchObservation:
		r.fetches.Add(1)
		go func(loc models.Location) {
			defer r.fetches.Done()
			obs := r.fetcher.Fetch(ctx, loc)
			if err := r.Post(ctx, UpdateObservation{Observation: obs}); err != nil {
				r.logger.Debug("dropping fetch result", zap.Error(err))
			}
		}(c.Location)
	case ShowPopup:
		r.logger.Debug("popup opened", zap.String("popup_id", string(c.ID)))
		r.presenter.ShowPopup(c.ID)
	case DestroyPopup:
		r.logger.Debug("popup destroyed", zap.String("popup_id", string(c.ID)))
		r.presenter.DestroyPopup(c.ID)
	}
}
