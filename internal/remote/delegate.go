package remote

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/classifier"
	"github.com/ayusman/mudra/internal/features"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/pose"
)

// Outcomes reported to the delegate's observer.
const (
	OutcomeOK        = "ok"
	OutcomeError     = "error"
	OutcomeTimeout   = "timeout"
	OutcomeQueueFull = "queue_full"
	OutcomeClosed    = "closed"
	OutcomeLate      = "late"
)

// Delegate defaults.
const (
	DefaultTimeout   = 80 * time.Millisecond
	DefaultWorkers   = 2
	DefaultQueueSize = 32
)

type job struct {
	req Request
}

type reply struct {
	id   string
	resp Response
	err  error
}

// Option configures a Delegate.
type Option func(*Delegate)

// WithTimeout bounds how long a caller waits for a reply.
func WithTimeout(d time.Duration) Option {
	return func(del *Delegate) {
		if d > 0 {
			del.timeout = d
		}
	}
}

// WithWorkers sets the number of goroutines calling the backend.
func WithWorkers(n int) Option {
	return func(del *Delegate) {
		if n > 0 {
			del.workers = n
		}
	}
}

// WithQueueSize bounds the number of requests waiting for a worker.
func WithQueueSize(n int) Option {
	return func(del *Delegate) {
		if n > 0 {
			del.queueSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(del *Delegate) {
		if l != nil {
			del.log = l
		}
	}
}

// WithObserver registers a callback receiving the outcome of every call.
func WithObserver(fn func(outcome string)) Option {
	return func(del *Delegate) {
		if fn != nil {
			del.observe = fn
		}
	}
}

// Delegate turns a blocking Backend into asynchronous request/response
// messaging. Each request carries a correlation id; workers call the backend
// and a dispatcher routes replies to the waiting caller by id. Callers never
// wait longer than the timeout.
type Delegate struct {
	backend   Backend
	timeout   time.Duration
	workers   int
	queueSize int
	log       logger.Logger
	observe   func(string)

	requests  chan job
	responses chan reply

	mu      sync.Mutex
	pending map[string]chan reply
	closed  bool

	ctx       context.Context
	cancel    context.CancelFunc
	workersWG sync.WaitGroup
	done      chan struct{}
}

// NewDelegate starts the workers and dispatcher for backend.
func NewDelegate(backend Backend, opts ...Option) *Delegate {
	d := &Delegate{
		backend:   backend,
		timeout:   DefaultTimeout,
		workers:   DefaultWorkers,
		queueSize: DefaultQueueSize,
		log:       logger.Nop(),
		observe:   func(string) {},
		pending:   make(map[string]chan reply),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.requests = make(chan job, d.queueSize)
	d.responses = make(chan reply, d.queueSize)
	d.ctx, d.cancel = context.WithCancel(context.Background())

	for i := 0; i < d.workers; i++ {
		d.workersWG.Add(1)
		go d.work()
	}
	go d.dispatch()

	return d
}

// Call is an in-flight remote classification.
type Call struct {
	ID       string
	d        *Delegate
	ch       chan reply
	deadline time.Time
	err      error // set when the call failed before being queued
}

// Submit queues a request without blocking. A full queue or closed delegate
// yields a Call whose Await fails immediately.
func (d *Delegate) Submit(name pose.LandmarkName, f features.MovementFeatures) *Call {
	c := &Call{
		ID:       uuid.NewString(),
		d:        d,
		ch:       make(chan reply, 1),
		deadline: time.Now().Add(d.timeout),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		c.err = errClosed
		d.observe(OutcomeClosed)
		return c
	}

	d.pending[c.ID] = c.ch
	select {
	case d.requests <- job{req: Request{RequestID: c.ID, Landmark: name, Features: f}}:
	default:
		delete(d.pending, c.ID)
		c.err = errQueueFull
		d.observe(OutcomeQueueFull)
	}
	return c
}

// Await waits for the reply until the call's deadline or ctx is done. Every
// failure wraps ErrUnavailable.
func (c *Call) Await(ctx context.Context) (Response, error) {
	if c.err != nil {
		return Response{}, c.err
	}

	timer := time.NewTimer(time.Until(c.deadline))
	defer timer.Stop()

	select {
	case r := <-c.ch:
		if r.err != nil {
			c.d.observe(OutcomeError)
			return Response{}, &unavailableError{err: r.err}
		}
		c.d.observe(OutcomeOK)
		return r.resp, nil
	case <-timer.C:
		c.d.forget(c.ID)
		c.d.observe(OutcomeTimeout)
		return Response{}, errTimeout
	case <-ctx.Done():
		c.d.forget(c.ID)
		return Response{}, &unavailableError{err: ctx.Err()}
	}
}

// Verdict awaits the call and converts the reply into a classifier verdict.
// It reports false when the remote classifier was unavailable.
func (c *Call) Verdict(ctx context.Context) (classifier.Verdict, bool) {
	resp, err := c.Await(ctx)
	if err != nil {
		// Non-retryable API errors (bad key, bad request) will not clear up
		// on their own.
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.IsRetryable() {
			c.d.log.Warn(ctx, "remote classifier rejected request",
				logger.String("request_id", c.ID),
				logger.Int("status", apiErr.StatusCode),
				logger.Error(err))
		} else {
			c.d.log.Debug(ctx, "remote classification unavailable",
				logger.String("request_id", c.ID), logger.Error(err))
		}
		return classifier.Verdict{}, false
	}
	score := resp.Confidence
	if !resp.IsIntentional {
		score = 1 - resp.Confidence
	}
	return classifier.Verdict{
		Intentional: resp.IsIntentional,
		Confidence:  resp.Confidence,
		Score:       score,
		Source:      classifier.SourceRemote,
	}, true
}

// Classify submits a request and waits for its verdict.
func (d *Delegate) Classify(ctx context.Context, name pose.LandmarkName, f features.MovementFeatures) (classifier.Verdict, bool) {
	return d.Submit(name, f).Verdict(ctx)
}

// Pending returns the number of calls awaiting a reply.
func (d *Delegate) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close stops accepting requests, cancels in-flight backend calls and waits
// for the workers and dispatcher to exit.
func (d *Delegate) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.requests)
	d.mu.Unlock()

	d.cancel()
	d.workersWG.Wait()
	close(d.responses)
	<-d.done
	return nil
}

func (d *Delegate) forget(id string) {
	d.mu.Lock()
	delete(d.pending, id)
	d.mu.Unlock()
}

func (d *Delegate) work() {
	defer d.workersWG.Done()
	for j := range d.requests {
		ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
		resp, err := d.backend.Classify(ctx, j.req)
		cancel()
		d.responses <- reply{id: j.req.RequestID, resp: resp, err: err}
	}
}

// dispatch routes replies to their waiting callers.
func (d *Delegate) dispatch() {
	defer close(d.done)
	for r := range d.responses {
		d.mu.Lock()
		ch, ok := d.pending[r.id]
		delete(d.pending, r.id)
		d.mu.Unlock()

		if !ok {
			d.observe(OutcomeLate)
			continue
		}
		ch <- r
	}
}

type unavailableError struct {
	err error
}

func (e *unavailableError) Error() string {
	return ErrUnavailable.Error() + ": " + e.err.Error()
}

func (e *unavailableError) Unwrap() []error {
	return []error{ErrUnavailable, e.err}
}
