package app

import (
	"context"
	"sync"

	"github.com/ayusman/mudra/internal/detection"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/plugin"
)

const (
	DefaultDispatchWorkers = 2
	DefaultDispatchQueue   = 64
)

// PluginLister lists the output plugins available for dispatch.
type PluginLister interface {
	List() []*plugin.Plugin
}

// PluginRunner runs one plugin with one request.
type PluginRunner interface {
	Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error)
}

// Dispatcher delivers intentional movements to output plugins on a small
// worker pool so slow plugins never stall the frame loop.
type Dispatcher struct {
	plugins PluginLister
	runner  PluginRunner
	log     logger.Logger

	queue  chan detection.MovementResult
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts workers goroutines that feed queued results to the
// plugins that accept them. Non-positive sizes select the defaults.
func NewDispatcher(plugins PluginLister, runner PluginRunner, log logger.Logger, workers, queue int) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	if workers <= 0 {
		workers = DefaultDispatchWorkers
	}
	if queue <= 0 {
		queue = DefaultDispatchQueue
	}

	d := &Dispatcher{
		plugins: plugins,
		runner:  runner,
		log:     log,
		queue:   make(chan detection.MovementResult, queue),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())

	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Dispatch queues the intentional results. It never blocks: results are
// dropped when the queue is full or the dispatcher is closed.
func (d *Dispatcher) Dispatch(results []detection.MovementResult) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}

	for _, r := range results {
		if !r.IsIntentional {
			continue
		}
		select {
		case d.queue <- r:
		default:
			d.log.Debug(d.ctx, "plugin queue full, dropping movement",
				logger.String("landmark", string(r.Landmark)))
		}
	}
}

// Close stops the workers after the queued results are delivered or their
// plugins time out. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.cancel()
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for r := range d.queue {
		d.deliver(r)
	}
}

func (d *Dispatcher) deliver(r detection.MovementResult) {
	for _, p := range d.plugins.List() {
		if !p.Accepts(r) {
			continue
		}
		resp, err := d.runner.Execute(d.ctx, p, plugin.NewRequest(p, r))
		switch {
		case err != nil:
			d.log.Warn(d.ctx, "plugin failed",
				logger.String("plugin", p.Manifest.Name), logger.Error(err))
		case !resp.Success:
			d.log.Warn(d.ctx, "plugin reported an error",
				logger.String("plugin", p.Manifest.Name), logger.String("error", resp.Error))
		default:
			d.log.Debug(d.ctx, "plugin ran",
				logger.String("plugin", p.Manifest.Name),
				logger.String("landmark", string(r.Landmark)))
		}
	}
}
