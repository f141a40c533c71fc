package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitepulse/internal/domain"
)

type job struct {
	ws         domain.WorkspaceID
	payload    domain.AlertPayload
	attachment *domain.Attachment
}

// Dispatcher sends alerts on background workers so the check cycle never
// waits on a webhook. Dispatch never blocks: a full queue drops the alert
// with a warning.
type Dispatcher struct {
	log     *zap.Logger
	channel Channel
	timeout time.Duration

	queue chan job
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(log *zap.Logger, ch Channel, workers, queueSize int, timeout time.Duration) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 64
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	d := &Dispatcher{
		log:     log,
		channel: ch,
		timeout: timeout,
		queue:   make(chan job, queueSize),
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return d
}

func (d *Dispatcher) Dispatch(ws domain.WorkspaceID, p domain.AlertPayload, a *domain.Attachment) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("notify_dispatch_after_close", zap.String("site", p.SiteURL))
		return
	}
	select {
	case d.queue <- job{ws: ws, payload: p, attachment: a}:
	default:
		d.log.Warn("notify_queue_full",
			zap.String("workspace_id", string(ws)),
			zap.String("site", p.SiteURL),
			zap.String("status", string(p.Status)),
		)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.queue {
		d.send(j)
	}
}

func (d *Dispatcher) send(j job) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("notify_panic", zap.String("site", j.payload.SiteURL), zap.Any("panic", r))
		}
	}()
	if d.channel == nil {
		d.log.Debug("notify_no_channel", zap.String("site", j.payload.SiteURL))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.channel.Send(ctx, j.ws, j.payload, j.attachment); err != nil {
		d.log.Warn("notify_send_error",
			zap.String("workspace_id", string(j.ws)),
			zap.String("site", j.payload.SiteURL),
			zap.String("status", string(j.payload.Status)),
			zap.Error(err),
		)
		return
	}
	d.log.Info("notify_sent",
		zap.String("workspace_id", string(j.ws)),
		zap.String("site", j.payload.SiteURL),
		zap.String("status", string(j.payload.Status)),
	)
}

// Close stops accepting alerts and waits for queued ones to be sent.
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
}
