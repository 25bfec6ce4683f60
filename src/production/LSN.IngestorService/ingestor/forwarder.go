package lsningestor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.IngestorService/client"
	logger "gitlab.com/maplesense1/lsn.sensor_server/src/production/LSN.Logger"
)

// ErrQueueFull is returned by Submit when the forward queue has no room
var ErrQueueFull = errors.New("forward queue is full")

// Envelope is one gateway reading waiting to be forwarded
type Envelope struct {
	Source     string
	NodeID     string
	Payload    map[string]interface{}
	ReceivedAt time.Time
}

// Poster delivers a reading to the API Service
type Poster interface {
	PostReading(ctx context.Context, payload map[string]interface{}) (*client.IngestAck, error)
}

// ErrorReporter tells a gateway that one of its readings was refused
type ErrorReporter interface {
	ReportError(nodeID, errorType, message string)
}

// ForwarderStats counts forwarded envelopes
type ForwarderStats struct {
	Queued    int64 `json:"queued"`
	Forwarded int64 `json:"forwarded"`
	Rejected  int64 `json:"rejected"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int   `json:"pending"`
}

// Forwarder drains a bounded queue into the API Service on one goroutine,
// so readings from one source reach the API in arrival order.
type Forwarder struct {
	poster Poster
	logger *logger.Logger
	queue  chan Envelope

	mu       sync.RWMutex
	reporter ErrorReporter
	closed   bool

	wg        sync.WaitGroup
	queued    atomic.Int64
	forwarded atomic.Int64
	rejected  atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

func NewForwarder(poster Poster, queueSize int, log *logger.Logger) *Forwarder {
	return &Forwarder{
		poster: poster,
		logger: log.WithComponent("forwarder"),
		queue:  make(chan Envelope, queueSize),
	}
}

// SetReporter routes refusals back to the source, nil to only log them
func (f *Forwarder) SetReporter(r ErrorReporter) {
	f.mu.Lock()
	f.reporter = r
	f.mu.Unlock()
}

// Start runs the delivery loop until Stop or ctx is done
func (f *Forwarder) Start(ctx context.Context) {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.run(ctx)
	}()
}

// Submit enqueues without blocking the source's read loop
func (f *Forwarder) Submit(env Envelope) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return errors.New("forwarder is stopped")
	}

	select {
	case f.queue <- env:
		f.queued.Add(1)
		return nil
	default:
		f.dropped.Add(1)
		f.logger.WithNode(env.NodeID).Warn("Forward queue full, dropping reading")
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for pending readings to be delivered
func (f *Forwarder) Stop() {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *Forwarder) Stats() ForwarderStats {
	return ForwarderStats{
		Queued:    f.queued.Load(),
		Forwarded: f.forwarded.Load(),
		Rejected:  f.rejected.Load(),
		Failed:    f.failed.Load(),
		Dropped:   f.dropped.Load(),
		Pending:   len(f.queue),
	}
}

func (f *Forwarder) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-f.queue:
			if !ok {
				return
			}
			f.deliver(ctx, env)
		}
	}
}

func (f *Forwarder) deliver(ctx context.Context, env Envelope) {
	ack, err := f.poster.PostReading(ctx, env.Payload)
	if err == nil {
		f.forwarded.Add(1)
		f.logger.Logger.Debug().
			Str("node_id", env.NodeID).
			Str("source", env.Source).
			Int64("reading_id", ack.ID).
			Msg("Forwarded reading")
		return
	}

	errorType := "forward_failed"
	if client.IsPermanent(err) {
		errorType = "rejected"
		f.rejected.Add(1)
	} else {
		f.failed.Add(1)
	}
	f.logger.WithNode(env.NodeID).WithField("source", env.Source).ErrorWithError(err, "Failed to forward reading")

	f.mu.RLock()
	reporter := f.reporter
	f.mu.RUnlock()
	if reporter != nil {
		reporter.ReportError(env.NodeID, errorType, err.Error())
	}
}
