package mail

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// DispatcherConfig controls queueing for a [Dispatcher].
type DispatcherConfig struct {
	BufferSize  int
	DropIfFull  bool
	SendTimeout time.Duration
}

// Result reports the outcome of one queued send.
type Result struct {
	Message Message
	Err     error
}

// Dispatcher delivers messages on a single background worker. Enqueue never
// reports delivery errors to the caller; they are logged and passed to the
// optional OnResult hook.
type Dispatcher struct {
	cfg      DispatcherConfig
	mailer   Mailer
	log      *zap.Logger
	onResult func(Result)

	ch   chan Message
	stop chan struct{}
	done chan struct{}
	wg   sync.WaitGroup

	// mu guards closed. Enqueue holds it shared across the send so Close
	// cannot signal the worker while a message is still in flight.
	mu     sync.RWMutex
	closed bool

	sent      atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
	closeOnce sync.Once
}

// NewDispatcher starts the worker.
func NewDispatcher(cfg DispatcherConfig, mailer Mailer, log *zap.Logger, onResult func(Result)) *Dispatcher {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	d := &Dispatcher{
		cfg:      cfg,
		mailer:   mailer,
		log:      log.Named("mail.dispatcher"),
		onResult: onResult,
		ch:       make(chan Message, cfg.BufferSize),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.ch:
			d.deliver(msg)
		case <-d.done:
			for {
				select {
				case msg := <-d.ch:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	err := d.mailer.Send(ctx, msg)
	cancel()

	if err != nil {
		d.failed.Add(1)
		d.log.Warn("email delivery failed",
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
	} else {
		d.sent.Add(1)
	}
	if d.onResult != nil {
		d.onResult(Result{Message: msg, Err: err})
	}
}

// Enqueue hands msg to the worker. It reports false when the message was
// dropped because the queue was full (with DropIfFull), ctx ended, or the
// dispatcher is closed. A message Enqueue accepted is always delivered or
// failed by the worker before Close returns.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) bool {
	if d == nil {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- msg:
			return true
		default:
			d.dropped.Add(1)
			return false
		}
	}

	select {
	case d.ch <- msg:
		return true
	case <-ctx.Done():
		d.dropped.Add(1)
		return false
	case <-d.stop:
		return false
	}
}

// Close stops accepting messages, drains the queue, and waits for the worker.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		// Release blocked senders, then wait for them to leave.
		close(d.stop)
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()

		close(d.done)
		d.wg.Wait()
	})
}

// Sent returns the number of successful deliveries.
func (d *Dispatcher) Sent() uint64 {
	if d == nil {
		return 0
	}
	return d.sent.Load()
}

// Failed returns the number of failed deliveries.
func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}

// Dropped returns the number of messages never handed to the worker.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
