package mail

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/timber-social/timber-backend/internal/observability"
	"github.com/timber-social/timber-backend/internal/service"
)

var (
	ErrQueueFull        = errors.New("mail queue full")
	ErrDispatcherClosed = errors.New("mail dispatcher closed")
)

type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

type job struct {
	kind string
	msg  Message
}

// Dispatcher delivers mail on a fixed worker pool. Enqueue never blocks the
// caller; when the queue is full the message is dropped and counted.
type Dispatcher struct {
	cfg       DispatcherConfig
	sender    Sender
	logger    *slog.Logger
	queue     chan job
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

var _ service.Notifier = (*Dispatcher)(nil)

func NewDispatcher(cfg DispatcherConfig, sender Sender, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		cfg:    cfg,
		sender: sender,
		logger: logger,
		queue:  make(chan job, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.run()
	}
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case j := <-d.queue:
			d.deliver(j)
		case <-d.done:
			for {
				select {
				case j := <-d.queue:
					d.deliver(j)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
	defer cancel()
	if err := d.sender.Send(ctx, j.msg); err != nil {
		observability.RecordNotificationDispatch(ctx, j.kind, "error")
		d.logger.WarnContext(ctx, "mail delivery failed", "kind", j.kind, "to", j.msg.ToAddress, "error", err)
		return
	}
	observability.RecordNotificationDispatch(ctx, j.kind, "sent")
}

func (d *Dispatcher) Enqueue(ctx context.Context, kind string, msg Message) error {
	if d.closed.Load() {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- job{kind: kind, msg: msg}:
		observability.RecordNotificationDispatch(ctx, kind, "queued")
		return nil
	case <-d.done:
		return ErrDispatcherClosed
	default:
		d.dropped.Add(1)
		observability.RecordNotificationDispatch(ctx, kind, "dropped")
		return ErrQueueFull
	}
}

func (d *Dispatcher) SendVerificationCode(ctx context.Context, to service.Recipient, code string, ttl time.Duration) error {
	msg, err := VerificationMessage(to.Name, to.Email, code, ttl)
	if err != nil {
		return err
	}
	return d.Enqueue(ctx, "verification", msg)
}

func (d *Dispatcher) SendPasswordReset(ctx context.Context, to service.Recipient, code string, ttl time.Duration) error {
	msg, err := PasswordResetMessage(to.Name, to.Email, code, ttl)
	if err != nil {
		return err
	}
	return d.Enqueue(ctx, "password_reset", msg)
}

// Close stops intake and waits for queued messages to be delivered.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 { return d.dropped.Load() }
