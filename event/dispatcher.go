package event

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultWorkers   = 4
	DefaultQueueSize = 64

	contentType = "application/json; charset=utf-8"
)

// Dispatcher posts events to an HTTP endpoint in the background. Deliveries are attempted once and their outcome
// only ends up in the log.
type Dispatcher struct {
	endpoint *url.URL
	client   *http.Client
	logger   log.FieldLogger
	timeout  time.Duration
	workers  int

	queue  chan Event
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	abort  context.CancelFunc
	ctx    context.Context
}

type Option func(*Dispatcher)

func WithClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		d.client = c
	}
}

func WithLogger(l log.FieldLogger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithTimeout bounds every POST. Zero disables the deadline.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = t
	}
}

func WithWorkers(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Event, n)
		}
	}
}

func NewDispatcher(endpoint *url.URL, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		endpoint: endpoint,
		client:   http.DefaultClient,
		logger:   log.StandardLogger(),
		timeout:  DefaultTimeout,
		workers:  DefaultWorkers,
		queue:    make(chan Event, DefaultQueueSize),
	}
	for _, o := range opts {
		o(d)
	}
	d.ctx, d.abort = context.WithCancel(context.Background())

	d.wg.Add(d.workers)
	for i := 0; i < d.workers; i++ {
		go d.work()
	}
	return d
}

func (d *Dispatcher) Endpoint() *url.URL {
	return d.endpoint
}

// Dispatch queues the event and returns immediately. When the queue is full, or the dispatcher is closed, the
// event is dropped.
func (d *Dispatcher) Dispatch(e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warnf("Dispatcher closed, dropping event for card %v", e.UID())
		return
	}
	select {
	case d.queue <- e:
	default:
		d.logger.Warnf("Dispatch queue full, dropping event for card %v", e.UID())
	}
}

// Close stops accepting events and waits for queued deliveries until ctx is done. Whatever has not been delivered
// by then is abandoned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		d.abort()
		return nil
	case <-ctx.Done():
		// taken before aborting, the workers empty the queue without delivering once aborted
		queued := len(d.queue)
		d.abort()
		d.logger.Warnf("Abandoning %v queued events", queued)
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for e := range d.queue {
		if d.ctx.Err() != nil {
			continue
		}
		d.deliverSafely(e)
	}
}

func (d *Dispatcher) deliverSafely(e Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorf("Delivery of event for card %v panicked: %v", e.UID(), r)
		}
	}()
	if err := d.deliver(d.ctx, e); err != nil {
		for _, cause := range multierr.Errors(err) {
			d.logger.Errorln(cause.Error())
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e Event) (err error) {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("could not serialize event: %w", err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint.String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Idempotency-Key", uuid.New().String())

	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, res.Body.Close())
	}()

	// The response is not part of the contract, only read it so the connection can be reused.
	_, copyErr := io.Copy(io.Discard, res.Body)
	d.logger.Debugf("Event for card %v delivered with status %v", e.UID(), res.Status)
	return copyErr
}
