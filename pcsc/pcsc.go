// Package pcsc implements the card backend on top of the system's PC/SC service.
package pcsc

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/callebjorkell/card-monitor/nfc"
	"github.com/ebfe/scard"
	log "github.com/sirupsen/logrus"
)

const (
	retryDelay    = time.Second
	maxRetryDelay = 30 * time.Second
	cancelWait    = 5 * time.Second
)

type Backend struct {
	mu       sync.Mutex
	watchCtx *scard.Context
	stop     chan struct{}
	done     chan struct{}
	closed   bool
}

func New() *Backend {
	return &Backend{}
}

// ListReaders uses a short lived system context. Having no readers is not an error here.
func (b *Backend) ListReaders() ([]string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("could not establish PC/SC context: %w", err)
	}
	defer ctx.Release()

	return readerList(ctx.ListReaders())
}

func readerList(readers []string, err error) ([]string, error) {
	if errors.Is(err, scard.ErrNoReadersAvailable) {
		return nil, nil
	}
	return readers, err
}

func (b *Backend) Establish() (nfc.Conn, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("could not establish PC/SC context: %w", err)
	}
	return &conn{ctx: ctx}, nil
}

// Watch calls onInsert on its own goroutine whenever a card enters one of the readers. Cards that are already
// present when watching starts are not reported.
func (b *Backend) Watch(readers []string, onInsert func(reader string)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errors.New("backend is closed")
	}
	if b.watchCtx != nil {
		return errors.New("already watching")
	}

	ctx, err := scard.EstablishContext()
	if err != nil {
		return fmt.Errorf("could not establish PC/SC context: %w", err)
	}
	stop, done := make(chan struct{}), make(chan struct{})
	b.watchCtx, b.stop, b.done = ctx, stop, done

	states := make([]scard.ReaderState, len(readers))
	for i, r := range readers {
		states[i] = scard.ReaderState{Reader: r, CurrentState: scard.StateUnaware}
	}
	go watch(ctx, states, onInsert, stop, done)
	return nil
}

func watch(ctx *scard.Context, states []scard.ReaderState, onInsert func(string), stop, done chan struct{}) {
	defer close(done)
	initialized := false
	delay := retryDelay
	var lastErr error
	for {
		select {
		case <-stop:
			log.Debugln("PC/SC watch stopped. Returning.")
			return
		default:
		}

		err := ctx.GetStatusChange(states, -1)
		switch {
		case errors.Is(err, scard.ErrCancelled):
			log.Debugln("PC/SC watch cancelled. Returning.")
			return
		case errors.Is(err, scard.ErrTimeout):
			continue
		case err != nil:
			if lastErr == nil || err.Error() != lastErr.Error() {
				log.Warnf("Waiting for card status change failed: %v", err)
			} else {
				log.Debugf("Waiting for card status change still failing, retrying in %v: %v", delay, err)
			}
			lastErr = err
			select {
			case <-stop:
				log.Debugln("PC/SC watch stopped. Returning.")
				return
			case <-time.After(delay):
			}
			delay = backoff(delay)
			if valid, _ := ctx.IsValid(); !valid {
				log.Errorln("PC/SC context is no longer valid, stopping watch")
				return
			}
			continue
		}

		if lastErr != nil {
			log.Infoln("Card status changes are coming through again")
			lastErr, delay = nil, retryDelay
		}
		for _, r := range insertions(states, initialized) {
			log.Debugf("Card inserted into %v", r)
			go onInsert(r)
		}
		initialized = true
	}
}

// insertions acknowledges the reported events in states and returns the readers that went from empty to having a
// card. Nothing is returned for the first round, which only reports what was already there.
func insertions(states []scard.ReaderState, initialized bool) []string {
	var inserted []string
	for i := range states {
		s := &states[i]
		if s.EventState&scard.StateChanged == 0 {
			continue
		}
		was := s.CurrentState&scard.StatePresent != 0
		is := s.EventState&scard.StatePresent != 0
		s.CurrentState = s.EventState &^ scard.StateChanged

		if initialized && is && !was {
			inserted = append(inserted, s.Reader)
		}
	}
	return inserted
}

func backoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}

func (b *Backend) Cancel() error {
	b.mu.Lock()
	ctx, stop, done := b.watchCtx, b.stop, b.done
	b.watchCtx, b.stop, b.done = nil, nil, nil
	b.mu.Unlock()

	if ctx == nil {
		return nil
	}
	close(stop)
	cancelErr := ctx.Cancel()
	select {
	case <-done:
	case <-time.After(cancelWait):
		// the watch may still be using the context, so it is leaked rather than released
		if cancelErr != nil {
			return fmt.Errorf("could not cancel PC/SC watch: %w", cancelErr)
		}
		return errors.New("PC/SC watch did not stop in time")
	}
	if err := ctx.Release(); err != nil && cancelErr == nil {
		return err
	}
	return cancelErr
}

func (b *Backend) Close() error {
	err := b.Cancel()
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return err
}

type conn struct {
	ctx    *scard.Context
	card   *scard.Card
	reader string
}

func (c *conn) Connect(reader string, mode nfc.ShareMode, proto nfc.Protocol) error {
	card, err := c.ctx.Connect(reader, shareMode(mode), protocol(proto))
	if err != nil {
		return err
	}
	c.card = card
	c.reader = reader
	if st, err := card.Status(); err == nil && st.Reader != "" {
		c.reader = st.Reader
	}
	return nil
}

func (c *conn) Reader() string {
	return c.reader
}

func (c *conn) Transmit(cmd, resp []byte) (int, error) {
	if c.card == nil {
		return 0, errors.New("not connected")
	}
	answer, err := c.card.Transmit(cmd)
	if err != nil {
		var se scard.Error
		if errors.As(err, &se) {
			return 0, statusError{se}
		}
		return 0, err
	}
	return copy(resp, answer), nil
}

func (c *conn) Disconnect(d nfc.Disposition) error {
	if c.card == nil {
		return nil
	}
	err := c.card.Disconnect(disposition(d))
	c.card = nil
	return err
}

func (c *conn) Release() error {
	return c.ctx.Release()
}

// statusError exposes the PC/SC return code to nfc.GetUID.
type statusError struct {
	code scard.Error
}

func (e statusError) Error() string {
	return e.code.Error()
}

func (e statusError) StatusCode() uint32 {
	return uint32(e.code)
}

func (e statusError) Unwrap() error {
	return e.code
}

func shareMode(m nfc.ShareMode) scard.ShareMode {
	if m == nfc.ShareExclusive {
		return scard.ShareExclusive
	}
	return scard.ShareShared
}

func protocol(nfc.Protocol) scard.Protocol {
	return scard.ProtocolAny
}

func disposition(d nfc.Disposition) scard.Disposition {
	switch d {
	case nfc.ResetCard:
		return scard.ResetCard
	case nfc.UnpowerCard:
		return scard.UnpowerCard
	default:
		return scard.LeaveCard
	}
}
