// Package monitor watches card readers and reports the UID of every inserted card as an event.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/callebjorkell/card-monitor/event"
	"github.com/callebjorkell/card-monitor/nfc"
	"github.com/callebjorkell/card-monitor/ui"
	log "github.com/sirupsen/logrus"
)

// Dispatcher hands events off for delivery. Dispatch must not block on the delivery itself.
type Dispatcher interface {
	Dispatch(e event.Event)
}

// Registry looks up operator supplied information about a card.
type Registry interface {
	ReadCard(uid string) (nfc.Card, error)
}

type Monitor struct {
	name       string
	place      string
	backend    nfc.Backend
	dispatcher Dispatcher
	logger     log.FieldLogger
	now        func() time.Time
	indicator  ui.Indicator
	registry   Registry

	closeOnce sync.Once
}

type Option func(*Monitor)

// WithLogger sets where the monitor writes its output. Defaults to the standard logrus logger.
func WithLogger(l log.FieldLogger) Option {
	return func(m *Monitor) {
		m.logger = l
	}
}

func WithPlace(place string) Option {
	return func(m *Monitor) {
		m.place = place
	}
}

func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

func WithIndicator(i ui.Indicator) Option {
	return func(m *Monitor) {
		m.indicator = i
	}
}

// WithRegistry adds the label of known cards to their events.
func WithRegistry(r Registry) Option {
	return func(m *Monitor) {
		m.registry = r
	}
}

func New(name string, backend nfc.Backend, d Dispatcher, opts ...Option) *Monitor {
	m := &Monitor{
		name:       name,
		place:      event.DefaultPlace,
		backend:    backend,
		dispatcher: d,
		logger:     log.StandardLogger(),
		now:        time.Now,
		indicator:  ui.Nop,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Monitor) Name() string {
	return m.name
}

// Start begins watching all readers that are attached right now. It fails with a *nfc.ReaderNotFoundError when
// there are none. Start must not be called again without a Stop in between.
func (m *Monitor) Start() error {
	readers, err := m.backend.ListReaders()
	if err != nil {
		return fmt.Errorf("could not list readers: %w", err)
	}
	if len(readers) < 1 {
		return &nfc.ReaderNotFoundError{Msg: "There are currently no readers installed."}
	}

	for _, r := range readers {
		m.logger.Infof("Monitoring reader: %v", r)
	}
	return m.backend.Watch(readers, m.handleInsertion)
}

// Stop stops watching for new cards. Cards that are already being handled are not affected.
func (m *Monitor) Stop() {
	if err := m.backend.Cancel(); err != nil {
		m.logger.Warnf("Could not cancel monitoring: %v", err)
	}
}

// Close stops watching and releases the backend. Calling it more than once is fine.
func (m *Monitor) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.Stop()
		err = m.backend.Close()
	})
	return err
}

func (m *Monitor) handleInsertion(reader string) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorf("Handling card on %v failed: %v", reader, r)
		}
	}()

	conn, err := m.backend.Establish()
	if err != nil {
		m.logger.Errorf("Could not establish a card context for %v: %v", reader, err)
		return
	}
	defer func() {
		if err := conn.Release(); err != nil {
			m.logger.Warnf("Could not release card context for %v: %v", reader, err)
		}
	}()
	defer func() {
		if err := conn.Disconnect(nfc.LeaveCard); err != nil {
			m.logger.Warnf("Could not disconnect from %v: %v", reader, err)
		}
	}()

	if err := conn.Connect(reader, nfc.ShareShared, nfc.ProtocolAny); err != nil {
		m.logger.Println("Failed to connect to reader: " + reader)
		m.logger.Debugf("Connect to %v: %v", reader, err)
		m.indicator.Failure()
		return
	}
	m.logger.Printf("Success to connect to reader: %v", conn.Reader())

	uid, err := nfc.GetUID(conn)
	if err != nil {
		m.logger.Println(err.Error())
		m.indicator.Failure()
		return
	}

	m.logger.Println("Card UID: " + uid.String())
	e := m.buildEvent(uid)
	m.logger.Debugf("Dispatching %v", e.String())
	m.dispatcher.Dispatch(e)
	m.indicator.Success()
}

func (m *Monitor) buildEvent(uid nfc.UID) event.Event {
	e := event.Build(uid.String(), m.name, m.place, m.now())
	if m.registry == nil {
		return e
	}
	card, err := m.registry.ReadCard(uid.String())
	if err != nil {
		m.logger.Debugf("No label for card %v: %v", uid, err)
		return e
	}
	if card.Label != "" {
		e.Data[event.LabelKey] = card.Label
	}
	return e
}
