package nfc

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

var errNoCard = errors.New("no card present")

// statusNotSupported is answered to any APDU the simulated cards do not know.
var statusNotSupported = []byte{0x6A, 0x81}

// Simulator is a Backend without hardware. It presents a card on each reader every interval, cycling through
// the given UIDs.
type Simulator struct {
	readers  []string
	uids     []UID
	interval time.Duration

	mu      sync.Mutex
	present map[string]UID
	tick    int
	stop    chan struct{}
	done    chan struct{}
}

func NewSimulator(readers []string, uids []UID, interval time.Duration) *Simulator {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Simulator{
		readers:  readers,
		uids:     uids,
		interval: interval,
		present:  make(map[string]UID),
	}
}

func (s *Simulator) ListReaders() ([]string, error) {
	r := make([]string, len(s.readers))
	copy(r, s.readers)
	return r, nil
}

func (s *Simulator) Establish() (Conn, error) {
	return &simConn{sim: s}, nil
}

func (s *Simulator) Watch(readers []string, onInsert func(reader string)) error {
	if len(s.uids) == 0 {
		return errors.New("simulator has no cards to present")
	}
	s.mu.Lock()
	if s.stop != nil {
		s.mu.Unlock()
		return errors.New("simulator is already watching")
	}
	stop, done := make(chan struct{}), make(chan struct{})
	s.stop, s.done = stop, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				log.Debugln("Simulator stopped. Returning.")
				return
			case <-time.After(s.interval):
			}

			for _, r := range readers {
				uid := s.insert(r)
				log.Debugf("Simulating card %v on %v", uid, r)
				go onInsert(r)
			}
		}
	}()
	return nil
}

// insert places the next card on the reader.
func (s *Simulator) insert(reader string) UID {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid := s.uids[s.tick%len(s.uids)]
	s.tick++
	s.present[reader] = uid
	return uid
}

func (s *Simulator) card(reader string) (UID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.present[reader]
	return uid, ok
}

func (s *Simulator) Cancel() error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return nil
}

func (s *Simulator) Close() error {
	return s.Cancel()
}

type simConn struct {
	sim    *Simulator
	reader string
	uid    UID
}

func (c *simConn) Connect(reader string, _ ShareMode, _ Protocol) error {
	uid, ok := c.sim.card(reader)
	if !ok {
		return fmt.Errorf("%v: %w", reader, errNoCard)
	}
	c.reader, c.uid = reader, uid
	return nil
}

func (c *simConn) Reader() string {
	return c.reader
}

func (c *simConn) Transmit(cmd, resp []byte) (int, error) {
	if c.uid == nil {
		return 0, errNoCard
	}
	answer := statusNotSupported
	if bytes.Equal(cmd, GetUIDCommand) {
		answer = append(append([]byte{}, c.uid...), StatusOK...)
	}
	return copy(resp, answer), nil
}

func (c *simConn) Disconnect(Disposition) error {
	c.reader, c.uid = "", nil
	return nil
}

func (c *simConn) Release() error {
	return nil
}
