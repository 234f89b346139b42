//go:build pi

package nfc

// MFRC522 spec can be found here: https://www.nxp.com/docs/en/data-sheet/MFRC522.pdf

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ecc1/spi"
	"github.com/jdevelop/golang-rpi-extras/rf522/commands"
	"github.com/jdevelop/gpio"
	rpio "github.com/jdevelop/gpio/rpi"
	log "github.com/sirupsen/logrus"
)

// RC522ReaderName is the only reader an RC522 backend reports.
const RC522ReaderName = "MFRC522"

type RC522Config struct {
	Bus      int
	Device   int
	SpeedHz  int
	ResetPin int
	Poll     time.Duration
}

var DefaultRC522Config = RC522Config{
	Bus:      0,
	Device:   0,
	SpeedHz:  100000,
	ResetPin: 22,
	Poll:     150 * time.Millisecond,
}

// RC522 exposes an MFRC522 module on SPI as a single reader. The chip does not speak APDUs, so the get UID
// command is answered from the UID found during anticollision.
type RC522 struct {
	cfg  RC522Config
	chip *mfrc522

	mu      sync.Mutex
	current UID
	stop    chan struct{}
	done    chan struct{}
}

func NewRC522(cfg RC522Config) (*RC522, error) {
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultRC522Config.Poll
	}
	chip, err := openMFRC522(cfg.Bus, cfg.Device, cfg.SpeedHz, cfg.ResetPin)
	if err != nil {
		return nil, err
	}
	return &RC522{cfg: cfg, chip: chip}, nil
}

func (r *RC522) ListReaders() ([]string, error) {
	return []string{RC522ReaderName}, nil
}

func (r *RC522) Establish() (Conn, error) {
	return &rc522Conn{reader: r}, nil
}

func (r *RC522) Watch(readers []string, onInsert func(reader string)) error {
	found := false
	for _, name := range readers {
		if name == RC522ReaderName {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%v is not among the watched readers", RC522ReaderName)
	}

	r.mu.Lock()
	if r.stop != nil {
		r.mu.Unlock()
		return errors.New("reader already in use")
	}
	stop, done := make(chan struct{}), make(chan struct{})
	r.stop, r.done = stop, done
	r.mu.Unlock()

	go func() {
		defer close(done)
		lastConfirmed, lastSeen := "", ""
		debounce := 0
		for {
			select {
			case <-stop:
				log.Debugln("RC522 watch stopped. Returning.")
				return
			case <-time.After(r.cfg.Poll):
			}

			uid, err := r.chip.readCardID()
			if err != nil && err != errNoCard {
				log.Debugf("error when reading card ID: %v", err)
			}
			id := uid.String()

			if lastSeen != id {
				lastSeen = id
				debounce = 0
				continue
			}
			if lastConfirmed == id {
				continue
			}

			// debounce half reads and multiple cards in the field
			debounce++
			if debounce < 4 {
				continue
			}
			lastConfirmed = id
			debounce = 0

			r.mu.Lock()
			r.current = uid
			r.mu.Unlock()

			if id != "" {
				log.Debugf("Card %v entered the field", id)
				go onInsert(RC522ReaderName)
			}
		}
	}()
	return nil
}

func (r *RC522) Cancel() error {
	r.mu.Lock()
	stop, done := r.stop, r.done
	r.stop, r.done = nil, nil
	r.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (r *RC522) Close() error {
	if err := r.Cancel(); err != nil {
		return err
	}
	return r.chip.Close()
}

func (r *RC522) present() UID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

type rc522Conn struct {
	reader *RC522
	uid    UID
}

func (c *rc522Conn) Connect(reader string, _ ShareMode, _ Protocol) error {
	if reader != RC522ReaderName {
		return fmt.Errorf("unknown reader %q", reader)
	}
	uid := c.reader.present()
	if len(uid) == 0 {
		return errNoCard
	}
	c.uid = uid
	return nil
}

func (c *rc522Conn) Reader() string {
	return RC522ReaderName
}

func (c *rc522Conn) Transmit(cmd, resp []byte) (int, error) {
	if c.uid == nil {
		return 0, errNoCard
	}
	if !bytes.Equal(cmd, GetUIDCommand) {
		return copy(resp, statusNotSupported), nil
	}
	return copy(resp, append(append([]byte{}, c.uid...), StatusOK...)), nil
}

func (c *rc522Conn) Disconnect(Disposition) error {
	c.uid = nil
	return nil
}

func (c *rc522Conn) Release() error {
	return nil
}

type mfrc522 struct {
	dev         *spi.Device
	reset       gpio.Pin
	antennaGain byte
}

func openMFRC522(bus, device, speed, resetPin int) (*mfrc522, error) {
	dev, err := spi.Open(fmt.Sprintf("/dev/spidev%d.%d", bus, device), speed, 0)
	if err != nil {
		return nil, err
	}
	if err := dev.SetLSBFirst(false); err != nil {
		dev.Close()
		return nil, err
	}
	if err := dev.SetBitsPerWord(8); err != nil {
		dev.Close()
		return nil, err
	}

	pin, err := rpio.OpenPin(resetPin, gpio.ModeOutput)
	if err != nil {
		dev.Close()
		return nil, err
	}
	pin.Set()

	m := &mfrc522{dev: dev, reset: pin, antennaGain: 7}
	if err := m.init(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

func (m *mfrc522) Close() error {
	return m.dev.Close()
}

func (m *mfrc522) readCardID() (UID, error) {
	if err := m.init(); err != nil {
		return nil, err
	}
	if err := m.request(); err != nil {
		return nil, err
	}
	return m.antiColl()
}

func (m *mfrc522) init() error {
	steps := []struct {
		addr int
		val  byte
	}{
		{commands.CommandReg, commands.PCD_RESETPHASE},
		{0x2A, 0x8D}, // TModeReg
		{0x2B, 0x3E}, // TPrescalerReg
		{0x2D, 30},   // TReloadRegL
		{0x2C, 0},    // TReloadRegH
		{0x15, 0x40}, // TxASKReg
		{0x11, 0x3D}, // ModeReg
		{0x26, m.antennaGain << 4},
	}
	for _, s := range steps {
		if err := m.write(s.addr, s.val); err != nil {
			return err
		}
	}
	return m.antennaOn()
}

func (m *mfrc522) transfer(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	copy(out, data)
	err := m.dev.Transfer(out)
	return out, err
}

func (m *mfrc522) write(addr int, val byte) error {
	_, err := m.transfer([]byte{(byte(addr) << 1) & 0x7E, val})
	return err
}

func (m *mfrc522) read(addr int) (byte, error) {
	rb, err := m.transfer([]byte{((byte(addr) << 1) & 0x7E) | 0x80, 0})
	if err != nil {
		return 0, err
	}
	return rb[1], nil
}

func (m *mfrc522) setBits(addr int, mask byte) error {
	cur, err := m.read(addr)
	if err != nil {
		return err
	}
	return m.write(addr, cur|mask)
}

func (m *mfrc522) clearBits(addr int, mask byte) error {
	cur, err := m.read(addr)
	if err != nil {
		return err
	}
	return m.write(addr, cur&^mask)
}

func (m *mfrc522) antennaOn() error {
	cur, err := m.read(commands.TxControlReg)
	if err != nil {
		return err
	}
	if cur&0x03 != 0 {
		return nil
	}
	return m.setBits(commands.TxControlReg, 0x03)
}

// transceive sends data to the card in the field and returns the answer and its length in bits.
func (m *mfrc522) transceive(data []byte) ([]byte, int, error) {
	const irqEn, irqWait = 0x77, 0x30

	setup := []func() error{
		func() error { return m.write(commands.CommIEnReg, irqEn|0x80) },
		func() error { return m.clearBits(commands.CommIrqReg, 0x80) },
		func() error { return m.setBits(commands.FIFOLevelReg, 0x80) },
		func() error { return m.write(commands.CommandReg, commands.PCD_IDLE) },
	}
	for _, f := range setup {
		if err := f(); err != nil {
			return nil, 0, err
		}
	}
	for _, b := range data {
		if err := m.write(commands.FIFODataReg, b); err != nil {
			return nil, 0, err
		}
	}
	if err := m.write(commands.CommandReg, commands.PCD_TRANSCEIVE); err != nil {
		return nil, 0, err
	}
	if err := m.setBits(commands.BitFramingReg, 0x80); err != nil {
		return nil, 0, err
	}

	var irq byte
	i := 2000
	for ; i > 0; i-- {
		n, err := m.read(commands.CommIrqReg)
		if err != nil {
			return nil, 0, err
		}
		if n&(irqWait|1) != 0 {
			irq = n
			break
		}
	}
	if err := m.clearBits(commands.BitFramingReg, 0x80); err != nil {
		return nil, 0, err
	}
	if i == 0 {
		return nil, 0, errors.New("no answer after 2000 polls")
	}

	if e, err := m.read(commands.ErrorReg); err != nil {
		return nil, 0, err
	} else if e&0x1B != 0 {
		return nil, 0, fmt.Errorf("error register %#02x", e)
	}
	if irq&irqEn&0x01 != 0 {
		return nil, 0, errNoCard
	}

	level, err := m.read(commands.FIFOLevelReg)
	if err != nil {
		return nil, 0, err
	}
	lastBits, err := m.read(commands.ControlReg)
	if err != nil {
		return nil, 0, err
	}
	lastBits &= 0x07
	bits := int(level) * 8
	if lastBits != 0 {
		bits = (int(level)-1)*8 + int(lastBits)
	}

	if level == 0 {
		level = 1
	} else if level > 16 {
		level = 16
	}
	back := make([]byte, 0, level)
	for j := byte(0); j < level; j++ {
		b, err := m.read(commands.FIFODataReg)
		if err != nil {
			return nil, 0, err
		}
		back = append(back, b)
	}
	return back, bits, nil
}

// request sends REQA and expects the 16 bit ATQA.
func (m *mfrc522) request() error {
	if err := m.write(commands.BitFramingReg, 0x07); err != nil {
		return err
	}
	_, bits, err := m.transceive([]byte{0x26})
	if err != nil {
		return errNoCard
	}
	if bits != 0x10 {
		return fmt.Errorf("wrong number of bits %d", bits)
	}
	return nil
}

// antiColl runs cascade level 1 and, for 7 byte UIDs, cascade level 2.
func (m *mfrc522) antiColl() (UID, error) {
	if err := m.write(commands.BitFramingReg, 0x00); err != nil {
		return nil, err
	}
	cl1, err := m.cascade(0x93)
	if err != nil {
		return nil, err
	}
	if cl1[0] != 0x88 {
		return UID(cl1[:4]), nil
	}

	log.Debug("cascade level 2 required")
	sel := []byte{0x93, 0x70, cl1[0], cl1[1], cl1[2], cl1[3], cl1[4]}
	crc, err := m.crc(sel)
	if err != nil {
		return nil, err
	}
	sak, _, err := m.transceive(append(sel, crc...))
	if err != nil {
		return nil, err
	}
	if len(sak) == 0 || sak[0] != 0x04 {
		return nil, fmt.Errorf("unexpected SAK after cascade level 1: %x", sak)
	}

	cl2, err := m.cascade(0x95)
	if err != nil {
		return nil, err
	}
	uid := make(UID, 0, 7)
	uid = append(uid, cl1[1:4]...)
	uid = append(uid, cl2[:4]...)
	return uid, nil
}

func (m *mfrc522) cascade(level byte) ([]byte, error) {
	back, _, err := m.transceive([]byte{level, 0x20})
	if err != nil {
		return nil, err
	}
	if len(back) != 5 {
		return nil, fmt.Errorf("anticollision answer of %d bytes, expected 5", len(back))
	}
	bcc := byte(0)
	for _, b := range back[:4] {
		bcc ^= b
	}
	if bcc != back[4] {
		return nil, fmt.Errorf("BCC mismatch, expected %02x actual %02x", bcc, back[4])
	}
	return back, nil
}

func (m *mfrc522) crc(data []byte) ([]byte, error) {
	if err := m.clearBits(commands.DivIrqReg, 0x04); err != nil {
		return nil, err
	}
	if err := m.setBits(commands.FIFOLevelReg, 0x80); err != nil {
		return nil, err
	}
	for _, b := range data {
		if err := m.write(commands.FIFODataReg, b); err != nil {
			return nil, err
		}
	}
	if err := m.write(commands.CommandReg, commands.PCD_CALCCRC); err != nil {
		return nil, err
	}
	for i := 0xFF; i > 0; i-- {
		n, err := m.read(commands.DivIrqReg)
		if err != nil {
			return nil, err
		}
		if n&0x04 != 0 {
			break
		}
	}
	lsb, err := m.read(commands.CRCResultRegL)
	if err != nil {
		return nil, err
	}
	msb, err := m.read(commands.CRCResultRegM)
	if err != nil {
		return nil, err
	}
	return []byte{lsb, msb}, nil
}
