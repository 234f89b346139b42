//go:build pi

package ui

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

const (
	redPin   = "GPIO6"
	greenPin = "GPIO5"
	bluePin  = "GPIO13"
)

type colorLed struct {
	r gpio.PinIO
	g gpio.PinIO
	b gpio.PinIO

	mu    sync.Mutex
	timer *time.Timer
}

// NewIndicator drives the RGB LED of the reader box. The LED is active low.
func NewIndicator() Indicator {
	if _, err := host.Init(); err != nil {
		logrus.Errorf("Unable to initialize periph, LED disabled: %v", err)
		return Nop
	}
	logrus.Infoln("Initializing LED")

	c := &colorLed{r: gpioreg.ByName(redPin), g: gpioreg.ByName(greenPin), b: gpioreg.ByName(bluePin)}
	if c.r == nil || c.g == nil || c.b == nil {
		logrus.Errorln("LED pins not found, LED disabled")
		return Nop
	}
	c.Off()
	return c
}

func (c *colorLed) Success() {
	c.show(c.g)
}

func (c *colorLed) Failure() {
	c.show(c.r)
}

// show lights a single colour for HoldTime.
func (c *colorLed) show(p gpio.PinIO) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.allHigh()
	p.Out(gpio.Low)
	c.timer = time.AfterFunc(HoldTime, c.Off)
}

func (c *colorLed) Off() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.allHigh()
}

func (c *colorLed) allHigh() {
	c.r.Out(gpio.High)
	c.g.Out(gpio.High)
	c.b.Out(gpio.High)
}
