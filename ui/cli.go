//go:build !pi

package ui

import (
	"github.com/sirupsen/logrus"
)

// NewIndicator returns an Indicator that logs instead of lighting anything up.
func NewIndicator() Indicator {
	return cliLed{}
}

type cliLed struct{}

func (cliLed) Success() {
	logrus.Debugln("LED: Green")
}

func (cliLed) Failure() {
	logrus.Debugln("LED: Red")
}

func (cliLed) Off() {
	logrus.Debugln("LED: Off")
}
