package ui

import "time"

// HoldTime is how long a read result stays visible.
const HoldTime = 2 * time.Second

// Indicator gives physical feedback about card reads.
type Indicator interface {
	Success()
	Failure()
	Off()
}

type nop struct{}

func (nop) Success() {}
func (nop) Failure() {}
func (nop) Off()     {}

// Nop is an Indicator that does nothing.
var Nop Indicator = nop{}
