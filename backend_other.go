//go:build !pi

package main

import (
	"errors"

	"github.com/callebjorkell/card-monitor/nfc"
)

func openRC522() (nfc.Backend, error) {
	return nil, errors.New("the rc522 backend is only available in builds with the pi tag")
}
