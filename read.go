package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/callebjorkell/card-monitor/config"
	"github.com/callebjorkell/card-monitor/event"
	"github.com/callebjorkell/card-monitor/monitor"
	"github.com/callebjorkell/card-monitor/nfc"
	log "github.com/sirupsen/logrus"
)

const readTimeout = 30 * time.Second

type dispatchFunc func(e event.Event)

func (f dispatchFunc) Dispatch(e event.Event) {
	f(e)
}

// readSingleCard waits for one card on any reader and returns its UID.
func readSingleCard(cfg config.Config) (nfc.UID, error) {
	b, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}

	events := make(chan event.Event, 1)
	m := monitor.New("cli", b, dispatchFunc(func(e event.Event) {
		select {
		case events <- e:
		default:
		}
	}), monitor.WithLogger(log.StandardLogger().WithField("cmd", "read")))
	defer m.Close()

	if err := m.Start(); err != nil {
		return nil, err
	}
	fmt.Println("Present a card to one of the readers...")

	select {
	case e := <-events:
		return nfc.ParseUID(e.UID())
	case <-time.After(readTimeout):
		return nil, errors.New("no card was presented in time")
	}
}

// cardUID returns the given UID, or reads one from a card when it is empty.
func cardUID(cfg config.Config, given string) string {
	if given != "" {
		uid, err := nfc.ParseUID(given)
		if err != nil {
			log.Fatal(err)
		}
		return uid.String()
	}
	uid, err := readSingleCard(cfg)
	if err != nil {
		log.Fatal(err)
	}
	return uid.String()
}

func openDB(cfg config.Config) *nfc.DB {
	db, err := nfc.NewDB(cfg.DB)
	if err != nil {
		log.Fatalf("Could not open card database %v: %v", cfg.DB, err)
	}
	return db
}
