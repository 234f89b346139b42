package main

import (
	"github.com/callebjorkell/card-monitor/config"
	"github.com/callebjorkell/card-monitor/nfc"
	log "github.com/sirupsen/logrus"
)

func addCard(cfg config.Config, uid, label string) {
	uid = cardUID(cfg, uid)

	db := openDB(cfg)
	defer db.Close()

	if err := db.StoreCard(nfc.Card{UID: uid, Label: label}); err != nil {
		log.Errorf("Could not store card %v: %v", uid, err)
		return
	}
	log.Infof("Card %v is now labelled %q", uid, label)
}
