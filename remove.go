package main

import (
	"github.com/callebjorkell/card-monitor/config"
	log "github.com/sirupsen/logrus"
)

func removeCard(cfg config.Config, uid string) {
	uid = cardUID(cfg, uid)

	db := openDB(cfg)
	defer db.Close()

	if err := db.DeleteCard(uid); err != nil {
		log.Warnf("Could not remove card %v: %v", uid, err.Error())
	}
}
