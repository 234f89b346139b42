package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/callebjorkell/card-monitor/config"
	"github.com/callebjorkell/card-monitor/label"
	"github.com/callebjorkell/card-monitor/nfc"
	log "github.com/sirupsen/logrus"
)

func createLabel(cfg config.Config, uidString, text, file string) {
	uid, err := nfc.ParseUID(cardUID(cfg, uidString))
	if err != nil {
		log.Fatal(err)
	}

	if text == "" {
		text = storedLabel(cfg, uid)
	}
	if file == "" {
		file = fmt.Sprintf("%v.png", strings.ReplaceAll(uid.String(), "-", ""))
	}
	log.Infof("Generating label for %v into %v", uid, file)

	f, err := os.Create(file)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	if err := label.Render(uid, text, f); err != nil {
		log.Fatal(err)
	}
}

func createLabelSheet(cfg config.Config, file string) {
	db := openDB(cfg)
	defer db.Close()

	cards, err := db.ReadAll()
	if err != nil {
		log.Fatal(err)
	}
	if len(cards) == 0 {
		log.Fatal("There are no stored cards to print.")
	}
	if len(cards) > label.PerSheet {
		log.Warnf("Only the first %v of %v cards fit on the sheet", label.PerSheet, len(cards))
		cards = cards[:label.PerSheet]
	}
	if file == "" {
		file = "cards.png"
	}
	log.Infof("Generating a sheet of %v labels into %v", len(cards), file)

	f, err := os.Create(file)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	if err := label.RenderSheet(cards, f); err != nil {
		log.Fatal(err)
	}
}

func storedLabel(cfg config.Config, uid nfc.UID) string {
	db, err := nfc.NewDB(cfg.DB)
	if err != nil {
		log.Debugf("No card database: %v", err)
		return ""
	}
	defer db.Close()

	c, err := db.ReadCard(uid.String())
	if err != nil {
		if !errors.Is(err, nfc.ErrCardNotFound) {
			log.Warn(err)
		}
		return ""
	}
	return c.Label
}
