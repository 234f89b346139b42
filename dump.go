package main

import (
	"fmt"

	"github.com/callebjorkell/card-monitor/config"
	log "github.com/sirupsen/logrus"
)

func dumpAll(cfg config.Config) {
	db := openDB(cfg)
	defer db.Close()

	cards, err := db.ReadAll()
	if err != nil {
		log.Fatal(err)
	}

	if len(cards) > 0 {
		fmt.Println("                   UID │ Added               │ Label")
		fmt.Println("───────────────────────┼─────────────────────┼─────────────────────────────────────────")
	} else {
		fmt.Println("No cards found in the database...")
	}
	for _, card := range cards {
		l := card.Label
		if len(l) > 40 {
			l = fmt.Sprintf("%.39v…", l)
		}
		fmt.Printf("%22v │ %19v │ %v\n", card.UID, card.Added.Format("2006-01-02 15:04:05"), l)
	}
}

func dumpCard(cfg config.Config, uid string) {
	uid = cardUID(cfg, uid)

	db := openDB(cfg)
	defer db.Close()

	c, err := db.ReadCard(uid)
	if err != nil {
		log.Error(err)
		return
	}
	fmt.Println(c)
}
