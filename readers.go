package main

import (
	"fmt"

	"github.com/callebjorkell/card-monitor/config"
	log "github.com/sirupsen/logrus"
)

func listReaders(cfg config.Config) {
	b, err := openBackend(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer b.Close()

	names, err := b.ListReaders()
	if err != nil {
		log.Fatal(err)
	}
	if len(names) == 0 {
		fmt.Println("There are currently no readers installed.")
		return
	}
	for _, n := range names {
		fmt.Println(n)
	}
}
