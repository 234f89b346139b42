package main

import (
	"github.com/callebjorkell/card-monitor/collector"
	log "github.com/sirupsen/logrus"
)

func runCollector(listen string) {
	r := collector.NewRouter(log.StandardLogger(), nil)
	log.Infof("Accepting events on %v%v", listen, collector.EventsPath)
	log.Fatal(r.Run(listen))
}
