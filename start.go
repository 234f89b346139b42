package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/callebjorkell/card-monitor/config"
	"github.com/callebjorkell/card-monitor/event"
	"github.com/callebjorkell/card-monitor/monitor"
	"github.com/callebjorkell/card-monitor/nfc"
	"github.com/callebjorkell/card-monitor/ui"
	log "github.com/sirupsen/logrus"
)

const drainTimeout = 5 * time.Second

func startMonitor(cfg config.Config) int {
	if cfg.Endpoint == "" || cfg.Name == "" {
		log.Error("Both an endpoint and a monitor name are required.")
		app.Usage([]string{"start"})
		return exitArgumentNotFound
	}
	endpoint, err := parseEndpoint(cfg.Endpoint)
	if err != nil {
		log.Error(err)
		return exitArgumentNotFound
	}

	b, err := openBackend(cfg)
	if err != nil {
		log.Error(err)
		return exitFailure
	}

	d := event.NewDispatcher(endpoint,
		event.WithTimeout(cfg.Timeout),
		event.WithWorkers(cfg.Workers),
		event.WithQueueSize(cfg.QueueSize),
	)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		if err := d.Close(ctx); err != nil {
			log.Warnf("Not all events were delivered: %v", err)
		}
	}()

	opts := []monitor.Option{monitor.WithPlace(cfg.Place)}
	if cfg.LED {
		opts = append(opts, monitor.WithIndicator(ui.NewIndicator()))
	}
	if db, err := nfc.NewDB(cfg.DB); err != nil {
		log.Warnf("Card labels disabled, could not open %v: %v", cfg.DB, err)
	} else {
		defer db.Close()
		opts = append(opts, monitor.WithRegistry(db))
	}

	m := monitor.New(cfg.Name, b, d, opts...)
	defer m.Close()
	log.Infof("Monitor %q reports cards to %v", m.Name(), d.Endpoint())

	fmt.Println("This program will monitor all smart card readers.")
	fmt.Println("Press Ctrl+C to stop monitoring.")

	if err := m.Start(); err != nil {
		log.Error(err)
		if errors.Is(err, nfc.ErrReaderNotFound) {
			return exitReaderNotFound
		}
		return exitFailure
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	<-signals

	log.Infoln("Stopping monitor")
	m.Stop()
	return exitStopped
}

func parseEndpoint(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("endpoint %q must be an absolute http(s) URI", raw)
	}
	return u, nil
}
