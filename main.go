package main

import (
	"os"

	"github.com/callebjorkell/card-monitor/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

const (
	exitStopped          = 0
	exitFailure          = 1
	exitArgumentNotFound = 254
	exitReaderNotFound   = 255
)

var (
	app        = kingpin.New("card-monitor", "Watches smart card readers and reports the UID of every inserted card to an HTTP endpoint.")
	configFile = app.Flag("config", "Path to a configuration file. card-monitor.yaml is searched for by default.").Short('c').String()
	debug      = app.Flag("debug", "Enable debug logging.").Bool()
	backend    = app.Flag("backend", "Card backend to use: pcsc, sim or rc522.").String()

	start         = app.Command("start", "Start monitoring all readers and send an event for every card.")
	startEndpoint = start.Arg("endpoint", "URI that the events are posted to.").String()
	startName     = start.Arg("name", "Name of this monitor, sent as the initiator of the events.").String()
	startLED      = start.Flag("led", "Show read results on the status LED.").Bool()

	readers = app.Command("readers", "List the readers that are currently attached.")

	add      = app.Command("add", "Give a card a label that is sent along with its events.")
	addLabel = add.Arg("label", "The label of the card.").Required().String()
	addUID   = add.Flag("uid", "Manually specify the card UID. If not provided, a card will be requested.").String()

	remove    = app.Command("remove", "Remove the label of a card.")
	removeUID = remove.Flag("uid", "Manually specify the card UID. If not provided, a card will be requested.").String()

	dump     = app.Command("dump", "Show the stored information about a card.")
	dumpUID  = dump.Flag("uid", "Manually specify the card UID. If not provided, a card will be requested.").String()
	dumpList = dump.Flag("list", "Dump a short list of all the cards in the database").Bool()

	labelCmd   = app.Command("label", "Create a printable label for a card.")
	labelUID   = labelCmd.Flag("uid", "Manually specify the card UID. If not provided, a card will be requested.").String()
	labelText  = labelCmd.Flag("text", "Text to print below the UID. Defaults to the stored label of the card.").String()
	labelOut   = labelCmd.Flag("out", "File to write the PNG to. Defaults to <uid>.png").String()
	labelSheet = labelCmd.Flag("sheet", "Print the labels of all stored cards on an A4 sheet instead.").Bool()

	collect       = app.Command("collect", "Run a local endpoint that accepts and logs card events.")
	collectListen = collect.Flag("listen", "Address to listen on.").Default(":8080").String()
)

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatal(err)
	}
	if *debug {
		cfg.Debug = true
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	switch cmd {
	case start.FullCommand():
		if *startEndpoint != "" {
			cfg.Endpoint = *startEndpoint
		}
		if *startName != "" {
			cfg.Name = *startName
		}
		if *startLED {
			cfg.LED = true
		}
		os.Exit(startMonitor(cfg))
	case readers.FullCommand():
		listReaders(cfg)
	case add.FullCommand():
		addCard(cfg, *addUID, *addLabel)
	case remove.FullCommand():
		removeCard(cfg, *removeUID)
	case dump.FullCommand():
		if *dumpList {
			dumpAll(cfg)
		} else {
			dumpCard(cfg, *dumpUID)
		}
	case labelCmd.FullCommand():
		if *labelSheet {
			createLabelSheet(cfg, *labelOut)
		} else {
			createLabel(cfg, *labelUID, *labelText, *labelOut)
		}
	case collect.FullCommand():
		runCollector(*collectListen)
	default:
		kingpin.FatalUsage("Unrecognized command")
	}
}
