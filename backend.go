package main

import (
	"fmt"

	"github.com/callebjorkell/card-monitor/config"
	"github.com/callebjorkell/card-monitor/nfc"
	"github.com/callebjorkell/card-monitor/pcsc"
)

func openBackend(cfg config.Config) (nfc.Backend, error) {
	switch cfg.Backend {
	case config.BackendPCSC:
		return pcsc.New(), nil
	case config.BackendSim:
		var uids []nfc.UID
		for _, s := range cfg.Sim.UIDs {
			uid, err := nfc.ParseUID(s)
			if err != nil {
				return nil, err
			}
			uids = append(uids, uid)
		}
		return nfc.NewSimulator(cfg.Sim.Readers, uids, cfg.Sim.Interval), nil
	case config.BackendRC522:
		return openRC522()
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
