// Package event builds the record of a card read and delivers it to the configured endpoint.
package event

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	DefaultPlace = "Zelenograd"
	Description  = "Read smart card."

	UIDKey   = "UID"
	LabelKey = "label"
)

// Event is the record posted to the endpoint for every card that was read.
type Event struct {
	Description string            `json:"description"`
	Place       string            `json:"place"`
	Initiator   string            `json:"initiator"`
	Timestamp   time.Time         `json:"dateTime"`
	Data        map[string]string `json:"data"`
}

func (e Event) UID() string {
	return e.Data[UIDKey]
}

func (e Event) String() string {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("UID: %v, initiator: %v", e.UID(), e.Initiator)
	}
	return string(b)
}

// Build creates the event for a card with the given UID being read by the named monitor.
func Build(uid, monitorName, place string, now time.Time) Event {
	return Event{
		Description: Description,
		Place:       place,
		Initiator:   monitorName,
		Timestamp:   now,
		Data: map[string]string{
			UIDKey: uid,
		},
	}
}
