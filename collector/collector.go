// Package collector is a minimal endpoint that accepts card events. It is meant for trying out a monitor without
// the real event service.
package collector

import (
	"net/http"

	"github.com/callebjorkell/card-monitor/event"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

const EventsPath = "/events"

// Sink receives every accepted event.
type Sink func(e event.Event)

// NewRouter wires POST /events and GET /health. sink may be nil.
func NewRouter(logger log.FieldLogger, sink Sink) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST(EventsPath, func(c *gin.Context) {
		var e event.Event
		if err := c.ShouldBindJSON(&e); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}
		if e.UID() == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "data.UID required"})
			return
		}

		logger.WithFields(log.Fields{
			"initiator": e.Initiator,
			"place":     e.Place,
			"dateTime":  e.Timestamp,
			"key":       c.GetHeader("Idempotency-Key"),
		}).Infof("Card %v read", e.UID())

		if sink != nil {
			sink(e)
		}
		c.JSON(http.StatusAccepted, gin.H{"uid": e.UID()})
	})

	return r
}
