// Package metrics exposes the chat core's counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Collector implements chat.Metrics on Prometheus collectors.
type Collector struct {
	connections     prometheus.Gauge
	authFailures    prometheus.Counter
	roomJoins       prometheus.Counter
	roomsCreated    prometheus.Counter
	messages        prometheus.Counter
	persistFailures prometheus.Counter
	historyFailures prometheus.Counter
}

var _ chat.Metrics = (*Collector)(nil)

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "roomchat_connections",
			Help: "Live authenticated connections.",
		}),
		authFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomchat_auth_failures_total",
			Help: "Rejected connection attempts.",
		}),
		roomJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomchat_room_joins_total",
			Help: "Successful room joins.",
		}),
		roomsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomchat_rooms_created_total",
			Help: "Rooms created.",
		}),
		messages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomchat_messages_total",
			Help: "Chat messages broadcast.",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomchat_persist_failures_total",
			Help: "Store writes that failed or were dropped.",
		}),
		historyFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomchat_history_failures_total",
			Help: "Joins served with empty history because the store was unavailable.",
		}),
	}

	reg.MustRegister(
		c.connections,
		c.authFailures,
		c.roomJoins,
		c.roomsCreated,
		c.messages,
		c.persistFailures,
		c.historyFailures,
	)
	return c
}

func (c *Collector) ConnectionOpened()     { c.connections.Inc() }
func (c *Collector) ConnectionClosed()     { c.connections.Dec() }
func (c *Collector) AuthenticationFailed() { c.authFailures.Inc() }
func (c *Collector) RoomJoined()           { c.roomJoins.Inc() }
func (c *Collector) RoomCreated()          { c.roomsCreated.Inc() }
func (c *Collector) MessageBroadcast()     { c.messages.Inc() }
func (c *Collector) PersistFailed()        { c.persistFailures.Inc() }
func (c *Collector) HistoryFailed()        { c.historyFailures.Inc() }

// Handler serves the metrics gathered by gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
