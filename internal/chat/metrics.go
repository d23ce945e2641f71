package chat

// Metrics receives counters from the core. internal/metrics provides the
// Prometheus implementation.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	AuthenticationFailed()
	RoomJoined()
	RoomCreated()
	MessageBroadcast()
	PersistFailed()
	HistoryFailed()
}

// NopMetrics discards every observation.
type NopMetrics struct{}

func (NopMetrics) ConnectionOpened()     {}
func (NopMetrics) ConnectionClosed()     {}
func (NopMetrics) AuthenticationFailed() {}
func (NopMetrics) RoomJoined()           {}
func (NopMetrics) RoomCreated()          {}
func (NopMetrics) MessageBroadcast()     {}
func (NopMetrics) PersistFailed()        {}
func (NopMetrics) HistoryFailed()        {}
