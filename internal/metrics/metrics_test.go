package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	req := require.New(t)
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.AuthenticationFailed()
	c.RoomJoined()
	c.RoomCreated()
	c.MessageBroadcast()
	c.MessageBroadcast()
	c.PersistFailed()
	c.HistoryFailed()

	req.Equal(1.0, testutil.ToFloat64(c.connections))
	req.Equal(1.0, testutil.ToFloat64(c.authFailures))
	req.Equal(2.0, testutil.ToFloat64(c.messages))
	req.Equal(1.0, testutil.ToFloat64(c.persistFailures))

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	req.Equal(http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	req.NoError(err)
	req.Contains(string(body), "roomchat_messages_total 2")
	req.Contains(string(body), "roomchat_connections 1")
}
