package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-aviator/internal/game"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

type stubEngine struct {
	cashoutErr error
	resolution game.Resolution
}

func (s *stubEngine) Snapshot() game.Snapshot {
	return game.Snapshot{RoundID: 7, Phase: game.PhaseBetting}
}

func (s *stubEngine) Cashout(string, uuid.UUID) (game.Resolution, error) {
	if s.cashoutErr != nil {
		return game.Resolution{}, s.cashoutErr
	}

	return s.resolution, nil
}

func newTestHub(t *testing.T, engine Engine) (*Hub, *websocket.Conn) {
	t.Helper()

	log := slog.New(slog.NewTextHandler(testWriter{t}, nil))

	hub := NewHub(log)
	hub.SetEngine(engine)
	hub.RunServer()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleConnection))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=" + uuid.NewString()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return hub, conn
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))

	return len(p), nil
}

func readEvent(t *testing.T, conn *websocket.Conn) (string, map[string]interface{}) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))

	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Event string                 `json:"event"`
		Data  map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(payload, &msg))

	return msg.Event, msg.Data
}

func TestConnectReceivesSnapshotFirst(t *testing.T) {
	_, conn := newTestHub(t, &stubEngine{})

	event, data := readEvent(t, conn)

	assert.Equal(t, "snapshot", event)
	assert.EqualValues(t, 7, data["round_id"])
}

func TestPublishReachesConnectedClient(t *testing.T) {
	hub, conn := newTestHub(t, &stubEngine{})

	event, _ := readEvent(t, conn)
	require.Equal(t, "snapshot", event)

	hub.Publish("multiplier_tick", map[string]interface{}{"multiplier": "1.25"})

	event, data := readEvent(t, conn)

	assert.Equal(t, "multiplier_tick", event)
	assert.Equal(t, "1.25", data["multiplier"])
}

func TestCashoutCommandRoundTrip(t *testing.T) {
	betID := uuid.New()
	engine := &stubEngine{
		resolution: game.Resolution{
			BetID:      betID,
			StatusName: "cashed_out",
			Payout:     2500,
		},
	}

	_, conn := newTestHub(t, engine)

	event, _ := readEvent(t, conn)
	require.Equal(t, "snapshot", event)

	cmd := map[string]interface{}{
		"event": "cash_out",
		"data":  map[string]interface{}{"bet_id": betID.String()},
	}
	require.NoError(t, conn.WriteJSON(cmd))

	event, data := readEvent(t, conn)

	assert.Equal(t, "cash_out_result", event)
	assert.Equal(t, betID.String(), data["bet_id"])
	assert.Equal(t, "cashed_out", data["status"])
	assert.EqualValues(t, 2500, data["payout"])
}

func TestMalformedBetIDRejected(t *testing.T) {
	_, conn := newTestHub(t, &stubEngine{cashoutErr: game.ErrBetNotFound})

	event, _ := readEvent(t, conn)
	require.Equal(t, "snapshot", event)

	cmd := map[string]interface{}{
		"event": "cash_out",
		"data":  map[string]interface{}{"bet_id": "not-a-uuid"},
	}
	require.NoError(t, conn.WriteJSON(cmd))

	event, data := readEvent(t, conn)

	assert.Equal(t, "cash_out_rejected", event)
	assert.Equal(t, "invalid bet id", data["error"])
}
