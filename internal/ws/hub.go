package ws

import (
	"encoding/json"
	"errors"
	"net/http"

	"go-aviator/internal/game"
	"go-aviator/internal/ledger"
	"go-aviator/internal/lib/logger/sl"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/exp/slog"
)

// Engine is the slice of the round engine the hub needs: a snapshot for
// newly connected clients and the manual cash-out command.
type Engine interface {
	Snapshot() game.Snapshot
	Cashout(userUUID string, betID uuid.UUID) (game.Resolution, error)
}

type Message struct {
	Event string                 `json:"event"`
	Data  map[string]interface{} `json:"data"`
}

// sendBuffer bounds each client's outbound queue. A client that cannot
// drain it is dropped; the tick cadence never waits for a socket.
const sendBuffer = 64

type client struct {
	conn     *websocket.Conn
	userUUID string
	send     chan []byte
}

type Hub struct {
	log    *slog.Logger
	engine Engine

	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	clients    map[*client]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:        log,
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]struct{}),
	}
}

// SetEngine attaches the round engine. The hub is built first so the engine
// can take it as its broadcaster; call this before RunServer.
func (hub *Hub) SetEngine(engine Engine) {
	hub.engine = engine
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (hub *Hub) run() {
	for {
		select {
		case c := <-hub.register:
			hub.clients[c] = struct{}{}
		case c := <-hub.unregister:
			if _, ok := hub.clients[c]; ok {
				delete(hub.clients, c)
				close(c.send)
			}
		case data := <-hub.broadcast:
			for c := range hub.clients {
				select {
				case c.send <- data:
				default:
					// Slow client: closing the connection makes its read
					// pump fail and unregister it. Only unregister closes
					// the send channel.
					c.conn.Close()
				}
			}
		}
	}
}

func (hub *Hub) RunServer() {
	go hub.run()
}

// Publish implements game.Broadcaster. It never blocks: when the broadcast
// queue is full the event is dropped and logged, and clients resynchronize
// from the next snapshot or tick.
func (hub *Hub) Publish(event string, data map[string]interface{}) {
	msg, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		hub.log.Error("failed to marshal event", sl.Err(err))

		return
	}

	select {
	case hub.broadcast <- msg:
	default:
		hub.log.Warn("broadcast queue full, dropping event", sl.String("event", event))
	}
}

// HandleConnection upgrades the client and replays the current round
// snapshot first, so a client joining mid-flight sees live state instead of
// only future events. The player identity comes from the fronting session
// service.
func (hub *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	userUUID := r.URL.Query().Get("user")
	if userUUID == "" {
		userUUID = r.Header.Get("X-User-UUID")
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Error("failed to upgrade connection", sl.Err(err))

		return
	}

	c := &client{
		conn:     conn,
		userUUID: userUUID,
		send:     make(chan []byte, sendBuffer),
	}

	hub.register <- c

	if err = hub.sendSnapshot(c); err != nil {
		hub.log.Error("failed to send snapshot", sl.Err(err))
	}

	go c.writePump()

	hub.readPump(c)
}

func (hub *Hub) sendSnapshot(c *client) error {
	const op = "ws.hub.sendSnapshot"

	snap := hub.engine.Snapshot()

	data, err := json.Marshal(struct {
		Event    string        `json:"event"`
		Snapshot game.Snapshot `json:"data"`
	}{
		Event:    "snapshot",
		Snapshot: snap,
	})
	if err != nil {
		return err
	}

	select {
	case c.send <- data:
		return nil
	default:
		return errors.New(op + ": client send queue full")
	}
}

type command struct {
	Event string `json:"event"`
	Data  struct {
		BetID string `json:"bet_id"`
	} `json:"data"`
}

// readPump consumes inbound commands until the connection dies. A client
// disconnect only removes its subscription; the round is unaffected.
func (hub *Hub) readPump(c *client) {
	defer func() {
		hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd command

		if err = json.Unmarshal(payload, &cmd); err != nil {
			hub.log.Warn("dropping malformed command", sl.Err(err))

			continue
		}

		if cmd.Event == "cash_out" {
			hub.handleCashout(c, cmd)
		}
	}
}

func (hub *Hub) handleCashout(c *client, cmd command) {
	betID, err := uuid.Parse(cmd.Data.BetID)
	if err != nil {
		hub.reply(c, "cash_out_rejected", map[string]interface{}{"error": "invalid bet id"})

		return
	}

	res, err := hub.engine.Cashout(c.userUUID, betID)
	if err != nil {
		hub.reply(c, "cash_out_rejected", map[string]interface{}{"error": cashoutError(err)})

		return
	}

	hub.reply(c, "cash_out_result", map[string]interface{}{
		"bet_id":     res.BetID.String(),
		"status":     res.StatusName,
		"multiplier": res.Multiplier.StringFixed(2),
		"payout":     res.Payout,
	})
}

func cashoutError(err error) string {
	switch {
	case errors.Is(err, game.ErrBetNotFound):
		return "bet not found"
	case errors.Is(err, game.ErrRoundNotFlying):
		return "round is not flying"
	case errors.Is(err, game.ErrNoActiveRound):
		return "no active round"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "insufficient funds"
	}

	return "cash out failed"
}

func (hub *Hub) reply(c *client, event string, data map[string]interface{}) {
	msg, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		hub.log.Error("failed to marshal reply", sl.Err(err))

		return
	}

	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) writePump() {
	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}

	c.conn.Close()
}
