package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/pairs/apps/go-server/internal/game"
	"github.com/robalobadob/pairs/apps/go-server/internal/store"
)

const (
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

// inboundMessage is a player intent sent over the socket.
//
//	{"type":"reveal","position":3}
//	{"type":"start"}
//	{"type":"new","dimension":4}
type inboundMessage struct {
	Type      string `json:"type"`
	Position  *int   `json:"position,omitempty"`
	Dimension int    `json:"dimension,omitempty"`
}

type outgoingMessage struct {
	Type      string      `json:"type"` // snapshot | error
	Data      interface{} `json:"data,omitempty"`
	Summary   string      `json:"summary,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWS streams every snapshot of a session and accepts player intents.
// Only the newest pending snapshot is kept if the client falls behind; each
// snapshot carries the full state, so skipping intermediate ones is harmless.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	e, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("gameId", e.ID()).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	snaps := make(chan game.Snapshot, 1)
	unsubscribe := e.Session.Subscribe(func(snap game.Snapshot) {
		select {
		case snaps <- snap:
		default:
			select {
			case <-snaps:
			default:
			}
			snaps <- snap
		}
	})
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	errs := make(chan string, 8)
	go s.wsReadLoop(ctx, cancel, conn, e, errs)

	if err := wsWrite(conn, snapshotMessage(e.Session.Snapshot())); err != nil {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		var msg outgoingMessage
		select {
		case <-ctx.Done():
			return
		case snap := <-snaps:
			msg = snapshotMessage(snap)
		case text := <-errs:
			msg = outgoingMessage{Type: "error", Data: map[string]string{"error": text}, Timestamp: time.Now().UnixMilli()}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			continue
		}
		if err := wsWrite(conn, msg); err != nil {
			log.Debug().Err(err).Str("gameId", e.ID()).Msg("websocket write")
			return
		}
	}
}

// wsReadLoop applies inbound intents until the client goes away.
func (s *Server) wsReadLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, e *store.Entry, errs chan<- string) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("gameId", e.ID()).Msg("websocket read")
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

		if text := s.applyIntent(e, msg); text != "" {
			select {
			case errs <- text:
			case <-ctx.Done():
				return
			}
		}
	}
}

// applyIntent runs one inbound message against the session; returns an error text or "".
func (s *Server) applyIntent(e *store.Entry, msg inboundMessage) string {
	switch msg.Type {
	case "reveal":
		if msg.Position == nil {
			return "position is required"
		}
		if _, err := e.Session.RevealCard(*msg.Position); err != nil {
			return err.Error()
		}
	case "start":
		e.Session.ClickStart()
	case "new":
		dim := msg.Dimension
		if dim == 0 {
			dim = e.Session.Snapshot().Dimension
		}
		if err := e.Session.NewGame(dim); err != nil {
			return err.Error()
		}
	default:
		return "unknown message type: " + msg.Type
	}
	return ""
}

func snapshotMessage(snap game.Snapshot) outgoingMessage {
	return outgoingMessage{Type: "snapshot", Data: snap, Summary: snap.Summary(), Timestamp: time.Now().UnixMilli()}
}

func wsWrite(conn *websocket.Conn, msg outgoingMessage) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
