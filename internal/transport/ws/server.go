// Package ws is the host-side websocket transport. It upgrades guest
// connections, performs the HELLO/WELCOME handshake, and forwards validated
// ACT requests into the game loop's inbox. The transport never touches game
// state directly; everything goes through the loop's channels.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"greenvale.gg/internal/protocol"
	"greenvale.gg/internal/sim/game"
)

const ackTimeout = 10 * time.Second

type Server struct {
	game *game.Game
	log  *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(g *game.Game, logger *log.Logger) *Server {
	return &Server{
		game: g,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // LAN play
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		playerID, out := s.handshake(conn)
		if playerID == "" {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop. Malformed or unknown messages are dropped; they are
		// a peer bug, not a reason to kill the connection.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil || base.Type != protocol.TypeAct {
				continue
			}
			var act protocol.ActMsg
			if err := json.Unmarshal(msg, &act); err != nil {
				continue
			}
			if act.ProtocolVersion != protocol.Version {
				continue
			}
			s.forwardAct(playerID, act, out)
		}

		s.game.Leave() <- playerID
	}
}

// forwardAct routes one guest request. Only ALLOWED_GUEST actions reach the
// inbox; everything else is refused at the transport boundary so a modified
// client cannot run host-internal reducers.
func (s *Server) forwardAct(playerID string, act protocol.ActMsg, out chan []byte) {
	ackTo := func(a protocol.AckMsg) {
		a.Type = protocol.TypeAck
		a.ProtocolVersion = protocol.Version
		b, err := json.Marshal(a)
		if err != nil {
			return
		}
		select {
		case out <- b:
		default:
		}
	}

	class, known := game.Classify(act.ActionType)
	if !known {
		ackTo(protocol.AckMsg{RequestID: act.RequestID, Code: protocol.ErrBadRequest, Message: "unknown action type"})
		return
	}
	if class != game.AllowedGuest {
		ackTo(protocol.AckMsg{RequestID: act.RequestID, Code: protocol.ErrNoPermission, Message: "host-only action"})
		return
	}

	respCh := make(chan protocol.AckMsg, 1)
	env := game.ActionEnvelope{PlayerID: playerID, RequestID: act.RequestID, Act: act, Resp: respCh}
	select {
	case s.game.Inbox() <- env:
	default:
		ackTo(protocol.AckMsg{RequestID: act.RequestID, Code: protocol.ErrConflict, Message: "host busy"})
		return
	}

	go func() {
		select {
		case ack := <-respCh:
			ackTo(ack)
		case <-time.After(ackTimeout):
			ackTo(protocol.AckMsg{RequestID: act.RequestID, Code: protocol.ErrTimeout})
		}
	}()
}

func (s *Server) handshake(conn *websocket.Conn) (playerID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closeWith(conn, "expected HELLO")
		return "", nil
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		closeWith(conn, "bad HELLO")
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closeWith(conn, "bad protocol_version")
		return "", nil
	}
	if hello.PlayerName == "" {
		hello.PlayerName = "guest"
	}

	out = make(chan []byte, 16)

	var resp game.JoinResponse
	if token := strings.TrimSpace(hello.ResumeToken); token != "" {
		respCh := make(chan game.JoinResponse, 1)
		s.game.Attach() <- game.AttachRequest{ResumeToken: token, Out: out, Resp: respCh}
		resp = <-respCh
	}
	if !resp.OK {
		respCh := make(chan game.JoinResponse, 1)
		s.game.Join() <- game.JoinRequest{Name: hello.PlayerName, Out: out, Resp: respCh}
		resp = <-respCh
	}
	if !resp.OK {
		closeWith(conn, resp.Code)
		return "", nil
	}

	if err := writeJSON(conn, resp.Welcome); err != nil {
		return "", nil
	}
	return resp.Welcome.PlayerID, out
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}
