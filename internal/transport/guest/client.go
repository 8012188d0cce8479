// Package guest is the client side of the replication protocol. A guest
// holds a read-only mirror of the host's state, replaced wholesale on every
// STATE broadcast, and forwards its own actions as ACT requests that resolve
// when the matching ACK arrives.
package guest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"greenvale.gg/internal/protocol"
)

var (
	ErrDisconnected = errors.New("guest: disconnected from host")
	ErrTimeout      = errors.New("guest: request timed out")
)

const requestTimeout = 10 * time.Second

// Ack is the resolution of one forwarded action.
type Ack struct {
	OK      bool
	Code    string
	Message string
	Week    int
}

// Client is a connected guest. Safe for concurrent use.
type Client struct {
	conn *websocket.Conn
	log  *log.Logger

	// writeMu serializes frame writes; the websocket allows one writer at
	// a time.
	writeMu sync.Mutex

	playerID    string
	resumeToken string
	seed        int64
	roomCode    string

	mu        sync.Mutex
	connected bool
	state     json.RawMessage
	week      int
	phase     string
	digest    string
	events    []protocol.Event
	dismissed map[string]struct{}
	pending   map[string]chan protocol.AckMsg

	// OnState, if set, is called after each mirror replacement with the
	// fresh events (dismissed ones already filtered out).
	OnState func(week int, phase string, events []protocol.Event)
}

// DialRoom resolves a room code to its host address and connects.
func DialRoom(code, playerName, resumeToken string, logger *log.Logger) (*Client, error) {
	addr, err := protocol.DecodeRoomCode(code)
	if err != nil {
		return nil, err
	}
	return Dial(fmt.Sprintf("ws://%s/v1/ws", addr), playerName, resumeToken, logger)
}

func Dial(url, playerName, resumeToken string, logger *log.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial host: %w", err)
	}

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      playerName,
		ResumeToken:     resumeToken,
	}
	if err := conn.WriteJSON(hello); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send HELLO: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read WELCOME: %w", err)
	}
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(msg, &welcome); err != nil || welcome.Type != protocol.TypeWelcome {
		conn.Close()
		return nil, errors.New("guest: expected WELCOME")
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &Client{
		conn:        conn,
		log:         logger,
		playerID:    welcome.PlayerID,
		resumeToken: welcome.ResumeToken,
		seed:        welcome.Seed,
		roomCode:    welcome.RoomCode,
		connected:   true,
		dismissed:   make(map[string]struct{}),
		pending:     make(map[string]chan protocol.AckMsg),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) PlayerID() string    { return c.playerID }
func (c *Client) ResumeToken() string { return c.resumeToken }
func (c *Client) Seed() int64         { return c.seed }
func (c *Client) RoomCode() string    { return c.roomCode }

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Mirror returns the current state snapshot. The returned bytes must not be
// mutated.
func (c *Client) Mirror() (week int, phase string, state json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.week, c.phase, c.state
}

func (c *Client) Digest() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.digest
}

// Send forwards one action to the host and blocks for its ACK. On
// disconnect or timeout the action is considered failed; the mirror is
// never updated speculatively.
func (c *Client) Send(actionType string, payload json.RawMessage) (Ack, error) {
	reqID := uuid.NewString()
	respCh := make(chan protocol.AckMsg, 1)

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return Ack{}, ErrDisconnected
	}
	c.pending[reqID] = respCh
	c.mu.Unlock()

	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		RequestID:       reqID,
		ActionType:      actionType,
		Payload:         payload,
		OriginPeerID:    c.playerID,
	}
	c.writeMu.Lock()
	err := c.conn.WriteJSON(act)
	c.writeMu.Unlock()
	if err != nil {
		c.dropPending(reqID)
		return Ack{}, ErrDisconnected
	}

	select {
	case ack := <-respCh:
		return Ack{OK: ack.OK, Code: ack.Code, Message: ack.Message, Week: ack.Week}, nil
	case <-time.After(requestTimeout):
		c.dropPending(reqID)
		return Ack{Code: protocol.ErrTimeout}, ErrTimeout
	}
}

// DismissEvent marks an event toast as seen so later broadcasts carrying the
// same id do not resurface it.
func (c *Client) DismissEvent(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dismissed[id] = struct{}{}
}

func (c *Client) Close() error {
	c.failAllPending()
	return c.conn.Close()
}

func (c *Client) dropPending(reqID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, reqID)
}

// failAllPending resolves every in-flight request as disconnected. After
// this the client degrades to a read-only view of its last mirror.
func (c *Client) failAllPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	for id, ch := range c.pending {
		ch <- protocol.AckMsg{RequestID: id, Code: protocol.ErrTimeout, Message: "disconnected"}
		delete(c.pending, id)
	}
}

func (c *Client) readLoop() {
	defer c.failAllPending()
	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeAck:
			var ack protocol.AckMsg
			if err := json.Unmarshal(msg, &ack); err != nil {
				continue
			}
			c.mu.Lock()
			ch, ok := c.pending[ack.RequestID]
			delete(c.pending, ack.RequestID)
			c.mu.Unlock()
			if ok {
				ch <- ack
			}

		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			c.applyState(st)
		}
	}
}

func (c *Client) applyState(st protocol.StateMsg) {
	c.mu.Lock()
	c.week = st.Week
	c.phase = st.Phase
	c.digest = st.Digest
	c.state = st.State
	fresh := make([]protocol.Event, 0, len(st.Events))
	for _, ev := range st.Events {
		if _, seen := c.dismissed[ev.ID]; seen {
			continue
		}
		fresh = append(fresh, ev)
	}
	c.events = fresh
	cb := c.OnState
	c.mu.Unlock()

	if cb != nil {
		cb(st.Week, st.Phase, fresh)
	}
}

// Events returns the undismissed events from the latest broadcast.
func (c *Client) Events() []protocol.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.Event, len(c.events))
	copy(out, c.events)
	return out
}
