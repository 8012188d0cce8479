package registry

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"greenvale.gg/internal/protocol"
)

// Client keeps one room advertised on a hub. It refreshes the listing well
// inside the hub's TTL and re-dials after connection loss; registry outages
// never affect a running game.
type Client struct {
	url string
	log *log.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	listing protocol.Listing

	// writeMu serializes frame writes; Run and SetPlayerCount run on
	// different goroutines and the websocket allows one writer at a time.
	writeMu sync.Mutex

	stop chan struct{}
	once sync.Once
}

func NewClient(url string, listing protocol.Listing, logger *log.Logger) *Client {
	return &Client{
		url:     url,
		log:     logger,
		listing: listing,
		stop:    make(chan struct{}),
	}
}

// Run announces the room and keeps it fresh until Close. Intended to run in
// its own goroutine.
func (c *Client) Run() {
	ticker := time.NewTicker(listingTTL / 4)
	defer ticker.Stop()
	for {
		if err := c.announce(); err != nil {
			c.log.Printf("registry: %v", err)
		}
		select {
		case <-c.stop:
			c.unregister()
			return
		case <-ticker.C:
		}
	}
}

// SetPlayerCount updates the advertised occupancy on the next refresh and
// pushes it immediately when connected.
func (c *Client) SetPlayerCount(n int) {
	c.mu.Lock()
	c.listing.PlayerCount = n
	conn := c.conn
	code := c.listing.RoomCode
	c.mu.Unlock()
	if conn == nil {
		return
	}
	upd := protocol.UpdateMsg{Type: protocol.TypeUpdate, RoomCode: code, PlayerCount: n}
	if err := c.writeJSON(conn, upd); err != nil {
		c.dropConn(conn)
	}
}

func (c *Client) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Client) announce() error {
	c.mu.Lock()
	conn := c.conn
	listing := c.listing
	c.mu.Unlock()

	if conn == nil {
		var err error
		conn, _, err = websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			return fmt.Errorf("dial hub: %w", err)
		}
		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
	}

	reg := protocol.RegisterMsg{Type: protocol.TypeRegister, Listing: listing}
	if err := c.writeJSON(conn, reg); err != nil {
		c.dropConn(conn)
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

func (c *Client) unregister() {
	c.mu.Lock()
	conn := c.conn
	code := c.listing.RoomCode
	c.mu.Unlock()
	if conn == nil {
		return
	}
	unr := protocol.UnregisterMsg{Type: protocol.TypeUnregister, RoomCode: code}
	_ = c.writeJSON(conn, unr)
	conn.Close()
}

func (c *Client) dropConn(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *Client) writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

// Browse connects once, waits for the first LISTINGS push, and returns it.
// Used by the lobby screen and the registry CLI.
func Browse(url string, timeout time.Duration) ([]protocol.Listing, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial hub: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read listings: %w", err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil || base.Type != protocol.TypeListings {
			continue
		}
		var lst protocol.ListingsMsg
		if err := json.Unmarshal(msg, &lst); err != nil {
			continue
		}
		return lst.Games, nil
	}
	return nil, fmt.Errorf("no listings within %s", timeout)
}
