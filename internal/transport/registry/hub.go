// Package registry is the lobby side-channel. Hosts announce their rooms to
// a hub; browsing players connect to the same hub and receive the filtered
// listing set whenever it changes. The hub holds no game state, only
// advertisements with a freshness deadline.
package registry

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"greenvale.gg/internal/protocol"
)

// Listings older than the TTL are treated as gone even before the pruner
// removes them, so a crashed host disappears from browsers promptly.
const listingTTL = 5 * time.Minute

type entry struct {
	listing protocol.Listing
	seen    time.Time
}

type Hub struct {
	log *log.Logger

	mu       sync.Mutex
	rooms    map[string]entry
	watchers map[*websocket.Conn]chan []byte

	upgrader websocket.Upgrader
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		log:      logger,
		rooms:    make(map[string]entry),
		watchers: make(map[*websocket.Conn]chan []byte),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Run prunes stale listings until ctx is done. Callers usually run it in
// its own goroutine alongside the HTTP server.
func (h *Hub) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if h.prune() {
				h.broadcast()
			}
		}
	}
}

func (h *Hub) prune() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	changed := false
	cutoff := time.Now().Add(-listingTTL)
	for code, e := range h.rooms {
		if e.seen.Before(cutoff) {
			delete(h.rooms, code)
			changed = true
		}
	}
	return changed
}

// Listings returns the currently fresh advertisements, newest room first.
func (h *Hub) Listings() []protocol.Listing {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.freshLocked()
}

func (h *Hub) freshLocked() []protocol.Listing {
	cutoff := time.Now().Add(-listingTTL)
	out := make([]protocol.Listing, 0, len(h.rooms))
	for _, e := range h.rooms {
		if e.seen.Before(cutoff) {
			continue
		}
		out = append(out, e.listing)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out
}

func (h *Hub) broadcast() {
	h.mu.Lock()
	msg := protocol.ListingsMsg{Type: protocol.TypeListings, Games: h.freshLocked()}
	b, err := json.Marshal(msg)
	if err != nil {
		h.mu.Unlock()
		return
	}
	for _, ch := range h.watchers {
		select {
		case ch <- b:
		default:
		}
	}
	h.mu.Unlock()
}

// Register records or refreshes a room advertisement.
func (h *Hub) Register(l protocol.Listing) {
	if !protocol.ValidRoomCode(l.RoomCode) {
		return
	}
	h.mu.Lock()
	if existing, ok := h.rooms[l.RoomCode]; ok && l.CreatedAt == 0 {
		l.CreatedAt = existing.listing.CreatedAt
	}
	if l.CreatedAt == 0 {
		l.CreatedAt = time.Now().Unix()
	}
	h.rooms[l.RoomCode] = entry{listing: l, seen: time.Now()}
	h.mu.Unlock()
	h.broadcast()
}

func (h *Hub) Unregister(roomCode string) {
	h.mu.Lock()
	_, ok := h.rooms[roomCode]
	delete(h.rooms, roomCode)
	h.mu.Unlock()
	if ok {
		h.broadcast()
	}
}

// Update bumps the player count and refreshes the TTL.
func (h *Hub) Update(roomCode string, playerCount int) {
	h.mu.Lock()
	e, ok := h.rooms[roomCode]
	if ok {
		e.listing.PlayerCount = playerCount
		e.seen = time.Now()
		h.rooms[roomCode] = e
	}
	h.mu.Unlock()
	if ok {
		h.broadcast()
	}
}

// Handler serves both hosts and browsers on one endpoint. Hosts send
// REGISTER/UPDATE/UNREGISTER; every connection receives LISTINGS pushes.
func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		out := make(chan []byte, 8)
		h.mu.Lock()
		h.watchers[conn] = out
		h.mu.Unlock()
		// Unregister before closing so broadcast never sends on a closed
		// channel.
		defer func() {
			h.mu.Lock()
			delete(h.watchers, conn)
			h.mu.Unlock()
			close(out)
		}()

		go func() {
			for b := range out {
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					return
				}
			}
		}()

		// Initial listing push.
		if b, err := json.Marshal(protocol.ListingsMsg{Type: protocol.TypeListings, Games: h.Listings()}); err == nil {
			out <- b
		}

		ownedRooms := make(map[string]struct{})
		defer func() {
			for code := range ownedRooms {
				h.Unregister(code)
			}
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				continue
			}
			switch base.Type {
			case protocol.TypeRegister:
				var reg protocol.RegisterMsg
				if err := json.Unmarshal(msg, &reg); err != nil {
					continue
				}
				ownedRooms[reg.Listing.RoomCode] = struct{}{}
				h.Register(reg.Listing)
			case protocol.TypeUpdate:
				var upd protocol.UpdateMsg
				if err := json.Unmarshal(msg, &upd); err != nil {
					continue
				}
				h.Update(upd.RoomCode, upd.PlayerCount)
			case protocol.TypeUnregister:
				var unr protocol.UnregisterMsg
				if err := json.Unmarshal(msg, &unr); err != nil {
					continue
				}
				delete(ownedRooms, unr.RoomCode)
				h.Unregister(unr.RoomCode)
			}
		}
	}
}
