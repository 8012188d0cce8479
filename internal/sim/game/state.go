package game

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"greenvale.gg/internal/protocol"
)

// StateView is the full replicated state: the world plus every player, in
// join order. Guests replace their mirror with it wholesale.
type StateView struct {
	RoomCode string       `json:"room_code"`
	Seed     int64        `json:"seed"`
	World    *WorldState  `json:"world"`
	Players  []*Player    `json:"players"`
	RNGState uint64       `json:"-"`
}

func (g *Game) stateView() StateView {
	players := make([]*Player, 0, len(g.order))
	for _, id := range g.order {
		players = append(players, g.players[id])
	}
	return StateView{
		RoomCode: g.cfg.RoomCode,
		Seed:     g.cfg.Seed,
		World:    g.world,
		Players:  players,
		RNGState: g.rng.State(),
	}
}

// StateJSON serializes the canonical state. Maps marshal with sorted keys,
// so the bytes are stable for a given state.
func (g *Game) StateJSON() ([]byte, error) {
	return json.Marshal(g.stateView())
}

// StateDigest is a sha256 fingerprint of the canonical state plus the
// generator position. Two games with equal digests will evolve identically
// under the same action stream.
func (g *Game) StateDigest() string {
	b, err := g.StateJSON()
	if err != nil {
		return ""
	}
	h := sha256.New()
	h.Write(b)
	var tmp [8]byte
	st := g.rng.State()
	for i := 0; i < 8; i++ {
		tmp[i] = byte(st >> (8 * i))
	}
	h.Write(tmp[:])
	return hex.EncodeToString(h.Sum(nil))
}

// broadcastState sends a STATE message to every connected client and
// returns the digest it carried.
func (g *Game) broadcastState() string {
	stateJSON, err := g.StateJSON()
	if err != nil {
		return ""
	}
	digest := g.StateDigest()
	msg := protocol.StateMsg{
		Type:            protocol.TypeState,
		ProtocolVersion: protocol.Version,
		Week:            g.world.Week,
		Phase:           g.world.Phase,
		Digest:          digest,
		State:           stateJSON,
		Events:          append([]protocol.Event(nil), g.events...),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return digest
	}
	for _, cl := range g.clients {
		sendLatest(cl.Out, b)
	}
	return digest
}

// sendLatest delivers b without ever blocking the loop: when the client's
// buffer is full the oldest message is dropped in favor of the new one.
func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
