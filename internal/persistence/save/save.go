// Package save stores named save slots in a local SQLite database. Records
// are versioned JSON; older versions are brought forward by an ordered chain
// of additive migrations, so a save written by any past build still loads.
package save

import (
	"encoding/json"
	"fmt"
	"time"
)

// CurrentVersion is the record version this build writes.
const CurrentVersion = 4

// Record is one save slot's contents.
type Record struct {
	Version     int             `json:"version"`
	Timestamp   int64           `json:"timestamp"`
	SlotName    string          `json:"slot_name"`
	Week        int             `json:"week"`
	PlayerNames []string        `json:"player_names"`
	GameState   json.RawMessage `json:"game_state"`
}

func NewRecord(slot string, week int, playerNames []string, gameState []byte) Record {
	return Record{
		Version:     CurrentVersion,
		Timestamp:   time.Now().Unix(),
		SlotName:    slot,
		Week:        week,
		PlayerNames: playerNames,
		GameState:   gameState,
	}
}

// A migration patches a decoded game state from one version to the next.
// Migrations only ever add missing fields with safe defaults; they never
// delete or rename, so skipping data loss is structurally impossible.
type migration struct {
	to    int
	apply func(state map[string]any)
}

var migrations = []migration{
	{to: 2, apply: migrateV2},
	{to: 3, apply: migrateV3},
	{to: 4, apply: migrateV4},
}

// Migrate brings a record forward to CurrentVersion, strictly in version
// order. Records from the future (or unreadable state) fail without side
// effects.
func Migrate(rec Record) (Record, error) {
	if rec.Version > CurrentVersion {
		return rec, fmt.Errorf("save version %d is newer than this build (%d)", rec.Version, CurrentVersion)
	}
	if rec.Version == CurrentVersion {
		return rec, nil
	}
	var state map[string]any
	if err := json.Unmarshal(rec.GameState, &state); err != nil {
		return rec, fmt.Errorf("unreadable save state: %w", err)
	}
	for _, m := range migrations {
		if rec.Version >= m.to {
			continue
		}
		m.apply(state)
		rec.Version = m.to
	}
	b, err := json.Marshal(state)
	if err != nil {
		return rec, err
	}
	rec.GameState = b
	return rec, nil
}

func eachPlayer(state map[string]any, f func(p map[string]any)) {
	players, _ := state["players"].([]any)
	for _, raw := range players {
		if p, ok := raw.(map[string]any); ok {
			f(p)
		}
	}
}

// v2 added hexes and the guild ladder.
func migrateV2(state map[string]any) {
	eachPlayer(state, func(p map[string]any) {
		if _, ok := p["curses"]; !ok {
			p["curses"] = []any{}
		}
		if _, ok := p["guild_rank"]; !ok {
			p["guild_rank"] = float64(0)
		}
		if _, ok := p["guild_pass"]; !ok {
			p["guild_pass"] = false
		}
	})
}

// v3 added quest chains and weekly bounties.
func migrateV3(state map[string]any) {
	eachPlayer(state, func(p map[string]any) {
		if _, ok := p["chains"]; !ok {
			p["chains"] = []any{}
		}
		if _, ok := p["bounty_id"]; !ok {
			p["bounty_id"] = ""
		}
		if _, ok := p["bounty_week"]; !ok {
			p["bounty_week"] = float64(0)
		}
	})
}

// v4 added the dungeon and permanent perks.
func migrateV4(state map[string]any) {
	eachPlayer(state, func(p map[string]any) {
		if _, ok := p["floors_cleared"]; !ok {
			p["floors_cleared"] = float64(0)
		}
		if _, ok := p["perks"]; !ok {
			p["perks"] = map[string]any{}
		}
		if _, ok := p["durables"]; !ok {
			p["durables"] = []any{}
		}
	})
}
