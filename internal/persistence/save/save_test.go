package save

import (
	"encoding/json"
	"testing"
)

const v1State = `{
	"week": 9,
	"players": [
		{"id": "P1", "name": "rosa", "gold": 120},
		{"id": "P2", "name": "mel", "gold": 80, "guild_rank": 3}
	]
}`

func decodePlayers(t *testing.T, rec Record) []map[string]any {
	t.Helper()
	var state map[string]any
	if err := json.Unmarshal(rec.GameState, &state); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	players, _ := state["players"].([]any)
	out := make([]map[string]any, 0, len(players))
	for _, raw := range players {
		out = append(out, raw.(map[string]any))
	}
	return out
}

func TestMigrate_V1ToCurrent(t *testing.T) {
	rec := Record{Version: 1, SlotName: "sunday", Week: 9, GameState: json.RawMessage(v1State)}
	got, err := Migrate(rec)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if got.Version != CurrentVersion {
		t.Fatalf("version = %d, want %d", got.Version, CurrentVersion)
	}

	players := decodePlayers(t, got)
	if len(players) != 2 {
		t.Fatalf("players = %d", len(players))
	}
	p1 := players[0]
	for _, key := range []string{"curses", "guild_rank", "guild_pass", "chains", "bounty_id", "bounty_week", "floors_cleared", "perks", "durables"} {
		if _, ok := p1[key]; !ok {
			t.Fatalf("migrated player missing %q", key)
		}
	}
	if p1["guild_rank"] != float64(0) || p1["gold"] != float64(120) {
		t.Fatalf("defaults wrong: %v", p1)
	}
	// Existing values are never overwritten.
	if players[1]["guild_rank"] != float64(3) {
		t.Fatalf("existing guild_rank clobbered: %v", players[1]["guild_rank"])
	}
}

func TestMigrate_PartialChain(t *testing.T) {
	state := `{"players":[{"id":"P1","curses":[],"guild_rank":1,"guild_pass":true,"chains":[],"bounty_id":"","bounty_week":0}]}`
	rec := Record{Version: 3, GameState: json.RawMessage(state)}
	got, err := Migrate(rec)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if got.Version != CurrentVersion {
		t.Fatalf("version = %d", got.Version)
	}
	p := decodePlayers(t, got)[0]
	if _, ok := p["floors_cleared"]; !ok {
		t.Fatal("v4 fields not added")
	}
	if p["guild_pass"] != true {
		t.Fatal("v2-era field disturbed")
	}
}

func TestMigrate_CurrentIsUntouched(t *testing.T) {
	rec := NewRecord("sunday", 3, []string{"rosa"}, []byte(`{"players":[]}`))
	got, err := Migrate(rec)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if string(got.GameState) != `{"players":[]}` {
		t.Fatalf("state rewritten: %s", got.GameState)
	}
}

func TestMigrate_Rejections(t *testing.T) {
	if _, err := Migrate(Record{Version: CurrentVersion + 1, GameState: json.RawMessage(`{}`)}); err == nil {
		t.Fatal("future version accepted")
	}
	if _, err := Migrate(Record{Version: 1, GameState: json.RawMessage(`not json`)}); err == nil {
		t.Fatal("unreadable state accepted")
	}
}
