package game

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"greenvale.gg/internal/sim/catalogs"
	"greenvale.gg/internal/sim/tuning"
)

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not find repo root from %s", dir)
		}
		dir = parent
	}
}

func loadTestCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join(findRepoRoot(t), "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	return cats
}

func newTestGame(t *testing.T, seed int64) *Game {
	t.Helper()
	return New(GameConfig{RoomCode: "babab-babab-babab", HostName: "host", Seed: seed}, tuning.Defaults(), loadTestCatalogs(t))
}

// startGame seats the named human players and starts play.
func startGame(t *testing.T, g *Game, names ...string) []*Player {
	t.Helper()
	players := make([]*Player, 0, len(names))
	for _, name := range names {
		resp := g.joinPlayer(name, nil)
		if !resp.OK {
			t.Fatalf("join %s: %s", name, resp.Code)
		}
		players = append(players, g.players[resp.Welcome.PlayerID])
	}
	mustOK(t, g.Apply("", ActNewGame, nil))
	return players
}

func mustOK(t *testing.T, res Result) Result {
	t.Helper()
	if !res.OK {
		t.Fatalf("expected success, got %s: %s", res.Code, res.Message)
	}
	return res
}

func mustFail(t *testing.T, res Result, code string) {
	t.Helper()
	if res.OK {
		t.Fatalf("expected failure %s, got success", code)
	}
	if res.Code != code {
		t.Fatalf("expected code %s, got %s: %s", code, res.Code, res.Message)
	}
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return b
}

func amountJSON(t *testing.T, n float64) json.RawMessage {
	return raw(t, map[string]float64{"amount": n})
}

func idJSON(t *testing.T, id string) json.RawMessage {
	return raw(t, map[string]string{"id": id})
}
