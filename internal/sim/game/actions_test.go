package game

import (
	"encoding/json"
	"testing"

	"greenvale.gg/internal/protocol"
)

func TestValidateActionSets(t *testing.T) {
	if err := ValidateActionSets(); err != nil {
		t.Fatalf("action sets inconsistent: %v", err)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		verb  string
		class Classification
	}{
		{ActDismissToast, LocalOnly},
		{ActSetPortrait, LocalOnly},
		{ActEndWeek, HostInternal},
		{ActModifyGold, HostInternal},
		{ActNewGame, HostInternal},
		{ActWorkShift, AllowedGuest},
		{ActEnterDungeon, AllowedGuest},
	}
	for _, c := range cases {
		got, ok := Classify(c.verb)
		if !ok {
			t.Fatalf("%s unclassified", c.verb)
		}
		if got != c.class {
			t.Fatalf("%s: got class %d, want %d", c.verb, got, c.class)
		}
	}
	if _, ok := Classify("teleport"); ok {
		t.Fatal("unknown verb should not classify")
	}
}

func TestApply_RejectsUnknownAndLocalOnly(t *testing.T) {
	g := newTestGame(t, 1)
	startGame(t, g, "rosa")

	mustFail(t, g.Apply("P1", "teleport", nil), protocol.ErrBadRequest)
	mustFail(t, g.Apply("P1", ActDismissToast, nil), protocol.ErrBadRequest)
	mustFail(t, g.Apply("P99", ActRest, nil), protocol.ErrInvalidTarget)
}

func TestApply_EliminatedPlayersCannotAct(t *testing.T) {
	g := newTestGame(t, 1)
	ps := startGame(t, g, "rosa")
	ps[0].Eliminated = true

	mustFail(t, g.Apply("P1", ActRest, nil), protocol.ErrEliminated)
	// Host-internal verbs still run against eliminated players.
	mustOK(t, g.Apply("P1", ActModifyGold, raw(t, map[string]int{"delta": 5})))
}

func TestApply_VictoryFreezesGuestActions(t *testing.T) {
	g := newTestGame(t, 1)
	startGame(t, g, "rosa")
	g.world.Phase = PhaseVictory

	mustFail(t, g.Apply("P1", ActRest, nil), protocol.ErrConflict)
}

func TestParseAmount_RejectsHostileNumbers(t *testing.T) {
	cases := []string{
		`{"amount": 0}`,
		`{"amount": -5}`,
		`{"amount": 2.5}`,
		`{"amount": 1e300}`,
		`{"amount": "NaN"}`,
		`not json`,
	}
	for _, c := range cases {
		if _, res := parseAmount(json.RawMessage(c)); res.OK {
			t.Fatalf("payload %q should be rejected", c)
		}
	}
	n, res := parseAmount(json.RawMessage(`{"amount": 40}`))
	if !res.OK || n != 40 {
		t.Fatalf("valid amount rejected: %+v", res)
	}
}
