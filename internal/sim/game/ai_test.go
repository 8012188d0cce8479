package game

import (
	"testing"
)

// newGameWithAI seats one human and one computer player.
func newGameWithAI(t *testing.T, seed int64) (*Game, *Player, *Player) {
	t.Helper()
	g := newTestGame(t, seed)
	mustOK(t, g.Apply("", ActNewGame, raw(t, map[string]any{
		"players": []map[string]any{{"name": "rosa"}},
		"ai":      []map[string]any{{"name": "jasper", "difficulty": 1}},
	})))
	return g, g.players[g.order[0]], g.players[g.order[1]]
}

func TestAIStep_EatsWhenHungry(t *testing.T) {
	g, _, ai := newGameWithAI(t, 9)
	ai.FoodLevel = 0
	ai.Gold = 200
	ai.LocationID = "market"

	mustOK(t, g.applyAIStep(ai, nil))
	if ai.FoodLevel != g.tune.Life.MealFood {
		t.Fatalf("food = %d, ai did not eat", ai.FoodLevel)
	}
}

func TestAIStep_MovesTowardNeed(t *testing.T) {
	g, _, ai := newGameWithAI(t, 9)
	ai.FoodLevel = 0
	ai.Gold = 200
	ai.LocationID = "tenement"

	mustOK(t, g.applyAIStep(ai, nil))
	if ai.LocationID != "market" {
		t.Fatalf("ai at %s, want market", ai.LocationID)
	}
	if ai.FoodLevel != 0 {
		t.Fatal("move and act in one step")
	}
}

func TestAIStep_PaysRentBeforeComfort(t *testing.T) {
	g, _, ai := newGameWithAI(t, 9)
	ai.RentArrears = 2
	ai.Gold = 1000
	ai.FoodLevel = 100

	mustOK(t, g.applyAIStep(ai, nil))
	if ai.RentArrears != 0 {
		t.Fatalf("arrears = %d after step", ai.RentArrears)
	}
}

func TestAIStep_TakesJobWhenBroke(t *testing.T) {
	g, _, ai := newGameWithAI(t, 9)
	ai.Gold = 0
	ai.FoodLevel = 100
	ai.LocationID = "tenement"

	// Worst case one move per step across the map plus the hire itself.
	for i := 0; i < 4 && ai.JobID == ""; i++ {
		ai.aiSteps = 0
		mustOK(t, g.applyAIStep(ai, nil))
	}
	if ai.JobID == "" {
		t.Fatal("ai never took a job")
	}
	if ai.Wage == 0 {
		t.Fatal("hired without a wage")
	}
}

func TestAIStep_TurnEndsWithinBudget(t *testing.T) {
	g, _, ai := newGameWithAI(t, 9)

	for i := 0; i < g.tune.AI.MaxStepsPerTurn+2; i++ {
		mustOK(t, g.applyAIStep(ai, nil))
		if ai.TurnEnded {
			break
		}
	}
	if !ai.TurnEnded {
		t.Fatalf("turn still open after %d steps", g.tune.AI.MaxStepsPerTurn+2)
	}
	// Further steps are no-ops.
	before := ai.TimeLeft
	mustOK(t, g.applyAIStep(ai, nil))
	if ai.TimeLeft != before {
		t.Fatal("ended turn still spending time")
	}
}

func TestAdvanceTurns_WaitsForHumans(t *testing.T) {
	g, human, ai := newGameWithAI(t, 9)

	g.advanceTurns()
	if ai.aiSteps != 0 {
		t.Fatal("ai acted before the human finished")
	}

	mustOK(t, g.applyEndTurn(human, nil))
	g.advanceTurns()
	if ai.aiSteps == 0 && !ai.TurnEnded {
		t.Fatal("ai idle after humans finished")
	}
}

func TestAdvanceTurns_RollsWeekWhenAllDone(t *testing.T) {
	g, human, _ := newGameWithAI(t, 9)

	startWeek := g.world.Week
	mustOK(t, g.applyEndTurn(human, nil))
	for i := 0; i < g.tune.AI.MaxStepsPerTurn+4 && g.world.Week == startWeek; i++ {
		g.advanceTurns()
	}
	if g.world.Week != startWeek+1 {
		t.Fatalf("week = %d, want rollover", g.world.Week)
	}
	if human.TurnEnded {
		t.Fatal("new week did not reset the human turn")
	}
}
