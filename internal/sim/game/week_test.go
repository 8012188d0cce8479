package game

import (
	"testing"

	"greenvale.gg/internal/protocol"
)

func TestEndWeek_RequiresActiveGame(t *testing.T) {
	g := newTestGame(t, 11)
	mustFail(t, g.applyEndWeek(nil, nil), protocol.ErrConflict)
}

func TestEndWeek_TwinGamesStayInLockstep(t *testing.T) {
	a := newTestGame(t, 11)
	b := newTestGame(t, 11)
	startGame(t, a, "rosa", "mel")
	startGame(t, b, "rosa", "mel")

	for w := 0; w < 24; w++ {
		mustOK(t, a.applyEndWeek(nil, nil))
		mustOK(t, b.applyEndWeek(nil, nil))
		da, db := a.StateDigest(), b.StateDigest()
		if da != db {
			t.Fatalf("week %d: digests diverged\n%s\n%s", w+1, da, db)
		}
	}
	if a.world.Week != 25 {
		t.Fatalf("week = %d", a.world.Week)
	}
}

func TestEndWeek_ResetsTurns(t *testing.T) {
	g := newTestGame(t, 11)
	ps := startGame(t, g, "rosa", "mel")
	for _, p := range ps {
		p.TimeLeft = 3
		p.TurnEnded = true
	}
	mustOK(t, g.applyEndWeek(nil, nil))
	for _, p := range ps {
		if p.TurnEnded || p.TimeLeft != g.tune.Turn.TimePerTurn {
			t.Fatalf("%s: ended=%v time=%d", p.ID, p.TurnEnded, p.TimeLeft)
		}
	}
}

func TestEndWeek_FoodDecayAndStarvation(t *testing.T) {
	g := newTestGame(t, 11)
	ps := startGame(t, g, "rosa")
	p := ps[0]

	p.FoodLevel = g.tune.Life.FoodDecayPerWeek + 5
	g.weekUpkeep()
	if p.FoodLevel != 5 {
		t.Fatalf("food = %d", p.FoodLevel)
	}

	p.Health = 50
	g.weekUpkeep()
	if p.FoodLevel != 0 {
		t.Fatalf("food = %d", p.FoodLevel)
	}
	if p.Health != 50-g.tune.Life.StarveDamage {
		t.Fatalf("health = %d, starvation not applied", p.Health)
	}
}

func TestEndWeek_BirthdaysAndBonuses(t *testing.T) {
	g := newTestGame(t, 11)
	ps := startGame(t, g, "rosa")
	p := ps[0]
	age := p.Age

	g.world.Week = 0
	for i := 0; i < g.tune.Week.WeeksPerYear-1; i++ {
		g.world.Week++
		g.weekAging(g.world.Week)
	}
	if p.Age != age {
		t.Fatalf("aged mid-year: %d", p.Age)
	}
	g.world.Week++
	g.weekAging(g.world.Week)
	if p.Age != age+1 {
		t.Fatalf("no birthday at week %d: age %d", g.world.Week, p.Age)
	}

	p.Age = 20
	p.Happiness = 50
	maxBefore := p.MaxHealth
	g.world.Week = g.tune.Week.WeeksPerYear * 2
	g.weekAging(g.world.Week)
	if p.Age != 21 || p.MaxHealth != maxBefore+5 || p.Happiness != 55 {
		t.Fatalf("age-21 bonus missing: age=%d max=%d happy=%d", p.Age, p.MaxHealth, p.Happiness)
	}
}

func TestEndWeek_ElderDecay(t *testing.T) {
	g := newTestGame(t, 11)
	ps := startGame(t, g, "rosa")
	p := ps[0]
	p.Age = g.tune.Week.ElderDecayAge
	p.Health = 50

	g.weekAging(1) // not a birthday week
	if p.Health > 50-g.tune.Week.ElderDecayHealth {
		t.Fatalf("elder decay not applied: health=%d", p.Health)
	}
}

func TestEndWeek_FestivalCycle(t *testing.T) {
	g := newTestGame(t, 11)
	ps := startGame(t, g, "rosa")
	p := ps[0]

	every := g.tune.Week.FestivalEveryWeeks
	g.weekFestival(every - 1)
	if g.world.Festival != nil {
		t.Fatal("festival on an off-week")
	}

	p.Happiness = 50
	g.weekFestival(every)
	f := g.world.Festival
	if f == nil || f.ID != g.cats.Festivals.Cycle[0].ID {
		t.Fatalf("festival = %+v", f)
	}
	if p.Happiness != 50+f.HappinessBonus {
		t.Fatalf("happiness = %d", p.Happiness)
	}

	// The cycle wraps around the catalog.
	n := len(g.cats.Festivals.Cycle)
	g.weekFestival(every * (n + 1))
	if got := g.world.Festival.ID; got != g.cats.Festivals.Cycle[0].ID {
		t.Fatalf("cycle did not wrap: %s", got)
	}
}

func TestEndWeek_DeadPlayersAreResolved(t *testing.T) {
	g := newTestGame(t, 11)
	ps := startGame(t, g, "rosa", "mel")
	broke, funded := ps[0], ps[1]

	broke.Health = 1
	broke.FoodLevel = 0
	broke.Savings = 0
	funded.Health = 1
	funded.FoodLevel = 0
	funded.Savings = g.tune.Life.ResurrectionCost

	mustOK(t, g.applyEndWeek(nil, nil))
	if !broke.Eliminated {
		t.Fatal("starved player not eliminated")
	}
	if funded.Eliminated || funded.Health == 0 {
		t.Fatalf("funded player not revived: health=%d", funded.Health)
	}
}

func TestEndWeek_VictoryDeclaredInJoinOrder(t *testing.T) {
	g := newTestGame(t, 11)
	ps := startGame(t, g, "rosa", "mel")
	for _, p := range ps {
		p.Gold = 1_000_000
		p.Happiness = 100
		p.Dependability = 100
		for _, id := range g.cats.Degrees.Order {
			p.Degrees = append(p.Degrees, id)
		}
	}
	mustOK(t, g.applyEndWeek(nil, nil))
	if g.world.Phase != PhaseVictory {
		t.Fatalf("phase = %s", g.world.Phase)
	}
	if g.world.WinnerID != ps[0].ID {
		t.Fatalf("winner = %s, want first seat %s", g.world.WinnerID, ps[0].ID)
	}
}
