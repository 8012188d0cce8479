package game

import (
	"encoding/json"
	"fmt"

	"greenvale.gg/internal/protocol"
)

// priceMult is the combined weather and festival price multiplier in
// permille. Applied to consumer purchases, never to wages or stocks.
func (g *Game) priceMult() int {
	m := g.world.Weather.PriceMultPermille
	if m <= 0 {
		m = 1000
	}
	if f := g.world.Festival; f != nil && f.PriceMultPermille > 0 {
		m = m * f.PriceMultPermille / 1000
	}
	return m
}

func (g *Game) applyEatMeal(p *Player, payload json.RawMessage) Result {
	if p.LocationID != g.locationOfKind("market") {
		return fail(protocol.ErrWrongLocation, "no food for sale here")
	}
	cost := g.tune.Life.MealCost * g.priceMult() / 1000
	if p.Gold < cost {
		return fail(protocol.ErrNoFunds, "cannot afford a meal")
	}
	p.Gold -= cost
	p.FoodLevel += g.tune.Life.MealFood
	p.clampVitals()
	return resOK()
}

func (g *Game) applyBuyClothing(p *Player, payload json.RawMessage) Result {
	if p.LocationID != g.locationOfKind("market") {
		return fail(protocol.ErrWrongLocation, "no clothier here")
	}
	cost := g.tune.Life.ClothingCost * g.priceMult() / 1000
	if p.Gold < cost {
		return fail(protocol.ErrNoFunds, "cannot afford new clothes")
	}
	p.Gold -= cost
	p.Clothing = 100
	return resOK()
}

func (g *Game) applyRest(p *Player, payload json.RawMessage) Result {
	if p.TimeLeft < g.tune.Life.RestTimeCost {
		return fail(protocol.ErrNoTime, "not enough time left this turn")
	}
	p.TimeLeft -= g.tune.Life.RestTimeCost
	p.Happiness += g.tune.Life.RestHappiness
	p.clampVitals()
	return resOK()
}

func (g *Game) applyMovePlayer(p *Player, payload json.RawMessage) Result {
	locID, res := parseTarget(payload)
	if !res.OK {
		return res
	}
	if _, ok := g.cats.Locations.ByID[locID]; !ok {
		return fail(protocol.ErrInvalidTarget, "unknown location: "+locID)
	}
	if locID == p.LocationID {
		return fail(protocol.ErrConflict, "already there")
	}
	cost := g.tune.Turn.MoveTimeCost
	if p.TimeLeft < cost {
		return fail(protocol.ErrNoTime, "not enough time left this turn")
	}
	p.TimeLeft -= cost
	p.LocationID = locID
	return resOK()
}

// rentDue is the weekly rent for the player's housing tier.
func (g *Game) rentDue(p *Player) int {
	return g.tune.Life.RentByHousing[p.Housing]
}

func (g *Game) applyPayRent(p *Player, payload json.RawMessage) Result {
	if p.RentArrears == 0 {
		return fail(protocol.ErrConflict, "rent is current")
	}
	owed := g.rentDue(p) * p.RentArrears
	if p.Gold < owed {
		return fail(protocol.ErrNoFunds, fmt.Sprintf("need %d gold to clear arrears", owed))
	}
	p.Gold -= owed
	p.RentArrears = 0
	return resOK()
}

func (g *Game) applyEndTurn(p *Player, payload json.RawMessage) Result {
	if p.TurnEnded {
		return fail(protocol.ErrConflict, "turn already ended")
	}
	p.TurnEnded = true
	return resOK()
}

type hexPayload struct {
	HexID    string `json:"hex_id"`
	TargetID string `json:"target_id"`
}

func (g *Game) applyCastHex(p *Player, payload json.RawMessage) Result {
	var hp hexPayload
	if err := json.Unmarshal(payload, &hp); err != nil || hp.HexID == "" || hp.TargetID == "" {
		return fail(protocol.ErrBadRequest, "bad hex payload")
	}
	if !p.GuildPass {
		return fail(protocol.ErrRequirements, "a guild pass is required to cast hexes")
	}
	hi := -1
	for i := range g.tune.Hexes {
		if g.tune.Hexes[i].ID == hp.HexID {
			hi = i
			break
		}
	}
	if hi < 0 {
		return fail(protocol.ErrInvalidTarget, "unknown hex: "+hp.HexID)
	}
	h := g.tune.Hexes[hi]
	target := g.players[hp.TargetID]
	if target == nil || target.ID == p.ID || target.Eliminated {
		return fail(protocol.ErrInvalidTarget, "no such target")
	}
	if p.Gold < h.Cost {
		return fail(protocol.ErrNoFunds, "cannot afford that hex")
	}
	p.Gold -= h.Cost
	target.Curses = append(target.Curses, ActiveCurse{
		HexID:      h.ID,
		CasterID:   p.ID,
		CasterName: p.Name,
		Effect:     h.Effect,
		Magnitude:  h.Magnitude,
		WeeksLeft:  h.Weeks,
	})
	g.pushEvent("hex", target.ID, p.Name+" cast "+h.Name+" on "+target.Name)
	return resOK()
}

func (g *Game) applyEvictPlayer(p *Player, payload json.RawMessage) Result {
	id, res := parseTarget(payload)
	if !res.OK {
		return res
	}
	target := g.players[id]
	if target == nil {
		return fail(protocol.ErrInvalidTarget, "unknown player: "+id)
	}
	if target.Housing == "homeless" {
		return fail(protocol.ErrConflict, "already homeless")
	}
	target.Housing = "homeless"
	target.RentArrears = 0
	g.pushEvent("evicted", target.ID, target.Name+" was evicted")
	return resOK()
}

// applyCheckDeath resolves a health-zero check for the target (default: the
// actor). Savings above the resurrection cost buy a revival at half max
// health at the healer; otherwise the player is out of the game.
func (g *Game) applyCheckDeath(p *Player, payload json.RawMessage) Result {
	target := p
	if id, res := parseTarget(payload); res.OK {
		if t := g.players[id]; t != nil {
			target = t
		}
	}
	if target == nil {
		return fail(protocol.ErrInvalidTarget, "no player to check")
	}
	if target.Eliminated || target.Health > 0 {
		return resOK()
	}
	cost := g.tune.Life.ResurrectionCost
	if target.Savings >= cost {
		target.Savings -= cost
		target.Health = target.MaxHealth / 2
		target.LocationID = g.tune.Life.HealerLocationID
		g.pushEvent("resurrected", target.ID, target.Name+" was carried to the temple and revived")
		return Result{OK: true, Message: "resurrected"}
	}
	target.Eliminated = true
	target.TurnEnded = true
	g.pushEvent("eliminated", target.ID, target.Name+" has fallen")
	return Result{OK: true, Message: "eliminated"}
}

// VictoryMet reports whether a player satisfies every configured goal
// simultaneously. Unknown ids are never victorious.
func (g *Game) VictoryMet(playerID string) bool {
	p := g.players[playerID]
	if p == nil || p.Eliminated {
		return false
	}
	goals := g.tune.Goals
	wealth := p.Gold + p.Savings + p.Investments + g.world.stockValue(p.Shares) - p.LoanAmount
	if wealth < goals.Wealth {
		return false
	}
	if p.Happiness < goals.Happiness {
		return false
	}
	education := 0
	for _, d := range p.Degrees {
		education += g.cats.Degrees.ByID[d].Points
	}
	if education < goals.Education {
		return false
	}
	if p.Dependability < goals.Career {
		return false
	}
	if goals.AdventureOn && p.FloorsCleared < goals.Adventure {
		return false
	}
	return true
}

func (g *Game) applyCheckVictory(p *Player, payload json.RawMessage) Result {
	target := p
	if id, res := parseTarget(payload); res.OK {
		if t := g.players[id]; t != nil {
			target = t
		}
	}
	if target == nil {
		return fail(protocol.ErrInvalidTarget, "no player to check")
	}
	if g.world.Phase == PhaseVictory {
		return resOK()
	}
	if !g.VictoryMet(target.ID) {
		return resOK()
	}
	g.world.WinnerID = target.ID
	g.world.Phase = PhaseVictory
	g.pushEvent("victory", target.ID, target.Name+" has won the game")
	return Result{OK: true, Message: "victory"}
}

type newGamePayload struct {
	Players []newGameSeat `json:"players,omitempty"`
	AI      []newGameSeat `json:"ai,omitempty"`
	Goals   *goalOverride `json:"goals,omitempty"`
}

type newGameSeat struct {
	Name       string `json:"name"`
	Difficulty int    `json:"difficulty,omitempty"`
}

type goalOverride struct {
	Wealth      *int  `json:"wealth,omitempty"`
	Happiness   *int  `json:"happiness,omitempty"`
	Education   *int  `json:"education,omitempty"`
	Career      *int  `json:"career,omitempty"`
	Adventure   *int  `json:"adventure,omitempty"`
	AdventureOn *bool `json:"adventure_on,omitempty"`
}

// applyNewGame moves the room from lobby (or a finished game) into play.
// Joined humans keep their seats but are re-dealt starting state; listed AI
// seats are created fresh. Goal overrides apply for the whole session.
func (g *Game) applyNewGame(_ *Player, payload json.RawMessage) Result {
	if g.world.Phase == PhasePlaying {
		return fail(protocol.ErrConflict, "a game is already in progress")
	}
	var np newGamePayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &np); err != nil {
			return fail(protocol.ErrBadRequest, "bad new-game payload")
		}
	}

	// Drop AI seats from any previous game; humans stay.
	kept := make([]string, 0, len(g.order))
	for _, id := range g.order {
		if g.players[id].IsAI {
			delete(g.players, id)
			continue
		}
		kept = append(kept, id)
	}
	g.order = kept

	for _, seat := range np.Players {
		if len(g.players) >= g.tune.MaxPlayers {
			break
		}
		g.newPlayer(seat.Name, false, 0)
	}
	for _, seat := range np.AI {
		if len(g.players) >= g.tune.MaxPlayers {
			break
		}
		g.newPlayer(seat.Name, true, seat.Difficulty)
	}
	if len(g.players) == 0 {
		return fail(protocol.ErrBadRequest, "no players seated")
	}

	if ov := np.Goals; ov != nil {
		if ov.Wealth != nil {
			g.tune.Goals.Wealth = *ov.Wealth
		}
		if ov.Happiness != nil {
			g.tune.Goals.Happiness = *ov.Happiness
		}
		if ov.Education != nil {
			g.tune.Goals.Education = *ov.Education
		}
		if ov.Career != nil {
			g.tune.Goals.Career = *ov.Career
		}
		if ov.Adventure != nil {
			g.tune.Goals.Adventure = *ov.Adventure
		}
		if ov.AdventureOn != nil {
			g.tune.Goals.AdventureOn = *ov.AdventureOn
		}
	}

	g.world = g.freshWorld()
	g.world.Phase = PhasePlaying
	g.rng = NewRand(g.cfg.Seed)
	s := g.tune.Start
	for _, id := range g.order {
		p := g.players[id]
		resumeToken := p.resumeToken
		*p = Player{
			ID:               p.ID,
			Name:             p.Name,
			Color:            p.Color,
			Portrait:         p.Portrait,
			Gold:             s.Gold,
			Health:           s.MaxHealth,
			MaxHealth:        s.MaxHealth,
			Happiness:        s.Happiness,
			FoodLevel:        s.FoodLevel,
			Clothing:         100,
			Age:              s.Age,
			MaxDependability: 100,
			LocationID:       s.LocationID,
			TimeLeft:         g.tune.Turn.TimePerTurn,
			Housing:          "slums",
			IsAI:             p.IsAI,
			AIDifficulty:     p.AIDifficulty,
		}
		p.resumeToken = resumeToken
	}
	g.pushEvent("new_game", "", "a new life begins in Greenvale")
	return resOK()
}
