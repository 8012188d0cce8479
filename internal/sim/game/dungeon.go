package game

import (
	"encoding/json"
	"fmt"

	"greenvale.gg/internal/protocol"
)

// Run outcomes.
const (
	RunClear   = "clear"
	RunRetreat = "retreat"
	RunDefeat  = "defeat"
)

type dungeonPayload struct {
	Floor int `json:"floor"`
}

// applyEnterDungeon resolves one full floor run synchronously. The encounter
// sequence is fixed by the floor definition; every roll comes from the host
// generator, so the whole run replays identically from a snapshot. Retreat
// is automatic when health drops under the threshold before the boss falls.
func (g *Game) applyEnterDungeon(p *Player, payload json.RawMessage) Result {
	var dp dungeonPayload
	if err := json.Unmarshal(payload, &dp); err != nil {
		return fail(protocol.ErrBadRequest, "bad dungeon payload")
	}
	if p.LocationID != g.locationOfKind("dungeon") {
		return fail(protocol.ErrWrongLocation, "not at the dungeon gate")
	}
	if dp.Floor < 0 || dp.Floor >= len(g.cats.Dungeon.Floors) {
		return fail(protocol.ErrInvalidTarget, fmt.Sprintf("no such floor: %d", dp.Floor))
	}
	if dp.Floor > p.FloorsCleared {
		return fail(protocol.ErrRequirements, "clear the floors above first")
	}
	d := g.tune.Dungeon
	if p.TimeLeft < d.TimeCost {
		return fail(protocol.ErrNoTime, "not enough time left this turn")
	}
	p.TimeLeft -= d.TimeCost

	floor := g.cats.Dungeon.Floors[dp.Floor]
	sum := RunSummary{Floor: dp.Floor}
	bossDown := false

	for _, enc := range floor.Encounters {
		sum.Encounters++

		if enc.Trap {
			sum.TrapsSeen++
			if g.rng.Roll(d.DisarmPermille) {
				sum.Disarmed++
			} else {
				dmg := g.rng.Between(enc.DamageLow, enc.DamageHigh)
				p.Health -= dmg
				sum.DamageTaken += dmg
			}
			if enc.GoldLow > 0 || enc.GoldHigh > 0 {
				sum.GoldEarned += g.rng.Between(enc.GoldLow, enc.GoldHigh)
			}
		} else {
			dmg := g.rng.Between(enc.DamageLow, enc.DamageHigh)
			p.Health -= dmg
			sum.DamageTaken += dmg
			sum.GoldEarned += g.rng.Between(enc.GoldLow, enc.GoldHigh)
		}

		if p.Health > 0 && g.rng.Roll(d.PotionFindPermille) {
			heal := d.PotionHeal
			if p.Health+heal > p.MaxHealth {
				heal = p.MaxHealth - p.Health
			}
			p.Health += heal
			sum.Potions++
			sum.Healed += heal
		}

		if p.Health <= 0 {
			break
		}
		if enc.Boss {
			bossDown = true
			break
		}
		if p.Health < d.RetreatHealth {
			break
		}
	}

	switch {
	case p.Health <= 0:
		sum.Outcome = RunDefeat
		sum.GoldEarned = sum.GoldEarned * d.DefeatSalvagePct / 100
	case bossDown:
		sum.Outcome = RunClear
		if dp.Floor == p.FloorsCleared {
			sum.FirstClear = true
			p.FloorsCleared++
			sum.GoldEarned += d.FirstClearBonus
		}
		if g.rng.Roll(d.RareDropPermille) {
			sum.RareDrop = "relic_" + floor.Encounters[len(floor.Encounters)-1].ID
			p.Durables = append(p.Durables, sum.RareDrop)
			if p.Perks == nil {
				p.Perks = map[string]int{}
			}
			if p.Perks["gold_mult_permille"] < 1050 {
				p.Perks["gold_mult_permille"] = 1050
			}
		}
		p.Happiness += g.tune.Guild.QuestHappy
	default:
		sum.Outcome = RunRetreat
		sum.GoldEarned = sum.GoldEarned * d.RetreatGoldPct / 100
	}

	p.addGold(sum.GoldEarned)
	p.LastRun = &sum
	p.clampVitals()

	switch sum.Outcome {
	case RunClear:
		g.pushEvent("dungeon_clear", p.ID, p.Name+" cleared "+floor.Name)
	case RunRetreat:
		g.pushEvent("dungeon_retreat", p.ID, p.Name+" retreated from "+floor.Name)
	case RunDefeat:
		g.pushEvent("dungeon_defeat", p.ID, p.Name+" fell in "+floor.Name)
	}

	if sum.Outcome == RunDefeat {
		// Health hit zero: resolve resurrection or elimination right away.
		p.Health = 0
		return g.applyCheckDeath(p, nil)
	}
	return resOK()
}
