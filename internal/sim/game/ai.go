package game

import (
	"encoding/json"
	"fmt"
)

// applyAIStep runs one rung of the decision ladder for a computer player.
// A step either moves toward the location the chosen action needs, or
// performs the action, never both. The host loop keeps calling it until the
// player ends their turn, one step per loop tick so observers can follow.
func (g *Game) applyAIStep(p *Player, payload json.RawMessage) Result {
	if p.TurnEnded {
		return resOK()
	}
	p.aiSteps++
	if p.aiSteps > g.tune.AI.MaxStepsPerTurn || p.TimeLeft < g.tune.Turn.MoveTimeCost {
		p.TurnEnded = true
		return resOK()
	}

	// 1. Prevent starvation.
	if p.FoodLevel < g.tune.AI.Hungry && p.Gold >= g.tune.Life.MealCost {
		if ok, res := g.aiMoveOrAct(p, g.locationOfKind("market"), func() Result {
			return g.applyEatMeal(p, nil)
		}); ok {
			return res
		}
	}

	// 2. Pay overdue rent.
	if p.RentArrears > 0 && p.Gold >= g.rentDue(p)*p.RentArrears {
		if res := g.applyPayRent(p, nil); res.OK {
			return res
		}
	}

	// 3. Secure employment when funds run low.
	if p.JobID == "" && p.Gold < g.tune.AI.LowFunds {
		if jobID := g.aiPickJob(p); jobID != "" {
			job := g.cats.Jobs.ByID[jobID]
			if ok, res := g.aiMoveOrAct(p, job.LocationID, func() Result {
				return g.applySetJob(p, targetJSON(jobID))
			}); ok {
				return res
			}
		}
	}

	// 4. Buy into the guild once comfortable.
	if !p.GuildPass && p.Gold >= g.tune.Guild.PassCost*2 {
		if ok, res := g.aiMoveOrAct(p, g.guildLocation(), func() Result {
			return g.applyBuyGuildPass(p, nil)
		}); ok {
			return res
		}
	}

	// 5. Progress an active quest, or accept one.
	if p.GuildPass {
		if ok, res := g.aiQuestStep(p); ok {
			return res
		}
	}

	// 6. Study when tuition is affordable.
	if degID := g.aiPickDegree(p); degID != "" {
		deg := g.cats.Degrees.ByID[degID]
		if ok, res := g.aiMoveOrAct(p, g.locationOfKind("school"), func() Result {
			if p.DegreeProgress[degID] >= deg.Sessions {
				return g.applyCompleteDegree(p, targetJSON(degID))
			}
			return g.applyStudyDegree(p, targetJSON(degID))
		}); ok {
			return res
		}
	}

	// 7. Rest off a bad mood.
	if p.Happiness < g.tune.AI.Unhappy && p.TimeLeft >= g.tune.Life.RestTimeCost {
		if res := g.applyRest(p, nil); res.OK {
			return res
		}
	}

	// 8. Otherwise work.
	if jobID := g.aiWorkTarget(p); jobID != "" {
		job := g.cats.Jobs.ByID[jobID]
		if p.TimeLeft >= job.HoursPerShift+g.tune.Turn.MoveTimeCost || (p.LocationID == job.LocationID && p.TimeLeft >= job.HoursPerShift) {
			if ok, res := g.aiMoveOrAct(p, job.LocationID, func() Result {
				return g.applyWorkShift(p, workJSON(jobID, job.HoursPerShift))
			}); ok {
				return res
			}
		}
	}

	// 9. Nothing worth doing.
	p.TurnEnded = true
	return resOK()
}

// aiMoveOrAct issues a move toward loc, or runs act when already there.
// Reports handled=false when neither worked, so the ladder falls through.
func (g *Game) aiMoveOrAct(p *Player, loc string, act func() Result) (bool, Result) {
	if loc == "" {
		return false, Result{}
	}
	if p.LocationID != loc {
		res := g.applyMovePlayer(p, targetJSON(loc))
		if !res.OK {
			return false, Result{}
		}
		return true, res
	}
	res := act()
	if !res.OK {
		return false, Result{}
	}
	return true, res
}

// aiPickJob returns the best-paying job the player currently qualifies for.
func (g *Game) aiPickJob(p *Player) string {
	best := ""
	bestWage := -1
	for _, id := range g.cats.Jobs.Order {
		job := g.cats.Jobs.ByID[id]
		req := job.Requires
		if p.Clothing < req.ClothingMin || p.Experience < req.Experience || p.Dependability < req.Dependability {
			continue
		}
		qualified := true
		for _, d := range req.Degrees {
			if !p.hasDegree(d) {
				qualified = false
				break
			}
		}
		if !qualified {
			continue
		}
		if offer, ok := g.WageOffer(id); ok && offer > bestWage {
			best, bestWage = id, offer
		}
	}
	return best
}

func (g *Game) aiWorkTarget(p *Player) string {
	if p.JobID != "" {
		return p.JobID
	}
	// Casual labor: any level-0 job with no requirements.
	for _, id := range g.cats.Jobs.Order {
		job := g.cats.Jobs.ByID[id]
		r := job.Requires
		if job.CareerLevel == 0 && len(r.Degrees) == 0 && r.Experience == 0 && r.Dependability == 0 && p.Clothing >= r.ClothingMin {
			return id
		}
	}
	return ""
}

// aiQuestStep handles rung 5: finish an objective, turn in, or accept.
func (g *Game) aiQuestStep(p *Player) (bool, Result) {
	for _, qid := range g.cats.Quests.Order {
		qp := p.Quests[qid]
		if qp == nil {
			continue
		}
		switch qp.State {
		case QuestCompletable:
			return g.aiMoveOrAct(p, g.guildLocation(), func() Result {
				return g.applyCompleteQuest(p, targetJSON(qid))
			})
		case QuestAccepted:
			q := g.cats.Quests.ByID[qid]
			for _, obj := range q.Objectives {
				if qp.ObjectivesDone[obj.ID] {
					continue
				}
				objID := obj.ID
				return g.aiMoveOrAct(p, obj.LocationID, func() Result {
					return g.applyCompleteObjective(p, objectiveJSON(qid, objID))
				})
			}
			// No objectives at all: straight to turn-in.
			return g.aiMoveOrAct(p, g.guildLocation(), func() Result {
				return g.applyCompleteQuest(p, targetJSON(qid))
			})
		}
	}
	// Nothing active: accept the first quest never taken.
	for _, qid := range g.cats.Quests.Order {
		if p.Quests[qid] == nil {
			return g.aiMoveOrAct(p, g.guildLocation(), func() Result {
				return g.applyTakeQuest(p, targetJSON(qid))
			})
		}
	}
	return false, Result{}
}

// aiPickDegree returns the first unfinished degree whose prereqs are met and
// whose full tuition is comfortably affordable.
func (g *Game) aiPickDegree(p *Player) string {
	for _, id := range g.cats.Degrees.Order {
		deg := g.cats.Degrees.ByID[id]
		if p.hasDegree(id) {
			continue
		}
		ok := true
		for _, pre := range deg.Prereqs {
			if !p.hasDegree(pre) {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if p.DegreeProgress[id] > 0 {
			return id
		}
		if p.Gold >= deg.CostPerSession*deg.Sessions {
			return id
		}
	}
	return ""
}

func targetJSON(id string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"id":%q}`, id))
}

func workJSON(jobID string, hours int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"job_id":%q,"hours":%d}`, jobID, hours))
}

func objectiveJSON(questID, objID string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"quest_id":%q,"objective_id":%q}`, questID, objID))
}

// advanceTurns drives AI players and week rollover: computer players act
// only after every human has ended their turn, one ladder step per loop
// tick; once everyone is done the week ends.
func (g *Game) advanceTurns() {
	if g.world.Phase != PhasePlaying {
		return
	}
	allDone := true
	for _, id := range g.playerOrder() {
		p := g.players[id]
		if p.Eliminated || p.IsAI {
			continue
		}
		if !p.TurnEnded {
			return
		}
	}
	for _, id := range g.playerOrder() {
		p := g.players[id]
		if p.Eliminated || !p.IsAI {
			continue
		}
		if !p.TurnEnded {
			g.Apply(id, ActAIStep, nil)
			return
		}
	}
	for _, id := range g.playerOrder() {
		p := g.players[id]
		if !p.Eliminated && !p.TurnEnded {
			allDone = false
		}
	}
	if allDone {
		g.Apply("", ActEndWeek, nil)
	}
}
