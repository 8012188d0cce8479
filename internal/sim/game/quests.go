package game

import (
	"encoding/json"

	"greenvale.gg/internal/protocol"
	"greenvale.gg/internal/sim/catalogs"
)

// Chain-only state: the step is finished but the player still has to pick a
// branch before the chain advances.
const ChainChoicePending = "choice_pending"

func (g *Game) guildLocation() string { return g.locationOfKind("guild") }

func (g *Game) applyBuyGuildPass(p *Player, payload json.RawMessage) Result {
	if p.LocationID != g.guildLocation() {
		return fail(protocol.ErrWrongLocation, "not at the guild hall")
	}
	if p.GuildPass {
		return fail(protocol.ErrConflict, "already a guild member")
	}
	cost := g.tune.Guild.PassCost
	if p.Gold < cost {
		return fail(protocol.ErrNoFunds, "cannot afford a guild pass")
	}
	p.Gold -= cost
	p.GuildPass = true
	return resOK()
}

// applyTakeQuest accepts a quest or starts a quest chain; the id decides
// which catalog it came from.
func (g *Game) applyTakeQuest(p *Player, payload json.RawMessage) Result {
	id, res := parseTarget(payload)
	if !res.OK {
		return res
	}
	if p.LocationID != g.guildLocation() {
		return fail(protocol.ErrWrongLocation, "not at the guild hall")
	}
	if !p.GuildPass {
		return fail(protocol.ErrRequirements, "a guild pass is required")
	}

	if _, ok := g.cats.Quests.ByID[id]; ok {
		if qp := p.Quests[id]; qp != nil && (qp.State == QuestAccepted || qp.State == QuestCompletable) {
			return fail(protocol.ErrConflict, "quest already accepted")
		}
		if p.Quests == nil {
			p.Quests = map[string]*QuestProgress{}
		}
		p.Quests[id] = &QuestProgress{QuestID: id, State: QuestAccepted}
		return resOK()
	}

	if ch, ok := g.cats.Chains.ByID[id]; ok {
		cp := p.Chains[id]
		if cp != nil {
			if cp.CooldownWeeks > 0 {
				return fail(protocol.ErrConflict, "chain is on cooldown")
			}
			if cp.State != QuestCompleted && cp.State != QuestAbandoned && cp.State != QuestFailed {
				return fail(protocol.ErrConflict, "chain already in progress")
			}
		}
		if p.Chains == nil {
			p.Chains = map[string]*ChainProgress{}
		}
		p.Chains[id] = &ChainProgress{
			ChainID:            ch.ID,
			State:              QuestAccepted,
			RewardMultPermille: 1000,
			RiskMultPermille:   1000,
			TimeMultPermille:   1000,
		}
		return resOK()
	}

	return fail(protocol.ErrInvalidTarget, "unknown quest: "+id)
}

type objectivePayload struct {
	QuestID     string `json:"quest_id"`
	ObjectiveID string `json:"objective_id"`
}

// applyCompleteObjective marks one location sub-task done. The player must
// physically be at the objective's location. Works for plain quests and for
// the current step of an active chain.
func (g *Game) applyCompleteObjective(p *Player, payload json.RawMessage) Result {
	var op objectivePayload
	if err := json.Unmarshal(payload, &op); err != nil || op.QuestID == "" || op.ObjectiveID == "" {
		return fail(protocol.ErrBadRequest, "bad objective payload")
	}

	if q, ok := g.cats.Quests.ByID[op.QuestID]; ok {
		qp := p.Quests[op.QuestID]
		if qp == nil || (qp.State != QuestAccepted && qp.State != QuestCompletable) {
			return fail(protocol.ErrConflict, "quest not active")
		}
		obj, ok := findObjective(q.Objectives, op.ObjectiveID)
		if !ok {
			return fail(protocol.ErrInvalidTarget, "unknown objective: "+op.ObjectiveID)
		}
		if p.LocationID != obj.LocationID {
			return fail(protocol.ErrWrongLocation, "objective is elsewhere")
		}
		if qp.ObjectivesDone == nil {
			qp.ObjectivesDone = map[string]bool{}
		}
		if qp.ObjectivesDone[op.ObjectiveID] {
			return fail(protocol.ErrConflict, "objective already done")
		}
		qp.ObjectivesDone[op.ObjectiveID] = true
		if objectivesAllDone(q.Objectives, qp.ObjectivesDone) {
			qp.State = QuestCompletable
		}
		return resOK()
	}

	if ch, ok := g.cats.Chains.ByID[op.QuestID]; ok {
		cp := p.Chains[op.QuestID]
		if cp == nil || cp.State != QuestAccepted {
			return fail(protocol.ErrConflict, "chain not active")
		}
		step := ch.Steps[cp.StepIndex]
		obj, ok := findObjective(step.Objectives, op.ObjectiveID)
		if !ok {
			return fail(protocol.ErrInvalidTarget, "unknown objective: "+op.ObjectiveID)
		}
		if p.LocationID != obj.LocationID {
			return fail(protocol.ErrWrongLocation, "objective is elsewhere")
		}
		if cp.ObjectivesDone == nil {
			cp.ObjectivesDone = map[string]bool{}
		}
		if cp.ObjectivesDone[op.ObjectiveID] {
			return fail(protocol.ErrConflict, "objective already done")
		}
		cp.ObjectivesDone[op.ObjectiveID] = true
		return resOK()
	}

	return fail(protocol.ErrInvalidTarget, "unknown quest: "+op.QuestID)
}

func findObjective(objs []catalogs.ObjectiveDef, id string) (catalogs.ObjectiveDef, bool) {
	for _, o := range objs {
		if o.ID == id {
			return o, true
		}
	}
	return catalogs.ObjectiveDef{}, false
}

func objectivesAllDone(objs []catalogs.ObjectiveDef, done map[string]bool) bool {
	for _, o := range objs {
		if !done[o.ID] {
			return false
		}
	}
	return true
}

// applyCompleteQuest turns in a plain quest or the current chain step at the
// guild. Turn-in rolls the risk once: on failure the quest fails outright.
func (g *Game) applyCompleteQuest(p *Player, payload json.RawMessage) Result {
	id, res := parseTarget(payload)
	if !res.OK {
		return res
	}
	if p.LocationID != g.guildLocation() {
		return fail(protocol.ErrWrongLocation, "turn in at the guild hall")
	}

	if q, ok := g.cats.Quests.ByID[id]; ok {
		qp := p.Quests[id]
		if qp == nil || (qp.State != QuestAccepted && qp.State != QuestCompletable) {
			return fail(protocol.ErrConflict, "quest not active")
		}
		if !objectivesAllDone(q.Objectives, qp.ObjectivesDone) {
			return fail(protocol.ErrRequirements, "objectives still outstanding")
		}
		if p.TimeLeft < q.TimeCost {
			return fail(protocol.ErrNoTime, "not enough time left this turn")
		}
		p.TimeLeft -= q.TimeCost
		if g.rng.Roll(q.RiskPermille) {
			qp.State = QuestFailed
			p.Happiness -= g.tune.Guild.FailUnhappy
			p.clampVitals()
			g.pushEvent("quest_failed", p.ID, p.Name+" failed "+q.Name)
			return Result{OK: true, Message: "failed"}
		}
		reward := g.rng.Between(q.RewardLow, q.RewardHigh)
		qp.State = QuestCompleted
		p.addGold(reward)
		p.GuildRank++
		p.Happiness += g.tune.Guild.QuestHappy
		p.clampVitals()
		g.pushEvent("quest_done", p.ID, p.Name+" completed "+q.Name)
		return resOK()
	}

	if ch, ok := g.cats.Chains.ByID[id]; ok {
		return g.completeChainStep(p, ch)
	}

	return fail(protocol.ErrInvalidTarget, "unknown quest: "+id)
}

func (g *Game) completeChainStep(p *Player, ch catalogs.ChainDef) Result {
	cp := p.Chains[ch.ID]
	if cp == nil || cp.State != QuestAccepted {
		return fail(protocol.ErrConflict, "chain not active")
	}
	step := ch.Steps[cp.StepIndex]
	if !objectivesAllDone(step.Objectives, cp.ObjectivesDone) {
		return fail(protocol.ErrRequirements, "objectives still outstanding")
	}

	timeCost := step.TimeCost * cp.TimeMultPermille / 1000
	if p.TimeLeft < timeCost {
		return fail(protocol.ErrNoTime, "not enough time left this turn")
	}
	p.TimeLeft -= timeCost

	risk := step.RiskPermille * cp.RiskMultPermille / 1000
	if g.rng.Roll(risk) {
		cp.State = QuestFailed
		cp.CooldownWeeks = ch.CooldownWeeks
		p.Happiness -= g.tune.Guild.FailUnhappy
		p.clampVitals()
		g.pushEvent("chain_failed", p.ID, p.Name+" failed "+step.Name)
		return Result{OK: true, Message: "failed"}
	}

	reward := g.rng.Between(step.RewardLow, step.RewardHigh) * cp.RewardMultPermille / 1000
	p.addGold(reward)
	cp.StepsDone++
	cp.ObjectivesDone = nil

	if len(step.Choices) > 0 {
		cp.State = ChainChoicePending
		return resOK()
	}
	return g.advanceChain(p, ch, cp, cp.StepIndex+1)
}

// advanceChain moves to the next step index, or finishes the chain when the
// index runs off the end (or a choice terminated it). Completion requires
// the configured minimum number of finished steps.
func (g *Game) advanceChain(p *Player, ch catalogs.ChainDef, cp *ChainProgress, next int) Result {
	if next < 0 || next >= len(ch.Steps) {
		if cp.StepsDone < ch.MinSteps {
			cp.State = QuestFailed
			cp.CooldownWeeks = ch.CooldownWeeks
			g.pushEvent("chain_failed", p.ID, p.Name+" left "+ch.Name+" unfinished")
			return Result{OK: true, Message: "failed"}
		}
		cp.State = QuestCompleted
		cp.CooldownWeeks = ch.CooldownWeeks
		p.GuildRank++
		p.Happiness += g.tune.Guild.QuestHappy
		p.clampVitals()
		g.pushEvent("chain_done", p.ID, p.Name+" completed "+ch.Name)
		return resOK()
	}
	cp.StepIndex = next
	cp.State = QuestAccepted
	return resOK()
}

func (g *Game) applyAbandonQuest(p *Player, payload json.RawMessage) Result {
	id, res := parseTarget(payload)
	if !res.OK {
		return res
	}
	if qp := p.Quests[id]; qp != nil && (qp.State == QuestAccepted || qp.State == QuestCompletable) {
		qp.State = QuestAbandoned
		qp.ObjectivesDone = nil
		return resOK()
	}
	if cp := p.Chains[id]; cp != nil && (cp.State == QuestAccepted || cp.State == ChainChoicePending) {
		ch := g.cats.Chains.ByID[id]
		cp.State = QuestAbandoned
		cp.ObjectivesDone = nil
		cp.CooldownWeeks = ch.CooldownWeeks
		return resOK()
	}
	return fail(protocol.ErrConflict, "nothing to abandon")
}

type choicePayload struct {
	ChainID  string `json:"chain_id"`
	ChoiceID string `json:"choice_id,omitempty"`
}

// applyChooseChainStep resolves a pending branch. With an explicit choice id
// the player picks; without one the host draws a weighted choice. Either way
// the chosen branch's multipliers are locked in for the destination step.
func (g *Game) applyChooseChainStep(p *Player, payload json.RawMessage) Result {
	var chp choicePayload
	if err := json.Unmarshal(payload, &chp); err != nil || chp.ChainID == "" {
		return fail(protocol.ErrBadRequest, "bad choice payload")
	}
	ch, ok := g.cats.Chains.ByID[chp.ChainID]
	if !ok {
		return fail(protocol.ErrInvalidTarget, "unknown chain: "+chp.ChainID)
	}
	cp := p.Chains[chp.ChainID]
	if cp == nil || cp.State != ChainChoicePending {
		return fail(protocol.ErrConflict, "no choice pending")
	}
	step := ch.Steps[cp.StepIndex]

	var choice *catalogs.ChainChoiceDef
	if chp.ChoiceID != "" {
		for i := range step.Choices {
			if step.Choices[i].ID == chp.ChoiceID {
				choice = &step.Choices[i]
				break
			}
		}
		if choice == nil {
			return fail(protocol.ErrInvalidTarget, "unknown choice: "+chp.ChoiceID)
		}
	} else {
		choice = g.weightedChoice(step.Choices)
		if choice == nil {
			return fail(protocol.ErrInternal, "no choices configured")
		}
	}

	cp.RewardMultPermille = orPermille(choice.RewardMultPermille)
	cp.RiskMultPermille = orPermille(choice.RiskMultPermille)
	cp.TimeMultPermille = orPermille(choice.TimeMultPermille)
	return g.advanceChain(p, ch, cp, choice.NextIndex)
}

func orPermille(v int) int {
	if v <= 0 {
		return 1000
	}
	return v
}

func (g *Game) weightedChoice(choices []catalogs.ChainChoiceDef) *catalogs.ChainChoiceDef {
	total := 0
	for _, c := range choices {
		if c.Weight > 0 {
			total += c.Weight
		}
	}
	if total == 0 {
		return nil
	}
	roll := g.rng.Intn(total)
	for i := range choices {
		if choices[i].Weight <= 0 {
			continue
		}
		roll -= choices[i].Weight
		if roll < 0 {
			return &choices[i]
		}
	}
	return &choices[len(choices)-1]
}

// BountyOfWeek is the deterministic weekly rotation: a pure hash of the week
// picks from the pool, so every peer sees the same posting without a draw.
func (g *Game) BountyOfWeek(week int) string {
	n := len(g.cats.Bounties.Order)
	if n == 0 {
		return ""
	}
	h := hashStringWeek(g.cfg.Seed, "bounty_rotation", week)
	return g.cats.Bounties.Order[int(h%uint64(n))]
}

func (g *Game) applyTakeBounty(p *Player, payload json.RawMessage) Result {
	if p.LocationID != g.guildLocation() {
		return fail(protocol.ErrWrongLocation, "not at the guild hall")
	}
	if !p.GuildPass {
		return fail(protocol.ErrRequirements, "a guild pass is required")
	}
	if p.Bounty != nil && p.Bounty.Week == g.world.Week {
		return fail(protocol.ErrConflict, "bounty already taken this week")
	}
	id := g.BountyOfWeek(g.world.Week)
	if id == "" {
		return fail(protocol.ErrInternal, "no bounties configured")
	}
	p.Bounty = &BountyProgress{BountyID: id, Week: g.world.Week}
	return resOK()
}

func (g *Game) applyCompleteBounty(p *Player, payload json.RawMessage) Result {
	b := p.Bounty
	if b == nil {
		return fail(protocol.ErrConflict, "no bounty taken")
	}
	if b.Week != g.world.Week {
		p.Bounty = nil
		return fail(protocol.ErrConflict, "the posting has expired")
	}
	def := g.cats.Bounties.ByID[b.BountyID]
	if p.LocationID != def.LocationID {
		return fail(protocol.ErrWrongLocation, "the mark is elsewhere")
	}
	if p.TimeLeft < def.TimeCost {
		return fail(protocol.ErrNoTime, "not enough time left this turn")
	}
	p.TimeLeft -= def.TimeCost
	p.Bounty = nil
	if g.rng.Roll(def.RiskPermille) {
		p.Happiness -= g.tune.Guild.FailUnhappy
		p.clampVitals()
		g.pushEvent("bounty_failed", p.ID, p.Name+" lost the trail of "+def.Name)
		return Result{OK: true, Message: "failed"}
	}
	reward := g.rng.Between(def.RewardLow, def.RewardHigh)
	p.addGold(reward)
	p.GuildRank++
	g.pushEvent("bounty_done", p.ID, p.Name+" collected the bounty on "+def.Name)
	return resOK()
}
