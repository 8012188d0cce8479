package game

import (
	"encoding/json"

	"greenvale.gg/internal/protocol"
)

// WageOffer computes the wage a job is offering this week. The noise term is
// a pure hash of (jobID, week): the same job shows the same offer all week,
// on every peer, no matter how many times it is computed or what else the
// generator has rolled. The career-level floor table keeps higher tiers
// monotonically paid at least as much as lower ones through economy swings.
func (g *Game) WageOffer(jobID string) (int, bool) {
	job, ok := g.cats.Jobs.ByID[jobID]
	if !ok {
		return 0, false
	}
	w := g.tune.Work
	noise := wageNoise(g.cfg.Seed, jobID, g.world.Week, w.NoiseLowPermille, w.NoiseHighPermille)

	factor := noise * g.world.EconomyPermille / 1000
	if factor < w.ClampLowPermille {
		factor = w.ClampLowPermille
	}
	if factor > w.ClampHighPermille {
		factor = w.ClampHighPermille
	}
	offer := job.BaseWage * factor / 1000

	if lvl := job.CareerLevel; lvl >= 0 && lvl < len(w.CareerWageFloors) {
		if floor := w.CareerWageFloors[lvl]; offer < floor {
			offer = floor
		}
	}
	return offer, true
}

type workPayload struct {
	JobID string `json:"job_id"`
	Hours int    `json:"hours"`
	// OfferedWage is used only when the player has no locked-in job; the
	// host recomputes and ignores mismatching client values.
	OfferedWage int `json:"offered_wage,omitempty"`
}

func (g *Game) applyWorkShift(p *Player, payload json.RawMessage) Result {
	var wp workPayload
	if err := json.Unmarshal(payload, &wp); err != nil {
		return fail(protocol.ErrBadRequest, "bad work payload")
	}

	jobID := wp.JobID
	if p.JobID != "" {
		jobID = p.JobID
	}
	job, ok := g.cats.Jobs.ByID[jobID]
	if !ok {
		return fail(protocol.ErrInvalidTarget, "unknown job: "+jobID)
	}
	if p.LocationID != job.LocationID {
		return fail(protocol.ErrWrongLocation, "not at the job site")
	}

	hours := wp.Hours
	if hours <= 0 {
		hours = job.HoursPerShift
	}
	if hours > p.TimeLeft {
		return fail(protocol.ErrNoTime, "not enough time left this turn")
	}

	// Effective wage: the locked-in wage for employees, this week's offer
	// for casual work.
	wage := p.Wage
	if p.JobID == "" {
		wage, _ = g.WageOffer(jobID)
	}

	earned := wage * hours
	w := g.tune.Work
	if hours >= w.BonusHours {
		earned += (earned*w.BonusPct + 99) / 100 // rounded up
	}
	if drain, cursed := p.hasCurse("wage_drain"); cursed {
		earned -= earned * drain / 100
		if earned < 0 {
			earned = 0
		}
	}
	if p.RentArrears >= w.GarnishArrears {
		garnish := earned*w.GarnishPct/100 + w.GarnishFee
		if garnish > earned {
			garnish = earned
		}
		earned -= garnish
	}
	// Permanent perk multiplier applies last, floored.
	earned = earned * p.perkPermille("gold_mult_permille") / 1000

	p.TimeLeft -= hours
	p.addGold(earned)

	p.Dependability += w.DependabilityUp
	if p.Dependability > p.MaxDependability {
		p.Dependability = p.MaxDependability
	}
	p.Experience += hours
	if p.Experience > w.ExperienceCap {
		p.Experience = w.ExperienceCap
	}
	if p.JobID != "" {
		p.ShiftsSinceHire++
	}
	p.Clothing -= w.ClothingWearPerShift

	// Long weeks wear people down; later-game weeks more so, and an elder
	// working a long shift more again.
	penalty := 0
	switch {
	case g.world.Week >= w.FatigueTier2Week:
		penalty = 2
	case g.world.Week >= w.FatigueTier1Week:
		penalty = 1
	}
	if p.Age >= w.ElderShiftAge && hours >= w.BonusHours {
		penalty++
	}
	p.Happiness -= penalty
	p.clampVitals()
	return resOK()
}

func (g *Game) applySetJob(p *Player, payload json.RawMessage) Result {
	jobID, res := parseTarget(payload)
	if !res.OK {
		return res
	}
	job, ok := g.cats.Jobs.ByID[jobID]
	if !ok {
		return fail(protocol.ErrInvalidTarget, "unknown job: "+jobID)
	}
	if p.LocationID != job.LocationID {
		return fail(protocol.ErrWrongLocation, "apply in person")
	}

	req := job.Requires
	for _, d := range req.Degrees {
		if !p.hasDegree(d) {
			return fail(protocol.ErrRequirements, "missing degree: "+d)
		}
	}
	if p.Clothing < req.ClothingMin {
		return fail(protocol.ErrRequirements, "clothing not presentable enough")
	}
	if p.Experience < req.Experience {
		return fail(protocol.ErrRequirements, "not enough experience")
	}
	if p.Dependability < req.Dependability {
		return fail(protocol.ErrRequirements, "not dependable enough")
	}

	wage, _ := g.WageOffer(jobID)
	p.JobID = jobID
	p.Wage = wage
	p.ShiftsSinceHire = 0
	return resOK()
}

func (g *Game) applyQuitJob(p *Player, payload json.RawMessage) Result {
	if p.JobID == "" {
		return fail(protocol.ErrConflict, "no job to quit")
	}
	p.JobID = ""
	p.Wage = 0
	p.ShiftsSinceHire = 0
	return resOK()
}
