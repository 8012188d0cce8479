package game

import (
	"encoding/json"

	"greenvale.gg/internal/protocol"
)

// applyStudyDegree pays for and attends one session of a degree course.
// Prerequisites are checked on the first session only; after enrollment a
// revoked prereq never voids progress.
func (g *Game) applyStudyDegree(p *Player, payload json.RawMessage) Result {
	degID, res := parseTarget(payload)
	if !res.OK {
		return res
	}
	deg, ok := g.cats.Degrees.ByID[degID]
	if !ok {
		return fail(protocol.ErrInvalidTarget, "unknown degree: "+degID)
	}
	if p.hasDegree(degID) {
		return fail(protocol.ErrConflict, "degree already earned")
	}
	if p.LocationID != g.locationOfKind("school") {
		return fail(protocol.ErrWrongLocation, "not at the school")
	}
	if p.DegreeProgress[degID] == 0 {
		for _, pre := range deg.Prereqs {
			if !p.hasDegree(pre) {
				return fail(protocol.ErrRequirements, "missing prerequisite: "+pre)
			}
		}
	}
	if p.TimeLeft < deg.HoursPerSession {
		return fail(protocol.ErrNoTime, "not enough time left this turn")
	}
	if p.Gold < deg.CostPerSession {
		return fail(protocol.ErrNoFunds, "cannot afford tuition")
	}

	p.Gold -= deg.CostPerSession
	p.TimeLeft -= deg.HoursPerSession
	if p.DegreeProgress == nil {
		p.DegreeProgress = map[string]int{}
	}
	p.DegreeProgress[degID]++
	return resOK()
}

func (g *Game) applyCompleteDegree(p *Player, payload json.RawMessage) Result {
	degID, res := parseTarget(payload)
	if !res.OK {
		return res
	}
	deg, ok := g.cats.Degrees.ByID[degID]
	if !ok {
		return fail(protocol.ErrInvalidTarget, "unknown degree: "+degID)
	}
	if p.hasDegree(degID) {
		return fail(protocol.ErrConflict, "degree already earned")
	}
	if p.DegreeProgress[degID] < deg.Sessions {
		return fail(protocol.ErrRequirements, "sessions still outstanding")
	}
	p.Degrees = append(p.Degrees, degID)
	delete(p.DegreeProgress, degID)
	g.pushEvent("graduated", p.ID, p.Name+" earned "+deg.Name)
	return resOK()
}
