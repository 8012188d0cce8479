package game

import (
	"encoding/json"
	"math"

	"greenvale.gg/internal/protocol"
)

// Primitive stat mutators. Host-internal: systems (scheduler, curses,
// admin) reach player stats through these so clamping lives in one place.

type statPayload struct {
	Delta float64 `json:"delta"`
}

func parseDelta(payload json.RawMessage) (int, Result) {
	var sp statPayload
	if err := json.Unmarshal(payload, &sp); err != nil {
		return 0, fail(protocol.ErrBadRequest, "bad delta payload")
	}
	d := sp.Delta
	if math.IsNaN(d) || math.IsInf(d, 0) || d != math.Trunc(d) {
		return 0, fail(protocol.ErrBadRequest, "delta must be a finite whole number")
	}
	return int(d), Result{OK: true}
}

func (g *Game) applyModifyGold(p *Player, payload json.RawMessage) Result {
	d, res := parseDelta(payload)
	if !res.OK {
		return res
	}
	p.addGold(d)
	return resOK()
}

func (g *Game) applyModifyHealth(p *Player, payload json.RawMessage) Result {
	d, res := parseDelta(payload)
	if !res.OK {
		return res
	}
	p.Health += d
	p.clampVitals()
	return resOK()
}

func (g *Game) applyModifyHappiness(p *Player, payload json.RawMessage) Result {
	d, res := parseDelta(payload)
	if !res.OK {
		return res
	}
	p.Happiness += d
	p.clampVitals()
	return resOK()
}

// Banking. Deposits, withdrawals and investments clamp to the lesser of the
// requested amount and the available balance; the two balances involved can
// never sum to more than they did before the call.

func (g *Game) applyDeposit(p *Player, payload json.RawMessage) Result {
	amt, res := parseAmount(payload)
	if !res.OK {
		return res
	}
	if p.LocationID != g.bankLocation() {
		return fail(protocol.ErrWrongLocation, "not at the bank")
	}
	if amt > p.Gold {
		amt = p.Gold
	}
	if amt == 0 {
		return fail(protocol.ErrNoFunds, "nothing to deposit")
	}
	p.Gold -= amt
	p.Savings += amt
	return resOK()
}

func (g *Game) applyWithdraw(p *Player, payload json.RawMessage) Result {
	amt, res := parseAmount(payload)
	if !res.OK {
		return res
	}
	if p.LocationID != g.bankLocation() {
		return fail(protocol.ErrWrongLocation, "not at the bank")
	}
	if amt > p.Savings {
		amt = p.Savings
	}
	if amt == 0 {
		return fail(protocol.ErrNoFunds, "nothing to withdraw")
	}
	p.Savings -= amt
	p.Gold += amt
	return resOK()
}

func (g *Game) applyInvest(p *Player, payload json.RawMessage) Result {
	amt, res := parseAmount(payload)
	if !res.OK {
		return res
	}
	if p.LocationID != g.bankLocation() {
		return fail(protocol.ErrWrongLocation, "not at the bank")
	}
	if amt > p.Savings {
		amt = p.Savings
	}
	if amt == 0 {
		return fail(protocol.ErrNoFunds, "nothing to invest")
	}
	p.Savings -= amt
	p.Investments += amt
	return resOK()
}

// Loans: a single outstanding loan, principal capped, fixed term. The week
// scheduler decrements the term and calls the balance due at zero.

func (g *Game) applyTakeLoan(p *Player, payload json.RawMessage) Result {
	amt, res := parseAmount(payload)
	if !res.OK {
		return res
	}
	if p.LocationID != g.bankLocation() {
		return fail(protocol.ErrWrongLocation, "not at the bank")
	}
	if p.LoanAmount > 0 {
		return fail(protocol.ErrConflict, "a loan is already outstanding")
	}
	max := g.tune.Bank.LoanMax
	if amt > max {
		amt = max
	}
	p.LoanAmount = amt
	p.LoanWeeks = g.tune.Bank.LoanTermWeeks
	p.Gold += amt
	return resOK()
}

func (g *Game) applyRepayLoan(p *Player, payload json.RawMessage) Result {
	amt, res := parseAmount(payload)
	if !res.OK {
		return res
	}
	if p.LocationID != g.bankLocation() {
		return fail(protocol.ErrWrongLocation, "not at the bank")
	}
	if p.LoanAmount == 0 {
		return fail(protocol.ErrConflict, "no outstanding loan")
	}
	if amt > p.Gold {
		amt = p.Gold
	}
	if amt > p.LoanAmount {
		amt = p.LoanAmount
	}
	if amt == 0 {
		return fail(protocol.ErrNoFunds, "no gold to repay with")
	}
	p.Gold -= amt
	p.LoanAmount -= amt
	if p.LoanAmount == 0 {
		p.LoanWeeks = 0
	}
	return resOK()
}
