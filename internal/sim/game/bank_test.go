package game

import (
	"testing"

	"greenvale.gg/internal/protocol"
)

func TestBank_DepositWithdrawInvestConserve(t *testing.T) {
	g := newTestGame(t, 7)
	ps := startGame(t, g, "rosa")
	p := ps[0]
	p.LocationID = "bank"

	total := func() int { return p.Gold + p.Savings + p.Investments }
	before := total()

	mustOK(t, g.applyDeposit(p, amountJSON(t, 120)))
	if p.Savings != 120 {
		t.Fatalf("savings = %d, want 120", p.Savings)
	}
	mustOK(t, g.applyInvest(p, amountJSON(t, 50)))
	mustOK(t, g.applyWithdraw(p, amountJSON(t, 30)))
	if total() != before {
		t.Fatalf("transfers changed total: %d -> %d", before, total())
	}

	// Over-asking clamps to the available balance.
	mustOK(t, g.applyDeposit(p, amountJSON(t, 1_000_000)))
	if p.Gold != 0 {
		t.Fatalf("gold = %d after all-in deposit", p.Gold)
	}
	if total() != before {
		t.Fatalf("clamped deposit changed total: %d -> %d", before, total())
	}
	mustFail(t, g.applyDeposit(p, amountJSON(t, 10)), protocol.ErrNoFunds)
}

func TestBank_RequiresBankLocation(t *testing.T) {
	g := newTestGame(t, 7)
	ps := startGame(t, g, "rosa")
	p := ps[0]
	p.LocationID = "market"

	mustFail(t, g.applyDeposit(p, amountJSON(t, 10)), protocol.ErrWrongLocation)
	mustFail(t, g.applyWithdraw(p, amountJSON(t, 10)), protocol.ErrWrongLocation)
	mustFail(t, g.applyInvest(p, amountJSON(t, 10)), protocol.ErrWrongLocation)
	mustFail(t, g.applyTakeLoan(p, amountJSON(t, 10)), protocol.ErrWrongLocation)
}

func TestLoan_SingleOutstandingAndCapped(t *testing.T) {
	g := newTestGame(t, 7)
	ps := startGame(t, g, "rosa")
	p := ps[0]
	p.LocationID = "bank"

	mustOK(t, g.applyTakeLoan(p, amountJSON(t, 1_000_000)))
	if p.LoanAmount != g.tune.Bank.LoanMax {
		t.Fatalf("loan = %d, want cap %d", p.LoanAmount, g.tune.Bank.LoanMax)
	}
	if p.LoanWeeks != g.tune.Bank.LoanTermWeeks {
		t.Fatalf("term = %d, want %d", p.LoanWeeks, g.tune.Bank.LoanTermWeeks)
	}
	mustFail(t, g.applyTakeLoan(p, amountJSON(t, 100)), protocol.ErrConflict)

	// Repay clamps to min(gold, owed) and clears the term at zero.
	p.Gold = 400
	mustOK(t, g.applyRepayLoan(p, amountJSON(t, 1_000_000)))
	if p.Gold != 0 || p.LoanAmount != g.tune.Bank.LoanMax-400 {
		t.Fatalf("partial repay: gold=%d loan=%d", p.Gold, p.LoanAmount)
	}
	p.Gold = p.LoanAmount
	mustOK(t, g.applyRepayLoan(p, amountJSON(t, 1_000_000)))
	if p.LoanAmount != 0 || p.LoanWeeks != 0 {
		t.Fatalf("full repay left loan=%d weeks=%d", p.LoanAmount, p.LoanWeeks)
	}
	mustFail(t, g.applyRepayLoan(p, amountJSON(t, 10)), protocol.ErrConflict)
}

func TestLoan_CalledAtTermEnd(t *testing.T) {
	g := newTestGame(t, 7)
	ps := startGame(t, g, "rosa")
	p := ps[0]

	p.LoanAmount = 300
	p.LoanWeeks = 1
	p.Gold = 100
	p.Savings = 150
	p.Investments = 500

	g.weekUpkeep()
	if p.LoanAmount != 0 {
		t.Fatalf("loan not cleared: %d", p.LoanAmount)
	}
	// Collection order: gold, savings, then investments.
	if p.Gold != 0 || p.Savings != 0 || p.Investments != 450 {
		t.Fatalf("collection order wrong: gold=%d savings=%d invest=%d", p.Gold, p.Savings, p.Investments)
	}
}

func TestModifyStats_Clamp(t *testing.T) {
	g := newTestGame(t, 7)
	ps := startGame(t, g, "rosa")
	p := ps[0]

	mustOK(t, g.applyModifyHealth(p, raw(t, map[string]int{"delta": -1000})))
	if p.Health != 0 {
		t.Fatalf("health = %d, want 0", p.Health)
	}
	mustOK(t, g.applyModifyHappiness(p, raw(t, map[string]int{"delta": 1000})))
	if p.Happiness != 100 {
		t.Fatalf("happiness = %d, want 100", p.Happiness)
	}
	mustOK(t, g.applyModifyGold(p, raw(t, map[string]int{"delta": -1_000_000})))
	if p.Gold != 0 {
		t.Fatalf("gold = %d, want 0", p.Gold)
	}
	mustFail(t, g.applyModifyGold(p, raw(t, map[string]float64{"delta": 1.5})), protocol.ErrBadRequest)
}
