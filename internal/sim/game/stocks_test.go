package game

import (
	"testing"

	"greenvale.gg/internal/protocol"
)

func stockJSON(t *testing.T, id string, shares float64) []byte {
	t.Helper()
	return raw(t, map[string]any{"stock_id": id, "shares": shares})
}

func TestStocks_BuySell(t *testing.T) {
	g := newTestGame(t, 13)
	ps := startGame(t, g, "rosa")
	p := ps[0]
	p.LocationID = "bank"

	price := g.world.Stocks["IRON"].Price
	p.Gold = price*3 + 1
	mustOK(t, g.applyBuyStock(p, stockJSON(t, "IRON", 3)))
	if p.Gold != 1 || p.Shares["IRON"] != 3 {
		t.Fatalf("after buy: gold=%d shares=%d", p.Gold, p.Shares["IRON"])
	}
	mustFail(t, g.applyBuyStock(p, stockJSON(t, "IRON", 1)), protocol.ErrNoFunds)

	// Over-asking sells the whole position and clears the key.
	mustOK(t, g.applySellStock(p, stockJSON(t, "IRON", 10)))
	if p.Gold != 1+price*3 {
		t.Fatalf("after sell: gold=%d", p.Gold)
	}
	if _, held := p.Shares["IRON"]; held {
		t.Fatal("sold-out position still tracked")
	}
	mustFail(t, g.applySellStock(p, stockJSON(t, "IRON", 1)), protocol.ErrConflict)
}

func TestStocks_Gates(t *testing.T) {
	g := newTestGame(t, 13)
	ps := startGame(t, g, "rosa")
	p := ps[0]

	p.LocationID = "market"
	mustFail(t, g.applyBuyStock(p, stockJSON(t, "IRON", 1)), protocol.ErrWrongLocation)

	p.LocationID = "bank"
	mustFail(t, g.applyBuyStock(p, stockJSON(t, "ACME", 1)), protocol.ErrInvalidTarget)
	mustFail(t, g.applyBuyStock(p, stockJSON(t, "IRON", 0)), protocol.ErrBadRequest)
	mustFail(t, g.applyBuyStock(p, stockJSON(t, "IRON", 1.5)), protocol.ErrBadRequest)
	mustFail(t, g.applyBuyStock(p, stockJSON(t, "IRON", -2)), protocol.ErrBadRequest)
}

func TestStocks_TBillParWithSellFee(t *testing.T) {
	g := newTestGame(t, 13)
	ps := startGame(t, g, "rosa")
	p := ps[0]
	p.LocationID = "bank"

	base := g.cats.Stocks.ByID["GVT"].BasePrice
	for i := 0; i < 20; i++ {
		g.updateStockPrices()
	}
	if got := g.world.Stocks["GVT"].Price; got != base {
		t.Fatalf("T-Bill price moved: %d, want %d", got, base)
	}

	p.Gold = base * 2
	mustOK(t, g.applyBuyStock(p, stockJSON(t, "GVT", 2)))
	mustOK(t, g.applySellStock(p, stockJSON(t, "GVT", 2)))
	proceeds := base * 2
	fee := (proceeds*g.tune.Market.TBillSellFeePct + 99) / 100
	if p.Gold != proceeds-fee {
		t.Fatalf("T-Bill round trip: gold=%d, want %d", p.Gold, proceeds-fee)
	}
}

func TestStocks_PricesStayBounded(t *testing.T) {
	g := newTestGame(t, 13)
	startGame(t, g, "rosa")

	m := g.tune.Market
	for i := 0; i < 200; i++ {
		g.updateStockPrices()
		if i%7 == 0 {
			g.applyCrash(0)
		}
		for _, id := range g.cats.Stocks.Order {
			def := g.cats.Stocks.ByID[id]
			price := g.world.Stocks[id].Price
			if def.TBill {
				continue
			}
			if price < m.PriceFloor || price > def.BasePrice*m.PriceCapMult {
				t.Fatalf("week %d: %s price %d out of bounds", i, id, price)
			}
		}
	}

	if n := len(g.world.Stocks["IRON"].History); n != m.HistoryLen {
		t.Fatalf("history length = %d, want %d", n, m.HistoryLen)
	}
}

func TestStocks_Dividends(t *testing.T) {
	g := newTestGame(t, 13)
	ps := startGame(t, g, "rosa")
	p := ps[0]

	p.Shares = map[string]int{"IRON": 5, "ARCN": 3}
	p.Gold = 0
	g.payDividends()

	div := g.cats.Stocks.ByID["IRON"].DividendPermille
	want := g.world.Stocks["IRON"].Price * 5 * div / 1000
	if p.Gold != want {
		t.Fatalf("dividends = %d, want %d", p.Gold, want)
	}
}
