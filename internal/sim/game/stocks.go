package game

import (
	"encoding/json"

	"greenvale.gg/internal/protocol"
	"greenvale.gg/internal/sim/catalogs"
)

type stockPayload struct {
	StockID string  `json:"stock_id"`
	Shares  float64 `json:"shares"`
}

func parseStock(payload json.RawMessage) (string, int, Result) {
	var sp stockPayload
	if err := json.Unmarshal(payload, &sp); err != nil || sp.StockID == "" {
		return "", 0, fail(protocol.ErrBadRequest, "bad stock payload")
	}
	n := int(sp.Shares)
	if sp.Shares <= 0 || float64(n) != sp.Shares {
		return "", 0, fail(protocol.ErrBadRequest, "shares must be a positive whole number")
	}
	return sp.StockID, n, Result{OK: true}
}

func (g *Game) applyBuyStock(p *Player, payload json.RawMessage) Result {
	id, n, res := parseStock(payload)
	if !res.OK {
		return res
	}
	if p.LocationID != g.bankLocation() {
		return fail(protocol.ErrWrongLocation, "not at the bank")
	}
	st, ok := g.world.Stocks[id]
	if !ok {
		return fail(protocol.ErrInvalidTarget, "unknown stock: "+id)
	}
	cost := st.Price * n
	if cost > p.Gold {
		return fail(protocol.ErrNoFunds, "cannot afford those shares")
	}
	p.Gold -= cost
	if p.Shares == nil {
		p.Shares = map[string]int{}
	}
	p.Shares[id] += n
	return resOK()
}

func (g *Game) applySellStock(p *Player, payload json.RawMessage) Result {
	id, n, res := parseStock(payload)
	if !res.OK {
		return res
	}
	if p.LocationID != g.bankLocation() {
		return fail(protocol.ErrWrongLocation, "not at the bank")
	}
	st, ok := g.world.Stocks[id]
	if !ok {
		return fail(protocol.ErrInvalidTarget, "unknown stock: "+id)
	}
	held := p.Shares[id]
	if n > held {
		n = held
	}
	if n == 0 {
		return fail(protocol.ErrConflict, "no shares to sell")
	}
	proceeds := st.Price * n
	if def := g.cats.Stocks.ByID[id]; def.TBill {
		// T-Bills trade at par with a flat sell fee, rounded up.
		fee := (proceeds*g.tune.Market.TBillSellFeePct + 99) / 100
		proceeds -= fee
	}
	p.Shares[id] -= n
	if p.Shares[id] == 0 {
		delete(p.Shares, id)
	}
	p.addGold(proceeds)
	return resOK()
}

// updateStockPrices advances every non-T-Bill price one week: a bounded
// random walk with mean reversion toward base price, biased by the economy
// trend. Prices stay within [floor, cap×base]; T-Bills never move.
func (g *Game) updateStockPrices() {
	m := g.tune.Market
	for _, id := range g.cats.Stocks.Order {
		def := g.cats.Stocks.ByID[id]
		st := g.world.Stocks[id]
		if st == nil {
			continue
		}
		if def.TBill {
			st.Price = def.BasePrice
			g.pushHistory(st)
			continue
		}

		// Random walk step scaled by volatility, in permille of price.
		step := g.rng.Between(-def.VolatilityPermille, def.VolatilityPermille)
		// Economy trend bias: a hot economy pulls prices up, a cold one down.
		bias := (g.world.EconomyPermille - 1000) / 4
		// Mean reversion toward base price.
		revert := (def.BasePrice - st.Price) * m.MeanReversionPermille / 1000

		st.Price += st.Price*(step+bias)/1000 + revert
		g.clampStock(st, def)
		g.pushHistory(st)
	}
}

// applyCrash reprices every stock under one crash tier. Each stock draws an
// independent drop factor, scaled by its stability (1 − volatility): stable
// issues lose proportionally less.
func (g *Game) applyCrash(tier int) {
	m := g.tune.Market
	if tier < 0 || tier >= len(m.CrashTiers) {
		return
	}
	ct := m.CrashTiers[tier]
	for _, id := range g.cats.Stocks.Order {
		def := g.cats.Stocks.ByID[id]
		st := g.world.Stocks[id]
		if st == nil || def.TBill {
			continue
		}
		drop := g.rng.Between(ct.DropLowPermille, ct.DropHighPermille)
		stability := 1000 - def.VolatilityPermille
		if stability < 0 {
			stability = 0
		}
		// Stable stocks shrug off part of the drop.
		drop = drop * (1000 - stability/2) / 1000
		st.Price -= st.Price * drop / 1000
		g.clampStock(st, def)
	}
}

func (g *Game) clampStock(st *StockState, def catalogs.StockDef) {
	m := g.tune.Market
	if st.Price < m.PriceFloor {
		st.Price = m.PriceFloor
	}
	if max := def.BasePrice * m.PriceCapMult; st.Price > max {
		st.Price = max
	}
}

func (g *Game) pushHistory(st *StockState) {
	st.History = append(st.History, st.Price)
	if n := g.tune.Market.HistoryLen; len(st.History) > n {
		st.History = st.History[len(st.History)-n:]
	}
}

// payDividends credits each player for dividend-bearing holdings.
func (g *Game) payDividends() {
	for _, id := range g.playerOrder() {
		p := g.players[id]
		if p.Eliminated {
			continue
		}
		total := 0
		for _, sid := range g.cats.Stocks.Order {
			def := g.cats.Stocks.ByID[sid]
			if def.DividendPermille == 0 {
				continue
			}
			n := p.Shares[sid]
			if n == 0 {
				continue
			}
			st := g.world.Stocks[sid]
			total += st.Price * n * def.DividendPermille / 1000
		}
		if total > 0 {
			p.addGold(total)
			g.pushEvent("dividend", p.ID, p.Name+" collected dividends")
		}
	}
}
