package game

import (
	"encoding/json"
	"fmt"

	"greenvale.gg/internal/protocol"
)

// applyEndWeek advances the world one week. The order of effects below is a
// replication contract: every draw comes from the host generator in exactly
// this sequence, so a resumed snapshot or a twin game reproduces the same
// week byte for byte.
func (g *Game) applyEndWeek(_ *Player, payload json.RawMessage) Result {
	if g.world.Phase != PhasePlaying {
		return fail(protocol.ErrConflict, "no game in progress")
	}

	g.world.Week++
	week := g.world.Week

	// 1+2. Aging, birthdays, elder decay, health crises.
	g.weekAging(week)

	// Food decay and starvation, then loan terms coming due.
	g.weekUpkeep()

	// 3. Rent, garnishment state, eviction.
	g.weekRent()

	// 4. Weather.
	g.weekWeather()

	// 5. Festival.
	g.weekFestival(week)

	// 6. Market crash roll, then economy drift.
	g.weekMarket()

	// 7+8. Stock prices and dividends.
	g.updateStockPrices()
	g.payDividends()

	// 9. Theft.
	g.weekTheft()

	// 10. Quest-chain cooldowns.
	g.weekCooldowns()

	// 11. Curses.
	g.weekCurses()

	// Deaths from any of the above, then a fresh turn, then victory.
	for _, id := range g.playerOrder() {
		p := g.players[id]
		if !p.Eliminated && p.Health <= 0 {
			g.applyCheckDeath(p, nil)
		}
	}
	for _, id := range g.playerOrder() {
		p := g.players[id]
		if p.Eliminated {
			continue
		}
		p.TimeLeft = g.tune.Turn.TimePerTurn
		p.TurnEnded = false
		p.aiSteps = 0
	}
	for _, id := range g.playerOrder() {
		if g.world.Phase == PhaseVictory {
			break
		}
		g.applyCheckVictory(g.players[id], nil)
	}
	return resOK()
}

func (g *Game) weekAging(week int) {
	wk := g.tune.Week
	birthday := wk.WeeksPerYear > 0 && week%wk.WeeksPerYear == 0
	for _, id := range g.playerOrder() {
		p := g.players[id]
		if p.Eliminated {
			continue
		}
		if birthday {
			p.Age++
			for _, b := range g.tune.Life.BirthdayBonuses {
				if p.Age == b.Age {
					p.MaxHealth += b.MaxHealth
					p.Happiness += b.Happiness
					g.pushEvent("birthday", p.ID, fmt.Sprintf("%s turned %d", p.Name, p.Age))
				}
			}
		}
		if p.Age >= wk.ElderDecayAge {
			p.Health -= wk.ElderDecayHealth
		}
		if p.Age >= wk.CrisisAge && g.rng.Roll(wk.CrisisChancePermille) {
			p.Health -= wk.CrisisDamage
			g.pushEvent("health_crisis", p.ID, p.Name+" suffered a health crisis")
		}
		p.clampVitals()
	}
}

func (g *Game) weekUpkeep() {
	life := g.tune.Life
	for _, id := range g.playerOrder() {
		p := g.players[id]
		if p.Eliminated {
			continue
		}
		p.FoodLevel -= life.FoodDecayPerWeek
		if p.FoodLevel <= 0 {
			p.FoodLevel = 0
			p.Health -= life.StarveDamage
			g.pushEvent("starving", p.ID, p.Name+" is going hungry")
		}

		if p.LoanAmount > 0 {
			p.LoanWeeks--
			if p.LoanWeeks <= 0 {
				g.collectLoan(p)
			}
		}
		p.clampVitals()
	}
}

// collectLoan calls the balance due: gold first, then savings, then
// investments. Whatever cannot be collected is written off with the loan.
func (g *Game) collectLoan(p *Player) {
	due := p.LoanAmount
	take := func(account *int) {
		if due == 0 || *account == 0 {
			return
		}
		n := due
		if n > *account {
			n = *account
		}
		*account -= n
		due -= n
	}
	take(&p.Gold)
	take(&p.Savings)
	take(&p.Investments)
	p.LoanAmount = 0
	p.LoanWeeks = 0
	g.pushEvent("loan_due", p.ID, p.Name+"'s loan was called in")
}

func (g *Game) weekRent() {
	wk := g.tune.Week
	for _, id := range g.playerOrder() {
		p := g.players[id]
		if p.Eliminated || p.Housing == "homeless" {
			continue
		}
		rent := g.rentDue(p)
		if p.Gold >= rent {
			p.Gold -= rent
			continue
		}
		p.RentArrears++
		if p.RentArrears >= wk.EvictArrearsWeeks {
			p.Housing = "homeless"
			p.RentArrears = 0
			g.pushEvent("evicted", p.ID, p.Name+" was evicted")
		}
	}
}

// Per-weather effect multipliers, permille.
var weatherEffects = map[string][3]int{
	WeatherRain:  {1000, 1050, 900},
	WeatherStorm: {900, 1100, 1100},
	WeatherSnow:  {950, 1150, 800},
	WeatherHeat:  {950, 1050, 1200},
}

var weatherKinds = []string{WeatherRain, WeatherStorm, WeatherSnow, WeatherHeat}

func (g *Game) weekWeather() {
	w := &g.world.Weather
	if w.Type != WeatherClear {
		w.WeeksLeft--
		if w.WeeksLeft <= 0 {
			*w = clearWeather()
		}
		return
	}
	wk := g.tune.Week
	if !g.rng.Roll(wk.WeatherChancePermille) {
		return
	}
	kind := weatherKinds[g.rng.Intn(len(weatherKinds))]
	eff := weatherEffects[kind]
	g.world.Weather = Weather{
		Type:              kind,
		WeeksLeft:         g.rng.Between(wk.WeatherMinWeeks, wk.WeatherMaxWeeks),
		WageMultPermille:  eff[0],
		PriceMultPermille: eff[1],
		TheftMultPermille: eff[2],
	}
	g.pushEvent("weather", "", "the weather turned: "+kind)
}

func (g *Game) weekFestival(week int) {
	g.world.Festival = festivalForWeek(week, g.tune.Week.FestivalEveryWeeks, g.cats)
	if f := g.world.Festival; f != nil {
		for _, id := range g.playerOrder() {
			p := g.players[id]
			if p.Eliminated {
				continue
			}
			p.Happiness += f.HappinessBonus
			p.clampVitals()
		}
		g.pushEvent("festival", "", f.Name+" fills the streets")
	}
}

// weekMarket rolls crash tiers worst-first; the first hit applies and the
// rest are skipped. The economy then drifts one bounded step.
func (g *Game) weekMarket() {
	m := g.tune.Market
	for tier, ct := range m.CrashTiers {
		if !g.rng.Roll(ct.ChancePermille) {
			continue
		}
		g.applyCrash(tier)
		if ct.WageSqueezePct > 0 {
			for _, id := range g.playerOrder() {
				p := g.players[id]
				if p.JobID != "" {
					p.Wage -= p.Wage * ct.WageSqueezePct / 100
				}
			}
		}
		if ct.Layoffs {
			for _, id := range g.playerOrder() {
				p := g.players[id]
				if p.JobID != "" && g.rng.Roll(250) {
					p.JobID = ""
					p.Wage = 0
					p.ShiftsSinceHire = 0
					g.pushEvent("laid_off", p.ID, p.Name+" was laid off")
				}
			}
		}
		g.pushEvent("crash", "", "the market crashed ("+ct.Name+")")
		break
	}

	drift := g.rng.Between(-m.EconomyStepPermille, m.EconomyStepPermille)
	g.world.EconomyPermille += drift
	if g.world.EconomyPermille < m.EconomyMinPermille {
		g.world.EconomyPermille = m.EconomyMinPermille
	}
	if g.world.EconomyPermille > m.EconomyMaxPermille {
		g.world.EconomyPermille = m.EconomyMaxPermille
	}
}

func (g *Game) weekTheft() {
	wk := g.tune.Week
	for _, id := range g.playerOrder() {
		p := g.players[id]
		if p.Eliminated || p.Gold == 0 {
			continue
		}
		chance := wk.TheftBasePermille
		switch p.Housing {
		case "slums":
			chance = wk.TheftSlumsPermille
		case "homeless":
			chance = wk.TheftHomelessPermille
		}
		chance = chance * g.world.Weather.TheftMultPermille / 1000
		if !g.rng.Roll(chance) {
			continue
		}
		taken := p.Gold * wk.TheftTakePct / 100
		if taken == 0 {
			taken = p.Gold
		}
		p.Gold -= taken
		g.pushEvent("theft", p.ID, fmt.Sprintf("a thief took %d gold from %s", taken, p.Name))
	}
}

func (g *Game) weekCooldowns() {
	for _, id := range g.playerOrder() {
		p := g.players[id]
		for _, cp := range p.Chains {
			if cp.CooldownWeeks > 0 {
				cp.CooldownWeeks--
			}
		}
		if p.Bounty != nil && p.Bounty.Week < g.world.Week {
			p.Bounty = nil
		}
	}
}

func (g *Game) weekCurses() {
	for _, id := range g.playerOrder() {
		p := g.players[id]
		if p.Eliminated || len(p.Curses) == 0 {
			continue
		}
		kept := p.Curses[:0]
		for _, c := range p.Curses {
			switch c.Effect {
			case "happiness_drain":
				p.Happiness -= c.Magnitude
			case "health_drain":
				p.Health -= c.Magnitude
			}
			c.WeeksLeft--
			if c.WeeksLeft > 0 {
				kept = append(kept, c)
			} else {
				g.pushEvent("curse_lifted", p.ID, c.CasterName+"'s hex on "+p.Name+" wore off")
			}
		}
		p.Curses = kept
		if len(p.Curses) == 0 {
			p.Curses = nil
		}
		p.clampVitals()
	}
}
