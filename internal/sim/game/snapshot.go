package game

import (
	"sort"

	"greenvale.gg/internal/persistence/snapshot"
)

const snapshotVersion = 1

// ExportSnapshot copies the live state into the disk format. Everything the
// digest covers goes in, including the generator position, so a resumed game
// continues the identical draw sequence.
func (g *Game) ExportSnapshot() snapshot.GameV1 {
	snap := snapshot.GameV1{
		Header: snapshot.Header{
			Version:  snapshotVersion,
			RoomCode: g.cfg.RoomCode,
			Week:     g.world.Week,
		},
		Seed:     g.cfg.Seed,
		RNGState: g.rng.State(),
		Goals: snapshot.GoalsV1{
			Wealth:      g.tune.Goals.Wealth,
			Happiness:   g.tune.Goals.Happiness,
			Education:   g.tune.Goals.Education,
			Career:      g.tune.Goals.Career,
			Adventure:   g.tune.Goals.Adventure,
			AdventureOn: g.tune.Goals.AdventureOn,
		},
		World: snapshot.WorldV1{
			Week:             g.world.Week,
			EconomyPermille:  g.world.EconomyPermille,
			Phase:            g.world.Phase,
			WinnerID:         g.world.WinnerID,
			WeatherType:      g.world.Weather.Type,
			WeatherWeeksLeft: g.world.Weather.WeeksLeft,
			WeatherWageMult:  g.world.Weather.WageMultPermille,
			WeatherPriceMult: g.world.Weather.PriceMultPermille,
			WeatherTheftMult: g.world.Weather.TheftMultPermille,
		},
		Counters: snapshot.CountersV1{
			NextPlayerNum: g.nextPlayerNum,
			NextEventNum:  g.nextEventNum,
		},
	}
	for _, id := range g.cats.Stocks.Order {
		st := g.world.Stocks[id]
		if st == nil {
			continue
		}
		snap.World.Stocks = append(snap.World.Stocks, snapshot.StockV1{
			ID:      id,
			Price:   st.Price,
			History: append([]int(nil), st.History...),
		})
	}
	for _, id := range g.order {
		snap.Players = append(snap.Players, exportPlayer(g.players[id]))
	}
	return snap
}

func exportPlayer(p *Player) snapshot.PlayerV1 {
	out := snapshot.PlayerV1{
		ID:               p.ID,
		Name:             p.Name,
		Color:            p.Color,
		Portrait:         p.Portrait,
		Gold:             p.Gold,
		Savings:          p.Savings,
		Investments:      p.Investments,
		LoanAmount:       p.LoanAmount,
		LoanWeeks:        p.LoanWeeks,
		Shares:           copyIntMap(p.Shares),
		Health:           p.Health,
		MaxHealth:        p.MaxHealth,
		Happiness:        p.Happiness,
		FoodLevel:        p.FoodLevel,
		Clothing:         p.Clothing,
		Age:              p.Age,
		JobID:            p.JobID,
		Wage:             p.Wage,
		Dependability:    p.Dependability,
		MaxDependability: p.MaxDependability,
		Experience:       p.Experience,
		ShiftsSinceHire:  p.ShiftsSinceHire,
		LocationID:       p.LocationID,
		TimeLeft:         p.TimeLeft,
		Degrees:          append([]string(nil), p.Degrees...),
		DegreeProgress:   copyIntMap(p.DegreeProgress),
		GuildPass:        p.GuildPass,
		GuildRank:        p.GuildRank,
		FloorsCleared:    p.FloorsCleared,
		Perks:            copyIntMap(p.Perks),
		Durables:         append([]string(nil), p.Durables...),
		Housing:          p.Housing,
		RentArrears:      p.RentArrears,
		IsAI:             p.IsAI,
		AIDifficulty:     p.AIDifficulty,
		Eliminated:       p.Eliminated,
		TurnEnded:        p.TurnEnded,
	}
	for _, qid := range sortedKeysQ(p.Quests) {
		qp := p.Quests[qid]
		out.Quests = append(out.Quests, snapshot.QuestV1{
			QuestID:        qp.QuestID,
			State:          qp.State,
			ObjectivesDone: setToSorted(qp.ObjectivesDone),
		})
	}
	for _, cid := range sortedKeysC(p.Chains) {
		cp := p.Chains[cid]
		out.Chains = append(out.Chains, snapshot.ChainV1{
			ChainID:        cp.ChainID,
			State:          cp.State,
			StepIndex:      cp.StepIndex,
			StepsDone:      cp.StepsDone,
			ObjectivesDone: setToSorted(cp.ObjectivesDone),
			RewardMult:     cp.RewardMultPermille,
			RiskMult:       cp.RiskMultPermille,
			TimeMult:       cp.TimeMultPermille,
			CooldownWeeks:  cp.CooldownWeeks,
		})
	}
	if p.Bounty != nil {
		out.BountyID = p.Bounty.BountyID
		out.BountyWeek = p.Bounty.Week
	}
	for _, c := range p.Curses {
		out.Curses = append(out.Curses, snapshot.CurseV1{
			HexID:      c.HexID,
			CasterID:   c.CasterID,
			CasterName: c.CasterName,
			Effect:     c.Effect,
			Magnitude:  c.Magnitude,
			WeeksLeft:  c.WeeksLeft,
		})
	}
	return out
}

// ResumeFromSnapshot replaces the live state with a snapshot's contents.
// Clients stay attached; the next broadcast hands them the restored mirror.
func (g *Game) ResumeFromSnapshot(snap snapshot.GameV1) {
	g.cfg.Seed = snap.Seed
	g.rng.Restore(snap.RNGState)
	g.tune.Goals.Wealth = snap.Goals.Wealth
	g.tune.Goals.Happiness = snap.Goals.Happiness
	g.tune.Goals.Education = snap.Goals.Education
	g.tune.Goals.Career = snap.Goals.Career
	g.tune.Goals.Adventure = snap.Goals.Adventure
	g.tune.Goals.AdventureOn = snap.Goals.AdventureOn

	w := &WorldState{
		Week:            snap.World.Week,
		EconomyPermille: snap.World.EconomyPermille,
		Phase:           snap.World.Phase,
		WinnerID:        snap.World.WinnerID,
		Weather: Weather{
			Type:              snap.World.WeatherType,
			WeeksLeft:         snap.World.WeatherWeeksLeft,
			WageMultPermille:  snap.World.WeatherWageMult,
			PriceMultPermille: snap.World.WeatherPriceMult,
			TheftMultPermille: snap.World.WeatherTheftMult,
		},
		Stocks: map[string]*StockState{},
	}
	for _, st := range snap.World.Stocks {
		w.Stocks[st.ID] = &StockState{Price: st.Price, History: append([]int(nil), st.History...)}
	}
	w.Festival = festivalForWeek(w.Week, g.tune.Week.FestivalEveryWeeks, g.cats)
	g.world = w

	g.players = map[string]*Player{}
	g.order = g.order[:0]
	for i := range snap.Players {
		p := importPlayer(&snap.Players[i])
		g.players[p.ID] = p
		g.order = append(g.order, p.ID)
	}
	g.nextPlayerNum = snap.Counters.NextPlayerNum
	g.nextEventNum = snap.Counters.NextEventNum
	g.events = nil
	g.dirty = true
}

func importPlayer(v *snapshot.PlayerV1) *Player {
	p := &Player{
		ID:               v.ID,
		Name:             v.Name,
		Color:            v.Color,
		Portrait:         v.Portrait,
		Gold:             v.Gold,
		Savings:          v.Savings,
		Investments:      v.Investments,
		LoanAmount:       v.LoanAmount,
		LoanWeeks:        v.LoanWeeks,
		Shares:           copyIntMap(v.Shares),
		Health:           v.Health,
		MaxHealth:        v.MaxHealth,
		Happiness:        v.Happiness,
		FoodLevel:        v.FoodLevel,
		Clothing:         v.Clothing,
		Age:              v.Age,
		JobID:            v.JobID,
		Wage:             v.Wage,
		Dependability:    v.Dependability,
		MaxDependability: v.MaxDependability,
		Experience:       v.Experience,
		ShiftsSinceHire:  v.ShiftsSinceHire,
		LocationID:       v.LocationID,
		TimeLeft:         v.TimeLeft,
		Degrees:          append([]string(nil), v.Degrees...),
		DegreeProgress:   copyIntMap(v.DegreeProgress),
		GuildPass:        v.GuildPass,
		GuildRank:        v.GuildRank,
		FloorsCleared:    v.FloorsCleared,
		Perks:            copyIntMap(v.Perks),
		Durables:         append([]string(nil), v.Durables...),
		Housing:          v.Housing,
		RentArrears:      v.RentArrears,
		IsAI:             v.IsAI,
		AIDifficulty:     v.AIDifficulty,
		Eliminated:       v.Eliminated,
		TurnEnded:        v.TurnEnded,
	}
	for _, q := range v.Quests {
		if p.Quests == nil {
			p.Quests = map[string]*QuestProgress{}
		}
		p.Quests[q.QuestID] = &QuestProgress{
			QuestID:        q.QuestID,
			State:          q.State,
			ObjectivesDone: sortedToSet(q.ObjectivesDone),
		}
	}
	for _, c := range v.Chains {
		if p.Chains == nil {
			p.Chains = map[string]*ChainProgress{}
		}
		p.Chains[c.ChainID] = &ChainProgress{
			ChainID:            c.ChainID,
			State:              c.State,
			StepIndex:          c.StepIndex,
			StepsDone:          c.StepsDone,
			ObjectivesDone:     sortedToSet(c.ObjectivesDone),
			RewardMultPermille: c.RewardMult,
			RiskMultPermille:   c.RiskMult,
			TimeMultPermille:   c.TimeMult,
			CooldownWeeks:      c.CooldownWeeks,
		}
	}
	if v.BountyID != "" {
		p.Bounty = &BountyProgress{BountyID: v.BountyID, Week: v.BountyWeek}
	}
	for _, c := range v.Curses {
		p.Curses = append(p.Curses, ActiveCurse{
			HexID:      c.HexID,
			CasterID:   c.CasterID,
			CasterName: c.CasterName,
			Effect:     c.Effect,
			Magnitude:  c.Magnitude,
			WeeksLeft:  c.WeeksLeft,
		})
	}
	return p
}

func copyIntMap(m map[string]int) map[string]int {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func setToSorted(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func sortedToSet(s []string) map[string]bool {
	if len(s) == 0 {
		return nil
	}
	out := make(map[string]bool, len(s))
	for _, k := range s {
		out[k] = true
	}
	return out
}

func sortedKeysQ(m map[string]*QuestProgress) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeysC(m map[string]*ChainProgress) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
