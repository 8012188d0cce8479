package game

import "greenvale.gg/internal/sim/catalogs"

// Game phases.
const (
	PhaseLobby   = "lobby"
	PhasePlaying = "playing"
	PhaseVictory = "victory"
)

// WorldState is the shared, non-per-player half of the simulation.
type WorldState struct {
	Week            int    `json:"week"`
	EconomyPermille int    `json:"economy_permille"`
	Weather         Weather `json:"weather"`
	Festival        *FestivalState `json:"festival,omitempty"`
	Stocks          map[string]*StockState `json:"stocks"`
	WinnerID        string `json:"winner_id,omitempty"`
	Phase           string `json:"phase"`
}

// Weather types.
const (
	WeatherClear = "CLEAR"
	WeatherRain  = "RAIN"
	WeatherStorm = "STORM"
	WeatherSnow  = "SNOW"
	WeatherHeat  = "HEATWAVE"
)

type Weather struct {
	Type      string `json:"type"`
	WeeksLeft int    `json:"weeks_left"`

	WageMultPermille  int `json:"wage_mult_permille"`
	PriceMultPermille int `json:"price_mult_permille"`
	TheftMultPermille int `json:"theft_mult_permille"`
}

func clearWeather() Weather {
	return Weather{Type: WeatherClear, WageMultPermille: 1000, PriceMultPermille: 1000, TheftMultPermille: 1000}
}

type FestivalState struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	HappinessBonus int    `json:"happiness_bonus"`
	PriceMultPermille int `json:"price_mult_permille"`
}

type StockState struct {
	Price   int   `json:"price"`
	History []int `json:"history"`
}

// festivalForWeek derives the active festival purely from the week number:
// one festival week every FestivalEveryWeeks, cycling through the 4-item
// catalog so the pattern repeats every 12 weeks. Returns nil off-weeks.
func festivalForWeek(week, everyWeeks int, cats *catalogs.Catalogs) *FestivalState {
	if everyWeeks <= 0 || week <= 0 || week%everyWeeks != 0 {
		return nil
	}
	idx := (week/everyWeeks - 1) % len(cats.Festivals.Cycle)
	def := cats.Festivals.Cycle[idx]
	return &FestivalState{
		ID:             def.ID,
		Name:           def.Name,
		HappinessBonus: def.HappinessBonus,
		PriceMultPermille: def.PriceMultPermille,
	}
}

// stockValue prices a player's portfolio at current market prices.
func (w *WorldState) stockValue(shares map[string]int) int {
	total := 0
	for id, n := range shares {
		if s, ok := w.Stocks[id]; ok && n > 0 {
			total += s.Price * n
		}
	}
	return total
}
