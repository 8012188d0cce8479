// Package tuning holds every balance constant of the simulation. Values load
// from tuning.yaml; Defaults() is the shipped balance and the fallback when a
// snapshot resume has no tuning file next to it.
package tuning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	LoopHz     int `yaml:"loop_hz"`
	MaxPlayers int `yaml:"max_players"`

	Start   Start   `yaml:"start"`
	Turn    Turn    `yaml:"turn"`
	Work    Work    `yaml:"work"`
	Bank    Bank    `yaml:"bank"`
	Market  Market  `yaml:"market"`
	Week    Week    `yaml:"week"`
	Life    Life    `yaml:"life"`
	Dungeon Dungeon `yaml:"dungeon"`
	Guild   Guild   `yaml:"guild"`
	Hexes   []HexDef `yaml:"hexes"`
	AI      AI      `yaml:"ai"`
	Goals   Goals   `yaml:"goals"`

	SnapshotEveryWeeks int `yaml:"snapshot_every_weeks"`
}

type Start struct {
	Gold       int `yaml:"gold"`
	MaxHealth  int `yaml:"max_health"`
	Happiness  int `yaml:"happiness"`
	FoodLevel  int `yaml:"food_level"`
	Age        int `yaml:"age"`
	LocationID string `yaml:"location_id"`
}

type Turn struct {
	TimePerTurn  int `yaml:"time_per_turn"`
	MoveTimeCost int `yaml:"move_time_cost"`
}

type Work struct {
	// Wage noise and clamp bounds, in permille of base wage.
	NoiseLowPermille  int `yaml:"noise_low_permille"`
	NoiseHighPermille int `yaml:"noise_high_permille"`
	ClampLowPermille  int `yaml:"clamp_low_permille"`
	ClampHighPermille int `yaml:"clamp_high_permille"`

	// Per-career-level minimum wage. Index is Job.CareerLevel.
	CareerWageFloors []int `yaml:"career_wage_floors"`

	BonusHours      int `yaml:"bonus_hours"`
	BonusPct        int `yaml:"bonus_pct"`
	DependabilityUp int `yaml:"dependability_up"`
	ExperienceCap   int `yaml:"experience_cap"`

	GarnishArrears int `yaml:"garnish_arrears"`
	GarnishPct     int `yaml:"garnish_pct"`
	GarnishFee     int `yaml:"garnish_fee"`

	FatigueTier1Week int `yaml:"fatigue_tier1_week"`
	FatigueTier2Week int `yaml:"fatigue_tier2_week"`
	ElderShiftAge    int `yaml:"elder_shift_age"`

	ClothingWearPerShift int `yaml:"clothing_wear_per_shift"`
}

type Bank struct {
	LoanMax       int `yaml:"loan_max"`
	LoanTermWeeks int `yaml:"loan_term_weeks"`
}

type Market struct {
	EconomyMinPermille   int `yaml:"economy_min_permille"`
	EconomyMaxPermille   int `yaml:"economy_max_permille"`
	EconomyStepPermille  int `yaml:"economy_step_permille"`
	PriceFloor           int `yaml:"price_floor"`
	PriceCapMult         int `yaml:"price_cap_mult"`
	MeanReversionPermille int `yaml:"mean_reversion_permille"`
	TBillSellFeePct      int `yaml:"tbill_sell_fee_pct"`
	HistoryLen           int `yaml:"history_len"`

	CrashTiers []CrashTier `yaml:"crash_tiers"`
}

// CrashTier is one market-crash severity. Chance is rolled each week, worst
// tier first; DropLow/DropHigh bound the per-stock price factor in permille,
// scaled by each stock's stability before applying.
type CrashTier struct {
	Name            string `yaml:"name"`
	ChancePermille  int    `yaml:"chance_permille"`
	DropLowPermille int    `yaml:"drop_low_permille"`
	DropHighPermille int   `yaml:"drop_high_permille"`
	WageSqueezePct  int    `yaml:"wage_squeeze_pct"`
	Layoffs         bool   `yaml:"layoffs"`
}

type Week struct {
	WeeksPerYear          int `yaml:"weeks_per_year"`
	ElderDecayAge         int `yaml:"elder_decay_age"`
	ElderDecayHealth      int `yaml:"elder_decay_health"`
	CrisisAge             int `yaml:"crisis_age"`
	CrisisChancePermille  int `yaml:"crisis_chance_permille"`
	CrisisDamage          int `yaml:"crisis_damage"`
	WeatherChancePermille int `yaml:"weather_chance_permille"`
	WeatherMinWeeks       int `yaml:"weather_min_weeks"`
	WeatherMaxWeeks       int `yaml:"weather_max_weeks"`
	FestivalEveryWeeks    int `yaml:"festival_every_weeks"`
	TheftBasePermille     int `yaml:"theft_base_permille"`
	TheftSlumsPermille    int `yaml:"theft_slums_permille"`
	TheftHomelessPermille int `yaml:"theft_homeless_permille"`
	TheftTakePct          int `yaml:"theft_take_pct"`
	EvictArrearsWeeks     int `yaml:"evict_arrears_weeks"`
}

type Life struct {
	MealCost         int    `yaml:"meal_cost"`
	MealFood         int    `yaml:"meal_food"`
	ClothingCost     int    `yaml:"clothing_cost"`
	FoodDecayPerWeek int    `yaml:"food_decay_per_week"`
	StarveDamage     int    `yaml:"starve_damage"`
	RestHappiness    int    `yaml:"rest_happiness"`
	RestTimeCost     int    `yaml:"rest_time_cost"`
	ResurrectionCost int    `yaml:"resurrection_cost"`
	HealerLocationID string `yaml:"healer_location_id"`
	RentByHousing    map[string]int `yaml:"rent_by_housing"`
	BirthdayBonuses  []BirthdayBonus `yaml:"birthday_bonuses"`
}

// BirthdayBonus is a fixed stat delta granted the week a player reaches Age.
type BirthdayBonus struct {
	Age       int `yaml:"age"`
	MaxHealth int `yaml:"max_health"`
	Happiness int `yaml:"happiness"`
}

type Dungeon struct {
	TimeCost            int `yaml:"time_cost"`
	DisarmPermille      int `yaml:"disarm_permille"`
	RetreatHealth       int `yaml:"retreat_health"`
	FirstClearBonus     int `yaml:"first_clear_bonus"`
	RareDropPermille    int `yaml:"rare_drop_permille"`
	PotionFindPermille  int `yaml:"potion_find_permille"`
	PotionHeal          int `yaml:"potion_heal"`
	RetreatGoldPct      int `yaml:"retreat_gold_pct"`
	DefeatSalvagePct    int `yaml:"defeat_salvage_pct"`
}

type Guild struct {
	PassCost   int `yaml:"pass_cost"`
	QuestHappy int `yaml:"quest_happy"`
	FailUnhappy int `yaml:"fail_unhappy"`
}

// HexDef is one castable curse. Hexes are balance data rather than world
// data, so they live here instead of the catalogs.
type HexDef struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Cost      int    `yaml:"cost"`
	Effect    string `yaml:"effect"` // "wage_drain","happiness_drain","health_drain"
	Magnitude int    `yaml:"magnitude"`
	Weeks     int    `yaml:"weeks"`
}

type AI struct {
	MaxStepsPerTurn int `yaml:"max_steps_per_turn"`
	LowFunds        int `yaml:"low_funds"`
	Unhappy         int `yaml:"unhappy"`
	Hungry          int `yaml:"hungry"`
}

type Goals struct {
	Wealth    int  `yaml:"wealth"`
	Happiness int  `yaml:"happiness"`
	Education int  `yaml:"education"`
	Career    int  `yaml:"career"`
	Adventure int  `yaml:"adventure"`
	AdventureOn bool `yaml:"adventure_on"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	return Tuning{
		LoopHz:     4,
		MaxPlayers: 4,
		Start: Start{
			Gold:       200,
			MaxHealth:  100,
			Happiness:  50,
			FoodLevel:  80,
			Age:        18,
			LocationID: "town_square",
		},
		Turn: Turn{TimePerTurn: 60, MoveTimeCost: 5},
		Work: Work{
			NoiseLowPermille:  900,
			NoiseHighPermille: 1100,
			ClampLowPermille:  750,
			ClampHighPermille: 1350,
			CareerWageFloors:  []int{0, 5, 9, 14, 20, 28},
			BonusHours:        6,
			BonusPct:          15,
			DependabilityUp:   2,
			ExperienceCap:     1000,
			GarnishArrears:    2,
			GarnishPct:        50,
			GarnishFee:        25,
			FatigueTier1Week:  9,
			FatigueTier2Week:  21,
			ElderShiftAge:     45,
			ClothingWearPerShift: 2,
		},
		Bank: Bank{LoanMax: 1000, LoanTermWeeks: 8},
		Market: Market{
			EconomyMinPermille:    800,
			EconomyMaxPermille:    1200,
			EconomyStepPermille:   50,
			PriceFloor:            10,
			PriceCapMult:          8,
			MeanReversionPermille: 100,
			TBillSellFeePct:       3,
			HistoryLen:            20,
			CrashTiers: []CrashTier{
				{Name: "major", ChancePermille: 8, DropLowPermille: 400, DropHighPermille: 650, WageSqueezePct: 20, Layoffs: true},
				{Name: "moderate", ChancePermille: 20, DropLowPermille: 200, DropHighPermille: 400, WageSqueezePct: 10},
				{Name: "minor", ChancePermille: 40, DropLowPermille: 80, DropHighPermille: 200},
			},
		},
		Week: Week{
			WeeksPerYear:          12,
			ElderDecayAge:         60,
			ElderDecayHealth:      2,
			CrisisAge:             70,
			CrisisChancePermille:  50,
			CrisisDamage:          30,
			WeatherChancePermille: 80,
			WeatherMinWeeks:       1,
			WeatherMaxWeeks:       3,
			FestivalEveryWeeks:    3,
			TheftBasePermille:     20,
			TheftSlumsPermille:    60,
			TheftHomelessPermille: 120,
			TheftTakePct:          25,
			EvictArrearsWeeks:     4,
		},
		Life: Life{
			MealCost:         15,
			MealFood:         40,
			ClothingCost:     35,
			FoodDecayPerWeek: 20,
			StarveDamage:     10,
			RestHappiness:    10,
			RestTimeCost:     10,
			ResurrectionCost: 100,
			HealerLocationID: "temple",
			RentByHousing:    map[string]int{"homeless": 0, "slums": 15, "apartment": 40, "house": 80},
			BirthdayBonuses: []BirthdayBonus{
				{Age: 21, MaxHealth: 5, Happiness: 5},
				{Age: 30, MaxHealth: 5},
				{Age: 50, Happiness: 5},
			},
		},
		Dungeon: Dungeon{
			TimeCost:           20,
			DisarmPermille:     500,
			RetreatHealth:      25,
			FirstClearBonus:    100,
			RareDropPermille:   100,
			PotionFindPermille: 250,
			PotionHeal:         20,
			RetreatGoldPct:     50,
			DefeatSalvagePct:   25,
		},
		Guild: Guild{PassCost: 50, QuestHappy: 5, FailUnhappy: 5},
		Hexes: []HexDef{
			{ID: "hex_sloth", Name: "Hex of Sloth", Cost: 40, Effect: "wage_drain", Magnitude: 20, Weeks: 2},
			{ID: "hex_gloom", Name: "Hex of Gloom", Cost: 30, Effect: "happiness_drain", Magnitude: 5, Weeks: 3},
			{ID: "hex_ague", Name: "Hex of Ague", Cost: 60, Effect: "health_drain", Magnitude: 5, Weeks: 2},
		},
		AI:    AI{MaxStepsPerTurn: 12, LowFunds: 60, Unhappy: 30, Hungry: 30},
		Goals: Goals{Wealth: 2000, Happiness: 80, Education: 30, Career: 80},
		SnapshotEveryWeeks: 1,
	}
}

// Digest is a stable fingerprint of the effective tuning, advertised in
// WELCOME so peers can detect balance drift between host and guest builds.
func Digest(t Tuning) string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
