package game

// Player is the full per-player record. It is mutated only by reducers
// running on the game loop goroutine, serialized as-is into state broadcasts
// and snapshots.
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Portrait int    `json:"portrait"`

	Gold        int            `json:"gold"`
	Savings     int            `json:"savings"`
	Investments int            `json:"investments"`
	LoanAmount  int            `json:"loan_amount"`
	LoanWeeks   int            `json:"loan_weeks_left"`
	Shares      map[string]int `json:"shares"`

	Health    int `json:"health"`
	MaxHealth int `json:"max_health"`
	Happiness int `json:"happiness"`
	FoodLevel int `json:"food_level"`
	Clothing  int `json:"clothing_condition"`
	Age       int `json:"age"`

	JobID            string `json:"job_id,omitempty"`
	Wage             int    `json:"wage,omitempty"`
	Dependability    int    `json:"dependability"`
	MaxDependability int    `json:"max_dependability"`
	Experience       int    `json:"experience"`
	ShiftsSinceHire  int    `json:"shifts_since_hire"`

	LocationID string `json:"location_id"`
	TimeLeft   int    `json:"time_left"`

	Degrees        []string       `json:"degrees,omitempty"`
	DegreeProgress map[string]int `json:"degree_progress,omitempty"`

	GuildPass bool `json:"guild_pass"`
	GuildRank int  `json:"guild_rank"`

	Quests  map[string]*QuestProgress `json:"quests,omitempty"`
	Chains  map[string]*ChainProgress `json:"chains,omitempty"`
	Bounty  *BountyProgress           `json:"bounty,omitempty"`

	FloorsCleared int         `json:"floors_cleared"`
	LastRun       *RunSummary `json:"last_run,omitempty"`

	Curses  []ActiveCurse  `json:"curses,omitempty"`
	Perks   map[string]int `json:"perks,omitempty"`
	Durables []string      `json:"durables,omitempty"`

	Housing     string `json:"housing"`
	RentArrears int    `json:"rent_arrears"`

	IsAI         bool `json:"is_ai"`
	AIDifficulty int  `json:"ai_difficulty,omitempty"`
	Eliminated   bool `json:"eliminated"`

	TurnEnded bool `json:"turn_ended"`

	// Session-scoped; not part of replicated or saved state.
	resumeToken string

	// Ladder steps taken this turn; reset by the week scheduler.
	aiSteps int
}

// Quest lifecycle states.
const (
	QuestAccepted    = "accepted"
	QuestCompletable = "completable"
	QuestCompleted   = "completed"
	QuestAbandoned   = "abandoned"
	QuestFailed      = "failed"
)

type QuestProgress struct {
	QuestID        string          `json:"quest_id"`
	State          string          `json:"state"`
	ObjectivesDone map[string]bool `json:"objectives_done,omitempty"`
}

type ChainProgress struct {
	ChainID        string          `json:"chain_id"`
	State          string          `json:"state"`
	StepIndex      int             `json:"step_index"`
	StepsDone      int             `json:"steps_done"`
	ObjectivesDone map[string]bool `json:"objectives_done,omitempty"`

	// Multipliers locked in by the choice that led to the current step.
	RewardMultPermille int `json:"reward_mult_permille"`
	RiskMultPermille   int `json:"risk_mult_permille"`
	TimeMultPermille   int `json:"time_mult_permille"`

	CooldownWeeks int `json:"cooldown_weeks,omitempty"`
}

type BountyProgress struct {
	BountyID string `json:"bounty_id"`
	Week     int    `json:"week"`
}

// ActiveCurse is a timed negative status applied by another player's hex.
// The week scheduler decrements WeeksLeft and removes it at zero.
type ActiveCurse struct {
	HexID      string `json:"hex_id"`
	CasterID   string `json:"caster_id"`
	CasterName string `json:"caster_name"`
	Effect     string `json:"effect"` // "wage_drain","happiness_drain","health_drain"
	Magnitude  int    `json:"magnitude"`
	WeeksLeft  int    `json:"weeks_left"`
}

// RunSummary records the outcome of one dungeon run for the UI and
// achievement tracking.
type RunSummary struct {
	Floor       int    `json:"floor"`
	Outcome     string `json:"outcome"` // "clear","retreat","defeat"
	GoldEarned  int    `json:"gold_earned"`
	DamageTaken int    `json:"damage_taken"`
	Healed      int    `json:"healed"`
	TrapsSeen   int    `json:"traps_seen"`
	Disarmed    int    `json:"disarmed"`
	Potions     int    `json:"potions"`
	RareDrop    string `json:"rare_drop,omitempty"`
	FirstClear  bool   `json:"first_clear"`
	Encounters  int    `json:"encounters"`
}

func (p *Player) clampVitals() {
	if p.Health < 0 {
		p.Health = 0
	}
	if p.Health > p.MaxHealth {
		p.Health = p.MaxHealth
	}
	if p.Happiness < 0 {
		p.Happiness = 0
	}
	if p.Happiness > 100 {
		p.Happiness = 100
	}
	if p.FoodLevel < 0 {
		p.FoodLevel = 0
	}
	if p.FoodLevel > 100 {
		p.FoodLevel = 100
	}
	if p.Clothing < 0 {
		p.Clothing = 0
	}
	if p.Clothing > 100 {
		p.Clothing = 100
	}
}

func (p *Player) addGold(n int) {
	p.Gold += n
	if p.Gold < 0 {
		p.Gold = 0
	}
}

func (p *Player) hasDegree(id string) bool {
	for _, d := range p.Degrees {
		if d == id {
			return true
		}
	}
	return false
}

// perk returns the permille value of a named perk, 1000 when absent.
func (p *Player) perkPermille(name string) int {
	if p.Perks == nil {
		return 1000
	}
	if v, ok := p.Perks[name]; ok && v > 0 {
		return v
	}
	return 1000
}

func (p *Player) hasCurse(effect string) (int, bool) {
	total := 0
	found := false
	for _, c := range p.Curses {
		if c.Effect == effect {
			total += c.Magnitude
			found = true
		}
	}
	return total, found
}
