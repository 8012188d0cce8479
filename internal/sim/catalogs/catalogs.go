// Package catalogs loads the world-defined game data: jobs, degrees, quests,
// quest chains, bounties, stocks, board locations, festivals and dungeon
// floors. Definitions are catalog-owned; players hold only ids and progress
// counters. Each file carries a sha256 digest advertised to peers so a guest
// can detect a host running different data.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Catalogs struct {
	Jobs      JobCatalog
	Degrees   DegreeCatalog
	Quests    QuestCatalog
	Chains    ChainCatalog
	Bounties  BountyCatalog
	Stocks    StockCatalog
	Locations LocationCatalog
	Festivals FestivalCatalog
	Dungeon   DungeonCatalog
}

type JobCatalog struct {
	ByID   map[string]JobDef
	Order  []string
	Digest string
}

type JobDef struct {
	ID            string   `json:"id"`
	Employer      string   `json:"employer"`
	LocationID    string   `json:"location_id"`
	BaseWage      int      `json:"base_wage"`
	HoursPerShift int      `json:"hours_per_shift"`
	CareerLevel   int      `json:"career_level"`
	Requires      JobReqs  `json:"requires"`
}

type JobReqs struct {
	Degrees       []string `json:"degrees,omitempty"`
	ClothingMin   int      `json:"clothing_min,omitempty"`
	Experience    int      `json:"experience,omitempty"`
	Dependability int      `json:"dependability,omitempty"`
}

type DegreeCatalog struct {
	ByID   map[string]DegreeDef
	Order  []string
	Digest string
}

type DegreeDef struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Prereqs         []string `json:"prereqs,omitempty"`
	Sessions        int      `json:"sessions"`
	CostPerSession  int      `json:"cost_per_session"`
	HoursPerSession int      `json:"hours_per_session"`
	Points          int      `json:"points"`
	UnlocksJobs     []string `json:"unlocks_jobs,omitempty"`
}

type QuestCatalog struct {
	ByID   map[string]QuestDef
	Order  []string
	Digest string
}

type QuestDef struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	RewardLow    int            `json:"reward_low"`
	RewardHigh   int            `json:"reward_high"`
	RiskPermille int            `json:"risk_permille"`
	TimeCost     int            `json:"time_cost"`
	Objectives   []ObjectiveDef `json:"objectives,omitempty"`
}

// ObjectiveDef is a per-location sub-task. Every objective must be marked
// done before quest turn-in is accepted, regardless of quest type.
type ObjectiveDef struct {
	ID         string `json:"id"`
	LocationID string `json:"location_id"`
	Text       string `json:"text"`
}

type ChainCatalog struct {
	ByID   map[string]ChainDef
	Order  []string
	Digest string
}

type ChainDef struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	MinSteps      int            `json:"min_steps"`
	CooldownWeeks int            `json:"cooldown_weeks"`
	Steps         []ChainStepDef `json:"steps"`
}

type ChainStepDef struct {
	Index        int              `json:"index"`
	Name         string           `json:"name"`
	RewardLow    int              `json:"reward_low"`
	RewardHigh   int              `json:"reward_high"`
	RiskPermille int              `json:"risk_permille"`
	TimeCost     int              `json:"time_cost"`
	Optional     bool             `json:"optional,omitempty"`
	Objectives   []ObjectiveDef   `json:"objectives,omitempty"`
	Choices      []ChainChoiceDef `json:"choices,omitempty"`
}

// ChainChoiceDef is one weighted branch offered when a non-linear step
// completes. NextIndex -1 terminates the chain. Multipliers are permille and
// scale the destination step's base reward/risk/time.
type ChainChoiceDef struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	Weight          int    `json:"weight"`
	RewardMultPermille int `json:"reward_mult_permille"`
	RiskMultPermille   int `json:"risk_mult_permille"`
	TimeMultPermille   int `json:"time_mult_permille"`
	NextIndex       int    `json:"next_index"`
}

type BountyCatalog struct {
	ByID   map[string]BountyDef
	Order  []string
	Digest string
}

type BountyDef struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	RewardLow    int    `json:"reward_low"`
	RewardHigh   int    `json:"reward_high"`
	RiskPermille int    `json:"risk_permille"`
	TimeCost     int    `json:"time_cost"`
	LocationID   string `json:"location_id"`
}

type StockCatalog struct {
	ByID   map[string]StockDef
	Order  []string
	Digest string
}

type StockDef struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	BasePrice          int    `json:"base_price"`
	VolatilityPermille int    `json:"volatility_permille"`
	DividendPermille   int    `json:"dividend_permille"`
	TBill              bool   `json:"t_bill,omitempty"`
}

type LocationCatalog struct {
	ByID   map[string]LocationDef
	Order  []string
	Digest string
}

type LocationDef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"` // "square","work","bank","school","guild","dungeon","healer","home","market"
}

type FestivalCatalog struct {
	Cycle  []FestivalDef
	Digest string
}

type FestivalDef struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	HappinessBonus int    `json:"happiness_bonus"`
	PriceMultPermille int `json:"price_mult_permille"`
}

type DungeonCatalog struct {
	Floors []FloorDef
	Digest string
}

type FloorDef struct {
	Index      int            `json:"index"`
	Name       string         `json:"name"`
	Encounters []EncounterDef `json:"encounters"`
}

type EncounterDef struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DamageLow int    `json:"damage_low"`
	DamageHigh int   `json:"damage_high"`
	GoldLow   int    `json:"gold_low"`
	GoldHigh  int    `json:"gold_high"`
	Trap      bool   `json:"trap,omitempty"`
	Boss      bool   `json:"boss,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadKeyed(filepath.Join(configDir, "jobs.json"), &c.Jobs.ByID, &c.Jobs.Order, &c.Jobs.Digest, func(d JobDef) string { return d.ID }); err != nil {
		return nil, err
	}
	if err := loadKeyed(filepath.Join(configDir, "degrees.json"), &c.Degrees.ByID, &c.Degrees.Order, &c.Degrees.Digest, func(d DegreeDef) string { return d.ID }); err != nil {
		return nil, err
	}
	if err := loadKeyed(filepath.Join(configDir, "quests.json"), &c.Quests.ByID, &c.Quests.Order, &c.Quests.Digest, func(d QuestDef) string { return d.ID }); err != nil {
		return nil, err
	}
	if err := loadKeyed(filepath.Join(configDir, "chains.json"), &c.Chains.ByID, &c.Chains.Order, &c.Chains.Digest, func(d ChainDef) string { return d.ID }); err != nil {
		return nil, err
	}
	if err := loadKeyed(filepath.Join(configDir, "bounties.json"), &c.Bounties.ByID, &c.Bounties.Order, &c.Bounties.Digest, func(d BountyDef) string { return d.ID }); err != nil {
		return nil, err
	}
	if err := loadKeyed(filepath.Join(configDir, "stocks.json"), &c.Stocks.ByID, &c.Stocks.Order, &c.Stocks.Digest, func(d StockDef) string { return d.ID }); err != nil {
		return nil, err
	}
	if err := loadKeyed(filepath.Join(configDir, "locations.json"), &c.Locations.ByID, &c.Locations.Order, &c.Locations.Digest, func(d LocationDef) string { return d.ID }); err != nil {
		return nil, err
	}
	if err := loadFestivals(filepath.Join(configDir, "festivals.json"), &c.Festivals); err != nil {
		return nil, err
	}
	if err := loadDungeon(filepath.Join(configDir, "dungeon.json"), &c.Dungeon); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadKeyed[T any](path string, byID *map[string]T, order *[]string, digest *string, key func(T) string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	*digest = sha256Hex(raw)

	var defs []T
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	*byID = make(map[string]T, len(defs))
	*order = make([]string, 0, len(defs))
	for _, d := range defs {
		id := key(d)
		if id == "" {
			return fmt.Errorf("%s: empty id", filepath.Base(path))
		}
		if _, dup := (*byID)[id]; dup {
			return fmt.Errorf("%s: duplicate id %q", filepath.Base(path), id)
		}
		(*byID)[id] = d
		*order = append(*order, id)
	}
	return nil
}

func loadFestivals(path string, out *FestivalCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	if err := json.Unmarshal(raw, &out.Cycle); err != nil {
		return fmt.Errorf("festivals.json: %w", err)
	}
	if len(out.Cycle) != 4 {
		return fmt.Errorf("festivals.json: want 4 festivals in the cycle, got %d", len(out.Cycle))
	}
	return nil
}

func loadDungeon(path string, out *DungeonCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)
	if err := json.Unmarshal(raw, &out.Floors); err != nil {
		return fmt.Errorf("dungeon.json: %w", err)
	}
	for _, f := range out.Floors {
		bosses := 0
		for _, e := range f.Encounters {
			if e.Boss {
				bosses++
			}
		}
		if bosses != 1 {
			return fmt.Errorf("dungeon.json: floor %d wants exactly one boss, got %d", f.Index, bosses)
		}
	}
	return nil
}

// validate cross-checks id references between catalogs.
func (c *Catalogs) validate() error {
	loc := func(id, where string) error {
		if _, ok := c.Locations.ByID[id]; !ok {
			return fmt.Errorf("%s: unknown location id %q", where, id)
		}
		return nil
	}
	for id, j := range c.Jobs.ByID {
		if err := loc(j.LocationID, "jobs.json "+id); err != nil {
			return err
		}
		for _, d := range j.Requires.Degrees {
			if _, ok := c.Degrees.ByID[d]; !ok {
				return fmt.Errorf("jobs.json %s: unknown degree %q", id, d)
			}
		}
	}
	for id, d := range c.Degrees.ByID {
		for _, p := range d.Prereqs {
			if _, ok := c.Degrees.ByID[p]; !ok {
				return fmt.Errorf("degrees.json %s: unknown prereq %q", id, p)
			}
		}
	}
	for id, q := range c.Quests.ByID {
		for _, o := range q.Objectives {
			if err := loc(o.LocationID, "quests.json "+id); err != nil {
				return err
			}
		}
	}
	for id, ch := range c.Chains.ByID {
		for _, s := range ch.Steps {
			for _, o := range s.Objectives {
				if err := loc(o.LocationID, "chains.json "+id); err != nil {
					return err
				}
			}
			for _, choice := range s.Choices {
				if choice.NextIndex >= len(ch.Steps) {
					return fmt.Errorf("chains.json %s: choice %q next_index %d out of range", id, choice.ID, choice.NextIndex)
				}
			}
		}
	}
	for id, b := range c.Bounties.ByID {
		if err := loc(b.LocationID, "bounties.json "+id); err != nil {
			return err
		}
	}
	return nil
}
