// Package snapshot writes point-in-time copies of a running game to disk as
// a JSON header line followed by a gob body, zstd-compressed. The V1 structs
// are a stable disk format decoupled from the live simulation types.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
)

type Header struct {
	Version  int    `json:"version"`
	RoomCode string `json:"room_code"`
	Week     int    `json:"week"`
}

type GameV1 struct {
	Header Header `json:"header"`

	Seed     int64  `json:"seed"`
	RNGState uint64 `json:"rng_state"`

	Goals GoalsV1 `json:"goals"`

	World   WorldV1    `json:"world"`
	Players []PlayerV1 `json:"players"`

	Counters CountersV1 `json:"counters"`
}

type GoalsV1 struct {
	Wealth      int  `json:"wealth"`
	Happiness   int  `json:"happiness"`
	Education   int  `json:"education"`
	Career      int  `json:"career"`
	Adventure   int  `json:"adventure"`
	AdventureOn bool `json:"adventure_on"`
}

type WorldV1 struct {
	Week            int    `json:"week"`
	EconomyPermille int    `json:"economy_permille"`
	Phase           string `json:"phase"`
	WinnerID        string `json:"winner_id,omitempty"`

	WeatherType       string `json:"weather_type"`
	WeatherWeeksLeft  int    `json:"weather_weeks_left"`
	WeatherWageMult   int    `json:"weather_wage_mult_permille"`
	WeatherPriceMult  int    `json:"weather_price_mult_permille"`
	WeatherTheftMult  int    `json:"weather_theft_mult_permille"`

	Stocks []StockV1 `json:"stocks"`
}

type StockV1 struct {
	ID      string `json:"id"`
	Price   int    `json:"price"`
	History []int  `json:"history,omitempty"`
}

type PlayerV1 struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Portrait int    `json:"portrait"`

	Gold        int            `json:"gold"`
	Savings     int            `json:"savings"`
	Investments int            `json:"investments"`
	LoanAmount  int            `json:"loan_amount"`
	LoanWeeks   int            `json:"loan_weeks_left"`
	Shares      map[string]int `json:"shares,omitempty"`

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

	Quests []QuestV1 `json:"quests,omitempty"`
	Chains []ChainV1 `json:"chains,omitempty"`

	BountyID   string `json:"bounty_id,omitempty"`
	BountyWeek int    `json:"bounty_week,omitempty"`

	FloorsCleared int `json:"floors_cleared"`

	Curses   []CurseV1      `json:"curses,omitempty"`
	Perks    map[string]int `json:"perks,omitempty"`
	Durables []string       `json:"durables,omitempty"`

	Housing     string `json:"housing"`
	RentArrears int    `json:"rent_arrears"`

	IsAI         bool `json:"is_ai"`
	AIDifficulty int  `json:"ai_difficulty,omitempty"`
	Eliminated   bool `json:"eliminated"`
	TurnEnded    bool `json:"turn_ended"`
}

type QuestV1 struct {
	QuestID        string   `json:"quest_id"`
	State          string   `json:"state"`
	ObjectivesDone []string `json:"objectives_done,omitempty"`
}

type ChainV1 struct {
	ChainID        string   `json:"chain_id"`
	State          string   `json:"state"`
	StepIndex      int      `json:"step_index"`
	StepsDone      int      `json:"steps_done"`
	ObjectivesDone []string `json:"objectives_done,omitempty"`
	RewardMult     int      `json:"reward_mult_permille"`
	RiskMult       int      `json:"risk_mult_permille"`
	TimeMult       int      `json:"time_mult_permille"`
	CooldownWeeks  int      `json:"cooldown_weeks,omitempty"`
}

type CurseV1 struct {
	HexID      string `json:"hex_id"`
	CasterID   string `json:"caster_id"`
	CasterName string `json:"caster_name"`
	Effect     string `json:"effect"`
	Magnitude  int    `json:"magnitude"`
	WeeksLeft  int    `json:"weeks_left"`
}

type CountersV1 struct {
	NextPlayerNum int `json:"next_player_num"`
	NextEventNum  int `json:"next_event_num"`
}

func WriteSnapshot(path string, snap GameV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 64*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (GameV1, error) {
	var snap GameV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)

	// Header line is advisory; the gob body carries it too.
	_, _ = br.ReadBytes('\n')

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	return snap, nil
}

// LatestPath returns the newest snapshot file under dir by week number
// embedded in the file name (week_000123.snap). Empty string when none.
func LatestPath(dir string) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".snap") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1])
}

// FileName is the canonical snapshot file name for a week.
func FileName(week int) string {
	return fmt.Sprintf("week_%06d.snap", week)
}
