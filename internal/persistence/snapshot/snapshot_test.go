package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func sample(week int) GameV1 {
	return GameV1{
		Header:   Header{Version: 1, RoomCode: "babab-babab-babab", Week: week},
		Seed:     42,
		RNGState: 0xdeadbeef,
		Goals:    GoalsV1{Wealth: 2000, Happiness: 80, Education: 30, Career: 80},
		World: WorldV1{
			Week:            week,
			EconomyPermille: 1040,
			Phase:           "playing",
			WeatherType:     "RAIN",
			Stocks:          []StockV1{{ID: "IRON", Price: 55, History: []int{50, 52, 55}}},
		},
		Players: []PlayerV1{{
			ID: "P1", Name: "rosa", Gold: 120, Savings: 40,
			Shares:   map[string]int{"IRON": 3},
			Degrees:  []string{"letters"},
			Quests:   []QuestV1{{QuestID: "rat_cellar", State: "accepted", ObjectivesDone: []string{"rat_cellar_traps"}}},
			BountyID: "bounty_boar", BountyWeek: week,
		}},
		Counters: CountersV1{NextPlayerNum: 1, NextEventNum: 7},
	}
}

func TestSnapshot_FileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName(12))

	if err := WriteSnapshot(path, sample(12)); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	if got.Header != sample(12).Header || got.Seed != 42 || got.RNGState != 0xdeadbeef {
		t.Fatalf("header/seed = %+v seed=%d", got.Header, got.Seed)
	}
	if got.World.EconomyPermille != 1040 || got.World.WeatherType != "RAIN" {
		t.Fatalf("world = %+v", got.World)
	}
	if len(got.Players) != 1 {
		t.Fatalf("players = %d", len(got.Players))
	}
	p := got.Players[0]
	if p.Shares["IRON"] != 3 || len(p.Quests) != 1 || p.Quests[0].ObjectivesDone[0] != "rat_cellar_traps" {
		t.Fatalf("player = %+v", p)
	}
	if p.BountyID != "bounty_boar" || p.BountyWeek != 12 {
		t.Fatalf("bounty = %s/%d", p.BountyID, p.BountyWeek)
	}
	if got.Counters.NextEventNum != 7 {
		t.Fatalf("counters = %+v", got.Counters)
	}
}

func TestSnapshot_HeaderLineIsReadable(t *testing.T) {
	// The first line of the decompressed stream is a plain JSON header so
	// tooling can inspect a snapshot without decoding the gob body. The
	// reader must tolerate and skip it.
	dir := t.TempDir()
	path := filepath.Join(dir, FileName(3))
	if err := WriteSnapshot(path, sample(3)); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Header.Week != 3 {
		t.Fatalf("week = %d", got.Header.Week)
	}
}

func TestLatestPath(t *testing.T) {
	dir := t.TempDir()
	if got := LatestPath(dir); got != "" {
		t.Fatalf("empty dir returned %q", got)
	}

	for _, week := range []int{3, 12, 7} {
		if err := WriteSnapshot(filepath.Join(dir, FileName(week)), sample(week)); err != nil {
			t.Fatalf("write week %d: %v", week, err)
		}
	}
	// A stray file must not win.
	if err := os.WriteFile(filepath.Join(dir, "zzz-notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	want := filepath.Join(dir, FileName(12))
	if got := LatestPath(dir); got != want {
		t.Fatalf("latest = %q, want %q", got, want)
	}
}

func TestReadSnapshot_Missing(t *testing.T) {
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "week_000001.snap")); err == nil {
		t.Fatal("expected an error for a missing file")
	}
}
