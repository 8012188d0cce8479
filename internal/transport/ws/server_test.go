package ws

import (
	"context"
	"log"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"greenvale.gg/internal/protocol"
	"greenvale.gg/internal/sim/catalogs"
	"greenvale.gg/internal/sim/game"
	"greenvale.gg/internal/sim/tuning"
	"greenvale.gg/internal/transport/guest"
)

func findRepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not find repo root from %s", dir)
		}
		dir = parent
	}
}

// startTestHost runs a full host loop behind an HTTP test server and returns
// the game plus the ws endpoint URL.
func startTestHost(t *testing.T) (*game.Game, string) {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join(findRepoRoot(t), "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	g := game.New(game.GameConfig{RoomCode: "babab-babab-babab", HostName: "host", Seed: 7}, tuning.Defaults(), cats)

	ctx, cancel := context.WithCancel(context.Background())
	go g.Run(ctx)
	t.Cleanup(cancel)

	logger := log.New(os.Stderr, "ws ", 0)
	srv := httptest.NewServer(NewServer(g, logger).Handler())
	t.Cleanup(srv.Close)
	return g, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// hostAction injects a host-side action the way cmd/server does, through the
// inbox, and waits for its ack.
func hostAction(t *testing.T, g *game.Game, actionType string) protocol.AckMsg {
	t.Helper()
	resp := make(chan protocol.AckMsg, 1)
	g.Inbox() <- game.ActionEnvelope{
		Act:  protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, ActionType: actionType},
		Resp: resp,
	}
	select {
	case ack := <-resp:
		return ack
	case <-time.After(5 * time.Second):
		t.Fatal("host action timed out")
		return protocol.AckMsg{}
	}
}

func TestServer_GuestJoinAndAct(t *testing.T) {
	g, url := startTestHost(t)
	logger := log.New(os.Stderr, "guest ", 0)

	c, err := guest.Dial(url, "rosa", "", logger)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if c.PlayerID() == "" || c.ResumeToken() == "" {
		t.Fatalf("welcome incomplete: id=%q token=%q", c.PlayerID(), c.ResumeToken())
	}
	if c.Seed() != 7 || c.RoomCode() != "babab-babab-babab" {
		t.Fatalf("welcome = seed %d room %s", c.Seed(), c.RoomCode())
	}

	// A second seat keeps the week open while rosa ends her turn.
	c2, err := guest.Dial(url, "milo", "", logger)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer c2.Close()

	if ack := hostAction(t, g, game.ActNewGame); !ack.OK {
		t.Fatalf("new game: %+v", ack)
	}

	// The guest turn-in path: allowed action, applied by the loop, acked.
	ack, err := c.Send(game.ActEndTurn, nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !ack.OK {
		t.Fatalf("end turn rejected: %+v", ack)
	}
	// Ending an already-ended turn is refused with a real code.
	ack, err = c.Send(game.ActEndTurn, nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if ack.OK || ack.Code != protocol.ErrConflict {
		t.Fatalf("second end turn = %+v", ack)
	}
}

func TestServer_HostOnlyActionsAreRefusedAtTheDoor(t *testing.T) {
	g, url := startTestHost(t)
	c, err := guest.Dial(url, "rosa", "", log.New(os.Stderr, "guest ", 0))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if ack := hostAction(t, g, game.ActNewGame); !ack.OK {
		t.Fatalf("new game: %+v", ack)
	}
	week := g.CurrentWeek()

	for _, actionType := range []string{game.ActEndWeek, game.ActModifyGold, game.ActNewGame} {
		ack, err := c.Send(actionType, nil)
		if err != nil {
			t.Fatalf("send %s: %v", actionType, err)
		}
		if ack.OK || ack.Code != protocol.ErrNoPermission {
			t.Fatalf("%s = %+v, want %s", actionType, ack, protocol.ErrNoPermission)
		}
	}
	ack, err := c.Send("teleport", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if ack.OK || ack.Code != protocol.ErrBadRequest {
		t.Fatalf("unknown action = %+v", ack)
	}

	// None of the refused actions reached the loop.
	time.Sleep(300 * time.Millisecond)
	if got := g.CurrentWeek(); got != week {
		t.Fatalf("week moved: %d -> %d", week, got)
	}
}

func TestServer_StateReachesGuests(t *testing.T) {
	g, url := startTestHost(t)
	c, err := guest.Dial(url, "rosa", "", log.New(os.Stderr, "guest ", 0))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	if ack := hostAction(t, g, game.ActNewGame); !ack.OK {
		t.Fatalf("new game: %+v", ack)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		_, phase, state := c.Mirror()
		if phase == "playing" && len(state) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("mirror never reached playing: phase=%q", phase)
		}
		time.Sleep(50 * time.Millisecond)
	}
	if c.Digest() == "" {
		t.Fatal("state carried no digest")
	}
}

func TestServer_ResumeTokenReattach(t *testing.T) {
	g, url := startTestHost(t)
	logger := log.New(os.Stderr, "guest ", 0)

	c, err := guest.Dial(url, "rosa", "", logger)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	id, token := c.PlayerID(), c.ResumeToken()
	if ack := hostAction(t, g, game.ActNewGame); !ack.OK {
		t.Fatalf("new game: %+v", ack)
	}
	c.Close()

	// Reconnecting with the token resumes the same seat even though the
	// lobby is closed.
	c2, err := guest.Dial(url, "rosa", token, logger)
	if err != nil {
		t.Fatalf("redial: %v", err)
	}
	defer c2.Close()
	if c2.PlayerID() != id {
		t.Fatalf("seat changed: %s -> %s", id, c2.PlayerID())
	}
	if c2.ResumeToken() == token {
		t.Fatal("resume token was not rotated")
	}

	// Without a token the closed lobby turns the join away.
	if _, err := guest.Dial(url, "late", "", logger); err == nil {
		t.Fatal("fresh join accepted after game start")
	}
}

func TestServer_RejectsBadHello(t *testing.T) {
	_, url := startTestHost(t)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	bad := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: "0.9", PlayerName: "rosa"}
	if err := conn.WriteJSON(bad); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err == nil {
		t.Fatalf("version mismatch accepted: %+v", welcome)
	}
}
