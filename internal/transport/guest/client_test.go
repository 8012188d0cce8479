package guest

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"greenvale.gg/internal/protocol"
	"greenvale.gg/internal/sim/catalogs"
	"greenvale.gg/internal/sim/game"
	"greenvale.gg/internal/sim/tuning"
	"greenvale.gg/internal/transport/ws"
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

func startTestHost(t *testing.T) (*game.Game, string) {
	t.Helper()
	cats, err := catalogs.Load(filepath.Join(findRepoRoot(t), "configs"))
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	g := game.New(game.GameConfig{RoomCode: "babab-babab-babab", HostName: "host", Seed: 3}, tuning.Defaults(), cats)

	ctx, cancel := context.WithCancel(context.Background())
	go g.Run(ctx)
	t.Cleanup(cancel)

	srv := httptest.NewServer(ws.NewServer(g, log.New(os.Stderr, "ws ", 0)).Handler())
	t.Cleanup(srv.Close)
	return g, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startGame(t *testing.T, g *game.Game) {
	t.Helper()
	resp := make(chan protocol.AckMsg, 1)
	g.Inbox() <- game.ActionEnvelope{
		Act:  protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version, ActionType: game.ActNewGame},
		Resp: resp,
	}
	select {
	case ack := <-resp:
		if !ack.OK {
			t.Fatalf("new game: %+v", ack)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("new game timed out")
	}
}

// Concurrent senders must share the connection without corrupting frames;
// every request still gets its own ack.
func TestClient_ConcurrentSends(t *testing.T) {
	g, url := startTestHost(t)
	c, err := Dial(url, "rosa", "", log.New(os.Stderr, "guest ", 0))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	startGame(t, g)

	const senders, perSender = 4, 25
	var wg sync.WaitGroup
	errs := make(chan error, senders*perSender)
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perSender; j++ {
				if _, err := c.Send(game.ActRest, nil); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("send: %v", err)
	}
}

// silentHost completes the handshake, reads one ACT, then hands the
// connection to after without ever acking.
func silentHost(t *testing.T, after func(*websocket.Conn)) string {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		var hello protocol.HelloMsg
		if err := conn.ReadJSON(&hello); err != nil {
			return
		}
		welcome := protocol.WelcomeMsg{
			Type:            protocol.TypeWelcome,
			ProtocolVersion: protocol.Version,
			PlayerID:        "P1",
			RoomCode:        "babab-babab-babab",
			ResumeToken:     "resume_test_1",
		}
		if err := conn.WriteJSON(welcome); err != nil {
			return
		}
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		after(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// A request the host never answers must still resolve as a failure when the
// connection dies, instead of leaving the caller blocked.
func TestClient_DisconnectResolvesPendingSend(t *testing.T) {
	url := silentHost(t, func(conn *websocket.Conn) { conn.Close() })
	c, err := Dial(url, "rosa", "", log.New(os.Stderr, "guest ", 0))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	type result struct {
		ack Ack
		err error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		r.ack, r.err = c.Send(game.ActRest, json.RawMessage(nil))
		done <- r
	}()

	select {
	case r := <-done:
		if r.err == nil && r.ack.OK {
			t.Fatalf("orphaned request reported success: %+v", r.ack)
		}
		if r.err == nil && r.ack.Code != protocol.ErrTimeout {
			t.Fatalf("ack code = %q, want %q", r.ack.Code, protocol.ErrTimeout)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("send blocked past the disconnect")
	}
	if c.Connected() {
		t.Fatal("client still reports connected")
	}
}

func TestClient_SendAfterCloseFailsFast(t *testing.T) {
	_, url := startTestHost(t)
	c, err := Dial(url, "rosa", "", log.New(os.Stderr, "guest ", 0))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c.Close()

	if _, err := c.Send(game.ActRest, nil); err != ErrDisconnected {
		t.Fatalf("send after close = %v, want %v", err, ErrDisconnected)
	}
}
