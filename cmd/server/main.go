// Command server hosts one game room: it runs the authoritative loop,
// serves the websocket endpoint guests join through, and optionally
// advertises the room on a registry hub.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	persistlog "greenvale.gg/internal/persistence/log"
	"greenvale.gg/internal/persistence/save"
	"greenvale.gg/internal/persistence/snapshot"
	"greenvale.gg/internal/protocol"
	"greenvale.gg/internal/sim/catalogs"
	"greenvale.gg/internal/sim/game"
	"greenvale.gg/internal/sim/tuning"
	"greenvale.gg/internal/transport/registry"
	"greenvale.gg/internal/transport/ws"
)

// envConfig overrides flag defaults; flags still win when set explicitly.
type envConfig struct {
	Addr        string `env:"GREENVALE_ADDR"`
	ConfigDir   string `env:"GREENVALE_CONFIGS"`
	DataDir     string `env:"GREENVALE_DATA"`
	RegistryURL string `env:"GREENVALE_REGISTRY_URL"`
	HostName    string `env:"GREENVALE_HOST_NAME"`
	PublicHost  string `env:"GREENVALE_PUBLIC_HOST"`
}

func main() {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		log.Fatalf("parse env: %v", err)
	}

	var (
		addr        = flag.String("addr", orDefault(ec.Addr, ":7654"), "http listen address")
		hostName    = flag.String("host_name", orDefault(ec.HostName, "host"), "host player name shown in listings")
		seed        = flag.Int64("seed", time.Now().UnixNano(), "game seed (fresh games only)")
		configDir   = flag.String("configs", orDefault(ec.ConfigDir, "./configs"), "config directory")
		dataDir     = flag.String("data", orDefault(ec.DataDir, "./data"), "runtime data directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		registryURL = flag.String("registry", ec.RegistryURL, "registry hub ws url (empty to stay unlisted)")
		publicHost  = flag.String("public_host", ec.PublicHost, "externally reachable ip:port for the room code (default: first non-loopback ip + listen port)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", false, "resume from the newest snapshot in the room's data dir")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}

	hostAddr := strings.TrimSpace(*publicHost)
	if hostAddr == "" {
		hostAddr = guessPublicAddr(*addr)
	}
	roomCode, err := protocol.EncodeRoomCode(hostAddr)
	if err != nil {
		logger.Fatalf("room code for %s: %v", hostAddr, err)
	}

	roomDir := filepath.Join(*dataDir, "rooms", roomCode)
	_ = os.MkdirAll(filepath.Join(roomDir, "snapshots"), 0o755)

	g := game.New(game.GameConfig{RoomCode: roomCode, HostName: *hostName, Seed: *seed}, tune, cats)

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = snapshot.LatestPath(filepath.Join(roomDir, "snapshots"))
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			logger.Fatalf("read snapshot: %v", err)
		}
		g.ResumeFromSnapshot(snap)
		logger.Printf("resumed from snapshot=%s week=%d", filepath.Base(snapshotToLoad), snap.Header.Week)
	}

	ctx, cancel := signalContext()
	defer cancel()

	weekLog := persistlog.NewWeekLogger(roomDir)
	auditLog := persistlog.NewAuditLogger(roomDir)
	defer weekLog.Close()
	defer auditLog.Close()
	g.SetWeekLogger(weekLog)
	g.SetAuditLogger(auditLog)

	saves, err := save.Open(filepath.Join(roomDir, "saves.db"))
	if err != nil {
		logger.Fatalf("open save store: %v", err)
	}
	defer saves.Close()

	// Snapshot writer. Each week boundary lands on disk twice: a snapshot
	// file for exact resume, and a save slot for the browser.
	snapCh := make(chan snapshot.GameV1, 2)
	g.SetSnapshotSink(snapCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				path := filepath.Join(roomDir, "snapshots", snapshot.FileName(snap.Header.Week))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					logger.Printf("snapshot write: %v", err)
				}
				if err := putSaveSlot(saves, roomCode, snap); err != nil {
					logger.Printf("save slot write: %v", err)
				}
			}
		}
	}()

	go func() {
		if err := g.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("game stopped: %v", err)
		}
	}()

	// Registry advertisement (optional).
	if strings.TrimSpace(*registryURL) != "" {
		listing := protocol.Listing{
			RoomCode:   roomCode,
			HostName:   *hostName,
			MaxPlayers: tune.MaxPlayers,
			Goals: protocol.GoalsListing{
				Wealth:    tune.Goals.Wealth,
				Happiness: tune.Goals.Happiness,
				Education: tune.Goals.Education,
				Career:    tune.Goals.Career,
			},
			CreatedAt: time.Now().Unix(),
		}
		rc := registry.NewClient(*registryURL, listing, logger)
		go rc.Run()
		defer rc.Close()
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					rc.SetPlayerCount(g.ConnectedClients())
				}
			}
		}()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprintf(rw, "# HELP greenvale_week Current game week.\n")
		fmt.Fprintf(rw, "# TYPE greenvale_week gauge\n")
		fmt.Fprintf(rw, "greenvale_week{room=%q} %d\n", roomCode, g.CurrentWeek())
		fmt.Fprintf(rw, "# HELP greenvale_clients Connected peers.\n")
		fmt.Fprintf(rw, "# TYPE greenvale_clients gauge\n")
		fmt.Fprintf(rw, "greenvale_clients{room=%q} %d\n", roomCode, g.ConnectedClients())
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(g, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("room %s listening on %s (join address %s)", roomCode, *addr, hostAddr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func putSaveSlot(store *save.Store, slot string, snap snapshot.GameV1) error {
	blob, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(snap.Players))
	for _, p := range snap.Players {
		names = append(names, p.Name)
	}
	return store.Put(save.NewRecord(slot, snap.Header.Week, names, blob))
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

// guessPublicAddr picks the first non-loopback IPv4 plus the listen port, so
// the printed room code works for peers on the same network.
func guessPublicAddr(listenAddr string) string {
	_, port, err := net.SplitHostPort(listenAddr)
	if err != nil || port == "" {
		port = "7654"
	}
	addrs, err := net.InterfaceAddrs()
	if err == nil {
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok || ipNet.IP.IsLoopback() {
				continue
			}
			if ip4 := ipNet.IP.To4(); ip4 != nil {
				return net.JoinHostPort(ip4.String(), port)
			}
		}
	}
	return net.JoinHostPort("127.0.0.1", port)
}
