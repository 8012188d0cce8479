package game

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"greenvale.gg/internal/persistence/snapshot"
	"greenvale.gg/internal/protocol"
	"greenvale.gg/internal/sim/catalogs"
	"greenvale.gg/internal/sim/tuning"
)

type GameConfig struct {
	RoomCode string
	HostName string
	Seed     int64
}

type JoinRequest struct {
	Name string
	Out  chan []byte
	Resp chan JoinResponse
}

// AttachRequest reconnects a previously joined player by resume token.
type AttachRequest struct {
	ResumeToken string
	Out         chan []byte
	Resp        chan JoinResponse
}

type JoinResponse struct {
	OK      bool
	Code    string
	Welcome protocol.WelcomeMsg
}

// ActionEnvelope is one forwarded action waiting in the inbox.
type ActionEnvelope struct {
	PlayerID  string
	RequestID string
	Act       protocol.ActMsg
	Resp      chan protocol.AckMsg
}

type clientState struct {
	Out chan []byte
}

// Game is the single-threaded authoritative simulation. All state is owned
// by the loop goroutine; transports talk to it through the channels below.
type Game struct {
	cfg  GameConfig
	tune tuning.Tuning
	cats *catalogs.Catalogs

	rng     *Rand
	world   *WorldState
	players map[string]*Player
	order   []string

	clients map[string]*clientState

	inbox  chan ActionEnvelope
	join   chan JoinRequest
	attach chan AttachRequest
	leave  chan string
	stop   chan struct{}

	nextPlayerNum int
	nextEventNum  int
	events        []protocol.Event

	// Set when any reducer mutated state since the last broadcast.
	dirty bool

	weekLogger  WeekLogger
	auditLogger AuditLogger

	// Optional snapshot sink (may be nil). Snapshot writing is off-thread.
	snapshotSink chan<- snapshot.GameV1
	lastSnapWeek int

	// Published by the loop for transports and metrics; never read by
	// reducers.
	connCount atomic.Int64
	weekNow   atomic.Int64
}

// ConnectedClients reports how many peers currently hold a live channel.
func (g *Game) ConnectedClients() int { return int(g.connCount.Load()) }

// CurrentWeek is the last week the loop published.
func (g *Game) CurrentWeek() int { return int(g.weekNow.Load()) }

type WeekLogger interface {
	WriteWeek(entry WeekLogEntry) error
}

type AuditLogger interface {
	WriteAudit(entry AuditEntry) error
}

// WeekLogEntry records everything applied during one loop step, with the
// digest afterwards, so a replay can re-verify the whole session.
type WeekLogEntry struct {
	Week    int              `json:"week"`
	Joins   []string         `json:"joins,omitempty"`
	Leaves  []string         `json:"leaves,omitempty"`
	Actions []RecordedAction `json:"actions,omitempty"`
	Digest  string           `json:"digest"`
}

type RecordedAction struct {
	PlayerID   string          `json:"player_id"`
	ActionType string          `json:"action_type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	OK         bool            `json:"ok"`
	Code       string          `json:"code,omitempty"`
}

type AuditEntry struct {
	Week   int    `json:"week"`
	Actor  string `json:"actor"`
	Action string `json:"action"`
	OK     bool   `json:"ok"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

func New(cfg GameConfig, tune tuning.Tuning, cats *catalogs.Catalogs) *Game {
	g := &Game{
		cfg:     cfg,
		tune:    tune,
		cats:    cats,
		rng:     NewRand(cfg.Seed),
		players: map[string]*Player{},
		clients: map[string]*clientState{},
		inbox:   make(chan ActionEnvelope, 256),
		join:    make(chan JoinRequest, 8),
		attach:  make(chan AttachRequest, 8),
		leave:   make(chan string, 8),
		stop:    make(chan struct{}),
	}
	g.world = g.freshWorld()
	return g
}

func (g *Game) freshWorld() *WorldState {
	w := &WorldState{
		Week:            1,
		EconomyPermille: 1000,
		Weather:         clearWeather(),
		Stocks:          map[string]*StockState{},
		Phase:           PhaseLobby,
	}
	for _, id := range g.cats.Stocks.Order {
		def := g.cats.Stocks.ByID[id]
		w.Stocks[id] = &StockState{Price: def.BasePrice, History: []int{def.BasePrice}}
	}
	return w
}

func (g *Game) SetWeekLogger(l WeekLogger)                   { g.weekLogger = l }
func (g *Game) SetAuditLogger(l AuditLogger)                 { g.auditLogger = l }
func (g *Game) SetSnapshotSink(ch chan<- snapshot.GameV1)    { g.snapshotSink = ch }

func (g *Game) Inbox() chan<- ActionEnvelope { return g.inbox }
func (g *Game) Join() chan<- JoinRequest     { return g.join }
func (g *Game) Attach() chan<- AttachRequest { return g.attach }
func (g *Game) Leave() chan<- string         { return g.leave }

// Run owns the state until ctx is canceled or Stop is called.
func (g *Game) Run(ctx context.Context) error {
	hz := g.tune.LoopHz
	if hz <= 0 {
		hz = 4
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-g.stop:
			return nil
		case req := <-g.join:
			pendingJoins = append(pendingJoins, req)
		case req := <-g.attach:
			g.handleAttach(req)
		case id := <-g.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-g.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			g.step(pendingJoins, pendingLeaves, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
		}
	}
}

func (g *Game) Stop() { close(g.stop) }

// step applies queued joins, leaves and actions in arrival order, then
// broadcasts when anything changed.
func (g *Game) step(joins []JoinRequest, leaves []string, actions []ActionEnvelope) {
	recordedLeaves := make([]string, 0, len(leaves))
	for _, id := range leaves {
		if _, ok := g.clients[id]; ok {
			delete(g.clients, id)
			recordedLeaves = append(recordedLeaves, id)
		}
	}
	recordedJoins := make([]string, 0, len(joins))
	for _, req := range joins {
		resp := g.joinPlayer(req.Name, req.Out)
		if req.Resp != nil {
			req.Resp <- resp
		}
		if resp.OK {
			recordedJoins = append(recordedJoins, resp.Welcome.PlayerID)
		}
	}

	recorded := make([]RecordedAction, 0, len(actions))
	for _, env := range actions {
		res := g.Apply(env.PlayerID, env.Act.ActionType, env.Act.Payload)
		recorded = append(recorded, RecordedAction{
			PlayerID:   env.PlayerID,
			ActionType: env.Act.ActionType,
			Payload:    env.Act.Payload,
			OK:         res.OK,
			Code:       res.Code,
		})
		if env.Resp != nil {
			env.Resp <- protocol.AckMsg{
				Type:            protocol.TypeAck,
				ProtocolVersion: protocol.Version,
				RequestID:       env.RequestID,
				OK:              res.OK,
				Code:            res.Code,
				Message:         res.Message,
				Week:            g.world.Week,
			}
		}
	}

	g.advanceTurns()

	if g.dirty || len(recordedJoins) > 0 || len(recordedLeaves) > 0 {
		digest := g.broadcastState()
		// Every broadcast gets a log entry, even when nothing came through
		// the inbox; AI turns and week rollovers must be replayable too.
		if g.weekLogger != nil {
			_ = g.weekLogger.WriteWeek(WeekLogEntry{
				Week:    g.world.Week,
				Joins:   recordedJoins,
				Leaves:  recordedLeaves,
				Actions: recorded,
				Digest:  digest,
			})
		}
		g.maybeSnapshot()
		g.dirty = false
	}

	g.connCount.Store(int64(len(g.clients)))
	g.weekNow.Store(int64(g.world.Week))
}

// StepOnce advances one loop step synchronously. For replays and tests.
func (g *Game) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) string {
	g.step(joins, leaves, actions)
	return g.StateDigest()
}

func (g *Game) joinPlayer(name string, out chan []byte) JoinResponse {
	if g.world.Phase != PhaseLobby {
		return JoinResponse{Code: protocol.ErrConflict}
	}
	if len(g.players) >= g.tune.MaxPlayers {
		return JoinResponse{Code: protocol.ErrRoomFull}
	}
	if name == "" {
		name = "drifter"
	}
	p := g.newPlayer(name, false, 0)
	if out != nil {
		g.clients[p.ID] = &clientState{Out: out}
	}
	token := fmt.Sprintf("resume_%s_%d", g.cfg.RoomCode, time.Now().UnixNano())
	p.resumeToken = token
	g.pushEvent("join", p.ID, name+" joined the town")
	g.dirty = true
	return JoinResponse{OK: true, Welcome: g.welcomeFor(p, token)}
}

func (g *Game) handleAttach(req AttachRequest) {
	var found *Player
	for _, id := range g.order {
		p := g.players[id]
		if p.resumeToken != "" && p.resumeToken == req.ResumeToken {
			found = p
			break
		}
	}
	if found == nil || req.Out == nil {
		if req.Resp != nil {
			req.Resp <- JoinResponse{Code: protocol.ErrRoomNotFound}
		}
		return
	}
	g.clients[found.ID] = &clientState{Out: req.Out}
	token := fmt.Sprintf("resume_%s_%d", g.cfg.RoomCode, time.Now().UnixNano())
	found.resumeToken = token
	resp := JoinResponse{OK: true, Welcome: g.welcomeFor(found, token)}
	if req.Resp != nil {
		req.Resp <- resp
	}
	g.dirty = true
}

func (g *Game) welcomeFor(p *Player, token string) protocol.WelcomeMsg {
	return protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        p.ID,
		RoomCode:        g.cfg.RoomCode,
		ResumeToken:     token,
		Seed:            g.cfg.Seed,
		Catalogs: protocol.CatalogDigests{
			Jobs:      g.cats.Jobs.Digest,
			Degrees:   g.cats.Degrees.Digest,
			Quests:    g.cats.Quests.Digest,
			Chains:    g.cats.Chains.Digest,
			Bounties:  g.cats.Bounties.Digest,
			Stocks:    g.cats.Stocks.Digest,
			Locations: g.cats.Locations.Digest,
			Dungeon:   g.cats.Dungeon.Digest,
			Tuning:    tuning.Digest(g.tune),
		},
	}
}

var playerColors = []string{"#c0443e", "#3e6fc0", "#3ec06a", "#c0a23e"}

func (g *Game) newPlayer(name string, isAI bool, difficulty int) *Player {
	g.nextPlayerNum++
	id := fmt.Sprintf("P%d", g.nextPlayerNum)
	s := g.tune.Start
	p := &Player{
		ID:               id,
		Name:             name,
		Color:            playerColors[(g.nextPlayerNum-1)%len(playerColors)],
		Gold:             s.Gold,
		Health:           s.MaxHealth,
		MaxHealth:        s.MaxHealth,
		Happiness:        s.Happiness,
		FoodLevel:        s.FoodLevel,
		Clothing:         100,
		Age:              s.Age,
		MaxDependability: 100,
		LocationID:       s.LocationID,
		TimeLeft:         g.tune.Turn.TimePerTurn,
		Housing:          "slums",
		IsAI:             isAI,
		AIDifficulty:     difficulty,
	}
	g.players[id] = p
	g.order = append(g.order, id)
	return p
}

// playerOrder returns player ids in join order. Reducers and the scheduler
// iterate this, never the map, so multi-player effects are replay stable.
func (g *Game) playerOrder() []string { return g.order }

func (g *Game) locationOfKind(kind string) string {
	for _, id := range g.cats.Locations.Order {
		if g.cats.Locations.ByID[id].Kind == kind {
			return id
		}
	}
	return ""
}

func (g *Game) bankLocation() string { return g.locationOfKind("bank") }

// pushEvent queues a one-shot notification for the next state broadcast.
// Ids are sequential so peers can dedupe dismissed ones.
func (g *Game) pushEvent(kind, playerID, text string) {
	g.nextEventNum++
	g.events = append(g.events, protocol.Event{
		ID:       fmt.Sprintf("ev%d", g.nextEventNum),
		Week:     g.world.Week,
		Kind:     kind,
		PlayerID: playerID,
		Text:     text,
	})
	const keep = 64
	if len(g.events) > keep {
		g.events = g.events[len(g.events)-keep:]
	}
}

func (g *Game) audit(actorID, actionType string, res Result) {
	if g.auditLogger == nil {
		return
	}
	_ = g.auditLogger.WriteAudit(AuditEntry{
		Week:   g.world.Week,
		Actor:  actorID,
		Action: actionType,
		OK:     res.OK,
		Code:   res.Code,
		Reason: res.Message,
	})
}

func (g *Game) maybeSnapshot() {
	if g.snapshotSink == nil {
		return
	}
	every := g.tune.SnapshotEveryWeeks
	if every <= 0 {
		every = 1
	}
	if g.world.Week == g.lastSnapWeek || g.world.Week%every != 0 {
		return
	}
	snap := g.ExportSnapshot()
	select {
	case g.snapshotSink <- snap:
		g.lastSnapWeek = g.world.Week
	default:
		// Drop if the sink is backed up.
	}
}
