package game

import (
	"encoding/json"
	"fmt"
	"math"

	"greenvale.gg/internal/protocol"
)

// One verb per mutating operation. The set is closed: the dispatcher and the
// classification sets are checked against each other at init and in tests,
// so a verb can never be dispatchable but unclassified or vice versa.
const (
	ActModifyGold      = "modifyGold"
	ActModifyHealth    = "modifyHealth"
	ActModifyHappiness = "modifyHappiness"

	ActEatMeal     = "eatMeal"
	ActBuyClothing = "buyClothing"
	ActRest        = "rest"
	ActMovePlayer  = "movePlayer"
	ActPayRent     = "payRent"
	ActEndTurn     = "endTurn"

	ActWorkShift = "workShift"
	ActSetJob    = "setJob"
	ActQuitJob   = "quitJob"

	ActStudyDegree    = "studyDegree"
	ActCompleteDegree = "completeDegree"

	ActDeposit  = "depositToBank"
	ActWithdraw = "withdrawFromBank"
	ActInvest   = "invest"
	ActTakeLoan = "takeLoan"
	ActRepayLoan = "repayLoan"

	ActBuyStock  = "buyStock"
	ActSellStock = "sellStock"

	ActBuyGuildPass      = "buyGuildPass"
	ActTakeQuest         = "takeQuest"
	ActCompleteObjective = "completeObjective"
	ActCompleteQuest     = "completeQuest"
	ActAbandonQuest      = "abandonQuest"
	ActChooseChainStep   = "chooseChainStep"
	ActTakeBounty        = "takeBounty"
	ActCompleteBounty    = "completeBounty"

	ActEnterDungeon = "enterDungeon"
	ActCastHex      = "castHex"

	ActEvictPlayer  = "evictPlayer"
	ActCheckDeath   = "checkDeath"
	ActCheckVictory = "checkVictory"
	ActEndWeek      = "endWeek"
	ActAIStep       = "aiStep"
	ActNewGame      = "newGame"

	// Client-side only; listed so classification is total over the UI's verb
	// space. The host dispatcher has no handlers for these.
	ActDismissToast      = "dismissToast"
	ActSetPortrait       = "setPortrait"
	ActHighlightLocation = "highlightLocation"
)

// Classification decides where an action may execute.
type Classification int

const (
	// LocalOnly never leaves the issuing peer.
	LocalOnly Classification = iota
	// HostInternal may only be executed by the host; guest requests are
	// rejected with E_NO_PERMISSION.
	HostInternal
	// AllowedGuest may be requested by a guest; the request is forwarded to
	// the host, validated and applied there, then broadcast.
	AllowedGuest
)

var localOnlyActions = map[string]struct{}{
	ActDismissToast:      {},
	ActSetPortrait:       {},
	ActHighlightLocation: {},
}

var hostInternalActions = map[string]struct{}{
	ActModifyGold:      {},
	ActModifyHealth:    {},
	ActModifyHappiness: {},
	ActEvictPlayer:     {},
	ActCheckDeath:      {},
	ActCheckVictory:    {},
	ActEndWeek:         {},
	ActAIStep:          {},
	ActNewGame:         {},
}

var allowedGuestActions = map[string]struct{}{
	ActEatMeal:           {},
	ActBuyClothing:       {},
	ActRest:              {},
	ActMovePlayer:        {},
	ActPayRent:           {},
	ActEndTurn:           {},
	ActWorkShift:         {},
	ActSetJob:            {},
	ActQuitJob:           {},
	ActStudyDegree:       {},
	ActCompleteDegree:    {},
	ActDeposit:           {},
	ActWithdraw:          {},
	ActInvest:            {},
	ActTakeLoan:          {},
	ActRepayLoan:         {},
	ActBuyStock:          {},
	ActSellStock:         {},
	ActBuyGuildPass:      {},
	ActTakeQuest:         {},
	ActCompleteObjective: {},
	ActCompleteQuest:     {},
	ActAbandonQuest:      {},
	ActChooseChainStep:   {},
	ActTakeBounty:        {},
	ActCompleteBounty:    {},
	ActEnterDungeon:      {},
	ActCastHex:           {},
}

// Classify returns the classification for a verb. Unknown verbs report ok =
// false and must be rejected before anything runs.
func Classify(actionType string) (Classification, bool) {
	if _, yes := localOnlyActions[actionType]; yes {
		return LocalOnly, true
	}
	if _, yes := hostInternalActions[actionType]; yes {
		return HostInternal, true
	}
	if _, yes := allowedGuestActions[actionType]; yes {
		return AllowedGuest, true
	}
	return 0, false
}

// Result is what every reducer returns. Reducers never panic and never
// return Go errors for expected-invalid input; they report a code instead.
type Result struct {
	OK      bool
	Code    string
	Message string
}

func resOK() Result { return Result{OK: true} }

func fail(code, msg string) Result {
	if !protocol.IsKnownCode(code) {
		code = protocol.ErrInternal
	}
	return Result{OK: false, Code: code, Message: msg}
}

type reducerFunc func(g *Game, p *Player, payload json.RawMessage) Result

var reducerDispatch = map[string]reducerFunc{
	ActModifyGold:      (*Game).applyModifyGold,
	ActModifyHealth:    (*Game).applyModifyHealth,
	ActModifyHappiness: (*Game).applyModifyHappiness,

	ActEatMeal:     (*Game).applyEatMeal,
	ActBuyClothing: (*Game).applyBuyClothing,
	ActRest:        (*Game).applyRest,
	ActMovePlayer:  (*Game).applyMovePlayer,
	ActPayRent:     (*Game).applyPayRent,
	ActEndTurn:     (*Game).applyEndTurn,

	ActWorkShift: (*Game).applyWorkShift,
	ActSetJob:    (*Game).applySetJob,
	ActQuitJob:   (*Game).applyQuitJob,

	ActStudyDegree:    (*Game).applyStudyDegree,
	ActCompleteDegree: (*Game).applyCompleteDegree,

	ActDeposit:   (*Game).applyDeposit,
	ActWithdraw:  (*Game).applyWithdraw,
	ActInvest:    (*Game).applyInvest,
	ActTakeLoan:  (*Game).applyTakeLoan,
	ActRepayLoan: (*Game).applyRepayLoan,

	ActBuyStock:  (*Game).applyBuyStock,
	ActSellStock: (*Game).applySellStock,

	ActBuyGuildPass:      (*Game).applyBuyGuildPass,
	ActTakeQuest:         (*Game).applyTakeQuest,
	ActCompleteObjective: (*Game).applyCompleteObjective,
	ActCompleteQuest:     (*Game).applyCompleteQuest,
	ActAbandonQuest:      (*Game).applyAbandonQuest,
	ActChooseChainStep:   (*Game).applyChooseChainStep,
	ActTakeBounty:        (*Game).applyTakeBounty,
	ActCompleteBounty:    (*Game).applyCompleteBounty,

	ActEnterDungeon: (*Game).applyEnterDungeon,
	ActCastHex:      (*Game).applyCastHex,

	ActEvictPlayer:  (*Game).applyEvictPlayer,
	ActCheckDeath:   (*Game).applyCheckDeath,
	ActCheckVictory: (*Game).applyCheckVictory,
	ActEndWeek:      (*Game).applyEndWeek,
	ActAIStep:       (*Game).applyAIStep,
	ActNewGame:      (*Game).applyNewGame,
}

func init() {
	if err := ValidateActionSets(); err != nil {
		panic(err)
	}
}

// ValidateActionSets checks that every dispatchable verb is classified in
// exactly one set, and every non-local classified verb has a handler.
func ValidateActionSets() error {
	sets := []struct {
		name string
		m    map[string]struct{}
	}{
		{"LOCAL_ONLY", localOnlyActions},
		{"HOST_INTERNAL", hostInternalActions},
		{"ALLOWED_GUEST", allowedGuestActions},
	}
	seen := map[string]string{}
	for _, s := range sets {
		for verb := range s.m {
			if prev, dup := seen[verb]; dup {
				return fmt.Errorf("verb %q classified in both %s and %s", verb, prev, s.name)
			}
			seen[verb] = s.name
		}
	}
	for verb := range reducerDispatch {
		set, ok := seen[verb]
		if !ok {
			return fmt.Errorf("dispatchable verb %q is unclassified", verb)
		}
		if set == "LOCAL_ONLY" {
			return fmt.Errorf("verb %q is LOCAL_ONLY but has a host reducer", verb)
		}
	}
	for verb, set := range seen {
		if set == "LOCAL_ONLY" {
			continue
		}
		if _, ok := reducerDispatch[verb]; !ok {
			return fmt.Errorf("classified verb %q has no reducer", verb)
		}
	}
	return nil
}

// Apply runs one validated action against the canonical state. It is only
// ever called from the game loop goroutine (the single writer).
func (g *Game) Apply(actorID, actionType string, payload json.RawMessage) Result {
	class, known := Classify(actionType)
	if !known {
		return fail(protocol.ErrBadRequest, "unknown action type: "+actionType)
	}
	if class == LocalOnly {
		return fail(protocol.ErrBadRequest, "local-only action sent to reducer: "+actionType)
	}

	p := g.players[actorID]
	if p == nil && actionType != ActNewGame && actionType != ActEndWeek {
		return fail(protocol.ErrInvalidTarget, "unknown player: "+actorID)
	}
	if p != nil && p.Eliminated && class == AllowedGuest {
		return fail(protocol.ErrEliminated, "player is eliminated")
	}
	if g.world.Phase == PhaseVictory && class == AllowedGuest {
		return fail(protocol.ErrConflict, "game is over")
	}

	h := reducerDispatch[actionType]
	res := h(g, p, payload)
	if res.OK {
		g.dirty = true
	}
	g.audit(actorID, actionType, res)
	return res
}

// Common payloads.

type amountPayload struct {
	Amount float64 `json:"amount"`
}

// parseAmount decodes and validates a positive finite integral amount.
// NaN, ±Inf, zero, negatives and fractional values are all rejected.
func parseAmount(payload json.RawMessage) (int, Result) {
	var ap amountPayload
	if err := json.Unmarshal(payload, &ap); err != nil {
		return 0, fail(protocol.ErrBadRequest, "bad amount payload")
	}
	a := ap.Amount
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0, fail(protocol.ErrBadRequest, "amount is not finite")
	}
	if a <= 0 || a != math.Trunc(a) {
		return 0, fail(protocol.ErrBadRequest, "amount must be a positive whole number")
	}
	if a > math.MaxInt32 {
		return 0, fail(protocol.ErrBadRequest, "amount out of range")
	}
	return int(a), Result{OK: true}
}

type targetPayload struct {
	ID string `json:"id"`
}

func parseTarget(payload json.RawMessage) (string, Result) {
	var tp targetPayload
	if err := json.Unmarshal(payload, &tp); err != nil || tp.ID == "" {
		return "", fail(protocol.ErrBadRequest, "bad target payload")
	}
	return tp.ID, Result{OK: true}
}
