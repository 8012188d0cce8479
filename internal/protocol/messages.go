package protocol

import "encoding/json"

// HELLO (guest -> host)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerName      string `json:"player_name"`
	PeerID          string `json:"peer_id,omitempty"`
	ResumeToken     string `json:"resume_token,omitempty"`
}

// WELCOME (host -> guest)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	PlayerID        string         `json:"player_id"`
	RoomCode        string         `json:"room_code"`
	ResumeToken     string         `json:"resume_token"`
	Seed            int64          `json:"seed"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	Jobs      string `json:"jobs_digest"`
	Degrees   string `json:"degrees_digest"`
	Quests    string `json:"quests_digest"`
	Chains    string `json:"chains_digest"`
	Bounties  string `json:"bounties_digest"`
	Stocks    string `json:"stocks_digest"`
	Locations string `json:"locations_digest"`
	Dungeon   string `json:"dungeon_digest"`
	Tuning    string `json:"tuning_digest,omitempty"`
}

// ACT (guest -> host): a single requested action, forwarded for host-side
// validation and execution. The payload shape depends on the action type and
// is decoded by the reducer dispatcher.
type ActMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	RequestID       string          `json:"request_id"`
	ActionType      string          `json:"action_type"`
	Payload         json.RawMessage `json:"payload,omitempty"`
	OriginPeerID    string          `json:"origin_peer_id"`
}

// ACK (host -> guest): explicit resolution of one forwarded action.
type AckMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	RequestID       string `json:"request_id"`
	OK              bool   `json:"ok"`
	Code            string `json:"code,omitempty"`
	Message         string `json:"message,omitempty"`
	Week            int    `json:"week,omitempty"`
}

// STATE (host -> guests): the canonical state mirror. Guests replace their
// local copy wholesale; they never patch it.
type StateMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Week            int             `json:"week"`
	Phase           string          `json:"phase"`
	Digest          string          `json:"digest"`
	State           json.RawMessage `json:"state"`
	Events          []Event         `json:"events,omitempty"`
}

// Event is a one-shot notification carried inside state broadcasts. Peers
// dedupe by id so a toast dismissed locally is not re-shown when the same
// event arrives again in a later broadcast.
type Event struct {
	ID       string `json:"id"`
	Week     int    `json:"week"`
	Kind     string `json:"kind"`
	PlayerID string `json:"player_id,omitempty"`
	Text     string `json:"text"`
}

// Registry (lobby side-channel) messages.

type RegisterMsg struct {
	Type    string  `json:"type"`
	Listing Listing `json:"listing"`
}

type UnregisterMsg struct {
	Type     string `json:"type"`
	RoomCode string `json:"room_code"`
}

type UpdateMsg struct {
	Type        string `json:"type"`
	RoomCode    string `json:"room_code"`
	PlayerCount int    `json:"player_count"`
}

type ListingsMsg struct {
	Type  string    `json:"type"`
	Games []Listing `json:"games"`
}

type Listing struct {
	RoomCode    string       `json:"room_code"`
	HostName    string       `json:"host_name"`
	PlayerCount int          `json:"player_count"`
	MaxPlayers  int          `json:"max_players"`
	Goals       GoalsListing `json:"goals"`
	HasAI       bool         `json:"has_ai"`
	CreatedAt   int64        `json:"created_at"`
}

type GoalsListing struct {
	Wealth    int `json:"wealth"`
	Happiness int `json:"happiness"`
	Education int `json:"education"`
	Career    int `json:"career"`
}
