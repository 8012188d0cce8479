package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		p := filepath.Join("..", "..", "schemas", name)
		s, err := jsonschema.Compile(p)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	validate := func(s *jsonschema.Schema, v any) {
		t.Helper()
		if err := s.Validate(v); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	helloSchema := compile("hello.schema.json")
	welcomeSchema := compile("welcome.schema.json")
	actSchema := compile("act.schema.json")
	ackSchema := compile("ack.schema.json")
	stateSchema := compile("state.schema.json")

	var hello any
	_ = json.Unmarshal([]byte(`{
	  "type":"HELLO",
	  "protocol_version":"1.2",
	  "player_name":"rosa"
	}`), &hello)
	validate(helloSchema, hello)

	var welcome any
	_ = json.Unmarshal([]byte(`{
	  "type":"WELCOME",
	  "protocol_version":"1.2",
	  "player_id":"P2",
	  "room_code":"babab-babab-babab",
	  "resume_token":"resume_babab-babab-babab_123",
	  "seed":1337,
	  "catalogs":{
	    "jobs_digest":"deadbeef",
	    "degrees_digest":"deadbeef",
	    "quests_digest":"deadbeef",
	    "chains_digest":"deadbeef",
	    "bounties_digest":"deadbeef",
	    "stocks_digest":"deadbeef",
	    "locations_digest":"deadbeef",
	    "dungeon_digest":"deadbeef",
	    "tuning_digest":"deadbeef"
	  }
	}`), &welcome)
	validate(welcomeSchema, welcome)

	var act any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACT",
	  "protocol_version":"1.2",
	  "request_id":"0b1f6f4e-9a1e-4f6e-8a6f-2b3c4d5e6f70",
	  "action_type":"workShift",
	  "payload":{"hours":6},
	  "origin_peer_id":"P2"
	}`), &act)
	validate(actSchema, act)

	var ack any
	_ = json.Unmarshal([]byte(`{
	  "type":"ACK",
	  "protocol_version":"1.2",
	  "request_id":"0b1f6f4e-9a1e-4f6e-8a6f-2b3c4d5e6f70",
	  "ok":false,
	  "code":"E_NO_TIME",
	  "week":7
	}`), &ack)
	validate(ackSchema, ack)

	var state any
	_ = json.Unmarshal([]byte(`{
	  "type":"STATE",
	  "protocol_version":"1.2",
	  "week":7,
	  "phase":"playing",
	  "digest":"`+strings.Repeat("ab", 32)+`",
	  "state":{"week":7},
	  "events":[{"id":"ev12","week":7,"kind":"rent_due","player_id":"P1","text":"Rent is due."}]
	}`), &state)
	validate(stateSchema, state)
}

func TestSchemas_RejectBadSamples(t *testing.T) {
	compile := func(name string) *jsonschema.Schema {
		t.Helper()
		s, err := jsonschema.Compile(filepath.Join("..", "..", "schemas", name))
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return s
	}

	reject := func(s *jsonschema.Schema, raw string) {
		t.Helper()
		var v any
		_ = json.Unmarshal([]byte(raw), &v)
		if err := s.Validate(v); err == nil {
			t.Fatalf("expected rejection for %s", raw)
		}
	}

	reject(compile("hello.schema.json"), `{"type":"HELLO","protocol_version":"1.2","player_name":""}`)
	reject(compile("act.schema.json"), `{"type":"ACT","protocol_version":"1.2","action_type":"workShift","origin_peer_id":"P2"}`)
	reject(compile("ack.schema.json"), `{"type":"ACK","protocol_version":"1.2","request_id":"r1","ok":false,"code":"NOT_A_CODE"}`)
	reject(compile("state.schema.json"), `{"type":"STATE","protocol_version":"1.2","week":7,"phase":"paused","digest":"00","state":{}}`)
}
