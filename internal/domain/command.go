package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// CommandKind is the closed set of scheduler commands accepted on the
// command bus. Anything else is logged and ignored, never fatal.
type CommandKind string

const (
	CmdFetchAll        CommandKind = "fetch-all"
	CmdFetchRegion     CommandKind = "fetch-region"
	CmdBackfillHistory CommandKind = "backfill-history"
	CmdCleanup         CommandKind = "cleanup"
)

// Command is a one-way admin trigger delivered over the command bus.
// Delivery is unordered, at-most-once, and unacknowledged; a lost command
// simply never runs.
type Command struct {
	Kind     CommandKind
	RegionID int32 // set only for fetch-region
	Force    bool  // bypass the freshness check for fetch-region
}

// commandWire is the JSON shape carried on the bus:
// {"type": "...", "region": "10000002", "force": true}.
type commandWire struct {
	Type   string `json:"type"`
	Region string `json:"region,omitempty"`
	Force  bool   `json:"force,omitempty"`
}

// ParseCommand decodes and validates a raw bus payload. Malformed JSON,
// unknown command types, and a fetch-region without a usable region all
// return an error; the caller treats these as normal, ignorable input.
func ParseCommand(payload []byte) (Command, error) {
	var w commandWire
	if err := json.Unmarshal(payload, &w); err != nil {
		return Command{}, fmt.Errorf("command: decode: %w", err)
	}

	kind := CommandKind(w.Type)
	switch kind {
	case CmdFetchAll, CmdBackfillHistory, CmdCleanup:
		return Command{Kind: kind}, nil
	case CmdFetchRegion:
		if w.Region == "" {
			return Command{}, fmt.Errorf("command: fetch-region without region")
		}
		region, err := strconv.ParseInt(w.Region, 10, 32)
		if err != nil {
			return Command{}, fmt.Errorf("command: bad region %q: %w", w.Region, err)
		}
		return Command{Kind: kind, RegionID: int32(region), Force: w.Force}, nil
	default:
		return Command{}, fmt.Errorf("command: unknown type %q", w.Type)
	}
}

// Encode renders the command in its wire shape for publishing.
func (c Command) Encode() ([]byte, error) {
	w := commandWire{Type: string(c.Kind), Force: c.Force}
	if c.Kind == CmdFetchRegion {
		w.Region = strconv.FormatInt(int64(c.RegionID), 10)
	}
	return json.Marshal(w)
}
