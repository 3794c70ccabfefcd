package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// WagerStatus is the persisted lifecycle state of a wager. The only
// transitions made by this service are pending -> resolved and
// pending -> washed; both are terminal and mutually exclusive.
type WagerStatus string

const (
	WagerPending  WagerStatus = "pending"
	WagerResolved WagerStatus = "resolved"
	WagerWashed   WagerStatus = "washed"
)

// Wager is a persisted prediction tied to one game and one settlement mode.
// Config is parsed once at the persistence boundary; it is nil when the
// stored document does not parse as the variant its mode key demands.
type Wager struct {
	ID             string
	ModeKey        string
	League         League
	GameID         string
	Status         WagerStatus
	WinningChoice  *string
	Config         ModeConfig
	RawConfig      json.RawMessage
	ResolutionTime *time.Time
	CreatedAt      time.Time
}

// Mode keys for the settlement rules shipped with this service.
const (
	ModeStatLine = "stat_line"
	ModeRaceTo   = "race_to"
)

// CaptureMode selects how a stat-line metric relates to the wager's baseline.
type CaptureMode string

const (
	// CaptureStartingNow measures the delta from the value captured when the
	// wager locked: metric = final - baseline.
	CaptureStartingNow CaptureMode = "starting_now"
	// CaptureCumulative measures the absolute final value; the baseline is
	// not consulted.
	CaptureCumulative CaptureMode = "cumulative"
)

// ModeConfig is the tagged union of per-mode wager configuration documents.
type ModeConfig interface {
	ModeKey() string
	Validate() error
}

// StatLineConfig is the configuration for an over/under wager on a single
// player stat. Line stays a string as entered by the upstream builder; an
// unparseable line voids the wager at evaluation time.
type StatLineConfig struct {
	PlayerID   string      `json:"playerId"`
	PlayerName string      `json:"playerName"`
	Category   string      `json:"category"`
	Field      string      `json:"field"`
	Line       string      `json:"line"`
	Capture    CaptureMode `json:"capture"`
}

func (c StatLineConfig) ModeKey() string { return ModeStatLine }

func (c StatLineConfig) Validate() error {
	if c.PlayerID == "" || c.Category == "" || c.Field == "" {
		return fmt.Errorf("%w: stat_line requires playerId, category and field", ErrInvalidConfig)
	}
	switch c.Capture {
	case CaptureStartingNow, CaptureCumulative:
	default:
		return fmt.Errorf("%w: unknown capture mode %q", ErrInvalidConfig, c.Capture)
	}
	return nil
}

// ParsedLine converts the builder-entered line to a float.
func (c StatLineConfig) ParsedLine() (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(c.Line), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: line %q: %v", ErrInvalidConfig, c.Line, err)
	}
	return v, nil
}

// RaceSide is one tracked side of a race wager.
type RaceSide struct {
	TeamID string `json:"teamId"`
	Label  string `json:"label"`
}

// RaceToConfig is the configuration for a "first side to gain +Target in a
// stat from its baseline" wager. The winning choice is the side's team id.
type RaceToConfig struct {
	SideA    RaceSide `json:"sideA"`
	SideB    RaceSide `json:"sideB"`
	Category string   `json:"category"`
	Field    string   `json:"field"`
	Target   float64  `json:"target"`
}

func (c RaceToConfig) ModeKey() string { return ModeRaceTo }

func (c RaceToConfig) Validate() error {
	if c.SideA.TeamID == "" || c.SideB.TeamID == "" {
		return fmt.Errorf("%w: race_to requires two sides", ErrInvalidConfig)
	}
	if c.SideA.TeamID == c.SideB.TeamID {
		return fmt.Errorf("%w: race_to sides must differ", ErrInvalidConfig)
	}
	if c.Category == "" || c.Field == "" {
		return fmt.Errorf("%w: race_to requires category and field", ErrInvalidConfig)
	}
	if c.Target <= 0 {
		return fmt.Errorf("%w: race_to target must be positive", ErrInvalidConfig)
	}
	return nil
}

// ParseModeConfig decodes the stored config document into the typed variant
// for the given mode key. It is the single parse point; consumers receive an
// already-typed ModeConfig (or nil) and never re-parse raw documents.
func ParseModeConfig(modeKey string, raw json.RawMessage) (ModeConfig, error) {
	switch modeKey {
	case ModeStatLine:
		var c StatLineConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return c, nil
	case ModeRaceTo:
		var c RaceToConfig
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err := c.Validate(); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, modeKey)
	}
}
