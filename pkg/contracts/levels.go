package contracts

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// VerificationLevel is a rigor tier in the escalation ladder.
// Levels are totally ordered; escalation is monotonic and never
// revisits a passed level.
type VerificationLevel int

const (
	LevelBasic VerificationLevel = iota + 1
	LevelStandard
	LevelEnhanced
	LevelFormal
	LevelCertified
	// LevelQuantum is an optional tier above CERTIFIED. It is not part
	// of the default ladder and only participates when a policy
	// profile enables it.
	LevelQuantum
)

func (l VerificationLevel) String() string {
	switch l {
	case LevelBasic:
		return "BASIC"
	case LevelStandard:
		return "STANDARD"
	case LevelEnhanced:
		return "ENHANCED"
	case LevelFormal:
		return "FORMAL"
	case LevelCertified:
		return "CERTIFIED"
	case LevelQuantum:
		return "QUANTUM"
	default:
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
}

// MarshalText renders the level name, so JSON carries "STANDARD"
// rather than a bare ordinal.
func (l VerificationLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses a level name.
func (l *VerificationLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel converts a level name (case-insensitive) to its value.
func ParseLevel(s string) (VerificationLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BASIC":
		return LevelBasic, nil
	case "STANDARD":
		return LevelStandard, nil
	case "ENHANCED":
		return LevelEnhanced, nil
	case "FORMAL":
		return LevelFormal, nil
	case "CERTIFIED":
		return LevelCertified, nil
	case "QUANTUM":
		return LevelQuantum, nil
	default:
		return 0, fmt.Errorf("unknown verification level %q", s)
	}
}

// LevelPolicy defines how a single verification level behaves: which
// capabilities participate, how long each agent may run, and the
// minimum aggregate confidence required to terminate at this level.
type LevelPolicy struct {
	Level         VerificationLevel `json:"level"`
	MinConfidence float64           `json:"min_confidence"`
	AgentTimeout  time.Duration     `json:"agent_timeout"`
	// Capabilities restricts the participating agent subset.
	// Empty means every registered capability participates.
	Capabilities []Capability `json:"capabilities,omitempty"`
}

// Ladder is the ordered sequence of level policies, ascending by level.
type Ladder []LevelPolicy

// DefaultLadder returns the standard five-tier ladder. BASIC runs a
// reduced roster with a short deadline; higher levels run every
// registered agent with growing deadlines and confidence floors.
func DefaultLadder() Ladder {
	return Ladder{
		{Level: LevelBasic, MinConfidence: 0.50, AgentTimeout: 250 * time.Millisecond,
			Capabilities: []Capability{CapabilitySafety, CapabilityPrivacy, CapabilityCompliance}},
		{Level: LevelStandard, MinConfidence: 0.60, AgentTimeout: 500 * time.Millisecond},
		{Level: LevelEnhanced, MinConfidence: 0.70, AgentTimeout: 1 * time.Second},
		{Level: LevelFormal, MinConfidence: 0.80, AgentTimeout: 2 * time.Second},
		{Level: LevelCertified, MinConfidence: 0.90, AgentTimeout: 5 * time.Second},
	}
}

// Validate checks ordering, bounds, and duplicates.
func (lad Ladder) Validate() error {
	if len(lad) == 0 {
		return fmt.Errorf("ladder must define at least one level")
	}
	if !sort.SliceIsSorted(lad, func(i, j int) bool { return lad[i].Level < lad[j].Level }) {
		return fmt.Errorf("ladder levels must be ascending")
	}
	seen := make(map[VerificationLevel]bool, len(lad))
	for _, p := range lad {
		if seen[p.Level] {
			return fmt.Errorf("duplicate level %s in ladder", p.Level)
		}
		seen[p.Level] = true
		if p.MinConfidence < 0 || p.MinConfidence > 1 {
			return fmt.Errorf("level %s: min_confidence %.2f out of [0,1]", p.Level, p.MinConfidence)
		}
		if p.AgentTimeout <= 0 {
			return fmt.Errorf("level %s: agent_timeout must be positive", p.Level)
		}
	}
	return nil
}

// PolicyFor returns the policy for the given level.
func (lad Ladder) PolicyFor(level VerificationLevel) (LevelPolicy, bool) {
	for _, p := range lad {
		if p.Level == level {
			return p, true
		}
	}
	return LevelPolicy{}, false
}

// Next returns the level directly above the given one, if any.
func (lad Ladder) Next(level VerificationLevel) (VerificationLevel, bool) {
	for _, p := range lad {
		if p.Level > level {
			return p.Level, true
		}
	}
	return 0, false
}

// Min returns the lowest level in the ladder.
func (lad Ladder) Min() VerificationLevel { return lad[0].Level }

// Max returns the highest level in the ladder.
func (lad Ladder) Max() VerificationLevel { return lad[len(lad)-1].Level }

// Contains reports whether the ladder defines the given level.
func (lad Ladder) Contains(level VerificationLevel) bool {
	_, ok := lad.PolicyFor(level)
	return ok
}
