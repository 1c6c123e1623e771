package domain

import (
	"fmt"
	"strings"
)

// RiskTier classifies erosion risk from index change over the series.
type RiskTier int

const (
	// RiskUnknown means the series has fewer than two samples.
	RiskUnknown RiskTier = iota
	RiskStable
	RiskWatch
	RiskHigh
)

// Cut points on the first-to-last index change.
const (
	HighRiskDelta = -0.2 // delta at or below is High
	WatchDelta    = -0.1 // delta at or above is Stable
)

var tierNames = [...]string{
	RiskUnknown: "Unknown",
	RiskStable:  "Stable",
	RiskWatch:   "Watch",
	RiskHigh:    "High",
}

func (t RiskTier) String() string {
	if t < 0 || int(t) >= len(tierNames) {
		return fmt.Sprintf("RiskTier(%d)", int(t))
	}
	return tierNames[t]
}

// MarshalText encodes the tier by name.
func (t RiskTier) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= len(tierNames) {
		return nil, fmt.Errorf("invalid risk tier %d", int(t))
	}
	return []byte(tierNames[t]), nil
}

// UnmarshalText decodes a tier name, case-insensitively.
func (t *RiskTier) UnmarshalText(b []byte) error {
	for i, name := range tierNames {
		if strings.EqualFold(name, string(b)) {
			*t = RiskTier(i)
			return nil
		}
	}
	return fmt.Errorf("unknown risk tier %q", b)
}

// Assessment is the classifier output for one series.
type Assessment struct {
	Tier RiskTier `json:"tier"`
	// Delta is last minus first sample value; nil when Tier is RiskUnknown.
	Delta   *float64 `json:"delta,omitempty"`
	Samples int      `json:"samples"`
}

// Classify compares the first and last samples of series.
// Intermediate samples do not affect the result.
func Classify(series TimeSeries) Assessment {
	a := Assessment{Tier: RiskUnknown, Samples: series.Len()}
	first, ok := series.First()
	if !ok || series.Len() < 2 {
		return a
	}
	last, _ := series.Last()

	delta := last.Value - first.Value
	a.Delta = &delta
	a.Tier = TierForDelta(delta)
	return a
}

// TierForDelta maps an index change to a tier.
func TierForDelta(delta float64) RiskTier {
	switch {
	case delta <= HighRiskDelta:
		return RiskHigh
	case delta < WatchDelta:
		return RiskWatch
	default:
		return RiskStable
	}
}
