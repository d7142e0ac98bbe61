package policy

import (
	"fmt"

	"github.com/davner/mcpguard/internal/scanner"
)

// bypassFloor is the lowest sub-threshold score the bypass escape hatch will
// accept in standard mode.
const bypassFloor = 70

// Decision is the gate's verdict on a scan result.
type Decision struct {
	Accept bool
	Bypass bool
	Reason string
}

// Evaluate applies the three-tier policy gate to a scan result. The tiers
// are independent: whether enforcement is on at all, whether the check is
// all-or-nothing or score-based, and whether a bypass escape hatch exists.
func Evaluate(res *scanner.Result, p Policy) Decision {
	if !p.Enforced {
		return Decision{
			Accept: true,
			Reason: fmt.Sprintf("policy not enforced; scan scored %d/100 (passed=%t)", res.Score, res.Passed),
		}
	}

	if p.StrictMode {
		if !res.Passed {
			return Decision{
				Accept: false,
				Reason: fmt.Sprintf("strict mode: a scan category failed (score %d/100)", res.Score),
			}
		}
		if res.Score < p.MinimumScore {
			return Decision{
				Accept: false,
				Reason: fmt.Sprintf("strict mode: score %d below minimum %d", res.Score, p.MinimumScore),
			}
		}
		return Decision{
			Accept: true,
			Reason: fmt.Sprintf("strict mode: all categories passed with score %d/100", res.Score),
		}
	}

	if res.Score >= p.MinimumScore {
		return Decision{
			Accept: true,
			Reason: fmt.Sprintf("score %d meets minimum %d", res.Score, p.MinimumScore),
		}
	}

	// The escape hatch opens when the score clears the floor, or when every
	// category passed and the deficit is deduction noise rather than a real
	// failure.
	if p.AllowedBypass && (res.Score >= bypassFloor || res.Passed) {
		return Decision{
			Accept: true,
			Bypass: true,
			Reason: fmt.Sprintf("score %d below minimum %d, accepted under bypass allowance", res.Score, p.MinimumScore),
		}
	}

	return Decision{
		Accept: false,
		Reason: fmt.Sprintf("score %d below minimum %d", res.Score, p.MinimumScore),
	}
}
