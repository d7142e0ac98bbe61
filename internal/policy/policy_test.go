package policy

import (
	"path/filepath"
	"testing"

	"github.com/davner/mcpguard/internal/scanner"
)

func TestGateNotEnforced(t *testing.T) {
	res := &scanner.Result{Passed: false, Score: 10}
	d := Evaluate(res, Policy{Enforced: false, MinimumScore: 70})
	if !d.Accept {
		t.Error("unenforced policy must always accept")
	}
}

func TestGateStrictMode(t *testing.T) {
	p := Policy{Enforced: true, StrictMode: true, MinimumScore: 85}

	tests := []struct {
		name   string
		result scanner.Result
		accept bool
	}{
		{"category failure rejects regardless of score", scanner.Result{Passed: false, Score: 100}, false},
		{"passing categories but low score rejects", scanner.Result{Passed: true, Score: 60}, false},
		{"passing categories and score accepts", scanner.Result{Passed: true, Score: 90}, true},
	}

	for _, tt := range tests {
		d := Evaluate(&tt.result, p)
		if d.Accept != tt.accept {
			t.Errorf("%s: accept=%t, want %t (%s)", tt.name, d.Accept, tt.accept, d.Reason)
		}
	}
}

// The score and the category verdict are independent signals: the same
// result rejects under strict mode but passes the standard-mode bypass.
func TestGateDecoupling(t *testing.T) {
	res := &scanner.Result{Passed: true, Score: 60}

	strict := Policy{Enforced: true, StrictMode: true, MinimumScore: 85}
	if d := Evaluate(res, strict); d.Accept {
		t.Errorf("strict mode accepted a sub-threshold score: %s", d.Reason)
	}

	standard := Policy{Enforced: true, StrictMode: false, MinimumScore: 85, AllowedBypass: true}
	d := Evaluate(res, standard)
	if !d.Accept {
		t.Errorf("standard mode with bypass rejected: %s", d.Reason)
	}
	if !d.Bypass {
		t.Error("expected a bypass warning on the accept")
	}
}

func TestGateStandardMode(t *testing.T) {
	tests := []struct {
		name   string
		result scanner.Result
		policy Policy
		accept bool
		bypass bool
	}{
		{
			"meets minimum",
			scanner.Result{Passed: false, Score: 80},
			Policy{Enforced: true, MinimumScore: 70},
			true, false,
		},
		{
			"below minimum, bypass window",
			scanner.Result{Passed: false, Score: 75},
			Policy{Enforced: true, MinimumScore: 85, AllowedBypass: true},
			true, true,
		},
		{
			"below minimum, bypass disabled",
			scanner.Result{Passed: false, Score: 75},
			Policy{Enforced: true, MinimumScore: 85, AllowedBypass: false},
			false, false,
		},
		{
			"below bypass floor with category failure",
			scanner.Result{Passed: false, Score: 40},
			Policy{Enforced: true, MinimumScore: 85, AllowedBypass: true},
			false, false,
		},
	}

	for _, tt := range tests {
		d := Evaluate(&tt.result, tt.policy)
		if d.Accept != tt.accept || d.Bypass != tt.bypass {
			t.Errorf("%s: accept=%t bypass=%t, want %t/%t (%s)",
				tt.name, d.Accept, d.Bypass, tt.accept, tt.bypass, d.Reason)
		}
	}
}

func TestStoreRegeneratesDefaults(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "policy.json"))

	p, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	def := Default()
	if p.Enforced != def.Enforced || p.MinimumScore != def.MinimumScore {
		t.Errorf("loaded %+v, want defaults %+v", p, def)
	}

	// Defaults must have been persisted.
	again, err := s.Load()
	if err != nil {
		t.Fatal(err)
	}
	if again.MinimumScore != def.MinimumScore {
		t.Error("defaults were not persisted on first load")
	}
}

func TestStoreApplyPartialUpdate(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "policy.json"))

	strict := true
	minScore := 90
	p, err := s.Apply(Update{StrictMode: &strict, MinimumScore: &minScore})
	if err != nil {
		t.Fatal(err)
	}

	if !p.StrictMode || p.MinimumScore != 90 {
		t.Errorf("update not applied: %+v", p)
	}
	if p.Enforced != Default().Enforced {
		t.Error("untouched field changed")
	}
	if p.Version == Default().Version {
		t.Error("version not bumped")
	}
	if p.LastUpdated.IsZero() {
		t.Error("lastUpdated not stamped")
	}
}

func TestStoreApplyRejectsOutOfRangeScore(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "policy.json"))
	bad := 150
	if _, err := s.Apply(Update{MinimumScore: &bad}); err == nil {
		t.Fatal("expected range error")
	}
}
