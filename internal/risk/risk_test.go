package risk

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
)

func TestScore_NoMatchIsZero(t *testing.T) {
	a := NewAnalyzer(DefaultRuleSet(), nil)
	res, err := a.Score(context.Background(), &domain.CanonicalMessage{
		Subject:  "lunch?",
		BodyText: "want to grab lunch at noon",
	}, domain.ResolvedIdentity{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Score != 0 || res.Flagged {
		t.Fatalf("benign message scored %d flagged=%v", res.Score, res.Flagged)
	}
}

func TestScore_KeywordHitSetsCategory(t *testing.T) {
	a := NewAnalyzer(DefaultRuleSet(), nil)
	res, err := a.Score(context.Background(), &domain.CanonicalMessage{
		Subject:  "need a Wire Transfer today",
		BodyText: "please process before 5pm",
	}, domain.ResolvedIdentity{EmployeeID: "emp-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Score != 40 {
		t.Errorf("expected score 40, got %d", res.Score)
	}
	if res.Category != "financial" {
		t.Errorf("expected financial category, got %q", res.Category)
	}
	if res.Flagged {
		t.Error("40 is below the default threshold")
	}
}

func TestScore_MultipleRulesAccumulateAndFlag(t *testing.T) {
	a := NewAnalyzer(DefaultRuleSet(), nil)
	res, err := a.Score(context.Background(), &domain.CanonicalMessage{
		Subject:  "before my final day",
		BodyText: "I'll export database snapshots and the customer list to my personal dropbox",
	}, domain.ResolvedIdentity{EmployeeID: "emp-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Score < 60 {
		t.Fatalf("expected flagging score, got %d", res.Score)
	}
	if !res.Flagged {
		t.Fatal("expected flagged")
	}
	if res.Category != "exfiltration" {
		t.Errorf("highest-weight rule names the category, got %q", res.Category)
	}
}

func TestScore_ClampedTo100(t *testing.T) {
	rules := RuleSet{
		FlagThreshold: 60,
		Rules: []Rule{
			{Name: "a", Category: "x", Keywords: []string{"alpha"}, Weight: 90},
			{Name: "b", Category: "y", Keywords: []string{"beta"}, Weight: 90},
		},
	}
	a := NewAnalyzer(rules, nil)
	res, _ := a.Score(context.Background(), &domain.CanonicalMessage{
		BodyText: "alpha beta",
	}, domain.ResolvedIdentity{})
	if res.Score != 100 {
		t.Fatalf("expected clamp to 100, got %d", res.Score)
	}
}

func TestScore_UnresolvedOutboundWeighted(t *testing.T) {
	a := NewAnalyzer(DefaultRuleSet(), nil)
	msg := &domain.CanonicalMessage{
		Direction: domain.DirectionOutbound,
		BodyText:  "sending you a gift card code",
	}
	resolved, _ := a.Score(context.Background(), msg, domain.ResolvedIdentity{EmployeeID: "emp-1"})
	unresolved, _ := a.Score(context.Background(), msg, domain.ResolvedIdentity{})
	if unresolved.Score != resolved.Score+10 {
		t.Fatalf("unresolved outbound should add 10: %d vs %d", unresolved.Score, resolved.Score)
	}
}

// --- Rule loading ---

func TestLoadRulesDirectory_MissingDirUsesBuiltin(t *testing.T) {
	rs, err := LoadRulesDirectory(filepath.Join(t.TempDir(), "nope"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rs.Name != "builtin" {
		t.Fatalf("expected builtin rules, got %q", rs.Name)
	}
}

func TestLoadRulesDirectory_MergesYAMLFiles(t *testing.T) {
	dir := t.TempDir()
	rules := `
name: custom
flagThreshold: 30
rules:
  - name: insider
    category: trading
    keywords: ["material nonpublic", "before the announcement"]
    weight: 70
`
	if err := os.WriteFile(filepath.Join(dir, "trading.yaml"), []byte(rules), 0o644); err != nil {
		t.Fatal(err)
	}
	// Non-YAML files are ignored.
	os.WriteFile(filepath.Join(dir, "readme.txt"), []byte("ignore me"), 0o644)

	rs, err := LoadRulesDirectory(dir, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rs.Rules) != 1 || rs.Rules[0].Name != "insider" {
		t.Fatalf("rules not loaded: %+v", rs.Rules)
	}
	if rs.FlagThreshold != 30 {
		t.Fatalf("threshold not honored: %d", rs.FlagThreshold)
	}

	a := NewAnalyzer(rs, nil)
	res, _ := a.Score(context.Background(), &domain.CanonicalMessage{
		BodyText: "sell before the announcement",
	}, domain.ResolvedIdentity{})
	if !res.Flagged || res.Category != "trading" {
		t.Fatalf("loaded rule not applied: %+v", res)
	}
}

func TestLoadRulesDirectory_BadYAMLSkipped(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("{{{not yaml"), 0o644)
	rs, err := LoadRulesDirectory(dir, nil)
	if err != nil {
		t.Fatalf("bad file must be skipped, not fatal: %v", err)
	}
	if rs.Name != "builtin" {
		t.Fatalf("expected builtin fallback when nothing loads, got %q", rs.Name)
	}
}
