package rules

import (
	"strings"
	"testing"

	"github.com/avseitsevad/eml-phishing-analyzer/pkg/email"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/headers"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/intel"
)

func TestEvaluateCleanEmail(t *testing.T) {
	engine := NewEngine(nil)
	m := &email.CanonicalEmail{From: "d.petrov@technoservice.ru"}
	facts := &headers.Facts{
		SPFResult:        "pass",
		DKIMResult:       "pass",
		DMARCResult:      "pass",
		FromDomain:       "technoservice.ru",
		ReplyToDomain:    "technoservice.ru",
		ReturnPathDomain: "technoservice.ru",
	}

	result := engine.Evaluate(m, facts, &intel.Reputation{})

	if result.RiskScore != 0 {
		t.Errorf("RiskScore = %d, expected 0", result.RiskScore)
	}
	if result.RiskLevel != LevelLow {
		t.Errorf("RiskLevel = %q, expected %q", result.RiskLevel, LevelLow)
	}
	if len(result.TriggeredRules) != 0 {
		t.Errorf("TriggeredRules = %v, expected none", result.TriggeredRules)
	}
	if len(result.RuleDetails) != 5 {
		t.Errorf("RuleDetails has %d entries, expected all 5 rules", len(result.RuleDetails))
	}
	for name, outcome := range result.RuleDetails {
		if outcome.Details == "" {
			t.Errorf("rule %q has empty details", name)
		}
	}
}

func TestEvaluateAuthFailuresAndMismatch(t *testing.T) {
	engine := NewEngine(nil)
	facts := &headers.Facts{
		SPFResult:     "fail",
		DKIMResult:    "fail",
		DMARCResult:   "fail",
		FromDomain:    "sberbank.ru",
		ReplyToDomain: "evil-domain.tk",
	}

	result := engine.Evaluate(&email.CanonicalEmail{}, facts, &intel.Reputation{})

	if result.RiskScore != 90 {
		t.Errorf("RiskScore = %d, expected 90", result.RiskScore)
	}
	if result.RiskLevel != LevelHigh {
		t.Errorf("RiskLevel = %q, expected %q", result.RiskLevel, LevelHigh)
	}
	if len(result.TriggeredRules) != 2 {
		t.Fatalf("TriggeredRules = %v, expected authentication and domain_mismatch", result.TriggeredRules)
	}
	if result.TriggeredRules[0].Name != RuleAuthentication || result.TriggeredRules[0].Weight != 60 {
		t.Errorf("first triggered rule = %+v, expected authentication with weight 60", result.TriggeredRules[0])
	}
	if result.TriggeredRules[1].Name != RuleDomainMismatch || result.TriggeredRules[1].Weight != 30 {
		t.Errorf("second triggered rule = %+v, expected domain_mismatch with weight 30", result.TriggeredRules[1])
	}
}

func TestEvaluateSoftfailDoesNotTrigger(t *testing.T) {
	engine := NewEngine(nil)
	facts := &headers.Facts{
		SPFResult:   "softfail",
		DKIMResult:  "neutral",
		DMARCResult: "none",
		FromDomain:  "example.com",
	}

	result := engine.Evaluate(&email.CanonicalEmail{}, facts, &intel.Reputation{})
	if result.RuleDetails[RuleAuthentication].Triggered {
		t.Errorf("authentication triggered on softfail/neutral/none: %+v", result.RuleDetails[RuleAuthentication])
	}
}

func TestEvaluateThreatIntelligence(t *testing.T) {
	engine := NewEngine(nil)
	reputation := &intel.Reputation{
		MaliciousDomains: []string{"sberbank-secure.tk"},
		DomainInURLhaus:  true,
	}

	result := engine.Evaluate(&email.CanonicalEmail{}, &headers.Facts{FromDomain: "example.com"}, reputation)

	outcome := result.RuleDetails[RuleThreatIntelligence]
	if !outcome.Triggered || outcome.Score != 60 {
		t.Errorf("threat_intelligence outcome = %+v, expected triggered with score 60", outcome)
	}
	if !strings.Contains(outcome.Details, "sberbank-secure.tk") {
		t.Errorf("details %q should name the malicious domain", outcome.Details)
	}
	if result.RiskScore != 60 {
		t.Errorf("RiskScore = %d, expected 60", result.RiskScore)
	}
}

func TestEvaluateRiskScoreCapped(t *testing.T) {
	engine := NewEngine(nil)
	reputation := &intel.Reputation{
		MaliciousDomains: []string{"evil-domain.tk", "fake-portal.xyz"},
		MaliciousIPs:     []string{"203.0.113.44"},
	}

	result := engine.Evaluate(&email.CanonicalEmail{}, nil, reputation)

	if result.RiskScore != 100 {
		t.Errorf("RiskScore = %d, expected cap at 100", result.RiskScore)
	}
	if result.RiskLevel != LevelHigh {
		t.Errorf("RiskLevel = %q, expected %q", result.RiskLevel, LevelHigh)
	}
	// The triggered entry keeps the uncapped weight for the audit trail.
	outcome := result.RuleDetails[RuleThreatIntelligence]
	if outcome.Score != 180 {
		t.Errorf("threat_intelligence score = %d, expected uncapped 180", outcome.Score)
	}
}

func TestEvaluateDangerousAttachments(t *testing.T) {
	engine := NewEngine(nil)
	tests := []struct {
		name      string
		triggered bool
	}{
		{"invoice.exe", true},
		{"INVOICE.EXE", true},
		{"archive.7z", true},
		{"script.ps1", true},
		{"setup.msi", true},
		{"photos.zip", true},
		{"report.pdf", false},
		{"letter.docx", false},
		{"readme", false},
	}

	for _, test := range tests {
		m := &email.CanonicalEmail{
			Attachments: []email.Attachment{{Name: test.name}},
		}
		result := engine.Evaluate(m, nil, nil)
		outcome := result.RuleDetails[RuleDangerousAttachments]
		if outcome.Triggered != test.triggered {
			t.Errorf("attachment %q triggered = %v, expected %v", test.name, outcome.Triggered, test.triggered)
		}
		if test.triggered && outcome.Score != 40 {
			t.Errorf("attachment %q score = %d, expected 40", test.name, outcome.Score)
		}
	}
}

func TestEvaluateReplyAnomaly(t *testing.T) {
	engine := NewEngine(nil)
	facts := &headers.Facts{
		FromDomain:             "sberbank.ru",
		HasReWithoutReferences: true,
	}

	result := engine.Evaluate(&email.CanonicalEmail{}, facts, &intel.Reputation{})

	outcome := result.RuleDetails[RuleReplyAnomaly]
	if !outcome.Triggered || outcome.Score != 30 {
		t.Errorf("reply_anomaly outcome = %+v, expected triggered with score 30", outcome)
	}
	if result.RiskScore != 30 || result.RiskLevel != LevelMedium {
		t.Errorf("RiskScore/Level = %d/%s, expected 30/MEDIUM", result.RiskScore, result.RiskLevel)
	}
}

func TestEvaluateMissingInputs(t *testing.T) {
	result := NewEngine(nil).Evaluate(nil, nil, nil)

	if result.RiskScore != 0 || result.RiskLevel != LevelLow {
		t.Errorf("missing inputs scored %d/%s, expected 0/LOW", result.RiskScore, result.RiskLevel)
	}
	if len(result.RuleDetails) != 5 {
		t.Fatalf("RuleDetails has %d entries, expected 5", len(result.RuleDetails))
	}
	for name, outcome := range result.RuleDetails {
		if outcome.Triggered {
			t.Errorf("rule %q triggered with no inputs", name)
		}
		if outcome.Details == "" {
			t.Errorf("rule %q should explain the missing input", name)
		}
	}
}

func TestRiskLevelBoundaries(t *testing.T) {
	tests := []struct {
		weight   int
		expected string
	}{
		{29, LevelLow},
		{30, LevelMedium},
		{69, LevelMedium},
		{70, LevelHigh},
	}

	for _, test := range tests {
		weights := DefaultWeights()
		weights.ReplyAnomaly = test.weight
		engine := NewEngine(&weights)
		facts := &headers.Facts{FromDomain: "example.com", HasReWithoutReferences: true}

		result := engine.Evaluate(&email.CanonicalEmail{}, facts, &intel.Reputation{})
		if result.RiskScore != test.weight {
			t.Errorf("RiskScore = %d, expected %d", result.RiskScore, test.weight)
		}
		if result.RiskLevel != test.expected {
			t.Errorf("score %d mapped to %q, expected %q", test.weight, result.RiskLevel, test.expected)
		}
	}
}

func TestEvaluateReturnPathMismatch(t *testing.T) {
	engine := NewEngine(nil)
	facts := &headers.Facts{
		FromDomain:       "sberbank.ru",
		ReturnPathDomain: "mailer.evil-domain.tk",
	}

	result := engine.Evaluate(&email.CanonicalEmail{}, facts, &intel.Reputation{})
	outcome := result.RuleDetails[RuleDomainMismatch]
	if !outcome.Triggered || outcome.Score != 30 {
		t.Errorf("domain_mismatch outcome = %+v, expected triggered with score 30", outcome)
	}
}
