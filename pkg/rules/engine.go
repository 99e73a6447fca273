package rules

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/avseitsevad/eml-phishing-analyzer/pkg/email"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/headers"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/intel"
)

// Rule names, stable identifiers used in reports.
const (
	RuleAuthentication       = "authentication"
	RuleDomainMismatch       = "domain_mismatch"
	RuleReplyAnomaly         = "reply_anomaly"
	RuleThreatIntelligence   = "threat_intelligence"
	RuleDangerousAttachments = "dangerous_attachments"
)

// Risk levels.
const (
	LevelLow    = "LOW"
	LevelMedium = "MEDIUM"
	LevelHigh   = "HIGH"
)

// Weights configure per-rule scores. They stay fixed for the lifetime
// of an Engine so every message in a run is scored the same way.
type Weights struct {
	SPFFail             int `json:"spf_fail" yaml:"spf_fail"`
	DKIMFail            int `json:"dkim_fail" yaml:"dkim_fail"`
	DMARCFail           int `json:"dmarc_fail" yaml:"dmarc_fail"`
	DomainMismatch      int `json:"domain_mismatch" yaml:"domain_mismatch"`
	ReplyAnomaly        int `json:"reply_anomaly" yaml:"reply_anomaly"`
	MaliciousDomain     int `json:"malicious_domain" yaml:"malicious_domain"`
	MaliciousIP         int `json:"malicious_ip" yaml:"malicious_ip"`
	DangerousAttachment int `json:"dangerous_attachment" yaml:"dangerous_attachment"`
}

// DefaultWeights returns the standard scoring table.
func DefaultWeights() Weights {
	return Weights{
		SPFFail:             20,
		DKIMFail:            20,
		DMARCFail:           20,
		DomainMismatch:      30,
		ReplyAnomaly:        30,
		MaliciousDomain:     60,
		MaliciousIP:         60,
		DangerousAttachment: 40,
	}
}

// TriggeredRule is one entry of the triggered list in a Result.
type TriggeredRule struct {
	Name        string `json:"name"`
	Weight      int    `json:"weight"`
	Description string `json:"description"`
}

// Outcome records how a single rule evaluated, whether or not it
// triggered.
type Outcome struct {
	Triggered bool   `json:"triggered"`
	Score     int    `json:"score"`
	Details   string `json:"details"`
}

// Result is the rule engine's verdict contribution for one message.
type Result struct {
	RiskScore      int                `json:"risk_score"`
	RiskLevel      string             `json:"risk_level"`
	TriggeredRules []TriggeredRule    `json:"triggered_rules"`
	RuleDetails    map[string]Outcome `json:"rule_details"`
}

// dangerousExtensions flag attachment types that commonly carry
// malware droppers, including archive formats used to smuggle them
// past scanners.
var dangerousExtensions = map[string]bool{
	"exe": true, "scr": true, "bat": true, "cmd": true, "com": true,
	"pif": true, "vbs": true, "js": true, "jar": true, "app": true,
	"deb": true, "pkg": true, "dmg": true, "msi": true, "dll": true,
	"lnk": true, "hta": true, "wsf": true, "ps1": true, "sh": true,
	"run": true, "bin": true, "rar": true, "7z": true, "zip": true,
}

// Engine evaluates the fixed rule set with configured weights.
type Engine struct {
	weights Weights
}

// NewEngine builds an engine; a nil weights pointer selects defaults.
func NewEngine(weights *Weights) *Engine {
	if weights == nil {
		w := DefaultWeights()
		weights = &w
	}
	return &Engine{weights: *weights}
}

// Evaluate runs all five rules against one message. It never fails:
// nil inputs evaluate to non-triggering rules whose details say what
// was missing. The risk score is the capped sum of triggered weights.
func (e *Engine) Evaluate(m *email.CanonicalEmail, facts *headers.Facts, reputation *intel.Reputation) Result {
	result := Result{
		RuleDetails: make(map[string]Outcome, 5),
	}
	add := func(name string, outcome Outcome) {
		result.RuleDetails[name] = outcome
		if outcome.Triggered {
			result.RiskScore += outcome.Score
			result.TriggeredRules = append(result.TriggeredRules, TriggeredRule{
				Name:        name,
				Weight:      outcome.Score,
				Description: outcome.Details,
			})
		}
	}

	add(RuleAuthentication, e.evalAuthentication(facts))
	add(RuleDomainMismatch, e.evalDomainMismatch(facts))
	add(RuleReplyAnomaly, e.evalReplyAnomaly(facts))
	add(RuleThreatIntelligence, e.evalThreatIntelligence(reputation))
	add(RuleDangerousAttachments, e.evalDangerousAttachments(m))

	if result.RiskScore > 100 {
		result.RiskScore = 100
	}
	result.RiskLevel = riskLevel(result.RiskScore)
	return result
}

func (e *Engine) evalAuthentication(facts *headers.Facts) Outcome {
	if facts == nil {
		return Outcome{Details: "authentication results unavailable"}
	}

	score := 0
	var failed []string
	if facts.SPFResult == "fail" {
		score += e.weights.SPFFail
		failed = append(failed, "SPF")
	}
	if facts.DKIMResult == "fail" {
		score += e.weights.DKIMFail
		failed = append(failed, "DKIM")
	}
	if facts.DMARCResult == "fail" {
		score += e.weights.DMARCFail
		failed = append(failed, "DMARC")
	}

	state := fmt.Sprintf("spf=%s dkim=%s dmarc=%s", facts.SPFResult, facts.DKIMResult, facts.DMARCResult)
	if len(failed) == 0 {
		return Outcome{Details: "no authentication failures (" + state + ")"}
	}
	return Outcome{
		Triggered: true,
		Score:     score,
		Details:   strings.Join(failed, "/") + " authentication failed (" + state + ")",
	}
}

func (e *Engine) evalDomainMismatch(facts *headers.Facts) Outcome {
	if facts == nil || facts.FromDomain == "" {
		return Outcome{Details: "sender domain unavailable"}
	}

	var mismatches []string
	if facts.ReplyToDomain != "" && facts.ReplyToDomain != facts.FromDomain {
		mismatches = append(mismatches, fmt.Sprintf("reply-to domain %s differs from sender domain %s", facts.ReplyToDomain, facts.FromDomain))
	}
	if facts.ReturnPathDomain != "" && facts.ReturnPathDomain != facts.FromDomain {
		mismatches = append(mismatches, fmt.Sprintf("return-path domain %s differs from sender domain %s", facts.ReturnPathDomain, facts.FromDomain))
	}
	if len(mismatches) == 0 {
		return Outcome{Details: "sender, reply-to and return-path domains agree"}
	}
	return Outcome{
		Triggered: true,
		Score:     e.weights.DomainMismatch,
		Details:   strings.Join(mismatches, "; "),
	}
}

func (e *Engine) evalReplyAnomaly(facts *headers.Facts) Outcome {
	if facts == nil {
		return Outcome{Details: "header facts unavailable"}
	}
	if !facts.HasReWithoutReferences {
		return Outcome{Details: "subject threading is consistent"}
	}
	return Outcome{
		Triggered: true,
		Score:     e.weights.ReplyAnomaly,
		Details:   "subject claims a reply but the References header is empty",
	}
}

func (e *Engine) evalThreatIntelligence(reputation *intel.Reputation) Outcome {
	if reputation == nil {
		return Outcome{Details: "threat intelligence unavailable, check skipped"}
	}

	score := len(reputation.MaliciousDomains)*e.weights.MaliciousDomain +
		len(reputation.MaliciousIPs)*e.weights.MaliciousIP
	if score == 0 {
		return Outcome{Details: "no known malicious domains or IPs"}
	}

	var parts []string
	if len(reputation.MaliciousDomains) > 0 {
		parts = append(parts, "known malicious domains: "+strings.Join(reputation.MaliciousDomains, ", "))
	}
	if len(reputation.MaliciousIPs) > 0 {
		parts = append(parts, "known malicious IPs: "+strings.Join(reputation.MaliciousIPs, ", "))
	}
	return Outcome{
		Triggered: true,
		Score:     score,
		Details:   strings.Join(parts, "; "),
	}
}

func (e *Engine) evalDangerousAttachments(m *email.CanonicalEmail) Outcome {
	if m == nil || len(m.Attachments) == 0 {
		return Outcome{Details: "no attachments"}
	}

	var hits []string
	for _, attachment := range m.Attachments {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(attachment.Name), "."))
		if dangerousExtensions[ext] {
			hits = append(hits, attachment.Name)
		}
	}
	if len(hits) == 0 {
		return Outcome{Details: "no dangerous attachment extensions"}
	}
	return Outcome{
		Triggered: true,
		Score:     e.weights.DangerousAttachment,
		Details:   "dangerous attachments: " + strings.Join(hits, ", "),
	}
}

func riskLevel(score int) string {
	switch {
	case score < 30:
		return LevelLow
	case score < 70:
		return LevelMedium
	default:
		return LevelHigh
	}
}
