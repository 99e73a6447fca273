package verdict

import (
	"math"
	"time"

	"github.com/avseitsevad/eml-phishing-analyzer/pkg/ml"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/rules"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/urlcheck"
)

// Verdict values.
const (
	VerdictLegitimate = 0
	VerdictPhishing   = 1
)

// Aggregation records the inputs of the final blend for the audit
// trail.
type Aggregation struct {
	MLConfidence float64 `json:"ml_confidence"`
	RiskScore    int     `json:"risk_score"`
	RiskNorm     float64 `json:"risk_norm"`
	WeightML     float64 `json:"w_ml"`
	WeightRules  float64 `json:"w_rules"`
	Threshold    float64 `json:"threshold"`
}

// TriggeredRuleView is the formatted triggered-rule entry embedded in
// a report for consumers that only want the positives.
type TriggeredRuleView struct {
	Rule      string `json:"rule"`
	Triggered bool   `json:"triggered"`
	Details   string `json:"details"`
}

// Translation describes what the language stage did to the analysed
// text.
type Translation struct {
	DetectedLanguage string `json:"detected_language"`
	WasTranslated    bool   `json:"was_translated"`
}

// DecisionReport is the final product of one analysis. Aggregate
// fills the decision fields; the pipeline stamps identity, timing,
// URL flags and translation before handing the report out.
type DecisionReport struct {
	ReportID     string    `json:"report_id,omitempty"`
	AnalyzedAt   time.Time `json:"analyzed_at"`
	DurationMS   int64     `json:"duration_ms"`
	Verdict      int       `json:"verdict"`
	VerdictLabel string    `json:"verdict_label"`
	FinalScore   float64   `json:"final_score"`

	Aggregation Aggregation  `json:"aggregation"`
	ML          ml.Result    `json:"ml"`
	Rules       rules.Result `json:"rules"`

	TriggeredRulesFormatted []TriggeredRuleView `json:"triggered_rules_formatted"`

	URLFlags    urlcheck.Flags    `json:"url_flags"`
	URLFindings []urlcheck.Finding `json:"url_findings,omitempty"`
	Translation Translation       `json:"translation"`
}

// Aggregate blends the classifier probability with the rule risk into
// the final verdict. It never fails: weights renormalise, non-finite
// inputs clamp into [0,1].
func Aggregate(mlResult ml.Result, ruleResult rules.Result, weights Weights) DecisionReport {
	weights = weights.Normalised()

	mlConfidence := clamp01(mlResult.PhishingProbability)
	riskNorm := clamp01(float64(ruleResult.RiskScore) / 100)
	finalScore := clamp01(weights.ML*mlConfidence + weights.Rules*riskNorm)

	decided := VerdictLegitimate
	label := ml.LabelLegitimate
	if finalScore >= weights.Threshold {
		decided = VerdictPhishing
		label = ml.LabelPhishing
	}

	formatted := make([]TriggeredRuleView, 0, len(ruleResult.TriggeredRules))
	for _, rule := range ruleResult.TriggeredRules {
		formatted = append(formatted, TriggeredRuleView{
			Rule:      rule.Name,
			Triggered: true,
			Details:   rule.Description,
		})
	}

	return DecisionReport{
		Verdict:      decided,
		VerdictLabel: label,
		FinalScore:   finalScore,
		Aggregation: Aggregation{
			MLConfidence: mlConfidence,
			RiskScore:    ruleResult.RiskScore,
			RiskNorm:     riskNorm,
			WeightML:     weights.ML,
			WeightRules:  weights.Rules,
			Threshold:    weights.Threshold,
		},
		ML:                      mlResult,
		Rules:                   ruleResult,
		TriggeredRulesFormatted: formatted,
	}
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
