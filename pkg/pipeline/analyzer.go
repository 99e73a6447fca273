package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/avseitsevad/eml-phishing-analyzer/pkg/config"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/email"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/features"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/feeds"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/headers"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/intel"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/ml"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/rules"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/translate"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/urlcheck"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/verdict"
)

// ErrResourceUnavailable reports that a long-lived resource the
// pipeline depends on (feature artefact, trained model, TI store for
// feed updates) could not be opened.
var ErrResourceUnavailable = errors.New("pipeline: resource unavailable")

// Analyzer is the analysis facade. It owns the long-lived resources
// and is safe for concurrent Analyze calls: the extractor, translator,
// fitted feature state and model are read-only, and the TI store
// serialises internally.
type Analyzer struct {
	config     *config.Config
	extractor  *email.Extractor
	translator *translate.Translator
	store      *intel.Store
	importer   *feeds.Importer
	features   *features.Extractor
	model      *ml.Model
	engine     *rules.Engine
	weights    verdict.Weights
	log        logrus.FieldLogger
}

// New opens all pipeline resources. The feature artefact and the
// trained model are required; failure to load either returns
// ErrResourceUnavailable. The TI store is optional: when it cannot be
// opened the pipeline degrades to empty reputation and says so in the
// rule details.
func New(cfg *config.Config, log logrus.FieldLogger) (*Analyzer, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	a := &Analyzer{
		config: cfg,
		extractor: email.NewExtractor(&email.Config{
			AttachmentHashCap: cfg.Extract.AttachmentHashCap,
			FailOnOversize:    cfg.Extract.FailOnOversize,
		}),
		translator: translate.NewTranslator(nil, log),
		engine:     rules.NewEngine(&cfg.Rules),
		weights:    verdict.LoadWeights(cfg.Aggregation.WeightsPath),
		log:        log,
	}
	a.translator.SetMinDetectChars(cfg.Translate.MinDetectChars)

	extractor, err := features.LoadArtifact(cfg.Artifacts.FeaturesPath)
	if err != nil {
		return nil, fmt.Errorf("%w: feature artifact %s: %v", ErrResourceUnavailable, cfg.Artifacts.FeaturesPath, err)
	}
	if !extractor.Vectorizer.Fitted() || !extractor.Scaler.Fitted() {
		return nil, fmt.Errorf("%w: feature artifact %s is not fitted", ErrResourceUnavailable, cfg.Artifacts.FeaturesPath)
	}
	a.features = extractor

	a.model = ml.NewModel(log)
	if err := a.model.Load(cfg.Artifacts.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: model %s: %v", ErrResourceUnavailable, cfg.Artifacts.ModelPath, err)
	}

	store, err := intel.Open(cfg.Store.Path, cfg.Store.CacheSize, log)
	if err != nil {
		log.WithError(err).Warn("Threat intelligence store unavailable, continuing without reputation checks")
	} else {
		a.store = store
		a.importer = feeds.NewImporter(store, &feeds.Config{
			URLhausURL:    cfg.Feeds.URLhausURL,
			OpenPhishURL:  cfg.Feeds.OpenPhishURL,
			Timeout:       time.Duration(cfg.Feeds.TimeoutMs) * time.Millisecond,
			BatchSize:     cfg.Feeds.BatchSize,
			ProgressEvery: cfg.Feeds.ProgressInterval,
			UserAgent:     cfg.Feeds.UserAgent,
		}, log)
	}

	return a, nil
}

// Analyze runs the full pipeline on raw message bytes and returns the
// decision report. Input errors surface as email.ErrMalformedInput or
// email.ErrTooLarge; a missing TI store degrades rather than fails.
func (a *Analyzer) Analyze(raw []byte) (*verdict.DecisionReport, error) {
	start := time.Now()

	m, err := a.extractor.Extract(raw)
	if err != nil {
		return nil, err
	}

	facts := headers.Analyze(m)
	flags, findings := urlcheck.Analyze(m.URLs, m.Domains)
	reputation := a.checkReputation(m)
	translated := a.translator.Translate(m.Subject + "\n" + m.Body())

	vector, err := a.features.Extract(m, flags, translated.Text)
	if err != nil {
		return nil, fmt.Errorf("feature extraction: %w", err)
	}
	mlResult, err := a.model.Classify(vector)
	if err != nil {
		return nil, err
	}

	ruleResult := a.engine.Evaluate(m, &facts, reputation)

	report := verdict.Aggregate(mlResult, ruleResult, a.weights)
	report.ReportID = uuid.NewString()
	report.AnalyzedAt = start.UTC()
	report.DurationMS = time.Since(start).Milliseconds()
	report.URLFlags = flags
	report.URLFindings = findings
	report.Translation = verdict.Translation{
		DetectedLanguage: translated.DetectedLanguage,
		WasTranslated:    translated.WasTranslated,
	}

	a.log.WithFields(logrus.Fields{
		"report_id":   report.ReportID,
		"verdict":     report.VerdictLabel,
		"final_score": report.FinalScore,
		"risk_score":  ruleResult.RiskScore,
		"duration_ms": report.DurationMS,
	}).Info("Message analyzed")
	return &report, nil
}

// AnalyzeFile reads one message file and analyzes it.
func (a *Analyzer) AnalyzeFile(path string) (*verdict.DecisionReport, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read message file: %w", err)
	}
	return a.Analyze(raw)
}

// checkReputation looks up the message's domains and IPs, degrading
// to nil reputation on any store problem. The rule engine states the
// degradation in its details.
func (a *Analyzer) checkReputation(m *email.CanonicalEmail) *intel.Reputation {
	if a.store == nil {
		return nil
	}
	reputation, err := a.store.CheckReputation(m.Domains, m.IPs)
	if err != nil {
		a.log.WithError(err).Warn("Threat intelligence lookup failed, continuing without reputation")
		return nil
	}
	return reputation
}

// BatchItem pairs one batch input with its report or error.
type BatchItem struct {
	Index  int
	Report *verdict.DecisionReport
	Err    error
}

// AnalyzeBatch analyzes messages concurrently with the configured
// worker count. Results arrive in input order; per-message failures
// land in the item, never abort the batch.
func (a *Analyzer) AnalyzeBatch(messages [][]byte) []BatchItem {
	if len(messages) == 0 {
		return nil
	}

	workers := a.config.Performance.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(messages) {
		workers = len(messages)
	}

	results := make([]BatchItem, len(messages))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				report, err := a.Analyze(messages[idx])
				results[idx] = BatchItem{Index: idx, Report: report, Err: err}
			}
		}()
	}
	for idx := range messages {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()
	return results
}

// UpdateTI refreshes the indicator store from a feed. Source is
// feeds.SourceURLhaus or feeds.SourceOpenPhish; a non-empty localPath
// imports a file instead of downloading.
func (a *Analyzer) UpdateTI(ctx context.Context, source, localPath string) (*feeds.ImportStats, error) {
	if a.importer == nil {
		return nil, fmt.Errorf("%w: threat intelligence store is not open", ErrResourceUnavailable)
	}
	return a.importer.Update(ctx, source, localPath)
}

// Store exposes the TI store, nil when the pipeline runs degraded.
func (a *Analyzer) Store() *intel.Store { return a.store }

// ModelInfo describes the loaded classifier.
func (a *Analyzer) ModelInfo() ml.Info { return a.model.Info() }

// Close releases the TI store.
func (a *Analyzer) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
