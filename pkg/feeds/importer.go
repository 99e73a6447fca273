package feeds

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/avseitsevad/eml-phishing-analyzer/pkg/intel"
	"github.com/avseitsevad/eml-phishing-analyzer/pkg/textutil"
)

// ErrFeedParse reports a download or format failure of a threat feed.
var ErrFeedParse = errors.New("feed parse failure")

// Feed sources.
const (
	SourceURLhaus   = "URLhaus"
	SourceOpenPhish = "OpenPhish"
)

// Default feed endpoints and tuning.
const (
	DefaultURLhausURL   = "https://urlhaus.abuse.ch/downloads/csv_recent/"
	DefaultOpenPhishURL = "https://openphish.com/feed.txt"

	DefaultTimeout       = 30 * time.Second
	DefaultBatchSize     = 1000
	DefaultProgressEvery = 10000

	downloadChunkSize = 8 * 1024
)

// Config tunes the importer. Zero values select the defaults.
type Config struct {
	URLhausURL    string
	OpenPhishURL  string
	Timeout       time.Duration
	BatchSize     int
	ProgressEvery int
	UserAgent     string
}

// DefaultImporterConfig returns the default importer settings.
func DefaultImporterConfig() *Config {
	return &Config{
		URLhausURL:    DefaultURLhausURL,
		OpenPhishURL:  DefaultOpenPhishURL,
		Timeout:       DefaultTimeout,
		BatchSize:     DefaultBatchSize,
		ProgressEvery: DefaultProgressEvery,
		UserAgent:     "eml-phishing-analyzer/1.0",
	}
}

// ImportStats summarises one feed run. Malformed counts rows that were
// dropped with a warning rather than aborting the import.
type ImportStats struct {
	Source    string        `json:"source"`
	Rows      int64         `json:"rows"`
	Inserted  int64         `json:"inserted"`
	Skipped   int64         `json:"skipped"`
	Malformed int64         `json:"malformed"`
	Duration  time.Duration `json:"duration"`
}

// Importer downloads threat feeds and loads them into the indicator
// store in batched transactions.
type Importer struct {
	store  *intel.Store
	config *Config
	client *http.Client
	log    logrus.FieldLogger
}

// NewImporter creates an importer bound to a store. A nil config selects
// defaults; a nil logger discards output.
func NewImporter(store *intel.Store, config *Config, log logrus.FieldLogger) *Importer {
	if config == nil {
		config = DefaultImporterConfig()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = DefaultProgressEvery
	}
	if config.URLhausURL == "" {
		config.URLhausURL = DefaultURLhausURL
	}
	if config.OpenPhishURL == "" {
		config.OpenPhishURL = DefaultOpenPhishURL
	}
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	return &Importer{
		store:  store,
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		log:    log.WithField("component", "feeds"),
	}
}

// Update refreshes one feed. A non-empty localPath reads feed bytes from
// disk instead of downloading. After a successful import the store's
// lookup cache is cleared so new indicators are visible immediately.
func (im *Importer) Update(ctx context.Context, source, localPath string) (*ImportStats, error) {
	var reader io.ReadCloser
	var err error

	switch source {
	case SourceURLhaus, SourceOpenPhish:
	default:
		return nil, fmt.Errorf("%w: unknown source %q", ErrFeedParse, source)
	}

	if localPath != "" {
		reader, err = os.Open(localPath)
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", ErrFeedParse, localPath, err)
		}
	} else {
		feedURL := im.config.URLhausURL
		if source == SourceOpenPhish {
			feedURL = im.config.OpenPhishURL
		}
		reader, err = im.download(ctx, feedURL)
		if err != nil {
			return nil, err
		}
	}
	defer reader.Close()

	var stats *ImportStats
	if source == SourceURLhaus {
		stats, err = im.ImportURLhaus(ctx, reader)
	} else {
		stats, err = im.ImportOpenPhish(ctx, reader)
	}
	if err != nil {
		return stats, err
	}

	im.store.ClearCache()
	im.log.WithFields(logrus.Fields{
		"source":   stats.Source,
		"rows":     stats.Rows,
		"inserted": stats.Inserted,
		"skipped":  stats.Skipped,
		"duration": stats.Duration.Round(time.Millisecond).String(),
	}).Info("feed import complete")

	return stats, nil
}

// download streams a feed over HTTPS with the configured timeout,
// buffering reads in fixed-size chunks.
func (im *Importer) download(ctx context.Context, feedURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: request %s: %v", ErrFeedParse, feedURL, err)
	}
	req.Header.Set("User-Agent", im.config.UserAgent)

	resp, err := im.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %v", ErrFeedParse, feedURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: download %s: unexpected status %d", ErrFeedParse, feedURL, resp.StatusCode)
	}

	return &bufferedBody{
		Reader: bufio.NewReaderSize(resp.Body, downloadChunkSize),
		body:   resp.Body,
	}, nil
}

// bufferedBody wraps a response body behind a chunked reader.
type bufferedBody struct {
	*bufio.Reader
	body io.Closer
}

func (b *bufferedBody) Close() error { return b.body.Close() }

// ImportURLhaus loads the URLhaus recent-CSV feed. Column order:
// id, dateadded, url, url_status, last_online, threat, tags,
// urlhaus_link, reporter. Lines starting with '#' are comments.
// IPv4 hosts are recorded as IP indicators, everything else as
// registrable-domain indicators; a missing threat column defaults to
// "malicious".
func (im *Importer) ImportURLhaus(ctx context.Context, r io.Reader) (*ImportStats, error) {
	start := time.Now()
	stats := &ImportStats{Source: SourceURLhaus}

	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	batch := make([]intel.Indicator, 0, im.config.BatchSize)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.Malformed++
				im.log.WithField("line", parseErr.Line).Debug("skipping malformed feed row")
				continue
			}
			return stats, fmt.Errorf("%w: read csv: %v", ErrFeedParse, err)
		}

		stats.Rows++
		if stats.Rows%int64(im.config.ProgressEvery) == 0 {
			im.log.WithFields(logrus.Fields{"rows": stats.Rows, "inserted": stats.Inserted}).
				Info("feed import progress")
		}

		if len(record) < 3 {
			stats.Malformed++
			continue
		}

		ind, ok := urlhausIndicator(record)
		if !ok {
			stats.Skipped++
			continue
		}

		batch = append(batch, ind)
		if len(batch) >= im.config.BatchSize {
			if err := im.flush(ctx, stats, &batch); err != nil {
				return stats, err
			}
		}
	}

	if err := im.flush(ctx, stats, &batch); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// ImportOpenPhish loads the OpenPhish line-delimited feed: one URL per
// non-empty line, threat type "phishing". IP-hosted URLs are skipped:
// the feed tracks phishing pages, which the store models as domains.
func (im *Importer) ImportOpenPhish(ctx context.Context, r io.Reader) (*ImportStats, error) {
	start := time.Now()
	stats := &ImportStats{Source: SourceOpenPhish}

	dateAdded := time.Now().UTC().Format("2006-01-02 15:04:05")
	batch := make([]intel.Indicator, 0, im.config.BatchSize)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, downloadChunkSize), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		stats.Rows++
		if stats.Rows%int64(im.config.ProgressEvery) == 0 {
			im.log.WithFields(logrus.Fields{"rows": stats.Rows, "inserted": stats.Inserted}).
				Info("feed import progress")
		}

		host := feedHost(line)
		if host == "" || textutil.IsIPv4(host) {
			stats.Skipped++
			continue
		}

		key := textutil.RegistrableDomain(host)
		if key == "" {
			stats.Skipped++
			continue
		}

		batch = append(batch, intel.Indicator{
			Key:        key,
			Kind:       intel.KindDomain,
			ThreatType: "phishing",
			Source:     SourceOpenPhish,
			DateAdded:  dateAdded,
		})
		if len(batch) >= im.config.BatchSize {
			if err := im.flush(ctx, stats, &batch); err != nil {
				return stats, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("%w: read feed: %v", ErrFeedParse, err)
	}

	if err := im.flush(ctx, stats, &batch); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// flush commits the pending batch. Cancellation is honoured between
// commits; insert-or-ignore keeps a partial import consistent.
func (im *Importer) flush(ctx context.Context, stats *ImportStats, batch *[]intel.Indicator) error {
	if len(*batch) == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	inserted, err := im.store.AddIndicators(*batch)
	if err != nil {
		return err
	}
	stats.Inserted += inserted
	*batch = (*batch)[:0]
	return nil
}

// urlhausIndicator translates one URLhaus CSV record into an indicator.
// The record must already have at least three columns.
func urlhausIndicator(record []string) (intel.Indicator, bool) {
	host := feedHost(record[2])
	if host == "" {
		return intel.Indicator{}, false
	}

	threat := "malicious"
	if len(record) > 5 && strings.TrimSpace(record[5]) != "" {
		threat = strings.TrimSpace(record[5])
	}
	dateAdded := ""
	if len(record) > 1 {
		dateAdded = strings.TrimSpace(record[1])
	}

	ind := intel.Indicator{
		ThreatType: threat,
		Source:     SourceURLhaus,
		DateAdded:  dateAdded,
	}
	if textutil.IsIPv4(host) {
		ind.Kind = intel.KindIP
		ind.Key = host
	} else {
		ind.Kind = intel.KindDomain
		ind.Key = textutil.RegistrableDomain(host)
	}
	if ind.Key == "" {
		return intel.Indicator{}, false
	}
	return ind, true
}

// feedHost extracts a lowercased host from a feed URL value.
func feedHost(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
