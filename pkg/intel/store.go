package intel

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/avseitsevad/eml-phishing-analyzer/pkg/textutil"
)

// ErrStoreIO reports a failure of the underlying indicator database.
var ErrStoreIO = errors.New("threat intelligence store failure")

// Indicator kinds.
const (
	KindDomain = "domain"
	KindIP     = "ip"
)

// DefaultCacheSize bounds the reputation LRU cache.
const DefaultCacheSize = 10000

// Indicator is one known-malicious network observable.
type Indicator struct {
	Key        string `json:"key"`
	Kind       string `json:"kind"`
	ThreatType string `json:"threat_type"`
	Source     string `json:"source"`
	DateAdded  string `json:"date_added"`
}

// Reputation is the outcome of checking a message's domains and IPs
// against the indicator corpus.
type Reputation struct {
	MaliciousDomains  []string `json:"malicious_domains"`
	MaliciousIPs      []string `json:"malicious_ips"`
	DomainInURLhaus   bool     `json:"domain_in_urlhaus"`
	DomainInOpenPhish bool     `json:"domain_in_openphish"`
	IPInBlacklist     bool     `json:"ip_in_blacklist"`
}

// cacheEntry records a lookup outcome. Negative results are cached too,
// so repeated clean traffic does not hit the database.
type cacheEntry struct {
	found      bool
	threatType string
	source     string
}

// Store is a persistent indicator set over a single-file SQL database
// with a bounded in-memory LRU in front of it. One mutex serialises all
// operations; lookups are sub-millisecond once the cache is warm, so the
// coarse lock is not a bottleneck.
type Store struct {
	mu    sync.Mutex
	db    *sql.DB
	cache *lru.Cache[string, cacheEntry]
	log   logrus.FieldLogger
}

// Open opens (creating if needed) the indicator database at path.
// cacheSize <= 0 selects DefaultCacheSize.
func Open(path string, cacheSize int, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: create store directory: %v", ErrStoreIO, err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStoreIO, path, err)
	}
	// A single connection sidesteps SQLITE_BUSY under the store mutex.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	cache, err := lru.New[string, cacheEntry](cacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: cache init: %v", ErrStoreIO, err)
	}

	s := &Store{
		db:    db,
		cache: cache,
		log:   log.WithField("component", "intel"),
	}
	s.log.WithFields(logrus.Fields{"path": path, "cache_size": cacheSize}).
		Debug("threat intelligence store opened")
	return s, nil
}

func createSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS malicious_domains (
			key TEXT UNIQUE NOT NULL,
			threat_type TEXT,
			date_added TEXT,
			source TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_malicious_domains_key ON malicious_domains(key)`,
		`CREATE TABLE IF NOT EXISTS malicious_ips (
			key TEXT UNIQUE NOT NULL,
			threat_type TEXT,
			date_added TEXT,
			source TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_malicious_ips_key ON malicious_ips(key)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("%w: create schema: %v", ErrStoreIO, err)
		}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("%w: close: %v", ErrStoreIO, err)
	}
	return nil
}

// CheckReputation looks up a message's domains and IPs in one batch per
// kind. Domains are reduced to their registrable form before lookup.
// Every individual outcome, positive or negative, lands in the cache.
func (s *Store) CheckReputation(domains, ips []string) (*Reputation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := &Reputation{
		MaliciousDomains: []string{},
		MaliciousIPs:     []string{},
	}

	normalized := make([]string, 0, len(domains))
	seen := make(map[string]bool)
	for _, d := range domains {
		nd := textutil.RegistrableDomain(d)
		if nd == "" || seen[nd] {
			continue
		}
		seen[nd] = true
		normalized = append(normalized, nd)
	}

	domainHits, err := s.lookupBatch(KindDomain, normalized)
	if err != nil {
		return nil, err
	}
	for _, key := range normalized {
		entry, ok := domainHits[key]
		if !ok {
			continue
		}
		if entry.found {
			rep.MaliciousDomains = append(rep.MaliciousDomains, key)
			src := strings.ToLower(entry.source)
			if strings.Contains(src, "urlhaus") {
				rep.DomainInURLhaus = true
			}
			if strings.Contains(src, "openphish") {
				rep.DomainInOpenPhish = true
			}
		}
	}

	uniqueIPs := make([]string, 0, len(ips))
	seenIPs := make(map[string]bool)
	for _, ip := range ips {
		if ip == "" || seenIPs[ip] {
			continue
		}
		seenIPs[ip] = true
		uniqueIPs = append(uniqueIPs, ip)
	}

	ipHits, err := s.lookupBatch(KindIP, uniqueIPs)
	if err != nil {
		return nil, err
	}
	for _, key := range uniqueIPs {
		if entry, ok := ipHits[key]; ok && entry.found {
			rep.MaliciousIPs = append(rep.MaliciousIPs, key)
		}
	}
	rep.IPInBlacklist = len(rep.MaliciousIPs) > 0

	return rep, nil
}

// CheckDomain looks up a single domain, normalised first.
func (s *Store) CheckDomain(domain string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := textutil.RegistrableDomain(domain)
	if key == "" {
		return false, nil
	}
	hits, err := s.lookupBatch(KindDomain, []string{key})
	if err != nil {
		return false, err
	}
	entry, ok := hits[key]
	return ok && entry.found, nil
}

// CheckIP looks up a single IPv4 address as-is.
func (s *Store) CheckIP(ip string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ip == "" {
		return false, nil
	}
	hits, err := s.lookupBatch(KindIP, []string{ip})
	if err != nil {
		return false, err
	}
	entry, ok := hits[ip]
	return ok && entry.found, nil
}

// lookupBatch resolves keys through the cache and one IN query for the
// misses. Caller holds the store mutex.
func (s *Store) lookupBatch(kind string, keys []string) (map[string]cacheEntry, error) {
	results := make(map[string]cacheEntry, len(keys))
	var misses []string

	for _, key := range keys {
		if entry, ok := s.cache.Get(cacheKey(kind, key)); ok {
			results[key] = entry
		} else {
			misses = append(misses, key)
		}
	}
	if len(misses) == 0 {
		return results, nil
	}

	placeholders := strings.Repeat("?,", len(misses))
	placeholders = placeholders[:len(placeholders)-1]
	query := fmt.Sprintf(
		"SELECT key, threat_type, source FROM %s WHERE key IN (%s)",
		tableFor(kind), placeholders)

	args := make([]any, len(misses))
	for i, key := range misses {
		args[i] = key
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: batch lookup: %v", ErrStoreIO, err)
	}
	defer rows.Close()

	found := make(map[string]cacheEntry)
	for rows.Next() {
		var key string
		var threatType, source sql.NullString
		if err := rows.Scan(&key, &threatType, &source); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", ErrStoreIO, err)
		}
		found[key] = cacheEntry{
			found:      true,
			threatType: threatType.String,
			source:     source.String,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: rows: %v", ErrStoreIO, err)
	}

	for _, key := range misses {
		entry, ok := found[key]
		if !ok {
			entry = cacheEntry{found: false}
		}
		s.cache.Add(cacheKey(kind, key), entry)
		results[key] = entry
	}

	return results, nil
}

// AddIndicators inserts a batch of indicators in one transaction using
// insert-or-ignore, so repeated feed runs stay idempotent. Returns the
// number of rows actually inserted.
func (s *Store) AddIndicators(indicators []Indicator) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(indicators) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", ErrStoreIO, err)
	}

	stmts := make(map[string]*sql.Stmt, 2)
	for _, table := range []string{"malicious_domains", "malicious_ips"} {
		stmt, err := tx.Prepare(fmt.Sprintf(
			"INSERT OR IGNORE INTO %s (key, threat_type, date_added, source) VALUES (?, ?, ?, ?)",
			table))
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("%w: prepare: %v", ErrStoreIO, err)
		}
		stmts[table] = stmt
	}

	var inserted int64
	for _, ind := range indicators {
		table := tableFor(ind.Kind)
		if table == "" {
			continue
		}
		res, err := stmts[table].Exec(ind.Key, ind.ThreatType, ind.DateAdded, ind.Source)
		if err != nil {
			tx.Rollback()
			return 0, fmt.Errorf("%w: insert %s: %v", ErrStoreIO, ind.Key, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", ErrStoreIO, err)
	}
	return inserted, nil
}

// Count returns the number of indicators of one kind.
func (s *Store) Count(kind string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := tableFor(kind)
	if table == "" {
		return 0, fmt.Errorf("%w: unknown kind %q", ErrStoreIO, kind)
	}
	var n int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrStoreIO, err)
	}
	return n, nil
}

// ClearCache drops every cached lookup. Feed ingestion calls this so
// fresh indicators are visible immediately.
func (s *Store) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Purge()
}

func cacheKey(kind, key string) string {
	if kind == KindIP {
		return "i:" + key
	}
	return "d:" + key
}

func tableFor(kind string) string {
	switch kind {
	case KindDomain:
		return "malicious_domains"
	case KindIP:
		return "malicious_ips"
	default:
		return ""
	}
}
