package intel

import (
	"errors"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T, cacheSize int) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ti.db")
	store, err := Open(path, cacheSize, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestAddAndCount(t *testing.T) {
	store := openTestStore(t, 0)

	inserted, err := store.AddIndicators([]Indicator{
		{Key: "evil-domain.tk", Kind: KindDomain, ThreatType: "phishing", Source: "OpenPhish", DateAdded: "2024-05-01"},
		{Key: "malware-host.xyz", Kind: KindDomain, ThreatType: "malware_download", Source: "URLhaus", DateAdded: "2024-05-01"},
		{Key: "203.0.113.7", Kind: KindIP, ThreatType: "malicious", Source: "URLhaus", DateAdded: "2024-05-01"},
	})
	if err != nil {
		t.Fatalf("AddIndicators failed: %v", err)
	}
	if inserted != 3 {
		t.Errorf("inserted = %d, expected 3", inserted)
	}

	domains, err := store.Count(KindDomain)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if domains != 2 {
		t.Errorf("domain count = %d, expected 2", domains)
	}

	ips, err := store.Count(KindIP)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if ips != 1 {
		t.Errorf("ip count = %d, expected 1", ips)
	}
}

func TestReimportIdempotence(t *testing.T) {
	store := openTestStore(t, 0)

	batch := []Indicator{
		{Key: "evil-domain.tk", Kind: KindDomain, ThreatType: "phishing", Source: "OpenPhish"},
		{Key: "203.0.113.7", Kind: KindIP, ThreatType: "malicious", Source: "URLhaus"},
	}

	if _, err := store.AddIndicators(batch); err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	inserted, err := store.AddIndicators(batch)
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if inserted != 0 {
		t.Errorf("second import inserted = %d, expected 0", inserted)
	}

	count, _ := store.Count(KindDomain)
	if count != 1 {
		t.Errorf("domain count after re-import = %d, expected 1", count)
	}
}

func TestCheckReputation(t *testing.T) {
	store := openTestStore(t, 0)

	_, err := store.AddIndicators([]Indicator{
		{Key: "sberbank-secure.tk", Kind: KindDomain, ThreatType: "phishing", Source: "URLhaus"},
		{Key: "phish-portal.top", Kind: KindDomain, ThreatType: "phishing", Source: "OpenPhish"},
		{Key: "203.0.113.7", Kind: KindIP, ThreatType: "malicious", Source: "URLhaus"},
	})
	if err != nil {
		t.Fatalf("AddIndicators failed: %v", err)
	}

	rep, err := store.CheckReputation(
		[]string{"sberbank-secure.tk", "clean.example.com"},
		[]string{"203.0.113.7", "8.8.8.8"},
	)
	if err != nil {
		t.Fatalf("CheckReputation failed: %v", err)
	}

	if len(rep.MaliciousDomains) != 1 || rep.MaliciousDomains[0] != "sberbank-secure.tk" {
		t.Errorf("MaliciousDomains = %v", rep.MaliciousDomains)
	}
	if len(rep.MaliciousIPs) != 1 || rep.MaliciousIPs[0] != "203.0.113.7" {
		t.Errorf("MaliciousIPs = %v", rep.MaliciousIPs)
	}
	if !rep.DomainInURLhaus {
		t.Error("DomainInURLhaus should be true for a URLhaus-sourced hit")
	}
	if rep.DomainInOpenPhish {
		t.Error("DomainInOpenPhish should be false when only URLhaus hits")
	}
	if !rep.IPInBlacklist {
		t.Error("IPInBlacklist should be true")
	}
}

func TestReputationNormalizesDomains(t *testing.T) {
	store := openTestStore(t, 0)

	if _, err := store.AddIndicators([]Indicator{
		{Key: "evil-domain.tk", Kind: KindDomain, ThreatType: "phishing", Source: "OpenPhish"},
	}); err != nil {
		t.Fatalf("AddIndicators failed: %v", err)
	}

	// Subdomain and www-variants must reduce to the stored registrable domain.
	rep, err := store.CheckReputation([]string{"mail.evil-domain.tk"}, nil)
	if err != nil {
		t.Fatalf("CheckReputation failed: %v", err)
	}
	if len(rep.MaliciousDomains) != 1 || rep.MaliciousDomains[0] != "evil-domain.tk" {
		t.Errorf("MaliciousDomains = %v, expected [evil-domain.tk]", rep.MaliciousDomains)
	}
	if !rep.DomainInOpenPhish {
		t.Error("DomainInOpenPhish should be true")
	}
}

func TestCheckSingleIndicators(t *testing.T) {
	store := openTestStore(t, 0)

	if _, err := store.AddIndicators([]Indicator{
		{Key: "evil-domain.tk", Kind: KindDomain, ThreatType: "phishing", Source: "OpenPhish"},
		{Key: "203.0.113.7", Kind: KindIP, ThreatType: "malicious", Source: "URLhaus"},
	}); err != nil {
		t.Fatalf("AddIndicators failed: %v", err)
	}

	testCases := []struct {
		domain   string
		expected bool
	}{
		{"evil-domain.tk", true},
		{"www.evil-domain.tk", true},
		{"clean.example.com", false},
		{"", false},
	}
	for _, tc := range testCases {
		hit, err := store.CheckDomain(tc.domain)
		if err != nil {
			t.Fatalf("CheckDomain(%q) failed: %v", tc.domain, err)
		}
		if hit != tc.expected {
			t.Errorf("CheckDomain(%q) = %v, expected %v", tc.domain, hit, tc.expected)
		}
	}

	hit, err := store.CheckIP("203.0.113.7")
	if err != nil {
		t.Fatalf("CheckIP failed: %v", err)
	}
	if !hit {
		t.Error("CheckIP(203.0.113.7) = false, expected true")
	}
}

func TestCacheCoherenceAfterImport(t *testing.T) {
	store := openTestStore(t, 0)

	// Prime a negative result into the cache.
	hit, err := store.CheckDomain("new-threat.xyz")
	if err != nil {
		t.Fatalf("CheckDomain failed: %v", err)
	}
	if hit {
		t.Fatal("unexpected hit before import")
	}

	if _, err := store.AddIndicators([]Indicator{
		{Key: "new-threat.xyz", Kind: KindDomain, ThreatType: "phishing", Source: "OpenPhish"},
	}); err != nil {
		t.Fatalf("AddIndicators failed: %v", err)
	}
	store.ClearCache()

	hit, err = store.CheckDomain("new-threat.xyz")
	if err != nil {
		t.Fatalf("CheckDomain failed: %v", err)
	}
	if !hit {
		t.Error("stale negative result survived cache invalidation")
	}
}

func TestCacheBounded(t *testing.T) {
	store := openTestStore(t, 2)

	for _, d := range []string{"first.com", "second.com", "third.com"} {
		if _, err := store.CheckDomain(d); err != nil {
			t.Fatalf("CheckDomain(%q) failed: %v", d, err)
		}
	}

	if n := store.cache.Len(); n > 2 {
		t.Errorf("cache length = %d, expected at most 2", n)
	}
}

func TestUnknownKind(t *testing.T) {
	store := openTestStore(t, 0)
	if _, err := store.Count("bogus"); !errors.Is(err, ErrStoreIO) {
		t.Errorf("expected ErrStoreIO for unknown kind, got %v", err)
	}
}
