package urlcheck

import (
	"net/url"
	"strings"

	"github.com/avseitsevad/eml-phishing-analyzer/pkg/textutil"
)

// Flags are the four binary URL/domain signals fed to the feature
// builder and the rule engine.
type Flags struct {
	HasURLShortener  bool `json:"has_url_shortener"`
	HasLongDomain    bool `json:"has_long_domain"`
	HasSuspiciousTLD bool `json:"has_suspicious_tld"`
	HasIPInURL       bool `json:"has_ip_in_url"`
}

// Finding names one concrete observation behind a raised flag, for the
// audit trail of the final report.
type Finding struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Finding kinds.
const (
	FindingShortener     = "url_shortener"
	FindingLongDomain    = "long_domain"
	FindingSuspiciousTLD = "suspicious_tld"
	FindingIPHost        = "ip_in_url"
)

// longDomainThreshold is the length above which a domain string counts
// as suspiciously long.
const longDomainThreshold = 20

// shortenerHosts are known URL redirection services. A URL host matches
// when it equals an entry or ends with ".<entry>".
var shortenerHosts = []string{
	"bit.ly", "tinyurl.com", "goo.gl", "t.co", "ow.ly", "cutt.ly",
	"rb.gy", "j.mp", "tiny.cc", "short.link", "is.gd", "buff.ly",
	"rebrand.ly", "bitly.com",
}

// suspiciousTLDs are top-level domains with a high phishing incidence.
var suspiciousTLDs = map[string]bool{
	"xin": true, "win": true, "help": true, "bond": true, "cfd": true,
	"finance": true, "top": true, "xyz": true, "icu": true,
	"support": true, "vip": true, "pro": true, "sbs": true,
	"site": true, "online": true, "click": true, "tk": true,
	"ml": true, "ga": true, "cf": true, "gq": true, "club": true,
	"work": true,
}

// Analyze computes the four flags from a message's URLs and domains.
// It is a pure function; findings name every value that raised a flag.
func Analyze(urls, domains []string) (Flags, []Finding) {
	var flags Flags
	var findings []Finding

	for _, raw := range urls {
		host := hostOf(raw)
		if host == "" {
			continue
		}

		if isShortenerHost(host) {
			flags.HasURLShortener = true
			findings = append(findings, Finding{Kind: FindingShortener, Value: host})
		}

		if textutil.IsIPv4(host) && !textutil.IsPrivateIPv4(host) {
			flags.HasIPInURL = true
			findings = append(findings, Finding{Kind: FindingIPHost, Value: host})
		}
	}

	for _, domain := range domains {
		if len(domain) > longDomainThreshold {
			flags.HasLongDomain = true
			findings = append(findings, Finding{Kind: FindingLongDomain, Value: domain})
		}

		if tld := lastLabel(domain); suspiciousTLDs[tld] {
			flags.HasSuspiciousTLD = true
			findings = append(findings, Finding{Kind: FindingSuspiciousTLD, Value: domain})
		}
	}

	return flags, findings
}

// isShortenerHost matches a host against the shortener set, exactly or
// as a subdomain.
func isShortenerHost(host string) bool {
	h := strings.ToLower(host)
	for _, shortener := range shortenerHosts {
		if h == shortener || strings.HasSuffix(h, "."+shortener) {
			return true
		}
	}
	return false
}

// lastLabel returns the final dot-separated label of a domain.
func lastLabel(domain string) string {
	d := strings.ToLower(strings.Trim(domain, "."))
	if idx := strings.LastIndex(d, "."); idx >= 0 {
		return d[idx+1:]
	}
	return ""
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
