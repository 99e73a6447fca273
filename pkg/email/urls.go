package email

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/avseitsevad/eml-phishing-analyzer/pkg/textutil"
)

var (
	urlPattern = regexp.MustCompile(`(?i)\b(?:https?|ftp)://[^\s<>"']+`)

	// emailDomainPattern captures the host after "@" in address headers.
	// The alphabetic TLD requirement keeps IPv4 literals out.
	emailDomainPattern = regexp.MustCompile(`@([A-Za-z0-9.-]+\.[A-Za-z]{2,})`)

	// receivedFromPattern captures the relay host after "from" in a
	// Received header.
	receivedFromPattern = regexp.MustCompile(`(?i)from\s+((?:[a-z0-9](?:[a-z0-9\-]{0,61}[a-z0-9])?\.)+[a-z]{2,})`)

	ipv4Pattern = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

// urlAttrTags lists the HTML elements whose href/src/action attributes
// are harvested for URLs.
var urlAttrTags = map[string]bool{
	"a":      true,
	"img":    true,
	"link":   true,
	"script": true,
	"iframe": true,
	"form":   true,
}

var urlAttrNames = map[string]bool{
	"href":   true,
	"src":    true,
	"action": true,
}

// harvestNetworkArtifacts fills URLs, Domains and IPs from the already
// extracted headers and bodies.
func harvestNetworkArtifacts(m *CanonicalEmail) {
	urls := newOrderedSet()

	for _, u := range extractURLsFromText(m.BodyPlain) {
		urls.add(u)
	}

	if m.BodyHTML != "" {
		attrURLs, visibleText := parseHTMLBody(m.BodyHTML)
		for _, u := range attrURLs {
			if isSupportedScheme(u) {
				urls.add(u)
			}
		}
		for _, u := range extractURLsFromText(visibleText) {
			urls.add(u)
		}
	}

	m.URLs = urls.values()

	domains := make(map[string]bool)
	ips := make(map[string]bool)

	addDomain := func(d string) {
		d = textutil.NormalizeHostname(d)
		if d == "" || textutil.IsIPv4(d) {
			return
		}
		domains[d] = true
	}
	addIP := func(ip string) {
		if textutil.IsIPv4(ip) {
			ips[ip] = true
		}
	}

	for _, raw := range m.URLs {
		host := hostOf(raw)
		if host == "" {
			continue
		}
		if textutil.IsIPv4(host) {
			addIP(host)
		} else {
			addDomain(host)
		}
	}

	for _, header := range []string{m.From, m.To, m.ReplyTo, m.ReturnPath} {
		for _, match := range emailDomainPattern.FindAllStringSubmatch(header, -1) {
			addDomain(match[1])
		}
	}

	for _, received := range m.ReceivedHeaders {
		for _, match := range receivedFromPattern.FindAllStringSubmatch(received, -1) {
			addDomain(match[1])
		}
		for _, candidate := range ipv4Pattern.FindAllString(received, -1) {
			addIP(candidate)
		}
	}

	m.Domains = sortedKeys(domains)
	m.IPs = sortedKeys(ips)
}

// extractURLsFromText finds http/https/ftp URLs in free text, trimming
// punctuation that commonly trails a URL in prose.
func extractURLsFromText(text string) []string {
	if text == "" {
		return nil
	}
	matches := urlPattern.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, u := range matches {
		u = strings.TrimRight(u, ".,;:!?)]}>")
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

// parseHTMLBody walks an HTML document collecting URL-bearing attribute
// values and the visible text. Script and style subtrees contribute
// attribute values but never text.
func parseHTMLBody(body string) (attrURLs []string, visibleText string) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, ""
	}

	var text strings.Builder
	var walk func(n *html.Node, suppressed bool)
	walk = func(n *html.Node, suppressed bool) {
		if n.Type == html.ElementNode {
			tag := strings.ToLower(n.Data)
			if urlAttrTags[tag] {
				for _, attr := range n.Attr {
					if urlAttrNames[strings.ToLower(attr.Key)] {
						v := strings.TrimSpace(attr.Val)
						if v != "" {
							attrURLs = append(attrURLs, v)
						}
					}
				}
			}
			if tag == "script" || tag == "style" {
				suppressed = true
			}
		}
		if n.Type == html.TextNode && !suppressed {
			text.WriteString(n.Data)
			text.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, suppressed)
		}
	}
	walk(doc, false)

	return attrURLs, text.String()
}

// isSupportedScheme keeps only http, https and ftp URLs.
func isSupportedScheme(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "ftp://")
}

// hostOf returns the hostname of a URL, or "" when it cannot be parsed.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// orderedSet deduplicates strings preserving first-seen order.
type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool)}
}

func (s *orderedSet) add(v string) {
	if v == "" || s.seen[v] {
		return
	}
	s.seen[v] = true
	s.items = append(s.items, v)
}

func (s *orderedSet) values() []string {
	return s.items
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
