package headers

import (
	"regexp"
	"strings"

	"github.com/avseitsevad/eml-phishing-analyzer/pkg/email"
)

// Facts holds the authentication and routing evidence read from a
// message's headers. All analysis is offline; no DNS lookups are made
// because the Authentication-Results header already carries the
// receiving server's verdicts.
type Facts struct {
	SPFResult              string `json:"spf_result"`
	DKIMResult             string `json:"dkim_result"`
	DMARCResult            string `json:"dmarc_result"`
	FromDomain             string `json:"from_domain"`
	ReplyToDomain          string `json:"reply_to_domain"`
	ReturnPathDomain       string `json:"return_path_domain"`
	ReceivedCount          int    `json:"received_count"`
	HasReWithoutReferences bool   `json:"has_re_without_references"`
}

var (
	spfPattern   = regexp.MustCompile(`(?i)spf=(\w+)`)
	dkimPattern  = regexp.MustCompile(`(?i)dkim=(\w+)`)
	dmarcPattern = regexp.MustCompile(`(?i)dmarc=(\w+)`)

	addrDomainPattern = regexp.MustCompile(`@([A-Za-z0-9.-]+\.[A-Za-z]{2,})`)

	rePrefixPattern = regexp.MustCompile(`(?i)^re\s*:`)
)

// Analyze derives header facts from a canonical email. It is a pure
// function of the record and never fails; absent evidence yields the
// "none" result and empty domains.
func Analyze(m *email.CanonicalEmail) Facts {
	facts := Facts{
		SPFResult:        authResult(spfPattern, m.AuthResults),
		DKIMResult:       authResult(dkimPattern, m.AuthResults),
		DMARCResult:      authResult(dmarcPattern, m.AuthResults),
		FromDomain:       addressDomain(m.From),
		ReplyToDomain:    addressDomain(m.ReplyTo),
		ReturnPathDomain: addressDomain(m.ReturnPath),
		ReceivedCount:    len(m.ReceivedHeaders),
	}

	subject := strings.TrimSpace(m.Subject)
	references := strings.TrimSpace(m.References)
	facts.HasReWithoutReferences = rePrefixPattern.MatchString(subject) && references == ""

	return facts
}

// authResult extracts the first mechanism token from an
// Authentication-Results header, defaulting to "none".
func authResult(pattern *regexp.Regexp, authResults string) string {
	if match := pattern.FindStringSubmatch(authResults); match != nil {
		return strings.ToLower(match[1])
	}
	return "none"
}

// addressDomain returns the lowercased host of the first address in a
// header value, or "" when no address is present.
func addressDomain(header string) string {
	if match := addrDomainPattern.FindStringSubmatch(header); match != nil {
		return strings.ToLower(match[1])
	}
	return ""
}
