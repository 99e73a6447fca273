package textutil

import (
	"bufio"
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// fallbackEncodings are tried in order when bytes are not valid UTF-8.
// Windows-1251 and KOI8-R cover the Cyrillic mail traffic this analyzer
// is expected to see.
var fallbackEncodings = []encoding.Encoding{
	charmap.Windows1251,
	charmap.KOI8R,
}

// charsetAliases maps lowercased MIME charset labels to decoders.
var charsetAliases = map[string]encoding.Encoding{
	"windows-1251": charmap.Windows1251,
	"cp1251":       charmap.Windows1251,
	"win-1251":     charmap.Windows1251,
	"koi8-r":       charmap.KOI8R,
	"koi8":         charmap.KOI8R,
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-5":   charmap.ISO8859_5,
	"cp866":        charmap.CodePage866,
	"ibm866":       charmap.CodePage866,
}

// DecodeText converts raw bytes to a UTF-8 string. Valid UTF-8 passes
// through unchanged; otherwise Windows-1251 and KOI8-R are tried in order,
// and a candidate is accepted only when it decodes without replacement
// characters. As a last resort invalid sequences are replaced.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	for _, enc := range fallbackEncodings {
		decoded, err := enc.NewDecoder().Bytes(b)
		if err != nil {
			continue
		}
		if !bytes.ContainsRune(decoded, utf8.RuneError) {
			return string(decoded)
		}
	}

	return strings.ToValidUTF8(string(b), string(utf8.RuneError))
}

// DecodeWithCharset decodes bytes using a declared MIME charset. Unknown
// or empty charsets fall back to the DecodeText ladder. Decoding never
// fails; undecodable sequences are replaced.
func DecodeWithCharset(b []byte, charset string) string {
	cs := strings.ToLower(strings.TrimSpace(charset))

	switch cs {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		if utf8.Valid(b) {
			return string(b)
		}
		return DecodeText(b)
	}

	if enc, ok := charsetAliases[cs]; ok {
		decoded, err := enc.NewDecoder().Bytes(b)
		if err == nil {
			return string(decoded)
		}
	}

	return DecodeText(b)
}

// NormalizeHostname lowercases a host name, trims surrounding whitespace
// and dots, and strips a single leading "www." label.
func NormalizeHostname(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	h = strings.Trim(h, ".")
	h = strings.TrimPrefix(h, "www.")
	return h
}

// RegistrableDomain reduces a host name to its registrable domain
// (eTLD+1) using the public suffix list. Hosts the list cannot place are
// reduced to their last two labels. IPv4 literals and empty strings pass
// through unchanged.
func RegistrableDomain(host string) string {
	h := NormalizeHostname(host)
	if h == "" || IsIPv4(h) {
		return h
	}

	if etld, err := publicsuffix.EffectiveTLDPlusOne(h); err == nil {
		return etld
	}

	// Fallback when the suffix list has no answer for this host.
	labels := strings.Split(h, ".")
	if len(labels) >= 2 {
		return strings.Join(labels[len(labels)-2:], ".")
	}
	return h
}

// IsIPv4 reports whether s is a dotted-quad IPv4 address with each octet
// in 0..255.
func IsIPv4(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if len(p) == 0 || len(p) > 3 {
			return false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 {
			return false
		}
	}
	return true
}

// IsPrivateIPv4 reports whether s is an RFC-1918 address
// (10/8, 192.168/16, 172.16/12). Non-IPv4 input returns false.
func IsPrivateIPv4(s string) bool {
	if !IsIPv4(s) {
		return false
	}
	parts := strings.Split(s, ".")
	first, _ := strconv.Atoi(parts[0])
	second, _ := strconv.Atoi(parts[1])

	switch {
	case first == 10:
		return true
	case first == 192 && second == 168:
		return true
	case first == 172 && second >= 16 && second <= 31:
		return true
	}
	return false
}

// headerFields that qualify raw bytes as an email for LooksLikeEmail.
var headerFields = []string{"from:", "to:", "subject:", "date:"}

// LooksLikeEmail reports whether raw bytes begin with an RFC-5322 header
// block containing at least one of From, To, Subject or Date. It is a
// cheap pre-parse gate, not a full validation.
func LooksLikeEmail(raw []byte) bool {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	sawHeader := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			break
		}
		lower := strings.ToLower(line)
		for _, field := range headerFields {
			if strings.HasPrefix(lower, field) {
				sawHeader = true
			}
		}
	}
	return sawHeader
}

// StripHTML returns the visible text of an HTML document. Script and
// style subtrees contribute nothing. Plain text passes through with
// whitespace collapsed between text nodes.
func StripHTML(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var sb strings.Builder
	var walk func(n *html.Node, suppressed bool)
	walk = func(n *html.Node, suppressed bool) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			suppressed = true
		}
		if n.Type == html.TextNode && !suppressed {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, suppressed)
		}
	}
	walk(doc, false)
	return sb.String()
}
