package email

// HashSkippedTooLarge is recorded instead of a SHA-256 digest when an
// attachment payload exceeds the configured hashing cap.
const HashSkippedTooLarge = "skipped_too_large"

// CanonicalEmail is the normalised record extracted from one raw message.
// It is produced once per message and read-only afterwards.
type CanonicalEmail struct {
	From            string       `json:"from"`
	To              string       `json:"to"`
	ReplyTo         string       `json:"reply_to"`
	ReturnPath      string       `json:"return_path"`
	Subject         string       `json:"subject"`
	Date            string       `json:"date"`
	MessageID       string       `json:"message_id"`
	References      string       `json:"references"`
	BodyPlain       string       `json:"body_plain"`
	BodyHTML        string       `json:"body_html"`
	AuthResults     string       `json:"auth_results"`
	ReceivedHeaders []string     `json:"received_headers"`
	Attachments     []Attachment `json:"attachments"`
	URLs            []string     `json:"urls"`
	Domains         []string     `json:"domains"`
	IPs             []string     `json:"ips"`
}

// Attachment describes one attachment part. SHA256 holds the hex digest
// of the decoded payload, or HashSkippedTooLarge above the cap.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
}

// Body returns the preferred text body: plain when present, else HTML.
func (m *CanonicalEmail) Body() string {
	if m.BodyPlain != "" {
		return m.BodyPlain
	}
	return m.BodyHTML
}
