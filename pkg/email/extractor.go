package email

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/jhillyerd/enmime"

	"github.com/avseitsevad/eml-phishing-analyzer/pkg/textutil"
)

var (
	// ErrMalformedInput reports raw bytes that decode to no usable
	// RFC-5322 header block.
	ErrMalformedInput = errors.New("malformed email input")

	// ErrTooLarge reports an attachment above the hashing cap when the
	// sentinel fallback is disabled.
	ErrTooLarge = errors.New("attachment exceeds size cap")
)

// DefaultAttachmentHashCap bounds the payload size hashed in memory.
const DefaultAttachmentHashCap = 50 << 20 // 50 MiB

// Config controls extraction behaviour.
type Config struct {
	// AttachmentHashCap is the largest decoded payload that is hashed.
	// Larger payloads receive the HashSkippedTooLarge sentinel.
	AttachmentHashCap int64

	// FailOnOversize makes Extract return ErrTooLarge instead of
	// recording the sentinel.
	FailOnOversize bool
}

// DefaultExtractorConfig returns the default extraction settings.
func DefaultExtractorConfig() *Config {
	return &Config{
		AttachmentHashCap: DefaultAttachmentHashCap,
		FailOnOversize:    false,
	}
}

// Extractor converts raw message bytes into a CanonicalEmail.
type Extractor struct {
	config *Config
}

// NewExtractor creates an extractor. A nil config selects defaults.
func NewExtractor(config *Config) *Extractor {
	if config == nil {
		config = DefaultExtractorConfig()
	}
	if config.AttachmentHashCap <= 0 {
		config.AttachmentHashCap = DefaultAttachmentHashCap
	}
	return &Extractor{config: config}
}

// ExtractFile reads a message from disk and extracts it.
func (e *Extractor) ExtractFile(path string) (*CanonicalEmail, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read message file: %w", err)
	}
	return e.Extract(raw)
}

// Extract parses one raw RFC-5322/MIME message and returns its canonical
// record. It fails only on input errors; individual undecodable parts are
// recovered with replacement characters.
func (e *Extractor) Extract(raw []byte) (*CanonicalEmail, error) {
	if !textutil.LooksLikeEmail(raw) {
		return nil, fmt.Errorf("%w: no recognisable header block", ErrMalformedInput)
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	m := &CanonicalEmail{
		From:        env.GetHeader("From"),
		To:          env.GetHeader("To"),
		ReplyTo:     env.GetHeader("Reply-To"),
		ReturnPath:  env.GetHeader("Return-Path"),
		Subject:     env.GetHeader("Subject"),
		Date:        env.GetHeader("Date"),
		MessageID:   env.GetHeader("Message-Id"),
		References:  env.GetHeader("References"),
		AuthResults: env.GetHeader("Authentication-Results"),
	}

	if env.Root != nil {
		m.ReceivedHeaders = append(m.ReceivedHeaders, env.Root.Header.Values("Received")...)
	}

	e.extractBodies(env, m)

	if err := e.extractAttachments(env, m); err != nil {
		return nil, err
	}

	harvestNetworkArtifacts(m)

	return m, nil
}

// extractBodies fills body_plain and body_html from the first matching
// non-attachment leaf of each content type.
func (e *Extractor) extractBodies(env *enmime.Envelope, m *CanonicalEmail) {
	if env.Root == nil {
		return
	}

	plain := env.Root.DepthMatchFirst(func(p *enmime.Part) bool {
		return p.ContentType == "text/plain" && !isAttachmentPart(p)
	})
	if plain != nil {
		m.BodyPlain = decodePartText(plain)
	}

	html := env.Root.DepthMatchFirst(func(p *enmime.Part) bool {
		return p.ContentType == "text/html" && !isAttachmentPart(p)
	})
	if html != nil {
		m.BodyHTML = decodePartText(html)
	}
}

// extractAttachments hashes each attachment payload in memory, recording
// the sentinel for payloads above the cap.
func (e *Extractor) extractAttachments(env *enmime.Envelope, m *CanonicalEmail) error {
	for _, part := range env.Attachments {
		att := Attachment{
			Name:        part.FileName,
			ContentType: part.ContentType,
			Size:        int64(len(part.Content)),
		}

		if att.Size > e.config.AttachmentHashCap {
			if e.config.FailOnOversize {
				return fmt.Errorf("%w: attachment %q is %d bytes (cap %d)",
					ErrTooLarge, att.Name, att.Size, e.config.AttachmentHashCap)
			}
			att.SHA256 = HashSkippedTooLarge
		} else {
			sum := sha256.Sum256(part.Content)
			att.SHA256 = hex.EncodeToString(sum[:])
		}

		m.Attachments = append(m.Attachments, att)
	}
	return nil
}

// isAttachmentPart reports whether a MIME part is delivered as an
// attachment rather than inline content.
func isAttachmentPart(p *enmime.Part) bool {
	disposition := strings.ToLower(p.Disposition)
	if strings.Contains(disposition, "attachment") {
		return true
	}
	return p.FileName != "" && disposition != "" && disposition != "inline"
}

// decodePartText returns the part content as UTF-8, applying the charset
// fallback ladder when the decoded content is not already valid.
func decodePartText(p *enmime.Part) string {
	if utf8.Valid(p.Content) {
		return string(p.Content)
	}
	return textutil.DecodeWithCharset(p.Content, p.Charset)
}
