// Package sanitize turns raw inbound error payloads into their
// canonical shape: sensitive tokens redacted, timestamps coerced to
// UTC instants, every known field present. All functions are pure.
package sanitize

import (
	"regexp"
	"time"

	"github.com/relvacode/iso8601"
	"go.uber.org/zap"

	"github.com/Err-Tools/error-remediation-pipeline/internal/events"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`)
	tokenRe = regexp.MustCompile(`(?i)(token|bearer|jwt)[:=]\s*([A-Za-z0-9\-._~+/]+=*)`)
	uuidRe  = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}\b`)
	idRe    = regexp.MustCompile(`\bID[:=]?\s*[A-Za-z0-9_-]{6,}\b`)
)

const (
	emailPlaceholder = "[EMAIL]"
	uuidPlaceholder  = "[UUID]"
	idPlaceholder    = "[ID]"
	tokenReplacement = "${1}:[REDACTED]"
)

// Sanitize runs the redaction chain over text in a fixed order:
// email, token, UUID, generic ID. The placeholders never re-match any
// pattern in the chain, so the operation is idempotent.
func Sanitize(text string) string {
	if text == "" {
		return text
	}
	t := emailRe.ReplaceAllString(text, emailPlaceholder)
	t = tokenRe.ReplaceAllString(t, tokenReplacement)
	t = uuidRe.ReplaceAllString(t, uuidPlaceholder)
	t = idRe.ReplaceAllString(t, idPlaceholder)
	return t
}

// timestampLayouts cover the four-digit-offset variants ("+0000")
// that strict RFC 3339 parsing rejects.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05-0700",
}

// ParseTimestamp coerces a createdDate value into a UTC instant.
// Accepts ISO-8601 strings (with "Z", "+00:00" or "+0000" offsets) and
// numeric epoch seconds. Returns nil for anything unparsable; it never
// fails, the caller only loses the event-reported time.
func ParseTimestamp(value any) *time.Time {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		u := v.UTC()
		return &u
	case string:
		if v == "" {
			return nil
		}
		if ts, err := iso8601.ParseString(v); err == nil {
			u := ts.UTC()
			return &u
		}
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				u := ts.UTC()
				return &u
			}
		}
		return nil
	case float64:
		u := time.Unix(int64(v), 0).UTC()
		return &u
	case int64:
		u := time.Unix(v, 0).UTC()
		return &u
	case int:
		u := time.Unix(int64(v), 0).UTC()
		return &u
	default:
		return nil
	}
}

// Normalize produces the canonical event for a raw payload. Known text
// fields go through the redaction chain, the creation timestamp is
// parsed, unknown fields are carried along untouched. Unparsable
// timestamps are logged at warn level and become nil.
func Normalize(payload events.ErrorPayload, log *zap.Logger) events.NormalizedEvent {
	out := events.NormalizedEvent{
		Source:       sanitizePtr(payload.Source),
		Function:     sanitizePtr(payload.Function),
		Message:      sanitizePtr(payload.Message),
		MessageShort: sanitizePtr(payload.MessageShort),
		ReferenceID:  sanitizePtr(payload.ReferenceID),
		StackTrace:   sanitizePtr(payload.StackTrace),
		LogCode:      payload.LogCode,
		Extra:        payload.Extra,
	}

	out.CreatedDate = ParseTimestamp(payload.CreatedDate)
	if out.CreatedDate == nil && payload.CreatedDate != nil {
		log.Warn("could not parse createdDate", zap.Any("value", payload.CreatedDate))
	}

	return out
}

func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := Sanitize(*s)
	return &clean
}
