package events

import (
	"encoding/json"
	"time"
)

// knownPayloadKeys are the inbound field names the pipeline understands.
// Anything else lands in ErrorPayload.Extra instead of being dropped.
var knownPayloadKeys = map[string]struct{}{
	"source":       {},
	"function":     {},
	"message":      {},
	"messageCourt": {},
	"referenceId":  {},
	"stackTrace":   {},
	"logCode":      {},
	"createdDate":  {},
}

// ErrorPayload is the raw inbound error event as posted by the producer.
// All known fields are optional. Unrecognized fields are preserved in
// Extra so they survive normalization and reach the inbound topic.
type ErrorPayload struct {
	Source       *string `json:"source"`
	Function     *string `json:"function"`
	Message      *string `json:"message"`
	MessageShort *string `json:"messageCourt"`
	ReferenceID  *string `json:"referenceId"`
	StackTrace   *string `json:"stackTrace"`
	LogCode      *string `json:"logCode"`

	// CreatedDate arrives in several shapes: ISO-8601 string, "Z" or
	// "+0000" suffixed string, or a numeric epoch. Parsed during
	// normalization, never here.
	CreatedDate any `json:"createdDate"`

	Extra map[string]any `json:"-"`
}

// UnmarshalJSON decodes known fields by name and collects the rest
// into Extra.
func (p *ErrorPayload) UnmarshalJSON(data []byte) error {
	type alias ErrorPayload
	var known alias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range all {
		if _, ok := knownPayloadKeys[k]; ok {
			delete(all, k)
		}
	}

	*p = ErrorPayload(known)
	if len(all) > 0 {
		p.Extra = all
	}
	return nil
}

// NormalizedEvent is the canonical projection of an inbound payload:
// text fields sanitized, timestamp parsed, every known key present in
// the JSON encoding (null when absent) so downstream consumers can
// rely on key presence.
type NormalizedEvent struct {
	Source       *string        `json:"source"`
	Function     *string        `json:"function"`
	Message      *string        `json:"message"`
	MessageShort *string        `json:"messageCourt"`
	ReferenceID  *string        `json:"referenceId"`
	StackTrace   *string        `json:"stackTrace"`
	LogCode      *string        `json:"logCode"`
	CreatedDate  *time.Time     `json:"createdDate"`
	Extra        map[string]any `json:"-"`
}

// MarshalJSON merges Extra fields inline with the known fields.
func (e NormalizedEvent) MarshalJSON() ([]byte, error) {
	type alias NormalizedEvent
	data, err := json.Marshal(alias(e))
	if err != nil {
		return nil, err
	}
	if len(e.Extra) == 0 {
		return data, nil
	}

	var merged map[string]any
	if err := json.Unmarshal(data, &merged); err != nil {
		return nil, err
	}
	for k, v := range e.Extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// Key returns the partitioning key for the inbound topic, nil when the
// payload carried no referenceId.
func (e NormalizedEvent) Key() []byte {
	if e.ReferenceID == nil || *e.ReferenceID == "" {
		return nil
	}
	return []byte(*e.ReferenceID)
}

// ResultMessage is published to the results topic by the worker pool.
// EventID echoes the inbound event's referenceId.
type ResultMessage struct {
	EventID string          `json:"event_id"`
	Result  json.RawMessage `json:"result"`
}
