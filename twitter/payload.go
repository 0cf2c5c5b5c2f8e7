package twitter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrUnknownPayload   = errors.New("unrecognized mention payload")
	ErrMalformedPayload = errors.New("malformed mention payload")
)

type PayloadKind int

const (
	PayloadV1 PayloadKind = iota + 1
	PayloadV2
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadV1:
		return "v1"
	case PayloadV2:
		return "v2"
	default:
		return "unknown"
	}
}

// RawMention is one of the two shapes the platform delivers mentions in:
// *V1Tweet (embedded media) or *V2Tweet (media in a separate expansion table).
type RawMention interface {
	Kind() PayloadKind
	isRawMention()
}

// DecodeMention picks the payload shape. This is the only place the two
// schemas are told apart.
func DecodeMention(raw json.RawMessage) (RawMention, error) {
	var probe struct {
		Data  json.RawMessage `json:"data"`
		IDStr string          `json:"id_str"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	switch {
	case len(probe.Data) > 0 && !bytes.Equal(probe.Data, []byte("null")):
		var v2 V2Tweet
		if err := json.Unmarshal(raw, &v2); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return &v2, nil
	case probe.IDStr != "":
		var v1 V1Tweet
		if err := json.Unmarshal(raw, &v1); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return &v1, nil
	default:
		return nil, ErrUnknownPayload
	}
}

// DecodeBatch splits a pushed batch into its records. It accepts a bare JSON
// array, {"events": [...]} or the account activity {"tweet_create_events": [...]} envelope.
func DecodeBatch(body []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}

	var records []json.RawMessage
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return records, nil
	}

	var envelope struct {
		Events            []json.RawMessage `json:"events"`
		TweetCreateEvents []json.RawMessage `json:"tweet_create_events"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	records = append(records, envelope.Events...)
	records = append(records, envelope.TweetCreateEvents...)
	return records, nil
}
