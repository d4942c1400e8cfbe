package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind is returned when decoding a node with an unrecognized kind.
var ErrUnknownKind = errors.New("unknown node kind")

type nodeEnvelope struct {
	Kind NodeKind        `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalNode encodes n with a kind tag so UnmarshalNode can restore the
// concrete variant.
func MarshalNode(n Node) ([]byte, error) {
	if n == nil {
		return nil, fmt.Errorf("marshaling node: nil node")
	}
	data, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshaling %s node: %w", n.Kind(), err)
	}
	return json.Marshal(nodeEnvelope{Kind: n.Kind(), Data: data})
}

// UnmarshalNode decodes bytes produced by MarshalNode.
func UnmarshalNode(b []byte) (Node, error) {
	var env nodeEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("unmarshaling node envelope: %w", err)
	}
	n, err := newNode(env.Kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(env.Data, n); err != nil {
		return nil, fmt.Errorf("unmarshaling %s node: %w", env.Kind, err)
	}
	return n, nil
}

// PeekKind returns the kind tag of an encoded node without decoding the body.
func PeekKind(b []byte) (NodeKind, error) {
	var env struct {
		Kind NodeKind `json:"kind"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return "", fmt.Errorf("unmarshaling node envelope: %w", err)
	}
	return env.Kind, nil
}

func newNode(kind NodeKind) (Node, error) {
	switch kind {
	case KindChat:
		return &Chat{}, nil
	case KindMessage:
		return &Message{}, nil
	case KindSummary:
		return &Summary{}, nil
	case KindAttachment:
		return &Attachment{}, nil
	case KindEntity:
		return &Entity{}, nil
	case KindWebSearch:
		return &WebSearch{}, nil
	case KindScrapedPage:
		return &ScrapedPage{}, nil
	case KindBookmark:
		return &Bookmark{}, nil
	case KindImageMetadata:
		return &ImageMetadata{}, nil
	case KindAudioTranscript:
		return &AudioTranscript{}, nil
	case KindModelInfo:
		return &ModelInfo{}, nil
	case KindActionOutcome:
		return &ActionOutcome{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// MarshalEdge encodes e.
func MarshalEdge(e *Edge) ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEdge decodes bytes produced by MarshalEdge.
func UnmarshalEdge(b []byte) (*Edge, error) {
	var e Edge
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, fmt.Errorf("unmarshaling edge: %w", err)
	}
	return &e, nil
}
