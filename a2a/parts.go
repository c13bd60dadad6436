package a2a

import (
	"encoding/json"
	"fmt"
)

// Part is a typed content fragment of a message or artifact. The set of
// implementations is closed: TextPart, FilePart and DataPart.
type Part interface {
	isPart()
	// PartType returns the wire discriminator ("text", "file" or "data").
	PartType() string
}

// TextPart represents a plain text part.
type TextPart struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FilePart carries a file either inline (base64 bytes) or by URI.
type FilePart struct {
	File     FileContent    `json:"file"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// FileContent holds exactly one of Bytes or URI.
type FileContent struct {
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Bytes    string `json:"bytes,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// DataPart represents structured key-value data.
type DataPart struct {
	Data     map[string]any `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func (TextPart) isPart() {}
func (FilePart) isPart() {}
func (DataPart) isPart() {}

func (TextPart) PartType() string { return "text" }
func (FilePart) PartType() string { return "file" }
func (DataPart) PartType() string { return "data" }

func (p TextPart) MarshalJSON() ([]byte, error) {
	type alias TextPart
	return marshalTyped("text", alias(p))
}

func (p FilePart) MarshalJSON() ([]byte, error) {
	type alias FilePart
	return marshalTyped("file", alias(p))
}

func (p DataPart) MarshalJSON() ([]byte, error) {
	type alias DataPart
	return marshalTyped("data", alias(p))
}

// marshalTyped encodes v and prepends the "type" member.
func marshalTyped(kind string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	head := fmt.Sprintf(`{"type":%q`, kind)
	if len(body) <= 2 {
		return []byte(head + "}"), nil
	}
	return append([]byte(head+","), body[1:]...), nil
}

// Parts is an ordered list of parts that decodes each element by its
// "type" discriminator.
type Parts []Part

// UnmarshalJSON implements json.Unmarshaler.
func (ps *Parts) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	out := make(Parts, 0, len(raws))
	for i, raw := range raws {
		p, err := UnmarshalPart(raw)
		if err != nil {
			return fmt.Errorf("part %d: %w", i, err)
		}
		out = append(out, p)
	}
	*ps = out
	return nil
}

// UnmarshalPart decodes a single part.
func UnmarshalPart(raw []byte) (Part, error) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	switch probe.Type {
	case "text":
		var p TextPart
		err := json.Unmarshal(raw, &p)
		return p, err
	case "file":
		var p FilePart
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		if (p.File.Bytes == "") == (p.File.URI == "") {
			return nil, fmt.Errorf("file part must carry exactly one of bytes or uri")
		}
		return p, nil
	case "data":
		var p DataPart
		err := json.Unmarshal(raw, &p)
		return p, err
	default:
		return nil, fmt.Errorf("unknown part type %q", probe.Type)
	}
}

// Text concatenates the text parts, separated by newlines.
func (ps Parts) Text() string {
	var s string
	for _, p := range ps {
		if tp, ok := p.(TextPart); ok {
			if s != "" {
				s += "\n"
			}
			s += tp.Text
		}
	}
	return s
}
