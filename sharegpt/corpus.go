package sharegpt

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ---------------------------------------------------------------------------
// Corpus shapes
// ---------------------------------------------------------------------------

// Shape classifies the top-level structure of a corpus file. It is resolved
// once at load time; all downstream logic branches on it.
type Shape int

const (
	// ShapeList is an ordered sequence of conversation records.
	ShapeList Shape = iota
	// ShapeSingle is one conversation record.
	ShapeSingle
	// ShapeUnsupported is valid JSON that is neither of the above.
	ShapeUnsupported
)

// String returns the shape name used in logs.
func (s Shape) String() string {
	switch s {
	case ShapeList:
		return "list"
	case ShapeSingle:
		return "single"
	default:
		return "unsupported"
	}
}

// ErrUnsupportedFormat reports a corpus whose shape is neither a conversation
// list nor a single conversation.
var ErrUnsupportedFormat = errors.New("unsupported corpus format")

// Corpus is a fully materialized corpus. For ShapeList, Items holds every
// top-level record in document order; for ShapeSingle, Items holds exactly
// one record. ShapeUnsupported corpora have no items.
type Corpus struct {
	Shape Shape
	Items []*Record
}

// Single returns the record of a ShapeSingle corpus.
func (c *Corpus) Single() *Record {
	if c.Shape != ShapeSingle || len(c.Items) == 0 {
		return nil
	}
	return c.Items[0]
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// LoadFile reads and parses a corpus file. Unreadable paths and malformed
// JSON are fatal; an unrecognized top-level shape is not — the returned
// corpus carries ShapeUnsupported and the caller decides how to surface it.
func LoadFile(path string) (*Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return c, nil
}

// Parse parses corpus JSON and classifies its shape.
func Parse(data []byte) (*Corpus, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing corpus: %w", err)
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		// A bare scalar at the top level: valid JSON, unsupported corpus.
		return &Corpus{Shape: ShapeUnsupported}, nil
	}

	switch delim {
	case '[':
		c := &Corpus{Shape: ShapeList}
		for dec.More() {
			rec, err := decodeRecord(dec)
			if err != nil {
				return nil, fmt.Errorf("parsing corpus item %d: %w", len(c.Items), err)
			}
			c.Items = append(c.Items, rec)
		}
		return c, nil

	case '{':
		rec := NewRecord()
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("parsing corpus: %w", err)
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("parsing corpus: expected string key, got %T", keyTok)
			}
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, fmt.Errorf("parsing corpus value for %q: %w", key, err)
			}
			rec.setRaw(key, raw)
		}
		if !rec.Has(ConversationsKey) {
			return &Corpus{Shape: ShapeUnsupported}, nil
		}
		return &Corpus{Shape: ShapeSingle, Items: []*Record{rec}}, nil

	default:
		return &Corpus{Shape: ShapeUnsupported}, nil
	}
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// Marshal serializes the corpus with 2-space indentation. The output mirrors
// the input shape: a JSON array for ShapeList, a single object for
// ShapeSingle.
func (c *Corpus) Marshal() ([]byte, error) {
	if c.Shape == ShapeUnsupported {
		return nil, ErrUnsupportedFormat
	}

	var buf bytes.Buffer
	switch c.Shape {
	case ShapeSingle:
		if err := c.Items[0].appendIndent(&buf, ""); err != nil {
			return nil, err
		}
	case ShapeList:
		if len(c.Items) == 0 {
			buf.WriteString("[]")
			break
		}
		buf.WriteString("[\n")
		for i, rec := range c.Items {
			buf.WriteString(indent)
			if err := rec.appendIndent(&buf, indent); err != nil {
				return nil, err
			}
			if i < len(c.Items)-1 {
				buf.WriteByte(',')
			}
			buf.WriteByte('\n')
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteFile serializes the corpus and writes it to path.
func (c *Corpus) WriteFile(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
