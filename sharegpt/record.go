// Package sharegpt implements reading and writing of ShareGPT conversation
// corpora.
//
// A corpus file is JSON in one of two shapes:
//
//   - a top-level array of conversation records, or
//   - a single conversation record (an object with a "conversations" key).
//
// Each conversation record holds an ordered array of messages under
// "conversations" plus arbitrary metadata (e.g. "id"). Each message has a
// "value" text field plus arbitrary metadata (e.g. "from"). Translated
// corpora additionally carry a "translated_value" field per message.
//
// Round-trip fidelity: key order from the source file is preserved, fields
// unknown to this package survive verbatim, and string values are written
// back without HTML escaping or character substitution.
package sharegpt

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Well-known field names.
const (
	// ConversationsKey holds the ordered message array of a conversation.
	ConversationsKey = "conversations"
	// ValueKey holds a message's source text.
	ValueKey = "value"
	// TranslatedValueKey holds a message's translated text.
	TranslatedValueKey = "translated_value"
)

// indent is the serialization indent unit.
const indent = "  "

// ---------------------------------------------------------------------------
// Record model
// ---------------------------------------------------------------------------

// Field is a single key of a record, with its raw JSON value.
type Field struct {
	Key string
	Raw json.RawMessage
}

// Record is an open JSON object that preserves key insertion order.
// Conversations and messages are both Records; fields this package does not
// understand round-trip losslessly.
type Record struct {
	fields []Field
	index  map[string]int
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{index: make(map[string]int)}
}

// ParseRecord parses a single JSON object into a Record.
func ParseRecord(data []byte) (*Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	r, err := decodeRecord(dec)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// decodeRecord reads one JSON object from dec, preserving key order.
func decodeRecord(dec *json.Decoder) (*Record, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parsing record: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("parsing record: expected '{', got %v", tok)
	}

	r := NewRecord()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parsing record key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("parsing record: expected string key, got %T", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("parsing record value for %q: %w", key, err)
		}

		r.setRaw(key, raw)
	}

	// Consume closing '}'.
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("parsing record: %w", err)
	}

	return r, nil
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.fields) }

// Keys returns all field names in document order.
func (r *Record) Keys() []string {
	keys := make([]string, len(r.fields))
	for i, f := range r.fields {
		keys[i] = f.Key
	}
	return keys
}

// Has reports whether the record contains the given key.
func (r *Record) Has(key string) bool {
	_, ok := r.index[key]
	return ok
}

// Raw returns the raw JSON value for key.
func (r *Record) Raw(key string) (json.RawMessage, bool) {
	if idx, ok := r.index[key]; ok {
		return r.fields[idx].Raw, true
	}
	return nil, false
}

// String returns the string value for key. The second result is false when
// the key is absent or its value is not a JSON string.
func (r *Record) String(key string) (string, bool) {
	raw, ok := r.Raw(key)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// setRaw sets key to raw, replacing an existing field in place or appending
// a new one at the end.
func (r *Record) setRaw(key string, raw json.RawMessage) {
	if idx, ok := r.index[key]; ok {
		r.fields[idx].Raw = raw
		return
	}
	r.index[key] = len(r.fields)
	r.fields = append(r.fields, Field{Key: key, Raw: raw})
}

// SetRaw sets key to a raw JSON value. New keys are appended after the
// existing fields, so added fields never disturb the original order.
func (r *Record) SetRaw(key string, raw json.RawMessage) {
	cp := make(json.RawMessage, len(raw))
	copy(cp, raw)
	r.setRaw(key, cp)
}

// SetString sets key to a string value.
func (r *Record) SetString(key, value string) {
	r.setRaw(key, encodeString(value))
}

// Clone returns a deep copy of the record. Mutating the clone (or raw values
// reachable from it) never affects the original.
func (r *Record) Clone() *Record {
	cp := &Record{
		fields: make([]Field, len(r.fields)),
		index:  make(map[string]int, len(r.index)),
	}
	for i, f := range r.fields {
		raw := make(json.RawMessage, len(f.Raw))
		copy(raw, f.Raw)
		cp.fields[i] = Field{Key: f.Key, Raw: raw}
		cp.index[f.Key] = i
	}
	return cp
}

// ---------------------------------------------------------------------------
// Conversation helpers
// ---------------------------------------------------------------------------

// ID returns the conversation identifier, or "unknown" if absent — the label
// used in diagnostics.
func (r *Record) ID() string {
	if id, ok := r.String("id"); ok {
		return id
	}
	return "unknown"
}

// Messages parses the "conversations" field into message records.
// The second result is false when the field is absent. A present field that
// is not an array of objects is an error.
func (r *Record) Messages() ([]*Record, bool, error) {
	raw, ok := r.Raw(ConversationsKey)
	if !ok {
		return nil, false, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, true, fmt.Errorf("parsing %s: %w", ConversationsKey, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, true, fmt.Errorf("parsing %s: expected array, got %v", ConversationsKey, tok)
	}

	var msgs []*Record
	for dec.More() {
		msg, err := decodeRecord(dec)
		if err != nil {
			return nil, true, fmt.Errorf("parsing %s[%d]: %w", ConversationsKey, len(msgs), err)
		}
		msgs = append(msgs, msg)
	}

	return msgs, true, nil
}

// SetMessages replaces the "conversations" field with the given messages.
func (r *Record) SetMessages(msgs []*Record) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, m := range msgs {
		if i > 0 {
			buf.WriteByte(',')
		}
		m.appendCompact(&buf)
	}
	buf.WriteByte(']')
	r.setRaw(ConversationsKey, json.RawMessage(buf.Bytes()))
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// appendCompact writes the record as a compact JSON object.
func (r *Record) appendCompact(buf *bytes.Buffer) {
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(encodeString(f.Key))
		buf.WriteByte(':')
		compact := bytes.Buffer{}
		if err := json.Compact(&compact, f.Raw); err != nil {
			buf.Write(f.Raw)
		} else {
			buf.Write(compact.Bytes())
		}
	}
	buf.WriteByte('}')
}

// appendIndent writes the record pretty-printed at the given prefix depth.
func (r *Record) appendIndent(buf *bytes.Buffer, prefix string) error {
	if len(r.fields) == 0 {
		buf.WriteString("{}")
		return nil
	}
	inner := prefix + indent
	buf.WriteString("{\n")
	for i, f := range r.fields {
		buf.WriteString(inner)
		buf.Write(encodeString(f.Key))
		buf.WriteString(": ")
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, f.Raw, inner, indent); err != nil {
			return fmt.Errorf("serializing field %q: %w", f.Key, err)
		}
		buf.Write(pretty.Bytes())
		if i < len(r.fields)-1 {
			buf.WriteByte(',')
		}
		buf.WriteByte('\n')
	}
	buf.WriteString(prefix)
	buf.WriteByte('}')
	return nil
}

// encodeString returns the JSON encoding of s without HTML escaping, so
// characters like <, > and & survive translation round-trips verbatim.
func encodeString(s string) []byte {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encode cannot fail for a plain string.
	_ = enc.Encode(s)
	return bytes.TrimRight(buf.Bytes(), "\n")
}
