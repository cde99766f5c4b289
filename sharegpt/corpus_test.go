package sharegpt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Shape detection
// ---------------------------------------------------------------------------

func TestParse_ListShape(t *testing.T) {
	c, err := Parse([]byte(`[{"id": "a", "conversations": []}, {"id": "b", "conversations": []}]`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if c.Shape != ShapeList {
		t.Fatalf("shape = %v, want list", c.Shape)
	}
	if len(c.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(c.Items))
	}
	if c.Items[0].ID() != "a" || c.Items[1].ID() != "b" {
		t.Fatalf("item order: %q, %q", c.Items[0].ID(), c.Items[1].ID())
	}
}

func TestParse_SingleShape(t *testing.T) {
	c, err := Parse([]byte(`{"id": "solo", "conversations": [{"value": "hi"}]}`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if c.Shape != ShapeSingle {
		t.Fatalf("shape = %v, want single", c.Shape)
	}
	if c.Single() == nil || c.Single().ID() != "solo" {
		t.Fatal("Single() did not return the record")
	}
}

func TestParse_UnsupportedShapes(t *testing.T) {
	cases := []string{
		`{"id": "x", "data": []}`, // object without conversations
		`"just a string"`,
		`42`,
		`null`,
	}
	for _, in := range cases {
		c, err := Parse([]byte(in))
		if err != nil {
			t.Fatalf("Parse(%s) error: %v", in, err)
		}
		if c.Shape != ShapeUnsupported {
			t.Errorf("Parse(%s) shape = %v, want unsupported", in, c.Shape)
		}
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	if _, err := Parse([]byte(`[{"id":`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
	if _, err := Parse([]byte(``)); err == nil {
		t.Fatal("expected error for empty input")
	}
}

// ---------------------------------------------------------------------------
// Serialization fidelity
// ---------------------------------------------------------------------------

func TestMarshal_PreservesUnknownFieldsAndOrder(t *testing.T) {
	in := `[{"custom_meta": {"weight": 0.5}, "id": "a", "conversations": [{"from": "human", "value": "hi", "extra": true}]}]`
	c, err := Parse([]byte(in))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	out, err := c.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	s := string(out)

	// Unknown fields survive.
	for _, want := range []string{`"custom_meta"`, `"weight"`, `"extra"`} {
		if !strings.Contains(s, want) {
			t.Errorf("output lost field %s:\n%s", want, s)
		}
	}
	// Key order survives: custom_meta precedes id precedes conversations.
	if !(strings.Index(s, "custom_meta") < strings.Index(s, `"id"`) &&
		strings.Index(s, `"id"`) < strings.Index(s, "conversations")) {
		t.Errorf("key order not preserved:\n%s", s)
	}
	// Round-trip: the output parses back to the same shape and count.
	again, err := Parse(out)
	if err != nil {
		t.Fatalf("reparse error: %v", err)
	}
	if again.Shape != ShapeList || len(again.Items) != 1 {
		t.Fatalf("reparse shape=%v items=%d", again.Shape, len(again.Items))
	}
}

func TestMarshal_SingleShape(t *testing.T) {
	c, err := Parse([]byte(`{"id": "solo", "conversations": []}`))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	out, err := c.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	s := string(out)
	if strings.HasPrefix(s, "[") {
		t.Fatalf("single corpus serialized as array:\n%s", s)
	}
	if !strings.HasSuffix(s, "}\n") {
		t.Fatalf("output should end with closing brace and newline:\n%q", s)
	}
}

func TestMarshal_EmptyList(t *testing.T) {
	c := &Corpus{Shape: ShapeList}
	out, err := c.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if string(out) != "[]\n" {
		t.Fatalf("empty list = %q, want []\\n", out)
	}
}

func TestMarshal_Unsupported(t *testing.T) {
	c := &Corpus{Shape: ShapeUnsupported}
	if _, err := c.Marshal(); err == nil {
		t.Fatal("expected error marshaling unsupported corpus")
	}
}

func TestMarshal_DoesNotEscapeHTML(t *testing.T) {
	r := NewRecord()
	r.SetString("value", "a < b && c > d")
	c := &Corpus{Shape: ShapeList, Items: []*Record{r}}
	out, err := c.Marshal()
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if strings.Contains(string(out), `\u003c`) || strings.Contains(string(out), `\u0026`) {
		t.Fatalf("output HTML-escaped:\n%s", out)
	}
	if !strings.Contains(string(out), "a < b && c > d") {
		t.Fatalf("value not written verbatim:\n%s", out)
	}
}

// ---------------------------------------------------------------------------
// Files
// ---------------------------------------------------------------------------

func TestLoadFileAndWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corpus.json")
	src := `[{"id": "a", "conversations": [{"from": "human", "value": "hello"}]}]`
	if err := os.WriteFile(path, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}
	if c.Shape != ShapeList || len(c.Items) != 1 {
		t.Fatalf("loaded shape=%v items=%d", c.Shape, len(c.Items))
	}

	out := filepath.Join(dir, "nested", "out.json")
	if err := c.WriteFile(out); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	again, err := LoadFile(out)
	if err != nil {
		t.Fatalf("LoadFile of written file: %v", err)
	}
	msgs, ok, err := again.Items[0].Messages()
	if err != nil || !ok || len(msgs) != 1 {
		t.Fatalf("written corpus messages: ok=%v err=%v n=%d", ok, err, len(msgs))
	}
	if v, _ := msgs[0].String(ValueKey); v != "hello" {
		t.Fatalf("written value = %q", v)
	}
}

func TestLoadFile_MissingPath(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
