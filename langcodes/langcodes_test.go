package langcodes

import (
	"sort"
	"testing"
)

func TestResolve_Variants(t *testing.T) {
	for _, tag := range []string{"hin_Deva", "hin_deva", "HIN_DEVA", "hin-deva"} {
		m, ok := Resolve(tag)
		if !ok {
			t.Errorf("Resolve(%q) not found", tag)
			continue
		}
		if m.Name != "Hindi" {
			t.Errorf("Resolve(%q).Name = %q", tag, m.Name)
		}
	}
}

func TestResolve_Unknown(t *testing.T) {
	m, ok := Resolve("xx_Yyyy")
	if ok {
		t.Fatal("Resolve of unknown tag reported found")
	}
	if m.Name != "xx_Yyyy" {
		t.Fatalf("unknown tag fallback name = %q", m.Name)
	}
}

func TestName(t *testing.T) {
	if got := Name("hin_Deva"); got != "Hindi (hin_Deva)" {
		t.Errorf("Name(hin_Deva) = %q", got)
	}
	if got := Name("xx_Yyyy"); got != "xx_Yyyy" {
		t.Errorf("Name(unknown) = %q", got)
	}
}

func TestSupported_SortedAndComplete(t *testing.T) {
	tags := Supported()
	if len(tags) != len(Registry) {
		t.Fatalf("Supported() has %d tags, registry has %d", len(tags), len(Registry))
	}
	if !sort.StringsAreSorted(tags) {
		t.Fatalf("Supported() not sorted: %v", tags)
	}
}
