// Package langcodes provides a registry of FLORES-200 language tags
// (the tag set used by the NLLB model family) for CLI validation and
// display.
package langcodes

import (
	"sort"
	"strings"
)

// Meta describes a language tag.
type Meta struct {
	// Name is the English language name.
	Name string
	// Script is the writing system part of the tag.
	Script string
}

// Registry contains the FLORES-200 tags convkit users reach for in
// practice. Unknown tags are not rejected — NLLB derivatives extend the set —
// but known tags get a display name and typo detection.
var Registry = map[string]Meta{
	"asm_Beng": {Name: "Assamese", Script: "Beng"},
	"ben_Beng": {Name: "Bengali", Script: "Beng"},
	"bod_Tibt": {Name: "Tibetan", Script: "Tibt"},
	"deu_Latn": {Name: "German", Script: "Latn"},
	"eng_Latn": {Name: "English", Script: "Latn"},
	"fra_Latn": {Name: "French", Script: "Latn"},
	"guj_Gujr": {Name: "Gujarati", Script: "Gujr"},
	"hin_Deva": {Name: "Hindi", Script: "Deva"},
	"ita_Latn": {Name: "Italian", Script: "Latn"},
	"jpn_Jpan": {Name: "Japanese", Script: "Jpan"},
	"kan_Knda": {Name: "Kannada", Script: "Knda"},
	"kas_Arab": {Name: "Kashmiri", Script: "Arab"},
	"kor_Hang": {Name: "Korean", Script: "Hang"},
	"mai_Deva": {Name: "Maithili", Script: "Deva"},
	"mal_Mlym": {Name: "Malayalam", Script: "Mlym"},
	"mar_Deva": {Name: "Marathi", Script: "Deva"},
	"npi_Deva": {Name: "Nepali", Script: "Deva"},
	"ory_Orya": {Name: "Odia", Script: "Orya"},
	"pan_Guru": {Name: "Punjabi", Script: "Guru"},
	"por_Latn": {Name: "Portuguese", Script: "Latn"},
	"rus_Cyrl": {Name: "Russian", Script: "Cyrl"},
	"san_Deva": {Name: "Sanskrit", Script: "Deva"},
	"snd_Arab": {Name: "Sindhi", Script: "Arab"},
	"spa_Latn": {Name: "Spanish", Script: "Latn"},
	"tam_Taml": {Name: "Tamil", Script: "Taml"},
	"tel_Telu": {Name: "Telugu", Script: "Telu"},
	"urd_Arab": {Name: "Urdu", Script: "Arab"},
	"zho_Hans": {Name: "Chinese (Simplified)", Script: "Hans"},
	"zho_Hant": {Name: "Chinese (Traditional)", Script: "Hant"},
}

// canonicalize normalizes tag spelling: "eng-latn" -> "eng_Latn".
func canonicalize(tag string) string {
	tag = strings.ReplaceAll(tag, "-", "_")
	parts := strings.SplitN(tag, "_", 2)
	if len(parts) != 2 {
		return tag
	}
	lang := strings.ToLower(parts[0])
	script := parts[1]
	if len(script) > 0 {
		script = strings.ToUpper(script[:1]) + strings.ToLower(script[1:])
	}
	return lang + "_" + script
}

// Resolve returns metadata for a tag, accepting case and separator variants.
// The second result is false for tags not in the registry.
func Resolve(tag string) (Meta, bool) {
	if m, ok := Registry[tag]; ok {
		return m, true
	}
	if m, ok := Registry[canonicalize(tag)]; ok {
		return m, true
	}
	return Meta{Name: tag}, false
}

// Name returns a display label for a tag: "Hindi (hin_Deva)" for known tags,
// the bare tag otherwise.
func Name(tag string) string {
	if m, ok := Resolve(tag); ok {
		return m.Name + " (" + tag + ")"
	}
	return tag
}

// Supported returns the registry tags in sorted order.
func Supported() []string {
	tags := make([]string, 0, len(Registry))
	for tag := range Registry {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
