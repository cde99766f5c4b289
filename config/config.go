// Package config — .convkit.yaml configuration file support.
//
// When a .convkit.yaml file exists in the working directory, it supplies
// defaults for the translate command. Flags always take precedence over the
// file; the file takes precedence over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = ".convkit.yaml"

// File is the top-level .convkit.yaml structure.
type File struct {
	// Backend is the backend kind: "nllb", "openai", or "ollama".
	Backend string `yaml:"backend,omitempty"`
	// Model is the backend locator (server URL or model name).
	Model string `yaml:"model,omitempty"`
	// SourceLang is the source language tag (e.g. "eng_Latn").
	SourceLang string `yaml:"src_lang,omitempty"`
	// TargetLang is the target language tag (e.g. "hin_Deva").
	TargetLang string `yaml:"tgt_lang,omitempty"`
	// Device is the compute device selector: "cpu" or "cuda".
	Device string `yaml:"device,omitempty"`
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string `yaml:"proxy,omitempty"`
	// Timeout is the per-request timeout (e.g. "120s").
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// validBackends lists the backend kinds the config file accepts. Kept in
// sync with the backend package constants.
var validBackends = map[string]bool{"nllb": true, "openai": true, "ollama": true}

// Load reads .convkit.yaml from the given directory.
// Returns nil if no config file exists.
func Load(dir string) (*File, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if f.Backend != "" && !validBackends[f.Backend] {
		return nil, fmt.Errorf("%s: unknown backend %q (valid: nllb, openai, ollama)", path, f.Backend)
	}
	if f.Device != "" && f.Device != "cpu" && f.Device != "cuda" {
		return nil, fmt.Errorf("%s: unknown device %q (valid: cpu, cuda)", path, f.Device)
	}

	return &f, nil
}

// Resolve returns the first non-empty value: flag, config file, built-in
// default.
func Resolve(flag, fromFile, def string) string {
	if flag != "" {
		return flag
	}
	if fromFile != "" {
		return fromFile
	}
	return def
}
