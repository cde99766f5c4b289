// Package backend provides translation backend implementations of the
// translate.Backend capability: an NLLB-serve style REST server, an
// OpenAI-compatible chat endpoint, and a local Ollama server.
//
// All backends are plain HTTP clients. A failed call fails the run: there is
// no retry and no partial checkpointing, matching the pipeline's fail-fast
// policy.
package backend

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/corpustools/convkit/translate"
)

// Backend kinds accepted by New.
const (
	KindNLLB   = "nllb"
	KindOpenAI = "openai"
	KindOllama = "ollama"
)

// Device selectors forwarded opaquely to backends that honor them.
const (
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// Options carries construction parameters shared by all backend kinds.
type Options struct {
	// APIKey authenticates against the backend (required for openai).
	APIKey string
	// Device is the compute device selector ("cpu" or "cuda"), forwarded
	// verbatim to backends that accept one and ignored by the rest.
	Device string
	// Timeout is the per-request timeout (0 = kind default).
	Timeout time.Duration
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
}

func (o Options) effectiveTimeout(def time.Duration) time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return def
}

// New constructs a backend handle for the given kind. The locator is opaque
// to callers: a server base URL for nllb, a model name for openai and
// ollama. Construction failures happen before any translation.
func New(kind, locator string, opts Options) (translate.Backend, error) {
	if opts.Device != "" && opts.Device != DeviceCPU && opts.Device != DeviceCUDA {
		return nil, fmt.Errorf("unknown device %q (valid: %s, %s)", opts.Device, DeviceCPU, DeviceCUDA)
	}

	switch kind {
	case KindNLLB:
		return newNLLB(locator, opts)
	case KindOpenAI:
		return newChat(locator, opts, chatConfig{
			name:       "OpenAI",
			baseURL:    "https://api.openai.com/v1",
			timeout:    60 * time.Second,
			requireKey: true,
		})
	case KindOllama:
		return newChat(locator, opts, chatConfig{
			name:    "Ollama",
			baseURL: "http://localhost:11434/v1",
			timeout: 120 * time.Second,
		})
	default:
		return nil, fmt.Errorf("unknown backend kind %q (valid: %s, %s, %s)", kind, KindNLLB, KindOpenAI, KindOllama)
	}
}

// makeHTTPClient builds an HTTP client honoring an explicit proxy URL or the
// standard proxy environment variables.
func makeHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// truncate shortens s for error messages.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
