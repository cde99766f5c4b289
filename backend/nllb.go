package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// nllb talks to an NLLB-serve compatible REST server. The locator is the
// server base URL; translation requests go to POST {base}/translate with the
// full line batch and the FLORES-200 language tags.
type nllb struct {
	baseURL string
	device  string
	client  *http.Client
}

func newNLLB(locator string, opts Options) (*nllb, error) {
	if locator == "" {
		return nil, fmt.Errorf("nllb backend requires a server URL locator")
	}
	if !strings.HasPrefix(locator, "http://") && !strings.HasPrefix(locator, "https://") {
		return nil, fmt.Errorf("nllb locator %q is not an HTTP URL", locator)
	}
	return &nllb{
		baseURL: strings.TrimRight(locator, "/"),
		device:  opts.Device,
		client:  makeHTTPClient(opts.Proxy, opts.effectiveTimeout(120*time.Second)),
	}, nil
}

// BatchTranslate submits the whole batch in one request. The response must
// carry one translation per source line.
func (b *nllb) BatchTranslate(ctx context.Context, lines []string, srcLang, tgtLang string) ([]string, error) {
	reqBody := struct {
		Source  []string `json:"source"`
		SrcLang string   `json:"src_lang"`
		TgtLang string   `json:"tgt_lang"`
		Device  string   `json:"device,omitempty"`
	}{
		Source:  lines,
		SrcLang: srcLang,
		TgtLang: tgtLang,
		Device:  b.device,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("translation request failed: %w", err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("translation server returned status %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var parsed struct {
		Translation []string `json:"translation"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("invalid translation response: %w", err)
	}
	if len(parsed.Translation) != len(lines) {
		return nil, fmt.Errorf("translation server returned %d translations for %d lines", len(parsed.Translation), len(lines))
	}

	return parsed.Translation, nil
}
