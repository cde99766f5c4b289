// Package translate implements the corpus translation pipeline: per-message
// line batching against a translation backend, corpus-wide progress
// accounting, and structurally faithful reassembly of output records.
//
// The backend is an injected capability — this package never constructs,
// locates, or retries one. A backend failure aborts the whole run; there is
// no partial checkpointing, matching the all-or-nothing persistence policy.
package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/corpustools/convkit/sharegpt"
)

// Backend is the translation capability consumed by the pipeline.
// BatchTranslate must return one translation per input line, in submission
// order.
type Backend interface {
	BatchTranslate(ctx context.Context, lines []string, srcLang, tgtLang string) ([]string, error)
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options controls a translation run.
type Options struct {
	// SourceLang is the source language tag (e.g. "eng_Latn").
	SourceLang string
	// TargetLang is the target language tag (e.g. "hin_Deva").
	TargetLang string
	// OnProgress is called after each processed message with the running
	// count and the corpus-wide total. Observability only.
	OnProgress func(done, total int)
	// OnLog emits informational messages during translation.
	OnLog func(format string, args ...any)
	// OnError emits non-fatal diagnostics (e.g. items lacking a
	// "conversations" field). Fatal failures are returned, not emitted.
	OnError func(format string, args ...any)
	// Verbose enables detailed logging.
	Verbose bool
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

// ---------------------------------------------------------------------------
// Progress accounting
// ---------------------------------------------------------------------------

// CountMessages returns the total message count across the whole corpus.
// Items lacking a "conversations" field (or carrying a malformed one)
// contribute zero.
func CountMessages(c *sharegpt.Corpus) int {
	total := 0
	for _, item := range c.Items {
		msgs, ok, err := item.Messages()
		if !ok || err != nil {
			continue
		}
		total += len(msgs)
	}
	return total
}

// tracker is the single monotonic progress counter, pre-sized to the
// corpus-wide message total and advanced once per processed message.
type tracker struct {
	done  int
	total int
	on    func(done, total int)
}

func (t *tracker) tick() {
	t.done++
	if t.on != nil {
		t.on(t.done, t.total)
	}
}

// ---------------------------------------------------------------------------
// Per-message batching
// ---------------------------------------------------------------------------

// Text translates one message's raw text. The text is split on line
// boundaries, blank lines are dropped, and the surviving lines are submitted
// to the backend in a single batch. An empty batch returns "" without
// invoking the backend.
func Text(ctx context.Context, b Backend, text, srcLang, tgtLang string) (string, error) {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		return "", nil
	}

	translations, err := b.BatchTranslate(ctx, lines, srcLang, tgtLang)
	if err != nil {
		return "", err
	}
	if len(translations) != len(lines) {
		return "", fmt.Errorf("backend returned %d translations for %d lines", len(translations), len(lines))
	}

	return strings.Join(translations, "\n"), nil
}

// conversation translates every message of one conversation, returning fresh
// message records with translated_value appended. The progress counter ticks
// once per message, whether or not the backend was invoked for it.
func conversation(ctx context.Context, b Backend, msgs []*sharegpt.Record, opts Options, prog *tracker) ([]*sharegpt.Record, error) {
	out := make([]*sharegpt.Record, 0, len(msgs))
	for _, msg := range msgs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		value, _ := msg.String(sharegpt.ValueKey)

		translated, err := Text(ctx, b, value, opts.SourceLang, opts.TargetLang)
		if err != nil {
			return nil, err
		}

		cp := msg.Clone()
		cp.SetString(sharegpt.TranslatedValueKey, translated)
		out = append(out, cp)

		prog.tick()
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Corpus pipeline
// ---------------------------------------------------------------------------

// Corpus translates every message of every conversation in the corpus,
// returning a new corpus of the same shape. Input records are never mutated;
// every output record is a fresh copy.
//
// Items in a list-shaped corpus that lack a "conversations" field are passed
// through (as fresh copies, at their original positions) with a diagnostic
// emitted via Options.OnError; the run continues. A corpus with an
// unsupported shape yields sharegpt.ErrUnsupportedFormat and no result.
func Corpus(ctx context.Context, c *sharegpt.Corpus, b Backend, opts Options) (*sharegpt.Corpus, error) {
	if c.Shape == sharegpt.ShapeUnsupported {
		return nil, sharegpt.ErrUnsupportedFormat
	}

	prog := &tracker{total: CountMessages(c), on: opts.OnProgress}

	switch c.Shape {
	case sharegpt.ShapeList:
		opts.log("Processing %d conversations (%d messages)", len(c.Items), prog.total)
	case sharegpt.ShapeSingle:
		opts.log("Processing single conversation %s (%d messages)", c.Single().ID(), prog.total)
	}

	out := &sharegpt.Corpus{Shape: c.Shape, Items: make([]*sharegpt.Record, 0, len(c.Items))}

	for i, item := range c.Items {
		msgs, ok, err := item.Messages()
		if err != nil {
			return nil, fmt.Errorf("conversation %s: %w", item.ID(), err)
		}
		if !ok {
			opts.logError("Item %s has no %q field, passing through unchanged", item.ID(), sharegpt.ConversationsKey)
			out.Items = append(out.Items, item.Clone())
			continue
		}

		if opts.Verbose {
			opts.log("  Conversation %d/%d (%s): %d messages", i+1, len(c.Items), item.ID(), len(msgs))
		}

		translated, err := conversation(ctx, b, msgs, opts, prog)
		if err != nil {
			return nil, fmt.Errorf("conversation %s: %w", item.ID(), err)
		}

		cp := item.Clone()
		cp.SetMessages(translated)
		out.Items = append(out.Items, cp)
	}

	return out, nil
}
