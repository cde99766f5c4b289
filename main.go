// convkit — ShareGPT conversation corpus translation kit.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/corpustools/convkit/backend"
	"github.com/corpustools/convkit/config"
	"github.com/corpustools/convkit/fetch"
	"github.com/corpustools/convkit/i18n"
	"github.com/corpustools/convkit/langcodes"
	"github.com/corpustools/convkit/settings"
	"github.com/corpustools/convkit/sharegpt"
	"github.com/corpustools/convkit/translate"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global flag
// ---------------------------------------------------------------------------

var rootDir string

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "convkit",
		Short: "ShareGPT conversation corpus translation kit",
		Long: `convkit — ShareGPT conversation corpus translation kit.

Translates multi-turn conversation corpora (ShareGPT JSON) with an external
translation backend, adding a translated_value field to every message while
preserving all original fields and ordering.

Commands:
  translate   Translate a corpus file
  fetch       Download a corpus file
  status      Show corpus shape and statistics
  auth        Manage backend API keys

Backends:
  nllb     NLLB-serve compatible REST server (locator = server URL)
  openai   OpenAI-compatible chat endpoint (locator = model name, API key)
  ollama   Local Ollama server (locator = model name)`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global persistent flag — inherited by all subcommands
	root.PersistentFlags().StringVar(&rootDir, "root", ".", "Directory holding .convkit.yaml")

	root.AddCommand(
		newTranslateCmd(),
		newFetchCmd(),
		newStatusCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("convkit version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// translate
// ---------------------------------------------------------------------------

func newTranslateCmd() *cobra.Command {
	var (
		// Input / output
		inputPath  string
		outputPath string

		// Backend selection
		backendKind string
		model       string
		apiKey      string
		device      string

		// Languages
		srcLang string
		tgtLang string

		// Network
		timeout time.Duration
		proxy   string

		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a corpus file",
		Long: `Translate every message of a ShareGPT corpus file.

Each message's text is split into lines, blank lines are dropped, and the
remaining lines are sent to the backend in a single batch per message. The
output mirrors the input structure exactly, with a translated_value field
added to every message.

Omit --output to validate the run without writing anything.

Examples:
  # Translate against a local NLLB-serve instance
  convkit translate -i corpus.json -o corpus.hi.json -m http://localhost:6060

  # Different language pair, CUDA-backed server
  convkit translate -i corpus.json -o out.json -m http://localhost:6060 \
      --src-lang eng_Latn --tgt-lang tam_Taml --device cuda

  # OpenAI-compatible endpoint
  convkit translate -i corpus.json -o out.json --backend openai -m gpt-4o`,
		Run: func(cmd *cobra.Command, args []string) {
			runTranslate(translateArgs{
				inputPath: inputPath, outputPath: outputPath,
				backendKind: backendKind, model: model, apiKey: apiKey,
				device: device, srcLang: srcLang, tgtLang: tgtLang,
				timeout: timeout, proxy: proxy, verbose: verbose,
			})
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Corpus file to read (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (omit to skip persistence)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Backend locator: server URL or model name (required)")
	cmd.Flags().StringVar(&backendKind, "backend", "", "Backend kind: nllb, openai, ollama (default nllb)")
	cmd.Flags().StringVar(&srcLang, "src-lang", "", "Source language tag (default eng_Latn)")
	cmd.Flags().StringVar(&tgtLang, "tgt-lang", "", "Target language tag (default hin_Deva)")
	cmd.Flags().StringVar(&device, "device", "", "Compute device: cpu or cuda (default cpu)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "Backend API key (or CONVKIT_API_KEY env var)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Request timeout (0 = backend default)")
	cmd.Flags().StringVar(&proxy, "proxy", "", "HTTP/HTTPS proxy URL")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Enable detailed logging")

	_ = cmd.MarkFlagRequired("input")

	_ = cmd.RegisterFlagCompletionFunc("backend", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"nllb\tNLLB-serve compatible REST server",
			"openai\tOpenAI-compatible chat endpoint",
			"ollama\tLocal Ollama server",
		}, cobra.ShellCompDirectiveNoFileComp
	})

	tagCompletion := func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return langcodes.Supported(), cobra.ShellCompDirectiveNoFileComp
	}
	_ = cmd.RegisterFlagCompletionFunc("src-lang", tagCompletion)
	_ = cmd.RegisterFlagCompletionFunc("tgt-lang", tagCompletion)

	return cmd
}

type translateArgs struct {
	inputPath, outputPath           string
	backendKind, model, apiKey      string
	device, srcLang, tgtLang, proxy string
	timeout                         time.Duration
	verbose                         bool
}

func runTranslate(a translateArgs) {
	// Config file supplies defaults; flags win.
	cfg, err := config.Load(rootDir)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	if cfg == nil {
		cfg = &config.File{}
	}

	kind := config.Resolve(a.backendKind, cfg.Backend, backend.KindNLLB)
	model := config.Resolve(a.model, cfg.Model, "")
	srcLang := config.Resolve(a.srcLang, cfg.SourceLang, "eng_Latn")
	tgtLang := config.Resolve(a.tgtLang, cfg.TargetLang, "hin_Deva")
	device := config.Resolve(a.device, cfg.Device, backend.DeviceCPU)
	proxy := config.Resolve(a.proxy, cfg.Proxy, "")
	timeout := a.timeout
	if timeout == 0 {
		timeout = cfg.Timeout
	}

	if model == "" {
		logError("No backend locator specified. Use --model with a server URL (nllb) or model name (openai, ollama).")
		os.Exit(1)
	}

	for _, tag := range []string{srcLang, tgtLang} {
		if _, ok := langcodes.Resolve(tag); !ok {
			logWarning("Unrecognized language tag %q, passing it to the backend as-is", tag)
		}
	}

	// Resolve API key from flag, environment, or credentials store
	key := a.apiKey
	if key == "" {
		key = os.Getenv("CONVKIT_API_KEY")
	}
	if key == "" {
		key = settings.GetAPIKey(kind)
	}

	// Backend construction failures abort before any translation.
	be, err := backend.New(kind, model, backend.Options{
		APIKey:  key,
		Device:  device,
		Timeout: timeout,
		Proxy:   proxy,
	})
	if err != nil {
		logError("Backend initialization failed: %v", err)
		os.Exit(1)
	}

	corpus, err := sharegpt.LoadFile(a.inputPath)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	if corpus.Shape == sharegpt.ShapeUnsupported {
		logError("Unsupported corpus format in %s: expected a conversation list or a single conversation object", a.inputPath)
		os.Exit(1)
	}

	runID := uuid.NewString()[:8]
	logInfo("Run %s: %s -> %s via %s backend (%s, device %s)",
		runID, langcodes.Name(srcLang), langcodes.Name(tgtLang), kind, model, device)

	if translate.CountMessages(corpus) == 0 {
		logWarning("Corpus contains no messages")
	}

	// Setup signal handling for graceful cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		clearProgressLine()
		logWarning("Interrupted, aborting without writing output...")
		cancel()
	}()

	opts := translate.Options{
		SourceLang: srcLang,
		TargetLang: tgtLang,
		Verbose:    a.verbose,
		OnProgress: renderProgress,
		OnLog: func(format string, args ...any) {
			clearProgressLine()
			logInfo(format, args...)
		},
		OnError: func(format string, args ...any) {
			clearProgressLine()
			logWarning(format, args...)
		},
	}

	start := time.Now()
	out, err := translate.Corpus(ctx, corpus, be, opts)
	clearProgressLine()
	if err != nil {
		if ctx.Err() != nil {
			os.Exit(1)
		}
		logError("Translation failed: %v", err)
		os.Exit(1)
	}

	if a.outputPath != "" {
		if err := out.WriteFile(a.outputPath); err != nil {
			logError("%v", err)
			os.Exit(1)
		}
		logInfo("Saved translated corpus to %s", a.outputPath)
	} else {
		logInfo("No output path given, translated corpus not persisted")
	}

	logInfo("Total processing time: %.2f seconds", time.Since(start).Seconds())
	logSuccess("%s", i18n.T("Translation complete!"))
}

// ---------------------------------------------------------------------------
// Progress bar
// ---------------------------------------------------------------------------

// progressActive tracks whether the current stderr line is a progress bar.
var progressActive bool

// renderProgress draws an in-place progress bar on stderr.
func renderProgress(done, total int) {
	const width = 30
	filled := width
	if total > 0 {
		filled = done * width / total
	}
	fmt.Fprintf(os.Stderr, "\rTranslating [%s%s] %d/%d messages",
		strings.Repeat("#", filled), strings.Repeat("-", width-filled), done, total)
	progressActive = true
	if done >= total {
		fmt.Fprintln(os.Stderr)
		progressActive = false
	}
}

// clearProgressLine terminates a partially drawn bar before other output.
func clearProgressLine() {
	if progressActive {
		fmt.Fprintln(os.Stderr)
		progressActive = false
	}
}

// ---------------------------------------------------------------------------
// fetch (one-shot corpus download)
// ---------------------------------------------------------------------------

func newFetchCmd() *cobra.Command {
	var (
		rawURL     string
		outputPath string
		token      string
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download a corpus file",
		Long: `Download a corpus file with a single blocking HTTP GET.

No retries, no resume. Defaults to the ShareGPT_V4.3 unfiltered dataset.
Pass --token for gated datasets.`,
		Run: func(cmd *cobra.Command, args []string) {
			runFetch(rawURL, outputPath, token)
		},
	}

	cmd.Flags().StringVar(&rawURL, "url", fetch.DefaultURL, "Corpus file URL")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (default: URL basename)")
	cmd.Flags().StringVar(&token, "token", "", "Bearer token (or CONVKIT_HF_TOKEN env var)")

	return cmd
}

func runFetch(rawURL, outputPath, token string) {
	if outputPath == "" {
		outputPath = rawURL[strings.LastIndex(rawURL, "/")+1:]
		if outputPath == "" {
			logError("Cannot derive a file name from %s, use --output", rawURL)
			os.Exit(1)
		}
	}
	if token == "" {
		token = os.Getenv("CONVKIT_HF_TOKEN")
	}

	logInfo("Downloading %s...", outputPath)
	n, err := fetch.File(context.Background(), nil, rawURL, outputPath, token)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}
	logSuccess("%s: %s (%d bytes)", i18n.T("Download complete"), outputPath, n)
}

// ---------------------------------------------------------------------------
// status (read-only: corpus shape + statistics)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show corpus shape and statistics",
		Long: `Show the detected corpus shape and per-corpus statistics:
conversation count, message count, translated message count, and a per-role
breakdown. Does not modify any files.`,
		Run: func(cmd *cobra.Command, args []string) {
			runStatus(inputPath)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Corpus file to inspect (required)")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func runStatus(inputPath string) {
	corpus, err := sharegpt.LoadFile(inputPath)
	if err != nil {
		logError("%v", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "\n%sCorpus%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  File:          %s\n", inputPath)
	fmt.Fprintf(os.Stderr, "  Shape:         %s\n", corpus.Shape)

	if corpus.Shape == sharegpt.ShapeUnsupported {
		logWarning("Corpus shape not recognized, nothing to report")
		os.Exit(1)
	}

	messages := 0
	translated := 0
	missing := 0
	roles := make(map[string]int)
	var roleOrder []string

	for _, item := range corpus.Items {
		msgs, ok, err := item.Messages()
		if err != nil {
			logError("Conversation %s: %v", item.ID(), err)
			os.Exit(1)
		}
		if !ok {
			missing++
			continue
		}
		messages += len(msgs)
		for _, msg := range msgs {
			if msg.Has(sharegpt.TranslatedValueKey) {
				translated++
			}
			role, ok := msg.String("from")
			if !ok {
				role = "unknown"
			}
			if _, seen := roles[role]; !seen {
				roleOrder = append(roleOrder, role)
			}
			roles[role]++
		}
	}

	fmt.Fprintf(os.Stderr, "  Conversations: %d\n", len(corpus.Items))
	fmt.Fprintf(os.Stderr, "  Messages:      %d\n", messages)
	fmt.Fprintf(os.Stderr, "  Translated:    %d\n", translated)
	if missing > 0 {
		fmt.Fprintf(os.Stderr, "  No messages:   %d item(s) without %q\n", missing, sharegpt.ConversationsKey)
	}

	if len(roleOrder) > 0 {
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", "Role", "Messages")
		fmt.Fprintln(os.Stderr, "  "+strings.Repeat("─", 22))
		for _, role := range roleOrder {
			fmt.Fprintf(os.Stderr, "  %-12s %d\n", role, roles[role])
		}
	}

	fmt.Fprintln(os.Stderr)
	if messages > 0 && translated == messages {
		logSuccess("%s", i18n.T("All messages already translated"))
	}
}

// ---------------------------------------------------------------------------
// auth (backend API key management)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage backend API keys",
		Long: `Manage API keys for translation backends.

Keys are stored under the XDG data directory with 0600 permissions.
The openai backend requires a key; nllb and ollama are keyless.`,
	}

	setCmd := &cobra.Command{
		Use:   "set <backend> <key>",
		Short: "Store an API key for a backend",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			if err := settings.SetAPIKey(args[0], args[1]); err != nil {
				logError("%v", err)
				os.Exit(1)
			}
			logSuccess("Stored API key for %s (%s)", args[0], settings.MaskKey(args[1]))
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove <backend>",
		Short: "Remove a stored API key",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := settings.Remove(args[0]); err != nil {
				logError("%v", err)
				os.Exit(1)
			}
			logSuccess("Removed credentials for %s", args[0])
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "List stored API keys",
		Run: func(cmd *cobra.Command, args []string) {
			store := settings.Load()
			if len(store) == 0 {
				logInfo("No stored credentials (%s)", settings.FilePath())
				return
			}
			for kind, info := range store {
				fmt.Fprintf(os.Stderr, "  %-10s %s\n", kind, settings.MaskKey(info.Key))
			}
		},
	}

	cmd.AddCommand(setCmd, removeCmd, statusCmd)
	return cmd
}
