package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/convoengine/internal/cache"
	"github.com/ppiankov/convoengine/internal/config"
	"github.com/ppiankov/convoengine/internal/engine"
	"github.com/ppiankov/convoengine/internal/export"
	"github.com/ppiankov/convoengine/internal/llmprovider"
	"github.com/ppiankov/convoengine/internal/observer"
	"github.com/ppiankov/convoengine/internal/search"
	"github.com/ppiankov/convoengine/internal/topic"
	"github.com/ppiankov/convoengine/internal/transcript"
)

// transcriptLine is the upstream wire shape named in spec.md §6: one
// newline-delimited JSON object per simulated speech-to-text event.
type transcriptLine struct {
	Text               string    `json:"text"`
	IsFinal            bool      `json:"is_final"`
	Confidence         float64   `json:"confidence"`
	PerWordConfidences []float64 `json:"per_word_confidences,omitempty"`
	ReceivedAt         time.Time `json:"received_at"`
}

var (
	inputFile  string
	outputFile string
	cacheDir   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the conversation pipeline over a simulated transcript",
	Long: `Run reads newline-delimited JSON transcript events from stdin (or
--file), feeds them into the conversation pipeline, and prints each
downstream notification (transcript, topic_update, claim_selected,
fact_result, error) to stdout as it is produced.

On shutdown it exports the final state to --out (default:
conversation-export.json) in the shape replayed by 'conversation export replay'.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&inputFile, "file", "f", "", "read transcript events from this file instead of stdin")
	runCmd.Flags().StringVarP(&outputFile, "out", "o", "conversation-export.json", "write the final exported state here")
	runCmd.Flags().Duration("grace-period", 5*time.Second, "how long to wait for the fact worker to exit on shutdown")
	_ = viper.BindPFlag("grace_period", runCmd.Flags().Lookup("grace-period"))
	runCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "directory for the on-disk embedding cache (default: $HOME/.conversation/cache)")
	rootCmd.AddCommand(runCmd)
}

// embeddingCacheDir resolves --cache-dir, defaulting to
// $HOME/.conversation/cache.
func embeddingCacheDir() (string, error) {
	if cacheDir != "" {
		return cacheDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error finding home directory: %w", err)
	}
	return home + "/.conversation/cache", nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	llm, err := llmprovider.NewProvider(llmprovider.FromAppConfig(cfg.LLM, cfg.HTTP))
	if err != nil {
		return fmt.Errorf("error building LLM provider: %w", err)
	}
	if llm == nil {
		fmt.Fprintln(os.Stderr, "Warning: no LLM provider configured (set llm.provider or CONVO_LLM_PROVIDER) — topic extraction, claim selection, and verification will fail at each call")
	}

	httpClient := &http.Client{Timeout: cfg.HTTP.Timeout}
	searchProvider := search.NewDuckDuckGoProvider(httpClient)

	embeddingCache, err := embeddingCacheDir()
	if err != nil {
		return err
	}
	layeredCache := cache.NewLayeredCache(24*time.Hour, embeddingCache, 30*24*time.Hour)
	embedder := topic.NewHashEmbedder(64)
	sim, err := topic.NewSimilarity(cfg.Topic.SimilarityKind, embedder, layeredCache)
	if err != nil {
		return fmt.Errorf("error building similarity scorer: %w", err)
	}

	obs := observer.Func(func(e observer.Event) {
		line, err := json.Marshal(e)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: error marshaling event: %v\n", err)
			return
		}
		fmt.Println(string(line))
	})

	eng := engine.New(cfg, llm, searchProvider, sim, obs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng.Start(ctx)

	in, closeIn, err := openInput()
	if err != nil {
		return err
	}
	defer closeIn()

	if err := feedTranscript(ctx, eng, in); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: error reading transcript input: %v\n", err)
	}

	gracePeriod, _ := cmd.Flags().GetDuration("grace-period")
	eng.Shutdown(gracePeriod)

	return writeExport(eng)
}

func loadConfig() config.Config {
	cfg := config.Default()
	if err := viper.Unmarshal(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: error applying config overrides, using defaults: %v\n", err)
		return config.Default()
	}
	return cfg
}

func openInput() (io.Reader, func(), error) {
	if inputFile == "" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(inputFile)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening %s: %w", inputFile, err)
	}
	return f, func() { _ = f.Close() }, nil
}

func feedTranscript(ctx context.Context, eng *engine.Engine, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var tl transcriptLine
		if err := json.Unmarshal(line, &tl); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping malformed transcript line: %v\n", err)
			continue
		}

		eng.Ingest(ctx, transcript.Event{
			Text:               tl.Text,
			IsFinal:            tl.IsFinal,
			Confidence:         tl.Confidence,
			PerWordConfidences: tl.PerWordConfidences,
			ReceivedAt:         tl.ReceivedAt,
		})
	}

	return scanner.Err()
}

func writeExport(eng *engine.Engine) error {
	data, err := export.Marshal(eng.Snapshot())
	if err != nil {
		return fmt.Errorf("error marshaling final state: %w", err)
	}

	if err := os.WriteFile(outputFile, data, 0644); err != nil {
		return fmt.Errorf("error writing %s: %w", outputFile, err)
	}

	fmt.Fprintf(os.Stderr, "Exported final state to %s\n", outputFile)
	return nil
}
