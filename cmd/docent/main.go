// Copyright 2025 Solenne Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/solenne/docent"
	"github.com/solenne/docent/config"
	"github.com/solenne/docent/core"
	"github.com/solenne/docent/reembed"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "docent",
		Usage:    "Question answering assistant for private document collections",
		Metadata: map[string]any{},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML configuration file",
				Value:   "docent.yaml",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides the configuration file",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Index documents from files or directories",
				ArgsUsage: "PATH [PATH ...]",
				Action:    indexCommand,
			},
			{
				Name:      "ask",
				Usage:     "Ask a single question and print the answer",
				ArgsUsage: "QUESTION",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "show-steps",
						Usage: "Print the reasoning steps to stderr",
					},
				},
			},
			{
				Name:   "chat",
				Usage:  "Start an interactive question answering session",
				Action: chatCommand,
			},
			{
				Name:      "watch",
				Usage:     "Index a directory and keep it indexed as files change",
				ArgsUsage: "DIR",
				Action:    watchCommand,
			},
			{
				Name:   "reembed",
				Usage:  "Regenerate embeddings for every indexed chunk",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show index and answer cache statistics",
				Action: statsCommand,
			},
			{
				Name:   "cache-clear",
				Usage:  "Remove every entry from the answer cache",
				Action: cacheClearCommand,
			},
		},
	}
}

// setup runs before every command: it loads .env if present, reads the
// configuration file, and configures the default logger. The loaded
// configuration is stashed in the app metadata for the command actions.
func setup(c *cli.Context) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	level := c.String("log-level")
	if level == "" {
		level = cfg.LogLevel
	}
	if err := setupLogger(level); err != nil {
		return err
	}

	c.App.Metadata["config"] = cfg
	return nil
}

func loadedConfig(c *cli.Context) *config.Config {
	if cfg, ok := c.App.Metadata["config"].(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

func newAssistant(c *cli.Context) (*docent.Assistant, error) {
	assistant, err := docent.New(loadedConfig(c))
	if err != nil {
		return nil, fmt.Errorf("failed to start assistant: %w", err)
	}
	return assistant, nil
}

func indexCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one path to index is required")
	}

	assistant, err := newAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	total := 0
	for _, path := range c.Args().Slice() {
		count, err := assistant.IndexPath(c.Context, path)
		if err != nil {
			return fmt.Errorf("failed to index %s: %w", path, err)
		}
		fmt.Fprintf(os.Stderr, "Indexed %s (%d chunks)\n", path, count)
		total += count
	}

	fmt.Fprintf(os.Stderr, "Done. %d chunks indexed.\n", total)
	return nil
}

func askCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("a question is required")
	}
	question := strings.Join(c.Args().Slice(), " ")

	assistant, err := newAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	answer, err := assistant.Ask(c.Context, question, nil)
	if err != nil {
		return fmt.Errorf("failed to answer: %w", err)
	}

	if c.Bool("show-steps") {
		printSteps(answer.Steps)
	}

	fmt.Println(answer.Answer)
	fmt.Fprintf(os.Stderr, "\n(%s in %s)\n", answer.ModelUsed, answer.ProcessingTime.Round(10*time.Millisecond))
	return nil
}

func chatCommand(c *cli.Context) error {
	assistant, err := newAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	fmt.Fprintln(os.Stderr, "Type a question, or \"exit\" to quit.")

	var history []core.ConversationTurn
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		answer, err := assistant.Ask(c.Context, question, history)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(answer.Answer)

		now := time.Now()
		history = append(history,
			core.ConversationTurn{Role: core.RoleUser, Content: question, Timestamp: now},
			core.ConversationTurn{Role: core.RoleAssistant, Content: answer.Answer, Timestamp: now},
		)
	}
	return scanner.Err()
}

func watchCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one directory to watch is required")
	}
	dir := c.Args().First()

	assistant, err := newAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl-C to stop)\n", dir)
	if err := assistant.Watch(ctx, dir); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	// Validate config
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	assistant, err := newAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	cfg := loadedConfig(c)
	fmt.Fprintf(os.Stderr, "Index: %s\n", cfg.Storage.IndexPath)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	if err := assistant.Reembed(c.Context, reembedConfig, os.Stderr); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func statsCommand(c *cli.Context) error {
	assistant, err := newAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	count, err := assistant.CountChunks(c.Context)
	if err != nil {
		return fmt.Errorf("failed to count chunks: %w", err)
	}
	fmt.Printf("Indexed chunks: %d\n", count)

	stats, err := assistant.CacheStats(c.Context)
	if errors.Is(err, docent.ErrCacheDisabled) {
		fmt.Println("Answer cache: disabled")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}
	fmt.Printf("Answer cache: %d entries, %d hits, %d misses (%.1f%% hit rate), %d evictions\n",
		stats.ActiveEntries, stats.Hits, stats.Misses, stats.HitRate, stats.Evictions)
	return nil
}

func cacheClearCommand(c *cli.Context) error {
	assistant, err := newAssistant(c)
	if err != nil {
		return err
	}
	defer assistant.Close()

	if err := assistant.ClearCache(c.Context); err != nil {
		if errors.Is(err, docent.ErrCacheDisabled) {
			return fmt.Errorf("answer cache is disabled in the configuration")
		}
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	fmt.Println("Answer cache cleared.")
	return nil
}

func printSteps(steps []core.AgentStep) {
	for i, step := range steps {
		fmt.Fprintf(os.Stderr, "Step %d:\n", i+1)
		if step.Thought != "" {
			fmt.Fprintf(os.Stderr, "  Thought: %s\n", step.Thought)
		}
		if step.Action != "" {
			fmt.Fprintf(os.Stderr, "  Action: %s(%s)\n", step.Action, step.ActionInput)
		}
		if step.Observation != "" {
			fmt.Fprintf(os.Stderr, "  Observation: %s\n", truncate(step.Observation, 200))
		}
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func setupLogger(levelStr string) error {
	// Map string to slog.Level
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
