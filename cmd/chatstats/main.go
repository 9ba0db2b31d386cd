package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/chatstats/internal/api"
	"github.com/MikeSquared-Agency/chatstats/internal/batch"
	"github.com/MikeSquared-Agency/chatstats/internal/config"
	"github.com/MikeSquared-Agency/chatstats/internal/conversation"
	"github.com/MikeSquared-Agency/chatstats/internal/hermes"
	"github.com/MikeSquared-Agency/chatstats/internal/report"
	"github.com/MikeSquared-Agency/chatstats/internal/slack"
	"github.com/MikeSquared-Agency/chatstats/internal/stats"
	"github.com/MikeSquared-Agency/chatstats/internal/store"
)

const usage = `usage: chatstats <command> [flags]

commands:
  analyze [-user NAME] [-json] [-top N] [-save] <message_1.json>
  batch   [-workers N] [-dry-run] [-force] [-reports DIR] <inbox dir>
  combine <message_1.json> <output.json>
  serve`

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg := config.Load()
	setupLogging(cfg.LogLevel, os.Stderr)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "analyze":
		err = runAnalyze(ctx, cfg, args, os.Stdout)
	case "batch":
		err = runBatch(ctx, cfg, args)
	case "combine":
		err = runCombine(args)
	case "serve":
		err = runServe(ctx, cfg)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var ue usageError
	if errors.As(err, &ue) {
		fmt.Fprintln(os.Stderr, ue.Error())
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("chatstats failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

type usageError string

func (e usageError) Error() string { return string(e) }

func runAnalyze(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("analyze", flag.ContinueOnError)
	user := fs.String("user", "", "restrict the report to one participant")
	asJSON := fs.Bool("json", false, "print the statistics as JSON")
	top := fs.Int("top", cfg.TopN, "entries per top list")
	save := fs.Bool("save", false, "persist the summary to DATABASE_URL")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if fs.NArg() != 1 {
		return usageError("analyze: expected one conversation file")
	}
	path := fs.Arg(0)

	opts, err := statsOptions(cfg)
	if err != nil {
		return err
	}
	opts.TopN = *top

	conv, err := conversation.Load(path)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	s, err := stats.Compute(conv, opts)
	if err != nil {
		return fmt.Errorf("compute statistics: %w", err)
	}

	if *save {
		if err := saveAndAnnounce(ctx, cfg, path, s); err != nil {
			return err
		}
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}
	return report.WriteText(out, s, report.Options{User: *user, TopN: *top})
}

func saveAndAnnounce(ctx context.Context, cfg config.Config, path string, s *stats.Statistics) error {
	if cfg.DatabaseURL == "" {
		return errors.New("-save requires DATABASE_URL")
	}
	repo, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer repo.Close()

	runID := uuid.New()
	sum, err := store.NewSummary(runID, path, s)
	if err != nil {
		return err
	}
	id, err := repo.SaveSummary(ctx, sum)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	slog.Info("summary saved", "id", id, "title", s.Title)

	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		poster := slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		if _, err := poster.PostConversationSummary(ctx, s, path); err != nil {
			slog.Warn("failed to post summary to Slack", "error", err)
		}
	}

	hc, err := openHermes(ctx, cfg)
	if err != nil {
		slog.Warn("NATS unavailable, event not published", "error", err)
		return nil
	}
	if hc != nil {
		defer hc.Close()
		ev := hermes.NewAnalyzedEvent(runID.String(), id.String(), path, s)
		if err := hc.Publish(hermes.SubjectConversationAnalyzed, ev); err != nil {
			slog.Warn("failed to publish analyzed event", "error", err)
		}
	}
	return nil
}

func runBatch(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	workers := fs.Int("workers", cfg.Workers, "conversations analyzed in parallel")
	dryRun := fs.Bool("dry-run", false, "compute only; nothing persisted or published")
	force := fs.Bool("force", false, "reprocess folders recorded in the state file")
	reports := fs.String("reports", "", "directory for per-conversation text reports")
	statePath := fs.String("state", cfg.StatePath, "resumable state file")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if fs.NArg() != 1 {
		return usageError("batch: expected one inbox directory")
	}

	opts, err := statsOptions(cfg)
	if err != nil {
		return err
	}

	var repo batch.Persister
	var pub batch.Publisher
	var notify batch.Notifier
	if !*dryRun {
		if cfg.DatabaseURL != "" {
			r, err := store.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer r.Close()
			repo = r
			slog.Info("database connected")
		}
		hc, err := openHermes(ctx, cfg)
		if err != nil {
			return err
		}
		if hc != nil {
			defer hc.Close()
			pub = hc
		}
	}
	if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
		notify = slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, slog.Default())
		slog.Info("slack poster ready", "channel", cfg.SlackChannel)
	}

	runner := batch.NewRunner(batch.Config{
		Root:      fs.Arg(0),
		Workers:   *workers,
		StatePath: *statePath,
		Force:     *force,
		DryRun:    *dryRun,
		ReportDir: *reports,
		Options:   opts,
	}, repo, pub, notify, slog.Default())

	res, err := runner.Run(ctx)
	if res != nil {
		fmt.Print(batch.FormatSummary(res))
	}
	return err
}

func runCombine(args []string) error {
	if len(args) != 2 {
		return usageError("combine: expected <message_1.json> <output.json>")
	}
	n, err := conversation.Combine(args[0], args[1])
	if err != nil {
		return err
	}
	slog.Info("shards combined", "messages", n, "output", args[1])
	return nil
}

func runServe(ctx context.Context, cfg config.Config) error {
	opts, err := statsOptions(cfg)
	if err != nil {
		return err
	}

	var repo api.Repository
	if cfg.DatabaseURL != "" {
		r, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer r.Close()
		repo = r
		slog.Info("database connected")
	} else {
		slog.Warn("DATABASE_URL not set, conversations endpoints disabled")
	}

	var pub api.Publisher
	hc, err := openHermes(ctx, cfg)
	if err != nil {
		return err
	}
	if hc != nil {
		defer hc.Close()
		pub = hc
		if err := hc.Publish("swarm.agent.chatstats.registered", map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"port":      cfg.Port,
		}); err != nil {
			slog.Warn("failed to publish registration", "error", err)
		}
	}

	if cfg.APIToken == "" {
		slog.Warn("CHATSTATS_API_TOKEN not set, analyze endpoint is unauthenticated")
	}
	srv := api.NewServer(cfg.Port, cfg.APIToken, repo, pub, opts, slog.Default())
	if hc != nil {
		// Feed analyses published by batch runs and other instances into the recent list.
		err := hc.SubscribeAnalyzed(hermes.SubjectConversationAnalyzed, func(ev hermes.AnalyzedEvent) {
			slog.Info("conversation analyzed elsewhere", "run_id", ev.RunID, "title", ev.Title, "messages", ev.Messages)
			srv.RecordAnalyzed(ev)
		})
		if err != nil {
			slog.Warn("failed to subscribe to analyzed events", "error", err)
		}
	}
	slog.Info("chatstats ready", "port", cfg.Port)
	err = srv.Start(ctx)
	slog.Info("chatstats stopped")
	return err
}

// openHermes connects to NATS, or returns nil when NATS_URL is unset.
func openHermes(ctx context.Context, cfg config.Config) (*hermes.Client, error) {
	if cfg.NatsURL == "" {
		return nil, nil
	}
	hc, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		return nil, err
	}
	slog.Info("NATS connected", "url", cfg.NatsURL)
	return hc, nil
}

func statsOptions(cfg config.Config) (stats.Options, error) {
	loc, err := cfg.Location()
	if err != nil {
		return stats.Options{}, err
	}
	return stats.Options{
		TopN:         cfg.TopN,
		ReplyCeiling: cfg.ReplyCeiling.Seconds(),
		MinMessages:  cfg.MinMessages,
		Location:     loc,
		Logger:       slog.Default(),
	}, nil
}

// setupLogging installs a JSON handler on w. Reports own stdout, so the CLI logs to stderr.
func setupLogging(level string, w io.Writer) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
