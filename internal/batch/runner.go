package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/chatstats/internal/conversation"
	"github.com/MikeSquared-Agency/chatstats/internal/hermes"
	"github.com/MikeSquared-Agency/chatstats/internal/report"
	"github.com/MikeSquared-Agency/chatstats/internal/stats"
	"github.com/MikeSquared-Agency/chatstats/internal/store"
)

// FirstShard is the file every conversation folder must contain.
const FirstShard = "message_1.json"

// Config holds the batch command configuration.
type Config struct {
	Root      string // inbox directory holding one folder per conversation
	Workers   int
	StatePath string
	Force     bool   // reprocess folders already recorded in the state
	DryRun    bool   // compute only, nothing persisted or published
	ReportDir string // optional: write one text report per conversation
	Options   stats.Options
}

// Persister stores computed summaries.
type Persister interface {
	SaveSummary(ctx context.Context, sum store.Summary) (uuid.UUID, error)
}

// Publisher announces events.
type Publisher interface {
	Publish(subject string, data any) error
}

// Notifier posts the batch summary, with failure details threaded under it.
type Notifier interface {
	PostText(ctx context.Context, text string) (string, error)
	PostThread(ctx context.Context, threadTS, text string) error
}

// FolderSummary is the outcome of one conversation folder.
type FolderSummary struct {
	Folder       string
	Title        string
	Participants int
	Messages     int
	Shards       int
	Insufficient bool
	Skipped      bool
	Err          string
}

// Result is the outcome of a batch run.
type Result struct {
	RunID     uuid.UUID
	Processed int
	Skipped   int
	Failed    int
	Folders   []FolderSummary
	Duration  time.Duration
}

// Runner analyzes every conversation folder of an inbox directory.
type Runner struct {
	cfg    Config
	repo   Persister
	pub    Publisher
	notify Notifier
	logger *slog.Logger

	// createFile opens report files; tests swap it out.
	createFile func(name string) (io.WriteCloser, error)
}

// NewRunner creates a batch runner. repo, pub and notify are optional.
func NewRunner(cfg Config, repo Persister, pub Publisher, notify Notifier, logger *slog.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Options.Logger == nil {
		cfg.Options.Logger = logger
	}
	r := &Runner{
		cfg:    cfg,
		repo:   repo,
		pub:    pub,
		notify: notify,
		logger: logger,
	}
	r.createFile = func(name string) (io.WriteCloser, error) {
		return os.Create(name)
	}
	return r
}

// Run processes every unprocessed folder. A failing folder is recorded in the
// state and the summary; only cancellation or state errors abort the run.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	state, err := LoadState(r.cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	folders, err := DiscoverFolders(r.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("discover folders: %w", err)
	}

	var pending []string
	for _, f := range folders {
		if !r.cfg.Force && state.IsProcessed(f) {
			continue
		}
		pending = append(pending, f)
	}
	state.SetRemaining(len(pending))

	res := &Result{RunID: uuid.New()}
	r.logger.Info("folders discovered",
		"run_id", res.RunID,
		"total", len(folders),
		"pending", len(pending),
		"workers", r.cfg.Workers,
	)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for _, folder := range pending {
		folder := folder
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			fs := r.process(gctx, res.RunID, folder, state)

			mu.Lock()
			res.Folders = append(res.Folders, fs)
			mu.Unlock()
			return nil
		})
	}
	waitErr := g.Wait()

	sort.Slice(res.Folders, func(i, j int) bool { return res.Folders[i].Folder < res.Folders[j].Folder })
	for _, fs := range res.Folders {
		switch {
		case fs.Err != "":
			res.Failed++
		case fs.Skipped:
			res.Skipped++
		default:
			res.Processed++
		}
	}
	res.Duration = time.Since(start)

	if err := state.Save(); err != nil {
		r.logger.Warn("failed to save batch state", "path", state.Path(), "error", err)
	}
	r.postSummary(ctx, res)
	r.publishCompleted(res)

	if waitErr != nil {
		r.logger.Info("batch interrupted, state saved", "processed", res.Processed)
		return res, waitErr
	}

	r.logger.Info("batch complete",
		"run_id", res.RunID,
		"processed", res.Processed,
		"skipped", res.Skipped,
		"failed", res.Failed,
		"duration", res.Duration.Round(time.Millisecond),
		"dry_run", r.cfg.DryRun,
	)
	return res, nil
}

func (r *Runner) process(ctx context.Context, runID uuid.UUID, folder string, state *State) FolderSummary {
	fs := FolderSummary{Folder: folder}
	logger := r.logger.With("folder", folder)

	conv, err := conversation.Load(filepath.Join(folder, FirstShard))
	if err != nil {
		logger.Warn("failed to load conversation", "error", err)
		state.AddError(fmt.Sprintf("load %s: %v", folder, err))
		fs.Err = err.Error()
		return fs
	}
	fs.Title = conv.Title
	fs.Participants = len(conv.Participants)
	fs.Messages = len(conv.Messages)
	fs.Shards = conv.Shards

	s, err := stats.Compute(conv, r.cfg.Options)
	if errors.Is(err, stats.ErrEmptyConversation) {
		logger.Info("skipping empty conversation")
		fs.Skipped = true
		state.MarkProcessed(folder, 0)
		return fs
	}
	if err != nil {
		logger.Error("compute failed", "error", err)
		state.AddError(fmt.Sprintf("compute %s: %v", folder, err))
		fs.Err = err.Error()
		return fs
	}
	fs.Insufficient = s.InsufficientData

	if r.cfg.ReportDir != "" {
		if err := r.writeReport(folder, s); err != nil {
			logger.Warn("failed to write report", "error", err)
			state.AddError(fmt.Sprintf("report %s: %v", folder, err))
		}
	}

	if !r.cfg.DryRun {
		summaryID, err := r.persist(ctx, runID, folder, s)
		if err != nil {
			logger.Error("persist failed", "error", err)
			state.AddError(fmt.Sprintf("persist %s: %v", folder, err))
			fs.Err = err.Error()
			return fs
		}
		if r.pub != nil {
			ev := hermes.NewAnalyzedEvent(runID.String(), summaryID, folder, s)
			if err := r.pub.Publish(hermes.SubjectConversationAnalyzed, ev); err != nil {
				logger.Warn("failed to publish analyzed event", "error", err)
			}
		}
	}

	logger.Info("conversation analyzed",
		"title", s.Title,
		"messages", s.Messages,
		"days", s.Temporal.Days,
		"shards", conv.Shards,
	)
	state.MarkProcessed(folder, s.Messages)
	if err := state.Save(); err != nil {
		logger.Warn("failed to save batch state", "error", err)
	}
	return fs
}

func (r *Runner) persist(ctx context.Context, runID uuid.UUID, folder string, s *stats.Statistics) (string, error) {
	if r.repo == nil {
		return "", nil
	}
	sum, err := store.NewSummary(runID, folder, s)
	if err != nil {
		return "", err
	}
	id, err := r.repo.SaveSummary(ctx, sum)
	if err != nil {
		return "", fmt.Errorf("save summary: %w", err)
	}
	return id.String(), nil
}

func (r *Runner) writeReport(folder string, s *stats.Statistics) error {
	if err := os.MkdirAll(r.cfg.ReportDir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := r.createFile(filepath.Join(r.cfg.ReportDir, filepath.Base(folder)+".txt"))
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := report.WriteText(f, s, report.Options{TopN: r.cfg.Options.TopN}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report: %w", err)
	}
	return nil
}

// postSummary posts the run summary to Slack, or logs it when Slack is not configured.
func (r *Runner) postSummary(ctx context.Context, res *Result) {
	if len(res.Folders) == 0 {
		return
	}

	text := FormatSummary(res)

	if r.notify == nil {
		r.logger.Info("batch summary (no Slack configured)", "summary", text)
		return
	}
	ts, err := r.notify.PostText(ctx, text)
	if err != nil {
		r.logger.Warn("failed to post batch summary to Slack, logging instead",
			"error", err,
			"summary", text,
		)
		return
	}
	if res.Failed == 0 {
		return
	}
	if err := r.notify.PostThread(ctx, ts, formatFailures(res)); err != nil {
		r.logger.Warn("failed to post batch failures to Slack", "error", err)
	}
}

func formatFailures(res *Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d folder(s) failed:\n", res.Failed)
	for _, f := range res.Folders {
		if f.Err != "" {
			fmt.Fprintf(&sb, "  - %s: %s\n", f.Folder, f.Err)
		}
	}
	return sb.String()
}

func (r *Runner) publishCompleted(res *Result) {
	if r.pub == nil || r.cfg.DryRun {
		return
	}
	err := r.pub.Publish(hermes.SubjectBatchCompleted, hermes.BatchEvent{
		RunID:     res.RunID.String(),
		Root:      r.cfg.Root,
		Processed: res.Processed,
		Skipped:   res.Skipped,
		Failed:    res.Failed,
		Duration:  res.Duration.Round(time.Millisecond).String(),
	})
	if err != nil {
		r.logger.Warn("failed to publish batch event", "error", err)
	}
}

// FormatSummary formats a batch result, one line per folder.
func FormatSummary(res *Result) string {
	var sb strings.Builder
	sb.WriteString("*Chat Statistics Batch Summary*\n")
	fmt.Fprintf(&sb, "%d analyzed, %d skipped, %d failed\n\n", res.Processed, res.Skipped, res.Failed)

	for _, f := range res.Folders {
		name := filepath.Base(f.Folder)
		switch {
		case f.Err != "":
			fmt.Fprintf(&sb, "  - %s: error: %s\n", name, f.Err)
		case f.Skipped:
			fmt.Fprintf(&sb, "  - %s: skipped (empty)\n", name)
		default:
			fmt.Fprintf(&sb, "  - %s [%s]: %d messages, %d participants", name, f.Title, f.Messages, f.Participants)
			if f.Shards > 1 {
				fmt.Fprintf(&sb, ", %d files", f.Shards)
			}
			if f.Insufficient {
				sb.WriteString(" (few messages)")
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// DiscoverFolders lists the sub-directories of root that contain a first
// conversation shard, sorted by name.
func DiscoverFolders(root string) ([]string, error) {
	root = expandHome(root)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var folders []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(root, e.Name())
		if _, err := os.Stat(filepath.Join(dir, FirstShard)); err == nil {
			folders = append(folders, dir)
		}
	}
	return folders, nil
}
