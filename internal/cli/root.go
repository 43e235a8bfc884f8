// Package cli implements the sora command line tool. Every subcommand
// talks to the remote API through the same adapter and job service the
// server uses.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/maauso/sora-studio/internal/archive"
	"github.com/maauso/sora-studio/internal/bootstrap"
	"github.com/maauso/sora-studio/internal/config"
	"github.com/maauso/sora-studio/internal/job"
	"github.com/maauso/sora-studio/internal/sora"
)

// defaultReportInterval is how often a followed task is sampled.
const defaultReportInterval = time.Second

// Env holds what the subcommands run against.
type Env struct {
	Client     sora.Client
	Archive    archive.Archive
	Repository job.Repository
	Logger     *slog.Logger
	// DefaultModel is used when a command does not name a model.
	DefaultModel string

	Out io.Writer
	In  io.Reader

	// ServiceOptions configure every job.Service the commands build.
	ServiceOptions []job.ServiceOption
	// ReportInterval is how often task progress is printed.
	ReportInterval time.Duration
}

// Run loads configuration, wires dependencies and executes args.
func Run(ctx context.Context, args []string) error {
	if len(args) == 0 || isHelp(args[0]) {
		printRootUsage(os.Stdout)
		return nil
	}
	if !isCommand(args[0]) {
		printRootUsage(os.Stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := cfg.NewLoggerTo(os.Stderr)

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer func() { _ = deps.Close() }()

	env := &Env{
		Client:       deps.Client,
		Archive:      deps.Archive,
		Repository:   deps.Repository,
		Logger:       logger,
		DefaultModel: cfg.DefaultModel,
		Out:          os.Stdout,
		In:           os.Stdin,
		ServiceOptions: []job.ServiceOption{
			job.WithPollInterval(cfg.PollInterval()),
			job.WithPollTimeout(cfg.PollTimeout()),
			job.WithMaxPollErrors(cfg.MaxPollErrors),
			job.WithDefaultModel(cfg.DefaultModel),
		},
	}
	return env.Run(ctx, args)
}

// Run executes one subcommand.
func (e *Env) Run(ctx context.Context, args []string) error {
	if len(args) == 0 || isHelp(args[0]) {
		printRootUsage(e.Out)
		return nil
	}

	switch args[0] {
	case "create":
		return e.runCreate(ctx, args[1:])
	case "remix":
		return e.runRemix(ctx, args[1:])
	case "list":
		return e.runList(ctx, args[1:])
	case "retrieve":
		return e.runRetrieve(ctx, args[1:])
	case "delete":
		return e.runDelete(ctx, args[1:])
	case "download":
		return e.runDownload(ctx, args[1:])
	case "wait":
		return e.runWait(ctx, args[1:])
	default:
		printRootUsage(e.Out)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// service builds a job service over the environment's dependencies.
func (e *Env) service(extra ...job.ServiceOption) *job.Service {
	repo := e.Repository
	if repo == nil {
		repo = job.NewMemoryRepository()
	}
	opts := append(slices.Clone(e.ServiceOptions), extra...)
	return job.NewService(e.Client, e.Archive, repo, e.Logger, opts...)
}

func (e *Env) reportInterval() time.Duration {
	if e.ReportInterval > 0 {
		return e.ReportInterval
	}
	return defaultReportInterval
}

var commandNames = []string{"create", "remix", "list", "retrieve", "delete", "download", "wait"}

func isCommand(name string) bool {
	return slices.Contains(commandNames, name)
}

func isHelp(arg string) bool {
	return arg == "help" || arg == "-h" || arg == "--help"
}

func printRootUsage(w io.Writer) {
	fmt.Fprintln(w, "sora: create, track and archive Sora videos")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  create    create a video from a prompt (optionally with --reference image)")
	fmt.Fprintln(w, "  remix     remix an existing video with a new prompt")
	fmt.Fprintln(w, "  list      list videos in the remote library")
	fmt.Fprintln(w, "  retrieve  show one video")
	fmt.Fprintln(w, "  delete    delete a video from the remote library")
	fmt.Fprintln(w, "  download  download a video into the archive or to files")
	fmt.Fprintln(w, "  wait      wait for a video to finish")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - OPENAI_API_KEY must be set")
	fmt.Fprintln(w, "  - Use --json on commands for machine-readable output")
}
