package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cqlmapper/internal/app"
	"cqlmapper/internal/config"
	"cqlmapper/internal/mapper"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
)

var (
	// Version is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
	Commit  = "none"
)

const usage = `usage: cqlmapper [flags] <command>

commands:
  sync   create the demo table if it does not exist
  drop   drop the demo table
  demo   run concurrent partial saves against the demo table
`

// updateDemo is the table exercised by the demo command.
type updateDemo struct {
	Partition uuid.UUID `cql:"partition,primary_key,partition_key,default=uuid"`
	Cluster   int       `cql:"cluster,primary_key"`
	Count     int       `cql:"count"`
	Text      string    `cql:"text"`
}

func (updateDemo) TableName() string { return "update_demo" }

func main() {
	if err := run(pflag.CommandLine, os.Args[1:]); err != nil {
		slog.Error("cqlmapper error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(fs *pflag.FlagSet, args []string) error {
	fs.Bool("version", false, "Print version and exit")
	config.DefineFlags(fs)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showVersion, _ := fs.GetBool("version"); showVersion {
		fmt.Printf("cqlmapper %s (%s)\n", Version, Commit)
		return nil
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one command")
	}
	command := fs.Arg(0)
	switch command {
	case "sync", "drop", "demo":
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}

	validationResult := cfg.Validate()
	for _, warn := range validationResult.Warnings {
		slog.Warn("configuration warning",
			slog.String("field", warn.Field),
			slog.String("message", warn.Message),
			slog.String("hint", warn.Hint),
		)
	}
	if validationResult.HasErrors() {
		for _, err := range validationResult.Errors {
			slog.Error("configuration error",
				slog.String("field", err.Field),
				slog.String("message", err.Message),
				slog.String("hint", err.Hint),
			)
		}
		return fmt.Errorf("configuration validation failed")
	}

	logger, loggerProvider, err := app.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	application, err := app.New(cfg, logger)
	if err != nil {
		if loggerProvider != nil {
			_ = loggerProvider.Shutdown(context.Background(), logger.Logger)
		}
		return err
	}
	application.AttachLoggerProvider(loggerProvider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Shutdown(shutdownCtx)
	}()

	if err := application.Init(ctx); err != nil {
		return err
	}

	model, err := application.Model(&updateDemo{})
	if err != nil {
		return err
	}

	switch command {
	case "sync":
		return model.Sync(ctx)
	case "drop":
		return model.Drop(ctx)
	default:
		if err := model.Sync(ctx); err != nil {
			return err
		}
		return runDemo(ctx, application, model)
	}
}

// runDemo saves disjoint columns through two independently loaded copies of
// one row and reports the merged result.
func runDemo(ctx context.Context, application *app.App, model *mapper.Model) error {
	row, err := mergeDemo(ctx, model)
	if err != nil {
		return err
	}
	application.Logger().Info("merged row",
		slog.String("partition", row.Partition.String()),
		slog.Int("cluster", row.Cluster),
		slog.Int("count", row.Count),
		slog.String("text", row.Text),
	)
	if row.Count != 6 || row.Text != "world" {
		return fmt.Errorf("demo row did not merge: count=%d text=%q", row.Count, row.Text)
	}
	return nil
}

func mergeDemo(ctx context.Context, model *mapper.Model) (updateDemo, error) {
	var row updateDemo

	created, err := model.Create(ctx, map[string]any{"cluster": 0, "count": 5, "text": "hello"})
	if err != nil {
		return row, fmt.Errorf("create: %w", err)
	}
	key := created.Key().Map()

	first, err := model.Get(ctx, key)
	if err != nil {
		return row, err
	}
	second, err := model.Get(ctx, key)
	if err != nil {
		return row, err
	}

	if err := first.Set("count", 6); err != nil {
		return row, err
	}
	if err := first.Save(ctx); err != nil {
		return row, fmt.Errorf("save count: %w", err)
	}
	if err := second.Set("text", "world"); err != nil {
		return row, err
	}
	if err := second.Save(ctx); err != nil {
		return row, fmt.Errorf("save text: %w", err)
	}
	// Nothing changed since the last write, so this issues no statement.
	if err := second.Update(ctx, nil); err != nil {
		return row, err
	}

	merged, err := model.Get(ctx, key)
	if err != nil {
		return row, err
	}
	if err := merged.Bind(&row); err != nil {
		return row, err
	}
	return row, nil
}
