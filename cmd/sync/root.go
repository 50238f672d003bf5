package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	app "github.com/okian/evalboard/internal/app"
	"github.com/okian/evalboard/internal/config"
	"github.com/okian/evalboard/internal/domain/syncer"
	"github.com/okian/evalboard/pkg/logger"
)

// PartialError reports that some selected sources did not sync.
type PartialError struct {
	Updated, Total int
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("%d/%d sources updated", e.Updated, e.Total)
}

type syncFlags struct {
	db      string
	force   bool
	verbose bool
}

func newRootCommand() *cobra.Command {
	var flags syncFlags
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize benchmark records into the local snapshots",
		Long: `Fetch every remote record past each snapshot's high-water mark and
persist the merged snapshot.

Sources, stores and retry settings come from the usual configuration
(EVALBOARD_CONFIG file and EVALBOARD_* environment variables).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context(), cmd.OutOrStdout(), flags)
		},
	}

	cmd.Flags().StringVar(&flags.db, "db", config.AllSources, "Source key to sync, or \"all\"")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Discard the snapshot and fetch every record again")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log each run to stderr")

	return cmd
}

func runSync(ctx context.Context, out io.Writer, flags syncFlags) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	log := logger.Discard()
	if flags.verbose {
		if err := logger.InitWithWriter(os.Stderr, cfg.LogFormat); err != nil {
			return err
		}
		if err := logger.SetLevelString(cfg.LogLevel); err != nil {
			return err
		}
		log = logger.Get()
	}

	keys := cfg.Keys()
	if !strings.EqualFold(flags.db, config.AllSources) {
		if !slices.Contains(keys, flags.db) {
			return fmt.Errorf("unknown source %q (have %s)", flags.db, strings.Join(keys, ", "))
		}
		keys = []string{flags.db}
	}

	// The service runs sources on demand; the background loop stays off.
	cfg.SyncIntervalS = 0
	svc := app.New(cfg, app.WithLogger(log), app.WithMirrors(false))
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	reports := make(map[string]syncer.Report, len(keys))
	errs := make(map[string]error, len(keys))
	if len(keys) == 1 {
		reports[keys[0]], errs[keys[0]] = svc.Sync(ctx, keys[0], flags.force)
	} else {
		var err error
		if reports, err = svc.SyncAll(ctx, flags.force); err != nil {
			log.Warn(ctx, "sync incomplete", logger.Error(err))
		}
	}

	updated := 0
	for _, key := range keys {
		rep := reports[key]
		ok := rep.Outcome == syncer.OutcomeUpdated || rep.Outcome == syncer.OutcomeNoNewData
		if ok {
			updated++
		}
		line := fmt.Sprintf("%s: %s (remote %d, fetched %d, skipped %d)",
			key, rep.Outcome, rep.Remote, rep.Fetched, len(rep.Skipped))
		if err := errs[key]; err != nil {
			line += ": " + err.Error()
		}
		fmt.Fprintln(out, line)
	}

	if updated < len(keys) {
		return &PartialError{Updated: updated, Total: len(keys)}
	}
	fmt.Fprintf(out, "%d/%d sources updated\n", updated, len(keys))
	return nil
}
