// Command dbsetup creates, reconciles and migrates the karyoview account
// database. It is the exclusive maintenance entry point: the web portal and
// the karyotype renderer are never running against the database while it
// works.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/example/karyoview/internal/backup"
	"github.com/example/karyoview/internal/config"
	"github.com/example/karyoview/internal/dbconn"
	"github.com/example/karyoview/internal/logging"
	"github.com/example/karyoview/internal/migrate"
	"github.com/example/karyoview/internal/reconcile"
	"github.com/example/karyoview/internal/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dbsetup:", err)
		os.Exit(1)
	}
}

// app carries the wired components shared by every subcommand.
type app struct {
	cfg        config.Config
	logger     *slog.Logger
	conn       *dbconn.Conn
	reconciler *reconcile.Reconciler
	backups    backup.Manager
	runner     *migrate.Runner
	store      *store.Store
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "dbsetup",
		Short:         "karyoview account database setup and migration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load .env: %w", err)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

			desc, err := dbconn.ParseDescriptor(cfg.Database)
			if err != nil {
				return err
			}
			conn, err := dbconn.Open(desc)
			if err != nil {
				return err
			}
			a.conn = conn
			a.reconciler = reconcile.New(conn.Dialect, a.logger)

			backups, err := backup.NewManager(desc, cfg.BackupDir, a.logger)
			if err != nil {
				conn.Close()
				return err
			}
			a.backups = backups

			orphans := migrate.SkipOrphans
			if cfg.OrphanPolicy == "fail" {
				orphans = migrate.FailOnOrphans
			}
			a.runner = migrate.NewRunner(conn, migrate.DefaultRegistry(), backups, a.reconciler, orphans, a.logger)
			a.store = store.New(conn)

			cmd.SetContext(logging.ContextWithLogger(cmd.Context(), a.logger))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.conn != nil {
				return a.conn.Close()
			}
			return nil
		},
	}

	root.AddCommand(
		newMigrateCmd(a),
		newStatusCmd(a),
		newReconcileCmd(a),
		newBackupCmd(a),
		newVerifyCmd(a),
	)
	return root
}
