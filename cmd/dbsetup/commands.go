package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/karyoview/internal/schema"
)

func newMigrateCmd(a *app) *cobra.Command {
	var target int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "back up the database, apply pending schema migrations and reconcile all tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := a.runner.UpgradeTo(ctx, target); err != nil {
				// A failed migration halts every dependent setup step.
				return err
			}

			for _, table := range schema.TablesAt(target) {
				if _, err := a.reconciler.Reconcile(ctx, a.conn.DB, table); err != nil {
					return err
				}
			}

			a.logger.Info("database setup complete", "version", target)
			return nil
		},
	}
	cmd.Flags().IntVar(&target, "target", schema.CurrentVersion, "schema version to migrate to")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "report the persisted schema version, pending steps and column drift",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, err := a.runner.Status(ctx, schema.CurrentVersion)
			if err != nil {
				return err
			}
			fmt.Printf("schema version: %d (target %d)\n", st.Current, st.Target)
			if len(st.Pending) == 0 {
				fmt.Println("migrations: up to date")
			} else {
				fmt.Println("pending migrations:")
				for _, p := range st.Pending {
					fmt.Printf("  %s\n", p)
				}
			}

			for _, table := range schema.CurrentTables() {
				missing, extra, exists, err := a.reconciler.Drift(ctx, a.conn.DB, table)
				if err != nil {
					return err
				}
				switch {
				case !exists:
					fmt.Printf("table %s: absent\n", table.Name)
				case len(missing) == 0 && len(extra) == 0:
					fmt.Printf("table %s: ok\n", table.Name)
				default:
					fmt.Printf("table %s: missing=%v extra=%v\n", table.Name, missing, extra)
				}
			}
			return nil
		},
	}
}

func newReconcileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "reconcile all current tables without running migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			current, err := a.runner.CurrentVersion(ctx)
			if err != nil {
				return err
			}
			if current != schema.CurrentVersion {
				return fmt.Errorf("database is at schema version %d, not %d; run migrate first",
					current, schema.CurrentVersion)
			}

			for _, table := range schema.CurrentTables() {
				result, err := a.reconciler.Reconcile(ctx, a.conn.DB, table)
				if err != nil {
					return err
				}
				a.logger.Info("table reconciled",
					"table", table.Name,
					"created", result.Created,
					"added", result.Added,
					"dropped", result.Dropped)
			}
			return nil
		},
	}
}

func newBackupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "write a timestamped snapshot of the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			location, err := a.backups.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(location)
			return nil
		},
	}
}

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "reconcile upload metadata rows against the upload directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			uploads, err := a.store.AllUploads(ctx)
			if err != nil {
				return err
			}

			// Uploaded files live under the upload directory keyed by row id.
			known := make(map[string]bool, len(uploads))
			missing := 0
			for _, up := range uploads {
				name := strconv.FormatInt(up.ID, 10)
				known[name] = true
				if _, err := os.Stat(filepath.Join(a.cfg.UploadDir, name)); err != nil {
					a.logger.Warn("upload file missing on disk",
						"upload", up.ID, "filename", up.Filename)
					missing++
				}
			}

			stray := 0
			entries, err := os.ReadDir(a.cfg.UploadDir)
			if err != nil && !os.IsNotExist(err) {
				return err
			}
			for _, entry := range entries {
				if entry.IsDir() || known[entry.Name()] {
					continue
				}
				a.logger.Warn("file on disk has no upload row", "file", entry.Name())
				stray++
			}

			fmt.Printf("uploads: %d rows, %d missing files, %d stray files\n", len(uploads), missing, stray)
			return nil
		},
	}
}
