package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/intake/internal/config"
	"github.com/ehr/intake/internal/domain/intake"
	"github.com/ehr/intake/internal/platform/db"
	"github.com/ehr/intake/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "intake-server",
		Short:        "Patient intake form engine",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(lintCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the intake API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(cfg.Level()).With().Timestamp().Logger()
}

// migrationFiles uses the embedded schema unless --dir points elsewhere.
func migrationFiles(cmd *cobra.Command) fs.FS {
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		return os.DirFS(dir)
	}
	return migrations.Files
}

func openMigrator(ctx context.Context, cmd *cobra.Command) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.HasDatabase() {
		return nil, nil, fmt.Errorf("DATABASE_URL is required for migrations")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrationFiles(cmd)), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}
	cmd.PersistentFlags().String("dir", "", "Read migrations from this directory instead of the embedded set")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			migrator, closeFn, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

// formFromFlag loads --form, falling back to the embedded default form.
func formFromFlag(cmd *cobra.Command) (*intake.FormConfig, error) {
	if path, _ := cmd.Flags().GetString("form"); path != "" {
		return intake.LoadFormConfigFile(path)
	}
	return intake.DefaultFormConfig()
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <values.json>",
		Short: "Validate a JSON value snapshot against a form configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formCfg, err := formFromFlag(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read values: %w", err)
			}
			var values intake.FormValues
			if err := json.Unmarshal(data, &values); err != nil {
				return fmt.Errorf("decode values: %w", err)
			}
			rendered, _ := cmd.Flags().GetStringSlice("rendered")
			counts, err := parseRenderedCounts(rendered)
			if err != nil {
				return err
			}

			engine := intake.NewEngine(formCfg, zerolog.New(cmd.ErrOrStderr()).Level(zerolog.WarnLevel))
			result, err := engine.NewResolver(intake.ResolverOptions{RenderedSectionCounts: counts})(cmd.Context(), values)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result.Errors); err != nil {
				return err
			}
			if result.HasErrors() {
				return fmt.Errorf("%d field(s) failed validation", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().String("form", "", "Form configuration file (.json, .yaml); defaults to the built-in patient record")
	cmd.Flags().StringSlice("rendered", nil, "Rendered repetitions per section linkId, e.g. insurance-section-1=1")
	return cmd
}

// parseRenderedCounts reads linkId=count pairs.
func parseRenderedCounts(pairs []string) (intake.RenderedSectionCounts, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	counts := make(intake.RenderedSectionCounts, len(pairs))
	for _, p := range pairs {
		id, n, ok := strings.Cut(p, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("rendered count %q: want linkId=count", p)
		}
		count, err := strconv.Atoi(n)
		if err != nil || count < 0 {
			return nil, fmt.Errorf("rendered count %q: count must be a non-negative integer", p)
		}
		counts[id] = count
	}
	return counts, nil
}

func lintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Check a form configuration for mistakes",
		RunE: func(cmd *cobra.Command, args []string) error {
			formCfg, err := formFromFlag(cmd)
			if err != nil {
				return err
			}
			result := intake.Lint(formCfg)
			out := cmd.OutOrStdout()
			for _, issue := range result.Issues {
				where := issue.Section
				if issue.Field != "" {
					if where != "" {
						where += "/"
					}
					where += issue.Field
				}
				fmt.Fprintf(out, "%-7s %-40s %s\n", issue.Severity, where, issue.Message)
			}
			if !result.Valid {
				return fmt.Errorf("form configuration has errors")
			}
			fmt.Fprintf(out, "ok (%d warning(s))\n", len(result.Issues))
			return nil
		},
	}
	cmd.Flags().String("form", "", "Form configuration file (.json, .yaml); defaults to the built-in patient record")
	return cmd
}
