package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carelink/carelink/internal/config"
	"github.com/carelink/carelink/internal/domain/verification"
	"github.com/carelink/carelink/internal/platform/db"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "carelink-server",
		Short: "CareLink health records API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(keysCmd())
	rootCmd.AddCommand(adminCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the CareLink API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// withPool loads config and opens a database pool for one-shot commands.
func withPool(fn func(ctx context.Context, app *application) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	logger := newLogger(cfg.Env)
	app, err := newApplication(ctx, cfg, pool, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, app)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, dir).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd, statuses)
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printMigrationStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
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
}

func keysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage doctor verification keys",
	}

	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a single-use doctor verification key",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := issueRequestFromFlags(cmd)
			if err != nil {
				return err
			}
			return withPool(func(ctx context.Context, app *application) error {
				key, err := app.keys.Issue(ctx, req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Key:                 %s\n", key.Key)
				fmt.Fprintf(out, "Specialization:      %s\n", key.Specialization)
				fmt.Fprintf(out, "Registration number: %s\n", key.RegistrationNumber)
				if key.ExpiresAt != nil {
					fmt.Fprintf(out, "Expires at:          %s\n", key.ExpiresAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			})
		},
	}
	issueCmd.Flags().String("specialization", "", "Doctor specialization")
	issueCmd.Flags().String("registration-number", "", "Medical registration number")
	issueCmd.Flags().String("issued-to", "", "Name or e-mail of the doctor receiving the key")
	issueCmd.Flags().Int("expires-in", 0, "Days until the key expires (0 = never)")

	cmd.AddCommand(issueCmd)
	return cmd
}

func issueRequestFromFlags(cmd *cobra.Command) (verification.IssueKeyRequest, error) {
	specialization, _ := cmd.Flags().GetString("specialization")
	reg, _ := cmd.Flags().GetString("registration-number")
	issuedTo, _ := cmd.Flags().GetString("issued-to")
	days, _ := cmd.Flags().GetInt("expires-in")

	if strings.TrimSpace(specialization) == "" {
		return verification.IssueKeyRequest{}, fmt.Errorf("--specialization is required")
	}
	if strings.TrimSpace(reg) == "" {
		return verification.IssueKeyRequest{}, fmt.Errorf("--registration-number is required")
	}
	if days < 0 {
		return verification.IssueKeyRequest{}, fmt.Errorf("--expires-in must not be negative")
	}
	return verification.IssueKeyRequest{
		Specialization:     specialization,
		RegistrationNumber: reg,
		IssuedTo:           issuedTo,
		ExpiresInDays:      days,
	}, nil
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage administrator accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			name, _ := cmd.Flags().GetString("name")
			if email == "" || password == "" || name == "" {
				return fmt.Errorf("--email, --password and --name are required")
			}

			return withPool(func(ctx context.Context, app *application) error {
				u, err := app.identity.CreateAdmin(ctx, email, password, name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Admin %s created with id %s\n", u.Email, u.ID)
				return nil
			})
		},
	}
	createCmd.Flags().String("email", "", "Admin e-mail address")
	createCmd.Flags().String("password", "", "Admin password")
	createCmd.Flags().String("name", "", "Admin display name")

	cmd.AddCommand(createCmd)
	return cmd
}
