package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Annany2002/cadastro-backend/config"
	"github.com/Annany2002/cadastro-backend/internal/app"
	"github.com/Annany2002/cadastro-backend/internal/domain"
	"github.com/Annany2002/cadastro-backend/internal/logger"
	"github.com/Annany2002/cadastro-backend/internal/storage"
)

var verbose bool

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cadastroctl",
	Short: "Operator tool for the cadastros engine",
	Long: "Runs catalog migrations, reconciles the catalog against live tables, re-projects stored " +
		"permissions onto database roles and bootstraps administrators.",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetLevel("debug")
		}
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the catalog migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		return storage.Migrate(cfg.DatabaseURL, cfg.Schema)
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile [table]",
	Short: "Adopt live columns missing from the catalog",
	Long:  `Reads the live column list of one table, or of every catalog table when none is given, and appends missing columns to the catalog. Catalog fields are never removed.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			added := map[string][]domain.Field{}
			if len(args) == 1 {
				fields, err := a.Engine.Reconcile(ctx, args[0])
				if err != nil {
					return err
				}
				if len(fields) > 0 {
					added[args[0]] = fields
				}
			} else {
				var err error
				if added, err = a.Engine.ReconcileAll(ctx); err != nil {
					return err
				}
			}
			printAdded(added)
			return nil
		})
	},
}

var syncGrantsCmd = &cobra.Command{
	Use:   "sync-grants",
	Short: "Re-project stored permissions onto database roles",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			report, err := a.Engine.SyncGrants(ctx)
			if err != nil {
				return err
			}
			for _, w := range report.Warnings {
				fmt.Fprintln(os.Stderr, "warning:", w)
			}
			if !report.Applied {
				return fmt.Errorf("grants mirror diverges: %d warning(s)", len(report.Warnings))
			}
			fmt.Println("grants in sync")
			return nil
		})
	},
}

var (
	adminUsername string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		if adminPassword == "" {
			adminPassword = os.Getenv("ADMIN_PASSWORD")
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			created, err := a.Engine.BootstrapAdmin(ctx, adminUsername, adminPassword)
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("administrator %s created\n", adminUsername)
			} else {
				fmt.Printf("account %s already exists\n", adminUsername)
			}
			return nil
		})
	},
}

var grantsCmd = &cobra.Command{
	Use:   "grants",
	Short: "Inspect or drop database roles",
}

var grantsShowCmd = &cobra.Command{
	Use:   "show [username]",
	Short: "List the table privileges held by an account's database role",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			privs, err := a.Mirror.Privileges(ctx, args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"role": a.Mirror.RoleName(args[0]), "privileges": privs})
		})
	},
}

var grantsDropCmd = &cobra.Command{
	Use:   "drop [username]",
	Short: "Drop the database role of a deactivated account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			report, err := a.Engine.DropAccountRole(ctx, args[0])
			if err != nil {
				return err
			}
			for _, w := range report.Warnings {
				fmt.Fprintln(os.Stderr, "warning:", w)
			}
			if !report.Applied {
				return fmt.Errorf("role of %s was not dropped", args[0])
			}
			fmt.Printf("role %s dropped\n", a.Mirror.RoleName(args[0]))
			return nil
		})
	},
}

// withApp loads the configuration, opens the application and runs fn.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printAdded(added map[string][]domain.Field) {
	if len(added) == 0 {
		fmt.Println("catalog already matches live tables")
		return
	}
	tables := make([]string, 0, len(added))
	for t := range added {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		for _, f := range added[t] {
			fmt.Printf("%s: adopted %s (%s)\n", t, f.Name, f.Type)
		}
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	createAdminCmd.Flags().StringVar(&adminUsername, "username", "admin", "Administrator username")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Administrator password (defaults to $ADMIN_PASSWORD)")

	grantsCmd.AddCommand(grantsShowCmd, grantsDropCmd)
	rootCmd.AddCommand(migrateCmd, reconcileCmd, syncGrantsCmd, createAdminCmd, grantsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
