// Command examctl runs maintenance tasks against the exam server database.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"exam-server-go/config"
	"exam-server-go/db"
	"exam-server-go/logger"
)

var (
	configPath string
	days       int

	cfg  *config.Config
	logg *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "examctl",
	Short: "Maintenance tasks for the exam server",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var paths []string
		if configPath != "" {
			paths = append(paths, configPath)
		}
		var err error
		if cfg, err = config.Load(paths...); err != nil {
			return err
		}
		logg, err = logger.New(cfg.Log.Level)
		return err
	},
	SilenceUsage: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := openStore()
		if err != nil {
			return err
		}
		fmt.Println("schema is up to date")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Add the initial accounts and sample exam when no admin exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		seeded, err := store.CheckAndSeedData(cmd.Context())
		if err != nil {
			return err
		}
		if seeded {
			fmt.Println("initial data added")
		} else {
			fmt.Println("admin exists, nothing to do")
		}
		return nil
	},
}

var distributeAllCmd = &cobra.Command{
	Use:   "distribute-all",
	Short: "Distribute every exam to every branch",
	Long: `Distribute every exam to every branch for the next --days days.

Exam/branch pairs that already have a distribution are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if days < 1 {
			return fmt.Errorf("--days must be positive, got %d", days)
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		created, skipped, err := store.DistributeAll(cmd.Context(), days)
		if err != nil {
			return err
		}
		fmt.Printf("created %d distributions, skipped %d existing\n", created, skipped)
		return nil
	},
}

var recountCmd = &cobra.Command{
	Use:   "recount",
	Short: "Re-grade every submitted attempt against the current answer keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		changed, err := store.RegradeSubmitted(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("re-graded %d attempts\n", changed)
		return nil
	},
}

var resetReportsCmd = &cobra.Command{
	Use:   "reset-reports",
	Short: "Delete every stored report so it is generated again",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		deleted, err := store.DeleteAllReports(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d reports\n", deleted)
		return nil
	},
}

var clearSessionsCmd = &cobra.Command{
	Use:   "clear-sessions",
	Short: "Sign every user out by dropping all sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := db.InitializeRedisClient(cmd.Context(), cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		cleared, err := db.NewRedisService(client, cfg.Session.TTL, logg).ClearSessions(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("cleared %d sessions\n", cleared)
		return nil
	},
}

// openStore connects to the database and migrates it.
func openStore() (*db.Store, error) {
	gdb, err := db.Open(cfg.Database, logg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		return nil, err
	}
	return db.NewStore(gdb, logg), nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config.yaml")
	distributeAllCmd.Flags().IntVar(&days, "days", 30, "length of the distribution window in days")

	rootCmd.AddCommand(migrateCmd, seedCmd, distributeAllCmd, recountCmd, resetReportsCmd, clearSessionsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
