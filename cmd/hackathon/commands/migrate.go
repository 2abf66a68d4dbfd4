package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gdtech/hackathon/internal/store/postgres"
	"github.com/gdtech/hackathon/pkg/config"
	"github.com/gdtech/hackathon/pkg/database"
	"github.com/gdtech/hackathon/pkg/logger"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "创建 postgres 记录表",
	Long: `为 STORE_BACKEND=postgres 创建 hackathon.records 表与索引。可重复执行。

Example:
  STORE_BACKEND=postgres DATABASE_URL=postgres://... go run ./cmd/hackathon migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := postgres.NewStore(db.Pool).EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	stats := db.Stats()
	log.WithField("total_conns", stats.TotalConns).Info("Schema is up to date")
	fmt.Println("✅ hackathon.records is ready")
	return nil
}
