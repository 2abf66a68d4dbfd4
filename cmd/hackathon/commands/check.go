package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/cobra"

	"github.com/gdtech/hackathon/internal/aggregation"
	"github.com/gdtech/hackathon/internal/contracts"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "检查配置与外部依赖连通性",
	Long: `加载配置并逐项检查:
- 记录存储 (飞书 / postgres / memory) 四张表是否可读
- redis 连接
- postgres 连接池状态
- 已配置的百度统计账号

Example:
  go run ./cmd/hackathon check`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	fmt.Println("=== GDTech Hackathon Connectivity Check ===")

	ctx, cancel := context.WithTimeout(commandContext(cmd), 30*time.Second)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf("❌ %w", err)
	}
	defer a.Close()

	fmt.Printf("✅ Config loaded (ENV: %s, store: %s)\n", a.cfg.Env, a.cfg.StoreBackend)
	if a.db != nil {
		fmt.Printf("   Database URL: %s\n", maskURL(a.cfg.Database.URL))
	}

	// Record store
	start := time.Now()
	rows, err := aggregation.Fetch(ctx, a.store, contracts.Collections...)
	if err != nil {
		return fmt.Errorf("❌ record store read failed: %w", err)
	}
	fmt.Printf("✅ Record store readable (%v)\n", time.Since(start).Round(time.Millisecond))
	for _, col := range contracts.Collections {
		fmt.Printf("   %-12s %d rows\n", col, len(rows[col]))
	}

	// Redis
	if a.redis.Enabled() {
		if err := a.redis.Ping(ctx); err != nil {
			return fmt.Errorf("❌ redis ping failed: %w", err)
		}
		fmt.Println("✅ Redis reachable")
	} else {
		fmt.Println("-  Redis disabled (in-process cache and locks)")
	}

	// Postgres pool
	if a.db != nil {
		status, err := a.db.HealthCheck(ctx)
		if err != nil {
			return fmt.Errorf("❌ database health check failed: %w", err)
		}
		fmt.Printf("✅ Database healthy (%v)\n", status.ResponseTime)
		fmt.Printf("   Connections: %d total, %d idle, %d max\n", status.Stats.TotalConns, status.Stats.IdleConns, status.Stats.MaxConns)
	}

	// Analytics accounts
	accounts := a.analytics.Accounts()
	if len(accounts) == 0 {
		fmt.Println("⚠️  No Baidu Tongji accounts configured")
	} else {
		fmt.Printf("✅ Baidu Tongji accounts: %v\n", accounts)
	}

	fmt.Println("\n✅ All checks passed!")
	return nil
}

// maskURL hides the password in a connection URL for display
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
