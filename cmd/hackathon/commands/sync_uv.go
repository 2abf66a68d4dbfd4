package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// syncUVCmd represents the sync-uv command
var syncUVCmd = &cobra.Command{
	Use:   "sync-uv",
	Short: "立即同步一次百度统计累计UV",
	Long: `对每个启用且配置了百度统计账号和 SiteID 的作品，拉取最近
BAIDU_LOOKBACK_DAYS 天的累计 UV 并写回记录表。活动结束后跳过。

Example:
  go run ./cmd/hackathon sync-uv`,
	RunE: runSyncUV,
}

func init() {
	rootCmd.AddCommand(syncUVCmd)
}

func runSyncUV(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if accounts := a.analytics.Accounts(); len(accounts) == 0 {
		fmt.Println("⚠️  No Baidu Tongji accounts configured, every project will be ignored")
	}

	report, err := a.syncer.Run(ctx)
	if err != nil {
		return err
	}

	if report.Skipped {
		fmt.Printf("Stage %s: visitor sync skipped\n", report.Stage.Code())
		return nil
	}

	fmt.Printf("✅ Visitor sync completed in %.2fs\n", report.Duration.Seconds())
	fmt.Printf("   Success : %d\n", report.Success)
	fmt.Printf("   Failed  : %d\n", report.Failed)
	fmt.Printf("   Ignored : %d\n", report.Ignored)

	if report.Failed > 0 {
		return fmt.Errorf("%d projects failed to sync", report.Failed)
	}
	return nil
}
