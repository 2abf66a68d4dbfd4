package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "缓存管理",
}

var cacheFlushCmd = &cobra.Command{
	Use:   "flush",
	Short: "清除所有缓存",
	Long: `清除排名、作品与投资人缓存。手动修改记录表后使用。
只对 redis 缓存有跨进程效果；进程内缓存请调用 API 的 /hackathon/cache/clear。`,
	RunE: flushCache,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheFlushCmd)
}

func flushCache(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.redis.Enabled() {
		fmt.Println("⚠️  Redis is disabled; nothing shared to flush")
		return nil
	}

	n, err := a.agg.Flush(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %d cache entries cleared\n", n)
	return nil
}
