package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gdtech/hackathon/internal/aggregation"
	"github.com/gdtech/hackathon/internal/contracts"
)

// qualifiedCmd represents the qualified command
var qualifiedCmd = &cobra.Command{
	Use:   "qualified",
	Short: "晋级名单",
	Long: `查看或清除锁定的晋级名单。

晋级名单在锁定期第一次读取排名时按当时的 UV 排名生成并写入配置表，
之后不再变化。清除后下一次读取会重新生成。`,
}

var (
	qualifiedShowCmd = &cobra.Command{
		Use:   "show",
		Short: "查看晋级名单",
		RunE:  showQualified,
	}

	qualifiedClearCmd = &cobra.Command{
		Use:   "clear",
		Short: "清除晋级名单",
		RunE:  clearQualified,
	}
)

func init() {
	rootCmd.AddCommand(qualifiedCmd)
	qualifiedCmd.AddCommand(qualifiedShowCmd)
	qualifiedCmd.AddCommand(qualifiedClearCmd)
}

func showQualified(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	set, err := a.registry.Load(ctx)
	if err != nil {
		return fmt.Errorf("load qualified set: %w", err)
	}

	if set.Empty() {
		fmt.Println("晋级名单尚未锁定")
		return nil
	}

	fmt.Printf("晋级名单 (%d):\n", len(set.IDs))
	for i, id := range set.IDs {
		fmt.Printf("  %2d. 项目 %d\n", i+1, id)
	}
	return nil
}

func clearQualified(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := aggregation.Fetch(ctx, a.store, contracts.CollectionConfig)
	if err != nil {
		return err
	}

	if err := a.registry.Clear(ctx, rows[contracts.CollectionConfig]); err != nil {
		return fmt.Errorf("clear qualified set: %w", err)
	}
	a.agg.InvalidateAllProjects(ctx)

	fmt.Println("✅ 晋级名单已清除")
	return nil
}
