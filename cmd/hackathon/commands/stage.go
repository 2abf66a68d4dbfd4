package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// stageCmd represents the stage command
var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "查看当前比赛阶段",
	Long: `输出当前阶段、按时间窗口推算的阶段以及已配置的窗口。

配置表中的 current_stage 优先于时间窗口。`,
	RunE: showStage,
}

func init() {
	rootCmd.AddCommand(stageCmd)
}

func showStage(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	current := a.resolver.Resolve(ctx)
	byClock := a.resolver.ByClock()

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════")
	fmt.Printf("  当前阶段 : %s (%s)\n", current.Name(), current.Code())
	fmt.Printf("  时间推算 : %s (%s)\n", byClock.Name(), byClock.Code())
	fmt.Printf("  可投资   : %v\n", current.CanInvest())
	fmt.Println("───────────────────────────────────────────────────────────")
	for _, line := range a.resolver.Describe() {
		fmt.Printf("  %s\n", line)
	}
	fmt.Println("═══════════════════════════════════════════════════════════")

	return nil
}
