package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "核对投资人剩余额度",
	Long: `按 初始额度 - 投资记录合计 重新计算每位投资人的剩余额度，
与记录表中的值不一致时写回。

Example:
  go run ./cmd/hackathon reconcile`,
	RunE: runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.ledger.Reconcile(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Checked %d investors in %.2fs\n", report.Checked, report.Duration.Seconds())
	for _, d := range report.Drifts {
		stored := "(empty)"
		if d.Stored != nil {
			stored = strconv.FormatInt(*d.Stored, 10)
		}
		status := "✅ repaired"
		if !d.Repaired {
			status = "❌ " + d.Error
		}
		fmt.Printf("  %-8s stored=%-8s expected=%-8d %s\n", d.Username, stored, d.Expected, status)
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d investors not repaired", report.Failed)
	}
	return nil
}
