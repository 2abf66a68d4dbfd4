package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gdtech/hackathon/internal/scheduler"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "定时任务管理",
	Long: `启动定时任务或手动执行某个任务。

Subcommands:
  start   - 启动调度器
  list    - 已注册的任务
  run     - 立即执行某个任务

Example:
  go run ./cmd/hackathon scheduler start
  go run ./cmd/hackathon scheduler list
  go run ./cmd/hackathon scheduler run uv_sync`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "启动调度器",
		Long: `启动调度器并注册所有任务:
- uv_sync: 按 BAIDU_SYNC_INTERVAL 同步百度统计累计UV (活动结束后跳过)
- budget_reconcile: 每 15 分钟核对剩余额度与投资记录
- cache_sweep: 每 5 分钟清理进程内缓存 (仅未启用 redis 时)

Ctrl+C 退出。`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "已注册的任务",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "立即执行某个任务并等待结果",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== GDTech Hackathon Scheduler ===")

	a, err := newApp(commandContext(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, err := newApp(commandContext(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	stats := sched.GetJobStats()

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %-18s %s\n", jobName, stats[jobName].Schedule)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]
	ctx := commandContext(cmd)

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	sched, err := a.newScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	fmt.Printf("Running job: %s\n", jobName)

	result, err := sched.RunJobSync(ctx, jobName)
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	switch result.Outcome {
	case scheduler.OutcomeFailed:
		return fmt.Errorf("job %s failed after %d attempts: %s", jobName, result.Attempts, result.Error)
	case scheduler.OutcomeSkipped:
		fmt.Printf("⏭️  Job %s skipped: %s\n", jobName, result.SkipReason)
		return nil
	}

	fmt.Printf("✅ Job %s completed in %.2fs\n", jobName, result.Duration.Seconds())
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
