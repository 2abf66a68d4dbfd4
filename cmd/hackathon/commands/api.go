package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gdtech/hackathon/internal/api"
	"github.com/gdtech/hackathon/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "启动 API 服务",
	Long: `启动大赛 REST API 服务。

默认同时在进程内运行定时任务 (UV 同步、额度核对)，
多副本部署时只应有一个副本带 --scheduler。

Endpoints:
  GET  /health
  GET  /hackathon/stage
  GET  /hackathon/projects
  GET  /hackathon/projects/{id}
  POST /hackathon/login
  GET  /hackathon/investor/{username}
  POST /hackathon/invest
  POST /hackathon/cache/clear
  POST /hackathon/cache/clear/investor/{username}
  POST /hackathon/cache/clear/project/{id}
  GET  /ws/ranking

Example:
  go run ./cmd/hackathon api
  go run ./cmd/hackathon api --port 8080 --scheduler=false`,
	RunE: runAPIServer,
}

var (
	apiPort      string
	apiScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 端口 (默认读取 PORT)")
	apiCmd.Flags().BoolVar(&apiScheduler, "scheduler", true, "在进程内运行定时任务")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== GDTech Hackathon API Server ===")

	a, err := newApp(commandContext(cmd))
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	router := api.NewRouter(api.Handlers{
		Hackathon: handlers.NewHackathonHandler(a.agg, a.investors, a.ledger, a.log),
		Cache:     handlers.NewCacheHandler(a.agg, a.hub, a.log),
		Health:    handlers.NewHealthHandler("gdtech-hackathon", a.healthChecks()),
		Token:     handlers.NewTokenHandler(a.analytics, a.log),
		WebSocket: a.hub.ServeWS,
	}, a.log)
	server := api.New(a.cfg, a.log, router)

	if apiScheduler {
		sched, err := a.newScheduler()
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	fmt.Printf("\n✅ Server running on http://localhost:%s\n", a.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	a.log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	a.log.Info("Server stopped")
	return nil
}
