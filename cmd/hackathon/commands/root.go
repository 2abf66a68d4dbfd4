package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hackathon",
	Short: "GDTech 骇客大赛 - 排名与投资账本服务",
	Long: `GDTech Hackathon CLI

作品排名、晋级锁定、投资人虚拟投资账本。
数据存放在飞书多维表格 (或 postgres / memory)，UV 来自百度统计。

Usage:
  go run ./cmd/hackathon [command]

Examples:
  go run ./cmd/hackathon api
  go run ./cmd/hackathon stage
  go run ./cmd/hackathon sync-uv
  go run ./cmd/hackathon scheduler list`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configFile != "" {
			os.Setenv("HACKATHON_CONFIG", configFile)
		}
		if verbose {
			os.Setenv("LOG_LEVEL", "debug")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "hackathon yaml file (default is hackathon.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
