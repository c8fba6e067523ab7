// intentctl 运维命令行：手动触发打分任务、试分类采购机会、导入种子配置
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"IntentEngine/internal/app"
	"IntentEngine/internal/classifier"
	"IntentEngine/internal/config"
	"IntentEngine/internal/database"
	"IntentEngine/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "intentctl",
		Short:   "IntentEngine 运维工具",
		Version: Version,
	}
	rootCmd.PersistentFlags().Bool("verbose", false, "输出 debug 日志")

	rootCmd.AddCommand(recomputeAllCmd())
	rootCmd.AddCommand(recomputeOneCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap 加载配置、连库、迁移并组装服务
func bootstrap(cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	db, err := database.Open(&cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if err := model.Migrate(db); err != nil {
		return nil, fmt.Errorf("数据库表结构迁移失败: %w", err)
	}
	return app.New(cfg, db, logger)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func recomputeAllCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompute-all",
		Short: "批量重算所有账号（或指定账号）的当日意向快照",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rangeDays, _ := cmd.Flags().GetInt("range-days")
			keys, _ := cmd.Flags().GetStringSlice("account-keys")

			a, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			run, err := a.Recompute.RecomputeAll(context.Background(), rangeDays, keys)
			if run != nil {
				if perr := printJSON(run); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().Int("range-days", 0, "回溯天数（0 使用配置默认值）")
	cmd.Flags().StringSlice("account-keys", nil, "只处理这些账号域名，逗号分隔")
	return cmd
}

func recomputeOneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute-one [account_id]",
		Short: "用本地信号实时重算单个账号",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("account_id 必须是正整数: %q", args[0])
			}
			a, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			snap, err := a.Recompute.RecomputeOne(context.Background(), id)
			if err != nil {
				return err
			}
			return printJSON(snap)
		},
	}
}

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "用当前规则试分类一条采购机会（不落库）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var rec classifier.Record
			rec.Title, _ = cmd.Flags().GetString("title")
			rec.Description, _ = cmd.Flags().GetString("description")
			rec.Agency, _ = cmd.Flags().GetString("agency")
			rec.NAICS, _ = cmd.Flags().GetString("naics")

			a, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Programs.Classify(context.Background(), rec)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	cmd.Flags().String("title", "", "标题")
	cmd.Flags().String("description", "", "描述")
	cmd.Flags().String("agency", "", "采购机构")
	cmd.Flags().String("naics", "", "NAICS 编码")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [file.yaml]",
		Short: "从 YAML 导入打分配置、权重、事件规则与采购规则，并激活该配置",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := LoadSeedFile(args[0])
			if err != nil {
				return err
			}
			a, err := bootstrap(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := ApplySeed(context.Background(), a.Admin, seed)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
}
