/*
HomeAdmin - 智能家居插件管理接口

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
// cmd/main.go

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"HomeAdmin/core/common"
	"HomeAdmin/core/database"
	"HomeAdmin/core/plugin"
	"HomeAdmin/core/webapi/api"
	"HomeAdmin/core/webapi/middleware"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

const (
	// Version 应用程序版本
	Version = "1.0.0"
	// DefaultPIDFile 默认PID文件路径
	DefaultPIDFile = "homeadmin.pid"
)

// cliOptions 命令行参数
type cliOptions struct {
	configPath string
	pidFile    string
	logStdout  bool
	daemon     bool
}

var opts cliOptions

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd 创建命令行入口
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "homeadmin",
		Short:         "HomeAdmin - 智能家居插件管理接口",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", common.DefaultConfigPath, "配置文件路径")
	pf.StringVarP(&opts.pidFile, "pidfile", "p", DefaultPIDFile, "PID文件路径")
	pf.StringP("log-dir", "l", common.DefaultLogDir, "日志目录")
	pf.BoolVar(&opts.logStdout, "log-stdout", false, "日志同时输出到标准输出")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "启动服务",
		RunE:  cmdStart,
	}
	startCmd.Flags().BoolVarP(&opts.daemon, "daemon", "d", false, "后台运行模式")
	startCmd.Flags().Int("port", 0, "API服务端口，覆盖配置文件")

	rootCmd.AddCommand(
		startCmd,
		&cobra.Command{
			Use:   "stop",
			Short: "停止服务",
			RunE:  cmdStop,
		},
		&cobra.Command{
			Use:   "status",
			Short: "查看服务状态",
			RunE:  cmdStatus,
		},
		&cobra.Command{
			Use:   "version",
			Short: "显示版本信息",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "HomeAdmin 版本 %s\n", Version)
				fmt.Fprintln(cmd.OutOrStdout(), "许可证: AGPLv3")
			},
		},
	)
	return rootCmd
}

// cmdStart 启动服务命令
func cmdStart(cmd *cobra.Command, args []string) error {
	daemonManager := common.NewDaemonManager(opts.pidFile)

	if common.IsDaemonChild() {
		return runService(cmd, daemonManager)
	}

	if daemonManager.IsRunning() {
		status, pid := daemonManager.GetStatus()
		return fmt.Errorf("服务已经在运行中 (状态: %s, PID: %d)", status, pid)
	}

	if opts.daemon {
		pid, err := daemonManager.StartDaemon(daemonArgs(os.Args[1:]))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "守护进程启动成功，PID: %d\n", pid)
		return nil
	}

	if err := daemonManager.WritePID(os.Getpid()); err != nil {
		return err
	}
	return runService(cmd, daemonManager)
}

// daemonArgs 子进程的启动参数，去掉命令名和后台运行标记
func daemonArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		switch arg {
		case "start", "-d", "--daemon":
			continue
		}
		out = append(out, arg)
	}
	return out
}

// runService 运行服务（前台和后台共用）
func runService(cmd *cobra.Command, daemonManager *common.DaemonManager) error {
	common.SetConfigPath(opts.configPath)
	if err := common.LoadConfig(cmd.Flags()); err != nil {
		return err
	}

	rotateLogger, err := common.NewRotateLogger(common.GetConfig("logging", "dir"), common.DefaultLogFile, common.DefaultMaxSize, common.DefaultMaxFiles)
	if err != nil {
		return err
	}
	rotateLogger.SetStdout(opts.logStdout || !common.IsDaemonChild())
	logFormat := common.GetConfig("logging", "format")
	common.InitLogger(logFormat, rotateLogger, common.GetLogLevelFromConfig())

	// GIN 的输出写入同一个日志文件
	gin.DefaultWriter = rotateLogger
	gin.DefaultErrorWriter = rotateLogger
	gin.DisableConsoleColor()

	logger := common.NewLogger().With("component", "main")
	logger.Info("HomeAdmin 服务启动中，版本: %s", Version)
	logger.Info("配置文件: %s", common.GetConfigFilePath())

	if err := database.InitDB(); err != nil {
		return err
	}
	if err := database.InitializeDatabase(); err != nil {
		return err
	}

	baseDir := common.GetConfig("host", "base_dir")
	manager := plugin.GetPluginManager()
	manager.SetConfFilename(common.GetConfigPath("host", "plugin_conf", baseDir, "etc/plugin.yaml"))
	logger.Info("插件配置文件: %s", manager.ConfFilename())

	if err := manager.RegisterPlugin(plugin.NewBackendPlugin(manager, common.GetConfig("server", "url_root"))); err != nil {
		return err
	}
	if err := manager.InitializePlugins(); err != nil {
		logger.LogError("部分插件初始化失败", err)
	}

	httpServer := api.GetHTTPServer()
	if err := httpServer.Start(); err != nil {
		return err
	}

	daemonManager.SetupSignalHandlers(
		func() {
			if err := common.LoadConfig(cmd.Flags()); err != nil {
				logger.LogError("重载配置失败", err)
				return
			}
			common.InitLogger(common.GetConfig("logging", "format"), rotateLogger, common.GetLogLevelFromConfig())
			middleware.GetJWTManager().ReloadConfig()
			middleware.GetRateLimiter().ReloadConfig()
			logger.Info("配置已重载")
		},
		func() {
			logger.Info("正在关闭服务...")
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Stop(ctx); err != nil {
				logger.LogError("停止HTTP服务器失败", err)
			}
			if err := manager.ShutdownPlugins(); err != nil {
				logger.LogError("关闭插件失败", err)
			}
			if err := database.CloseDB(); err != nil {
				logger.LogError("关闭数据库失败", err)
			}
			logger.Info("服务已关闭")
			rotateLogger.Close()
		},
	)

	logger.Info("HomeAdmin 服务启动完成")
	select {}
}

// cmdStop 停止服务命令
func cmdStop(cmd *cobra.Command, args []string) error {
	daemonManager := common.NewDaemonManager(opts.pidFile)

	status, pid := daemonManager.GetStatus()
	if status != common.StatusRunning {
		return fmt.Errorf("服务未运行")
	}

	fmt.Fprintf(cmd.OutOrStdout(), "正在停止服务 (PID: %d)...\n", pid)
	if err := daemonManager.StopDaemon(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "服务已停止")
	return nil
}

// cmdStatus 查看服务状态命令
func cmdStatus(cmd *cobra.Command, args []string) error {
	status, pid := common.NewDaemonManager(opts.pidFile).GetStatus()

	fmt.Fprintf(cmd.OutOrStdout(), "服务状态: %s\n", status)
	if pid > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "进程ID: %d\n", pid)
	}
	return nil
}
