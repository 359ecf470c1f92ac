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
// core/common/daemon.go

package common

import (
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/samber/oops"
)

// 服务状态
const (
	StatusRunning = "运行中"
	StatusStopped = "未运行"
)

// DaemonManager 守护进程管理器
type DaemonManager struct {
	pidFile string
	logger  *Logger
}

// NewDaemonManager 创建新的守护进程管理器
// 参数:
//
//	pidFile: PID文件路径
//
// 返回值:
//
//	*DaemonManager: 守护进程管理器实例
func NewDaemonManager(pidFile string) *DaemonManager {
	return &DaemonManager{
		pidFile: pidFile,
		logger:  NewLogger().With("component", "daemon"),
	}
}

// PIDFile 返回PID文件路径
func (d *DaemonManager) PIDFile() string {
	return d.pidFile
}

// IsDaemonChild 当前进程是否为后台子进程
func IsDaemonChild() bool {
	return os.Getenv(DaemonEnvKey) == "1"
}

// StartDaemon 以后台子进程方式重新启动当前程序
// 参数:
//
//	startArgs: 传给子进程 start 命令的参数
//
// 返回值:
//
//	int: 子进程PID
//	error: 启动过程中的错误
func (d *DaemonManager) StartDaemon(startArgs []string) (int, error) {
	if d.IsRunning() {
		return 0, oops.With("pidfile", d.pidFile).Errorf("服务已经在运行中")
	}

	executable, err := os.Executable()
	if err != nil {
		executable = os.Args[0]
	}
	args := append([]string{executable, "start"}, startArgs...)

	attr := &os.ProcAttr{
		Dir:   ".",
		Env:   append(os.Environ(), DaemonEnvKey+"=1"),
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
		Sys: &syscall.SysProcAttr{
			Setsid: true,
		},
	}

	process, err := os.StartProcess(executable, args, attr)
	if err != nil {
		return 0, oops.With("executable", executable).Wrapf(err, "启动守护进程失败")
	}

	if err := d.WritePID(process.Pid); err != nil {
		process.Kill()
		return 0, err
	}

	d.logger.Info("守护进程已启动，PID: %d", process.Pid)
	return process.Pid, nil
}

// StopDaemon 停止PID文件记录的进程
func (d *DaemonManager) StopDaemon() error {
	pid, err := d.readPIDFile()
	if err != nil {
		return oops.With("pidfile", d.pidFile).Wrapf(err, "读取PID文件失败")
	}
	if pid <= 0 {
		return oops.Errorf("服务未运行")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		d.RemovePID()
		return oops.With("pid", pid).Errorf("找不到进程 %d", pid)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		if err := process.Kill(); err != nil {
			d.RemovePID()
			return oops.With("pid", pid).Wrapf(err, "终止进程失败")
		}
	}

	// 等待进程退出，最多5秒
	for i := 0; i < 50; i++ {
		if process.Signal(syscall.Signal(0)) != nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	d.RemovePID()
	d.logger.Info("服务已停止，PID: %d", pid)
	return nil
}

// IsRunning 检查服务是否正在运行
func (d *DaemonManager) IsRunning() bool {
	_, pid := d.GetStatus()
	return pid > 0
}

// GetStatus 获取服务状态
// 返回值:
//
//	string: 状态描述
//	int: 进程ID，如果未运行则为0
func (d *DaemonManager) GetStatus() (string, int) {
	pid, err := d.readPIDFile()
	if err != nil || pid <= 0 {
		return StatusStopped, 0
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return StatusStopped, 0
	}
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return StatusStopped, 0
	}
	return StatusRunning, pid
}

// WritePID 写入PID文件
func (d *DaemonManager) WritePID(pid int) error {
	dir := filepath.Dir(d.pidFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return oops.With("dir", dir).Wrapf(err, "创建PID目录失败")
		}
	}

	if err := os.WriteFile(d.pidFile, []byte(strconv.Itoa(pid)), 0644); err != nil {
		return oops.With("pidfile", d.pidFile).Wrapf(err, "写入PID文件失败")
	}
	return nil
}

// readPIDFile 读取PID文件，文件不存在时返回0
func (d *DaemonManager) readPIDFile() (int, error) {
	data, err := os.ReadFile(d.pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

// RemovePID 删除PID文件
func (d *DaemonManager) RemovePID() {
	os.Remove(d.pidFile)
}

// SetupSignalHandlers 设置信号处理
// 参数:
//
//	reload: 收到SIGHUP时调用
//	shutdown: 收到SIGINT/SIGTERM时调用，返回后进程退出
func (d *DaemonManager) SetupSignalHandlers(reload func(), shutdown func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		for sig := range sigChan {
			switch sig {
			case syscall.SIGINT, syscall.SIGTERM:
				d.logger.Info("收到终止信号: %v", sig)
				if shutdown != nil {
					shutdown()
				}
				d.RemovePID()
				os.Exit(0)
			case syscall.SIGHUP:
				d.logger.Info("收到重载信号: %v", sig)
				if reload != nil {
					reload()
				}
			}
		}
	}()
}
