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
// core/common/rotatelogger.go

package common

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/samber/oops"
)

const (
	// DefaultMaxSize 默认单个日志文件大小限制 (10MB)
	DefaultMaxSize = 10 * 1024 * 1024
	// DefaultMaxFiles 默认保留的日志文件数量
	DefaultMaxFiles = 10
	// DefaultLogDir 默认日志目录
	DefaultLogDir = "log"
	// DefaultLogFile 默认日志文件名
	DefaultLogFile = "homeadmin.log"
)

// RotateLogger 按大小轮转的日志文件
// 作为slog和gin的输出目标使用
type RotateLogger struct {
	logDir      string
	logFile     string
	maxSize     int64
	maxFiles    int
	currentFile *os.File
	currentSize int64
	mutex       sync.Mutex
	stdout      io.Writer
}

var _ io.WriteCloser = (*RotateLogger)(nil)

// NewRotateLogger 创建新的轮转日志文件
// 参数:
//
//	logDir: 日志目录
//	logFile: 日志文件名
//	maxSize: 单个文件大小限制(字节)
//	maxFiles: 保留文件数量
//
// 返回值:
//
//	*RotateLogger: 轮转日志实例
//	error: 创建过程中的错误
func NewRotateLogger(logDir, logFile string, maxSize int64, maxFiles int) (*RotateLogger, error) {
	if logDir == "" {
		logDir = DefaultLogDir
	}
	if logFile == "" {
		logFile = DefaultLogFile
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if maxFiles <= 0 {
		maxFiles = DefaultMaxFiles
	}

	r := &RotateLogger{
		logDir:   logDir,
		logFile:  logFile,
		maxSize:  maxSize,
		maxFiles: maxFiles,
	}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, oops.With("dir", logDir).Wrapf(err, "创建日志目录失败")
	}

	if err := r.openFile(); err != nil {
		return nil, err
	}

	return r, nil
}

// SetStdout 设置是否同时输出到标准输出
func (r *RotateLogger) SetStdout(enable bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if enable {
		r.stdout = os.Stdout
	} else {
		r.stdout = nil
	}
}

// openFile 打开或创建日志文件，已超限的文件先轮转
func (r *RotateLogger) openFile() error {
	logPath := filepath.Join(r.logDir, r.logFile)

	if info, err := os.Stat(logPath); err == nil && info.Size() >= r.maxSize {
		r.shift()
	}

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return oops.With("path", logPath).Wrapf(err, "打开日志文件失败")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return oops.With("path", logPath).Wrap(err)
	}

	r.currentFile = file
	r.currentSize = info.Size()
	return nil
}

// shift 将 name.N 依次后移，当前文件改名为 name.1
func (r *RotateLogger) shift() {
	os.Remove(r.historyPath(r.maxFiles))
	for i := r.maxFiles - 1; i >= 1; i-- {
		oldPath := r.historyPath(i)
		if _, err := os.Stat(oldPath); err == nil {
			os.Rename(oldPath, r.historyPath(i+1))
		}
	}

	currentPath := filepath.Join(r.logDir, r.logFile)
	if _, err := os.Stat(currentPath); err == nil {
		os.Rename(currentPath, r.historyPath(1))
	}
}

func (r *RotateLogger) historyPath(i int) string {
	return filepath.Join(r.logDir, fmt.Sprintf("%s.%d", r.logFile, i))
}

// rotate 关闭当前文件并执行轮转
func (r *RotateLogger) rotate() error {
	if r.currentFile != nil {
		r.currentFile.Close()
		r.currentFile = nil
	}
	r.shift()
	return r.openFile()
}

// Write 实现 io.Writer 接口
// 参数:
//
//	p: 要写入的字节切片
//
// 返回值:
//
//	n: 写入的字节数
//	err: 写入过程中的错误
func (r *RotateLogger) Write(p []byte) (n int, err error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentFile == nil {
		return 0, oops.Errorf("日志文件已关闭")
	}

	if r.currentSize+int64(len(p)) > r.maxSize && r.currentSize > 0 {
		if err := r.rotate(); err != nil {
			return 0, err
		}
	}

	n, err = r.currentFile.Write(p)
	r.currentSize += int64(n)
	if err != nil {
		return n, err
	}

	if r.stdout != nil {
		r.stdout.Write(p)
	}
	return n, nil
}

// Close 关闭日志文件
func (r *RotateLogger) Close() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currentFile == nil {
		return nil
	}
	err := r.currentFile.Close()
	r.currentFile = nil
	return err
}

// GetLogFiles 获取所有日志文件列表
// 返回值:
//
//	[]string: 日志文件路径列表，当前文件在前
func (r *RotateLogger) GetLogFiles() []string {
	var files []string

	currentPath := filepath.Join(r.logDir, r.logFile)
	if _, err := os.Stat(currentPath); err == nil {
		files = append(files, currentPath)
	}

	for i := 1; i <= r.maxFiles; i++ {
		historyPath := r.historyPath(i)
		if _, err := os.Stat(historyPath); err == nil {
			files = append(files, historyPath)
		}
	}

	return files
}
