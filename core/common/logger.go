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

// core/common/logger.go

package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// 日志级别常量
const (
	DEBUG = iota
	INFO
	WARN
	ERROR
	FATAL
)

// LogLevel 日志级别类型
type LogLevel int

// 日志级别字符串映射
var logLevelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

// 字符串到日志级别的映射
var logLevelValues = map[string]LogLevel{
	"DEBUG": DEBUG,
	"INFO":  INFO,
	"WARN":  WARN,
	"ERROR": ERROR,
	"FATAL": FATAL,
}

// String 返回日志级别的字符串表示
func (level LogLevel) String() string {
	if name, ok := logLevelNames[level]; ok {
		return name
	}
	return "UNKNOWN"
}

// slogLevel 转换为slog级别
func (level LogLevel) slogLevel() slog.Level {
	switch level {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR, FATAL:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLogLevel 从字符串解析日志级别
func ParseLogLevel(levelStr string) LogLevel {
	levelStr = strings.ToUpper(strings.TrimSpace(levelStr))
	if level, ok := logLevelValues[levelStr]; ok {
		return level
	}
	return INFO // 默认INFO级别
}

// GetLogLevelFromConfig 从配置获取日志级别
func GetLogLevelFromConfig() LogLevel {
	levelStr := GetConfig("logging", "level")
	if levelStr == "" {
		return INFO
	}
	return ParseLogLevel(levelStr)
}

var (
	levelVar    = new(slog.LevelVar)
	baseLogger  = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: levelVar}))
	baseLoggerM sync.RWMutex
)

// SetupLogger 创建slog日志器
// 参数:
//
//	format: 日志格式，json 或 text
//	w: 输出目标，nil时为标准输出
//
// 返回值:
//
//	*slog.Logger: 日志器
func SetupLogger(format string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: levelVar}
	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler).With("service", "homeadmin")
}

// InitLogger 初始化全局日志输出
func InitLogger(format string, w io.Writer, level LogLevel) {
	levelVar.Set(level.slogLevel())

	logger := SetupLogger(format, w)
	baseLoggerM.Lock()
	baseLogger = logger
	baseLoggerM.Unlock()
	slog.SetDefault(logger)
}

// Slog 获取全局slog日志器
func Slog() *slog.Logger {
	baseLoggerM.RLock()
	defer baseLoggerM.RUnlock()
	return baseLogger
}

// Logger 日志管理器
// 保留格式化风格的调用方式，输出交给slog
type Logger struct {
	level LogLevel
	attrs []any
}

// NewLogger 创建新的日志管理器
func NewLogger() *Logger {
	return &Logger{
		level: GetLogLevelFromConfig(),
	}
}

// NewLoggerWithLevel 创建指定级别的日志管理器
func NewLoggerWithLevel(level LogLevel) *Logger {
	return &Logger{
		level: level,
	}
}

// With 返回附带固定属性的日志管理器
func (l *Logger) With(args ...any) *Logger {
	attrs := make([]any, 0, len(l.attrs)+len(args))
	attrs = append(attrs, l.attrs...)
	attrs = append(attrs, args...)
	return &Logger{level: l.level, attrs: attrs}
}

// SetLevel 设置日志级别
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

// GetLevel 获取当前日志级别
func (l *Logger) GetLevel() LogLevel {
	return l.level
}

// Slog 返回带属性的slog日志器
func (l *Logger) Slog() *slog.Logger {
	logger := Slog()
	if len(l.attrs) > 0 {
		logger = logger.With(l.attrs...)
	}
	return logger
}

// Debug 打印DEBUG级别日志
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level <= DEBUG {
		l.log(slog.LevelDebug, format, args...)
	}
}

// Info 打印INFO级别日志
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level <= INFO {
		l.log(slog.LevelInfo, format, args...)
	}
}

// Warn 打印WARN级别日志
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level <= WARN {
		l.log(slog.LevelWarn, format, args...)
	}
}

// Error 打印ERROR级别日志
func (l *Logger) Error(format string, args ...interface{}) {
	if l.level <= ERROR {
		l.log(slog.LevelError, format, args...)
	}
}

// Fatal 打印FATAL级别日志并退出程序
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(slog.LevelError, format, args...)
	os.Exit(1)
}

// log 内部日志打印方法
func (l *Logger) log(level slog.Level, format string, args ...interface{}) {
	l.Slog().Log(context.Background(), level, fmt.Sprintf(format, args...))
}

// LogError 记录错误日志，包含错误码和上下文
func (l *Logger) LogError(format string, err error, args ...interface{}) {
	if l.level <= ERROR {
		LogError(l.Slog(), fmt.Sprintf(format, args...), err)
	}
}

// Printf 兼容旧的日志打印方法
func (l *Logger) Printf(format string, args ...interface{}) {
	l.Info(format, args...)
}
