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
// core/webapi/middleware/middleware.go
// 限流和访问日志中间件

package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"HomeAdmin/core/common"

	"github.com/gin-gonic/gin"
)

// RateLimitSettings 单类请求的限流参数
type RateLimitSettings struct {
	Limit       int
	Window      time.Duration
	MaxFailures int
	BanDuration time.Duration
}

// RateLimiter 按客户端IP限流，超限次数过多时临时封禁
type RateLimiter struct {
	mu        sync.Mutex
	ipLimits  map[string]*LimitCounter
	bannedIPs map[string]time.Time
	settings  func(path string) RateLimitSettings
}

// LimitCounter 滑动窗口计数器
type LimitCounter struct {
	mutex     sync.Mutex
	requests  []time.Time
	failCount int
	settings  RateLimitSettings
}

var (
	rateLimiter     *RateLimiter
	rateLimiterOnce sync.Once
)

// NewRateLimiter 创建限流器
// 参数:
//
//	settings: 按请求路径返回限流参数，nil时从配置读取
func NewRateLimiter(settings func(path string) RateLimitSettings) *RateLimiter {
	if settings == nil {
		settings = settingsFromConfig
	}
	return &RateLimiter{
		ipLimits:  make(map[string]*LimitCounter),
		bannedIPs: make(map[string]time.Time),
		settings:  settings,
	}
}

// GetRateLimiter 获取全局限流器
func GetRateLimiter() *RateLimiter {
	rateLimiterOnce.Do(func() {
		rateLimiter = NewRateLimiter(nil)
	})
	return rateLimiter
}

// ReloadConfig 清空计数器，新的计数器按当前配置创建
func (rl *RateLimiter) ReloadConfig() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.ipLimits = make(map[string]*LimitCounter)
	now := time.Now()
	for ip, until := range rl.bannedIPs {
		if now.After(until) {
			delete(rl.bannedIPs, ip)
		}
	}
}

// settingsFromConfig 读取 api 段的限流配置，登录接口更严格
func settingsFromConfig(path string) RateLimitSettings {
	window := time.Duration(common.GetConfigInt("api", "rate_limit_window_seconds", 60)) * time.Second
	s := RateLimitSettings{
		Limit:       common.GetConfigInt("api", "rate_limit", 300),
		Window:      window,
		MaxFailures: common.GetConfigInt("api", "rate_limit_max_failures", 10),
		BanDuration: time.Duration(common.GetConfigInt("api", "rate_limit_ban_minutes", 10)) * time.Minute,
	}
	if path == "/api/login" || path == "/api/refresh-token" {
		s.Limit = common.GetConfigInt("api", "rate_limit_login", 60)
		s.BanDuration = 5 * time.Minute
	}
	return s
}

// AddRequest 记录一次请求，超出窗口限额时返回false
func (lc *LimitCounter) AddRequest() bool {
	lc.mutex.Lock()
	defer lc.mutex.Unlock()

	now := time.Now()
	cutoff := now.Add(-lc.settings.Window)
	valid := lc.requests[:0]
	for _, t := range lc.requests {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	lc.requests = valid

	if len(lc.requests) >= lc.settings.Limit {
		lc.failCount++
		return false
	}
	lc.requests = append(lc.requests, now)
	return true
}

// shouldBan 超限次数是否达到封禁阈值
func (lc *LimitCounter) shouldBan() bool {
	lc.mutex.Lock()
	defer lc.mutex.Unlock()
	return lc.settings.MaxFailures > 0 && lc.failCount >= lc.settings.MaxFailures
}

// IsBanned 检查IP是否被封禁
func (rl *RateLimiter) IsBanned(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	until, exists := rl.bannedIPs[ip]
	if !exists {
		return false
	}
	if time.Now().After(until) {
		delete(rl.bannedIPs, ip)
		return false
	}
	return true
}

// BanIP 封禁IP
func (rl *RateLimiter) BanIP(ip string, duration time.Duration) {
	rl.mu.Lock()
	rl.bannedIPs[ip] = time.Now().Add(duration)
	rl.mu.Unlock()
}

// counter 获取或创建 ip+路径类别 的计数器
func (rl *RateLimiter) counter(ip, path string) *LimitCounter {
	category := "api"
	switch {
	case path == "/api/login":
		category = "login"
	case path == "/api/refresh-token":
		category = "refresh"
	case strings.HasPrefix(path, "/api/health"):
		category = "health"
	}
	key := ip + ":" + category

	rl.mu.Lock()
	defer rl.mu.Unlock()
	lc, exists := rl.ipLimits[key]
	if !exists {
		lc = &LimitCounter{settings: rl.settings(path)}
		rl.ipLimits[key] = lc
	}
	return lc
}

// Middleware 返回限流中间件
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !common.GetConfigBool("api", "rate_limit_enabled", true) {
			c.Next()
			return
		}

		clientIP := c.ClientIP()
		if rl.IsBanned(clientIP) {
			SendErrorResponseGin(c, "请求过于频繁，请稍后再试", http.StatusTooManyRequests)
			c.Abort()
			return
		}

		lc := rl.counter(clientIP, c.Request.URL.Path)
		if !lc.AddRequest() {
			if lc.shouldBan() {
				rl.BanIP(clientIP, lc.settings.BanDuration)
				SendErrorResponseGin(c, "请求过于频繁，已被临时封禁", http.StatusTooManyRequests)
			} else {
				SendErrorResponseGin(c, "请求过于频繁，请稍后再试", http.StatusTooManyRequests)
			}
			c.Abort()
			return
		}
		c.Next()
	}
}

// RateLimitMiddleware 使用全局限流器的中间件
func RateLimitMiddleware() gin.HandlerFunc {
	return GetRateLimiter().Middleware()
}

// LoggerMiddleware API访问日志中间件
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !common.GetConfigBool("api", "log_enabled", true) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"request_id", c.GetString(RequestIDKey),
			"ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
		}
		if query := c.Request.URL.RawQuery; query != "" {
			attrs = append(attrs, "query", query)
		}
		if username := CurrentUsername(c); username != "" {
			attrs = append(attrs, "user", username)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}

		level := slog.LevelInfo
		switch {
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		common.Slog().Log(c.Request.Context(), level, "API请求", attrs...)
	}
}

// BodyLimitMiddleware 限制请求体大小，超出部分读取时报错
func BodyLimitMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
