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

// core/webapi/api/health.go

package api

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"HomeAdmin/core/database"
	"HomeAdmin/core/webapi/middleware"

	"github.com/gin-gonic/gin"
)

// 健康状态
const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// HealthCheckResponse 健康检查响应结构
type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	System     SystemHealth               `json:"system"`
	Database   DatabaseHealth             `json:"database"`
	Components map[string]ComponentHealth `json:"components"`
}

// SystemHealth 系统健康状态
type SystemHealth struct {
	CPU             int    `json:"cpu"`
	GoRoutines      int    `json:"goroutines"`
	MemoryAllocated uint64 `json:"memory_allocated"`
	MemoryTotal     uint64 `json:"memory_total"`
}

// DatabaseHealth 数据库健康状态
type DatabaseHealth struct {
	Status    string  `json:"status"`
	Latency   float64 `json:"latency_ms"`
	LastError string  `json:"last_error,omitempty"`
}

// ComponentHealth 组件健康状态
type ComponentHealth struct {
	Status    string `json:"status"`
	LastError string `json:"last_error,omitempty"`
}

// PerformHealthCheck 执行健康检查
// 数据库不可用或插件配置文件不存在时整体状态为 unhealthy
func (a *PluginAdmin) PerformHealthCheck() HealthCheckResponse {
	dbHealth := checkDatabaseHealth()
	components := map[string]ComponentHealth{
		"plugin_config": a.checkPluginConfigHealth(),
		"plugins":       a.checkPluginsHealth(),
	}

	overall := statusHealthy
	if dbHealth.Status != statusHealthy || components["plugin_config"].Status != statusHealthy {
		overall = statusUnhealthy
	}

	return HealthCheckResponse{
		Status:     overall,
		Timestamp:  time.Now().UTC(),
		System:     getSystemHealth(),
		Database:   dbHealth,
		Components: components,
	}
}

// HealthCheckHandler 健康检查处理函数
// GET /api/health
func (a *PluginAdmin) HealthCheckHandler(c *gin.Context) {
	health := a.PerformHealthCheck()
	if health.Status != statusHealthy {
		c.JSON(http.StatusServiceUnavailable, middleware.SuccessResponse{
			Success: false,
			Data:    health,
			Message: "健康检查未通过",
		})
		return
	}
	middleware.SendSuccessResponseGin(c, health, "健康检查完成")
}

func getSystemHealth() SystemHealth {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemHealth{
		CPU:             runtime.NumCPU(),
		GoRoutines:      runtime.NumGoroutine(),
		MemoryAllocated: m.Alloc,
		MemoryTotal:     m.Sys,
	}
}

func checkDatabaseHealth() DatabaseHealth {
	start := time.Now()
	err := database.CheckConnection()
	latency := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		return DatabaseHealth{
			Status:    statusUnhealthy,
			Latency:   latency,
			LastError: err.Error(),
		}
	}
	return DatabaseHealth{Status: statusHealthy, Latency: latency}
}

// checkPluginConfigHealth 插件配置文件是否存在
func (a *PluginAdmin) checkPluginConfigHealth() ComponentHealth {
	filename := a.store.Filename()
	if filename == "" {
		return ComponentHealth{Status: statusUnhealthy, LastError: "plugin configuration file not set"}
	}
	if _, err := os.Stat(filename); err != nil {
		return ComponentHealth{Status: statusUnhealthy, LastError: "plugin configuration file not found"}
	}
	return ComponentHealth{Status: statusHealthy}
}

// checkPluginsHealth 已停止的插件实例不影响整体状态，只在组件状态中体现
func (a *PluginAdmin) checkPluginsHealth() ComponentHealth {
	for _, info := range a.collectRuntimeInfo() {
		if info.Stopped {
			return ComponentHealth{Status: statusUnhealthy, LastError: "plugin " + info.ConfigName + " stopped"}
		}
	}
	return ComponentHealth{Status: statusHealthy}
}
