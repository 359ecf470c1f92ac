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
// core/webapi/api/httpd.go

package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"HomeAdmin/core/common"
	"HomeAdmin/core/plugin"
	"HomeAdmin/core/webapi/middleware"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
)

// HTTPServer 管理接口HTTP服务器
type HTTPServer struct {
	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	running  bool
	cancel   context.CancelFunc
	registry *plugin.PluginManager
	webifs   *plugin.WebIfRegistry
	metrics  *middleware.Metrics
	logger   *common.Logger
}

var (
	httpServer     *HTTPServer
	httpServerOnce sync.Once
)

// GetHTTPServer 获取HTTP服务器实例（单例模式）
func GetHTTPServer() *HTTPServer {
	httpServerOnce.Do(func() {
		httpServer = NewHTTPServer(plugin.GetPluginManager())
	})
	return httpServer
}

// NewHTTPServer 创建新的HTTP服务器实例
// 参数:
//
//	registry: 插件注册表
func NewHTTPServer(registry *plugin.PluginManager) *HTTPServer {
	return &HTTPServer{
		registry: registry,
		webifs:   plugin.NewWebIfRegistry(),
		metrics:  middleware.NewMetrics(),
		logger:   common.NewLogger().With("component", "httpd"),
	}
}

// WebIfs 插件Web界面挂载表
func (hs *HTTPServer) WebIfs() *plugin.WebIfRegistry {
	return hs.webifs
}

// NewEngine 创建gin引擎并注册管理接口和插件Web界面路由
func NewEngine(admin *PluginAdmin, metrics *middleware.Metrics, instances []plugin.Instance, webifs WebIfRegistrar) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	SetupRoutes(engine, admin, metrics)
	MountPluginWebInterfaces(engine, instances, webifs)
	return engine
}

// adminOptionsFromConfig 从配置读取控制器参数
func (hs *HTTPServer) adminOptionsFromConfig() AdminOptions {
	return AdminOptions{
		Registry:        hs.registry,
		WebIfs:          hs.webifs,
		BaseDir:         common.GetConfig("host", "base_dir"),
		DefaultLanguage: common.GetConfig("host", "default_language"),
		URLRoot:         common.GetConfig("server", "url_root"),
		MaxBodyBytes:    int64(common.GetConfigInt("server", "max_body_bytes", 1<<20)),
		Metrics:         hs.metrics,
	}
}

// IsRunning 检查HTTP服务器是否运行
func (hs *HTTPServer) IsRunning() bool {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	return hs.running
}

// Addr 实际监听地址，未运行时为空
func (hs *HTTPServer) Addr() string {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	if hs.listener == nil {
		return ""
	}
	return hs.listener.Addr().String()
}

// Start 启动HTTP服务器
// 监听失败时直接返回错误，服务过程中的错误写入日志
func (hs *HTTPServer) Start() error {
	hs.mu.Lock()
	defer hs.mu.Unlock()

	if hs.running {
		hs.logger.Info("HTTP服务器已经在运行中")
		return nil
	}

	if mode := common.GetConfig("server", "gin_mode"); mode != "" {
		gin.SetMode(mode)
	}
	middleware.GetJWTManager().ReloadConfig()

	admin := NewPluginAdmin(hs.adminOptionsFromConfig())
	engine := NewEngine(admin, hs.metrics, hs.registry.ReturnPlugins(), hs.webifs)
	if staticDir := common.GetConfig("server", "static_dir"); SetupStaticRoutes(engine, staticDir) {
		hs.logger.Info("管理界面静态文件目录: %s", staticDir)
	}

	ipAddr := common.GetConfig("server", "ip_addr")
	if ipAddr == "" {
		ipAddr = "0.0.0.0"
	}
	port := common.GetConfig("server", "port")
	if port == "" {
		port = "8383"
	}
	addr := net.JoinHostPort(ipAddr, port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return oops.With("addr", addr).Wrapf(err, "监听端口失败")
	}

	server := &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	middleware.GetJWTManager().StartCleanup(ctx, time.Hour)

	hs.server = server
	hs.listener = listener
	hs.cancel = cancel
	hs.running = true

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			hs.logger.LogError("API服务器运行失败", err)
		}
	}()

	hs.logger.Info("API服务器启动成功，监听地址: %s", listener.Addr().String())
	return nil
}

// Stop 停止HTTP服务器，等待进行中的请求完成
func (hs *HTTPServer) Stop(ctx context.Context) error {
	hs.mu.Lock()
	if !hs.running {
		hs.mu.Unlock()
		return nil
	}
	server := hs.server
	cancel := hs.cancel
	hs.running = false
	hs.server = nil
	hs.listener = nil
	hs.cancel = nil
	hs.mu.Unlock()

	cancel()
	if err := server.Shutdown(ctx); err != nil {
		return oops.Wrapf(err, "停止HTTP服务器失败")
	}
	hs.logger.Info("API服务器已停止")
	return nil
}
