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
// core/webapi/api/setuproute.go

package api

import (
	"strings"

	"HomeAdmin/core/common"
	"HomeAdmin/core/plugin"
	"HomeAdmin/core/webapi/middleware"

	"github.com/gin-gonic/gin"
)

// SetupRoutes 设置API路由
// 读取接口无需认证，修改插件配置和查看变更记录需要登录
func SetupRoutes(engine *gin.Engine, admin *PluginAdmin, metrics *middleware.Metrics) {
	engine.Use(middleware.RequestIDMiddleware(), middleware.LoggerMiddleware())
	if metrics != nil {
		engine.Use(metrics.Middleware())
		engine.GET("/metrics", metrics.Handler())
	}

	apiGroup := engine.Group("/api",
		middleware.RateLimitMiddleware(),
		middleware.TimeoutMiddlewareWithPathGin(),
		middleware.BodyLimitMiddleware(admin.maxBodyBytes),
	)

	apiGroup.GET("/health", admin.HealthCheckHandler)

	// 认证
	apiGroup.POST("/login", LoginHandler)
	apiGroup.POST("/refresh-token", RefreshTokenHandler)
	apiGroup.POST("/logout", LogoutHandler)
	apiGroup.GET("/user", middleware.AuthMiddlewareGin(), CurrentUserHandler)
	apiGroup.PUT("/user/password", middleware.AuthMiddlewareGin(), ChangePasswordHandler)

	// 应用配置
	apiGroup.GET("/config", middleware.AuthMiddlewareGin(), GetConfigHandler)
	apiGroup.POST("/config/reload", middleware.AuthMiddlewareGin(), ReloadConfigHandler)

	// 单个插件配置段
	apiGroup.GET("/plugin", admin.PluginIndexHandler)
	apiGroup.GET("/plugin/:section", admin.PluginIndexHandler)
	apiGroup.POST("/plugin/:section", middleware.AuthMiddlewareGin(), admin.PluginAddHandler)
	apiGroup.PUT("/plugin/:section", middleware.AuthMiddlewareGin(), admin.PluginUpdateHandler)
	apiGroup.GET("/plugin/:section/history", middleware.AuthMiddlewareGin(), admin.PluginHistoryHandler)

	// 插件列表和运行信息
	apiGroup.GET("/plugins", admin.PluginsCatalogHandler)
	apiGroup.GET("/plugins/installed", admin.PluginsInstalledHandler)
	apiGroup.GET("/plugins/config", admin.PluginsConfigHandler)
	apiGroup.GET("/plugins/info", admin.PluginsInfoHandler)
}

// WebIfRegistrar 记录插件Web界面挂载
type WebIfRegistrar interface {
	Register(shortName, instance, mount string) plugin.WebInterface
}

// MountPluginWebInterfaces 挂载提供Web界面的插件路由
// 每个插件实例挂载在 /plugins/<短名称>/[<实例名>/] 下并记录到挂载表
func MountPluginWebInterfaces(engine *gin.Engine, instances []plugin.Instance, webifs WebIfRegistrar) {
	logger := common.NewLogger().With("component", "webif")

	for _, instance := range instances {
		provider, ok := instance.(plugin.WebInterfaceProvider)
		if !ok {
			continue
		}

		instanceName := ""
		if sp, ok := instance.(plugin.SmartPlugin); ok {
			instanceName = sp.InstanceName()
		}
		mount := plugin.MountPath(instance.ShortName(), instanceName)
		group := engine.Group(strings.TrimSuffix(mount, "/"))

		for _, route := range provider.Routes() {
			handlers := make([]gin.HandlerFunc, 0, len(route.Middlewares)+2)
			if route.AuthRequired {
				handlers = append(handlers, middleware.AuthMiddlewareGin())
			}
			handlers = append(handlers, route.Middlewares...)
			handlers = append(handlers, route.Handler)
			group.Handle(strings.ToUpper(route.Method), route.Path, handlers...)
			logger.Debug("插件路由: %s %s%s", route.Method, strings.TrimSuffix(mount, "/"), route.Path)
		}

		webifs.Register(instance.ShortName(), instanceName, mount)
		logger.Info("插件Web界面已挂载: %s -> %s", instance.ConfigName(), mount)
	}
}
