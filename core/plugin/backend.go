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
// core/plugin/backend.go
// 宿主程序自身的backend插件

package plugin

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// BackendName backend插件的短名称和配置段名称
const BackendName = "backend"

// backendDescriptor backend插件的描述文件
const backendDescriptor = `plugin:
    type: system
    description:
        de: 'Administrationsoberfläche für Plugins'
        en: 'Administration interface for plugins'
    description_long:
        de: 'Stellt die REST-Schnittstelle der Plugin-Administration bereit'
        en: 'Provides the REST interface of the plugin administration'
    keywords: admin backend
    maintainer: HomeAdmin
    version: 1.0.0
    multi_instance: false
    classname: BackendServer

parameters:
    url_root:
        type: str
        default: ''
        description:
            de: 'URL-Präfix der Administrationsoberfläche'
            en: 'URL prefix of the admin interface'

item_attributes: NONE
`

// BackendPlugin backend插件，提供宿主程序的状态页面
type BackendPlugin struct {
	*BasePlugin
	manager *PluginManager
	started time.Time
}

var (
	_ Lifecycle            = (*BackendPlugin)(nil)
	_ WebInterfaceProvider = (*BackendPlugin)(nil)
)

// NewBackendPlugin 创建backend插件
// 参数:
//   - manager: 插件注册表，用于状态页面统计
//   - urlRoot: 管理界面URL前缀
func NewBackendPlugin(manager *PluginManager, urlRoot string) *BackendPlugin {
	meta, err := ParseMetadata(BackendName, "", []byte(backendDescriptor))
	if err != nil {
		meta = EmptyMetadata(BackendName)
	}

	base := NewBasePlugin(BackendName, meta, map[string]interface{}{"url_root": urlRoot})
	base.SetClassPath("plugins." + BackendName)
	return &BackendPlugin{
		BasePlugin: base,
		manager:    manager,
	}
}

// Initialize 标记为运行中
func (p *BackendPlugin) Initialize() error {
	p.started = time.Now()
	p.SetAlive(true)
	return nil
}

// Shutdown 标记为已停止
func (p *BackendPlugin) Shutdown() error {
	p.SetAlive(false)
	return nil
}

// Routes backend插件的Web界面
func (p *BackendPlugin) Routes() []RouteDefinition {
	return []RouteDefinition{
		{
			Method:      http.MethodGet,
			Path:        "/status",
			Handler:     p.statusHandler,
			Description: "宿主程序运行状态",
		},
	}
}

func (p *BackendPlugin) statusHandler(c *gin.Context) {
	uptime := time.Duration(0)
	if !p.started.IsZero() {
		uptime = time.Since(p.started).Truncate(time.Second)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"version": p.Version(),
			"alive":   p.Alive(),
			"uptime":  uptime.String(),
			"plugins": len(p.manager.ReturnPlugins()),
		},
	})
}
