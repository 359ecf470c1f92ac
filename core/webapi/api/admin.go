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
// core/webapi/api/admin.go

package api

import (
	"path/filepath"
	"sync"

	"HomeAdmin/core/common"
	"HomeAdmin/core/plugin"
	"HomeAdmin/core/pluginconf"
	"HomeAdmin/core/webapi/middleware"
)

// PluginRegistry 已加载插件实例的查询接口
type PluginRegistry interface {
	pluginconf.FilenameSource
	ReturnPlugin(configName string) plugin.Instance
	ReturnPlugins() []plugin.Instance
}

// WebIfLookup 插件Web界面挂载查询接口
type WebIfLookup interface {
	GetWebifsForPlugin(shortName string) []plugin.WebInterface
}

// AdminOptions 插件管理接口的依赖
type AdminOptions struct {
	Registry        PluginRegistry
	WebIfs          WebIfLookup
	BaseDir         string // 主程序目录，插件位于 BaseDir/plugins
	DefaultLanguage string
	URLRoot         string // 管理界面URL前缀，拼接在webif挂载路径前
	MaxBodyBytes    int64
	Metrics         *middleware.Metrics
}

// PluginAdmin 插件管理接口控制器
type PluginAdmin struct {
	store           *pluginconf.Store
	registry        PluginRegistry
	webifs          WebIfLookup
	baseDir         string
	pluginsDir      string
	defaultLanguage string
	urlRoot         string
	maxBodyBytes    int64
	metrics         *middleware.Metrics
	logger          *common.Logger

	// 插件目录扫描结果，首次请求时填充，之后不再刷新
	catalogMu sync.Mutex
	catalog   map[string]interface{}
	installed map[string]InstalledPlugin
}

// NewPluginAdmin 创建插件管理接口控制器
func NewPluginAdmin(opts AdminOptions) *PluginAdmin {
	if opts.Registry == nil {
		opts.Registry = plugin.GetPluginManager()
	}
	if opts.WebIfs == nil {
		opts.WebIfs = plugin.NewWebIfRegistry()
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "de"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	return &PluginAdmin{
		store:           pluginconf.NewStore(opts.Registry),
		registry:        opts.Registry,
		webifs:          opts.WebIfs,
		baseDir:         opts.BaseDir,
		pluginsDir:      filepath.Join(opts.BaseDir, "plugins"),
		defaultLanguage: opts.DefaultLanguage,
		urlRoot:         opts.URLRoot,
		maxBodyBytes:    opts.MaxBodyBytes,
		metrics:         opts.Metrics,
		logger:          common.NewLogger().With("component", "admin"),
	}
}

// Store 插件配置存储
func (a *PluginAdmin) Store() *pluginconf.Store {
	return a.store
}
