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
// core/plugin/plugin.go

package plugin

import (
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

// Instance 已加载的插件实例
// 所有插件都具备名称、类路径和元数据
type Instance interface {
	// ShortName 插件短名称，即plugins目录下的目录名
	ShortName() string
	// ConfigName 插件配置文件中的配置段名称
	ConfigName() string
	// ClassPath 插件类路径 (如: plugins.knx)
	ClassPath() string
	// ClassName 插件类名
	ClassName() string
	// Metadata 插件描述文件(plugin.yaml)的元数据
	Metadata() *Metadata
	// ItemList 触发该插件更新的数据项列表
	ItemList() []string
}

// SmartPlugin 由框架管理的插件
// 除基本信息外还提供版本、实例名和参数值
type SmartPlugin interface {
	Instance
	// Version 插件版本号
	Version() string
	// MultiInstanceCapable 是否支持多实例
	MultiInstanceCapable() bool
	// InstanceName 实例名称，单实例插件为空
	InstanceName() string
	// Parameters 当前参数值，键为参数名
	Parameters() map[string]interface{}
}

// Aliveness 可报告运行状态的插件
// 未实现此接口的插件既不会被视为停止，也不可停止
type Aliveness interface {
	Alive() bool
}

// Lifecycle 需要初始化和关闭的插件
type Lifecycle interface {
	// Initialize 初始化插件
	// 返回值: 初始化错误信息，nil表示成功
	Initialize() error
	// Shutdown 关闭插件，释放资源
	// 返回值: 关闭错误信息，nil表示成功
	Shutdown() error
}

// WebInterfaceProvider 提供Web界面的插件
// 路由挂载在 /plugins/<短名称>/<实例名>/ 下
type WebInterfaceProvider interface {
	Routes() []RouteDefinition
}

// RouteDefinition HTTP路由定义结构体
// 定义插件Web界面提供的端点信息
type RouteDefinition struct {
	// Method HTTP请求方法 (GET, POST, PUT, DELETE, PATCH等)
	Method string
	// Path 相对于挂载点的路由路径 (如: /status)
	Path string
	// Handler GIN请求处理函数
	Handler gin.HandlerFunc
	// Description 路由功能描述
	Description string
	// AuthRequired 是否需要认证
	// true: 需要JWT认证才能访问
	// false: 公开访问
	AuthRequired bool
	// Middlewares 中间件列表
	// 按顺序执行的中间件函数
	Middlewares []gin.HandlerFunc
}

// BasePlugin SmartPlugin的基础实现
// 名称、版本和多实例能力取自元数据
type BasePlugin struct {
	configName   string
	classPath    string
	instanceName string
	className    string
	metadata     *Metadata
	parameters   map[string]interface{}
	items        []string
	alive        atomic.Bool
}

var (
	_ SmartPlugin = (*BasePlugin)(nil)
	_ Aliveness   = (*BasePlugin)(nil)
)

// NewBasePlugin 创建基础插件实例
// 参数:
//   - configName: 配置段名称
//   - metadata: 插件元数据，为nil时使用空元数据
//   - parameters: 参数值
//
// 返回值:
//   - *BasePlugin: 插件实例
func NewBasePlugin(configName string, metadata *Metadata, parameters map[string]interface{}) *BasePlugin {
	if metadata == nil {
		metadata = EmptyMetadata(configName)
	}
	if parameters == nil {
		parameters = make(map[string]interface{})
	}
	return &BasePlugin{
		configName: configName,
		classPath:  "plugins." + metadata.Name(),
		className:  metadata.GetString("classname"),
		metadata:   metadata,
		parameters: parameters,
	}
}

// ShortName 插件短名称
func (p *BasePlugin) ShortName() string { return p.metadata.Name() }

// ConfigName 配置段名称
func (p *BasePlugin) ConfigName() string { return p.configName }

// ClassPath 插件类路径
func (p *BasePlugin) ClassPath() string { return p.classPath }

// SetClassPath 设置插件类路径
func (p *BasePlugin) SetClassPath(classPath string) { p.classPath = classPath }

// ClassName 插件类名
func (p *BasePlugin) ClassName() string { return p.className }

// SetClassName 设置插件类名
func (p *BasePlugin) SetClassName(name string) { p.className = name }

// Metadata 插件元数据
func (p *BasePlugin) Metadata() *Metadata { return p.metadata }

// ItemList 触发该插件更新的数据项
func (p *BasePlugin) ItemList() []string { return p.items }

// SetItemList 设置触发该插件更新的数据项
func (p *BasePlugin) SetItemList(items []string) { p.items = items }

// Version 插件版本号
func (p *BasePlugin) Version() string { return p.metadata.GetString("version") }

// MultiInstanceCapable 是否支持多实例
func (p *BasePlugin) MultiInstanceCapable() bool { return p.metadata.GetBool("multi_instance") }

// InstanceName 实例名称
func (p *BasePlugin) InstanceName() string { return p.instanceName }

// SetInstanceName 设置实例名称
func (p *BasePlugin) SetInstanceName(name string) { p.instanceName = name }

// Parameters 当前参数值
func (p *BasePlugin) Parameters() map[string]interface{} { return p.parameters }

// Alive 插件是否在运行
func (p *BasePlugin) Alive() bool { return p.alive.Load() }

// SetAlive 设置运行状态
func (p *BasePlugin) SetAlive(alive bool) { p.alive.Store(alive) }
