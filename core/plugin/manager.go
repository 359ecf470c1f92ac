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
// core/plugin/manager.go

package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"HomeAdmin/core/common"

	"github.com/samber/oops"
)

// PluginManager 插件实例注册表
// 保存宿主程序已加载的插件实例，按配置段名称索引
type PluginManager struct {
	mu           sync.RWMutex        // 读写锁，保证并发安全
	instances    []Instance          // 按注册顺序保存的实例
	byConfig     map[string]Instance // 配置段名称到实例的映射
	confFilename string              // 插件配置文件路径
	logger       *common.Logger      // 日志记录器
}

// pluginManager 全局插件管理器实例
var pluginManager *PluginManager

// once 用于确保全局插件管理器只初始化一次
var once sync.Once

// GetPluginManager 获取全局插件管理器实例
// 返回值：
//   - *PluginManager: 插件管理器实例
func GetPluginManager() *PluginManager {
	once.Do(func() {
		pluginManager = NewPluginManager("")
	})
	return pluginManager
}

// NewPluginManager 创建插件管理器
// 参数：
//   - confFilename: 插件配置文件路径
func NewPluginManager(confFilename string) *PluginManager {
	return &PluginManager{
		byConfig:     make(map[string]Instance),
		confFilename: confFilename,
		logger:       common.NewLogger().With("component", "plugins"),
	}
}

// SetConfFilename 设置插件配置文件路径
func (pm *PluginManager) SetConfFilename(filename string) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.confFilename = filename
}

// ConfFilename 实际使用的插件配置文件路径
// 同名 .yaml 文件存在时使用 .yaml，否则存在 .conf 时使用旧格式文件
func (pm *PluginManager) ConfFilename() string {
	pm.mu.RLock()
	filename := pm.confFilename
	pm.mu.RUnlock()

	if filename == "" {
		return ""
	}
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	for _, candidate := range []string{base + ".yaml", base + ".conf"} {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
	}
	return filename
}

// RegisterPlugin 注册插件实例
// 参数：
//   - instance: 要注册的插件实例
//
// 返回值：
//   - error: 实例为空、配置段名称为空或已注册时返回错误
func (pm *PluginManager) RegisterPlugin(instance Instance) error {
	if instance == nil {
		return oops.Errorf("插件不能为空")
	}
	name := instance.ConfigName()
	if name == "" {
		return oops.With("plugin", instance.ShortName()).Errorf("插件配置段名称不能为空")
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if _, exists := pm.byConfig[name]; exists {
		return oops.With("section", name).Errorf("插件 %s 已注册", name)
	}

	pm.byConfig[name] = instance
	pm.instances = append(pm.instances, instance)
	pm.logger.Info("插件注册成功: %s (%s)", name, instance.ShortName())
	return nil
}

// ReturnPlugin 按配置段名称获取插件实例
// 返回值：
//   - Instance: 插件实例，未加载时为nil
func (pm *PluginManager) ReturnPlugin(configName string) Instance {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.byConfig[configName]
}

// ReturnPlugins 获取所有插件实例，按注册顺序
func (pm *PluginManager) ReturnPlugins() []Instance {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	instances := make([]Instance, len(pm.instances))
	copy(instances, pm.instances)
	return instances
}

// InitializePlugins 初始化所有实现了Lifecycle的插件
// 返回值：
//   - error: 如果任何插件初始化失败，返回错误
func (pm *PluginManager) InitializePlugins() error {
	var initErrors []error
	for _, instance := range pm.ReturnPlugins() {
		lc, ok := instance.(Lifecycle)
		if !ok {
			continue
		}
		name := instance.ConfigName()
		if err := lc.Initialize(); err != nil {
			pm.logger.Error("插件 %s 初始化失败: %v", name, err)
			initErrors = append(initErrors, oops.With("section", name).Wrap(err))
			continue
		}
		pm.logger.Info("插件 %s 初始化成功", name)
	}

	if len(initErrors) > 0 {
		return errors.Join(initErrors...)
	}
	return nil
}

// ShutdownPlugins 关闭所有实现了Lifecycle的插件，按注册的逆序
// 返回值：
//   - error: 如果任何插件关闭失败，返回错误
func (pm *PluginManager) ShutdownPlugins() error {
	instances := pm.ReturnPlugins()

	var shutdownErrors []error
	for i := len(instances) - 1; i >= 0; i-- {
		lc, ok := instances[i].(Lifecycle)
		if !ok {
			continue
		}
		name := instances[i].ConfigName()
		if err := lc.Shutdown(); err != nil {
			pm.logger.Error("插件 %s 关闭失败: %v", name, err)
			shutdownErrors = append(shutdownErrors, oops.With("section", name).Wrap(err))
			continue
		}
		pm.logger.Info("插件 %s 已关闭", name)
	}

	if len(shutdownErrors) > 0 {
		return errors.Join(shutdownErrors...)
	}
	return nil
}
