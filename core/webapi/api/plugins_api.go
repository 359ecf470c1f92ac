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
// core/webapi/api/plugins_api.go
// 已安装插件列表和插件配置总览

package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"HomeAdmin/core/plugin"
	"HomeAdmin/core/pluginconf"

	"github.com/Masterminds/semver/v3"
	"github.com/gin-gonic/gin"
)

// versionDirPrefix 插件版本子目录的前缀
const versionDirPrefix = "_pv_"

// InstalledPlugin 已安装插件的描述信息
// 字段取自描述文件plugin段，缺失时为空字符串
type InstalledPlugin struct {
	Type          interface{} `json:"type"`
	Description   interface{} `json:"description"`
	Version       interface{} `json:"version"`
	Documentation interface{} `json:"documentation"`
	MultiInstance interface{} `json:"multi_instance"`
}

// PluginsCatalogHandler 插件类型列表 {插件名: 类型}
// GET /api/plugins
func (a *PluginAdmin) PluginsCatalogHandler(c *gin.Context) {
	catalog, _ := a.scanPlugins()
	c.JSON(http.StatusOK, catalog)
}

// PluginsInstalledHandler 已安装插件的描述、版本和文档信息
// GET /api/plugins/installed
func (a *PluginAdmin) PluginsInstalledHandler(c *gin.Context) {
	_, installed := a.scanPlugins()
	c.JSON(http.StatusOK, installed)
}

// scanPlugins 扫描插件目录
// 结果在首次得到非空列表后缓存，之后不再重新扫描
func (a *PluginAdmin) scanPlugins() (map[string]interface{}, map[string]InstalledPlugin) {
	a.catalogMu.Lock()
	defer a.catalogMu.Unlock()

	if len(a.catalog) > 0 {
		return a.catalog, a.installed
	}

	catalog := make(map[string]interface{})
	installed := make(map[string]InstalledPlugin)

	entries, err := os.ReadDir(a.pluginsDir)
	if err != nil {
		a.logger.Warn("读取插件目录失败: %v", err)
		return catalog, installed
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}

		descriptor := filepath.Join(a.pluginsDir, name, plugin.DescriptorFile)
		if info, err := os.Stat(descriptor); err != nil || info.IsDir() {
			a.logger.Debug("插件 %s 没有描述文件", name)
			continue
		}

		meta, err := plugin.ReadMetadata(name, descriptor)
		if err != nil {
			a.logger.LogError("读取插件描述文件失败", err)
			continue
		}
		plg, ok := meta.Meta()["plugin"].(map[string]interface{})
		if !ok {
			a.logger.Info("插件 %s 的描述文件没有plugin段", name)
			continue
		}

		catalog[name] = valueOrEmpty(plg, "type")
		installed[name] = InstalledPlugin{
			Type:          valueOrEmpty(plg, "type"),
			Description:   localizedDescription(plg["description"], a.defaultLanguage),
			Version:       valueOrEmpty(plg, "version"),
			Documentation: valueOrEmpty(plg, "documentation"),
			MultiInstance: valueOrEmpty(plg, "multi_instance"),
		}
	}

	if len(catalog) > 0 {
		a.catalog = catalog
		a.installed = installed
	}
	return catalog, installed
}

func valueOrEmpty(m map[string]interface{}, key string) interface{} {
	if value, ok := m[key]; ok && value != nil {
		return value
	}
	return ""
}

// localizedDescription 取默认语言的描述
func localizedDescription(desc interface{}, lang string) interface{} {
	switch d := desc.(type) {
	case map[string]interface{}:
		if value, ok := d[lang]; ok && value != nil {
			return value
		}
	case string:
		return d
	}
	return ""
}

// PluginsConfigHandler 全部配置段及对应插件的元数据
// GET /api/plugins/config
func (a *PluginAdmin) PluginsConfigHandler(c *gin.Context) {
	readonly, err := a.store.CheckReadonly()
	if err != nil {
		a.abortWithStoreError(c, "检查插件配置失败", err)
		return
	}

	sections, err := a.store.Load()
	if err != nil {
		a.abortWithStoreError(c, "读取插件配置失败", err)
		return
	}

	config := pluginconf.NewSections()
	for _, name := range sections.Keys() {
		value, _ := sections.Get(name)
		conf := copySection(value)

		if instance := a.registry.ReturnPlugin(name); instance != nil {
			meta := instance.Metadata()
			if meta != nil {
				conf["_meta"] = meta.Meta()
			}
			if desc, ok := descriptionValue(meta); ok {
				conf["_description"] = desc
			} else {
				a.logger.Warn("配置段 %s: 插件实例 %s 没有可用的描述信息", name, instance.ShortName())
			}
		} else {
			_, meta := a.resolveMetadata(name, conf)
			conf["_meta"] = meta.Meta()
			if desc, ok := descriptionValue(meta); ok {
				conf["_description"] = desc
			} else {
				conf["_description"] = map[string]interface{}{"de": "", "en": ""}
			}
		}
		config.Set(name, conf)
	}

	c.JSON(http.StatusOK, gin.H{
		"readonly":      readonly,
		"plugin_config": config,
	})
}

// copySection 复制配置段，非映射的配置段视为空
func copySection(value interface{}) map[string]interface{} {
	out := make(map[string]interface{})
	if m, ok := value.(map[string]interface{}); ok {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

func descriptionValue(meta *plugin.Metadata) (interface{}, bool) {
	if meta == nil || meta.Meta() == nil {
		return nil, false
	}
	return meta.Get("description")
}

// resolveMetadata 为未加载的插件查找描述文件
// 优先使用 plugin_name，其次使用 class_path
// plugin_version 对应插件目录下的 _pv_<版本> 子目录
// 返回值:
//   - string: 插件名，带版本时包含 ._pv_ 后缀
//   - *plugin.Metadata: 元数据，找不到描述文件时为空元数据
func (a *PluginAdmin) resolveMetadata(section string, conf map[string]interface{}) (string, *plugin.Metadata) {
	pluginName := strings.ToLower(stringValue(conf["plugin_name"]))
	pluginVersion := strings.ToLower(stringValue(conf["plugin_version"]))

	if pluginName != "" {
		pluginDir := filepath.Join(a.pluginsDir, dottedPath(pluginName))
		versionSuffix := a.versionSuffix(section, pluginDir, pluginVersion)
		rel := dottedPath(pluginName + versionSuffix)
		return pluginName + versionSuffix, plugin.LoadMetadata(pluginName, filepath.Join(a.pluginsDir, rel))
	}

	classPath := stringValue(conf["class_path"])
	if classPath != "" {
		parts := strings.Split(classPath, ".")
		pluginName = strings.ToLower(parts[len(parts)-1])
		if strings.HasPrefix(pluginName, "_pv") && len(parts) > 1 {
			pluginName = strings.ToLower(parts[len(parts)-2])
		}
		a.logger.Debug("配置段 %s: 插件名 '%s'，class_path '%s'", section, pluginName, classPath)
		classDir := filepath.Join(a.baseDir, dottedPath(classPath))
		versionSuffix := a.versionSuffix(section, classDir, pluginVersion)
		rel := dottedPath(classPath + versionSuffix)
		return pluginName + versionSuffix, plugin.LoadMetadata(pluginName, filepath.Join(a.baseDir, rel))
	}

	a.logger.Error("配置段 %s: 既没有定义 plugin_name 也没有定义 class_path", section)
	return a.versionSuffix(section, "", pluginVersion), plugin.EmptyMetadata("")
}

// versionSuffix 计算版本子目录的后缀 ._pv_<版本>
// 字面目录没有描述文件时，在插件目录中查找语义版本相同的 _pv_ 目录，如 1.8 对应 _pv_1_8_0
func (a *PluginAdmin) versionSuffix(section, pluginDir, pluginVersion string) string {
	if pluginVersion == "" {
		return ""
	}
	dirName := versionDirPrefix + strings.ReplaceAll(pluginVersion, ".", "_")
	suffix := "." + dirName

	want, err := semver.NewVersion(pluginVersion)
	if err != nil {
		a.logger.Warn("配置段 %s: plugin_version '%s' 不是有效的版本号", section, pluginVersion)
		return suffix
	}
	if pluginDir == "" {
		return suffix
	}
	if _, err := os.Stat(filepath.Join(pluginDir, dirName, plugin.DescriptorFile)); err == nil {
		return suffix
	}

	entries, err := os.ReadDir(pluginDir)
	if err != nil {
		return suffix
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || !strings.HasPrefix(name, versionDirPrefix) {
			continue
		}
		dirVersion := strings.ReplaceAll(strings.TrimPrefix(name, versionDirPrefix), "_", ".")
		if v, err := semver.NewVersion(dirVersion); err == nil && v.Equal(want) {
			a.logger.Debug("配置段 %s: 版本 %s 使用目录 %s", section, pluginVersion, name)
			return "." + name
		}
	}
	return suffix
}

// dottedPath 将点分路径转换为目录路径
func dottedPath(dotted string) string {
	return filepath.FromSlash(strings.ReplaceAll(dotted, ".", "/"))
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
