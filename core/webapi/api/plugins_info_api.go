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
// core/webapi/api/plugins_info_api.go
// 已加载插件实例的运行状态

package api

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"HomeAdmin/core/plugin"

	"github.com/gin-gonic/gin"
)

// ParameterInfo 插件参数
type ParameterInfo struct {
	Name    string      `json:"name"`
	Type    string      `json:"type"`
	Value   string      `json:"value"`
	Default interface{} `json:"default"`
}

// AttributeInfo 插件定义的数据项属性
type AttributeInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// PluginRuntimeInfo 插件实例运行信息
type PluginRuntimeInfo struct {
	PluginName    string            `json:"pluginname"`
	ConfigName    string            `json:"configname"`
	Version       string            `json:"version"`
	SmartPlugin   bool              `json:"smartplugin"`
	MultiInstance bool              `json:"multiinstance"`
	InstanceName  string            `json:"instancename"`
	WebIfURL      string            `json:"webif_url"`
	Parameters    []ParameterInfo   `json:"parameters"`
	Attributes    []AttributeInfo   `json:"attributes"`
	Metadata      map[string]string `json:"metadata"`
	Triggers      string            `json:"triggers"`
	Stopped       bool              `json:"stopped"`
	Stoppable     bool              `json:"stoppable"`
}

// PluginsInfoHandler 所有插件实例的运行信息，按插件名+实例名排序
// GET /api/plugins/info
func (a *PluginAdmin) PluginsInfoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, a.collectRuntimeInfo())
}

func (a *PluginAdmin) collectRuntimeInfo() []PluginRuntimeInfo {
	instances := a.registry.ReturnPlugins()
	infos := make([]PluginRuntimeInfo, 0, len(instances))

	for _, x := range instances {
		meta := x.Metadata()
		if meta == nil {
			meta = plugin.EmptyMetadata(x.ShortName())
		}

		info := PluginRuntimeInfo{
			Parameters: []ParameterInfo{},
			Attributes: []AttributeInfo{},
			Metadata:   make(map[string]string),
			Triggers:   formatItemList(x.ItemList()),
		}

		if sp, ok := x.(plugin.SmartPlugin); ok {
			info.PluginName = sp.ShortName()
			info.ConfigName = sp.ConfigName()
			info.Version = sp.Version()
			info.SmartPlugin = true
			info.MultiInstance = sp.MultiInstanceCapable()
			info.InstanceName = sp.InstanceName()
			info.WebIfURL = a.webifURL(sp.ShortName(), info.InstanceName)
			info.Parameters = parameterInfos(meta, sp.Parameters())
			for _, name := range meta.ItemDefinitionList() {
				info.Attributes = append(info.Attributes, AttributeInfo{
					Name: name,
					Type: meta.ItemDefinitionTypeWithSubtype(name),
				})
			}
		} else {
			info.PluginName = x.ShortName()
			info.ConfigName = x.ConfigName()
		}
		info.Metadata["classpath"] = x.ClassPath()
		info.Metadata["classname"] = x.ClassName()

		info.Metadata["type"] = meta.GetString("type")
		info.Metadata["description"] = meta.GetMLString("description", a.defaultLanguage)
		info.Metadata["description_long"] = meta.GetMLString("description_long", a.defaultLanguage)
		for _, key := range []string{"keywords", "documentation", "support", "maintainer", "tester"} {
			info.Metadata[key] = meta.GetString(key)
		}

		if alive, ok := x.(plugin.Aliveness); ok {
			info.Stopped = !alive.Alive()
			info.Stoppable = true
		}
		if info.PluginName == plugin.BackendName {
			info.Stoppable = false
		}

		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		return infos[i].PluginName+infos[i].InstanceName < infos[j].PluginName+infos[j].InstanceName
	})
	return infos
}

// webifURL 按实例名查找插件的Web界面地址
func (a *PluginAdmin) webifURL(shortName, instance string) string {
	url := ""
	for _, webif := range a.webifs.GetWebifsForPlugin(shortName) {
		if webif.Instance == instance {
			url = a.urlRoot + webif.Mount
		}
	}
	return url
}

// parameterInfos 按描述文件中的顺序列出参数，未配置的参数值为空
func parameterInfos(meta *plugin.Metadata, values map[string]interface{}) []ParameterInfo {
	params := []ParameterInfo{}
	if len(values) == 0 {
		return params
	}
	for _, name := range meta.ParameterList() {
		value := ""
		if v, ok := values[name]; ok && v != nil {
			value = fmt.Sprint(v)
		}
		params = append(params, ParameterInfo{
			Name:    name,
			Type:    meta.ParameterTypeWithSubtype(name),
			Value:   value,
			Default: meta.ParameterDefault(name),
		})
	}
	return params
}

// formatItemList 触发插件的数据项列表，格式如 ['a.b', 'c']
func formatItemList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = "'" + item + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
