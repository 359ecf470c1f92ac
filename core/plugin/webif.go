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
// core/plugin/webif.go

package plugin

import (
	"sort"
	"strings"
	"sync"
)

// WebInterface 已挂载的插件Web界面
type WebInterface struct {
	Plugin   string `json:"Plugin"`   // 插件短名称
	Instance string `json:"Instance"` // 实例名称，单实例插件为空
	Mount    string `json:"Mount"`    // 挂载路径，如 /plugins/knx/
}

// WebIfRegistry 插件Web界面挂载表
type WebIfRegistry struct {
	mu     sync.RWMutex
	webifs map[string][]WebInterface
}

// NewWebIfRegistry 创建Web界面挂载表
func NewWebIfRegistry() *WebIfRegistry {
	return &WebIfRegistry{webifs: make(map[string][]WebInterface)}
}

// MountPath 计算插件Web界面的挂载路径
// 单实例插件为 /plugins/<短名称>/，多实例为 /plugins/<短名称>/<实例名>/
func MountPath(shortName, instance string) string {
	parts := []string{"", "plugins", strings.ToLower(shortName)}
	if instance != "" {
		parts = append(parts, instance)
	}
	return strings.Join(parts, "/") + "/"
}

// Register 记录一个挂载
func (r *WebIfRegistry) Register(shortName, instance, mount string) WebInterface {
	webif := WebInterface{Plugin: shortName, Instance: instance, Mount: mount}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.webifs[shortName] = append(r.webifs[shortName], webif)
	return webif
}

// GetWebifsForPlugin 获取插件的所有Web界面
func (r *WebIfRegistry) GetWebifsForPlugin(shortName string) []WebInterface {
	r.mu.RLock()
	defer r.mu.RUnlock()

	webifs := make([]WebInterface, len(r.webifs[shortName]))
	copy(webifs, r.webifs[shortName])
	return webifs
}

// All 获取所有挂载，按挂载路径排序
func (r *WebIfRegistry) All() []WebInterface {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []WebInterface
	for _, webifs := range r.webifs {
		all = append(all, webifs...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Mount < all[j].Mount })
	return all
}
