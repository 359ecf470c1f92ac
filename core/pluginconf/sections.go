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
// core/pluginconf/sections.go

package pluginconf

import (
	"bytes"
	"encoding/json"
)

// Sections 插件配置段，保持文件中的顺序
type Sections struct {
	keys   []string
	values map[string]interface{}
}

// NewSections 创建空的配置段集合
func NewSections() *Sections {
	return &Sections{values: make(map[string]interface{})}
}

// Set 设置配置段，新配置段追加到末尾
func (s *Sections) Set(name string, value interface{}) {
	if _, exists := s.values[name]; !exists {
		s.keys = append(s.keys, name)
	}
	s.values[name] = value
}

// Get 获取配置段
func (s *Sections) Get(name string) (interface{}, bool) {
	value, ok := s.values[name]
	return value, ok
}

// Has 配置段是否存在
func (s *Sections) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Keys 配置段名称，按文件顺序
func (s *Sections) Keys() []string {
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	return keys
}

// Len 配置段数量
func (s *Sections) Len() int {
	return len(s.keys)
}

// Map 配置段的普通映射形式
func (s *Sections) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// MarshalJSON 按文件顺序输出配置段
func (s *Sections) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range s.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
