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
// core/plugin/metadata.go
// 插件描述文件(plugin.yaml)读取

package plugin

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"HomeAdmin/core/common"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// DescriptorFile 插件描述文件名
const DescriptorFile = "plugin.yaml"

// 描述文件中的顶层段
const (
	sectionPlugin         = "plugin"
	sectionParameters     = "parameters"
	sectionItemAttributes = "item_attributes"
)

// TypeAny 不限类型，描述文件未声明类型时使用
const TypeAny = "foo"

// Metadata 插件元数据
// 描述文件不存在或无法解析时 Meta() 返回nil，其余查询返回空值
type Metadata struct {
	name           string
	path           string
	meta           map[string]interface{}
	parameterOrder []string
	itemAttrOrder  []string
}

// EmptyMetadata 创建没有描述文件的元数据
func EmptyMetadata(name string) *Metadata {
	return &Metadata{name: name}
}

// LoadMetadata 读取目录下的插件描述文件
// 读取失败只记录日志，返回空元数据
// 参数:
//   - name: 插件短名称
//   - dir: 描述文件所在目录
//
// 返回值:
//   - *Metadata: 元数据，不会为nil
func LoadMetadata(name, dir string) *Metadata {
	m, err := ReadMetadata(name, filepath.Join(dir, DescriptorFile))
	if err != nil {
		common.NewLogger().With("plugin", name).Warn("读取插件描述文件失败: %v", err)
		return EmptyMetadata(name)
	}
	return m
}

// ReadMetadata 解析描述文件
// 参数:
//   - name: 插件短名称
//   - path: plugin.yaml路径
//
// 返回值:
//   - *Metadata: 元数据
//   - error: 读取或解析错误
func ReadMetadata(name, path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Code(common.CodeDescriptorRead).With("path", path).Wrap(err)
	}
	return ParseMetadata(name, path, data)
}

// ParseMetadata 解析描述文件内容
func ParseMetadata(name, path string, data []byte) (*Metadata, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, oops.Code(common.CodeDescriptorRead).With("path", path).Wrap(err)
	}

	m := &Metadata{name: name, path: path}
	if len(doc.Content) == 0 {
		return m, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, oops.Code(common.CodeDescriptorRead).With("path", path).Errorf("描述文件顶层不是映射")
	}

	var raw map[string]interface{}
	if err := root.Decode(&raw); err != nil {
		return nil, oops.Code(common.CodeDescriptorRead).With("path", path).Wrap(err)
	}
	m.meta, _ = common.NormalizeValue(raw).(map[string]interface{})
	m.parameterOrder = mappingKeys(root, sectionParameters)
	m.itemAttrOrder = mappingKeys(root, sectionItemAttributes)
	return m, nil
}

// mappingKeys 按文件中的顺序返回某个顶层段的键
func mappingKeys(root *yaml.Node, section string) []string {
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value != section {
			continue
		}
		value := root.Content[i+1]
		if value.Kind != yaml.MappingNode {
			return nil
		}
		keys := make([]string, 0, len(value.Content)/2)
		for j := 0; j+1 < len(value.Content); j += 2 {
			keys = append(keys, value.Content[j].Value)
		}
		return keys
	}
	return nil
}

// Name 插件短名称
func (m *Metadata) Name() string { return m.name }

// Path 描述文件路径，未读取时为空
func (m *Metadata) Path() string { return m.path }

// Meta 完整的描述文件内容，描述文件不可用时为nil
func (m *Metadata) Meta() map[string]interface{} { return m.meta }

// section 返回顶层段
func (m *Metadata) section(name string) map[string]interface{} {
	if m.meta == nil {
		return nil
	}
	sec, _ := m.meta[name].(map[string]interface{})
	return sec
}

// Get 获取plugin段中的原始值
func (m *Metadata) Get(key string) (interface{}, bool) {
	value, ok := m.section(sectionPlugin)[key]
	return value, ok && value != nil
}

// GetString 获取plugin段中的字符串值，列表以空格连接
func (m *Metadata) GetString(key string) string {
	value, ok := m.Get(key)
	if !ok {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case []interface{}:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, " ")
	default:
		return fmt.Sprint(v)
	}
}

// GetBool 获取plugin段中的布尔值
func (m *Metadata) GetBool(key string) bool {
	value, ok := m.Get(key)
	if !ok {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(v) {
		case "true", "yes", "on", "1":
			return true
		}
	}
	return false
}

// GetMLString 获取多语言字符串
// 指定语言为空时回退到英文
func (m *Metadata) GetMLString(key, lang string) string {
	value, ok := m.Get(key)
	if !ok {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case map[string]interface{}:
		if s, ok := v[lang].(string); ok && s != "" {
			return s
		}
		if s, ok := v["en"].(string); ok {
			return s
		}
	}
	return ""
}

// Description 返回多语言描述映射
func (m *Metadata) Description() (map[string]interface{}, bool) {
	value, ok := m.Get("description")
	if !ok {
		return nil, false
	}
	desc, ok := value.(map[string]interface{})
	return desc, ok
}

// ParameterList 参数名列表，保持描述文件中的顺序
func (m *Metadata) ParameterList() []string {
	return m.parameterOrder
}

// ParameterTypeWithSubtype 参数类型，列表类型带子类型，如 list(str)
func (m *Metadata) ParameterTypeWithSubtype(name string) string {
	return typeWithSubtype(m.definition(sectionParameters, name))
}

// ParameterDefault 参数默认值，未声明时返回该类型的零值
func (m *Metadata) ParameterDefault(name string) interface{} {
	def := m.definition(sectionParameters, name)
	if value, ok := def["default"]; ok {
		return value
	}
	return typeZeroValue(definitionType(def))
}

// ItemDefinitionList 数据项属性名列表，保持描述文件中的顺序
func (m *Metadata) ItemDefinitionList() []string {
	return m.itemAttrOrder
}

// ItemDefinitionTypeWithSubtype 数据项属性类型
func (m *Metadata) ItemDefinitionTypeWithSubtype(name string) string {
	return typeWithSubtype(m.definition(sectionItemAttributes, name))
}

// definition 获取参数或数据项属性的定义
func (m *Metadata) definition(section, name string) map[string]interface{} {
	def, _ := m.section(section)[name].(map[string]interface{})
	return def
}

func definitionType(def map[string]interface{}) string {
	typ, _ := def["type"].(string)
	if typ == "" {
		return TypeAny
	}
	return strings.ToLower(typ)
}

func typeWithSubtype(def map[string]interface{}) string {
	typ := definitionType(def)
	if typ != "list" {
		return typ
	}

	switch sub := def["listtype"].(type) {
	case string:
		if sub != "" {
			return "list(" + strings.ToLower(sub) + ")"
		}
	case []interface{}:
		parts := make([]string, 0, len(sub))
		for _, item := range sub {
			parts = append(parts, strings.ToLower(fmt.Sprint(item)))
		}
		if len(parts) > 0 {
			return "list(" + strings.Join(parts, ",") + ")"
		}
	}
	return typ
}

// typeZeroValue 各类型未声明默认值时使用的值
func typeZeroValue(typ string) interface{} {
	switch typ {
	case "bool":
		return false
	case "int", "float", "num", "scene":
		return 0
	case "list":
		return []interface{}{}
	case "dict":
		return map[string]interface{}{}
	case TypeAny:
		return nil
	default:
		return ""
	}
}
