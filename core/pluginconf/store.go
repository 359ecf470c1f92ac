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
// core/pluginconf/store.go
// 插件配置文件读写

package pluginconf

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"HomeAdmin/core/common"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const (
	// BackupFilename 首次访问YAML配置时创建的备份文件名
	BackupFilename = "plugin_before_admin_config.yaml"
	// LegacyErrorText 旧格式配置文件不可写时的提示
	LegacyErrorText = "Updating .CONF files is not supported"

	yamlIndent = 4
)

// FilenameSource 提供插件配置文件路径
type FilenameSource interface {
	ConfFilename() string
}

// StaticFilename 固定的插件配置文件路径
type StaticFilename string

// ConfFilename 返回文件路径
func (f StaticFilename) ConfFilename() string { return string(f) }

// Store 插件配置文件存储
// 写操作通过互斥锁串行执行，不做冲突检测
type Store struct {
	mu     sync.Mutex
	source FilenameSource
	logger *common.Logger
}

// NewStore 创建插件配置存储
// 参数:
//   - source: 插件配置文件路径来源，每次操作时读取
func NewStore(source FilenameSource) *Store {
	return &Store{
		source: source,
		logger: common.NewLogger().With("component", "pluginconf"),
	}
}

// Filename 当前插件配置文件路径
func (s *Store) Filename() string {
	return s.source.ConfFilename()
}

// IsLegacy 判断是否为旧格式配置文件，扩展名不是 .yaml 的都视为旧格式
func IsLegacy(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) != ".yaml"
}

// BackupPath 备份文件路径，与配置文件同目录
func BackupPath(filename string) string {
	return filepath.Join(filepath.Dir(filename), BackupFilename)
}

// CheckReadonly 判断配置是否只读
// 可写的YAML配置在备份文件不存在时会先创建备份
// 返回值:
//   - bool: 是否只读
//   - error: 创建备份失败时的错误
func (s *Store) CheckReadonly() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkReadonly(s.Filename())
}

func (s *Store) checkReadonly(filename string) (bool, error) {
	if IsLegacy(filename) {
		return true, nil
	}

	backup := BackupPath(filename)
	if _, err := os.Stat(backup); err == nil {
		return false, nil
	}

	if err := copyFile(filename, backup); err != nil {
		return false, err
	}
	s.logger.Warn("已创建插件配置备份: %s", backup)
	return false, nil
}

// copyFile 复制文件，保留权限和修改时间
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return oops.Code(common.CodeConfigNotFound).With("path", src).Wrap(err)
		}
		return oops.Code(common.CodeConfigRead).With("path", src).Wrap(err)
	}

	in, err := os.Open(src)
	if err != nil {
		return oops.Code(common.CodeConfigRead).With("path", src).Wrap(err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return oops.Code(common.CodeConfigWrite).With("path", dst).Wrap(err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return oops.Code(common.CodeConfigWrite).With("path", dst).Wrap(err)
	}
	if err := out.Close(); err != nil {
		return oops.Code(common.CodeConfigWrite).With("path", dst).Wrap(err)
	}
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}

// Load 读取全部配置段
// 优先读取同名的 .yaml 文件，不存在时读取 .conf 文件
func (s *Store) Load() (*Sections, error) {
	filename := s.Filename()
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	if fileExists(base + ".yaml") {
		return loadYAML(base + ".yaml")
	}
	if fileExists(base + ".conf") {
		return parseLegacy(base + ".conf")
	}
	return nil, oops.Code(common.CodeConfigNotFound).With("path", filename).Errorf("插件配置文件不存在: %s", filename)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func loadYAML(path string) (*Sections, error) {
	doc, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	root := doc.Content[0]
	sections := NewSections()
	for i := 0; i+1 < len(root.Content); i += 2 {
		var value interface{}
		if err := root.Content[i+1].Decode(&value); err != nil {
			return nil, oops.Code(common.CodeConfigRead).With("path", path).With("section", root.Content[i].Value).Wrap(err)
		}
		sections.Set(root.Content[i].Value, common.NormalizeValue(value))
	}
	return sections, nil
}

// readDocument 读取YAML文档，空文件视为空映射
func readDocument(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, oops.Code(common.CodeConfigNotFound).With("path", path).Wrap(err)
		}
		return nil, oops.Code(common.CodeConfigRead).With("path", path).Wrap(err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, oops.Code(common.CodeConfigRead).With("path", path).Wrap(err)
	}

	if doc.Kind == 0 || len(doc.Content) == 0 {
		return &yaml.Node{
			Kind:    yaml.DocumentNode,
			Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}},
		}, nil
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		return nil, oops.Code(common.CodeConfigRead).With("path", path).Errorf("插件配置文件顶层不是映射")
	}
	return &doc, nil
}

// Add 新增配置段
// 配置段已存在或配置为旧格式时返回错误，文件保持不变
func (s *Store) Add(section string, config *yaml.Node) error {
	return s.write(section, config, false)
}

// Update 替换已有配置段
// 配置段不存在或配置为旧格式时返回错误，文件保持不变
func (s *Store) Update(section string, config *yaml.Node) error {
	return s.write(section, config, true)
}

func (s *Store) write(section string, config *yaml.Node, mustExist bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	filename := s.Filename()
	readonly, err := s.checkReadonly(filename)
	if err != nil {
		return err
	}
	if readonly {
		return oops.Code(common.CodeLegacyConfig).With("path", filename).Errorf(LegacyErrorText)
	}

	doc, err := readDocument(filename)
	if err != nil {
		return err
	}
	root := doc.Content[0]

	idx := -1
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == section {
			idx = i
			break
		}
	}
	exists := idx >= 0 && !isNull(root.Content[idx+1])

	switch {
	case mustExist && !exists:
		return oops.Code(common.CodeSectionMissing).With("section", section).
			Errorf("Configuration section '%s' does not exist", section)
	case !mustExist && exists:
		return oops.Code(common.CodeSectionExists).With("section", section).
			Errorf("Configuration section '%s' already exists", section)
	}

	value := blockNode(config)
	if idx >= 0 {
		root.Content[idx+1] = value
	} else {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: section}
		root.Content = append(root.Content, key, value)
	}

	return writeDocument(filename, doc)
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

// blockNode 去掉节点的流式和引号样式，使输出与手写配置一致
func blockNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	if n.Kind == yaml.DocumentNode {
		if len(n.Content) == 0 {
			return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		}
		n = n.Content[0]
	}
	clearStyle(n)
	return n
}

func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		clearStyle(child)
	}
}

// writeDocument 写入临时文件后替换原文件
func writeDocument(filename string, doc *yaml.Node) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(yamlIndent)
	if err := enc.Encode(doc); err != nil {
		return oops.Code(common.CodeConfigWrite).With("path", filename).Wrap(err)
	}
	if err := enc.Close(); err != nil {
		return oops.Code(common.CodeConfigWrite).With("path", filename).Wrap(err)
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(filename); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(filename), ".plugin-*.yaml")
	if err != nil {
		return oops.Code(common.CodeConfigWrite).With("path", filename).Wrap(err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return oops.Code(common.CodeConfigWrite).With("path", filename).Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return oops.Code(common.CodeConfigWrite).With("path", filename).Wrap(err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return oops.Code(common.CodeConfigWrite).With("path", filename).Wrap(err)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		return oops.Code(common.CodeConfigWrite).With("path", filename).Wrap(err)
	}
	return nil
}

// ParseConfigJSON 将请求中的JSON配置转换为YAML节点，保留键的顺序
// 空内容视为空映射，重复的键以最后一次出现的值为准
func ParseConfigJSON(raw []byte) (*yaml.Node, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	node, err := decodeNode(dec)
	if err != nil {
		return nil, oops.Code(common.CodeBodyInvalid).Wrap(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, oops.Code(common.CodeBodyInvalid).Errorf("unexpected data after JSON value")
	}
	return node, nil
}

// decodeNode 从JSON记号流读取一个值
func decodeNode(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			return decodeMapping(dec)
		case '[':
			return decodeSequence(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %q", v)
	case string:
		return scalarNode("!!str", v), nil
	case json.Number:
		if _, err := strconv.ParseInt(v.String(), 10, 64); err == nil {
			return scalarNode("!!int", v.String()), nil
		}
		return scalarNode("!!float", v.String()), nil
	case bool:
		return scalarNode("!!bool", strconv.FormatBool(v)), nil
	case nil:
		return scalarNode("!!null", "null"), nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func decodeMapping(dec *json.Decoder) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		value, err := decodeNode(dec)
		if err != nil {
			return nil, err
		}
		if i, dup := index[key]; dup {
			node.Content[i+1] = value
			continue
		}
		index[key] = len(node.Content)
		node.Content = append(node.Content, scalarNode("!!str", key), value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return node, nil
}

func decodeSequence(dec *json.Decoder) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for dec.More() {
		value, err := decodeNode(dec)
		if err != nil {
			return nil, err
		}
		node.Content = append(node.Content, value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return node, nil
}

func scalarNode(tag, value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}
