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
// core/pluginconf/legacy.go
// 旧格式(.conf)插件配置文件读取

package pluginconf

import (
	"bufio"
	"os"
	"strings"

	"HomeAdmin/core/common"

	"github.com/samber/oops"
)

// parseLegacy 解析旧格式配置文件
// 格式为 [配置段] 加 key = value，# 开头为注释，值中的 | 表示列表
func parseLegacy(path string) (*Sections, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, oops.Code(common.CodeConfigRead).With("path", path).Wrap(err)
	}
	defer file.Close()

	sections := NewSections()
	var current map[string]interface{}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(stripComment(scanner.Text()))

		if line == "" {
			continue
		}

		// 处理节 [Section]，忽略嵌套的 [[子节]]
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			if strings.HasPrefix(line, "[[") {
				current = nil
				continue
			}
			name := strings.TrimSpace(line[1 : len(line)-1])
			if existing, ok := sections.Get(name); ok {
				current, _ = existing.(map[string]interface{})
				continue
			}
			current = make(map[string]interface{})
			sections.Set(name, current)
			continue
		}

		if current == nil {
			continue
		}

		if idx := strings.Index(line, "="); idx != -1 {
			key := strings.TrimSpace(line[:idx])
			current[key] = legacyValue(strings.TrimSpace(line[idx+1:]))
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, oops.Code(common.CodeConfigRead).With("path", path).Wrap(err)
	}
	return sections, nil
}

// stripComment 去掉引号外的 # 注释
func stripComment(line string) string {
	var quote rune
	for i, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '#':
			return line[:i]
		}
	}
	return line
}

// legacyValue 去除引号，含 | 的值拆分为列表
func legacyValue(value string) interface{} {
	if strings.Contains(value, "|") {
		parts := strings.Split(value, "|")
		list := make([]interface{}, 0, len(parts))
		for _, part := range parts {
			list = append(list, unquote(strings.TrimSpace(part)))
		}
		return list
	}
	return unquote(value)
}

func unquote(value string) string {
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if first == last && (first == '"' || first == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
