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
// core/pluginconf/store_test.go

package pluginconf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"HomeAdmin/core/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const samplePluginYAML = `# plugin configuration
knx:
    plugin_name: knx
    host: 127.0.0.1
    port: 3671

# command line interface
cli:
    plugin_name: cli
    ip: 0.0.0.0
`

// newTestStore 在临时目录写入配置文件并创建存储
func newTestStore(t *testing.T, name, content string) (*Store, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "etc")
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return NewStore(StaticFilename(path)), path
}

func mustParse(t *testing.T, raw string) *yaml.Node {
	t.Helper()
	node, err := ParseConfigJSON([]byte(raw))
	require.NoError(t, err)
	return node
}

// TestStore_Load 测试读取配置段并保持顺序
func TestStore_Load(t *testing.T) {
	store, _ := newTestStore(t, "plugin.yaml", samplePluginYAML)

	sections, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"knx", "cli"}, sections.Keys())

	knx, ok := sections.Get("knx")
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"plugin_name": "knx", "host": "127.0.0.1", "port": 3671}, knx)

	data, err := json.Marshal(sections)
	require.NoError(t, err)
	assert.Regexp(t, `^\{"knx":.*,"cli":.*\}$`, string(data))
}

// TestStore_AddThenRead 测试新增后读回相同的值
func TestStore_AddThenRead(t *testing.T) {
	store, path := newTestStore(t, "plugin.yaml", samplePluginYAML)

	err := store.Add("sonos", mustParse(t, `{"plugin_name":"sonos","zones":["kitchen","bath"],"enabled":true,"port":"1400"}`))
	require.NoError(t, err)

	sections, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"knx", "cli", "sonos"}, sections.Keys())

	sonos, _ := sections.Get("sonos")
	assert.Equal(t, map[string]interface{}{
		"plugin_name": "sonos",
		"zones":       []interface{}{"kitchen", "bath"},
		"enabled":     true,
		"port":        "1400",
	}, sonos)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "# command line interface")
	assert.Contains(t, content, "sonos:\n    plugin_name: sonos\n")
	assert.Contains(t, content, "port: \"1400\"")
}

// TestStore_AddExisting 测试新增已存在的配置段
func TestStore_AddExisting(t *testing.T) {
	store, path := newTestStore(t, "plugin.yaml", samplePluginYAML)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = store.Add("knx", mustParse(t, `{"plugin_name":"knx"}`))
	require.Error(t, err)
	assert.True(t, common.HasCode(err, common.CodeSectionExists))
	assert.Equal(t, "Configuration section 'knx' already exists", err.Error())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// TestStore_UpdateMissing 测试更新不存在的配置段
func TestStore_UpdateMissing(t *testing.T) {
	store, path := newTestStore(t, "plugin.yaml", samplePluginYAML)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	err = store.Update("sonos", mustParse(t, `{"plugin_name":"sonos"}`))
	require.Error(t, err)
	assert.True(t, common.HasCode(err, common.CodeSectionMissing))
	assert.Equal(t, "Configuration section 'sonos' does not exist", err.Error())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

// TestStore_Update 测试替换配置段并保留位置
func TestStore_Update(t *testing.T) {
	store, _ := newTestStore(t, "plugin.yaml", samplePluginYAML)

	require.NoError(t, store.Update("knx", mustParse(t, `{"plugin_name":"knx","host":"10.0.0.2"}`)))

	sections, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"knx", "cli"}, sections.Keys())
	knx, _ := sections.Get("knx")
	assert.Equal(t, map[string]interface{}{"plugin_name": "knx", "host": "10.0.0.2"}, knx)
}

// TestStore_NullSection 测试值为空的配置段视为不存在
func TestStore_NullSection(t *testing.T) {
	store, _ := newTestStore(t, "plugin.yaml", "empty:\nknx:\n    plugin_name: knx\n")

	err := store.Update("empty", mustParse(t, `{"a":1}`))
	assert.True(t, common.HasCode(err, common.CodeSectionMissing))

	require.NoError(t, store.Add("empty", mustParse(t, `{"a":1}`)))
	sections, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"empty", "knx"}, sections.Keys())
}

// TestStore_Legacy 测试旧格式配置只读
func TestStore_Legacy(t *testing.T) {
	legacy := "# legacy\n[knx]\n    class_name = KNX\n    class_path = plugins.knx\n    host = '127.0.0.1' # bus\n    send = a | b\n"
	store, path := newTestStore(t, "plugin.conf", legacy)

	readonly, err := store.CheckReadonly()
	require.NoError(t, err)
	assert.True(t, readonly)

	for _, op := range []func(string, *yaml.Node) error{store.Add, store.Update} {
		err := op("knx", mustParse(t, `{}`))
		require.Error(t, err)
		assert.True(t, common.HasCode(err, common.CodeLegacyConfig))
		assert.Equal(t, LegacyErrorText, err.Error())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, legacy, string(data))
	assert.NoFileExists(t, BackupPath(path))

	sections, err := store.Load()
	require.NoError(t, err)
	knx, _ := sections.Get("knx")
	assert.Equal(t, map[string]interface{}{
		"class_name": "KNX",
		"class_path": "plugins.knx",
		"host":       "127.0.0.1",
		"send":       []interface{}{"a", "b"},
	}, knx)
}

// TestStore_Backup 测试首次访问只创建一次备份
func TestStore_Backup(t *testing.T) {
	store, path := newTestStore(t, "plugin.yaml", samplePluginYAML)
	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, past, past))
	backup := BackupPath(path)

	readonly, err := store.CheckReadonly()
	require.NoError(t, err)
	assert.False(t, readonly)
	require.FileExists(t, backup)

	info, err := os.Stat(backup)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(past))

	require.NoError(t, store.Add("sonos", mustParse(t, `{"plugin_name":"sonos"}`)))
	require.NoError(t, store.Update("sonos", mustParse(t, `{"plugin_name":"sonos","port":1400}`)))

	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, samplePluginYAML, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

// TestStore_Missing 测试配置文件不存在
func TestStore_Missing(t *testing.T) {
	store := NewStore(StaticFilename(filepath.Join(t.TempDir(), "plugin.yaml")))

	_, err := store.Load()
	assert.True(t, common.HasCode(err, common.CodeConfigNotFound))

	_, err = store.CheckReadonly()
	assert.True(t, common.HasCode(err, common.CodeConfigNotFound))

	err = store.Add("knx", nil)
	assert.True(t, common.HasCode(err, common.CodeConfigNotFound))
}

// TestStore_EmptyFile 测试空配置文件
func TestStore_EmptyFile(t *testing.T) {
	store, _ := newTestStore(t, "plugin.yaml", "")

	sections, err := store.Load()
	require.NoError(t, err)
	assert.Zero(t, sections.Len())

	require.NoError(t, store.Add("knx", nil))
	sections, err = store.Load()
	require.NoError(t, err)
	knx, _ := sections.Get("knx")
	assert.Equal(t, map[string]interface{}{}, knx)
}

// TestStore_ConcurrentAdd 测试并发写入不丢失配置段
func TestStore_ConcurrentAdd(t *testing.T) {
	store, _ := newTestStore(t, "plugin.yaml", samplePluginYAML)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			node, err := ParseConfigJSON([]byte(fmt.Sprintf(`{"index":%d}`, i)))
			if assert.NoError(t, err) {
				assert.NoError(t, store.Add(fmt.Sprintf("plugin_%d", i), node))
			}
		}(i)
	}
	wg.Wait()

	sections, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 12, sections.Len())
}

func TestParseConfigJSON(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     interface{}
		wantKeys []string
		wantErr  bool
	}{
		{name: "空内容", raw: "", want: map[string]interface{}{}},
		{name: "不完整的JSON", raw: `{"broken":`, wantErr: true},
		{name: "多余的内容", raw: `{"a":1} {"b":2}`, wantErr: true},
		{
			name:     "重复的键取最后一个值",
			raw:      `{"plugin_name":"x","a":1,"b":true,"a":2}`,
			want:     map[string]interface{}{"plugin_name": "x", "a": 2, "b": true},
			wantKeys: []string{"plugin_name", "a", "b"},
		},
		{
			name: "转义的斜杠",
			raw:  `{"plugin_name":"x","url":"http:\/\/a"}`,
			want: map[string]interface{}{"plugin_name": "x", "url": "http://a"},
		},
		{
			name:     "保留键的顺序",
			raw:      `{"zeta":null,"alpha":[1,2.5,"3"],"mid":{"y":1,"x":2}}`,
			want:     map[string]interface{}{"zeta": nil, "alpha": []interface{}{1, 2.5, "3"}, "mid": map[string]interface{}{"y": 1, "x": 2}},
			wantKeys: []string{"zeta", "alpha", "mid"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := ParseConfigJSON([]byte(tt.raw))
			if tt.wantErr {
				assert.True(t, common.HasCode(err, common.CodeBodyInvalid))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "!!map", node.Tag)

			var got map[string]interface{}
			require.NoError(t, node.Decode(&got))
			if len(tt.want.(map[string]interface{})) == 0 {
				assert.Empty(t, got)
			} else {
				assert.Equal(t, tt.want, got)
			}

			if tt.wantKeys != nil {
				var keys []string
				for i := 0; i < len(node.Content); i += 2 {
					keys = append(keys, node.Content[i].Value)
				}
				assert.Equal(t, tt.wantKeys, keys)
			}
		})
	}
}

// TestStore_AddDuplicateKeys 测试请求中重复的键不会写入配置文件
func TestStore_AddDuplicateKeys(t *testing.T) {
	store, path := newTestStore(t, "plugin.yaml", samplePluginYAML)

	require.NoError(t, store.Add("dupkey", mustParse(t, `{"plugin_name":"x","a":1,"a":2}`)))

	sections, err := store.Load()
	require.NoError(t, err)
	dupkey, ok := sections.Get("dupkey")
	require.True(t, ok)
	assert.Equal(t, map[string]interface{}{"plugin_name": "x", "a": 2}, dupkey)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "dupkey:\n    plugin_name: x\n    a: 2\n")
	assert.NotContains(t, string(data), "a: 1")
}

func TestIsLegacy(t *testing.T) {
	assert.False(t, IsLegacy("etc/plugin.yaml"))
	assert.False(t, IsLegacy("etc/plugin.YAML"))
	assert.True(t, IsLegacy("etc/plugin.conf"))
	assert.True(t, IsLegacy("etc/plugin.yml"))
}
