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
// core/webapi/api/plugin_api_test.go

package api

import (
	"net/http"
	"os"
	"strings"
	"testing"

	"HomeAdmin/core/pluginconf"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPluginIndex 测试读取配置段
func TestPluginIndex(t *testing.T) {
	env := newTestEnv(t, "plugin.yaml", samplePluginConf)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantConfig interface{}
	}{
		{
			name:       "读取单个配置段",
			path:       "/api/plugin/knx",
			wantStatus: http.StatusOK,
			wantConfig: map[string]interface{}{"plugin_name": "knx", "host": "127.0.0.1", "port": float64(3671)},
		},
		{
			name:       "读取全部配置段",
			path:       "/api/plugin",
			wantStatus: http.StatusOK,
			wantConfig: map[string]interface{}{
				"knx": map[string]interface{}{"plugin_name": "knx", "host": "127.0.0.1", "port": float64(3671)},
				"cli": map[string]interface{}{"plugin_name": "cli", "ip": "0.0.0.0"},
			},
		},
		{
			name:       "配置段不存在",
			path:       "/api/plugin/sonos",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodGet, tt.path, "", false)
			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp map[string]interface{}
			decodeJSON(t, w, &resp)
			assert.Equal(t, false, resp["_readonly"])
			assert.Equal(t, tt.wantConfig, resp["config"])
		})
	}

	assert.FileExists(t, pluginconf.BackupPath(env.confPath))
}

// TestPluginIndex_KeepsOrder 测试全部配置段按文件顺序返回
func TestPluginIndex_KeepsOrder(t *testing.T) {
	env := newTestEnv(t, "plugin.yaml", samplePluginConf)

	w := env.do(http.MethodGet, "/api/plugin", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Less(t, strings.Index(body, `"knx"`), strings.Index(body, `"cli"`))
}

// TestPluginIndex_MissingFile 测试配置文件不存在
func TestPluginIndex_MissingFile(t *testing.T) {
	env := newTestEnv(t, "plugin.yaml", "")

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/plugin", "", false).Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/plugin/knx", "", false).Code)
}

// TestPluginAdd 测试新增配置段后读回
func TestPluginAdd(t *testing.T) {
	env := newTestEnv(t, "plugin.yaml", samplePluginConf)

	w := env.do(http.MethodPost, "/api/plugin/sonos", `{"config":{"plugin_name":"sonos","port":"1400","zones":["kitchen"]}}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	var result WriteResult
	decodeJSON(t, w, &result)
	assert.Equal(t, WriteResult{Result: "ok"}, result)

	w = env.do(http.MethodGet, "/api/plugin/sonos", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	decodeJSON(t, w, &resp)
	assert.Equal(t, map[string]interface{}{
		"plugin_name": "sonos",
		"port":        "1400",
		"zones":       []interface{}{"kitchen"},
	}, resp["config"])

	data, err := os.ReadFile(env.confPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# plugin configuration")
}

// TestPluginAdd_JSONDetails 测试重复的键和转义斜杠的请求体可以写入并读回
func TestPluginAdd_JSONDetails(t *testing.T) {
	tests := []struct {
		name    string
		section string
		body    string
		want    map[string]interface{}
	}{
		{
			name:    "重复的键",
			section: "new_dupkey",
			body:    `{"config":{"plugin_name":"x","a":1,"a":2}}`,
			want:    map[string]interface{}{"plugin_name": "x", "a": float64(2)},
		},
		{
			name:    "转义的斜杠",
			section: "new_url",
			body:    `{"config":{"plugin_name":"x","url":"http:\/\/a"}}`,
			want:    map[string]interface{}{"plugin_name": "x", "url": "http://a"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "plugin.yaml", samplePluginConf)

			w := env.do(http.MethodPost, "/api/plugin/"+tt.section, tt.body, true)
			require.Equal(t, http.StatusOK, w.Code)
			var result WriteResult
			decodeJSON(t, w, &result)
			assert.Equal(t, "ok", result.Result)

			w = env.do(http.MethodGet, "/api/plugin/"+tt.section, "", false)
			require.Equal(t, http.StatusOK, w.Code)
			var resp map[string]interface{}
			decodeJSON(t, w, &resp)
			assert.Equal(t, tt.want, resp["config"])

			w = env.do(http.MethodGet, "/api/plugins/config", "", false)
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

// TestPluginAdd_WithoutConfigKey 测试请求体没有config字段时写入空配置段
func TestPluginAdd_WithoutConfigKey(t *testing.T) {
	env := newTestEnv(t, "plugin.yaml", samplePluginConf)

	w := env.do(http.MethodPost, "/api/plugin/empty", `{}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(http.MethodGet, "/api/plugin/empty", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	decodeJSON(t, w, &resp)
	assert.Equal(t, map[string]interface{}{}, resp["config"])
}

// TestPluginWrite_SoftErrors 测试写入被拒绝时返回错误描述且文件不变
func TestPluginWrite_SoftErrors(t *testing.T) {
	tests := []struct {
		name     string
		confName string
		method   string
		path     string
		wantDesc string
	}{
		{
			name:     "新增已存在的配置段",
			confName: "plugin.yaml",
			method:   http.MethodPost,
			path:     "/api/plugin/knx",
			wantDesc: "Configuration section 'knx' already exists",
		},
		{
			name:     "修改不存在的配置段",
			confName: "plugin.yaml",
			method:   http.MethodPut,
			path:     "/api/plugin/sonos",
			wantDesc: "Configuration section 'sonos' does not exist",
		},
		{
			name:     "旧格式配置文件不可新增",
			confName: "plugin.conf",
			method:   http.MethodPost,
			path:     "/api/plugin/sonos",
			wantDesc: pluginconf.LegacyErrorText,
		},
		{
			name:     "旧格式配置文件不可修改",
			confName: "plugin.conf",
			method:   http.MethodPut,
			path:     "/api/plugin/knx",
			wantDesc: pluginconf.LegacyErrorText,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := samplePluginConf
			if tt.confName == "plugin.conf" {
				conf = "[knx]\n    plugin_name = knx\n"
			}
			env := newTestEnv(t, tt.confName, conf)

			w := env.do(tt.method, tt.path, `{"config":{"host":"10.0.0.1"}}`, true)
			require.Equal(t, http.StatusOK, w.Code)
			var result WriteResult
			decodeJSON(t, w, &result)
			assert.Equal(t, WriteResult{Result: "error", Description: tt.wantDesc}, result)

			data, err := os.ReadFile(env.confPath)
			require.NoError(t, err)
			assert.Equal(t, conf, string(data))
		})
	}
}

// TestPluginIndex_Legacy 测试旧格式配置只读
func TestPluginIndex_Legacy(t *testing.T) {
	env := newTestEnv(t, "plugin.conf", "[knx]\n    plugin_name = knx\n")

	w := env.do(http.MethodGet, "/api/plugin/knx", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	decodeJSON(t, w, &resp)
	assert.Equal(t, true, resp["_readonly"])
	assert.Equal(t, map[string]interface{}{"plugin_name": "knx"}, resp["config"])
	assert.NoFileExists(t, pluginconf.BackupPath(env.confPath))
}

// TestPluginUpdate 测试修改配置段并记录变更
func TestPluginUpdate(t *testing.T) {
	env := newTestEnv(t, "plugin.yaml", samplePluginConf)

	w := env.do(http.MethodPut, "/api/plugin/knx", `{"config":{"plugin_name":"knx","host":"10.0.0.2"}}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	var result WriteResult
	decodeJSON(t, w, &result)
	assert.Equal(t, "ok", result.Result)

	w = env.do(http.MethodGet, "/api/plugin/knx", "", false)
	var resp map[string]interface{}
	decodeJSON(t, w, &resp)
	assert.Equal(t, map[string]interface{}{"plugin_name": "knx", "host": "10.0.0.2"}, resp["config"])

	w = env.do(http.MethodGet, "/api/plugin/knx/history", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Success bool `json:"success"`
		Data    []struct {
			Section  string `json:"section"`
			Action   string `json:"action"`
			Username string `json:"username"`
			Config   string `json:"config"`
		} `json:"data"`
	}
	decodeJSON(t, w, &history)
	require.Len(t, history.Data, 1)
	assert.Equal(t, "knx", history.Data[0].Section)
	assert.Equal(t, "update", history.Data[0].Action)
	assert.Equal(t, "admin", history.Data[0].Username)
	assert.JSONEq(t, `{"plugin_name":"knx","host":"10.0.0.2"}`, history.Data[0].Config)
}

// TestPluginWrite_InvalidBody 测试请求体缺失或不是JSON对象
func TestPluginWrite_InvalidBody(t *testing.T) {
	env := newTestEnv(t, "plugin.yaml", samplePluginConf)

	for _, body := range []string{"", "[1,2]", "null", "not json", `{"config":`} {
		w := env.do(http.MethodPost, "/api/plugin/sonos", body, true)
		assert.Equal(t, http.StatusLengthRequired, w.Code, "body: %q", body)
	}

	data, err := os.ReadFile(env.confPath)
	require.NoError(t, err)
	assert.Equal(t, samplePluginConf, string(data))
}

// TestPluginWrite_RequiresAuth 测试写操作需要登录
func TestPluginWrite_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, "plugin.yaml", samplePluginConf)

	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPost, "/api/plugin/sonos", `{"config":{}}`, false).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodPut, "/api/plugin/knx", `{"config":{}}`, false).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do(http.MethodGet, "/api/plugin/knx/history", "", false).Code)
}

// TestPluginWrite_Metrics 测试写操作计数
func TestPluginWrite_Metrics(t *testing.T) {
	env := newTestEnv(t, "plugin.yaml", samplePluginConf)

	env.do(http.MethodPost, "/api/plugin/sonos", `{"config":{}}`, true)
	env.do(http.MethodPost, "/api/plugin/sonos", `{"config":{}}`, true)

	w := env.do(http.MethodGet, "/metrics", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `homeadmin_plugin_config_writes_total{action="add",result="ok"} 1`)
	assert.Contains(t, body, `homeadmin_plugin_config_writes_total{action="add",result="error"} 1`)
	assert.Contains(t, body, `homeadmin_http_requests_total{method="POST",route="/api/plugin/:section",status="200"} 2`)
}
