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
// core/webapi/api/helpers_test.go

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"HomeAdmin/core/database"
	"HomeAdmin/core/plugin"
	"HomeAdmin/core/webapi/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "Str0ng-Secret-Key-For-Unit-Tests-0123456789!"

const samplePluginConf = `# plugin configuration
knx:
    plugin_name: knx
    host: 127.0.0.1
    port: 3671

cli:
    plugin_name: cli
    ip: 0.0.0.0
`

const knxDescriptor = `plugin:
    type: gateway
    description:
        de: 'Anbindung an den KNX Bus'
        en: 'Connects to the KNX bus'
    keywords: knx bus
    documentation: https://example.org/knx
    version: 1.8.2
    multi_instance: true
    classname: KNX

parameters:
    host:
        type: ip
        default: 127.0.0.1
    port:
        type: int
    send_time:
        type: list
        listtype: str

item_attributes:
    knx_dpt:
        type: str
`

func init() {
	gin.SetMode(gin.TestMode)
}

// testEnv 测试用的插件管理接口环境
type testEnv struct {
	baseDir  string
	confPath string
	manager  *plugin.PluginManager
	webifs   *plugin.WebIfRegistry
	metrics  *middleware.Metrics
	admin    *PluginAdmin
	engine   *gin.Engine
	token    string
}

// newTestEnv 创建临时目录、内存数据库和gin引擎
// conf为空时不写插件配置文件，confName决定文件扩展名
func newTestEnv(t *testing.T, confName, conf string, instances ...plugin.Instance) *testEnv {
	t.Helper()
	t.Setenv("HOMEADMIN_API_RATE_LIMIT_ENABLED", "false")

	env := &testEnv{baseDir: t.TempDir()}
	etcDir := filepath.Join(env.baseDir, "etc")
	require.NoError(t, os.MkdirAll(etcDir, 0755))
	env.confPath = filepath.Join(etcDir, confName)
	if conf != "" {
		require.NoError(t, os.WriteFile(env.confPath, []byte(conf), 0644))
	}

	setupTestDB(t)

	jwtManager := middleware.NewJWTManager(testSecret, 30*time.Minute, 24*time.Hour)
	middleware.SetJWTManager(jwtManager)
	t.Cleanup(func() { middleware.SetJWTManager(nil) })

	user := &database.User{Username: "admin", Password: "admin123"}
	require.NoError(t, database.CreateUser(user))
	token, _, err := jwtManager.GenerateToken(user)
	require.NoError(t, err)
	env.token = token

	env.manager = plugin.NewPluginManager(filepath.Join(etcDir, "plugin.yaml"))
	for _, instance := range instances {
		require.NoError(t, env.manager.RegisterPlugin(instance))
	}
	require.NoError(t, env.manager.InitializePlugins())

	env.webifs = plugin.NewWebIfRegistry()
	env.metrics = middleware.NewMetrics()
	env.admin = NewPluginAdmin(AdminOptions{
		Registry:        env.manager,
		WebIfs:          env.webifs,
		BaseDir:         env.baseDir,
		DefaultLanguage: "de",
		URLRoot:         "/admin",
		Metrics:         env.metrics,
	})
	env.engine = NewEngine(env.admin, env.metrics, env.manager.ReturnPlugins(), env.webifs)
	return env
}

// setupTestDB 内存数据库，测试结束后关闭
func setupTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	database.DB = db
	require.NoError(t, db.AutoMigrate(&database.User{}, &database.ConfigChange{}))
	t.Cleanup(func() {
		sqlDB.Close()
		database.DB = nil
	})
}

// writePlugin 在插件目录下写入描述文件
func (env *testEnv) writePlugin(t *testing.T, rel, descriptor string) {
	t.Helper()
	dir := filepath.Join(env.baseDir, "plugins", filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(dir, 0755))
	if descriptor != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, plugin.DescriptorFile), []byte(descriptor), 0644))
	}
}

func (env *testEnv) do(method, path, body string, auth bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+env.token)
	}
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
