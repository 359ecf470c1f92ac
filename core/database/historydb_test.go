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
// core/database/historydb_test.go

package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestConfigChanges 测试配置变更记录与查询
func TestConfigChanges(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, RecordConfigChange("knx", ActionAdd, "admin", `{"plugin_name":"knx"}`))
	require.NoError(t, RecordConfigChange("knx", ActionUpdate, "admin", `{"plugin_name":"knx","host":"10.0.0.2"}`))
	require.NoError(t, RecordConfigChange("cli", ActionAdd, "admin", `{"plugin_name":"cli"}`))

	changes, err := GetConfigChanges("knx", 0)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, ActionUpdate, changes[0].Action)
	assert.Equal(t, ActionAdd, changes[1].Action)
	assert.False(t, changes[0].CreatedAt.IsZero())

	limited, err := GetConfigChanges("knx", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := GetConfigChanges("missing", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// TestConfigChanges_NoDatabase 测试数据库未初始化时返回错误
func TestConfigChanges_NoDatabase(t *testing.T) {
	DB = nil
	assert.Error(t, RecordConfigChange("knx", ActionAdd, "admin", "{}"))
	_, err := GetConfigChanges("knx", 0)
	assert.Error(t, err)
}
