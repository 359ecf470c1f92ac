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
// core/common/daemon_test.go

package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaemonManager_Status(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "run", "homeadmin.pid")
	d := NewDaemonManager(pidFile)

	status, pid := d.GetStatus()
	assert.Equal(t, StatusStopped, status)
	assert.Zero(t, pid)
	assert.False(t, d.IsRunning())

	require.NoError(t, d.WritePID(os.Getpid()))
	status, pid = d.GetStatus()
	assert.Equal(t, StatusRunning, status)
	assert.Equal(t, os.Getpid(), pid)

	d.RemovePID()
	assert.False(t, d.IsRunning())
}

func TestDaemonManager_StopNotRunning(t *testing.T) {
	d := NewDaemonManager(filepath.Join(t.TempDir(), "homeadmin.pid"))
	assert.Error(t, d.StopDaemon())
}

func TestDaemonManager_InvalidPIDFile(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "homeadmin.pid")
	require.NoError(t, os.WriteFile(pidFile, []byte("not-a-pid"), 0644))

	d := NewDaemonManager(pidFile)
	status, pid := d.GetStatus()
	assert.Equal(t, StatusStopped, status)
	assert.Zero(t, pid)
}
