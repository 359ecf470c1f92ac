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
// core/database/historydb.go
// 插件配置变更记录

package database

import (
	"time"

	"github.com/samber/oops"
)

// 变更类型
const (
	ActionAdd    = "add"
	ActionUpdate = "update"
)

// ConfigChange 插件配置变更记录
type ConfigChange struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Section   string    `json:"section" gorm:"index;not null"`
	Action    string    `json:"action" gorm:"not null"`
	Username  string    `json:"username"`
	Config    string    `json:"config"` // 写入时的配置内容(JSON)
	CreatedAt time.Time `json:"created_at"`
}

// RecordConfigChange 记录一次配置变更
// 参数:
//
//	section: 配置段名称
//	action: 变更类型(add/update)
//	username: 操作用户
//	config: 写入的配置内容(JSON)
//
// 返回值:
//
//	error: 写入过程中的错误
func RecordConfigChange(section, action, username, config string) error {
	if DB == nil {
		return oops.Errorf("database not initialized")
	}

	change := &ConfigChange{
		Section:  section,
		Action:   action,
		Username: username,
		Config:   config,
	}
	if err := DB.Create(change).Error; err != nil {
		return oops.With("section", section).Wrapf(err, "记录配置变更失败")
	}
	return nil
}

// GetConfigChanges 获取配置段的变更记录，按时间倒序
// limit <= 0 时返回全部记录
func GetConfigChanges(section string, limit int) ([]ConfigChange, error) {
	if DB == nil {
		return nil, oops.Errorf("database not initialized")
	}

	var changes []ConfigChange
	query := DB.Where("section = ?", section).Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&changes).Error; err != nil {
		return nil, oops.With("section", section).Wrapf(err, "查询配置变更失败")
	}
	return changes, nil
}
