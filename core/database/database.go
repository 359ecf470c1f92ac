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
// core/database/database.go

package database

import (
	"HomeAdmin/core/common"
	"time"

	"github.com/samber/oops"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB 全局数据库连接
var DB *gorm.DB

// gormLogMode 按应用日志级别选择GORM日志级别
func gormLogMode(level common.LogLevel) logger.LogLevel {
	switch level {
	case common.DEBUG:
		return logger.Info
	case common.WARN:
		return logger.Warn
	case common.ERROR:
		return logger.Error
	default:
		return logger.Silent
	}
}

// InitDB 初始化数据库连接
// 从配置获取数据库文件路径，如果没有则使用默认路径
func InitDB() error {
	dbPath := common.GetConfig("database", "path")
	if dbPath == "" {
		dbPath = "homeadmin.db"
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogMode(common.GetLogLevelFromConfig())),
	})
	if err != nil {
		return oops.With("path", dbPath).Wrapf(err, "连接数据库失败")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return oops.Wrapf(err, "获取数据库连接池失败")
	}

	// sqlite 只使用单个连接
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	DB = db
	common.NewLogger().Info("SQLite数据库连接成功: %s", dbPath)
	return nil
}

// CloseDB 关闭数据库连接
func CloseDB() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	DB = nil
	return sqlDB.Close()
}

// CheckConnection 检查数据库连接是否正常
func CheckConnection() error {
	if DB == nil {
		return oops.Errorf("database not initialized")
	}

	var count int64
	return DB.Model(&User{}).Count(&count).Error
}

// InitializeDatabase 初始化数据库，创建必要的表
// 创建用户表和配置变更记录表，并创建默认管理员用户
func InitializeDatabase() error {
	tables := []interface{}{
		&User{},
		&ConfigChange{},
	}

	for _, table := range tables {
		if err := DB.AutoMigrate(table); err != nil {
			return oops.Wrapf(err, "数据表迁移失败")
		}
	}

	return CreateDefaultAdminUser()
}
