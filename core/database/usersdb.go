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
// core/database/usersdb.go

package database

import (
	"HomeAdmin/core/common"
	"errors"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// User 用户模型
type User struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	Username string `json:"username" gorm:"uniqueIndex;not null"`
	Email    string `json:"email"`
	Password string `json:"-" gorm:"column:password;not null"` // 不在JSON中输出
}

// isBcryptHash 判断字符串是否已是bcrypt哈希
func isBcryptHash(password string) bool {
	return strings.HasPrefix(password, "$2a$") ||
		strings.HasPrefix(password, "$2b$") ||
		strings.HasPrefix(password, "$2y$")
}

// hashPassword 对密码进行bcrypt哈希，已哈希的密码原样返回
func hashPassword(password string) (string, error) {
	if isBcryptHash(password) {
		return password, nil
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", oops.Wrapf(err, "加密密码失败")
	}
	return string(hashed), nil
}

// CreateUser 创建用户
func CreateUser(user *User) error {
	var existingUser User
	if err := DB.Where("username = ?", user.Username).First(&existingUser).Error; err == nil {
		return oops.With("username", user.Username).Errorf("用户名已存在")
	}

	if user.Email != "" {
		if err := DB.Where("email = ?", user.Email).First(&existingUser).Error; err == nil {
			return oops.With("email", user.Email).Errorf("邮箱已存在")
		}
	}

	hashed, err := hashPassword(user.Password)
	if err != nil {
		return err
	}
	user.Password = hashed

	if err := DB.Create(user).Error; err != nil {
		return oops.Wrapf(err, "创建用户失败")
	}
	return nil
}

// GetUserByID 根据ID获取用户
func GetUserByID(id uint) (*User, error) {
	var user User
	if err := DB.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, oops.With("id", id).Errorf("用户不存在")
		}
		return nil, err
	}
	return &user, nil
}

// GetUserByUsername 根据用户名获取用户
func GetUserByUsername(username string) (*User, error) {
	var user User
	if err := DB.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, oops.With("username", username).Errorf("用户不存在")
		}
		return nil, err
	}
	return &user, nil
}

// UpdateUser 更新用户信息，明文密码会重新哈希
func UpdateUser(user *User) error {
	hashed, err := hashPassword(user.Password)
	if err != nil {
		return err
	}
	user.Password = hashed

	if err := DB.Save(user).Error; err != nil {
		return oops.Wrapf(err, "更新用户失败")
	}
	return nil
}

// ValidateUserWithDB 使用数据库验证用户凭据
func ValidateUserWithDB(username, password string) (*User, bool) {
	var user User
	if err := DB.Where("username = ?", username).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			common.NewLogger().Warn("查询用户失败: %v", err)
		}
		return nil, false
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, false
	}

	return &user, true
}

// CreateDefaultAdminUser 用户表为空时创建默认管理员用户
func CreateDefaultAdminUser() error {
	var count int64
	if err := DB.Model(&User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	user := &User{
		Username: "admin",
		Email:    "admin@homeadmin.local",
		Password: "admin123",
	}
	if err := CreateUser(user); err != nil {
		return oops.Wrapf(err, "创建默认管理员用户失败")
	}

	common.NewLogger().Warn("创建默认管理员用户: admin / admin123，请尽快修改密码")
	return nil
}
