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
// core/webapi/api/userapi.go

package api

import (
	"net/http"

	"HomeAdmin/core/database"
	"HomeAdmin/core/webapi/middleware"

	"github.com/gin-gonic/gin"
)

// ChangePasswordRequest 修改密码请求结构体
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=8"`
}

// CurrentUserHandler 当前登录用户信息
// GET /api/user
func CurrentUserHandler(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		middleware.SendErrorResponseGin(c, "未认证", http.StatusUnauthorized)
		return
	}

	user, err := database.GetUserByID(claims.UserID)
	if err != nil {
		middleware.SendErrorResponseGin(c, "用户不存在", http.StatusNotFound)
		return
	}
	middleware.SendSuccessResponseGin(c, userInfo(user), "")
}

// ChangePasswordHandler 修改当前用户的密码
// PUT /api/user/password，需要提供旧密码
func ChangePasswordHandler(c *gin.Context) {
	claims, ok := middleware.CurrentUser(c)
	if !ok {
		middleware.SendErrorResponseGin(c, "未认证", http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.SendErrorResponseGin(c, "无效的请求体，新密码至少8位", http.StatusBadRequest)
		return
	}

	user, valid := database.ValidateUserWithDB(claims.Username, req.OldPassword)
	if !valid || user.ID != claims.UserID {
		middleware.SendErrorResponseGin(c, "旧密码错误", http.StatusUnauthorized)
		return
	}

	user.Password = req.NewPassword
	if err := database.UpdateUser(user); err != nil {
		middleware.SendDetailedErrorResponseGin(c, "修改密码失败", http.StatusInternalServerError, err)
		return
	}
	middleware.SendSuccessResponseGin(c, nil, "密码修改成功")
}
