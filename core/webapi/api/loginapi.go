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
// core/webapi/api/loginapi.go

package api

import (
	"net/http"
	"time"

	"HomeAdmin/core/database"
	"HomeAdmin/core/webapi/middleware"

	"github.com/gin-gonic/gin"
)

// LoginRequest 登录请求结构体
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LogoutRequest 登出请求结构体
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func userInfo(user *database.User) gin.H {
	return gin.H{
		"id":       user.ID,
		"username": user.Username,
		"email":    user.Email,
	}
}

// tokenResponse 签发令牌并组装响应
func tokenResponse(jwtManager *middleware.JWTManager, user *database.User) (*middleware.TokenResponse, error) {
	accessToken, refreshToken, err := jwtManager.GenerateToken(user)
	if err != nil {
		return nil, err
	}
	return &middleware.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         userInfo(user),
		ExpiresIn:    int64(jwtManager.AccessTokenExpiration / time.Second),
	}, nil
}

// LoginHandler 处理登录请求
// POST /api/login
func LoginHandler(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.SendErrorResponseGin(c, "用户名和密码不能为空", http.StatusBadRequest)
		return
	}

	user, valid := database.ValidateUserWithDB(req.Username, req.Password)
	if !valid {
		middleware.SendErrorResponseGin(c, "用户名或密码错误", http.StatusUnauthorized)
		return
	}

	resp, err := tokenResponse(middleware.GetJWTManager(), user)
	if err != nil {
		middleware.SendDetailedErrorResponseGin(c, "生成token失败", http.StatusInternalServerError, err)
		return
	}
	middleware.SendSuccessResponseGin(c, resp, "登录成功")
}

// RefreshTokenHandler 使用刷新令牌换取新的令牌，旧刷新令牌作废
// POST /api/refresh-token
func RefreshTokenHandler(c *gin.Context) {
	var req middleware.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.SendErrorResponseGin(c, "无效的请求体", http.StatusBadRequest)
		return
	}

	jwtManager := middleware.GetJWTManager()
	userID, valid := jwtManager.ValidateRefreshToken(req.RefreshToken)
	if !valid {
		middleware.SendErrorResponseGin(c, "无效的刷新令牌", http.StatusUnauthorized)
		return
	}

	user, err := database.GetUserByID(userID)
	if err != nil {
		middleware.SendErrorResponseGin(c, "用户不存在", http.StatusNotFound)
		return
	}

	resp, err := tokenResponse(jwtManager, user)
	if err != nil {
		middleware.SendDetailedErrorResponseGin(c, "生成token失败", http.StatusInternalServerError, err)
		return
	}
	jwtManager.RevokeRefreshToken(req.RefreshToken)
	middleware.SendSuccessResponseGin(c, resp, "令牌刷新成功")
}

// LogoutHandler 处理登出请求
// POST /api/logout
func LogoutHandler(c *gin.Context) {
	var req LogoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.SendErrorResponseGin(c, "无效的请求体", http.StatusBadRequest)
		return
	}

	jwtManager := middleware.GetJWTManager()
	if _, valid := jwtManager.ValidateRefreshToken(req.RefreshToken); !valid {
		middleware.SendErrorResponseGin(c, "无效的刷新令牌", http.StatusUnauthorized)
		return
	}

	jwtManager.RevokeRefreshToken(req.RefreshToken)
	middleware.SendSuccessResponseGin(c, nil, "登出成功")
}
