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
// core/webapi/middleware/auth.go

package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ContextUserKey gin上下文中保存当前用户声明的键
const ContextUserKey = "user"

type userContextKey struct{}

// AuthMiddlewareGin 认证中间件（Gin版本）
// 验证请求中的JWT令牌，确保用户已登录
func AuthMiddlewareGin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := GetTokenFromRequest(c.Request)
		if token == "" {
			SendErrorResponseGin(c, "未提供访问令牌", http.StatusUnauthorized)
			c.Abort()
			return
		}

		claims, err := GetJWTManager().GetUserFromToken(token)
		if err != nil {
			SendErrorResponseGin(c, "无效的访问令牌", http.StatusUnauthorized)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		ctx := context.WithValue(c.Request.Context(), userContextKey{}, claims)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// CurrentUser 返回认证中间件写入的用户声明
func CurrentUser(c *gin.Context) (*Claims, bool) {
	if v, ok := c.Get(ContextUserKey); ok {
		claims, ok := v.(*Claims)
		return claims, ok
	}
	claims, ok := c.Request.Context().Value(userContextKey{}).(*Claims)
	return claims, ok
}

// CurrentUsername 返回当前用户名，未认证时为空
func CurrentUsername(c *gin.Context) string {
	if claims, ok := CurrentUser(c); ok {
		return claims.Username
	}
	return ""
}
