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
// core/webapi/middleware/timeout.go
// 请求超时中间件

package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// TimeoutMiddlewareGin 为请求上下文设置截止时间
// 处理函数在同一goroutine中执行，通过 ctx.Done() 感知超时
func TimeoutMiddlewareGin(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetTimeoutByPath 根据请求路径获取对应的超时时间
func GetTimeoutByPath(path string) time.Duration {
	switch {
	case path == "/api/login" || path == "/api/refresh-token" || path == "/api/logout":
		return 10 * time.Second
	case strings.HasPrefix(path, "/api/plugins"):
		// 首次访问需要扫描插件目录
		return 30 * time.Second
	case strings.HasPrefix(path, "/api/plugin"):
		return 15 * time.Second
	default:
		return 10 * time.Second
	}
}

// TimeoutMiddlewareWithPathGin 根据路径设置不同超时时间的中间件
func TimeoutMiddlewareWithPathGin() gin.HandlerFunc {
	return func(c *gin.Context) {
		TimeoutMiddlewareGin(GetTimeoutByPath(c.Request.URL.Path))(c)
	}
}
