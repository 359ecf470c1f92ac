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
// core/webapi/middleware/response.go

package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 错误响应结构
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
	Error   string `json:"error,omitempty"` // 脱敏后的错误信息
}

// SuccessResponse 成功响应结构
type SuccessResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

var (
	pathPattern      = regexp.MustCompile(`[a-zA-Z]:\\[^"'\s]+|/[^"'\s]+`)
	ipPattern        = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	stackPattern     = regexp.MustCompile(`(?:goroutine\s+\d+|runtime\.[\w]+)`)
	sensitivePattern = regexp.MustCompile(`(?i)\b(password|secret|token|key|credential)\s*[:=]\s*[^\s,]+`)
)

// GetTokenFromRequest 从请求中获取token
func GetTokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// sanitizeError 对错误信息脱敏，隐藏路径、IP和凭据
func sanitizeError(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()
	errStr = pathPattern.ReplaceAllString(errStr, "[路径已隐藏]")
	errStr = ipPattern.ReplaceAllString(errStr, "[IP地址已隐藏]")
	errStr = stackPattern.ReplaceAllString(errStr, "[堆栈信息已隐藏]")
	errStr = sensitivePattern.ReplaceAllString(errStr, "$1=[已隐藏]")
	return errStr
}

// SendErrorResponseGin 发送错误响应（Gin版本）
func SendErrorResponseGin(c *gin.Context, message string, statusCode int) {
	c.JSON(statusCode, ErrorResponse{
		Success: false,
		Message: message,
		Code:    statusCode,
	})
}

// SendDetailedErrorResponseGin 发送详细错误响应（Gin版本）
// 错误信息会先经过脱敏处理
func SendDetailedErrorResponseGin(c *gin.Context, message string, statusCode int, err error) {
	resp := ErrorResponse{
		Success: false,
		Message: message,
		Code:    statusCode,
	}
	if err != nil {
		resp.Error = sanitizeError(err)
	}
	c.JSON(statusCode, resp)
}

// SendSuccessResponseGin 发送成功响应（Gin版本）
func SendSuccessResponseGin(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}
