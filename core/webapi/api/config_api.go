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
// core/webapi/api/config_api.go
// 应用配置查看和重载

package api

import (
	"net/http"
	"strings"

	"HomeAdmin/core/common"
	"HomeAdmin/core/webapi/middleware"

	"github.com/gin-gonic/gin"
)

const maskedValue = "******"

// maskSecrets 隐藏密钥和密码类配置项
func maskSecrets(config map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(config))
	for key, value := range config {
		lower := strings.ToLower(key)
		if strings.Contains(lower, "secret") || strings.Contains(lower, "password") {
			out[key] = maskedValue
			continue
		}
		out[key] = value
	}
	return out
}

// GetConfigHandler 当前生效的应用配置（扁平键）
// GET /api/config
func GetConfigHandler(c *gin.Context) {
	middleware.SendSuccessResponseGin(c, gin.H{
		"path":   common.GetConfigFilePath(),
		"config": maskSecrets(common.GetAllConfig()),
	}, "")
}

// ReloadConfigHandler 重新读取配置文件
// POST /api/config/reload，同时刷新JWT和限流设置
func ReloadConfigHandler(c *gin.Context) {
	if err := common.ReloadConfig(); err != nil {
		common.NewLogger().LogError("重载配置失败", err)
		middleware.SendDetailedErrorResponseGin(c, "重载配置失败", http.StatusInternalServerError, err)
		return
	}
	middleware.GetJWTManager().ReloadConfig()
	middleware.GetRateLimiter().ReloadConfig()
	middleware.SendSuccessResponseGin(c, nil, "配置已重载")
}
