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
// core/webapi/api/plugin_api.go
// 单个插件配置段的读取、新增和修改

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"HomeAdmin/core/common"
	"HomeAdmin/core/database"
	"HomeAdmin/core/pluginconf"
	"HomeAdmin/core/webapi/middleware"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// 写操作结果
const (
	resultOK    = "ok"
	resultError = "error"
)

// WriteResult 新增和修改配置段的结果
type WriteResult struct {
	Result      string `json:"result"`
	Description string `json:"description,omitempty"`
}

// errBodyRequired 请求体缺失、过大或无法解析
var errBodyRequired = errors.New("request body required")

// PluginIndexHandler 读取配置段
// GET /api/plugin 返回全部配置段，GET /api/plugin/:section 返回指定配置段
func (a *PluginAdmin) PluginIndexHandler(c *gin.Context) {
	section := c.Param("section")

	readonly, err := a.store.CheckReadonly()
	if err != nil {
		a.abortWithStoreError(c, "检查插件配置失败", err)
		return
	}

	sections, err := a.store.Load()
	if err != nil {
		a.abortWithStoreError(c, "读取插件配置失败", err)
		return
	}

	var config interface{}
	if section == "" {
		if sections.Len() == 0 {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		config = sections
	} else {
		value, ok := sections.Get(section)
		if !ok {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		config = value
	}

	c.JSON(http.StatusOK, gin.H{
		"_readonly": readonly,
		"config":    config,
	})
}

// PluginAddHandler 新增配置段
// POST /api/plugin/:section，请求体 {"config": {...}}
func (a *PluginAdmin) PluginAddHandler(c *gin.Context) {
	a.writeSection(c, database.ActionAdd)
}

// PluginUpdateHandler 修改已有配置段
// PUT /api/plugin/:section，请求体 {"config": {...}}
func (a *PluginAdmin) PluginUpdateHandler(c *gin.Context) {
	a.writeSection(c, database.ActionUpdate)
}

func (a *PluginAdmin) writeSection(c *gin.Context, action string) {
	section := c.Param("section")
	logger := a.logger.With("section", section, "action", action)

	raw, node, err := a.readConfigBody(c)
	if err != nil {
		logger.Warn("请求体无效: %v", err)
		c.AbortWithStatus(http.StatusLengthRequired)
		return
	}

	if action == database.ActionAdd {
		err = a.store.Add(section, node)
	} else {
		err = a.store.Update(section, node)
	}

	if err != nil {
		a.metrics.RecordConfigWrite(action, resultError)
		if description, soft := softErrorDescription(section, err); soft {
			logger.Info("配置段未写入: %s", description)
			c.JSON(http.StatusOK, WriteResult{Result: resultError, Description: description})
			return
		}
		a.abortWithStoreError(c, "写入插件配置失败", err)
		return
	}

	a.metrics.RecordConfigWrite(action, resultOK)
	username := middleware.CurrentUsername(c)
	logger.Info("配置段已写入，用户: %s", username)
	if err := database.RecordConfigChange(section, action, username, string(raw)); err != nil {
		logger.LogError("记录配置变更失败", err)
	}

	c.JSON(http.StatusOK, WriteResult{Result: resultOK})
}

// readConfigBody 读取请求体并取出 config 字段
// 返回值:
//   - []byte: config 字段的原始JSON
//   - *yaml.Node: 转换后的YAML节点
//   - error: 请求体缺失、超长或不是JSON对象
func (a *PluginAdmin) readConfigBody(c *gin.Context) ([]byte, *yaml.Node, error) {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil, nil, errBodyRequired
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, a.maxBodyBytes+1))
	if err != nil {
		return nil, nil, oops.Code(common.CodeBodyInvalid).Wrap(err)
	}
	if int64(len(body)) > a.maxBodyBytes {
		return nil, nil, oops.Code(common.CodeBodyInvalid).With("limit", a.maxBodyBytes).Errorf("请求体过大")
	}

	var params map[string]json.RawMessage
	if err := json.Unmarshal(body, &params); err != nil || params == nil {
		return nil, nil, oops.Code(common.CodeBodyInvalid).Errorf("请求体不是JSON对象")
	}

	raw, ok := params["config"]
	if !ok {
		raw = json.RawMessage("{}")
	}
	node, err := pluginconf.ParseConfigJSON(raw)
	if err != nil {
		return nil, nil, err
	}
	return raw, node, nil
}

// softErrorDescription 需要以结果形式返回给界面的错误
func softErrorDescription(section string, err error) (string, bool) {
	switch common.ErrorCode(err) {
	case common.CodeLegacyConfig:
		return pluginconf.LegacyErrorText, true
	case common.CodeSectionExists:
		return fmt.Sprintf("Configuration section '%s' already exists", section), true
	case common.CodeSectionMissing:
		return fmt.Sprintf("Configuration section '%s' does not exist", section), true
	}
	return "", false
}

// abortWithStoreError 配置文件不存在时返回404，其余错误返回500
func (a *PluginAdmin) abortWithStoreError(c *gin.Context, message string, err error) {
	if common.HasCode(err, common.CodeConfigNotFound) {
		a.logger.Warn("%s: %v", message, err)
		c.AbortWithStatus(http.StatusNotFound)
		return
	}
	a.logger.LogError(message, err)
	middleware.SendDetailedErrorResponseGin(c, message, http.StatusInternalServerError, err)
	c.Abort()
}

// PluginHistoryHandler 查询配置段的变更记录
// GET /api/plugin/:section/history?limit=50
func (a *PluginAdmin) PluginHistoryHandler(c *gin.Context) {
	section := c.Param("section")
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit < 0 {
		middleware.SendErrorResponseGin(c, "limit 参数无效", http.StatusBadRequest)
		return
	}

	changes, err := database.GetConfigChanges(section, limit)
	if err != nil {
		a.logger.LogError("查询配置变更失败", err)
		middleware.SendDetailedErrorResponseGin(c, "查询配置变更失败", http.StatusInternalServerError, err)
		return
	}
	middleware.SendSuccessResponseGin(c, changes, "")
}
