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
// core/webapi/api/static_server.go
// 管理界面静态文件，前端路由回退到 index.html

package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// StaticServer 管理界面静态文件服务器
type StaticServer struct {
	staticDir string
	files     http.Handler
}

// NewStaticServer 创建静态文件服务器
// staticDir: 前端构建产物目录，包含 index.html
func NewStaticServer(staticDir string) *StaticServer {
	return &StaticServer{
		staticDir: staticDir,
		files:     http.FileServer(http.Dir(staticDir)),
	}
}

// SPAHandler 返回 SPA 路由处理器
// 文件存在时直接返回，其余非API路径返回 index.html
func (s *StaticServer) SPAHandler(apiPrefix string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if strings.HasPrefix(path, apiPrefix) {
			http.NotFound(w, r)
			return
		}

		if info, err := os.Stat(filepath.Join(s.staticDir, filepath.FromSlash(path))); err == nil && !info.IsDir() {
			s.files.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(s.staticDir, "index.html"))
	})
}

// SetupStaticRoutes 未匹配的GET请求交给管理界面
// staticDir 为空或不存在时不注册
func SetupStaticRoutes(engine *gin.Engine, staticDir string) bool {
	if staticDir == "" {
		return false
	}
	if info, err := os.Stat(staticDir); err != nil || !info.IsDir() {
		return false
	}
	engine.NoRoute(gin.WrapH(NewStaticServer(staticDir).SPAHandler("/api/")))
	return true
}
