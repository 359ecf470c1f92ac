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

// core/common/config.go
package common

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// DefaultConfigPath 默认配置文件路径
const DefaultConfigPath = "config/homeadmin.yaml"

// EnvPrefix 环境变量前缀，如 server.port -> HOMEADMIN_SERVER_PORT
const EnvPrefix = "HOMEADMIN_"

// 默认配置模板
const DefaultConfigTemplate = `# HomeAdmin Configuration File
# Format: YAML
server:
  # API Server IPv4 address
  # Default: 0.0.0.0
  ip_addr: 0.0.0.0
  # API Server port
  # Default: 8383
  port: 8383
  # GIN running mode (debug/release)
  gin_mode: release
  # URL prefix of the admin interface, used to build plugin web interface links
  url_root: ""
  # Maximum accepted request body (bytes)
  max_body_bytes: 1048576
  # Directory with the built admin UI (index.html), empty to disable
  static_dir: ""

host:
  # Base directory of the home-automation installation (contains plugins/ and etc/)
  base_dir: .
  # Default language for plugin descriptions (de/en)
  default_language: de
  # Plugin configuration file (.yaml, or legacy .conf which is read-only)
  plugin_conf: etc/plugin.yaml

database:
  # Database file path (relative to working directory)
  path: homeadmin.db

jwt:
  # JWT secret key for authentication
  secret_key: your-default-jwt-secret-key-change-this-in-production
  # Access token expiration (minutes)
  access_token_expiration: 30
  # Refresh token expiration (days)
  refresh_token_expiration: 7

api:
  rate_limit_enabled: true
  # Requests per window per client IP
  rate_limit: 300
  rate_limit_window_seconds: 60
  log_enabled: true

logging:
  # DEBUG, INFO, WARN, ERROR
  level: INFO
  # json or text
  format: text
  dir: log
`

var (
	globalConfig *koanf.Koanf
	configPath   = DefaultConfigPath
	configMu     sync.RWMutex
)

// flagKeys 命令行参数名到配置键的映射
var flagKeys = map[string]string{
	"port":    "server.port",
	"log-dir": "logging.dir",
}

// templateProvider 将默认配置模板作为koanf的数据源
type templateProvider struct{}

// ReadBytes 返回默认模板内容
func (templateProvider) ReadBytes() ([]byte, error) {
	return []byte(DefaultConfigTemplate), nil
}

// Read 模板只能以字节形式读取
func (templateProvider) Read() (map[string]interface{}, error) {
	return nil, oops.Code(CodeConfigRead).Errorf("template provider does not support Read")
}

// SetConfigPath 设置配置文件路径
func SetConfigPath(path string) {
	configMu.Lock()
	defer configMu.Unlock()
	if path != "" {
		configPath = path
	}
}

// GetConfigFilePath 获取配置文件路径
func GetConfigFilePath() string {
	configMu.RLock()
	defer configMu.RUnlock()
	return configPath
}

// LoadConfig 加载配置文件
// 加载顺序: 默认模板 -> 配置文件 -> 命令行参数（flags可为nil）
// 配置文件不存在时写入默认模板
func LoadConfig(flags *pflag.FlagSet) error {
	path := GetConfigFilePath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return oops.Code(CodeConfigWrite).With("path", path).Wrap(err)
		}
		if err := os.WriteFile(path, []byte(DefaultConfigTemplate), 0644); err != nil {
			return oops.Code(CodeConfigWrite).With("path", path).Wrap(err)
		}
	}

	k := koanf.New(".")
	if err := k.Load(templateProvider{}, yaml.Parser()); err != nil {
		return oops.Code(CodeConfigRead).Wrap(err)
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code(CodeConfigRead).With("path", path).Wrap(err)
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return oops.Code(CodeConfigRead).Wrap(err)
		}
	}

	configMu.Lock()
	globalConfig = k
	configMu.Unlock()
	return nil
}

// ReloadConfig 重载配置
func ReloadConfig() error {
	return LoadConfig(nil)
}

// envKey 计算配置项对应的环境变量名
func envKey(section, key string) string {
	return EnvPrefix + strings.ToUpper(section+"_"+key)
}

// GetConfig 获取配置值
// 环境变量优先于配置文件
func GetConfig(section, key string) string {
	if envValue := os.Getenv(envKey(section, key)); envValue != "" {
		return envValue
	}

	configMu.RLock()
	k := globalConfig
	configMu.RUnlock()
	if k == nil {
		return ""
	}
	return k.String(section + "." + key)
}

// GetConfigInt 获取整数类型的配置值
func GetConfigInt(section, key string, defaultVal int) int {
	value := GetConfig(section, key)
	if value == "" {
		return defaultVal
	}
	return parseIntDefault(value, defaultVal)
}

// GetConfigBool 获取布尔类型的配置值
func GetConfigBool(section, key string, defaultVal bool) bool {
	value := GetConfig(section, key)
	if value == "" {
		return defaultVal
	}
	return parseBoolDefault(value, defaultVal)
}

// GetConfigPath 获取路径类型的配置值
// 相对路径以baseDir为基准
func GetConfigPath(section, key, baseDir, defaultPath string) string {
	path := GetConfig(section, key)
	if path == "" {
		path = defaultPath
	}
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	return path
}

// GetAllConfig 获取所有配置（扁平键）
func GetAllConfig() map[string]interface{} {
	configMu.RLock()
	defer configMu.RUnlock()
	if globalConfig == nil {
		return map[string]interface{}{}
	}
	return globalConfig.All()
}
