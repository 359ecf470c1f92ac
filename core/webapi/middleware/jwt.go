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
// core/webapi/middleware/jwt.go

package middleware

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"
	"unicode"

	"HomeAdmin/core/common"
	"HomeAdmin/core/database"

	"github.com/golang-jwt/jwt/v4"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// CodeTokenInvalid 令牌无效错误码
const CodeTokenInvalid = "TOKEN_INVALID"

const (
	// 最小密钥长度
	minSecretKeyLength = 32
	tokenIssuer        = "HomeAdmin"
)

// Claims 自定义JWT声明
type Claims struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// RefreshTokenInfo 刷新令牌信息
type RefreshTokenInfo struct {
	UserID    uint
	ExpiresAt int64
}

// JWTManager 负责签发和校验令牌
type JWTManager struct {
	logger                 *common.Logger
	mu                     sync.RWMutex
	jwtKey                 []byte
	RefreshTokens          map[string]RefreshTokenInfo
	AccessTokenExpiration  time.Duration
	RefreshTokenExpiration time.Duration
}

var (
	jwtManager   *JWTManager
	jwtManagerMu sync.Mutex
)

// GetJWTManager 获取JWT管理器实例，首次调用时从配置创建
func GetJWTManager() *JWTManager {
	jwtManagerMu.Lock()
	defer jwtManagerMu.Unlock()
	if jwtManager == nil {
		jwtManager = newJWTManagerFromConfig()
	}
	return jwtManager
}

// SetJWTManager 替换全局JWT管理器
func SetJWTManager(j *JWTManager) {
	jwtManagerMu.Lock()
	jwtManager = j
	jwtManagerMu.Unlock()
}

// NewJWTManager 创建JWT管理器
// 参数:
//
//	secret: 签名密钥
//	accessExp: 访问令牌有效期
//	refreshExp: 刷新令牌有效期
func NewJWTManager(secret string, accessExp, refreshExp time.Duration) *JWTManager {
	return &JWTManager{
		logger:                 common.NewLogger().With("component", "jwt"),
		jwtKey:                 []byte(secret),
		RefreshTokens:          make(map[string]RefreshTokenInfo),
		AccessTokenExpiration:  accessExp,
		RefreshTokenExpiration: refreshExp,
	}
}

func newJWTManagerFromConfig() *JWTManager {
	j := NewJWTManager("", 0, 0)
	j.ReloadConfig()
	return j
}

// ReloadConfig 重新加载JWT相关配置
func (j *JWTManager) ReloadConfig() {
	secret := common.GetConfig("jwt", "secret_key")
	if !validateSecretKey(secret) {
		j.logger.Warn("JWT密钥强度不足，建议使用至少32字节且包含多种字符的随机字符串")
		if len(secret) < minSecretKeyLength {
			secret = generateStrongSecret()
			j.logger.Warn("已生成临时强密钥，重启后已签发的令牌将失效")
		}
	}

	accessMinutes := common.GetConfigInt("jwt", "access_token_expiration", 30)
	if accessMinutes <= 0 {
		accessMinutes = 30
	}
	refreshDays := common.GetConfigInt("jwt", "refresh_token_expiration", 7)
	if refreshDays <= 0 {
		refreshDays = 7
	}

	j.mu.Lock()
	j.jwtKey = []byte(secret)
	j.AccessTokenExpiration = time.Duration(accessMinutes) * time.Minute
	j.RefreshTokenExpiration = time.Duration(refreshDays) * 24 * time.Hour
	j.mu.Unlock()
}

// validateSecretKey 验证密钥强度：长度足够且至少包含三类字符
func validateSecretKey(secret string) bool {
	if len(secret) < minSecretKeyLength {
		return false
	}
	var lower, upper, digit, other bool
	for _, r := range secret {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			other = true
		}
	}
	classes := 0
	for _, ok := range []bool{lower, upper, digit, other} {
		if ok {
			classes++
		}
	}
	return classes >= 3
}

// generateStrongSecret 生成随机强密钥
func generateStrongSecret() string {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%^&*()_+"
	secret := make([]byte, minSecretKeyLength+16)
	limit := big.NewInt(int64(len(charset)))
	for i := range secret {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			// crypto/rand 不可用时退回ULID熵
			return ulid.Make().String() + ulid.Make().String()
		}
		secret[i] = charset[n.Int64()]
	}
	return string(secret)
}

// GetUserFromToken 解析访问令牌
func (j *JWTManager) GetUserFromToken(tokenString string) (*Claims, error) {
	j.mu.RLock()
	key := j.jwtKey
	j.mu.RUnlock()

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, oops.Code(CodeTokenInvalid).Errorf("不支持的签名算法: %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, oops.Code(CodeTokenInvalid).Wrap(err)
	}
	if !token.Valid {
		return nil, oops.Code(CodeTokenInvalid).Errorf("无效的token")
	}
	return claims, nil
}

// GenerateToken 生成访问令牌和刷新令牌
func (j *JWTManager) GenerateToken(user *database.User) (string, string, error) {
	j.mu.RLock()
	key := j.jwtKey
	accessExp := j.AccessTokenExpiration
	j.mu.RUnlock()

	now := time.Now()
	accessClaims := &Claims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(accessExp)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   "access token",
			ID:        ulid.Make().String(),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(key)
	if err != nil {
		return "", "", oops.With("user", user.Username).Wrapf(err, "签名访问令牌失败")
	}

	return accessToken, j.GenerateRefreshToken(user.ID), nil
}

// GenerateRefreshToken 生成并保存刷新令牌
func (j *JWTManager) GenerateRefreshToken(userID uint) string {
	token := ulid.Make().String()

	j.mu.Lock()
	j.RefreshTokens[token] = RefreshTokenInfo{
		UserID:    userID,
		ExpiresAt: time.Now().Add(j.RefreshTokenExpiration).Unix(),
	}
	j.mu.Unlock()

	return token
}

// ValidateRefreshToken 校验刷新令牌，过期的令牌会被移除
func (j *JWTManager) ValidateRefreshToken(refreshToken string) (uint, bool) {
	if refreshToken == "" {
		return 0, false
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	info, exists := j.RefreshTokens[refreshToken]
	if !exists {
		return 0, false
	}
	if time.Now().Unix() >= info.ExpiresAt {
		delete(j.RefreshTokens, refreshToken)
		return 0, false
	}
	return info.UserID, true
}

// RevokeRefreshToken 作废刷新令牌
func (j *JWTManager) RevokeRefreshToken(refreshToken string) {
	j.mu.Lock()
	delete(j.RefreshTokens, refreshToken)
	j.mu.Unlock()
}

// CleanupExpiredTokens 清理过期的刷新令牌，返回清理数量
func (j *JWTManager) CleanupExpiredTokens() int {
	now := time.Now().Unix()
	removed := 0

	j.mu.Lock()
	for token, info := range j.RefreshTokens {
		if now >= info.ExpiresAt {
			delete(j.RefreshTokens, token)
			removed++
		}
	}
	j.mu.Unlock()

	if removed > 0 {
		j.logger.Debug("已清理 %d 个过期刷新令牌", removed)
	}
	return removed
}

// TokenResponse 令牌响应结构体
type TokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         interface{} `json:"user"`
	ExpiresIn    int64       `json:"expires_in"` // 访问令牌过期时间（秒）
}

// RefreshTokenRequest 刷新令牌请求结构体
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ValidateRefreshToken 使用全局管理器校验刷新令牌
func ValidateRefreshToken(refreshToken string) (uint, bool) {
	return GetJWTManager().ValidateRefreshToken(refreshToken)
}

// StartCleanup 定期清理过期刷新令牌，ctx取消后退出
func (j *JWTManager) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.CleanupExpiredTokens()
			}
		}
	}()
}
