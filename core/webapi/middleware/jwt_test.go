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
// core/webapi/middleware/jwt_test.go
// JWT管理器测试

package middleware

import (
	"testing"
	"time"

	"HomeAdmin/core/common"
	"HomeAdmin/core/database"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-jwt-testing-12345"

func newTestJWTManager(accessExp, refreshExp time.Duration) *JWTManager {
	return NewJWTManager(testSecret, accessExp, refreshExp)
}

// TestValidateSecretKey 测试密钥强度验证
func TestValidateSecretKey(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		expected bool
	}{
		{"有效强密钥", "ThisIsAVeryStrongSecretKey123!@#abcdef", true},
		{"有效中等密钥-含特殊字符", "MySecretKey1234567890123456!@#$%", true},
		{"过短密钥", "short", false},
		{"仅小写字母-32字符", "abcdefghijklmnopqrstuvwxyzabcdef", false},
		{"仅数字-32字符", "12345678901234567890123456789012", false},
		{"空密钥", "", false},
		{"混合类型密钥-32字符", "Abc123!@#Def456$%^Ghi789&*()Jkl012", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, validateSecretKey(tt.secret))
		})
	}
}

// TestGenerateStrongSecret 测试强密钥生成
func TestGenerateStrongSecret(t *testing.T) {
	secret1 := generateStrongSecret()
	secret2 := generateStrongSecret()

	assert.GreaterOrEqual(t, len(secret1), minSecretKeyLength)
	assert.NotEqual(t, secret1, secret2, "两次生成的密钥不应该相同")
}

// TestJWTManagerGenerateToken 测试JWT令牌生成
func TestJWTManagerGenerateToken(t *testing.T) {
	jwtMgr := newTestJWTManager(30*time.Minute, 7*24*time.Hour)
	user := &database.User{ID: 3, Username: "testuser"}

	accessToken, refreshToken, err := jwtMgr.GenerateToken(user)
	require.NoError(t, err)
	assert.NotEmpty(t, accessToken)
	assert.NotEmpty(t, refreshToken)
	assert.Contains(t, jwtMgr.RefreshTokens, refreshToken)
}

// TestJWTManagerGetUserFromToken 测试从令牌获取用户信息
func TestJWTManagerGetUserFromToken(t *testing.T) {
	jwtMgr := newTestJWTManager(30*time.Minute, 7*24*time.Hour)
	user := &database.User{ID: 3, Username: "testuser"}

	accessToken, _, err := jwtMgr.GenerateToken(user)
	require.NoError(t, err)

	claims, err := jwtMgr.GetUserFromToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Username, claims.Username)
	assert.Equal(t, tokenIssuer, claims.Issuer)
}

// TestJWTManagerGetUserFromToken_Concurrent 测试并发解析互不干扰
func TestJWTManagerGetUserFromToken_Concurrent(t *testing.T) {
	jwtMgr := newTestJWTManager(30*time.Minute, time.Hour)
	tokenA, _, err := jwtMgr.GenerateToken(&database.User{ID: 1, Username: "alice"})
	require.NoError(t, err)
	tokenB, _, err := jwtMgr.GenerateToken(&database.User{ID: 2, Username: "bob"})
	require.NoError(t, err)

	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func(i int) {
			defer func() { done <- struct{}{} }()
			token, want := tokenA, "alice"
			if i%2 == 1 {
				token, want = tokenB, "bob"
			}
			claims, err := jwtMgr.GetUserFromToken(token)
			if assert.NoError(t, err) {
				assert.Equal(t, want, claims.Username)
			}
		}(i)
	}
	for i := 0; i < 20; i++ {
		<-done
	}
}

// TestJWTManagerGetUserFromToken_InvalidToken 测试无效令牌
func TestJWTManagerGetUserFromToken_InvalidToken(t *testing.T) {
	jwtMgr := newTestJWTManager(30*time.Minute, time.Hour)
	other := NewJWTManager("another-secret-key-used-for-signing-xyz", 30*time.Minute, time.Hour)
	foreign, _, err := other.GenerateToken(&database.User{ID: 1, Username: "x"})
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"空令牌", ""},
		{"无效格式", "invalid-token"},
		{"随机字符串", "abc.def.ghi"},
		{"其他密钥签名", foreign},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := jwtMgr.GetUserFromToken(tt.token)
			require.Error(t, err)
			assert.True(t, common.HasCode(err, CodeTokenInvalid))
		})
	}
}

// TestJWTManagerRejectsNoneAlgorithm 测试拒绝非HMAC签名
func TestJWTManagerRejectsNoneAlgorithm(t *testing.T) {
	jwtMgr := newTestJWTManager(30*time.Minute, time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1, Username: "admin"})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = jwtMgr.GetUserFromToken(signed)
	assert.Error(t, err)
}

// TestJWTManagerExpiredToken 测试过期令牌
func TestJWTManagerExpiredToken(t *testing.T) {
	jwtMgr := newTestJWTManager(-1*time.Hour, time.Hour)

	accessToken, _, err := jwtMgr.GenerateToken(&database.User{ID: 1, Username: "testuser"})
	require.NoError(t, err)

	_, err = jwtMgr.GetUserFromToken(accessToken)
	assert.Error(t, err, "过期令牌应该返回错误")
}

// TestValidateRefreshToken 测试刷新令牌验证
func TestValidateRefreshToken(t *testing.T) {
	jwtMgr := newTestJWTManager(30*time.Minute, 7*24*time.Hour)
	SetJWTManager(jwtMgr)
	t.Cleanup(func() { SetJWTManager(nil) })

	userID := uint(1)
	refreshToken := jwtMgr.GenerateRefreshToken(userID)

	tests := []struct {
		name       string
		token      string
		wantUserID uint
		wantValid  bool
	}{
		{"有效刷新令牌", refreshToken, userID, true},
		{"无效刷新令牌", "invalid-refresh-token", 0, false},
		{"空刷新令牌", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, valid := ValidateRefreshToken(tt.token)
			assert.Equal(t, tt.wantValid, valid)
			assert.Equal(t, tt.wantUserID, gotID)
		})
	}
}

// TestValidateRefreshToken_Expired 测试过期刷新令牌
func TestValidateRefreshToken_Expired(t *testing.T) {
	jwtMgr := newTestJWTManager(30*time.Minute, -1*time.Hour)

	refreshToken := jwtMgr.GenerateRefreshToken(1)
	userID, valid := jwtMgr.ValidateRefreshToken(refreshToken)
	assert.False(t, valid, "过期刷新令牌应该无效")
	assert.Zero(t, userID)
	assert.NotContains(t, jwtMgr.RefreshTokens, refreshToken)
}

// TestRevokeRefreshToken 测试作废刷新令牌
func TestRevokeRefreshToken(t *testing.T) {
	jwtMgr := newTestJWTManager(30*time.Minute, time.Hour)
	refreshToken := jwtMgr.GenerateRefreshToken(5)

	jwtMgr.RevokeRefreshToken(refreshToken)
	_, valid := jwtMgr.ValidateRefreshToken(refreshToken)
	assert.False(t, valid)
}

// TestCleanupExpiredTokens 测试清理过期令牌
func TestCleanupExpiredTokens(t *testing.T) {
	jwtMgr := newTestJWTManager(30*time.Minute, 7*24*time.Hour)
	jwtMgr.RefreshTokens["expired_token"] = RefreshTokenInfo{
		UserID:    1,
		ExpiresAt: time.Now().Add(-1 * time.Hour).Unix(),
	}
	jwtMgr.RefreshTokens["valid_token"] = RefreshTokenInfo{
		UserID:    2,
		ExpiresAt: time.Now().Add(1 * time.Hour).Unix(),
	}

	assert.Equal(t, 1, jwtMgr.CleanupExpiredTokens())
	assert.NotContains(t, jwtMgr.RefreshTokens, "expired_token")
	assert.Contains(t, jwtMgr.RefreshTokens, "valid_token")
}
