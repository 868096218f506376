package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Ключи контекста, которые выставляет API key middleware
const (
	ContextAPIKeyValidated = "api_key_validated"
	ContextAPIKeyName      = "api_key_name"
)

// APIKeyConfig конфигурация для API key аутентификации
type APIKeyConfig struct {
	// ValidKeys карта валидных API ключей к их описаниям
	ValidKeys map[string]string
	// HeaderName имя заголовка для API ключа (по умолчанию: X-API-Key)
	HeaderName string
	// Optional: запрос без ключа проходит дальше и проверяется сессией
	Optional bool
}

type APIKey struct {
	config APIKeyConfig
}

func NewAPIKey(config APIKeyConfig) *APIKey {
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	return &APIKey{config: config}
}

// Middleware принимает ключ из заголовка, query api_key или Authorization: Bearer.
// Валидный ключ приравнивается к сессии администратора (для автоматизации).
func (ak *APIKey) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := ak.extract(c)

		if apiKey == "" {
			if ak.config.Optional {
				c.Set(ContextAPIKeyValidated, false)
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "missing_api_key",
				"message": "API 키가 필요합니다. X-API-Key 헤더, api_key 파라미터 또는 Authorization: Bearer 로 전달하세요.",
			})
			return
		}

		name, ok := ak.lookup(apiKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "invalid_api_key",
				"message": "유효하지 않은 API 키입니다.",
			})
			return
		}

		c.Set(ContextAPIKeyValidated, true)
		c.Set(ContextAPIKeyName, name)
		c.Next()
	}
}

func (ak *APIKey) extract(c *gin.Context) string {
	if key := c.GetHeader(ak.config.HeaderName); key != "" {
		return key
	}
	if key := c.Query("api_key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// lookup сравнивает за постоянное время, перебирая все ключи
func (ak *APIKey) lookup(apiKey string) (string, bool) {
	var (
		found bool
		name  string
	)
	for validKey, keyName := range ak.config.ValidKeys {
		if subtle.ConstantTimeCompare([]byte(apiKey), []byte(validKey)) == 1 {
			found = true
			name = keyName
		}
	}
	return name, found
}

func RequireAPIKey(validKeys map[string]string) gin.HandlerFunc {
	return NewAPIKey(APIKeyConfig{ValidKeys: validKeys}).Middleware()
}

func OptionalAPIKey(validKeys map[string]string) gin.HandlerFunc {
	return NewAPIKey(APIKeyConfig{ValidKeys: validKeys, Optional: true}).Middleware()
}

func IsAPIKeyValidated(c *gin.Context) bool {
	validated, ok := c.Get(ContextAPIKeyValidated)
	if !ok {
		return false
	}
	v, _ := validated.(bool)
	return v
}

// APIKeyName: имя ключа, пустое если запрос пришёл без ключа
func APIKeyName(c *gin.Context) string {
	return c.GetString(ContextAPIKeyName)
}
