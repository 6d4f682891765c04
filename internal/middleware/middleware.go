package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kayas881/Dental-system-management-sub000/internal/lab/policy"
	"go.uber.org/zap"
)

// Context keys set by JWTAuth.
const (
	ContextUserID = "user_id"
	ContextAuth   = "auth"
)

// Logger request log
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.String("user-agent", c.Request.UserAgent()),
			zap.Duration("latency", latency),
			zap.String("request_id", c.GetString("request_id")),
		}

		if auth, ok := Auth(c); ok {
			fields = append(fields, zap.String("user_id", auth.UserID), zap.String("role", auth.Role.String()))
		}

		if status >= 500 {
			logger.Error("Server error", fields...)
		} else if status >= 400 {
			logger.Warn("Client error", fields...)
		} else {
			logger.Info("Request", fields...)
		}
	}
}

// CORS allows any origin
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestID propagates or assigns X-Request-ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// JWTClaims issued by the identity provider. Role is the lab role; Roles is
// accepted for providers that send a list, in which case the highest wins.
type JWTClaims struct {
	UserID string   `json:"uid"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	Role   string   `json:"role"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// AuthContext resolves the claims to the caller identity. Role strings are
// normalized here and nowhere else.
func (c *JWTClaims) AuthContext() (policy.AuthContext, bool) {
	best := policy.Role("")
	candidates := append([]string{c.Role}, c.Roles...)
	for _, raw := range candidates {
		if raw == "" {
			continue
		}
		if role, err := policy.ParseRole(raw); err == nil && role.Rank() > best.Rank() {
			best = role
		}
	}
	auth := policy.AuthContext{UserID: c.UserID, Name: c.Name, Role: best}
	return auth, auth.Authenticated()
}

// JWTAuth bearer token authentication
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// download links carry the token as a query parameter
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    40100,
				"message": "Authorization is required",
			})
			c.Abort()
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))

		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    40102,
				"message": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok || !token.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    40103,
				"message": "Invalid token claims",
			})
			c.Abort()
			return
		}

		auth, ok := claims.AuthContext()
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"code":    40104,
				"message": "Token carries no known lab role",
			})
			c.Abort()
			return
		}

		c.Set(ContextUserID, auth.UserID)
		c.Set(ContextAuth, auth)
		c.Set("claims", claims)
		c.Next()
	}
}

// Auth returns the caller identity set by JWTAuth.
func Auth(c *gin.Context) (policy.AuthContext, bool) {
	v, exists := c.Get(ContextAuth)
	if !exists {
		return policy.AuthContext{}, false
	}
	auth, ok := v.(policy.AuthContext)
	return auth, ok
}

// RequireRole rejects callers ranked below min
func RequireRole(min policy.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth, ok := Auth(c)
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{
				"code":    40310,
				"message": "No role found",
			})
			c.Abort()
			return
		}

		if auth.Role.Rank() < min.Rank() {
			c.JSON(http.StatusForbidden, gin.H{
				"code":    40312,
				"message": "Role required: " + min.String(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
