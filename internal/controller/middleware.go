package controller

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Freeeeeet/onlycation/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	requestIDKey = "request_id"
	actorKey     = "actor"
)

// RequestID принимает X-Request-ID клиента или выдаёт новый
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Set(requestIDKey, rid)
		c.Header("X-Request-ID", rid)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

// AccessLog логирует каждый запрос через zap
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("request_id", requestID(c)),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if actor, ok := actorFrom(c); ok {
			fields = append(fields, zap.Int64("user_id", actor.UserID))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("HTTP request", fields...)
			return
		}
		logger.Info("HTTP request", fields...)
	}
}

// Claims JWT с ролью; Subject это id пользователя
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken подписывает HS256 токен для актора
func IssueToken(secret string, actor model.Actor, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(actor.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken проверяет подпись и срок, возвращает актора
func ParseToken(secret, raw string) (model.Actor, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return model.Actor{}, err
	}
	if !token.Valid {
		return model.Actor{}, jwt.ErrTokenInvalidClaims
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return model.Actor{}, jwt.ErrTokenInvalidSubject
	}

	role := model.Role(claims.Role)
	switch role {
	case model.RoleStudent, model.RoleTeacher, model.RoleAdmin:
	default:
		return model.Actor{}, jwt.ErrTokenInvalidClaims
	}

	return model.Actor{UserID: userID, Role: role}, nil
}

// Auth требует Bearer токен и кладёт актора в контекст
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			abortWithStatus(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		actor, err := ParseToken(secret, strings.TrimSpace(raw))
		if err != nil {
			abortWithStatus(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireRoles пропускает только перечисленные роли
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			abortWithStatus(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		abortWithStatus(c, http.StatusForbidden, "forbidden", "role not allowed")
	}
}

func actorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

// mustActor только для маршрутов за Auth
func mustActor(c *gin.Context) model.Actor {
	actor, _ := actorFrom(c)
	return actor
}
