package middleware

import (
	"context"
	"fmt"
	"strings"

	appErr "codearena/pkg/errors"
	"codearena/pkg/utils/contextkey"
	"codearena/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	authorizationHeader = "Authorization"
	bearerPrefix        = "Bearer "

	userIDContextKey = "user_id"
)

// AuthConfig controls bearer token verification. Tokens are issued by the
// account service; this middleware only verifies and extracts the subject.
type AuthConfig struct {
	Secret   string `yaml:"secret"`
	Issuer   string `yaml:"issuer"`
	Optional bool   `yaml:"optional"`
}

// AuthMiddleware verifies the bearer token and places the user id in context.
// With Optional set, requests without a token pass through anonymously.
func AuthMiddleware(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader(authorizationHeader))
		if header == "" {
			if cfg.Optional {
				c.Next()
				return
			}
			response.ErrorWithCode(c, appErr.Unauthorized, "missing bearer token")
			c.Abort()
			return
		}
		if !strings.HasPrefix(header, bearerPrefix) {
			response.ErrorWithCode(c, appErr.Unauthorized, "malformed authorization header")
			c.Abort()
			return
		}

		userID, err := parseSubject(strings.TrimPrefix(header, bearerPrefix), cfg)
		if err != nil {
			response.ErrorWithCode(c, appErr.Unauthorized, "invalid bearer token")
			c.Abort()
			return
		}

		c.Set(userIDContextKey, userID)
		ctx := context.WithValue(c.Request.Context(), contextkey.UserID, userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func parseSubject(tokenString string, cfg AuthConfig) (string, error) {
	parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, parserOpts...)
	if err != nil {
		return "", err
	}
	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return subject, nil
}

// UserIDFromContext returns the authenticated user id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextkey.UserID).(string)
	return userID, ok && userID != ""
}
