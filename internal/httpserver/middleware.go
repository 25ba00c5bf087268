package httpserver

import (
	"context"
	"net/http"
	"strings"

	"storefront/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	userHeader  = "X-User-ID"
	adminHeader = "X-Admin-Key"
)

type ctxKey string

const userCtxKey ctxKey = "user_id"

// userMiddleware trusts the user id set by the upstream auth gateway.
func userMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(userHeader))
		id, err := uuid.Parse(raw)
		if raw == "" || err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(http.StatusUnauthorized, "unauthorized", "missing or invalid "+userHeader))
			return
		}
		ctx := context.WithValue(c.Request.Context(), userCtxKey, id.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func userFromCtx(ctx context.Context) string {
	id, _ := ctx.Value(userCtxKey).(string)
	return id
}

func adminMiddleware(keyHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(adminHeader)
		if keyHash == "" || key == "" || bcrypt.CompareHashAndPassword([]byte(keyHash), []byte(key)) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(http.StatusUnauthorized, "unauthorized", "invalid admin key"))
			return
		}
		c.Next()
	}
}

// pathIDs answers 404 for route ids that cannot name a stored row.
func pathIDs() gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, p := range c.Params {
			if _, err := uuid.Parse(p.Value); err != nil {
				c.AbortWithStatusJSON(http.StatusNotFound, errorBody(http.StatusNotFound, "not_found", "resource not found"))
				return
			}
		}
		c.Next()
	}
}

// bodyID rejects a malformed id sent in a request body. Empty values are left
// to the service, which reports them as required.
func bodyID(field, v string) error {
	if v == "" {
		return nil
	}
	if _, err := uuid.Parse(v); err != nil {
		return domain.Invalid(field, "must be a valid id")
	}
	return nil
}
