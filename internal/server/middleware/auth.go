package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nulzo/misan-console/internal/store"
	"github.com/nulzo/misan-console/pkg/api"
)

// ActorKey is the gin context key holding the authenticated admin.
const ActorKey = "actor"

// AdminAuth accepts a static admin key as a Bearer token. The acting admin is
// identified by a short hash of the key and stored on the request context.
func AdminAuth(keys []string) gin.HandlerFunc {
	digests := make([][32]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			digests = append(digests, sha256.Sum256([]byte(k)))
		}
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, api.UnauthorizedError("Missing Authorization header"))
			return
		}

		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			abort(c, api.UnauthorizedError("Invalid Authorization header format"))
			return
		}

		sum := sha256.Sum256([]byte(strings.TrimSpace(token)))
		matched := false
		for _, d := range digests {
			if subtle.ConstantTimeCompare(sum[:], d[:]) == 1 {
				matched = true
			}
		}
		if !matched {
			abort(c, api.UnauthorizedError("Invalid admin key"))
			return
		}

		actor := "admin:" + hex.EncodeToString(sum[:4])
		c.Set(ActorKey, actor)
		c.Request = c.Request.WithContext(store.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}

func abort(c *gin.Context, p *api.Problem) {
	p.Instance = c.Request.URL.Path
	c.AbortWithStatusJSON(p.Status, p)
}
