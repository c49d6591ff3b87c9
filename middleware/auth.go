package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"furnistore/apperr"
	"furnistore/logging"
	"furnistore/services"
)

func Auth(accounts *services.Accounts, r *Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := c.GetHeader("Authorization")
		if len(tokenString) > 7 && strings.EqualFold(tokenString[:7], "Bearer ") {
			tokenString = tokenString[7:]
		}
		tokenString = strings.TrimSpace(tokenString)
		if tokenString == "" {
			r.Fail(c, apperr.Unauthorized("auth.token_required", "Token required"))
			return
		}

		p, err := accounts.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			r.Fail(c, err)
			return
		}
		c.Set(principalKey, p)

		log := logging.FromContext(c.Request.Context(), r.Log).With(logging.Fields{UserID: p.UserID.Hex()}.Attrs()...)
		c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), log))
		c.Next()
	}
}

func Admin(r *Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok || !p.IsAdmin() {
			r.Fail(c, apperr.Forbidden("auth.admin_only", "Access denied: admin only"))
			return
		}
		c.Next()
	}
}

func CurrentPrincipal(c *gin.Context) (services.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return services.Principal{}, false
	}
	p, ok := v.(services.Principal)
	return p, ok
}
