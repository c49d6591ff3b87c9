package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"furnistore/apperr"
)

func safeMethod(m string) bool {
	return m == http.MethodGet || m == http.MethodHead || m == http.MethodOptions
}

func normalizeOrigin(s string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(s), "/"))
}

// SameOrigin rejects state-changing browser requests coming from another
// site. Origin is checked first, then Referer, then Sec-Fetch-Site. Requests
// carrying none of them are not from a browser form and pass.
func SameOrigin(allowed []string, r *Responder) gin.HandlerFunc {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[normalizeOrigin(o)] = true
	}
	isAllowed := func(origin string) bool { return set[normalizeOrigin(origin)] }

	return func(c *gin.Context) {
		if safeMethod(c.Request.Method) {
			c.Next()
			return
		}

		ok := true
		if origin := c.GetHeader("Origin"); origin != "" {
			ok = isAllowed(origin)
		} else if ref := c.GetHeader("Referer"); ref != "" {
			u, err := url.Parse(ref)
			ok = err == nil && u.Scheme != "" && isAllowed(u.Scheme+"://"+u.Host)
		} else if site := c.GetHeader("Sec-Fetch-Site"); site != "" {
			ok = site == "same-origin" || site == "none"
		}

		if !ok {
			r.Fail(c, apperr.Forbidden("error.cross_origin", "Cross-site requests are not allowed"))
			return
		}
		c.Next()
	}
}

// BodyLimit caps request bodies at n bytes. Declared lengths over the limit
// are refused up front; streamed bodies fail when read past the limit.
func BodyLimit(n int64, r *Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > n {
			r.Fail(c, apperr.PayloadTooLarge())
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}
