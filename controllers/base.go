// Package controllers holds the gin handlers. Handlers decode requests, call
// a service and shape the JSON response; business rules live in services.
package controllers

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"furnistore/apperr"
	"furnistore/middleware"
	"furnistore/services"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

type Base struct {
	R *middleware.Responder
}

// bind decodes the JSON body into v and reports false after writing the
// error response.
func (b Base) bind(c *gin.Context, v any) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &tooLarge):
		b.R.Fail(c, err)
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = "failed " + fe.Tag()
		}
		b.R.Fail(c, apperr.Validation("error.validation", "Some fields are invalid").WithFields(fields))
	default:
		b.R.Fail(c, apperr.Validation("error.invalid_body", "Invalid request body"))
	}
	return false
}

func (b Base) principal(c *gin.Context) (services.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		b.R.Fail(c, apperr.Unauthorized("auth.token_required", "Token required"))
	}
	return p, ok
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}
