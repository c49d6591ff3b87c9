package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"furnistore/apperr"
	"furnistore/i18n"
	"furnistore/logging"
)

const (
	langKey      = "lang"
	principalKey = "principal"
)

// Responder writes error responses as {"message": ..., "fields": ...} with
// the message translated into the request's language.
type Responder struct {
	Bundle     *i18n.Bundle
	Production bool
	Log        *slog.Logger
}

func (r *Responder) Message(c *gin.Context, key, fallback string, params map[string]any) string {
	if r.Bundle == nil || key == "" {
		return fallback
	}
	msg, err := r.Bundle.Render(Lang(c), key, params)
	if err != nil || msg == "" {
		return fallback
	}
	return msg
}

func (r *Responder) Fail(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		err = apperr.PayloadTooLarge()
	}
	e := apperr.From(err)
	status := e.Kind.Status()
	log := logging.FromContext(c.Request.Context(), r.Log)

	body := gin.H{}
	if e.Kind == apperr.KindUnexpected {
		log.Error("request failed", "path", c.FullPath(), "error", err)
		msg := r.Message(c, e.Key, e.Message, nil)
		if !r.Production && e.Err != nil {
			msg = msg + ": " + e.Err.Error()
		}
		body["message"] = msg
	} else {
		if e.Err != nil {
			log.Info("request rejected", "path", c.FullPath(), "status", status, "error", e.Err)
		}
		body["message"] = r.Message(c, e.Key, e.Message, e.Params)
		if len(e.Fields) > 0 {
			body["fields"] = e.Fields
		}
	}
	c.AbortWithStatusJSON(status, body)
}

// Locale stores the best supported language for Accept-Language.
func Locale(bundle *i18n.Bundle) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(langKey, bundle.Match(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

func Lang(c *gin.Context) string {
	if lang := c.GetString(langKey); lang != "" {
		return lang
	}
	return i18n.DefaultLang
}
