package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"furnistore/services"
)

type WebhookController struct {
	Base
	Reconciler *services.Reconciler
}

// Payment answers 200 for processed and duplicate deliveries so the provider
// stops retrying, 400 for unverifiable ones and 500 when it should retry.
func (w *WebhookController) Payment(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		w.R.Fail(c, err)
		return
	}

	outcome, err := w.Reconciler.Handle(c.Request.Context(), payload, c.Request.Header)
	if err != nil {
		w.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": outcome == services.OutcomeDuplicate})
}
