package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"furnistore/notify"
)

type Relayer interface {
	RelayPending(ctx context.Context, limit int) (notify.RelayResult, error)
}

type AdminOrderController struct {
	OrderController
	Relay Relayer
}

func (o *AdminOrderController) List(c *gin.Context) {
	page, err := o.Orders.ListAll(c.Request.Context(), c.Query("status"), queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		o.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": page})
}

func (o *AdminOrderController) Get(c *gin.Context) {
	order, err := o.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		o.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": order})
}

func (o *AdminOrderController) UpdateStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if !o.bind(c, &body) {
		return
	}

	order, err := o.Orders.SetStatus(c.Request.Context(), c.Param("id"), body.Status)
	if err != nil {
		o.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "data": order})
}

func (o *AdminOrderController) Cancel(c *gin.Context) {
	if err := o.Orders.CancelAdmin(c.Request.Context(), c.Param("id")); err != nil {
		o.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order canceled"})
}

// RelayOutbox retries confirmation emails that could not be sent when the
// payment was recorded.
func (o *AdminOrderController) RelayOutbox(c *gin.Context) {
	limit := queryInt(c, "limit")
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	res, err := o.Relay.RelayPending(c.Request.Context(), limit)
	if err != nil {
		o.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Outbox relayed", "data": res})
}
