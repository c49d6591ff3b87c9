package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"furnistore/middleware"
	"furnistore/services"
)

type OrderController struct {
	Base
	Orders *services.Orders
}

// Checkout creates a PENDING order and returns the hosted checkout session
// the browser should be redirected to.
func (o *OrderController) Checkout(c *gin.Context) {
	p, ok := o.principal(c)
	if !ok {
		return
	}
	var body services.CheckoutInput
	if !o.bind(c, &body) {
		return
	}

	res, err := o.Orders.Create(c.Request.Context(), p.UserID, middleware.Lang(c), body)
	if err != nil {
		o.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (o *OrderController) List(c *gin.Context) {
	p, ok := o.principal(c)
	if !ok {
		return
	}
	page, err := o.Orders.ListForUser(c.Request.Context(), p.UserID, queryInt(c, "page"), queryInt(c, "limit"))
	if err != nil {
		o.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": page})
}

func (o *OrderController) Get(c *gin.Context) {
	p, ok := o.principal(c)
	if !ok {
		return
	}
	order, err := o.Orders.GetForUser(c.Request.Context(), p.UserID, c.Param("id"))
	if err != nil {
		o.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": order})
}

func (o *OrderController) Cancel(c *gin.Context) {
	p, ok := o.principal(c)
	if !ok {
		return
	}
	if err := o.Orders.CancelForUser(c.Request.Context(), p.UserID, c.Param("id")); err != nil {
		o.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Order canceled"})
}
