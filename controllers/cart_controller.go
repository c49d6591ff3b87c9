package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"furnistore/services"
)

type CartController struct {
	Base
	Carts *services.Carts
}

func (cc *CartController) Get(c *gin.Context) {
	p, ok := cc.principal(c)
	if !ok {
		return
	}
	view, err := cc.Carts.Get(c.Request.Context(), p.UserID)
	if err != nil {
		cc.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": view})
}

func (cc *CartController) Add(c *gin.Context) {
	p, ok := cc.principal(c)
	if !ok {
		return
	}
	var body services.ItemInput
	if !cc.bind(c, &body) {
		return
	}

	line, err := cc.Carts.Add(c.Request.Context(), p.UserID, body)
	if err != nil {
		cc.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Added to cart", "data": line})
}

func (cc *CartController) Update(c *gin.Context) {
	p, ok := cc.principal(c)
	if !ok {
		return
	}
	var body struct {
		Quantity int `json:"quantity"`
	}
	if !cc.bind(c, &body) {
		return
	}

	line, err := cc.Carts.Update(c.Request.Context(), p.UserID, c.Param("productId"), body.Quantity)
	if err != nil {
		cc.R.Fail(c, err)
		return
	}
	if line == nil {
		c.JSON(http.StatusOK, gin.H{"message": "Product removed from cart"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart updated", "data": line})
}

func (cc *CartController) Remove(c *gin.Context) {
	p, ok := cc.principal(c)
	if !ok {
		return
	}
	if err := cc.Carts.Remove(c.Request.Context(), p.UserID, c.Param("productId")); err != nil {
		cc.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product removed from cart", "productId": c.Param("productId")})
}

// Replace syncs the browser's local cart to the server.
func (cc *CartController) Replace(c *gin.Context) {
	p, ok := cc.principal(c)
	if !ok {
		return
	}
	var body services.ReplaceCartInput
	if !cc.bind(c, &body) {
		return
	}

	view, err := cc.Carts.Replace(c.Request.Context(), p.UserID, body)
	if err != nil {
		cc.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Cart saved", "data": view})
}
