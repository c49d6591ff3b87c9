package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"furnistore/models"
)

func (p *ProductController) Create(c *gin.Context) {
	var product models.Product
	if !p.bind(c, &product) {
		return
	}

	if err := p.Catalog.Create(c.Request.Context(), &product); err != nil {
		p.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Product created", "data": product})
}

func (p *ProductController) ListAdmin(c *gin.Context) {
	products, err := p.Catalog.ListAdmin(c.Request.Context(), productQuery(c))
	if err != nil {
		p.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": products})
}

func (p *ProductController) Update(c *gin.Context) {
	var body models.ProductUpdate
	if !p.bind(c, &body) {
		return
	}

	product, err := p.Catalog.Update(c.Request.Context(), c.Param("id"), body)
	if err != nil {
		p.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product updated", "data": product})
}

func (p *ProductController) Delete(c *gin.Context) {
	if err := p.Catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		p.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted"})
}
