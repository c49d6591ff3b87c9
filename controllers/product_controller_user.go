package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"furnistore/models"
	"furnistore/services"
)

type ProductController struct {
	Base
	Catalog *services.Catalog
}

func productQuery(c *gin.Context) models.ProductQuery {
	return models.ProductQuery{
		Category: c.Query("category"),
		Search:   c.Query("q"),
		Page:     queryInt(c, "page"),
		Limit:    queryInt(c, "limit"),
	}
}

func (p *ProductController) List(c *gin.Context) {
	products, err := p.Catalog.List(c.Request.Context(), productQuery(c))
	if err != nil {
		p.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": products})
}

func (p *ProductController) Get(c *gin.Context) {
	product, err := p.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		p.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": product})
}

func (p *ProductController) Categories(c *gin.Context) {
	categories, err := p.Catalog.Categories(c.Request.Context())
	if err != nil {
		p.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Fetch success", "data": categories})
}
