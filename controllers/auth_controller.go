package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"furnistore/services"
)

type AuthController struct {
	Base
	Accounts *services.Accounts
}

func (a *AuthController) Register(c *gin.Context) {
	var input services.RegisterInput
	if !a.bind(c, &input) {
		return
	}

	user, err := a.Accounts.Register(c.Request.Context(), input)
	if err != nil {
		a.R.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user": gin.H{
			"id":    user.ID.Hex(),
			"name":  user.Name,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}

func (a *AuthController) Login(c *gin.Context) {
	var input services.LoginInput
	if !a.bind(c, &input) {
		return
	}

	res, err := a.Accounts.Login(c.Request.Context(), input)
	if err != nil {
		a.R.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     res.Token,
		"expiresAt": res.ExpiresAt,
		"user": gin.H{
			"id":    res.User.ID.Hex(),
			"name":  res.User.Name,
			"email": res.User.Email,
			"role":  res.User.Role,
		},
	})
}

func (a *AuthController) Logout(c *gin.Context) {
	p, ok := a.principal(c)
	if !ok {
		return
	}
	if err := a.Accounts.Logout(c.Request.Context(), p); err != nil {
		a.R.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}
