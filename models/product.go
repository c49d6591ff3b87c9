package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Product struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"name" binding:"required,max=200"`
	Description string             `bson:"description" json:"description" binding:"required"`
	Category    string             `bson:"category" json:"category" binding:"required,max=64"`
	Price       decimal.Decimal    `bson:"price" json:"price"`
	Stock       int                `bson:"stock" json:"stock" binding:"gte=0"`
	ImageURL    string             `bson:"imageUrl,omitempty" json:"imageUrl,omitempty" binding:"omitempty,url"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type ProductUpdate struct {
	Name        *string          `json:"name" binding:"omitempty,max=200"`
	Description *string          `json:"description"`
	Category    *string          `json:"category" binding:"omitempty,max=64"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" binding:"omitempty,gte=0"`
	ImageURL    *string          `json:"imageUrl" binding:"omitempty,url"`
}

type ProductQuery struct {
	Category string
	Search   string
	Page     int
	Limit    int
}
