package ent

import "time"

type Category struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type CategoryStats struct {
	Category

	ProductCount int64 `json:"product_count" db:"product_count"`
	TotalStock   int64 `json:"total_stock" db:"total_stock"`
	TotalValue   Money `json:"total_value" db:"total_value"`
}

type ComponentOption struct {
	ID     int64         `json:"id" db:"id"`
	Name   string        `json:"name" db:"name"`
	Price  Money         `json:"price" db:"price"`
	Volume *string       `json:"volume" db:"volume"`
	Type   ComponentType `json:"type" db:"type"`
}

type ComponentUsage struct {
	ComponentOption

	ProductCount int64 `json:"product_count" db:"product_count"`
}

type Product struct {
	ID            int64         `json:"id" db:"id"`
	Name          string        `json:"name" db:"name"`
	CategoryID    int64         `json:"category" db:"category_id"`
	BasePrice     Money         `json:"base_price" db:"base_price"`
	Description   *string       `json:"description" db:"description"`
	Image         *string       `json:"image" db:"image"`
	Model3D       *string       `json:"model_3d" db:"model_3d"`
	Stock         int           `json:"stock" db:"stock"`
	Discount      int           `json:"discount" db:"discount"`
	ComponentType ComponentType `json:"component_type" db:"component_type"`
	Brand         *string       `json:"brand" db:"brand"`

	CategoryName   string            `json:"category_name" db:"category_name"`
	Components     []ComponentOption `json:"components" db:"-"`
	CompatibleWith []int64           `json:"compatible_with" db:"-"`
}

type Order struct {
	ID           int64       `json:"id" db:"id"`
	CustomerName string      `json:"customer_name" db:"customer_name"`
	Address      string      `json:"address" db:"address"`
	Delivery     Delivery    `json:"delivery" db:"delivery"`
	Comment      *string     `json:"comment" db:"comment"`
	Total        Money       `json:"total" db:"total"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	Items        string      `json:"items" db:"items"`
	Status       OrderStatus `json:"status" db:"status"`
}
