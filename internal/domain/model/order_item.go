package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文明細。価格は注文作成時点のスナップショット（以後不変）。
type OrderItem struct {
	ID              int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID         int64           `gorm:"not null;index" json:"order_id"`
	ProductID       int64           `gorm:"not null;index" json:"product_id"`
	Quantity        int64           `gorm:"not null" json:"quantity"`
	PriceAtPurchase decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"price_at_purchase"`
	CreatedAt       time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
}
