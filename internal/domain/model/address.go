package model

import "time"

// 配送先住所
type Address struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index" json:"user_id"`

	StreetAddress string `gorm:"type:varchar(100);not null" json:"street_address"`
	City          string `gorm:"type:varchar(50);not null" json:"city"`
	State         string `gorm:"type:varchar(50)" json:"state"`
	PostalCode    string `gorm:"type:varchar(20);not null" json:"postal_code"`
	Country       string `gorm:"type:varchar(50);not null" json:"country"`

	//このユーザーのデフォルト住所か
	IsDefault bool `gorm:"not null;default:false" json:"is_default"`

	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
