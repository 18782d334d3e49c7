package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// 購入者。会員またはゲスト（電話番号だけで自動作成）。
// 物理削除はしない（is_activeで無効化のみ）。
type User struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//ゲストは電話番号だけ持つ（ユニーク）
	Phone *string `gorm:"type:varchar(20);uniqueIndex" json:"phone,omitempty"`

	//会員は任意でメールを持つ
	Email *string `gorm:"type:varchar(50)" json:"email,omitempty"`

	Role Role `gorm:"type:varchar(20);not null;default:'USER'" json:"role"`

	//管理者ログイン用
	Username     *string `gorm:"type:varchar(50);uniqueIndex" json:"-"`
	PasswordHash *string `gorm:"column:password_hash" json:"-"`

	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
