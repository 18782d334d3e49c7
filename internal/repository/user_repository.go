package repository

import (
	"context"

	"shop/internal/domain/model"
)

// 保存・取得を約束
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, userID int64) (model.User, error)

	//ゲスト再解決用（電話番号はユニーク）
	FindByPhone(ctx context.Context, phone string) (model.User, error)

	//管理者ログイン用
	FindByUsername(ctx context.Context, username string) (model.User, error)
}
