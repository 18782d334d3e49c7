package repository

import (
	"context"

	"shop/internal/domain/model"
)

// カートの持ち主。userID か guestID のどちらか一方だけが入る。
type CartOwner struct {
	UserID  *int64
	GuestID *string
}

type CartItemRepository interface {
	ListActiveByOwner(ctx context.Context, owner CartOwner) ([]model.CartItem, error)
	FindActiveByID(ctx context.Context, cartItemID int64, owner CartOwner) (model.CartItem, error)

	//同一商品は数量加算
	UpsertByOwnerAndProduct(ctx context.Context, owner CartOwner, productID int64, addQty int64) (model.CartItem, error)

	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error

	//ソフト削除（is_active=false）
	Deactivate(ctx context.Context, cartItemID int64) error

	//注文作成で消費された商品の明細をまとめて無効化する。
	//注文作成トランザクションの中で呼ばれる前提。
	DeactivateByProducts(ctx context.Context, owner CartOwner, productIDs []int64) error
}
