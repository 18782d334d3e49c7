package repository

import (
	"context"
	"errors"
	"fmt"
)

// 参照された商品IDに在庫行が無い（または非公開）
var ErrProductNotFound = errors.New("product not found")

// 在庫不足。最初に引っかかった商品を持つ。
type InsufficientStockError struct {
	ProductID int64
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// 在庫台帳。数量の増減はここを通してのみ行う。
// 呼び出し側トランザクションのスコープ内で動く（自前でTxは張らない）。
type InventoryRepository interface {
	// 全商品をID昇順で行ロックし、全件で在庫が足りるときだけまとめて減算する。
	// 1件でも不足・不存在なら何も減らさず ErrProductNotFound / InsufficientStockError。
	Reserve(ctx context.Context, quantities map[int64]int64) error

	// キャンセル・返金時の在庫戻し。上限チェックはしない。
	Restore(ctx context.Context, quantities map[int64]int64) error

	// 管理者の在庫直接設定（調整履歴つき）
	SetStockWithAdjustment(ctx context.Context, adminUserID int64, productID int64, newStock int64, reason string) error
}
