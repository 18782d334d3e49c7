package repository

import (
	"context"
	"time"

	"shop/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page   int
	Limit  int
	Status string
	UserID *int64
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)

	//注文行を行ロック付きで取得（confirm/cancel/status更新の直列化に使う）
	FindByIDForUpdate(ctx context.Context, orderID int64) (model.Order, error)

	//追跡トークンによる公開参照
	FindByTrackingToken(ctx context.Context, token string) (model.Order, error)

	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus, payment model.PaymentStatus) error

	//支払い前の配送先変更
	UpdateAddress(ctx context.Context, orderID int64, addressID int64) error

	//confirm時の支払参照の記録
	SetPaymentReference(ctx context.Context, orderID int64, ref string) error

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
