package usecase

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// 注文ワークフロー。
// 作成（在庫は引かない）→ 確定（ロック付きで在庫引当）→ キャンセル（在庫戻し）。
// 調整は全てDBの行ロックで行い、プロセス内に共有状態は持たない。
type OrderUsecase struct {
	tx       repo.TransactionManager
	identity *IdentityResolver
}

func NewOrderUsecase(tx repo.TransactionManager, identity *IdentityResolver) *OrderUsecase {
	return &OrderUsecase{tx: tx, identity: identity}
}

// 呼び出し元。認証済みユーザーか、ゲスト（カート用ID＋電話番号）。
type Caller struct {
	UserID     *int64
	GuestID    *string
	GuestPhone string
}

func (c Caller) cartOwner() repo.CartOwner {
	if c.UserID != nil {
		return repo.CartOwner{UserID: c.UserID}
	}
	return repo.CartOwner{GuestID: c.GuestID}
}

type OrderLineInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type CreateOrderInput struct {
	AddressID     int64
	PaymentMethod string
	//空のときはカートの有効明細から補う
	Items []OrderLineInput
}

type OrderItemOutput struct {
	ProductID       int64           `json:"product_id"`
	Quantity        int64           `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

type OrderOutput struct {
	ID            int64             `json:"id"`
	UserID        int64             `json:"user_id"`
	AddressID     int64             `json:"address_id"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	PaymentMethod string            `json:"payment_method"`
	TotalAmount   decimal.Decimal   `json:"total_amount"`
	TrackingToken string            `json:"tracking_token"`
	CreatedAt     time.Time         `json:"created_at"`
	Items         []OrderItemOutput `json:"items"`
}

const (
	//確定成功（すでにPAIDだった場合も同じ）
	ConfirmOutcomeConfirmed = "confirmed"
	//決済は済んだが在庫を確保できなかった。返金が必要。
	ConfirmOutcomeRefundRequired = "refund_required"
)

type ConfirmOrderOutput struct {
	Outcome string      `json:"outcome"`
	Reason  string      `json:"reason,omitempty"`
	Order   OrderOutput `json:"order"`
}

// 注文作成。
// 商品をID昇順でロックして価格・存在チェックだけ行う（在庫はまだ引かない）。
// 価格スナップショット・注文・明細・カート消し込みを1トランザクションで行う。
func (u *OrderUsecase) CreateOrder(ctx context.Context, caller Caller, in CreateOrderInput) (OrderOutput, error) {
	if in.AddressID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid address_id")
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment_method")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		buyerID, err := u.identity.Resolve(ctx, r.Users(), caller.UserID, caller.GuestPhone)
		if err != nil {
			return err
		}

		lines := in.Items

		//明細が無ければカートから補う
		if len(lines) == 0 {
			cartItems, err := r.CartItems().ListActiveByOwner(ctx, caller.cartOwner())
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			for _, ci := range cartItems {
				lines = append(lines, OrderLineInput{ProductID: ci.ProductID, Quantity: ci.Quantity})
			}
		}

		if len(lines) == 0 {
			return NewHTTPError(http.StatusBadRequest, "empty order")
		}

		//同一商品は数量をまとめる
		quantities := make(map[int64]int64, len(lines))
		for _, l := range lines {
			if l.ProductID <= 0 || l.Quantity < 1 {
				return NewHTTPError(http.StatusBadRequest, "invalid line item")
			}
			quantities[l.ProductID] += l.Quantity
		}

		ids := sortedProductIDs(quantities)

		//価格と在庫を同じスナップショットで読むため、引当と同じロックを取る
		products, err := r.Products().FindByIDsForUpdate(ctx, ids)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		byID := make(map[int64]model.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		items := make([]model.OrderItem, 0, len(ids))
		total := decimal.Zero

		for _, id := range ids {
			p, ok := byID[id]
			if !ok || !p.IsActive {
				return NewHTTPError(http.StatusBadRequest, "invalid product")
			}

			qty := quantities[id]
			items = append(items, model.OrderItem{
				ProductID:       id,
				Quantity:        qty,
				PriceAtPurchase: p.Price,
				CreatedAt:       time.Now(),
			})

			total = total.Add(p.Price.Mul(decimal.NewFromInt(qty)))
		}

		now := time.Now()
		orderID, err := r.Orders().Create(ctx, model.Order{
			UserID:        buyerID,
			AddressID:     in.AddressID,
			TotalAmount:   total.Round(2),
			Status:        model.OrderStatusPending,
			PaymentStatus: model.PaymentStatusPending,
			PaymentMethod: strings.TrimSpace(in.PaymentMethod),
			TrackingToken: uuid.NewString(),
			IsActive:      true,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//消費した商品のカート明細を同一トランザクションで無効化
		if err := r.CartItems().DeactivateByProducts(ctx, caller.cartOwner(), ids); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		created, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(created, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 注文確定（決済後に呼ばれる）。
// 追跡トークンの一致を資格情報として要求する（IDは連番で推測できるため）。
// すでにPAIDなら何もせず成功（冪等）。
// 在庫引当に失敗したら注文をCANCELLED/REFUNDEDにしてcommitし、
// refund_required を返す（エラーではなく区別された結果として扱う）。
func (u *OrderUsecase) ConfirmOrder(ctx context.Context, orderID int64, trackingToken string, paymentReference string) (ConfirmOrderOutput, error) {
	if orderID <= 0 {
		return ConfirmOrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	trackingToken = strings.TrimSpace(trackingToken)

	var out ConfirmOrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//トークン不一致は存在自体を漏らさない
		if trackingToken == "" || o.TrackingToken != trackingToken {
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//冪等：二重確定は在庫を二重に引かない
		if o.PaymentStatus == model.PaymentStatusPaid {
			out = ConfirmOrderOutput{Outcome: ConfirmOutcomeConfirmed, Order: toOrderOutput(o, items)}
			return nil
		}

		if o.Status.IsTerminal() {
			return NewHTTPError(http.StatusBadRequest, "order closed")
		}

		//明細から商品ごとの必要数量を集計
		quantities := make(map[int64]int64, len(items))
		for _, it := range items {
			quantities[it.ProductID] += it.Quantity
		}

		reserveErr := r.Inventory().Reserve(ctx, quantities)

		if reserveErr == nil {
			if err := r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusProcessing, model.PaymentStatusPaid); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if err := r.Orders().SetPaymentReference(ctx, orderID, strings.TrimSpace(paymentReference)); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			o.Status = model.OrderStatusProcessing
			o.PaymentStatus = model.PaymentStatusPaid
			out = ConfirmOrderOutput{Outcome: ConfirmOutcomeConfirmed, Order: toOrderOutput(o, items)}
			return nil
		}

		var insufficient *repo.InsufficientStockError
		if errors.Is(reserveErr, repo.ErrProductNotFound) || errors.As(reserveErr, &insufficient) {
			//決済済みだが在庫を確保できなかった。
			//注文をキャンセル・返金にしてcommitする（ここはエラーで巻き戻さない）。
			if err := r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusCancelled, model.PaymentStatusRefunded); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}

			o.Status = model.OrderStatusCancelled
			o.PaymentStatus = model.PaymentStatusRefunded
			out = ConfirmOrderOutput{
				Outcome: ConfirmOutcomeRefundRequired,
				Reason:  reserveErr.Error(),
				Order:   toOrderOutput(o, items),
			}
			return nil
		}

		return NewHTTPError(http.StatusInternalServerError, "db error")
	})

	if err != nil {
		return ConfirmOrderOutput{}, err
	}
	return out, nil
}

// 注文キャンセル。
// 終端状態の注文は拒否。在庫戻しとステータス更新を同一トランザクションで行う。
func (u *OrderUsecase) CancelOrder(ctx context.Context, actorUserID int64, isAdmin bool, orderID int64) (OrderOutput, error) {
	if actorUserID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//他人の注文は「存在しない扱い」にする
		if !isAdmin && o.UserID != actorUserID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		//支払い後のキャンセルは管理者のみ
		if !isAdmin && o.Status != model.OrderStatusPending {
			return NewHTTPError(http.StatusForbidden, "cannot cancel after payment")
		}

		updated, items, err := cancelOrderLocked(ctx, r, o)
		if err != nil {
			return err
		}

		out = toOrderOutput(updated, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 行ロック取得済みの注文をキャンセルする共通処理。
// 在庫戻し→ステータス更新を呼び出し側のトランザクション内で行う。
func cancelOrderLocked(ctx context.Context, r repo.TxRepos, o model.Order) (model.Order, []model.OrderItem, error) {
	if o.Status.IsTerminal() {
		return model.Order{}, nil, NewHTTPError(http.StatusBadRequest, "cannot cancel order")
	}

	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return model.Order{}, nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	//在庫は引当済み（PAID）の場合だけ戻す。PENDINGはまだ引いていない
	if o.PaymentStatus == model.PaymentStatusPaid {
		quantities := make(map[int64]int64, len(items))
		for _, it := range items {
			quantities[it.ProductID] += it.Quantity
		}
		if err := r.Inventory().Restore(ctx, quantities); err != nil {
			return model.Order{}, nil, NewHTTPError(http.StatusInternalServerError, "db error")
		}
	}

	payment := o.PaymentStatus
	if payment == model.PaymentStatusPaid {
		payment = model.PaymentStatusRefunded
	}

	if err := r.Orders().UpdateStatus(ctx, o.ID, model.OrderStatusCancelled, payment); err != nil {
		return model.Order{}, nil, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	o.Status = model.OrderStatusCancelled
	o.PaymentStatus = payment
	return o, items, nil
}

// 支払い前の配送先変更。
// PENDINGの間だけ、本人の住所に限って差し替えられる。
func (u *OrderUsecase) UpdateOrderAddress(ctx context.Context, userID int64, orderID int64, addressID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if addressID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid address_id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if o.UserID != userID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		//確定後は配送準備に入っているので変更不可
		if o.Status != model.OrderStatusPending {
			return NewHTTPError(http.StatusBadRequest, "cannot update order")
		}

		addr, err := r.Addresses().FindByID(ctx, addressID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusBadRequest, "invalid address_id")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if addr.UserID != userID {
			return NewHTTPError(http.StatusBadRequest, "invalid address_id")
		}

		if err := r.Orders().UpdateAddress(ctx, orderID, addressID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		o.AddressID = addressID
		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// 注文のステータスだけ返す軽い参照
type OrderStatusOutput struct {
	OrderID       int64     `json:"order_id"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (u *OrderUsecase) GetOrderStatus(ctx context.Context, userID int64, orderID int64) (OrderStatusOutput, error) {
	if userID <= 0 {
		return OrderStatusOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderStatusOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderStatusOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		out = OrderStatusOutput{
			OrderID:       o.ID,
			Status:        string(o.Status),
			PaymentStatus: string(o.PaymentStatus),
			CreatedAt:     o.CreatedAt,
			UpdatedAt:     o.UpdatedAt,
		}
		return nil
	})

	if err != nil {
		return OrderStatusOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page int, limit int) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, page, limit)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID:       it.ProductID,
			Quantity:        it.Quantity,
			PriceAtPurchase: it.PriceAtPurchase,
		})
	}

	return OrderOutput{
		ID:            o.ID,
		UserID:        o.UserID,
		AddressID:     o.AddressID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		PaymentMethod: o.PaymentMethod,
		TotalAmount:   o.TotalAmount,
		TrackingToken: o.TrackingToken,
		CreatedAt:     o.CreatedAt,
		Items:         outItems,
	}
}

func sortedProductIDs(quantities map[int64]int64) []int64 {
	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
