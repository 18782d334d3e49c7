package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"github.com/shopspring/decimal"
)

// 配送マイルストーン（固定順）
type Milestone struct {
	Label     string `json:"label"`
	Completed bool   `json:"completed"`
}

var milestoneLabels = []string{"Placed", "Processing", "Shipped", "Delivered"}

// ステータスの進み具合（マイルストーン何個分まで完了か）
func statusRank(s model.OrderStatus) int {
	switch s {
	case model.OrderStatusPending:
		return 0
	case model.OrderStatusProcessing:
		return 1
	case model.OrderStatusShipped:
		return 2
	case model.OrderStatusDelivered, model.OrderStatusReturned:
		return 3
	default:
		//CANCELLEDなど。注文した事実だけ
		return 0
	}
}

func buildMilestones(s model.OrderStatus) []Milestone {
	rank := statusRank(s)

	out := make([]Milestone, 0, len(milestoneLabels))
	for i, label := range milestoneLabels {
		out = append(out, Milestone{Label: label, Completed: i <= rank})
	}
	return out
}

type TrackAddressOutput struct {
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	State         string `json:"state,omitempty"`
	PostalCode    string `json:"postal_code"`
	Country       string `json:"country"`
}

type TrackOrderOutput struct {
	Status        string              `json:"status"`
	PaymentStatus string              `json:"payment_status"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	CreatedAt     time.Time           `json:"created_at"`
	Address       *TrackAddressOutput `json:"address,omitempty"`
	Items         []OrderItemOutput   `json:"items"`
	Milestones    []Milestone         `json:"milestones"`
}

// 追跡トークンによる公開参照。
// 認証はしない。トークン自体が資格情報（uuid4で推測不可能）。
func (u *OrderUsecase) TrackByToken(ctx context.Context, token string) (TrackOrderOutput, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TrackOrderOutput{}, NewHTTPError(http.StatusNotFound, "not found")
	}

	var out TrackOrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByTrackingToken(ctx, token)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outItems := make([]OrderItemOutput, 0, len(items))
		for _, it := range items {
			outItems = append(outItems, OrderItemOutput{
				ProductID:       it.ProductID,
				Quantity:        it.Quantity,
				PriceAtPurchase: it.PriceAtPurchase,
			})
		}

		out = TrackOrderOutput{
			Status:        string(o.Status),
			PaymentStatus: string(o.PaymentStatus),
			TotalAmount:   o.TotalAmount,
			CreatedAt:     o.CreatedAt,
			Items:         outItems,
			Milestones:    buildMilestones(o.Status),
		}

		//住所は読めたときだけ添える
		addr, err := r.Addresses().FindByID(ctx, o.AddressID)
		if err == nil {
			out.Address = &TrackAddressOutput{
				StreetAddress: addr.StreetAddress,
				City:          addr.City,
				State:         addr.State,
				PostalCode:    addr.PostalCode,
				Country:       addr.Country,
			}
		} else if err != repo.ErrNotFound {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		return nil
	})

	if err != nil {
		return TrackOrderOutput{}, err
	}
	return out, nil
}
