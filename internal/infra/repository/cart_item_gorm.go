package repository

import (
	"context"
	"errors"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CartItemGormRepository struct {
	db *gorm.DB
}

func NewCartItemGormRepository(db *gorm.DB) *CartItemGormRepository {
	return &CartItemGormRepository{db: db}
}

// owner条件（user_id/guest_idのどちらか）をクエリに足す
func ownerScope(q *gorm.DB, owner repo.CartOwner) *gorm.DB {
	if owner.UserID != nil {
		return q.Where("user_id = ?", *owner.UserID)
	}
	if owner.GuestID != nil {
		return q.Where("guest_id = ?", *owner.GuestID)
	}
	//持ち主不明は空集合にする
	return q.Where("1 = 0")
}

func (r *CartItemGormRepository) ListActiveByOwner(ctx context.Context, owner repo.CartOwner) ([]model.CartItem, error) {
	var items []model.CartItem

	q := r.db.WithContext(ctx).Where("is_active = ?", true)
	q = ownerScope(q, owner)

	if err := q.Order("id asc").Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}
	return items, nil
}

func (r *CartItemGormRepository) FindActiveByID(ctx context.Context, cartItemID int64, owner repo.CartOwner) (model.CartItem, error) {
	var item model.CartItem

	q := r.db.WithContext(ctx).Where("id = ? AND is_active = ?", cartItemID, true)
	q = ownerScope(q, owner)

	err := q.First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.CartItem{}, repo.ErrNotFound
	}
	if err != nil {
		return model.CartItem{}, err
	}
	return item, nil
}

// 同一商品は数量加算
func (r *CartItemGormRepository) UpsertByOwnerAndProduct(ctx context.Context, owner repo.CartOwner, productID int64, addQty int64) (model.CartItem, error) {
	if addQty <= 0 {
		return model.CartItem{}, errors.New("invalid quantity")
	}

	var out model.CartItem

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item model.CartItem

		q := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("product_id = ? AND is_active = ?", productID, true)
		q = ownerScope(q, owner)

		err := q.First(&item).Error

		if err == nil {
			// 既存ありだったら数量を増やす
			newQty := item.Quantity + addQty

			res := tx.Model(&model.CartItem{}).
				Where("id = ?", item.ID).
				Update("quantity", newQty)

			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return repo.ErrNotFound
			}

			item.Quantity = newQty
			out = item
			return nil
		}

		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		//無い場合は新規作成
		now := time.Now()
		newItem := model.CartItem{
			UserID:    owner.UserID,
			GuestID:   owner.GuestID,
			ProductID: productID,
			Quantity:  addQty,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := tx.Create(&newItem).Error; err != nil {
			return err
		}

		out = newItem
		return nil
	})

	if err != nil {
		return model.CartItem{}, err
	}
	return out, nil
}

func (r *CartItemGormRepository) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ? AND is_active = ?", cartItemID, true).
		Update("quantity", qty)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// ソフト削除
func (r *CartItemGormRepository) Deactivate(ctx context.Context, cartItemID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ? AND is_active = ?", cartItemID, true).
		Update("is_active", false)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 注文で消費された商品の明細をまとめて無効化。
// 対象が無くてもエラーにしない（カート経由でない注文もある）。
func (r *CartItemGormRepository) DeactivateByProducts(ctx context.Context, owner repo.CartOwner, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}

	q := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("product_id IN ? AND is_active = ?", productIDs, true)
	q = ownerScope(q, owner)

	return q.Update("is_active", false).Error
}
