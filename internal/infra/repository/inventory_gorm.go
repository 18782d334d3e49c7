package repository

import (
	"context"
	"errors"
	"sort"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InventoryGormRepository struct {
	db *gorm.DB
}

func NewInventoryGormRepository(db *gorm.DB) *InventoryGormRepository {
	return &InventoryGormRepository{db: db}
}

// 全商品をID昇順でロック→全件チェック→まとめて減算。
// 1件でもダメなら何も減らさない。
func (r *InventoryGormRepository) Reserve(ctx context.Context, quantities map[int64]int64) error {
	products, err := r.lockByIDs(ctx, sortedIDs(quantities))
	if err != nil {
		return err
	}

	byID := make(map[int64]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	//先に全件を検証してから減らす
	for _, id := range sortedIDs(quantities) {
		p, ok := byID[id]
		if !ok || !p.IsActive {
			return repo.ErrProductNotFound
		}
		if p.Stock < quantities[id] {
			return &repo.InsufficientStockError{
				ProductID: id,
				Requested: quantities[id],
				Available: p.Stock,
			}
		}
	}

	for _, id := range sortedIDs(quantities) {
		res := r.db.WithContext(ctx).
			Model(&model.Product{}).
			Where("id = ?", id).
			Update("stock", gorm.Expr("stock - ?", quantities[id]))

		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return repo.ErrProductNotFound
		}
	}
	return nil
}

// 在庫戻し（キャンセル・返金）。上限チェックなし。
// ソフト削除済みの商品にも戻す（Unscoped）。商品を消したせいで
// 支払済み注文がキャンセルできなくなる事態を防ぐ。
func (r *InventoryGormRepository) Restore(ctx context.Context, quantities map[int64]int64) error {
	ids := sortedIDs(quantities)
	if len(ids) == 0 {
		return nil
	}

	//Reserveと同じくID昇順でロックを取る（削除済み行も含める）
	var locked []model.Product
	if err := r.db.WithContext(ctx).
		Unscoped().
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&locked).Error; err != nil {
		return err
	}

	for _, id := range ids {
		res := r.db.WithContext(ctx).
			Model(&model.Product{}).
			Unscoped().
			Where("id = ?", id).
			Update("stock", gorm.Expr("stock + ?", quantities[id]))

		if res.Error != nil {
			return res.Error
		}
		//物理的に行が無いものは戻し先が無い。キャンセル自体は通す
	}
	return nil
}

// 管理者の在庫直接設定（調整履歴つき）
func (r *InventoryGormRepository) SetStockWithAdjustment(ctx context.Context, adminUserID int64, productID int64, newStock int64, reason string) error {
	if newStock < 0 {
		return errors.New("negative stock")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p model.Product
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", productID).
			First(&p).Error
		if err != nil {
			if isNotFound(err) {
				return repo.ErrNotFound
			}
			return err
		}

		if err := tx.Model(&model.Product{}).
			Where("id = ?", productID).
			Update("stock", newStock).Error; err != nil {
			return err
		}

		adj := model.InventoryAdjustment{
			ProductID:   productID,
			AdminUserID: adminUserID,
			Delta:       newStock - p.Stock,
			Reason:      reason,
			CreatedAt:   time.Now(),
		}
		return tx.Create(&adj).Error
	})
}

// ID昇順の行ロック取得。呼び出し順を全箇所で揃えるのが前提。
func (r *InventoryGormRepository) lockByIDs(ctx context.Context, ids []int64) ([]model.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var products []model.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id asc").
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func sortedIDs(quantities map[int64]int64) []int64 {
	ids := make([]int64, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
