package usecase

import (
	"context"
	"net/http"
	"strings"

	"shop/internal/domain/model"
	repo "shop/internal/repository"
)

// 注文の購入者を解決する。
// 認証済みユーザーならそのID、未認証なら電話番号でゲストを再利用または新規作成。
// 注文作成と同じトランザクションの中で呼ぶこと（ゲスト作成を注文とまとめてcommitする）。
type IdentityResolver struct{}

func NewIdentityResolver() *IdentityResolver {
	return &IdentityResolver{}
}

func (ir *IdentityResolver) Resolve(ctx context.Context, users repo.UserRepository, authedUserID *int64, guestPhone string) (int64, error) {
	if authedUserID != nil {
		if *authedUserID <= 0 {
			return 0, NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		return *authedUserID, nil
	}

	phone := strings.TrimSpace(guestPhone)
	if phone == "" {
		//呼び出し側の契約違反。リトライしない
		return 0, NewHTTPError(http.StatusBadRequest, "missing identity")
	}

	//同じ電話番号のゲストは再利用（何度チェックアウトしても同じ購入者）
	existing, err := users.FindByPhone(ctx, phone)
	if err == nil {
		return existing.ID, nil
	}
	if err != repo.ErrNotFound {
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	guest := model.User{
		Phone:    &phone,
		Role:     model.RoleUser,
		IsActive: true,
	}
	if err := users.Create(ctx, &guest); err != nil {
		//同時に同じ電話番号が入った場合はユニーク制約に当たるので取り直す
		retry, retryErr := users.FindByPhone(ctx, phone)
		if retryErr == nil {
			return retry.ID, nil
		}
		return 0, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return guest.ID, nil
}
