package usecase

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shop/internal/domain/model"
	repo "shop/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// 管理者ログイン（username + password → JWT）。
// 購入者側のOTPログインは対象外（外部のセッション基盤が持つ）。
type AuthUsecase struct {
	userRepo  repo.UserRepository
	jwtSecret []byte
	accessTTL time.Duration
}

func NewAuthUsecase(userRepo repo.UserRepository, jwtSecret string, accessTTL time.Duration) *AuthUsecase {
	return &AuthUsecase{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
	}
}

type AdminLoginInput struct {
	Username string
	Password string
}

type AdminLoginOutput struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func (u *AuthUsecase) AdminLogin(ctx context.Context, in AdminLoginInput) (AdminLoginOutput, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return AdminLoginOutput{}, NewHTTPError(http.StatusBadRequest, "invalid credentials")
	}

	user, err := u.userRepo.FindByUsername(ctx, username)
	if err == repo.ErrNotFound {
		//存在可否を漏らさない
		return AdminLoginOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err != nil {
		return AdminLoginOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if user.Role != model.RoleAdmin || user.PasswordHash == nil {
		return AdminLoginOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHash), []byte(in.Password)); err != nil {
		return AdminLoginOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	now := time.Now()
	expiresAt := now.Add(u.accessTTL)

	claims := jwt.MapClaims{
		"sub":  strconv.FormatInt(user.ID, 10),
		"role": string(user.Role),
		"iat":  now.Unix(),
		"exp":  expiresAt.Unix(),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(u.jwtSecret)
	if err != nil {
		return AdminLoginOutput{}, NewHTTPError(http.StatusInternalServerError, "token error")
	}

	return AdminLoginOutput{AccessToken: signed, ExpiresAt: expiresAt}, nil
}
