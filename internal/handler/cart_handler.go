package handler

import (
	"net/http"
	"strconv"

	"shop/internal/config"
	"shop/internal/middleware"
	"shop/internal/repository"
	"shop/internal/usecase"

	"github.com/labstack/echo/v4"
)

type CartHandler struct {
	uc *usecase.CartUsecase
}

func NewCartHandler(uc *usecase.CartUsecase) *CartHandler {
	return &CartHandler{uc: uc}
}

type AddCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

type UpdateCartItemRequest struct {
	Quantity int64 `json:"quantity"`
}

func (h *CartHandler) RegisterRoutes(e *echo.Echo, cfg config.Config) {
	g := e.Group("/cart")
	g.Use(middleware.OptionalAuthJWT(cfg))

	g.GET("", h.get)
	g.POST("/items", h.add)
	g.PUT("/items/:id", h.update)
	g.DELETE("/items/:id", h.remove)
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	v, ok := c.Get(middleware.CtxUserIDKey).(int64)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

func getUserRoleFromContext(c echo.Context) string {
	role, _ := c.Get(middleware.CtxUserRoleKey).(string)
	return role
}

// カートの持ち主を決める。ログイン済みならuser_id、なければX-Guest-IDヘッダ。
func getCartOwner(c echo.Context) (repository.CartOwner, bool) {
	if userID, ok := getUserIDFromContext(c); ok {
		return repository.CartOwner{UserID: &userID}, true
	}
	if gid := c.Request().Header.Get("X-Guest-ID"); gid != "" {
		return repository.CartOwner{GuestID: &gid}, true
	}
	return repository.CartOwner{}, false
}

func (h *CartHandler) get(c echo.Context) error {
	owner, ok := getCartOwner(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing identity"})
	}

	out, err := h.uc.GetCart(c.Request().Context(), owner)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) add(c echo.Context) error {
	owner, ok := getCartOwner(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing identity"})
	}

	var req AddCartRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.AddToCart(c.Request().Context(), owner, usecase.AddCartInput{
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) update(c echo.Context) error {
	owner, ok := getCartOwner(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing identity"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	var req UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}

	out, err := h.uc.UpdateCartItem(c.Request().Context(), owner, id, usecase.UpdateCartItemInput{
		Quantity: req.Quantity,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CartHandler) remove(c echo.Context) error {
	owner, ok := getCartOwner(c)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing identity"})
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	out, err := h.uc.RemoveCartItem(c.Request().Context(), owner, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
