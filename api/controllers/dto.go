package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harborline/storefront-backend/pkg/db/models"
	"github.com/harborline/storefront-backend/pkg/pagination"
)

type CartItemResponse struct {
	ID                 uuid.UUID       `json:"id"`
	ProductID          uuid.UUID       `json:"product_id"`
	Quantity           int             `json:"quantity"`
	PriceAtAddition    decimal.Decimal `json:"price_at_addition"`
	DiscountAtAddition decimal.Decimal `json:"discount_at_addition"`
	Total              decimal.Decimal `json:"total"`
}

type CartResponse struct {
	ID          uuid.UUID          `json:"id"`
	UserID      uuid.UUID          `json:"user_id"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	Items       []CartItemResponse `json:"items"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func newCartResponse(cart *models.Cart) CartResponse {
	items := make([]CartItemResponse, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, CartItemResponse{
			ID:                 item.ID,
			ProductID:          item.ProductID,
			Quantity:           item.Quantity,
			PriceAtAddition:    item.PriceAtAddition,
			DiscountAtAddition: item.DiscountAtAddition,
			Total:              item.Total,
		})
	}
	return CartResponse{
		ID:          cart.ID,
		UserID:      cart.UserID,
		TotalAmount: cart.TotalAmount,
		Items:       items,
		UpdatedAt:   cart.UpdatedAt,
	}
}

type OrderItemResponse struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
}

type OrderResponse struct {
	ID                uuid.UUID           `json:"id"`
	UserID            uuid.UUID           `json:"user_id"`
	OrderDate         time.Time           `json:"order_date"`
	Status            string              `json:"status"`
	ShippingAddressID uuid.UUID           `json:"shipping_address_id"`
	TotalAmount       decimal.Decimal     `json:"total_amount"`
	Items             []OrderItemResponse `json:"items"`
}

func newOrderResponse(order *models.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Discount:  item.Discount,
			Total:     item.Total,
		})
	}
	return OrderResponse{
		ID:                order.ID,
		UserID:            order.UserID,
		OrderDate:         order.OrderDate,
		Status:            string(order.Status),
		ShippingAddressID: order.ShippingAddressID,
		TotalAmount:       order.TotalAmount,
		Items:             items,
	}
}

type ProductResponse struct {
	ID            uuid.UUID       `json:"id"`
	CategoryID    uuid.UUID       `json:"category_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Discount      decimal.Decimal `json:"discount"`
	StockQuantity int             `json:"stock_quantity"`
}

func newProductResponse(product *models.Product) ProductResponse {
	return ProductResponse{
		ID:            product.ID,
		CategoryID:    product.CategoryID,
		Name:          product.Name,
		Description:   product.Description,
		Price:         product.Price,
		Discount:      product.Discount,
		StockQuantity: product.StockQuantity,
	}
}

type PageResponse[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	Size       int   `json:"size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int64 `json:"total_pages"`
}

func newPageResponse[S, T any](result pagination.Result[S], convert func(*S) T) PageResponse[T] {
	items := make([]T, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, convert(&result.Items[i]))
	}
	return PageResponse[T]{
		Items:      items,
		Page:       result.Page,
		Size:       result.Size,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	}
}
