package orders

import (
	"github.com/shopspring/decimal"

	"github.com/harborline/storefront-backend/pkg/enums"
)

// DashboardMetrics is the admin sales summary.
type DashboardMetrics struct {
	TotalOrders int64           `json:"total_orders"`
	TotalSales  decimal.Decimal `json:"total_sales"`
}

// StatusCounts maps every order status to its order count, zero-filled so
// consumers never have to special-case missing statuses.
type StatusCounts map[enums.OrderStatus]int64
