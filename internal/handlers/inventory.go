package handlers

import (
	"strconv"

	"velora_back_end/internal/catalog"
	"velora_back_end/internal/httpx"
	"velora_back_end/internal/stock"

	"github.com/gin-gonic/gin"
)

type InventoryHandler struct {
	movements stock.MovementLister
}

func NewInventoryHandler(movements stock.MovementLister) *InventoryHandler {
	return &InventoryHandler{movements: movements}
}

// GET /api/inventory/movements?product_id=&limit= (admin)
func (h *InventoryHandler) Movements(c *gin.Context) {
	productID := c.Query("product_id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	list, err := h.movements.Movements(c.Request.Context(), productID, limit)
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	// Enrichir avec les noms produits (cache Redis)
	ids := make([]string, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.ProductID.String())
	}
	names := catalog.ProductNames(c.Request.Context(), ids)

	type movementView struct {
		ID          string `json:"id"`
		ProductID   string `json:"product_id"`
		ProductName string `json:"product_name,omitempty"`
		Type        string `json:"type"`
		Quantity    int    `json:"quantity"`
		PrevStock   int    `json:"prev_stock"`
		NewStock    int    `json:"new_stock"`
		Reason      string `json:"reason,omitempty"`
		OrderID     string `json:"order_id,omitempty"`
		CreatedAt   string `json:"created_at"`
	}

	views := make([]movementView, 0, len(list))
	for _, m := range list {
		views = append(views, movementView{
			ID:          m.ID.String(),
			ProductID:   m.ProductID.String(),
			ProductName: names[m.ProductID.String()],
			Type:        m.Type,
			Quantity:    m.Quantity,
			PrevStock:   m.PrevStock,
			NewStock:    m.NewStock,
			Reason:      m.Reason,
			OrderID:     m.OrderID,
			CreatedAt:   m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}

	httpx.OKCount(c, views, len(views))
}
