package dto

import (
	"warelog/internal/core/types"
	"warelog/internal/domain/ordersync"
)

// OrderLineRequest is one position of an external order notification.
type OrderLineRequest struct {
	VariantID string         `json:"variantId" binding:"required,uuid"`
	Quantity  types.Quantity `json:"quantity" binding:"required"`
	PriceNet  types.Money    `json:"priceNet"`
	TaxRateID *string        `json:"taxRateId" binding:"omitempty,uuid"`
}

// OrderConfirmedRequest is the payload of an order confirmation webhook.
type OrderConfirmedRequest struct {
	OrderRef    string             `json:"orderRef" binding:"required"`
	WarehouseID *string            `json:"warehouseId" binding:"omitempty,uuid"`
	Lines       []OrderLineRequest `json:"lines" binding:"required"`
}

// ToOrder converts DTO to the normalized order view.
func (r *OrderConfirmedRequest) ToOrder() (ordersync.Order, error) {
	order := ordersync.Order{Ref: r.OrderRef}

	var err error
	if order.WarehouseID, err = parseIDPtr("warehouseId", r.WarehouseID, nil); err != nil {
		return order, err
	}

	for _, line := range r.Lines {
		variantID, err := parseID("variantId", line.VariantID)
		if err != nil {
			return order, err
		}
		taxRateID, err := parseIDPtr("taxRateId", line.TaxRateID, nil)
		if err != nil {
			return order, err
		}
		order.Lines = append(order.Lines, ordersync.OrderLine{
			VariantID: variantID,
			Quantity:  line.Quantity,
			PriceNet:  line.PriceNet,
			TaxRateID: taxRateID,
		})
	}
	return order, nil
}

// OrderStatusRequest is the payload of an order status change webhook.
type OrderStatusRequest struct {
	OrderRef string `json:"orderRef" binding:"required"`
	Status   string `json:"status" binding:"required"`
}
