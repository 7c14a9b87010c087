package handler

import (
	"time"

	"github.com/vendhub/marketplace/internal/domain/cart"
	"github.com/vendhub/marketplace/internal/domain/coupon"
	"github.com/vendhub/marketplace/internal/domain/inventory"
	"github.com/vendhub/marketplace/internal/domain/order"
	"github.com/vendhub/marketplace/internal/domain/pricing"
	"github.com/vendhub/marketplace/internal/domain/product"
)

type variantView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
	Stock int    `json:"stock"`
}

type productView struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Price       string        `json:"price"`
	Stock       int           `json:"stock"`
	Discount    string        `json:"discount"`
	Category    string        `json:"category,omitempty"`
	Variants    []variantView `json:"variants,omitempty"`
}

func toProductView(p *product.Product) productView {
	v := productView{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		Discount:    p.Discount.StringFixed(2),
		Category:    p.Category,
	}
	for _, pv := range p.Variants {
		price := p.Price
		if pv.Price != nil {
			price = *pv.Price
		}
		v.Variants = append(v.Variants, variantView{
			ID:    pv.ID,
			Name:  pv.Name,
			Price: price.StringFixed(2),
			Stock: pv.Stock,
		})
	}
	return v
}

type cartItemView struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	VariantID string    `json:"variant_id,omitempty"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

func toCartItemView(it *cart.Item) cartItemView {
	return cartItemView{
		ID:        it.ID,
		ProductID: it.ProductID,
		VariantID: it.VariantID,
		Quantity:  it.Quantity,
		AddedAt:   it.AddedAt,
	}
}

type appliedCouponView struct {
	Code          string `json:"code"`
	DiscountType  string `json:"discount_type"`
	DiscountValue string `json:"discount_value"`
}

type cartView struct {
	Items  []cartItemView     `json:"items"`
	Coupon *appliedCouponView `json:"coupon,omitempty"`
}

func toCartView(c *cart.Cart) cartView {
	v := cartView{Items: make([]cartItemView, 0, len(c.Items))}
	for i := range c.Items {
		v.Items = append(v.Items, toCartItemView(&c.Items[i]))
	}
	if c.Coupon != nil {
		v.Coupon = &appliedCouponView{
			Code:          c.Coupon.Code,
			DiscountType:  string(c.Coupon.DiscountType),
			DiscountValue: c.Coupon.DiscountValue.StringFixed(2),
		}
	}
	return v
}

type totalsView struct {
	Subtotal        string `json:"subtotal"`
	ProductDiscount string `json:"product_discount"`
	CouponDiscount  string `json:"coupon_discount"`
	Tax             string `json:"tax"`
	Shipping        string `json:"shipping"`
	Total           string `json:"total"`
}

func toTotalsView(t pricing.Totals) totalsView {
	return totalsView{
		Subtotal:        t.Subtotal.StringFixed(2),
		ProductDiscount: t.ProductDiscount.StringFixed(2),
		CouponDiscount:  t.CouponDiscount.StringFixed(2),
		Tax:             t.Tax.StringFixed(2),
		Shipping:        t.Shipping.StringFixed(2),
		Total:           t.Total.StringFixed(2),
	}
}

type refundView struct {
	Amount        string    `json:"amount"`
	At            time.Time `json:"at"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	ProcessedBy   string    `json:"processed_by"`
}

type orderView struct {
	ID              string               `json:"id"`
	Number          string               `json:"number"`
	Status          string               `json:"status"`
	Items           []order.Item         `json:"items"`
	ShippingAddress order.Address        `json:"shipping_address"`
	BillingAddress  *order.Address       `json:"billing_address,omitempty"`
	ShippingMethod  string               `json:"shipping_method,omitempty"`
	PaymentMethod   string               `json:"payment_method,omitempty"`
	Subtotal        string               `json:"subtotal"`
	ProductDiscount string               `json:"product_discount"`
	CouponDiscount  string               `json:"coupon_discount"`
	CouponCode      string               `json:"coupon_code,omitempty"`
	Tax             string               `json:"tax"`
	ShippingCost    string               `json:"shipping_cost"`
	Total           string               `json:"total"`
	History         []order.HistoryEntry `json:"history"`
	Refund          *refundView          `json:"refund,omitempty"`
	TrackingNumber  string               `json:"tracking_number,omitempty"`
	Carrier         string               `json:"carrier,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

func toOrderView(o *order.Order) orderView {
	v := orderView{
		ID:              o.ID,
		Number:          o.Number,
		Status:          string(o.Status),
		Items:           o.Items,
		ShippingAddress: o.ShippingAddress,
		BillingAddress:  o.BillingAddress,
		ShippingMethod:  o.ShippingMethod,
		PaymentMethod:   o.PaymentMethod,
		Subtotal:        o.Subtotal.StringFixed(2),
		ProductDiscount: o.ProductDiscount.StringFixed(2),
		CouponDiscount:  o.CouponDiscount.StringFixed(2),
		CouponCode:      o.CouponCode,
		Tax:             o.Tax.StringFixed(2),
		ShippingCost:    o.ShippingCost.StringFixed(2),
		Total:           o.Total.StringFixed(2),
		History:         o.History,
		TrackingNumber:  o.TrackingNumber,
		Carrier:         o.Carrier,
		CreatedAt:       o.CreatedAt,
	}
	if o.Refund != nil {
		v.Refund = &refundView{
			Amount:        o.Refund.Amount.StringFixed(2),
			At:            o.Refund.At,
			TransactionID: o.Refund.TransactionID,
			Reason:        o.Refund.Reason,
			ProcessedBy:   o.Refund.ProcessedBy,
		}
	}
	return v
}

type couponView struct {
	Code              string     `json:"code"`
	DiscountType      string     `json:"discount_type"`
	Value             string     `json:"value"`
	MinimumPurchase   string     `json:"minimum_purchase"`
	MaximumDiscount   string     `json:"maximum_discount"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
	UsageLimit        int        `json:"usage_limit"`
	UsageLimitPerUser int        `json:"usage_limit_per_user"`
	OneTimeUse        bool       `json:"one_time_use"`
	Active            bool       `json:"active"`
	UsageCount        int        `json:"usage_count"`
	Description       string     `json:"description,omitempty"`
}

func toCouponView(c *coupon.Coupon) couponView {
	return couponView{
		Code:              c.Code,
		DiscountType:      string(c.DiscountType),
		Value:             c.Value.StringFixed(2),
		MinimumPurchase:   c.MinimumPurchase.StringFixed(2),
		MaximumDiscount:   c.MaximumDiscount.StringFixed(2),
		ExpiresAt:         c.ExpiresAt,
		UsageLimit:        c.UsageLimit,
		UsageLimitPerUser: c.UsageLimitPerUser,
		OneTimeUse:        c.OneTimeUse,
		Active:            c.Active,
		UsageCount:        c.UsageCount,
		Description:       c.Description,
	}
}

type ledgerEntryView struct {
	ID            int64     `json:"id"`
	ProductID     string    `json:"product_id"`
	VariantID     string    `json:"variant_id,omitempty"`
	ChangeType    string    `json:"change_type"`
	PreviousStock int       `json:"previous_stock"`
	NewStock      int       `json:"new_stock"`
	Reason        string    `json:"reason,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toLedgerEntryView(e *inventory.Entry) ledgerEntryView {
	return ledgerEntryView{
		ID:            e.ID,
		ProductID:     e.Ref.ProductID,
		VariantID:     e.Ref.VariantID,
		ChangeType:    string(e.Type),
		PreviousStock: e.PreviousStock,
		NewStock:      e.NewStock,
		Reason:        e.Reason,
		Actor:         e.Actor,
		CreatedAt:     e.CreatedAt,
	}
}
