//go:build integration

package integration

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
)

func TestCart_AddUpdateRemove(t *testing.T) {
	clearCart(t)
	setStock(t, "prod-desk-lamp", 10)

	resp := doPostAuth(t, "/api/cart/items", map[string]any{
		"product_id": "prod-desk-lamp",
		"quantity":   3,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add: expected 201, got %d", resp.StatusCode)
	}
	added := decodeJSON[addItemResponse](t, resp)
	resp.Body.Close()

	if added.Item.Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", added.Item.Quantity)
	}
	if got := productStock(t, "prod-desk-lamp"); got != 7 {
		t.Fatalf("expected stock 7 after reservation, got %d", got)
	}

	// Adding the same product again merges into the existing line.
	resp = doPostAuth(t, "/api/cart/items", map[string]any{
		"product_id": "prod-desk-lamp",
		"quantity":   2,
	})
	merged := decodeJSON[addItemResponse](t, resp)
	resp.Body.Close()

	if merged.Item.ID != added.Item.ID {
		t.Fatalf("expected merge into line %s, got %s", added.Item.ID, merged.Item.ID)
	}
	if merged.Item.Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %d", merged.Item.Quantity)
	}

	// Shrinking the line releases the difference.
	resp = doReq(t, http.MethodPut, "/api/cart/items/"+added.Item.ID, map[string]any{
		"quantity": 1,
	}, testAPIKey)
	resp.Body.Close()
	if got := productStock(t, "prod-desk-lamp"); got != 9 {
		t.Fatalf("expected stock 9 after shrink, got %d", got)
	}

	// Removing the line releases the rest.
	resp = doReq(t, http.MethodDelete, "/api/cart/items/"+added.Item.ID, nil, testAPIKey)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("remove: expected 200, got %d", resp.StatusCode)
	}
	if got := productStock(t, "prod-desk-lamp"); got != 10 {
		t.Fatalf("expected stock 10 after remove, got %d", got)
	}
}

func TestCart_InsufficientStock(t *testing.T) {
	clearCart(t)
	setStock(t, "prod-trail-bottle", 2)

	resp := doPostAuth(t, "/api/cart/items", map[string]any{
		"product_id": "prod-trail-bottle",
		"quantity":   5,
	})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if got := productStock(t, "prod-trail-bottle"); got != 2 {
		t.Fatalf("failed add must not touch stock: expected 2, got %d", got)
	}
}

// TestCart_ConcurrentAdds hammers one product with parallel reservations and
// checks that stock never oversells or goes negative.
func TestCart_ConcurrentAdds(t *testing.T) {
	clearCart(t)
	setStock(t, "prod-espresso-machine", 5)

	const attempts = 20

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := doPostAuth(t, "/api/cart/items", map[string]any{
				"product_id": "prod-espresso-machine",
				"quantity":   1,
			})
			defer resp.Body.Close()
			if resp.StatusCode == http.StatusCreated {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	won := int(succeeded.Load())
	if won == 0 || won > 5 {
		t.Fatalf("expected between 1 and 5 successful reservations, got %d", won)
	}
	if got := productStock(t, "prod-espresso-machine"); got != 5-won {
		t.Fatalf("conservation violated: %d reservations but stock %d", won, got)
	}

	// Clearing the cart returns every reserved unit.
	clearCart(t)
	if got := productStock(t, "prod-espresso-machine"); got != 5 {
		t.Fatalf("expected stock restored to 5, got %d", got)
	}
}

func TestCart_CouponTotals(t *testing.T) {
	clearCart(t)
	setStock(t, "prod-coffee-grinder", 10)

	resp := doPostAuth(t, "/api/cart/items", map[string]any{
		"product_id": "prod-coffee-grinder",
		"quantity":   1,
	})
	resp.Body.Close()

	resp = doPostAuth(t, "/api/cart/coupon", map[string]any{"code": "SAVE20"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("apply coupon: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doGetAuth(t, "/api/cart/total")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("totals: expected 200, got %d", resp.StatusCode)
	}

	quote := decodeJSON[cartEnvelope](t, resp)
	if quote.Totals == nil {
		t.Fatal("expected totals in response")
	}
	if quote.Totals.Subtotal != "189.50" {
		t.Fatalf("expected subtotal 189.50, got %s", quote.Totals.Subtotal)
	}
	if quote.Totals.CouponDiscount != "37.90" {
		t.Fatalf("expected coupon discount 37.90, got %s", quote.Totals.CouponDiscount)
	}
	// Discounted subtotal clears the free-shipping threshold.
	if quote.Totals.Shipping != "0.00" {
		t.Fatalf("expected free shipping, got %s", quote.Totals.Shipping)
	}
	if quote.Totals.Total != "162.21" {
		t.Fatalf("expected total 162.21, got %s", quote.Totals.Total)
	}

	clearCart(t)
}

func TestCart_UnknownCoupon(t *testing.T) {
	clearCart(t)
	setStock(t, "prod-desk-lamp", 10)

	resp := doPostAuth(t, "/api/cart/items", map[string]any{
		"product_id": "prod-desk-lamp",
		"quantity":   1,
	})
	resp.Body.Close()

	resp = doPostAuth(t, "/api/cart/coupon", map[string]any{"code": "NOSUCHCODE"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	clearCart(t)
}
