//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts_NoAuth(t *testing.T) {
	resp := doGet(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestListProducts(t *testing.T) {
	resp := doGetAuth(t, "/api/products")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	list := decodeJSON[productListResponse](t, resp)
	if len(list.Products) != seededProducts {
		t.Fatalf("expected %d products, got %d", seededProducts, len(list.Products))
	}
}

func TestListProducts_CategoryFilter(t *testing.T) {
	resp := doGetAuth(t, "/api/products?category=kitchen")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	list := decodeJSON[productListResponse](t, resp)
	if len(list.Products) != 2 {
		t.Fatalf("expected 2 kitchen products, got %d", len(list.Products))
	}
	for _, p := range list.Products {
		if p.Category != "kitchen" {
			t.Fatalf("expected only kitchen products, got %q", p.Category)
		}
	}
}

func TestGetProduct_WithVariants(t *testing.T) {
	resp := doGetAuth(t, "/api/products/prod-hoodie")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	p := decodeJSON[productDetailResponse](t, resp).Product
	if len(p.Variants) != 3 {
		t.Fatalf("expected 3 variants, got %d", len(p.Variants))
	}
	// The L/Forest variant carries its own price; the others inherit.
	for _, v := range p.Variants {
		want := "58.00"
		if v.ID == "hoodie-l-forest" {
			want = "62.00"
		}
		if v.Price != want {
			t.Fatalf("variant %s: expected price %s, got %s", v.ID, want, v.Price)
		}
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	resp := doGetAuth(t, "/api/products/no-such-product")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
