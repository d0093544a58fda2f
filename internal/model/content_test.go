// Copyright (C) 2024 the quixsi maintainers
// See root-dir/LICENSE for more information

package model

import "testing"

func TestShopCopy_Totals(t *testing.T) {
	shop := &ShopCopy{Product: Product{Price: 59.99}}

	tests := []struct {
		name     string
		qty      int
		percent  int
		expected Totals
	}{
		{name: "no discount", qty: 1, expected: Totals{Subtotal: 59.99, Total: 59.99}},
		{name: "student discount", qty: 1, percent: 10, expected: Totals{Subtotal: 59.99, Discount: 6, Total: 53.99}},
		{name: "two units", qty: 2, percent: 15, expected: Totals{Subtotal: 119.98, Discount: 18, Total: 101.98}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := shop.Totals(tc.qty, tc.percent); got != tc.expected {
				t.Fatalf("got %+v, expected %+v", got, tc.expected)
			}
		})
	}
}
