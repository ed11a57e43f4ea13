package stock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemRefSKU_Precedence(t *testing.T) {
	tests := []struct {
		name string
		item ItemRef
		want string
	}{
		{"primary id wins over all", ItemRef{ID: "a", SKUID: "b", ProductID: "c"}, "a"},
		{"sku_id wins over product_id", ItemRef{SKUID: "b", ProductID: "c"}, "b"},
		{"product_id as last resort", ItemRef{ProductID: "c"}, "c"},
		{"nothing set", ItemRef{Name: "widget"}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.item.SKU())
		})
	}
}

func TestSKUPrecedence_Pinned(t *testing.T) {
	// the precedence list is part of the contract with older clients
	assert.Equal(t, [3]string{"id", "sku_id", "product_id"}, SKUPrecedence)
}

func TestItemRefQuantity_DefaultsToOne(t *testing.T) {
	assert.Equal(t, 1, ItemRef{}.Quantity())
	assert.Equal(t, 1, ItemRef{Qty: -3}.Quantity())
	assert.Equal(t, 4, ItemRef{Qty: 4}.Quantity())
}
