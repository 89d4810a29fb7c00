package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m41na/payment-agent-sub001/internal/domain"
)

func item(productID, sellerID string, qty int, unitPrice int64) domain.CartItem {
	return domain.CartItem{
		ProductID: productID,
		SellerID:  sellerID,
		Quantity:  qty,
		UnitPrice: unitPrice,
		Snapshot:  domain.ProductSnapshot{Title: productID, Merchant: "shop-" + sellerID},
	}
}

func TestComputeSummary_SingleMerchant(t *testing.T) {
	// $10.00 x1 and $15.00 x2 -> subtotal $40.00, tax 8.5% -> $3.40,
	// shipping $5 base + $2 x 2 extra items -> $9.00, total $52.40
	items := []domain.CartItem{
		item("p1", "s1", 1, 1000),
		item("p2", "s1", 2, 1500),
	}

	s := ComputeSummary(items)

	assert.Equal(t, int64(4000), s.Subtotal)
	assert.Equal(t, int64(340), s.Tax)
	assert.Equal(t, int64(900), s.Shipping)
	assert.Equal(t, int64(5240), s.Total)
	assert.Equal(t, 3, s.ItemCount)
	require.Len(t, s.MerchantGroups, 1)
	assert.Equal(t, "s1", s.MerchantGroups[0].SellerID)
	assert.Equal(t, int64(4000), s.MerchantGroups[0].Subtotal)
}

func TestComputeSummary_TotalIsExactSum(t *testing.T) {
	items := []domain.CartItem{
		item("p1", "s1", 3, 1234),
		item("p2", "s2", 1, 999),
		item("p3", "s2", 2, 1),
	}

	s := ComputeSummary(items)
	assert.Equal(t, s.Subtotal+s.Tax+s.Shipping, s.Total)
}

func TestComputeSummary_GroupsBySeller(t *testing.T) {
	items := []domain.CartItem{
		item("p1", "s2", 1, 100),
		item("p2", "s1", 1, 200),
		item("p3", "s2", 1, 300),
	}

	s := ComputeSummary(items)

	require.Len(t, s.MerchantGroups, 2)
	// deterministic ordering by seller id
	assert.Equal(t, "s1", s.MerchantGroups[0].SellerID)
	assert.Equal(t, "s2", s.MerchantGroups[1].SellerID)
	assert.Equal(t, int64(200), s.MerchantGroups[0].Subtotal)
	assert.Equal(t, int64(400), s.MerchantGroups[1].Subtotal)
	assert.Len(t, s.MerchantGroups[1].Items, 2)
}

func TestComputeSummary_UnknownSellerSentinel(t *testing.T) {
	items := []domain.CartItem{
		item("p1", "", 1, 500),
		item("p2", "s1", 1, 600),
	}

	s := ComputeSummary(items)

	require.Len(t, s.MerchantGroups, 2)
	assert.Equal(t, "s1", s.MerchantGroups[0].SellerID)
	assert.Equal(t, domain.UnknownSeller, s.MerchantGroups[1].SellerID)
	assert.Equal(t, int64(500), s.MerchantGroups[1].Subtotal)
}

func TestComputeSummary_EmptyCart(t *testing.T) {
	s := ComputeSummary(nil)

	assert.Equal(t, int64(0), s.Subtotal)
	assert.Equal(t, int64(0), s.Shipping)
	assert.Equal(t, int64(0), s.Total)
	assert.Empty(t, s.MerchantGroups)
}

func TestRoundHalfUpBps(t *testing.T) {
	// 8.5% of 100 = 8.5 -> rounds up to 9
	assert.Equal(t, int64(9), roundHalfUpBps(100, taxRateBps))
	// 8.5% of 40 = 3.4 -> rounds down to 3
	assert.Equal(t, int64(3), roundHalfUpBps(40, taxRateBps))
	assert.Equal(t, int64(0), roundHalfUpBps(0, taxRateBps))
}

func TestComputeShipping_SingleItemPaysBaseOnly(t *testing.T) {
	assert.Equal(t, int64(500), computeShipping(1))
	assert.Equal(t, int64(700), computeShipping(2))
	assert.Equal(t, int64(0), computeShipping(0))
}
