package cart

import (
	"sort"

	"github.com/m41na/payment-agent-sub001/internal/domain"
)

// Pricing policy constants, minor currency units.
const (
	taxRateBps          = 850 // 8.5%
	shippingBaseFee     = 500
	shippingPerAddlItem = 200
)

// ComputeSummary derives totals and merchant groups from the cart contents.
// Pure function, no I/O; callers snapshot the result at checkout time.
func ComputeSummary(items []domain.CartItem) domain.CartSummary {
	groups := groupBySeller(items)

	var subtotal int64
	itemCount := 0
	for _, item := range items {
		subtotal += item.UnitPrice * int64(item.Quantity)
		itemCount += item.Quantity
	}

	tax := roundHalfUpBps(subtotal, taxRateBps)
	shipping := computeShipping(itemCount)

	return domain.CartSummary{
		Subtotal:       subtotal,
		Tax:            tax,
		Shipping:       shipping,
		Total:          subtotal + tax + shipping,
		ItemCount:      itemCount,
		MerchantGroups: groups,
	}
}

func computeShipping(itemCount int) int64 {
	if itemCount == 0 {
		return 0
	}
	extra := itemCount - 1
	return shippingBaseFee + shippingPerAddlItem*int64(extra)
}

// roundHalfUpBps applies a basis-point rate with half-up rounding, staying in
// integer arithmetic so money never touches a float.
func roundHalfUpBps(amount int64, bps int64) int64 {
	return (amount*bps + 5000) / 10000
}

func groupBySeller(items []domain.CartItem) []domain.MerchantGroup {
	bySeller := make(map[string]*domain.MerchantGroup)
	for _, item := range items {
		sellerID := item.SellerID
		if sellerID == "" {
			sellerID = domain.UnknownSeller
		}
		g, ok := bySeller[sellerID]
		if !ok {
			g = &domain.MerchantGroup{
				SellerID: sellerID,
				Merchant: item.Snapshot.Merchant,
			}
			bySeller[sellerID] = g
		}
		g.Items = append(g.Items, item)
		g.Subtotal += item.UnitPrice * int64(item.Quantity)
		g.ItemCount += item.Quantity
	}

	groups := make([]domain.MerchantGroup, 0, len(bySeller))
	for _, g := range bySeller {
		groups = append(groups, *g)
	}
	// deterministic order for progress reporting and tests
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].SellerID < groups[j].SellerID
	})
	return groups
}
