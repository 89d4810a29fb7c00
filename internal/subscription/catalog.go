package subscription

import (
	"time"

	"github.com/m41na/payment-agent-sub001/internal/domain"
)

// CatalogPlan binds a purchasable plan to its processor-side price. One-time
// plans have no price id; AccessFor bounds how long the purchase grants.
type CatalogPlan struct {
	Plan             domain.Plan
	ProcessorPriceID string
	AccessFor        time.Duration // one-time plans only
}

// Catalog is the static set of purchasable plans, fixed at startup.
type Catalog struct {
	plans map[string]CatalogPlan
}

func NewCatalog(plans []CatalogPlan) *Catalog {
	m := make(map[string]CatalogPlan, len(plans))
	for _, p := range plans {
		m[p.Plan.ID] = p
	}
	return &Catalog{plans: m}
}

func (c *Catalog) Get(planID string) (CatalogPlan, bool) {
	p, ok := c.plans[planID]
	return p, ok
}

func (c *Catalog) List() []CatalogPlan {
	out := make([]CatalogPlan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	return out
}
