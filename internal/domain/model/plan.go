package model

// Plan is a promotion package a seller pays for. Plans are static.
type Plan struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	DurationDays int    `json:"duration_days"`
	PriceCents   int64  `json:"price_cents"`
	MaxPhotos    int    `json:"max_photos"`
	Description  string `json:"description"`
}

const (
	// DefaultPlanID is assumed for listings stored without a plan.
	DefaultPlanID = 2
	// FallbackDurationDays applies when a stored plan id is not in the catalog anymore.
	FallbackDurationDays = 30
)

// PlanCatalog is a read-only lookup table.
type PlanCatalog struct {
	order []int
	byID  map[int]Plan
}

func NewPlanCatalog(plans ...Plan) *PlanCatalog {
	c := &PlanCatalog{byID: make(map[int]Plan, len(plans))}
	for _, p := range plans {
		if _, dup := c.byID[p.ID]; dup {
			continue
		}
		c.order = append(c.order, p.ID)
		c.byID[p.ID] = p
	}
	return c
}

// DefaultPlanCatalog returns the marketplace plans in display order.
func DefaultPlanCatalog() *PlanCatalog {
	return NewPlanCatalog(
		Plan{ID: 5, Name: "Teste", DurationDays: 1, PriceCents: 100, MaxPhotos: 3, Description: "Apenas para testar o sistema"},
		Plan{ID: 1, Name: "Diário", DurationDays: 1, PriceCents: 1000, MaxPhotos: 3, Description: "Rápido e barato"},
		Plan{ID: 2, Name: "Semanal", DurationDays: 7, PriceCents: 6000, MaxPhotos: 5, Description: "Ideal para maioria"},
		Plan{ID: 3, Name: "Quinzenal", DurationDays: 15, PriceCents: 16000, MaxPhotos: 10, Description: "Mais visibilidade"},
		Plan{ID: 4, Name: "Mensal", DurationDays: 30, PriceCents: 30000, MaxPhotos: 20, Description: "Venda profissional"},
	)
}

// Lookup resolves a plan id. Zero resolves to DefaultPlanID.
func (c *PlanCatalog) Lookup(id int) (Plan, bool) {
	if id == 0 {
		id = DefaultPlanID
	}
	p, ok := c.byID[id]
	return p, ok
}

// DurationDays never fails: unknown plans get FallbackDurationDays.
func (c *PlanCatalog) DurationDays(id int) int {
	if p, ok := c.Lookup(id); ok {
		return p.DurationDays
	}
	return FallbackDurationDays
}

func (c *PlanCatalog) List() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}
