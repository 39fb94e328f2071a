package valuation

import (
	"fmt"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

type Category string

const (
	CategoryTypeA Category = "type_a"
	CategoryTypeB Category = "type_b"
	CategoryTypeC Category = "type_c"
)

// BuildingStandard is an immutable catalog row. BaseRate is in currency per m².
type BuildingStandard struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	Floors        int      `json:"floors"`
	Category      Category `json:"category"`
	BaseRate      int64    `json:"base_rate"`
	Specification []string `json:"specification"`
}

// Catalog is the constant table of construction-quality tiers.
type Catalog struct {
	order []string
	byKey map[string]BuildingStandard
}

func NewCatalog() *Catalog {
	return newCatalog(defaultStandards())
}

func newCatalog(rows []BuildingStandard) *Catalog {
	c := &Catalog{
		order: make([]string, 0, len(rows)),
		byKey: make(map[string]BuildingStandard, len(rows)),
	}
	for _, row := range rows {
		c.order = append(c.order, row.Code)
		c.byKey[row.Code] = row
	}
	return c
}

func (c *Catalog) Lookup(code string) (BuildingStandard, bool) {
	std, ok := c.byKey[code]
	if !ok {
		return BuildingStandard{}, false
	}
	return std.clone(), true
}

func (c *Catalog) Get(code string) (BuildingStandard, error) {
	std, ok := c.Lookup(code)
	if !ok {
		return BuildingStandard{}, domain.WrapError(domain.ErrNotFound, "lookup building standard", fmt.Errorf("code=%s", code))
	}
	return std, nil
}

// All returns the catalog in display order.
func (c *Catalog) All() []BuildingStandard {
	out := make([]BuildingStandard, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, c.byKey[code].clone())
	}
	return out
}

func (s BuildingStandard) clone() BuildingStandard {
	out := s
	out.Specification = append([]string(nil), s.Specification...)
	return out
}

func defaultStandards() []BuildingStandard {
	return []BuildingStandard{
		{
			Code:     "house_one_story_type_a",
			Name:     "One-story house, type A",
			Floors:   1,
			Category: CategoryTypeA,
			BaseRate: 2_900_000,
			Specification: []string{
				"Reinforced concrete foundation and frame",
				"Plastered and painted brick walls",
				"Ceramic tile 60x60 flooring",
				"Gypsum ceiling on metal frame",
				"Concrete roof tiles on light steel truss",
			},
		},
		{
			Code:     "house_one_story_type_b",
			Name:     "One-story house, type B",
			Floors:   1,
			Category: CategoryTypeB,
			BaseRate: 2_400_000,
			Specification: []string{
				"River stone foundation",
				"Plastered brick walls",
				"Ceramic tile 40x40 flooring",
				"Plywood ceiling on wooden frame",
				"Clay roof tiles on wooden truss",
			},
		},
		{
			Code:     "house_one_story_type_c",
			Name:     "One-story house, type C",
			Floors:   1,
			Category: CategoryTypeC,
			BaseRate: 1_900_000,
			Specification: []string{
				"River stone foundation",
				"Concrete block walls",
				"Cement screed flooring",
				"Fiber cement ceiling",
				"Metal sheet roofing",
			},
		},
		{
			Code:     "house_two_story_type_a",
			Name:     "Two-story house, type A",
			Floors:   2,
			Category: CategoryTypeA,
			BaseRate: 3_500_000,
			Specification: []string{
				"Reinforced concrete pile foundation and frame",
				"Reinforced concrete upper floor slab",
				"Plastered and painted brick walls",
				"Granite tile flooring",
				"Gypsum ceiling on metal frame",
				"Concrete roof tiles on light steel truss",
			},
		},
		{
			Code:     "house_two_story_type_b",
			Name:     "Two-story house, type B",
			Floors:   2,
			Category: CategoryTypeB,
			BaseRate: 2_950_000,
			Specification: []string{
				"Reinforced concrete footing and frame",
				"Reinforced concrete upper floor slab",
				"Plastered brick walls",
				"Ceramic tile 40x40 flooring",
				"Clay roof tiles on wooden truss",
			},
		},
		{
			Code:     "house_two_story_type_c",
			Name:     "Two-story house, type C",
			Floors:   2,
			Category: CategoryTypeC,
			BaseRate: 2_400_000,
			Specification: []string{
				"River stone foundation with concrete columns",
				"Wooden upper floor on timber joists",
				"Concrete block walls",
				"Cement screed flooring",
				"Metal sheet roofing",
			},
		},
	}
}
