package valuation

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

// MaxMoney caps every area × rate product. Two components summed stay far
// below the int64 range used for stored amounts.
const MaxMoney int64 = 100_000_000_000_000_000

var maxMoney = decimal.NewFromInt(MaxMoney)

// checkProduct fails when area × rate exceeds MaxMoney.
func checkProduct(name string, area float64, rate int64) error {
	if decimal.NewFromFloat(area).Mul(decimal.NewFromInt(rate)).GreaterThan(maxMoney) {
		return fmt.Errorf("%s exceeds the maximum amount %d", name, MaxMoney)
	}
	return nil
}

// Defaults fills percentages the appraiser left empty.
type Defaults struct {
	SafetyMarginPercent      float64
	LiquidationFactorPercent float64
}

// Normalize validates a draft and resolves every optional field so the
// calculator never needs a fallback. Derived building rates are left zero;
// Calculator.ApplyBuildingStandard fills them.
func Normalize(draft domain.ValuationDraft, defaults Defaults) (domain.ValuationInput, error) {
	var problems []error
	nonNegative := func(name string, v float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			problems = append(problems, fmt.Errorf("%s must be a finite number >= 0", name))
		}
	}
	inRange := func(name string, v float64) {
		if math.IsNaN(v) || v < 0 || v > 100 {
			problems = append(problems, fmt.Errorf("%s must be between 0 and 100", name))
		}
	}

	nonNegative("land_area", draft.LandArea)
	nonNegative("building_area", draft.BuildingArea)
	nonNegative("land_rate", float64(draft.LandRate))

	code := strings.TrimSpace(draft.BuildingStandardCode)
	if code == "" {
		problems = append(problems, errors.New("building_standard_code is required"))
	}
	if draft.YearBuilt != nil && *draft.YearBuilt <= 0 {
		problems = append(problems, errors.New("year_built must be a positive year"))
	}

	safety := defaults.SafetyMarginPercent
	if draft.SafetyMarginPercent != nil {
		safety = *draft.SafetyMarginPercent
	}
	liquidation := defaults.LiquidationFactorPercent
	if draft.LiquidationFactorPercent != nil {
		liquidation = *draft.LiquidationFactorPercent
	}
	inRange("safety_margin_percent", safety)
	inRange("liquidation_factor_percent", liquidation)

	njopLand, err := perSquare("njop_land", draft.NJOPLandPerSquare, draft.NJOPLandTotal, draft.LandArea)
	if err != nil {
		problems = append(problems, err)
	}
	njopBuilding, err := perSquare("njop_building", draft.NJOPBuildingPerSquare, draft.NJOPBuildingTotal, draft.BuildingArea)
	if err != nil {
		problems = append(problems, err)
	}

	if len(problems) == 0 {
		for _, err := range []error{
			checkProduct("land value (land_area × land_rate)", draft.LandArea, draft.LandRate),
			checkProduct("njop land value", draft.LandArea, njopLand),
			checkProduct("njop building value", draft.BuildingArea, njopBuilding),
		} {
			if err != nil {
				problems = append(problems, err)
			}
		}
	}

	if len(problems) > 0 {
		return domain.ValuationInput{}, domain.WrapError(domain.ErrInvalidInput, "normalize valuation input", errors.Join(problems...))
	}

	var yearBuilt *int
	if draft.YearBuilt != nil {
		y := *draft.YearBuilt
		yearBuilt = &y
	}
	return domain.ValuationInput{
		LandArea:                 draft.LandArea,
		BuildingArea:             draft.BuildingArea,
		LandRate:                 draft.LandRate,
		BuildingStandardCode:     code,
		YearBuilt:                yearBuilt,
		NJOPLandPerSquare:        njopLand,
		NJOPBuildingPerSquare:    njopBuilding,
		SafetyMarginPercent:      safety,
		LiquidationFactorPercent: liquidation,
	}, nil
}

// perSquare prefers the explicit per-m² figure and otherwise derives it from
// the assessed total.
func perSquare(name string, explicit, total *int64, area float64) (int64, error) {
	if explicit != nil {
		if *explicit < 0 {
			return 0, fmt.Errorf("%s_per_square must be >= 0", name)
		}
		return *explicit, nil
	}
	if total == nil {
		return 0, nil
	}
	if *total < 0 {
		return 0, fmt.Errorf("%s_total must be >= 0", name)
	}
	if area <= 0 {
		return 0, nil
	}
	return int64(math.Round(float64(*total) / area)), nil
}

// ValidateComparables checks the ranges of captured market transactions.
func ValidateComparables(comparables []domain.MarketComparable) error {
	var problems []error
	for i, cmp := range comparables {
		if cmp.Price < 0 {
			problems = append(problems, fmt.Errorf("comparables[%d].price must be >= 0", i))
		}
		if math.IsNaN(cmp.LandArea) || math.IsInf(cmp.LandArea, 0) || cmp.LandArea < 0 {
			problems = append(problems, fmt.Errorf("comparables[%d].land_area must be >= 0", i))
		}
		if cmp.Weight != nil && (math.IsNaN(*cmp.Weight) || math.IsInf(*cmp.Weight, 0) || *cmp.Weight < 0) {
			problems = append(problems, fmt.Errorf("comparables[%d].weight must be >= 0", i))
		}
		if cmp.AdjustedPrice != nil && *cmp.AdjustedPrice < 0 {
			problems = append(problems, fmt.Errorf("comparables[%d].adjusted_price must be >= 0", i))
		}
		if fps := cmp.FinalPricePerSquare; fps != nil && (math.IsNaN(*fps) || math.IsInf(*fps, 0) || *fps < 0 || *fps > float64(MaxMoney)) {
			problems = append(problems, fmt.Errorf("comparables[%d].final_price_per_square must be between 0 and %d", i, MaxMoney))
		}
	}
	if len(problems) > 0 {
		return domain.WrapError(domain.ErrInvalidInput, "validate comparables", errors.Join(problems...))
	}
	return nil
}
