package valuation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

var hundred = decimal.NewFromInt(100)

// BuildingValuation is the catalog rate adjusted for building age.
type BuildingValuation struct {
	Standard            BuildingStandard `json:"standard"`
	StandardRate        int64            `json:"standard_rate"`
	DepreciationPercent float64          `json:"depreciation_percent"`
	AdjustedRate        int64            `json:"adjusted_rate"`
	Age                 *int             `json:"age,omitempty"`
}

// Calculator holds only immutable collaborators; all methods are safe for
// concurrent use.
type Calculator struct {
	catalog  *Catalog
	schedule DepreciationSchedule
	now      func() time.Time
}

func NewCalculator(catalog *Catalog, schedule DepreciationSchedule, now func() time.Time) *Calculator {
	if catalog == nil {
		catalog = NewCatalog()
	}
	if schedule == nil {
		schedule = DefaultDepreciationSchedule()
	}
	if now == nil {
		now = time.Now
	}
	return &Calculator{catalog: catalog, schedule: schedule, now: now}
}

func (c *Calculator) Catalog() *Catalog { return c.catalog }

func (c *Calculator) ComputeBuildingValuation(code string, yearBuilt *int, appraisalDate *time.Time) (BuildingValuation, error) {
	std, ok := c.catalog.Lookup(code)
	if !ok {
		return BuildingValuation{}, fmt.Errorf("%w: %q", domain.ErrInvalidStandard, code)
	}
	out := BuildingValuation{
		Standard:     std,
		StandardRate: std.BaseRate,
		AdjustedRate: std.BaseRate,
	}
	if yearBuilt == nil {
		return out, nil
	}

	reference := c.now()
	if appraisalDate != nil {
		reference = *appraisalDate
	}
	age := AgeAt(*yearBuilt, reference)
	out.Age = &age
	out.DepreciationPercent = c.schedule.Resolve(float64(age))
	out.AdjustedRate = roundMoney(
		decimal.NewFromInt(std.BaseRate).Mul(decimal.NewFromInt(1).Sub(percent(out.DepreciationPercent))),
	)
	return out, nil
}

// ApplyBuildingStandard fills the derived building rate fields of the input
// from the catalog and depreciation schedule.
func (c *Calculator) ApplyBuildingStandard(in domain.ValuationInput, appraisalDate *time.Time) (domain.ValuationInput, error) {
	bv, err := c.ComputeBuildingValuation(in.BuildingStandardCode, in.YearBuilt, appraisalDate)
	if err != nil {
		return domain.ValuationInput{}, err
	}
	if err := checkProduct("building value (building_area × building_rate)", in.BuildingArea, bv.AdjustedRate); err != nil {
		return domain.ValuationInput{}, domain.WrapError(domain.ErrInvalidInput, "apply building standard", err)
	}
	in.BuildingStandardRate = bv.StandardRate
	in.BuildingDepreciationPercent = bv.DepreciationPercent
	in.BuildingRate = bv.AdjustedRate
	return in, nil
}

// CalculateValuation is a pure function of its input. BuildingRate must
// already be depreciation-adjusted.
func CalculateValuation(in domain.ValuationInput) domain.ValuationResult {
	safety := percent(in.SafetyMarginPercent)
	liquidation := percent(in.LiquidationFactorPercent)

	land := roundMoney(decimal.NewFromFloat(in.LandArea).Mul(decimal.NewFromInt(in.LandRate)))
	building := roundMoney(decimal.NewFromFloat(in.BuildingArea).Mul(decimal.NewFromInt(in.BuildingRate)))

	market := land + building
	deduction := roundMoney(decimal.NewFromInt(market).Mul(safety))
	afterSafety := market - deduction

	njopLand := roundMoney(decimal.NewFromFloat(in.LandArea).Mul(decimal.NewFromInt(in.NJOPLandPerSquare)))
	njopBuilding := roundMoney(decimal.NewFromFloat(in.BuildingArea).Mul(decimal.NewFromInt(in.NJOPBuildingPerSquare)))

	return domain.ValuationResult{
		Land:                       component(land, safety, liquidation),
		Building:                   component(building, safety, liquidation),
		MarketValueBeforeSafety:    market,
		SafetyDeduction:            deduction,
		CollateralValueAfterSafety: afterSafety,
		LiquidationValue:           roundMoney(decimal.NewFromInt(afterSafety).Mul(liquidation)),
		NJOPLandValue:              njopLand,
		NJOPBuildingValue:          njopBuilding,
		NJOPTotalValue:             njopLand + njopBuilding,
	}
}

// Appraise computes the valuation and attaches the advisory comparable
// analysis when comparables are present.
func Appraise(in domain.ValuationInput, comparables []domain.MarketComparable) domain.ValuationResult {
	result := CalculateValuation(in)
	if len(comparables) > 0 {
		analysis := AnalyzeComparables(comparables)
		result.Comparables = &analysis
	}
	return result
}

func component(value int64, safety, liquidation decimal.Decimal) domain.ComponentValue {
	after := value - roundMoney(decimal.NewFromInt(value).Mul(safety))
	return domain.ComponentValue{
		MarketValue:      value,
		AfterSafetyValue: after,
		LiquidationValue: roundMoney(decimal.NewFromInt(after).Mul(liquidation)),
	}
}

func percent(p float64) decimal.Decimal {
	return decimal.NewFromFloat(p).Div(hundred)
}

// roundMoney rounds half away from zero to a whole currency unit.
func roundMoney(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
