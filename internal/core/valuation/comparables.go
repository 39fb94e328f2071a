package valuation

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

const (
	NoteNoComparables   = "no market comparables supplied; weighted averages not computed"
	NoteZeroTotalWeight = "total comparable weight is zero; weighted averages not computed"
)

// AnalyzeComparables computes weighted reference prices. It never divides by a
// zero total weight; in that case the averages stay nil and a note explains why.
func AnalyzeComparables(comparables []domain.MarketComparable) domain.ComparableAnalysis {
	out := domain.ComparableAnalysis{Count: len(comparables)}
	if len(comparables) == 0 {
		out.Notes = []string{NoteNoComparables}
		return out
	}

	totalWeight := decimal.Zero
	priceSum := decimal.Zero
	perSquareSum := decimal.Zero
	for _, cmp := range comparables {
		weight := decimal.NewFromInt(1)
		if cmp.Weight != nil {
			weight = decimal.NewFromFloat(*cmp.Weight)
		}
		price := decimal.NewFromInt(cmp.Price)
		if cmp.AdjustedPrice != nil {
			price = decimal.NewFromInt(*cmp.AdjustedPrice)
		}
		var perSquare decimal.Decimal
		if cmp.FinalPricePerSquare != nil {
			perSquare = decimal.NewFromFloat(*cmp.FinalPricePerSquare)
		} else {
			perSquare = decimal.NewFromInt(cmp.Price).Div(decimal.NewFromFloat(math.Max(cmp.LandArea, 1)))
		}

		totalWeight = totalWeight.Add(weight)
		priceSum = priceSum.Add(price.Mul(weight))
		perSquareSum = perSquareSum.Add(perSquare.Mul(weight))
	}

	out.TotalWeight = totalWeight.InexactFloat64()
	if totalWeight.IsZero() {
		out.Notes = []string{NoteZeroTotalWeight}
		return out
	}

	avgPrice := roundMoney(priceSum.Div(totalWeight))
	avgPerSquare := roundMoney(perSquareSum.Div(totalWeight))
	out.WeightedAveragePrice = &avgPrice
	out.WeightedAveragePricePerSquare = &avgPerSquare
	return out
}
