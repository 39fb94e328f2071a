package usecase

import (
	"time"

	"github.com/kirillkom/collateral-appraisal/internal/core/valuation"
)

type ValuationPreviewUseCase struct {
	calc *valuation.Calculator
}

func NewValuationPreviewUseCase(calc *valuation.Calculator) *ValuationPreviewUseCase {
	return &ValuationPreviewUseCase{calc: calc}
}

func (uc *ValuationPreviewUseCase) Standards() []valuation.BuildingStandard {
	return uc.calc.Catalog().All()
}

func (uc *ValuationPreviewUseCase) Standard(code string) (valuation.BuildingStandard, error) {
	return uc.calc.Catalog().Get(code)
}

func (uc *ValuationPreviewUseCase) PreviewBuilding(code string, yearBuilt *int, appraisalDate *time.Time) (valuation.BuildingValuation, error) {
	return uc.calc.ComputeBuildingValuation(code, yearBuilt, appraisalDate)
}
