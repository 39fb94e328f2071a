package domain

import "time"

// ValuationDraft is the raw valuation payload as captured by staff. Optional
// fields are resolved once by valuation.Normalize.
type ValuationDraft struct {
	LandArea                 float64  `json:"land_area"`
	BuildingArea             float64  `json:"building_area"`
	LandRate                 int64    `json:"land_rate"`
	BuildingStandardCode     string   `json:"building_standard_code"`
	YearBuilt                *int     `json:"year_built,omitempty"`
	NJOPLandPerSquare        *int64   `json:"njop_land_per_square,omitempty"`
	NJOPBuildingPerSquare    *int64   `json:"njop_building_per_square,omitempty"`
	NJOPLandTotal            *int64   `json:"njop_land_total,omitempty"`
	NJOPBuildingTotal        *int64   `json:"njop_building_total,omitempty"`
	SafetyMarginPercent      *float64 `json:"safety_margin_percent,omitempty"`
	LiquidationFactorPercent *float64 `json:"liquidation_factor_percent,omitempty"`
}

// ValuationInput is the fully populated snapshot consumed by the calculator.
type ValuationInput struct {
	LandArea                    float64 `json:"land_area"`
	BuildingArea                float64 `json:"building_area"`
	LandRate                    int64   `json:"land_rate"`
	BuildingStandardCode        string  `json:"building_standard_code"`
	BuildingStandardRate        int64   `json:"building_standard_rate"`
	BuildingDepreciationPercent float64 `json:"building_depreciation_percent"`
	BuildingRate                int64   `json:"building_rate"`
	YearBuilt                   *int    `json:"year_built,omitempty"`
	NJOPLandPerSquare           int64   `json:"njop_land_per_square"`
	NJOPBuildingPerSquare       int64   `json:"njop_building_per_square"`
	SafetyMarginPercent         float64 `json:"safety_margin_percent"`
	LiquidationFactorPercent    float64 `json:"liquidation_factor_percent"`
}

// ComponentValue is one of land or building, before and after haircuts.
type ComponentValue struct {
	MarketValue      int64 `json:"market_value"`
	AfterSafetyValue int64 `json:"after_safety_value"`
	LiquidationValue int64 `json:"liquidation_value"`
}

type ValuationResult struct {
	Land                       ComponentValue      `json:"land"`
	Building                   ComponentValue      `json:"building"`
	MarketValueBeforeSafety    int64               `json:"market_value_before_safety"`
	SafetyDeduction            int64               `json:"safety_deduction"`
	CollateralValueAfterSafety int64               `json:"collateral_value_after_safety"`
	LiquidationValue           int64               `json:"liquidation_value"`
	NJOPLandValue              int64               `json:"njop_land_value"`
	NJOPBuildingValue          int64               `json:"njop_building_value"`
	NJOPTotalValue             int64               `json:"njop_total_value"`
	Comparables                *ComparableAnalysis `json:"comparables,omitempty"`
}

type MarketComparable struct {
	ID                  string     `json:"id"`
	Source              string     `json:"source,omitempty"`
	Address             string     `json:"address,omitempty"`
	TransactionDate     *time.Time `json:"transaction_date,omitempty"`
	Price               int64      `json:"price"`
	LandArea            float64    `json:"land_area"`
	BuildingArea        float64    `json:"building_area,omitempty"`
	Weight              *float64   `json:"weight,omitempty"`
	AdjustedPrice       *int64     `json:"adjusted_price,omitempty"`
	FinalPricePerSquare *float64   `json:"final_price_per_square,omitempty"`
	Notes               string     `json:"notes,omitempty"`
}

type ComparableAnalysis struct {
	WeightedAveragePrice          *int64   `json:"weighted_average_price,omitempty"`
	WeightedAveragePricePerSquare *int64   `json:"weighted_average_price_per_square,omitempty"`
	TotalWeight                   float64  `json:"total_weight"`
	Count                         int      `json:"count"`
	Notes                         []string `json:"notes,omitempty"`
}
