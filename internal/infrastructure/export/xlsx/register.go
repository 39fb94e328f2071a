// Package xlsx renders the report register as an Excel workbook.
package xlsx

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
)

const (
	sheetName  = "Register"
	dateLayout = "2006-01-02"
)

var registerHeader = []string{
	"Report Number",
	"Status",
	"Title",
	"Debtor",
	"Property Address",
	"Appraiser",
	"Appraisal Date",
	"Market Value",
	"Collateral Value",
	"Liquidation Value",
	"NJOP Total",
	"Created At",
}

type RegisterWriter struct{}

func NewRegisterWriter() *RegisterWriter {
	return &RegisterWriter{}
}

func (w *RegisterWriter) WriteRegister(ctx context.Context, reports []domain.Report, out io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		return fmt.Errorf("create money style: %w", err)
	}

	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return fmt.Errorf("open stream writer: %w", err)
	}
	if err := sw.SetColWidth(1, len(registerHeader), 18); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}

	header := make([]interface{}, len(registerHeader))
	for i, title := range registerHeader {
		header[i] = excelize.Cell{StyleID: headerStyle, Value: title}
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i := range reports {
		if err := ctx.Err(); err != nil {
			return err
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, registerRow(&reports[i], moneyStyle)); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("flush register: %w", err)
	}
	if err := f.Write(out); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func registerRow(r *domain.Report, moneyStyle int) []interface{} {
	money := func(v int64) excelize.Cell {
		return excelize.Cell{StyleID: moneyStyle, Value: v}
	}
	appraisalDate := ""
	if r.AppraisalDate != nil {
		appraisalDate = r.AppraisalDate.Format(dateLayout)
	}
	res := r.ValuationResult
	return []interface{}{
		r.ReportNumber,
		string(r.Status),
		r.Title,
		r.DebtorName,
		r.PropertyAddress,
		r.AssignedAppraiserID,
		appraisalDate,
		money(res.MarketValueBeforeSafety),
		money(res.CollateralValueAfterSafety),
		money(res.LiquidationValue),
		money(res.NJOPTotalValue),
		r.CreatedAt.UTC().Format(dateLayout),
	}
}
