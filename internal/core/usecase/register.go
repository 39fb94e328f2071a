package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/collateral-appraisal/internal/core/domain"
	"github.com/kirillkom/collateral-appraisal/internal/core/ports"
)

// RegisterExportUseCase writes the report register visible to the actor.
type RegisterExportUseCase struct {
	reports ports.ReportService
	writer  ports.RegisterWriter
}

func NewRegisterExportUseCase(reports ports.ReportService, writer ports.RegisterWriter) *RegisterExportUseCase {
	return &RegisterExportUseCase{reports: reports, writer: writer}
}

func (uc *RegisterExportUseCase) ExportRegister(ctx context.Context, actor domain.Actor, filter domain.ReportFilter, w io.Writer) error {
	reports, err := uc.reports.List(ctx, actor, filter)
	if err != nil {
		return err
	}
	if err := uc.writer.WriteRegister(ctx, reports, w); err != nil {
		return fmt.Errorf("write register: %w", err)
	}
	return nil
}
