package xslsxGenerator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nepsetools/meroshare_apply_bot/internal/model"
	"github.com/nepsetools/meroshare_apply_bot/utils"
	"github.com/xuri/excelize/v2"
)

const sheetName = "Applications"

type XSLSXGenerator struct{}

func New() *XSLSXGenerator {
	return &XSLSXGenerator{}
}

func (g *XSLSXGenerator) Generate(ctx context.Context, rows []model.ApplicationStatusRow) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "XSLSXGenerator.Generate"

	if len(rows) == 0 {
		return nil, "", errors.New("empty application rows")
	}

	slog.Debug("Generate start", slog.String("rqID", rqID), slog.String("op", op))

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("got error while closing file", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}()

	if err := g.fillSheet(f, rows); err != nil {
		slog.Error("got error while filling sheet", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	if err := f.DeleteSheet("Sheet1"); err != nil {
		slog.Error("got error while deleting Sheet1", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		slog.Error("got error while saving file to bytes buffer", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	slog.Debug("Generate completed", slog.String("rqID", rqID), slog.String("op", op))

	return buf.Bytes(), ".xlsx", nil
}

func (g *XSLSXGenerator) fillSheet(f *excelize.File, rows []model.ApplicationStatusRow) error {
	_, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	err = f.MergeCell(sheetName, "A1", "H1")
	if err != nil {
		return err
	}

	f.SetCellValue(sheetName, "A1", "IPO applications")

	styleID, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Font: &excelize.Font{
			Bold: true,
			Size: 11,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{"#cfe2f3"},
		},
	})
	if err != nil {
		return err
	}

	if err := f.SetCellStyle(sheetName, "A1", "A1", styleID); err != nil {
		return fmt.Errorf("failed to apply style: %w", err)
	}

	_ = f.SetCellStr(sheetName, "A2", "scrip")
	_ = f.SetCellStr(sheetName, "B2", "company")
	_ = f.SetCellStr(sheetName, "C2", "applied kitta")
	_ = f.SetCellStr(sheetName, "D2", "received kitta")
	_ = f.SetCellStr(sheetName, "E2", "amount")
	_ = f.SetCellStr(sheetName, "F2", "status")
	_ = f.SetCellStr(sheetName, "G2", "stage")
	_ = f.SetCellStr(sheetName, "H2", "remark")

	for i, row := range rows {
		rowNum := i + 3
		_ = f.SetCellStr(sheetName, fmt.Sprintf("A%d", rowNum), row.Scrip)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("B%d", rowNum), row.CompanyName)
		_ = f.SetCellInt(sheetName, fmt.Sprintf("C%d", rowNum), int64(row.AppliedKitta))
		_ = f.SetCellInt(sheetName, fmt.Sprintf("D%d", rowNum), int64(row.ReceivedKitta))
		_ = f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowNum), row.Amount.InexactFloat64())
		_ = f.SetCellStr(sheetName, fmt.Sprintf("F%d", rowNum), row.StatusName)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("G%d", rowNum), row.StageName)
		_ = f.SetCellStr(sheetName, fmt.Sprintf("H%d", rowNum), row.Remark)
	}

	return nil
}
