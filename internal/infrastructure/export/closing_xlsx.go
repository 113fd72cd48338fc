// Package export renders closings as spreadsheets for the finance team.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"fireblue/internal/core/types"
	"fireblue/internal/domain/closing"
	"fireblue/internal/domain/production"
)

const (
	SheetSummary = "Resumo"
	SheetItems   = "Itens"

	// ContentType of the generated workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	dateLayout     = "02/01/2006"
	dateTimeLayout = "02/01/2006 15:04"
	moneyFormat    = 4 // #,##0.00
	priceFormat    = "#,##0.0000"
)

var (
	summaryHeader = []any{"Banca", "Chave PIX", "Peças", "Valor", "Status", "Pagamento"}
	itemsHeader   = []any{"Banca", "Ficha", "Descrição", "Movimentação", "Data", "Quantidade", "Valor unitário", "Valor total"}
)

// Filename is the download name of a closing workbook.
func Filename(c *closing.WeeklyClosing) string {
	return fmt.Sprintf("fechamento-%s.xlsx", c.Week)
}

// WriteClosing writes c as an XLSX workbook with one summary row per
// workshop and one row per line item. Dates are shown in loc.
func WriteClosing(w io.Writer, c *closing.WeeklyClosing, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetItems); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: moneyFormat})
	if err != nil {
		return err
	}
	priceFmt := priceFormat
	price, err := f.NewStyle(&excelize.Style{CustomNumFmt: &priceFmt})
	if err != nil {
		return err
	}

	if err := writeSummary(f, c, loc, bold, money); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if err := writeItems(f, c, loc, bold, money, price); err != nil {
		return fmt.Errorf("items sheet: %w", err)
	}

	return f.Write(w)
}

func writeSummary(f *excelize.File, c *closing.WeeklyClosing, loc *time.Location, bold, money int) error {
	s := SheetSummary
	period := fmt.Sprintf("%s a %s", c.StartDate.In(loc).Format(dateLayout), c.EndDate.In(loc).Format(dateLayout))

	rows := [][]any{
		{"Semana", c.Week},
		{"Período", period},
		{"Status", string(c.Status)},
		{},
		summaryHeader,
	}
	for r, row := range rows {
		if err := f.SetSheetRow(s, cell(1, r+1), &row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(s, "A1", "A3", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(s, "A5", "F5", bold); err != nil {
		return err
	}

	row := 6
	for i := range c.Workshops {
		wc := &c.Workshops[i]
		pix := ""
		if wc.PixKey != nil {
			pix = *wc.PixKey
		}
		paid := ""
		if wc.PaidAt != nil {
			paid = wc.PaidAt.In(loc).Format(dateTimeLayout)
		}
		values := []any{wc.WorkshopName, pix, wc.TotalPieces, wc.TotalValue.InexactFloat64(), string(wc.Status), paid}
		if err := f.SetSheetRow(s, cell(1, row), &values); err != nil {
			return err
		}
		row++
	}

	total := []any{"Total", "", c.TotalPieces, c.TotalValue.InexactFloat64()}
	if err := f.SetSheetRow(s, cell(1, row), &total); err != nil {
		return err
	}
	if err := f.SetCellStyle(s, cell(1, row), cell(4, row), bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(s, "D6", cell(4, row), money); err != nil {
		return err
	}

	if err := f.SetColWidth(s, "A", "B", 28); err != nil {
		return err
	}
	return f.SetColWidth(s, "C", "F", 16)
}

func writeItems(f *excelize.File, c *closing.WeeklyClosing, loc *time.Location, bold, money, price int) error {
	s := SheetItems
	if err := f.SetSheetRow(s, "A1", &itemsHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(s, "A1", "H1", bold); err != nil {
		return err
	}

	row := 2
	for i := range c.Workshops {
		wc := &c.Workshops[i]
		for _, it := range wc.Items {
			values := []any{
				wc.WorkshopName,
				it.TicketCode,
				it.Description(),
				movementLabel(it.MovementType),
				it.MovedAt.In(loc).Format(dateLayout),
				it.Quantity,
			}
			if err := f.SetSheetRow(s, cell(1, row), &values); err != nil {
				return err
			}
			// Amounts are written at their stored scale so the sheet shows
			// the same digits as the API.
			if err := setDecimal(f, s, cell(7, row), it.UnitPrice, types.PriceScale); err != nil {
				return err
			}
			if err := setDecimal(f, s, cell(8, row), it.Total, types.MoneyScale); err != nil {
				return err
			}
			row++
		}
	}
	if row > 2 {
		if err := f.SetCellStyle(s, "G2", cell(7, row-1), price); err != nil {
			return err
		}
		if err := f.SetCellStyle(s, "H2", cell(8, row-1), money); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(s, "A", "C", 28); err != nil {
		return err
	}
	return f.SetColWidth(s, "D", "H", 16)
}

// setDecimal writes d rounded to scale as a numeric cell with exactly scale
// fractional digits.
func setDecimal(f *excelize.File, sheet, ref string, d types.Money, scale int32) error {
	return f.SetCellFloat(sheet, ref, d.Round(scale).InexactFloat64(), int(scale), 64)
}

func movementLabel(t production.MovementType) string {
	switch t {
	case production.MovementReturn:
		return "Retorno"
	case production.MovementCompletion:
		return "Conclusão"
	default:
		return string(t)
	}
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
