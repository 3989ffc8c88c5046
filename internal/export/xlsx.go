package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/dreamcity/orderflow-monitor/internal/models"
)

// SheetName is the worksheet holding exported grid rows.
const SheetName = "Flows"

// ContentType is the MIME type of the workbook WriteRows produces.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var header = []any{
	"SAP Order", "Order Overall", "Node", "Status", "Overall", "Key", "Value",
	"Reason", "Checkpoint", "Plant", "IDoc", "SLA State", "Correlation ID",
}

// WriteRows renders grid rows as a single-sheet workbook with a frozen header and autofilter.
func WriteRows(w io.Writer, rows []models.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{
			r.SAPOrder, string(r.OrderOverall), string(r.NodeType), string(r.RowStatus), string(r.Overall),
			r.Key, r.Value, r.Reason, r.Checkpoint, r.Plant, r.IDoc, string(r.SLAState), r.CorrelationID,
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	last, err := excelize.CoordinatesToCellName(len(header), len(rows)+1)
	if err != nil {
		return err
	}
	if err := f.AutoFilter(SheetName, "A1:"+last, nil); err != nil {
		return err
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	return f.Write(w)
}
