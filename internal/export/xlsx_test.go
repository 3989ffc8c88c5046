package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/dreamcity/orderflow-monitor/internal/models"
	"github.com/dreamcity/orderflow-monitor/internal/status"
)

func TestWriteRows(t *testing.T) {
	rows := []models.Row{
		{SAPOrder: "4500100001", NodeType: models.NodeFlow, RowStatus: status.Red, Overall: status.Red, OrderOverall: status.Red, Key: "Summary", CorrelationID: "DC-20251209-000001"},
		{SAPOrder: "4500100001", NodeType: models.NodeTech, RowStatus: status.Red, Key: "Transport", Value: "RED / FAIL", Checkpoint: "FW_EGRESS_ALLOWED", CorrelationID: "DC-20251209-000001"},
	}

	var buf bytes.Buffer
	if err := WriteRows(&buf, rows); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	got, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d", len(got))
	}
	if got[0][0] != "SAP Order" || got[2][2] != "TECH" || got[2][8] != "FW_EGRESS_ALLOWED" {
		t.Fatalf("unexpected sheet contents: %v", got)
	}
}

func TestWriteRowsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRows(&buf, nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected a workbook even with no rows")
	}
}
