package parser

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestXLSXParserSheets(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", "Inventory")
	rows := [][]any{
		{"Item", "Qty", "Note"},
		{"Bolt", 10},
		{},
		{"Nut", 200, "a|b"},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Inventory", cell, &r); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}
	if _, err := f.NewSheet("Empty"); err != nil {
		t.Fatalf("NewSheet: %v", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: "Stock"}); err != nil {
		t.Fatalf("SetDocProps: %v", err)
	}

	path := filepath.Join(t.TempDir(), "stock.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}

	res, err := (&XLSXParser{}).Parse(context.Background(), path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := "## Inventory\n\n| Item | Qty | Note |\n| --- | --- | --- |\n| Bolt | 10 |  |\n| Nut | 200 | a\\|b |"
	if res.Markdown != want {
		t.Errorf("markdown:\n%s\nwant:\n%s", res.Markdown, want)
	}
	if res.Title != "Stock" {
		t.Errorf("Title = %q", res.Title)
	}
	if res.PageCount != 2 {
		t.Errorf("PageCount = %d, want 2", res.PageCount)
	}
	if res.Metadata["rows:Inventory"] != "3" {
		t.Errorf("metadata = %v", res.Metadata)
	}
}

func TestXLSXParserEmptyWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	path := filepath.Join(t.TempDir(), "empty.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	if _, err := (&XLSXParser{}).Parse(context.Background(), path); err == nil {
		t.Error("expected error for workbook without data")
	}
}
