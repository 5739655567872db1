package spreadsheet

import (
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/manual-assistant/internal/core/domain"
)

func TestDecodeRendersSheetsAndRows(t *testing.T) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	_ = f.SetSheetName("Sheet1", "Specifikationer")
	_ = f.SetCellValue("Specifikationer", "A1", "Modell")
	_ = f.SetCellValue("Specifikationer", "B1", "Vikt")
	_ = f.SetCellValue("Specifikationer", "A2", "435")
	_ = f.SetCellValue("Specifikationer", "B2", "4,4 kg")
	_ = f.SetCellValue("Specifikationer", "A4", "542i XP")
	if _, err := f.NewSheet("Tom"); err != nil {
		t.Fatalf("NewSheet() error = %v", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer() error = %v", err)
	}

	got, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	want := "Specifikationer\nModell | Vikt\n435 | 4,4 kg\n542i XP"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not a workbook")); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
