package tabular

import (
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"
)

func writeTempCSV(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadCSVUTF8(t *testing.T) {
	path := writeTempCSV(t, "towns.csv", []byte("name,country\nKyōto,Japan\nMünchen,Germany\n"))

	table, err := ReadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if table.Name != "towns" {
		t.Errorf("name = %q, want file stem", table.Name)
	}
	if table.RowCount() != 3 {
		t.Fatalf("rows = %d", table.RowCount())
	}
	if table.Rows[1][0] != "Kyōto" {
		t.Errorf("cell = %q", table.Rows[1][0])
	}
}

func TestReadCSVStripsUTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("a,b\n1,2\n")...)
	path := writeTempCSV(t, "bom.csv", data)

	table, err := ReadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if table.Rows[0][0] != "a" {
		t.Errorf("first cell = %q, BOM not stripped", table.Rows[0][0])
	}
}

func TestReadCSVLatin1Fallback(t *testing.T) {
	// "café,résumé" in Latin-1: é = 0xE9
	data := []byte{'c', 'a', 'f', 0xE9, ',', 'r', 0xE9, 's', 'u', 'm', 0xE9, '\n', 'n', 'a', 0xEF, 'v', 'e', ',', 's', 'e', 0xF1, 'o', 'r', '\n'}
	path := writeTempCSV(t, "latin.csv", data)

	table, err := ReadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if table.RowCount() != 2 {
		t.Fatalf("rows = %d", table.RowCount())
	}
	got := table.Rows[0][0]
	if !utf8.ValidString(got) {
		t.Fatalf("cell is not valid UTF-8: %q", got)
	}
	if got != "café" {
		t.Errorf("cell = %q, want café", got)
	}
}

func TestReadCSVRaggedRowsTolerated(t *testing.T) {
	path := writeTempCSV(t, "ragged.csv", []byte("a,b,c\nd\ne,f\n"))

	table, err := ReadCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	if table.RowCount() != 3 {
		t.Fatalf("rows = %d, want ragged rows kept", table.RowCount())
	}
}

func TestReadCSVMissingFile(t *testing.T) {
	if _, err := ReadCSV(filepath.Join(t.TempDir(), "absent.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
