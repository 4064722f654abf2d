package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestTable(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var buf bytes.Buffer
	table := NewTable(&buf, []string{"Property", "Column", "Type"}, &TableOptions{NoColor: true})
	table.AddRow("CustomerID", "customer_id", "string")
	table.AddRow("City", "city")

	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}
	if lines[0] != "Property    Column       Type" {
		t.Errorf("unexpected header line %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "──────────") {
		t.Errorf("expected separator, got %q", lines[1])
	}
	if lines[2] != "CustomerID  customer_id  string" {
		t.Errorf("unexpected row %q", lines[2])
	}
	if lines[3] != "City        city" {
		t.Errorf("short rows should render empty cells, got %q", lines[3])
	}
	if table.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", table.Len())
	}
}

func TestTableEmptyHeaders(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, nil, nil)
	table.AddRow("ignored")
	table.Render()

	if buf.Len() != 0 {
		t.Errorf("expected no output without headers, got %q", buf.String())
	}
}

func TestKeyValueTable(t *testing.T) {
	var buf bytes.Buffer
	kv := NewKeyValueTable(&buf, true)
	kv.AddRow("Table", "Customers")
	kv.AddRow("Primary key", "CustomerID")
	kv.Render()

	want := "Table:       Customers\nPrimary key: CustomerID\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestHeader(t *testing.T) {
	var buf bytes.Buffer
	Header(&buf, "Order", true)

	if buf.String() != "Order\n─────\n" {
		t.Errorf("unexpected header %q", buf.String())
	}
}
