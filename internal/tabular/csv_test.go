package tabular_test

import (
	"strings"
	"testing"
	"time"

	"github.com/analyticsops/pbi-push-pipeline/internal/tabular"
)

func TestReadCSV_TypeInference(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want tabular.ColumnType
	}{
		{name: "integers", in: "v\n1\n-42\n", want: tabular.TypeInt64},
		{name: "floats", in: "v\n1.5\n2.25\n", want: tabular.TypeDouble},
		{name: "int and float widen to double", in: "v\n1\n2.5\n", want: tabular.TypeDouble},
		{name: "booleans", in: "v\ntrue\nfalse\n", want: tabular.TypeBool},
		{name: "datetimes", in: "v\n2024-01-15T10:30:00Z\n2024-02-01\n", want: tabular.TypeDateTime},
		{name: "strings", in: "v\nhello\nworld\n", want: tabular.TypeString},
		{name: "mixed falls back to string", in: "v\n1\nhello\n", want: tabular.TypeString},
		{name: "empty cells do not vote", in: "v\n\n7\n\n", want: tabular.TypeInt64},
		{name: "all empty stays string", in: "v\n\n\n", want: tabular.TypeString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := tabular.ReadCSV("t", strings.NewReader(tt.in))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(table.Columns) != 1 {
				t.Fatalf("expected 1 column, got %#v", table.Columns)
			}
			if got := table.Columns[0].Type; got != tt.want {
				t.Fatalf("column type = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestReadCSV_TypedValues(t *testing.T) {
	in := "id,amount,active,ts,note\n" +
		"1,9.75,true,2024-01-15T10:30:00Z,first\n" +
		"2,,false,,second\n"

	table, err := tabular.ReadCSV("Sales", strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Name != "Sales" {
		t.Fatalf("table name = %q", table.Name)
	}
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}

	first := table.Rows[0]
	if got, ok := first["id"].(int64); !ok || got != 1 {
		t.Fatalf("id = %#v, want int64(1)", first["id"])
	}
	if got, ok := first["amount"].(float64); !ok || got != 9.75 {
		t.Fatalf("amount = %#v, want float64(9.75)", first["amount"])
	}
	if got, ok := first["active"].(bool); !ok || !got {
		t.Fatalf("active = %#v, want true", first["active"])
	}
	ts, ok := first["ts"].(time.Time)
	if !ok || !ts.Equal(time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)) {
		t.Fatalf("ts = %#v", first["ts"])
	}

	second := table.Rows[1]
	if second["amount"] != nil {
		t.Fatalf("empty amount = %#v, want nil", second["amount"])
	}
	if second["ts"] != nil {
		t.Fatalf("empty ts = %#v, want nil", second["ts"])
	}
}

func TestReadCSV_RaggedRows(t *testing.T) {
	in := "a,b,c\n1,2\n3,4,5,6\n"
	table, err := tabular.ReadCSV("t", strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if table.Rows[0]["c"] != nil {
		t.Fatalf("short row c = %#v, want nil", table.Rows[0]["c"])
	}
	if got, ok := table.Rows[1]["c"].(int64); !ok || got != 5 {
		t.Fatalf("long row c = %#v, want int64(5)", table.Rows[1]["c"])
	}
}

func TestReadCSV_ColumnOrderMatchesHeader(t *testing.T) {
	in := "zeta,alpha,mid\n1,2,3\n"
	table, err := tabular.ReadCSV("t", strings.NewReader(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"zeta", "alpha", "mid"}
	for i, col := range table.Columns {
		if col.Name != want[i] {
			t.Fatalf("column %d = %q, want %q", i, col.Name, want[i])
		}
	}
}

func TestReadCSV_EmptyInputErrors(t *testing.T) {
	if _, err := tabular.ReadCSV("t", strings.NewReader("")); err == nil {
		t.Fatalf("expected error for empty input")
	}
}
