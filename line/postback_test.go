package line_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/stockbot_backend/line"
)

func TestParseCommandGrammar(t *testing.T) {
	cases := []struct {
		data string
		want line.Command
	}{
		{"action=query", line.MenuCommand{Action: "query"}},
		{"action=cancel", line.MenuCommand{Action: "cancel"}},
		{"query_type=by_name", line.QueryTypeCommand{Type: "by_name"}},
		{"query_type=mine", line.QueryTypeCommand{Type: "mine"}},
		{"add_category=A", line.AddStepCommand{Step: "category", Value: "A"}},
		{"add_model=", line.AddStepCommand{Step: "model", Value: ""}},
		{"add_unit=pcs", line.AddStepCommand{Step: "unit", Value: "pcs"}},
		{"add_photo=", line.AddStepCommand{Step: "photo", Value: ""}},
		{"add_confirm=yes", line.AddStepCommand{Step: "confirm", Value: "yes"}},
		{"stock_search_type=by_serial", line.StockSearchTypeCommand{Method: "by_serial"}},
		{"stock_select&action=inbound&key=A001", line.StockSelectCommand{Action: "inbound", Key: "A001"}},
		{"stock_confirm=yes", line.StockConfirmCommand{Confirmed: true}},
		{"stock_confirm=no", line.StockConfirmCommand{Confirmed: false}},
		{"edit_start&type=new&row=42", line.EditStartCommand{TargetType: "new", Row: 42}},
		{"edit_start&type=stock&row=7", line.EditStartCommand{TargetType: "stock", Row: 7}},
		{"edit_field=quantity", line.EditFieldCommand{Field: "quantity"}},
		{"edit_stock_choice=finish", line.EditStockChoiceCommand{Choice: "finish"}},
		{"edit_type=Outbound", line.EditTypeCommand{Type: "Outbound"}},
		{"edit_unit=manual", line.EditUnitCommand{Value: "manual"}},
		{"delete_record&row=5", line.DeleteRecordCommand{Row: 5}},
		{"delete_confirm=no", line.DeleteConfirmCommand{Confirmed: false}},
	}

	for _, tc := range cases {
		got := line.ParseCommand(tc.data)
		if got != tc.want {
			t.Errorf("ParseCommand(%q) = %#v, want %#v", tc.data, got, tc.want)
		}
	}
}

func TestParseCommandPercentDecodesValues(t *testing.T) {
	got := line.ParseCommand("add_unit=m%C2%B2")
	want := line.AddStepCommand{Step: "unit", Value: "m²"}
	if got != want {
		t.Errorf("got %#v, want %#v", got, want)
	}

	sel := line.ParseCommand("stock_select&action=outbound&key=A%20001")
	if sel != (line.StockSelectCommand{Action: "outbound", Key: "A 001"}) {
		t.Errorf("param decode failed: %#v", sel)
	}
}

func TestParseCommandUnknownInputs(t *testing.T) {
	cases := []string{
		"",
		"bogus=1",
		"add_nonsense=x",
		"edit_start&type=new&row=abc",
		"delete_record",
		"hello there",
	}
	for _, data := range cases {
		if _, ok := line.ParseCommand(data).(line.UnknownCommand); !ok {
			t.Errorf("ParseCommand(%q) should be UnknownCommand, got %#v", data, line.ParseCommand(data))
		}
	}
}

func TestFlowPrefix(t *testing.T) {
	cases := map[string]string{
		"query_type=by_name":    "query",
		"add_confirm=yes":       "add",
		"stock_select&key=A001": "stock",
		"edit_field=name":       "edit",
		"delete_confirm=yes":    "delete",
		"action=query":          "",
		"bogus":                 "",
	}
	for data, want := range cases {
		if got := line.FlowPrefix(data); got != want {
			t.Errorf("FlowPrefix(%q) = %q, want %q", data, got, want)
		}
	}
}
