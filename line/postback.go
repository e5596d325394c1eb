package line

import (
	"net/url"
	"strconv"
	"strings"
)

// Postback data is a small command grammar: verb[=value][&key=value...].
// The verb (and its optional inline value) comes before the first '&';
// the rest are '&'-joined key=value pairs, values percent-decoded.
//
// Parsing happens exactly once, here, into a tagged command per known verb;
// handlers match on the concrete type instead of re-splitting strings.

type Command interface{ command() }

// MenuCommand is a top-level menu action (action=query|add|inbound|...).
// It always resets the session and starts a fresh workflow.
type MenuCommand struct{ Action string }

// QueryTypeCommand selects the query method (query_type=by_name|by_serial|all|mine).
type QueryTypeCommand struct{ Type string }

// AddStepCommand carries one wizard step of the add workflow
// (add_category=A, add_model=, add_unit=pcs, add_photo=, add_confirm=yes, ...).
type AddStepCommand struct {
	Step  string // category, name, model, spec, unit, photo, confirm
	Value string
}

// StockSearchTypeCommand selects how to find the movement target
// (stock_search_type=by_name|by_serial).
type StockSearchTypeCommand struct{ Method string }

// StockSelectCommand picks the movement target from a result card
// (stock_select&action=inbound&key=A001).
type StockSelectCommand struct {
	Action string // inbound or outbound
	Key    string
}

// StockConfirmCommand finalizes or cancels a movement (stock_confirm=yes|no).
type StockConfirmCommand struct{ Confirmed bool }

// EditStartCommand opens the editor on one ledger row
// (edit_start&type=new|stock&row=42).
type EditStartCommand struct {
	TargetType string // "new" for full field editor, "stock" for qty/type editor
	Row        int
}

// EditFieldCommand picks the field to change in the full editor
// (edit_field=name|model|spec|unit|quantity|finish).
type EditFieldCommand struct{ Field string }

// EditStockChoiceCommand picks what to change on a movement row
// (edit_stock_choice=quantity|type|finish).
type EditStockChoiceCommand struct{ Choice string }

// EditTypeCommand sets the corrected movement type (edit_type=Inbound|Outbound).
type EditTypeCommand struct{ Type string }

// EditUnitCommand sets the corrected unit (edit_unit=pcs, edit_unit=manual).
type EditUnitCommand struct{ Value string }

// DeleteRecordCommand asks for deletion of one row (delete_record&row=42).
type DeleteRecordCommand struct{ Row int }

// DeleteConfirmCommand answers the deletion prompt (delete_confirm=yes|no).
type DeleteConfirmCommand struct{ Confirmed bool }

// UnknownCommand is anything the grammar does not recognize. The router drops
// these silently.
type UnknownCommand struct{ Raw string }

func (MenuCommand) command()            {}
func (QueryTypeCommand) command()       {}
func (AddStepCommand) command()         {}
func (StockSearchTypeCommand) command() {}
func (StockSelectCommand) command()     {}
func (StockConfirmCommand) command()    {}
func (EditStartCommand) command()       {}
func (EditFieldCommand) command()       {}
func (EditStockChoiceCommand) command() {}
func (EditTypeCommand) command()        {}
func (EditUnitCommand) command()        {}
func (DeleteRecordCommand) command()    {}
func (DeleteConfirmCommand) command()   {}
func (UnknownCommand) command()         {}

func decode(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// splitData separates the verb, its inline value, and the trailing params.
func splitData(data string) (verb, value string, params map[string]string) {
	parts := strings.Split(data, "&")
	head := parts[0]
	if idx := strings.Index(head, "="); idx >= 0 {
		verb = head[:idx]
		value = decode(head[idx+1:])
	} else {
		verb = head
	}
	params = make(map[string]string)
	for _, part := range parts[1:] {
		k, v, _ := strings.Cut(part, "=")
		if k == "" {
			continue
		}
		params[k] = decode(v)
	}
	return verb, value, params
}

// FlowPrefix maps a postback verb to the workflow that owns it, or "" when
// the verb belongs to no known workflow.
func FlowPrefix(data string) string {
	verb, _, _ := splitData(data)
	prefix, _, _ := strings.Cut(verb, "_")
	switch prefix {
	case "query", "add", "stock", "edit", "delete":
		return prefix
	}
	return ""
}

// ParseCommand turns raw postback data into its tagged command.
func ParseCommand(data string) Command {
	verb, value, params := splitData(data)

	switch verb {
	case "action":
		return MenuCommand{Action: value}
	case "query_type":
		return QueryTypeCommand{Type: value}
	case "stock_search_type":
		return StockSearchTypeCommand{Method: value}
	case "stock_select":
		return StockSelectCommand{Action: params["action"], Key: params["key"]}
	case "stock_confirm":
		return StockConfirmCommand{Confirmed: value == "yes"}
	case "edit_start":
		row, err := strconv.Atoi(params["row"])
		if err != nil {
			return UnknownCommand{Raw: data}
		}
		return EditStartCommand{TargetType: params["type"], Row: row}
	case "edit_field":
		return EditFieldCommand{Field: value}
	case "edit_stock_choice":
		return EditStockChoiceCommand{Choice: value}
	case "edit_type":
		return EditTypeCommand{Type: value}
	case "edit_unit":
		return EditUnitCommand{Value: value}
	case "delete_record":
		row, err := strconv.Atoi(params["row"])
		if err != nil {
			return UnknownCommand{Raw: data}
		}
		return DeleteRecordCommand{Row: row}
	case "delete_confirm":
		return DeleteConfirmCommand{Confirmed: value == "yes"}
	}

	if step, ok := strings.CutPrefix(verb, "add_"); ok {
		switch step {
		case "category", "name", "model", "spec", "unit", "quantity", "photo", "confirm":
			return AddStepCommand{Step: step, Value: value}
		}
	}

	return UnknownCommand{Raw: data}
}
