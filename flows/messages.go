package flows

import "strings"

// User-facing texts. Always templated and non-technical; diagnostic detail
// stays in the logs.
const (
	msgPromptQueryType     = "What would you like to look up?"
	msgPromptQueryByName   = "Enter part of the item name."
	msgPromptQueryBySerial = "Enter the item serial (e.g. A001)."
	msgQueryNotFound       = "No matching item found."

	msgPromptAddCategory = "Pick a category for the new item."
	msgPromptAddName     = "Category {category}. Enter the item name."
	msgPromptAddModel    = "Item \"{name}\". Enter the model, or skip."
	msgPromptAddSpec     = "Model \"{model}\". Enter the spec, or skip."
	msgPromptAddUnit     = "Spec \"{spec}\". Pick a unit."
	msgPromptManualUnit  = "Enter the unit."
	msgPromptAddQuantity = "Unit \"{unit}\". Enter the opening quantity."
	msgPromptAddPhoto    = "Quantity {quantity}. Send a photo of the item, or skip."
	msgPromptAddConfirm  = "Please confirm the new item:\nCategory: {category}\nName: {name}\nModel: {model}\nSpec: {spec}\nUnit: {unit}\nQuantity: {quantity}"
	msgAddSuccess        = "Item {id} has been added."

	msgPromptStockSearch   = "How do you want to find the item to {action}?"
	msgPromptStockQuantity = "How many \"{name}\" to {action}?"
	msgPromptStockConfirm  = "{action} {quantity} {unit} of \"{name}\" — please confirm."
	msgStockSuccess        = "{icon} {action} recorded for \"{name}\". Current stock: {newStock} {unit}."
	msgStockInsufficient   = "Not enough stock of \"{name}\": only {currentStock} {unit} available. The request has been cancelled."

	msgPromptNewItemChoice   = "{leading}Editing item:\nName: {name}\nModel: {model}\nSpec: {spec}\nUnit: {unit}\nQuantity: {quantity}\n\nPick a field to change, or save."
	msgPromptEditStockChoice = "{leading}Editing movement:\nItem: {name}\nType: {type}\nQuantity: {quantity}\n\nPick what to change, or save."
	msgPromptEditNewValue    = "Enter the new {field}."
	msgPromptEditType        = "Pick the new record type."
	msgEditSuccess           = "The record has been corrected."

	msgPromptDeleteConfirm = "Delete this record? {name} ({type})\nThe row will be voided, never removed."
	msgDeleteSuccess       = "The record has been voided."

	msgErrorInvalidQuantity = "That is not a valid quantity. Please enter a whole number."
	msgErrorPhotoUpload     = "The photo could not be saved. Send another one, or skip."
	msgErrorDuplicateItem   = "An item with the same name, model and spec already exists: {name} / {model} / {spec}."
	msgErrorNoCategories    = "System error: no item categories are configured."
	msgSomethingWrong       = "Something went wrong. Please try again later."
	msgCancelled            = "Okay, cancelled."

	msgNoRecords            = "You have no recent records."
	msgTooManyResultsHeader = "Found {count} items:\n"
	msgSummaryItemLine      = "{id} {name} ({model}/{spec}) — {stock} {unit}\n"

	msgHelp = "I track inventory for you.\n" +
		"Use the menu to:\n" +
		"- look up stock by name or serial\n" +
		"- add a new item\n" +
		"- record stock in / stock out\n" +
		"- correct or void your recent records\n" +
		"Send \"cancel\" from the menu to abandon the current step."

	labelInbound     = "Stock in"
	labelOutbound    = "Stock out"
	labelCancel      = "Cancel"
	labelConfirm     = "Confirm"
	labelSkipModel   = "No model (skip)"
	labelSkipSpec    = "No spec (skip)"
	labelSkipPhoto   = "No photo (skip)"
	labelManualUnit  = "Type it in"
	labelSaveEdit    = "Save changes"
	labelDeleteYes   = "Yes, void it"
	labelEditFull    = "Edit all fields"
	labelEditStock   = "Edit qty/type"
	labelDeleteEntry = "Delete"
)

// formatMessage substitutes {placeholder} occurrences in a template.
func formatMessage(template string, replacements map[string]string) string {
	out := template
	for key, value := range replacements {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return out
}

// movementLabel names the movement direction in user-facing text.
func movementLabel(action string) string {
	if action == "outbound" {
		return labelOutbound
	}
	return labelInbound
}
