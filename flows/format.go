package flows

import (
	"fmt"
	"strconv"

	"bitbucket.org/mmdatafocus/stockbot_backend/line"
	"bitbucket.org/mmdatafocus/stockbot_backend/models"
	"bitbucket.org/mmdatafocus/stockbot_backend/utils"
)

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (e *Engine) heroImage(photoRef string) *line.ImageComponent {
	return &line.ImageComponent{
		Type:            "image",
		URL:             utils.DirectImageURL(photoRef, e.Settings.DefaultImageURL),
		Size:            "full",
		AspectRatio:     "20:13",
		AspectMode:      "fit",
		BackgroundColor: "#EEEEEE",
	}
}

func fieldRow(label, value string, bold bool) *line.BoxComponent {
	valueComponent := &line.TextComponent{
		Type: "text", Text: value, Wrap: true, Color: "#666666", Size: "sm", Flex: 5,
	}
	if bold {
		valueComponent.Weight = "bold"
		valueComponent.Size = "md"
	}
	return &line.BoxComponent{
		Type:   "box",
		Layout: "baseline",
		Spacing: "sm",
		Contents: []any{
			&line.TextComponent{Type: "text", Text: label, Color: "#aaaaaa", Size: "sm", Flex: 2},
			valueComponent,
		},
	}
}

// itemBubble renders one inventory card: photo, name, stock and identity
// fields, and the two movement buttons that feed back into the stock flow.
func (e *Engine) itemBubble(item models.InventoryItem) *line.Bubble {
	key := item.CompositeKey()
	return &line.Bubble{
		Type: "bubble",
		Hero: e.heroImage(item.PhotoRef),
		Body: &line.BoxComponent{
			Type: "box", Layout: "vertical", Spacing: "md",
			Contents: []any{
				&line.TextComponent{Type: "text", Text: item.Name, Weight: "bold", Size: "xl", Wrap: true},
				&line.BoxComponent{
					Type: "box", Layout: "vertical", Margin: "lg", Spacing: "sm",
					Contents: []any{
						fieldRow("Stock", fmt.Sprintf("%d %s", item.Quantity, item.Unit), true),
						fieldRow("Serial", key, false),
						fieldRow("Model", orDash(item.Model), false),
						fieldRow("Spec", orDash(item.Spec), false),
					},
				},
			},
		},
		Footer: &line.BoxComponent{
			Type: "box", Layout: "horizontal", Spacing: "sm",
			Contents: []any{
				&line.ButtonComponent{
					Type: "button", Style: "primary", Color: "#4CAF50", Height: "sm",
					Action: line.PostbackAction{Type: "postback", Label: labelInbound, Data: "stock_select&action=inbound&key=" + key},
				},
				&line.ButtonComponent{
					Type: "button", Style: "primary", Color: "#F44336", Height: "sm",
					Action: line.PostbackAction{Type: "postback", Label: labelOutbound, Data: "stock_select&action=outbound&key=" + key},
				},
			},
		},
	}
}

// formatSearchResults branches on result cardinality: nothing, one detail
// card, a carousel up to the platform limit, then a plain text summary.
func (e *Engine) formatSearchResults(items []models.InventoryItem) line.Message {
	if len(items) == 0 {
		return line.NewText(msgQueryNotFound)
	}

	models.SortItems(items)

	if len(items) == 1 {
		return line.NewBubbleMessage("Result: "+items[0].Name, e.itemBubble(items[0]))
	}

	if len(items) <= line.MaxCarouselCards {
		bubbles := make([]*line.Bubble, 0, len(items))
		for _, item := range items {
			bubbles = append(bubbles, e.itemBubble(item))
		}
		return line.NewCarouselMessage(fmt.Sprintf("Found %d results", len(items)), bubbles)
	}

	text := formatMessage(msgTooManyResultsHeader, map[string]string{"count": strconv.Itoa(len(items))})
	for _, item := range items {
		text += formatMessage(msgSummaryItemLine, map[string]string{
			"id":    item.CompositeKey(),
			"name":  item.Name,
			"model": orDash(item.Model),
			"spec":  orDash(item.Spec),
			"stock": strconv.Itoa(item.Quantity),
			"unit":  item.Unit,
		})
	}
	return line.NewText(text)
}

// formatUserRecords renders the actor's recent ledger rows as a carousel.
// Void rows get a warning banner and no action buttons; New rows offer the
// full editor, movements the quantity/type editor, and both offer delete.
func (e *Engine) formatUserRecords(records []models.LedgerRecord) line.Message {
	if len(records) == 0 {
		return line.NewText(msgNoRecords)
	}

	view, err := e.Ledger.GetInventoryView()
	if err != nil {
		view = nil
	}

	bubbles := make([]*line.Bubble, 0, len(records))
	for _, record := range records {
		photoRef := record.PhotoRef
		if item, ok := view[record.CompositeKey()]; ok {
			photoRef = item.PhotoRef
		}

		quantity := record.SignedQuantity
		if quantity < 0 {
			quantity = -quantity
		}

		bodyContents := []any{}
		if record.IsVoid() {
			bodyContents = append(bodyContents, &line.TextComponent{
				Type: "text", Text: "This record has been voided", Color: "#FF5555",
				Size: "sm", Weight: "bold", Wrap: true,
			})
		}
		bodyContents = append(bodyContents,
			&line.TextComponent{Type: "text", Text: record.Name, Weight: "bold", Size: "lg", Wrap: true},
			&line.BoxComponent{
				Type: "box", Layout: "vertical", Margin: "md", Spacing: "sm",
				Contents: []any{
					fieldRow("Model", orDash(record.Model), false),
					fieldRow("Spec", orDash(record.Spec), false),
					fieldRow("Type", string(record.TransactionType), true),
					fieldRow("Qty", fmt.Sprintf("%d %s", quantity, record.Unit), false),
					fieldRow("Time", record.Timestamp.Format("2006-01-02 15:04"), false),
				},
			},
		)

		bubble := &line.Bubble{
			Type: "bubble",
			Hero: e.heroImage(photoRef),
			Body: &line.BoxComponent{Type: "box", Layout: "vertical", Spacing: "md", Contents: bodyContents},
		}

		if !record.IsVoid() {
			row := strconv.Itoa(record.ID)
			buttons := []any{}
			switch record.TransactionType {
			case models.TransactionTypeNew:
				buttons = append(buttons, &line.ButtonComponent{
					Type: "button", Style: "primary", Color: "#5E81AC", Height: "sm",
					Action: line.PostbackAction{Type: "postback", Label: labelEditFull, Data: "edit_start&type=new&row=" + row},
				})
			case models.TransactionTypeInbound, models.TransactionTypeOutbound:
				buttons = append(buttons, &line.ButtonComponent{
					Type: "button", Style: "primary", Color: "#5E81AC", Height: "sm",
					Action: line.PostbackAction{Type: "postback", Label: labelEditStock, Data: "edit_start&type=stock&row=" + row},
				})
			}
			buttons = append(buttons, &line.ButtonComponent{
				Type: "button", Style: "primary", Color: "#BF616A", Height: "sm",
				Action: line.PostbackAction{Type: "postback", Label: labelDeleteEntry, Data: "delete_record&row=" + row},
			})
			bubble.Footer = &line.BoxComponent{Type: "box", Layout: "horizontal", Spacing: "sm", Contents: buttons}
		}

		bubbles = append(bubbles, bubble)
	}

	return line.NewCarouselMessage(fmt.Sprintf("Your %d most recent records", len(records)), bubbles)
}
