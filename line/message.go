package line

// Outbound message descriptors, shaped for the platform's messaging API.
// Three forms: plain text (optionally with quick-reply buttons), one flex
// card, or a carousel of up to MaxCarouselCards cards.

// MaxCarouselCards is the platform limit on cards per carousel; result sets
// above it fall back to a text summary.
const MaxCarouselCards = 12

type Message interface{ message() }

type TextMessage struct {
	Type       string      `json:"type"`
	Text       string      `json:"text"`
	QuickReply *QuickReply `json:"quickReply,omitempty"`
}

type FlexMessage struct {
	Type     string `json:"type"`
	AltText  string `json:"altText"`
	Contents any    `json:"contents"`
}

func (TextMessage) message() {}
func (FlexMessage) message() {}

type QuickReply struct {
	Items []QuickReplyItem `json:"items"`
}

type QuickReplyItem struct {
	Type   string         `json:"type"`
	Action PostbackAction `json:"action"`
}

// PostbackAction encodes a button whose tap comes back as postback data in
// the command grammar.
type PostbackAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Data  string `json:"data"`
}

type Bubble struct {
	Type   string          `json:"type"`
	Hero   *ImageComponent `json:"hero,omitempty"`
	Body   *BoxComponent   `json:"body,omitempty"`
	Footer *BoxComponent   `json:"footer,omitempty"`
}

type Carousel struct {
	Type     string    `json:"type"`
	Contents []*Bubble `json:"contents"`
}

type BoxComponent struct {
	Type     string `json:"type"`
	Layout   string `json:"layout"`
	Spacing  string `json:"spacing,omitempty"`
	Margin   string `json:"margin,omitempty"`
	Contents []any  `json:"contents"`
}

type TextComponent struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	Weight string `json:"weight,omitempty"`
	Size   string `json:"size,omitempty"`
	Color  string `json:"color,omitempty"`
	Flex   int    `json:"flex,omitempty"`
	Wrap   bool   `json:"wrap,omitempty"`
}

type ImageComponent struct {
	Type            string `json:"type"`
	URL             string `json:"url"`
	Size            string `json:"size,omitempty"`
	AspectRatio     string `json:"aspectRatio,omitempty"`
	AspectMode      string `json:"aspectMode,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
}

type ButtonComponent struct {
	Type   string         `json:"type"`
	Style  string         `json:"style,omitempty"`
	Color  string         `json:"color,omitempty"`
	Height string         `json:"height,omitempty"`
	Action PostbackAction `json:"action"`
}

func NewText(text string) TextMessage {
	return TextMessage{Type: "text", Text: text}
}

func NewTextWithButtons(text string, items ...QuickReplyItem) TextMessage {
	msg := NewText(text)
	if len(items) > 0 {
		msg.QuickReply = &QuickReply{Items: items}
	}
	return msg
}

func NewPostbackButton(label, data string) QuickReplyItem {
	return QuickReplyItem{
		Type:   "action",
		Action: PostbackAction{Type: "postback", Label: label, Data: data},
	}
}

func NewBubbleMessage(altText string, bubble *Bubble) FlexMessage {
	return FlexMessage{Type: "flex", AltText: altText, Contents: bubble}
}

func NewCarouselMessage(altText string, bubbles []*Bubble) FlexMessage {
	return FlexMessage{
		Type:     "flex",
		AltText:  altText,
		Contents: &Carousel{Type: "carousel", Contents: bubbles},
	}
}
