package slack

// Message is a chat.postMessage / chat.scheduleMessage payload.
type Message struct {
	Channel  string  `json:"channel"`
	Text     string  `json:"text"`
	Blocks   []Block `json:"blocks,omitempty"`
	ThreadTS string  `json:"thread_ts,omitempty"`
	PostAt   int64   `json:"post_at,omitempty"`
}

type Block struct {
	Type     string    `json:"type"`
	Text     *Text     `json:"text,omitempty"`
	Elements []Element `json:"elements,omitempty"`
}

type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type Element struct {
	Type     string `json:"type"`
	Text     *Text  `json:"text,omitempty"`
	Style    string `json:"style,omitempty"`
	ActionID string `json:"action_id,omitempty"`
	Value    string `json:"value,omitempty"`
}

// Section builds a mrkdwn section block.
func Section(md string) Block {
	return Block{Type: "section", Text: &Text{Type: "mrkdwn", Text: md}}
}

// Header builds a plain-text header block.
func Header(text string) Block {
	return Block{Type: "header", Text: &Text{Type: "plain_text", Text: text, Emoji: true}}
}

// Button builds an actions block holding a single primary button whose value
// is an opaque payload echoed back on click.
func Button(label, actionID, value string) Block {
	return Block{
		Type: "actions",
		Elements: []Element{{
			Type:     "button",
			Text:     &Text{Type: "plain_text", Text: label, Emoji: true},
			Style:    "primary",
			ActionID: actionID,
			Value:    value,
		}},
	}
}
