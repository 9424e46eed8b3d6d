package notifier

// Discord webhook payload. Only the fields this service fills are modelled.

type MessagePayload struct {
	Content  string  `json:"content,omitempty"`
	Username string  `json:"username,omitempty"`
	Embeds   []Embed `json:"embeds,omitempty"`
}

type Embed struct {
	Title     string       `json:"title,omitempty"`
	URL       string       `json:"url,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"` // ISO8601
	Color     int          `json:"color,omitempty"`
	Footer    *EmbedFooter `json:"footer,omitempty"`
	Image     *EmbedImage  `json:"image,omitempty"`
	Fields    []EmbedField `json:"fields,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

type EmbedImage struct {
	URL string `json:"url"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}
