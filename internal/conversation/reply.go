package conversation

// Reply — нейтральная модель ответа: сообщения и клавиатура.
// Как именно она рисуется в мессенджере, решает транспорт.
type Reply struct {
	Messages []Message   `json:"messages"`
	Keyboard [][]Control `json:"keyboard,omitempty"`
}

type Message struct {
	Text    string      `json:"text,omitempty"`
	PhotoID string      `json:"photo_id,omitempty"`
	Inline  [][]Control `json:"inline,omitempty"`
}

// Control — кнопка. Code возвращается в Event.Code при нажатии.
type Control struct {
	Label           string `json:"label"`
	Code            string `json:"code"`
	RequestContact  bool   `json:"request_contact,omitempty"`
	RequestLocation bool   `json:"request_location,omitempty"`
}

func (r *Reply) text(s string) {
	r.Messages = append(r.Messages, Message{Text: s})
}

// prepend ставит уведомление перед уже собранными сообщениями
func (r Reply) prepend(s string) Reply {
	r.Messages = append([]Message{{Text: s}}, r.Messages...)
	return r
}

func row(controls ...Control) []Control {
	return controls
}
