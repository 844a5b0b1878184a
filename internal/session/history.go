package session

// history accumulates streamed talking-message fragments into whole messages.
// Consecutive fragments from the same sender extend the last message until an
// end message closes it; a fragment from the other sender starts a new one.
type history struct {
	messages []Message
	open     bool
	nextID   int
}

func (h *history) appendFragment(sender Sender, fragment string) {
	if n := len(h.messages); h.open && n > 0 && h.messages[n-1].Sender == sender {
		h.messages[n-1].Content += fragment
		return
	}
	h.nextID++
	h.messages = append(h.messages, Message{ID: h.nextID, Sender: sender, Content: fragment})
	h.open = true
}

func (h *history) end() {
	h.open = false
}

func (h *history) clear() {
	h.messages = nil
	h.open = false
}

func (h *history) snapshot() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}
