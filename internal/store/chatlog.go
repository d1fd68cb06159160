package store

import "github.com/abrezinsky/lotterydesk/internal/models"

// chatLog keeps the most recent limit messages, oldest first
type chatLog struct {
	limit   int
	entries []models.ChatMessage
}

func newChatLog(limit int) *chatLog {
	if limit < 1 {
		limit = DefaultChatLimit
	}
	return &chatLog{limit: limit, entries: make([]models.ChatMessage, 0, limit)}
}

func (c *chatLog) add(msg models.ChatMessage) {
	if len(c.entries) == c.limit {
		copy(c.entries, c.entries[1:])
		c.entries = c.entries[:c.limit-1]
	}
	c.entries = append(c.entries, msg)
}

func (c *chatLog) list() []models.ChatMessage {
	out := make([]models.ChatMessage, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *chatLog) clear() {
	c.entries = c.entries[:0]
}

func (c *chatLog) size() int {
	return len(c.entries)
}
