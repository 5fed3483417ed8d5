package models

import (
	"sort"
	"strings"
	"time"
)

// ThreadSeparator joins the two participant identifiers of a thread key.
const ThreadSeparator = "_"

// ChatThread is the conversation between one requester and one provider,
// keyed by the unordered pair of their contacts.
type ChatThread struct {
	Key          string    `bson:"_id" json:"key"`
	Participants []string  `bson:"participants" json:"participants"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// ChatMessage is one entry of a thread's append-only log. It is also the
// frame exchanged with websocket clients.
type ChatMessage struct {
	ID        string    `bson:"_id" json:"id"`
	ThreadKey string    `bson:"thread_key" json:"thread_key"`
	Author    string    `bson:"author" json:"author"`
	Text      string    `bson:"text" json:"text"`
	SentAt    time.Time `bson:"sent_at" json:"sent_at"`
	// Type is "text" for user messages and "system_*" for hub notices. Only
	// "text" messages are persisted.
	Type string `bson:"type" json:"type"`
}

// ThreadKey builds the key for the unordered pair {a, b}. Emails are
// normalized first, so ThreadKey(a, b) == ThreadKey(b, a).
func ThreadKey(a, b string) string {
	pair := []string{NormalizeEmail(a), NormalizeEmail(b)}
	sort.Strings(pair)
	return strings.Join(pair, ThreadSeparator)
}
