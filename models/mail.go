package models

import "time"

// Mail is one mailbox copy of a message. Every recipient of a send (and the
// sender) holds an independent copy; copies of one logical send share GroupID.
type Mail struct {
	ID         string    `json:"id"`
	Owner      string    `json:"-"` // mailbox this copy lives in
	Sender     string    `json:"sender"`
	Recipient  string    `json:"recipient"` // legacy single-recipient form
	Recipients []string  `json:"recipients"`
	Subject    string    `json:"subject"`
	Content    string    `json:"content"`
	Labels     []string  `json:"labels"` // label ids in the owner's namespace
	GroupID    string    `json:"groupId"`
	Timestamp  time.Time `json:"timestamp"`
	IsDraft    bool      `json:"isDraft,omitempty"`
	Outgoing   bool      `json:"outgoing,omitempty"` // the sender's own copy of a send
}

// MailSummary is the compact listing form used for recent mails.
type MailSummary struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Timestamp  time.Time `json:"timestamp"`
	Direction  string    `json:"direction"` // "sent" or "received"
	OtherParty Party     `json:"otherParty"`
	Preview    string    `json:"preview"`
}

type Party struct {
	Email string `json:"email"`
}

// SearchResult is one deduplicated search hit.
type SearchResult struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Timestamp  time.Time `json:"timestamp"`
	Direction  string    `json:"direction"`
	Sender     string    `json:"sender"`
	Recipients []string  `json:"recipients"`
	Content    string    `json:"content"`
}
