// Package messages builds the timestamped payloads delivered to chat clients.
package messages

import (
	"strconv"
	"time"
)

// AdminName is the sender shown on notices generated by the server.
const AdminName = "Admin"

// Message is a text message or a system notice.
type Message struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"createdAt"`
}

// LocationMessage carries a map link for a shared position.
type LocationMessage struct {
	Username  string `json:"username"`
	URL       string `json:"url"`
	CreatedAt int64  `json:"createdAt"`
}

// Formatter stamps payloads with the time read from its clock.
type Formatter struct {
	now func() time.Time
}

// NewFormatter returns a Formatter reading time from now. A nil clock falls
// back to time.Now.
func NewFormatter(now func() time.Time) *Formatter {
	if now == nil {
		now = time.Now
	}
	return &Formatter{now: now}
}

// GenerateMessage builds a Message sent by username.
func (f *Formatter) GenerateMessage(username, text string) Message {
	return Message{
		Username:  username,
		Text:      text,
		CreatedAt: f.now().UnixMilli(),
	}
}

// GenerateLocationMessage builds a LocationMessage sent by username.
func (f *Formatter) GenerateLocationMessage(username, url string) LocationMessage {
	return LocationMessage{
		Username:  username,
		URL:       url,
		CreatedAt: f.now().UnixMilli(),
	}
}

// LocationURL returns a Google Maps link for the coordinates. Each coordinate
// uses the shortest decimal form that parses back to the same value.
func LocationURL(lat, lng float64) string {
	return "https://google.com/maps?q=" +
		strconv.FormatFloat(lat, 'f', -1, 64) + "," +
		strconv.FormatFloat(lng, 'f', -1, 64)
}
