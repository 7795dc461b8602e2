package core

import "time"

// ChatLine is an entry in a room's bounded history.
type ChatLine struct {
	Sender string
	Text   string
	Time   time.Time
}
