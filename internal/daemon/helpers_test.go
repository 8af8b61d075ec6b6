package daemon

import (
	"strconv"

	"autopost/internal/events"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func eventWithMessage(message string) events.Event {
	return events.Event{Message: message}
}
