package providers

import "time"

const (
	// shutdownTimeout is the maximum time to wait for the inbox worker to stop.
	shutdownTimeout = 10 * time.Second

	// inboxBurst is how many queued files import back to back before the
	// inbox rate applies.
	inboxBurst = 10
)
