package handlers

import (
	"context"
	"log"
	"time"

	"expiryeaze/internal/events"
)

const publishTimeout = 2 * time.Second

// publish sends an event without letting a broker problem fail the request.
func publish(parent context.Context, publisher events.Publisher, topic, key string, payload any) {
	if publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, publishTimeout)
	defer cancel()

	if err := publisher.Publish(ctx, topic, key, payload); err != nil {
		log.Printf("[EVENTS] [ERROR] %s for %s dropped: %v", topic, key, err)
	}
}
