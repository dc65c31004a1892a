package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Handler processes one decoded event.
type Handler func(ctx context.Context, env Envelope) error

// Consume subscribes to every channel and dispatches decoded envelopes to
// handle until ctx is done. Handler errors are logged and do not stop
// consumption.
func Consume(ctx context.Context, broker Broker, channels []string, handle Handler, logger zerolog.Logger) error {
	var wg sync.WaitGroup
	for _, channel := range channels {
		msgs, err := broker.Subscribe(ctx, channel)
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}

		wg.Add(1)
		go func(channel string, msgs <-chan []byte) {
			defer wg.Done()
			for msg := range msgs {
				var env Envelope
				if err := json.Unmarshal(msg, &env); err != nil {
					logger.Error().Err(err).Str("channel", channel).Msg("Dropping malformed message")
					continue
				}
				if err := handle(ctx, env); err != nil {
					logger.Error().Err(err).
						Str("channel", channel).
						Str("event_id", env.ID.String()).
						Msg("Failed to handle message")
				}
			}
		}(channel, msgs)
	}

	wg.Wait()
	return ctx.Err()
}
