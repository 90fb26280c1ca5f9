// Package events implements the feed sync's fire-and-forget event
// notifier: submit to a catalog client when one is configured, otherwise
// log the event body directly.
package events

import (
	"context"
	"encoding/json"

	"github.com/quay/zlog"

	"github.com/chl3608/anchore-engine/feed"
)

// Notify submits event to client. A nil client is not an error: the event
// is logged at info instead. An AddEvent error is never propagated --
// events are best-effort -- it is logged at warning.
func Notify(ctx context.Context, event feed.Event, client feed.EventClient) {
	if client == nil {
		body, err := json.Marshal(event)
		if err != nil {
			zlog.Warn(ctx).Err(err).Str("kind", string(event.Kind)).Msg("failed to marshal event for logging")
			return
		}
		zlog.Info(ctx).RawJSON("event", body).Msg("feed event")
		return
	}
	if err := client.AddEvent(ctx, event); err != nil {
		zlog.Warn(ctx).
			Err(err).
			Str("kind", string(event.Kind)).
			Str("feed", event.Feed).
			Str("group", event.Group).
			Msg("event submission failed, dropping")
	}
}
