package chat

import (
	"fmt"
	"time"

	"chatwidget/pkg/api"
	"chatwidget/pkg/config"

	"github.com/dustin/go-humanize"
)

// MapError turns a transport failure into the assistant message shown to the
// user. It is pure: the same failure, limits and clock always give the same copy.
func MapError(f *api.Failure, limits config.LimitsConfig, now time.Time) string {
	if f == nil {
		return unknownCopy
	}

	switch f.Kind {
	case api.KindInvalidInput:
		return fmt.Sprintf("Hmm, I couldn't send that. Please keep your message between 1 and %d characters and try again.", config.MaxMessageLength)
	case api.KindNetworkUnreachable:
		return "I'm having trouble connecting right now. Please check your connection and try again in a moment."
	case api.KindRateLimitPerCallerHourly:
		return fmt.Sprintf("You've reached your hourly limit of %d messages. Please try again %s.",
			limits.CallerHourly, waitUntil(f.ResetAt, now, "in the next hour"))
	case api.KindRateLimitPerCallerDaily:
		return fmt.Sprintf("You've reached your daily limit of %d messages. Please try again %s.",
			limits.CallerDaily, waitUntil(f.ResetAt, now, "tomorrow"))
	case api.KindRateLimitGlobalHourly:
		return fmt.Sprintf("The service is busy right now and has used its hourly capacity of %d requests. Please try again %s.",
			limits.GlobalHourly, waitUntil(f.ResetAt, now, "in the next hour"))
	case api.KindRateLimitGlobalDaily:
		return fmt.Sprintf("The service is busy today and has used its daily capacity of %d requests. Please try again %s.",
			limits.GlobalDaily, waitUntil(f.ResetAt, now, "tomorrow"))
	case api.KindServerError:
		return "The chat service is temporarily unavailable. Please try again shortly."
	case api.KindTimeout:
		return "That took longer than expected. Please resend your message."
	default:
		return unknownCopy
	}
}

const unknownCopy = "Sorry, something went wrong on my end. Please try again."

// waitUntil renders the reset instant relative to now, or fallback when the
// service sent no usable reset time.
func waitUntil(reset, now time.Time, fallback string) string {
	if reset.IsZero() || !reset.After(now) {
		return fallback
	}
	return humanize.RelTime(reset, now, "ago", "from now")
}
