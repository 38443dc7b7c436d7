package chat

import (
	"testing"
	"time"

	"chatwidget/pkg/api"
	"chatwidget/pkg/config"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorCopyPerKind(t *testing.T) {
	limits := config.Default().Limits
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		kind api.ErrorKind
		want string
	}{
		{api.KindInvalidInput, "between 1 and 500 characters"},
		{api.KindNetworkUnreachable, "trouble connecting"},
		{api.KindRateLimitPerCallerHourly, "You've reached your hourly limit of 20 messages. Please try again in the next hour."},
		{api.KindRateLimitPerCallerDaily, "You've reached your daily limit of 50 messages. Please try again tomorrow."},
		{api.KindRateLimitGlobalHourly, "hourly capacity of 100 requests"},
		{api.KindRateLimitGlobalDaily, "daily capacity of 500 requests"},
		{api.KindServerError, "temporarily unavailable"},
		{api.KindTimeout, "took longer than expected"},
		{api.KindUnknown, "something went wrong"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got := MapError(&api.Failure{Kind: tt.kind}, limits, now)
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestMapErrorGlobalNeverBlamesCaller(t *testing.T) {
	limits := config.Default().Limits
	now := time.Now()

	for _, kind := range []api.ErrorKind{api.KindRateLimitGlobalHourly, api.KindRateLimitGlobalDaily} {
		got := MapError(&api.Failure{Kind: kind}, limits, now)
		assert.Contains(t, got, "service is busy")
		assert.NotContains(t, got, "You've")
	}
}

func TestMapErrorUsesResetTime(t *testing.T) {
	limits := config.Default().Limits
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	f := &api.Failure{Kind: api.KindRateLimitPerCallerHourly, ResetAt: now.Add(30 * time.Minute)}
	assert.Contains(t, MapError(f, limits, now), "Please try again 30 minutes from now.")

	f.ResetAt = now.Add(-time.Minute)
	assert.Contains(t, MapError(f, limits, now), "in the next hour", "stale reset time falls back")
}

func TestMapErrorConfiguredLimits(t *testing.T) {
	limits := config.LimitsConfig{CallerHourly: 7, CallerDaily: 9, GlobalHourly: 200, GlobalDaily: 2000}
	got := MapError(&api.Failure{Kind: api.KindRateLimitGlobalDaily}, limits, time.Now())
	assert.Contains(t, got, "2000")
}

func TestMapErrorDeterministic(t *testing.T) {
	limits := config.Default().Limits
	now := time.Now()
	f := &api.Failure{Kind: api.KindTimeout, Detail: "request timed out"}
	assert.Equal(t, MapError(f, limits, now), MapError(f, limits, now))
	assert.Equal(t, unknownCopy, MapError(nil, limits, now))
}
