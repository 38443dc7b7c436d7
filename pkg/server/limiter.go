package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"chatwidget/pkg/api"
	"chatwidget/pkg/config"
)

const keyPrefix = "chatwidget:rl"

// Usage is a snapshot of the four counters for one caller.
type Usage struct {
	CallerHour int
	CallerDay  int
	GlobalHour int
	GlobalDay  int
	HourReset  time.Time
	DayReset   time.Time
}

// Rejection describes the quota that refused a request.
type Rejection struct {
	Kind   api.ErrorKind
	Detail api.RateLimitDetail
}

// Limiter enforces per-caller and service-wide hourly and daily quotas over
// fixed UTC windows.
type Limiter struct {
	store  CounterStore
	limits config.LimitsConfig
	now    func() time.Time
}

// NewLimiter creates a limiter over store.
func NewLimiter(store CounterStore, limits config.LimitsConfig) *Limiter {
	return &Limiter{store: store, limits: limits, now: time.Now}
}

type windowKeys struct {
	callerHour, callerDay, globalHour, globalDay string
	hourReset, dayReset                          time.Time
}

func (l *Limiter) keys(caller string) windowKeys {
	now := l.now().UTC()
	hourStart := now.Truncate(time.Hour)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	hour := hourStart.Format("2006010215")
	day := dayStart.Format("20060102")

	return windowKeys{
		callerHour: fmt.Sprintf("%s:caller:%s:h:%s", keyPrefix, caller, hour),
		callerDay:  fmt.Sprintf("%s:caller:%s:d:%s", keyPrefix, caller, day),
		globalHour: fmt.Sprintf("%s:global:h:%s", keyPrefix, hour),
		globalDay:  fmt.Sprintf("%s:global:d:%s", keyPrefix, day),
		hourReset:  hourStart.Add(time.Hour),
		dayReset:   dayStart.AddDate(0, 0, 1),
	}
}

// Check reads the counters for caller and reports the first exhausted quota,
// checking caller hourly, caller daily, global hourly, then global daily.
func (l *Limiter) Check(ctx context.Context, caller string) (Usage, *Rejection, error) {
	k := l.keys(caller)
	counts, err := l.store.Get(ctx, k.callerHour, k.callerDay, k.globalHour, k.globalDay)
	if err != nil {
		return Usage{}, nil, fmt.Errorf("read rate counters: %w", err)
	}
	u := Usage{
		CallerHour: counts[0],
		CallerDay:  counts[1],
		GlobalHour: counts[2],
		GlobalDay:  counts[3],
		HourReset:  k.hourReset,
		DayReset:   k.dayReset,
	}
	return u, l.reject(u), nil
}

// Record counts one served request for caller and returns the updated usage.
func (l *Limiter) Record(ctx context.Context, caller string) (Usage, error) {
	k := l.keys(caller)
	u := Usage{HourReset: k.hourReset, DayReset: k.dayReset}

	counters := []struct {
		key    string
		expire time.Time
		dst    *int
	}{
		{k.callerHour, k.hourReset, &u.CallerHour},
		{k.callerDay, k.dayReset, &u.CallerDay},
		{k.globalHour, k.hourReset, &u.GlobalHour},
		{k.globalDay, k.dayReset, &u.GlobalDay},
	}
	for _, c := range counters {
		n, err := l.store.Incr(ctx, c.key, c.expire)
		if err != nil {
			return u, fmt.Errorf("record request: %w", err)
		}
		*c.dst = n
	}
	return u, nil
}

// Global returns the service-wide usage for the current windows.
func (l *Limiter) Global(ctx context.Context) (Usage, error) {
	k := l.keys("")
	counts, err := l.store.Get(ctx, k.globalHour, k.globalDay)
	if err != nil {
		return Usage{}, fmt.Errorf("read rate counters: %w", err)
	}
	return Usage{GlobalHour: counts[0], GlobalDay: counts[1], HourReset: k.hourReset, DayReset: k.dayReset}, nil
}

func (l *Limiter) reject(u Usage) *Rejection {
	lim := l.limits
	switch {
	case u.CallerHour >= lim.CallerHourly:
		return &Rejection{Kind: api.KindRateLimitPerCallerHourly, Detail: api.RateLimitDetail{
			Error:                "Hourly request limit exceeded for your IP",
			Message:              fmt.Sprintf("You've used all %d requests allowed per hour. Please try again later.", lim.CallerHourly),
			HourlyLimit:          lim.CallerHourly,
			RequestsUsedThisHour: u.CallerHour,
			Window:               "1 hour",
			ResetTime:            u.HourReset.Unix(),
		}}
	case u.CallerDay >= lim.CallerDaily:
		return &Rejection{Kind: api.KindRateLimitPerCallerDaily, Detail: api.RateLimitDetail{
			Error:             "Daily request limit exceeded for your IP",
			Message:           fmt.Sprintf("You've used all %d requests allowed per day. Please try again tomorrow.", lim.CallerDaily),
			DailyLimit:        lim.CallerDaily,
			RequestsUsedToday: u.CallerDay,
			Window:            "24 hours",
			ResetTime:         u.DayReset.Unix(),
		}}
	case u.GlobalHour >= lim.GlobalHourly:
		return &Rejection{Kind: api.KindRateLimitGlobalHourly, Detail: api.RateLimitDetail{
			Error:                "Hourly request limit exceeded",
			Message:              fmt.Sprintf("The service has reached its hourly limit of %d requests. Please try again later.", lim.GlobalHourly),
			HourlyLimit:          lim.GlobalHourly,
			RequestsUsedThisHour: u.GlobalHour,
			Window:               "1 hour",
			ResetTime:            u.HourReset.Unix(),
		}}
	case u.GlobalDay >= lim.GlobalDaily:
		return &Rejection{Kind: api.KindRateLimitGlobalDaily, Detail: api.RateLimitDetail{
			Error:             "Daily request limit exceeded",
			Message:           fmt.Sprintf("The service has reached its daily limit of %d requests. Please try again tomorrow.", lim.GlobalDaily),
			DailyLimit:        lim.GlobalDaily,
			RequestsUsedToday: u.GlobalDay,
			Window:            "24 hours",
			ResetTime:         u.DayReset.Unix(),
		}}
	}
	return nil
}

// setHeaders writes the service-wide X-RateLimit-* headers for u.
func (l *Limiter) setHeaders(h http.Header, u Usage) {
	set := func(window string, limit, used int, reset time.Time) {
		h.Set("X-RateLimit-"+window+"-Limit", strconv.Itoa(limit))
		h.Set("X-RateLimit-"+window+"-Used", strconv.Itoa(used))
		h.Set("X-RateLimit-"+window+"-Remaining", strconv.Itoa(max(0, limit-used)))
		h.Set("X-RateLimit-"+window+"-Reset", strconv.FormatInt(reset.Unix(), 10))
	}
	set("Hourly", l.limits.GlobalHourly, u.GlobalHour, u.HourReset)
	set("Daily", l.limits.GlobalDaily, u.GlobalDay, u.DayReset)
}
