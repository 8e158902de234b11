// Package settings supplies the durations that drive the pomodoro cycle.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Keys under which the timer settings are persisted. Values are milliseconds.
const (
	KeyWorkDuration           = "work_duration_ms"
	KeyBreakDuration          = "break_duration_ms"
	KeyLongBreakDuration      = "long_break_duration_ms"
	KeySessionsUntilLongBreak = "sessions_until_long_break"
	KeyAddTasksToBottom       = "add_tasks_to_bottom"
)

// Settings configures one timer instance. It is treated as immutable once
// handed to the timer.
type Settings struct {
	Work                   time.Duration
	Break                  time.Duration
	LongBreak              time.Duration
	SessionsUntilLongBreak int
}

// Default returns the classic 25/5/15 cycle with a long break every fourth
// pomodoro.
func Default() Settings {
	return Settings{
		Work:                   25 * time.Minute,
		Break:                  5 * time.Minute,
		LongBreak:              15 * time.Minute,
		SessionsUntilLongBreak: 4,
	}
}

// Validate reports the first field that cannot drive a timer.
func (s Settings) Validate() error {
	switch {
	case s.Work <= 0:
		return errors.New("work duration must be positive")
	case s.Break <= 0:
		return errors.New("break duration must be positive")
	case s.LongBreak <= 0:
		return errors.New("long break duration must be positive")
	case s.SessionsUntilLongBreak < 1:
		return errors.New("sessions until long break must be at least 1")
	}
	return nil
}

// Provider hands out the settings for a timer.
type Provider interface {
	Settings() Settings
}

// Static is a Provider returning a fixed value.
type Static Settings

func (s Static) Settings() Settings { return Settings(s) }

// Getter is the slice of the store needed to read persisted settings.
type Getter interface {
	GetSetting(ctx context.Context, key string) (string, error)
}

// Setter is the slice of the store needed to persist settings.
type Setter interface {
	SetSetting(ctx context.Context, key, value string) error
}

// Load reads persisted settings, falling back to Default for every key that
// is missing or unparsable. The result is validated; an invalid combination
// yields Default and an error describing why.
func Load(ctx context.Context, g Getter) (Settings, error) {
	s := Default()
	s.Work = loadDuration(ctx, g, KeyWorkDuration, s.Work)
	s.Break = loadDuration(ctx, g, KeyBreakDuration, s.Break)
	s.LongBreak = loadDuration(ctx, g, KeyLongBreakDuration, s.LongBreak)
	if v, err := g.GetSetting(ctx, KeySessionsUntilLongBreak); err == nil {
		if n, err := strconv.Atoi(v); err == nil {
			s.SessionsUntilLongBreak = n
		}
	}
	if err := s.Validate(); err != nil {
		return Default(), fmt.Errorf("persisted settings: %w", err)
	}
	return s, nil
}

// Save persists s in milliseconds.
func Save(ctx context.Context, st Setter, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	pairs := []struct{ key, value string }{
		{KeyWorkDuration, strconv.FormatInt(s.Work.Milliseconds(), 10)},
		{KeyBreakDuration, strconv.FormatInt(s.Break.Milliseconds(), 10)},
		{KeyLongBreakDuration, strconv.FormatInt(s.LongBreak.Milliseconds(), 10)},
		{KeySessionsUntilLongBreak, strconv.Itoa(s.SessionsUntilLongBreak)},
	}
	for _, p := range pairs {
		if err := st.SetSetting(ctx, p.key, p.value); err != nil {
			return fmt.Errorf("save %s: %w", p.key, err)
		}
	}
	return nil
}

func loadDuration(ctx context.Context, g Getter, key string, fallback time.Duration) time.Duration {
	v, err := g.GetSetting(ctx, key)
	if err != nil {
		return fallback
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

