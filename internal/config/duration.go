package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prperemyshlev/passcode-auth/internal/utils"
)

// Duration extends time.Duration to support the compact "<n>d|h|m|s" form
type Duration struct {
	time.Duration
}

// EnvDecode implements envconfig.Decoder.
// Compact specs like "7d" are tried first, then standard Go durations like "1h30m".
func (d *Duration) EnvDecode(ctx context.Context, v string) error {
	if v == "" {
		return nil
	}

	duration, err := utils.ParseDuration(v)
	if err == nil {
		d.Duration = duration
		return nil
	}
	if !errors.Is(err, utils.ErrInvalidDurationFormat) {
		return fmt.Errorf("invalid duration %q: %w", v, err)
	}

	duration, err = time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", v, err)
	}
	d.Duration = duration
	return nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Duration) UnmarshalText(text []byte) error {
	return d.EnvDecode(context.Background(), string(text))
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func (d Duration) String() string {
	return d.Duration.String()
}
