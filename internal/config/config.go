package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "IMPOSTER"

type Config struct {
	Bind              string
	Port              int
	DatabaseURL       string
	NatsURL           string
	NatsSubject       string
	MaxRooms          int
	MaxPlayers        int
	CodeLength        int
	InactivityTimeout time.Duration
	StaleTTL          time.Duration
	SweepInterval     time.Duration
	VotingTimeout     time.Duration
	AllowSelfVote     bool
	AutoResolve       bool
	AllowedOrigins    []string
	LogLevel          string
	LogPretty         bool
}

func Defaults() Config {
	return Config{
		Bind:              "0.0.0.0",
		Port:              8080,
		NatsSubject:       "imposter.rooms",
		MaxRooms:          1000,
		MaxPlayers:        16,
		CodeLength:        5,
		InactivityTimeout: 10 * time.Minute,
		StaleTTL:          2 * time.Hour,
		SweepInterval:     time.Minute,
		AllowSelfVote:     true,
		AutoResolve:       true,
		LogLevel:          "info",
	}
}

// NewViper returns a viper instance reading IMPOSTER_* environment variables,
// with dashes in key names mapped to underscores.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// RegisterFlags declares every setting on fs, using the values in cfg as
// defaults and writing parsed values back into cfg.
func RegisterFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.Bind, "bind", "b", cfg.Bind, "address to bind to (env: IMPOSTER_BIND)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on (env: IMPOSTER_PORT)")
	fs.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "postgres url for the word catalog, embedded words when empty (env: IMPOSTER_DATABASE_URL)")
	fs.StringVar(&cfg.NatsURL, "nats-url", cfg.NatsURL, "nats server to mirror room snapshots to (env: IMPOSTER_NATS_URL)")
	fs.StringVar(&cfg.NatsSubject, "nats-subject", cfg.NatsSubject, "subject prefix for mirrored snapshots (env: IMPOSTER_NATS_SUBJECT)")
	fs.IntVar(&cfg.MaxRooms, "max-rooms", cfg.MaxRooms, "maximum number of concurrent rooms (env: IMPOSTER_MAX_ROOMS)")
	fs.IntVar(&cfg.MaxPlayers, "max-players", cfg.MaxPlayers, "maximum players per room (env: IMPOSTER_MAX_PLAYERS)")
	fs.IntVar(&cfg.CodeLength, "code-length", cfg.CodeLength, "room code length (env: IMPOSTER_CODE_LENGTH)")
	fs.DurationVar(&cfg.InactivityTimeout, "inactivity-timeout", cfg.InactivityTimeout, "time before a room with nobody connected is closed (env: IMPOSTER_INACTIVITY_TIMEOUT)")
	fs.DurationVar(&cfg.StaleTTL, "stale-ttl", cfg.StaleTTL, "time before a room with no activity is closed (env: IMPOSTER_STALE_TTL)")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "how often idle rooms are checked (env: IMPOSTER_SWEEP_INTERVAL)")
	fs.DurationVar(&cfg.VotingTimeout, "voting-timeout", cfg.VotingTimeout, "resolve votes automatically after this long, 0 disables (env: IMPOSTER_VOTING_TIMEOUT)")
	fs.BoolVar(&cfg.AllowSelfVote, "allow-self-vote", cfg.AllowSelfVote, "let players vote for themselves (env: IMPOSTER_ALLOW_SELF_VOTE)")
	fs.BoolVar(&cfg.AutoResolve, "auto-resolve", cfg.AutoResolve, "end the round once every connected player voted (env: IMPOSTER_AUTO_RESOLVE)")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allowed-origins", cfg.AllowedOrigins, "extra websocket origin patterns (env: IMPOSTER_ALLOWED_ORIGINS)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "trace, debug, info, warn or error (env: IMPOSTER_LOG_LEVEL)")
	fs.BoolVar(&cfg.LogPretty, "log-pretty", cfg.LogPretty, "human readable console logs (env: IMPOSTER_LOG_PRETTY)")
}

// BindFlags lets environment variables fill any flag the user did not set on
// the command line.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	var errs []error
	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(f.Name, f); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
			return
		}
		if err := v.BindEnv(f.Name); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
			return
		}
		if !f.Changed && v.IsSet(f.Name) {
			if err := fs.Set(f.Name, flagValue(v.Get(f.Name))); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
			}
		}
	})
	return errors.Join(errs...)
}

func flagValue(val any) string {
	switch x := val.(type) {
	case []string:
		return strings.Join(x, ",")
	case []any:
		parts := make([]string, len(x))
		for i, p := range x {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", val)
	}
}

func (c Config) Validate() error {
	switch {
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	case c.CodeLength < 4 || c.CodeLength > 10:
		return fmt.Errorf("invalid code length (must be between 4-10 inclusive): %d", c.CodeLength)
	case c.MaxPlayers < 3:
		return fmt.Errorf("invalid max players (must be at least 3): %d", c.MaxPlayers)
	case c.MaxRooms <= 0:
		return fmt.Errorf("invalid max rooms (must be positive): %d", c.MaxRooms)
	case c.InactivityTimeout <= 0:
		return fmt.Errorf("invalid inactivity timeout (must be positive): %s", c.InactivityTimeout)
	case c.SweepInterval <= 0:
		return fmt.Errorf("invalid sweep interval (must be positive): %s", c.SweepInterval)
	case c.VotingTimeout < 0:
		return fmt.Errorf("invalid voting timeout (must not be negative): %s", c.VotingTimeout)
	}
	return nil
}

func (c Config) Addr() string {
	return c.Bind + ":" + strconv.Itoa(c.Port)
}
