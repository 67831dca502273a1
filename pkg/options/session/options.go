// Package session provides session history configuration options.
package session

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docchat/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Options contains session history configuration.
type Options struct {
	// Backend selects the session store (memory or redis).
	Backend string `json:"backend" mapstructure:"backend"`

	// MaxTurns bounds the per-session history; the oldest turn is evicted.
	MaxTurns int `json:"max-turns" mapstructure:"max-turns"`

	// TTL expires idle sessions in the redis backend. Zero disables expiry.
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix namespaces redis session keys.
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Backend:   BackendMemory,
		MaxTurns:  10,
		TTL:       24 * time.Hour,
		KeyPrefix: "docchat:session:",
	}
}

// AddFlags adds flags for session options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Backend, options.Join(prefixes...)+"session.backend", o.Backend, "Session store backend (memory or redis).")
	fs.IntVar(&o.MaxTurns, options.Join(prefixes...)+"session.max-turns", o.MaxTurns, "Maximum turns retained per session.")
	fs.DurationVar(&o.TTL, options.Join(prefixes...)+"session.ttl", o.TTL, "Idle session expiry for the redis backend.")
	fs.StringVar(&o.KeyPrefix, options.Join(prefixes...)+"session.key-prefix", o.KeyPrefix, "Redis session key prefix.")
}

// Validate validates the session options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Backend != BackendMemory && o.Backend != BackendRedis {
		errs = append(errs, fmt.Errorf("session backend must be %q or %q", BackendMemory, BackendRedis))
	}
	if o.MaxTurns <= 0 {
		errs = append(errs, fmt.Errorf("session max-turns must be positive"))
	}
	return errs
}

// Complete completes the session options with defaults.
func (o *Options) Complete() error {
	if o.KeyPrefix == "" {
		o.KeyPrefix = "docchat:session:"
	}
	return nil
}
