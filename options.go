// Copyright 2019 Andy Pan. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package lcepoll

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/ysyzqq/lcepoll/pkg/logging"
)

// Config is the static configuration of a server.
type Config struct {
	// Port is the TCP port to listen on, 0 picks an ephemeral port.
	Port int `yaml:"port"`
	// BindAddress is the IP to bind, empty or "any" binds all IPv4 interfaces.
	BindAddress string `yaml:"bind_address"`
	// Workers is the number of worker loops.
	Workers int `yaml:"workers"`
	// MaxConnections bounds the number of simultaneously open connections.
	MaxConnections int `yaml:"max_connections"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.Port < 0 || c.Port > 65535:
		return errors.Wrapf(ErrInvalidConfig, "port %d out of range", c.Port)
	case c.Workers <= 0:
		return errors.Wrapf(ErrInvalidConfig, "workers must be positive, got %d", c.Workers)
	case c.MaxConnections <= 0:
		return errors.Wrapf(ErrInvalidConfig, "max connections must be positive, got %d", c.MaxConnections)
	}
	return nil
}

// LoadConfig reads a yaml configuration file.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	return cfg, cfg.Validate()
}

// Option is a function that will set up option.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := &Options{LockOSThread: true}
	for _, option := range options {
		option(opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetDefaultLogger()
	}
	return opts
}

// Options are set when the server is created.
type Options struct {
	// ReusePort sets SO_REUSEPORT on the listening socket.
	ReusePort bool

	// TCPKeepAlive enables keepalive on accepted connections when positive.
	TCPKeepAlive time.Duration

	// TCPNoDelay sets TCP_NODELAY on accepted connections.
	TCPNoDelay bool

	// LockOSThread pins the master and every worker loop to an OS thread.
	LockOSThread bool

	// Logger is the customized logger for logging info, if it is not set,
	// the default zap logger is used.
	Logger logging.Logger
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithReusePort sets SO_REUSEPORT on the listening socket.
func WithReusePort(reusePort bool) Option {
	return func(opts *Options) {
		opts.ReusePort = reusePort
	}
}

// WithTCPKeepAlive sets up the keepalive idle time of accepted connections.
func WithTCPKeepAlive(tcpKeepAlive time.Duration) Option {
	return func(opts *Options) {
		opts.TCPKeepAlive = tcpKeepAlive
	}
}

// WithTCPNoDelay disables Nagle's algorithm on accepted connections.
func WithTCPNoDelay(noDelay bool) Option {
	return func(opts *Options) {
		opts.TCPNoDelay = noDelay
	}
}

// WithLockOSThread controls whether loops are pinned to OS threads.
func WithLockOSThread(lock bool) Option {
	return func(opts *Options) {
		opts.LockOSThread = lock
	}
}

// WithLogger sets up a customized logger.
func WithLogger(logger logging.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}
