/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package config holds the configuration surface: connector, http,
// async and error-handler tunables, loaded through viper and validated
// through validator/v10.
package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	core "github.com/badu/httpcore"
)

// Connector holds the listener-level configuration keys.
type Connector struct {
	Host                     string        `mapstructure:"host" json:"host" yaml:"host" toml:"host"`
	Port                     int           `mapstructure:"port" json:"port" yaml:"port" toml:"port" validate:"required,min=1,max=65535"`
	Acceptors                int           `mapstructure:"acceptors" json:"acceptors" yaml:"acceptors" toml:"acceptors" validate:"min=0"`
	AcceptQueueSize          int           `mapstructure:"accept_queue_size" json:"accept_queue_size" yaml:"accept_queue_size" toml:"accept_queue_size" validate:"min=0"`
	MaxIdleTime              time.Duration `mapstructure:"max_idle_time" json:"max_idle_time" yaml:"max_idle_time" toml:"max_idle_time"`
	LowResourcesMaxIdleTime  time.Duration `mapstructure:"low_resources_max_idle_time" json:"low_resources_max_idle_time" yaml:"low_resources_max_idle_time" toml:"low_resources_max_idle_time"`
	TCPNoDelay               bool          `mapstructure:"tcp_no_delay" json:"tcp_no_delay" yaml:"tcp_no_delay" toml:"tcp_no_delay"`
	SoLinger                 int           `mapstructure:"so_linger" json:"so_linger" yaml:"so_linger" toml:"so_linger"`
	ReuseAddress             bool          `mapstructure:"reuse_address" json:"reuse_address" yaml:"reuse_address" toml:"reuse_address"`
	ForwardedHeadersEnabled  bool          `mapstructure:"forwarded_headers_enabled" json:"forwarded_headers_enabled" yaml:"forwarded_headers_enabled" toml:"forwarded_headers_enabled"`
	ForwardedForHeader       string        `mapstructure:"forwarded_for_header" json:"forwarded_for_header" yaml:"forwarded_for_header" toml:"forwarded_for_header"`
	ForwardedProtoHeader     string        `mapstructure:"forwarded_proto_header" json:"forwarded_proto_header" yaml:"forwarded_proto_header" toml:"forwarded_proto_header"`
	ForwardedHostHeader      string        `mapstructure:"forwarded_host_header" json:"forwarded_host_header" yaml:"forwarded_host_header" toml:"forwarded_host_header"`
	HostHeaderOverride       string        `mapstructure:"host_header_override" json:"host_header_override" yaml:"host_header_override" toml:"host_header_override"`
}

// HTTP holds the wire-level configuration keys.
type HTTP struct {
	RequestHeaderSize              int    `mapstructure:"request_header_size" json:"request_header_size" yaml:"request_header_size" toml:"request_header_size" validate:"min=0"`
	ResponseHeaderSize              int    `mapstructure:"response_header_size" json:"response_header_size" yaml:"response_header_size" toml:"response_header_size" validate:"min=0"`
	RequestBufferSize               int    `mapstructure:"request_buffer_size" json:"request_buffer_size" yaml:"request_buffer_size" toml:"request_buffer_size" validate:"min=0"`
	ResponseBufferSize              int    `mapstructure:"response_buffer_size" json:"response_buffer_size" yaml:"response_buffer_size" toml:"response_buffer_size" validate:"min=0"`
	MaxBuffers                      int    `mapstructure:"max_buffers" json:"max_buffers" yaml:"max_buffers" toml:"max_buffers" validate:"min=0"`
	HTTPCompliance                  string `mapstructure:"http_compliance" json:"http_compliance" yaml:"http_compliance" toml:"http_compliance" validate:"omitempty,oneof=rfc7230 legacy rfc2616"`
	RecordHTTPComplianceViolations  bool   `mapstructure:"record_http_compliance_violations" json:"record_http_compliance_violations" yaml:"record_http_compliance_violations" toml:"record_http_compliance_violations"`
	UseInputDirectByteBuffers       bool   `mapstructure:"use_input_direct_byte_buffers" json:"use_input_direct_byte_buffers" yaml:"use_input_direct_byte_buffers" toml:"use_input_direct_byte_buffers"`
	UseOutputDirectByteBuffers      bool   `mapstructure:"use_output_direct_byte_buffers" json:"use_output_direct_byte_buffers" yaml:"use_output_direct_byte_buffers" toml:"use_output_direct_byte_buffers"`
}

// Async holds the state-machine timeout default.
type Async struct {
	// DefaultTimeout is in milliseconds. Nothing in this module passes it to
	// Channel.StartAsync, which falls back to DefaultAsyncTimeout for a
	// timeout ≤ 0.
	DefaultTimeout int `mapstructure:"default_timeout" json:"default_timeout" yaml:"default_timeout" toml:"default_timeout"`
}

// ErrorHandler holds the error-page presentation keys.
type ErrorHandler struct {
	ShowStacks           bool   `mapstructure:"show_stacks" json:"show_stacks" yaml:"show_stacks" toml:"show_stacks"`
	ShowMessageInTitle   bool   `mapstructure:"show_message_in_title" json:"show_message_in_title" yaml:"show_message_in_title" toml:"show_message_in_title"`
	ShowServlet          bool   `mapstructure:"show_servlet" json:"show_servlet" yaml:"show_servlet" toml:"show_servlet"`
	CacheControl         string `mapstructure:"cache_control" json:"cache_control" yaml:"cache_control" toml:"cache_control"`
	DisableStacks        bool   `mapstructure:"disable_stacks" json:"disable_stacks" yaml:"disable_stacks" toml:"disable_stacks"`
}

// Limits holds the size-interception keys.
type Limits struct {
	RequestLimit  int64 `mapstructure:"request_limit" json:"request_limit" yaml:"request_limit" toml:"request_limit" validate:"min=-1"`
	ResponseLimit int64 `mapstructure:"response_limit" json:"response_limit" yaml:"response_limit" toml:"response_limit" validate:"min=-1"`
}

// Config is the full configuration surface for one connector.
type Config struct {
	Connector    Connector    `mapstructure:"connector" json:"connector" yaml:"connector" toml:"connector" validate:"required"`
	HTTP         HTTP         `mapstructure:"http" json:"http" yaml:"http" toml:"http"`
	Async        Async        `mapstructure:"async" json:"async" yaml:"async" toml:"async"`
	ErrorHandler ErrorHandler `mapstructure:"error_handler" json:"error_handler" yaml:"error_handler" toml:"error_handler"`
	Limits       Limits       `mapstructure:"limits" json:"limits" yaml:"limits" toml:"limits"`
}

// Default returns a Config populated with sane defaults (30s default
// async timeout, unlimited request/response size).
func Default() Config {
	return Config{
		Connector: Connector{
			Host:                    "0.0.0.0",
			Port:                    8080,
			MaxIdleTime:             30 * time.Second,
			LowResourcesMaxIdleTime: 5 * time.Second,
			TCPNoDelay:              true,
			ForwardedForHeader:      "X-Forwarded-For",
			ForwardedProtoHeader:    "X-Forwarded-Proto",
			ForwardedHostHeader:     "X-Forwarded-Host",
		},
		HTTP: HTTP{
			RequestHeaderSize:  8 * 1024,
			ResponseHeaderSize: 8 * 1024,
			RequestBufferSize:  16 * 1024,
			ResponseBufferSize: 32 * 1024,
			HTTPCompliance:     "rfc7230",
		},
		Async: Async{DefaultTimeout: 30000},
		Limits: Limits{
			RequestLimit:  -1,
			ResponseLimit: -1,
		},
	}
}

func defaultsInto(v *viper.Viper) {
	d := Default()
	v.SetDefault("connector.host", d.Connector.Host)
	v.SetDefault("connector.port", d.Connector.Port)
	v.SetDefault("connector.max_idle_time", d.Connector.MaxIdleTime)
	v.SetDefault("connector.low_resources_max_idle_time", d.Connector.LowResourcesMaxIdleTime)
	v.SetDefault("connector.tcp_no_delay", d.Connector.TCPNoDelay)
	v.SetDefault("connector.forwarded_for_header", d.Connector.ForwardedForHeader)
	v.SetDefault("connector.forwarded_proto_header", d.Connector.ForwardedProtoHeader)
	v.SetDefault("connector.forwarded_host_header", d.Connector.ForwardedHostHeader)
	v.SetDefault("http.request_header_size", d.HTTP.RequestHeaderSize)
	v.SetDefault("http.response_header_size", d.HTTP.ResponseHeaderSize)
	v.SetDefault("http.request_buffer_size", d.HTTP.RequestBufferSize)
	v.SetDefault("http.response_buffer_size", d.HTTP.ResponseBufferSize)
	v.SetDefault("http.http_compliance", d.HTTP.HTTPCompliance)
	v.SetDefault("async.default_timeout", d.Async.DefaultTimeout)
	v.SetDefault("limits.request_limit", d.Limits.RequestLimit)
	v.SetDefault("limits.response_limit", d.Limits.ResponseLimit)
}

// Load reads path (any format viper supports — yaml, json, toml) into a
// Config, applying the same defaults for any key the file omits, and
// environment overrides under the HTTPCORE_ prefix (HTTPCORE_CONNECTOR_PORT
// overrides connector.port).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("httpcore")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	defaultsInto(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
		)
	}); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate runs validator/v10 over cfg's tags and reports every failing field
// together in one *core.CoreError with KindConfigurationInvalid, the way Start() expects
// to fail fast on a bad Config.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	if _, ok := err.(*validator.InvalidValidationError); ok {
		return core.NewConfigurationInvalid(err)
	}

	var errs *multierror.Error
	for _, fe := range err.(validator.ValidationErrors) {
		errs = multierror.Append(errs, errors.Errorf("config field %q fails constraint %q", fe.Namespace(), fe.ActualTag()))
	}
	return core.NewConfigurationInvalid(errs.ErrorOrNil())
}
