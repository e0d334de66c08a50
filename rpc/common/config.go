package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Stream configuration structs
// --------------------------------------------------------------------------

const (
	DefaultUserAgent      = "dStream/1.0"
	DefaultMaxFrameBytes  = 8 * 1024 * 1024 // 8 MB
	DefaultTimeoutSecond  = 30
	DefaultReconnectBurst = 3
)

// TransportConfig holds the parameters of a single duplex transport
type TransportConfig struct {
	// TimeoutSecond bounds the wait for a response to an outbound request (0 = no timeout)
	TimeoutSecond int
	// MaxFrameBytes is the maximum size of one encoded frame
	MaxFrameBytes int
	// MaxConcurrentRequests limits concurrently processed inbound requests per connection (0 = unlimited)
	MaxConcurrentRequests int
	// WriteTimeoutSecond bounds a single write to the underlying connection (0 = no timeout)
	WriteTimeoutSecond int
}

// RequestTimeout returns TimeoutSecond as a duration
func (c TransportConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// WriteTimeout returns WriteTimeoutSecond as a duration
func (c TransportConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSecond) * time.Second
}

// FrameLimit returns MaxFrameBytes or the default if it is not set
func (c TransportConfig) FrameLimit() int {
	if c.MaxFrameBytes <= 0 {
		return DefaultMaxFrameBytes
	}
	return c.MaxFrameBytes
}

// ReconnectConfig controls how often a dropped socket connection may be re-established
type ReconnectConfig struct {
	// PerMinute is the sustained number of reconnect attempts per minute (0 = unlimited)
	PerMinute int
	// Burst is the number of attempts allowed in quick succession
	Burst int
}

// LogConfig holds the logging configuration
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string
	// File is an optional log file. If empty, logs are written to stdout
	File string
	// MaxSizeMB is the size at which the log file is rotated
	MaxSizeMB int
	// MaxBackups is the number of rotated files to keep
	MaxBackups int
}

// StreamConfig holds all configuration parameters of a streaming endpoint
type StreamConfig struct {
	// UserAgent is reported by the version diagnostic endpoint
	UserAgent string

	// Endpoint is the http address on which websocket connections are accepted
	Endpoint string
	// PipeName is the name of the local pipe (unix socket path or windows pipe name)
	PipeName string

	// Serializer is the name of the structured serializer (json, cbor)
	Serializer string

	Transport TransportConfig
	Reconnect ReconnectConfig
	Log       LogConfig
}

// DefaultStreamConfig returns a configuration with sensible defaults
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		UserAgent:  DefaultUserAgent,
		Endpoint:   "0.0.0.0:3978",
		Serializer: "json",
		Transport: TransportConfig{
			TimeoutSecond: DefaultTimeoutSecond,
			MaxFrameBytes: DefaultMaxFrameBytes,
		},
		Reconnect: ReconnectConfig{
			PerMinute: 6,
			Burst:     DefaultReconnectBurst,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// String returns a formatted string representation of the configuration
func (c *StreamConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Streaming Endpoint")
	addField("User Agent", c.UserAgent)
	addField("Endpoint", c.Endpoint)
	if c.PipeName != "" {
		addField("Pipe", c.PipeName)
	}
	addField("Serializer", c.Serializer)

	addSection("Transport")
	addField("Timeout", fmt.Sprintf("%d sec", c.Transport.TimeoutSecond))
	addField("Write Timeout", fmt.Sprintf("%d sec", c.Transport.WriteTimeoutSecond))
	addField("Max Frame Size", fmt.Sprintf("%d KB", c.Transport.FrameLimit()/1024))
	if c.Transport.MaxConcurrentRequests > 0 {
		addField("Max Concurrent Reqs", strconv.Itoa(c.Transport.MaxConcurrentRequests))
	} else {
		addField("Max Concurrent Reqs", "unlimited")
	}

	addSection("Reconnect")
	if c.Reconnect.PerMinute > 0 {
		addField("Attempts Per Minute", strconv.Itoa(c.Reconnect.PerMinute))
		addField("Burst", strconv.Itoa(c.Reconnect.Burst))
	} else {
		addField("Attempts Per Minute", "unlimited")
	}

	addSection("Logging")
	addField("Log Level", c.Log.Level)
	if c.Log.File != "" {
		addField("Log File", c.Log.File)
	}

	return sb.String()
}
