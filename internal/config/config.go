// Package config loads the client configuration from an INI file.
//
// The file has a single [IRC] section:
//
//	[IRC]
//	server   = irc.libera.chat
//	port     = 6697
//	nick     = alice
//	channel  = #go-nuts
//	realname = Alice Liddell
//	tls      = true
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/omochice/toy-irc-chat/pkg/protocol"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.ini"

// Section is the INI section holding the connection settings.
const Section = "IRC"

// Transport selects how the client reaches the server.
type Transport string

const (
	TransportTCP       Transport = "tcp"
	TransportWebSocket Transport = "websocket"
)

// Config holds the settings the session needs before it can connect.
type Config struct {
	Server   string
	Port     int
	Nick     string
	Channel  string
	Realname string

	Transport   Transport
	TLS         bool
	TLSInsecure bool
	// Path is the HTTP path of a websocket endpoint.
	Path string
	// Proxy is an optional socks5:// URL every connection is dialed through.
	Proxy string
}

// Error reports a missing or invalid configuration value.
type Error struct {
	Field  string
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := "config"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// ErrMissing is wrapped by every Error about an absent required field.
var ErrMissing = errors.New("required")

// loadOptions keeps '#' and ';' inside values: channel names start with '#'.
var loadOptions = ini.LoadOptions{IgnoreInlineComment: true}

// Load reads and validates the file at path.
func Load(path string) (Config, error) {
	f, err := ini.LoadSources(loadOptions, path)
	if err != nil {
		return Config{}, &Error{Reason: fmt.Sprintf("cannot read %s", path), Err: err}
	}
	return fromFile(f)
}

// Parse reads and validates INI data.
func Parse(data []byte) (Config, error) {
	f, err := ini.LoadSources(loadOptions, data)
	if err != nil {
		return Config{}, &Error{Reason: "cannot parse", Err: err}
	}
	return fromFile(f)
}

func fromFile(f *ini.File) (Config, error) {
	sec, err := f.GetSection(Section)
	if err != nil {
		return Config{}, &Error{Field: "[" + Section + "]", Reason: "section missing", Err: ErrMissing}
	}

	cfg := Config{
		Server:    strings.TrimSpace(sec.Key("server").String()),
		Nick:      strings.TrimSpace(sec.Key("nick").String()),
		Channel:   strings.TrimSpace(sec.Key("channel").String()),
		Realname:  strings.TrimSpace(sec.Key("realname").String()),
		Transport: Transport(strings.ToLower(sec.Key("transport").MustString(string(TransportTCP)))),
		Path:      sec.Key("path").MustString("/"),
		Proxy:     strings.TrimSpace(sec.Key("proxy").String()),
	}

	if sec.HasKey("port") {
		port, err := sec.Key("port").Int()
		if err != nil {
			return Config{}, &Error{Field: "port", Reason: "not an integer", Err: err}
		}
		cfg.Port = port
	}
	if sec.HasKey("tls") {
		if cfg.TLS, err = sec.Key("tls").Bool(); err != nil {
			return Config{}, &Error{Field: "tls", Reason: "not a boolean", Err: err}
		}
	}
	if sec.HasKey("tls_insecure") {
		if cfg.TLSInsecure, err = sec.Key("tls_insecure").Bool(); err != nil {
			return Config{}, &Error{Field: "tls_insecure", Reason: "not a boolean", Err: err}
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every required field is present and in range.
func (c *Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"server", c.Server},
		{"nick", c.Nick},
		{"channel", c.Channel},
		{"realname", c.Realname},
	}
	for _, r := range required {
		if r.value == "" {
			return &Error{Field: r.name, Reason: "missing", Err: ErrMissing}
		}
	}

	if c.Port == 0 {
		return &Error{Field: "port", Reason: "missing", Err: ErrMissing}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &Error{Field: "port", Reason: fmt.Sprintf("%d out of range 1-65535", c.Port)}
	}

	if strings.ContainsAny(c.Nick, " \t:") {
		return &Error{Field: "nick", Reason: fmt.Sprintf("%q contains whitespace or ':'", c.Nick)}
	}
	if strings.ContainsAny(c.Channel, " \t,") {
		return &Error{Field: "channel", Reason: fmt.Sprintf("%q contains whitespace or ','", c.Channel)}
	}

	switch c.Transport {
	case "":
		c.Transport = TransportTCP
	case TransportTCP, TransportWebSocket:
	default:
		return &Error{Field: "transport", Reason: fmt.Sprintf("unknown transport %q", c.Transport)}
	}

	if c.Path == "" {
		c.Path = "/"
	}
	if !strings.HasPrefix(c.Path, "/") {
		return &Error{Field: "path", Reason: fmt.Sprintf("%q must start with '/'", c.Path)}
	}

	if c.Proxy != "" {
		u, err := url.Parse(c.Proxy)
		if err != nil {
			return &Error{Field: "proxy", Reason: "invalid URL", Err: err}
		}
		if u.Scheme != "socks5" && u.Scheme != "socks5h" {
			return &Error{Field: "proxy", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
		}
	}

	for _, line := range protocol.Registration(c.State()) {
		if err := protocol.ValidateLine(line); err != nil {
			return &Error{Field: "nick", Reason: "registration line rejected", Err: err}
		}
	}

	return nil
}

// State returns the initial session state described by the config.
func (c Config) State() protocol.State {
	return protocol.State{
		Server:   c.Server,
		Port:     c.Port,
		Nick:     c.Nick,
		Realname: c.Realname,
		Channel:  c.Channel,
	}
}

// Overrides holds values given on the command line. Zero values leave the
// file's value alone.
type Overrides struct {
	Server  string
	Port    int
	Nick    string
	Channel string
}

// LoadWithOverrides reads the file at path, applies o and validates the
// result. A missing file is fine when the overrides supply every required
// field.
func LoadWithOverrides(path string, o Overrides) (Config, error) {
	opts := loadOptions
	opts.Loose = true
	f, err := ini.LoadSources(opts, path)
	if err != nil {
		return Config{}, &Error{Reason: fmt.Sprintf("cannot read %s", path), Err: err}
	}

	sec := f.Section(Section)
	set := func(key, value string) {
		if value != "" {
			sec.Key(key).SetValue(value)
		}
	}
	set("server", o.Server)
	set("nick", o.Nick)
	set("channel", o.Channel)
	if o.Port != 0 {
		set("port", fmt.Sprint(o.Port))
	}

	return fromFile(f)
}
