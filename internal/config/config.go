// Package config loads the news server settings from flags, the
// environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/epilys/sic-sub000/server"
)

const (
	configName = "sicnntpd"
	envPrefix  = "SICNNTP"
)

type Store struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type AMQP struct {
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	RoutingKey string `yaml:"routing_key"`
	Queue      string `yaml:"queue"`
}

// Config is the effective configuration of the server.
type Config struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	UseSSL   bool   `yaml:"use_ssl"`
	CertFile string `yaml:"certfile"`
	KeyFile  string `yaml:"keyfile"`

	Domain           string        `yaml:"domain"`
	BaseURL          string        `yaml:"base_url"`
	GroupName        string        `yaml:"group_name"`
	GroupDescription string        `yaml:"group_description"`
	LowWaterMark     int64         `yaml:"low_water_mark"`
	IndexTTL         time.Duration `yaml:"index_ttl"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	ShutdownGrace    time.Duration `yaml:"shutdown_grace"`
	Auth             string        `yaml:"auth"`
	Posting          string        `yaml:"posting"`

	Store Store `yaml:"store"`
	AMQP  AMQP  `yaml:"amqp"`

	LogFormat string `yaml:"log_format"`
	LogLevel  string `yaml:"log_level"`

	// File is the config file read, empty when there was none.
	File        string `yaml:"-"`
	PrintConfig bool   `yaml:"-"`
}

var authSettings = map[string]nntpserver.AuthSetting{
	"none":        nntpserver.AuthNone,
	"required":    nntpserver.AuthRequired,
	"secure-only": nntpserver.AuthSecureOnly,
}

var postSettings = map[string]nntpserver.PostSetting{
	"none":          nntpserver.PostNotPermitted,
	"allowed":       nntpserver.PostPermitted,
	"auth-required": nntpserver.PostAuthRequired,
}

var drivers = map[string]bool{"sqlite": true, "postgres": true, "couchdb": true}

var logFormats = map[string]bool{"pretty": true, "json": true, "text": true}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "localhost")
	v.SetDefault("port", 9999)
	v.SetDefault("use_ssl", false)
	v.SetDefault("certfile", "")
	v.SetDefault("keyfile", "")
	v.SetDefault("domain", "sic.pm")
	v.SetDefault("base_url", "https://sic.pm")
	v.SetDefault("group_name", "all")
	v.SetDefault("group_description", "")
	v.SetDefault("low_water_mark", 1)
	v.SetDefault("index_ttl", 5*time.Second)
	v.SetDefault("read_timeout", 10*time.Minute)
	v.SetDefault("shutdown_grace", 30*time.Second)
	v.SetDefault("auth", "secure-only")
	v.SetDefault("posting", "auth-required")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.dsn", "sic.db")
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "sic")
	v.SetDefault("amqp.routing_key", "nntp.post")
	v.SetDefault("amqp.queue", "")
	v.SetDefault("log_format", "pretty") // pretty, json, or text
	v.SetDefault("log_level", "info")    // debug, info, warn, error
}

// Flags returns the command line flags understood by Load.
func Flags(name string) *pflag.FlagSet {
	f := pflag.NewFlagSet(name, pflag.ContinueOnError)
	f.StringP("config", "c", "", "config file (default ./sicnntpd.yaml or /etc/sicnntpd/sicnntpd.yaml)")
	f.String("host", "localhost", "address to listen on")
	f.IntP("port", "p", 9999, "port to listen on")
	f.Bool("use-ssl", false, "serve over TLS")
	f.String("certfile", "", "TLS certificate file")
	f.String("keyfile", "", "TLS key file")
	f.Bool("print-config", false, "print the effective configuration and exit")
	return f
}

var flagKeys = map[string]string{
	"host":     "host",
	"port":     "port",
	"use-ssl":  "use_ssl",
	"certfile": "certfile",
	"keyfile":  "keyfile",
}

// Load parses args and merges, lowest first: defaults, the config file,
// SICNNTP_* environment variables (a .env file in the working
// directory included) and explicitly set flags.
func Load(args []string) (*Config, error) {
	flags := Flags(configName)
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, err
		}
	}

	file, _ := flags.GetString("config")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sicnntpd")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	c := &Config{
		Host:     v.GetString("host"),
		Port:     v.GetInt("port"),
		UseSSL:   v.GetBool("use_ssl"),
		CertFile: v.GetString("certfile"),
		KeyFile:  v.GetString("keyfile"),

		Domain:           v.GetString("domain"),
		BaseURL:          v.GetString("base_url"),
		GroupName:        v.GetString("group_name"),
		GroupDescription: v.GetString("group_description"),
		LowWaterMark:     v.GetInt64("low_water_mark"),
		IndexTTL:         v.GetDuration("index_ttl"),
		ReadTimeout:      v.GetDuration("read_timeout"),
		ShutdownGrace:    v.GetDuration("shutdown_grace"),
		Auth:             strings.ToLower(v.GetString("auth")),
		Posting:          strings.ToLower(v.GetString("posting")),

		Store: Store{
			Driver: strings.ToLower(v.GetString("store.driver")),
			DSN:    v.GetString("store.dsn"),
		},
		AMQP: AMQP{
			URL:        v.GetString("amqp.url"),
			Exchange:   v.GetString("amqp.exchange"),
			RoutingKey: v.GetString("amqp.routing_key"),
			Queue:      v.GetString("amqp.queue"),
		},

		LogFormat: strings.ToLower(v.GetString("log_format")),
		LogLevel:  strings.ToLower(v.GetString("log_level")),

		File: v.ConfigFileUsed(),
	}
	c.PrintConfig, _ = flags.GetBool("print-config")

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks settings that can't be used as they are.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Port)
	}
	if c.UseSSL && (c.CertFile == "" || c.KeyFile == "") {
		return errors.New("use_ssl needs both certfile and keyfile")
	}
	if _, ok := authSettings[c.Auth]; !ok {
		return fmt.Errorf("unknown auth setting %q", c.Auth)
	}
	if _, ok := postSettings[c.Posting]; !ok {
		return fmt.Errorf("unknown posting setting %q", c.Posting)
	}
	if c.Posting == "allowed" && c.Auth == "none" {
		return errors.New("posting allowed needs an auth setting other than none")
	}
	if !drivers[c.Store.Driver] {
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if !logFormats[c.LogFormat] {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	if c.Domain == "" {
		return errors.New("domain must not be empty")
	}
	if c.LowWaterMark < 1 {
		return fmt.Errorf("low_water_mark %d must be at least 1", c.LowWaterMark)
	}
	return nil
}

// Addr is the host:port to listen on.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) AuthSetting() nntpserver.AuthSetting {
	return authSettings[c.Auth]
}

func (c *Config) PostSetting() nntpserver.PostSetting {
	return postSettings[c.Posting]
}

// Write encodes c as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return err
	}
	return enc.Close()
}
