// Package config holds the settings shared by the qasset tools.
//
// QAsset
//
// Copyright (C) Thomas Habets <thomas@habets.se> 2015
// https://github.com/ThomasHabets/qasset
//
//   This program is free software; you can redistribute it and/or modify
//   it under the terms of the GNU General Public License as published by
//   the Free Software Foundation; either version 2 of the License, or
//   (at your option) any later version.
//
//   This program is distributed in the hope that it will be useful,
//   but WITHOUT ANY WARRANTY; without even the implied warranty of
//   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
//   GNU General Public License for more details.
//
//   You should have received a copy of the GNU General Public License along
//   with this program; if not, write to the Free Software Foundation, Inc.,
//   51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
//
// Settings come from an optional YAML file, and command line flags
// override the file.
package config

import (
	"bytes"
	"flag"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ThomasHabets/qasset/pkg/asset"
	"github.com/ThomasHabets/qasset/pkg/catalog"
)

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "auto", "text" or "json".
}

type Decode struct {
	MaxBufferSize int `yaml:"max_buffer_size"`
}

type Sources struct {
	PakFiles       []string `yaml:"pak_files"`
	GCSCredentials string   `yaml:"gcs_credentials"`
}

type Catalog struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Server struct {
	HTTPAddr  string `yaml:"http_addr"`
	GRPCAddr  string `yaml:"grpc_addr"`
	MaxConns  int    `yaml:"max_conns"`
	JWTSecret string `yaml:"jwt_secret"` // Empty disables authentication.
}

type Config struct {
	Log     Log     `yaml:"log"`
	Decode  Decode  `yaml:"decode"`
	Sources Sources `yaml:"sources"`
	Catalog Catalog `yaml:"catalog"`
	Server  Server  `yaml:"server"`
}

// Default returns a config that works without a config file.
func Default() *Config {
	return &Config{
		Log: Log{
			Level:  "info",
			Format: "auto",
		},
		Decode: Decode{
			MaxBufferSize: asset.DefaultMaxBufferSize,
		},
		Catalog: Catalog{
			Driver: catalog.DriverSQLite,
			DSN:    "qasset.db",
		},
		Server: Server{
			HTTPAddr: ":8080",
			GRPCAddr: ":9999",
			MaxConns: 100,
		},
	}
}

// Parse reads YAML on top of the defaults. Unknown keys are an error.
func Parse(b []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "parsing config")
	}
	return c, nil
}

// Load reads a config file. An empty name gives the defaults.
func Load(fn string) (*Config, error) {
	if fn == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(fn)
	if err != nil {
		return nil, err
	}
	c, err := Parse(b)
	if err != nil {
		return nil, errors.Wrapf(err, "%q", fn)
	}
	return c, nil
}

// Validate checks that the values are usable.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "log.level")
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return errors.Errorf("log.format: want auto, text or json, got %q", c.Log.Format)
	}
	if c.Decode.MaxBufferSize <= 0 {
		return errors.Errorf("decode.max_buffer_size: must be positive, got %d", c.Decode.MaxBufferSize)
	}
	if !catalog.ValidDriver(c.Catalog.Driver) {
		return errors.Errorf("catalog.driver: want %q or %q, got %q", catalog.DriverPostgres, catalog.DriverSQLite, c.Catalog.Driver)
	}
	if c.Server.MaxConns <= 0 {
		return errors.Errorf("server.max_conns: must be positive, got %d", c.Server.MaxConns)
	}
	return nil
}

// Flags are the command line overrides of a Config.
type Flags struct {
	fs *flag.FlagSet

	logLevel       *string
	logFormat      *string
	maxBufferSize  *int
	pakFiles       *string
	gcsCredentials *string
	dbDriver       *string
	dbConnect      *string
	httpAddr       *string
	grpcAddr       *string
	maxConns       *int
	jwtSecret      *string
}

// RegisterFlags adds the override flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		fs:             fs,
		logLevel:       fs.String("log_level", "", "Log level. Overrides config file."),
		logFormat:      fs.String("log_format", "", "Log format: auto, text or json."),
		maxBufferSize:  fs.Int("max_buffer_size", 0, "Largest asset to decode, in bytes."),
		pakFiles:       fs.String("pak", "", "Comma separated PAK files, in search order."),
		gcsCredentials: fs.String("gcs_credentials", "", "Service account JSON file for Cloud Storage."),
		dbDriver:       fs.String("db_driver", "", "Catalog database driver: postgres or sqlite."),
		dbConnect:      fs.String("db", "", "Catalog database connect string."),
		httpAddr:       fs.String("http_addr", "", "HTTP listen address."),
		grpcAddr:       fs.String("grpc_addr", "", "gRPC listen address."),
		maxConns:       fs.Int("max_conns", 0, "Max concurrent HTTP connections."),
		jwtSecret:      fs.String("jwt_secret", "", "HS256 secret for bearer tokens."),
	}
}

// Apply copies the flags that were given on the command line into c.
func (f *Flags) Apply(c *Config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "log_level":
			c.Log.Level = *f.logLevel
		case "log_format":
			c.Log.Format = *f.logFormat
		case "max_buffer_size":
			c.Decode.MaxBufferSize = *f.maxBufferSize
		case "pak":
			c.Sources.PakFiles = splitList(*f.pakFiles)
		case "gcs_credentials":
			c.Sources.GCSCredentials = *f.gcsCredentials
		case "db_driver":
			c.Catalog.Driver = *f.dbDriver
		case "db":
			c.Catalog.DSN = *f.dbConnect
		case "http_addr":
			c.Server.HTTPAddr = *f.httpAddr
		case "grpc_addr":
			c.Server.GRPCAddr = *f.grpcAddr
		case "max_conns":
			c.Server.MaxConns = *f.maxConns
		case "jwt_secret":
			c.Server.JWTSecret = *f.jwtSecret
		}
	})
}

func splitList(s string) []string {
	var ret []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ret = append(ret, p)
		}
	}
	return ret
}
