// Package config holds the process-wide immutable configuration for both
// KHM run modes (server, client). It is populated once at startup from CLI
// flags — per spec.md §6.2, the CLI surface is flag-shaped, not
// environment-shaped — with a narrow envconfig-style fallback for the DB
// password, since that secret is awkward to pass on a command line in
// many deployment setups.
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

// envSecrets holds the one secret the CLI surface deliberately does not
// accept as a plain flag: the database password. Populated via envconfig,
// the same library and tag convention as claworc/internal/config/config.go.
type envSecrets struct {
	DBPassword string `envconfig:"KHM_DB_PASSWORD" default:""`
}

// ServerSettings is the immutable configuration for server mode. Built once
// at startup and passed by reference to request handlers; never mutated
// afterward.
type ServerSettings struct {
	IP        string
	Port      int
	DBHost    string
	DBPort    int
	DBName    string
	DBUser    string
	DBPass    string
	Flows     []string
	LogPath   string
	BasicUser string
	BasicPass string

	DNSParallelism int
	DBPoolSize     int
}

// ClientSettings is the immutable configuration for client mode.
type ClientSettings struct {
	Host       string
	Flow       string
	KnownHosts string
	InPlace    bool
	BasicAuth  string // "user:pass", empty if unset
}

// Mode selects which run mode was requested on the command line.
type Mode int

const (
	ModeServer Mode = iota
	ModeClient
)

// ParseResult bundles the parsed mode and its settings.
type ParseResult struct {
	Mode   Mode
	Server ServerSettings
	Client ClientSettings
}

// ExitMisuse is the process exit code for CLI usage errors, per spec.md §6.2.
const ExitMisuse = 2

// Parse parses os.Args[1:] into a ParseResult. It never calls os.Exit
// itself; callers decide how to report a parse failure.
func Parse(args []string) (*ParseResult, error) {
	fs := flag.NewFlagSet("khm", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	server := fs.Bool("server", false, "run in server mode")
	ip := fs.String("ip", "0.0.0.0", "server bind address")
	port := fs.Int("port", 8080, "server bind port")
	dbHost := fs.String("db-host", "localhost", "database host")
	dbPort := fs.Int("db-port", 5432, "database port")
	dbName := fs.String("db-name", "khm", "database name")
	dbUser := fs.String("db-user", "", "database user")
	dbPassword := fs.String("db-password", "", "database password")
	flowsCSV := fs.String("flows", "", "comma-separated list of allowed flows")
	logPath := fs.String("log-file", "", "optional path to a log file")
	basicAuth := fs.String("basic-auth", "", "optional \"user:pass\" to require on every request")
	dnsParallelism := fs.Int("dns-parallelism", 32, "max concurrent DNS resolutions during a scan")
	dbPoolSize := fs.Int("db-pool-size", 16, "max database connections")

	host := fs.String("host", "", "server URL, e.g. https://khm.example.com")
	flow := fs.String("flow", "", "flow name to sync")
	knownHosts := fs.String("known-hosts", "", "path to the local known_hosts file")
	inPlace := fs.Bool("in-place", false, "rewrite the local known_hosts file from the server's canonical set")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *server {
		dbPass := *dbPassword
		if dbPass == "" {
			var secrets envSecrets
			if err := envconfig.Process("", &secrets); err != nil {
				return nil, fmt.Errorf("read environment secrets: %w", err)
			}
			dbPass = secrets.DBPassword
		}
		flows := splitCSV(*flowsCSV)
		if *dbUser == "" || dbPass == "" || len(flows) == 0 {
			return nil, fmt.Errorf("server mode requires -db-user, -db-password (or KHM_DB_PASSWORD), and -flows")
		}
		return &ParseResult{
			Mode: ModeServer,
			Server: ServerSettings{
				IP:             *ip,
				Port:           *port,
				DBHost:         *dbHost,
				DBPort:         *dbPort,
				DBName:         *dbName,
				DBUser:         *dbUser,
				DBPass:         dbPass,
				Flows:          flows,
				LogPath:        *logPath,
				DNSParallelism: *dnsParallelism,
				DBPoolSize:     *dbPoolSize,
				BasicUser:      basicUser(*basicAuth),
				BasicPass:      basicPass(*basicAuth),
			},
		}, nil
	}

	if *host == "" || *flow == "" || *knownHosts == "" {
		return nil, fmt.Errorf("client mode requires -host, -flow, and -known-hosts")
	}
	return &ParseResult{
		Mode: ModeClient,
		Client: ClientSettings{
			Host:       *host,
			Flow:       *flow,
			KnownHosts: *knownHosts,
			InPlace:    *inPlace,
			BasicAuth:  *basicAuth,
		},
	}, nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func basicUser(auth string) string {
	u, _, ok := strings.Cut(auth, ":")
	if !ok {
		return ""
	}
	return u
}

func basicPass(auth string) string {
	_, p, ok := strings.Cut(auth, ":")
	if !ok {
		return ""
	}
	return p
}
