// Package config loads recpurge settings.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// RECPURGE_* environment variables, then command-line flags applied by the
// caller. The merged result is checked against an embedded CUE schema.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/recpurge/internal/platform"
)

// Backends.
const (
	BackendNetSuite = "netsuite"
	BackendSandbox  = "sandbox"
)

// Environment variables read by ApplyEnv.
const (
	EnvBackend     = "RECPURGE_BACKEND"
	EnvAccountID   = "RECPURGE_ACCOUNT_ID"
	EnvConcurrency = "RECPURGE_CONCURRENCY"
	EnvJournal     = "RECPURGE_JOURNAL"

	DefaultTokenEnv = "RECPURGE_TOKEN"
)

//go:embed schema.cue
var schemaSource string

// Config is the merged configuration of one invocation.
type Config struct {
	Backend       string `yaml:"backend" json:"backend"`
	Query         string `yaml:"query" json:"query"`
	RecordType    string `yaml:"record_type" json:"record_type"`
	Concurrency   int    `yaml:"concurrency" json:"concurrency"`
	MissingPolicy string `yaml:"missing_policy" json:"missing_policy"`

	// Journal is the SQLite path runs are recorded to. Empty disables it.
	Journal string `yaml:"journal" json:"journal"`

	NetSuite NetSuite `yaml:"netsuite" json:"netsuite"`
	Sandbox  Sandbox  `yaml:"sandbox" json:"sandbox"`
}

// NetSuite holds account settings. The token itself never lives here.
type NetSuite struct {
	AccountID string `yaml:"account_id" json:"account_id"`
	BaseURL   string `yaml:"base_url" json:"base_url"`
	TokenEnv  string `yaml:"token_env" json:"token_env"`

	// TokenSecret names an AWS Secrets Manager secret holding the token.
	// When set it replaces TokenEnv.
	TokenSecret      string `yaml:"token_secret" json:"token_secret"`
	TokenSecretField string `yaml:"token_secret_field" json:"token_secret_field"`
	AWSRegion        string `yaml:"aws_region" json:"aws_region"`

	QueryLimit int           `yaml:"query_limit" json:"query_limit"`
	Timeout    time.Duration `yaml:"timeout" json:"timeout"`
}

type Sandbox struct {
	Path string `yaml:"path" json:"path"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Backend:       BackendNetSuite,
		RecordType:    platform.DefaultRecordType,
		Concurrency:   8,
		MissingPolicy: "benign",
		Journal:       "recpurge.db",
		NetSuite: NetSuite{
			TokenEnv:   DefaultTokenEnv,
			QueryLimit: 1000,
			Timeout:    30 * time.Second,
		},
		Sandbox: Sandbox{Path: "sandbox.db"},
	}
}

// Load returns the defaults overlaid with the file at path (if non-empty)
// and then with the environment. The result is not yet validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays the RECPURGE_* variables that are set.
func (c *Config) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvBackend); ok {
		c.Backend = v
	}
	if v, ok := os.LookupEnv(EnvAccountID); ok {
		c.NetSuite.AccountID = v
	}
	if v, ok := os.LookupEnv(EnvConcurrency); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvConcurrency, err)
		}
		c.Concurrency = n
	}
	if v, ok := os.LookupEnv(EnvJournal); ok {
		c.Journal = v
	}
	return nil
}

// Validate normalizes derived fields and checks the config against the schema.
// An empty query becomes "SELECT id from <record_type>".
func (c *Config) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.RecordType = platform.NormalizeType(c.RecordType)
	c.MissingPolicy = strings.ToLower(strings.TrimSpace(c.MissingPolicy))
	c.Query = strings.TrimSpace(c.Query)
	if c.Query == "" {
		c.Query = "SELECT id from " + c.RecordType
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Problems: cueProblems(err)}
	}
	return nil
}

// ValidationError lists every schema violation, one per path.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

func cueProblems(err error) []string {
	var out []string
	seen := make(map[string]bool)
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		msg := fmt.Sprintf(format, args...)
		if path := strings.Join(e.Path(), "."); path != "" {
			msg = path + ": " + msg
		}
		if !seen[msg] {
			seen[msg] = true
			out = append(out, msg)
		}
	}
	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}
