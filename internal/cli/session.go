package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/recpurge/internal/config"
	"github.com/roach88/recpurge/internal/credentials"
	"github.com/roach88/recpurge/internal/netsuite"
	"github.com/roach88/recpurge/internal/platform"
	"github.com/roach88/recpurge/internal/store"
)

// TargetOptions are the flags that override config values for commands
// that reach a backend or the journal.
type TargetOptions struct {
	Backend       string
	Query         string
	RecordType    string
	MissingPolicy string
	Concurrency   int
	Journal       string
	SandboxPath   string
}

func (t *TargetOptions) bindFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&t.Backend, "backend", "", "backend to purge (netsuite|sandbox)")
	f.StringVar(&t.Query, "query", "", "SuiteQL query selecting the ids to delete")
	f.StringVar(&t.RecordType, "record-type", "", "record type passed with every delete")
	f.StringVar(&t.MissingPolicy, "missing-policy", "", "treatment of already-absent records (benign|fail)")
	f.IntVarP(&t.Concurrency, "concurrency", "c", 0, "maximum in-flight delete requests (1..64)")
	f.StringVar(&t.Journal, "journal", "", `SQLite journal path ("" in config disables it)`)
	f.StringVar(&t.SandboxPath, "sandbox", "", "SQLite path of the sandbox backend")
}

// resolveConfig loads the config file and environment, then applies the
// flags the user actually set and validates the result.
func resolveConfig(cmd *cobra.Command, root *RootOptions, t *TargetOptions) (*config.Config, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}

	if t != nil {
		f := cmd.Flags()
		if f.Changed("backend") {
			cfg.Backend = t.Backend
		}
		if f.Changed("query") {
			cfg.Query = t.Query
		}
		if f.Changed("record-type") {
			cfg.RecordType = t.RecordType
		}
		if f.Changed("missing-policy") {
			cfg.MissingPolicy = t.MissingPolicy
		}
		if f.Changed("concurrency") {
			cfg.Concurrency = t.Concurrency
		}
		if f.Changed("journal") {
			cfg.Journal = t.Journal
		}
		if f.Changed("sandbox") {
			cfg.Sandbox.Path = t.SandboxPath
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session holds the backend and journal of one command invocation.
type session struct {
	backend platform.Backend
	journal *store.Store
	stores  []*store.Store
	log     *slog.Logger
}

// openSession builds the configured backend and opens the journal.
// Errors are already reported through f.
func openSession(ctx context.Context, cfg *config.Config, f *OutputFormatter, log *slog.Logger) (*session, error) {
	s := &session{log: log}

	switch cfg.Backend {
	case config.BackendNetSuite:
		src, err := tokenSource(ctx, cfg, log)
		if err != nil {
			return nil, commandError(f, ErrCodeConfig, "failed to configure credentials", err)
		}
		token, err := src.Token(ctx)
		if err != nil {
			return nil, commandError(f, ErrCodeConfig, "missing credentials", err)
		}
		client, err := netsuite.New(netsuite.Config{
			AccountID:  cfg.NetSuite.AccountID,
			BaseURL:    cfg.NetSuite.BaseURL,
			Token:      token,
			QueryLimit: cfg.NetSuite.QueryLimit,
			Timeout:    cfg.NetSuite.Timeout,
		})
		if err != nil {
			return nil, commandError(f, ErrCodeBackend, "failed to create NetSuite client", err)
		}
		log.Debug("netsuite backend", "site", client.Site().String())
		s.backend = client

	case config.BackendSandbox:
		st, err := s.open(cfg.Sandbox.Path)
		if err != nil {
			return nil, commandError(f, ErrCodeBackend, "failed to open sandbox", err)
		}
		log.Debug("sandbox backend", "path", cfg.Sandbox.Path)
		s.backend = st.Sandbox()

	default:
		return nil, commandError(f, ErrCodeConfig, fmt.Sprintf("unknown backend %q", cfg.Backend), nil)
	}

	if cfg.Journal != "" {
		st, err := s.open(cfg.Journal)
		if err != nil {
			s.Close()
			return nil, commandError(f, ErrCodeJournal, "failed to open journal", err)
		}
		log.Debug("journal open", "path", cfg.Journal)
		s.journal = st
	}
	return s, nil
}

// tokenSource picks Secrets Manager when a secret is configured, else the
// environment variable named by netsuite.token_env.
func tokenSource(ctx context.Context, cfg *config.Config, log *slog.Logger) (credentials.Source, error) {
	ns := cfg.NetSuite
	if ns.TokenSecret != "" {
		return credentials.NewSecretsManager(ctx, ns.AWSRegion, ns.TokenSecret, ns.TokenSecretField, log)
	}
	return credentials.Env{Name: ns.TokenEnv}, nil
}

// open returns the store at path, reusing one already open for the same file.
func (s *session) open(path string) (*store.Store, error) {
	for _, st := range s.stores {
		if samePath(st.Path(), path) {
			return st, nil
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	s.stores = append(s.stores, st)
	return st, nil
}

// Close closes every store the session opened.
func (s *session) Close() {
	var errs []error
	for _, st := range s.stores {
		errs = append(errs, st.Close())
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Error("error closing database", "error", err)
	}
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}
