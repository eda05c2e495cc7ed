package cli

import (
	"context"

	"go.uber.org/multierr"

	"github.com/roach88/tsql2/internal/dialect"
	"github.com/roach88/tsql2/internal/session"
	"github.com/roach88/tsql2/internal/store"
)

// openSession connects to the configured database and opens a session on
// it. The returned func closes both.
func openSession(ctx context.Context, opts *RootOptions, sessOpts ...session.Option) (*session.Session, func() error, error) {
	if opts.DSN == "" {
		return nil, nil, NewExitError(ExitCommandError, "--dsn is required (or set TSQL2_DSN)")
	}

	var storeOpts []store.Option
	switch {
	case opts.DialectFile != "":
		d, err := dialect.LoadFile(opts.DialectFile)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to load dialect", err)
		}
		storeOpts = append(storeOpts, store.WithDialect(d))
	case opts.Dialect != "":
		d, err := dialect.ByName(opts.Dialect)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to load dialect", err)
		}
		storeOpts = append(storeOpts, store.WithDialect(d))
	}

	st, err := store.Open(ctx, opts.Driver, opts.DSN, storeOpts...)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	all := []session.Option{
		session.WithDialect(st.Dialect()),
		session.WithCacheSize(opts.Cache),
	}
	if opts.logger != nil {
		all = append(all, session.WithLogger(opts.logger))
	}
	all = append(all, sessOpts...)

	sess, err := session.Open(ctx, st.DB(), all...)
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to open session", err)
	}

	closeFn := func() error {
		return multierr.Combine(sess.Close(), st.Close())
	}
	return sess, closeFn, nil
}
