package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/acceslibre/erp-cli/internal/store"
)

// openStore validates the config for mode and opens the configured backend.
// Callers own the returned store and must Close it.
func openStore(ctx context.Context, mode string) (store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s store", cfg.Store.Driver)
	}
	return st, nil
}
