package runtime

import (
	"context"
	"errors"
	"time"

	cfgpkg "github.com/serhalp/queue-and-eh/internal/config"
	"github.com/serhalp/queue-and-eh/internal/kv"
	"github.com/serhalp/queue-and-eh/internal/metrics"
	pebblestore "github.com/serhalp/queue-and-eh/internal/storage/pebble"
)

// Options for building the Runtime.
type Options struct {
	DataDir       string
	Fsync         pebblestore.FsyncMode
	FsyncInterval int // milliseconds, for FsyncModeInterval
	Config        cfgpkg.Config
}

// Runtime wires storage, the versioned KV layer, and config for a
// single-node instance.
type Runtime struct {
	db     *pebblestore.DB
	store  kv.Store
	config cfgpkg.Config
}

// Open initializes the underlying storage and returns a Runtime.
func Open(opts Options) (*Runtime, error) {
	metrics.Register()
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir:       opts.DataDir,
		Fsync:         opts.Fsync,
		FsyncInterval: time.Duration(opts.FsyncInterval) * time.Millisecond,
		Metrics:       metrics.StoreHook{},
	})
	if err != nil {
		return nil, err
	}
	return &Runtime{
		db:     db,
		store:  kv.NewPebbleStore(db),
		config: opts.Config,
	}, nil
}

// Close closes underlying resources.
func (r *Runtime) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// CheckHealth performs a simple health check.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if r.db == nil {
		return errors.New("db not open")
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return err
	}
	return it.Close()
}

// Store returns the versioned KV store shared by the repositories.
func (r *Runtime) Store() kv.Store { return r.store }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }
