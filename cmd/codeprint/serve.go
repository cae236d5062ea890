package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chazu/codeprint/codeunit"
	"github.com/chazu/codeprint/coverage"
	"github.com/chazu/codeprint/fingerprint"
	"github.com/chazu/codeprint/server"
	"github.com/chazu/codeprint/store"
)

// runServe handles `codeprint serve`. Every file becomes one source, keyed
// by its absolute path, with a single call unit covering it. Ranges are
// restored from the store or snapshot before serving and written back on
// shutdown.
func runServe(e *env, args []string) error {
	flags := newFlagSet(e, "serve", "[options] FILE...")
	addr := flags.StringP("addr", "a", e.cfg.Server.Addr, "Listen address")
	dbPath := flags.String("db", e.cfg.StorePath(), "SQLite store path")
	snapPath := flags.String("snapshot", e.cfg.SnapshotPath(), "CBOR snapshot path")
	if err := flags.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, e, *addr, *dbPath, *snapPath, flags.Args())
}

// serve runs the diagnostics server until ctx is done, then persists the
// registry.
func serve(ctx context.Context, e *env, addr, dbPath, snapPath string, paths []string) error {
	h, err := e.cfg.Hasher()
	if err != nil {
		return err
	}
	reg := codeunit.NewRegistry(h, coverage.NewExecutedRanges())

	if err := restoreRanges(context.WithoutCancel(ctx), reg.Ranges(), dbPath, snapPath); err != nil {
		return err
	}
	if _, err := loadSources(e, reg, paths); err != nil {
		return err
	}

	srv := server.New(reg)
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(addr) }()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
		log.Notice("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("shutdown: %v", err)
		}
		<-errc
	}

	return persist(context.Background(), reg, dbPath, snapPath)
}

// loadSources registers each file as a whole-file call unit under its
// path-derived source ID.
func loadSources(e *env, reg *codeunit.Registry, paths []string) ([]*codeunit.CodeUnit, error) {
	units := make([]*codeunit.CodeUnit, 0, len(paths))
	for _, path := range paths {
		id, err := coverage.PathSourceID(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		u, err := reg.Create(codeunit.Spec{
			Source: id,
			Text:   string(src),
			Start:  0,
			End:    uint32(len(src)),
			Kind:   fingerprint.KindCall,
			Name:   path,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		fmt.Fprintf(e.stdout, "%s\t%d\t%s\n", u.Code(), u.Source(), path)
		units = append(units, u)
	}
	return units, nil
}

func restoreRanges(ctx context.Context, tr *coverage.ExecutedRanges, dbPath, snapPath string) error {
	if snapPath != "" {
		data, err := os.ReadFile(snapPath)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return err
		default:
			snap, err := coverage.UnmarshalSnapshot(data)
			if err != nil {
				return err
			}
			tr.Restore(snap)
		}
	}
	if dbPath != "" {
		st, err := store.Open(ctx, dbPath)
		if err != nil {
			return err
		}
		defer st.Close()
		snap, err := st.LoadRanges(ctx)
		if err != nil {
			return err
		}
		tr.Restore(snap)
	}
	log.Infof("restored %d ranges", tr.RangeCount())
	return nil
}

func persist(ctx context.Context, reg *codeunit.Registry, dbPath, snapPath string) error {
	if snapPath != "" {
		if err := writeSnapshot(snapPath, reg.Ranges()); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}
	if dbPath == "" {
		return nil
	}
	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.SaveRanges(ctx, reg.Ranges().Snapshot()); err != nil {
		return err
	}
	return st.SaveUnits(ctx, reg.Units())
}
