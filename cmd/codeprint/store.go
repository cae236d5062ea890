package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/chazu/codeprint/coverage"
	"github.com/chazu/codeprint/store"
)

// runRanges handles `codeprint ranges`.
//
//	codeprint ranges --db cov.db [SOURCEID]
//	codeprint ranges --snapshot ranges.cbor [SOURCEID]
func runRanges(e *env, args []string) error {
	fs := newFlagSet(e, "ranges", "[options] [SOURCEID]")
	dbPath := fs.String("db", e.cfg.StorePath(), "SQLite store path")
	snapPath := fs.String("snapshot", "", "Read a CBOR snapshot instead of the store")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		only   coverage.SourceID
		filter bool
	)
	if fs.NArg() > 0 {
		id, err := strconv.ParseUint(fs.Arg(0), 0, 64)
		if err != nil {
			return fmt.Errorf("source id %q: %w", fs.Arg(0), err)
		}
		only, filter = coverage.SourceID(id), true
	}

	snap, err := loadSnapshot(context.Background(), *dbPath, *snapPath)
	if err != nil {
		return err
	}
	for _, src := range snap.Sources {
		if filter && src.ID != only {
			continue
		}
		for _, r := range src.Ranges {
			state := "unexecuted"
			if r.Executed {
				state = "executed"
			}
			fmt.Fprintf(e.stdout, "%d\t%d\t%d\t%s\n", src.ID, r.Start, r.End, state)
		}
	}
	return nil
}

// runUnits handles `codeprint units [--db path] [CODE]`.
func runUnits(e *env, args []string) error {
	fs := newFlagSet(e, "units", "[options] [CODE]")
	dbPath := fs.String("db", e.cfg.StorePath(), "SQLite store path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dbPath == "" {
		return fmt.Errorf("no store configured (set [store] path or pass --db)")
	}

	ctx := context.Background()
	st, err := store.Open(ctx, *dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	var recs []store.UnitRecord
	if fs.NArg() > 0 {
		recs, err = st.UnitsByCode(ctx, fs.Arg(0))
	} else {
		recs, err = st.Units(ctx)
	}
	if err != nil {
		return err
	}
	for _, r := range recs {
		fmt.Fprintf(e.stdout, "%s\t%s\t%d\t[%d,%d)\t%d\t%s\n", r.Code, r.Kind, r.Source, r.Start, r.End, r.Invocations, r.Name)
	}
	return nil
}

// loadSnapshot reads ranges from a CBOR snapshot file when snapPath is set,
// otherwise from the store at dbPath.
func loadSnapshot(ctx context.Context, dbPath, snapPath string) (*coverage.Snapshot, error) {
	if snapPath != "" {
		data, err := os.ReadFile(snapPath)
		if err != nil {
			return nil, err
		}
		return coverage.UnmarshalSnapshot(data)
	}
	if dbPath == "" {
		return nil, fmt.Errorf("no store configured (set [store] path, pass --db or --snapshot)")
	}
	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.LoadRanges(ctx)
}

// writeSnapshot encodes the tracker to path.
func writeSnapshot(path string, tr *coverage.ExecutedRanges) error {
	data, err := coverage.MarshalSnapshot(tr.Snapshot())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
