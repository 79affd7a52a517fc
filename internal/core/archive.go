package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"fairtrace/internal/infra/persistence/postgres"
	"fairtrace/internal/infra/persistence/sqlite"
	"fairtrace/pkg/domain"
)

// ArchiveDriver identifies a ledger archive backend.
type ArchiveDriver string

const (
	ArchiveNone     ArchiveDriver = "none"     // no archive copy
	ArchiveSQLite   ArchiveDriver = "sqlite"   // embedded sqlite file
	ArchivePostgres ArchiveDriver = "postgres" // PostgreSQL server
)

// ArchiveConfig selects and configures archive backends. Drivers lists one
// or more backends; every committed entry is written to all of them.
type ArchiveConfig struct {
	Drivers     []ArchiveDriver
	SQLitePath  string
	PostgresDSN string
}

// OpenArchive opens the configured sinks. It returns a nil sink when no
// archive is configured.
func OpenArchive(ctx context.Context, cfg ArchiveConfig) (domain.ArchiveSink, error) {
	var sinks []domain.ArchiveSink
	closeAll := func() {
		for _, s := range sinks {
			_ = s.Close()
		}
	}
	for _, driver := range cfg.Drivers {
		switch driver {
		case ArchiveNone, "":
		case ArchiveSQLite:
			s, err := sqlite.NewSink(ctx, cfg.SQLitePath)
			if err != nil {
				closeAll()
				return nil, err
			}
			sinks = append(sinks, s)
		case ArchivePostgres:
			s, err := postgres.NewSink(ctx, cfg.PostgresDSN)
			if err != nil {
				closeAll()
				return nil, err
			}
			sinks = append(sinks, s)
		default:
			closeAll()
			return nil, fmt.Errorf("unknown archive driver %s", driver)
		}
	}
	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return MultiArchive(sinks...), nil
	}
}

// MultiArchive fans every batch out to all sinks concurrently.
func MultiArchive(sinks ...domain.ArchiveSink) domain.ArchiveSink {
	return multiArchive(append([]domain.ArchiveSink(nil), sinks...))
}

type multiArchive []domain.ArchiveSink

func (m multiArchive) Archive(ctx context.Context, records []domain.TransferRecord) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range m {
		g.Go(func() error {
			return sink.Archive(ctx, records)
		})
	}
	return g.Wait()
}

func (m multiArchive) Close() error {
	var first error
	for _, sink := range m {
		if err := sink.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
