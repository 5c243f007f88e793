package cli

import (
	"fmt"

	"github.com/spec-kit/lesson-scheduler/internal/config"
	"github.com/spec-kit/lesson-scheduler/internal/persistence"
)

// MigrateCmd applies the store schema. Opening the store already ran it;
// this reports what was applied.
type MigrateCmd struct{}

func (m *MigrateCmd) Run(ctx *Context) error {
	switch ctx.Store.Driver {
	case config.StoreDriverPostgres:
		files, err := persistence.MigrationFiles(ctx.Config.Postgres.MigrationsDir)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintf(ctx.Out, "applied %s\n", f)
		}
	case config.StoreDriverSQLite:
		fmt.Fprintf(ctx.Out, "sqlite schema ready at %s\n", ctx.Config.SQLite.Path)
	default:
		fmt.Fprintf(ctx.Out, "%s store has no schema\n", ctx.Store.Driver)
	}
	return nil
}
