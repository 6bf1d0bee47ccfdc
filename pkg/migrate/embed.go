package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedded embed.FS

const embeddedDir = "migrations"

// RunEmbedded runs a goose command against the migrations compiled into the
// binary, so services can migrate without the source tree on disk.
func RunEmbedded(ctx context.Context, db *sql.DB, command string, args ...string) error {
	goose.SetBaseFS(embedded)
	defer goose.SetBaseFS(nil)
	return Run(ctx, db, embeddedDir, command, args...)
}

// EmbeddedVersions lists the migration versions compiled into the binary.
func EmbeddedVersions() ([]int64, error) {
	goose.SetBaseFS(embedded)
	defer goose.SetBaseFS(nil)

	found, err := goose.CollectMigrations(embeddedDir, 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("collect embedded migrations: %w", err)
	}
	versions := make([]int64, 0, len(found))
	for _, m := range found {
		versions = append(versions, m.Version)
	}
	return versions, nil
}
