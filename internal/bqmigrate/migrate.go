// Package bqmigrate applies the BigQuery schema used by the reference data
// source and the ledger sink.
package bqmigrate

import (
	"context"
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
)

//go:embed migrations/*.sql
var embedded embed.FS

// Migrations returns the embedded migration files.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Target names the tables migrations are rendered for.
type Target struct {
	Project        string
	Dataset        string
	ReferenceTable string
	LedgerTable    string
}

func (t Target) render(sql string) string {
	return strings.NewReplacer(
		"{{PROJECT_ID}}", t.Project,
		"{{DATASET_ID}}", t.Dataset,
		"{{REFERENCE_TABLE}}", t.ReferenceTable,
		"{{LEDGER_TABLE}}", t.LedgerTable,
	).Replace(sql)
}

// Pattern to match migration files: 0001_name.sql
var filenamePattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// ParseFilename splits a migration file name into version and name.
func ParseFilename(filename string) (int, string, bool) {
	matches := filenamePattern.FindStringSubmatch(filename)
	if matches == nil {
		return 0, "", false
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return 0, "", false
	}
	return version, matches[2], true
}

// ReadMigrations loads and renders every migration in fsys, sorted by
// version. Files not matching NNNN_name.sql are skipped. The checksum is
// taken before rendering so it tracks the migration, not the target.
func ReadMigrations(fsys fs.FS, target Target) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading migrations: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		version, name, ok := ParseFilename(entry.Name())
		if !ok {
			continue
		}

		content, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", entry.Name(), err)
		}

		migrations = append(migrations, Migration{
			Version:  version,
			Name:     name,
			Filename: entry.Name(),
			SQL:      target.render(string(content)),
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// Pending returns the migrations whose version is not in applied.
func Pending(migrations []Migration, applied []AppliedMigration) []Migration {
	done := make(map[int]bool, len(applied))
	for _, am := range applied {
		done[am.Version] = true
	}

	var pending []Migration
	for _, m := range migrations {
		if !done[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending
}

// Runner applies migrations to one dataset.
type Runner struct {
	client    *bigquery.Client
	target    Target
	appliedBy string
	log       zerolog.Logger
}

// NewRunner creates a Runner.
func NewRunner(client *bigquery.Client, target Target, appliedBy string, log zerolog.Logger) *Runner {
	return &Runner{client: client, target: target, appliedBy: appliedBy, log: log}
}

// Run applies every pending migration in fsys and returns how many ran.
func (r *Runner) Run(ctx context.Context, fsys fs.FS) (int, error) {
	if err := r.ensureSchemaMigrationsTable(ctx); err != nil {
		return 0, fmt.Errorf("ensure schema_migrations: %w", err)
	}

	migrations, err := ReadMigrations(fsys, r.target)
	if err != nil {
		return 0, err
	}

	applied, err := r.appliedMigrations(ctx)
	if err != nil {
		return 0, err
	}

	pending := Pending(migrations, applied)
	for _, m := range pending {
		log := r.log.With().Int("version", m.Version).Str("name", m.Name).Logger()
		log.Info().Msg("Applying migration")

		if err := r.exec(ctx, m.SQL, nil); err != nil {
			return 0, fmt.Errorf("migration %04d_%s: %w", m.Version, m.Name, err)
		}
		if err := r.record(ctx, m); err != nil {
			return 0, fmt.Errorf("record migration %04d_%s: %w", m.Version, m.Name, err)
		}
	}

	return len(pending), nil
}

func (r *Runner) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", r.target.Project, r.target.Dataset, name)
}

func (r *Runner) ensureSchemaMigrationsTable(ctx context.Context) error {
	return r.exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+r.table("schema_migrations")+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, nil)
}

func (r *Runner) appliedMigrations(ctx context.Context) ([]AppliedMigration, error) {
	q := r.client.Query(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM ` + r.table("schema_migrations") + `
		ORDER BY version ASC
	`)

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64               `bigquery:"version"`
			Name      string              `bigquery:"name"`
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

func (r *Runner) record(ctx context.Context, m Migration) error {
	return r.exec(ctx, `
		INSERT INTO `+r.table("schema_migrations")+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, []bigquery.QueryParameter{
		{Name: "version", Value: m.Version},
		{Name: "name", Value: m.Name},
		{Name: "checksum", Value: m.Checksum},
		{Name: "applied_by", Value: r.appliedBy},
	})
}

func (r *Runner) exec(ctx context.Context, sql string, params []bigquery.QueryParameter) error {
	query := r.client.Query(sql)
	query.Parameters = params

	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}
