package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

const versionLayout = "20060102150405"

var (
	fileNameRe  = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)
	nameCleanRe = regexp.MustCompile(`[^a-z0-9]+`)
)

const sqlTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert %[1]s
-- +goose StatementEnd
`

// migrationFile is one goose SQL file, identified by its 14-digit version.
type migrationFile struct {
	Version int64
	Name    string
}

// listMigrations returns the .sql files in fsys sorted by version. Badly
// named or duplicated files are reported together.
func listMigrations(fsys fs.FS) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var (
		files []migrationFile
		errs  error
		seen  = map[int64]string{}
	)
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		m := fileNameRe.FindStringSubmatch(e.Name())
		if m == nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: expected YYYYMMDDHHMMSS_name.sql", e.Name()))
			continue
		}
		version, _ := strconv.ParseInt(m[1], 10, 64)
		if prev, dup := seen[version]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: version %d already used by %s", e.Name(), version, prev))
			continue
		}
		seen[version] = e.Name()
		files = append(files, migrationFile{Version: version, Name: e.Name()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Version < files[j].Version })
	return files, errs
}

// Validate checks names and goose annotations of every migration in fsys and
// returns all problems at once.
func Validate(fsys fs.FS) error {
	files, errs := listMigrations(fsys)
	for _, f := range files {
		body, err := fs.ReadFile(fsys, f.Name)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", f.Name, err))
			continue
		}
		errs = multierr.Append(errs, checkAnnotations(f.Name, string(body)))
	}
	return errs
}

// ValidateDir validates the migrations on disk under dir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return Validate(os.DirFS(dir))
}

func checkAnnotations(name, body string) error {
	up := strings.Index(body, "-- +goose Up")
	down := strings.Index(body, "-- +goose Down")
	switch {
	case up < 0:
		return fmt.Errorf("%s: missing -- +goose Up", name)
	case down < 0:
		return fmt.Errorf("%s: missing -- +goose Down", name)
	case down < up:
		return fmt.Errorf("%s: Down section precedes Up", name)
	}
	begins := strings.Count(body, "-- +goose StatementBegin")
	ends := strings.Count(body, "-- +goose StatementEnd")
	if begins != ends {
		return fmt.Errorf("%s: %d StatementBegin vs %d StatementEnd", name, begins, ends)
	}
	return nil
}

// CreateSQLMigration writes an empty Up/Down migration into dir and returns
// its path. The version is derived from now but always sorts after the
// newest existing file, so a skewed clock cannot reorder history.
func CreateSQLMigration(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(nameCleanRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	existing, err := listMigrations(os.DirFS(dir))
	if err != nil {
		return "", err
	}

	version, _ := strconv.ParseInt(now.UTC().Format(versionLayout), 10, 64)
	if n := len(existing); n > 0 && existing[n-1].Version >= version {
		latest, _ := time.Parse(versionLayout, strconv.FormatInt(existing[n-1].Version, 10))
		version, _ = strconv.ParseInt(latest.Add(time.Second).Format(versionLayout), 10, 64)
	}

	full := filepath.Join(dir, fmt.Sprintf("%d_%s.sql", version, slug))
	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", full, err)
	}
	_, err = fmt.Fprintf(f, sqlTemplate, slug)
	return full, multierr.Append(err, f.Close())
}
