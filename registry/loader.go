package registry

import (
	"bufio"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	migrator "github.com/getpup/schema-migrator"
)

// LoadDir builds a Registry from the .sql files under root. Each file must
// declare its own identity in a leading comment header; nothing is inferred
// from file names, so files can be renamed freely without renumbering:
//
//	-- dialect: postgres
//	-- from: 44
//	-- to: 45
//	-- backfill-resource-table: calendar_object
//	-- backfill-id-column: resource_id
//	-- backfill-work-table: calendar_object_splitter_work
//	-- backfill-predicate: organizer IS NOT NULL
//	-- backfill-description: split recurring events
//
// The backfill-* keys are optional as a group; when present,
// backfill-resource-table, backfill-id-column, and backfill-work-table are
// all required. Header parsing stops at the first non-comment line; the rest
// of the file is the step's DDL, split into statements on trailing
// semicolons.
func LoadDir(fsys fs.FS, root string) (*Registry, error) {
	var steps []migrator.Step

	err := fs.WalkDir(fsys, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read step file %s: %w", path, err)
		}

		step, err := ParseStepFile(string(data))
		if err != nil {
			return fmt.Errorf("invalid step file %s: %w", path, err)
		}

		steps = append(steps, step)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Stable input order for deterministic validation messages.
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].Dialect != steps[j].Dialect {
			return steps[i].Dialect < steps[j].Dialect
		}
		return steps[i].FromVersion < steps[j].FromVersion
	})

	return New(steps)
}

// ParseStepFile parses one step file's header declaration and DDL body.
func ParseStepFile(content string) (migrator.Step, error) {
	header := make(map[string]string)
	var body strings.Builder

	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	inHeader := true
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if inHeader {
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, "--") {
				key, value, ok := strings.Cut(strings.TrimSpace(strings.TrimPrefix(trimmed, "--")), ":")
				if ok {
					header[strings.TrimSpace(key)] = strings.TrimSpace(value)
				}
				continue
			}
			inHeader = false
		}

		body.WriteString(line)
		body.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return migrator.Step{}, fmt.Errorf("failed to scan step file: %w", err)
	}

	step, err := stepFromHeader(header)
	if err != nil {
		return migrator.Step{}, err
	}

	step.Statements = splitStatements(body.String())
	if len(step.Statements) == 0 {
		return migrator.Step{}, fmt.Errorf("step %d->%d declares no statements", step.FromVersion, step.ToVersion)
	}

	return step, nil
}

func stepFromHeader(header map[string]string) (migrator.Step, error) {
	dialect, ok := header["dialect"]
	if !ok {
		return migrator.Step{}, fmt.Errorf("missing dialect declaration")
	}

	from, err := headerInt(header, "from")
	if err != nil {
		return migrator.Step{}, err
	}
	to, err := headerInt(header, "to")
	if err != nil {
		return migrator.Step{}, err
	}

	step := migrator.Step{
		Dialect:     migrator.Dialect(dialect),
		FromVersion: from,
		ToVersion:   to,
	}

	resourceTable, hasResource := header["backfill-resource-table"]
	idColumn, hasID := header["backfill-id-column"]
	workTable, hasWork := header["backfill-work-table"]
	if hasResource || hasID || hasWork {
		if !hasResource || !hasID || !hasWork {
			return migrator.Step{}, fmt.Errorf(
				"partial backfill declaration: backfill-resource-table, backfill-id-column, and backfill-work-table are all required")
		}
		step.Backfill = &migrator.BackfillSpec{
			ResourceTable:    resourceTable,
			ResourceIDColumn: idColumn,
			WorkTable:        workTable,
			Predicate:        header["backfill-predicate"],
			Description:      header["backfill-description"],
		}
	}

	return step, nil
}

func headerInt(header map[string]string, key string) (int, error) {
	raw, ok := header[key]
	if !ok {
		return 0, fmt.Errorf("missing %s declaration", key)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("malformed %s declaration %q: %w", key, raw, err)
	}
	return v, nil
}

// splitStatements splits a DDL body into statements on trailing semicolons.
// Lines that are empty or pure comments between statements are dropped.
func splitStatements(body string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}

		if current.Len() > 0 {
			current.WriteString("\n")
		}

		if strings.HasSuffix(trimmed, ";") {
			current.WriteString(strings.TrimSuffix(trimmed, ";"))
			statements = append(statements, current.String())
			current.Reset()
			continue
		}
		current.WriteString(trimmed)
	}

	if remainder := strings.TrimSpace(current.String()); remainder != "" {
		statements = append(statements, remainder)
	}

	return statements
}
