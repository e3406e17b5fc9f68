package registry

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	migrator "github.com/getpup/schema-migrator"
)

func TestParseStepFile_FullHeader(t *testing.T) {
	content := `-- dialect: postgres
-- from: 44
-- to: 45
-- backfill-resource-table: calendar_object
-- backfill-id-column: resource_id
-- backfill-work-table: calendar_object_splitter_work
-- backfill-predicate: organizer IS NOT NULL
-- backfill-description: split recurring events

ALTER TABLE calendar_object ADD COLUMN dataversion INTEGER DEFAULT 0 NOT NULL;
`

	step, err := ParseStepFile(content)
	require.NoError(t, err)

	assert.Equal(t, migrator.DialectPostgres, step.Dialect)
	assert.Equal(t, 44, step.FromVersion)
	assert.Equal(t, 45, step.ToVersion)
	require.Len(t, step.Statements, 1)
	assert.Equal(t, "ALTER TABLE calendar_object ADD COLUMN dataversion INTEGER DEFAULT 0 NOT NULL", step.Statements[0])

	require.NotNil(t, step.Backfill)
	assert.Equal(t, "calendar_object", step.Backfill.ResourceTable)
	assert.Equal(t, "resource_id", step.Backfill.ResourceIDColumn)
	assert.Equal(t, "calendar_object_splitter_work", step.Backfill.WorkTable)
	assert.Equal(t, "organizer IS NOT NULL", step.Backfill.Predicate)
	assert.Equal(t, "split recurring events", step.Backfill.Description)
}

func TestParseStepFile_NoBackfill(t *testing.T) {
	content := `-- dialect: sqlite
-- from: 45
-- to: 46
CREATE TABLE group_attendee (group_id TEXT, attendee TEXT);
`

	step, err := ParseStepFile(content)
	require.NoError(t, err)
	assert.Nil(t, step.Backfill)
}

func TestParseStepFile_MissingDeclarations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing dialect",
			content: "-- from: 44\n-- to: 45\nSELECT 1;\n",
			want:    "missing dialect",
		},
		{
			name:    "missing from",
			content: "-- dialect: postgres\n-- to: 45\nSELECT 1;\n",
			want:    "missing from",
		},
		{
			name:    "missing to",
			content: "-- dialect: postgres\n-- from: 44\nSELECT 1;\n",
			want:    "missing to",
		},
		{
			name:    "malformed from",
			content: "-- dialect: postgres\n-- from: forty-four\n-- to: 45\nSELECT 1;\n",
			want:    "malformed from",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStepFile(tt.content)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseStepFile_PartialBackfillGroup(t *testing.T) {
	content := `-- dialect: postgres
-- from: 44
-- to: 45
-- backfill-resource-table: calendar_object
SELECT 1;
`

	_, err := ParseStepFile(content)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "partial backfill declaration")
}

func TestParseStepFile_NoStatements(t *testing.T) {
	content := `-- dialect: postgres
-- from: 44
-- to: 45
`

	_, err := ParseStepFile(content)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no statements")
}

func TestParseStepFile_SplitsMultipleStatements(t *testing.T) {
	content := `-- dialect: postgres
-- from: 46
-- to: 47

CREATE TABLE group_attendee (
    group_id   INTEGER NOT NULL,
    member_uid TEXT NOT NULL
);

-- index lookups by member
CREATE INDEX group_attendee_member ON group_attendee (member_uid);
`

	step, err := ParseStepFile(content)
	require.NoError(t, err)
	require.Len(t, step.Statements, 2)
	assert.Contains(t, step.Statements[0], "CREATE TABLE group_attendee")
	assert.Contains(t, step.Statements[0], "member_uid TEXT NOT NULL")
	assert.Equal(t, "CREATE INDEX group_attendee_member ON group_attendee (member_uid)", step.Statements[1])
}

func TestParseStepFile_TrailingStatementWithoutSemicolon(t *testing.T) {
	content := `-- dialect: postgres
-- from: 44
-- to: 45
ALTER TABLE job ADD COLUMN pause INTEGER DEFAULT 0
`

	step, err := ParseStepFile(content)
	require.NoError(t, err)
	require.Len(t, step.Statements, 1)
	assert.Equal(t, "ALTER TABLE job ADD COLUMN pause INTEGER DEFAULT 0", step.Statements[0])
}

func TestLoadDir_BuildsRegistryFromFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"upgrades/add_dataversion.sql": &fstest.MapFile{Data: []byte(
			"-- dialect: postgres\n-- from: 44\n-- to: 45\nALTER TABLE calendar_object ADD COLUMN dataversion INTEGER;\n")},
		"upgrades/add_group_attendee.sql": &fstest.MapFile{Data: []byte(
			"-- dialect: postgres\n-- from: 45\n-- to: 46\nCREATE TABLE group_attendee (group_id TEXT);\n")},
		"upgrades/README.md": &fstest.MapFile{Data: []byte("not a step file")},
	}

	reg, err := LoadDir(fsys, "upgrades")
	require.NoError(t, err)

	assert.Equal(t, 44, reg.LowestVersion())
	assert.Equal(t, 46, reg.LatestVersion())

	steps, err := reg.StepsFrom(migrator.DialectPostgres, 44)
	require.NoError(t, err)
	assert.Len(t, steps, 2)
}

func TestLoadDir_InvalidChainSurfacesValidation(t *testing.T) {
	fsys := fstest.MapFS{
		"upgrades/a.sql": &fstest.MapFile{Data: []byte(
			"-- dialect: postgres\n-- from: 44\n-- to: 45\nSELECT 1;\n")},
		"upgrades/b.sql": &fstest.MapFile{Data: []byte(
			"-- dialect: postgres\n-- from: 46\n-- to: 47\nSELECT 1;\n")},
	}

	_, err := LoadDir(fsys, "upgrades")

	var regErr *migrator.RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Contains(t, regErr.Reason, "gap")
}

func TestLoadDir_BadStepFileNamesThePath(t *testing.T) {
	fsys := fstest.MapFS{
		"upgrades/broken.sql": &fstest.MapFile{Data: []byte("-- from: 44\nSELECT 1;\n")},
	}

	_, err := LoadDir(fsys, "upgrades")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upgrades/broken.sql")
}
