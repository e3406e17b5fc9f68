package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	migrator "github.com/getpup/schema-migrator"
)

func step(dialect migrator.Dialect, from, to int) migrator.Step {
	return migrator.Step{
		Dialect:     dialect,
		FromVersion: from,
		ToVersion:   to,
		Statements:  []string{"CREATE TABLE t (id TEXT)"},
	}
}

func TestNew_ValidChain(t *testing.T) {
	reg, err := New([]migrator.Step{
		step(migrator.DialectPostgres, 45, 46),
		step(migrator.DialectPostgres, 44, 45),
		step(migrator.DialectPostgres, 46, 47),
	})

	require.NoError(t, err)
	assert.Equal(t, 44, reg.LowestVersion())
	assert.Equal(t, 47, reg.LatestVersion())
	assert.Equal(t, []migrator.Dialect{migrator.DialectPostgres}, reg.Dialects())
}

func TestNew_EmptyStepSet(t *testing.T) {
	_, err := New(nil)

	var regErr *migrator.RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Contains(t, regErr.Reason, "no upgrade steps")
}

func TestNew_StepMustAdvanceByOne(t *testing.T) {
	_, err := New([]migrator.Step{step(migrator.DialectPostgres, 44, 46)})

	var regErr *migrator.RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, migrator.DialectPostgres, regErr.Dialect)
	assert.Contains(t, regErr.Reason, "exactly one version")
}

func TestNew_GapIsRejected(t *testing.T) {
	_, err := New([]migrator.Step{
		step(migrator.DialectPostgres, 44, 45),
		step(migrator.DialectPostgres, 46, 47),
	})

	var regErr *migrator.RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Contains(t, regErr.Reason, "gap between versions 45 and 46")
}

func TestNew_BranchIsRejected(t *testing.T) {
	branchA := step(migrator.DialectPostgres, 44, 45)
	branchB := step(migrator.DialectPostgres, 44, 45)
	branchB.Statements = []string{"CREATE TABLE other (id TEXT)"}

	_, err := New([]migrator.Step{branchA, branchB})

	var regErr *migrator.RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Contains(t, regErr.Reason, "branching")
}

func TestNew_CrossDialectParity(t *testing.T) {
	_, err := New([]migrator.Step{
		step(migrator.DialectPostgres, 44, 45),
		step(migrator.DialectPostgres, 45, 46),
		step(migrator.DialectMySQL, 44, 45),
	})

	var regErr *migrator.RegistryError
	require.ErrorAs(t, err, &regErr)
	assert.Contains(t, regErr.Reason, "cross-dialect parity")
}

func TestNew_MatchingDialectChains(t *testing.T) {
	reg, err := New([]migrator.Step{
		step(migrator.DialectPostgres, 44, 45),
		step(migrator.DialectPostgres, 45, 46),
		step(migrator.DialectMySQL, 44, 45),
		step(migrator.DialectMySQL, 45, 46),
	})

	require.NoError(t, err)
	assert.Len(t, reg.Dialects(), 2)
	assert.Equal(t, 46, reg.LatestVersion())
}

func TestStepsFrom_FullChain(t *testing.T) {
	reg, err := New([]migrator.Step{
		step(migrator.DialectPostgres, 45, 46),
		step(migrator.DialectPostgres, 44, 45),
	})
	require.NoError(t, err)

	steps, err := reg.StepsFrom(migrator.DialectPostgres, 44)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 44, steps[0].FromVersion)
	assert.Equal(t, 45, steps[1].FromVersion)
}

func TestStepsFrom_MidChain(t *testing.T) {
	reg, err := New([]migrator.Step{
		step(migrator.DialectPostgres, 44, 45),
		step(migrator.DialectPostgres, 45, 46),
		step(migrator.DialectPostgres, 46, 47),
	})
	require.NoError(t, err)

	steps, err := reg.StepsFrom(migrator.DialectPostgres, 46)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, 46, steps[0].FromVersion)
}

func TestStepsFrom_AlreadyCurrent(t *testing.T) {
	reg, err := New([]migrator.Step{step(migrator.DialectPostgres, 44, 45)})
	require.NoError(t, err)

	steps, err := reg.StepsFrom(migrator.DialectPostgres, 45)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestStepsFrom_UnknownDialect(t *testing.T) {
	reg, err := New([]migrator.Step{step(migrator.DialectPostgres, 44, 45)})
	require.NoError(t, err)

	_, err = reg.StepsFrom(migrator.DialectMySQL, 44)
	assert.ErrorIs(t, err, migrator.ErrUnsupportedDialect)
}

func TestStepsFrom_VersionOutsideChain(t *testing.T) {
	reg, err := New([]migrator.Step{step(migrator.DialectPostgres, 44, 45)})
	require.NoError(t, err)

	_, err = reg.StepsFrom(migrator.DialectPostgres, 43)
	assert.Error(t, err)

	_, err = reg.StepsFrom(migrator.DialectPostgres, 46)
	assert.Error(t, err)
}
