package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialPhaseIsIdle(t *testing.T) {
	m := New()
	assert.Equal(t, Idle, m.Phase())
	assert.False(t, m.HasTagOrField())
}

func TestTableThenSymbolThenColumnThenCommit(t *testing.T) {
	m := New()
	require.NoError(t, m.CheckTable())
	m.EnterTable()
	assert.Equal(t, OpenTable, m.Phase())

	require.NoError(t, m.CheckSymbol())
	m.MarkSymbol()
	assert.True(t, m.HasTagOrField())

	require.NoError(t, m.CheckColumn())
	m.EnterFields()
	assert.Equal(t, OpenFields, m.Phase())

	require.NoError(t, m.CheckCommit())
	m.Commit()
	assert.Equal(t, Idle, m.Phase())
	assert.False(t, m.HasTagOrField())
}

func TestSymbolAfterFieldRejected(t *testing.T) {
	m := New()
	m.EnterTable()
	m.EnterFields()
	require.Error(t, m.CheckSymbol())
}

func TestDoubleTableRejected(t *testing.T) {
	m := New()
	m.EnterTable()
	require.Error(t, m.CheckTable())
}

func TestCommitWithoutTagOrFieldRejected(t *testing.T) {
	m := New()
	m.EnterTable()
	require.Error(t, m.CheckCommit())
}

func TestCommitWithNoRowOpenRejected(t *testing.T) {
	m := New()
	require.Error(t, m.CheckCommit())
}

func TestCancelRequiresOpenRow(t *testing.T) {
	m := New()
	require.Error(t, m.CheckCancel())
	m.EnterTable()
	require.NoError(t, m.CheckCancel())
	m.Cancel()
	assert.Equal(t, Idle, m.Phase())
}

func TestResetForcesIdle(t *testing.T) {
	m := New()
	m.EnterTable()
	m.EnterFields()
	m.Reset()
	assert.Equal(t, Idle, m.Phase())
	assert.False(t, m.HasTagOrField())
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "open_table", OpenTable.String())
	assert.Equal(t, "open_fields", OpenFields.String())
}
