package journal

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hodlsync/hodlsync/internal/entity"
)

func TestJournalAppendAndReplay(t *testing.T) {
	j, err := New(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	accountA := uuid.New()
	accountB := uuid.New()
	now := time.Now().UTC()

	require.NoError(t, j.Append(entity.SyncResult{
		AccountID: accountA, Success: true, HoldingsCount: 3,
	}, now))
	require.NoError(t, j.Append(entity.SyncResult{
		AccountID: accountB, Success: false, Error: "unsupported exchange: kraken",
	}, now.Add(time.Second)))

	records, err := j.ResultsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, accountA, records[0].Result.AccountID)
	assert.True(t, records[0].Result.Success)
	assert.Equal(t, 3, records[0].Result.HoldingsCount)

	assert.Equal(t, accountB, records[1].Result.AccountID)
	assert.False(t, records[1].Result.Success)
	assert.Equal(t, "unsupported exchange: kraken", records[1].Result.Error)
	assert.Greater(t, records[1].Index, records[0].Index)
}

func TestJournalResultsAfterCursor(t *testing.T) {
	j, err := New(t.TempDir())
	require.NoError(t, err)
	defer j.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(entity.SyncResult{AccountID: uuid.New(), Success: true}, time.Now()))
	}

	cursor := j.CurrentIndex()
	records, err := j.ResultsAfter(cursor)
	require.NoError(t, err)
	assert.Empty(t, records, "nothing newer than the cursor")

	require.NoError(t, j.Append(entity.SyncResult{AccountID: uuid.New(), Success: true}, time.Now()))
	records, err = j.ResultsAfter(cursor)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestJournalSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	j, err := New(dir)
	require.NoError(t, err)
	account := uuid.New()
	require.NoError(t, j.Append(entity.SyncResult{AccountID: account, Success: true, HoldingsCount: 7}, time.Now()))
	require.NoError(t, j.Close())

	reopened, err := New(dir)
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.ResultsAfter(0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, account, records[0].Result.AccountID)
	assert.Equal(t, 7, records[0].Result.HoldingsCount)
}

func TestNilJournalIsNoop(t *testing.T) {
	var j *Journal

	assert.NoError(t, j.Append(entity.SyncResult{AccountID: uuid.New()}, time.Now()))
	records, err := j.ResultsAfter(0)
	assert.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, j.CurrentIndex())
	assert.NoError(t, j.Close())
}
