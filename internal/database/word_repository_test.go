package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/lexibot/pkg/models"
)

func TestWordListCreateAndLookup(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewWordRepository()

	list := &models.WordList{Name: "idioms"}
	require.NoError(t, repo.CreateList(ctx, list))
	assert.NotZero(t, list.ID)

	byName, err := repo.GetListByName(ctx, "idioms")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, list.ID, byName.ID)

	byID, err := repo.GetListByID(ctx, list.ID)
	require.NoError(t, err)
	require.NotNil(t, byID)
	assert.Equal(t, "idioms", byID.Name)

	missing, err := repo.GetListByName(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	lists, err := repo.GetLists(ctx)
	require.NoError(t, err)
	assert.Len(t, lists, 1)
}

func TestWordsKeepInsertionOrder(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewWordRepository()

	listID, _ := seedList(t, "zeta", "alpha", "mid")

	words, err := repo.GetByList(ctx, listID)
	require.NoError(t, err)
	require.Len(t, words, 3)
	assert.Equal(t, "zeta", words[0].Term)
	assert.Equal(t, "alpha", words[1].Term)
	assert.Equal(t, "mid", words[2].Term)
	assert.Equal(t, 1, words[0].Position)
	assert.Equal(t, 3, words[2].Position)
}

func TestWordUpdateAndDelete(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewWordRepository()

	_, wordIDs := seedList(t, "alpha")

	word, err := repo.GetByID(ctx, wordIDs[0])
	require.NoError(t, err)
	word.Definition = "updated meaning"
	require.NoError(t, repo.Update(ctx, word))

	word, err = repo.GetByID(ctx, wordIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "updated meaning", word.Definition)

	require.NoError(t, repo.Delete(ctx, wordIDs[0]))
	words, err := repo.GetByList(ctx, word.ListID)
	require.NoError(t, err)
	assert.Empty(t, words)
}

func TestWordSearch(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewWordRepository()

	seedList(t, "serendipity", "luck", "fortune")

	words, err := repo.Search(ctx, "SEREN")
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, "serendipity", words[0].Term)

	// Definitions are searched too ("def of luck").
	words, err = repo.Search(ctx, "of luck")
	require.NoError(t, err)
	assert.Len(t, words, 1)
}
