package nfc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	db, err := NewDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestReadWriteCard(t *testing.T) {
	db := newTestDB(t)

	c := Card{UID: "04-1a-2b-3c", Label: "Front door"}
	require.NoError(t, db.StoreCard(c))

	b, err := db.ReadCard("04-1A-2B-3C")
	require.NoError(t, err)
	assert.Equal(t, "04-1A-2B-3C", b.UID)
	assert.Equal(t, "Front door", b.Label)
	assert.False(t, b.Added.IsZero())
}

func TestDeleteCard(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.StoreCard(Card{UID: "01-02", Label: "x"}))

	require.NoError(t, db.DeleteCard("01-02"))

	_, err := db.ReadCard("01-02")
	assert.ErrorIs(t, err, ErrCardNotFound)
	assert.ErrorIs(t, db.DeleteCard("01-02"), ErrCardNotFound)
}

func TestReadAllOrderedByLabel(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.StoreCard(Card{UID: "01", Label: "charlie"}))
	require.NoError(t, db.StoreCard(Card{UID: "02", Label: "alpha"}))
	require.NoError(t, db.StoreCard(Card{UID: "03", Label: "bravo"}))

	cards, err := db.ReadAll()
	require.NoError(t, err)
	require.Len(t, cards, 3)
	assert.Equal(t, []string{"alpha", "bravo", "charlie"}, []string{cards[0].Label, cards[1].Label, cards[2].Label})
}

func TestStoreCardRejectsBadUID(t *testing.T) {
	db := newTestDB(t)
	assert.Error(t, db.StoreCard(Card{UID: "", Label: "empty"}))
	assert.Error(t, db.StoreCard(Card{UID: "not-a-uid", Label: "bad"}))
}
