package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func records() []domain.Record {
	return []domain.Record{
		{Text: "Apple", Vector: []float32{1, 0, 0}, Fingerprint: "fa"},
		{Text: "Banana", Vector: []float32{0, 1, 0}, Fingerprint: "fb"},
		{Text: "Cherry", Vector: []float32{0.9, 0.1, 0}, Fingerprint: "fc"},
	}
}

func TestStorage_InsertSearch(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()

	res, err := s.Search(ctx, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res, "empty store returns no results")

	require.NoError(t, s.Insert(ctx, records()))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err = s.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "Apple", res[0].Record.Text)
	assert.Equal(t, "Cherry", res[1].Record.Text)
	assert.NotEmpty(t, res[0].Record.ID)

	res, err = s.Search(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, res, 3)

	_, err = s.Search(ctx, []float32{1, 0, 0}, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	texts, err := s.Texts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Apple", "Banana", "Cherry"}, texts)
}

func TestStorage_DimensionGuard(t *testing.T) {
	ctx := context.Background()
	s := NewStorage()
	require.NoError(t, s.Insert(ctx, records()))

	err := s.Insert(ctx, []domain.Record{{Text: "x", Vector: []float32{1, 2}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.ErrorIs(t, err, domain.ErrStore)

	_, err = s.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	n, _ := s.Count(ctx)
	assert.Equal(t, 3, n, "failed insert stores nothing")
}

func TestStorage_PersistRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, records()))
	require.NoError(t, s.Persist(ctx))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := reopened.Search(ctx, []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "Banana", res[0].Record.Text)
	assert.Equal(t, domain.Fingerprint("fb"), res[0].Record.Fingerprint)

	err = reopened.Insert(ctx, []domain.Record{{Text: "x", Vector: []float32{1}}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch, "dimension survives reopen")
}

func TestNewStorage_PersistIsNoop(t *testing.T) {
	assert.NoError(t, NewStorage().Persist(context.Background()))
}
