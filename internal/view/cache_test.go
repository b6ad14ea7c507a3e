package view

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmnook-dispatch/internal/logx"
	"farmnook-dispatch/internal/store"
	"farmnook-dispatch/internal/store/memstore"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func doc(id, name string) store.Document {
	return store.Document{ID: id, Data: store.Fields{"name": name}}
}

func TestCache_Apply(t *testing.T) {
	t.Parallel()

	c := NewCache(DecodeAs[item]())
	require.False(t, c.Ready())

	ch, errs := c.Apply([]store.Document{doc("b", "B"), doc("a", "A")})
	require.Empty(t, errs)
	assert.Equal(t, []string{"a", "b"}, ch.Added)
	assert.True(t, c.Ready())
	assert.Equal(t, []item{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}, c.List())

	ch, _ = c.Apply([]store.Document{doc("a", "A2"), doc("c", "C")})
	assert.Equal(t, Change{Added: []string{"c"}, Updated: []string{"a"}, Removed: []string{"b"}}, ch)

	ch, _ = c.Apply([]store.Document{doc("a", "A2"), doc("c", "C")})
	assert.True(t, ch.Empty())

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "A2", got.Name)
}

func TestCache_DecodeErrorsAreSkipped(t *testing.T) {
	t.Parallel()

	bad := errors.New("bad doc")
	c := NewCache(func(d store.Document) (item, error) {
		if d.ID == "x" {
			return item{}, bad
		}
		return item{ID: d.ID}, nil
	})

	_, errs := c.Apply([]store.Document{doc("a", ""), doc("x", "")})
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], bad)
	assert.Equal(t, 1, c.Len())
}

func TestCache_UpsertRemove(t *testing.T) {
	t.Parallel()

	c := NewCache(DecodeAs[item]())
	c.Upsert("a", item{ID: "a"})
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	_, ok := c.Get("a")
	assert.False(t, ok)
}

func TestSync(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	st := memstore.New()
	require.NoError(t, st.Set(ctx, "things", "a", store.Fields{"name": "A", "open": true}, false))

	c := NewCache(DecodeAs[item]())
	stop, err := Sync(ctx, st, store.Query{Collection: "things", Where: []store.Filter{store.Eq("open", true)}}, c, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(stop)

	assert.Equal(t, 1, c.Len())

	require.NoError(t, st.Set(ctx, "things", "b", store.Fields{"name": "B", "open": true}, false))
	assert.Equal(t, 2, c.Len())

	require.NoError(t, st.Update(ctx, "things", "a", store.Fields{"open": false}))
	assert.Equal(t, []item{{ID: "b", Name: "B"}}, c.List())
}
