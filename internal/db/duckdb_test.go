package db

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshot(ids ...int64) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, id := range ids {
		f := geojson.NewFeature(orb.Point{float64(id), 1})
		f.ID = id
		f.Properties["kind"] = "circle"
		fc.Append(f)
	}
	return fc
}

func TestSaveSnapshot(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, Config{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, SaveSnapshot(ctx, conn, "a", snapshot(0, 1, 2)))
	require.NoError(t, SaveSnapshot(ctx, conn, "b", snapshot(0)))
	require.NoError(t, SaveSnapshot(ctx, conn, "a", snapshot(3)), "a second save replaces the first")

	res, err := Query(ctx, conn, `SELECT session, id, kind FROM annotations ORDER BY session, id`)
	require.NoError(t, err)
	assert.Equal(t, []string{"session", "id", "kind"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, []any{"a", int64(3), "circle"}, res.Rows[0])
	assert.Equal(t, []any{"b", int64(0), "circle"}, res.Rows[1])

	require.NoError(t, DeleteSnapshot(ctx, conn, "a"))
	res, err = Query(ctx, conn, `SELECT count(*) AS n FROM annotations`)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Rows[0][0])
}

func TestSaveSnapshot_RejectsFeatureWithoutID(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, Config{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{0, 0}))
	assert.Error(t, SaveSnapshot(ctx, conn, "a", fc))
}

func TestQuery_SyntaxError(t *testing.T) {
	ctx := context.Background()
	conn, err := Open(ctx, Config{})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	_, err = Query(ctx, conn, `SELEC nope`)
	assert.Error(t, err)
}
