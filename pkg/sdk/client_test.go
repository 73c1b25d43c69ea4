package searchdex

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type product struct {
	ID    string  `search:"id"`
	Name  string  `search:"name"`
	Color string  `search:"color"`
	Price float64 `search:"price"`
}

func (p product) EntityID() string { return p.ID }

func newBleveClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithBleve(""),
		WithField("name", FieldText),
		WithField("color", FieldTag),
		WithField("price", FieldNumeric),
	}
	c, err := New(context.Background(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestNew_NoBackend(t *testing.T) {
	_, err := New(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend required")
}

func TestNew_InvalidSchema(t *testing.T) {
	_, err := New(context.Background(), WithBleve(""), WithField("v", FieldType("vector")))
	require.Error(t, err)
}

func TestNew_RedisWithoutAddress(t *testing.T) {
	_, err := New(context.Background(), WithRedis("", ""), WithRedisIndex("bad index", "x:"))
	require.Error(t, err)
}

func TestClient_EntryLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newBleveClient(t, WithAutoGenerateID())

	require.NoError(t, c.Ping(ctx))
	assert.True(t, c.IsAlive(ctx))

	id, err := c.Add(ctx, Entry{"name": "red lamp", "color": "red", "price": 20.0})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	ids, err := c.AddAll(ctx,
		Entry{"id": "2", "name": "blue chair", "color": "blue", "price": 45.0},
		Entry{"id": "3", "name": "blue lamp", "color": "blue", "price": 80.0},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3"}, ids)

	resp, err := c.Query(ctx, "color:{c}", "blue")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Len())

	require.NoError(t, c.Delete(ctx, "2"))
	require.NoError(t, c.DeleteByQuery(ctx, "name:{n}", "chair"))
	require.NoError(t, c.Commit(ctx))
	require.NoError(t, c.Refresh(ctx))

	names, err := FieldValues(ctx, c, "name", "color:blue")
	require.NoError(t, err)
	assert.Equal(t, []string{"blue lamp"}, names)

	require.NoError(t, c.DeleteAll(ctx))
	resp, err = c.Query(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, 0, resp.Len())
}

func TestClient_Typed(t *testing.T) {
	ctx := context.Background()
	c := newBleveClient(t)

	_, err := c.IndexAll(ctx,
		product{ID: "p1", Name: "desk lamp", Color: "green", Price: 12},
		product{ID: "p2", Name: "floor lamp", Color: "black", Price: 99},
	)
	require.NoError(t, err)

	cheap, err := QueryAs[product](ctx, c, "price:<{max}", 50)
	require.NoError(t, err)
	require.Len(t, cheap, 1)
	assert.Equal(t, "desk lamp", cheap[0].Name)

	repo := NewRepository[product](c)
	got, err := repo.FindOne(ctx, "p2")
	require.NoError(t, err)
	assert.InDelta(t, 99.0, got.Price, 0)

	_, err = repo.FindOne(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_Errors(t *testing.T) {
	ctx := context.Background()
	c := newBleveClient(t)

	_, err := c.Query(ctx, "name:(lamp")
	require.ErrorIs(t, err, ErrInvalidQuery)
	var se *SearchError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "name:(lamp", se.Query)

	_, err = c.Query(ctx, "name:{a}", "x", "y")
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = c.Add(ctx, Entry{"name": "no id"})
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

func TestClient_Health(t *testing.T) {
	c := newBleveClient(t, WithCircuitBreaker(3, 5))

	h := c.Health(context.Background())
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "bleve", h.Backend)
	assert.Equal(t, "ok", h.Checks["backend"])
	assert.Equal(t, "ok", h.Checks["breaker"])
}

func TestClient_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := newBleveClient(t, WithPrometheus(reg))
	ctx := context.Background()

	_, _ = c.Query(ctx, "*")
	_, _ = c.Query(ctx, "name:(lamp")

	obs := c.obs.metrics.operations
	assert.InDelta(t, 1, testutil.ToFloat64(obs.WithLabelValues("query", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(obs.WithLabelValues("query", "error")), 0)

	// A second client on the same registry reuses the collectors.
	c2 := newBleveClient(t, WithPrometheus(reg))
	assert.Same(t, c.obs.metrics.operations, c2.obs.metrics.operations)
}

func TestObserver_Nil(t *testing.T) {
	var o *observer
	o.observe("noop", time.Now(), nil)
}
