package etcd

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// fakeKV es un KV en memoria que ignora las opciones salvo WithPrefix.
type fakeKV struct {
	data    map[string]string
	failGet bool
}

func newFakeKV(data map[string]string) *fakeKV {
	if data == nil {
		data = map[string]string{}
	}
	return &fakeKV{data: data}
}

func (f *fakeKV) Get(_ context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	if f.failGet {
		return nil, errors.New("etcd unavailable")
	}
	op := clientv3.OpGet(key, opts...)
	resp := &clientv3.GetResponse{}
	for k, v := range f.data {
		match := k == key
		if len(op.RangeBytes()) > 0 {
			match = strings.HasPrefix(k, key)
		}
		if match {
			resp.Kvs = append(resp.Kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(v)})
		}
	}
	resp.Count = int64(len(resp.Kvs))
	return resp, nil
}

func (f *fakeKV) Put(_ context.Context, key, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	f.data[key] = val
	return &clientv3.PutResponse{}, nil
}

func (f *fakeKV) Delete(_ context.Context, key string, _ ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	delete(f.data, key)
	return &clientv3.DeleteResponse{Deleted: 1}, nil
}

func TestClientTypedGetters(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV(map[string]string{
		"core/port":         "8080",
		"core/bad_int":      "abc",
		"core/rate":         "12.5",
		"core/blank":        "  ",
		"core/send_timeout": "250",
		"core/name":         "echo",
	})
	c := NewWithKV(kv, "echo", "test", time.Second)

	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{name: "string", run: func(t *testing.T) {
			v, err := c.GetVar(ctx, "core/name")
			require.NoError(t, err)
			assert.Equal(t, "echo", v)
		}},
		{name: "missing string", run: func(t *testing.T) {
			_, err := c.GetVar(ctx, "core/missing")
			assert.ErrorIs(t, err, ErrKeyNotFound)
		}},
		{name: "blank value is missing", run: func(t *testing.T) {
			v, err := c.GetVarWithDefault(ctx, "core/blank", "fallback")
			require.NoError(t, err)
			assert.Equal(t, "fallback", v)
		}},
		{name: "string default", run: func(t *testing.T) {
			v, err := c.GetVarWithDefault(ctx, "core/missing", "fallback")
			require.NoError(t, err)
			assert.Equal(t, "fallback", v)
		}},
		{name: "int", run: func(t *testing.T) {
			v, err := c.GetVarInt(ctx, "core/port")
			require.NoError(t, err)
			assert.Equal(t, 8080, v)
		}},
		{name: "missing int uses default", run: func(t *testing.T) {
			v, err := c.GetVarIntWithDefault(ctx, "core/missing", 7)
			require.NoError(t, err)
			assert.Equal(t, 7, v)
		}},
		{name: "bad int is an error", run: func(t *testing.T) {
			_, err := c.GetVarIntWithDefault(ctx, "core/bad_int", 7)
			assert.ErrorContains(t, err, "core/bad_int")
		}},
		{name: "float", run: func(t *testing.T) {
			v, err := c.GetVarFloatWithDefault(ctx, "core/rate", 1)
			require.NoError(t, err)
			assert.InDelta(t, 12.5, v, 1e-9)
		}},
		{name: "bad float is an error", run: func(t *testing.T) {
			_, err := c.GetVarFloatWithDefault(ctx, "core/name", 1)
			assert.Error(t, err)
		}},
		{name: "duration in ms", run: func(t *testing.T) {
			v, err := c.GetVarDurationWithDefault(ctx, "core/send_timeout", time.Second)
			require.NoError(t, err)
			assert.Equal(t, 250*time.Millisecond, v)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.run)
	}
}

func TestClientSetDeleteList(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV(nil)
	c := NewWithKV(kv, "echo", "test", 0)

	require.NoError(t, c.SetVar(ctx, "core/a", "1"))
	require.NoError(t, c.SetVar(ctx, "core/b", "2"))
	require.NoError(t, c.SetVar(ctx, "other/c", "3"))

	vars, err := c.ListVars(ctx, "core/")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"core/a": "1", "core/b": "2"}, vars)

	require.NoError(t, c.DeleteVar(ctx, "core/a"))
	_, err = c.GetVar(ctx, "core/a")
	assert.Error(t, err)

	assert.Equal(t, "/echo/test/", c.NamespacePrefix())
}

func TestClientGetError(t *testing.T) {
	kv := newFakeKV(nil)
	kv.failGet = true
	c := NewWithKV(kv, "echo", "test", time.Second)

	_, err := c.GetVar(context.Background(), "core/port")
	assert.ErrorContains(t, err, "etcd unavailable")

	v, err := c.GetVarWithDefault(context.Background(), "core/port", "9000")
	assert.ErrorContains(t, err, "etcd unavailable")
	assert.Equal(t, "9000", v)
}

func TestEndpointsFromEnv(t *testing.T) {
	t.Setenv(envEndpoints, " http://a:2379, ,http://b:2379 ")
	assert.Equal(t, []string{"http://a:2379", "http://b:2379"}, EndpointsFromEnv())

	t.Setenv(envEndpoints, "")
	assert.Nil(t, EndpointsFromEnv())
}

func TestDefaultConfigFromHostPort(t *testing.T) {
	t.Setenv(envEndpoints, "")
	t.Setenv(envHost, "etcd.local")
	t.Setenv(envPort, "2380")
	t.Setenv(envTimeout, "3")
	t.Setenv(envScope, "staging")

	cfg := defaultConfig()
	assert.Equal(t, []string{"http://etcd.local:2380"}, cfg.endpoints)
	assert.Equal(t, 3*time.Second, cfg.timeout)
	assert.Equal(t, "staging", cfg.env)
}
