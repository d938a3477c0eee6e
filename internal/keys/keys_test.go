package keys

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestBuild_Deterministic verifies that map ordering never changes the key.
func TestBuild_Deterministic(t *testing.T) {
	tests := []struct {
		name   string
		params Params
	}{
		{name: "single param", params: Params{"id": "a"}},
		{name: "mixed types", params: Params{"host": "db", "port": 5432, "tls": true, "ratio": 0.5}},
		{name: "nil value", params: Params{"id": "a", "shard": nil}},
		{name: "empty", params: Params{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			copied := make(Params, len(tt.params))
			for k, v := range tt.params {
				copied[k] = v
			}

			key1, err := Build(tt.params)
			require.NoError(t, err)
			key2, err := Build(copied)
			require.NoError(t, err)

			assert.Equal(t, key1, key2)
			assert.Len(t, key1, 64)
		})
	}
}

func TestBuild_DifferentParams(t *testing.T) {
	base, err := Build(Params{"id": "a"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		params Params
	}{
		{name: "different value", params: Params{"id": "b"}},
		{name: "different name", params: Params{"key": "a"}},
		{name: "string vs int", params: Params{"id": 1}},
		{name: "extra param", params: Params{"id": "a", "v": 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, buildErr := Build(tt.params)
			require.NoError(t, buildErr)
			assert.NotEqual(t, base, key)
		})
	}

	t.Run("int vs quoted int", func(t *testing.T) {
		k1, _ := Build(Params{"n": 1})
		k2, _ := Build(Params{"n": "1"})
		assert.NotEqual(t, k1, k2)
	})
}

func TestBuild_IntegerWidths(t *testing.T) {
	k1, err := Build(Params{"n": 7})
	require.NoError(t, err)
	k2, err := Build(Params{"n": int64(7)})
	require.NoError(t, err)
	k3, err := Build(Params{"n": uint8(7)})
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Equal(t, k1, k3)
}

func TestBuild_Namespace(t *testing.T) {
	b := Builder{Namespace: "jwks"}
	key, err := b.Build(Params{"url": "https://example.com"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "jwks:"))
	assert.Len(t, strings.TrimPrefix(key, "jwks:"), 64)
}

func TestBuild_NonPrimitive(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{name: "map", value: map[string]string{"a": "b"}},
		{name: "slice", value: []string{"a"}},
		{name: "struct", value: struct{ A int }{1}},
		{name: "func", value: func() {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(Params{"id": "a", "bad": tt.value})
			require.Error(t, err)

			var kbe *KeyBuildError
			require.ErrorAs(t, err, &kbe)
			assert.Equal(t, "bad", kbe.Name)
		})
	}
}

func TestCanonical(t *testing.T) {
	got, err := Canonical(Params{"b": 2, "a": "x", "c": false})
	require.NoError(t, err)
	assert.Equal(t, `"a"=s:"x"&"b"=i:2&"c"=b:false`, got)
}

func TestURL(t *testing.T) {
	p1, err := URL("HTTPS://Example.COM/jwks?b=2&a=1#frag")
	require.NoError(t, err)
	p2, err := URL("https://example.com/jwks?a=1&b=2")
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, "https://example.com/jwks?a=1&b=2", p1["url"])

	_, err = URL("/relative/path")
	assert.Error(t, err)
}
