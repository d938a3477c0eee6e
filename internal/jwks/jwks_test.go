package jwks_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/fetchcache/internal/clock"
	"github.com/rshade/fetchcache/internal/fetchcache"
	"github.com/rshade/fetchcache/internal/fetcher"
	"github.com/rshade/fetchcache/internal/jwks"
	"github.com/rshade/fetchcache/internal/store"
)

func b64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func rsaJWK(t *testing.T, kid string) (*rsa.PrivateKey, map[string]string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return priv, map[string]string{
		"kid": kid,
		"kty": "RSA",
		"alg": "RS256",
		"use": "sig",
		"n":   b64(priv.N.Bytes()),
		"e":   b64(big.NewInt(int64(priv.E)).Bytes()),
	}
}

func ecJWK(t *testing.T, kid string) (*ecdsa.PrivateKey, map[string]string) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	raw, err := priv.PublicKey.Bytes()
	require.NoError(t, err)
	const size = 32
	return priv, map[string]string{
		"kid": kid,
		"kty": "EC",
		"crv": "P-256",
		"x":   b64(raw[1 : 1+size]),
		"y":   b64(raw[1+size:]),
	}
}

// jwksServer serves the given keys and counts requests.
func jwksServer(t *testing.T, jwk ...map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	body, err := json.Marshal(map[string]any{"keys": jwk})
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newProvider(t *testing.T, client *http.Client) (*jwks.Provider, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	c, err := fetchcache.New(store.NewMemoryStore(store.WithClock(clk)), jwks.Fetcher(client), fetchcache.Options{
		TTL:   10 * time.Minute,
		Clock: clk,
	})
	require.NoError(t, err)
	return jwks.NewProvider(c), clk
}

func TestParse(t *testing.T) {
	set, err := jwks.Parse([]byte(`{"keys":[{"kid":"a","kty":"RSA","n":"AQAB","e":"AQAB"},{"kid":"skip"}]}`))
	require.NoError(t, err)
	require.Len(t, set.Keys, 1)
	assert.Equal(t, "a", set.Keys[0].Kid)

	set, err = jwks.Parse([]byte(`{"keys":[]}`))
	require.NoError(t, err)
	assert.Empty(t, set.Keys)

	for _, doc := range []string{`{{{`, `{"keys":{}}`, `[]`, `{"other":1}`} {
		_, err = jwks.Parse([]byte(doc))
		assert.ErrorIs(t, err, jwks.ErrInvalidSet, doc)
	}
}

func TestSet_Lookup(t *testing.T) {
	single := jwks.Set{Keys: []jwks.Key{{Kid: "only", Kty: "RSA"}}}
	k, ok := single.Lookup("")
	require.True(t, ok)
	assert.Equal(t, "only", k.Kid)

	multi := jwks.Set{Keys: []jwks.Key{{Kid: "a"}, {Kid: "b"}}}
	_, ok = multi.Lookup("")
	assert.False(t, ok)
	k, ok = multi.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, "b", k.Kid)
}

func TestKey_PublicKey(t *testing.T) {
	rsaPriv, rsaKey := rsaJWK(t, "r")
	ecPriv, ecKey := ecJWK(t, "e")

	toKey := func(m map[string]string) jwks.Key {
		return jwks.Key{Kid: m["kid"], Kty: m["kty"], N: m["n"], E: m["e"], Crv: m["crv"], X: m["x"], Y: m["y"]}
	}

	pub, err := toKey(rsaKey).PublicKey()
	require.NoError(t, err)
	assert.True(t, rsaPriv.PublicKey.Equal(pub))

	pub, err = toKey(ecKey).PublicKey()
	require.NoError(t, err)
	assert.True(t, ecPriv.PublicKey.Equal(pub))

	bad := []jwks.Key{
		{Kty: "oct"},
		{Kty: "RSA", E: "AQAB"},
		{Kty: "RSA", N: "!!", E: "AQAB"},
		{Kty: "EC", Crv: "P-999", X: "AA", Y: "AA"},
		{Kty: "EC", Crv: "P-256", X: "AQ", Y: "AQ"},
	}
	for _, k := range bad {
		_, err = k.PublicKey()
		assert.ErrorIs(t, err, jwks.ErrUnsupported, "%+v", k)
	}
}

func TestProvider_KeyfuncVerifiesToken(t *testing.T) {
	priv, jwk := rsaJWK(t, "k1")
	srv, hits := jwksServer(t, jwk)
	p, _ := newProvider(t, srv.Client())

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{"sub": "alice"})
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(priv)
	require.NoError(t, err)

	ctx := context.Background()
	for range 3 {
		parsed, parseErr := jwt.Parse(signed, p.Keyfunc(ctx, srv.URL+"/jwks"))
		require.NoError(t, parseErr)
		assert.True(t, parsed.Valid)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestProvider_ECKey(t *testing.T) {
	priv, jwk := ecJWK(t, "ec1")
	srv, _ := jwksServer(t, jwk)
	p, _ := newProvider(t, srv.Client())

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{"sub": "bob"})
	token.Header["kid"] = "ec1"
	signed, err := token.SignedString(priv)
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, p.Keyfunc(context.Background(), srv.URL))
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
}

func TestProvider_UnknownKidDoesNotRefetch(t *testing.T) {
	_, jwk := rsaJWK(t, "k1")
	srv, hits := jwksServer(t, jwk)
	p, _ := newProvider(t, srv.Client())
	ctx := context.Background()

	_, err := p.Key(ctx, srv.URL, "k1")
	require.NoError(t, err)

	_, err = p.Key(ctx, srv.URL, "rotated")
	require.ErrorIs(t, err, jwks.ErrKeyNotFound)
	assert.Equal(t, int32(1), hits.Load())
}

func TestProvider_RefetchAfterTTL(t *testing.T) {
	_, jwk := rsaJWK(t, "k1")
	srv, hits := jwksServer(t, jwk)
	p, clk := newProvider(t, srv.Client())
	ctx := context.Background()

	_, err := p.Key(ctx, srv.URL, "k1")
	require.NoError(t, err)
	clk.Advance(11 * time.Minute)
	_, err = p.Key(ctx, srv.URL, "k1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestProvider_AlgorithmMismatch(t *testing.T) {
	_, jwk := rsaJWK(t, "k1")
	srv, _ := jwksServer(t, jwk)
	p, _ := newProvider(t, srv.Client())

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "eve"})
	token.Header["kid"] = "k1"
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = jwt.Parse(signed, p.Keyfunc(context.Background(), srv.URL))
	require.ErrorIs(t, err, jwks.ErrAlgorithmMismatch)
}

func TestProvider_FetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"not":"jwks"}`))
	}))
	t.Cleanup(srv.Close)
	p, _ := newProvider(t, srv.Client())
	ctx := context.Background()

	_, err := p.Key(ctx, srv.URL, "k1")
	var fe *fetcher.Error
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, jwks.ErrInvalidSet)

	_, err = p.Key(ctx, "not a url", "k1")
	require.Error(t, err)
}
