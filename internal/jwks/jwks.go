// Package jwks resolves JSON Web Key Sets through a fetchcache.Cache so token
// verification does not hit the accounts endpoint on every request.
package jwks

import (
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/rshade/fetchcache/internal/fetchcache"
	"github.com/rshade/fetchcache/internal/fetcher"
	"github.com/rshade/fetchcache/internal/keys"
)

// Errors returned while resolving keys.
var (
	ErrKeyNotFound       = errors.New("jwks: key not found")
	ErrInvalidSet        = errors.New("jwks: invalid key set document")
	ErrUnsupported       = errors.New("jwks: unsupported key")
	ErrAlgorithmMismatch = errors.New("jwks: token algorithm does not match key")
)

// Key is one JSON Web Key. Only the members needed for RSA and EC public
// keys are kept.
type Key struct {
	Kid string `json:"kid,omitempty"`
	Kty string `json:"kty"`
	Alg string `json:"alg,omitempty"`
	Use string `json:"use,omitempty"`

	// RSA
	N string `json:"n,omitempty"`
	E string `json:"e,omitempty"`

	// EC
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
}

// Set is a parsed JWKS document.
type Set struct {
	Keys []Key `json:"keys"`
}

// Lookup returns the key with kid. An empty kid matches a set holding
// exactly one key.
func (s Set) Lookup(kid string) (Key, bool) {
	if kid == "" && len(s.Keys) == 1 {
		return s.Keys[0], true
	}
	for _, k := range s.Keys {
		if k.Kid == kid {
			return k, true
		}
	}
	return Key{}, false
}

// Parse reads a JWKS document. Entries without a "kty" are skipped.
func Parse(data []byte) (Set, error) {
	if !gjson.ValidBytes(data) {
		return Set{}, fmt.Errorf("%w: not valid JSON", ErrInvalidSet)
	}
	list := gjson.GetBytes(data, "keys")
	if !list.IsArray() {
		return Set{}, fmt.Errorf("%w: missing \"keys\" array", ErrInvalidSet)
	}

	set := Set{Keys: []Key{}}
	list.ForEach(func(_, k gjson.Result) bool {
		kty := k.Get("kty").String()
		if kty == "" {
			return true
		}
		set.Keys = append(set.Keys, Key{
			Kid: k.Get("kid").String(),
			Kty: kty,
			Alg: k.Get("alg").String(),
			Use: k.Get("use").String(),
			N:   k.Get("n").String(),
			E:   k.Get("e").String(),
			Crv: k.Get("crv").String(),
			X:   k.Get("x").String(),
			Y:   k.Get("y").String(),
		})
		return true
	})
	return set, nil
}

// Fetcher returns a fetcher that GETs params["url"] and parses the body as a
// JWKS document. A nil client uses fetcher.HTTPClient().
func Fetcher(client *http.Client) fetcher.Fetcher[Set] {
	return fetcher.Func[Set](func(ctx context.Context, params keys.Params) (Set, error) {
		body, err := fetcher.Body(ctx, client, params)
		if err != nil {
			return Set{}, err
		}
		set, err := Parse(body)
		if err != nil {
			return Set{}, fetcher.NewError(params, err)
		}
		return set, nil
	})
}

// PublicKey decodes k into an *rsa.PublicKey or *ecdsa.PublicKey.
func (k Key) PublicKey() (crypto.PublicKey, error) {
	switch k.Kty {
	case "RSA":
		n, err := decodeSegment("n", k.N)
		if err != nil {
			return nil, err
		}
		e, err := decodeSegment("e", k.E)
		if err != nil {
			return nil, err
		}
		exp := new(big.Int).SetBytes(e)
		if !exp.IsInt64() || exp.Int64() < 2 || exp.Int64() > 1<<31-1 {
			return nil, fmt.Errorf("%w: RSA exponent out of range", ErrUnsupported)
		}
		return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(exp.Int64())}, nil

	case "EC":
		curve, err := curveFor(k.Crv)
		if err != nil {
			return nil, err
		}
		x, err := decodeSegment("x", k.X)
		if err != nil {
			return nil, err
		}
		y, err := decodeSegment("y", k.Y)
		if err != nil {
			return nil, err
		}
		size := (curve.Params().BitSize + 7) / 8
		if len(x) > size || len(y) > size {
			return nil, fmt.Errorf("%w: EC coordinate too long for %s", ErrUnsupported, k.Crv)
		}
		point := make([]byte, 1+2*size)
		point[0] = 4
		copy(point[1+size-len(x):1+size], x)
		copy(point[1+2*size-len(y):], y)
		pub, err := ecdsa.ParseUncompressedPublicKey(curve, point)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
		}
		return pub, nil

	default:
		return nil, fmt.Errorf("%w: kty %q", ErrUnsupported, k.Kty)
	}
}

func curveFor(crv string) (elliptic.Curve, error) {
	switch crv {
	case "P-256":
		return elliptic.P256(), nil
	case "P-384":
		return elliptic.P384(), nil
	case "P-521":
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("%w: curve %q", ErrUnsupported, crv)
	}
}

func decodeSegment(name, s string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: missing %q", ErrUnsupported, name)
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding %q: %w", ErrUnsupported, name, err)
	}
	return b, nil
}

// Provider resolves verification keys from cached key sets.
type Provider struct {
	cache *fetchcache.Cache[Set]
}

// NewProvider returns a Provider reading key sets through c.
func NewProvider(c *fetchcache.Cache[Set]) *Provider {
	return &Provider{cache: c}
}

// Set returns the key set published at url.
func (p *Provider) Set(ctx context.Context, url string) (Set, error) {
	params, err := keys.URL(url)
	if err != nil {
		return Set{}, err
	}
	return p.cache.Get(ctx, params)
}

// Key returns the public key kid from the set at url. A kid missing from a
// fresh set yields ErrKeyNotFound; the set is not refetched.
func (p *Provider) Key(ctx context.Context, url, kid string) (crypto.PublicKey, error) {
	k, err := p.lookup(ctx, url, kid)
	if err != nil {
		return nil, err
	}
	return k.PublicKey()
}

func (p *Provider) lookup(ctx context.Context, url, kid string) (Key, error) {
	set, err := p.Set(ctx, url)
	if err != nil {
		return Key{}, err
	}
	k, ok := set.Lookup(kid)
	if !ok {
		return Key{}, fmt.Errorf("%w: kid %q at %s", ErrKeyNotFound, kid, url)
	}
	return k, nil
}

// Keyfunc returns a jwt.Keyfunc that picks the token's "kid" from the set at
// url. A key that declares "alg" must match the token's signing method.
func (p *Provider) Keyfunc(ctx context.Context, url string) jwt.Keyfunc {
	return func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		k, err := p.lookup(ctx, url, kid)
		if err != nil {
			return nil, err
		}
		if k.Alg != "" && token.Method != nil && token.Method.Alg() != k.Alg {
			return nil, fmt.Errorf("%w: token %s, key %s", ErrAlgorithmMismatch, token.Method.Alg(), k.Alg)
		}
		return k.PublicKey()
	}
}
