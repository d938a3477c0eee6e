package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Params are the primitive values that parametrize a fetch.
type Params map[string]any

// separator joins canonical name/value pairs. It cannot appear unescaped in a
// quoted string value.
const separator = "&"

// KeyBuildError reports a parameter whose value cannot be encoded into a key.
type KeyBuildError struct {
	Name  string
	Value any
}

func (e *KeyBuildError) Error() string {
	return fmt.Sprintf("cache key: parameter %q has non-primitive value of type %T", e.Name, e.Value)
}

// Builder builds cache keys. The zero value is ready to use.
type Builder struct {
	// Namespace, when set, is prepended to every key as "<namespace>:".
	Namespace string
}

// Build returns the cache key for params. Equal params always produce the
// same key regardless of map ordering.
func (b Builder) Build(params Params) (string, error) {
	canonical, err := Canonical(params)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(canonical))
	key := hex.EncodeToString(sum[:])
	if b.Namespace != "" {
		return b.Namespace + ":" + key, nil
	}
	return key, nil
}

// Build builds a key with the zero Builder.
func Build(params Params) (string, error) {
	return Builder{}.Build(params)
}

// Canonical returns the sorted, type-tagged encoding of params that Build
// hashes. Names are sorted lexically.
func Canonical(params Params) (string, error) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	pairs := make([]string, 0, len(names))
	for _, name := range names {
		encoded, err := encodeValue(params[name])
		if err != nil {
			return "", &KeyBuildError{Name: name, Value: params[name]}
		}
		pairs = append(pairs, strconv.Quote(name)+"="+encoded)
	}
	return strings.Join(pairs, separator), nil
}

// encodeValue renders v as "<tag>:<value>".
func encodeValue(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "n:", nil
	case string:
		return "s:" + strconv.Quote(val), nil
	case bool:
		return "b:" + strconv.FormatBool(val), nil
	case int:
		return "i:" + strconv.FormatInt(int64(val), 10), nil
	case int8:
		return "i:" + strconv.FormatInt(int64(val), 10), nil
	case int16:
		return "i:" + strconv.FormatInt(int64(val), 10), nil
	case int32:
		return "i:" + strconv.FormatInt(int64(val), 10), nil
	case int64:
		return "i:" + strconv.FormatInt(val, 10), nil
	case uint:
		return encodeUint(uint64(val)), nil
	case uint8:
		return encodeUint(uint64(val)), nil
	case uint16:
		return encodeUint(uint64(val)), nil
	case uint32:
		return encodeUint(uint64(val)), nil
	case uint64:
		return encodeUint(val), nil
	case float32:
		return "f:" + strconv.FormatFloat(float64(val), 'g', -1, 32), nil
	case float64:
		return "f:" + strconv.FormatFloat(val, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported type %T", v)
	}
}

// encodeUint keeps unsigned values that fit in an int64 equal to their
// signed counterparts.
func encodeUint(v uint64) string {
	if v <= 1<<63-1 {
		return "i:" + strconv.FormatUint(v, 10)
	}
	return "u:" + strconv.FormatUint(v, 10)
}

// URL returns params for a URL-addressed fetch. The scheme and host are
// lower-cased and query parameters sorted so equivalent URLs share a key.
func URL(rawURL string) (Params, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parsing url %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("url %q must be absolute", rawURL)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawQuery = u.Query().Encode()
	return Params{"url": u.String()}, nil
}
