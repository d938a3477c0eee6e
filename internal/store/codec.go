package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// record is the persisted form of an entry shared by every backend.
type record struct {
	Value    any    `json:"value" yaml:"value"`
	StoredAt string `json:"storedAt" yaml:"storedAt"`
}

// rawRecord is the loosely typed form read back from disk. StoredAt may be
// an RFC 3339 string or epoch seconds.
type rawRecord struct {
	Value    any `json:"value" yaml:"value"`
	StoredAt any `json:"storedAt" yaml:"storedAt"`
}

func newRecord(e *Entry) record {
	return record{
		Value:    e.Value,
		StoredAt: e.StoredAt.UTC().Format(time.RFC3339Nano),
	}
}

// toEntry validates a raw record and normalizes its value.
func (r rawRecord) toEntry(key string) (*Entry, error) {
	storedAt, err := parseTimestamp(r.StoredAt)
	if err != nil {
		return nil, err
	}
	value, err := Normalize(r.Value)
	if err != nil {
		return nil, err
	}
	return &Entry{Key: key, Value: value, StoredAt: storedAt}, nil
}

// Normalize converts v into the generic JSON tree persistent stores hold:
// map[string]any, []any, string, bool, float64, int64, uint64 or nil.
// Numbers become float64 as encoding/json would decode them; integers too
// large for a float64 to hold exactly stay int64 or uint64.
func Normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding cache value: %w", err)
	}
	return decodeGeneric(data)
}

// Decode converts a stored value into dst, which must be a pointer.
func Decode(value any, dst any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cached value: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decoding cached value into %T: %w", dst, err)
	}
	return nil
}

func decodeGeneric(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding cache value: %w", err)
	}
	return fixNumbers(out), nil
}

// maxExactFloatInt is the largest integer magnitude a float64 represents
// without rounding.
const maxExactFloatInt = 1 << 53

// fixNumbers replaces each json.Number with a float64, or with an int64 or
// uint64 when the literal is an integer beyond maxExactFloatInt.
func fixNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		return number(val.String())
	case map[string]any:
		for k, child := range val {
			val[k] = fixNumbers(child)
		}
		return val
	case []any:
		for i, child := range val {
			val[i] = fixNumbers(child)
		}
		return val
	default:
		return v
	}
}

func number(lit string) any {
	if !strings.ContainsAny(lit, ".eE") {
		if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
			if i > maxExactFloatInt || i < -maxExactFloatInt {
				return i
			}
			return float64(i)
		}
		if u, err := strconv.ParseUint(lit, 10, 64); err == nil {
			return u
		}
	}
	f, _ := strconv.ParseFloat(lit, 64)
	return f
}

func parseTimestamp(v any) (time.Time, error) {
	switch ts := v.(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing storedAt %q: %w", ts, err)
		}
		return t.UTC(), nil
	case time.Time:
		// yaml.v3 resolves unquoted timestamps itself.
		return ts.UTC(), nil
	case int:
		return time.Unix(int64(ts), 0).UTC(), nil
	case int64:
		return time.Unix(ts, 0).UTC(), nil
	case uint64:
		return time.Unix(int64(ts), 0).UTC(), nil
	case float64:
		sec := int64(ts)
		nsec := int64((ts - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), nil
	case json.Number:
		if i, err := ts.Int64(); err == nil {
			return time.Unix(i, 0).UTC(), nil
		}
		f, err := ts.Float64()
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing storedAt %q: %w", ts, err)
		}
		return parseTimestamp(f)
	case nil:
		return time.Time{}, fmt.Errorf("missing storedAt")
	default:
		return time.Time{}, fmt.Errorf("unsupported storedAt type %T", v)
	}
}
