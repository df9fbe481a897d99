package schema

import (
	"fmt"
	"time"
)

// Built-in scalar names registered in every schema.
const (
	ScalarInt       = "Int"
	ScalarFloat     = "Float"
	ScalarString    = "String"
	ScalarBoolean   = "Boolean"
	ScalarID        = "ID"
	ScalarTimestamp = "Timestamp"
)

// builtinScalars returns fresh descriptors for the built-in scalars so each
// registry owns its own copies.
func builtinScalars() []*Type {
	return []*Type{
		{Name: ScalarInt, Kind: KindScalar, Description: "Signed integer", Encode: encodeInt},
		{Name: ScalarFloat, Kind: KindScalar, Description: "IEEE-754 double", Encode: encodeFloat},
		{Name: ScalarString, Kind: KindScalar, Description: "UTF-8 string", Encode: encodeString},
		{Name: ScalarBoolean, Kind: KindScalar, Description: "true or false", Encode: encodeBoolean},
		{Name: ScalarID, Kind: KindScalar, Description: "Opaque identifier", Encode: encodeString},
		{Name: ScalarTimestamp, Kind: KindScalar,
			Description: "Instant in time, serialized as RFC 3339 with nanoseconds",
			Encode:      encodeTimestamp},
	}
}

func encodeInt(v any) (any, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return nil, fmt.Errorf("cannot encode %T as Int", v)
	}
}

func encodeFloat(v any) (any, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return nil, fmt.Errorf("cannot encode %T as Float", v)
	}
}

func encodeString(v any) (any, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case fmt.Stringer:
		return s.String(), nil
	default:
		return nil, fmt.Errorf("cannot encode %T as String", v)
	}
}

func encodeBoolean(v any) (any, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	return nil, fmt.Errorf("cannot encode %T as Boolean", v)
}

func encodeTimestamp(v any) (any, error) {
	switch ts := v.(type) {
	case time.Time:
		return ts.UTC().Format(time.RFC3339Nano), nil
	case *time.Time:
		if ts == nil {
			return nil, nil
		}
		return ts.UTC().Format(time.RFC3339Nano), nil
	case string:
		if _, err := time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("invalid Timestamp string: %w", err)
		}
		return ts, nil
	default:
		return nil, fmt.Errorf("cannot encode %T as Timestamp", v)
	}
}
