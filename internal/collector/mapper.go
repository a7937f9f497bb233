package collector

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"mailman-exporter/internal/mailman"
)

// querier is satisfied by *sql.Tx and *sql.DB.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// mapQuery executes one catalog entry and builds its metric family.
// Labeled specs may legitimately return zero rows (an empty family, not an
// error); unlabeled specs must return exactly one single-column row.
func mapQuery(ctx context.Context, q querier, spec QuerySpec) (Family, error) {
	fam := Family{Name: spec.Name, Help: spec.Help, Labels: spec.Labels}

	rows, err := q.QueryContext(ctx, spec.SQL)
	if err != nil {
		return Family{}, fmt.Errorf("%s: %w", spec.Name, err)
	}
	defer func() { _ = rows.Close() }()

	if len(spec.Labels) == 0 {
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return Family{}, fmt.Errorf("%s: %w", spec.Name, err)
			}
			return Family{}, fmt.Errorf("%s: query returned no rows, want exactly one", spec.Name)
		}
		var value float64
		if err := rows.Scan(&value); err != nil {
			return Family{}, fmt.Errorf("%s: %w", spec.Name, err)
		}
		if rows.Next() {
			return Family{}, fmt.Errorf("%s: query returned more than one row, want exactly one", spec.Name)
		}
		if err := rows.Err(); err != nil {
			return Family{}, fmt.Errorf("%s: %w", spec.Name, err)
		}
		fam.Samples = []Sample{{Value: value}}
		return fam, nil
	}

	for rows.Next() {
		raw := make([]any, len(spec.Labels))
		dest := make([]any, 0, len(spec.Labels)+1)
		for i := range raw {
			dest = append(dest, &raw[i])
		}
		var value float64
		dest = append(dest, &value)
		if err := rows.Scan(dest...); err != nil {
			return Family{}, fmt.Errorf("%s: %w", spec.Name, err)
		}
		labels, err := labelValues(spec.Transform, raw)
		if err != nil {
			return Family{}, fmt.Errorf("%s: %w", spec.Name, err)
		}
		fam.Samples = append(fam.Samples, Sample{Labels: labels, Value: value})
	}
	if err := rows.Err(); err != nil {
		return Family{}, fmt.Errorf("%s: %w", spec.Name, err)
	}
	return fam, nil
}

// labelValues converts the raw label columns of one row into label values.
func labelValues(t Transform, raw []any) ([]string, error) {
	switch t {
	case TransformNone:
		out := make([]string, len(raw))
		for i, v := range raw {
			out[i] = stringify(v)
		}
		return out, nil
	case TransformRole, TransformRequestType, TransformBool:
		if len(raw) != 2 {
			return nil, fmt.Errorf("transform wants 2 label columns, got %d", len(raw))
		}
	default:
		return nil, fmt.Errorf("unknown transform %d", t)
	}

	switch t {
	case TransformRole:
		code, err := asInt(raw[1])
		if err != nil {
			return nil, fmt.Errorf("role column: %w", err)
		}
		return []string{stringify(raw[0]), mailman.RoleName(code)}, nil
	case TransformRequestType:
		code, err := asInt(raw[1])
		if err != nil {
			return nil, fmt.Errorf("request_type column: %w", err)
		}
		return []string{stringify(raw[0]), mailman.RequestTypeName(code)}, nil
	default: // TransformBool
		b, err := asBool(raw[1])
		if err != nil {
			return nil, fmt.Errorf("boolean column: %w", err)
		}
		return []string{stringify(raw[0]), strconv.FormatBool(b)}, nil
	}
}

func stringify(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

func asInt(v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case float64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("enum code has non-integer type %T", v)
	}
}

func asBool(v any) (bool, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	default:
		return false, fmt.Errorf("value has non-boolean type %T", v)
	}
}
