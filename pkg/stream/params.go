package stream

import (
	"fmt"
	"net/url"
	"strconv"
)

// PageSize is the fixed limit sent with every request.
const PageSize = 100

// Query parameter names.
const (
	LimitParam = "limit"
	gteSuffix  = "__gte"
)

// FilterParam returns the incremental filter parameter for a replication key.
func FilterParam(replicationKey string) string {
	return replicationKey + gteSuffix
}

// BuildParams returns the query parameters for the next request.
//
// limit is always 100. Every key of the next token's query replaces the
// default of the same name. When the stream has a replication key and a
// starting value is known, {replication_key}__gte is added unless the
// cursor already carries it.
func BuildParams(nextToken, replicationKey string, startingValue interface{}) (url.Values, error) {
	params := url.Values{}
	params.Set(LimitParam, strconv.Itoa(PageSize))

	if nextToken != "" {
		if err := validateToken(nextToken); err != nil {
			return nil, err
		}
		u, _ := url.Parse(nextToken)
		cursor, _ := url.ParseQuery(u.RawQuery)
		for k, vs := range cursor {
			params[k] = append([]string(nil), vs...)
		}
	}

	if replicationKey != "" {
		if v, ok := formatValue(startingValue); ok {
			key := FilterParam(replicationKey)
			if _, fromCursor := params[key]; !fromCursor {
				params.Set(key, v)
			}
		}
	}

	return params, nil
}

// formatValue renders a watermark for a query string. Nil and empty
// strings mean no value.
func formatValue(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, t != ""
	case fmt.Stringer:
		s := t.String()
		return s, s != ""
	default:
		return fmt.Sprint(t), true
	}
}
