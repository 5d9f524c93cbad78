package stream

import (
	"net/url"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tap-leaflink/pkg/errors"
)

func TestBuildParamsFirstPageIncremental(t *testing.T) {
	params, err := BuildParams("", "modified", "2024-01-01")
	require.NoError(t, err)

	assert.Equal(t, url.Values{
		"limit":         {"100"},
		"modified__gte": {"2024-01-01"},
	}, params)
}

func TestBuildParamsWithoutReplicationKey(t *testing.T) {
	for _, next := range []string{"", "https://x/?offset=100"} {
		params, err := BuildParams(next, "", "2024-01-01")
		require.NoError(t, err)
		for k := range params {
			assert.NotContains(t, k, "__gte")
		}
	}
}

func TestBuildParamsWithoutStartingValue(t *testing.T) {
	for _, start := range []interface{}{nil, ""} {
		params, err := BuildParams("", "modified", start)
		require.NoError(t, err)
		assert.Equal(t, url.Values{"limit": {"100"}}, params)
	}
}

func TestBuildParamsMergesCursor(t *testing.T) {
	next := "https://app.leaflink.com/api/v2/products/?limit=50&offset=100&cursor=abc&tag=a&tag=b"
	params, err := BuildParams(next, "", nil)
	require.NoError(t, err)

	assert.Equal(t, url.Values{
		"limit":  {"50"},
		"offset": {"100"},
		"cursor": {"abc"},
		"tag":    {"a", "b"},
	}, params)
}

func TestBuildParamsCursorOverridesDefaultsOnly(t *testing.T) {
	next := "https://x/?cursor=abc"
	params, err := BuildParams(next, "modified", "2024-01-01")
	require.NoError(t, err)

	assert.Equal(t, "100", params.Get("limit"))
	assert.Equal(t, "abc", params.Get("cursor"))
	assert.Equal(t, "2024-01-01", params.Get("modified__gte"), "filter is resent on later pages")
}

// When the cursor and the incremental filter name the same key, the
// cursor's value is kept.
func TestBuildParamsCursorWinsOverFilter(t *testing.T) {
	next := "https://x/?modified__gte=2023-06-01&offset=100"
	params, err := BuildParams(next, "modified", "2024-01-01")
	require.NoError(t, err)

	assert.Equal(t, []string{"2023-06-01"}, params["modified__gte"])
}

func TestBuildParamsNumberStartingValue(t *testing.T) {
	params, err := BuildParams("", "id", gojson.Number("42"))
	require.NoError(t, err)
	assert.Equal(t, "42", params.Get("id__gte"))
}

func TestBuildParamsMalformedToken(t *testing.T) {
	_, err := BuildParams("https://x/?a=%zz", "", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypePagination))
}
