package tia_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tia "github.com/talvisto/go-tia"
)

// singleFeed wraps one record as a portion, the shape Get returns.
func singleFeed(t *testing.T, raw string, keys tia.Object) *tia.Portion {
	t.Helper()
	p, err := tia.NewPortion([]byte(raw), keys, nil)
	require.NoError(t, err)
	return p
}

func TestTemplateRender(t *testing.T) {
	t.Run("flat path fields", func(t *testing.T) {
		p := singleFeed(t, `{"iocs":{"network":[{"ip":[1,2],"url":"url.com"},{"ip":[3],"url":""}]}}`, tia.Object{
			{Key: "ips", Value: tia.Path("iocs.network.ip")},
			{Key: "url", Value: tia.Path("iocs.network.url")},
		})

		parsed, err := p.Parse(nil)
		require.NoError(t, err)
		require.Len(t, parsed, 1)
		assert.Equal(t, map[string]any{
			"ips": []any{[]any{float64(1), float64(2)}, []any{float64(3)}},
			"url": []any{"url.com", ""},
		}, parsed[0])
	})

	t.Run("absent path renders as empty list", func(t *testing.T) {
		p := singleFeed(t, `{"a":1}`, tia.Object{
			{Key: "missing", Value: tia.Path("no.such.path")},
		})

		parsed, err := p.Parse(nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"missing": []any{}}, parsed[0])
	})

	t.Run("nested object shape", func(t *testing.T) {
		p := singleFeed(t, `{"a":{"ip":[1,2]}}`, tia.Object{
			{Key: "network", Value: tia.Object{
				{Key: "ips", Value: tia.Path("a.ip")},
			}},
		})

		parsed, err := p.Parse(nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"network": map[string]any{"ips": []any{float64(1), float64(2)}},
		}, parsed[0])
	})

	t.Run("injection reuses rendered sibling", func(t *testing.T) {
		p := singleFeed(t, `{"a":{"ip":[1,2]}}`, tia.Object{
			{Key: "network", Value: tia.Object{
				{Key: "ips", Value: tia.Path("a.ip")},
			}},
			{Key: "type", Value: tia.Inject("network")},
		})

		parsed, err := p.Parse(nil)
		require.NoError(t, err)
		rendered := map[string]any{"ips": []any{float64(1), float64(2)}}
		assert.Equal(t, map[string]any{
			"network": rendered,
			"type":    rendered,
		}, parsed[0])
	})

	t.Run("star prefix is injection shorthand", func(t *testing.T) {
		p := singleFeed(t, `{"a":{"ip":[1]}}`, tia.Object{
			{Key: "ips", Value: tia.Path("a.ip")},
			{Key: "type", Value: tia.Path("*ips")},
		})

		parsed, err := p.Parse(nil)
		require.NoError(t, err)
		assert.Equal(t, parsed[0]["ips"], parsed[0]["type"])
	})

	t.Run("forward injection fails", func(t *testing.T) {
		p := singleFeed(t, `{"a":1}`, tia.Object{
			{Key: "type", Value: tia.Inject("network")},
			{Key: "network", Value: tia.Path("a")},
		})

		_, err := p.Parse(nil)
		var tplErr *tia.TemplateError
		require.ErrorAs(t, err, &tplErr)
	})

	t.Run("injection of unknown key fails", func(t *testing.T) {
		p := singleFeed(t, `{"a":1}`, tia.Object{
			{Key: "a", Value: tia.Path("a")},
			{Key: "b", Value: tia.Inject("nope")},
		})

		_, err := p.Parse(nil)
		var tplErr *tia.TemplateError
		require.ErrorAs(t, err, &tplErr)
	})

	t.Run("alias names the output key", func(t *testing.T) {
		p := singleFeed(t, `{"a":{"ip":[1]}}`, tia.Object{
			{Value: tia.Path("a.ip:ips")},
		})

		parsed, err := p.Parse(nil)
		require.NoError(t, err)
		assert.Contains(t, parsed[0], "ips")
	})

	t.Run("bare path keys output by raw path", func(t *testing.T) {
		p := singleFeed(t, `{"a":{"ip":[1]}}`, tia.Object{
			{Value: tia.Path("a.ip")},
		})

		parsed, err := p.Parse(nil)
		require.NoError(t, err)
		assert.Contains(t, parsed[0], "a.ip")
	})

	t.Run("explicit key wins over alias", func(t *testing.T) {
		p := singleFeed(t, `{"a":{"ip":[1]}}`, tia.Object{
			{Key: "addresses", Value: tia.Path("a.ip:ips")},
		})

		parsed, err := p.Parse(nil)
		require.NoError(t, err)
		assert.Contains(t, parsed[0], "addresses")
		assert.NotContains(t, parsed[0], "ips")
	})

	t.Run("rendering is idempotent", func(t *testing.T) {
		p := singleFeed(t, `{"a":{"ip":[1,2]}}`, tia.Object{
			{Key: "ips", Value: tia.Path("a.ip")},
			{Key: "copy", Value: tia.Inject("ips")},
		})

		first, err := p.Parse(nil)
		require.NoError(t, err)
		second, err := p.Parse(nil)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("malformed path surfaces as parser error", func(t *testing.T) {
		p := singleFeed(t, `{"a":1}`, nil)

		_, err := p.Parse(tia.Object{{Key: "x", Value: tia.Path("a..b")}})
		var parserErr *tia.ParserError
		require.ErrorAs(t, err, &parserErr)
		var inputErr *tia.InputError
		require.ErrorAs(t, err, &inputErr)
	})
}
