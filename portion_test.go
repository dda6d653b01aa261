package tia_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tia "github.com/talvisto/go-tia"
)

const twoFeedPage = `{
	"count": 2,
	"seqUpdate": 1999999,
	"items": [
		{"iocs": {"network": [{"ip": [1, 2], "url": "url.com"}, {"ip": [3], "url": ""}]}},
		{"iocs": {"network": [{"ip": [4, 5], "url": "new_url.com"}]}}
	]
}`

func pagePortion(t *testing.T, keys, iocsKeys tia.Object) *tia.Portion {
	t.Helper()
	p, err := tia.NewPortion([]byte(twoFeedPage), keys, iocsKeys)
	require.NoError(t, err)
	return p
}

func TestNewPortion(t *testing.T) {
	t.Run("page envelope", func(t *testing.T) {
		p := pagePortion(t, nil, nil)

		assert.Equal(t, 2, p.Size())
		assert.Len(t, p.Records(), 2)

		seq, ok := p.SeqUpdate()
		require.True(t, ok)
		assert.Equal(t, int64(1999999), seq)

		count, ok := p.Count()
		require.True(t, ok)
		assert.Equal(t, int64(2), count)

		assert.JSONEq(t, twoFeedPage, string(p.RawJSON))
	})

	t.Run("single feed body", func(t *testing.T) {
		p, err := tia.NewPortion([]byte(`{"id": "x-1", "name": "feed"}`), nil, nil)
		require.NoError(t, err)

		assert.Equal(t, 1, p.Size())
		_, ok := p.SeqUpdate()
		assert.False(t, ok)
		_, ok = p.Count()
		assert.False(t, ok)
	})

	t.Run("empty page", func(t *testing.T) {
		p, err := tia.NewPortion([]byte(`{"count": 0, "items": []}`), nil, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Size())
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := tia.NewPortion([]byte(`not json`), nil, nil)
		var parserErr *tia.ParserError
		require.ErrorAs(t, err, &parserErr)
	})
}

func TestPortionParse(t *testing.T) {
	keys := tia.Object{
		{Key: "network", Value: tia.Object{
			{Key: "ips", Value: tia.Path("iocs.network.ip")},
		}},
		{Key: "url", Value: tia.Path("iocs.network.url")},
		{Key: "type", Value: tia.Inject("network")},
	}

	t.Run("bound keys, one mapping per record", func(t *testing.T) {
		p := pagePortion(t, keys, nil)

		parsed, err := p.Parse(nil)
		require.NoError(t, err)
		require.Len(t, parsed, 2)

		first := map[string]any{"ips": []any{[]any{float64(1), float64(2)}, []any{float64(3)}}}
		assert.Equal(t, map[string]any{
			"network": first,
			"url":     []any{"url.com", ""},
			"type":    first,
		}, parsed[0])

		second := map[string]any{"ips": []any{[]any{float64(4), float64(5)}}}
		assert.Equal(t, map[string]any{
			"network": second,
			"url":     []any{"new_url.com"},
			"type":    second,
		}, parsed[1])
	})

	t.Run("per-call override leaves bound keys untouched", func(t *testing.T) {
		p := pagePortion(t, keys, nil)

		override := tia.Object{{Key: "urls", Value: tia.Path("iocs.network.url")}}
		parsed, err := p.Parse(override)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"urls": []any{"url.com", ""}}, parsed[0])

		// Next call without an override still uses the bound set.
		parsed, err = p.Parse(nil)
		require.NoError(t, err)
		assert.Contains(t, parsed[0], "network")
	})

	t.Run("no keys anywhere fails", func(t *testing.T) {
		p := pagePortion(t, nil, nil)

		_, err := p.Parse(nil)
		var parserErr *tia.ParserError
		require.ErrorAs(t, err, &parserErr)
	})

	t.Run("SetKeys rebinds for later calls", func(t *testing.T) {
		p := pagePortion(t, nil, nil)
		require.NoError(t, p.SetKeys(tia.Object{{Key: "url", Value: tia.Path("iocs.network.url")}}))

		parsed, err := p.Parse(nil)
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"url": []any{"url.com", ""}}, parsed[0])
	})

	t.Run("record with no match still appears, empty", func(t *testing.T) {
		body := `{"count": 2, "items": [{"iocs": {"network": [{"ip": [1]}]}}, {"other": true}]}`
		p, err := tia.NewPortion([]byte(body), tia.Object{{Key: "ips", Value: tia.Path("iocs.network.ip")}}, nil)
		require.NoError(t, err)

		parsed, err := p.Parse(nil)
		require.NoError(t, err)
		require.Len(t, parsed, 2)
		assert.Equal(t, map[string]any{"ips": []any{}}, parsed[1])
	})
}

func TestPortionBulkParse(t *testing.T) {
	t.Run("groups per record in template order", func(t *testing.T) {
		p := pagePortion(t, nil, nil)

		sets := []tia.Object{
			{{Key: "ips", Value: tia.Path("iocs.network.ip")}},
			{{Key: "urls", Value: tia.Path("iocs.network.url")}},
		}
		grouped, err := p.BulkParse(sets)
		require.NoError(t, err)
		require.Len(t, grouped, 2)

		require.Len(t, grouped[0], 2)
		assert.Contains(t, grouped[0][0], "ips")
		assert.Contains(t, grouped[0][1], "urls")
	})

	t.Run("colliding output keys stay distinct", func(t *testing.T) {
		p := pagePortion(t, nil, nil)

		sets := []tia.Object{
			{{Key: "value", Value: tia.Path("iocs.network.ip")}},
			{{Key: "value", Value: tia.Path("iocs.network.url")}},
		}
		grouped, err := p.BulkParse(sets)
		require.NoError(t, err)

		row := grouped[0]
		require.Len(t, row, 2)
		assert.NotEqual(t, row[0]["value"], row[1]["value"])
	})
}

func TestPortionIOCs(t *testing.T) {
	iocsKeys := tia.Object{
		{Key: "ips", Value: tia.Path("iocs.network.ip")},
		{Key: "urls", Value: tia.Path("iocs.network.url")},
	}

	t.Run("merges matches across the page", func(t *testing.T) {
		p := pagePortion(t, nil, iocsKeys)

		iocs, err := p.IOCs(nil)
		require.NoError(t, err)
		assert.Equal(t, map[string][]any{
			"ips":  {float64(1), float64(2), float64(3), float64(4), float64(5)},
			"urls": {"url.com", "new_url.com"},
		}, iocs)
	})

	t.Run("keeps duplicates and page order", func(t *testing.T) {
		body := `{"count": 2, "items": [{"ip": "9.9.9.9"}, {"ip": "9.9.9.9"}]}`
		p, err := tia.NewPortion([]byte(body), nil, tia.Object{{Key: "ips", Value: tia.Path("ip")}})
		require.NoError(t, err)

		iocs, err := p.IOCs(nil)
		require.NoError(t, err)
		assert.Equal(t, []any{"9.9.9.9", "9.9.9.9"}, iocs["ips"])
	})

	t.Run("drops placeholder values", func(t *testing.T) {
		body := `{"count": 1, "items": [{"ip": ["0.0.0.0", "255.255.255.255", "", null, "8.8.8.8"]}]}`
		p, err := tia.NewPortion([]byte(body), nil, tia.Object{{Key: "ips", Value: tia.Path("ip")}})
		require.NoError(t, err)

		iocs, err := p.IOCs(nil)
		require.NoError(t, err)
		assert.Equal(t, []any{"8.8.8.8"}, iocs["ips"])
	})

	t.Run("records with no match contribute nothing", func(t *testing.T) {
		body := `{"count": 2, "items": [{"ip": "1.1.1.1"}, {"other": true}]}`
		p, err := tia.NewPortion([]byte(body), nil, tia.Object{{Key: "ips", Value: tia.Path("ip")}})
		require.NoError(t, err)

		iocs, err := p.IOCs(nil)
		require.NoError(t, err)
		assert.Equal(t, []any{"1.1.1.1"}, iocs["ips"])
	})

	t.Run("nested IOC template is rejected", func(t *testing.T) {
		p := pagePortion(t, nil, nil)

		_, err := p.IOCs(tia.Object{
			{Key: "nested", Value: tia.Object{{Key: "x", Value: tia.Path("a")}}},
		})
		var parserErr *tia.ParserError
		require.ErrorAs(t, err, &parserErr)
	})

	t.Run("no keys anywhere fails", func(t *testing.T) {
		p := pagePortion(t, nil, nil)

		_, err := p.IOCs(nil)
		var parserErr *tia.ParserError
		require.ErrorAs(t, err, &parserErr)
	})
}

func TestParseFilters(t *testing.T) {
	body := `{"count": 3, "items": [
		{"kind": "phishing", "ip": "1.1.1.1"},
		{"kind": "ddos", "ip": "2.2.2.2"},
		{"ip": "3.3.3.3"}
	]}`
	keys := tia.Object{{Key: "ips", Value: tia.Path("ip")}}

	newFiltered := func(t *testing.T) *tia.Portion {
		p, err := tia.NewPortion([]byte(body), keys, keys)
		require.NoError(t, err)
		return p
	}

	t.Run("accept values", func(t *testing.T) {
		p := newFiltered(t)

		parsed, err := p.Parse(nil, tia.WithAcceptValues("kind", "phishing"))
		require.NoError(t, err)
		require.Len(t, parsed, 1)
		assert.Equal(t, "1.1.1.1", parsed[0]["ips"])
	})

	t.Run("ignore values", func(t *testing.T) {
		p := newFiltered(t)

		parsed, err := p.Parse(nil, tia.WithIgnoreValues("kind", "phishing"))
		require.NoError(t, err)
		assert.Len(t, parsed, 2)
	})

	t.Run("require key", func(t *testing.T) {
		p := newFiltered(t)

		parsed, err := p.Parse(nil, tia.WithRequireKey("kind"))
		require.NoError(t, err)
		assert.Len(t, parsed, 2)
	})

	t.Run("filters apply to IOC aggregation", func(t *testing.T) {
		p := newFiltered(t)

		iocs, err := p.IOCs(nil, tia.WithAcceptValues("kind", "ddos"))
		require.NoError(t, err)
		assert.Equal(t, []any{"2.2.2.2"}, iocs["ips"])
	})

	t.Run("bad filter path fails", func(t *testing.T) {
		p := newFiltered(t)

		_, err := p.Parse(nil, tia.WithAcceptValues("a..b", "x"))
		var parserErr *tia.ParserError
		require.ErrorAs(t, err, &parserErr)
	})

	t.Run("non-string scalar values never match", func(t *testing.T) {
		p, err := tia.NewPortion([]byte(`{"count": 2, "items": [
			{"kind": 7, "ip": "1.1.1.1"},
			{"kind": "ddos", "ip": "2.2.2.2"}
		]}`), keys, keys)
		require.NoError(t, err)

		parsed, err := p.Parse(nil, tia.WithAcceptValues("kind", "7", "ddos"))
		require.NoError(t, err)
		require.Len(t, parsed, 1)
		assert.Equal(t, "2.2.2.2", parsed[0]["ips"])

		parsed, err = p.Parse(nil, tia.WithIgnoreValues("kind", "7"))
		require.NoError(t, err)
		assert.Len(t, parsed, 2)
	})

	t.Run("list filter value fails", func(t *testing.T) {
		p, err := tia.NewPortion([]byte(`{"count": 1, "items": [
			{"kind": ["phishing"], "ip": "1.1.1.1"}
		]}`), keys, keys)
		require.NoError(t, err)

		_, err = p.Parse(nil, tia.WithAcceptValues("kind", "phishing"))
		var parserErr *tia.ParserError
		require.ErrorAs(t, err, &parserErr)
	})
}
