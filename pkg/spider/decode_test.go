package spider

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"application/json; charset=utf-8": FormatNameJSON,
		"Application/JSON":                FormatNameJSON,
		"application/jsonl":               FormatNameJSONL,
		"application/x-ndjson":            FormatNameJSONL,
		"text/csv; charset=utf-8":         FormatNameCSV,
		"application/xml":                 FormatNameXML,
		"text/xml":                        FormatNameXML,
		"text/html":                       FormatNameText,
		"":                                FormatNameText,
	}
	for header, want := range cases {
		assert.Equal(t, want, DetectFormat(header), header)
	}
}

func TestDecode_JSONWithCharset(t *testing.T) {
	t.Parallel()

	v, err := Decode("application/json; charset=utf-8", []byte(`[{"url":"https://example.com","status":200}]`))
	require.NoError(t, err)
	require.Equal(t, []any{map[string]any{"url": "https://example.com", "status": float64(200)}}, v)
}

func TestDecode_InvalidJSON(t *testing.T) {
	t.Parallel()

	_, err := Decode("application/json", []byte(`{"broken":`))
	require.Error(t, err)

	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	require.Equal(t, FormatNameJSON, decodeErr.Format)
}

func TestDecode_JSONLinesSkipsMalformed(t *testing.T) {
	t.Parallel()

	body := []byte("{\"n\":1}\n{not json\n{\"n\":3}\n")
	v, err := Decode("application/jsonl", body)
	require.NoError(t, err)
	require.Equal(t, []any{
		map[string]any{"n": float64(1)},
		map[string]any{"n": float64(3)},
	}, v)
}

func TestDecode_JSONLinesOversizedLineDoesNotStopDecoding(t *testing.T) {
	t.Parallel()

	var body bytes.Buffer
	body.WriteString("{\"n\":1}\n{\"big\":\"")
	body.Write(bytes.Repeat([]byte("x"), maxLineSize))
	body.WriteString("\"}\n{\"n\":3}\n")

	v, err := Decode("application/jsonl", body.Bytes())
	require.NoError(t, err)
	require.Equal(t, []any{
		map[string]any{"n": float64(1)},
		map[string]any{"n": float64(3)},
	}, v)
}

func TestDecode_JSONLinesWithoutTrailingNewline(t *testing.T) {
	t.Parallel()

	v, err := Decode("application/jsonl", []byte("{\"n\":1}\r\n\n{\"n\":2}"))
	require.NoError(t, err)
	require.Equal(t, []any{
		map[string]any{"n": float64(1)},
		map[string]any{"n": float64(2)},
	}, v)
}

func TestDecode_JSONLinesEmpty(t *testing.T) {
	t.Parallel()

	v, err := Decode("application/x-ndjson", nil)
	require.NoError(t, err)
	require.Equal(t, []any{}, v)
}

func TestDecode_CSV(t *testing.T) {
	t.Parallel()

	body := []byte("url,status\nhttps://a.example,200\nhttps://b.example,404\n")
	v, err := Decode("text/csv", body)
	require.NoError(t, err)
	require.Equal(t, []any{
		map[string]any{"url": "https://a.example", "status": "200"},
		map[string]any{"url": "https://b.example", "status": "404"},
	}, v)
}

func TestDecode_CSVBadRowFallsBackToText(t *testing.T) {
	t.Parallel()

	body := "url,status\nhttps://a.example,200,extra\n"
	v, err := Decode("text/csv", []byte(body))
	require.NoError(t, err)
	require.Equal(t, body, v)
}

func TestDecode_CSVEmpty(t *testing.T) {
	t.Parallel()

	v, err := Decode("text/csv", []byte(""))
	require.NoError(t, err)
	require.Equal(t, []any{}, v)
}

func TestDecode_XML(t *testing.T) {
	t.Parallel()

	body := []byte(`<?xml version="1.0"?>
<pages count="2">
  <page id="1"><url>https://a.example</url></page>
  <page id="2"><url>https://b.example</url></page>
  <note>done</note>
</pages>`)
	v, err := Decode("application/xml", body)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"pages": map[string]any{
			"@count": "2",
			"page": []any{
				map[string]any{"@id": "1", "url": "https://a.example"},
				map[string]any{"@id": "2", "url": "https://b.example"},
			},
			"note": "done",
		},
	}, v)
}

func TestDecode_XMLWithoutElementFallsBack(t *testing.T) {
	t.Parallel()

	v, err := Decode("text/xml", []byte("just words"))
	require.NoError(t, err)
	require.Equal(t, "just words", v)
}

func TestDecode_TextIsLossy(t *testing.T) {
	t.Parallel()

	v, err := Decode("text/plain", []byte("ok\xffdone"))
	require.NoError(t, err)
	require.Equal(t, "ok�done", v)
}

func TestLossyString_ReplacesEachInvalidSequence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "valid", in: "héllo", want: "héllo"},
		{name: "two stray bytes", in: "a\xff\xfeb", want: "a\ufffd\ufffdb"},
		{name: "truncated three byte sequence", in: "\xe2\x82A", want: "\ufffdA"},
		{name: "surrogate half", in: "\xed\xa0\x80", want: "\ufffd\ufffd\ufffd"},
		{name: "truncated at end", in: "ok\xf0\x9f\x98", want: "ok\ufffd"},
		{name: "literal replacement char kept", in: "\ufffd", want: "\ufffd"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, lossyString([]byte(tt.in)))
		})
	}

	v, err := Decode("text/plain", []byte("a\xff\xfeb"))
	require.NoError(t, err)
	require.Equal(t, "a\ufffd\ufffdb", v)
}
