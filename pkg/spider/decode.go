package spider

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/antchfx/xmlquery"
)

// Body formats recognized by Decode.
const (
	FormatNameJSON  = "json"
	FormatNameJSONL = "jsonl"
	FormatNameCSV   = "csv"
	FormatNameXML   = "xml"
	FormatNameText  = "text"
)

// DetectFormat maps a Content-Type header value to a body format. Matching is
// a case-insensitive substring test, so parameters such as charset are
// ignored. An empty header is treated as text.
func DetectFormat(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "jsonl"), strings.Contains(ct, "ndjson"):
		return FormatNameJSONL
	case strings.Contains(ct, "json"):
		return FormatNameJSON
	case strings.Contains(ct, "csv"):
		return FormatNameCSV
	case strings.Contains(ct, "xml"):
		return FormatNameXML
	default:
		return FormatNameText
	}
}

// Decode parses body according to contentType. Only malformed JSON is an
// error; the other formats degrade to a string value rather than fail.
func Decode(contentType string, body []byte) (any, error) {
	switch DetectFormat(contentType) {
	case FormatNameJSON:
		return decodeJSON(body)
	case FormatNameJSONL:
		return decodeJSONLines(body), nil
	case FormatNameCSV:
		return decodeCSV(body), nil
	case FormatNameXML:
		return decodeXML(body), nil
	default:
		return decodeText(body), nil
	}
}

func decodeJSON(body []byte) (any, error) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, &DecodeError{Format: FormatNameJSON, Err: err}
	}
	return v, nil
}

// decodeJSONLines drops lines that do not parse, or exceed maxLineSize, and
// keeps the rest in order. It shares the splitter used for streamed crawls.
func decodeJSONLines(body []byte) []any {
	records := []any{}
	// Reading from memory cannot fail.
	_, _ = consumeStream(bytes.NewReader(body), func(record any) {
		records = append(records, record)
	})
	return records
}

// decodeCSV returns one object per data row keyed by the header row. Any
// malformed row makes the whole body come back as a string.
func decodeCSV(body []byte) any {
	r := csv.NewReader(bytes.NewReader(body))
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return []any{}
	}
	if err != nil {
		return decodeText(body)
	}
	rows := []any{}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return decodeText(body)
		}
		row := make(map[string]any, len(header))
		for i, name := range header {
			row[name] = record[i]
		}
		rows = append(rows, row)
	}
	return rows
}

// decodeXML converts the document element into {name: value}. Attributes
// are keyed "@name", mixed text "#text", repeated children become arrays and
// text-only elements collapse to strings.
func decodeXML(body []byte) any {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return decodeText(body)
	}
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return map[string]any{xmlName(n): xmlValue(n)}
		}
	}
	return decodeText(body)
}

func xmlName(n *xmlquery.Node) string {
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Data
	}
	return n.Data
}

func xmlValue(n *xmlquery.Node) any {
	obj := map[string]any{}
	for _, a := range n.Attr {
		name := a.Name.Local
		if a.Name.Space != "" {
			name = a.Name.Space + ":" + name
		}
		obj["@"+name] = a.Value
	}

	var text strings.Builder
	var order []string
	children := map[string][]any{}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case xmlquery.ElementNode:
			name := xmlName(c)
			if _, seen := children[name]; !seen {
				order = append(order, name)
			}
			children[name] = append(children[name], xmlValue(c))
		case xmlquery.TextNode, xmlquery.CharDataNode:
			text.WriteString(c.Data)
		}
	}

	trimmed := strings.TrimSpace(text.String())
	if len(obj) == 0 && len(children) == 0 {
		return trimmed
	}
	for _, name := range order {
		vals := children[name]
		if len(vals) == 1 {
			obj[name] = vals[0]
		} else {
			obj[name] = vals
		}
	}
	if trimmed != "" {
		obj["#text"] = trimmed
	}
	return obj
}

func decodeText(body []byte) string {
	return lossyString(body)
}

// lossyString converts b to a string, writing U+FFFD for each maximal
// invalid subsequence.
func lossyString(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b) + 8)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r != utf8.RuneError || size > 1 {
			sb.Write(b[:size])
			b = b[size:]
			continue
		}
		sb.WriteRune(utf8.RuneError)
		b = b[invalidPrefix(b):]
	}
	return sb.String()
}

// invalidPrefix returns how many bytes of b form the start of a well-formed
// but truncated sequence, or 1 when b[0] cannot start one.
func invalidPrefix(b []byte) int {
	lo, hi, need := byte(0x80), byte(0xBF), 0
	switch c := b[0]; {
	case c >= 0xC2 && c <= 0xDF:
		need = 1
	case c == 0xE0:
		lo, need = 0xA0, 2
	case c >= 0xE1 && c <= 0xEC, c == 0xEE, c == 0xEF:
		need = 2
	case c == 0xED:
		hi, need = 0x9F, 2
	case c == 0xF0:
		lo, need = 0x90, 3
	case c >= 0xF1 && c <= 0xF3:
		need = 3
	case c == 0xF4:
		hi, need = 0x8F, 3
	default:
		return 1
	}
	n := 1
	for n <= need && n < len(b) {
		c := b[n]
		if n == 1 && (c < lo || c > hi) {
			break
		}
		if n > 1 && (c < 0x80 || c > 0xBF) {
			break
		}
		n++
	}
	return n
}
