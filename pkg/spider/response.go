package spider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ContentKind identifies which variant of Content is populated.
type ContentKind int

// Content variants.
const (
	ContentKindNone ContentKind = iota
	ContentKindString
	ContentKindBytes
	ContentKindObject
)

// ContentObject carries any subset of the available page formats.
type ContentObject struct {
	Raw        *string `json:"raw,omitempty"`
	Bytes      []byte  `json:"bytes,omitempty"`
	Text       *string `json:"text,omitempty"`
	Markdown   *string `json:"markdown,omitempty"`
	HTML2Text  *string `json:"html2text,omitempty"`
	Screenshot []byte  `json:"screenshot,omitempty"`
}

// Content is page content in one of three shapes: a plain string, raw bytes,
// or an object with several formats. Exactly one variant is set.
type Content struct {
	kind  ContentKind
	str   string
	bytes []byte
	obj   ContentObject
}

// StringContent wraps a plain string.
func StringContent(s string) Content {
	return Content{kind: ContentKindString, str: s}
}

// BytesContent wraps raw bytes.
func BytesContent(b []byte) Content {
	return Content{kind: ContentKindBytes, bytes: b}
}

// ObjectContent wraps a structured object.
func ObjectContent(o ContentObject) Content {
	return Content{kind: ContentKindObject, obj: o}
}

// Kind reports the populated variant.
func (c Content) Kind() ContentKind {
	return c.kind
}

// Object returns the structured variant, if that is what c holds.
func (c Content) Object() (ContentObject, bool) {
	return c.obj, c.kind == ContentKindObject
}

// AsString returns the best string view. Objects prefer text, then raw,
// then html2text, then markdown.
func (c Content) AsString() (string, bool) {
	switch c.kind {
	case ContentKindString:
		return c.str, true
	case ContentKindObject:
		for _, s := range []*string{c.obj.Text, c.obj.Raw, c.obj.HTML2Text, c.obj.Markdown} {
			if s != nil {
				return *s, true
			}
		}
	}
	return "", false
}

// AsBytes returns raw bytes if present. Objects prefer bytes over screenshot.
func (c Content) AsBytes() ([]byte, bool) {
	switch c.kind {
	case ContentKindBytes:
		return c.bytes, true
	case ContentKindObject:
		if c.obj.Bytes != nil {
			return c.obj.Bytes, true
		}
		if c.obj.Screenshot != nil {
			return c.obj.Screenshot, true
		}
	}
	return nil, false
}

// AsUTF8Lossy returns a textual view, decoding bytes with invalid sequences
// replaced.
func (c Content) AsUTF8Lossy() (string, bool) {
	switch c.kind {
	case ContentKindString:
		return c.str, true
	case ContentKindBytes:
		return lossyString(c.bytes), true
	case ContentKindObject:
		for _, s := range []*string{c.obj.Text, c.obj.Raw, c.obj.Markdown, c.obj.HTML2Text} {
			if s != nil {
				return *s, true
			}
		}
		if c.obj.Bytes != nil {
			return lossyString(c.obj.Bytes), true
		}
	}
	return "", false
}

// ExtractPlaintext returns AsString, falling back to AsUTF8Lossy.
func (c Content) ExtractPlaintext() (string, bool) {
	if s, ok := c.AsString(); ok {
		return s, true
	}
	return c.AsUTF8Lossy()
}

// HasScreenshot reports whether an object variant carries a screenshot.
func (c Content) HasScreenshot() bool {
	return c.kind == ContentKindObject && c.obj.Screenshot != nil
}

// IsEmpty reports whether every populated field is blank.
func (c Content) IsEmpty() bool {
	switch c.kind {
	case ContentKindString:
		return strings.TrimSpace(c.str) == ""
	case ContentKindBytes:
		return len(c.bytes) == 0
	case ContentKindObject:
		for _, s := range []*string{c.obj.Raw, c.obj.Text, c.obj.Markdown, c.obj.HTML2Text} {
			if s != nil && strings.TrimSpace(*s) != "" {
				return false
			}
		}
		return len(c.obj.Bytes) == 0 && len(c.obj.Screenshot) == 0
	}
	return true
}

// AvailableKeys lists the populated fields.
func (c Content) AvailableKeys() []string {
	switch c.kind {
	case ContentKindString:
		return []string{"string"}
	case ContentKindBytes:
		return []string{"bytes"}
	case ContentKindObject:
		keys := []string{}
		if c.obj.Raw != nil {
			keys = append(keys, "raw")
		}
		if c.obj.Bytes != nil {
			keys = append(keys, "bytes")
		}
		if c.obj.Text != nil {
			keys = append(keys, "text")
		}
		if c.obj.Markdown != nil {
			keys = append(keys, "markdown")
		}
		if c.obj.HTML2Text != nil {
			keys = append(keys, "html2text")
		}
		if c.obj.Screenshot != nil {
			keys = append(keys, "screenshot")
		}
		return keys
	}
	return nil
}

// MarshalJSON implements json.Marshaler. Bytes are written as an array of
// numbers so they round-trip through UnmarshalJSON.
func (c Content) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case ContentKindString:
		return json.Marshal(c.str)
	case ContentKindBytes:
		return json.Marshal(byteArray(c.bytes))
	case ContentKindObject:
		return json.Marshal(struct {
			Raw        *string   `json:"raw,omitempty"`
			Bytes      byteArray `json:"bytes,omitempty"`
			Text       *string   `json:"text,omitempty"`
			Markdown   *string   `json:"markdown,omitempty"`
			HTML2Text  *string   `json:"html2text,omitempty"`
			Screenshot byteArray `json:"screenshot,omitempty"`
		}{c.obj.Raw, c.obj.Bytes, c.obj.Text, c.obj.Markdown, c.obj.HTML2Text, c.obj.Screenshot})
	}
	return []byte("null"), nil
}

// UnmarshalJSON implements json.Unmarshaler. Strings, arrays of byte values
// and objects are accepted; null leaves c unset.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Content{}
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = StringContent(s)
	case '[':
		var b byteArray
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*c = BytesContent(b)
	case '{':
		var raw struct {
			Raw        *string   `json:"raw"`
			Bytes      byteField `json:"bytes"`
			Text       *string   `json:"text"`
			Markdown   *string   `json:"markdown"`
			HTML2Text  *string   `json:"html2text"`
			Screenshot byteField `json:"screenshot"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*c = ObjectContent(ContentObject{
			Raw:        raw.Raw,
			Bytes:      raw.Bytes,
			Text:       raw.Text,
			Markdown:   raw.Markdown,
			HTML2Text:  raw.HTML2Text,
			Screenshot: raw.Screenshot,
		})
	default:
		return fmt.Errorf("content: unexpected JSON token %q", data[0])
	}
	return nil
}

// byteArray encodes as a JSON array of numbers instead of base64.
type byteArray []byte

func (b byteArray) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

func (b *byteArray) UnmarshalJSON(data []byte) error {
	// []byte would decode from base64, so go through []int.
	var wide []int
	if err := json.Unmarshal(data, &wide); err != nil {
		return err
	}
	out := make([]byte, len(wide))
	for i, v := range wide {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte value %d out of range", v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

// byteField accepts either a string (taken verbatim) or an array of bytes.
type byteField []byte

func (b *byteField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = []byte(s)
		return nil
	}
	var arr byteArray
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	*b = []byte(arr)
	return nil
}

// ApiResponse is a single page result.
type ApiResponse struct {
	Content    Content            `json:"content"`
	Status     int                `json:"status"`
	URL        string             `json:"url"`
	Links      []string           `json:"links,omitempty"`
	RequestMap map[string]float64 `json:"request_map,omitempty"`
	Metadata   *Metadata          `json:"metadata,omitempty"`
	Costs      *Costs             `json:"costs,omitempty"`
	Error      *string            `json:"error,omitempty"`
}

// Costs is the credit accounting for a request.
type Costs struct {
	AICost               float64 `json:"ai_cost"`
	BytesTransferredCost float64 `json:"bytes_transferred_cost"`
	ComputeCost          float64 `json:"compute_cost"`
	FileCost             float64 `json:"file_cost"`
	TotalCost            float64 `json:"total_cost"`
	TransformCost        float64 `json:"transform_cost"`
}

// ComponentSum adds the individual cost components. The server guarantees it
// approximately equals TotalCost; the client does not check.
func (c Costs) ComponentSum() float64 {
	return c.AICost + c.BytesTransferredCost + c.ComputeCost + c.FileCost + c.TransformCost
}

// Metadata annotates a page result.
type Metadata struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	URL            *string         `json:"url,omitempty"`
	Image          *string         `json:"og_image,omitempty"`
	Keywords       []string        `json:"keywords,omitempty"`
	YTTranscript   *string         `json:"yt_transcript,omitempty"`
	Domain         *string         `json:"domain,omitempty"`
	Pathname       *string         `json:"pathname,omitempty"`
	OriginalURL    *string         `json:"original_url,omitempty"`
	UserID         *string         `json:"user_id,omitempty"`
	ResourceType   *string         `json:"resource_type,omitempty"`
	FileSize       *uint64         `json:"file_size,omitempty"`
	ExtractedData  json.RawMessage `json:"extracted_data,omitempty"`
	AutomationData json.RawMessage `json:"automation_data,omitempty"`
}

// SearchList is the typed shape of a search response.
type SearchList struct {
	Content []SearchEntry `json:"content"`
}

// SearchEntry is one search hit.
type SearchEntry struct {
	Description *string `json:"description,omitempty"`
	Title       *string `json:"title,omitempty"`
	URL         string  `json:"url"`
}

// DecodeInto re-encodes a decoded value into a typed target such as
// []ApiResponse or SearchList.
func DecodeInto(value any, target any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return &DecodeError{Format: "json", Err: err}
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return &DecodeError{Format: "json", Err: err}
	}
	return nil
}
