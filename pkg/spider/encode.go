package spider

import (
	"encoding/json"
)

// Subject keys merged into request payloads.
const (
	subjectURL    = "url"
	subjectSearch = "search"
	subjectData   = "data"
)

// encodePayload flattens params into a generic map and merges the subject
// under key. Params that cannot be encoded degrade to an empty map. When
// single is set, limit is forced to 1.
func encodePayload(params any, key string, subject any, single bool) map[string]any {
	payload := paramsToMap(params)
	if key != "" {
		payload[key] = subject
	}
	if single {
		payload["limit"] = 1
	}
	return payload
}

func paramsToMap(params any) map[string]any {
	out := map[string]any{}
	if params == nil {
		return out
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return out
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil || decoded == nil {
		return out
	}
	return decoded
}
