package spider

import (
	"encoding/json"
	"fmt"
	"time"
)

// RequestType selects how the remote service fetches a page.
type RequestType string

// Request types understood by the API.
const (
	RequestHTTP   RequestType = "http"
	RequestChrome RequestType = "chrome"
	RequestSmart  RequestType = "smart"
)

// ReturnFormat is the requested shape of page content.
type ReturnFormat string

// Supported return formats.
const (
	FormatRaw        ReturnFormat = "raw"
	FormatMarkdown   ReturnFormat = "markdown"
	FormatCommonmark ReturnFormat = "commonmark"
	FormatHTML2Text  ReturnFormat = "html2text"
	FormatText       ReturnFormat = "text"
	FormatScreenshot ReturnFormat = "screenshot"
	FormatXML        ReturnFormat = "xml"
	FormatBytes      ReturnFormat = "bytes"
)

// ReturnFormats requests one or more return formats. A single format is sent
// as a plain string, several as an array.
type ReturnFormats []ReturnFormat

// MarshalJSON implements json.Marshaler.
func (f ReturnFormats) MarshalJSON() ([]byte, error) {
	if len(f) == 1 {
		return json.Marshal(string(f[0]))
	}
	return json.Marshal([]ReturnFormat(f))
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *ReturnFormats) UnmarshalJSON(data []byte) error {
	var single ReturnFormat
	if err := json.Unmarshal(data, &single); err == nil {
		*f = ReturnFormats{single}
		return nil
	}
	var multi []ReturnFormat
	if err := json.Unmarshal(data, &multi); err != nil {
		return fmt.Errorf("return_format: %w", err)
	}
	*f = multi
	return nil
}

// ChunkingType selects the chunking algorithm.
type ChunkingType string

// Chunking algorithms.
const (
	ChunkByWords           ChunkingType = "bywords"
	ChunkByLines           ChunkingType = "bylines"
	ChunkByCharacterLength ChunkingType = "bycharacterlength"
	ChunkBySentence        ChunkingType = "bysentence"
)

// ChunkingAlg configures content chunking.
type ChunkingAlg struct {
	Type  ChunkingType `json:"type"`
	Value int          `json:"value"`
}

// Timeout is the seconds/nanos duration shape used by the API.
type Timeout struct {
	Secs  uint64 `json:"secs"`
	Nanos uint32 `json:"nanos"`
}

// NewTimeout converts a time.Duration into the API duration shape.
func NewTimeout(d time.Duration) Timeout {
	if d < 0 {
		d = 0
	}
	return Timeout{
		Secs:  uint64(d / time.Second),
		Nanos: uint32(d % time.Second),
	}
}

// IdleNetwork waits until the network has been idle for Timeout.
type IdleNetwork struct {
	Timeout Timeout `json:"timeout"`
}

// Selector waits for a CSS selector.
type Selector struct {
	Timeout  Timeout `json:"timeout"`
	Selector string  `json:"selector"`
}

// Delay is a hard wait.
type Delay struct {
	Timeout Timeout `json:"timeout"`
}

// WaitFor groups page wait conditions. Requires a chrome or smart request.
type WaitFor struct {
	IdleNetwork     *IdleNetwork `json:"idle_network,omitempty"`
	Selector        *Selector    `json:"selector,omitempty"`
	DOM             *Selector    `json:"dom,omitempty"`
	Delay           *Delay       `json:"delay,omitempty"`
	PageNavigations *bool        `json:"page_navigations,omitempty"`
}

// Viewport describes the emulated browser screen.
type Viewport struct {
	Width             uint32   `json:"width"`
	Height            uint32   `json:"height"`
	DeviceScaleFactor *float64 `json:"device_scale_factor,omitempty"`
	EmulatingMobile   bool     `json:"emulating_mobile"`
	IsLandscape       bool     `json:"is_landscape"`
	HasTouch          bool     `json:"has_touch"`
}

// CSSSelector is a named group of CSS selectors.
type CSSSelector struct {
	Name      string   `json:"name"`
	Selectors []string `json:"selectors"`
}

// CSSExtractionMap maps a path (or "*") to selector groups.
type CSSExtractionMap map[string][]CSSSelector

// WebhookSettings configures server-side webhooks.
type WebhookSettings struct {
	Destination           string `json:"destination"`
	OnCreditsDepleted     bool   `json:"on_credits_depleted"`
	OnCreditsHalfDepleted bool   `json:"on_credits_half_depleted"`
	OnWebsiteStatus       bool   `json:"on_website_status"`
	OnFind                bool   `json:"on_find"`
	OnFindMetadata        bool   `json:"on_find_metadata"`
}

// EventTracker toggles request/response tracking for browser requests.
type EventTracker struct {
	Responses *bool `json:"responses,omitempty"`
	Requests  *bool `json:"requests,omitempty"`
}

// RedirectPolicy controls how redirects are followed.
type RedirectPolicy string

// Redirect policies.
const (
	RedirectLoose  RedirectPolicy = "Loose"
	RedirectStrict RedirectPolicy = "Strict"
)

// MarshalJSON encodes the policy as {"type": "<policy>"}.
func (p RedirectPolicy) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
	}{Type: string(p)})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *RedirectPolicy) UnmarshalJSON(data []byte) error {
	var tagged struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("redirect_policy: %w", err)
	}
	*p = RedirectPolicy(tagged.Type)
	return nil
}

// AutomationType names a browser automation step.
type AutomationType string

// Automation steps.
const (
	AutomationEvaluate          AutomationType = "Evaluate"
	AutomationClick             AutomationType = "Click"
	AutomationWait              AutomationType = "Wait"
	AutomationWaitForNavigation AutomationType = "WaitForNavigation"
	AutomationWaitFor           AutomationType = "WaitFor"
	AutomationWaitForAndClick   AutomationType = "WaitForAndClick"
	AutomationScrollX           AutomationType = "ScrollX"
	AutomationScrollY           AutomationType = "ScrollY"
	AutomationFill              AutomationType = "Fill"
	AutomationInfiniteScroll    AutomationType = "InfiniteScroll"
)

// WebAutomation is one step of a browser automation script. Only the fields
// relevant to Type are set; use the constructors below.
type WebAutomation struct {
	Type     AutomationType `json:"type"`
	Code     string         `json:"code,omitempty"`
	Selector string         `json:"selector,omitempty"`
	Value    string         `json:"value,omitempty"`
	Duration *uint64        `json:"duration,omitempty"`
	Pixels   *int32         `json:"pixels,omitempty"`
	Times    *uint32        `json:"times,omitempty"`
}

// Evaluate runs JavaScript on the page.
func Evaluate(code string) WebAutomation {
	return WebAutomation{Type: AutomationEvaluate, Code: code}
}

// Click clicks the first element matching selector.
func Click(selector string) WebAutomation {
	return WebAutomation{Type: AutomationClick, Selector: selector}
}

// Wait pauses for the given number of milliseconds.
func Wait(ms uint64) WebAutomation {
	return WebAutomation{Type: AutomationWait, Duration: &ms}
}

// WaitForNavigation waits for the next navigation.
func WaitForNavigation() WebAutomation {
	return WebAutomation{Type: AutomationWaitForNavigation}
}

// WaitForSelector waits until selector exists.
func WaitForSelector(selector string) WebAutomation {
	return WebAutomation{Type: AutomationWaitFor, Selector: selector}
}

// WaitForAndClick waits for selector and clicks it.
func WaitForAndClick(selector string) WebAutomation {
	return WebAutomation{Type: AutomationWaitForAndClick, Selector: selector}
}

// ScrollX scrolls horizontally by pixels.
func ScrollX(pixels int32) WebAutomation {
	return WebAutomation{Type: AutomationScrollX, Pixels: &pixels}
}

// ScrollY scrolls vertically by pixels.
func ScrollY(pixels int32) WebAutomation {
	return WebAutomation{Type: AutomationScrollY, Pixels: &pixels}
}

// Fill types value into the element matching selector.
func Fill(selector, value string) WebAutomation {
	return WebAutomation{Type: AutomationFill, Selector: selector, Value: value}
}

// InfiniteScroll scrolls to the bottom the given number of times.
func InfiniteScroll(times uint32) WebAutomation {
	return WebAutomation{Type: AutomationInfiniteScroll, Times: &times}
}

// WebAutomationMap maps a URL path to automation steps.
type WebAutomationMap map[string][]WebAutomation

// ExecutionScriptsMap maps a URL path to a JavaScript snippet.
type ExecutionScriptsMap map[string]string

// RequestParams is the optional parameter bag shared by most endpoints.
// Unset fields are omitted from the payload so server defaults apply.
type RequestParams struct {
	URL                   *string             `json:"url,omitempty"`
	Request               *RequestType        `json:"request,omitempty"`
	Limit                 *uint32             `json:"limit,omitempty"`
	ReturnFormat          ReturnFormats       `json:"return_format,omitempty"`
	CountryCode           *string             `json:"country_code,omitempty"`
	TLD                   *bool               `json:"tld,omitempty"`
	Depth                 *uint32             `json:"depth,omitempty"`
	Cache                 *bool               `json:"cache,omitempty"`
	Scroll                *uint32             `json:"scroll,omitempty"`
	Budget                map[string]uint32   `json:"budget,omitempty"`
	Blacklist             []string            `json:"blacklist,omitempty"`
	Whitelist             []string            `json:"whitelist,omitempty"`
	Locale                *string             `json:"locale,omitempty"`
	Cookies               *string             `json:"cookies,omitempty"`
	Stealth               *bool               `json:"stealth,omitempty"`
	Headers               map[string]string   `json:"headers,omitempty"`
	AntiBot               *bool               `json:"anti_bot,omitempty"`
	Webhooks              *WebhookSettings    `json:"webhooks,omitempty"`
	Metadata              *bool               `json:"metadata,omitempty"`
	Viewport              *Viewport           `json:"viewport,omitempty"`
	Encoding              *string             `json:"encoding,omitempty"`
	Subdomains            *bool               `json:"subdomains,omitempty"`
	UserAgent             *string             `json:"user_agent,omitempty"`
	StoreData             *bool               `json:"store_data,omitempty"`
	GPTConfig             map[string]string   `json:"gpt_config,omitempty"`
	Fingerprint           *bool               `json:"fingerprint,omitempty"`
	Storageless           *bool               `json:"storageless,omitempty"`
	Readability           *bool               `json:"readability,omitempty"`
	ProxyEnabled          *bool               `json:"proxy_enabled,omitempty"` // Deprecated: use Proxy.
	RespectRobots         *bool               `json:"respect_robots,omitempty"`
	RootSelector          *string             `json:"root_selector,omitempty"`
	FullResources         *bool               `json:"full_resources,omitempty"`
	Text                  *string             `json:"text,omitempty"`
	Sitemap               *bool               `json:"sitemap,omitempty"`
	ExternalDomains       []string            `json:"external_domains,omitempty"`
	ReturnEmbeddings      *bool               `json:"return_embeddings,omitempty"`
	ReturnHeaders         *bool               `json:"return_headers,omitempty"`
	ReturnPageLinks       *bool               `json:"return_page_links,omitempty"`
	ReturnCookies         *bool               `json:"return_cookies,omitempty"`
	RequestTimeout        *uint8              `json:"request_timeout,omitempty"`
	RunInBackground       *bool               `json:"run_in_background,omitempty"`
	SkipConfigChecks      *bool               `json:"skip_config_checks,omitempty"`
	CSSExtractionMap      CSSExtractionMap    `json:"css_extraction_map,omitempty"`
	ChunkingAlg           *ChunkingAlg        `json:"chunking_alg,omitempty"`
	DisableIntercept      *bool               `json:"disable_intercept,omitempty"`
	WaitFor               *WaitFor            `json:"wait_for,omitempty"`
	ExecutionScripts      ExecutionScriptsMap `json:"execution_scripts,omitempty"`
	AutomationScripts     WebAutomationMap    `json:"automation_scripts,omitempty"`
	RedirectPolicy        *RedirectPolicy     `json:"redirect_policy,omitempty"`
	EventTracker          *EventTracker       `json:"event_tracker,omitempty"`
	CrawlTimeout          *Timeout            `json:"crawl_timeout,omitempty"`
	EvaluateOnNewDocument *string             `json:"evaluate_on_new_document,omitempty"`
	LiteMode              *bool               `json:"lite_mode,omitempty"`
	Proxy                 *ProxyType          `json:"proxy,omitempty"`
	RemoteProxy           *string             `json:"remote_proxy,omitempty"`
	MaxCreditsPerPage     *float64            `json:"max_credits_per_page,omitempty"`
}

// SearchRequestParams extends RequestParams with search options. Search is
// always replaced by the query passed to Client.Search.
type SearchRequestParams struct {
	RequestParams
	Search           string  `json:"search"`
	SearchLimit      *uint32 `json:"search_limit,omitempty"`
	FetchPageContent *bool   `json:"fetch_page_content,omitempty"`
	Location         *string `json:"location,omitempty"`
	Country          *string `json:"country,omitempty"`
	Language         *string `json:"language,omitempty"`
	Num              *uint32 `json:"num,omitempty"`
	Page             *uint32 `json:"page,omitempty"`
	WebsiteLimit     *uint32 `json:"website_limit,omitempty"`
	QuickSearch      *bool   `json:"quick_search,omitempty"`
}

// DataParam is one HTML document to transform.
type DataParam struct {
	HTML string  `json:"html"`
	URL  *string `json:"url,omitempty"`
}

// TransformParams configures the transform endpoint.
type TransformParams struct {
	ReturnFormat *ReturnFormat `json:"return_format,omitempty"`
	Readability  *bool         `json:"readability,omitempty"`
	Clean        *bool         `json:"clean,omitempty"`
	CleanFull    *bool         `json:"clean_full,omitempty"`
	Data         []DataParam   `json:"data,omitempty"`
}

// QueryRequest looks up a stored document.
type QueryRequest struct {
	URL      *string `json:"url,omitempty"`
	Domain   *string `json:"domain,omitempty"`
	Pathname *string `json:"pathname,omitempty"`
}

// SignURLRequest asks for a signed download URL of stored data.
type SignURLRequest struct {
	Domain   *string `json:"domain,omitempty"`
	Pathname *string `json:"pathname,omitempty"`
	Page     *uint32 `json:"page,omitempty"`
	Limit    *uint32 `json:"limit,omitempty"`
	Expires  *uint64 `json:"expires_in,omitempty"`
}

// Ptr returns a pointer to v. Handy for populating optional fields.
func Ptr[T any](v T) *T {
	return &v
}
