package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/spider-client/internal/config"
	"github.com/JakeFAU/spider-client/internal/credentials"
	"github.com/JakeFAU/spider-client/pkg/spider"
)

// urlOperation is a client call taking a single URL and request parameters.
type urlOperation func(c *spider.Client, ctx context.Context, url string, params *spider.RequestParams, contentType string) (any, error)

// newURLCmd builds a command that calls op for --url and prints the result.
func newURLCmd(use, short, failure string, op urlOperation) *cobra.Command {
	flags := &requestFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := op(appInstance.Client, cmd.Context(), flags.url, flags.params(cmd), appInstance.Config.ContentType)
			if err != nil {
				return fmt.Errorf("%s: %w", failure, err)
			}
			return printJSON(cmd, result)
		},
	}
	flags.register(cmd, true)
	return cmd
}

func newScrapeCmd() *cobra.Command {
	return newURLCmd("scrape", "Scrape a single page", "scraping URL", (*spider.Client).ScrapeURL)
}

func newLinksCmd() *cobra.Command {
	return newURLCmd("links", "Collect the links reachable from a URL", "retrieving links", (*spider.Client).Links)
}

func newScreenshotCmd() *cobra.Command {
	return newURLCmd("screenshot", "Capture screenshots of a URL", "taking screenshot", (*spider.Client).Screenshot)
}

func newExtractLeadsCmd() *cobra.Command {
	return newURLCmd("extract-leads", "Extract contact information from a URL", "extracting leads", (*spider.Client).ExtractContacts)
}

func newLabelCmd() *cobra.Command {
	return newURLCmd("label", "Classify the content of a URL", "labeling URL", (*spider.Client).Label)
}

func newGetCrawlStateCmd() *cobra.Command {
	return newURLCmd("get-crawl-state", "Show the state of a crawl", "getting crawl state", (*spider.Client).GetCrawlState)
}

func newUnblockCmd() *cobra.Command {
	return newURLCmd("unblock", "Fetch a page through the anti-bot unblocker", "unblocking URL", (*spider.Client).UnblockURL)
}

func newSearchCmd() *cobra.Command {
	flags := &requestFlags{}
	var query string
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the web and optionally crawl the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			params := &spider.SearchRequestParams{RequestParams: *flags.params(cmd)}
			if cmd.Flags().Changed("url") {
				params.URL = spider.Ptr(flags.url)
			}
			result, err := appInstance.Client.Search(cmd.Context(), query, params, appInstance.Config.ContentType)
			if err != nil {
				return fmt.Errorf("searching: %w", err)
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "search query")
	_ = cmd.MarkFlagRequired("query")
	flags.register(cmd, false)
	return cmd
}

func newTransformCmd() *cobra.Command {
	var (
		data         string
		returnFormat string
		readability  bool
	)
	cmd := &cobra.Command{
		Use:   "transform",
		Short: "Convert HTML into markdown or text",
		Long: `Transform converts HTML without fetching anything. --data accepts either a
JSON array of {"html": ..., "url": ...} objects or a raw HTML document.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			params := &spider.TransformParams{}
			if cmd.Flags().Changed("return-format") {
				params.ReturnFormat = spider.Ptr(spider.ReturnFormat(returnFormat))
			}
			if cmd.Flags().Changed("readability") {
				params.Readability = spider.Ptr(readability)
			}
			result, err := appInstance.Client.Transform(cmd.Context(), parseTransformData(data), params, appInstance.Config.ContentType)
			if err != nil {
				return fmt.Errorf("transforming data: %w", err)
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "HTML or JSON array of documents")
	cmd.Flags().StringVar(&returnFormat, "return-format", "", "output format (markdown, commonmark, text, raw, ...)")
	cmd.Flags().BoolVar(&readability, "readability", false, "apply readability before converting")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func parseTransformData(data string) []spider.DataParam {
	trimmed := strings.TrimSpace(data)
	if strings.HasPrefix(trimmed, "[") {
		var docs []spider.DataParam
		if err := json.Unmarshal([]byte(trimmed), &docs); err == nil {
			return docs
		}
	}
	return []spider.DataParam{{HTML: data}}
}

func newQueryCmd() *cobra.Command {
	var target queryFlags
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Look up a stored page by URL or domain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := target.request("querying records")
			if err != nil {
				return err
			}
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := appInstance.Client.Query(cmd.Context(), q)
			if err != nil {
				return fmt.Errorf("querying records: %w", err)
			}
			return printJSON(cmd, result)
		},
	}
	target.register(cmd)
	return cmd
}

// queryFlags address a stored page.
type queryFlags struct {
	url      string
	domain   string
	pathname string
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.url, "url", "u", "", "exact page URL")
	cmd.Flags().StringVarP(&f.domain, "domain", "d", "", "website domain")
	cmd.Flags().StringVar(&f.pathname, "pathname", "", "page path within the domain")
}

func (f *queryFlags) request(failure string) (*spider.QueryRequest, error) {
	if f.url == "" && f.domain == "" {
		return nil, fmt.Errorf("%s: --url or --domain is required", failure)
	}
	q := &spider.QueryRequest{}
	if f.url != "" {
		q.URL = spider.Ptr(f.url)
	}
	if f.domain != "" {
		q.Domain = spider.Ptr(f.domain)
	}
	if f.pathname != "" {
		q.Pathname = spider.Ptr(f.pathname)
	}
	return q, nil
}

func newGetCreditsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-credits",
		Short: "Show the remaining account credits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			result, err := appInstance.Client.GetCredits(cmd.Context())
			if err != nil {
				return fmt.Errorf("getting credits: %w", err)
			}
			return printJSON(cmd, result)
		},
	}
}

// newAuthCmd stores the --api-key value in the OS keychain. It never builds a
// client.
func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "auth",
		Short:       "Save an API key to the OS keychain",
		Example:     "  spider auth --api-key sk-...",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipClient: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			apiKey, _ := cmd.Flags().GetString("api-key")
			if apiKey == "" {
				return errors.New("saving API key: --api-key is required")
			}
			cfgFile, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("saving API key: load config: %w", err)
			}
			store := credentials.NewKeyringStore(cfg.Keyring.Service, cfg.Keyring.User)
			if err := store.Set(apiKey); err != nil {
				return fmt.Errorf("saving API key: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "API key saved to keychain entry %s/%s\n", store.Service, store.User)
			return nil
		},
	}
}
