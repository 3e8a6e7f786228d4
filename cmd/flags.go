package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/spider-client/pkg/spider"
)

// requestFlags are shared by every command that targets a URL.
type requestFlags struct {
	url             string
	limit           uint32
	proxy           spider.ProxyType
	remoteProxy     string
	returnPageLinks bool
	liteMode        bool
}

func (f *requestFlags) register(cmd *cobra.Command, requireURL bool) {
	fs := cmd.Flags()
	fs.StringVarP(&f.url, "url", "u", "", "target URL")
	fs.Uint32VarP(&f.limit, "limit", "l", 0, "maximum number of pages")
	fs.Var(&f.proxy, "proxy", "proxy pool (residential, mobile, isp, ...)")
	fs.StringVar(&f.remoteProxy, "remote-proxy", "", "route requests through your own proxy URL")
	fs.BoolVarP(&f.returnPageLinks, "return-page-links", "r", false, "include links found on each page")
	fs.BoolVar(&f.liteMode, "lite-mode", false, "use the cheaper lite crawl mode")
	if requireURL {
		_ = cmd.MarkFlagRequired("url")
	}
}

// params returns request parameters built only from flags the user set.
func (f *requestFlags) params(cmd *cobra.Command) *spider.RequestParams {
	fs := cmd.Flags()
	p := &spider.RequestParams{}
	if fs.Changed("limit") {
		p.Limit = spider.Ptr(f.limit)
	}
	if fs.Changed("proxy") {
		p.Proxy = spider.Ptr(f.proxy)
	}
	if fs.Changed("remote-proxy") {
		p.RemoteProxy = spider.Ptr(f.remoteProxy)
	}
	if fs.Changed("return-page-links") {
		p.ReturnPageLinks = spider.Ptr(f.returnPageLinks)
	}
	if fs.Changed("lite-mode") {
		p.LiteMode = spider.Ptr(f.liteMode)
	}
	return p
}

// printJSON writes v to the command's stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
