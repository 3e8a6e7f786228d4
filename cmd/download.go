package cmd

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/spider-client/internal/storage"
)

func newDownloadCmd() *cobra.Command {
	var (
		target queryFlags
		output string
		name   string
	)
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download a stored page",
		Long: `Download fetches a stored page by --url or --domain. Without --output the
raw bytes are written to stdout; with --output (file://dir, gs://bucket/prefix or
memory://) they are written to that store and the object URI is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := target.request("downloading file")
			if err != nil {
				return err
			}
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			data, contentType, err := appInstance.Client.Download(ctx, q)
			if err != nil {
				return fmt.Errorf("downloading file: %w", err)
			}

			if output == "" {
				if _, err := cmd.OutOrStdout().Write(data); err != nil {
					return fmt.Errorf("downloading file: write output: %w", err)
				}
				return nil
			}

			handle, err := storage.Open(ctx, output)
			if err != nil {
				return fmt.Errorf("downloading file: %w", err)
			}
			defer func() {
				if cerr := handle.Close(); cerr != nil {
					appInstance.Logger.Warn("Failed to close storage", zap.Error(cerr))
				}
			}()

			if name == "" {
				name = objectName(target)
			}
			uri, err := handle.PutObject(ctx, name, contentType, bytes.NewReader(data))
			if err != nil {
				return fmt.Errorf("downloading file: %w", err)
			}
			return printJSON(cmd, map[string]any{
				"uri":          uri,
				"content_type": contentType,
				"bytes":        len(data),
			})
		},
	}
	target.register(cmd)
	cmd.Flags().StringVar(&output, "output", "", "store the file at this URI instead of stdout")
	cmd.Flags().StringVar(&name, "name", "", "object name within --output (derived from the target by default)")
	return cmd
}

// objectName derives a relative object path from the download target.
func objectName(target queryFlags) string {
	base := target.domain
	if base == "" {
		base = target.url
		if i := strings.Index(base, "://"); i >= 0 {
			base = base[i+3:]
		}
	}
	name := path.Clean("/" + path.Join(base, target.pathname))
	name = strings.Trim(name, "/")
	if name == "" {
		return "download"
	}
	return name
}
