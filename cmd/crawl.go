package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/spider-client/internal/config"
	"github.com/JakeFAU/spider-client/internal/publisher/pubsub"
	"github.com/JakeFAU/spider-client/internal/sink"
	"github.com/JakeFAU/spider-client/internal/storage"
	"github.com/JakeFAU/spider-client/pkg/spider"
)

// crawlOptions are the crawl-specific flags.
type crawlOptions struct {
	stream        bool
	output        string
	publishTopic  string
	pubsubProject string
}

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	flags := &requestFlags{}
	opts := &crawlOptions{}
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a website",
		Long: `Crawl follows links from --url up to --limit pages. With --stream every
page is printed as one JSON line as soon as it arrives. Records can also be
stored with --output (file://dir, gs://bucket/prefix or memory://) and
published with --publish-topic.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawlCommand(cmd, flags, opts)
		},
	}
	flags.register(cmd, true)
	cmd.Flags().BoolVar(&opts.stream, "stream", false, "stream pages as JSON lines")
	cmd.Flags().StringVar(&opts.output, "output", "", "store records at this URI (defaults to output.uri)")
	cmd.Flags().StringVar(&opts.publishTopic, "publish-topic", "", "publish records to this Pub/Sub topic (defaults to pubsub.topic_name)")
	cmd.Flags().StringVar(&opts.pubsubProject, "pubsub-project", "", "Pub/Sub project (defaults to pubsub.project_id)")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, flags *requestFlags, opts *crawlOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	logger := appInstance.Logger

	stored, err := buildStoreSinks(ctx, appInstance, opts)
	if err != nil {
		return fmt.Errorf("crawling URL: %w", err)
	}

	contentType := appInstance.Config.ContentType
	var records sink.Multi
	if opts.stream {
		if !cmd.Flags().Changed("content-type") && contentType == config.DefaultContentType {
			contentType = spider.ContentTypeJSONL
		}
		records = append(sink.Multi{sink.NewWriterSink(cmd.OutOrStdout()), sink.NewLogSink(logger)}, stored.sinks...)
	}

	var fn spider.RecordFunc
	if opts.stream {
		fn = func(record any) {
			if err := records.Consume(ctx, record); err != nil {
				logger.Warn("Failed to deliver crawl record", zap.Error(err))
			}
		}
	}

	result, crawlErr := appInstance.Client.CrawlURL(ctx, flags.url, flags.params(cmd), opts.stream, contentType, fn)
	if crawlErr == nil && !opts.stream {
		crawlErr = consumeResult(ctx, stored.sinks, result)
		if crawlErr == nil {
			crawlErr = printJSON(cmd, result)
		}
	}

	toClose := sink.Multi(stored.sinks)
	if opts.stream {
		toClose = records
	}
	closeErr := errors.Join(toClose.Close(ctx), stored.release())
	if crawlErr != nil {
		return fmt.Errorf("crawling URL: %w", crawlErr)
	}
	if closeErr != nil {
		return fmt.Errorf("crawling URL: %w", closeErr)
	}
	if stored.blob != nil && stored.blob.URI() != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "records stored at %s\n", stored.blob.URI())
	}
	return nil
}

// consumeResult feeds a buffered crawl result to sinks, one record per page.
func consumeResult(ctx context.Context, sinks []sink.Sink, result any) error {
	if len(sinks) == 0 || result == nil {
		return nil
	}
	pages, ok := result.([]any)
	if !ok {
		pages = []any{result}
	}
	for _, page := range pages {
		if err := sink.Multi(sinks).Consume(ctx, page); err != nil {
			return err
		}
	}
	return nil
}

// storeSinks are the durable destinations of a crawl plus their cleanup.
type storeSinks struct {
	sinks   []sink.Sink
	blob    *sink.BlobSink
	closers []func() error
}

func (s *storeSinks) release() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func buildStoreSinks(ctx context.Context, appInstance *App, opts *crawlOptions) (*storeSinks, error) {
	cfg := appInstance.Config
	out := &storeSinks{}

	uri := opts.output
	if uri == "" {
		uri = cfg.Output.URI
	}
	if uri != "" {
		handle, err := storage.Open(ctx, uri)
		if err != nil {
			return nil, err
		}
		out.blob = sink.NewBlobSink(handle, cfg.Output.Prefix, appInstance.Logger)
		out.sinks = append(out.sinks, out.blob)
		out.closers = append(out.closers, handle.Close)
	}

	topic := opts.publishTopic
	if topic == "" {
		topic = cfg.PubSub.TopicName
	}
	if topic != "" {
		project := opts.pubsubProject
		if project == "" {
			project = cfg.PubSub.ProjectID
		}
		if project == "" {
			_ = out.release()
			return nil, errors.New("--pubsub-project is required with --publish-topic")
		}
		pub, closeFn, err := pubsub.Open(ctx, project, topic, map[string]string{"source": "spider-cli"})
		if err != nil {
			_ = out.release()
			return nil, err
		}
		out.sinks = append(out.sinks, sink.NewPublishSink(pub, topic, closeFn))
	}
	return out, nil
}
