// Package warehouse implements the BigQuery and Cloud Storage backends for
// the pipeline: query jobs with destination tables, extract jobs to a
// bucket, and object downloads. All state checks go against the live
// services; nothing is cached locally.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/sethvargo/go-retry"
	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/leapstack-labs/warepipe/internal/pipeline"
)

// Compile-time checks: Client backs both pipeline dependencies.
var _ pipeline.QueryEngine = (*Client)(nil)
var _ pipeline.ObjectStore = (*Client)(nil)

const (
	defaultPollInterval = 2 * time.Second
	defaultPollTimeout  = 30 * time.Minute
)

// Config carries connection settings for New.
type Config struct {
	// Project is the BigQuery billing and default table project.
	Project string
	// Dataset is the default dataset for destination tables. It must
	// already exist; New verifies this.
	Dataset string
	// Bucket receives table extracts. Optional; when set, New verifies it
	// exists.
	Bucket string
	// PollInterval and PollTimeout bound job status polling.
	PollInterval time.Duration
	PollTimeout  time.Duration
	// ClientOptions are passed to both underlying clients (credentials,
	// endpoint overrides in tests).
	ClientOptions []option.ClientOption
	Logger        *slog.Logger
}

// Client talks to BigQuery and Cloud Storage.
type Client struct {
	bq      *bq.Service
	gcs     *storage.Client
	project string
	dataset string
	bucket  string

	pollInterval time.Duration
	pollTimeout  time.Duration
	logger       *slog.Logger
}

// New connects and verifies that the configured dataset (and bucket, when
// set) exist. Missing ones are a setup error to fix manually, not something
// the pipeline creates on the fly.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Project == "" {
		return nil, fmt.Errorf("warehouse: project is required")
	}
	if cfg.Dataset == "" {
		return nil, fmt.Errorf("warehouse: dataset is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	bqSvc, err := bq.NewService(ctx, cfg.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("create BigQuery client: %w", err)
	}
	gcsClient, err := storage.NewClient(ctx, cfg.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("create Cloud Storage client: %w", err)
	}

	c := &Client{
		bq:           bqSvc,
		gcs:          gcsClient,
		project:      cfg.Project,
		dataset:      cfg.Dataset,
		bucket:       cfg.Bucket,
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
		logger:       logger,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.pollTimeout <= 0 {
		c.pollTimeout = defaultPollTimeout
	}

	if _, err := c.bq.Datasets.Get(cfg.Project, cfg.Dataset).Context(ctx).Do(); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("dataset %q does not exist in project %q, please create it manually", cfg.Dataset, cfg.Project)
		}
		return nil, fmt.Errorf("check dataset %q: %w", cfg.Dataset, err)
	}

	if cfg.Bucket != "" {
		if _, err := c.gcs.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
			if errors.Is(err, storage.ErrBucketNotExist) {
				return nil, fmt.Errorf("bucket %q does not exist, please create it manually", cfg.Bucket)
			}
			return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
		}
	}

	return c, nil
}

// TableExists reports whether the fully qualified table exists.
func (c *Client) TableExists(ctx context.Context, table string) (bool, error) {
	ref, err := c.tableRef(table)
	if err != nil {
		return false, err
	}
	_, err = c.bq.Tables.Get(ref.ProjectId, ref.DatasetId, ref.TableId).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("check table %q: %w", table, err)
	}
	return true, nil
}

// Execute runs sql as a query job writing into table, truncating any
// previous contents, and blocks until the job completes.
func (c *Client) Execute(ctx context.Context, sql, table string) error {
	ref, err := c.tableRef(table)
	if err != nil {
		return err
	}

	job := &bq.Job{
		Configuration: &bq.JobConfiguration{
			Query: &bq.JobConfigurationQuery{
				Query:             sql,
				DestinationTable:  ref,
				CreateDisposition: "CREATE_IF_NEEDED",
				WriteDisposition:  "WRITE_TRUNCATE",
				UseLegacySql:      googleapi.Bool(false),
			},
		},
	}

	inserted, err := c.bq.Jobs.Insert(c.project, job).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("submit query job for %q: %w", table, err)
	}
	c.logger.Debug("query job submitted", "table", table, "job_id", inserted.JobReference.JobId)
	return c.waitJob(ctx, inserted.JobReference)
}

// SetExpiration sets the table's expiration instant so abandoned outputs
// clean themselves up.
func (c *Client) SetExpiration(ctx context.Context, table string, expires time.Time) error {
	ref, err := c.tableRef(table)
	if err != nil {
		return err
	}
	patch := &bq.Table{ExpirationTime: expires.UnixMilli()}
	if _, err := c.bq.Tables.Patch(ref.ProjectId, ref.DatasetId, ref.TableId, patch).Context(ctx).Do(); err != nil {
		return fmt.Errorf("set expiration on %q: %w", table, err)
	}
	c.logger.Debug("table expiration set", "table", table, "expires", expires)
	return nil
}

// Extract runs an extract job writing table as gzipped CSV shards under
// prefix in the configured bucket, and blocks until it completes.
func (c *Client) Extract(ctx context.Context, table, prefix string) error {
	if c.bucket == "" {
		return fmt.Errorf("bucket not configured, extracts are disabled")
	}
	ref, err := c.tableRef(table)
	if err != nil {
		return err
	}

	job := &bq.Job{
		Configuration: &bq.JobConfiguration{
			Extract: &bq.JobConfigurationExtract{
				SourceTable:       ref,
				DestinationUris:   []string{extractURI(c.bucket, prefix)},
				DestinationFormat: "CSV",
				Compression:       "GZIP",
			},
		},
	}

	inserted, err := c.bq.Jobs.Insert(c.project, job).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("submit extract job for %q: %w", table, err)
	}
	c.logger.Debug("extract job submitted", "table", table, "job_id", inserted.JobReference.JobId)
	return c.waitJob(ctx, inserted.JobReference)
}

// Exists reports whether any object exists under prefix in the bucket.
func (c *Client) Exists(ctx context.Context, prefix string) (bool, error) {
	it := c.gcs.Bucket(c.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	_, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("list objects under %q: %w", prefix, err)
	}
	return true, nil
}

// Parts lists the extract object names under prefix.
func (c *Client) Parts(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	it := c.gcs.Bucket(c.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects under %q: %w", prefix, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// Download copies one bucket object to localPath.
func (c *Client) Download(ctx context.Context, object, localPath string) error {
	r, err := c.gcs.Bucket(c.bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("open object %q: %w", object, err)
	}
	defer r.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create %q: %w", localPath, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(localPath)
		return fmt.Errorf("download %q: %w", object, err)
	}
	return f.Close()
}

// waitJob polls a job until it reaches DONE or the poll timeout elapses.
func (c *Client) waitJob(ctx context.Context, ref *bq.JobReference) error {
	backoff := retry.WithMaxDuration(c.pollTimeout, retry.NewConstant(c.pollInterval))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		job, err := c.bq.Jobs.Get(ref.ProjectId, ref.JobId).Location(ref.Location).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("poll job %q: %w", ref.JobId, err)
		}
		if job.Status.State != "DONE" {
			return retry.RetryableError(fmt.Errorf("job %q still %s", ref.JobId, job.Status.State))
		}
		if res := job.Status.ErrorResult; res != nil {
			return fmt.Errorf("job %q failed: %s: %s", ref.JobId, res.Reason, res.Message)
		}
		return nil
	})
}

// tableRef parses "project.dataset.table", "dataset.table" or a bare table
// name, filling missing parts from the client configuration.
func (c *Client) tableRef(table string) (*bq.TableReference, error) {
	parts := strings.Split(strings.Trim(table, "`"), ".")
	switch len(parts) {
	case 1:
		return &bq.TableReference{ProjectId: c.project, DatasetId: c.dataset, TableId: parts[0]}, nil
	case 2:
		return &bq.TableReference{ProjectId: c.project, DatasetId: parts[0], TableId: parts[1]}, nil
	case 3:
		return &bq.TableReference{ProjectId: parts[0], DatasetId: parts[1], TableId: parts[2]}, nil
	default:
		return nil, fmt.Errorf("invalid table name %q", table)
	}
}

// extractURI is the wildcard destination pattern for extract jobs; BigQuery
// expands the * into numbered shards.
func extractURI(bucket, prefix string) string {
	return fmt.Sprintf("gs://%s/%s*.csv.gz", bucket, prefix)
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == 404
}
