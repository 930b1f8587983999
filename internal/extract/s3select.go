// Package extract streams the entity key and timestamp columns out of a
// changed Parquet object. The projection runs server-side via S3 Select, so
// only the needed columns ever cross the wire and the file is never held in
// memory as a whole.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/rpattn/entity-lookup/internal/config"
	"github.com/rpattn/entity-lookup/internal/domain"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// Extractor opens a forward-only batch stream over one object.
type Extractor interface {
	Extract(ctx context.Context, objectPath string, desc domain.DatasetDescriptor) (Stream, error)
}

// Stream yields row batches in arrival order. It is finite, forward-only
// and non-restartable; callers must fully process a batch before calling
// Next again and must Close the stream when done.
type Stream interface {
	Next() bool
	Batch() domain.RowBatch
	Err() error
	Close() error
}

// Client issues projection queries against an S3-compatible object store.
type Client struct {
	s3 *s3.S3
}

// NewClient builds an S3 client from the configured endpoint and static
// credentials.
func NewClient(cfg config.S3) (*Client, error) {
	sess, err := session.NewSession(&aws.Config{
		Endpoint:         aws.String(cfg.Endpoint),
		Region:           aws.String(cfg.Region),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, ""),
		S3ForcePathStyle: aws.Bool(cfg.PathStyle),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store session: %w", err)
	}
	return &Client{s3: s3.New(sess)}, nil
}

// splitObjectPath treats the first path segment as the bucket and the rest
// as the object key.
func splitObjectPath(objectPath string) (bucket string, key string, err error) {
	trimmed := strings.TrimPrefix(objectPath, "/")
	bucket, key, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("path %q has no bucket and key segments", objectPath)
	}
	return bucket, key, nil
}

// selectExpression builds the column projection. Column names come from the
// registry and are interpolated as-is, matching what was registered for the
// file; there is no predicate.
func selectExpression(columns []string) string {
	return "SELECT " + strings.Join(columns, ", ") + " FROM S3Object"
}

// Extract issues one SelectObjectContent call for the object and returns
// the resulting batch stream. Transport and decode errors are terminal for
// the whole extraction; retry is the caller's concern.
func (c *Client) Extract(ctx context.Context, objectPath string, desc domain.DatasetDescriptor) (Stream, error) {
	bucket, key, err := splitObjectPath(objectPath)
	if err != nil {
		return nil, err
	}

	out, err := c.s3.SelectObjectContentWithContext(ctx, &s3.SelectObjectContentInput{
		Bucket:         aws.String(bucket),
		Key:            aws.String(key),
		ExpressionType: aws.String(s3.ExpressionTypeSql),
		Expression:     aws.String(selectExpression(desc.Columns())),
		InputSerialization: &s3.InputSerialization{
			Parquet: &s3.ParquetInput{},
		},
		OutputSerialization: &s3.OutputSerialization{
			CSV: &s3.CSVOutput{},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to select from %s/%s: %w", bucket, key, err)
	}

	return &selectStream{
		events: out.EventStream,
		desc:   desc,
		path:   objectPath,
	}, nil
}

// selectStream turns the Select event stream into parsed row batches. S3
// delivers Records events on byte boundaries, so a CSV row may span two
// events; carry holds the trailing partial line between fragments.
type selectStream struct {
	events *s3.SelectObjectContentEventStream
	desc   domain.DatasetDescriptor
	path   string
	carry  []byte
	batch  domain.RowBatch
	err    error
	done   bool
}

func (s *selectStream) Next() bool {
	if s.done || s.err != nil {
		return false
	}

	for event := range s.events.Events() {
		switch ev := event.(type) {
		case *s3.RecordsEvent:
			data := append(s.carry, ev.Payload...)
			cut := bytes.LastIndexByte(data, '\n')
			if cut < 0 {
				s.carry = data
				continue
			}
			s.carry = append([]byte(nil), data[cut+1:]...)

			batch, err := parseFragment(s.desc, s.path, data[:cut+1])
			if err != nil {
				s.err = err
				s.done = true
				return false
			}
			if batch.Len() == 0 {
				continue
			}
			s.batch = batch
			return true

		case *s3.EndEvent:
			// The final row may arrive without a trailing newline.
			if len(s.carry) > 0 {
				batch, err := parseFragment(s.desc, s.path, s.carry)
				s.carry = nil
				if err != nil {
					s.err = err
					s.done = true
					return false
				}
				if batch.Len() > 0 {
					s.batch = batch
					s.done = true
					return true
				}
			}
			s.done = true
			return false
		}
	}

	s.done = true
	if err := s.events.Err(); err != nil {
		s.err = fmt.Errorf("object store stream failed: %w", err)
	}
	return false
}

func (s *selectStream) Batch() domain.RowBatch {
	return s.batch
}

func (s *selectStream) Err() error {
	return s.err
}

func (s *selectStream) Close() error {
	return s.events.Close()
}
