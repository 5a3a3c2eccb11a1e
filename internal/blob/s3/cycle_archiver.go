package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

// uploader is the subset of manager.Uploader the archiver needs.
type uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// CycleArchiver implements domain.CycleArchiver. Each report becomes one JSON
// object under <prefix>/<workflow>/YYYY/MM/DD/<id>.json.
type CycleArchiver struct {
	up     uploader
	bucket string
	prefix string
}

// NewCycleArchiver creates a CycleArchiver writing to c's bucket.
func NewCycleArchiver(c *Client) *CycleArchiver {
	return &CycleArchiver{
		up:     manager.NewUploader(c.s3),
		bucket: c.bucket,
		prefix: c.prefix,
	}
}

// CycleKey returns the object key for a report. Reports are partitioned by
// the trigger's scheduled time, not the wall clock.
func CycleKey(prefix string, r domain.CycleReport) string {
	day := r.ScheduledAt.UTC().Format("2006/01/02")
	return path.Join(prefix, string(r.Workflow), day, r.ID+".json")
}

// ArchiveCycle uploads the report as indented JSON.
func (a *CycleArchiver) ArchiveCycle(ctx context.Context, r domain.CycleReport) error {
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("s3blob: marshal cycle %s: %w", r.ID, err)
	}

	key := CycleKey(a.prefix, r)
	_, err = a.up.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3blob: upload %s: %w", key, err)
	}
	return nil
}

var _ domain.CycleArchiver = (*CycleArchiver)(nil)
