package s3blob

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/localoracle/internal/domain"
)

type fakeUploader struct {
	key, bucket, contentType string
	body                     []byte
	err                      error
}

func (f *fakeUploader) Upload(_ context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = aws.ToString(in.Key)
	f.bucket = aws.ToString(in.Bucket)
	f.contentType = aws.ToString(in.ContentType)
	f.body, _ = io.ReadAll(in.Body)
	return &manager.UploadOutput{}, nil
}

func testReport() domain.CycleReport {
	return domain.CycleReport{
		ID:          "abc-123",
		Workflow:    domain.WorkflowSettlement,
		ScheduledAt: time.Date(2026, 3, 7, 23, 50, 0, 0, time.UTC),
		Scanned:     4,
		Acted:       1,
		Summary:     "settled:1/4",
	}
}

func TestCycleKey(t *testing.T) {
	got := CycleKey("cycles", testReport())
	if want := "cycles/settlement/2026/03/07/abc-123.json"; got != want {
		t.Errorf("CycleKey = %q, want %q", got, want)
	}
	if got := CycleKey("", testReport()); got != "settlement/2026/03/07/abc-123.json" {
		t.Errorf("CycleKey without prefix = %q", got)
	}
}

func TestArchiveCycle(t *testing.T) {
	up := &fakeUploader{}
	a := &CycleArchiver{up: up, bucket: "oracle", prefix: "cycles"}

	if err := a.ArchiveCycle(context.Background(), testReport()); err != nil {
		t.Fatalf("ArchiveCycle: %v", err)
	}
	if up.bucket != "oracle" || up.key != "cycles/settlement/2026/03/07/abc-123.json" {
		t.Errorf("uploaded to %s/%s", up.bucket, up.key)
	}
	if up.contentType != "application/json" {
		t.Errorf("content type = %q", up.contentType)
	}
	var got domain.CycleReport
	if err := json.Unmarshal(up.body, &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got.Summary != "settled:1/4" {
		t.Errorf("summary = %q", got.Summary)
	}
}

func TestArchiveCycleError(t *testing.T) {
	a := &CycleArchiver{up: &fakeUploader{err: errors.New("denied")}, bucket: "b"}
	if err := a.ArchiveCycle(context.Background(), testReport()); err == nil {
		t.Fatal("expected upload error")
	}
}

func TestNormaliseEndpoint(t *testing.T) {
	tests := []struct {
		in     string
		ssl    bool
		expect string
	}{
		{"127.0.0.1:9000", false, "http://127.0.0.1:9000"},
		{"s3.example.com", true, "https://s3.example.com"},
		{"https://r2.example.com", false, "https://r2.example.com"},
		{"localhost:9000", true, "https://localhost:9000"},
	}
	for _, tt := range tests {
		if got := normaliseEndpoint(tt.in, tt.ssl); got != tt.expect {
			t.Errorf("normaliseEndpoint(%q, %v) = %q, want %q", tt.in, tt.ssl, got, tt.expect)
		}
	}
}

func TestClientOptions(t *testing.T) {
	var o s3.Options
	clientOptions(ClientConfig{Endpoint: "minio:9000", ForcePathStyle: true})(&o)
	if aws.ToString(o.BaseEndpoint) != "http://minio:9000" || !o.UsePathStyle {
		t.Errorf("minio options: endpoint %q path style %v", aws.ToString(o.BaseEndpoint), o.UsePathStyle)
	}

	o = s3.Options{}
	clientOptions(ClientConfig{Region: "eu-west-1"})(&o)
	if o.BaseEndpoint != nil || o.UsePathStyle {
		t.Errorf("aws options: endpoint %v path style %v", o.BaseEndpoint, o.UsePathStyle)
	}
}

func TestNewRequiresBucketAndRegion(t *testing.T) {
	if _, err := New(context.Background(), ClientConfig{Region: "us-east-1"}); err == nil {
		t.Error("missing bucket accepted")
	}
	if _, err := New(context.Background(), ClientConfig{Bucket: "b"}); err == nil {
		t.Error("missing region accepted")
	}
}
