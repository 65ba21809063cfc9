package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// fakeS3 is an in-memory s3API
type fakeS3 struct {
	mu          sync.Mutex
	objects     map[string]fakeObject
	headErr     error
	failDelete  map[string]bool
	deleteCalls int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string]fakeObject), failDelete: make(map[string]bool)}
}

func (f *fakeS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.headErr != nil {
		return nil, f.headErr
	}
	if _, ok := f.objects[aws.ToString(params.Key)]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(params.Key)] = fakeObject{
		data:        data,
		contentType: aws.ToString(params.ContentType),
		modified:    time.Now(),
	}
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls++
	out := &s3.DeleteObjectsOutput{}
	for _, id := range params.Delete.Objects {
		key := aws.ToString(id.Key)
		if f.failDelete[key] {
			out.Errors = append(out.Errors, types.Error{Key: id.Key, Message: aws.String("AccessDenied")})
			continue
		}
		delete(f.objects, key)
	}
	return out, nil
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for key, obj := range f.objects {
		if !strings.HasPrefix(key, aws.ToString(params.Prefix)) {
			continue
		}
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(obj.data))),
			LastModified: aws.Time(obj.modified),
		})
	}
	return out, nil
}

type fakePresigner struct {
	last *s3.GetObjectInput
}

func (p *fakePresigner) PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	p.last = params
	return &v4.PresignedHTTPRequest{URL: "https://minio.local/cineflix-artwork/" + aws.ToString(params.Key) + "?X-Amz-Signature=abc"}, nil
}

func newTestStore() (*ArtworkStore, *fakeS3, *fakePresigner) {
	client := newFakeS3()
	presign := &fakePresigner{}
	return newArtworkStore(client, presign, "cineflix-artwork", 0), client, presign
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestArtworkStoreKey(t *testing.T) {
	store, _, _ := newTestStore()
	if got := store.Key(550, "fight-club-backdrop.jpg"); got != "artwork/550/fight-club-backdrop.jpg" {
		t.Errorf("Key() = %q", got)
	}
	if got := store.Key(550, "/x.jpg"); got != "artwork/550/x.jpg" {
		t.Errorf("Key() with leading slash = %q", got)
	}
	if store.PresignedURLExpiry() != 15*time.Minute {
		t.Errorf("default expiry = %v", store.PresignedURLExpiry())
	}
}

func TestArtworkStorePutExists(t *testing.T) {
	store, client, _ := newTestStore()
	ctx := context.Background()
	key := store.Key(1, "a.jpg")

	ok, err := store.Exists(ctx, key)
	if err != nil || ok {
		t.Fatalf("Exists() before put = %v, %v", ok, err)
	}

	if err := store.Put(ctx, key, []byte("jpeg"), ""); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if client.objects[key].contentType != "image/jpeg" {
		t.Errorf("content type = %q", client.objects[key].contentType)
	}

	ok, err = store.Exists(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Exists() after put = %v, %v", ok, err)
	}
}

func TestArtworkStoreExistsError(t *testing.T) {
	store, client, _ := newTestStore()
	client.headErr = errors.New("connection refused")

	if _, err := store.Exists(context.Background(), "artwork/1/a.jpg"); err == nil {
		t.Error("Exists() expected error")
	}
}

func TestArtworkStorePresignGet(t *testing.T) {
	store, _, presign := newTestStore()

	url, err := store.PresignGet(context.Background(), "artwork/1/a.jpg", "a.jpg")
	if err != nil {
		t.Fatalf("PresignGet() error = %v", err)
	}
	if !strings.Contains(url, "artwork/1/a.jpg") {
		t.Errorf("url = %q", url)
	}
	if got := aws.ToString(presign.last.ResponseContentDisposition); got != "attachment; filename=a.jpg" {
		t.Errorf("content disposition = %q", got)
	}
}

func TestArtworkStoreDeleteByKeysBatches(t *testing.T) {
	store, client, _ := newTestStore()

	keys := make([]string, 0, 2500)
	for i := range 2500 {
		key := store.Key(int64(i+1), "a.jpg")
		client.objects[key] = fakeObject{data: []byte("x")}
		keys = append(keys, key)
	}
	client.failDelete[keys[10]] = true

	deleted, failures, err := store.DeleteByKeys(context.Background(), keys)
	if err != nil {
		t.Fatalf("DeleteByKeys() error = %v", err)
	}
	if client.deleteCalls != 3 {
		t.Errorf("delete calls = %d, want 3", client.deleteCalls)
	}
	if deleted != 2499 || len(failures) != 1 {
		t.Errorf("deleted = %d failures = %v", deleted, failures)
	}
}

func TestCleanupJobRemovesExpiredArtwork(t *testing.T) {
	store, client, _ := newTestStore()
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)

	client.objects["artwork/1/old.jpg"] = fakeObject{data: []byte("12345"), modified: now.Add(-40 * 24 * time.Hour)}
	client.objects["artwork/2/new.jpg"] = fakeObject{data: []byte("123"), modified: now.Add(-time.Hour)}
	client.objects["other/3/old.jpg"] = fakeObject{data: []byte("1"), modified: now.Add(-90 * 24 * time.Hour)}

	job := NewCleanupJob(store, CleanupConfig{Enabled: true}, discardLogger())
	job.now = func() time.Time { return now }

	result := job.RunNow(context.Background())

	if result.FilesScanned != 2 {
		t.Errorf("FilesScanned = %d, want 2", result.FilesScanned)
	}
	if result.Expired != 1 || result.Deleted != 1 {
		t.Errorf("Expired = %d Deleted = %d", result.Expired, result.Deleted)
	}
	if result.BytesFreed != 5 {
		t.Errorf("BytesFreed = %d, want 5", result.BytesFreed)
	}
	if _, ok := client.objects["artwork/2/new.jpg"]; !ok {
		t.Error("fresh artwork was deleted")
	}
	if _, ok := client.objects["other/3/old.jpg"]; !ok {
		t.Error("object outside the artwork prefix was deleted")
	}
	if job.LastResult() != result {
		t.Error("LastResult() not recorded")
	}
}

func TestCleanupJobStartStop(t *testing.T) {
	store, _, _ := newTestStore()

	job := NewCleanupJob(store, CleanupConfig{Interval: time.Hour, Enabled: true}, discardLogger())
	if err := job.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !job.IsRunning() {
		t.Error("expected job to be running")
	}
	if err := job.Start(); err == nil {
		t.Error("second Start() expected error")
	}
	job.Stop()
	if job.IsRunning() {
		t.Error("expected job to be stopped")
	}
	job.Stop()
}

func TestCleanupJobDisabled(t *testing.T) {
	store, _, _ := newTestStore()

	job := NewCleanupJob(store, CleanupConfig{Enabled: false}, discardLogger())
	if err := job.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if job.IsRunning() {
		t.Error("disabled job should not run")
	}
}
