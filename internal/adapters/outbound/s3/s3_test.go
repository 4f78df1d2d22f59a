package s3

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
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hephy-analysis/analysis-tools/internal/domain/entity"
	"github.com/hephy-analysis/analysis-tools/internal/ports/outbound"
	"github.com/hephy-analysis/analysis-tools/internal/testutil"
)

type mockListAPI struct {
	listObjectsV2Func func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

func (m *mockListAPI) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if m.listObjectsV2Func != nil {
		return m.listObjectsV2Func(ctx, params, optFns...)
	}
	return &s3.ListObjectsV2Output{}, nil
}

// mockWriterAPI stores objects in memory.
type mockWriterAPI struct {
	mu       sync.Mutex
	objects  map[string][]byte
	types    map[string]string
	putCalls int
	putErr   error
}

func newMockWriterAPI() *mockWriterAPI {
	return &mockWriterAPI{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (m *mockWriterAPI) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putErr != nil {
		return nil, m.putErr
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)
	m.objects[key] = data
	m.types[key] = aws.ToString(params.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (m *mockWriterAPI) HeadObject(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(params.Bucket)+"/"+aws.ToString(params.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func TestNewReader_NilLogger(t *testing.T) {
	reader := NewReader(aws.Config{}, nil)
	if reader.client == nil || reader.logger == nil {
		t.Error("expected client and default logger")
	}
}

func TestListFiles(t *testing.T) {
	ctx := context.Background()
	testTime := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		mockOutput *s3.ListObjectsV2Output
		mockErr    error
		wantCount  int
		wantErr    bool
	}{
		{
			name: "files and directory markers",
			mockOutput: &s3.ListObjectsV2Output{
				Contents: []types.Object{
					{Key: aws.String("rschoefb/www/tmb/"), Size: aws.Int64(0), LastModified: &testTime},
					{Key: aws.String("rschoefb/www/tmb/pt.png"), Size: aws.Int64(100), LastModified: &testTime},
					{Key: nil, Size: aws.Int64(100), LastModified: &testTime},
				},
			},
			wantCount: 1,
		},
		{
			name:       "empty bucket",
			mockOutput: &s3.ListObjectsV2Output{},
			wantCount:  0,
		},
		{
			name:    "api error",
			mockErr: errors.New("access denied"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &Reader{
				client: &mockListAPI{
					listObjectsV2Func: func(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
						return tt.mockOutput, tt.mockErr
					},
				},
				logger: slog.Default(),
			}

			files, err := reader.ListFiles(ctx, "plots", "rschoefb/")
			if (err != nil) != tt.wantErr {
				t.Fatalf("ListFiles() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(files) != tt.wantCount {
				t.Errorf("ListFiles() got %d files, want %d", len(files), tt.wantCount)
			}
		})
	}
}

func TestReader_WalkAndSort(t *testing.T) {
	ts := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	reader := &Reader{
		client: &mockListAPI{
			listObjectsV2Func: func(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
				return &s3.ListObjectsV2Output{
					Contents: []types.Object{
						{Key: aws.String("www/tmb/pt.png"), Size: aws.Int64(3), LastModified: &ts},
						{Key: aws.String("www/tmb/eta.png"), Size: aws.Int64(4), LastModified: &ts},
						{Key: aws.String("www/index.php"), Size: aws.Int64(5), LastModified: &ts},
					},
				}, nil
			},
		},
		logger: slog.Default(),
	}
	ctx := context.Background()

	files, err := reader.ListFiles(ctx, "plots", "www/")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 || files[0].Key != "www/index.php" || files[2].Key != "www/tmb/pt.png" {
		t.Errorf("expected files sorted by key, got %+v", files)
	}

	var seen int
	err = reader.Walk(ctx, "plots", "www/", func(outbound.S3File) error {
		seen++
		return ErrStopWalk
	})
	if err != nil || seen != 1 {
		t.Errorf("Walk() stopped after %d objects, err = %v", seen, err)
	}

	boom := errors.New("disk full")
	if err := reader.Walk(ctx, "plots", "www/", func(outbound.S3File) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected callback error, got %v", err)
	}
}

func TestWriter_ObjectSize(t *testing.T) {
	ctx := context.Background()
	api := newMockWriterAPI()
	w := &Writer{client: api, logger: slog.Default()}

	if size, err := w.ObjectSize(ctx, "plots", "missing.png"); err != nil || size != -1 {
		t.Errorf("ObjectSize() = %d, %v, expected -1", size, err)
	}
	if err := w.WriteFile(ctx, "plots", "a.png", strings.NewReader("abc"), "image/png"); err != nil {
		t.Fatal(err)
	}
	if size, err := w.ObjectSize(ctx, "plots", "a.png"); err != nil || size != 3 {
		t.Errorf("ObjectSize() = %d, %v, expected 3", size, err)
	}
}

func newTestTransferrer(t *testing.T, api *mockWriterAPI, skip bool) *Transferrer {
	t.Helper()
	tr, err := NewTransferrer(TransferrerConfig{Bucket: "plots", SkipUnchanged: skip}, &Writer{client: api, logger: slog.Default()})
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestNewTransferrer_Validation(t *testing.T) {
	w := &Writer{client: newMockWriterAPI(), logger: slog.Default()}
	if _, err := NewTransferrer(TransferrerConfig{}, w); err == nil {
		t.Error("expected error without bucket")
	}
	if _, err := NewTransferrer(TransferrerConfig{Bucket: "plots"}, nil); err == nil {
		t.Error("expected error without writer")
	}
}

func TestTransferrer_Transfer(t *testing.T) {
	ctx := context.Background()
	api := newMockWriterAPI()
	tr := newTestTransferrer(t, api, true)
	target, _ := entity.NewRemoteTarget("rschoefb", "", "")

	png := testutil.WriteFile(t, testutil.WebDir(t, "tmb"), "pt.png", "png-bytes")
	rp, err := entity.RsyncPath(png)
	if err != nil {
		t.Fatal(err)
	}

	req := entity.SyncRequest{ID: "1", Files: []string{rp}, Target: target}
	n, err := tr.Transfer(ctx, req)
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Transfer() = %d, expected 1", n)
	}

	key := "plots/rschoefb/www/tmb/pt.png"
	if string(api.objects[key]) != "png-bytes" {
		t.Errorf("object %s = %q, objects: %v", key, api.objects[key], api.objects)
	}
	if api.types[key] != "image/png" {
		t.Errorf("content type = %s", api.types[key])
	}

	n, err = tr.Transfer(ctx, req)
	if err != nil || n != 0 {
		t.Errorf("unchanged file should be skipped, got %d, %v", n, err)
	}
	if api.putCalls != 1 {
		t.Errorf("PutObject called %d times, expected 1", api.putCalls)
	}

	if got := tr.Destination(target); got != "s3://plots/rschoefb/www/" {
		t.Errorf("Destination() = %s", got)
	}
}

func TestTransferrer_Errors(t *testing.T) {
	ctx := context.Background()
	api := newMockWriterAPI()
	tr := newTestTransferrer(t, api, false)
	target, _ := entity.NewRemoteTarget("rschoefb", "", "")

	req := entity.SyncRequest{ID: "1", Files: []string{"/nonexistent/www/./a.png"}, Target: target}
	if _, err := tr.Transfer(ctx, req); err == nil {
		t.Error("expected error for missing local file")
	}

	req.Files = []string{"/home/u/plots/a.png"}
	if _, err := tr.Transfer(ctx, req); !errors.Is(err, entity.ErrNotSyncable) {
		t.Errorf("expected ErrNotSyncable, got %v", err)
	}

	file := testutil.WriteFile(t, testutil.WebDir(t, ""), "a.txt", "x")
	rp, _ := entity.RsyncPath(file)

	api.putErr = errors.New("slow down")
	if n, err := tr.Transfer(ctx, entity.SyncRequest{ID: "2", Files: []string{rp}, Target: target}); err == nil || n != 0 {
		t.Errorf("expected upload error, got %d, %v", n, err)
	}
}
