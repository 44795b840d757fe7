package storage

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// mockS3 is an in-memory S3Client. ListObjectsV2 returns at most pageSize
// keys per call to exercise pagination.
type mockS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	pageSize int
}

func newMockS3() *mockS3 {
	return &mockS3{objects: make(map[string][]byte), pageSize: 2}
}

func (m *mockS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &apiError{code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *mockS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *mockS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start, _ = slices.BinarySearch(keys, tok)
	}
	end := min(start+m.pageSize, len(keys))

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(keys[end])
	}
	return out, nil
}

type apiError struct{ code string }

func (e *apiError) Error() string                 { return e.code }
func (e *apiError) ErrorCode() string             { return e.code }
func (e *apiError) ErrorMessage() string          { return e.code }
func (e *apiError) ErrorFault() smithy.ErrorFault  { return smithy.FaultClient }

func TestS3PutGet(t *testing.T) {
	ctx := context.Background()
	mock := newMockS3()
	s := NewS3(mock, "bucket", "vocalis")

	if err := s.Put(ctx, "voiceprints/alice", []byte("model")); err != nil {
		t.Fatal(err)
	}
	if _, ok := mock.objects["vocalis/voiceprints/alice"]; !ok {
		t.Fatalf("prefix not applied: %v", mock.objects)
	}
	got, err := s.Get(ctx, "voiceprints/alice")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "model" {
		t.Errorf("Get = %q", got)
	}
}

func TestS3GetMissing(t *testing.T) {
	s := NewS3(newMockS3(), "bucket", "")
	if _, err := s.Get(context.Background(), "missing"); !IsNotExist(err) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestS3DeleteAndList(t *testing.T) {
	ctx := context.Background()
	s := NewS3(newMockS3(), "bucket", "p")
	for _, k := range []string{"vp/a", "vp/b", "vp/c", "vp/d", "vp/e", "misc/x"} {
		if err := s.Put(ctx, k, []byte(k)); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Delete(ctx, "vp/c"); err != nil {
		t.Fatal(err)
	}

	got, err := s.List(ctx, "vp")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"vp/a", "vp/b", "vp/d", "vp/e"}
	if !slices.Equal(got, want) {
		t.Errorf("List = %v, want %v", got, want)
	}
}

func TestIsS3NotFound(t *testing.T) {
	if !isS3NotFound(&apiError{code: "NotFound"}) {
		t.Error("NotFound not recognized")
	}
	if isS3NotFound(&apiError{code: "AccessDenied"}) {
		t.Error("AccessDenied treated as not found")
	}
}

func TestNewS3Client(t *testing.T) {
	c := NewS3Client(S3Config{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:9000",
		AccessKeyID:     "k",
		SecretAccessKey: "s",
		PathStyle:       true,
	})
	o := c.Options()
	if !o.UsePathStyle || aws.ToString(o.BaseEndpoint) != "http://localhost:9000" {
		t.Errorf("options not applied: %+v", o)
	}
	creds, err := o.Credentials.Retrieve(context.Background())
	if err != nil || creds.AccessKeyID != "k" {
		t.Errorf("creds = %+v, %v", creds, err)
	}
}
