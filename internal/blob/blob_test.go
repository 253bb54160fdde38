package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockS3Client struct {
	mu          sync.Mutex
	objects     map[string][]byte
	contentType map[string]string
	putErr      error
	delErr      error
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte), contentType: make(map[string]string)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	data, _ := io.ReadAll(input.Body)
	m.objects[*input.Key] = data
	m.contentType[*input.Key] = *input.ContentType
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) HeadObject(_ context.Context, input *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[*input.Key]; !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *mockS3Client) DeleteObject(_ context.Context, input *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	if m.delErr != nil {
		return nil, m.delErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, *input.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_PutAndDelete(t *testing.T) {
	ctx := context.Background()
	mock := newMockS3()
	store := newS3Store(mock, S3Config{Bucket: "finca", Endpoint: "https://s3.example.com/"})

	url, err := store.PutObject(ctx, "expenses/e1/abc.pdf", "application/pdf", strings.NewReader("%PDF-1.4"), 8)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.example.com/finca/expenses/e1/abc.pdf", url)
	assert.Equal(t, []byte("%PDF-1.4"), mock.objects["expenses/e1/abc.pdf"])
	assert.Equal(t, "application/pdf", mock.contentType["expenses/e1/abc.pdf"])

	require.NoError(t, store.DeleteObject(ctx, "expenses/e1/abc.pdf"))
	assert.Empty(t, mock.objects)
	assert.ErrorIs(t, store.DeleteObject(ctx, "expenses/e1/abc.pdf"), ErrNotFound)
}

func TestS3Store_PublicBaseURL(t *testing.T) {
	store := newS3Store(newMockS3(), S3Config{Bucket: "finca", PublicBaseURL: "https://cdn.example.com/files/"})
	url, err := store.PutObject(context.Background(), "expenses/e1/a b.png", "image/png", strings.NewReader("x"), 1)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/files/expenses/e1/a%20b.png", url)
}

func TestS3Store_Errors(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("connection reset")
	store := newS3Store(mock, S3Config{Bucket: "finca"})

	_, err := store.PutObject(context.Background(), "k", "image/png", strings.NewReader("x"), 1)
	assert.ErrorContains(t, err, "upload to s3")

	mock.objects["k"] = []byte("x")
	mock.delErr = errors.New("denied")
	assert.ErrorContains(t, store.DeleteObject(context.Background(), "k"), "delete s3 object")
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore("")

	url, err := store.PutObject(ctx, "expenses/e1/x.png", "image/png", strings.NewReader("png"), 3)
	require.NoError(t, err)
	assert.Equal(t, "memory://blobs/expenses/e1/x.png", url)

	obj, ok := store.Get("expenses/e1/x.png")
	require.True(t, ok)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, []byte("png"), obj.Data)

	_, err = store.PutObject(ctx, "short", "image/png", strings.NewReader("ab"), 3)
	assert.Error(t, err)

	require.NoError(t, store.DeleteObject(ctx, "expenses/e1/x.png"))
	assert.ErrorIs(t, store.DeleteObject(ctx, "expenses/e1/x.png"), ErrNotFound)
	assert.Zero(t, store.Len())
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryStore("").PutObject(ctx, "k", "image/png", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, context.Canceled)
}
