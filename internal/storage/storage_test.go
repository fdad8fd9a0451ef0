package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func TestS3Store_Put(t *testing.T) {
	api := &mockS3{}
	store := newS3Store(api, "media", "https://cdn.example.edu/")

	api.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Bucket) == "media" &&
			aws.ToString(in.Key) == "uploads/a.png" &&
			aws.ToString(in.ContentType) == "image/png" &&
			aws.ToInt64(in.ContentLength) == 3
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	obj, err := store.Put(context.Background(), "uploads/a.png", "image/png", strings.NewReader("abc"), 3)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.edu/uploads/a.png", obj.URL)
	api.AssertExpectations(t)
}

func TestS3Store_BreakerOpensAfterFailures(t *testing.T) {
	api := &mockS3{}
	store := newS3Store(api, "media", "https://cdn.example.edu")
	boom := errors.New("connection refused")
	api.On("DeleteObject", mock.Anything, mock.Anything).Return(nil, boom)

	for i := 0; i < 5; i++ {
		err := store.Delete(context.Background(), "k")
		require.ErrorIs(t, err, boom)
	}

	err := store.Delete(context.Background(), "k")
	assert.ErrorIs(t, err, ErrUnavailable)
	api.AssertNumberOfCalls(t, "DeleteObject", 5)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore("http://localhost:8375/media/")
	obj, err := store.Put(context.Background(), "x/y.jpg", "image/jpeg", strings.NewReader("jpeg!"), -1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), obj.Size)
	assert.Equal(t, "http://localhost:8375/media/x/y.jpg", obj.URL)

	data, ct, ok := store.Get("x/y.jpg")
	require.True(t, ok)
	assert.Equal(t, "image/jpeg", ct)
	assert.Equal(t, "jpeg!", string(data))

	require.NoError(t, store.Delete(context.Background(), "x/y.jpg"))
	assert.Zero(t, store.Len())

	_, err = store.Put(context.Background(), "bad", "text/plain", io.MultiReader(errReader{}), 0)
	assert.Error(t, err)
}

type errReader struct{}

func (errReader) Read([]byte) (int, error) { return 0, errors.New("read failed") }
