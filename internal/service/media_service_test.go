package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"ynetwork/internal/models"
	"ynetwork/internal/repository"
	"ynetwork/internal/storage"
	"ynetwork/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestMediaService_Upload(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := storage.NewMemoryStore("https://cdn.example.edu")
	svc := NewMediaService(repository.NewMediaRepository(db), store, 1)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "")

	data := pngBytes(t, 32, 16)
	m, err := svc.Upload(ctx, UploadMediaInput{UploaderID: u.ID, FileName: "../../avatar.png", Size: int64(len(data)), Body: bytes.NewReader(data)})
	require.NoError(t, err)
	assert.Equal(t, "image/png", m.FileType)
	assert.Equal(t, "avatar.png", m.FileName)
	assert.Equal(t, 32, m.Width)
	assert.Equal(t, 16, m.Height)
	assert.True(t, strings.HasPrefix(m.StorageKey, "media/"))
	assert.Equal(t, "https://cdn.example.edu/"+m.StorageKey, m.CDNURL)

	stored, ct, ok := store.Get(m.StorageKey)
	require.True(t, ok)
	assert.Equal(t, "image/png", ct)
	assert.Equal(t, data, stored)

	mine, err := svc.ListMine(ctx, u.ID, Pagination{})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	other := testutil.CreateUser(t, db, "")
	err = svc.Delete(ctx, other.ID, m.StorageKey)
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	require.NoError(t, svc.Delete(ctx, u.ID, m.StorageKey))
	assert.Zero(t, store.Len())
}

func TestMediaService_Rejects(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := storage.NewMemoryStore("https://cdn.example.edu")
	svc := NewMediaService(repository.NewMediaRepository(db), store, 1)
	ctx := context.Background()
	u := testutil.CreateUser(t, db, "")

	tests := []struct {
		name string
		body []byte
		size int64
	}{
		{"empty", []byte{}, 0},
		{"text", []byte("just some text"), 14},
		{"declared too large", []byte("x"), 2 << 20},
		{"actually too large", bytes.Repeat([]byte{0}, (1<<20)+1), 0},
		{"truncated png", pngBytes(t, 4, 4)[:20], 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, UploadMediaInput{UploaderID: u.ID, FileName: "f", Size: tt.size, Body: bytes.NewReader(tt.body)})
			var appErr *models.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, models.CodeValidation, appErr.Code)
			assert.Contains(t, appErr.Fields, "file")
		})
	}
	assert.Zero(t, store.Len())
}
