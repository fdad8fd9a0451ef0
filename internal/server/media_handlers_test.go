package server

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"ynetwork/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func (ts *testServer) upload(t *testing.T, token, filename string, data []byte) apiResponse {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(fiber.MethodPost, "/api/upload", &body)
	req.Header.Set(fiber.HeaderContentType, mw.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	return ts.send(t, req)
}

func TestUploadMedia(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.user(t, "")
	_, otherToken := ts.user(t, "")

	res := ts.upload(t, token, "campus.png", pngBytes(t, 4, 3))
	require.Equal(t, fiber.StatusCreated, res.Status, string(res.Body))
	var media struct {
		Key      string `json:"key"`
		CDNURL   string `json:"cdn_url"`
		FileType string `json:"file_type"`
		FileName string `json:"file_name"`
		Width    int    `json:"width"`
		Height   int    `json:"height"`
	}
	res.decode(t, &media)
	assert.Equal(t, "image/png", media.FileType)
	assert.Equal(t, "campus.png", media.FileName)
	assert.Equal(t, 4, media.Width)
	assert.Equal(t, 3, media.Height)
	assert.True(t, strings.HasSuffix(media.Key, ".png"))
	require.True(t, strings.HasPrefix(media.CDNURL, devFilesPrefix+"/"))

	// Development uploads are served back from memory.
	res = ts.do(t, fiber.MethodGet, media.CDNURL, "", nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Equal(t, "image/png", res.Header.Get(fiber.HeaderContentType))

	res = ts.do(t, fiber.MethodGet, "/api/media", token, nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	var mine []map[string]any
	res.decode(t, &mine)
	assert.Len(t, mine, 1)

	deletePath := "/api/media/" + url.PathEscape(media.Key)
	res = ts.do(t, fiber.MethodDelete, deletePath, otherToken, nil)
	assert.Equal(t, fiber.StatusForbidden, res.Status)

	res = ts.do(t, fiber.MethodDelete, deletePath, token, nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Equal(t, "Media deleted", res.json(t)["message"])

	res = ts.do(t, fiber.MethodGet, media.CDNURL, "", nil)
	assert.Equal(t, fiber.StatusNotFound, res.Status)
}

func TestUploadMediaRejectsBadFiles(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.user(t, "")

	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"missing file", "", nil},
		{"plain text", "notes.png", []byte("just some text, not an image")},
		{"truncated png", "broken.png", pngBytes(t, 2, 2)[:20]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ts.upload(t, token, tt.file, tt.data)
			require.Equal(t, fiber.StatusBadRequest, res.Status, string(res.Body))
			var body struct {
				Fields map[string]string `json:"fields"`
			}
			res.decode(t, &body)
			assert.Contains(t, body.Fields, "file")
		})
	}
}

func TestUploadMediaFlagOff(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.FeatureFlags = "media_upload=off"
	})
	_, token := ts.user(t, "")

	res := ts.upload(t, token, "campus.png", pngBytes(t, 1, 1))
	assert.Equal(t, fiber.StatusNotFound, res.Status)
	assert.Equal(t, "This feature is not available", res.json(t)["message"])
}
