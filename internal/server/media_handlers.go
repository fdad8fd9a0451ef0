package server

import (
	"net/url"

	"ynetwork/internal/models"
	"ynetwork/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadMedia handles POST /api/upload
// @Summary Upload media
// @Description Multipart upload of an image or video in the "file" field
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Media file"
// @Security BearerAuth
// @Success 201 {object} models.Media
// @Failure 400 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Router /upload [post]
func (s *Server) UploadMedia(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return respondError(c, models.NewFieldValidationError(map[string]string{"file": "is required"}))
	}
	f, err := fh.Open()
	if err != nil {
		return respondError(c, models.NewValidationError("Could not read uploaded file"))
	}
	defer func() { _ = f.Close() }()

	media, err := s.mediaSvc.Upload(c.UserContext(), service.UploadMediaInput{
		UploaderID: currentUserID(c),
		FileName:   fh.Filename,
		Size:       fh.Size,
		Body:       f,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(media)
}

// ListMyMedia handles GET /api/media
func (s *Server) ListMyMedia(c *fiber.Ctx) error {
	items, err := s.mediaSvc.ListMine(c.UserContext(), currentUserID(c), parsePagination(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(items)
}

// DeleteMedia handles DELETE /api/media/*
func (s *Server) DeleteMedia(c *fiber.Ctx) error {
	key, err := url.PathUnescape(c.Params("*"))
	if err != nil || key == "" {
		return respondError(c, models.NewFieldValidationError(map[string]string{"key": "is required"}))
	}
	if err := s.mediaSvc.Delete(c.UserContext(), currentUserID(c), key); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Media deleted"})
}

// ServeDevFile handles GET /api/files/* when uploads are kept in memory.
func (s *Server) ServeDevFile(c *fiber.Ctx) error {
	data, contentType, ok := s.devFiles.Get(c.Params("*"))
	if !ok {
		return respondError(c, models.NewNotFoundError("File", c.Params("*")))
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(data)
}
