package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const iconFolder = "aura_icons"

// IconService uploads custom aura icons to Cloudinary. Emoji icons skip
// this entirely; only inline-image icons go through here.
type IconService struct {
	cld *cloudinary.Cloudinary
}

func NewIconService(cloudName, apiKey, apiSecret string) (*IconService, error) {
	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Cloudinary: %w", err)
	}
	return &IconService{cld: cld}, nil
}

// UploadIcon stores an icon image and returns its delivery URL. The
// public id is derived from the uid so re-uploads replace the old icon
// instead of piling up assets.
func (s *IconService) UploadIcon(ctx context.Context, uid string, file multipart.File) (string, error) {
	fileBytes, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	overwrite := true
	result, err := s.cld.Upload.Upload(ctx, fileBytes, uploader.UploadParams{
		Folder:       iconFolder,
		PublicID:     uid,
		Overwrite:    &overwrite,
		ResourceType: "image",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload icon: %w", err)
	}
	return result.SecureURL, nil
}

// UploadIconFromHeader is the multipart-form entry point.
func (s *IconService) UploadIconFromHeader(ctx context.Context, uid string, fileHeader *multipart.FileHeader) (string, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return s.UploadIcon(ctx, uid, file)
}
