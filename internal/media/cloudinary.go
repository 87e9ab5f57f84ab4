package media

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

type CloudinaryStorage struct {
	cld *cloudinary.Cloudinary
}

func NewCloudinaryStorage(cloudinaryURL string) (*CloudinaryStorage, error) {
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("initialize cloudinary: %w", err)
	}
	return &CloudinaryStorage{cld: cld}, nil
}

func (s *CloudinaryStorage) Save(ctx context.Context, folder, filename string, r io.Reader) (Asset, error) {
	name := objectName(filename)

	resp, err := s.cld.Upload.Upload(ctx, r, uploader.UploadParams{
		PublicID:       strings.TrimSuffix(name, filepath.Ext(name)),
		Folder:         folder,
		ResourceType:   "image",
		Transformation: "q_auto,f_auto",
	})
	if err != nil {
		return Asset{}, fmt.Errorf("upload to cloudinary: %w", err)
	}
	if resp.Error.Message != "" {
		return Asset{}, fmt.Errorf("upload to cloudinary: %s", resp.Error.Message)
	}

	url := resp.SecureURL
	if url == "" {
		url = resp.URL
	}

	return Asset{URL: url, Key: resp.PublicID}, nil
}

func (s *CloudinaryStorage) Delete(ctx context.Context, asset Asset) error {
	if asset.Key == "" {
		return nil
	}

	result, err := s.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     asset.Key,
		ResourceType: "image",
	})
	if err != nil {
		return fmt.Errorf("delete from cloudinary: %w", err)
	}
	if result.Result != "ok" && result.Result != "not found" {
		return fmt.Errorf("delete from cloudinary: %s", result.Result)
	}
	return nil
}
