package service

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/timmy/pinfeed/internal/domain"
	"github.com/timmy/pinfeed/internal/logger"
	"github.com/timmy/pinfeed/internal/storage"
	_ "golang.org/x/image/webp"
)

// MediaService attaches uploaded images to pins and vectorizes them.
type MediaService struct {
	pins     PinStore
	storage  storage.ObjectStorage
	embedder Embedder
	index    VectorIndex
	logger   *logger.Logger
}

// NewMediaService creates a media service. index may be nil when the vector
// mirror is disabled.
func NewMediaService(
	pins PinStore,
	objectStorage storage.ObjectStorage,
	embedder Embedder,
	index VectorIndex,
	log *logger.Logger,
) *MediaService {
	return &MediaService{
		pins:     pins,
		storage:  objectStorage,
		embedder: embedder,
		index:    index,
		logger:   log,
	}
}

func (s *MediaService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// UploadPinMedia stores an image for a pin and records its embedding.
//
// The image is validated and vectorized before anything is persisted. A
// failure after the upload removes the stored object again if this call
// created it, and a database failure also removes the mirrored vector.
func (s *MediaService) UploadPinMedia(ctx context.Context, pinID string, data []byte, filename string) (*domain.Pin, error) {
	ctx = logger.SetPinID(ctx, pinID)

	pin, err := s.pins.FindByID(ctx, pinID)
	if err != nil {
		return nil, domain.NewRepositoryError("find pin", err)
	}
	if pin == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrPinNotFound, pinID)
	}

	width, height, format, err := decodeImageConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%w: unsupported image: %v", domain.ErrInvalidArgument, err)
	}

	// External call first: nothing to roll back if it fails.
	embedding, err := s.embedder.Embed(ctx, data, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to vectorize media: %w", err)
	}

	storageKey := storage.MediaKey(calculateMD5(data), format)
	existsInStorage, err := s.storage.Exists(ctx, storageKey)
	if err != nil {
		return nil, fmt.Errorf("failed to check storage existence: %w", err)
	}

	uploaded := false
	if !existsInStorage {
		if err := s.storage.Upload(ctx, storageKey, bytes.NewReader(data), int64(len(data)), getContentType(format)); err != nil {
			return nil, fmt.Errorf("failed to upload to storage: %w", err)
		}
		uploaded = true
	} else {
		s.log(ctx).WithField("storage_key", storageKey).Debug("Media already in storage, skipping upload")
	}

	pin.StorageKey = storageKey
	pin.MediaURL = s.storage.GetURL(storageKey)
	pin.Format = format
	pin.Width = width
	pin.Height = height
	pin.Embedding = &embedding

	if s.index != nil {
		if err := s.index.Upsert(ctx, pin); err != nil {
			s.rollbackUpload(ctx, uploaded, storageKey)
			return nil, fmt.Errorf("failed to upsert to vector index: %w", err)
		}
	}

	if err := s.pins.Update(ctx, pin); err != nil {
		if s.index != nil {
			if delErr := s.index.Delete(ctx, pin.ID); delErr != nil {
				s.log(ctx).WithError(delErr).Error("Failed to rollback vector index upsert")
			}
		}
		s.rollbackUpload(ctx, uploaded, storageKey)
		return nil, domain.NewRepositoryError("update pin", err)
	}

	s.log(ctx).WithFields(logger.Fields{
		"storage_key":    storageKey,
		"dimensions":     len(embedding),
		logger.FieldSize: len(data),
	}).Info("Pin media stored")

	return pin, nil
}

func (s *MediaService) rollbackUpload(ctx context.Context, uploaded bool, storageKey string) {
	if !uploaded {
		return
	}
	if err := s.storage.Delete(ctx, storageKey); err != nil {
		s.log(ctx).WithFields(logger.Fields{
			"storage_key": storageKey,
		}).WithError(err).Error("Failed to rollback storage upload")
	}
}

func calculateMD5(data []byte) string {
	hash := md5.Sum(data)
	return hex.EncodeToString(hash[:])
}

// decodeImageConfig reads dimensions and format without decoding pixels.
func decodeImageConfig(data []byte) (int, int, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, "", err
	}
	return cfg.Width, cfg.Height, format, nil
}

func getContentType(format string) string {
	switch format {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
