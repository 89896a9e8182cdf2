package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/primehaven/haven-chat-api/internal/dto"
	"github.com/primehaven/haven-chat-api/internal/models"
	"github.com/primehaven/haven-chat-api/internal/observability"
)

// ErrAttachmentTypeNotAllowed indicates a MIME type outside the chat whitelist.
var ErrAttachmentTypeNotAllowed = errors.New("attachment type not allowed")

// AttachmentStorage abstracts the upload destination for chat attachments.
type AttachmentStorage interface {
	Upload(ctx context.Context, roomID, name string, reader io.Reader) (string, error)
}

// AttachmentService validates and stores files shared in chat rooms.
type AttachmentService interface {
	Upload(ctx context.Context, userID, userName, rawRoomID string, file *multipart.FileHeader) (dto.AttachmentResponse, error)
}

type attachmentService struct {
	storage AttachmentStorage
	roomDir RoomService
	logger  zerolog.Logger
	maxSize int64
}

// NewAttachmentService constructs the attachment upload service.
func NewAttachmentService(storage AttachmentStorage, roomDir RoomService, maxSizeMB int, logger zerolog.Logger) AttachmentService {
	if maxSizeMB <= 0 {
		maxSizeMB = 25
	}
	return &attachmentService{
		storage: storage,
		roomDir: roomDir,
		logger:  logger.With().Str("component", "attachment_service").Logger(),
		maxSize: int64(maxSizeMB) * 1024 * 1024,
	}
}

func (s *attachmentService) Upload(ctx context.Context, userID, userName, rawRoomID string, file *multipart.FileHeader) (dto.AttachmentResponse, error) {
	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		return dto.AttachmentResponse{}, errors.New("file is required")
	}
	if file.Size > s.maxSize {
		return dto.AttachmentResponse{}, ErrAttachmentTooLarge
	}

	roomID, err := s.roomDir.EnsureMembership(ctx, userID, userName, rawRoomID)
	if err != nil {
		return dto.AttachmentResponse{}, err
	}

	handle, err := file.Open()
	if err != nil {
		return dto.AttachmentResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return dto.AttachmentResponse{}, err
	}
	if int64(buf.Len()) > s.maxSize {
		return dto.AttachmentResponse{}, ErrAttachmentTooLarge
	}

	mime := mimetype.Detect(buf.Bytes())
	contentType := strings.ToLower(mime.String())
	messageType, ok := classifyAttachment(contentType)
	if !ok {
		return dto.AttachmentResponse{}, ErrAttachmentTypeNotAllowed
	}

	name := sanitizeAttachmentName(file.Filename)
	url, err := s.storage.Upload(ctx, roomID, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return dto.AttachmentResponse{}, err
	}

	s.logger.Info().
		Str("room_id", roomID).
		Str("user_id", userID).
		Str("content_type", contentType).
		Int("size_bytes", buf.Len()).
		Msg("attachment stored")

	return dto.AttachmentResponse{
		FileURL:     url,
		FileName:    name,
		FileSize:    int64(buf.Len()),
		ContentType: contentType,
		MessageType: messageType,
	}, nil
}

// classifyAttachment maps a detected MIME type to the message type clients
// render. Images, audio and video map to their chat kinds, a small document
// whitelist becomes file messages, everything else is rejected.
func classifyAttachment(contentType string) (string, bool) {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return models.MessageTypeImage, true
	case strings.HasPrefix(contentType, "audio/"):
		return models.MessageTypeVoice, true
	case strings.HasPrefix(contentType, "video/"):
		return models.MessageTypeVideo, true
	}
	switch contentType {
	case "application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"text/plain; charset=utf-8",
		"text/plain":
		return models.MessageTypeFile, true
	default:
		return "", false
	}
}

func sanitizeAttachmentName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("attachment-%d", time.Now().Unix())
	}
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}
