package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/eduflow-api/internal/dto"
	"github.com/noah-isme/eduflow-api/internal/observability"
	"github.com/noah-isme/eduflow-api/internal/repository"
)

var (
	// ErrUploadTooLarge indicates the file exceeds the assignment's size limit.
	ErrUploadTooLarge = errors.New("file exceeds maximum allowed size")
	// ErrUploadTypeNotAllowed indicates the detected format is not accepted by
	// the assignment.
	ErrUploadTypeNotAllowed = errors.New("file type not allowed")
)

// FileStorage abstracts the upload destination for submission files.
type FileStorage interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// UploadService validates and stores submission files ahead of the actual
// submission. The returned descriptor is what the client attaches to the
// submission request.
type UploadService interface {
	UploadSubmissionFile(ctx context.Context, assignmentID, studentID uint, file *multipart.FileHeader) (dto.UploadResponse, error)
}

type uploadService struct {
	storage     FileStorage
	assignments repository.AssignmentRepository
	enrollments repository.EnrollmentRepository
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewUploadService constructs an upload service.
func NewUploadService(
	storage FileStorage,
	assignments repository.AssignmentRepository,
	enrollments repository.EnrollmentRepository,
	logger zerolog.Logger,
) UploadService {
	return &uploadService{
		storage:     storage,
		assignments: assignments,
		enrollments: enrollments,
		logger:      logger.With().Str("component", "upload_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/eduflow-api/internal/service/upload"),
	}
}

func (s *uploadService) UploadSubmissionFile(ctx context.Context, assignmentID, studentID uint, file *multipart.FileHeader) (dto.UploadResponse, error) {
	ctx, span := s.tracer.Start(ctx, "upload.submission_file")
	defer span.End()
	span.SetAttributes(attribute.Int("assignment.id", int(assignmentID)))

	start := time.Now()
	defer func() {
		observability.UploadLatency().Observe(time.Since(start).Seconds())
	}()

	if file == nil {
		err := errors.New("file is required")
		span.SetStatus(codes.Error, "validation failed")
		return dto.UploadResponse{}, err
	}
	span.SetAttributes(
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	)

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UploadResponse{}, ErrAssignmentNotFound
		}
		span.RecordError(err)
		return dto.UploadResponse{}, err
	}

	if _, err := s.enrollments.GetActive(ctx, studentID, assignment.CourseID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UploadResponse{}, ErrNotEnrolled
		}
		span.RecordError(err)
		return dto.UploadResponse{}, err
	}

	maxBytes := assignment.MaxFileSizeBytes()
	if maxBytes > 0 && file.Size > maxBytes {
		observability.UploadsRejected().WithLabelValues("size").Inc()
		span.SetStatus(codes.Error, "payload too large")
		return dto.UploadResponse{}, ErrUploadTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		return dto.UploadResponse{}, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	limit := maxBytes
	if limit <= 0 {
		limit = 50 * 1024 * 1024
	}
	if _, err := io.Copy(buf, io.LimitReader(handle, limit+1)); err != nil {
		span.RecordError(err)
		return dto.UploadResponse{}, err
	}
	if int64(buf.Len()) > limit {
		observability.UploadsRejected().WithLabelValues("size").Inc()
		span.SetStatus(codes.Error, "payload too large")
		return dto.UploadResponse{}, ErrUploadTooLarge
	}

	mime := mimetype.Detect(buf.Bytes())
	span.SetAttributes(attribute.String("upload.detected_mime", mime.String()))
	if allowed := assignment.Formats(); len(allowed) > 0 && !extensionAllowed(file.Filename, mime, allowed) {
		observability.UploadsRejected().WithLabelValues("type").Inc()
		span.SetStatus(codes.Error, "type not allowed")
		return dto.UploadResponse{}, ErrUploadTypeNotAllowed
	}

	checksum := sha256.Sum256(buf.Bytes())
	name := sanitizeFileName(file.Filename)

	url, err := s.storage.Upload(ctx, name, bytes.NewReader(buf.Bytes()))
	if err != nil {
		observability.UploadsRejected().WithLabelValues("storage").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.UploadResponse{}, err
	}

	observability.UploadsTotal().WithLabelValues(mime.String()).Inc()
	s.logger.Info().
		Uint("assignment_id", assignmentID).
		Str("file", name).
		Str("mime", mime.String()).
		Int("size_bytes", buf.Len()).
		Msg("submission file stored")

	return dto.UploadResponse{
		Name:     name,
		Type:     mime.String(),
		Size:     int64(buf.Len()),
		URL:      url,
		Checksum: hex.EncodeToString(checksum[:]),
	}, nil
}

// extensionAllowed accepts the file when either the sniffed extension or the
// client-supplied one is in the assignment's allow list. Sniffing wins for
// mislabelled files; the filename covers text formats mimetype cannot tell
// apart.
func extensionAllowed(filename string, mime *mimetype.MIME, allowed []string) bool {
	sniffed := strings.TrimPrefix(strings.ToLower(mime.Extension()), ".")
	claimed := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	for _, format := range allowed {
		format = strings.TrimPrefix(strings.ToLower(format), ".")
		if format == sniffed || format == claimed {
			return true
		}
	}

	return false
}

func sanitizeFileName(name string) string {
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
		base = fmt.Sprintf("upload-%d", time.Now().Unix())
	}

	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		ext = ".bin"
	}

	return base + ext
}
