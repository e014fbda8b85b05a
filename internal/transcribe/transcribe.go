// Package transcribe turns chat voice attachments into text.
package transcribe

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/dvloznov/finance-bot/internal/metrics"
	"github.com/rs/zerolog"
)

// FileDownloader resolves and downloads a chat attachment.
type FileDownloader interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, string, error)
}

// Model is a speech-to-text backend.
type Model interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// Archiver keeps a copy of the raw audio.
type Archiver interface {
	Archive(ctx context.Context, name, contentType string, data []byte) error
}

// Service downloads attachments and runs them through a Model.
type Service struct {
	files   FileDownloader
	model   Model
	archive Archiver
	log     zerolog.Logger
}

// NewService creates a Service. archive may be nil.
func NewService(files FileDownloader, model Model, archive Archiver, log zerolog.Logger) *Service {
	return &Service{
		files:   files,
		model:   model,
		archive: archive,
		log:     log,
	}
}

// Transcribe returns the text spoken in the attachment fileID.
// Resolution and download failures surface as *domain.FileResolutionError
// and *domain.DownloadError.
func (s *Service) Transcribe(ctx context.Context, fileID string) (string, error) {
	audio, filePath, err := s.files.DownloadFile(ctx, fileID)
	if err != nil {
		metrics.Errors.WithLabelValues("transcription").Inc()
		return "", err
	}

	mimeType := MIMEType(filePath)

	if s.archive != nil {
		name := "voice/" + fileID + path.Ext(filePath)
		if err := s.archive.Archive(ctx, name, mimeType, audio); err != nil {
			s.log.Warn().Err(err).Str("object", name).Msg("Failed to archive voice message")
		}
	}

	text, err := s.model.Transcribe(ctx, audio, mimeType)
	if err != nil {
		metrics.Errors.WithLabelValues("transcription").Inc()
		return "", fmt.Errorf("transcribe %s: %w", fileID, err)
	}
	text = NormalizeText(text)

	s.log.Debug().
		Str("file_id", fileID).
		Int("bytes", len(audio)).
		Int("chars", len(text)).
		Msg("Voice message transcribed")

	return text, nil
}

// MIMEType guesses the audio MIME type from a platform file path.
// Voice notes are Ogg/Opus, which is also the fallback.
func MIMEType(filePath string) string {
	switch strings.ToLower(path.Ext(filePath)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a", ".mp4":
		return "audio/mp4"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	default:
		return "audio/ogg"
	}
}
