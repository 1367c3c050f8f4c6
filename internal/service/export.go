// export.go — выгрузка видеозаписи с приведением к формату воспроизведения.
//
// Запись конвертируется в MP4 только если фактический формат
// содержимого не является предпочтительным. Если конвертация не
// удалась или отменена, выгружается оригинал.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/media/format"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/media/transcode"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/blobstore"
)

var exportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "im_exports_total",
	Help: "Количество выгрузок видеозаписей по результату",
}, []string{"result"})

// Exporter — источник независимых копий записей.
type Exporter interface {
	Export(ctx context.Context, sessionID string) (*blobstore.Export, error)
}

// Converter — конвертация записи в предпочтительный формат.
type Converter interface {
	Convert(ctx context.Context, blob []byte, from format.Format) ([]byte, error)
}

// ExportResult — выгружаемая запись.
type ExportResult struct {
	blobstore.Export
	// Converted — true, если запись сконвертирована
	Converted bool
	// Fallback — true, если конвертация не удалась и выгружен оригинал
	Fallback bool
}

// ExportService выгружает записи.
type ExportService struct {
	store     Exporter
	converter Converter
	logger    *slog.Logger
}

// NewExportService создаёт сервис выгрузки. converter может быть nil:
// тогда записи всегда выгружаются как есть.
func NewExportService(store Exporter, converter Converter, logger *slog.Logger) *ExportService {
	return &ExportService{
		store:     store,
		converter: converter,
		logger:    logger.With(slog.String("component", "export")),
	}
}

// Export выгружает запись сессии. При preferCanonical запись
// в непредпочтительном формате конвертируется в MP4.
func (s *ExportService) Export(ctx context.Context, sessionID string, preferCanonical bool) (*ExportResult, error) {
	exp, err := s.store.Export(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	result := &ExportResult{Export: *exp}

	if !preferCanonical || s.converter == nil || format.IsPreferred(exp.Format) {
		exportsTotal.WithLabelValues("original").Inc()
		return result, nil
	}

	out, err := s.converter.Convert(ctx, exp.Blob, exp.Format)
	switch {
	case err == nil:
		result.Blob = out
		result.Format = format.PreferredFormat
		result.SuggestedFilename = format.ExportFilename(sessionID, format.PreferredFormat)
		result.Converted = true
		exportsTotal.WithLabelValues("converted").Inc()
	case errors.Is(err, transcode.ErrAlreadyPreferred):
		exportsTotal.WithLabelValues("original").Inc()
	case errors.Is(err, transcode.ErrConversionFailed), errors.Is(err, transcode.ErrCancelled):
		result.Fallback = true
		exportsTotal.WithLabelValues("fallback").Inc()
		s.logger.Warn("Конвертация не удалась, выгружается оригинал",
			slog.String("session_id", sessionID),
			slog.String("format", string(exp.Format)),
			slog.String("error", err.Error()),
		)
	default:
		exportsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	return result, nil
}
