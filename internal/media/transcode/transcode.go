// Пакет transcode — конвертация записей в предпочтительный контейнер (MP4).
//
// Конвертация выполняется внешним ffmpeg во временной рабочей директории.
// Рабочая директория удаляется при любом исходе: успех, ошибка, отмена.
// Исходные данные не изменяются, поэтому при неудаче вызывающий
// может использовать оригинал.
package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/media/format"
)

var (
	// ErrConversionFailed — конвертация не удалась, оригинал пригоден.
	ErrConversionFailed = errors.New("ошибка конвертации видео")
	// ErrAlreadyPreferred — запись уже в предпочтительном формате.
	ErrAlreadyPreferred = errors.New("запись уже в предпочтительном формате")
	// ErrCancelled — конвертация отменена вызывающим.
	ErrCancelled = errors.New("конвертация отменена")
)

var transcodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "im_transcode_duration_seconds",
	Help:    "Длительность конвертации видео в секундах",
	Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
}, []string{"result"})

// RunFunc запускает внешнюю команду и возвращает её stderr.
type RunFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Option — параметр Transcoder.
type Option func(*Transcoder)

// WithRunner подменяет запуск внешней команды.
func WithRunner(run RunFunc) Option {
	return func(t *Transcoder) { t.run = run }
}

// Transcoder — конвертер записей через ffmpeg.
type Transcoder struct {
	ffmpegPath string
	tempDir    string
	run        RunFunc
	logger     *slog.Logger
}

// New создаёт Transcoder. Пустой ffmpegPath означает поиск в PATH.
// Отсутствие ffmpeg не считается ошибкой: Available вернёт false,
// Convert — ErrConversionFailed.
func New(ffmpegPath, tempDir string, logger *slog.Logger, opts ...Option) (*Transcoder, error) {
	logger = logger.With(slog.String("component", "transcoder"))

	if ffmpegPath == "" {
		if p, err := exec.LookPath("ffmpeg"); err == nil {
			ffmpegPath = p
		} else {
			logger.Warn("ffmpeg не найден в PATH, конвертация недоступна")
		}
	}

	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "mediacore-transcode")
	}
	if err := os.MkdirAll(tempDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать временную директорию %s: %w", tempDir, err)
	}

	t := &Transcoder{
		ffmpegPath: ffmpegPath,
		tempDir:    tempDir,
		run:        runCommand,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Available сообщает, что ffmpeg найден.
func (t *Transcoder) Available() bool {
	return t.ffmpegPath != ""
}

// Convert конвертирует запись из формата from в MP4.
// Для записи, уже находящейся в MP4, возвращает ErrAlreadyPreferred
// без запуска конвертации. При отмене ctx возвращает ErrCancelled,
// частичный результат удаляется.
func (t *Transcoder) Convert(ctx context.Context, blob []byte, from format.Format) ([]byte, error) {
	if format.IsPreferred(from) {
		return nil, ErrAlreadyPreferred
	}

	start := time.Now()
	out, err := t.convert(ctx, blob, from)

	result := "success"
	switch {
	case errors.Is(err, ErrCancelled):
		result = "cancelled"
	case err != nil:
		result = "error"
	}
	transcodeDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())

	if err != nil {
		t.logger.Warn("Конвертация не выполнена",
			slog.String("from", string(from)),
			slog.Int("size", len(blob)),
			slog.String("result", result),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	t.logger.Info("Конвертация завершена",
		slog.String("from", string(from)),
		slog.Int("input_size", len(blob)),
		slog.Int("output_size", len(out)),
		slog.Duration("duration", time.Since(start)),
	)
	return out, nil
}

func (t *Transcoder) convert(ctx context.Context, blob []byte, from format.Format) ([]byte, error) {
	if !t.Available() {
		return nil, fmt.Errorf("%w: ffmpeg недоступен", ErrConversionFailed)
	}

	workDir, err := os.MkdirTemp(t.tempDir, "convert-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}
	defer os.RemoveAll(workDir)

	inPath := filepath.Join(workDir, "input."+from.Extension())
	outPath := filepath.Join(workDir, "output.mp4")

	if err := os.WriteFile(inPath, blob, 0o640); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConversionFailed, err)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", inPath,
		"-c:v", "libx264", "-preset", "veryfast", "-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-movflags", "+faststart",
		"-f", "mp4",
		outPath,
	}

	stderr, err := t.run(ctx, t.ffmpegPath, args...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrCancelled, ctxErr)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %s", ErrConversionFailed, err, tail(stderr, 512))
	}

	out, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: результат не создан: %v", ErrConversionFailed, err)
	}
	if format.DetectContent("", out) != format.MP4 {
		return nil, fmt.Errorf("%w: результат не является MP4", ErrConversionFailed)
	}
	return out, nil
}

// runCommand запускает команду с привязкой к ctx.
func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.WaitDelay = 5 * time.Second

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	return stderr.Bytes(), err
}

func tail(b []byte, n int) string {
	b = bytes.TrimSpace(b)
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return string(b)
}
