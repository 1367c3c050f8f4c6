// Пакет format — определение фактического контейнера видеозаписи.
//
// Заявленный при записи MIME-тип не считается истиной: среда записи
// может ошибаться в метке контейнера. Определение опирается на
// фактический тип содержимого и использует заявленную метку, только
// когда фактический тип недоступен или неоднозначен.
package format

import (
	"fmt"
	"mime"
	"net/http"
	"strings"
)

// Format — канонический формат контейнера.
type Format string

const (
	MP4     Format = "mp4"
	WebM    Format = "webm"
	Unknown Format = "unknown"
)

// PreferredFormat — формат воспроизведения, к которому приводятся записи.
const PreferredFormat = MP4

// sniffLen — сколько первых байт содержимого нужно для Sniff.
const sniffLen = 512

// Detect возвращает канонический формат по заявленной метке и
// фактическому MIME-типу содержимого. Фактический тип имеет приоритет.
func Detect(declared, blobMIME string) Format {
	if f := classify(blobMIME); f != Unknown {
		return f
	}
	return classify(declared)
}

// DetectContent определяет формат по заявленной метке и первым байтам записи.
func DetectContent(declared string, content []byte) Format {
	return Detect(declared, Sniff(content))
}

// IsPreferred сообщает, что формат не требует конвертации.
func IsPreferred(f Format) bool {
	return f == PreferredFormat
}

// Sniff определяет MIME-тип по сигнатуре содержимого.
// Для нераспознанного содержимого возвращает пустую строку.
func Sniff(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	if len(content) > sniffLen {
		content = content[:sniffLen]
	}
	ct := http.DetectContentType(content)
	if ct == "application/octet-stream" {
		return ""
	}
	return ct
}

// Extension возвращает расширение файла для формата.
// Неизвестный формат экспортируется как webm: это формат записи по умолчанию.
func (f Format) Extension() string {
	if f == MP4 {
		return "mp4"
	}
	return "webm"
}

// MIMEType возвращает MIME-тип для отдачи клиенту.
func (f Format) MIMEType() string {
	switch f {
	case MP4:
		return "video/mp4"
	case WebM:
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}

// ExportFilename возвращает имя файла для экспорта: interview-{session}.{ext}
func ExportFilename(sessionID string, f Format) string {
	return fmt.Sprintf("interview-%s.%s", sessionID, f.Extension())
}

// classify сводит MIME-тип (с параметрами кодеков или без) к формату.
func classify(contentType string) Format {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return Unknown
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}

	switch mediaType {
	case "video/mp4", "audio/mp4", "video/x-m4v", "application/mp4":
		return MP4
	case "video/webm", "audio/webm":
		return WebM
	default:
		return Unknown
	}
}
