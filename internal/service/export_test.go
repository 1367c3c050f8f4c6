package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nirajmehta960/amplify-interview-sub001/internal/media/format"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/media/transcode"
	"github.com/nirajmehta960/amplify-interview-sub001/internal/storage/blobstore"
)

var mp4Blob = []byte{
	0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p',
	'm', 'p', '4', '2', 0x00, 0x00, 0x00, 0x00,
	'm', 'p', '4', '2', 'i', 's', 'o', 'm',
}

type fakeConverter struct {
	out   []byte
	err   error
	calls int
}

func (c *fakeConverter) Convert(_ context.Context, _ []byte, from format.Format) ([]byte, error) {
	c.calls++
	if format.IsPreferred(from) {
		return nil, transcode.ErrAlreadyPreferred
	}
	return c.out, c.err
}

func TestExport(t *testing.T) {
	webm := []byte("opaque-webm-recording")
	converted := append([]byte(nil), mp4Blob...)

	tests := []struct {
		name          string
		content       []byte
		canonical     bool
		conv          *fakeConverter
		wantFormat    format.Format
		wantBlob      []byte
		wantConverted bool
		wantFallback  bool
		wantCalls     int
	}{
		{"без конвертации", webm, false, &fakeConverter{out: converted}, format.WebM, webm, false, false, 0},
		{"конвертация webm", webm, true, &fakeConverter{out: converted}, format.MP4, converted, true, false, 1},
		{"mp4 не конвертируется", mp4Blob, true, &fakeConverter{out: converted}, format.MP4, mp4Blob, false, false, 0},
		{"ошибка конвертации", webm, true, &fakeConverter{err: fmt.Errorf("%w: exit 1", transcode.ErrConversionFailed)}, format.WebM, webm, false, true, 1},
		{"отмена конвертации", webm, true, &fakeConverter{err: fmt.Errorf("%w: %w", transcode.ErrCancelled, context.Canceled)}, format.WebM, webm, false, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupBlobStore(t, 1<<20)
			putVideo(t, store, "s1", tt.content, "video/webm")

			svc := NewExportService(store, tt.conv, testLogger())
			res, err := svc.Export(context.Background(), "s1", tt.canonical)
			if err != nil {
				t.Fatalf("Export: %v", err)
			}
			if res.Format != tt.wantFormat {
				t.Errorf("формат: %s, ожидался %s", res.Format, tt.wantFormat)
			}
			if !bytes.Equal(res.Blob, tt.wantBlob) {
				t.Errorf("содержимое не совпадает")
			}
			if res.Converted != tt.wantConverted || res.Fallback != tt.wantFallback {
				t.Errorf("Converted=%v Fallback=%v", res.Converted, res.Fallback)
			}
			if want := format.ExportFilename("s1", tt.wantFormat); res.SuggestedFilename != want {
				t.Errorf("имя файла: %s, ожидалось %s", res.SuggestedFilename, want)
			}
			if tt.conv.calls != tt.wantCalls {
				t.Errorf("вызовов конвертера: %d, ожидалось %d", tt.conv.calls, tt.wantCalls)
			}
		})
	}
}

func TestExport_UnexpectedError(t *testing.T) {
	store := setupBlobStore(t, 1<<20)
	putVideo(t, store, "s1", []byte("webm"), "video/webm")

	boom := errors.New("boom")
	svc := NewExportService(store, &fakeConverter{err: boom}, testLogger())
	if _, err := svc.Export(context.Background(), "s1", true); !errors.Is(err, boom) {
		t.Errorf("ожидалась исходная ошибка, получено %v", err)
	}
}

func TestExport_NotFound(t *testing.T) {
	store := setupBlobStore(t, 1<<20)
	svc := NewExportService(store, nil, testLogger())
	if _, err := svc.Export(context.Background(), "missing", true); !errors.Is(err, blobstore.ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
}
