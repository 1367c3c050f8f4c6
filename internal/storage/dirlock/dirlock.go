// Пакет dirlock — эксклюзивное владение директорией данных.
//
// Владелец держит flock() на {dir}/.owner.lock и записывает в
// {dir}/.owner.info сведения о себе (hostname, pid, порт). Второй
// процесс на той же директории получает ErrLocked и сведения о
// текущем владельце. Блокировка снимается ядром при завершении
// процесса, поэтому аварийная остановка не оставляет «вечного» lock.
package dirlock

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

const (
	lockFile = ".owner.lock"
	infoFile = ".owner.info"
)

// ErrLocked — директория занята другим процессом.
var ErrLocked = errors.New("директория данных используется другим процессом")

// Lock — захваченная блокировка директории.
type Lock struct {
	dir    string
	file   *os.File
	logger *slog.Logger
}

// Acquire захватывает директорию dir без ожидания.
// При занятой директории возвращает ошибку, оборачивающую ErrLocked,
// с адресом владельца, если он известен.
func Acquire(dir string, port int, logger *slog.Logger) (*Lock, error) {
	logger = logger.With(slog.String("component", "dirlock"))

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию %s: %w", dir, err)
	}

	lockPath := filepath.Join(dir, lockFile)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o640)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть lock-файл %s: %w", lockPath, err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if owner := Owner(dir); owner != "" {
			return nil, fmt.Errorf("%w: %s", ErrLocked, owner)
		}
		return nil, ErrLocked
	}

	l := &Lock{dir: dir, file: f, logger: logger}
	if err := l.writeInfo(port); err != nil {
		// Блокировка уже захвачена, сведения о владельце не обязательны
		logger.Warn("Ошибка записи сведений о владельце", slog.String("error", err.Error()))
	}

	logger.Info("Директория данных захвачена", slog.String("dir", dir))
	return l, nil
}

// Release снимает блокировку и удаляет сведения о владельце.
func (l *Lock) Release() {
	if l == nil || l.file == nil {
		return
	}
	_ = os.Remove(filepath.Join(l.dir, infoFile))
	_ = syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
	l.logger.Info("Директория данных освобождена", slog.String("dir", l.dir))
}

// Owner возвращает сведения о текущем владельце dir
// или пустую строку, если они недоступны.
func Owner(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, infoFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// writeInfo записывает сведения о владельце атомарно (temp + rename).
func (l *Lock) writeInfo(port int) error {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}
	info := fmt.Sprintf("%s:%d pid=%d", hostname, port, os.Getpid())

	infoPath := filepath.Join(l.dir, infoFile)
	tmpPath := infoPath + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(info), 0o640); err != nil {
		return fmt.Errorf("ошибка записи %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, infoPath); err != nil {
		return fmt.Errorf("ошибка переименования %s: %w", tmpPath, err)
	}
	return nil
}
