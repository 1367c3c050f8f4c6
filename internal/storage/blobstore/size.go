package blobstore

import "fmt"

// FormatBytes форматирует размер для отображения: B, KB, MB, GB
// с основанием 1024 и двумя знаками после запятой.
// Примеры: 0 → "0 B", 1536 → "1.50 KB".
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}

	units := []string{"KB", "MB", "GB"}
	value := float64(n) / unit
	i := 0
	for value >= unit && i < len(units)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.2f %s", value, units[i])
}
