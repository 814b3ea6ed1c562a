package tts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const previewRunes = 120

var (
	logPath = "logs/synthesis.log"
	mu      sync.RWMutex
)

// SetLogPath configures the path for the synthesis log file.
func SetLogPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	logPath = path
}

// Log appends one line per synthesis call to the configured log file.
// Shared helper for all engines to keep debugging visibility consistent.
// Long chunk text is truncated to a short preview.
func Log(provider, text string, status, audioBytes int, err error) {
	mu.RLock()
	path := logPath
	mu.RUnlock()

	_ = os.MkdirAll(filepath.Dir(path), 0o755)

	f, fileErr := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if fileErr != nil {
		return
	}
	defer f.Close()

	statusStr := fmt.Sprintf("%d", status)
	if err != nil {
		statusStr = fmt.Sprintf("ERROR(%v)", err)
	}

	entry := fmt.Sprintf("[%s] [%s] status=%s bytes=%d chars=%d text=%q\n",
		time.Now().Format("2006-01-02 15:04:05"), provider, statusStr,
		audioBytes, len([]rune(text)), preview(text))

	_, _ = f.WriteString(entry)
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= previewRunes {
		return text
	}
	return string(r[:previewRunes]) + "..."
}
