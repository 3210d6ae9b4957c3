package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const (
	InfoFile    = "info.log"
	WarningFile = "warning.log"
	ErrorFile   = "error.log"
)

// Logger provides leveled logging (info/warning/error) to files and stdout/stderr.
type Logger struct {
	infoLog    *log.Logger
	warningLog *log.Logger
	errorLog   *log.Logger
	logDir     string
	files      []*os.File
	mu         sync.Mutex
}

// New creates a Logger writing to stdout/stderr and to per-level files in logDir.
func New(logDir string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	l := &Logger{logDir: logDir}

	outputs := make([]io.Writer, 0, 3)
	for _, name := range []string{InfoFile, WarningFile, ErrorFile} {
		file, err := os.OpenFile(filepath.Join(logDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			l.Close()
			return nil, fmt.Errorf("failed to open log file %s: %w", name, err)
		}
		l.files = append(l.files, file)
		outputs = append(outputs, file)
	}

	l.setup(
		io.MultiWriter(os.Stdout, outputs[0]),
		io.MultiWriter(os.Stdout, outputs[1]),
		io.MultiWriter(os.Stderr, outputs[2]),
	)
	return l, nil
}

// NewWriter creates a Logger that sends every level to w.
func NewWriter(w io.Writer) *Logger {
	l := &Logger{}
	l.setup(w, w, w)
	return l
}

// NewDiscard creates a Logger that drops everything.
func NewDiscard() *Logger {
	return NewWriter(io.Discard)
}

func (l *Logger) setup(info, warning, errs io.Writer) {
	l.infoLog = log.New(info, "INFO    ", log.Ldate|log.Ltime|log.Lshortfile)
	l.warningLog = log.New(warning, "WARNING ", log.Ldate|log.Ltime|log.Lshortfile)
	l.errorLog = log.New(errs, "ERROR   ", log.Ldate|log.Ltime|log.Lshortfile)
}

// Info writes a formatted info-level log entry.
func (l *Logger) Info(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infoLog.Output(2, fmt.Sprintf(format, v...))
}

// Warning writes a formatted warning-level log entry.
func (l *Logger) Warning(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warningLog.Output(2, fmt.Sprintf(format, v...))
}

// Error writes a formatted error-level log entry.
func (l *Logger) Error(format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errorLog.Output(2, fmt.Sprintf(format, v...))
}

// Dir returns the log directory, empty for writer-backed loggers.
func (l *Logger) Dir() string {
	return l.logDir
}

// CleanLogs truncates the named log file. Open files keep appending from the
// new end.
func (l *Logger) CleanLogs(fileName string) error {
	if l.logDir == "" {
		return fmt.Errorf("logger has no log directory")
	}

	l.mu.Lock()
	err := os.Truncate(filepath.Join(l.logDir, fileName), 0)
	l.mu.Unlock()
	if err != nil {
		l.Error("Error clearing %s: %v", fileName, err)
		return err
	}

	l.Info("File content of %s has been cleared.", fileName)
	return nil
}

// Close closes the underlying log files.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	return firstErr
}
