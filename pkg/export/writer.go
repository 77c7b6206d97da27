package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/models"
)

// Formats understood by Writer.
const (
	FormatCSV  = "csv"
	FormatZIP  = "zip"
	FormatXLSX = "xlsx"
)

// Writer saves datasets under a directory.
type Writer struct {
	dir    string
	now    func() time.Time
	logger *zap.Logger
}

func NewWriter(dir string, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{dir: dir, now: time.Now, logger: logger.Named("export")}
}

// Write saves ds in each format and returns the paths written. CSV goes to
// "{dir}/{generator}/{table}.csv"; archives and workbooks are named by
// ArchiveName.
func (w *Writer) Write(ds *models.Dataset, formats []string) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	at := w.now()

	var paths []string
	for _, format := range formats {
		var written []string
		var err error
		switch format {
		case FormatCSV:
			written, err = w.writeCSVs(ds)
		case FormatZIP:
			path := filepath.Join(w.dir, ArchiveName(ds.Generator, at, "zip"))
			err = writeFile(path, func(f *os.File) error { return WriteZIP(f, ds, at) })
			written = []string{path}
		case FormatXLSX:
			path := filepath.Join(w.dir, ArchiveName(ds.Generator, at, "xlsx"))
			err = writeFile(path, func(f *os.File) error { return WriteXLSX(f, ds) })
			written = []string{path}
		default:
			err = fmt.Errorf("unknown export format %q", format)
		}
		if err != nil {
			return paths, fmt.Errorf("export %s as %s: %w", ds.Generator, format, err)
		}
		paths = append(paths, written...)
	}

	w.logger.Info("Exported dataset",
		zap.String("generator", ds.Generator),
		zap.Strings("formats", formats),
		zap.Int("files", len(paths)))
	return paths, nil
}

// SaveArchive writes an already-built ZIP archive of generator's tables.
func (w *Writer) SaveArchive(generator string, data []byte) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(w.dir, ArchiveName(generator, w.now(), "zip"))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save archive: %w", err)
	}
	return path, nil
}

func (w *Writer) writeCSVs(ds *models.Dataset) ([]string, error) {
	dir := filepath.Join(w.dir, ds.Generator)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var paths []string
	for _, t := range ds.Tables() {
		path := filepath.Join(dir, t.Name+".csv")
		if err := writeFile(path, func(f *os.File) error { return WriteCSV(f, t) }); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// writeFile creates path and removes it again if fill fails.
func writeFile(path string, fill func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
