package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// ErrNotDirectory is returned when the images path is not a directory.
var ErrNotDirectory = errors.New("images path is not a directory")

// Packager zips image directories.
type Packager struct {
	logger *slog.Logger
}

// NewPackager creates a Packager. A nil logger uses slog.Default.
func NewPackager(logger *slog.Logger) *Packager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Packager{logger: logger}
}

// ArchiveAndClear writes every regular file below imagesDir into a deflate
// zip at archivePath, using slash separated paths relative to imagesDir,
// then removes imagesDir. A failure to remove the directory is logged and
// not returned. archivePath is used as given; no extension is added.
func (p *Packager) ArchiveAndClear(ctx context.Context, imagesDir, archivePath string) (int, error) {
	n, err := p.archive(ctx, imagesDir, archivePath)
	if err != nil {
		return 0, err
	}
	p.logger.Info("images archived", "archive", archivePath, "files", n)

	if err := os.RemoveAll(imagesDir); err != nil {
		p.logger.Error("failed to remove images directory", "dir", imagesDir, "error", err)
	}
	return n, nil
}

func (p *Packager) archive(ctx context.Context, imagesDir, archivePath string) (count int, err error) {
	st, err := os.Stat(imagesDir)
	if err != nil {
		return 0, fmt.Errorf("failed to stat images directory: %w", err)
	}
	if !st.IsDir() {
		return 0, fmt.Errorf("%s: %w", imagesDir, ErrNotDirectory)
	}

	out, err := os.Create(archivePath) //nolint:gosec // path built from the output directory
	if err != nil {
		return 0, fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close archive: %w", cerr)
		}
	}()

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(imagesDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(imagesDir, path)
		if relErr != nil {
			return relErr
		}
		if addErr := addFile(zw, path, filepath.ToSlash(rel)); addErr != nil {
			return addErr
		}
		count++
		return nil
	})
	if err != nil {
		_ = zw.Close()
		return 0, fmt.Errorf("failed to archive images: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish archive: %w", err)
	}
	return count, nil
}

func addFile(zw *zip.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	f, err := os.Open(path) //nolint:gosec // walked from the images directory
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

// Entries returns the sorted entry names of the zip at path.
func Entries(path string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	names := make([]string, 0, len(r.File))
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names, nil
}
