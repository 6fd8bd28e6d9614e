package services

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"model-deployer/internal/core/domain"
)

// BuildArchive packs a SavedModel directory into destDir/model-{runID}.tar.gz.
// Entries are placed under root, which the hosting platform chooses so that
// its serving container finds the version directory where it looks for it.
func BuildArchive(modelDir, runID, root, destDir string) (string, error) {
	info, err := os.Stat(modelDir)
	if err != nil || !info.IsDir() {
		return "", domain.ErrInvalidModelDir
	}
	if err := domain.ValidateRunID(runID); err != nil {
		return "", err
	}
	root = path.Clean(root)
	if root == "." || path.IsAbs(root) || strings.HasPrefix(root, "../") || root == ".." {
		return "", fmt.Errorf("archive root %q must be a relative path inside the archive", root)
	}

	archivePath := filepath.Join(destDir, domain.ArchiveName(runID))
	f, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("create archive: %w", err)
	}

	if err := writeArchive(f, modelDir, root); err != nil {
		f.Close()
		os.Remove(archivePath)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(archivePath)
		return "", fmt.Errorf("close archive: %w", err)
	}
	return archivePath, nil
}

func writeArchive(w io.Writer, srcDir, root string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	walkErr := filepath.WalkDir(srcDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, p)
		if err != nil {
			return err
		}
		name := root
		if rel != "." {
			name = path.Join(root, filepath.ToSlash(rel))
		}
		return addEntry(tw, p, name, d)
	})
	if walkErr != nil {
		return fmt.Errorf("write archive entries: %w", walkErr)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("close tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("close gzip stream: %w", err)
	}
	return nil
}

func addEntry(tw *tar.Writer, filePath, name string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		return err
	}

	var link string
	if d.Type()&fs.ModeSymlink != 0 {
		if link, err = os.Readlink(filePath); err != nil {
			return err
		}
	}

	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	hdr.Name = name
	if d.IsDir() {
		hdr.Name += "/"
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	if !d.Type().IsRegular() {
		return nil
	}

	src, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer src.Close()

	_, err = io.Copy(tw, src)
	return err
}
