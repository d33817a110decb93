package engine

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/lumenhq/lumen/internal/domain"
)

// extractArchive extracts every regular file from a gzip-compressed tar
// archive at archivePath into destDir, flattening directory structure
// (engine archives are a flat bag of a binary plus its companion shared
// libraries).
func extractArchive(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	defer gz.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}

	tr := tar.NewReader(gz)
	extracted := 0
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrIO, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		name := filepath.Base(hdr.Name)
		if name == "" || strings.HasPrefix(name, ".") {
			continue
		}

		outPath := filepath.Join(destDir, name)
		out, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("%w: create %s: %v", domain.ErrIO, outPath, err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return fmt.Errorf("%w: extract %s: %v", domain.ErrIO, name, err)
		}
		out.Close()
		if runtime.GOOS != "windows" {
			_ = os.Chmod(outPath, 0o755)
		}
		extracted++
	}

	if extracted == 0 {
		return fmt.Errorf("%w: archive %s contained no regular files", domain.ErrIO, archivePath)
	}
	return nil
}
