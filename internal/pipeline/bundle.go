package pipeline

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zip"
)

type bundleEntry struct {
	Name string // name inside the archive
	Path string // file on disk
}

// writeBundle writes a deflate-compressed zip at dst holding entries in order.
func writeBundle(dst string, entries ...bundleEntry) (err error) {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create archive: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close archive: %w", cerr)
		}
	}()

	zw := zip.NewWriter(out)
	for _, e := range entries {
		if err := addEntry(zw, e); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

func addEntry(zw *zip.Writer, e bundleEntry) error {
	f, err := os.Open(e.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", e.Name, err)
	}
	defer f.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:     e.Name,
		Method:   zip.Deflate,
		Modified: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("add %s: %w", e.Name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("compress %s: %w", e.Name, err)
	}
	return nil
}
