// Package artifact packages the assembled site into a content-hashed
// archive and keeps a local store of past artifacts for the publish stage
// and for pruning.
package artifact

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// zeroTime is the fixed timestamp written into archive headers.
var zeroTime = time.Unix(0, 0).UTC()

// Package archives the site directory into destDir and returns the archive
// path, its sha256 content hash, and its size. File order inside the
// archive is the deterministic WalkDir order, so identical site trees
// produce identical hashes.
func Package(siteDir, destDir, name string, compress bool) (path, hash string, size int64, err error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", "", 0, fmt.Errorf("create artifact directory: %w", err)
	}

	ext := ".tar"
	if compress {
		ext = ".tar.gz"
	}
	path = filepath.Join(destDir, name+ext)

	f, err := os.Create(path)
	if err != nil {
		return "", "", 0, fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	var w io.Writer = io.MultiWriter(f, hasher)

	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(w)
		w = gz
	}
	tw := tar.NewWriter(w)

	if err := writeTree(tw, siteDir); err != nil {
		return "", "", 0, err
	}

	if err := tw.Close(); err != nil {
		return "", "", 0, fmt.Errorf("close tar: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return "", "", 0, fmt.Errorf("close gzip: %w", err)
		}
	}
	if err := f.Close(); err != nil {
		return "", "", 0, fmt.Errorf("close archive: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", "", 0, fmt.Errorf("stat archive: %w", err)
	}
	return path, hex.EncodeToString(hasher.Sum(nil)), info.Size(), nil
}

func writeTree(tw *tar.Writer, root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("tar header %s: %w", rel, err)
		}
		hdr.Name = rel
		if d.IsDir() {
			hdr.Name += "/"
		}
		// Zero the timestamp so re-archiving an unchanged tree is stable.
		hdr.ModTime = zeroTime
		hdr.AccessTime = zeroTime
		hdr.ChangeTime = zeroTime

		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("write header %s: %w", rel, err)
		}
		if d.IsDir() {
			return nil
		}
		// #nosec G304 - p comes from walking the site output tree
		src, err := os.Open(p)
		if err != nil {
			return err
		}
		defer src.Close()
		if _, err := io.Copy(tw, src); err != nil {
			return fmt.Errorf("archive %s: %w", rel, err)
		}
		return nil
	})
}

// HashFile computes the sha256 hex digest of a file.
func HashFile(path string) (string, error) {
	// #nosec G304 - path comes from the artifact store
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SanitizeName makes a run identifier safe as a file name component.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '-'
		}
	}, name)
}
