package device

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hotload-labs/hotload/internal/hotload"
	"github.com/hotload-labs/hotload/internal/platform"
	"github.com/klauspost/compress/zip"
)

const (
	downloadFileName     = "download.zip"
	unzippedDirName      = "unzipped"
	diffManifestFileName = "hothotload.json"
	plainBundleFileName  = "app.jsbundle"
	downloadBufferSize   = 256 * 1024
)

var zipMagic = []byte{0x50, 0x4b, 0x03, 0x04}

// fetch streams url into dest, reporting progress after every chunk.
// It returns the first bytes of the payload for format detection.
func (d *Device) fetch(ctx context.Context, url, dest string) ([]byte, error) {
	resp, err := d.rest.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", url, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("download returned status %d", resp.StatusCode())
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("creating download directory: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("creating download file: %w", err)
	}
	defer f.Close()

	total := resp.RawResponse.ContentLength
	var received int64
	header := make([]byte, 0, len(zipMagic))

	buf := make([]byte, downloadBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if len(header) < cap(header) {
				header = append(header, buf[:min(n, cap(header)-len(header))]...)
			}
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return nil, fmt.Errorf("writing download: %w", writeErr)
			}
			received += int64(n)
			d.emitProgress(hotload.DownloadProgress{TotalBytes: total, ReceivedBytes: received})
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("reading download stream: %w", readErr)
		}
	}

	if total >= 0 && total != received {
		return nil, fmt.Errorf("received %d bytes, expected %d", received, total)
	}
	return header, f.Close()
}

// unpack turns a downloaded payload into packages/<hash>. A zip is extracted,
// merged with the running package when it carries a diff manifest, and
// searched for the bundle file; any other payload is the bundle itself.
func (d *Device) unpack(archive string, header []byte, meta *packageMetadata) error {
	target := d.packageDir(meta.PackageHash)

	if !bytes.Equal(header, zipMagic) {
		if err := os.MkdirAll(target, 0755); err != nil {
			return fmt.Errorf("creating package directory: %w", err)
		}
		if err := os.Rename(archive, filepath.Join(target, plainBundleFileName)); err != nil {
			return fmt.Errorf("moving bundle: %w", err)
		}
		meta.BundlePath = plainBundleFileName
		return nil
	}

	unzipped := filepath.Join(d.dir, unzippedDirName)
	os.RemoveAll(unzipped)
	defer os.RemoveAll(unzipped)

	if err := extractZip(archive, unzipped); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	os.Remove(archive)

	manifestPath := filepath.Join(unzipped, diffManifestFileName)
	isDiff := fileExists(manifestPath)
	if isDiff {
		if err := d.applyDiffBase(manifestPath, target); err != nil {
			return err
		}
		os.Remove(manifestPath)
	}

	if err := platform.CopyDir(unzipped, target); err != nil {
		return fmt.Errorf("copying update contents: %w", err)
	}

	bundle, err := findBundle(target, d.opts.BundleFileName)
	if err != nil {
		return err
	}
	if bundle == "" {
		return fmt.Errorf("%w: no %s was found in the update package", ErrInvalidUpdate, d.opts.BundleFileName)
	}
	meta.BundlePath = bundle

	// Metadata of an earlier attempt must not take part in the hash.
	os.Remove(filepath.Join(target, metadataFileName))

	if isDiff {
		sum, err := contentsHash(target)
		if err != nil {
			return err
		}
		if sum != meta.PackageHash {
			return fmt.Errorf("%w: the update contents failed the data integrity check", ErrInvalidUpdate)
		}
	}
	return nil
}

// applyDiffBase seeds target with the running package minus the files the
// diff manifest deletes.
func (d *Device) applyDiffBase(manifestPath, target string) error {
	var manifest struct {
		DeletedFiles []string `json:"deletedFiles"`
	}
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("reading diff manifest: %w", err)
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("%w: parsing diff manifest: %v", ErrInvalidUpdate, err)
	}

	st, err := d.loadStatus()
	if err != nil {
		return err
	}
	if st.CurrentPackage != "" {
		if err := platform.CopyDir(d.packageDir(st.CurrentPackage), target); err != nil {
			return fmt.Errorf("copying current package: %w", err)
		}
	}
	for _, name := range manifest.DeletedFiles {
		path, err := safeJoin(target, name)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
		}
		os.Remove(path)
	}
	return nil
}

func extractZip(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("opening zip archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		path, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(path, 0755); err != nil {
				return fmt.Errorf("creating %s: %w", f.Name, err)
			}
			continue
		}
		if err := extractFile(f, path); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening zip entry: %w", err)
	}
	defer rc.Close()

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", f.Name, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extracting %s: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return err
	}

	if perm := f.Mode().Perm(); perm != 0 {
		return platform.Chmod(path, platform.OwnerWritable(perm))
	}
	return nil
}

// safeJoin joins name under root, rejecting entries that escape it.
func safeJoin(root, name string) (string, error) {
	path := filepath.Join(root, name)
	if path != filepath.Clean(root) && !strings.HasPrefix(path, filepath.Clean(root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal path %q in update package", name)
	}
	return path, nil
}

// findBundle returns the slash-separated path of the first file named name
// under root, or "" if there is none.
func findBundle(root, name string) (string, error) {
	var found string
	err := filepath.WalkDir(root, func(path string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !e.IsDir() && e.Name() == name {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			found = filepath.ToSlash(rel)
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("searching for bundle: %w", err)
	}
	return found, nil
}

// contentsHash is the sha256 of the sorted "path:sha256" list of every file
// under root, encoded as a JSON array.
func contentsHash(root string) (string, error) {
	var entries []string
	err := filepath.WalkDir(root, func(path string, e fs.DirEntry, err error) error {
		if err != nil || e.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		sum, err := fileHash(path)
		if err != nil {
			return err
		}
		entries = append(entries, filepath.ToSlash(rel)+":"+sum)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("hashing update contents: %w", err)
	}
	sort.Strings(entries)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(entries); err != nil {
		return "", err
	}
	h := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(h[:]), nil
}

func fileHash(path string) (string, error) {
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

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
