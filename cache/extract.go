package cache

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// extractor writes archive members below dir. Every write goes through root,
// so a member can never land outside dir, even via symlinks created by
// earlier members.
type extractor struct {
	root *os.Root
	// dir is the destination with symlinks resolved.
	dir string
}

// extractArchive unpacks an in-memory archive into destDir.
func extractArchive(format ArchiveFormat, data []byte, destDir string) error {
	dir, err := filepath.EvalSymlinks(destDir)
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return fmt.Errorf("failed to open destination: %w", err)
	}
	defer root.Close()

	x := &extractor{root: root, dir: dir}
	switch format {
	case FormatZip:
		return x.extractZip(data)
	case FormatTarGz:
		return x.extractTarGz(data)
	default:
		return fmt.Errorf("unsupported archive format %q", format)
	}
}

// extractTarGz extracts a gzip-compressed tar archive. Entries are filtered:
// nothing may land outside the destination, links must stay inside it,
// special files are refused and permission bits are sanitized.
func (x *extractor) extractTarGz(data []byte) error {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to read as gzip: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar archive: %w", err)
		}

		name, err := memberPath(header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := x.root.MkdirAll(name, dirMode(header.FileInfo().Mode())); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case tar.TypeReg:
			if err := x.writeFile(name, tr, fileMode(header.FileInfo().Mode())); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := x.writeSymlink(name, header.Linkname); err != nil {
				return fmt.Errorf("%s: %w", header.Name, err)
			}
		case tar.TypeLink:
			if err := x.writeHardlink(name, header.Linkname); err != nil {
				return fmt.Errorf("%s: %w", header.Name, err)
			}
		case tar.TypeXGlobalHeader, tar.TypeXHeader:
			continue
		default:
			return fmt.Errorf("%s: refusing to extract special file (type %q)", header.Name, header.Typeflag)
		}
	}
}

// extractZip extracts a zip archive with the same filtering as extractTarGz.
func (x *extractor) extractZip(data []byte) error {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}

	for _, f := range r.File {
		name, err := memberPath(f.Name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := x.root.MkdirAll(name, dirMode(mode)); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case mode&fs.ModeSymlink != 0:
			linkname, err := readZipEntry(f)
			if err != nil {
				return err
			}
			if err := x.writeSymlink(name, linkname); err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
		case mode.IsRegular():
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("failed to open zip entry: %w", err)
			}
			err = x.writeFile(name, rc, fileMode(mode))
			rc.Close()
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("%s: refusing to extract special file (mode %s)", f.Name, mode)
		}
	}

	return nil
}

func readZipEntry(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open zip entry: %w", err)
	}
	defer rc.Close()

	b, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read zip entry: %w", err)
	}
	return string(b), nil
}

// memberPath converts an archive member name to a path relative to the
// destination. Leading slashes are stripped; names that still point outside
// the destination are rejected.
func memberPath(name string) (string, error) {
	clean := filepath.Clean(strings.TrimLeft(filepath.FromSlash(name), `/\`))
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("invalid file path: %s", name)
	}
	return clean, nil
}

func (x *extractor) mkdirParent(name string) error {
	if err := x.root.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

func (x *extractor) writeFile(name string, r io.Reader, mode fs.FileMode) error {
	if err := x.mkdirParent(name); err != nil {
		return err
	}

	out, err := x.root.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()
	if err != nil {
		return fmt.Errorf("failed to extract file: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to extract file: %w", closeErr)
	}
	return nil
}

// writeSymlink creates name -> linkname. The target is resolved from the
// link's real parent directory, so links reached through earlier symlinks
// are judged by where they actually point.
func (x *extractor) writeSymlink(name, linkname string) error {
	if linkname == "" {
		return errors.New("empty link target")
	}
	if filepath.IsAbs(linkname) || strings.HasPrefix(linkname, "/") || filepath.VolumeName(linkname) != "" {
		return fmt.Errorf("link target %q is absolute", linkname)
	}
	if err := x.mkdirParent(name); err != nil {
		return err
	}

	parent, err := filepath.EvalSymlinks(filepath.Join(x.dir, filepath.Dir(name)))
	if err != nil {
		return fmt.Errorf("failed to resolve link directory: %w", err)
	}
	if !within(x.dir, filepath.Join(parent, filepath.FromSlash(linkname))) {
		return fmt.Errorf("link target %q is outside the destination", linkname)
	}

	if err := x.root.Symlink(linkname, name); err != nil {
		return fmt.Errorf("failed to create symlink: %w", err)
	}
	return nil
}

// writeHardlink creates name as a hard link to linkname, which is relative
// to the destination as in tar headers.
func (x *extractor) writeHardlink(name, linkname string) error {
	source, err := memberPath(linkname)
	if err != nil {
		return fmt.Errorf("hard link: %w", err)
	}
	if err := x.mkdirParent(name); err != nil {
		return err
	}
	if err := x.root.Link(source, name); err != nil {
		return fmt.Errorf("failed to create hard link: %w", err)
	}
	return nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// fileMode drops setuid, setgid, sticky and group/other write bits and makes
// sure the owner can read and write.
func fileMode(m fs.FileMode) fs.FileMode {
	return m.Perm()&^0o022 | 0o600
}

func dirMode(m fs.FileMode) fs.FileMode {
	return m.Perm()&^0o022 | 0o700
}
