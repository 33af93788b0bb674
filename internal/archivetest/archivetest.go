// Package archivetest builds small release archives in memory for tests.
package archivetest

import (
	"archive/tar"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"io/fs"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// Entry is one archive member. Directories end in "/"; a non-empty Linkname
// makes the entry a symlink, a non-empty Hardlink a hard link (tar only).
type Entry struct {
	Name     string
	Body     string
	Mode     fs.FileMode
	Linkname string
	Hardlink string
}

func (e Entry) isDir() bool {
	return len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/'
}

func (e Entry) mode() fs.FileMode {
	if e.Mode != 0 {
		return e.Mode
	}
	if e.isDir() {
		return 0o755
	}
	return 0o644
}

// tarMode converts a FileMode to the unix mode bits stored in tar headers.
func tarMode(m fs.FileMode) int64 {
	mode := int64(m.Perm())
	if m&fs.ModeSetuid != 0 {
		mode |= 0o4000
	}
	if m&fs.ModeSetgid != 0 {
		mode |= 0o2000
	}
	if m&fs.ModeSticky != 0 {
		mode |= 0o1000
	}
	return mode
}

// TarGz returns a gzip-compressed tar archive holding entries.
func TarGz(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)

	for _, e := range entries {
		hdr := &tar.Header{Name: e.Name, Mode: tarMode(e.mode())}
		switch {
		case e.isDir():
			hdr.Typeflag = tar.TypeDir
		case e.Linkname != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.Linkname
		case e.Hardlink != "":
			hdr.Typeflag = tar.TypeLink
			hdr.Linkname = e.Hardlink
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(e.Body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write tar header %s: %v", e.Name, err)
		}
		if hdr.Typeflag == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				t.Fatalf("write tar body %s: %v", e.Name, err)
			}
		}
	}

	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

// Zip returns a zip archive holding entries.
func Zip(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		if e.Hardlink != "" {
			t.Fatalf("zip cannot hold hard link %s", e.Name)
		}
		fh := &zip.FileHeader{Name: e.Name, Method: zip.Deflate}
		body := e.Body
		switch {
		case e.isDir():
			fh.SetMode(fs.ModeDir | e.mode())
		case e.Linkname != "":
			fh.SetMode(fs.ModeSymlink | 0o777)
			body = e.Linkname
		default:
			fh.SetMode(e.mode())
		}
		w, err := zw.CreateHeader(fh)
		if err != nil {
			t.Fatalf("create zip entry %s: %v", e.Name, err)
		}
		if !e.isDir() {
			if _, err := w.Write([]byte(body)); err != nil {
				t.Fatalf("write zip entry %s: %v", e.Name, err)
			}
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// MD5 returns the hex MD5 digest of s.
func MD5(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
