package corpus

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/soundprediction/minerva/pkg/types"
)

// maxDocumentSize bounds the size of a single corpus file.
const maxDocumentSize = 256 << 20

// File is one XML file of a corpus.
type File struct {
	// Path is the location inside the source (a file path or an archive member).
	Path string
	open func() (io.ReadCloser, error)
}

// NewFile describes a corpus file read through open, for sources that are not
// a directory or an archive.
func NewFile(path string, open func() (io.ReadCloser, error)) File {
	return File{Path: path, open: open}
}

// Name returns the base name of the file.
func (f File) Name() string {
	return path.Base(filepath.ToSlash(f.Path))
}

// Load reads and parses the file. Failures are *types.IOError.
func (f File) Load() (*Document, error) {
	rc, err := f.open()
	if err != nil {
		return nil, types.NewIOError("open", f.Path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxDocumentSize+1))
	if err != nil {
		return nil, types.NewIOError("read", f.Path, err)
	}
	if len(data) > maxDocumentSize {
		return nil, types.NewIOError("read", f.Path, fmt.Errorf("file too large: more than %d bytes", maxDocumentSize))
	}
	doc, err := ParseBytes(f.Name(), data)
	if err != nil {
		return nil, types.NewIOError("parse", f.Path, err)
	}
	return doc, nil
}

// Source lists the XML files of a corpus in name order.
type Source interface {
	Files() []File
}

// DirSource is a directory of *.xml files (not recursive).
type DirSource struct {
	dir   string
	files []File
}

// OpenDir lists the XML files of dir.
func OpenDir(dir string) (*DirSource, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.xml"))
	if err != nil {
		return nil, types.NewIOError("list", dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, types.NewIOError("stat", dir, err)
	}
	if !info.IsDir() {
		return nil, types.NewIOError("list", dir, fmt.Errorf("not a directory"))
	}
	sort.Strings(matches)

	src := &DirSource{dir: dir}
	for _, m := range matches {
		p := m
		src.files = append(src.files, File{
			Path: p,
			open: func() (io.ReadCloser, error) { return os.Open(p) },
		})
	}
	return src, nil
}

// Dir returns the directory the source reads from.
func (s *DirSource) Dir() string { return s.dir }

func (s *DirSource) Files() []File { return append([]File(nil), s.files...) }

// ZipSource is a zip archive; members ending in .xml are corpus files.
type ZipSource struct {
	files  []File
	closer io.Closer
}

// OpenZip opens a zip archive on disk. Close releases it.
func OpenZip(path string) (*ZipSource, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, types.NewIOError("open", path, err)
	}
	src := newZipSource(&rc.Reader)
	src.closer = rc
	return src, nil
}

// NewZipSource reads an in-memory zip archive, such as an upload.
func NewZipSource(data []byte) (*ZipSource, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, types.NewIOError("open", "archive", err)
	}
	return newZipSource(zr), nil
}

func newZipSource(zr *zip.Reader) *ZipSource {
	src := &ZipSource{}
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		zf := f
		src.files = append(src.files, File{Path: zf.Name, open: zf.Open})
	}
	sort.Slice(src.files, func(i, j int) bool { return src.files[i].Path < src.files[j].Path })
	return src
}

func (s *ZipSource) Files() []File { return append([]File(nil), s.files...) }

// Close releases the archive when it was opened from disk.
func (s *ZipSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Open opens a directory or a .zip archive.
func Open(path string) (Source, io.Closer, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, types.NewIOError("stat", path, err)
	}
	if info.IsDir() {
		src, err := OpenDir(path)
		if err != nil {
			return nil, nil, err
		}
		return src, nopCloser{}, nil
	}
	src, err := OpenZip(path)
	if err != nil {
		return nil, nil, err
	}
	return src, src, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// IssueOrder sorts files by the last two numeric parts of their stem, last part
// first ("mdf_1897_12.xml" sorts by (12, 1897)). Files without such parts come
// after, in name order.
func IssueOrder(files []File) []File {
	type keyed struct {
		file File
		key  []int
		ok   bool
	}
	items := make([]keyed, len(files))
	for i, f := range files {
		key, ok := issueKey(f.Name())
		items[i] = keyed{file: f, key: key, ok: ok}
	}
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.ok != b.ok {
			return a.ok
		}
		if !a.ok {
			return a.file.Path < b.file.Path
		}
		for k := 0; k < len(a.key) && k < len(b.key); k++ {
			if a.key[k] != b.key[k] {
				return a.key[k] < b.key[k]
			}
		}
		if len(a.key) != len(b.key) {
			return len(a.key) < len(b.key)
		}
		return a.file.Path < b.file.Path
	})

	out := make([]File, len(items))
	for i, item := range items {
		out[i] = item.file
	}
	return out
}

func issueKey(name string) ([]int, bool) {
	stem := strings.TrimSuffix(name, path.Ext(name))
	parts := strings.Split(stem, "_")
	var key []int
	for i := len(parts) - 1; i >= 0 && i >= len(parts)-2; i-- {
		v, err := strconv.Atoi(parts[i])
		if err != nil {
			return nil, false
		}
		key = append(key, v)
	}
	return key, true
}
