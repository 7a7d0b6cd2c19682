package modules

import (
	"io/fs"
	"path"
	"strings"
)

// Asset is a resolved module location.
type Asset struct {
	ID   string // canonical id, without extension normalization
	Path string // cache key and argument to Read
}

// Resolver maps module ids to loadable sources.
type Resolver interface {
	Name() string
	Resolve(id string) (Asset, bool)
	Read(path string) ([]byte, error)
}

// FileResolver resolves modules on a file system. Each id is tried under
// every root, first as-is, then with each extension appended, then as a
// directory containing an index file.
type FileResolver struct {
	fsys       fs.FS
	roots      []string
	extensions []string
	indexes    []string
}

// FileOption configures a FileResolver.
type FileOption func(*FileResolver)

// WithRoots sets the search roots, tried in order. The default is ".".
func WithRoots(roots ...string) FileOption {
	return func(r *FileResolver) {
		r.roots = roots
	}
}

// WithExtensions sets the extensions appended to bare ids.
func WithExtensions(exts ...string) FileOption {
	return func(r *FileResolver) {
		r.extensions = exts
	}
}

// NewFileResolver returns a resolver over fsys.
func NewFileResolver(fsys fs.FS, opts ...FileOption) *FileResolver {
	r := &FileResolver{
		fsys:       fsys,
		roots:      []string{"."},
		extensions: []string{".js", ".json"},
		indexes:    []string{"index.js"},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *FileResolver) Name() string { return "fs" }

func (r *FileResolver) Resolve(id string) (Asset, bool) {
	for _, root := range r.roots {
		base := path.Join(root, id)
		if r.isFile(base) {
			return Asset{ID: id, Path: base}, true
		}
		for _, ext := range r.extensions {
			if strings.HasSuffix(id, ext) {
				continue
			}
			if p := base + ext; r.isFile(p) {
				return Asset{ID: id + ext, Path: p}, true
			}
		}
		for _, idx := range r.indexes {
			if p := path.Join(base, idx); r.isFile(p) {
				return Asset{ID: id + "/" + idx, Path: p}, true
			}
		}
	}
	return Asset{}, false
}

func (r *FileResolver) Read(p string) ([]byte, error) {
	return fs.ReadFile(r.fsys, p)
}

func (r *FileResolver) isFile(p string) bool {
	info, err := fs.Stat(r.fsys, p)
	return err == nil && !info.IsDir()
}
