package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FileSystem は実ファイルシステム・埋め込みファイルシステム・メモリ上のファイルシステムを統一的に扱う
// ファイル名の大文字小文字は区別しない
type FileSystem struct {
	fs       afero.Fs
	basePath string
	embedded bool
}

// New は任意のafero.FsからFileSystemを作成する（テストではafero.NewMemMapFsを渡す）
func New(fsys afero.Fs, basePath string) *FileSystem {
	return &FileSystem{fs: fsys, basePath: basePath}
}

// NewRealFS は実ファイルシステム用のFileSystemを作成する
func NewRealFS(basePath string) *FileSystem {
	return &FileSystem{fs: afero.NewOsFs(), basePath: basePath}
}

// NewEmbedFS は埋め込みファイルシステム用のFileSystemを作成する
func NewEmbedFS(fsys fs.FS, basePath string) *FileSystem {
	return &FileSystem{fs: afero.FromIOFS{FS: fsys}, basePath: basePath, embedded: true}
}

// ReadFile はファイルの内容を読み込む（大文字小文字を無視）
func (f *FileSystem) ReadFile(name string) ([]byte, error) {
	actual, err := f.resolve(name)
	if err != nil {
		return nil, err
	}
	return afero.ReadFile(f.fs, actual)
}

// ReadDir はディレクトリの内容を読み込む
func (f *FileSystem) ReadDir(name string) ([]os.FileInfo, error) {
	return afero.ReadDir(f.fs, f.join(name))
}

// Exists はファイルが存在するかどうかを返す（大文字小文字を無視）
func (f *FileSystem) Exists(name string) bool {
	_, err := f.resolve(name)
	return err == nil
}

// FindFile は大文字小文字を無視してファイルを検索し、実際のパスを返す
func (f *FileSystem) FindFile(dir, filename string) (string, error) {
	return FindFileCaseInsensitive(f.fs, f.join(dir), filename)
}

// BasePath はベースパスを返す
func (f *FileSystem) BasePath() string {
	return f.basePath
}

// IsEmbedded は埋め込みファイルシステムかどうかを返す
func (f *FileSystem) IsEmbedded() bool {
	return f.embedded
}

// Name はデバッグ用にファイルシステムの種類を返す
func (f *FileSystem) Name() string {
	return fmt.Sprintf("%s:%s", f.fs.Name(), f.basePath)
}

func (f *FileSystem) join(name string) string {
	// 先頭の "/" や "\" を除去
	clean := strings.TrimPrefix(strings.TrimPrefix(name, "/"), "\\")
	if clean == "" || clean == "." {
		if f.basePath == "" {
			return "."
		}
		return f.basePath
	}
	if f.basePath == "" {
		return clean
	}
	if f.embedded {
		// fs.FS は常に "/" 区切り
		return path.Join(f.basePath, clean)
	}
	return filepath.Join(f.basePath, clean)
}

func (f *FileSystem) resolve(name string) (string, error) {
	full := f.join(name)

	// まず直接アクセスを試みる
	if info, err := f.fs.Stat(full); err == nil && !info.IsDir() {
		return full, nil
	}

	// 大文字小文字を無視して検索
	dir, base := path.Split(filepath.ToSlash(full))
	dir = strings.TrimSuffix(dir, "/")
	if dir == "" {
		dir = "."
	}
	return FindFileCaseInsensitive(f.fs, dir, base)
}
