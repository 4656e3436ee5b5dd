package script

import (
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/zurustar/mission-vm/pkg/fileutil"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultEncoding は当時のWindows版ミッションファイルの文字コード
const DefaultEncoding = "windows-1252"

// Script はミッションスクリプトファイルを表す
type Script struct {
	FileName string // ファイル名
	Content  []byte // UTF-8に変換された内容
	Size     int64  // 元のファイルサイズ
}

// Loader はミッションスクリプトの読み込みを行う
type Loader struct {
	fs       *fileutil.FileSystem
	encoding encoding.Encoding
}

// NewLoader Loaderを作成
func NewLoader(fsys *fileutil.FileSystem) *Loader {
	return &Loader{
		fs:       fsys,
		encoding: charmap.Windows1252,
	}
}

// SetEncoding 入力ファイルの文字コードを設定
func (l *Loader) SetEncoding(name string) error {
	enc, err := LookupEncoding(name)
	if err != nil {
		return err
	}
	l.encoding = enc
	return nil
}

// Load 単一のスクリプトファイルを読み込む（ファイル名の大文字小文字は無視）
func (l *Loader) Load(name string) (*Script, error) {
	data, err := l.fs.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	content, err := Decode(data, l.encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to convert encoding: %w", err)
	}

	return &Script{
		FileName: path.Base(name),
		Content:  content,
		Size:     int64(len(data)),
	}, nil
}

// FindMissionFiles .INIファイルを検出（case-insensitive）
func (l *Loader) FindMissionFiles() ([]string, error) {
	entries, err := l.fs.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", l.fs.BasePath(), err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		// 拡張子をcase-insensitiveで比較
		if strings.EqualFold(path.Ext(entry.Name()), ".ini") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// LookupEncoding 文字コード名からエンコーディングを取得
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "windows-1252", "cp1252", "latin1":
		return charmap.Windows1252, nil
	case "cp437", "ibm437":
		return charmap.CodePage437, nil
	case "iso-8859-1":
		return charmap.ISO8859_1, nil
	case "utf-8", "utf8":
		return unicode.UTF8, nil
	case "shift-jis", "shift_jis", "sjis":
		// 日本語版のミッションファイル
		return japanese.ShiftJIS, nil
	default:
		return nil, fmt.Errorf("unsupported encoding: %s", name)
	}
}

// Decode 指定の文字コードからUTF-8に変換
func Decode(data []byte, enc encoding.Encoding) ([]byte, error) {
	reader := transform.NewReader(strings.NewReader(string(data)), enc.NewDecoder())
	out, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	return out, nil
}
