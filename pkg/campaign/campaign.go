package campaign

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/afero"
	"github.com/zurustar/mission-vm/pkg/fileutil"
	"github.com/zurustar/mission-vm/pkg/logger"
	"github.com/zurustar/mission-vm/pkg/mission"
	"github.com/zurustar/mission-vm/pkg/script"
)

// EmbedRoot はembedされたキャンペーンのルートディレクトリ
const EmbedRoot = "missions"

// ManifestFile はキャンペーン設定ファイル名
const ManifestFile = "campaign.toml"

// DefaultMissionFile はマニフェストがない場合に優先されるファイル名
const DefaultMissionFile = "MISSION.INI"

// Manifest はcampaign.tomlの構造
type Manifest struct {
	Name           string `toml:"name"`
	MissionFile    string `toml:"missionFile"`
	DefaultMission int    `toml:"defaultMission"`
	Encoding       string `toml:"encoding"`
}

// Campaign はミッションファイルを含む1つのディレクトリを表す
type Campaign struct {
	Name       string   // ディレクトリ名
	Path       string   // パス（embedの場合は仮想パス）
	IsEmbedded bool     // embedされたキャンペーンかどうか
	Manifest   Manifest // campaign.tomlの内容（なければゼロ値）

	fs *fileutil.FileSystem
}

// DisplayName はキャンペーンの表示名を返す
// マニフェストに名前があればそれを、なければディレクトリ名を返す
func (c *Campaign) DisplayName() string {
	if c.Manifest.Name != "" {
		return c.Manifest.Name
	}
	return c.Name
}

// FileSystem はキャンペーンのファイルシステムを返す
func (c *Campaign) FileSystem() *fileutil.FileSystem {
	return c.fs
}

// MissionFile 読み込むミッションファイル名を決定
// 1. マニフェストで指定されていればそれを使用
// 2. MISSION.INIがあればそれを使用
// 3. どちらもなければ最初に見つかった.INIファイル
func (c *Campaign) MissionFile() (string, error) {
	if c.Manifest.MissionFile != "" {
		return c.Manifest.MissionFile, nil
	}
	if c.fs.Exists(DefaultMissionFile) {
		return DefaultMissionFile, nil
	}

	files, err := script.NewLoader(c.fs).FindMissionFiles()
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no mission files found in %s", c.Path)
	}
	return files[0], nil
}

// LoadMissions ミッションファイルを読み込んでパースする
func (c *Campaign) LoadMissions(log *slog.Logger) ([]*mission.Mission, []mission.Anomaly, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	name, err := c.MissionFile()
	if err != nil {
		return nil, nil, err
	}

	loader := script.NewLoader(c.fs)
	if err := loader.SetEncoding(c.Manifest.Encoding); err != nil {
		return nil, nil, fmt.Errorf("campaign %s: %w", c.Name, err)
	}

	s, err := loader.Load(name)
	if err != nil {
		return nil, nil, fmt.Errorf("campaign %s: %w", c.Name, err)
	}

	parser := mission.NewParser(mission.WithLogger(log))
	missions := parser.Parse(s.Content)
	if len(missions) == 0 {
		return nil, parser.Anomalies(), fmt.Errorf("no missions in %s", s.FileName)
	}

	log.Info("Missions loaded",
		"campaign", c.DisplayName(),
		"file", s.FileName,
		"size", s.Size,
		"missions", len(missions),
		"anomalies", len(parser.Anomalies()))
	return missions, parser.Anomalies(), nil
}

// SelectMission ミッションを選択
// 戻り値: (選択されたミッション, 選択画面が必要か, エラー)
// idが0以外ならそのミッション、0ならマニフェストのdefaultMission、
// それもなく単一のミッションなら自動選択
func (c *Campaign) SelectMission(missions []*mission.Mission, id int) (*mission.Mission, bool, error) {
	if len(missions) == 0 {
		return nil, false, fmt.Errorf("no missions available")
	}

	if id == 0 {
		id = c.Manifest.DefaultMission
	}
	if id != 0 {
		m, ok := mission.Find(missions, id)
		if !ok {
			return nil, false, fmt.Errorf("mission %d not found", id)
		}
		return m, false, nil
	}

	if len(missions) == 1 {
		return missions[0], false, nil
	}

	// 複数のミッションがある場合は選択画面が必要
	return nil, true, nil
}

// Registry はキャンペーンの管理を行う
type Registry struct {
	embedded []Campaign // embedされたキャンペーン一覧
	external *Campaign  // 外部から指定されたキャンペーン
	osFs     afero.Fs   // 外部キャンペーン用のファイルシステム
}

// RegistryOption はRegistryの設定
type RegistryOption func(*Registry)

// WithFs 外部キャンペーンの読み込みに使うファイルシステムを指定（テスト用）
func WithFs(fsys afero.Fs) RegistryOption {
	return func(r *Registry) {
		r.osFs = fsys
	}
}

// NewRegistry Registryを作成
// embedFSのmissions/直下、およびそのサブディレクトリをキャンペーンとして検出する
func NewRegistry(embedFS fs.FS, opts ...RegistryOption) *Registry {
	r := &Registry{osFs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(r)
	}
	if embedFS != nil {
		r.loadEmbedded(embedFS)
	}
	return r
}

// loadEmbedded embedされたキャンペーンを検出して読み込む
func (r *Registry) loadEmbedded(embedFS fs.FS) {
	root := fileutil.NewEmbedFS(embedFS, EmbedRoot)
	entries, err := root.ReadDir(".")
	if err != nil {
		// missionsディレクトリが存在しない場合は何もしない
		return
	}

	hasFiles := false
	for _, entry := range entries {
		if entry.IsDir() {
			p := path.Join(EmbedRoot, entry.Name())
			r.addEmbedded(entry.Name(), p, fileutil.NewEmbedFS(embedFS, p))
			continue
		}
		if strings.EqualFold(path.Ext(entry.Name()), ".ini") {
			hasFiles = true
		}
	}

	// ルート直下のミッションファイルは1つのキャンペーンとして扱う
	if hasFiles {
		r.embedded = append([]Campaign{newCampaign(EmbedRoot, EmbedRoot, true, root)}, r.embedded...)
	}
}

func (r *Registry) addEmbedded(name, p string, fsys *fileutil.FileSystem) {
	files, err := script.NewLoader(fsys).FindMissionFiles()
	if err != nil || len(files) == 0 {
		return
	}
	r.embedded = append(r.embedded, newCampaign(name, p, true, fsys))
}

func newCampaign(name, p string, embedded bool, fsys *fileutil.FileSystem) Campaign {
	c := Campaign{
		Name:       name,
		Path:       p,
		IsEmbedded: embedded,
		fs:         fsys,
	}
	c.Manifest = loadManifest(fsys)
	return c
}

// loadManifest はcampaign.tomlを読み込む（なければゼロ値）
func loadManifest(fsys *fileutil.FileSystem) Manifest {
	var m Manifest
	data, err := fsys.ReadFile(ManifestFile)
	if err != nil {
		return m
	}
	if _, err := toml.Decode(string(data), &m); err != nil {
		logger.GetLogger().Warn("Invalid campaign manifest ignored", "fs", fsys.Name(), "error", err)
		return Manifest{}
	}
	return m
}

// LoadExternal 外部ディレクトリ（またはミッションファイル）からキャンペーンを読み込む
func (r *Registry) LoadExternal(p string) error {
	info, err := r.osFs.Stat(p)
	if err != nil {
		return fmt.Errorf("campaign path does not exist: %s", p)
	}

	dir, file := p, ""
	if !info.IsDir() {
		// ファイルが指定された場合はそのディレクトリをキャンペーンとする
		dir, file = filepath.Dir(p), filepath.Base(p)
	}

	absPath := dir
	if _, isOs := r.osFs.(*afero.OsFs); isOs {
		if absPath, err = filepath.Abs(dir); err != nil {
			return fmt.Errorf("failed to get absolute path: %w", err)
		}
	}

	c := newCampaign(filepath.Base(absPath), absPath, false, fileutil.New(r.osFs, absPath))
	if file != "" {
		c.Manifest.MissionFile = file
	}
	r.external = &c
	return nil
}

// Available 利用可能なキャンペーン一覧を取得
func (r *Registry) Available() []Campaign {
	// 外部キャンペーンが指定されている場合はそれのみを返す
	if r.external != nil {
		return []Campaign{*r.external}
	}
	return append([]Campaign(nil), r.embedded...)
}

// Select キャンペーンを選択（単一の場合は自動選択）
// 戻り値: (選択されたキャンペーン, 選択画面が必要か, エラー)
func (r *Registry) Select() (*Campaign, bool, error) {
	campaigns := r.Available()

	if len(campaigns) == 0 {
		return nil, false, fmt.Errorf("no campaigns available")
	}
	if len(campaigns) == 1 {
		return &campaigns[0], false, nil
	}
	return nil, true, nil
}
