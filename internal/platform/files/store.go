package files

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/oklog/ulid/v2"

	"IMS-backend/internal/platform/apierr"
)

var (
	ErrBadName  = errors.New("invalid file name")
	ErrBadImage = errors.New("invalid image data")
)

// MaxImagePixels: デコード前にヘッダーの寸法で弾く上限（幅×高さ）
const MaxImagePixels = 40_000_000

type IDGen interface {
	New() (string, error)
}

type ulidGen struct {
	mu      sync.Mutex
	entropy io.Reader
}

func newULIDGen() *ulidGen {
	return &ulidGen{entropy: ulid.Monotonic(rand.Reader, 0)}
}

func (g *ulidGen) New() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), g.entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Store: アップロードディレクトリ配下だけを扱う
type Store struct {
	dir   string
	maxPx int
	ids   IDGen
}

func NewStore(dir string, maxCapturePx int) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Store{dir: abs, maxPx: maxCapturePx, ids: newULIDGen()}, nil
}

func (s *Store) Dir() string { return s.dir }

// name: <prefix>_<ULID>_<secure original>
func (s *Store) newName(prefix, original string) (string, error) {
	id, err := s.ids.New()
	if err != nil {
		return "", err
	}
	base := SecureName(original)
	if base == "" {
		base = "file"
	}
	p := SecureName(prefix)
	if p == "" {
		return id + "_" + base, nil
	}
	return p + "_" + id + "_" + base, nil
}

// Save: r の中身を新しい名前で書き込み、保存名を返す
func (s *Store) Save(prefix, original string, r io.Reader) (string, error) {
	name, err := s.newName(prefix, original)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return name, nil
}

func (s *Store) SaveUpload(prefix string, fh *multipart.FileHeader) (string, error) {
	if fh == nil || fh.Filename == "" {
		return "", apierr.Invalid("no file selected")
	}
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	return s.Save(prefix, fh.Filename, src)
}

// SaveImageDataURL: data URL（または素の base64）をデコードし、長辺 maxPx に縮めて JPEG で保存
func (s *Store) SaveImageDataURL(prefix, data string) (string, error) {
	raw, err := decodeDataURL(data)
	if err != nil {
		return "", err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return "", fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrBadImage, cfg.Width, cfg.Height, MaxImagePixels)
	}
	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	b := img.Bounds()
	if s.maxPx > 0 && (b.Dx() > s.maxPx || b.Dy() > s.maxPx) {
		img = imaging.Fit(img, s.maxPx, s.maxPx, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", err
	}
	return s.Save(prefix, "capture.jpg", &buf)
}

func decodeDataURL(data string) ([]byte, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return nil, ErrBadImage
	}
	if strings.HasPrefix(data, "data:") {
		i := strings.Index(data, ",")
		if i < 0 || !strings.Contains(data[:i], ";base64") {
			return nil, ErrBadImage
		}
		data = data[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadImage, err)
	}
	return raw, nil
}

// Path: 保存名を検証して絶対パスを返す。ディレクトリ外は拒否
func (s *Store) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", ErrBadName
	}
	p := filepath.Join(s.dir, name)
	rel, err := filepath.Rel(s.dir, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", ErrBadName
	}
	return p, nil
}

func (s *Store) Exists(name string) bool {
	p, err := s.Path(name)
	if err != nil {
		return false
	}
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// Remove: 存在しなければ何もしない
func (s *Store) Remove(name string) error {
	if name == "" {
		return nil
	}
	p, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
