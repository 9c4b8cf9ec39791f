package files

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureName(t *testing.T) {
	cases := map[string]string{
		"My cool movie.mov":       "My_cool_movie.mov",
		"../../../etc/passwd":     "etc_passwd",
		"Résumé Final.pdf":        "Resume_Final.pdf",
		"  .hidden ":              "hidden",
		"日本語.txt":                 "txt",
		"report (v2)!.docx":       "report_v2.docx",
		`C:\Users\me\endorse.pdf`: "C_Users_me_endorse.pdf",
	}
	for in, want := range cases {
		assert.Equal(t, want, SecureName(in), in)
	}
}

func newStore(t *testing.T, maxPx int) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), maxPx)
	require.NoError(t, err)
	return s
}

func TestSaveAndRemove(t *testing.T) {
	s := newStore(t, 0)

	name, err := s.Save("dar_7", "week 1.pdf", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "dar_7_"))
	assert.True(t, strings.HasSuffix(name, "_week_1.pdf"))
	assert.True(t, s.Exists(name))

	b, err := os.ReadFile(filepath.Join(s.Dir(), name))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))

	require.NoError(t, s.Remove(name))
	assert.False(t, s.Exists(name))
	// 2回目も成功
	require.NoError(t, s.Remove(name))
}

func TestSaveGeneratesDistinctNames(t *testing.T) {
	s := newStore(t, 0)
	a, err := s.Save("x", "same.pdf", strings.NewReader("1"))
	require.NoError(t, err)
	b, err := s.Save("x", "same.pdf", strings.NewReader("2"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPathRejectsTraversal(t *testing.T) {
	s := newStore(t, 0)
	for _, bad := range []string{"", "../x", "a/b", ".env", ".."} {
		_, err := s.Path(bad)
		assert.ErrorIs(t, err, ErrBadName, bad)
	}
}

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestSaveImageDataURLDownscales(t *testing.T) {
	s := newStore(t, 100)

	name, err := s.SaveImageDataURL("attendance_3", pngDataURL(t, 400, 200))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(name, ".jpg"))

	img, err := imaging.Open(filepath.Join(s.Dir(), name))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())
	assert.Equal(t, 50, img.Bounds().Dy())
}

func TestSaveImageDataURLKeepsSmallImages(t *testing.T) {
	s := newStore(t, 1280)
	name, err := s.SaveImageDataURL("a", pngDataURL(t, 64, 48))
	require.NoError(t, err)

	img, err := imaging.Open(filepath.Join(s.Dir(), name))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
}

func TestSaveImageDataURLRejectsGarbage(t *testing.T) {
	s := newStore(t, 100)
	for _, bad := range []string{"", "data:image/png,notbase64", "data:image/png;base64,!!!", base64.StdEncoding.EncodeToString([]byte("not an image"))} {
		_, err := s.SaveImageDataURL("a", bad)
		assert.ErrorIs(t, err, ErrBadImage, bad)
	}
}

// 本体は 1x1 のまま IHDR の寸法だけを書き換えた PNG
func hugePNGDataURL(t *testing.T, w, h uint32) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 1, 1))))
	b := buf.Bytes()
	require.Equal(t, "IHDR", string(b[12:16]))
	binary.BigEndian.PutUint32(b[16:20], w)
	binary.BigEndian.PutUint32(b[20:24], h)
	binary.BigEndian.PutUint32(b[29:33], crc32.ChecksumIEEE(b[12:29]))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b)
}

func TestSaveImageDataURLRejectsHugeCanvas(t *testing.T) {
	s := newStore(t, 1280)

	_, err := s.SaveImageDataURL("attendance_3", hugePNGDataURL(t, 12000, 12000))
	assert.ErrorIs(t, err, ErrBadImage)
	assert.Contains(t, err.Error(), "exceeds")

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}
