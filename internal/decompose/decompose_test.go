package decompose

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
)

func newTestDecomposer(t *testing.T) *Decomposer {
	t.Helper()
	return New(t.TempDir(), 100, 50, zerolog.Nop())
}

func writeFile(t *testing.T, dir, name string, data []byte) (string, int64) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path, int64(len(data))
}

func TestDetectKind(t *testing.T) {
	cases := map[string]domain.FileKind{
		"scan.pdf":   domain.KindPDF,
		"SCAN.PDF":   domain.KindPDF,
		"photo.jpg":  domain.KindImage,
		"photo.JPEG": domain.KindImage,
		"shot.png":   domain.KindImage,
		"pic.webp":   domain.KindImage,
		"bundle.zip": domain.KindArchive,
	}
	for name, want := range cases {
		kind, ok := DetectKind(name)
		require.True(t, ok, name)
		assert.Equal(t, want, kind, name)
	}

	for _, name := range []string{"notes.txt", "sheet.xlsx", "noext", "video.mp4"} {
		_, ok := DetectKind(name)
		assert.False(t, ok, name)
	}
}

func TestDecomposeImagePassesThrough(t *testing.T) {
	d := newTestDecomposer(t)
	path, size := writeFile(t, t.TempDir(), "pan.png", []byte("png bytes"))

	files := d.Decompose(context.Background(), Input{Name: "pan.png", Path: path, Size: size})
	require.Len(t, files, 1)
	f := files[0]

	require.Nil(t, f.DecompositionErr)
	assert.Equal(t, domain.KindImage, f.Kind)
	require.Len(t, f.Units, 1)
	assert.Equal(t, 1, f.Units[0].Position)
	assert.Equal(t, path, f.Units[0].ImagePath)
	assert.Equal(t, size, f.Units[0].SizeBytes)
}

func TestDecomposeUnsupportedFormat(t *testing.T) {
	d := newTestDecomposer(t)
	files := d.Decompose(context.Background(), Input{Name: "report.docx", Path: "/tmp/report.docx", Size: 10})

	require.Len(t, files, 1)
	require.NotNil(t, files[0].DecompositionErr)
	assert.Equal(t, domain.FailUnsupportedFormat, files[0].DecompositionErr.Category)
	assert.Equal(t, domain.StatusFailed, files[0].Status)
}

func TestDecomposeFileTooLarge(t *testing.T) {
	d := New(t.TempDir(), 1, 50, zerolog.Nop()) // 1 MB limit
	files := d.Decompose(context.Background(), Input{Name: "huge.pdf", Path: "/tmp/huge.pdf", Size: 2 << 20})

	require.Len(t, files, 1)
	require.NotNil(t, files[0].DecompositionErr)
	assert.Equal(t, domain.FailFileTooLarge, files[0].DecompositionErr.Category)
}

func buildZip(t *testing.T, dir string, entries map[string][]byte) (string, int64) {
	t.Helper()
	path := filepath.Join(dir, "bundle.zip")
	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for name, data := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
	info, err := os.Stat(path)
	require.NoError(t, err)
	return path, info.Size()
}

func TestDecomposeArchive(t *testing.T) {
	d := newTestDecomposer(t)
	path, size := buildZip(t, t.TempDir(), map[string][]byte{
		"docs/pan.png":          []byte("png one"),
		"docs/aadhaar.jpg":      []byte("jpg two"),
		"__MACOSX/docs/pan.png": []byte("resource fork"),
		"docs/.DS_Store":        []byte("finder junk"),
		"docs/._aadhaar.jpg":    []byte("apple double"),
		"notes.txt":             []byte("not an image"),
	})

	files := d.Decompose(context.Background(), Input{Name: "bundle.zip", Path: path, Size: size})

	// Two images plus the unsupported text entry; metadata skipped silently.
	require.Len(t, files, 3)

	var images, unsupported int
	for _, f := range files {
		assert.NotEmpty(t, f.ParentID, "children keep archive provenance")
		if f.DecompositionErr != nil {
			assert.Equal(t, domain.FailUnsupportedFormat, f.DecompositionErr.Category)
			unsupported++
			continue
		}
		assert.Equal(t, domain.KindImage, f.Kind)
		require.Len(t, f.Units, 1)
		data, err := os.ReadFile(f.Units[0].ImagePath)
		require.NoError(t, err)
		assert.NotEmpty(t, data)
		images++
	}
	assert.Equal(t, 2, images)
	assert.Equal(t, 1, unsupported)
}

func TestDecomposeArchiveRejectsNestedZip(t *testing.T) {
	d := newTestDecomposer(t)
	path, size := buildZip(t, t.TempDir(), map[string][]byte{
		"inner.zip": []byte("zip in zip"),
		"ok.png":    []byte("png"),
	})

	files := d.Decompose(context.Background(), Input{Name: "outer.zip", Path: path, Size: size})
	require.Len(t, files, 2)

	var nested *domain.SourceFile
	for _, f := range files {
		if filepath.Ext(f.Name) == ".zip" {
			nested = f
		}
	}
	require.NotNil(t, nested)
	require.NotNil(t, nested.DecompositionErr)
	assert.Equal(t, domain.FailUnsupportedFormat, nested.DecompositionErr.Category)
}

func TestDecomposeCorruptArchive(t *testing.T) {
	d := newTestDecomposer(t)
	path, size := writeFile(t, t.TempDir(), "broken.zip", []byte("this is not a zip"))

	files := d.Decompose(context.Background(), Input{Name: "broken.zip", Path: path, Size: size})
	require.Len(t, files, 1)
	require.NotNil(t, files[0].DecompositionErr)
	assert.Equal(t, domain.FailCorruptFile, files[0].DecompositionErr.Category)
}

func TestDecomposeEmptyArchive(t *testing.T) {
	d := newTestDecomposer(t)
	path, size := buildZip(t, t.TempDir(), map[string][]byte{
		".DS_Store": []byte("junk"),
	})

	files := d.Decompose(context.Background(), Input{Name: "empty.zip", Path: path, Size: size})
	assert.Empty(t, files, "a metadata-only archive contributes no files")
}

func TestClassifyPDFOpenError(t *testing.T) {
	dir := t.TempDir()

	notPDF, _ := writeFile(t, dir, "fake.pdf", []byte("MZ garbage"))
	err := classifyPDFOpenError(notPDF, nil)
	assert.Equal(t, domain.FailCorruptFile, err.Category)

	encrypted, _ := writeFile(t, dir, "locked.pdf", []byte("%PDF-1.7\n1 0 obj\n<</Encrypt 2 0 R>>"))
	err = classifyPDFOpenError(encrypted, nil)
	assert.Equal(t, domain.FailPasswordProtected, err.Category)

	plain, _ := writeFile(t, dir, "plain.pdf", []byte("%PDF-1.7\ntruncated"))
	err = classifyPDFOpenError(plain, nil)
	assert.Equal(t, domain.FailCorruptFile, err.Category)
}
