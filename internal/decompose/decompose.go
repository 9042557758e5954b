// Package decompose expands uploaded files into image units: PDFs are
// rasterized page by page, images pass through, zip archives are unpacked
// and their entries expanded in turn.
package decompose

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
)

// Input is one uploaded file already saved to disk.
type Input struct {
	Name string
	Path string
	Size int64
}

// Decomposer turns uploads into source files with image units. Failures are
// recorded on the source file, never returned: a file that cannot be
// decomposed still appears in the batch with its error.
type Decomposer struct {
	workDir        string
	maxFileBytes   int64
	maxPagesPerDoc int
	logger         zerolog.Logger
}

// New creates a decomposer writing page images under workDir.
func New(workDir string, maxFileSizeMB int64, maxPagesPerDoc int, logger zerolog.Logger) *Decomposer {
	return &Decomposer{
		workDir:        workDir,
		maxFileBytes:   maxFileSizeMB * 1024 * 1024,
		maxPagesPerDoc: maxPagesPerDoc,
		logger:         logger,
	}
}

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".bmp":  true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
}

// DetectKind classifies a file by extension. Unsupported extensions return
// false.
func DetectKind(name string) (domain.FileKind, bool) {
	switch ext := strings.ToLower(filepath.Ext(name)); {
	case ext == ".pdf":
		return domain.KindPDF, true
	case ext == ".zip":
		return domain.KindArchive, true
	case imageExtensions[ext]:
		return domain.KindImage, true
	default:
		return "", false
	}
}

// Decompose expands one upload. Archives yield their children, each carrying
// the archive's file ID as parent; other kinds yield a single source file.
func (d *Decomposer) Decompose(ctx context.Context, in Input) []*domain.SourceFile {
	kind, ok := DetectKind(in.Name)
	if !ok {
		f := domain.NewSourceFile(in.Name, "")
		f.DecompositionErr = domain.DecompositionError(domain.FailUnsupportedFormat,
			fmt.Sprintf("unsupported file type %q", filepath.Ext(in.Name)), nil)
		f.Status = domain.StatusFailed
		return []*domain.SourceFile{f}
	}

	f := domain.NewSourceFile(in.Name, kind)

	if in.Size > d.maxFileBytes {
		f.DecompositionErr = domain.DecompositionError(domain.FailFileTooLarge,
			fmt.Sprintf("file is %d bytes, limit is %d", in.Size, d.maxFileBytes), nil)
		f.Status = domain.StatusFailed
		return []*domain.SourceFile{f}
	}

	switch kind {
	case domain.KindImage:
		f.Units = []*domain.ImageUnit{domain.NewImageUnit(f.ID, 1, in.Path, in.Size)}
		return []*domain.SourceFile{f}
	case domain.KindPDF:
		d.decomposePDF(ctx, f, in.Path)
		return []*domain.SourceFile{f}
	default:
		return d.decomposeArchive(ctx, f, in.Path)
	}
}

// unitDir creates a per-file directory for rendered or extracted images.
func (d *Decomposer) unitDir(fileID string) (string, error) {
	dir := filepath.Join(d.workDir, fileID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create unit directory: %w", err)
	}
	return dir, nil
}
