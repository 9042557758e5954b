package decompose

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/gen2brain/go-fitz"

	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
)

const jpegQuality = 85

// decomposePDF rasterizes each page to a JPEG on disk and records one unit
// per page. Any failure lands on the file's DecompositionErr.
func (d *Decomposer) decomposePDF(ctx context.Context, f *domain.SourceFile, path string) {
	doc, err := fitz.New(path)
	if err != nil {
		f.DecompositionErr = classifyPDFOpenError(path, err)
		f.Status = domain.StatusFailed
		return
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages == 0 {
		f.DecompositionErr = domain.DecompositionError(domain.FailCorruptFile, "pdf has no pages", nil)
		f.Status = domain.StatusFailed
		return
	}
	if pages > d.maxPagesPerDoc {
		f.DecompositionErr = domain.DecompositionError(domain.FailTooManyPages,
			fmt.Sprintf("pdf has %d pages, limit is %d", pages, d.maxPagesPerDoc), nil)
		f.Status = domain.StatusFailed
		return
	}

	dir, err := d.unitDir(f.ID)
	if err != nil {
		f.DecompositionErr = domain.DecompositionError(domain.FailCorruptFile, "prepare page image directory", err)
		f.Status = domain.StatusFailed
		return
	}

	for page := 0; page < pages; page++ {
		if ctx.Err() != nil {
			f.DecompositionErr = domain.CancelledError("batch cancelled during pdf rasterization")
			f.Status = domain.StatusFailed
			f.Units = nil
			return
		}

		img, err := doc.Image(page)
		if err != nil {
			f.DecompositionErr = domain.DecompositionError(domain.FailCorruptFile,
				fmt.Sprintf("rasterize page %d", page+1), err)
			f.Status = domain.StatusFailed
			f.Units = nil
			return
		}

		outPath := filepath.Join(dir, fmt.Sprintf("page_%03d.jpg", page+1))
		out, err := os.Create(outPath)
		if err != nil {
			f.DecompositionErr = domain.DecompositionError(domain.FailCorruptFile,
				fmt.Sprintf("write page %d image", page+1), err)
			f.Status = domain.StatusFailed
			f.Units = nil
			return
		}
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: jpegQuality})
		out.Close()
		if err != nil {
			f.DecompositionErr = domain.DecompositionError(domain.FailCorruptFile,
				fmt.Sprintf("encode page %d image", page+1), err)
			f.Status = domain.StatusFailed
			f.Units = nil
			return
		}

		info, _ := os.Stat(outPath)
		var size int64
		if info != nil {
			size = info.Size()
		}
		f.Units = append(f.Units, domain.NewImageUnit(f.ID, page+1, outPath, size))
	}

	d.logger.Debug().Str("file", f.Name).Int("pages", pages).Msg("pdf decomposed")
}

// classifyPDFOpenError distinguishes encrypted PDFs from plainly corrupt
// ones by sniffing the file, since the rasterizer reports both the same way.
func classifyPDFOpenError(path string, cause error) *domain.Error {
	data, err := os.ReadFile(path)
	if err == nil {
		if !bytes.HasPrefix(data, []byte("%PDF")) {
			return domain.DecompositionError(domain.FailCorruptFile, "file does not look like a pdf", cause)
		}
		if bytes.Contains(data, []byte("/Encrypt")) {
			return domain.DecompositionError(domain.FailPasswordProtected, "pdf is password protected", cause)
		}
	}
	return domain.DecompositionError(domain.FailCorruptFile, "open pdf", cause)
}
