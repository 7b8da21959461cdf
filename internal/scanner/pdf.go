package scanner

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/tiff"
)

// Document formats understood by EncodePage and the save job.
const (
	FormatPDF  = "application/pdf"
	FormatPNG  = "image/png"
	FormatJPEG = "image/jpeg"
	FormatTIFF = "image/tiff"
)

const jpegQuality = 90

// FormatForPath returns the document format matching the extension of
// path.
func FormatForPath(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return FormatPDF, nil
	case ".png":
		return FormatPNG, nil
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".tif", ".tiff":
		return FormatTIFF, nil
	}
	return "", fmt.Errorf("unsupported output extension %q", filepath.Ext(path))
}

// Extension returns the file extension for a document format.
func Extension(format string) string {
	switch format {
	case FormatPDF:
		return "pdf"
	case FormatJPEG:
		return "jpg"
	case FormatTIFF:
		return "tiff"
	}
	return "png"
}

// EncodePage writes a single page as PNG, JPEG or TIFF.
func EncodePage(w io.Writer, p Page, format string) error {
	img, err := p.Image.Image()
	if err != nil {
		return err
	}
	switch format {
	case FormatPNG, "":
		return png.Encode(w, img)
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("unsupported page format %q", format)
}

// WritePDF combines scanned pages into a single PDF file.
func WritePDF(pages []Page, dpi int, outputPath string) error {
	data, err := GeneratePDF(pages, dpi)
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0644)
}

// GeneratePDF combines scanned pages into a PDF in memory, one page per
// scan sized from its resolution. dpi is used for pages without one.
// Black and white pages are embedded as 1-bit PNG, others as JPEG.
func GeneratePDF(pages []Page, dpi int) ([]byte, error) {
	if len(pages) == 0 {
		return nil, fmt.Errorf("no pages to write")
	}
	if dpi <= 0 {
		dpi = 300
	}

	pdf := fpdf.New("P", "mm", "", "")
	pdf.SetAutoPageBreak(false, 0)

	for i, p := range pages {
		img, err := p.Image.Image()
		if err != nil {
			return nil, fmt.Errorf("convert page %d: %w", i+1, err)
		}

		pageDPI := dpi
		if p.Resolution > 0 {
			pageDPI = p.Resolution
		}
		b := img.Bounds()
		widthMM := float64(b.Dx()) / float64(pageDPI) * 25.4
		heightMM := float64(b.Dy()) / float64(pageDPI) * 25.4

		pdf.AddPageFormat("P", fpdf.SizeType{Wd: widthMM, Ht: heightMM})

		name := fmt.Sprintf("page%d", i)
		var buf bytes.Buffer
		imageType := "JPEG"
		if _, ok := img.(*image.Paletted); ok {
			imageType = "PNG"
			err = png.Encode(&buf, img)
		} else {
			err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
		}
		if err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i+1, err)
		}
		pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: imageType}, &buf)
		pdf.ImageOptions(name, 0, 0, widthMM, heightMM, false, fpdf.ImageOptions{}, 0, "")
	}

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("generate PDF: %w", err)
	}
	return out.Bytes(), nil
}
