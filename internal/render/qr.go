// Package render is the artifact renderer shipped with the repo: a QR PNG
// for the checkpoint scanner and a print-ready HTML permit document.
package render

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"

	"github.com/adamscao/permitserver/internal/credential"
	"github.com/adamscao/permitserver/internal/models"
)

// FileRenderer renders credential artifacts into a directory on disk.
type FileRenderer struct {
	dir  string
	size int
}

// NewFileRenderer creates a renderer writing into dir with QR images of
// size x size pixels.
func NewFileRenderer(dir string, size int) *FileRenderer {
	return &FileRenderer{dir: dir, size: size}
}

// Render produces the scannable QR image and the printable permit document
// for a credential payload.
func (r *FileRenderer) Render(payload string, req *models.AccessRequest) (credential.Artifacts, error) {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return credential.Artifacts{}, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	imageRef, err := r.renderQR(payload, req.ID)
	if err != nil {
		return credential.Artifacts{}, err
	}

	documentRef, err := r.renderDocument(req, imageRef)
	if err != nil {
		return credential.Artifacts{}, err
	}

	return credential.Artifacts{ImageRef: imageRef, DocumentRef: documentRef}, nil
}

func (r *FileRenderer) renderQR(payload, requestID string) (string, error) {
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR: %w", err)
	}

	scaled, err := barcode.Scale(code, r.size, r.size)
	if err != nil {
		return "", fmt.Errorf("failed to scale QR: %w", err)
	}

	path := filepath.Join(r.dir, fmt.Sprintf("qr-%s.png", requestID))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create QR image file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, scaled); err != nil {
		return "", fmt.Errorf("failed to write QR image: %w", err)
	}

	return path, nil
}
