package render

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/adamscao/permitserver/internal/models"
)

// The original permit form is a printed page: subject data, vehicle
// details, photos if present, and the scannable code. Rendered as
// print-ready HTML.
var documentTemplate = template.Must(template.New("permit").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Vehicle Access Permit {{.Request.VehiclePlate}}</title>
<style>
body { font-family: sans-serif; max-width: 640px; margin: 2em auto; }
h1 { font-size: 1.4em; border-bottom: 2px solid #333; padding-bottom: 0.3em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td { border: 1px solid #999; padding: 0.4em 0.6em; }
td.label { width: 35%; font-weight: bold; background: #f2f2f2; }
.qr { text-align: center; margin: 1.5em 0; }
img.photo { max-width: 280px; margin: 0.5em; }
@media print { body { margin: 0.5em; } }
</style>
</head>
<body>
<h1>Workshop Vehicle Access Permit</h1>
<table>
<tr><td class="label">Name</td><td>{{.Request.HolderName}}</td></tr>
<tr><td class="label">ID</td><td>{{.Request.HolderID}}</td></tr>
<tr><td class="label">Program</td><td>{{.Request.Program}}</td></tr>
<tr><td class="label">Plate</td><td>{{.Request.VehiclePlate}}</td></tr>
<tr><td class="label">Model</td><td>{{.Request.VehicleModel}}</td></tr>
<tr><td class="label">Color</td><td>{{.Request.VehicleColor}}</td></tr>
{{if .Request.GarageLocation}}<tr><td class="label">Garage</td><td>{{.Request.GarageLocation}}</td></tr>{{end}}
{{if .Request.ModificationNotes}}<tr><td class="label">Modifications</td><td>{{.Request.ModificationNotes}}</td></tr>{{end}}
</table>
{{if .Request.VehiclePhotoRef}}<img class="photo" src="{{.Request.VehiclePhotoRef}}" alt="vehicle photo">{{end}}
{{if .Request.VehicleIDPhotoRef}}<img class="photo" src="{{.Request.VehicleIDPhotoRef}}" alt="vehicle id photo">{{end}}
<div class="qr"><img src="{{.QRImage}}" alt="permit QR"></div>
<p>Present this permit and scan the code at the workshop checkpoint.</p>
</body>
</html>
`))

type documentData struct {
	Request *models.AccessRequest
	QRImage string
}

func (r *FileRenderer) renderDocument(req *models.AccessRequest, qrImagePath string) (string, error) {
	path := filepath.Join(r.dir, fmt.Sprintf("permit-%s.html", req.ID))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create permit document: %w", err)
	}
	defer f.Close()

	// Reference the QR by file name so the document stays portable
	// alongside its image.
	data := documentData{Request: req, QRImage: filepath.Base(qrImagePath)}
	if err := documentTemplate.Execute(f, data); err != nil {
		return "", fmt.Errorf("failed to render permit document: %w", err)
	}

	return path, nil
}
