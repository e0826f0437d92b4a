package api

import (
	"bytes"
	"html/template"

	"github.com/gofiber/fiber/v2"

	"candy-gallery/internal/gallery"
)

var pageTemplate = template.Must(template.New("gallery").Parse(`<!DOCTYPE html>
<html lang="fr">
<head><meta charset="utf-8"><title>Gallery</title></head>
<body>
{{- if .Notices}}
<ul class="notifications">
{{- range .Notices}}
  <li class="{{.Severity}}"><strong>{{.Title}}</strong> {{.Description}}</li>
{{- end}}
</ul>
{{- end}}
{{- if .View.Rows}}
<table class="gallery">
{{- range .View.Rows}}
  <tr>
  {{- range .}}
    <td><img src="{{.ImageURL}}" alt="{{.Name}}"><p>{{.Name}}</p></td>
  {{- end}}
  </tr>
{{- end}}
</table>
{{- else}}
<p class="{{.View.Kind}}">{{.View.Message}}</p>
{{- end}}
</body>
</html>
`))

func (s *Server) handlePage(c *fiber.Ctx) error {
	snap := s.gallery.Snapshot()

	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		View    gallery.View
		Notices any
	}{
		View:    gallery.Render(snap.Loading, snap.Gallery),
		Notices: s.notices.Active(),
	})
	if err != nil {
		return err
	}

	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}
