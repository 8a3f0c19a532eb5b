package mjpegcam

import (
	"bytes"
	"html/template"
)

const (
	rootPath      = "/"
	streamPath    = "/stream.mjpg"
	websocketPath = "/stream.ws"
)

var pageTemplate = template.Must(template.New("index").Parse(`<html>
<head>
<title>{{.Title}}</title>
</head>
<body>
<h1>{{.Title}} Stream</h1>
<img src="{{.Stream}}" width="{{.Width}}" height="{{.Height}}" />
</body>
</html>
`))

func renderPage(cfg Config) []byte {
	var buf bytes.Buffer
	err := pageTemplate.Execute(&buf, struct {
		Title  string
		Stream string
		Width  int
		Height int
	}{cfg.Title, streamPath, cfg.Width, cfg.Height})
	if err != nil {
		// Only reachable through a broken template, which Must already rules out.
		panic(err)
	}
	return buf.Bytes()
}
