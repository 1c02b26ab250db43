package share

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-capture/backend/internal/models"
)

type pageData struct {
	Title       string
	Status      string
	StreamURL   string
	StatusURL   string
	IntervalMS  int64
	MaxAttempts int
	Ready       bool
	Failed      bool
}

var pageTemplate = template.Must(template.New("share").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{margin:0;font-family:system-ui,sans-serif;background:#0f1115;color:#e6e6e6;display:flex;flex-direction:column;align-items:center;padding:2rem}
video{max-width:100%;width:960px;border-radius:8px;background:#000}
.state{margin-top:3rem;font-size:1.1rem;color:#9aa0a6}
.failed{color:#f28b82}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{if .Ready}}
<video controls preload="metadata" src="{{.StreamURL}}"></video>
{{else if .Failed}}
<p class="state failed">This recording failed to upload.</p>
{{else}}
<p class="state" id="state">This recording is still being prepared. The page updates when it is ready.</p>
<script>
(function () {
  var url = {{.StatusURL}}, interval = {{.IntervalMS}}, max = {{.MaxAttempts}}, attempts = 0;
  var el = document.getElementById("state");
  function fail() { el.className = "state failed"; el.textContent = "This recording failed to upload."; }
  function poll() {
    attempts++;
    fetch(url, {cache: "no-store"}).then(function (r) { return r.json(); }).then(function (body) {
      var s = body.data && body.data.status;
      if (s === "ready") { window.location.reload(); return; }
      if (s === "error") { fail(); return; }
      if (attempts >= max) { fail(); return; }
      setTimeout(poll, interval);
    }).catch(function () {
      if (attempts >= max) { fail(); return; }
      setTimeout(poll, interval);
    });
  }
  setTimeout(poll, interval);
})();
</script>
{{end}}
</body>
</html>
`))

func (h *Handler) renderPage(c *gin.Context, rec *models.Recording) {
	title := rec.Title
	if title == "" {
		title = "Recording"
	}
	data := pageData{
		Title:       title,
		Status:      string(rec.Status),
		StreamURL:   streamPath(rec.ID),
		StatusURL:   statusPath(rec.ID),
		IntervalMS:  h.poll.Interval.Milliseconds(),
		MaxAttempts: h.poll.MaxAttempts,
		Ready:       rec.Status == models.RecordingStatusReady,
		Failed:      rec.Status == models.RecordingStatusError,
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
	if err := pageTemplate.Execute(c.Writer, data); err != nil {
		h.logger.Warn("render share page failed", zap.String("recording_id", rec.ID), zap.Error(err))
	}
}
