package templates

import (
	"html/template"

	"github.com/a-h/templ"
)

const datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.5/bundles/datastar.js"

const pageStyle = `
body{font-family:system-ui,sans-serif;margin:0;background:#f5f7fb;color:#1f2933}
header{padding:1.5rem 2rem;background:#fff;border-bottom:1px solid #e4e7eb}
main{display:grid;grid-template-columns:240px 1fr;gap:1.5rem;padding:1.5rem 2rem}
.kpi-grid{display:grid;grid-template-columns:repeat(4,1fr);gap:1rem}
.kpi{background:#fff;border-radius:8px;padding:1rem;display:flex;flex-direction:column}
.kpi-value{font-size:1.6rem;font-weight:600}
.chart-grid{display:grid;grid-template-columns:repeat(2,1fr);gap:1rem;margin:1rem 0}
.chart{background:#fff;border-radius:8px;padding:1rem}
.chart img{max-width:100%}
.filters fieldset{border:1px solid #e4e7eb;border-radius:6px;margin-bottom:1rem}
.filters label{display:block}
.modern-table{width:100%;border-collapse:collapse;background:#fff}
.modern-table th,.modern-table td{padding:.4rem .6rem;border-bottom:1px solid #e4e7eb;text-align:left}
.status{margin-bottom:1rem}
`

const uploadScript = `
document.getElementById('upload-form').addEventListener('submit', async (ev) => {
  ev.preventDefault();
  const status = document.getElementById('status');
  const res = await fetch('/api/upload', {method: 'POST', body: new FormData(ev.target)});
  const body = await res.json();
  if (!body.success) {
    status.textContent = body.error.message + (body.error.details ? ': ' + body.error.details : '');
    return;
  }
  document.getElementById('refresh').click();
});
`

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Sales Dashboard</title>
<script type="module" src="` + datastarScript + `"></script>
<style>` + pageStyle + `</style>
</head>
<body data-signals="{region: null, category: null}" data-on-load="@get('/sse/dashboard')">
<header>
<h1>Sales Dashboard</h1>
<p>Business performance overview</p>
<form id="upload-form" enctype="multipart/form-data">
<input type="file" name="file" accept=".csv,text/csv" required>
<button type="submit">Upload Sales CSV</button>
<button id="refresh" type="button" hidden data-on-click="$region = null; $category = null; @get('/sse/dashboard')">Refresh</button>
</form>
</header>
<main>
<aside><h2>Filters</h2><div id="filters"></div></aside>
<section>
<div id="status" class="status">Upload a CSV file to begin.</div>
<div id="kpis"></div>
<div id="charts"></div>
<div id="data-table"></div>
</section>
</main>
<script>` + uploadScript + `</script>
</body>
</html>`))

// Dashboard is the full page. Everything below the upload form is filled in
// by the /sse/dashboard stream.
func Dashboard() templ.Component {
	return fragment(dashboardTemplate, nil)
}
