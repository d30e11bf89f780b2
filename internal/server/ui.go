package server

import (
	"bytes"
	"html/template"
	"net/http"
)

// indexTmpl is parsed once at package init. The template is a compile-time
// constant, so a parse error is a programming bug that panics at startup.
var indexTmpl = template.Must(template.New("index").Parse(indexHTML))

type indexData struct {
	Techniques int
}

// handleIndex serves the embedded search UI. Anything other than the root
// path is a 404, since the mux routes every unmatched path here.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	// Render to buffer first so a template error produces a clean 500
	// instead of appending error text to a partial 200 response.
	var buf bytes.Buffer
	if err := indexTmpl.Execute(&buf, indexData{Techniques: s.st.Len()}); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "template error")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>D3tectConvert - ATT&amp;CK to D3FEND</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, monospace;
         background: #1a1a2e; color: #e0e0e0; padding: 2rem; }
  .container { max-width: 760px; margin: 0 auto; }
  h1 { font-size: 1.5rem; margin-bottom: 0.25rem; color: #fff; }
  .sub { font-size: 0.85rem; color: #888; margin-bottom: 1.5rem; }
  .searchrow { display: flex; gap: 0.5rem; margin-bottom: 1.5rem; position: relative; }
  input[type="text"] { flex: 1; padding: 0.6rem 0.8rem; border: 1px solid #2a2a4a;
         border-radius: 4px; background: #13132a; color: #e0e0e0; font-size: 1rem; }
  .btn { padding: 0.6rem 1.2rem; border: none; border-radius: 4px; cursor: pointer;
         font-size: 0.9rem; font-weight: 600; background: #3498db; color: #fff; }
  .btn:hover { background: #5dade2; }
  #suggestions { position: absolute; top: 2.6rem; left: 0; right: 6rem; background: #13132a;
         border: 1px solid #2a2a4a; border-radius: 4px; max-height: 16rem; overflow-y: auto;
         display: none; z-index: 10; }
  .suggestion { padding: 0.45rem 0.8rem; cursor: pointer; font-size: 0.85rem; }
  .suggestion:hover { background: #2a2a4a; }
  .summary { margin-bottom: 1rem; padding: 0.75rem 1rem; background: #2a2a4a;
         border-left: 4px solid #3498db; border-radius: 4px; font-size: 0.9rem; }
  .technique { margin-bottom: 1.5rem; background: #13132a; border: 1px solid #2a2a4a;
         border-radius: 8px; padding: 1rem; }
  .technique h2 { font-size: 1.05rem; color: #fff; margin-bottom: 0.75rem; }
  .cm { display: flex; justify-content: space-between; align-items: center; gap: 0.5rem;
         padding: 0.5rem 0.25rem; border-bottom: 1px solid #20203d; font-size: 0.9rem; }
  .cm:last-child { border-bottom: none; }
  .badge { display: inline-block; padding: 0.1rem 0.5rem; border-radius: 10px;
         font-size: 0.7rem; background: #2a2a4a; color: #9bc; margin-left: 0.35rem; }
  .cm a { color: #5dade2; text-decoration: none; }
  .cm a:hover { text-decoration: underline; }
  .error { padding: 0.75rem 1rem; background: #3a1f2b; border-left: 4px solid #c0392b;
         border-radius: 4px; }
  .footer { margin-top: 2rem; font-size: 0.75rem; color: #666; }
</style>
</head>
<body>
<div class="container">
  <h1>D3tectConvert</h1>
  <div class="sub">Map MITRE ATT&amp;CK techniques to D3FEND countermeasures. {{.Techniques}} techniques indexed.</div>

  <div class="searchrow">
    <input type="text" id="q" placeholder="T1566.001 or an attack name" autocomplete="off">
    <button class="btn" id="go">Search</button>
    <div id="suggestions"></div>
  </div>

  <div id="out"></div>

  <div class="footer">Data: MITRE D3FEND full mappings. Identifiers link to d3fend.mitre.org.</div>
</div>
<script src="/static/app.js"></script>
</body>
</html>`

// appJS drives the search box. Served as its own resource so the CSP can
// stay at script-src 'self' with no inline-script carve-out.
const appJS = `(function () {
  var q = document.getElementById('q');
  var out = document.getElementById('out');
  var sug = document.getElementById('suggestions');
  var attacks = null;

  function esc(s) {
    var d = document.createElement('div');
    d.appendChild(document.createTextNode(s == null ? '' : String(s)));
    return d.innerHTML;
  }

  function render(data) {
    if (data.error) {
      out.innerHTML = '<div class="error">' + esc(data.error) + '</div>';
      return;
    }
    if (!data.attack_matches.length) {
      out.innerHTML = '<div class="error">No D3FEND correlations for “' + esc(data.query) +
        '”. Try an ATT&amp;CK ID like T1566.001 or an attack name.</div>';
      return;
    }
    var html = '<div class="summary">' + data.attack_matches.length + ' technique(s), ' +
      data.total_d3fend + ' countermeasure(s)</div>';
    data.attack_matches.forEach(function (t) {
      html += '<div class="technique"><h2>' + esc(t.id) + ' — ' + esc(t.name) + '</h2>';
      t.d3fend.forEach(function (d) {
        html += '<div class="cm"><span><a href="' + esc(d.url) + '" rel="noopener" target="_blank">' +
          esc(d.id) + '</a> ' + esc(d.name);
        if (d.type) { html += '<span class="badge">' + esc(d.type) + '</span>'; }
        if (d.tactic_id) { html += '<span class="badge">' + esc(d.tactic_id) + '</span>'; }
        html += '</span></div>';
      });
      html += '</div>';
    });
    out.innerHTML = html;
  }

  function search() {
    sug.style.display = 'none';
    fetch('/search?q=' + encodeURIComponent(q.value))
      .then(function (r) { return r.json(); })
      .then(render)
      .catch(function () {
        out.innerHTML = '<div class="error">Lookup failed. Try again.</div>';
      });
  }

  function suggest() {
    var text = q.value.trim().toLowerCase();
    if (!attacks || !text) { sug.style.display = 'none'; return; }
    var hits = attacks.filter(function (a) {
      return a.id.toLowerCase().indexOf(text) !== -1 || a.name.toLowerCase().indexOf(text) !== -1;
    }).slice(0, 12);
    if (!hits.length) { sug.style.display = 'none'; return; }
    sug.innerHTML = hits.map(function (a) {
      return '<div class="suggestion" data-id="' + esc(a.id) + '">' + esc(a.id) + ' — ' + esc(a.name) + '</div>';
    }).join('');
    sug.style.display = 'block';
  }

  // Populate the autocomplete source once, on first focus.
  q.addEventListener('focus', function () {
    if (attacks) { return; }
    fetch('/api/attacks')
      .then(function (r) { return r.json(); })
      .then(function (list) { attacks = list; });
  });
  q.addEventListener('input', suggest);
  q.addEventListener('keydown', function (e) { if (e.key === 'Enter') { search(); } });
  sug.addEventListener('click', function (e) {
    var t = e.target.closest('.suggestion');
    if (!t) { return; }
    q.value = t.getAttribute('data-id');
    search();
  });
  document.getElementById('go').addEventListener('click', search);
})();`

// handleAppJS serves the UI script.
func (s *Server) handleAppJS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write([]byte(appJS))
}
