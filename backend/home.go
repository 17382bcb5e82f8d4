package backend

import (
	"fmt"
	"html"
	"net/http"
	"os"

	"github.com/brutella/hc/log"
)

const homeHead = `<html>
<head>
<title>Curling camera</title>
<style>
body { margin:0; background:black; color:#ccc; font-family:sans-serif; }
th, td { padding: 8px; text-align: center; }
</style>
</head>
<body>
`

const homeScript = `<script type='text/javascript'>
(function() {
  var img = document.getElementById('last');
  var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
  var ws = new WebSocket(proto + location.host + '/ws');
  ws.onmessage = function() { img.src = '/last.jpg?' + Date.now(); };
})();
</script>
`

func (b *Backend) getHome(w http.ResponseWriter, r *http.Request) {
	log.Debug.Println("WebService: getHome requested")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := os.Stat(b.lastFile); err != nil {
		fmt.Fprint(w, "<p>No image yet.</p>")
		return
	}

	homepage := homeHead +
		"<img id='last' src='/last.jpg' style='width:100%;height:auto;display:block;'/>\n"

	if b.history != nil {
		entries, err := b.history.Recent(10)
		if err != nil {
			log.Info.Println("WebService:", err)
		}
		if len(entries) > 0 {
			homepage += `<table style="margin-left:auto;margin-right:auto;">
<tr><th>Date and Time</th><th>Reason</th><th>Score</th><th>Snapshot</th></tr>
`
			for _, e := range entries {
				homepage += fmt.Sprintf(
					"<tr><td>%s</td><td>%s</td><td>%.2f</td><td><a href='/history/%d.jpg'><img src='/history/%d.jpg' alt=snapshot width=160 /></a></td></tr>\n",
					html.EscapeString(e.Datetime), html.EscapeString(e.Reason), e.Score, e.ID, e.ID)
			}
			homepage += "</table>\n"
		}
	}

	homepage += homeScript + "</body>\n</html>\n"
	fmt.Fprint(w, homepage)
}
