package remote

import (
	_ "embed"
	"html/template"
	"log"
	"net/http"
)

// senderHTML is the page a phone opens to stream its sensors back to Path
//
//go:embed sender.html
var senderHTML string

var senderPage = template.Must(template.New("sender").Parse(senderHTML))

func (s *Server) serveSender(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := senderPage.Execute(w, struct{ Path string }{s.cfg.Path}); err != nil {
		log.Printf("remote: sender page: %v", err)
	}
}
