package remote

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

//go:embed client.js
var clientScript string

// Handler returns the HTTP handler serving pages, bridge notifications and
// the evaluation channel.
func (h *Host) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.intercept)
	r.Get(evalPath, h.serveEval)
	r.Get("/*", h.servePage)
	r.Head("/*", h.servePage)
	return r
}

// intercept reports every request to the navigation delegate as a
// navigation and answers the ones it cancels with 204.
func (h *Host) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		own := strings.HasPrefix(r.URL.Path, endpointPrefix)
		if own || strings.HasPrefix(r.URL.Path, h.bridgePrefix) {
			if !h.tokens.valid(r.URL.Query().Get(tokenParam)) {
				h.log.Debug().Str("path", r.URL.Path).Msg("rejecting request without channel token")
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}
		if own {
			next.ServeHTTP(w, r)
			return
		}

		// Every request, assets included, waits for a loop turn: the delegate
		// decides each load, and bridge commands are ordered with the other
		// loop jobs.
		allowed, err := h.shouldStartLoad(r.Context(), requestURL(r))
		if err != nil {
			http.Error(w, "host unavailable", http.StatusServiceUnavailable)
			return
		}
		if !allowed {
			w.Header().Set("Cache-Control", "no-store")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Host) servePage(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" || strings.HasSuffix(r.URL.Path, "/") {
		name = path.Join(name, "index.html")
	}
	if !strings.HasSuffix(name, ".html") {
		http.FileServer(http.FS(h.pages)).ServeHTTP(w, r)
		return
	}

	pageURL := requestURL(r)
	doc, err := fs.ReadFile(h.pages, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		h.didFailLoad(pageURL, err)
		http.Error(w, "read page", http.StatusInternalServerError)
		return
	}

	prelude, err := h.prelude()
	if err != nil {
		h.didFailLoad(pageURL, err)
		http.Error(w, "render page", http.StatusInternalServerError)
		return
	}

	h.didStartLoad(pageURL)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write([]byte(injectHead(string(doc), prelude))); err != nil {
		h.log.Debug().Err(err).Str("page", name).Msg("writing page failed")
	}
}

// prelude is the script block placed at the start of every page's head.
func (h *Host) prelude() (string, error) {
	query := "?" + tokenParam + "=" + url.QueryEscape(h.tokens.token)
	notifyQuery, err := json.Marshal(query)
	if err != nil {
		return "", err
	}
	endpoint, err := json.Marshal(evalPath + query)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("<script>\n")
	fmt.Fprintf(&b, "window.__wvjbNotifyQuery = %s;\nwindow.__wvjbEvalEndpoint = %s;\n", notifyQuery, endpoint)
	for _, script := range h.injectedScripts() {
		b.WriteString(escapeScript(script))
		b.WriteString("\n")
	}
	b.WriteString(clientScript)
	b.WriteString("</script>\n")
	return b.String(), nil
}

func (h *Host) serveEval(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("evaluation channel upgrade failed")
		return
	}

	pageURL := r.Referer()
	if pageURL == "" {
		pageURL = requestURL(r)
	}

	h.attach(conn)
	h.log.Debug().Str("page", pageURL).Msg("page connected")
	h.didFinishLoad(pageURL)

	defer func() {
		h.detach(conn)
		_ = conn.Close()
		h.log.Debug().Str("page", pageURL).Msg("page disconnected")
	}()

	for {
		var reply evalReply
		if err := conn.ReadJSON(&reply); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug().Err(err).Msg("evaluation channel read failed")
			}
			return
		}
		h.resolveEval(reply)
	}
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// injectHead inserts block right after the opening head tag, or at the
// start of documents without one.
func injectHead(doc, block string) string {
	lower := strings.ToLower(doc)
	start := strings.Index(lower, "<head")
	if start < 0 {
		return block + doc
	}
	end := strings.Index(lower[start:], ">")
	if end < 0 {
		return block + doc
	}
	at := start + end + 1
	return doc[:at] + "\n" + block + doc[at:]
}

func escapeScript(source string) string {
	return strings.ReplaceAll(source, "</script", `<\/script`)
}
