// Package web holds the server-rendered pages and the engine that renders them.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/template/html/v2"
	"github.com/mergestat/timediff"

	"github.com/Windi-Fikriyansyah/freelancehub/internal/models"
)

//go:embed views
var viewsFS embed.FS

const Layout = "layouts/main"

// PhotoFunc resolves the image shown for a user (uploaded photo or avatar).
type PhotoFunc func(u models.User) string

// NewEngine builds the html engine over the embedded views.
func NewEngine(photo PhotoFunc) *html.Engine {
	sub, err := fs.Sub(viewsFS, "views")
	if err != nil {
		panic(err)
	}

	engine := html.NewFileSystem(http.FS(sub), ".html")
	engine.AddFuncMap(Funcs(photo))
	return engine
}

func Funcs(photo PhotoFunc) map[string]interface{} {
	if photo == nil {
		photo = func(u models.User) string { return u.ProfilePhoto }
	}
	return map[string]interface{}{
		"photoURL": photo,
		"since": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return timediff.TimeDiff(t)
		},
		"comma": func(n int64) string { return humanize.Comma(n) },
		"date":  func(t time.Time) string { return t.Format("January 2, 2006") },
		"fieldErrors": func(errs map[string][]string, field string) []string {
			if errs == nil {
				return nil
			}
			return errs[field]
		},
	}
}
