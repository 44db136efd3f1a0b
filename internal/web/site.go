// Package web renders the storefront pages and serves the compiled assets.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/gorilla/mux"
	"github.com/punchamoorthee/voucherfront/internal/client"
	"github.com/punchamoorthee/voucherfront/internal/domain"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed assets
var assetFS embed.FS

const (
	siteTitle    = "Sheraton"
	staticMaxAge = "public, max-age=31536000"
)

// Catalog is the read side of the voucher store.
type Catalog interface {
	List() []domain.Voucher
	Lookup(id string) (domain.Voucher, bool)
}

type voucherView struct {
	ID          string
	Title       string
	Description string
	Price       string
}

type pageMessages struct {
	StartFailed       string
	NoPaymentURL      string
	ServerUnreachable string
}

type catalogPage struct {
	Lang     string
	Title    string
	Vouchers []voucherView
	Active   *voucherView
	Messages pageMessages
}

type resultPage struct {
	Lang    string
	Title   string
	Status  domain.CheckoutStatus
	Heading string
	Detail  string
}

var resultTexts = map[domain.CheckoutStatus][2]string{
	domain.CheckoutSuccess: {"Payment approved", "Your voucher is on its way. Check your inbox for the details."},
	domain.CheckoutPending: {"Payment pending", "We will confirm your voucher as soon as the payment is credited."},
	domain.CheckoutFailure: {"Payment not completed", "The payment could not be processed. You can try again."},
}

// Site serves the HTML pages and static assets of the storefront.
type Site struct {
	catalog   Catalog
	formatter *AmountFormatter
	lang      string
	assets    []fs.FS
	catalogT  *template.Template
	resultT   *template.Template
	logger    *zap.Logger
}

// NewSite parses the page templates. staticDir may be empty or missing, in
// which case only the built-in assets are served.
func NewSite(catalog Catalog, formatter *AmountFormatter, locale, staticDir string, logger *zap.Logger) (*Site, error) {
	if catalog == nil || formatter == nil {
		return nil, errors.New("web: catalog and formatter are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	catalogT, err := template.ParseFS(templateFS, "templates/layout.html", "templates/catalog.html")
	if err != nil {
		return nil, fmt.Errorf("parse catalog template: %w", err)
	}
	resultT, err := template.ParseFS(templateFS, "templates/layout.html", "templates/result.html")
	if err != nil {
		return nil, fmt.Errorf("parse result template: %w", err)
	}

	builtin, err := fs.Sub(assetFS, "assets")
	if err != nil {
		return nil, err
	}
	var assets []fs.FS
	if staticDir != "" {
		if info, err := os.Stat(staticDir); err == nil && info.IsDir() {
			assets = append(assets, os.DirFS(staticDir))
		} else {
			logger.Warn("static directory not found, serving built-in assets only", zap.String("dir", staticDir))
		}
	}
	assets = append(assets, builtin)

	return &Site{
		catalog:   catalog,
		formatter: formatter,
		lang:      locale,
		assets:    assets,
		catalogT:  catalogT,
		resultT:   resultT,
		logger:    logger,
	}, nil
}

// Home renders the voucher catalog. ?voucher=<id> opens the detail dialog;
// an unknown id renders the plain catalog.
func (s *Site) Home(w http.ResponseWriter, r *http.Request) {
	page := catalogPage{
		Lang:  s.lang,
		Title: siteTitle,
		Messages: pageMessages{
			StartFailed:       client.MsgStartFailed,
			NoPaymentURL:      client.MsgNoPaymentURL,
			ServerUnreachable: client.MsgServerUnreachable,
		},
	}
	for _, v := range s.catalog.List() {
		page.Vouchers = append(page.Vouchers, s.view(v))
	}
	if id := r.URL.Query().Get("voucher"); id != "" {
		if v, ok := s.catalog.Lookup(id); ok {
			active := s.view(v)
			page.Active = &active
		}
	}
	s.render(w, r, s.catalogT, page)
}

// CheckoutResult renders the page the provider sends the buyer back to.
func (s *Site) CheckoutResult(w http.ResponseWriter, r *http.Request) {
	status, ok := domain.ParseCheckoutStatus(mux.Vars(r)["status"])
	if !ok {
		http.NotFound(w, r)
		return
	}
	texts := resultTexts[status]
	s.render(w, r, s.resultT, resultPage{
		Lang:    s.lang,
		Title:   siteTitle,
		Status:  status,
		Heading: texts[0],
		Detail:  texts[1],
	})
}

// Fallback handles every request no route matched. Static files win, unknown
// API paths are 404 and any other GET gets the catalog page.
func (s *Site) Fallback(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	if s.ServeStatic(w, r) {
		return
	}
	s.Home(w, r)
}

// ServeStatic writes the asset at r.URL.Path if one exists and reports
// whether it did. Directories are never served, so there is no index lookup
// and no trailing-slash redirect.
func (s *Site) ServeStatic(w http.ResponseWriter, r *http.Request) bool {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" || !fs.ValidPath(name) {
		return false
	}
	for _, fsys := range s.assets {
		if s.serveFile(w, r, fsys, name) {
			return true
		}
	}
	return false
}

func (s *Site) serveFile(w http.ResponseWriter, r *http.Request, fsys fs.FS, name string) bool {
	f, err := fsys.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	rs, ok := f.(io.ReadSeeker)
	if !ok {
		s.logger.Warn("static file is not seekable", zap.String("name", name))
		return false
	}
	w.Header().Set("Cache-Control", staticMaxAge)
	http.ServeContent(w, r, info.Name(), info.ModTime(), rs)
	return true
}

func (s *Site) view(v domain.Voucher) voucherView {
	return voucherView{
		ID:          v.ID,
		Title:       v.Title,
		Description: v.Description,
		Price:       s.formatter.Format(v.Amount),
	}
}

func (s *Site) render(w http.ResponseWriter, r *http.Request, t *template.Template, data any) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("render page", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		buf.WriteTo(w)
	}
}
