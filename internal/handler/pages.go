package handler

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/crewcrew/internal/apperror"
	"github.com/sakif/crewcrew/internal/auth"
	"github.com/sakif/crewcrew/internal/model"
	"github.com/sakif/crewcrew/internal/progress"
	"github.com/sakif/crewcrew/internal/service"
)

// PageHandler serves the server-rendered pages: login, office (home),
// my page and shop.
//
// TEMPLATE LAYOUT:
// Every page is parsed together with base.html. base.html defines "base",
// which lays out the header and calls {{template "content" .}}; each page
// file defines its own "content". Parsing them in pairs keeps the
// "content" definitions from overwriting each other.
type PageHandler struct {
	pages     map[string]*template.Template
	session   *service.SessionStore
	shop      *service.ShopService
	crews     *service.CrewService
	providers []auth.ProviderName
	logger    *slog.Logger
}

// pageData is what every template receives. Pages use the fields they need.
type pageData struct {
	Local  *model.LocalProfile
	Remote *model.RemoteProfile
	Flash  string
	Error  string

	// login
	Username  string
	GuestName string
	Providers []auth.ProviderName

	// home
	Crews []model.Crew

	// shop
	Shop *shopView
}

var pageNames = []string{"login", "home", "mypage", "shop"}

var templateFuncs = template.FuncMap{
	"threshold": progress.Threshold,
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	// Avatars are data URIs, which html/template would otherwise replace
	// with "#ZgotmplZ". Only image data URIs are let through.
	"safeURL": func(s string) template.URL {
		if !strings.HasPrefix(s, "data:image/") {
			return ""
		}
		return template.URL(s)
	},
}

// NewPageHandler parses every page template up front, so a broken template
// fails at startup rather than on the first request.
func NewPageHandler(
	files fs.FS,
	session *service.SessionStore,
	shop *service.ShopService,
	crews *service.CrewService,
	providers []auth.ProviderName,
	logger *slog.Logger,
) (*PageHandler, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(files, "base.html", name+".html")
		if err != nil {
			return nil, err
		}
		pages[name] = t
	}
	return &PageHandler{
		pages:     pages,
		session:   session,
		shop:      shop,
		crews:     crews,
		providers: providers,
		logger:    logger,
	}, nil
}

// render executes the page into a buffer first. A template error halfway
// through would otherwise leave a half-written 200 page.
func (h *PageHandler) render(w http.ResponseWriter, status int, page string, data pageData) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "base", data); err != nil {
		h.logger.Error("template execution failed",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// data fills in the fields every page shows in its header.
func (h *PageHandler) data() pageData {
	return pageData{Local: h.session.Local(), Remote: h.session.Remote()}
}

// HandleLogin shows the login page.
//
// HTTP: GET /login
func (h *PageHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	d := pageData{Providers: h.providers}
	if r.URL.Query().Get("auth") == "denied" {
		d.Error = "Sign-in was cancelled."
	}
	h.render(w, http.StatusOK, "login", d)
}

// HandleLoginSubmit checks credentials with the backend.
//
// HTTP: POST /login (form: username, password)
//
// A rejected login re-renders the form with the backend's message and keeps
// the username filled in. A network failure shows the generic message.
func (h *PageHandler) HandleLoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, "login", pageData{Providers: h.providers, Error: "Invalid form."})
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")
	if username == "" || password == "" {
		h.render(w, http.StatusBadRequest, "login", pageData{
			Providers: h.providers,
			Username:  username,
			Error:     "Please enter your username and password.",
		})
		return
	}

	res := h.session.LoginWithCredentials(r.Context(), username, password)
	if !res.OK {
		h.render(w, http.StatusUnauthorized, "login", pageData{
			Providers: h.providers,
			Username:  username,
			Error:     res.Message,
		})
		return
	}
	http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
}

// HandleGuestLogin starts a guest session from a display name alone.
//
// HTTP: POST /login/guest (form: name)
func (h *PageHandler) HandleGuestLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, http.StatusBadRequest, "login", pageData{Providers: h.providers, Error: "Invalid form."})
		return
	}
	name := r.PostFormValue("name")

	if _, err := h.session.Login(r.Context(), name); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, apperror.ErrValidation) {
			status = http.StatusBadRequest
		}
		h.render(w, status, "login", pageData{
			Providers: h.providers,
			GuestName: name,
			Error:     userMessage(err),
		})
		return
	}
	http.Redirect(w, r, service.HomePath, http.StatusSeeOther)
}

// HandleLogout ends the session and does a full navigation to the login page.
//
// HTTP: POST /logout
func (h *PageHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	redirect, err := h.session.Logout(r.Context())
	if err != nil {
		h.logger.Error("logout failed", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// HandleHome renders the office: progress bar and crew roster.
//
// HTTP: GET /
func (h *PageHandler) HandleHome(w http.ResponseWriter, r *http.Request) {
	d := h.data()
	crews, err := h.crews.List(r.Context())
	if err != nil {
		h.logger.Warn("listing crews for home page failed", slog.String("error", err.Error()))
		d.Error = userMessage(err)
	}
	d.Crews = crews
	h.render(w, http.StatusOK, "home", d)
}

// HandleMyPage renders the remote profile and its edit form.
//
// HTTP: GET /mypage
func (h *PageHandler) HandleMyPage(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusOK, "mypage", h.data())
}

// HandleShop fetches the catalog and renders it with each buy button
// enabled or disabled.
//
// HTTP: GET /shop
func (h *PageHandler) HandleShop(w http.ResponseWriter, r *http.Request) {
	cat, err := h.shop.Catalog(r.Context())
	d := h.data()
	if err != nil {
		d.Error = userMessage(err)
		h.render(w, http.StatusOK, "shop", d)
		return
	}
	d.Shop = newShopView(h.shop, cat)
	h.render(w, http.StatusOK, "shop", d)
}
