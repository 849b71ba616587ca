package pages

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/tadeportfolio/portfolio/internal/telemetry/tracing"
	"github.com/tadeportfolio/portfolio/pkg"
)

//go:embed web
var webFS embed.FS

type indexPageData struct {
	Success bool
}

type Handler struct {
	indexTemplate *template.Template
	loginPage     []byte
	staticFS      fs.FS
	versionInfo   string
}

func NewHandler(versionInfo string) (*Handler, error) {
	indexTemplate, err := template.ParseFS(webFS, "web/index.html")
	if err != nil {
		return nil, err
	}
	loginPage, err := webFS.ReadFile("web/login.html")
	if err != nil {
		return nil, err
	}
	staticFS, err := fs.Sub(webFS, "web/static")
	if err != nil {
		return nil, err
	}

	return &Handler{
		indexTemplate: indexTemplate,
		loginPage:     loginPage,
		staticFS:      staticFS,
		versionInfo:   versionInfo,
	}, nil
}

func (handler *Handler) SetupRoutes(mainRouter *mux.Router) {
	mainRouter.HandleFunc("/", handler.handleIndex).Methods("GET", "HEAD").Name("index")
	mainRouter.HandleFunc("/login", handler.handleLoginPage).Methods("GET", "HEAD").Name("login-page")
	mainRouter.HandleFunc("/version", handler.handleGetVersionInfo).Methods("GET").Name("version")
	mainRouter.
		PathPrefix("/static/").
		Handler(http.StripPrefix("/static/", http.FileServer(http.FS(handler.staticFS)))).
		Methods("GET", "HEAD").
		Name("static")
}

func (handler *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "pagesHandler.index")
	defer span.End()

	var page bytes.Buffer
	if err := handler.indexTemplate.Execute(&page, indexPageData{
		Success: r.URL.Query().Get("success") == "true",
	}); err != nil {
		log.Errorf("failed to render index page: %s", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	pkg.WriteHTMLResponseOK(w, page.Bytes())
}

func (handler *Handler) handleLoginPage(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	pkg.WriteHTMLResponseOK(w, handler.loginPage)
}

func (handler *Handler) handleGetVersionInfo(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteTextResponseOK(w, handler.versionInfo)
}
