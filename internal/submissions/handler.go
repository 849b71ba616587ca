package submissions

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"encoding/json"
	"html/template"
	"mime"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tadeportfolio/portfolio/internal/middleware"
	"github.com/tadeportfolio/portfolio/internal/telemetry/metrics"
	"github.com/tadeportfolio/portfolio/internal/telemetry/tracing"
	"github.com/tadeportfolio/portfolio/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=submissions_test

const (
	AdminPagePath   = "/admina.html"
	SubmitFormPath  = "/submit-form"
	successRedirect = "/?success=true"

	maxMultipartMemory = 1 << 20
)

//go:embed templates/admin.html
var templatesFS embed.FS

var adminTemplate = template.Must(template.ParseFS(templatesFS, "templates/admin.html"))

type submissionsRepo interface {
	Add(ctx context.Context, submission *Submission) error
	Get(ctx context.Context, id int) (*Submission, error)
	List(ctx context.Context) ([]Submission, error)
	Delete(ctx context.Context, id int) (bool, error)
}

type adminPageData struct {
	Username    string
	Submissions []Submission
}

type Handler struct {
	repo           submissionsRepo
	metricsManager *metrics.Manager
}

func NewHandler(repo submissionsRepo, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		repo:           repo,
		metricsManager: metricsManager,
	}
}

// SetupRoutes registers the public form endpoint and the admin endpoints behind the given gate
func (handler *Handler) SetupRoutes(mainRouter *mux.Router, gate func(http.Handler) http.Handler) {
	mainRouter.HandleFunc(SubmitFormPath, handler.HandleSubmit).Methods("POST").Name("submit-form")
	mainRouter.Handle(AdminPagePath, gate(http.HandlerFunc(handler.HandleList))).Methods("GET", "HEAD").Name("admin-list")
	mainRouter.Handle("/records/{id}", gate(http.HandlerFunc(handler.HandleGet))).Methods("GET").Name("get-record")
	mainRouter.Handle("/records/{id}", gate(http.HandlerFunc(handler.HandleDelete))).Methods("DELETE").Name("delete-record")
}

func (handler *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.submissions.submit")
	defer span.End()

	if err := parseForm(r); err != nil {
		log.Tracef("submit form, parse form: %s", err)
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			span.SetStatus(codes.Error, "too-large")
			return
		}
		http.Error(w, "invalid form", http.StatusBadRequest)
		span.SetStatus(codes.Error, "bad-form")
		return
	}

	submission := FromForm(r.Form)
	if err := submission.Validate(); err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			log.Tracef("submit form, validation failed: %s", validationErr)
			http.Error(w, validationErr.Error(), http.StatusBadRequest)
			span.SetStatus(codes.Error, "invalid-fields")
			return
		}
		log.Errorf("submit form, validate: %s", err)
		http.Error(w, "failed to save submission", http.StatusInternalServerError)
		return
	}

	if err := handler.repo.Add(ctx, &submission); err != nil {
		log.Errorf("failed to save submission from [%s]: %s", submission.Email, err)
		http.Error(w, "failed to save submission", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "store-error")
		span.RecordError(err)
		return
	}

	if handler.metricsManager != nil {
		handler.metricsManager.CounterSubmissions.Inc()
	}
	span.SetAttributes(attribute.Int("submission.id", submission.ID))
	span.SetStatus(codes.Ok, "ok")
	log.Debugf("new submission saved: %d", submission.ID)
	http.Redirect(w, r, successRedirect, http.StatusFound)
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.submissions.list")
	defer span.End()

	list, err := handler.repo.List(ctx)
	if err != nil {
		log.Errorf("failed to list submissions: %s", err)
		http.Error(w, "failed to get submissions", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "store-error")
		span.RecordError(err)
		return
	}

	username, _ := middleware.UsernameFromContext(ctx)
	var page bytes.Buffer
	if err := adminTemplate.Execute(&page, adminPageData{
		Username:    username,
		Submissions: list,
	}); err != nil {
		log.Errorf("failed to render admin page: %s", err)
		http.Error(w, "failed to get submissions", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "render-error")
		return
	}

	span.SetStatus(codes.Ok, "ok")
	w.Header().Set("Cache-Control", "no-store")
	pkg.WriteHTMLResponseOK(w, page.Bytes())
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.submissions.get")
	defer span.End()

	id, ok := recordID(r)
	if !ok {
		http.Error(w, "error, invalid id", http.StatusBadRequest)
		span.SetStatus(codes.Error, "bad-id")
		return
	}
	span.SetAttributes(attribute.Int("id", id))

	submission, err := handler.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSubmissionNotFound) {
			http.Error(w, "submission not found", http.StatusNotFound)
			span.SetStatus(codes.Error, "not-found")
			return
		}
		log.Errorf("failed to get submission %d: %s", id, err)
		http.Error(w, "failed to get submission", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "store-error")
		span.RecordError(err)
		return
	}

	resp, err := json.Marshal(submission)
	if err != nil {
		log.Errorf("marshal submission %d: %s", id, err)
		http.Error(w, "failed to get submission", http.StatusInternalServerError)
		return
	}

	span.SetStatus(codes.Ok, "ok")
	w.Header().Set("Cache-Control", "no-store")
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, resp, http.StatusOK)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.submissions.delete")
	defer span.End()

	id, ok := recordID(r)
	if !ok {
		http.Error(w, "error, invalid id", http.StatusBadRequest)
		span.SetStatus(codes.Error, "bad-id")
		return
	}
	span.SetAttributes(attribute.Int("id", id))

	removed, err := handler.repo.Delete(ctx, id)
	if err != nil {
		log.Errorf("failed to delete submission %d: %s", id, err)
		http.Error(w, "failed to delete submission", http.StatusInternalServerError)
		span.SetStatus(codes.Error, "store-error")
		span.RecordError(err)
		return
	}

	if removed {
		if handler.metricsManager != nil {
			handler.metricsManager.CounterDeletedSubmissions.Inc()
		}
		log.Debugf("submission %d deleted", id)
	} else {
		log.Debugf("delete submission %d: nothing to delete", id)
	}

	span.SetStatus(codes.Ok, "ok")
	pkg.WriteTextResponseOK(w, fmt.Sprintf("deleted:%d", id))
}

func recordID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseForm picks the parser by content type, body read errors (e.g. over the size cap) are returned as is
func parseForm(r *http.Request) error {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return r.ParseMultipartForm(maxMultipartMemory)
	}
	return r.ParseForm()
}
