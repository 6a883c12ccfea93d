package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	apprecordings "github.com/JPKrishna28/audio-sentinel/internal/application/recordings"
	"github.com/JPKrishna28/audio-sentinel/internal/domain/analysis"
	"github.com/JPKrishna28/audio-sentinel/internal/infra/export"
	"github.com/JPKrishna28/audio-sentinel/internal/middleware"
)

// errBadRequest marks handler failures caused by the request itself.
var errBadRequest = errors.New("bad request")

type Router struct {
	recSvc   *apprecordings.Service
	results  analysis.ResultRepository
	maxBytes int64
}

// Options carries the cross-cutting pieces main wires in.
type Options struct {
	Log      *logrus.Entry
	Health   map[string]middleware.HealthChecker
	MaxBytes int64
	// UploadRate caps upload requests per client IP per second; 0 disables.
	UploadRate int
}

func NewRouter(recSvc *apprecordings.Service, results analysis.ResultRepository, opts Options) http.Handler {
	r := &Router{recSvc: recSvc, results: results, maxBytes: opts.MaxBytes}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
	}))
	if opts.Log != nil {
		mux.Use(middleware.LoggingMiddleware(opts.Log))
	}

	mux.Get("/health", middleware.HealthHandler(opts.Health))
	mux.Get("/ready", middleware.ReadinessHandler)
	mux.Get("/live", middleware.LivenessHandler)

	mux.Route("/v1", func(rt chi.Router) {
		if opts.UploadRate > 0 {
			limiter := middleware.NewRateLimiter(opts.UploadRate, opts.UploadRate)
			rt.With(limiter.Middleware).Post("/recordings", r.wrap(r.handleUpload))
		} else {
			rt.Post("/recordings", r.wrap(r.handleUpload))
		}
		rt.Get("/recordings", r.wrap(r.handleRecordings))
		rt.Get("/status", r.wrap(r.handleStatus))

		rt.Get("/results/latest", r.wrap(r.handleLatestResults))
		rt.Get("/results/{id}", r.wrap(r.handleResult))
		rt.Get("/results/{id}/audio", r.wrap(r.handleResultAudio))

		rt.Get("/threats/summary", r.wrap(r.handleSummary))
		rt.Get("/threats/urgent", r.wrap(r.handleUrgent))
		rt.Get("/threats/by-type/{type}", r.wrap(r.handleByType))

		rt.Get("/export/results.xlsx", r.wrap(r.handleExport))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			if errors.Is(err, apprecordings.ErrInvalidUpload) || errors.Is(err, errBadRequest) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// POST /v1/recordings
// multipart/form-data with a single "file" part. The blob is stored as-is;
// the coordinator picks it up on its next cycle.
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	if r.maxBytes > 0 {
		req.Body = http.MaxBytesReader(w, req.Body, r.maxBytes)
	}
	file, header, err := req.FormFile("file")
	if err != nil {
		return fmt.Errorf("%w: file field is required", errBadRequest)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return fmt.Errorf("%w: reading upload: %v", errBadRequest, err)
	}

	out, err := r.recSvc.Upload(req.Context(), apprecordings.UploadCommand{
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(out)
}

// GET /v1/recordings?limit=20
func (r *Router) handleRecordings(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.recSvc.Latest(req.Context(), limit)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/status
func (r *Router) handleStatus(w http.ResponseWriter, req *http.Request) error {
	status, err := r.recSvc.Status(req.Context())
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(status)
}

// GET /v1/results/latest?limit=20
func (r *Router) handleLatestResults(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.results.Latest(req.Context(), limit)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/results/{id}
func (r *Router) handleResult(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")

	res, err := r.results.Get(req.Context(), analysis.ResultID(id))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(res)
}

// GET /v1/results/{id}/audio
// Streams the normalized WAV that was analyzed.
func (r *Router) handleResultAudio(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")

	res, err := r.results.Get(req.Context(), analysis.ResultID(id))
	if err != nil {
		return err
	}
	if len(res.Audio) == 0 {
		return sql.ErrNoRows
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.wav"`, id))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Audio)))
	_, err = w.Write(res.Audio)
	return err
}

// GET /v1/threats/summary
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	summary, err := r.results.Summary(req.Context())
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(summary)
}

// GET /v1/threats/urgent?limit=20
func (r *Router) handleUrgent(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.results.Urgent(req.Context(), limit)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// valid filter values for /threats/by-type
var knownThreatTypes = map[analysis.ThreatType]bool{
	analysis.ThreatTheft:            true,
	analysis.ThreatLandDispute:      true,
	analysis.ThreatDomesticViolence: true,
	analysis.ThreatHarassment:       true,
	analysis.ThreatAssault:          true,
	analysis.ThreatFraud:            true,
	analysis.ThreatVandalism:        true,
	analysis.ThreatDrugRelated:      true,
	analysis.ThreatNoiseComplaint:   true,
	analysis.ThreatMedicalEmergency: true,
	analysis.ThreatFireEmergency:    true,
	analysis.ThreatUnknown:          true,
	analysis.ThreatError:            true,
}

// GET /v1/threats/by-type/{type}?limit=20
func (r *Router) handleByType(w http.ResponseWriter, req *http.Request) error {
	t := analysis.ThreatType(chi.URLParam(req, "type"))
	if !knownThreatTypes[t] {
		return fmt.Errorf("%w: unknown threat type: %s", errBadRequest, t)
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.results.ByThreatType(req.Context(), t, limit)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/export/results.xlsx?limit=1000
func (r *Router) handleExport(w http.ResponseWriter, req *http.Request) error {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 1000
	}

	list, err := r.results.Latest(req.Context(), limit)
	if err != nil {
		return err
	}
	book, err := export.ResultsWorkbook(list)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="results.xlsx"`)
	_, err = w.Write(book)
	return err
}
