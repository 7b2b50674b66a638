package serving

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/medibots/ml-platform/pkg/common/logger"
	"github.com/medibots/ml-platform/pkg/common/models"
	"github.com/medibots/ml-platform/pkg/ml/pipeline"
	"github.com/medibots/ml-platform/pkg/normalizer"
	"github.com/medibots/ml-platform/pkg/serving/predictor"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/predict/{model}", h.handlePredict).Methods(http.MethodPost)
	router.HandleFunc("/stats/{dataset}", h.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/predict-with-insights/{subject}", h.handlePredictWithInsights).Methods(http.MethodPost)
	router.HandleFunc("/models", h.handleListModels).Methods(http.MethodGet)
}

func (h *HTTPHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["model"]
	d, ok := models.ParseDomain(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown model %q", name))
		return
	}
	rec, err := h.decode(w, r)
	if err != nil {
		h.fail(w, d, err)
		return
	}

	result, err := h.service.Predict(r.Context(), d, rec)
	if err != nil {
		h.fail(w, d, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["dataset"]
	d, ok := models.DomainForDataset(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown dataset %q", name))
		return
	}
	writeJSON(w, http.StatusOK, h.service.Stats(r.Context(), d))
}

func (h *HTTPHandler) handlePredictWithInsights(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["subject"]
	d, ok := models.DomainForSubject(name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown subject %q", name))
		return
	}
	rec, err := h.decode(w, r)
	if err != nil {
		h.fail(w, d, err)
		return
	}

	resp, err := h.service.PredictWithInsights(r.Context(), d, rec)
	if err != nil {
		h.fail(w, d, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) handleListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": h.service.ListModels()})
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request) (models.Record, error) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	var rec models.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		logger.Log.WithError(err).Warn("invalid prediction payload")
		return nil, normalizer.Invalid(errors.New("request body must be a JSON object"))
	}
	if rec == nil {
		rec = models.Record{}
	}
	return rec, nil
}

func (h *HTTPHandler) fail(w http.ResponseWriter, d models.Domain, err error) {
	switch {
	case normalizer.IsValidationError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, predictor.ErrUnknownDomain):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pipeline.ErrSchemaMismatch):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, predictor.ErrArtifactNotFound):
		logger.Log.WithError(err).WithField("domain", d).Error("model artifact missing")
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("model for %s is not available; train it first", d))
	default:
		logger.Log.WithError(err).WithField("domain", d).Error("prediction failed")
		writeError(w, http.StatusInternalServerError, "prediction failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
