package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/Avi18971911/Beacon/internal/project"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type ErrorMessage struct {
	Message string `json:"message"`
}

func HttpError(w http.ResponseWriter, message string, statusCode int, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(ErrorMessage{Message: message})
	if err != nil {
		logger.Error("Failed to encode error message", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, body interface{}, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Error encountered when encoding response", zap.Error(err))
	}
}

func closeBody(body io.ReadCloser, logger *zap.Logger) {
	if err := body.Close(); err != nil {
		logger.Error("Error encountered when closing request body", zap.Error(err))
	}
}

// lookupProject resolves the {project} path variable, writing a 404 when it is unknown.
func lookupProject(
	w http.ResponseWriter,
	r *http.Request,
	registry *project.Registry,
	logger *zap.Logger,
) (*project.Project, bool) {
	name := mux.Vars(r)["project"]
	p, err := registry.Get(name)
	if err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			HttpError(w, "Project not found", http.StatusNotFound, logger)
		} else {
			logger.Error("Error encountered when looking up project", zap.String("project", name), zap.Error(err))
			HttpError(w, "Internal server error", http.StatusInternalServerError, logger)
		}
		return nil, false
	}
	return p, true
}
