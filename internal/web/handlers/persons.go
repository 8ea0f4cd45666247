package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/picscreenr/internal/database"
	"github.com/kozaktomas/picscreenr/internal/logging"
	"github.com/sirupsen/logrus"
)

const errPersonNotFound = "Person not found"

// PersonsHandler handles person query endpoints.
type PersonsHandler struct {
	reader database.ImageReader
	log    *logrus.Entry
}

// NewPersonsHandler creates a new persons handler.
func NewPersonsHandler(reader database.ImageReader) *PersonsHandler {
	return &PersonsHandler{
		reader: reader,
		log:    logging.Component("web"),
	}
}

// PersonImageResponse is one image a person was found in.
type PersonImageResponse struct {
	ImageID    int64   `json:"image_id"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// PersonResponse is returned by GET /persons/{id}. Signatures themselves are not exposed.
type PersonResponse struct {
	ID            int64                 `json:"id"`
	HasFace       bool                  `json:"has_face"`
	HasAppearance bool                  `json:"has_appearance"`
	Images        []PersonImageResponse `json:"images"`
}

// Get returns a person and the images they are linked to.
func (h *PersonsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, errPersonNotFound)
		return
	}

	person, err := h.reader.GetPerson(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		respondError(w, http.StatusNotFound, errPersonNotFound)
		return
	}
	if err != nil {
		h.log.WithError(err).WithField("person_id", id).Error("Failed to load person")
		respondError(w, http.StatusInternalServerError, "failed to load person")
		return
	}

	links, err := h.reader.ListLinksForPerson(r.Context(), id)
	if err != nil {
		h.log.WithError(err).WithField("person_id", id).Error("Failed to list links")
		respondError(w, http.StatusInternalServerError, "failed to load person")
		return
	}

	images := make([]PersonImageResponse, 0, len(links))
	for _, l := range links {
		images = append(images, PersonImageResponse{
			ImageID:    l.ImageID,
			Confidence: l.Confidence,
			Source:     string(l.Source),
		})
	}

	respondJSON(w, http.StatusOK, PersonResponse{
		ID:            person.ID,
		HasFace:       person.HasFace(),
		HasAppearance: person.HasAppearance(),
		Images:        images,
	})
}
