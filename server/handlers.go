package server

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"marketplace-watcher/models"
	"marketplace-watcher/storage"
	"net/http"

	"github.com/rs/zerolog"
)

//go:embed index.html
var indexPage []byte

// Store is the subset of the snapshot store the maintenance endpoints use.
type Store interface {
	ReadRaw() ([]byte, error)
	LoadStrict() (models.Snapshot, error)
	Save(snap models.Snapshot) error
}

type Handlers struct {
	store     Store
	prober    prober
	threshold int
}

func NewHandlers(store Store, p *Prober, threshold int) *Handlers {
	return &Handlers{store: store, prober: p, threshold: threshold}
}

func (h *Handlers) HandleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

// HandleGetData serves the snapshot file as stored on disk.
func (h *Handlers) HandleGetData(w http.ResponseWriter, r *http.Request) {
	data, err := h.store.ReadRaw()
	if errors.Is(err, storage.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Could not read listings file")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (h *Handlers) HandleGetCSV(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.LoadStrict()
	if errors.Is(err, storage.ErrNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Could not load listings")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="listings.csv"`)
	if err := storage.WriteCSV(w, snap); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("Could not write csv")
	}
}

// HandlePurgeInvalid removes listings whose image no longer resolves.
func (h *Handlers) HandlePurgeInvalid(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	snap, err := h.store.LoadStrict()
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusOK, PurgeSummary{})
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("Could not load listings for purge")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	// A client hanging up must not turn in-flight probes into failures.
	survivors, summary := Purge(context.WithoutCancel(r.Context()), snap, h.prober, h.threshold)
	if err := h.store.Save(survivors); err != nil {
		logger.Error().Err(err).Msg("Could not save purged listings")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	logger.Info().Int("kept", summary.Kept).Int("dropped", summary.Dropped).Msg("Invalid listings purged")
	writeJSON(w, http.StatusOK, summary)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
