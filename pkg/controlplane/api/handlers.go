package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/marmos91/savepoint/pkg/catalog"
	"github.com/marmos91/savepoint/pkg/checkpoint"
)

// CheckpointHandler exposes save and load over HTTP.
type CheckpointHandler struct {
	engine *checkpoint.Engine
}

// NewCheckpointHandler creates a CheckpointHandler for the given engine.
func NewCheckpointHandler(engine *checkpoint.Engine) *CheckpointHandler {
	return &CheckpointHandler{engine: engine}
}

// SaveRequest is the request body for POST /api/v1/save.
// Exactly one of Path or Slot must be set.
type SaveRequest struct {
	Path string `json:"path,omitempty"`
	Slot *int   `json:"slot,omitempty"`

	// Wait blocks the request until the archive is durably on disk instead
	// of returning 202 as soon as the task is queued.
	Wait bool `json:"wait,omitempty"`
}

// LoadRequest is the request body for POST /api/v1/load.
// Exactly one of Path or Slot must be set.
type LoadRequest struct {
	Path       string `json:"path,omitempty"`
	Slot       *int   `json:"slot,omitempty"`
	FromBackup bool   `json:"from_backup,omitempty"`

	// Wait blocks the request until the restore finishes instead of
	// returning 202 as soon as the task is queued.
	Wait bool `json:"wait,omitempty"`
}

// TaskResponse describes a queued or finished checkpoint task.
type TaskResponse struct {
	TaskID string `json:"task_id"`
	Op     string `json:"op"`
}

// Save handles POST /api/v1/save.
func (h *CheckpointHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if (req.Path == "") == (req.Slot == nil) {
		badRequest(w, "Exactly one of path or slot is required")
		return
	}

	var (
		task *checkpoint.Task
		err  error
	)
	if req.Slot != nil {
		task, err = h.engine.SaveToSlot(r.Context(), *req.Slot)
	} else {
		task, err = h.engine.SaveToFile(r.Context(), req.Path)
	}
	if err != nil {
		errorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	h.respond(w, r, task, req.Wait)
}

// Load handles POST /api/v1/load.
func (h *CheckpointHandler) Load(w http.ResponseWriter, r *http.Request) {
	var req LoadRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if (req.Path == "") == (req.Slot == nil) {
		badRequest(w, "Exactly one of path or slot is required")
		return
	}
	if req.FromBackup && req.Slot == nil {
		badRequest(w, "from_backup applies to slot loads only")
		return
	}

	var (
		task *checkpoint.Task
		err  error
	)
	if req.Slot != nil {
		task, err = h.engine.LoadFromSlot(r.Context(), *req.Slot, req.FromBackup)
	} else {
		task, err = h.engine.LoadFromFile(r.Context(), req.Path)
	}
	if err != nil {
		errorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	h.respond(w, r, task, req.Wait)
}

func (h *CheckpointHandler) respond(w http.ResponseWriter, r *http.Request, task *checkpoint.Task, wait bool) {
	if !wait {
		acceptedResponse(w, TaskResponse{TaskID: task.ID, Op: task.Op})
		return
	}
	if err := task.Wait(r.Context()); err != nil {
		errorResponse(w, statusForError(err), err.Error())
		return
	}
	okResponse(w, TaskResponse{TaskID: task.ID, Op: task.Op})
}

// SlotEntry describes one quick-save slot archive known to the catalog.
type SlotEntry struct {
	Slot      int    `json:"slot"`
	Path      string `json:"path"`
	Backup    bool   `json:"backup"`
	Version   uint32 `json:"version"`
	Size      int64  `json:"size"`
	Digest    string `json:"digest"`
	CreatedAt string `json:"created_at"`
}

// SlotsHandler lists quick-save slots by joining the catalog against the
// engine's slot layout.
type SlotsHandler struct {
	engine  *checkpoint.Engine
	catalog *catalog.Catalog
}

// NewSlotsHandler creates a SlotsHandler.
func NewSlotsHandler(engine *checkpoint.Engine, cat *catalog.Catalog) *SlotsHandler {
	return &SlotsHandler{engine: engine, catalog: cat}
}

// List handles GET /api/v1/slots. Only archives matching the slot filename
// layout appear; ad-hoc archives are listed under /api/v1/archives instead.
func (h *SlotsHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.catalog.List(r.Context())
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	slots := h.engine.Slots()
	entries := []SlotEntry{}
	for _, rec := range records {
		n, ok := slots.Slot(rec.Path)
		if !ok {
			continue
		}
		entries = append(entries, SlotEntry{
			Slot:      n,
			Path:      rec.Path,
			Backup:    checkpoint.IsBackup(rec.Path),
			Version:   rec.Version,
			Size:      rec.Size,
			Digest:    rec.Digest,
			CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Slot != entries[j].Slot {
			return entries[i].Slot < entries[j].Slot
		}
		return !entries[i].Backup && entries[j].Backup
	})

	okResponse(w, entries)
}

// CatalogHandler exposes archive catalog queries over HTTP.
type CatalogHandler struct {
	catalog *catalog.Catalog
}

// NewCatalogHandler creates a CatalogHandler for the given catalog.
func NewCatalogHandler(cat *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: cat}
}

// List handles GET /api/v1/archives.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.catalog.List(r.Context())
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if records == nil {
		records = []catalog.Record{}
	}
	okResponse(w, records)
}

// VerifyRequest is the request body for POST /api/v1/verify.
type VerifyRequest struct {
	Path string `json:"path"`
}

// VerifyResponse reports whether an archive still matches its recorded digest.
type VerifyResponse struct {
	Path  string `json:"path"`
	Valid bool   `json:"valid"`
}

// Verify handles POST /api/v1/verify.
func (h *CatalogHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		badRequest(w, "path is required")
		return
	}

	ok, err := h.catalog.Verify(r.Context(), req.Path)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	okResponse(w, VerifyResponse{Path: req.Path, Valid: ok})
}
