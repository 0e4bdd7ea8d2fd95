package api

import (
	"net/http"

	"github.com/dixieflatline76/AetherDesk/config"
	"github.com/dixieflatline76/AetherDesk/pkg/engine"
)

// Schedule items travel in their persisted record shape.

func (s *Server) handleScheduleList(w http.ResponseWriter, r *http.Request) {
	items, err := s.ctl.ScheduleItems()
	if err != nil {
		writeError(w, err)
		return
	}
	records := make([]config.ScheduleRecord, len(items))
	for i, it := range items {
		records[i] = engine.RecordFromItem(it)
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleScheduleAdd(w http.ResponseWriter, r *http.Request) {
	var rec config.ScheduleRecord
	if err := decode(w, r, &rec); err != nil {
		writeError(w, err)
		return
	}
	it, err := engine.ItemFromRecord(rec)
	if err != nil {
		writeError(w, err)
		return
	}
	added, err := s.ctl.ScheduleAdd(it)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, engine.RecordFromItem(added))
}

func (s *Server) handleScheduleUpdate(w http.ResponseWriter, r *http.Request) {
	var rec config.ScheduleRecord
	if err := decode(w, r, &rec); err != nil {
		writeError(w, err)
		return
	}
	rec.ID = r.PathValue("id")
	it, err := engine.ItemFromRecord(rec)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.ctl.ScheduleUpdate(it); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, engine.RecordFromItem(it))
}

func (s *Server) handleScheduleRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.ScheduleRemove(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleScheduleToggle(w http.ResponseWriter, r *http.Request) {
	it, err := s.ctl.ScheduleToggle(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, engine.RecordFromItem(it))
}

// handleScheduleRearm lets a system-event item that already fired fire again.
func (s *Server) handleScheduleRearm(w http.ResponseWriter, r *http.Request) {
	if err := s.ctl.ScheduleRearm(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
