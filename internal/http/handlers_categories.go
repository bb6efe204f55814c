package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type categoryCreateRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type categoryPatchBody struct {
	Name *string `json:"name"`
	Type *string `json:"type"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	typ, err := queryType(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cats, err := s.cats.List(r.Context(), user.ID, typ, queryInt(r, "skip", 0), queryInt(r, "limit", 100))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]categoryResponse, 0, len(cats))
	for i := range cats {
		out = append(out, newCategoryResponse(&cats[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req categoryCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	typ, err := core.ParseTransactionType(req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cat, err := s.cats.Create(r.Context(), user.ID, strings.TrimSpace(req.Name), typ)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateReports(user.ID)
	writeJSON(w, http.StatusCreated, newCategoryResponse(cat))
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	cat, count, err := s.cats.Get(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, categoryDetailResponse{
		categoryResponse: newCategoryResponse(cat),
		TransactionCount: count,
	})
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body categoryPatchBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	var patch services.CategoryPatch
	if body.Name != nil {
		name := strings.TrimSpace(*body.Name)
		patch.Name = &name
	}
	if body.Type != nil {
		typ, err := core.ParseTransactionType(*body.Type)
		if err != nil {
			writeError(w, r, err)
			return
		}
		patch.Type = &typ
	}

	cat, err := s.cats.Update(r.Context(), user.ID, id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateReports(user.ID)
	writeJSON(w, http.StatusOK, newCategoryResponse(cat))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := s.cats.Delete(r.Context(), user.ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateReports(user.ID)
	w.WriteHeader(http.StatusNoContent)
}
