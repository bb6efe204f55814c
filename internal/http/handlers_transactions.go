package http

import (
	"fmt"
	"net/http"

	"fintrack/internal/services"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	typ, err := queryType(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	start, err := queryDate(r, "start_date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := queryDate(r, "end_date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	categoryID, err := queryInt64(r, "category_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	opts := services.ListOptions{
		Skip:           queryInt(r, "skip", 0),
		Limit:          queryInt(r, "limit", 100),
		Type:           typ,
		CategoryID:     categoryID,
		StartDate:      start,
		EndDate:        end,
		IncludeDeleted: queryBool(r, "include_deleted"),
	}

	txns, err := s.ledger.List(r.Context(), user.ID, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]transactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, newTransactionResponse(&txns[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleWriteTransaction is the dual-mode write: a body holding only an
// id restores a soft-deleted transaction, anything else creates one.
func (s *Server) handleWriteTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var body transactionWrite
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}

	if body.restoreMode() {
		if err := body.validateRestore(); err != nil {
			writeError(w, r, err)
			return
		}
		txn, err := s.ledger.Restore(r.Context(), user.ID, *body.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		s.invalidateReports(user.ID)
		writeJSON(w, http.StatusOK, newTransactionResponse(txn))
		return
	}

	in, err := body.toCreate()
	if err != nil {
		writeError(w, r, err)
		return
	}
	txn, err := s.ledger.Create(r.Context(), user.ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateReports(user.ID)
	writeJSON(w, http.StatusCreated, newTransactionResponse(txn))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	txn, err := s.ledger.Get(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionResponse(txn))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body transactionPatchBody
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := body.toPatch()
	if err != nil {
		writeError(w, r, err)
		return
	}

	txn, err := s.ledger.Update(r.Context(), user.ID, id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateReports(user.ID)
	writeJSON(w, http.StatusOK, newTransactionResponse(txn))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	txn, err := s.ledger.Delete(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateReports(user.ID)
	writeJSON(w, http.StatusOK, newTransactionResponse(txn))
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	start, err := queryDate(r, "start_date")
	if err != nil {
		writeError(w, r, err)
		return
	}
	end, err := queryDate(r, "end_date")
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := s.reports.Statistics(r.Context(), user.ID, start, end)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// invalidateReports drops every cached report of one user after a
// ledger or category write.
func (s *Server) invalidateReports(userID int64) {
	s.reportCache.DeletePrefix(reportKeyPrefix(userID))
}

func reportKeyPrefix(userID int64) string {
	return fmt.Sprintf("user:%d|", userID)
}
