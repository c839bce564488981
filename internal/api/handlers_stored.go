package api

import (
	"net/http"
	"strings"

	"github.com/dgallion1/splinegest/internal/pathstore"
	"github.com/go-chi/chi/v5"
)

// pathstoreOrError returns the pathstore client, or writes 503 when
// persistence is disabled.
func (s *Server) pathstoreOrError(w http.ResponseWriter) *pathstore.Client {
	ps := s.orchestrator.PathstoreClient()
	if ps == nil {
		jsonError(w, "persistence is disabled", http.StatusServiceUnavailable)
	}
	return ps
}

// handleListStored lists the stored imports for a user.
func (s *Server) handleListStored(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		jsonError(w, "user_id query parameter is required", http.StatusBadRequest)
		return
	}
	ps := s.pathstoreOrError(w)
	if ps == nil {
		return
	}

	children, err := ps.ListChildren(r.Context(), pathstore.SplinesPrefix(userID), 200)
	if err != nil {
		jsonError(w, "failed to list imports: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Keys come back dot-separated; only meta nodes describe a document.
	docs := []map[string]any{}
	for _, child := range children {
		if !strings.HasSuffix(child.Key, ".meta") {
			continue
		}
		parts := strings.Split(child.Key, ".")
		docID := ""
		if len(parts) >= 2 {
			docID = parts[len(parts)-2]
		}
		docs = append(docs, map[string]any{
			"doc_id": docID,
			"key":    child.Key,
			"value":  child.Value,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"imports": docs})
}

// handleDeleteStored deletes an import, its splines and its hash index entry.
func (s *Server) handleDeleteStored(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		jsonError(w, "user_id query parameter is required", http.StatusBadRequest)
		return
	}
	ps := s.pathstoreOrError(w)
	if ps == nil {
		return
	}
	ctx := r.Context()

	// Read the content hash before the meta node is gone.
	hash := ""
	if meta, err := ps.GetNode(ctx, pathstore.MetaKey(userID, docID)); err != nil {
		s.log.Warn("meta lookup failed", "doc_id", docID, "error", err)
	} else if meta != nil {
		if m, ok := meta.Value.(map[string]any); ok {
			hash, _ = m["content_hash"].(string)
		}
	}

	if err := ps.DeleteNode(ctx, pathstore.DocPrefix(userID, docID), true); err != nil {
		jsonError(w, "failed to delete import: "+err.Error(), http.StatusInternalServerError)
		return
	}

	hashDeleted := false
	if hash != "" {
		if err := ps.DeleteNode(ctx, pathstore.HashKey(userID, hash, docID), false); err != nil {
			s.log.Warn("hash index delete failed", "doc_id", docID, "error", err)
		} else {
			hashDeleted = true
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":             docID,
		"deleted":            true,
		"hash_index_deleted": hashDeleted,
	})
}
