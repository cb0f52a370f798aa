package server

import (
	"encoding/json"
	"net/http"

	"github.com/prathamdby/pi-mono/pkg/store"
	"github.com/prathamdby/pi-mono/pkg/summary"
)

// --- Agents ---

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.manager.ListAgents()
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, agents)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	agent, err := s.manager.GetAgent(id)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, agent)
}

func (s *Server) handleCreateUpdateAgent(w http.ResponseWriter, r *http.Request) {
	var agent store.Agent
	if err := json.NewDecoder(r.Body).Decode(&agent); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}

	if agent.ID == "" {
		if err := s.manager.NewAgent(&agent); err != nil {
			s.errorResponse(w, http.StatusInternalServerError, err)
			return
		}
	} else {
		if err := s.manager.UpdateAgent(&agent); err != nil {
			s.errorResponse(w, http.StatusInternalServerError, err)
			return
		}
	}

	s.jsonResponse(w, http.StatusOK, agent)
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.manager.DeleteAgent(id); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Sessions ---

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.manager.ListSessions()
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sessions)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgentID string `json:"agent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}

	sess, err := s.manager.NewSession(req.AgentID, "")
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	defer sess.Close()

	s.jsonResponse(w, http.StatusCreated, map[string]string{"id": sess.ID()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.manager.LoadSession(id)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, err)
		return
	}
	defer sess.Close()

	entries, err := sess.GetContext()
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"header":  sess.Header(),
		"leaf_id": sess.LeafID(),
		"entries": entries,
	})
}

func (s *Server) handleGetTree(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, err := s.manager.LoadSession(id)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, err)
		return
	}
	defer sess.Close()

	tree, err := sess.GetTree()
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, tree)
}

// handleBranch moves the session leaf to an earlier entry. With "summarize"
// set the abandoned path is summarized first and checkpointed as a
// branch-summary entry; summarization failure degrades to a plain branch.
func (s *Server) handleBranch(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req struct {
		TargetID           string `json:"target_id"`
		Summarize          bool   `json:"summarize"`
		CustomInstructions string `json:"custom_instructions,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}

	sess, err := s.manager.LoadSession(id)
	if err != nil {
		s.errorResponse(w, http.StatusNotFound, err)
		return
	}
	defer sess.Close()

	if !req.Summarize || s.summarizer == nil {
		if err := sess.Branch(req.TargetID); err != nil {
			s.errorResponse(w, http.StatusBadRequest, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, map[string]any{"leaf_id": sess.LeafID()})
		return
	}

	coll, res := s.summarizer.ForNavigation(r.Context(), sess, sess.LeafID(), req.TargetID, summary.Options{
		CustomInstructions: req.CustomInstructions,
		APIKey:             s.apiKey,
	})

	if res.Summary == "" || res.Summary == summary.NoContentSummary {
		// Aborted, failed, or nothing worth checkpointing; navigation still
		// proceeds, without a branch-summary entry.
		if err := sess.Branch(req.TargetID); err != nil {
			s.errorResponse(w, http.StatusBadRequest, err)
			return
		}
		s.jsonResponse(w, http.StatusOK, map[string]any{
			"leaf_id": sess.LeafID(),
			"aborted": res.Aborted,
			"error":   res.ErrorMessage,
		})
		return
	}

	entryID, err := sess.BranchWithSummary(req.TargetID, res.Summary)
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"leaf_id":            sess.LeafID(),
		"summary_entry_id":   entryID,
		"summary":            res.Summary,
		"common_ancestor_id": coll.CommonAncestorID,
	})
}

func (s *Server) handleFork(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	forked, err := s.manager.ForkFrom(id)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	defer forked.Close()

	s.jsonResponse(w, http.StatusCreated, map[string]string{"id": forked.ID()})
}

func (s *Server) handleStopSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.manager.SetSessionStatus(id, store.SessionStatusEnded); err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Models ---

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	list, err := s.listModels(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, list)
}
