package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sigweihq/beatmarket/pkg/chains"
	"github.com/sigweihq/beatmarket/pkg/processor"
	"github.com/sigweihq/beatmarket/pkg/types"
	"github.com/sigweihq/beatmarket/pkg/utils"
)

// handleCreateBeat creates a listing. The price must be representable in the
// default chain's native unit.
func (s *Server) handleCreateBeat(w http.ResponseWriter, r *http.Request) {
	var req types.CreateBeatRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	price, err := utils.ValidateAmount(req.Price)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if desc, err := s.registry.Describe(s.defaultChain); err == nil {
		if _, err := utils.ParseUnits(req.Price, desc.Decimals); err != nil {
			s.writeError(w, err)
			return
		}
	}

	beat := &types.BeatListing{
		ID:             uuid.NewString(),
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Genre:          req.Genre,
		BPM:            req.BPM,
		Key:            req.Key,
		AudioFile:      req.AudioFile,
		ImageFile:      req.ImageFile,
		Price:          price.String(),
		CreatorAddress: req.CreatorAddress,
		IsListed:       true,
	}
	if err := s.store.CreateBeat(r.Context(), beat); err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("beat created", "beat_id", beat.ID, "creator", beat.CreatorAddress, "price", beat.Price)
	WriteJSON(w, http.StatusCreated, beat)
}

func (s *Server) handleListBeats(w http.ResponseWriter, r *http.Request) {
	beats, err := s.store.ListListed(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if beats == nil {
		beats = []*types.BeatListing{}
	}
	WriteJSON(w, http.StatusOK, beats)
}

func (s *Server) handleGetBeat(w http.ResponseWriter, r *http.Request) {
	beat, err := s.store.FindBeat(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, beat)
}

// handlePurchase confirms a purchase transaction and records it
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req types.PurchaseRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	chainID := s.defaultChain
	if req.ChainID != "" {
		chainID = chains.ChainID(req.ChainID)
	}

	result, err := s.processor.ConfirmPurchase(r.Context(), chainID, req.BeatID, req.TransactionHash, req.BuyerAddress)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if result.Outcome == processor.Rejected {
		WriteJSON(w, http.StatusBadRequest, types.ErrorResponse{
			Error:   types.Message(types.KindRejected),
			Kind:    string(types.KindRejected),
			Details: result.Reason,
		})
		return
	}

	WriteJSON(w, http.StatusOK, types.PurchaseResponse{
		Success: true,
		Outcome: string(result.Outcome),
		Beat:    result.Listing,
	})
}

// handleUpload pins a metadata document and returns its IPFS hash
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.pinner == nil {
		WriteJSON(w, http.StatusServiceUnavailable, types.ErrorResponse{Error: "uploads are not configured"})
		return
	}

	var req types.UploadRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	name := fmt.Sprintf("%s-%d", req.Type, s.now().Unix())
	cid, err := s.pinner.Pin(r.Context(), name, req.File)
	if err != nil {
		s.logger.Error("pinning failed", "name", name, "error", err)
		WriteJSON(w, http.StatusBadGateway, types.ErrorResponse{Error: "failed to upload file"})
		return
	}

	WriteJSON(w, http.StatusOK, types.UploadResponse{IPFSHash: cid})
}

func (s *Server) handleListChains(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, s.registry.Networks())
}

// handleGetChain describes a network. Unknown ids answer 404 with the
// fallback label in the details.
func (s *Server) handleGetChain(w http.ResponseWriter, r *http.Request) {
	id := chains.ChainID(mux.Vars(r)["id"])
	desc, err := s.registry.Describe(id)
	if err != nil {
		WriteJSON(w, http.StatusNotFound, types.ErrorResponse{
			Error:   types.Message(types.KindUnknownChain),
			Kind:    string(types.KindUnknownChain),
			Details: s.registry.Label(id),
		})
		return
	}
	WriteJSON(w, http.StatusOK, desc)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
