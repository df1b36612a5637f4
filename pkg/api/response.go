package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/sigweihq/beatmarket/pkg/constants"
	"github.com/sigweihq/beatmarket/pkg/types"
)

// WriteJSON writes v with the given status
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body into dst and validates it. It writes
// a 400 and returns false on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeBadRequest(w, "invalid JSON body", err.Error())
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			writeBadRequest(w, "validation failed", verrs[0].Field()+" failed "+verrs[0].Tag())
			return false
		}
		writeBadRequest(w, "validation failed", err.Error())
		return false
	}
	return true
}

func writeBadRequest(w http.ResponseWriter, msg, details string) {
	WriteJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: msg, Details: details})
}

// writeError maps a typed error to its status and user message. Untyped
// errors are reported as 500 without their text.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	kind := types.KindOf(err)
	status := statusForKind(kind)
	resp := types.ErrorResponse{Error: types.Message(kind), Kind: string(kind)}

	var typed *types.Error
	if errors.As(err, &typed) {
		resp.Details = typed.Detail
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		resp.Details = ""
	}
	WriteJSON(w, status, resp)
}

func statusForKind(kind types.ErrorKind) int {
	switch kind {
	case types.KindNotFound, types.KindUnknownChain:
		return http.StatusNotFound
	case types.KindConflict:
		return http.StatusConflict
	case types.KindInvalidAmount, types.KindRejected:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
