package webutil

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"go_5_learn_rewards/internal/model"
)

// DecodeJSONBody decodes the request body into dst. Unknown fields are
// rejected.
func DecodeJSONBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return model.ErrInvalidInput
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		slog.Default().Debug("Error decoding JSON body", "error", err)
		return model.ErrInvalidInput
	}
	return nil
}
