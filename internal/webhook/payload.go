package webhook

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/salesvox/conversa/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// decodePayload parses and validates a callback body that already passed
// signature verification.
func decodePayload(body []byte) (*model.CallbackPayload, error) {
	var payload model.CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, eris.Wrap(err, "webhook: decode payload")
	}
	if err := validate.Struct(&payload); err != nil {
		return nil, eris.Wrap(err, "webhook: validate payload")
	}
	return &payload, nil
}
