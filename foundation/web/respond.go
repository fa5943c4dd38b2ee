package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Respond marshals data as JSON and writes it with statusCode, recording
// the status on ctx's Values for the logging middleware to report.
func Respond(ctx context.Context, w http.ResponseWriter, data any, statusCode int) error {
	if err := SetStatusCode(ctx, statusCode); err != nil {
		return err
	}

	return respondJSON(w, data, statusCode)
}

// Decode reads r's JSON body into val and runs it through Validate,
// rejecting unknown fields so a malformed_encoding-class mistake in a
// client's submit_tx/submit_block payload surfaces immediately rather
// than silently dropping a field.
func Decode(r *http.Request, val any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(val); err != nil {
		return fmt.Errorf("unable to decode payload: %w", err)
	}

	if err := Validate(val); err != nil {
		return err
	}

	return nil
}
