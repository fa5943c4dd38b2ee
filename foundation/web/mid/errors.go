package mid

import (
	"context"
	"errors"
	"net/http"

	"github.com/carbonchain/node/foundation/blockchain/chainerr"
	"github.com/carbonchain/node/foundation/web"
	"github.com/carbonchain/node/foundation/web/errs"
	"go.uber.org/zap"
)

// Errors is the single place a handler's returned error is turned into
// an HTTP response. A handler never writes its own error body; it just
// returns the error and lets this middleware decide the status and the
// {code, message, details} shape it takes on the wire.
func Errors(log *zap.SugaredLogger) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			v, err := web.GetValues(ctx)
			if err != nil {
				return web.NewShutdownError("web value missing from context")
			}

			if err := handler(ctx, w, r); err != nil {
				log.Errorw("ERROR", "traceid", v.TraceID, "ERROR", err)

				if respErr := respondError(ctx, w, err); respErr != nil {
					return respErr
				}

				if web.IsShutdown(err) {
					return err
				}
			}

			return nil
		}

		return h
	}

	return m
}

// respondError renders err as the appropriate JSON response and status
// code: {code, message, details?} for a chainerr.Error, {error, fields?}
// for everything else.
func respondError(ctx context.Context, w http.ResponseWriter, err error) error {
	var fe web.FieldErrors
	if errors.As(err, &fe) {
		fields := make(map[string]string, len(fe))
		for _, f := range fe {
			fields[f.Field] = f.Error
		}
		return web.Respond(ctx, w, errs.Response{Error: "field validation error", Fields: fields}, http.StatusBadRequest)
	}

	if ce, ok := chainerr.As(err); ok {
		body := struct {
			Code    chainerr.Code     `json:"code"`
			Message string            `json:"message"`
			Details map[string]string `json:"details,omitempty"`
		}{Code: ce.Code, Message: ce.Message, Details: ce.Details}
		return web.Respond(ctx, w, body, statusFor(ce.Kind))
	}

	if te := errs.GetTrusted(err); te != nil {
		return web.Respond(ctx, w, errs.Response{Error: te.Error()}, te.Status)
	}

	if web.IsShutdown(err) {
		return web.Respond(ctx, w, errs.Response{Error: "service unavailable"}, http.StatusInternalServerError)
	}

	return web.Respond(ctx, w, errs.Response{Error: "internal server error"}, http.StatusInternalServerError)
}

// statusFor maps a chainerr.Kind to the HTTP status its error taxonomy
// implies: rejections a client can fix are 4xx, a storage IntegrityFault
// is the one case that is genuinely the node's own problem.
func statusFor(kind chainerr.Kind) int {
	switch kind {
	case chainerr.Malformed:
		return http.StatusBadRequest
	case chainerr.InvalidHeader, chainerr.InvalidTx, chainerr.InvalidBlock:
		return http.StatusUnprocessableEntity
	case chainerr.Conflict:
		return http.StatusConflict
	case chainerr.UnknownParent:
		return http.StatusAccepted
	case chainerr.IntegrityFault:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
