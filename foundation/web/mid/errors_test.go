package mid_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/carbonchain/node/foundation/blockchain/chainerr"
	"github.com/carbonchain/node/foundation/web"
	"github.com/carbonchain/node/foundation/web/errs"
	"github.com/carbonchain/node/foundation/web/mid"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T, handler web.Handler) *web.App {
	t.Helper()

	log, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	app := web.NewApp(make(chan os.Signal, 1), mid.Errors(log.Sugar()))
	app.Handle(http.MethodGet, "", "/test", handler)
	return app
}

func Test_ErrorsTranslatesChainerrKindToStatus(t *testing.T) {
	cases := []struct {
		kind chainerr.Kind
		want int
	}{
		{chainerr.Malformed, http.StatusBadRequest},
		{chainerr.InvalidHeader, http.StatusUnprocessableEntity},
		{chainerr.InvalidTx, http.StatusUnprocessableEntity},
		{chainerr.InvalidBlock, http.StatusUnprocessableEntity},
		{chainerr.Conflict, http.StatusConflict},
		{chainerr.UnknownParent, http.StatusAccepted},
		{chainerr.IntegrityFault, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		app := newTestApp(t, func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			return chainerr.New(tc.kind, "TEST_CODE", "boom")
		})

		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		rec := httptest.NewRecorder()
		app.ServeHTTP(rec, req)

		if rec.Code != tc.want {
			t.Fatalf("kind %v: got status %d, want %d", tc.kind, rec.Code, tc.want)
		}
	}
}

func Test_ErrorsRendersFieldErrorsAsBadRequest(t *testing.T) {
	app := newTestApp(t, func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.FieldErrors{{Field: "raw", Error: "is a required field"}}
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}

	var resp errs.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unexpected error decoding response: %s", err)
	}
	if resp.Fields["raw"] == "" {
		t.Fatal("expected a field-level error for raw")
	}
}

func Test_ErrorsRendersTrustedErrorStatus(t *testing.T) {
	app := newTestApp(t, func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return errs.NewTrusted(errors.New("not found"), http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("got status %d, want 404", rec.Code)
	}
}

func Test_ErrorsFallsBackToInternalServerError(t *testing.T) {
	app := newTestApp(t, func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return os.ErrClosed
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want 500", rec.Code)
	}
}
