// Package web holds the request decoding and response encoding helpers shared
// by the API handlers.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ahrav/logsift/internal/api/errs"
	"github.com/ahrav/logsift/pkg/common/logger"
)

const maxBodyBytes = 1 << 20

// Respond writes data as JSON with the given status. A nil data writes only the
// status line.
func Respond(ctx context.Context, log *logger.Logger, w http.ResponseWriter, status int, data any) {
	if data == nil {
		w.WriteHeader(status)
		return
	}

	body, err := json.Marshal(data)
	if err != nil {
		log.Error(ctx, "failed to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Debug(ctx, "failed to write response", "error", err)
	}
}

// RespondError maps err to an API error and writes it. Internal errors are logged.
func RespondError(ctx context.Context, log *logger.Logger, w http.ResponseWriter, err error) {
	apiErr := errs.FromDomain(err)
	if apiErr.Code == errs.Internal {
		log.Error(ctx, "request failed", "error", err)
	}
	Respond(ctx, log, w, apiErr.Code.HTTPStatus(), apiErr)
}

// Decode reads a JSON body into v. An empty body leaves v untouched when
// allowEmpty is set.
func Decode(r *http.Request, v any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return nil
		}
		return errs.New(errs.InvalidArgument, fmt.Errorf("invalid request body: %w", err))
	}
	return nil
}

// ParamInt64 parses a positive int64 path parameter.
func ParamInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.Newf(errs.InvalidArgument, "invalid %s %q", name, raw)
	}
	return id, nil
}
