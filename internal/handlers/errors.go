package handlers

import (
	"encoding/csv"
	stderrors "errors"
	"log/slog"
	"net/http"

	"sales-dashboard/internal/errors"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/pipeline"
	"sales-dashboard/internal/services"
)

// classify turns an ingest or aggregation failure into the AppError the
// client sees. Anything unrecognised is an internal error.
func classify(err error) error {
	var (
		appErr     *errors.AppError
		dateErr    *pipeline.DateParseError
		numberErr  *pipeline.NumberParseError
		missingErr *pipeline.MissingColumnError
		rowErr     *pipeline.MalformedRowError
		csvErr     *csv.ParseError
		sizeErr    *http.MaxBytesError
	)

	switch {
	case stderrors.As(err, &appErr):
		return appErr
	case stderrors.Is(err, services.ErrNoDataset):
		return errors.New(errors.CodeNoDataset, "Upload a CSV file first")
	case stderrors.As(err, &sizeErr):
		return errors.TooLarge("Uploaded file is too large")
	case stderrors.As(err, &dateErr):
		return errors.Dataset(err, errors.CodeDateParse, "Date column contains an unrecognised value")
	case stderrors.As(err, &numberErr):
		return errors.Dataset(err, errors.CodeNumberParse, "Numeric column contains a non-numeric value")
	case stderrors.As(err, &missingErr):
		return errors.Dataset(err, errors.CodeMissingColumn, "Required column missing")
	case stderrors.As(err, &rowErr), stderrors.As(err, &csvErr), stderrors.Is(err, pipeline.ErrEmptySource):
		return errors.Dataset(err, errors.CodeMalformedCSV, "File is not a valid CSV")
	default:
		return errors.InternalWrap(err, "An unexpected error occurred")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ctx := r.Context()
	errors.WriteError(ctx, w, logger, classify(err), observability.GetRequestID(ctx))
}
