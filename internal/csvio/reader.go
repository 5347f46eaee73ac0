package csvio

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"ledger_engine/internal/domain"
	"ledger_engine/pkg/validator"
)

// Reader produces the ordered operation sequence from a CSV source with the
// header `type,client,tx,amount`. Records that fail business validation
// (unknown type, missing amount on a deposit or withdrawal) are logged and
// skipped; structurally malformed records are fatal.
type Reader struct {
	csv       *csv.Reader
	validator *validator.OperationValidator
	logger    *slog.Logger
	headerOK  bool
}

func NewReader(r io.Reader, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	// Dispute-family rows often omit the trailing amount column.
	cr.FieldsPerRecord = -1

	return &Reader{
		csv:       cr,
		validator: validator.NewOperationValidator(),
		logger:    logger,
	}
}

// Next returns the next valid operation in input order, io.EOF at the end of
// the source, or a fatal error for a malformed record.
func (r *Reader) Next(ctx context.Context) (domain.Operation, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.Operation{}, err
		}

		fields, err := r.csv.Read()
		if err == io.EOF {
			return domain.Operation{}, io.EOF
		}
		if err != nil {
			return domain.Operation{}, fmt.Errorf("malformed record: %w", err)
		}

		if !r.headerOK {
			r.headerOK = true
			if isHeader(fields) {
				continue
			}
		}

		rec, err := parseRecord(fields)
		if err != nil {
			return domain.Operation{}, err
		}

		op, err := r.validator.Validate(rec)
		if err != nil {
			r.logger.Warn("Skipping invalid record",
				slog.String("type", rec.Type),
				slog.Uint64("tx", uint64(rec.Tx)),
				slog.String("reason", err.Error()))
			continue
		}

		return op, nil
	}
}

func isHeader(fields []string) bool {
	return len(fields) > 0 && strings.TrimSpace(fields[0]) == "type"
}

func parseRecord(fields []string) (validator.Record, error) {
	if len(fields) < 3 {
		return validator.Record{}, fmt.Errorf("malformed record: expected at least 3 fields, got %d", len(fields))
	}

	opType := strings.TrimSpace(fields[0])

	client, err := strconv.ParseUint(strings.TrimSpace(fields[1]), 10, 16)
	if err != nil {
		return validator.Record{}, fmt.Errorf("malformed client id %q: %w", fields[1], err)
	}

	tx, err := strconv.ParseUint(strings.TrimSpace(fields[2]), 10, 32)
	if err != nil {
		return validator.Record{}, fmt.Errorf("malformed transaction id %q: %w", fields[2], err)
	}

	rec := validator.Record{
		Type:   opType,
		Client: uint16(client),
		Tx:     uint32(tx),
	}

	if len(fields) > 3 {
		if raw := strings.TrimSpace(fields[3]); raw != "" {
			amount, err := decimal.NewFromString(raw)
			if err != nil {
				return validator.Record{}, fmt.Errorf("malformed amount %q: %w", raw, err)
			}
			rec.Amount = &amount
		}
	}

	return rec, nil
}
