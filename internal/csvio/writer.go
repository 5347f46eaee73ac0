package csvio

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"ledger_engine/internal/domain"
	"ledger_engine/pkg/validator"
)

// Writer emits the final balance report: one row per client in
// first-appearance order, amounts at the ledger's fixed precision.
type Writer struct {
	out io.Writer
}

func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

func (w *Writer) WriteReport(ctx context.Context, clients []*domain.Client) error {
	cw := csv.NewWriter(w.out)

	if err := cw.Write([]string{"client", "available", "held", "total", "locked"}); err != nil {
		return err
	}

	for _, c := range clients {
		if err := ctx.Err(); err != nil {
			return err
		}
		row := []string{
			strconv.FormatUint(uint64(c.ID), 10),
			validator.Truncate(c.Available).String(),
			validator.Truncate(c.Held).String(),
			validator.Truncate(c.Total).String(),
			strconv.FormatBool(c.Locked),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
