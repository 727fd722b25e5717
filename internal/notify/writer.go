package notify

import (
	"context"
	"fmt"
	"io"

	"internship-digest/internal/domain"
)

// Writer prints the message instead of posting it. Used for dry runs.
type Writer struct {
	W io.Writer
}

func (w Writer) Name() string { return "stdout" }

func (w Writer) Notify(ctx context.Context, msg domain.FormattedMessage) error {
	if err := ctx.Err(); err != nil {
		return &domain.Error{Kind: domain.KindDelivery, Op: "write", Err: err}
	}
	if _, err := fmt.Fprintln(w.W, msg.String()); err != nil {
		return &domain.Error{Kind: domain.KindDelivery, Op: "write", Err: err}
	}
	return nil
}
