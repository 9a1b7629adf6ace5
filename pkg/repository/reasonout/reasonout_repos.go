package reasonout

import (
	"context"

	"github.com/r0mai/iracing-stats/pkg/repository"
)

// Ensure records a reason-out code if not yet known.
func Ensure(
	ctx context.Context,
	conn repository.Querier,
	reasonOutID int64,
	reasonOut string,
) error {
	_, err := conn.Exec(ctx, `
	insert into reason_out (reason_out_id, reason_out)
	values ($1,$2)
	on conflict (reason_out_id) do nothing
	`, reasonOutID, reasonOut)
	return err
}
