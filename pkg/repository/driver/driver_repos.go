//nolint:whitespace //can't make both the linter and editor happy :(
package driver

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/r0mai/iracing-stats/pkg/model"
	"github.com/r0mai/iracing-stats/pkg/repository"
)

// Ensure records a driver if not yet known. The first observed display name
// wins; later name changes are not tracked.
func Ensure(ctx context.Context, conn repository.Querier, d *model.DbDriver) error {
	_, err := conn.Exec(ctx, `
	insert into driver (cust_id, display_name)
	values ($1,$2)
	on conflict (cust_id) do nothing
	`, d.CustID, d.DisplayName)
	return err
}

func LoadByID(
	ctx context.Context,
	conn repository.Querier,
	custID int64,
) (*model.DbDriver, error) {
	row := conn.QueryRow(ctx,
		fmt.Sprintf("%s where cust_id=$1", selector), custID)
	var item model.DbDriver
	if err := scan(&item, row); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNoData
		}
		return nil, err
	}
	return &item, nil
}

// little helper
const selector = string(`select cust_id,display_name from driver`)

func scan(e *model.DbDriver, row pgx.Row) error {
	return row.Scan(&e.CustID, &e.DisplayName)
}
