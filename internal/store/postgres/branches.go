package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/JonMunkholm/stockcount/internal/core"
)

const lookupBranchSQL = `
SELECT c.id, c.name, a.name
FROM company_areas a
JOIN companies c ON c.id = a.company_id
WHERE EXISTS (
    SELECT 1 FROM unnest(a.branches) AS b WHERE lower(b) = lower($1)
)
ORDER BY a.id
LIMIT 1`

// LookupBranch finds the company area a branch belongs to. Names compare
// case-insensitively.
func (s *Store) LookupBranch(ctx context.Context, name string) (core.Branch, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Branch{}, false, nil
	}

	var b core.Branch
	err := s.db.QueryRow(ctx, lookupBranchSQL, name).Scan(&b.CompanyID, &b.CompanyName, &b.Area)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Branch{}, false, nil
	}
	if err != nil {
		return core.Branch{}, false, err
	}
	return b, true, nil
}
