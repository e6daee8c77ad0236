package services

import (
	"github.com/dmitrijs2005/anoncommunity/internal/common"
	"github.com/dmitrijs2005/anoncommunity/internal/server/models"
)

// AuthorizeMutation allows a change to a resource only when current created
// it. The administrator flag grants nothing here. Callers resolve the
// resource first, so a missing one is reported as common.ErrNotFound
// before this check runs.
func AuthorizeMutation(current *models.User, creatorID int64) error {
	if current == nil {
		return common.ErrUnauthenticated
	}
	if current.ID != creatorID {
		return common.ErrForbidden
	}
	return nil
}
