package interfaces

import (
	"context"

	"github.com/ternarybob/aditus/internal/models"
)

// Dispatcher issues arbitrary HTTP requests on behalf of the console UI.
type Dispatcher interface {
	Do(ctx context.Context, req *models.APIRequest) (*models.APIResponse, error)
}

// UnitService covers the downstream accounting-unit calls made once a
// session exists.
type UnitService interface {
	// FetchUnits lists the accounting units visible to the session's org.
	FetchUnits(ctx context.Context, orgID, token, cookie string) (*models.APIResponse, error)

	// SetUnitSession binds the selected unit to the server-side session.
	SetUnitSession(ctx context.Context, req *models.UnitSessionRequest, token, cookie string) (*models.APIResponse, error)
}
