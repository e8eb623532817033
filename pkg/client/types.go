package client

import (
	"time"

	"github.com/surrealdb/surrealdesk/pkg/models"
	"github.com/surrealdb/surrealdesk/pkg/workspace"
)

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ResetPasswordRequest struct {
	Email string `json:"email"`
}

type ConfirmResetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type User struct {
	ID    models.UserID `json:"id"`
	Email string        `json:"email"`
}

// AuthResponse answers sign-up, sign-in and refresh. Token is the bearer
// token of the server-side session, not the identity provider's token.
type AuthResponse struct {
	Token     string           `json:"token"`
	User      User             `json:"user"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Status    workspace.Status `json:"status"`
}

// Accepted answers every mutation. Persisted is true only when the request
// asked to wait for the write.
type Accepted struct {
	ID        string `json:"id,omitempty"`
	Persisted bool   `json:"persisted"`
}

type CreateDocumentRequest struct {
	Title    string             `json:"title"`
	ParentID *models.DocumentID `json:"parentId,omitempty"`
}

type MoveDocumentRequest struct {
	ParentID *models.DocumentID `json:"parentId"`
}

type AddBlockRequest struct {
	workspace.BlockInput
	Position *int `json:"position,omitempty"`
}

type ReorderBlocksRequest struct {
	Order []models.BlockID `json:"order"`
}

// HealthPatchResponse lists the ids of the entities a health patch touched,
// including the ones it created.
type HealthPatchResponse struct {
	Accepted
	ProtocolIDs []models.ProtocolID `json:"protocolIds"`
	HabitIDs    []models.HabitID    `json:"habitIds"`
}

type HealthzResponse struct {
	Status   string `json:"status"`
	ReadOnly bool   `json:"readOnly"`
	Sessions int    `json:"sessions"`
	Version  string `json:"version"`
}

type ReadOnlyMode struct {
	ReadOnly bool `json:"readOnly"`
}
