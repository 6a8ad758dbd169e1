package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/netpoint-soft/cybercafe-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID    uuid.UUID
	Role      enums.UserRole
	StationID *string
	JTI       string
}

// AccessTokenClaims represents the typed JWT issued to POS clients.
type AccessTokenClaims struct {
	UserID    uuid.UUID      `json:"user_id"`
	Role      enums.UserRole `json:"role"`
	StationID *string        `json:"station_id,omitempty"`
	jwt.RegisteredClaims
}
