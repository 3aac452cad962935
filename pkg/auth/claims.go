package auth

import (
	"github.com/angelmondragon/playgate/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	ViewerID uuid.UUID
	Role     enums.ViewerRole
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued by the account service.
type AccessTokenClaims struct {
	ViewerID uuid.UUID        `json:"viewer_id"`
	Role     enums.ViewerRole `json:"role"`
	jwt.RegisteredClaims
}
