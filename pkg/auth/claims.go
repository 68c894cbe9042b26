package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/CarlusInnocent/HotPOS/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uint
	BranchID *uint
	Role     enums.UserRole
	JTI      string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID   uint           `json:"user_id"`
	BranchID *uint          `json:"branch_id,omitempty"`
	Role     enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}
