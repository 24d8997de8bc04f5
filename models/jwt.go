package models

// AdminJWT carries the claims of a token allowed to manage the bucket registry.
type AdminJWT struct {
	Issuer    string `json:"iss"` // optional
	Subject   string `json:"sub"`
	IssuedAt  int64  `json:"iat"`
	ExpiresAt int64  `json:"exp"`
	Scope     string `json:"scope"` // must be "buckets:admin"
}

// AdminScope is the scope required by the bucket registry endpoints.
const AdminScope = "buckets:admin"
