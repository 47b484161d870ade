package api

import (
	"encoding/json"

	"github.com/TrustFinAI/vfin-platform/pkg/tenant"
)

// UserResponse is the tenant projection returned to the dashboard. Password
// hashes and internal billing references never leave the server.
type UserResponse struct {
	ID                 int64           `json:"id"`
	Email              string          `json:"email"`
	CompanyName        string          `json:"companyName"`
	SubscriptionTier   string          `json:"subscriptionTier"`
	SubscriptionStatus string          `json:"subscriptionStatus"`
	CompanyLogoURL     string          `json:"companyLogoUrl,omitempty"`
	ClientProfile      json.RawMessage `json:"clientProfile,omitempty"`
}

func toUserResponse(t *tenant.Tenant) UserResponse {
	return UserResponse{
		ID:                 t.ID,
		Email:              t.Email,
		CompanyName:        t.CompanyName,
		SubscriptionTier:   t.SubscriptionTier,
		SubscriptionStatus: t.SubscriptionStatus,
		CompanyLogoURL:     t.CompanyLogoURL,
		ClientProfile:      t.ClientProfile,
	}
}

// AuthResponse carries a fresh session token with the user it binds
type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	CompanyName string `json:"companyName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	CompanyName    string          `json:"companyName"`
	CompanyLogoURL string          `json:"companyLogoUrl"`
	ClientProfile  json.RawMessage `json:"clientProfile"`
}

type checkoutRequest struct {
	PriceRef string `json:"priceRef"`
}

type sessionURLResponse struct {
	URL string `json:"url"`
}
