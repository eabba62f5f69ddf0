package jwttoken

import "soulbound/pkg/platform/middleware/admin"

// Adapter exposes the Service through the governance middleware's
// validator interface.
type Adapter struct {
	service *Service
}

func NewAdapter(service *Service) *Adapter {
	return &Adapter{service: service}
}

func (a *Adapter) ValidateBearer(token string) (string, error) {
	claims, err := a.service.Validate(token)
	if err != nil {
		return "", err
	}
	return claims.Actor, nil
}

var _ admin.BearerValidator = (*Adapter)(nil)
