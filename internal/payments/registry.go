package payments

import (
	"github.com/jodise/jodise-backend/pkg/enums"
	pkgerrors "github.com/jodise/jodise-backend/pkg/errors"
)

// Registry holds the configured gateway adapters and resolves the active one.
type Registry struct {
	gateways map[enums.Gateway]Gateway
}

// NewRegistry indexes the provided gateways by name.
func NewRegistry(gateways ...Gateway) *Registry {
	index := make(map[enums.Gateway]Gateway, len(gateways))
	for _, gateway := range gateways {
		if gateway == nil {
			continue
		}
		index[gateway.Name()] = gateway
	}
	return &Registry{gateways: index}
}

// Get resolves a gateway by name. Unknown or unconfigured gateways surface
// as GatewayUnavailable so callers fail the request rather than guessing.
func (r *Registry) Get(name enums.Gateway) (Gateway, error) {
	if gateway, ok := r.gateways[name]; ok {
		return gateway, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeGatewayUnavailable, "payment gateway not configured").WithDetails(map[string]any{
		"gateway": name,
	})
}
