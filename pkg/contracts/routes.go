package contracts

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Route maps an origin-chain input token to its equivalent token on a
// destination chain. V3 deposits may carry a zero output token address,
// meaning "the canonical equivalent", which must be resolved off chain.
type Route struct {
	OriginChainID      uint64 `yaml:"origin_chain_id"`
	InputToken         string `yaml:"input_token"`
	DestinationChainID uint64 `yaml:"destination_chain_id"`
	OutputToken        string `yaml:"output_token"`
}

// RouteRegistry resolves canonical output tokens per route.
type RouteRegistry struct {
	routes map[string]string
}

type routesFile struct {
	Routes []Route `yaml:"routes"`
}

func routeKey(originChainID uint64, inputToken string, destinationChainID uint64) string {
	return fmt.Sprintf("%d:%s:%d", originChainID, strings.ToLower(inputToken), destinationChainID)
}

// LoadRoutes reads the token route table from a YAML file.
func LoadRoutes(path string) (*RouteRegistry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read routes file: %w", err)
	}
	var file routesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse routes file: %w", err)
	}
	return NewRouteRegistry(file.Routes)
}

// NewRouteRegistry builds a registry from in-memory routes.
func NewRouteRegistry(routes []Route) (*RouteRegistry, error) {
	registry := &RouteRegistry{routes: make(map[string]string, len(routes))}
	for _, route := range routes {
		if !common.IsHexAddress(route.InputToken) || !common.IsHexAddress(route.OutputToken) {
			return nil, fmt.Errorf("invalid token address in route %d:%s -> %d", route.OriginChainID, route.InputToken, route.DestinationChainID)
		}
		key := routeKey(route.OriginChainID, route.InputToken, route.DestinationChainID)
		registry.routes[key] = common.HexToAddress(route.OutputToken).Hex()
	}
	return registry, nil
}

// OutputToken returns the canonical destination token for a route.
func (r *RouteRegistry) OutputToken(originChainID uint64, inputToken string, destinationChainID uint64) (string, bool) {
	token, ok := r.routes[routeKey(originChainID, inputToken, destinationChainID)]
	return token, ok
}
