package contracts

import (
	"fmt"
	"os"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Version identifies which generation of the spoke pool contract emitted an
// event. The ABI shape of deposits and fills differs between generations, so
// the version is computed once at decode time and carried as a discriminant.
type Version string

const (
	VersionV2  Version = "v2"
	VersionV25 Version = "v2.5"
	VersionV3  Version = "v3"
)

// Deployment describes one spoke pool deployment on a chain. A chain may carry
// several deployments over time; each one is active from its start block until
// the next deployment's start block.
type Deployment struct {
	Address    common.Address `yaml:"-"`
	AddressHex string         `yaml:"address"`
	StartBlock uint64         `yaml:"start_block"`
	Version    Version        `yaml:"version"`
}

// DeploymentRegistry holds the known spoke pool deployments per chain, sorted
// by start block ascending, plus the rewards distributor contract on chains
// that have one.
type DeploymentRegistry struct {
	chains       map[uint64][]Deployment
	distributors map[uint64]common.Address
}

type deploymentsFile struct {
	Chains       map[uint64][]Deployment `yaml:"chains"`
	Distributors map[uint64]string       `yaml:"distributors"`
}

// LoadDeployments reads the deployment registry from a YAML file.
func LoadDeployments(path string) (*DeploymentRegistry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read deployments file: %w", err)
	}

	var file deploymentsFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse deployments file: %w", err)
	}

	registry := &DeploymentRegistry{
		chains:       make(map[uint64][]Deployment),
		distributors: make(map[uint64]common.Address),
	}
	for chainID, addr := range file.Distributors {
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("invalid distributor address %q for chain %d", addr, chainID)
		}
		registry.distributors[chainID] = common.HexToAddress(addr)
	}
	for chainID, deployments := range file.Chains {
		for i := range deployments {
			if !common.IsHexAddress(deployments[i].AddressHex) {
				return nil, fmt.Errorf("invalid contract address %q for chain %d", deployments[i].AddressHex, chainID)
			}
			deployments[i].Address = common.HexToAddress(deployments[i].AddressHex)
			switch deployments[i].Version {
			case VersionV2, VersionV25, VersionV3:
			default:
				return nil, fmt.Errorf("unknown contract version %q for chain %d", deployments[i].Version, chainID)
			}
		}
		sort.Slice(deployments, func(i, j int) bool {
			return deployments[i].StartBlock < deployments[j].StartBlock
		})
		registry.chains[chainID] = deployments
	}

	return registry, nil
}

// NewDeploymentRegistry builds a registry from in-memory deployments, sorting
// each chain's list by start block. Used by tests and fixtures.
func NewDeploymentRegistry(chains map[uint64][]Deployment) *DeploymentRegistry {
	registry := &DeploymentRegistry{
		chains:       make(map[uint64][]Deployment, len(chains)),
		distributors: make(map[uint64]common.Address),
	}
	for chainID, deployments := range chains {
		sorted := make([]Deployment, len(deployments))
		copy(sorted, deployments)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i].StartBlock < sorted[j].StartBlock
		})
		registry.chains[chainID] = sorted
	}
	return registry
}

// Distributor returns the rewards distributor contract for a chain, if any.
func (r *DeploymentRegistry) Distributor(chainID uint64) (common.Address, bool) {
	addr, ok := r.distributors[chainID]
	return addr, ok
}

// Deployments returns the deployments for a chain, sorted by start block.
func (r *DeploymentRegistry) Deployments(chainID uint64) []Deployment {
	return r.chains[chainID]
}

// ActiveAt returns the deployment active at the given block on a chain, or nil
// when the block precedes the first known deployment.
func (r *DeploymentRegistry) ActiveAt(chainID, block uint64) *Deployment {
	deployments := r.chains[chainID]
	var active *Deployment
	for i := range deployments {
		if deployments[i].StartBlock <= block {
			active = &deployments[i]
		}
	}
	return active
}

// ChainIDs returns the chain ids that have at least one deployment.
func (r *DeploymentRegistry) ChainIDs() []uint64 {
	ids := make([]uint64, 0, len(r.chains))
	for id := range r.chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
