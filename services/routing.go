package services

import (
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tgregoire/invgov-backend/models"
)

// RoutingResolver computes the next approver for a submission from the
// cached organizational hierarchy.
type RoutingResolver struct {
	store Store
}

// NewRoutingResolver creates a routing resolver backed by the cache store
func NewRoutingResolver(store Store) *RoutingResolver {
	return &RoutingResolver{store: store}
}

// ResolveNextApprover returns the creator's manager as (name, title). A
// creator with no hierarchy entry, or one whose manager is unknown, yields
// nil: the request still moves through the chain, just without an advertised
// next approver. That gap is intentional; the state machine alone enforces
// chain legality.
func (r *RoutingResolver) ResolveNextApprover(creator models.Identity) (*string, *string) {
	entry, err := r.store.GetUserByUsername(normalizeUsername(creator.Username))
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "RoutingResolver",
			"username":  creator.Username,
		}).WithError(err).Warn("Hierarchy lookup failed, submitting without next approver")
		return nil, nil
	}
	if entry == nil || entry.ManagerName == nil || *entry.ManagerName == "" {
		return nil, nil
	}

	managerName := *entry.ManagerName
	var managerTitle *string
	if managerEntry, err := r.store.GetUserByDisplayName(managerName); err == nil && managerEntry != nil {
		managerTitle = managerEntry.Title
	}

	return &managerName, managerTitle
}

// maxChainDepth bounds the manager walk. Hierarchy imports are not validated
// for cycles, so the resolver refuses to follow manager links forever.
const maxChainDepth = 10

// ResolveApprovalChain walks manager links upward from the given login until
// it reaches an entry flagged as the final approver, runs off the top of the
// recorded hierarchy, or hits the depth cap. The login's own entry is not a
// step; step one is their manager. A login with no hierarchy entry yields an
// empty chain.
func (r *RoutingResolver) ResolveApprovalChain(username string) ([]models.ApprovalStep, error) {
	entry, err := r.store.GetUserByUsername(normalizeUsername(username))
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}

	var chain []models.ApprovalStep
	current := entry
	for len(chain) < maxChainDepth {
		if current.ManagerName == nil || *current.ManagerName == "" {
			break
		}
		managerName := *current.ManagerName
		manager, err := r.store.GetUserByDisplayName(managerName)
		if err != nil {
			return nil, err
		}
		step := models.ApprovalStep{
			Order:        len(chain) + 1,
			ApproverName: managerName,
			Status:       models.StepStatusPending,
		}
		if manager == nil {
			// The manager has no hierarchy entry of their own. Keep the
			// name the subordinate row advertises, but the walk ends here.
			chain = append(chain, step)
			break
		}
		step.ApproverTitle = manager.Title
		step.Role = manager.Role
		step.IsFinalStep = manager.IsFinalApprover
		chain = append(chain, step)
		if manager.IsFinalApprover {
			break
		}
		current = manager
	}
	return chain, nil
}

// IdentityFor resolves an already-authenticated login against the hierarchy
// cache, falling back to a bare identity when the login has no entry.
func (r *RoutingResolver) IdentityFor(username string) models.Identity {
	normalized := normalizeUsername(username)
	entry, err := r.store.GetUserByUsername(normalized)
	if err != nil || entry == nil {
		return models.DefaultIdentity(normalized)
	}
	return models.IdentityFromEntry(entry)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
