// Package access computes authorization decisions for media objects and
// their engagement metadata. Decisions combine the role hierarchy with
// resource ownership and are evaluated identically regardless of which
// backing store the entity was loaded from. Everything here is pure and
// synchronous; callers load entities first.
package access

import (
	"github.com/google/uuid"

	"github.com/jordanvela/cliphive-backend/pkg/db/models"
	"github.com/jordanvela/cliphive-backend/pkg/enums"
)

// Principal is the acting identity. A nil *Principal means an anonymous
// caller.
type Principal struct {
	ID   uuid.UUID
	Role enums.Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == enums.RoleAdmin
}

// HasAtLeast is the category gate: it compares role rank only and must never
// stand in for an ownership check on a specific resource.
func HasAtLeast(p *Principal, role enums.Role) bool {
	return p != nil && p.Role.AtLeast(role)
}

// CanRead reports whether the principal may view the video. Public videos
// are readable by anyone, including anonymous callers; private videos only
// by their owner or an admin. Pending videos (blob write unconfirmed) are
// visible to the owner and admins only.
func CanRead(p *Principal, video *models.Video) bool {
	if video == nil {
		return false
	}
	if video.Status != enums.VideoStatusReady {
		return isOwnerOrAdmin(p, video.OwnerID)
	}
	if video.Visibility == enums.VisibilityPublic {
		return true
	}
	return isOwnerOrAdmin(p, video.OwnerID)
}

// CanMutate reports whether the principal may edit or delete the video.
// Ownership gates mutation: a creator who does not own the video is denied
// no matter their rank.
func CanMutate(p *Principal, video *models.Video) bool {
	if video == nil {
		return false
	}
	return isOwnerOrAdmin(p, video.OwnerID)
}

// CanEditEngagement reports whether the principal may edit a comment or
// rating. Edits are owner-only, even for admins: admins remove content, they
// do not alter someone else's words.
func CanEditEngagement(p *Principal, ownerID uuid.UUID) bool {
	return p != nil && p.ID == ownerID
}

// CanDeleteEngagement reports whether the principal may delete a comment or
// rating: the owner, or an admin.
func CanDeleteEngagement(p *Principal, ownerID uuid.UUID) bool {
	if p == nil {
		return false
	}
	return p.ID == ownerID || p.Role == enums.RoleAdmin
}

func isOwnerOrAdmin(p *Principal, ownerID uuid.UUID) bool {
	if p == nil {
		return false
	}
	return p.ID == ownerID || p.Role == enums.RoleAdmin
}
