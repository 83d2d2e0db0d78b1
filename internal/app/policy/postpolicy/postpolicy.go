// Package postpolicy derives the lifecycle status of a post and decides who
// may see or change it.
//
// Visibility rules:
//   - Published posts are visible to everyone (and, when approval is
//     required, only once approved)
//   - Draft, Scheduled and Expired posts are visible only to their author
//     and to admins
//   - Only the author or an admin may update or delete a post
package postpolicy

import (
	"github.com/dalemusser/alumnihub/internal/app/system/auth"
	"github.com/dalemusser/alumnihub/internal/app/system/authz"
	"github.com/dalemusser/alumnihub/internal/domain/models"
)

// Status is the lifecycle state of a post at a point in time.
type Status string

const (
	Draft     Status = "draft"
	Scheduled Status = "scheduled"
	Published Status = "published"
	Expired   Status = "expired"
)

// StatusOf computes the status of p at now (epoch ms). Precedence is
// draft, then expired, then scheduled.
func StatusOf(p models.Post, now int64) Status {
	switch {
	case p.Draft:
		return Draft
	case p.ExpiresAt != nil && *p.ExpiresAt <= now:
		return Expired
	case p.ScheduledAt != nil && *p.ScheduledAt > now:
		return Scheduled
	default:
		return Published
	}
}

// Options carries deployment settings that change visibility.
type Options struct {
	RequireApproval bool
}

// InFeed reports whether p belongs in the public feed at now.
func InFeed(p models.Post, now int64, opts Options) bool {
	if StatusOf(p, now) != Published {
		return false
	}
	return !opts.RequireApproval || p.Approved
}

// CanView reports whether viewer may open p at now. viewer may be nil.
func CanView(viewer *auth.Identity, p models.Post, now int64, opts Options) bool {
	if InFeed(p, now, opts) {
		return true
	}
	return IsOwnerOrAdmin(viewer, p)
}

// CanModify reports whether viewer may update or delete p.
func CanModify(viewer *auth.Identity, p models.Post) bool {
	return IsOwnerOrAdmin(viewer, p)
}

// IsOwnerOrAdmin reports whether viewer authored p or is an admin.
func IsOwnerOrAdmin(viewer *auth.Identity, p models.Post) bool {
	return authz.CanModify(viewer, p.AuthorID)
}

// FilterFeed keeps only the posts that belong in the feed, preserving order.
func FilterFeed(posts []models.Post, now int64, opts Options) []models.Post {
	out := make([]models.Post, 0, len(posts))
	for _, p := range posts {
		if InFeed(p, now, opts) {
			out = append(out, p)
		}
	}
	return out
}
