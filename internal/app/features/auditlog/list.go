// internal/app/features/auditlog/list.go
package auditlog

import (
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/alumnihub/internal/app/features/shared/params"
	"github.com/dalemusser/alumnihub/internal/app/store/audit"
	"github.com/dalemusser/alumnihub/internal/app/system/apperr"
	"github.com/dalemusser/alumnihub/internal/app/system/respond"
	"github.com/dalemusser/alumnihub/internal/app/system/retry"
	"github.com/dalemusser/alumnihub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const pageSize = 50

// Item is one audit event with actor and target names resolved.
type Item struct {
	audit.Event
	ActorName  string `json:"actorName,omitempty"`
	TargetName string `json:"targetName,omitempty"`
}

type listResponse struct {
	Items      []Item `json:"items"`
	Total      int64  `json:"total"`
	Page       int    `json:"page"`
	TotalPages int    `json:"totalPages"`
}

// ServeList handles GET /api/admin/audit?category=&event_type=&start_date=&end_date=&page=.
// Dates are YYYY-MM-DD in UTC; end_date is inclusive.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := audit.QueryFilter{
		Category:  strings.TrimSpace(q.Get("category")),
		EventType: strings.TrimSpace(q.Get("event_type")),
		Limit:     pageSize,
	}
	switch filter.Category {
	case "", audit.CategoryAuth, audit.CategoryAdmin:
	default:
		respond.Error(w, r, h.Log, apperr.Validation("unknown category %q", filter.Category))
		return
	}
	if s := strings.TrimSpace(q.Get("start_date")); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			respond.Error(w, r, h.Log, apperr.Validation("invalid start_date"))
			return
		}
		filter.StartTime = &t
	}
	if s := strings.TrimSpace(q.Get("end_date")); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			respond.Error(w, r, h.Log, apperr.Validation("invalid end_date"))
			return
		}
		end := t.Add(24*time.Hour - time.Millisecond)
		filter.EndTime = &end
	}
	page := params.Int(r, "page", 1, 1<<20)
	filter.Offset = int64((page - 1) * pageSize)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "audit log list")
	defer cancel()

	events, err := h.Events.Query(ctx, filter)
	if err != nil {
		respond.Error(w, r, h.Log, dbErr(err))
		return
	}
	total, err := h.Events.Count(ctx, filter)
	if err != nil {
		respond.Error(w, r, h.Log, dbErr(err))
		return
	}

	seen := make(map[primitive.ObjectID]struct{})
	var ids []primitive.ObjectID
	for _, e := range events {
		for _, id := range []*primitive.ObjectID{e.ActorID, e.UserID} {
			if id == nil {
				continue
			}
			if _, ok := seen[*id]; !ok {
				seen[*id] = struct{}{}
				ids = append(ids, *id)
			}
		}
	}
	names := make(map[primitive.ObjectID]string, len(ids))
	if len(ids) > 0 {
		users, err := h.Names.GetByIDs(ctx, ids)
		if err != nil {
			// Names are cosmetic; fall back to hex ids.
			h.Log.Warn("failed to fetch user names for audit log", zap.Error(err))
		}
		for _, u := range users {
			names[u.ID] = u.DisplayName
		}
	}

	items := make([]Item, 0, len(events))
	for _, e := range events {
		items = append(items, Item{
			Event:      e,
			ActorName:  nameOf(names, e.ActorID),
			TargetName: nameOf(names, e.UserID),
		})
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}
	respond.OK(w, listResponse{Items: items, Total: total, Page: page, TotalPages: totalPages})
}

func nameOf(names map[primitive.ObjectID]string, id *primitive.ObjectID) string {
	if id == nil {
		return ""
	}
	if n, ok := names[*id]; ok && n != "" {
		return n
	}
	return id.Hex()
}

func dbErr(err error) error {
	if retry.Transient(err) {
		return apperr.Unavailable("database unavailable", err)
	}
	return apperr.Internal(err)
}
