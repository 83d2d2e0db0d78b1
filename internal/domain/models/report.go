// internal/domain/models/report.go
package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// ReportStatus is the moderation state of a report.
type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportResolved ReportStatus = "resolved"
)

// DefaultReportReason is used when a reporter gives no reason.
const DefaultReportReason = "Inappropriate"

// Report flags a post for admin review. Reports are never deleted and only
// move from pending to resolved.
type Report struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	PostID     primitive.ObjectID  `bson:"post_id" json:"postId"`
	ReporterID primitive.ObjectID  `bson:"reporter_id" json:"reporterId"`
	Reason     string              `bson:"reason" json:"reason"`
	Status     ReportStatus        `bson:"status" json:"status"`
	CreatedAt  int64               `bson:"created_at" json:"createdAt"`
	ResolvedBy *primitive.ObjectID `bson:"resolved_by,omitempty" json:"resolvedBy,omitempty"`
	ResolvedAt *int64              `bson:"resolved_at,omitempty" json:"resolvedAt,omitempty"`
}
