package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Upload stores metadata about a progress photo uploaded by a member.
// The actual file resides in S3.
type Upload struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	S3ObjectKey string             `bson:"s3ObjectKey" json:"-"` // internal use only
	FileName    string             `bson:"fileName" json:"fileName"`
	ContentType string             `bson:"contentType" json:"contentType"`
	Size        int64              `bson:"size" json:"size"`
	Caption     string             `bson:"caption,omitempty" json:"caption,omitempty"`
	UploadedAt  time.Time          `bson:"uploadedAt" json:"uploadedAt"`
}
