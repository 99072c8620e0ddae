package model

import (
	"sort"
	"time"

	"video-analysis-platform/internal/domain"
)

// UploadPlan is what the server hands a client after Initialize: either one
// presigned PUT URL, or an ordered list of part URLs plus a part size.
type UploadPlan struct {
	UploadID    string        `json:"upload_id"`
	OwnerID     string        `json:"owner_id"`
	Bucket      string        `json:"bucket"`
	ObjectKey   string        `json:"object_key"`
	ContentType string        `json:"content_type"`
	TotalSize   int64         `json:"total_size"`
	Chunked     bool          `json:"chunked"`
	PartSize    int64         `json:"part_size,omitempty"`
	PutURL      string        `json:"put_url,omitempty"`
	Parts       []PlannedPart `json:"parts,omitempty"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// PlannedPart is one destination write target of a chunked plan.
type PlannedPart struct {
	Number int    `json:"number"` // 1-based
	Key    string `json:"key"`    // part object name
	URL    string `json:"url"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// PartAck is the opaque acknowledgment collected per uploaded part.
type PartAck struct {
	Number int    `json:"number"`
	ETag   string `json:"etag"`
}

// FinalizedAsset describes the durable object after Complete succeeds.
type FinalizedAsset struct {
	Bucket    string    `json:"bucket"`
	ObjectKey string    `json:"object_key"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// OrderParts sorts acks by part number and verifies the set is exactly
// 1..want with no gaps or duplicates. Finalizing a truncated object is a
// data-integrity failure, never a silent success.
func OrderParts(acks []PartAck, want int) ([]PartAck, error) {
	if len(acks) != want {
		return nil, domain.ErrPartIntegrity
	}
	sorted := make([]PartAck, len(acks))
	copy(sorted, acks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	for i, a := range sorted {
		if a.Number != i+1 {
			return nil, domain.ErrPartIntegrity
		}
	}
	return sorted, nil
}
