package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/avelhorn/hubtrader/internal/domain"
)

// archivePartSize is the multipart upload part size (the S3 minimum, 5 MiB).
const archivePartSize int64 = 5 * 1024 * 1024

// Archiver writes expiring price-history snapshots to the bucket as JSONL,
// one snapshot per line. Objects are keyed by cutoff date plus upload time so
// repeated cleanup runs never overwrite an earlier archive.
type Archiver struct {
	uploader *manager.Uploader
	bucket   string
}

// NewArchiver creates an Archiver uploading to the client's bucket.
func NewArchiver(c *Client) *Archiver {
	return &Archiver{
		uploader: manager.NewUploader(c.s3, func(u *manager.Uploader) {
			u.PartSize = archivePartSize
		}),
		bucket: c.bucket,
	}
}

// archivedPoint is the JSONL record shape. Field names are part of the
// archive format; changing them breaks existing objects' consumers.
type archivedPoint struct {
	TypeID     int32     `json:"type_id"`
	RegionID   int32     `json:"region_id"`
	BuyPrice   float64   `json:"buy_price"`
	SellPrice  float64   `json:"sell_price"`
	BuyVolume  int64     `json:"buy_volume"`
	SellVolume int64     `json:"sell_volume"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Archive uploads the given snapshots and returns the object key written.
func (a *Archiver) Archive(ctx context.Context, points []domain.PriceHistoryPoint, cutoff time.Time) (string, error) {
	if len(points) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range points {
		record := archivedPoint{
			TypeID:     p.TypeID,
			RegionID:   p.RegionID,
			BuyPrice:   p.BuyPrice,
			SellPrice:  p.SellPrice,
			BuyVolume:  p.BuyVolume,
			SellVolume: p.SellVolume,
			RecordedAt: p.RecordedAt,
		}
		if err := enc.Encode(record); err != nil {
			return "", fmt.Errorf("s3blob: encode history point: %w", err)
		}
	}

	key := fmt.Sprintf("price-history/%s/%d.jsonl",
		cutoff.UTC().Format("2006-01-02"),
		time.Now().UTC().Unix(),
	)

	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        &buf,
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return "", fmt.Errorf("s3blob: upload archive %s: %w", key, err)
	}

	return key, nil
}
