package crm

import (
	"context"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/listing-recon/internal/fetcher"
	"github.com/sells-group/listing-recon/internal/model"
)

// Writer receives parsed feed records. store.Store satisfies it.
type Writer interface {
	UpsertAgency(ctx context.Context, a model.Agency) error
	UpsertProperty(ctx context.Context, p model.Property) error
}

// SyncResult counts what one feed pass did.
type SyncResult struct {
	Agencies   int `json:"agencies"`
	Properties int `json:"properties"`
	Skipped    int `json:"skipped"`
}

// Syncer loads the CRM feed into a Writer.
type Syncer struct {
	fetcher fetcher.Fetcher
	writer  Writer
	now     func() time.Time
}

// NewSyncer creates a Syncer.
func NewSyncer(f fetcher.Fetcher, w Writer) *Syncer {
	return &Syncer{fetcher: f, writer: w, now: time.Now}
}

// Sync downloads url and upserts every agency and listing it contains.
func (s *Syncer) Sync(ctx context.Context, url string) (*SyncResult, error) {
	body, err := s.fetcher.Download(ctx, url)
	if err != nil {
		return nil, eris.Wrap(err, "crm: download feed")
	}
	defer body.Close() //nolint:errcheck

	return s.Load(ctx, body)
}

// Load parses a feed from r. Malformed listings are logged and skipped;
// store failures and malformed XML abort the pass.
func (s *Syncer) Load(ctx context.Context, r io.Reader) (*SyncResult, error) {
	res := &SyncResult{}
	fallback := s.now().UTC()

	err := fetcher.EachXML(ctx, r, "agency", func(xa xmlAgency) error {
		agency, err := xa.toModel()
		if err != nil {
			res.Skipped += 1 + len(xa.listings())
			zap.L().Warn("crm: skipping agency", zap.Error(err))
			return nil
		}
		if agency.UpdatedAt.IsZero() {
			agency.UpdatedAt = fallback
		}
		if err := s.writer.UpsertAgency(ctx, agency); err != nil {
			return eris.Wrapf(err, "crm: save agency %s", agency.ID)
		}
		res.Agencies++

		for _, xp := range xa.listings() {
			prop, err := xp.toModel(agency.ID, fallback)
			if err != nil {
				res.Skipped++
				zap.L().Warn("crm: skipping property",
					zap.String("agency_id", agency.ID),
					zap.Error(err),
				)
				continue
			}
			if err := s.writer.UpsertProperty(ctx, prop); err != nil {
				return eris.Wrapf(err, "crm: save property %s", prop.ID)
			}
			res.Properties++
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	zap.L().Info("crm: feed loaded",
		zap.Int("agencies", res.Agencies),
		zap.Int("properties", res.Properties),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}
