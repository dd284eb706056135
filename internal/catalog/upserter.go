package catalog

import (
	"context"
	"fmt"
	"oemcatalog/ingest/internal/domain"
	"oemcatalog/ingest/internal/repository"

	log "github.com/sirupsen/logrus"
)

type Upserter struct {
	repo repository.CatalogRepository
}

func NewUpserter(repo repository.CatalogRepository) *Upserter {
	return &Upserter{repo: repo}
}

// Merge writes each record in its own transaction, creating missing
// ancestors in dependency order. Malformed records and failed transactions
// are counted and skipped. The returned error is non-nil only when nothing
// was merged and at least one record failed in the store.
func (u *Upserter) Merge(ctx context.Context, records []domain.CatalogRecord) (domain.MergeCounts, error) {
	counts := domain.NewMergeCounts()

	var (
		storeFailures int
		lastErr       error
	)

	for _, rec := range records {
		counts.Records++

		entry := log.WithFields(log.Fields{
			"url":  rec.SourceURL,
			"part": rec.PartNumber,
		})

		n, err := normalize(rec)
		if err != nil {
			counts.Failed++
			entry.Warnf("⚠️ Skipping record: %v", err)
			continue
		}

		results, err := u.mergeRecord(ctx, n)
		if err != nil {
			counts.Failed++
			storeFailures++
			lastErr = err
			entry.Errorf("❌ Failed to merge record: %v", err)
			continue
		}

		for _, level := range domain.CatalogLevels {
			counts.Record(level, results[level])
		}
		counts.Merged++
	}

	if counts.Merged == 0 && storeFailures > 0 {
		return counts, fmt.Errorf("failed to merge %d records: %w", storeFailures, lastErr)
	}
	return counts, nil
}

// mergeRecord returns per-level results only when the transaction commits.
func (u *Upserter) mergeRecord(ctx context.Context, n normalizedRecord) (map[domain.CatalogLevel]domain.UpsertResult, error) {
	results := make(map[domain.CatalogLevel]domain.UpsertResult, len(domain.CatalogLevels))

	err := u.repo.InTx(ctx, func(tx repository.CatalogTx) error {
		mk := n.make
		res, err := tx.UpsertMake(ctx, &mk)
		if err != nil {
			return err
		}
		results[domain.CatalogLevelMake] = res

		model := n.model
		model.MakeID = mk.ID
		if res, err = tx.UpsertModel(ctx, &model); err != nil {
			return err
		}
		results[domain.CatalogLevelModel] = res

		year := domain.ModelYear{ModelID: model.ID, Year: n.year}
		if res, err = tx.UpsertModelYear(ctx, &year); err != nil {
			return err
		}
		results[domain.CatalogLevelModelYear] = res

		assembly := n.assembly
		assembly.ModelYearID = year.ID
		if res, err = tx.UpsertAssembly(ctx, &assembly); err != nil {
			return err
		}
		results[domain.CatalogLevelAssembly] = res

		part := n.part
		if res, err = tx.UpsertPart(ctx, &part); err != nil {
			return err
		}
		results[domain.CatalogLevelPart] = res

		link := domain.AssemblyPart{
			AssemblyID: assembly.ID,
			PartID:     part.ID,
			Quantity:   n.quantity,
			Position:   n.position,
		}
		if res, err = tx.UpsertAssemblyPart(ctx, &link); err != nil {
			return err
		}
		results[domain.CatalogLevelAssemblyPart] = res

		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
