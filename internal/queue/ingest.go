package queue

import (
	"context"
	"fmt"

	"github.com/signalnest/magpie/pkg/common"
	"github.com/signalnest/magpie/pkg/graph"
	"github.com/signalnest/magpie/pkg/logger"
)

// ProcessIngestMessage applies one extraction result from the ingest
// queue to the graph.
func ProcessIngestMessage(ctx context.Context, svc *graph.Service, msg string) error {
	var result common.ExtractionResult
	if err := unmarshalFlexible(msg, &result); err != nil {
		return fmt.Errorf("failed to decode extraction result: %w", err)
	}

	counts, err := svc.AddExtractionResult(ctx, result)
	if err != nil {
		return err
	}

	logger.Info("[Queue] Extraction result ingested",
		"source_url", result.SourceURL,
		"entities", counts.EntitiesAdded,
		"relationships", counts.RelationshipsAdded,
		"duplicates", counts.DuplicatesSkipped,
	)
	return nil
}
