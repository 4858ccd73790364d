package queue

import (
	"context"
	"fmt"

	"github.com/signalnest/magpie/pkg/logger"
	"github.com/signalnest/magpie/pkg/store"
)

// EnrichmentMsg is the enrich queue payload.
type EnrichmentMsg struct {
	EntityID int64          `json:"entity_id"`
	Source   string         `json:"source"`
	Data     map[string]any `json:"data"`
}

// ProcessEnrichMessage stores one enrichment blob from the enrich queue.
func ProcessEnrichMessage(ctx context.Context, st store.GraphStore, msg string) error {
	var data EnrichmentMsg
	if err := unmarshalFlexible(msg, &data); err != nil {
		return fmt.Errorf("failed to decode enrichment message: %w", err)
	}
	if data.EntityID == 0 {
		return fmt.Errorf("enrichment message missing entity_id")
	}
	if data.Source == "" {
		return fmt.Errorf("enrichment message missing source")
	}

	if err := st.UpsertEnrichment(ctx, data.EntityID, data.Source, data.Data); err != nil {
		return err
	}

	logger.Info("[Queue] Enrichment stored", "entity_id", data.EntityID, "source", data.Source)
	return nil
}
