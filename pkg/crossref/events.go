package crossref

import (
	"time"

	"github.com/signalnest/magpie/pkg/common"
)

// Funding event source types.
const (
	SourceNews  = "news"
	SourceFormD = "form_d"
)

// FundingEvent is one side of a cross-reference: a funding round as
// reported by a news article or as disclosed in a Form D filing.
// RelationshipID and CompanyID point back at the stored rows so a match
// can be written back as a confidence adjustment.
type FundingEvent struct {
	CompanyName    string
	CompanyID      int64
	RelationshipID int64
	Amount         *float64
	Date           time.Time
	RoundType      string
	SourceType     string
	SourceURL      string
	Confidence     float64
}

// EventFromRelationship builds a news-side funding event from a stored
// relationship. FUNDED_BY and RAISED_FUNDING both name the company on
// the subject side; anything else returns nil. The fallback date is
// used when the edge carries no event date.
func EventFromRelationship(rel common.Relationship, fallback time.Time) *FundingEvent {
	ev := eventFrom(rel, fallback)
	if ev == nil {
		return nil
	}
	ev.SourceType = SourceNews
	ev.Confidence = rel.Confidence
	if ev.Confidence == 0 {
		ev.Confidence = 0.8
	}
	return ev
}

// EventFromFiling builds the filing side from a relationship ingested
// off a Form D. Filings are authoritative, so the confidence is fixed
// at 0.95 regardless of what the edge carries.
func EventFromFiling(rel common.Relationship, fallback time.Time) *FundingEvent {
	ev := eventFrom(rel, fallback)
	if ev == nil {
		return nil
	}
	ev.SourceType = SourceFormD
	ev.Confidence = 0.95
	return ev
}

func eventFrom(rel common.Relationship, fallback time.Time) *FundingEvent {
	switch rel.Predicate {
	case common.PredicateFundedBy, common.PredicateRaisedFunding:
	default:
		return nil
	}
	company := rel.Subject
	if company == nil {
		return nil
	}

	ev := &FundingEvent{
		CompanyName:    company.Name,
		CompanyID:      company.ID,
		RelationshipID: rel.ID,
		Date:           fallback,
		SourceURL:      rel.SourceURL,
	}
	if rel.EventDate != nil {
		ev.Date = *rel.EventDate
	}
	if v, ok := rel.Metadata["amount"].(float64); ok {
		ev.Amount = &v
	}
	if v, ok := rel.Metadata["round_type"].(string); ok {
		ev.RoundType = v
	}
	return ev
}
