package loader

import "context"

// Fixed vocabulary of the graph projection.
const (
	LabelDataset     = "dataset"
	LabelObservation = "observation"
	LabelValue       = "value"
	RelMember        = "member"
)

// Link connects an observation to the node named Target.
type Link struct {
	Observation string
	Target      string
}

// Store is the graph-store capability the loader writes through. Every method is an idempotent
// upsert: re-issuing it with the same arguments must not duplicate nodes or relationships.
type Store interface {
	// MergeDataset upserts (:dataset {name}).
	MergeDataset(ctx context.Context, name string) error
	// MergeNodes upserts one (:label {name}) per name.
	MergeNodes(ctx context.Context, label string, names []string) error
	// MergeObservations upserts (:observation {name}) per name, each linked -[:member]-> the dataset.
	MergeObservations(ctx context.Context, dataset string, names []string) error
	// MergeLinks upserts (obs)-[:relType]->(:relType {name: target}) for existing target nodes.
	MergeLinks(ctx context.Context, relType string, links []Link) error
	// MergeMeasures upserts (obs)-[:relType]->(:value {name: target}).
	MergeMeasures(ctx context.Context, relType string, links []Link) error
}
