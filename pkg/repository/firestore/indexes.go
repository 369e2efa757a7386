package firestore

import "github.com/m-mizutani/fireconf"

// IndexConfig returns the composite indexes the case and run queries need.
// Keep it in step with the Where/OrderBy clauses of List.
func IndexConfig(prefix string) *fireconf.Config {
	byCreated := func(filters ...string) fireconf.Index {
		var fields []fireconf.IndexField
		for _, f := range filters {
			fields = append(fields, fireconf.IndexField{Path: f, Order: fireconf.OrderAscending})
		}
		fields = append(fields, fireconf.IndexField{Path: "created_at", Order: fireconf.OrderDescending})
		return fireconf.Index{Fields: fields}
	}

	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: collectionName(prefix, casesCollection),
				Indexes: []fireconf.Index{
					byCreated("status"),
					byCreated("source"),
					byCreated("status", "source"),
				},
			},
			{
				Name: collectionName(prefix, syncRunsCollection),
				Indexes: []fireconf.Index{
					// List by source: source ASC, started_at DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "source", Order: fireconf.OrderAscending},
							{Path: "started_at", Order: fireconf.OrderDescending},
						},
					},
				},
			},
		},
	}
}
