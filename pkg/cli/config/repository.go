package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/casesync/pkg/domain/interfaces"
	"github.com/secmon-lab/casesync/pkg/repository/firestore"
	"github.com/secmon-lab/casesync/pkg/repository/memory"
	"github.com/secmon-lab/casesync/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Repository holds CLI flags for the case store backend
type Repository struct {
	backend          string
	projectID        string
	databaseID       string
	collectionPrefix string
}

// Flags returns CLI flags for repository configuration
func (r *Repository) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "repository-backend",
			Usage:       "Repository backend type (firestore or memory)",
			Category:    "Repository",
			Value:       "firestore",
			Sources:     cli.EnvVars("CASESYNC_REPOSITORY_BACKEND"),
			Destination: &r.backend,
		},
		&cli.StringFlag{
			Name:        "firestore-project-id",
			Usage:       "Firestore Project ID (required when using firestore backend)",
			Category:    "Repository",
			Sources:     cli.EnvVars("CASESYNC_FIRESTORE_PROJECT_ID"),
			Destination: &r.projectID,
		},
		&cli.StringFlag{
			Name:        "firestore-database-id",
			Usage:       "Firestore Database ID",
			Category:    "Repository",
			Sources:     cli.EnvVars("CASESYNC_FIRESTORE_DATABASE_ID"),
			Destination: &r.databaseID,
		},
		&cli.StringFlag{
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix prepended to every Firestore collection name",
			Category:    "Repository",
			Sources:     cli.EnvVars("CASESYNC_FIRESTORE_COLLECTION_PREFIX"),
			Destination: &r.collectionPrefix,
		},
	}
}

func (r Repository) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", r.backend),
		slog.String("project_id", r.projectID),
		slog.String("database_id", r.databaseID),
		slog.String("collection_prefix", r.collectionPrefix),
	)
}

// Backend returns the configured backend type
func (r *Repository) Backend() string {
	return r.backend
}

// Configure initializes and returns a repository based on the configured backend.
// The caller is responsible for calling Close() on the returned repository.
func (r *Repository) Configure(ctx context.Context) (interfaces.Repository, error) {
	switch r.backend {
	case "firestore":
		if r.projectID == "" {
			return nil, goerr.Wrap(ErrInvalidConfig, "firestore-project-id is required when using firestore backend",
				goerr.V(FlagKey, "firestore-project-id"))
		}
		var opts []firestore.Option
		if r.collectionPrefix != "" {
			opts = append(opts, firestore.WithCollectionPrefix(r.collectionPrefix))
		}
		repo, err := firestore.New(ctx, r.projectID, r.databaseID, opts...)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to initialize firestore repository")
		}
		logging.Default().Info("Using Firestore repository", "repository", r)
		return repo, nil

	case "memory":
		logging.Default().Info("Using in-memory repository (development mode)")
		return memory.New(), nil

	default:
		return nil, goerr.Wrap(ErrInvalidConfig, "invalid repository backend", goerr.V("backend", r.backend))
	}
}
