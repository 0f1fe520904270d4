package container

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jaevor/go-nanoid"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do"
	"github.com/serroba/doclinks/internal/audit"
	"github.com/serroba/doclinks/internal/blob"
	"github.com/serroba/doclinks/internal/link"
	"github.com/serroba/doclinks/internal/messaging"
	"github.com/serroba/doclinks/internal/reclaim"
	"github.com/serroba/doclinks/internal/store"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// BlobPackage provides the blob store selected by BlobBackend.
func BlobPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*blob.LocalStore, error) {
		opts := do.MustInvoke[*Options](i)
		logger := do.MustInvoke[*zap.Logger](i)

		baseURL := opts.BlobBaseURL
		if baseURL == "" {
			baseURL = fmt.Sprintf("http://localhost:%d/blobs", opts.Port)
		}

		return blob.NewLocalStore(opts.BlobDir, baseURL, opts.BlobSigningKey, logger.Named("blob"))
	})

	do.Provide(i, func(i *do.Injector) (*blob.GCSStore, error) {
		opts := do.MustInvoke[*Options](i)

		if opts.GCSBucket == "" {
			return nil, fmt.Errorf("gcs blob backend requires a bucket")
		}

		var clientOpts []option.ClientOption
		if opts.GCSCredentialsFile != "" {
			clientOpts = append(clientOpts, option.WithCredentialsFile(opts.GCSCredentialsFile))
		}

		gcs, err := blob.NewGCSStore(context.Background(), opts.GCSBucket, clientOpts...)
		if err != nil {
			return nil, err
		}

		// Without a signer the client signs through the IAM credentials API.
		if opts.GCSAccessID != "" {
			gcs.WithSigner(opts.GCSAccessID, nil)
		}

		return gcs, nil
	})

	do.Provide(i, func(i *do.Injector) (link.BlobStore, error) {
		opts := do.MustInvoke[*Options](i)

		switch opts.BlobBackend {
		case "local":
			return do.Invoke[*blob.LocalStore](i)
		case "gcs":
			return do.Invoke[*blob.GCSStore](i)
		default:
			return nil, fmt.Errorf("unknown blob backend %q", opts.BlobBackend)
		}
	})
}

// RepositoryPackage provides the link and document stores.
func RepositoryPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (link.Repository, error) {
		opts := do.MustInvoke[*Options](i)

		var repo link.Repository

		switch opts.LinkBackend {
		case "postgres":
			repo = store.NewPostgresStore(do.MustInvoke[*pgxpool.Pool](i))
		case "redis":
			// Records already live in Redis; a cache in front would only duplicate them.
			return store.NewRedisStore(do.MustInvoke[*redis.Client](i)), nil
		default:
			return nil, fmt.Errorf("unknown link backend %q", opts.LinkBackend)
		}

		if opts.CacheLinks {
			repo = store.NewRedisCacheRepository(repo, do.MustInvoke[*redis.Client](i), 0)
		}

		return repo, nil
	})

	do.Provide(i, func(i *do.Injector) (link.DocumentStore, error) {
		return store.NewPostgresDocumentStore(do.MustInvoke[*pgxpool.Pool](i)), nil
	})
}

// LinkPackage provides the link service.
func LinkPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*link.Service, error) {
		opts := do.MustInvoke[*Options](i)

		newID, err := nanoid.Standard(opts.LinkIDLength)
		if err != nil {
			return nil, fmt.Errorf("link id generator: %w", err)
		}

		return link.NewService(
			do.MustInvoke[link.DocumentStore](i),
			link.NewIssuer(do.MustInvoke[link.BlobStore](i)),
			do.MustInvoke[link.Repository](i),
			newID,
			link.ServiceConfig{
				PublicEndpoint: opts.PublicEndpoint,
				MaxTTL:         time.Duration(opts.MaxTTLHours) * time.Hour,
			},
			do.MustInvoke[*zap.Logger](i).Named("links"),
		), nil
	})
}

// ReclaimPackage provides the expiry reclaimer and its scheduler.
// Sweep reports are published when a PublisherGroup is registered.
func ReclaimPackage(i *do.Injector) {
	do.Provide(i, func(i *do.Injector) (*reclaim.Reclaimer, error) {
		opts := do.MustInvoke[*Options](i)

		cfg := reclaim.DefaultConfig()
		cfg.ChunkSize = opts.ReclaimChunkSize
		cfg.Delay = time.Duration(opts.ReclaimDelayMS) * time.Millisecond

		publish := messaging.Discard[audit.LinksReclaimedEvent]()
		if group, err := do.Invoke[*messaging.PublisherGroup](i); err == nil {
			publish = messaging.NewPublishFunc[audit.LinksReclaimedEvent](group.Publisher(), audit.TopicLinksReclaimed)
		}

		return reclaim.New(
			do.MustInvoke[link.Repository](i),
			cfg,
			do.MustInvoke[*zap.Logger](i).Named("reclaimer"),
			reclaim.WithPublisher(publish),
		), nil
	})

	do.Provide(i, func(i *do.Injector) (*reclaim.Scheduler, error) {
		opts := do.MustInvoke[*Options](i)

		schedule, err := reclaim.ParseSchedule(opts.ReclaimSchedule)
		if err != nil {
			return nil, err
		}

		return reclaim.NewScheduler(
			do.MustInvoke[*reclaim.Reclaimer](i),
			schedule,
			do.MustInvoke[*zap.Logger](i).Named("reclaimer").Named("scheduler"),
			reclaim.RunOnStart(opts.ReclaimOnStart),
		), nil
	})
}
