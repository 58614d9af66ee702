// Package localdb opens the local store and wires the sync bookkeeping
// repositories, the push transport and the repository registry together.
// Applications register their entity types with Register.
package localdb

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophsync/internal/config"
	"github.com/dmitrijs2005/gophsync/internal/logging"
	"github.com/dmitrijs2005/gophsync/internal/metrics"
	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/dmitrijs2005/gophsync/internal/repositories/container"
	"github.com/dmitrijs2005/gophsync/internal/repositories/data"
	"github.com/dmitrijs2005/gophsync/internal/repositories/entity"
	"github.com/dmitrijs2005/gophsync/internal/repositories/entityissues"
	"github.com/dmitrijs2005/gophsync/internal/repositories/entitystates"
	"github.com/dmitrijs2005/gophsync/internal/repositories/entitytypestates"
	"github.com/dmitrijs2005/gophsync/internal/repositories/repository"
	"github.com/dmitrijs2005/gophsync/internal/session"
	"github.com/dmitrijs2005/gophsync/internal/store"
	"github.com/dmitrijs2005/gophsync/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
)

type Local struct {
	DB         *store.DB
	Container  *container.Container
	States     *entitystates.SQLRepository
	TypeStates *entitytypestates.SQLRepository
	Issues     *entityissues.SQLRepository
	Metrics    *metrics.Metrics
	Logger     logging.Logger

	cfg    *config.Config
	client *transport.GRPCClient
	queue  *transport.PushQueue
}

// InitDatabase opens the database named by cfg, migrates it and builds the
// repositories. Metrics are registered on reg when it is not nil. A push
// queue is started when cfg names a remote endpoint.
func InitDatabase(ctx context.Context, cfg *config.Config, logger logging.Logger, reg prometheus.Registerer) (*Local, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	db, err := store.Open(ctx, cfg.Driver, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	m := metrics.New(reg)
	issues := entityissues.NewSQLRepository(db)
	states := entitystates.NewSQLRepository(db, issues,
		entitystates.WithMetrics(m),
		entitystates.WithLogger(logger))
	typeStates := entitytypestates.NewSQLRepository(db)

	l := &Local{
		DB:         db,
		Container:  container.New(db, states, typeStates, issues),
		States:     states,
		TypeStates: typeStates,
		Issues:     issues,
		Metrics:    m,
		Logger:     logger,
		cfg:        cfg,
	}

	if cfg.RemoteEndpoint != "" {
		token := cfg.AccessToken
		l.client, err = transport.NewGRPCClient(cfg.RemoteEndpoint, func() string { return token })
		if err != nil {
			db.Close()
			return nil, err
		}
		l.queue = transport.NewPushQueue(l.client, cfg.PushTimeout, logger, m)
	}

	logger.Info(ctx, "local database ready", "driver", cfg.Driver, "remote", cfg.RemoteEndpoint != "")
	return l, nil
}

// Session returns the session of the configured access token, or the
// anonymous session when there is none.
func (l *Local) Session() (session.Session, error) {
	if l.cfg.AccessToken == "" {
		return session.Anonymous, nil
	}
	var secret []byte
	if l.cfg.TokenSecret != "" {
		secret = []byte(l.cfg.TokenSecret)
	}
	sess, err := session.NewTokenSession(l.cfg.AccessToken, secret)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Sender returns the push sender of an entity type.
func (l *Local) Sender(entityName string) transport.Sender {
	if l.queue == nil {
		return transport.NopSender{}
	}
	return l.queue.For(entityName)
}

// Options returns the data options shared by every registered repository.
func (l *Local) Options() []data.Option {
	return []data.Option{
		data.WithLogger(l.Logger),
		data.WithMetrics(l.Metrics),
	}
}

// Close drains pending pushes and closes the connections.
func (l *Local) Close() error {
	if l.queue != nil {
		l.queue.Close()
	}
	if l.client != nil {
		if err := l.client.Close(); err != nil {
			l.Logger.Warn(context.Background(), "failed to close grpc client", "error", err)
		}
	}
	return l.DB.Close()
}

// Register creates the document table of meta and registers a modifiable
// repository for it.
func Register[T models.Entity](ctx context.Context, l *Local, meta repository.Meta, newRecord func() T, schema *models.Schema) (*entity.ModifiableRepository[T], error) {
	if err := l.DB.EnsureDocumentTable(ctx, meta.TableName); err != nil {
		return nil, err
	}
	table, err := store.NewTable(l.DB, meta.TableName, newRecord)
	if err != nil {
		return nil, err
	}

	repo := entity.NewModifiable(table, meta, entity.Deps{
		States:     l.States,
		TypeStates: l.TypeStates,
		Sender:     l.Sender(meta.EntityName),
		Schema:     schema,
	}, l.Options()...)

	if err := l.Container.Register(repo); err != nil {
		return nil, err
	}
	return repo, nil
}

type record struct {
	models.EntityBase
}

// RegisterTable registers a plain data repository over an existing
// document table, for tools that manage tables without knowing their
// entity type.
func RegisterTable(ctx context.Context, l *Local, name string) error {
	if err := l.DB.EnsureDocumentTable(ctx, name); err != nil {
		return err
	}
	table, err := store.NewTable(l.DB, name, func() *record { return &record{} })
	if err != nil {
		return err
	}
	repo := data.New(table, repository.Meta{EntityTypeId: name, EntityName: name}, l.Options()...)
	if err := l.Container.Register(repo); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	return nil
}
