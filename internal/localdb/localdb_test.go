package localdb

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsync/internal/common"
	"github.com/dmitrijs2005/gophsync/internal/config"
	"github.com/dmitrijs2005/gophsync/internal/models"
	"github.com/dmitrijs2005/gophsync/internal/repositories/repository"
	"github.com/dmitrijs2005/gophsync/internal/session"
	"github.com/dmitrijs2005/gophsync/internal/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type project struct {
	models.EntityBase
	Title string `json:"Title"`
}

func newConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "local.db")
	return cfg
}

func TestInitDatabase_RegisterAndUse(t *testing.T) {
	ctx := context.Background()
	l, err := InitDatabase(ctx, newConfig(t), nil, prometheus.NewRegistry())
	require.NoError(t, err)
	defer l.Close()

	meta := repository.Meta{TableName: "projects", EntityTypeId: "project", EntityName: "Project", HasEntityState: true}
	projects, err := Register(ctx, l, meta, func() *project { return &project{} }, nil)
	require.NoError(t, err)

	sess := session.Static{User: session.User{ID: "u1"}}
	p := &project{Title: "sync"}
	require.NoError(t, projects.AddNew(ctx, sess, p))

	dirties, err := l.States.GetDirties(ctx, sess, meta, true)
	require.NoError(t, err)
	require.Len(t, dirties, 1)
	assert.Equal(t, p.Id, dirties[0].EntityId)

	found, err := l.Container.ByTypeID("project")
	require.NoError(t, err)
	assert.Same(t, projects, found)

	_, err = Register(ctx, l, meta, func() *project { return &project{} }, nil)
	require.ErrorIs(t, err, common.ErrDuplicateRepository)
}

func TestInitDatabase_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	cfg := newConfig(t)
	meta := repository.Meta{TableName: "projects", EntityTypeId: "project", EntityName: "Project"}

	l, err := InitDatabase(ctx, cfg, nil, nil)
	require.NoError(t, err)
	projects, err := Register(ctx, l, meta, func() *project { return &project{} }, nil)
	require.NoError(t, err)
	require.NoError(t, projects.Put(ctx, &project{EntityBase: models.EntityBase{Id: "p1"}, Title: "kept"}))
	require.NoError(t, l.Close())

	l, err = InitDatabase(ctx, cfg, nil, nil)
	require.NoError(t, err)
	defer l.Close()
	projects, err = Register(ctx, l, meta, func() *project { return &project{} }, nil)
	require.NoError(t, err)
	got, err := projects.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Title)
}

func TestSession(t *testing.T) {
	ctx := context.Background()
	cfg := newConfig(t)
	l, err := InitDatabase(ctx, cfg, nil, nil)
	require.NoError(t, err)
	defer l.Close()

	sess, err := l.Session()
	require.NoError(t, err)
	_, err = sess.RequiredCurrentUserID()
	require.ErrorIs(t, err, common.ErrNoSession)

	secret := []byte("s3cret")
	token, err := session.GenerateToken(session.User{ID: "u1", CompanyID: "c1"}, secret, time.Hour)
	require.NoError(t, err)
	cfg.AccessToken = token
	cfg.TokenSecret = string(secret)

	sess, err = l.Session()
	require.NoError(t, err)
	u, err := sess.RequiredCurrentUser()
	require.NoError(t, err)
	assert.Equal(t, "c1", u.CompanyID)
}

func TestSender_WithoutRemoteIsNop(t *testing.T) {
	l, err := InitDatabase(context.Background(), newConfig(t), nil, nil)
	require.NoError(t, err)
	defer l.Close()

	assert.Equal(t, transport.NopSender{}, l.Sender("Project"))
}

func TestSender_WithRemoteQueues(t *testing.T) {
	cfg := newConfig(t)
	cfg.RemoteEndpoint = "passthrough:///127.0.0.1:1"
	cfg.PushTimeout = 50 * time.Millisecond
	l, err := InitDatabase(context.Background(), cfg, nil, nil)
	require.NoError(t, err)

	_, isNop := l.Sender("Project").(transport.NopSender)
	assert.False(t, isNop)
	l.Sender("Project").TrySend(context.Background(), &project{EntityBase: models.EntityBase{Id: "p1"}})
	require.NoError(t, l.Close())
}

func TestRegisterTable(t *testing.T) {
	ctx := context.Background()
	l, err := InitDatabase(ctx, newConfig(t), nil, nil)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, RegisterTable(ctx, l, "notes"))
	require.Error(t, RegisterTable(ctx, l, "notes"))
	require.NoError(t, l.Container.ClearAll(ctx))
}
