package application

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/referral-tree/config"
	"github.com/oksasatya/referral-tree/internal/application/policy"
	"github.com/oksasatya/referral-tree/internal/application/tree"
	"github.com/oksasatya/referral-tree/internal/domain/entity"
	"github.com/oksasatya/referral-tree/internal/infrastructure/memory"
	"github.com/oksasatya/referral-tree/internal/infrastructure/search"
	"github.com/oksasatya/referral-tree/pkg/cipher"
)

// Function-field fakes for the optional collaborators.

type fakePublisher struct {
	PublishFunc func(ctx context.Context, body any) error
	sent        []any
}

func (f *fakePublisher) PublishJSON(ctx context.Context, body any) error {
	f.sent = append(f.sent, body)
	if f.PublishFunc != nil {
		return f.PublishFunc(ctx, body)
	}
	return nil
}

type fakeIndex struct {
	indexed  []string
	removed  []string
	SearchFn func(ctx context.Context, q string, size int) ([]search.MemberDoc, error)
}

func (f *fakeIndex) Index(_ context.Context, m *entity.Member) error {
	f.indexed = append(f.indexed, m.ID)
	return nil
}

func (f *fakeIndex) Remove(_ context.Context, id string) error {
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, q string, size int) ([]search.MemberDoc, error) {
	if f.SearchFn != nil {
		return f.SearchFn(ctx, q, size)
	}
	return nil, nil
}

type fakeUploader struct {
	object      string
	contentType string
	body        []byte
}

func (f *fakeUploader) Upload(_ context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.object, f.contentType, f.body = objectPath, contentType, b
	return "https://storage.example.com/" + objectPath, nil
}

type fixture struct {
	repo   *memory.MemberRepository
	svc    *MemberService
	engine *tree.Engine
	events *fakePublisher
	index  *fakeIndex
	upload *fakeUploader
	root   *entity.Member
}

func nullLogger() *logrus.Logger {
	l, _ := test.NewNullLogger()
	return l
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	c, err := cipher.New("application-test-secret")
	require.NoError(t, err)
	repo := memory.NewMemberRepository()
	logger := nullLogger()
	engine := tree.NewEngine(repo, c, time.Second, logger)
	traverser := tree.NewTraverser(repo, c, time.Second, 0, logger)
	cfg := &config.Config{AppName: "referral-tree", MailSendEnabled: true, GCSExportPrefix: "exports"}

	f := &fixture{repo: repo, engine: engine, events: &fakePublisher{}, index: &fakeIndex{}, upload: &fakeUploader{}}
	f.svc = NewMemberService(engine, traverser, policy.Default(), cfg, logger)
	f.svc.Events, f.svc.Index, f.svc.Uploader = f.events, f.index, f.upload

	f.root, err = engine.CreateRoot(context.Background(), &entity.Member{Name: "Root", Email: "root@example.com", IsAdmin: true})
	require.NoError(t, err)
	return f
}

// stored returns the repository copy, which is what middleware hands to services as the actor.
func (f *fixture) stored(t *testing.T, id string) *entity.Member {
	t.Helper()
	m, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return m
}

func (f *fixture) add(t *testing.T, actor *entity.Member, side, email string) *entity.Member {
	t.Helper()
	m, err := f.svc.AddMember(context.Background(), actor, AddMemberInput{
		Side:     side,
		Password: "password123",
		Fields: entity.Member{
			Name:      email,
			Email:     email,
			Sensitive: entity.Sensitive{AadhaarNo: "aadhaar-" + email},
		},
	})
	require.NoError(t, err)
	return m
}
