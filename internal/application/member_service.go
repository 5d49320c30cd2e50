package application

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/referral-tree/config"
	"github.com/oksasatya/referral-tree/internal/application/policy"
	"github.com/oksasatya/referral-tree/internal/application/tree"
	"github.com/oksasatya/referral-tree/internal/domain/entity"
	repo "github.com/oksasatya/referral-tree/internal/domain/repository"
	"github.com/oksasatya/referral-tree/internal/infrastructure/search"
	"github.com/oksasatya/referral-tree/pkg/apperror"
	"github.com/oksasatya/referral-tree/pkg/helpers"
	"github.com/oksasatya/referral-tree/pkg/mailer"
	mailtpl "github.com/oksasatya/referral-tree/pkg/mailer/templates"
)

// EventPublisher queues email jobs; *helpers.RabbitPublisher satisfies it.
type EventPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// MemberIndexer mirrors non-sensitive member fields into a search index.
type MemberIndexer interface {
	Index(ctx context.Context, m *entity.Member) error
	Remove(ctx context.Context, id string) error
	Search(ctx context.Context, q string, size int) ([]search.MemberDoc, error)
}

// ObjectUploader stores export snapshots; *helpers.GCSUploader satisfies it.
type ObjectUploader interface {
	Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error)
}

// MemberService is the request-facing facade over the tree engines. Every
// operation takes the authenticated actor and checks the policy table first.
// Search, events and exports are optional collaborators; nil disables them.
type MemberService struct {
	Engine    *tree.Engine
	Traverser *tree.Traverser
	Policy    *policy.Policy
	Cfg       *config.Config
	Redis     *redis.Client
	Index     MemberIndexer
	Events    EventPublisher
	Uploader  ObjectUploader
	Logger    *logrus.Logger
}

func NewMemberService(engine *tree.Engine, traverser *tree.Traverser, pol *policy.Policy, cfg *config.Config, logger *logrus.Logger) *MemberService {
	if pol == nil {
		pol = policy.Default()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &MemberService{Engine: engine, Traverser: traverser, Policy: pol, Cfg: cfg, Logger: logger}
}

// AddMemberInput carries the new member's attributes. ParentID defaults to
// the actor; Sensitive values in Fields are plaintext.
type AddMemberInput struct {
	ParentID string
	Side     string
	Password string
	IsAdmin  bool
	Fields   entity.Member
}

// AddMember inserts a child of the actor (or of ParentID) in the requested slot.
func (s *MemberService) AddMember(ctx context.Context, actor *entity.Member, in AddMemberInput) (*entity.Member, error) {
	if actor == nil {
		return nil, apperror.Unauthorized("authentication required")
	}
	parentID := strings.TrimSpace(in.ParentID)
	if parentID == "" {
		parentID = actor.ID
	}
	parent, err := s.Traverser.Locate(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.Authorize(policy.OpInsert, actor, parent); err != nil {
		return nil, err
	}
	if in.IsAdmin {
		if err := s.Policy.Authorize(policy.OpGrant, actor, parent); err != nil {
			return nil, err
		}
	}
	if in.Password == "" {
		return nil, apperror.WithCode(apperror.KindValidation, "password_required", "password is required")
	}
	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, apperror.Internal("hash password", err)
	}

	fields := in.Fields.Clone()
	fields.PasswordHash = hash
	fields.IsAdmin = in.IsAdmin
	fields.AddedBy = entity.Ref(actor.ID)

	created, err := s.Engine.Insert(ctx, parent.ID, in.Side, fields)
	if err != nil {
		return nil, err
	}
	created.PasswordHash = ""

	s.index(ctx, created)
	s.notify(ctx, parent.Email, mailtpl.NewMemberAddedData(s.Cfg, parent.Name, parent.Email,
		mailtpl.WithMember(created.Name, created.Email, string(created.Side)),
		mailtpl.WithActor(actor.Name),
		mailtpl.WithTime(time.Now())), mailtpl.MemberAdded)
	return created, nil
}

// MyChildren returns the actor's decrypted direct children, left first.
func (s *MemberService) MyChildren(ctx context.Context, actor *entity.Member) ([]*entity.Member, error) {
	if actor == nil {
		return nil, apperror.Unauthorized("authentication required")
	}
	return s.Traverser.BuildChildrenView(ctx, actor.ID)
}

// MyTree returns the subtree rooted at the actor.
func (s *MemberService) MyTree(ctx context.Context, actor *entity.Member) (*entity.TreeNode, error) {
	if actor == nil {
		return nil, apperror.Unauthorized("authentication required")
	}
	return s.Traverser.BuildTree(ctx, actor.ID)
}

// SubtreeOf returns the subtree rooted at id when the actor may see it.
func (s *MemberService) SubtreeOf(ctx context.Context, actor *entity.Member, id string) (*entity.TreeNode, error) {
	if _, err := s.authorized(ctx, policy.OpViewTree, actor, id); err != nil {
		return nil, err
	}
	return s.Traverser.BuildTree(ctx, id)
}

// GetMember returns the decrypted view of one member.
func (s *MemberService) GetMember(ctx context.Context, actor *entity.Member, id string) (*entity.Member, error) {
	target, err := s.authorized(ctx, policy.OpView, actor, id)
	if err != nil {
		return nil, err
	}
	return s.Traverser.Decrypt(target)
}

// Profile is the actor's own decrypted view, reloaded from storage.
func (s *MemberService) Profile(ctx context.Context, actor *entity.Member) (*entity.Member, error) {
	if actor == nil {
		return nil, apperror.Unauthorized("authentication required")
	}
	return s.Traverser.MemberView(ctx, actor.ID)
}

// UpdateMemberInput lists the attributes to change; nil means unchanged.
// Sensitive values are plaintext.
type UpdateMemberInput struct {
	Patch    repo.MemberPatch
	Password *string
}

// UpdateMember changes non-structural attributes of id.
func (s *MemberService) UpdateMember(ctx context.Context, actor *entity.Member, id string, in UpdateMemberInput) (*entity.Member, error) {
	if _, err := s.authorized(ctx, policy.OpUpdate, actor, id); err != nil {
		return nil, err
	}
	patch := in.Patch
	if patch.IsAdmin != nil {
		if err := s.Policy.Authorize(policy.OpGrant, actor, actor); err != nil {
			return nil, err
		}
	}
	if in.Password != nil {
		if len(*in.Password) < 8 {
			return nil, apperror.WithCode(apperror.KindValidation, "password_too_short", "password must be at least 8 characters")
		}
		hash, err := helpers.HashPassword(*in.Password)
		if err != nil {
			return nil, apperror.Internal("hash password", err)
		}
		patch.PasswordHash = &hash
	}
	updated, err := s.Engine.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	view, err := s.Traverser.Decrypt(updated)
	if err != nil {
		return nil, err
	}
	s.index(ctx, updated)
	return view, nil
}

// DeleteMember removes id from the tree. Its direct children become roots.
func (s *MemberService) DeleteMember(ctx context.Context, actor *entity.Member, id string) error {
	target, err := s.authorized(ctx, policy.OpDelete, actor, id)
	if err != nil {
		return err
	}
	var parent *entity.Member
	if target.ParentID != nil {
		parent, _ = s.Traverser.Locate(ctx, *target.ParentID)
	}
	orphans := 0
	if target.LeftChildID != nil {
		orphans++
	}
	if target.RightChildID != nil {
		orphans++
	}

	if err := s.Engine.Delete(ctx, target.ID); err != nil {
		return err
	}

	RevokeSession(ctx, s.Redis, s.Logger, target.ID)
	if s.Index != nil {
		if err := s.Index.Remove(ctx, target.ID); err != nil {
			s.Logger.WithError(err).WithField("member_id", target.ID).Warn("search index remove failed")
		}
	}
	if parent != nil {
		s.notify(ctx, parent.Email, mailtpl.NewMemberRemovedData(s.Cfg, parent.Name, parent.Email,
			mailtpl.WithMember(target.Name, target.Email, string(target.Side)),
			mailtpl.WithActor(actor.Name),
			mailtpl.WithOrphans(orphans),
			mailtpl.WithTime(time.Now())), mailtpl.MemberRemoved)
	}
	return nil
}

// Attach re-links a parentless member under parentID.
func (s *MemberService) Attach(ctx context.Context, actor *entity.Member, id, parentID, side string) (*entity.Member, error) {
	if _, err := s.authorized(ctx, policy.OpAttach, actor, id); err != nil {
		return nil, err
	}
	attached, err := s.Engine.Attach(ctx, id, parentID, side, s.Traverser.MaxDepth())
	if err != nil {
		return nil, err
	}
	view, err := s.Traverser.Decrypt(attached)
	if err != nil {
		return nil, err
	}
	s.index(ctx, attached)
	return view, nil
}

// Search queries the member index. Without an index it returns no hits.
func (s *MemberService) Search(ctx context.Context, actor *entity.Member, q string, size int) ([]search.MemberDoc, error) {
	if actor == nil {
		return nil, apperror.Unauthorized("authentication required")
	}
	if strings.TrimSpace(q) == "" {
		return nil, apperror.WithCode(apperror.KindValidation, "query_required", "q is required")
	}
	if s.Index == nil {
		return []search.MemberDoc{}, nil
	}
	docs, err := s.Index.Search(ctx, q, size)
	if err != nil {
		return nil, apperror.Internal("search members", err)
	}
	return docs, nil
}

// ExportResult locates an uploaded subtree snapshot.
type ExportResult struct {
	URL     string `json:"url"`
	Object  string `json:"object"`
	Members int    `json:"members"`
}

type exportSnapshot struct {
	RootID     string           `json:"root_id"`
	ExportedBy string           `json:"exported_by"`
	ExportedAt time.Time        `json:"exported_at"`
	Members    int              `json:"members"`
	Tree       *entity.TreeNode `json:"tree"`
}

// ExportTree uploads the subtree rooted at id as a JSON snapshot.
func (s *MemberService) ExportTree(ctx context.Context, actor *entity.Member, id string) (*ExportResult, error) {
	if _, err := s.authorized(ctx, policy.OpExport, actor, id); err != nil {
		return nil, err
	}
	if s.Uploader == nil {
		return nil, apperror.WithCode(apperror.KindInternal, "export_unavailable", "export storage is not configured")
	}
	node, err := s.Traverser.BuildTree(ctx, id)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	snap := exportSnapshot{RootID: id, ExportedBy: actor.ID, ExportedAt: now, Members: node.Count(), Tree: node}
	b, err := json.Marshal(snap)
	if err != nil {
		return nil, apperror.Internal("encode export", err)
	}
	prefix := "tree-exports"
	if s.Cfg != nil && s.Cfg.GCSExportPrefix != "" {
		prefix = s.Cfg.GCSExportPrefix
	}
	object := path.Join(prefix, id, now.Format("20060102T150405Z")+".json")
	url, err := s.Uploader.Upload(ctx, object, "application/json", bytes.NewReader(b))
	if err != nil {
		return nil, apperror.Internal("upload export", err)
	}
	s.Logger.WithFields(logrus.Fields{"root_id": id, "object": object, "members": snap.Members}).Info("subtree exported")
	return &ExportResult{URL: url, Object: object, Members: snap.Members}, nil
}

// authorized loads the stored target and checks op against the actor.
func (s *MemberService) authorized(ctx context.Context, op policy.Operation, actor *entity.Member, id string) (*entity.Member, error) {
	if actor == nil {
		return nil, apperror.Unauthorized("authentication required")
	}
	target, err := s.Traverser.Locate(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Policy.Authorize(op, actor, target); err != nil {
		return nil, err
	}
	return target, nil
}

func (s *MemberService) index(ctx context.Context, m *entity.Member) {
	if s.Index == nil {
		return
	}
	if err := s.Index.Index(ctx, m); err != nil {
		s.Logger.WithError(err).WithField("member_id", m.ID).Warn("search index failed")
	}
}

func (s *MemberService) notify(ctx context.Context, to string, data map[string]any, template string) {
	if s.Events == nil || s.Cfg == nil || !s.Cfg.MailSendEnabled || to == "" {
		return
	}
	job := mailer.EmailJob{To: to, Template: template, Data: data}
	if err := s.Events.PublishJSON(ctx, job); err != nil {
		s.Logger.WithError(err).WithFields(logrus.Fields{"template": template, "to": to}).Warn("enqueue email failed")
	}
}
