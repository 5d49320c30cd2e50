package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/referral-tree/internal/domain/entity"
	"github.com/oksasatya/referral-tree/internal/domain/repository"
)

const (
	pgUniqueViolation      = "23505"
	pgInvalidTextRepresent = "22P02"
)

const memberColumns = `id, parent_id, left_child_id, right_child_id, side, added_by,
	name, father_name, dob, gender, marital_status, phone, email,
	nominee_name, nominee_relation, nominee_phone, address, pin_code,
	bank_name, branch_address, account_type, sponsor_name, sponsor_id,
	account_no, ifsc_code, micr_no, pan_no, aadhaar_no,
	password_hash, is_admin, created_at, updated_at`

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type MemberRepository struct {
	pool *pgxpool.Pool
}

func NewMemberRepository(pool *pgxpool.Pool) *MemberRepository {
	return &MemberRepository{pool: pool}
}

func scanMember(row pgx.Row) (*entity.Member, error) {
	m := &entity.Member{}
	var side string
	err := row.Scan(&m.ID, &m.ParentID, &m.LeftChildID, &m.RightChildID, &side, &m.AddedBy,
		&m.Name, &m.FatherName, &m.DOB, &m.Gender, &m.MaritalStatus, &m.Phone, &m.Email,
		&m.NomineeName, &m.NomineeRelation, &m.NomineePhone, &m.Address, &m.PinCode,
		&m.BankName, &m.BranchAddress, &m.AccountType, &m.SponsorName, &m.SponsorID,
		&m.AccountNo, &m.IFSCCode, &m.MICRNo, &m.PANNo, &m.AadhaarNo,
		&m.PasswordHash, &m.IsAdmin, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	m.Side = entity.Side(side)
	return m, nil
}

// mapErr translates driver errors into repository sentinels.
func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return repository.ErrDuplicateEmail
		case pgInvalidTextRepresent:
			// malformed uuid can never match a row
			return repository.ErrNotFound
		}
	}
	return err
}

func (r *MemberRepository) FindByID(ctx context.Context, id string) (*entity.Member, error) {
	return findBy(ctx, r.pool, "id = $1", id)
}

func (r *MemberRepository) FindByEmail(ctx context.Context, email string) (*entity.Member, error) {
	return findBy(ctx, r.pool, "lower(email) = lower($1)", email)
}

func findBy(ctx context.Context, q querier, where string, arg any) (*entity.Member, error) {
	return scanMember(q.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE `+where, arg))
}

func (r *MemberRepository) Create(ctx context.Context, m *entity.Member) error {
	return insertMember(ctx, r.pool, m)
}

func insertMember(ctx context.Context, q querier, m *entity.Member) error {
	if m.Side == "" {
		m.Side = entity.SideNone
	}
	row := q.QueryRow(ctx, `
		INSERT INTO members (parent_id, side, added_by,
			name, father_name, dob, gender, marital_status, phone, email,
			nominee_name, nominee_relation, nominee_phone, address, pin_code,
			bank_name, branch_address, account_type, sponsor_name, sponsor_id,
			account_no, ifsc_code, micr_no, pan_no, aadhaar_no,
			password_hash, is_admin)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)
		RETURNING id, created_at, updated_at
	`, m.ParentID, string(m.Side), m.AddedBy,
		m.Name, m.FatherName, m.DOB, m.Gender, m.MaritalStatus, m.Phone, m.Email,
		m.NomineeName, m.NomineeRelation, m.NomineePhone, m.Address, m.PinCode,
		m.BankName, m.BranchAddress, m.AccountType, m.SponsorName, m.SponsorID,
		m.AccountNo, m.IFSCCode, m.MICRNo, m.PANNo, m.AadhaarNo,
		m.PasswordHash, m.IsAdmin)
	if err := row.Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return mapErr(err)
	}
	return nil
}

// updateBuilder accumulates SET assignments and WHERE guards with positional args.
type updateBuilder struct {
	sets   []string
	guards []string
	args   []any
}

func (b *updateBuilder) arg(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *updateBuilder) setString(col string, v *string) {
	if v != nil {
		b.sets = append(b.sets, col+" = "+b.arg(*v))
	}
}

func (b *updateBuilder) setRef(col string, c *repository.RefChange) {
	if c == nil {
		return
	}
	b.sets = append(b.sets, col+" = "+b.arg(c.Set)+"::uuid")
	b.guards = append(b.guards, col+" IS NOT DISTINCT FROM "+b.arg(c.Expect)+"::uuid")
}

func buildUpdate(id string, p repository.MemberPatch) (string, []any, bool) {
	b := &updateBuilder{}
	idArg := b.arg(id)
	for _, f := range []struct {
		col string
		v   *string
	}{
		{"name", p.Name}, {"father_name", p.FatherName}, {"dob", p.DOB}, {"gender", p.Gender},
		{"marital_status", p.MaritalStatus}, {"phone", p.Phone}, {"email", p.Email},
		{"nominee_name", p.NomineeName}, {"nominee_relation", p.NomineeRelation}, {"nominee_phone", p.NomineePhone},
		{"address", p.Address}, {"pin_code", p.PinCode}, {"bank_name", p.BankName},
		{"branch_address", p.BranchAddress}, {"account_type", p.AccountType},
		{"sponsor_name", p.SponsorName}, {"sponsor_id", p.SponsorID},
		{"account_no", p.AccountNo}, {"ifsc_code", p.IFSCCode}, {"micr_no", p.MICRNo},
		{"pan_no", p.PANNo}, {"aadhaar_no", p.AadhaarNo}, {"password_hash", p.PasswordHash},
	} {
		b.setString(f.col, f.v)
	}
	if p.IsAdmin != nil {
		b.sets = append(b.sets, "is_admin = "+b.arg(*p.IsAdmin))
	}
	if p.Side != nil {
		b.sets = append(b.sets, "side = "+b.arg(string(*p.Side)))
	}
	b.setRef("parent_id", p.Parent)
	b.setRef("left_child_id", p.LeftChild)
	b.setRef("right_child_id", p.RightChild)
	if len(b.sets) == 0 {
		return "", nil, false
	}
	b.sets = append(b.sets, "updated_at = "+b.arg(time.Now().UTC()))

	where := append([]string{"id = " + idArg}, b.guards...)
	sql := `UPDATE members SET ` + strings.Join(b.sets, ", ") +
		` WHERE ` + strings.Join(where, " AND ") +
		` RETURNING ` + memberColumns
	return sql, b.args, true
}

func (r *MemberRepository) Update(ctx context.Context, id string, p repository.MemberPatch) (*entity.Member, error) {
	return updateMember(ctx, r.pool, id, p)
}

func updateMember(ctx context.Context, q querier, id string, p repository.MemberPatch) (*entity.Member, error) {
	sql, args, ok := buildUpdate(id, p)
	if !ok {
		return findBy(ctx, q, "id = $1", id)
	}
	m, err := scanMember(q.QueryRow(ctx, sql, args...))
	if !errors.Is(err, repository.ErrNotFound) {
		return m, err
	}
	// No row returned: either the id is unknown or a guard did not match.
	if _, findErr := findBy(ctx, q, "id = $1", id); findErr != nil {
		return nil, findErr
	}
	return nil, repository.ErrConflict
}

func (r *MemberRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM members WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CreateLinked inserts child and sets the parent's slot in one transaction.
// The parent row is locked so concurrent inserts into the same slot serialize.
func (r *MemberRepository) CreateLinked(ctx context.Context, child *entity.Member, parentID string, side entity.Side) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var left, right *string
	if err = tx.QueryRow(ctx, `SELECT left_child_id, right_child_id FROM members WHERE id = $1 FOR UPDATE`, parentID).Scan(&left, &right); err != nil {
		return mapErr(err)
	}
	occupant := left
	col := "left_child_id"
	if side == entity.SideRight {
		occupant, col = right, "right_child_id"
	}
	if occupant != nil {
		return repository.ErrConflict
	}
	if err = insertMember(ctx, tx, child); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE members SET `+col+` = $1, updated_at = now() WHERE id = $2`, child.ID, parentID); err != nil {
		return mapErr(err)
	}
	return tx.Commit(ctx)
}

var (
	_ repository.MemberRepository = (*MemberRepository)(nil)
	_ repository.LinkedCreator    = (*MemberRepository)(nil)
)
