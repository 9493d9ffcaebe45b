package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nccaalumbini/cadet-api/internal/model"
	"github.com/nccaalumbini/cadet-api/internal/policy"
)

var (
	ErrEmailTaken       = errors.New("email already registered")
	ErrUsernameTaken    = errors.New("username already taken")
	ErrCadetNumberTaken = errors.New("cadet number already registered")
	ErrSchoolNameTaken  = errors.New("school name already exists")
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `id, cadet_number, username, email, contact_number, address, district, role, school_id, password_hash, created_at`

func scanUser(row pgx.Row) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.CadetNumber,
		&user.Username,
		&user.Email,
		&user.ContactNumber,
		&user.Address,
		&user.District,
		&user.Role,
		&user.SchoolID,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	return user, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, userID int64) (model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (s *Store) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (cadet_number, username, email, contact_number, address, district, role, school_id, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, user.CadetNumber, user.Username, user.Email, user.ContactNumber, user.Address, user.District, user.Role, user.SchoolID, user.PasswordHash)
	if err := row.Scan(&user.ID, &user.CreatedAt); err != nil {
		return model.User{}, mapDuplicate(err)
	}
	return user, nil
}

const schoolColumns = `id, name, district, municipality, ward_number, area_name, official_email, phone_number, website, principal_name, principal_contact, teacher_name, teacher_contact, notes, is_active, created_at, updated_at`

func scanSchool(row pgx.Row) (model.School, error) {
	var school model.School
	err := row.Scan(
		&school.ID,
		&school.Name,
		&school.District,
		&school.Municipality,
		&school.WardNumber,
		&school.AreaName,
		&school.OfficialEmail,
		&school.PhoneNumber,
		&school.Website,
		&school.PrincipalName,
		&school.PrincipalContact,
		&school.TeacherName,
		&school.TeacherContact,
		&school.Notes,
		&school.IsActive,
		&school.CreatedAt,
		&school.UpdatedAt,
	)
	return school, err
}

// CreateSchool inserts the school and its nested sessions in one transaction;
// a failed session insert rolls back the whole aggregate.
func (s *Store) CreateSchool(ctx context.Context, school model.School) (model.School, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.School{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `
		INSERT INTO schools (name, district, municipality, ward_number, area_name, official_email, phone_number, website, principal_name, principal_contact, teacher_name, teacher_contact, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, is_active, created_at, updated_at
	`, school.Name, school.District, school.Municipality, school.WardNumber, school.AreaName, school.OfficialEmail, school.PhoneNumber, school.Website, school.PrincipalName, school.PrincipalContact, school.TeacherName, school.TeacherContact, school.Notes)
	if err := row.Scan(&school.ID, &school.IsActive, &school.CreatedAt, &school.UpdatedAt); err != nil {
		return model.School{}, mapDuplicate(err)
	}

	sessions, err := insertSessions(ctx, tx, school.ID, school.TrainingSessions)
	if err != nil {
		return model.School{}, err
	}
	school.TrainingSessions = sessions

	if err := tx.Commit(ctx); err != nil {
		return model.School{}, err
	}
	return school, nil
}

func (s *Store) GetSchoolByID(ctx context.Context, schoolID int64) (model.School, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+schoolColumns+` FROM schools WHERE id = $1`, schoolID)
	school, err := scanSchool(row)
	if err != nil {
		return model.School{}, err
	}
	sessions, err := s.sessionsBySchool(ctx, []int64{school.ID})
	if err != nil {
		return model.School{}, err
	}
	school.TrainingSessions = sessions[school.ID]
	if school.TrainingSessions == nil {
		school.TrainingSessions = []model.TrainingSession{}
	}
	return school, nil
}

type SchoolFilter struct {
	Scope    policy.Scope
	District *string
	IsActive *bool
	Skip     int
	Limit    int
}

func (s *Store) ListSchools(ctx context.Context, filter SchoolFilter) ([]model.School, int64, error) {
	where := []string{}
	args := []interface{}{}

	switch filter.Scope.Kind {
	case policy.ScopeAll:
	case policy.ScopeDistrict:
		args = append(args, filter.Scope.District)
		where = append(where, fmt.Sprintf("LOWER(district) = LOWER($%d)", len(args)))
	case policy.ScopeSchool:
		args = append(args, filter.Scope.SchoolID)
		where = append(where, fmt.Sprintf("id = $%d", len(args)))
	default:
		return []model.School{}, 0, nil
	}

	if filter.District != nil {
		args = append(args, *filter.District)
		where = append(where, fmt.Sprintf("LOWER(district) = LOWER($%d)", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		where = append(where, fmt.Sprintf("is_active = $%d", len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM schools`+clause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Skip)
	query := fmt.Sprintf(`SELECT %s FROM schools%s ORDER BY id LIMIT $%d OFFSET $%d`, schoolColumns, clause, len(args)-1, len(args))
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	schools := []model.School{}
	ids := []int64{}
	for rows.Next() {
		school, err := scanSchool(rows)
		if err != nil {
			return nil, 0, err
		}
		school.TrainingSessions = []model.TrainingSession{}
		schools = append(schools, school)
		ids = append(ids, school.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	sessions, err := s.sessionsBySchool(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range schools {
		if list, ok := sessions[schools[i].ID]; ok {
			schools[i].TrainingSessions = list
		}
	}
	return schools, total, nil
}

type SchoolUpdate struct {
	Name             *string
	District         *string
	Municipality     *string
	WardNumber       *int
	AreaName         *string
	OfficialEmail    *string
	PhoneNumber      *string
	Website          *string
	PrincipalName    *string
	PrincipalContact *string
	TeacherName      *string
	TeacherContact   *string
	Notes            *string
	// ReplaceSessions, when non-nil, swaps the school's whole session list.
	ReplaceSessions []model.TrainingSession
}

// UpdateSchool applies the partial update and, when requested, replaces the
// session list. Both happen in one transaction so a failed insert never
// leaves the school without its old sessions.
func (s *Store) UpdateSchool(ctx context.Context, schoolID int64, update SchoolUpdate) (model.School, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return model.School{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	set := []string{}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if update.Name != nil {
		add("name", *update.Name)
	}
	if update.District != nil {
		add("district", *update.District)
	}
	if update.Municipality != nil {
		add("municipality", *update.Municipality)
	}
	if update.WardNumber != nil {
		add("ward_number", *update.WardNumber)
	}
	if update.AreaName != nil {
		add("area_name", *update.AreaName)
	}
	if update.OfficialEmail != nil {
		add("official_email", *update.OfficialEmail)
	}
	if update.PhoneNumber != nil {
		add("phone_number", *update.PhoneNumber)
	}
	if update.Website != nil {
		add("website", *update.Website)
	}
	if update.PrincipalName != nil {
		add("principal_name", *update.PrincipalName)
	}
	if update.PrincipalContact != nil {
		add("principal_contact", *update.PrincipalContact)
	}
	if update.TeacherName != nil {
		add("teacher_name", *update.TeacherName)
	}
	if update.TeacherContact != nil {
		add("teacher_contact", *update.TeacherContact)
	}
	if update.Notes != nil {
		add("notes", *update.Notes)
	}
	set = append(set, "updated_at = now()")

	args = append(args, schoolID)
	query := fmt.Sprintf(`UPDATE schools SET %s WHERE id = $%d RETURNING %s`, strings.Join(set, ", "), len(args), schoolColumns)
	school, err := scanSchool(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return model.School{}, mapDuplicate(err)
	}

	if update.ReplaceSessions != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM training_sessions WHERE school_id = $1`, schoolID); err != nil {
			return model.School{}, err
		}
		sessions, err := insertSessions(ctx, tx, schoolID, update.ReplaceSessions)
		if err != nil {
			return model.School{}, err
		}
		school.TrainingSessions = sessions
	}

	if err := tx.Commit(ctx); err != nil {
		return model.School{}, err
	}

	if update.ReplaceSessions == nil {
		sessions, err := s.sessionsBySchool(ctx, []int64{schoolID})
		if err != nil {
			return model.School{}, err
		}
		school.TrainingSessions = sessions[schoolID]
		if school.TrainingSessions == nil {
			school.TrainingSessions = []model.TrainingSession{}
		}
	}
	return school, nil
}

func (s *Store) SoftDeleteSchool(ctx context.Context, schoolID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE schools SET is_active = false, updated_at = now() WHERE id = $1`, schoolID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) Stats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	row := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM schools),
			(SELECT COUNT(*) FROM schools WHERE is_active = true),
			(SELECT COUNT(*) FROM training_sessions),
			(SELECT COUNT(DISTINCT district) FROM schools)
	`)
	err := row.Scan(&stats.TotalSchools, &stats.ActiveSchools, &stats.TotalSessions, &stats.DistrictsCovered)
	return stats, err
}

func (s *Store) sessionsBySchool(ctx context.Context, schoolIDs []int64) (map[int64][]model.TrainingSession, error) {
	result := map[int64][]model.TrainingSession{}
	if len(schoolIDs) == 0 {
		return result, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, school_id, ncc_batch, start_date, passout_date, division
		FROM training_sessions
		WHERE school_id = ANY($1)
		ORDER BY id
	`, schoolIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var session model.TrainingSession
		if err := rows.Scan(&session.ID, &session.SchoolID, &session.NCCBatch, &session.StartDate, &session.PassoutDate, &session.Division); err != nil {
			return nil, err
		}
		result[session.SchoolID] = append(result[session.SchoolID], session)
	}
	return result, rows.Err()
}

func insertSessions(ctx context.Context, tx pgx.Tx, schoolID int64, sessions []model.TrainingSession) ([]model.TrainingSession, error) {
	inserted := make([]model.TrainingSession, 0, len(sessions))
	for _, session := range sessions {
		session.SchoolID = schoolID
		row := tx.QueryRow(ctx, `
			INSERT INTO training_sessions (school_id, ncc_batch, start_date, passout_date, division)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, schoolID, session.NCCBatch, session.StartDate, session.PassoutDate, session.Division)
		if err := row.Scan(&session.ID); err != nil {
			return nil, err
		}
		inserted = append(inserted, session)
	}
	return inserted, nil
}

func mapDuplicate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return err
	}
	switch pgErr.ConstraintName {
	case "uq_users_email":
		return ErrEmailTaken
	case "uq_users_username":
		return ErrUsernameTaken
	case "uq_users_cadet_number":
		return ErrCadetNumberTaken
	case "uq_schools_name":
		return ErrSchoolNameTaken
	default:
		return err
	}
}
