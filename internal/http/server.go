package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nccaalumbini/cadet-api/internal/auth"
	"github.com/nccaalumbini/cadet-api/internal/config"
	"github.com/nccaalumbini/cadet-api/internal/crypto"
	"github.com/nccaalumbini/cadet-api/internal/model"
	"github.com/nccaalumbini/cadet-api/internal/policy"
	"github.com/nccaalumbini/cadet-api/internal/repository"
)

// Each training session hosts a fixed batch of 30 cadets; the stats endpoint
// estimates the cadet headcount from it.
const cadetsPerSession = 30

const dateLayout = "2006-01-02"

const statsCacheKey = "schools:stats"

type Server struct {
	cfg   config.Config
	store *repository.Store
	redis *redis.Client
}

func NewServer(cfg config.Config, store *repository.Store, redisClient *redis.Client) *Server {
	return &Server{cfg: cfg, store: store, redis: redisClient}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/login", s.handleLogin)

	r.With(s.authMiddleware).Get("/users/me", s.handleGetMe)
	r.With(s.authMiddleware).Post("/users/create", s.handleCreateUser)

	r.Route("/schools", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleListSchools)
		r.Post("/", s.handleCreateSchool)
		r.Get("/stats/", s.handleSchoolStats)
		r.Get("/{schoolId}", s.handleGetSchool)
		r.Put("/{schoolId}", s.handleUpdateSchool)
		r.Delete("/{schoolId}", s.handleDeleteSchool)
	})

	return r
}

// Auth

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" && req.Username == "" {
		writeError(w, http.StatusBadRequest, "missing_identifier")
		return
	}

	var (
		user model.User
		err  error
	)
	if req.Email != "" {
		user, err = s.store.GetUserByEmail(r.Context(), req.Email)
	} else {
		user, err = s.store.GetUserByUsername(r.Context(), req.Username)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusUnauthorized, "invalid_credentials")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if err := crypto.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_credentials")
		return
	}

	claims := auth.Claims{Role: user.Role}
	if user.District != nil {
		claims.District = *user.District
	}
	token, err := auth.NewAccessToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, s.cfg.AccessTokenTTL, strconv.FormatInt(user.ID, 10), claims)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Users

type userResponse struct {
	ID            int64   `json:"id"`
	CadetNumber   string  `json:"cadet_number"`
	Username      string  `json:"username"`
	Email         string  `json:"email"`
	ContactNumber *string `json:"contact_number"`
	Address       *string `json:"address"`
	District      *string `json:"district"`
	Role          string  `json:"role"`
	SchoolID      *int64  `json:"school_id,omitempty"`
}

func mapUserResponse(user model.User) userResponse {
	return userResponse{
		ID:            user.ID,
		CadetNumber:   user.CadetNumber,
		Username:      user.Username,
		Email:         user.Email,
		ContactNumber: user.ContactNumber,
		Address:       user.Address,
		District:      user.District,
		Role:          user.Role,
		SchoolID:      user.SchoolID,
	}
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "missing_token")
		return
	}
	writeJSON(w, http.StatusOK, mapUserResponse(*user))
}

type createUserRequest struct {
	CadetNumber   string  `json:"cadet_number"`
	Username      string  `json:"username"`
	Email         string  `json:"email"`
	Password      string  `json:"password"`
	ContactNumber *string `json:"contact_number"`
	Address       *string `json:"address"`
	District      *string `json:"district"`
	Role          string  `json:"role"`
	SchoolID      *int64  `json:"school_id"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if !actor.CanCreateUsers() {
		writeError(w, http.StatusForbidden, "not_authorized")
		return
	}

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.CadetNumber = strings.TrimSpace(req.CadetNumber)
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.CadetNumber == "" || req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}
	if len(req.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password_too_short")
		return
	}

	if req.Role == "" {
		req.Role = string(policy.RoleUser)
	}
	role, ok := policy.ParseRole(req.Role)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_role")
		return
	}
	if !actor.CanAssignRole(role) {
		writeError(w, http.StatusForbidden, "role_not_allowed")
		return
	}

	hash, err := crypto.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "password_hash_failed")
		return
	}

	user := model.User{
		CadetNumber:   req.CadetNumber,
		Username:      req.Username,
		Email:         req.Email,
		ContactNumber: req.ContactNumber,
		Address:       req.Address,
		District:      actor.EffectiveDistrict(req.District),
		Role:          string(role),
		SchoolID:      req.SchoolID,
		PasswordHash:  hash,
	}

	created, err := s.store.CreateUser(r.Context(), user)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailTaken):
			writeError(w, http.StatusBadRequest, "email_taken")
		case errors.Is(err, repository.ErrUsernameTaken):
			writeError(w, http.StatusBadRequest, "username_taken")
		case errors.Is(err, repository.ErrCadetNumberTaken):
			writeError(w, http.StatusBadRequest, "cadet_number_taken")
		default:
			writeError(w, http.StatusInternalServerError, "server_error")
		}
		return
	}

	writeJSON(w, http.StatusOK, mapUserResponse(created))
}

// Schools

type sessionPayload struct {
	NCCBatch    string  `json:"ncc_batch"`
	StartDate   string  `json:"start_date"`
	PassoutDate *string `json:"passout_date"`
	Division    string  `json:"division"`
}

type sessionResponse struct {
	ID          int64   `json:"id"`
	SchoolID    int64   `json:"school_id"`
	NCCBatch    string  `json:"ncc_batch"`
	StartDate   string  `json:"start_date"`
	PassoutDate *string `json:"passout_date"`
	Division    string  `json:"division"`
}

type createSchoolRequest struct {
	Name             string           `json:"name"`
	District         string           `json:"district"`
	Municipality     string           `json:"municipality"`
	WardNumber       int              `json:"ward_number"`
	AreaName         *string          `json:"area_name"`
	OfficialEmail    *string          `json:"official_email"`
	PhoneNumber      string           `json:"phone_number"`
	Website          *string          `json:"website"`
	PrincipalName    string           `json:"principal_name"`
	PrincipalContact string           `json:"principal_contact"`
	TeacherName      *string          `json:"teacher_name"`
	TeacherContact   *string          `json:"teacher_contact"`
	Notes            *string          `json:"notes"`
	TrainingSessions []sessionPayload `json:"training_sessions"`
}

type updateSchoolRequest struct {
	Name             *string           `json:"name"`
	District         *string           `json:"district"`
	Municipality     *string           `json:"municipality"`
	WardNumber       *int              `json:"ward_number"`
	AreaName         *string           `json:"area_name"`
	OfficialEmail    *string           `json:"official_email"`
	PhoneNumber      *string           `json:"phone_number"`
	Website          *string           `json:"website"`
	PrincipalName    *string           `json:"principal_name"`
	PrincipalContact *string           `json:"principal_contact"`
	TeacherName      *string           `json:"teacher_name"`
	TeacherContact   *string           `json:"teacher_contact"`
	Notes            *string           `json:"notes"`
	TrainingSessions []sessionPayload  `json:"training_sessions"`
}

type schoolResponse struct {
	ID               int64             `json:"id"`
	Name             string            `json:"name"`
	District         string            `json:"district"`
	Municipality     string            `json:"municipality"`
	WardNumber       int               `json:"ward_number"`
	AreaName         *string           `json:"area_name"`
	OfficialEmail    *string           `json:"official_email"`
	PhoneNumber      string            `json:"phone_number"`
	Website          *string           `json:"website"`
	PrincipalName    string            `json:"principal_name"`
	PrincipalContact string            `json:"principal_contact"`
	TeacherName      *string           `json:"teacher_name"`
	TeacherContact   *string           `json:"teacher_contact"`
	Notes            *string           `json:"notes"`
	IsActive         bool              `json:"is_active"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	TrainingSessions []sessionResponse `json:"training_sessions"`
}

type schoolListResponse struct {
	Items []schoolResponse `json:"items"`
	Total int64            `json:"total"`
}

func mapSchoolResponse(school model.School) schoolResponse {
	sessions := make([]sessionResponse, 0, len(school.TrainingSessions))
	for _, session := range school.TrainingSessions {
		out := sessionResponse{
			ID:        session.ID,
			SchoolID:  session.SchoolID,
			NCCBatch:  session.NCCBatch,
			StartDate: session.StartDate.Format(dateLayout),
			Division:  session.Division,
		}
		if session.PassoutDate != nil {
			formatted := session.PassoutDate.Format(dateLayout)
			out.PassoutDate = &formatted
		}
		sessions = append(sessions, out)
	}
	return schoolResponse{
		ID:               school.ID,
		Name:             school.Name,
		District:         school.District,
		Municipality:     school.Municipality,
		WardNumber:       school.WardNumber,
		AreaName:         school.AreaName,
		OfficialEmail:    school.OfficialEmail,
		PhoneNumber:      school.PhoneNumber,
		Website:          school.Website,
		PrincipalName:    school.PrincipalName,
		PrincipalContact: school.PrincipalContact,
		TeacherName:      school.TeacherName,
		TeacherContact:   school.TeacherContact,
		Notes:            school.Notes,
		IsActive:         school.IsActive,
		CreatedAt:        school.CreatedAt,
		UpdatedAt:        school.UpdatedAt,
		TrainingSessions: sessions,
	}
}

func parseSessions(payloads []sessionPayload) ([]model.TrainingSession, string) {
	sessions := make([]model.TrainingSession, 0, len(payloads))
	for _, payload := range payloads {
		payload.NCCBatch = strings.TrimSpace(payload.NCCBatch)
		if payload.NCCBatch == "" {
			return nil, "missing_ncc_batch"
		}
		division := strings.TrimSpace(strings.ToLower(payload.Division))
		if division != model.DivisionJunior && division != model.DivisionSenior {
			return nil, "invalid_division"
		}
		start, err := time.Parse(dateLayout, payload.StartDate)
		if err != nil {
			return nil, "invalid_start_date"
		}
		session := model.TrainingSession{
			NCCBatch:  payload.NCCBatch,
			StartDate: start,
			Division:  division,
		}
		if payload.PassoutDate != nil && *payload.PassoutDate != "" {
			passout, err := time.Parse(dateLayout, *payload.PassoutDate)
			if err != nil {
				return nil, "invalid_passout_date"
			}
			session.PassoutDate = &passout
		}
		sessions = append(sessions, session)
	}
	return sessions, ""
}

func (s *Server) handleListSchools(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	scope := actor.SchoolScope()
	if scope.Kind == policy.ScopeNone {
		writeError(w, http.StatusForbidden, "not_authorized")
		return
	}

	filter := repository.SchoolFilter{Scope: scope, Skip: 0, Limit: 100}
	if raw := r.URL.Query().Get("skip"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			filter.Skip = parsed
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			filter.Limit = parsed
		}
	}
	if district := strings.TrimSpace(r.URL.Query().Get("district")); district != "" {
		filter.District = &district
	}
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			filter.IsActive = &parsed
		}
	}

	schools, total, err := s.store.ListSchools(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	items := make([]schoolResponse, 0, len(schools))
	for _, school := range schools {
		items = append(items, mapSchoolResponse(school))
	}
	writeJSON(w, http.StatusOK, schoolListResponse{Items: items, Total: total})
}

func (s *Server) handleCreateSchool(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	var req createSchoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.District = strings.TrimSpace(req.District)
	if req.Name == "" || req.District == "" || req.Municipality == "" || req.PhoneNumber == "" ||
		req.PrincipalName == "" || req.PrincipalContact == "" || req.WardNumber <= 0 {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	if !actor.CanWriteSchool(req.District) {
		writeError(w, http.StatusForbidden, "not_authorized")
		return
	}

	sessions, errCode := parseSessions(req.TrainingSessions)
	if errCode != "" {
		writeError(w, http.StatusBadRequest, errCode)
		return
	}

	school := model.School{
		Name:             req.Name,
		District:         req.District,
		Municipality:     req.Municipality,
		WardNumber:       req.WardNumber,
		AreaName:         req.AreaName,
		OfficialEmail:    req.OfficialEmail,
		PhoneNumber:      req.PhoneNumber,
		Website:          req.Website,
		PrincipalName:    req.PrincipalName,
		PrincipalContact: req.PrincipalContact,
		TeacherName:      req.TeacherName,
		TeacherContact:   req.TeacherContact,
		Notes:            req.Notes,
		TrainingSessions: sessions,
	}

	created, err := s.store.CreateSchool(r.Context(), school)
	if err != nil {
		if errors.Is(err, repository.ErrSchoolNameTaken) {
			writeError(w, http.StatusBadRequest, "school_name_taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, mapSchoolResponse(created))
}

func (s *Server) handleGetSchool(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if actor.SchoolScope().Kind == policy.ScopeNone {
		writeError(w, http.StatusForbidden, "not_authorized")
		return
	}

	schoolID, err := parseSchoolID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_school_id")
		return
	}

	school, err := s.store.GetSchoolByID(r.Context(), schoolID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "school_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if !actor.CanViewSchool(school.District, school.ID) {
		writeError(w, http.StatusForbidden, "not_authorized")
		return
	}

	writeJSON(w, http.StatusOK, mapSchoolResponse(school))
}

func (s *Server) handleUpdateSchool(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	// Role is checked before existence: an unprivileged caller gets 403 even
	// for an id that does not exist.
	if actor.Role != policy.RoleProvinceAdmin && actor.Role != policy.RoleDistrictAdmin {
		writeError(w, http.StatusForbidden, "not_authorized")
		return
	}

	schoolID, err := parseSchoolID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_school_id")
		return
	}

	var req updateSchoolRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	school, err := s.store.GetSchoolByID(r.Context(), schoolID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "school_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	if !actor.CanWriteSchool(school.District) {
		writeError(w, http.StatusForbidden, "not_authorized")
		return
	}
	// A district admin may not move a school into a district outside their own.
	if req.District != nil && !actor.CanWriteSchool(*req.District) {
		writeError(w, http.StatusForbidden, "not_authorized")
		return
	}

	update := repository.SchoolUpdate{
		Name:             req.Name,
		District:         req.District,
		Municipality:     req.Municipality,
		WardNumber:       req.WardNumber,
		AreaName:         req.AreaName,
		OfficialEmail:    req.OfficialEmail,
		PhoneNumber:      req.PhoneNumber,
		Website:          req.Website,
		PrincipalName:    req.PrincipalName,
		PrincipalContact: req.PrincipalContact,
		TeacherName:      req.TeacherName,
		TeacherContact:   req.TeacherContact,
		Notes:            req.Notes,
	}
	if req.TrainingSessions != nil {
		sessions, errCode := parseSessions(req.TrainingSessions)
		if errCode != "" {
			writeError(w, http.StatusBadRequest, errCode)
			return
		}
		update.ReplaceSessions = sessions
	}

	updated, err := s.store.UpdateSchool(r.Context(), schoolID, update)
	if err != nil {
		if errors.Is(err, repository.ErrSchoolNameTaken) {
			writeError(w, http.StatusBadRequest, "school_name_taken")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	writeJSON(w, http.StatusOK, mapSchoolResponse(updated))
}

func (s *Server) handleDeleteSchool(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if !actor.CanDeleteSchool() {
		writeError(w, http.StatusForbidden, "not_authorized")
		return
	}

	schoolID, err := parseSchoolID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_school_id")
		return
	}

	deleted, err := s.store.SoftDeleteSchool(r.Context(), schoolID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "school_not_found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "School deleted successfully"})
}

type statsResponse struct {
	TotalSchools     int64 `json:"total_schools"`
	ActiveSchools    int64 `json:"active_schools"`
	TotalCadets      int64 `json:"total_cadets"`
	DistrictsCovered int64 `json:"districts_covered"`
}

func (s *Server) handleSchoolStats(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if actor.SchoolScope().Kind == policy.ScopeNone {
		writeError(w, http.StatusForbidden, "not_authorized")
		return
	}

	if cached, ok := s.loadCachedStats(r.Context()); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}

	resp := statsResponse{
		TotalSchools:     stats.TotalSchools,
		ActiveSchools:    stats.ActiveSchools,
		TotalCadets:      stats.TotalSessions * cadetsPerSession,
		DistrictsCovered: stats.DistrictsCovered,
	}
	s.storeCachedStats(r.Context(), resp)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) loadCachedStats(ctx context.Context) (statsResponse, bool) {
	if s.redis == nil {
		return statsResponse{}, false
	}
	raw, err := s.redis.Get(ctx, statsCacheKey).Result()
	if err != nil {
		return statsResponse{}, false
	}
	var resp statsResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return statsResponse{}, false
	}
	return resp, true
}

func (s *Server) storeCachedStats(ctx context.Context, resp statsResponse) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_ = s.redis.Set(ctx, statsCacheKey, raw, s.cfg.StatsCacheTTL).Err()
}

// Middleware

type userKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}

		claims, err := auth.ParseToken(s.cfg.JWTSecret, s.cfg.JWTIssuer, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		userID, err := strconv.ParseInt(claims.Subject, 10, 64)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		user, err := s.store.GetUserByID(r.Context(), userID)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}

		ctx := context.WithValue(r.Context(), userKey{}, &user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

func userFromContext(ctx context.Context) *model.User {
	value := ctx.Value(userKey{})
	user, _ := value.(*model.User)
	return user
}

func actorFromContext(ctx context.Context) policy.Actor {
	user := userFromContext(ctx)
	if user == nil {
		return policy.Actor{Role: policy.RoleUser}
	}
	role, _ := policy.ParseRole(user.Role)
	actor := policy.Actor{Role: role, SchoolID: user.SchoolID}
	if user.District != nil {
		actor.District = *user.District
	}
	return actor
}

// Helpers

func parseSchoolID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "schoolId"), 10, 64)
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
