package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nikhilbhatia/commitcanvas/internal/api/dto"
	"github.com/nikhilbhatia/commitcanvas/internal/domain/commit"
	"github.com/nikhilbhatia/commitcanvas/internal/domain/user"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/errors"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/logger"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/utils"
	"github.com/nikhilbhatia/commitcanvas/internal/pkg/validator"
	"github.com/nikhilbhatia/commitcanvas/internal/services"
)

const dateLayout = "2006-01-02"

type CommitHandler struct {
	users     user.Store
	records   commit.Store
	service   *services.CommitService
	logger    *logger.Logger
	validator *validator.Validator
}

func NewCommitHandler(
	users user.Store,
	records commit.Store,
	service *services.CommitService,
	log *logger.Logger,
	val *validator.Validator,
) *CommitHandler {
	return &CommitHandler{
		users:     users,
		records:   records,
		service:   service,
		logger:    log,
		validator: val,
	}
}

// Trigger produces a single manual commit for the user right now.
func (h *CommitHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req dto.TriggerCommitRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	u, err := h.users.GetByID(r.Context(), req.UserID)
	if err != nil {
		writeAppError(w, err, "failed to load user")
		return
	}

	result, err := h.service.ProduceCommit(r.Context(), u, commit.KindManual, "api")
	if err != nil {
		writeAppError(w, err, "failed to produce commit")
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, dto.FromResult(result))
}

// Backfill generates one backdated commit per day across a date range.
func (h *CommitHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	var req dto.BackfillRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	from, err := time.Parse(dateLayout, req.From)
	if err != nil {
		utils.WriteError(w, errors.BadRequest("invalid from date"))
		return
	}
	to, err := time.Parse(dateLayout, req.To)
	if err != nil {
		utils.WriteError(w, errors.BadRequest("invalid to date"))
		return
	}

	u, err := h.users.GetByID(r.Context(), req.UserID)
	if err != nil {
		writeAppError(w, err, "failed to load user")
		return
	}

	result, err := h.service.GeneratePastCommits(r.Context(), u, from, to)
	if err != nil {
		writeAppError(w, err, "failed to generate past commits")
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, dto.FromResult(result))
}

// Streak generates backdated commits for an explicit list of dates,
// optionally deleting existing records in the covered range first.
func (h *CommitHandler) Streak(w http.ResponseWriter, r *http.Request) {
	var req dto.StreakRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	dates := make([]time.Time, 0, len(req.Dates))
	for _, raw := range req.Dates {
		d, err := time.Parse(dateLayout, raw)
		if err != nil {
			utils.WriteError(w, errors.BadRequest("invalid date in list: "+raw))
			return
		}
		dates = append(dates, d)
	}

	u, err := h.users.GetByID(r.Context(), req.UserID)
	if err != nil {
		writeAppError(w, err, "failed to load user")
		return
	}

	result, err := h.service.GenerateStreakCommits(r.Context(), u, dates, req.Force)
	if err != nil {
		writeAppError(w, err, "failed to generate streak commits")
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, dto.FromResult(result))
}

// Pattern renders text onto the contribution graph as backdated commits.
func (h *CommitHandler) Pattern(w http.ResponseWriter, r *http.Request) {
	var req dto.PatternRequest
	if !decodeAndValidate(w, r, h.validator, &req) {
		return
	}

	endDate := time.Now()
	if req.EndDate != "" {
		parsed, err := time.Parse(dateLayout, req.EndDate)
		if err != nil {
			utils.WriteError(w, errors.BadRequest("invalid end date"))
			return
		}
		endDate = parsed
	}

	u, err := h.users.GetByID(r.Context(), req.UserID)
	if err != nil {
		writeAppError(w, err, "failed to load user")
		return
	}

	opts := services.PatternOptions{
		Intensity: req.Intensity,
		Alignment: req.Alignment,
		Spacing:   req.Spacing,
	}
	result, err := h.service.GeneratePatternCommits(r.Context(), u, req.Text, opts, endDate)
	if err != nil {
		h.logger.WithError(err).Warn("pattern generation failed")
		writeAppError(w, err, "failed to generate pattern commits")
		return
	}

	utils.WriteSuccess(w, http.StatusCreated, dto.FromResult(result))
}

// List returns a user's commit history, newest first, with pagination.
func (h *CommitHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		utils.WriteError(w, errors.BadRequest("user_id query parameter is required"))
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	offset := (page - 1) * pageSize
	records, total, err := h.records.ListByUser(r.Context(), userID, pageSize, offset)
	if err != nil {
		writeAppError(w, err, "failed to list commits")
		return
	}

	dtos := make([]dto.CommitRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = dto.FromRecord(rec)
	}

	utils.WriteSuccess(w, http.StatusOK, utils.NewPaginatedResponse(dtos, page, pageSize, int(total)))
}
