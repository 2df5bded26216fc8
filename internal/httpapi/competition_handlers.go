package httpapi

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/seedling/pitch-platform/internal/db"
	"github.com/seedling/pitch-platform/internal/schemas"
	"github.com/seedling/pitch-platform/internal/scoring"
	"github.com/seedling/pitch-platform/internal/storage"
)

func competitionOut(c *db.Competition, full bool) schemas.CompetitionOut {
	out := schemas.CompetitionOut{
		ID:                    c.ID,
		Title:                 c.Title,
		Description:           c.Description,
		Domain:                c.Domain,
		EntryFee:              c.EntryFee,
		PrizePool:             c.PrizePool,
		PlatformFeePercentage: c.PlatformFeePercentage,
		MaxEntries:            c.MaxEntries,
		CurrentEntries:        c.CurrentEntries,
		OpenDate:              c.OpenDate,
		Deadline:              c.Deadline,
		JudgingSLADays:        c.JudgingSLADays,
		Status:                schemas.CompetitionStatus(c.Status),
		ImageURL:              c.ImageKey.String,
		CreatedBy:             c.CreatedBy,
		CreatedAt:             c.CreatedAt,
	}
	if full {
		_ = json.Unmarshal(c.Rubric, &out.Rubric)
		_ = json.Unmarshal(c.PrizeStructure, &out.PrizeStructure)
	}
	return out
}

func (s *Server) listCompetitions(w http.ResponseWriter, r *http.Request) {
	query := `select * from competitions where 1=1`
	args := []any{}
	if status := r.URL.Query().Get("status"); status != "" {
		args = append(args, status)
		query += ` and status=$1`
	}
	if domain := r.URL.Query().Get("domain"); domain != "" {
		args = append(args, domain)
		if len(args) == 1 {
			query += ` and domain=$1`
		} else {
			query += ` and domain=$2`
		}
	}
	query += ` order by deadline asc`

	var comps []db.Competition
	if err := s.DB.SelectContext(r.Context(), &comps, query, args...); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]schemas.CompetitionOut, len(comps))
	for i := range comps {
		out[i] = competitionOut(&comps[i], false)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getCompetitionByID(w http.ResponseWriter, r *http.Request) (*db.Competition, bool) {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusBadRequest, "invalid competition id")
		return nil, false
	}
	var comp db.Competition
	err := s.DB.GetContext(r.Context(), &comp, `select * from competitions where id=$1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		writeDetail(w, http.StatusNotFound, "Competition not found")
		return nil, false
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return &comp, true
}

func (s *Server) getCompetition(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.getCompetitionByID(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, competitionOut(comp, true))
}

func (s *Server) createCompetition(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	var req schemas.CompetitionCreate
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title == "" || req.Domain == "" {
		writeDetail(w, http.StatusBadRequest, "Title and domain are required")
		return
	}
	if req.MaxEntries <= 0 || req.EntryFee < 0 {
		writeDetail(w, http.StatusBadRequest, "max_entries must be positive and entry_fee non-negative")
		return
	}
	if len(req.Rubric) == 0 || len(req.PrizeStructure) == 0 {
		writeDetail(w, http.StatusBadRequest, "Rubric and prize structure are required")
		return
	}
	for name, c := range scoring.ParseRubric(req.Rubric) {
		if c.Weight < 0 {
			writeDetail(w, http.StatusBadRequest, "Rubric weight for '"+name+"' must be non-negative")
			return
		}
	}

	rubric, _ := json.Marshal(req.Rubric)
	prizes, _ := json.Marshal(req.PrizeStructure)
	var comp db.Competition
	err := s.DB.GetContext(r.Context(), &comp,
		`insert into competitions(title, description, domain, entry_fee, prize_pool, platform_fee_percentage,
			max_entries, open_date, deadline, judging_sla_days, status, rubric, prize_structure, created_by)
		 values($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'draft',$11,$12,$13) returning *`,
		req.Title, req.Description, req.Domain, req.EntryFee, req.PrizePool, req.PlatformFeePercentage,
		req.MaxEntries, req.OpenDate, req.Deadline, req.JudgingSLADays, rubric, prizes, user.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, competitionOut(&comp, true))
}

func (s *Server) updateCompetition(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.getCompetitionByID(w, r)
	if !ok {
		return
	}
	var req schemas.CompetitionUpdate
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Title != nil {
		comp.Title = *req.Title
	}
	if req.Description != nil {
		comp.Description = *req.Description
	}
	if req.Domain != nil {
		comp.Domain = *req.Domain
	}
	if req.Deadline != nil {
		comp.Deadline = *req.Deadline
	}
	if req.Status != nil {
		comp.Status = string(*req.Status)
	}
	if req.Rubric != nil {
		comp.Rubric, _ = json.Marshal(req.Rubric)
	}
	if req.PrizeStructure != nil {
		comp.PrizeStructure, _ = json.Marshal(req.PrizeStructure)
	}
	_, err := s.DB.ExecContext(r.Context(),
		`update competitions set title=$1, description=$2, domain=$3, deadline=$4, status=$5,
			rubric=$6, prize_structure=$7, updated_at=now() where id=$8`,
		comp.Title, comp.Description, comp.Domain, comp.Deadline, comp.Status,
		comp.Rubric, comp.PrizeStructure, comp.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, competitionOut(comp, true))
}

func (s *Server) deleteCompetition(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.getCompetitionByID(w, r)
	if !ok {
		return
	}
	var entries int
	if err := s.DB.GetContext(r.Context(), &entries,
		`select count(1) from submissions where competition_id=$1`, comp.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries > 0 {
		writeDetail(w, http.StatusBadRequest, "Cannot delete a competition with submissions")
		return
	}
	if _, err := s.DB.ExecContext(r.Context(), `delete from competitions where id=$1`, comp.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// competitionResults is the public leaderboard, available once judging is done.
func (s *Server) competitionResults(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.getCompetitionByID(w, r)
	if !ok {
		return
	}
	if schemas.CompetitionStatus(comp.Status) != schemas.CompetitionComplete {
		writeDetail(w, http.StatusBadRequest, "Results are only available for complete competitions")
		return
	}
	board, err := s.buildLeaderboard(r, comp)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (s *Server) uploadCompetitionImage(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.getCompetitionByID(w, r)
	if !ok {
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if err := storage.ValidateImage(contentType, header.Size); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	key := storage.CompetitionImageKey(comp.ID, header.Filename)
	if err := s.S3.Put(r.Context(), key, contentType, file, map[string]string{
		"original_filename": storage.SanitizeFilename(header.Filename),
	}); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if _, err := s.DB.ExecContext(r.Context(),
		`update competitions set image_key=$1, updated_at=now() where id=$2`, key, comp.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	comp.ImageKey = sql.NullString{String: key, Valid: true}
	writeJSON(w, http.StatusOK, competitionOut(comp, true))
}

func (s *Server) deleteCompetitionImage(w http.ResponseWriter, r *http.Request) {
	comp, ok := s.getCompetitionByID(w, r)
	if !ok {
		return
	}
	if comp.ImageKey.Valid {
		if err := s.S3.Delete(r.Context(), comp.ImageKey.String); err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	if _, err := s.DB.ExecContext(r.Context(),
		`update competitions set image_key=null, updated_at=now() where id=$1`, comp.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
