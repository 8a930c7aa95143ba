package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"checkin-system/internal/logging"
	"checkin-system/internal/status"
	"checkin-system/internal/store"
	"checkin-system/internal/validation"
	"checkin-system/models"

	"github.com/shopspring/decimal"
)

var digitsPattern = regexp.MustCompile(`\d+`)

type CreateUserRequest struct {
	UserID   string `json:"user_id"   validate:"required,attendee_id"`
	Name     string `json:"name"      validate:"required,min=2,max=100"`
	IsVIP    bool   `json:"is_vip"`
	Seat     string `json:"seat"      validate:"omitempty,seat"`
	ImageURL string `json:"image_url" validate:"omitempty,http_url"`
	VideoURL string `json:"video_url" validate:"omitempty,http_url"`
	Email    string `json:"email"     validate:"omitempty,email"`
	Phone    string `json:"phone"     validate:"omitempty,numeric,len=10"`
}

type UserSummary struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// ImportRow is one attendee in the spreadsheet export format.
type ImportRow struct {
	Name    string `json:"Name"`
	House   string `json:"House"`
	IDName  string `json:"ID_Name"`
	IDImage string `json:"ID_Image"`
	Seat    string `json:"Seat"`
}

type UserService struct {
	users store.AttendeeStore
	queue store.QueueStore
	logs  *SystemLogService
	now   func() time.Time
}

func NewUserService(users store.AttendeeStore, queue store.QueueStore, logs *SystemLogService) *UserService {
	if logs == nil {
		logs = NewSystemLogService(nil)
	}
	return &UserService{users: users, queue: queue, logs: logs, now: time.Now}
}

func (s *UserService) Create(ctx context.Context, req CreateUserRequest) (*models.Attendee, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.Name = strings.TrimSpace(req.Name)

	if err := validation.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.IsVIP && req.VideoURL == "" {
		return nil, validation.Failed([]validation.FieldError{{
			Field:   "video_url",
			Tag:     "required",
			Message: "is required for VIP attendees",
		}}, "video_url is required for VIP attendees")
	}

	a := &models.Attendee{
		UserID:    req.UserID,
		Name:      req.Name,
		IsVIP:     req.IsVIP,
		Seat:      req.Seat,
		ImageURL:  req.ImageURL,
		VideoURL:  req.VideoURL,
		Email:     req.Email,
		Phone:     req.Phone,
		CreatedAt: s.now(),
	}
	if err := s.users.Create(ctx, a); err != nil {
		return nil, err
	}

	logging.Info().Str("user_id", a.UserID).Bool("is_vip", a.IsVIP).Msg("attendee created")
	return a, nil
}

func (s *UserService) Get(ctx context.Context, userID string) (*models.Attendee, error) {
	return s.users.Get(ctx, userID)
}

func (s *UserService) List(ctx context.Context, limit int, startAfter string) ([]models.Attendee, error) {
	return s.users.List(ctx, limit, startAfter)
}

func (s *UserService) VIPs(ctx context.Context) ([]models.Attendee, error) {
	all, err := s.users.List(ctx, 0, "")
	if err != nil {
		return nil, err
	}
	vips := make([]models.Attendee, 0)
	for _, a := range all {
		if a.IsVIP {
			vips = append(vips, a)
		}
	}
	return vips, nil
}

func (s *UserService) Summaries(ctx context.Context) ([]UserSummary, error) {
	all, err := s.users.List(ctx, 0, "")
	if err != nil {
		return nil, err
	}
	out := make([]UserSummary, len(all))
	for i, a := range all {
		out[i] = UserSummary{UserID: a.UserID, Name: a.Name}
	}
	return out, nil
}

func (s *UserService) Stats(ctx context.Context) (*models.AttendeeStats, error) {
	all, err := s.users.List(ctx, 0, "")
	if err != nil {
		return nil, err
	}

	stats := &models.AttendeeStats{TotalUsers: len(all)}
	for _, a := range all {
		if a.CheckedIn() {
			stats.TotalCheckedIn++
		}
		if a.IsVIP {
			stats.TotalVIPs++
			if a.CheckedIn() {
				stats.VIPsCheckedIn++
			}
		}
	}

	if stats.QueueLength, err = s.queue.CountWaiting(ctx); err != nil {
		return nil, err
	}
	stats.CheckinRate = checkinRate(stats.TotalCheckedIn, stats.TotalUsers)
	return stats, nil
}

// checkinRate is checked/total as a percentage with two decimals.
func checkinRate(checked, total int) string {
	if total == 0 {
		return decimal.Zero.StringFixed(2)
	}
	return decimal.NewFromInt(int64(checked)).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(total))).
		StringFixed(2)
}

// SetMedia stores an uploaded media URL on the attendee. kind is "video" or "image".
func (s *UserService) SetMedia(ctx context.Context, userID, kind, url string) (*models.Attendee, error) {
	a, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "video":
		a.VideoURL = url
	case "image":
		a.ImageURL = url
	default:
		return nil, fmt.Errorf("unknown media kind %q", kind)
	}
	if err := s.users.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// ImportCSV upserts attendees from a spreadsheet export with the columns
// Name, House, ID_Name, ID_Image, Seat.
func (s *UserService) ImportCSV(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, status.ErrInvalidImport.WithMessage("invalid CSV: %v", err)
	}
	if len(records) < 2 {
		return nil, status.ErrInvalidImport.WithMessage("CSV file is empty or invalid")
	}

	header := make(map[string]int, len(records[0]))
	for i, col := range records[0] {
		if i == 0 {
			col = strings.TrimPrefix(col, "\uFEFF")
		}
		header[strings.TrimSpace(col)] = i
	}
	cell := func(rec []string, name string) string {
		i, ok := header[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	rows := records[1:]
	result := newImportResult(len(rows))
	for i, rec := range rows {
		if blank(rec) {
			continue
		}

		row := ImportRow{
			Name:    cell(rec, "Name"),
			House:   cell(rec, "House"),
			IDName:  cell(rec, "ID_Name"),
			IDImage: cell(rec, "ID_Image"),
			Seat:    cell(rec, "Seat"),
		}
		created, err := s.upsertCSVRow(ctx, row, i)
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, models.ImportError{Line: i + 2, Error: importMessage(err)})
			continue
		}
		countUpsert(result, created)
	}

	s.finishImport(ctx, "csv", result)
	return result, nil
}

func (s *UserService) upsertCSVRow(ctx context.Context, row ImportRow, index int) (bool, error) {
	if row.Name == "" || row.IDName == "" {
		return false, errMissingImportFields
	}
	userID := strings.ToUpper(row.IDName)
	isVIP := houseIsVIP(row.House)

	seat := ""
	if isVIP {
		seat = row.Seat
		if seat == "" {
			seat = defaultSeat(userID, index)
		}
	}

	return s.upsert(ctx, userID, func(a *models.Attendee, _ bool) {
		a.Name = row.Name
		a.IsVIP = isVIP
		a.ImageURL = row.IDImage
		if seat != "" {
			a.Seat = seat
		}
	})
}

// ImportJSON upserts attendees from {"users": [...]}. Existing attendees keep
// their VIP flag.
func (s *UserService) ImportJSON(ctx context.Context, rows []ImportRow) (*models.ImportResult, error) {
	if len(rows) == 0 {
		return nil, status.ErrInvalidImport.WithMessage("users array is required and must not be empty")
	}

	result := newImportResult(len(rows))
	for i, row := range rows {
		row.Name = strings.TrimSpace(row.Name)
		row.IDName = strings.TrimSpace(row.IDName)

		created, err := s.upsertJSONRow(ctx, row, i)
		if err != nil {
			idx := i
			result.Skipped++
			result.Errors = append(result.Errors, models.ImportError{Index: &idx, Error: importMessage(err)})
			continue
		}
		countUpsert(result, created)
	}

	s.finishImport(ctx, "json", result)
	return result, nil
}

func (s *UserService) upsertJSONRow(ctx context.Context, row ImportRow, index int) (bool, error) {
	if row.Name == "" || row.IDName == "" {
		return false, errMissingImportFields
	}
	userID := strings.ToUpper(row.IDName)

	return s.upsert(ctx, userID, func(a *models.Attendee, fresh bool) {
		a.Name = row.Name
		if fresh {
			a.IsVIP = houseIsVIP(row.House)
		}
		if a.IsVIP {
			a.Seat = defaultSeat(userID, index)
		}
	})
}

var errMissingImportFields = errors.New("missing required fields: Name or ID_Name")

// upsert applies fn to the stored attendee, or to a fresh one when none exists,
// and reports whether a new record was created.
func (s *UserService) upsert(ctx context.Context, userID string, fn func(a *models.Attendee, fresh bool)) (bool, error) {
	existing, err := s.users.Get(ctx, userID)
	if err == nil {
		fn(existing, false)
		return false, s.users.Update(ctx, existing)
	}
	if !errors.Is(err, status.ErrAttendeeNotFound) {
		return false, err
	}

	a := &models.Attendee{UserID: userID, CreatedAt: s.now()}
	fn(a, true)
	return true, s.users.Create(ctx, a)
}

func (s *UserService) finishImport(ctx context.Context, source string, result *models.ImportResult) {
	logging.Info().
		Str("source", source).
		Int("total", result.Total).
		Int("created", result.Created).
		Int("updated", result.Updated).
		Int("skipped", result.Skipped).
		Msg("import completed")

	s.logs.Record(ctx, LevelInfo, "import", fmt.Sprintf("%s import completed", source), map[string]any{
		"total":   result.Total,
		"created": result.Created,
		"updated": result.Updated,
		"skipped": result.Skipped,
	})
}

func newImportResult(total int) *models.ImportResult {
	return &models.ImportResult{Total: total, Errors: []models.ImportError{}}
}

func countUpsert(result *models.ImportResult, created bool) {
	if created {
		result.Created++
	} else {
		result.Updated++
	}
}

func importMessage(err error) string {
	var se *status.Error
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func houseIsVIP(house string) bool {
	return strings.Contains(strings.ToUpper(strings.TrimSpace(house)), "FPT")
}

// defaultSeat is "A" plus the first digit run of the id padded to two places,
// or the row number when the id has no digits.
func defaultSeat(userID string, index int) string {
	num := digitsPattern.FindString(userID)
	if num == "" {
		num = strconv.Itoa(index + 1)
	}
	if len(num) < 2 {
		num = "0" + num
	}
	return "A" + num
}
