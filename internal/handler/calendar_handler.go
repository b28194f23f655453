package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/hisho/internal/calendar"
	"github.com/hitoshi/hisho/internal/middleware"
	"github.com/hitoshi/hisho/internal/model"
)

// CalendarServiceInterface はカレンダーハンドラーが必要とするゲートウェイのインターフェース。
type CalendarServiceInterface interface {
	// ListEvents は直近の予定を開始時刻順で返す。
	ListEvents(ctx context.Context, userID string, maxResults int64) ([]calendar.Event, error)
	// CreateEvent は予定を作成する。
	CreateEvent(ctx context.Context, userID string, spec calendar.EventSpec) (*calendar.Event, error)
}

// CalendarHandler はカレンダー操作のHTTPハンドラー。
type CalendarHandler struct {
	service CalendarServiceInterface
}

// NewCalendarHandler はCalendarHandlerを生成する。
func NewCalendarHandler(service CalendarServiceInterface) *CalendarHandler {
	return &CalendarHandler{
		service: service,
	}
}

// createEventRequest は予定作成リクエストのボディ。
type createEventRequest struct {
	Summary     string                  `json:"summary"`
	Description string                  `json:"description"`
	Location    string                  `json:"location"`
	Start       calendar.EventTimeInput `json:"start"`
	End         calendar.EventTimeInput `json:"end"`
	Attendees   []string                `json:"attendees"`
}

// eventListResponse は予定一覧のAPIレスポンス。
type eventListResponse struct {
	Events []calendar.Event `json:"events"`
}

// ListEvents は直近の予定一覧を返す。
// GET /api/calendar/events?max_results=N
func (h *CalendarHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var maxResults int64
	if raw := r.URL.Query().Get("max_results"); raw != "" {
		maxResults, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || maxResults < 0 {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "max_resultsには0以上の整数を指定してください。",
				Category: "validation",
				Action:   "クエリパラメータを確認してください。",
			})
			return
		}
	}

	events, err := h.service.ListEvents(r.Context(), userID, maxResults)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if events == nil {
		events = []calendar.Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(eventListResponse{Events: events})
}

// CreateEvent は予定を作成する。
// POST /api/calendar/events
func (h *CalendarHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.Summary == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "予定のタイトルが空です。",
			Category: "validation",
			Action:   "summaryを指定してください。",
		})
		return
	}
	if req.Start == (calendar.EventTimeInput{}) {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "予定の開始時刻が空です。",
			Category: "validation",
			Action:   "startを指定してください。",
		})
		return
	}

	event, err := h.service.CreateEvent(r.Context(), userID, calendar.EventSpec{
		Summary:     req.Summary,
		Description: req.Description,
		Location:    req.Location,
		Start:       req.Start,
		End:         req.End,
		Attendees:   req.Attendees,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(event)
}

// SetupCalendarRoutes はカレンダー関連のルーティングを設定したchi.Routerを返す。
func SetupCalendarRoutes(service CalendarServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewCalendarHandler(service)

	r.Route("/api/calendar", func(r chi.Router) {
		r.Get("/events", h.ListEvents)
		r.Post("/events", h.CreateEvent)
	})

	return r
}
