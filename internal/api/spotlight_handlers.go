package api

import (
	"context"
	"html/template"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/spotlightapp/spotlight-server/internal/domain"
	"github.com/spotlightapp/spotlight-server/internal/navigation"
	"github.com/spotlightapp/spotlight-server/internal/session"
	"github.com/spotlightapp/spotlight-server/internal/video"
)

const sessionsPath = "/api/v1/spotlight/sessions"

func (s *Server) registerSpotlightRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createSession",
		Method:        http.MethodPost,
		Path:          sessionsPath,
		Summary:       "Open a carousel session",
		Description:   "Selects items, builds the slides and returns them for the first paint. Enrichment arrives on the event stream.",
		Tags:          []string{"Spotlight"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        sessionsPath + "/{id}",
		Summary:     "Get session state",
		Tags:        []string{"Spotlight"},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteSession",
		Method:        http.MethodDelete,
		Path:          sessionsPath + "/{id}",
		Summary:       "Tear a session down",
		Tags:          []string{"Spotlight"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "refreshSession",
		Method:      http.MethodPost,
		Path:        sessionsPath + "/{id}/refresh",
		Summary:     "Re-select items and rebuild the slides",
		Tags:        []string{"Spotlight"},
	}, s.handleRefreshSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "sessionInput",
		Method:      http.MethodPost,
		Path:        sessionsPath + "/{id}/input",
		Summary:     "Apply a navigation or hover event",
		Tags:        []string{"Spotlight"},
	}, s.handleInput)

	huma.Register(s.api, huma.Operation{
		OperationID:   "playerReport",
		Method:        http.MethodPost,
		Path:          sessionsPath + "/{id}/players/{key}",
		Summary:       "Report a player state change",
		Tags:          []string{"Spotlight"},
		DefaultStatus: http.StatusNoContent,
	}, s.handlePlayerReport)

	huma.Register(s.api, huma.Operation{
		OperationID: "setVideo",
		Method:      http.MethodPost,
		Path:        sessionsPath + "/{id}/video",
		Summary:     "Set the global mute and pause toggles",
		Tags:        []string{"Spotlight"},
	}, s.handleSetVideo)

	huma.Register(s.api, huma.Operation{
		OperationID: "navigate",
		Method:      http.MethodGet,
		Path:        sessionsPath + "/{id}/navigate/{itemID}",
		Summary:     "Get the directive that opens or plays an item",
		Tags:        []string{"Spotlight"},
	}, s.handleNavigate)
}

// ClientConfig is the widget configuration the renderer needs.
type ClientConfig struct {
	AutoplayIntervalMs int64             `json:"autoplay_interval_ms" doc:"Autoplay interval in milliseconds"`
	TransitionMs       int64             `json:"transition_ms" doc:"Slide transition duration in milliseconds"`
	MarginTop          string            `json:"margin_top,omitempty" doc:"CSS margin above the widget"`
	HighlightColor     string            `json:"highlight_color,omitempty" doc:"Accent color"`
	Video              ClientVideoConfig `json:"video"`
}

// ClientVideoConfig is the trailer part of ClientConfig.
type ClientVideoConfig struct {
	Enabled bool   `json:"enabled"`
	Muted   bool   `json:"muted"`
	Volume  int    `json:"volume" doc:"0..100"`
	Quality string `json:"quality,omitempty" doc:"YouTube playback quality hint"`
}

// CapabilitiesRequest lists the host entry points the browser found.
type CapabilitiesRequest struct {
	AppRouter       bool   `json:"app_router,omitempty"`
	Dashboard       bool   `json:"dashboard,omitempty"`
	Page            bool   `json:"page,omitempty"`
	Require         bool   `json:"require,omitempty"`
	PlaybackManager bool   `json:"playback_manager,omitempty"`
	ServerID        string `json:"server_id,omitempty" doc:"Server id reported by the browser's api client"`
}

// CreateSessionRequest is the body of a session open.
type CreateSessionRequest struct {
	SavedIndex   int                 `json:"saved_index,omitempty" validate:"gte=0" doc:"Real index to restore, 1-based"`
	Capabilities CapabilitiesRequest `json:"capabilities,omitempty"`
}

// CreateSessionInput wraps the create request for Huma.
type CreateSessionInput struct {
	UserAgent string               `header:"User-Agent"`
	Body      CreateSessionRequest `required:"false"`
}

// SessionResponse is a freshly built carousel.
type SessionResponse struct {
	SessionID string              `json:"session_id" doc:"Session id"`
	Rendered  bool                `json:"rendered" doc:"False when the host returned no items"`
	Config    ClientConfig        `json:"config"`
	Container template.HTML       `json:"container,omitempty" doc:"The whole widget, positioned on the current slide"`
	Slides    []session.SlideView `json:"slides"`
}

// SessionOutput wraps the session response for Huma.
type SessionOutput struct {
	Body SessionResponse
}

func (s *Server) handleCreateSession(ctx context.Context, input *CreateSessionInput) (*SessionOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, toHumaError(err)
	}
	caps := input.Body.Capabilities
	sess, err := s.sessions.Create(ctx, session.ClientInfo{
		UserAgent:  input.UserAgent,
		SavedIndex: input.Body.SavedIndex,
		Capabilities: navigation.Capabilities{
			AppRouter:        caps.AppRouter,
			Dashboard:        caps.Dashboard,
			Page:             caps.Page,
			Require:          caps.Require,
			PlaybackManager:  caps.PlaybackManager,
			ReportedServerID: caps.ServerID,
		},
	})
	if err != nil {
		return nil, toHumaError(err)
	}
	return &SessionOutput{Body: s.sessionResponse(sess, sess.Views())}, nil
}

func (s *Server) sessionResponse(sess *session.Session, views []session.SlideView) SessionResponse {
	container, err := sess.Carousel()
	if err != nil {
		s.logger.Warn("carousel render failed", "session_id", sess.ID, "error", err)
	}
	return SessionResponse{
		SessionID: sess.ID,
		Rendered:  sess.Rendered(),
		Config:    s.opts.Client,
		Container: container,
		Slides:    views,
	}
}

// SessionPathInput identifies a session.
type SessionPathInput struct {
	ID string `path:"id" doc:"Session id"`
}

// StateOutput wraps the session state for Huma.
type StateOutput struct {
	Body session.State
}

func (s *Server) handleGetSession(_ context.Context, input *SessionPathInput) (*StateOutput, error) {
	sess, err := s.sessions.Get(input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &StateOutput{Body: sess.State()}, nil
}

func (s *Server) handleDeleteSession(_ context.Context, input *SessionPathInput) (*struct{}, error) {
	if err := s.sessions.Close(input.ID); err != nil {
		return nil, toHumaError(err)
	}
	return nil, nil
}

func (s *Server) handleRefreshSession(ctx context.Context, input *SessionPathInput) (*SessionOutput, error) {
	sess, err := s.sessions.Get(input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	views := sess.Refresh(ctx)
	return &SessionOutput{Body: s.sessionResponse(sess, views)}, nil
}

// InputRequest is a user action on the carousel.
type InputRequest struct {
	Action string `json:"action" enum:"next,prev,goto,hover_enter,hover_leave" validate:"required,oneof=next prev goto hover_enter hover_leave" doc:"User action"`
	Index  int    `json:"index,omitempty" validate:"required_if=Action goto" doc:"Real slide index for goto, 1-based"`
}

// InputInput wraps the input request for Huma.
type InputInput struct {
	ID   string `path:"id" doc:"Session id"`
	Body InputRequest
}

func (s *Server) handleInput(_ context.Context, input *InputInput) (*StateOutput, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, toHumaError(err)
	}
	sess, err := s.sessions.Get(input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	if err := sess.Input(input.Body.Action, input.Body.Index); err != nil {
		return nil, toHumaError(err)
	}
	return &StateOutput{Body: sess.State()}, nil
}

// PlayerReportRequest is what a browser player observed.
type PlayerReportRequest struct {
	State    string  `json:"state" enum:"started,ended,position,blocked,error" validate:"required,oneof=started ended position blocked error" doc:"Player state"`
	Position float64 `json:"position,omitempty" validate:"gte=0" doc:"Playback position in seconds"`
}

// PlayerReportInput wraps the player report for Huma.
type PlayerReportInput struct {
	ID   string `path:"id" doc:"Session id"`
	Key  string `path:"key" doc:"Player key"`
	Body PlayerReportRequest
}

func (s *Server) handlePlayerReport(_ context.Context, input *PlayerReportInput) (*struct{}, error) {
	if err := s.validator.Validate(&input.Body); err != nil {
		return nil, toHumaError(err)
	}
	sess, err := s.sessions.Get(input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	if err := sess.PlayerEvent(domain.PlayerKey(input.Key), input.Body.State, input.Body.Position); err != nil {
		return nil, toHumaError(err)
	}
	return nil, nil
}

// VideoRequest sets the global toggles; omitted fields are unchanged.
type VideoRequest struct {
	Muted  *bool `json:"muted,omitempty"`
	Paused *bool `json:"paused,omitempty"`
}

// VideoInput wraps the video request for Huma.
type VideoInput struct {
	ID   string `path:"id" doc:"Session id"`
	Body VideoRequest
}

// VideoOutput wraps the video state for Huma.
type VideoOutput struct {
	Body video.PlaybackState
}

func (s *Server) handleSetVideo(_ context.Context, input *VideoInput) (*VideoOutput, error) {
	sess, err := s.sessions.Get(input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &VideoOutput{Body: sess.SetVideo(input.Body.Muted, input.Body.Paused)}, nil
}

// NavigateInput identifies the item to open.
type NavigateInput struct {
	ID     string `path:"id" doc:"Session id"`
	ItemID string `path:"itemID" doc:"Host item id"`
	Action string `query:"action" enum:"show,play" default:"show" doc:"Open the detail page or start playback"`
}

// NavigateOutput wraps the directive for Huma.
type NavigateOutput struct {
	Body navigation.Directive
}

func (s *Server) handleNavigate(_ context.Context, input *NavigateInput) (*NavigateOutput, error) {
	sess, err := s.sessions.Get(input.ID)
	if err != nil {
		return nil, toHumaError(err)
	}
	return &NavigateOutput{Body: sess.Navigate(input.ItemID, navigation.Action(input.Action))}, nil
}
