package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/swingsense/internal/errors"
)

type QuestionsService struct {
	client *Client
}

func (s *QuestionsService) List(ctx context.Context) ([]Question, error) {
	var out []Question
	err := s.client.do(ctx, call{group: "questions", op: "list", method: http.MethodGet, path: "/questions/questions/"}, &out)
	return out, err
}

func (s *QuestionsService) Create(ctx context.Context, question string) (CreatedQuestion, error) {
	var out CreatedQuestion
	err := s.client.do(ctx, call{
		group:  "questions",
		op:     "create",
		method: http.MethodPost,
		path:   "/questions/questions/",
		body:   map[string]string{"question": question},
	}, &out)
	return out, err
}

type FeedbackService struct {
	client *Client
}

func (s *FeedbackService) List(ctx context.Context) ([]FeedbackItem, error) {
	var out []FeedbackItem
	err := s.client.do(ctx, call{group: "feedback", op: "list", method: http.MethodGet, path: "/questions/feedback/"}, &out)
	return out, err
}

type PlansService struct {
	client *Client
}

func (s *PlansService) Generate(ctx context.Context, req PlanRequest) (GeneratedPlan, error) {
	var out GeneratedPlan
	err := s.client.do(ctx, call{group: "plans", op: "generate", method: http.MethodPost, path: "/plans/generate", body: req}, &out)
	return out, err
}

// Current returns the latest plan, or nil when the user has none yet.
func (s *PlansService) Current(ctx context.Context) (*CurrentPlan, error) {
	var raw json.RawMessage
	if err := s.client.do(ctx, call{group: "plans", op: "current", method: http.MethodGet, path: "/plans/current"}, &raw); err != nil {
		return nil, err
	}

	var probe struct {
		Plan *string `json:"plan"`
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("plans.current: %w: %v", apperrors.ErrDecode, err)
	}
	if probe.Plan == nil {
		return nil, nil
	}

	var plan CurrentPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		return nil, fmt.Errorf("plans.current: %w: %v", apperrors.ErrDecode, err)
	}
	return &plan, nil
}

type ResourcesService struct {
	client *Client
}

// Search asks the backend for resources about issue. The backend answers 400
// when issue is blank; that is reported as an *HTTPError like any other.
func (s *ResourcesService) Search(ctx context.Context, issue string) (ResourceList, error) {
	var out ResourceList
	err := s.client.do(ctx, call{
		group:  "resources",
		op:     "search",
		method: http.MethodGet,
		path:   "/resources/",
		query:  url.Values{"issue": []string{issue}},
	}, &out)
	return out, err
}

type ProgressService struct {
	client *Client
}

func (s *ProgressService) Create(ctx context.Context, data map[string]any) (ProgressReceipt, error) {
	var out ProgressReceipt
	err := s.client.do(ctx, call{group: "progress", op: "create", method: http.MethodPost, path: "/progress/", body: data}, &out)
	return out, err
}

// List returns progress between start and end. Zero times are left out of the
// query so the backend applies no bound.
func (s *ProgressService) List(ctx context.Context, start, end time.Time) (ProgressReport, error) {
	query := url.Values{}
	if d := Date(start); d != "" {
		query.Set("start_date", d)
	}
	if d := Date(end); d != "" {
		query.Set("end_date", d)
	}

	var out ProgressReport
	err := s.client.do(ctx, call{group: "progress", op: "list", method: http.MethodGet, path: "/progress/", query: query}, &out)
	return out, err
}

type ProfileService struct {
	client *Client
}

func (s *ProfileService) Get(ctx context.Context) (Profile, error) {
	var out Profile
	err := s.client.do(ctx, call{group: "profile", op: "get", method: http.MethodGet, path: "/me/"}, &out)
	return out, err
}

func (s *ProfileService) Update(ctx context.Context, fields map[string]any) (ProfileUpdate, error) {
	var out ProfileUpdate
	err := s.client.do(ctx, call{group: "profile", op: "update", method: http.MethodPut, path: "/me/", body: fields}, &out)
	return out, err
}

// normaliseText trims surrounding whitespace the way form input arrives.
func normaliseText(s string) string {
	return strings.TrimSpace(s)
}
