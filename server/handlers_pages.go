package server

import (
	"context"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jrsteele09/swingsense/api"
	"github.com/jrsteele09/swingsense/logview"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// IndexHandler renders the home page
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, http.StatusOK, pageIndex, struct{ layout }{s.layout(RouteIndex)})
	}
}

// ---- Logs ----

type logEntryView struct {
	Kind       logview.Kind
	IsQuestion bool
	Lines      []template.HTML
	CreatedAt  time.Time
}

type logsPage struct {
	layout
	Entries  []logEntryView
	Question string
	Error    string
}

// loadLogs fetches questions and feedback concurrently and merges whatever
// arrived. The error is the first failure, if any.
func (s *Server) loadLogs(ctx context.Context) ([]logEntryView, error) {
	var (
		g         errgroup.Group
		questions []api.Question
		feedback  []api.FeedbackItem
	)
	g.Go(func() error {
		var err error
		questions, err = s.api.Questions.List(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		feedback, err = s.api.Feedback.List(ctx)
		return err
	})
	err := g.Wait()

	entries := logview.Merge(questions, feedback)
	views := make([]logEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, logEntryView{
			Kind:       e.Kind,
			IsQuestion: e.IsQuestion(),
			Lines:      coachText(s.sanitizer, e.Text),
			CreatedAt:  e.CreatedAt,
		})
	}
	return views, err
}

func (s *Server) renderLogs(w http.ResponseWriter, r *http.Request, status int, question, errMsg string) {
	entries, err := s.loadLogs(r.Context())
	if err != nil && errMsg == "" {
		errMsg = userMessage(err, msgLoadQuestions)
	}
	s.render(w, status, pageLogs, logsPage{
		layout:   s.layout(RouteLogs),
		Entries:  entries,
		Question: question,
		Error:    errMsg,
	})
}

// LogsPageHandler shows the merged question and feedback history
func (s *Server) LogsPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderLogs(w, r, http.StatusOK, "", "")
	}
}

// AskQuestionHandler submits a question, then shows the reloaded history
func (s *Server) AskQuestionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		question := strings.TrimSpace(r.FormValue("question"))
		if question == "" {
			redirectSuccess(w, r, RouteLogs)
			return
		}
		if err := api.ValidateQuestion(question); err != nil {
			s.renderLogs(w, r, http.StatusUnprocessableEntity, question, userMessage(err, msgSubmitQuestion))
			return
		}

		if _, err := s.api.Questions.Create(r.Context(), question); err != nil {
			s.renderLogs(w, r, http.StatusBadGateway, question, userMessage(err, msgSubmitQuestion))
			return
		}
		redirectSuccess(w, r, RouteLogs)
	}
}

// ---- Plans ----

type planView struct {
	Lines       []template.HTML
	YearsPlayed int
	Handicap    string
	Strengths   template.HTML
	Weaknesses  template.HTML
	Goals       template.HTML
	CreatedAt   time.Time
}

type planForm struct {
	YearsPlayed string
	Handicap    string
	Strengths   string
	Weaknesses  string
	Goals       string
}

type plansPage struct {
	layout
	Plan     *planView
	Form     planForm
	ShowForm bool
	Error    string
}

func (s *Server) renderPlans(w http.ResponseWriter, r *http.Request, status int, page plansPage) {
	page.layout = s.layout(RoutePlans)

	current, err := s.api.Plans.Current(r.Context())
	if err != nil && page.Error == "" {
		page.Error = userMessage(err, msgLoadPlan)
	}
	if current != nil {
		page.Plan = &planView{
			Lines:       coachText(s.sanitizer, current.Plan),
			YearsPlayed: current.YearsPlayed,
			Handicap:    strconv.FormatFloat(current.Handicap, 'f', -1, 64),
			Strengths:   plainText(s.sanitizer, current.Strengths),
			Weaknesses:  plainText(s.sanitizer, current.Weaknesses),
			Goals:       plainText(s.sanitizer, current.Goals),
			CreatedAt:   current.CreatedAt.Time,
		}
	}
	s.render(w, status, pagePlans, page)
}

// PlansPageHandler shows the current training plan
func (s *Server) PlansPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPlans(w, r, http.StatusOK, plansPage{ShowForm: r.URL.Query().Get("new") == "1"})
	}
}

// GeneratePlanHandler asks the backend for a new plan
func (s *Server) GeneratePlanHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		form := planForm{
			YearsPlayed: strings.TrimSpace(r.FormValue("years_played")),
			Handicap:    strings.TrimSpace(r.FormValue("handicap")),
			Strengths:   strings.TrimSpace(r.FormValue("strengths")),
			Weaknesses:  strings.TrimSpace(r.FormValue("weaknesses")),
			Goals:       strings.TrimSpace(r.FormValue("goals")),
		}
		page := plansPage{Form: form, ShowForm: true}

		years, yearsErr := strconv.Atoi(form.YearsPlayed)
		handicap, handicapErr := strconv.ParseFloat(form.Handicap, 64)
		if yearsErr != nil || handicapErr != nil {
			page.Error = msgInvalidPlanForm
			s.renderPlans(w, r, http.StatusUnprocessableEntity, page)
			return
		}

		req := api.PlanRequest{
			YearsPlayed: years,
			Handicap:    handicap,
			Strengths:   form.Strengths,
			Weaknesses:  form.Weaknesses,
			Goals:       form.Goals,
		}
		if err := req.Validate(); err != nil {
			page.Error = userMessage(err, msgGeneratePlan)
			s.renderPlans(w, r, http.StatusUnprocessableEntity, page)
			return
		}

		if _, err := s.api.Plans.Generate(r.Context(), req); err != nil {
			page.Error = userMessage(err, msgGeneratePlan)
			s.renderPlans(w, r, http.StatusBadGateway, page)
			return
		}
		redirectSuccess(w, r, RoutePlans)
	}
}

// ---- Resources ----

type resourceView struct {
	Title       template.HTML
	Description template.HTML
	URL         string
}

type resourcesPage struct {
	layout
	Issue       string
	HasSearched bool
	Resources   []resourceView
	Error       string
}

// ResourcesPageHandler searches resources for ?issue=
func (s *Server) ResourcesPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := resourcesPage{
			layout: s.layout(RouteResources),
			Issue:  strings.TrimSpace(r.URL.Query().Get("issue")),
		}
		if page.Issue == "" {
			s.render(w, http.StatusOK, pageResources, page)
			return
		}

		page.HasSearched = true
		list, err := s.api.Resources.Search(r.Context(), page.Issue)
		if err != nil {
			page.Error = userMessage(err, msgFetchResources)
			s.render(w, http.StatusOK, pageResources, page)
			return
		}
		for _, res := range list.Resources {
			page.Resources = append(page.Resources, resourceView{
				Title:       plainText(s.sanitizer, res.Title),
				Description: plainText(s.sanitizer, res.Description),
				URL:         externalLink(res.URL),
			})
		}
		s.render(w, http.StatusOK, pageResources, page)
	}
}

// externalLink keeps only absolute http(s) links.
func externalLink(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.String()
}

// ---- Progress ----

type progressField struct {
	Name  string
	Value string
}

type progressEntryView struct {
	Fields []progressField
}

type progressPage struct {
	layout
	Start   string
	End     string
	Entries []progressEntryView
	Message string
	Success string
	Error   string
}

func parseDay(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, value)
}

func (s *Server) renderProgress(w http.ResponseWriter, r *http.Request, status int, page progressPage) {
	page.layout = s.layout(RouteProgress)

	start, startErr := parseDay(page.Start)
	end, endErr := parseDay(page.End)
	if startErr != nil || endErr != nil {
		page.Error = "Dates must use the YYYY-MM-DD format."
		s.render(w, http.StatusBadRequest, pageProgress, page)
		return
	}

	report, err := s.api.Progress.List(r.Context(), start, end)
	if err != nil && page.Error == "" {
		page.Error = userMessage(err, msgLoadProgress)
	}
	page.Message = report.Message
	for _, item := range report.Progress {
		page.Entries = append(page.Entries, progressEntryView{Fields: progressFields(item)})
	}
	s.render(w, status, pageProgress, page)
}

func progressFields(item map[string]any) []progressField {
	fields := make([]progressField, 0, len(item))
	for name, value := range item {
		fields = append(fields, progressField{Name: name, Value: formatValue(value)})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return strings.TrimSpace(strings.ReplaceAll(fmt.Sprint(val), "\n", " "))
	}
}

// ProgressPageHandler lists progress, optionally bounded by ?start_date and ?end_date
func (s *Server) ProgressPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		s.renderProgress(w, r, http.StatusOK, progressPage{
			Start: strings.TrimSpace(q.Get("start_date")),
			End:   strings.TrimSpace(q.Get("end_date")),
		})
	}
}

// RecordProgressHandler sends every non-empty form field as a progress metric
func (s *Server) RecordProgressHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}

		data := make(map[string]any)
		for name, values := range r.PostForm {
			value := strings.TrimSpace(strings.Join(values, ","))
			if value == "" {
				continue
			}
			if n, err := strconv.ParseFloat(value, 64); err == nil {
				data[name] = n
				continue
			}
			data[name] = value
		}

		if len(data) == 0 {
			s.renderProgress(w, r, http.StatusUnprocessableEntity, progressPage{Error: "Enter at least one value to record."})
			return
		}

		receipt, err := s.api.Progress.Create(r.Context(), data)
		if err != nil {
			s.renderProgress(w, r, http.StatusBadGateway, progressPage{Error: userMessage(err, msgRecordProgress)})
			return
		}
		log.Debug().Int("fields", len(data)).Msg("progress recorded")
		s.renderProgress(w, r, http.StatusOK, progressPage{Success: receipt.Message})
	}
}

// ---- Profile ----

type profilePage struct {
	layout
	Profile *api.Profile
	Error   string
}

// ProfilePageHandler shows the backend's view of the signed in user
func (s *Server) ProfilePageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := profilePage{layout: s.layout(RouteProfile)}
		profile, err := s.api.Profile.Get(r.Context())
		if err != nil {
			page.Error = userMessage(err, msgLoadProfile)
		} else {
			page.Profile = &profile
		}
		s.render(w, http.StatusOK, pageProfile, page)
	}
}
