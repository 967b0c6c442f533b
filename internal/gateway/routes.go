package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flemzord/cronos/internal/job"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", g.handleHealth())
	r.Get("/status", g.handleStatus())
	r.Route("/api", func(r chi.Router) {
		r.Get("/jobs", g.handleListJobs())
		r.Get("/jobs/{id}/runs", g.handleListRuns())
		r.Get("/runs/{id}/log", g.handleRunLog())
	})

	if g.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(g.metrics.Registry, promhttp.HandlerOpts{}))
	}

	return r
}

func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// statusResponse is the /status payload.
type statusResponse struct {
	Uptime  string `json:"uptime"`
	Jobs    int    `json:"jobs"`
	Enabled int    `json:"enabled"`
	Running int    `json:"running"`
}

func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		jobs := g.jobs.List()
		resp := statusResponse{
			Uptime: time.Since(g.started).Round(time.Second).String(),
			Jobs:   len(jobs),
		}
		for _, j := range jobs {
			if j.Enabled {
				resp.Enabled++
			}
			if g.jobs.Running(j.ID) {
				resp.Running++
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// jobView is a job enriched with live scheduling state.
type jobView struct {
	job.Job
	NextRun *time.Time `json:"nextRun,omitempty"`
	Running bool       `json:"running"`
}

func (g *Gateway) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		jobs := g.jobs.List()
		views := make([]jobView, 0, len(jobs))
		for _, j := range jobs {
			v := jobView{Job: j, Running: g.jobs.Running(j.ID)}
			if next, ok := g.jobs.NextFire(j.ID); ok {
				v.NextRun = &next
			}
			views = append(views, v)
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func (g *Gateway) handleListRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := g.jobs.ListRuns(chi.URLParam(r, "id"))
		if err != nil {
			g.logger.Error("gateway: listing runs failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		if runs == nil {
			runs = []job.RunRecord{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

// runLogResponse is the /api/runs/{id}/log payload.
type runLogResponse struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

func (g *Gateway) handleRunLog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stdout, stderr := g.jobs.ReadRunLog(chi.URLParam(r, "id"))
		writeJSON(w, http.StatusOK, runLogResponse{Stdout: stdout, Stderr: stderr})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
