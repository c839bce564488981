package api

import (
	"bytes"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/splinegest/internal/collada"
	"github.com/dgallion1/splinegest/internal/export"
	"github.com/dgallion1/splinegest/internal/parser"
	"github.com/dgallion1/splinegest/internal/pipeline"
	"github.com/dgallion1/splinegest/internal/report"
	"github.com/go-chi/chi/v5"
)

// scaleParam reads ?scale=, falling back to the configured default. The
// result is clamped to collada.MinUnitScale.
func (s *Server) scaleParam(r *http.Request) (float64, error) {
	scale := s.cfg.DefaultUnitScale
	if v := r.URL.Query().Get("scale"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid scale %q", v)
		}
		scale = f
	}
	return report.ClampScale(scale), nil
}

// finishedJob resolves the job in the URL and writes an error response unless
// its splines are available.
func (s *Server) finishedJob(w http.ResponseWriter, r *http.Request) (*pipeline.Job, pipeline.JobSnapshot, bool) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return nil, pipeline.JobSnapshot{}, false
	}
	snap := job.Snapshot()
	switch {
	case !snap.Status.Terminal():
		jsonError(w, fmt.Sprintf("job is still %s", snap.Status), http.StatusConflict)
		return nil, snap, false
	case snap.Status == pipeline.StatusFailed:
		jsonError(w, "job failed", http.StatusConflict)
		return nil, snap, false
	}
	return job, snap, true
}

func (s *Server) handleJobSplines(w http.ResponseWriter, r *http.Request) {
	scale, err := s.scaleParam(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	job, snap, ok := s.finishedJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":    snap.ID,
		"supported": snap.Status != pipeline.StatusUnsupported,
		"tool":      snap.Tool,
		"scale":     scale,
		"splines":   report.Views(job.Result(), scale),
	})
}

func (s *Server) handleJobSpline(w http.ResponseWriter, r *http.Request) {
	scale, err := s.scaleParam(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonError(w, "index must be an integer", http.StatusBadRequest)
		return
	}
	job, _, ok := s.finishedJob(w, r)
	if !ok {
		return
	}
	g, ok := collada.Select(job.Result(), index)
	if !ok {
		jsonError(w, fmt.Sprintf("no spline at index %d", index), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, report.ViewOf(index, g, scale))
}

func (s *Server) handleJobReport(w http.ResponseWriter, r *http.Request) {
	scale, err := s.scaleParam(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	job, snap, ok := s.finishedJob(w, r)
	if !ok {
		return
	}
	title := snap.Title
	if title == "" {
		title = snap.Filename
	}
	out, err := report.HTML(title, job.Result(), scale)
	if err != nil {
		s.log.Error("report render failed", "job_id", snap.ID, "error", err)
		jsonError(w, "failed to render report", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(out)
}

// handleJobGLTF serves the job's splines as a binary glTF download.
func (s *Server) handleJobGLTF(w http.ResponseWriter, r *http.Request) {
	scale, err := s.scaleParam(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	job, snap, ok := s.finishedJob(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := export.WriteGLB(&buf, report.Views(job.Result(), scale)); err != nil {
		s.log.Error("gltf export failed", "job_id", snap.ID, "error", err)
		jsonError(w, "failed to export gltf", http.StatusInternalServerError)
		return
	}
	name := strings.TrimSuffix(snap.Filename, filepath.Ext(snap.Filename)) + ".glb"
	w.Header().Set("Content-Type", "model/gltf-binary")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(buf.Bytes())
}

// handleParse extracts splines from a raw XML body without queueing a job.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	scale, err := s.scaleParam(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	doc, err := (&parser.XMLParser{}).Parse(r.Body, "request body")
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var tool collada.Tool
	im := collada.Importer{OnTool: func(t collada.Tool, _ string) { tool = t }}
	geoms, err := im.Import(doc)
	switch {
	case collada.IsSoft(err):
		writeJSON(w, http.StatusOK, map[string]any{
			"supported": false,
			"tool":      tool,
			"splines":   []report.SplineView{},
		})
	case err != nil:
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		writeJSON(w, http.StatusOK, map[string]any{
			"supported": true,
			"tool":      tool,
			"scale":     scale,
			"splines":   report.Views(geoms, scale),
		})
	}
}
