// Package server answers probability queries over a generated table.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/xtding233/dicepool-tables/internal/dice"
	"github.com/xtding233/dicepool-tables/internal/table"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name reported to gRPC health checks.
const ServiceName = "dicepool.Tables"

var ErrNoTable = errors.New("no probability table loaded")

// Server holds the current document and swaps it on reload.
type Server struct {
	mu     sync.RWMutex
	doc    *table.Document
	path   string
	health *health.Server
	log    *logrus.Entry

	rollMu sync.Mutex
	roller *dice.Roller
}

func New(path string, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	h := health.NewServer()
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &Server{path: path, health: h, log: log, roller: dice.NewRoller(nil)}
}

// Health is the gRPC health service tracking whether a table is loaded.
func (s *Server) Health() *health.Server { return s.health }

// Reload reads and validates the artifact. On failure the previous
// document stays in service.
func (s *Server) Reload() error {
	doc, err := table.LoadFile(s.path)
	if err == nil {
		err = doc.Validate()
	}
	if err != nil {
		s.mu.RLock()
		loaded := s.doc != nil
		s.mu.RUnlock()
		if !loaded {
			s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		}
		return err
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	s.log.WithFields(logrus.Fields{
		"version":      doc.Version,
		"generated_at": doc.GeneratedAt,
		"tables":       len(doc.Tables),
	}).Info("probability table loaded")
	return nil
}

// OnChange is a watch callback that reloads and logs failures.
func (s *Server) OnChange(path string) {
	if err := s.Reload(); err != nil {
		s.log.WithError(err).WithField("path", path).Warn("reload failed; keeping previous table")
	}
}

func (s *Server) current() *table.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Handler routes the HTTP API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /probability", s.handleProbability)
	mux.HandleFunc("GET /table", s.handleTable)
	mux.HandleFunc("GET /meta", s.handleMeta)
	mux.HandleFunc("GET /roll", s.handleRoll)
	return mux
}

type tenDiceResp struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Bonus int    `json:"bonus"`
}

type probabilityResp struct {
	Expression   string       `json:"expression"`
	Label        string       `json:"label"`
	SuccessRate  float64      `json:"success_rate"`
	EffectiveTN  int          `json:"effective_tn"`
	CalledRaises int          `json:"called_raises"`
	Modifier     int          `json:"modifier"`
	TenDice      *tenDiceResp `json:"ten_dice_rule,omitempty"`
	Mean         float64      `json:"mean"`
	StdDev       float64      `json:"stddev"`
	Median       int          `json:"median"`
}

type dieResp struct {
	Total    int  `json:"total"`
	Exploded bool `json:"exploded,omitempty"`
}

type rollResp struct {
	Expression   string       `json:"expression"`
	Label        string       `json:"label"`
	Dice         []dieResp    `json:"dice"`
	Kept         []int        `json:"kept"`
	Modifier     int          `json:"modifier"`
	Total        int          `json:"total"`
	TenDice      *tenDiceResp `json:"ten_dice_rule,omitempty"`
	TargetNumber int          `json:"tn,omitempty"`
	CalledRaises int          `json:"called_raises,omitempty"`
	Success      *bool        `json:"success,omitempty"`
	Raises       int          `json:"raises,omitempty"`
}

type metaResp struct {
	Version           string  `json:"version"`
	GeneratedAt       string  `json:"generated_at"`
	ProbabilityCutoff float64 `json:"probability_cutoff"`
	Tables            int     `json:"tables"`
}

type errResp struct {
	Err string `json:"err"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Err: msg})
}

func parseInt(r *http.Request, key string) (int, bool, string) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, false, ""
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, "invalid " + key
	}
	return v, true, ""
}

func parseBool(r *http.Request, key string) (bool, string) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return false, ""
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, "invalid " + key
	}
	return v, ""
}

// parseExpression reads expr, or roll, keep, mode and emphasis when expr is
// absent. tn and raises fill in what expr leaves out; modifier adds to it.
func parseExpression(r *http.Request) (dice.Expression, dice.RollConfig, string) {
	var e dice.Expression
	if s := r.URL.Query().Get("expr"); s != "" {
		var err error
		if e, err = dice.ParseExpression(s); err != nil {
			return e, dice.RollConfig{}, err.Error()
		}
	} else {
		roll, ok, msg := parseInt(r, "roll")
		if !ok {
			if msg == "" {
				msg = "missing param roll"
			}
			return e, dice.RollConfig{}, msg
		}
		keep, ok, msg := parseInt(r, "keep")
		if !ok {
			if msg == "" {
				msg = "missing param keep"
			}
			return e, dice.RollConfig{}, msg
		}
		mode, err := dice.ParseExplosionMode(r.URL.Query().Get("mode"))
		if err != nil {
			return e, dice.RollConfig{}, err.Error()
		}
		emphasis, msg := parseBool(r, "emphasis")
		if msg != "" {
			return e, dice.RollConfig{}, msg
		}
		e = dice.Expression{Roll: roll, Keep: keep, Mode: mode, Emphasis: emphasis}
	}

	tn, ok, msg := parseInt(r, "tn")
	if msg != "" || (ok && tn < 1) {
		return e, dice.RollConfig{}, "invalid tn"
	}
	if ok && e.TargetNumber == 0 {
		e.TargetNumber = tn
	}
	raises, ok, msg := parseInt(r, "raises")
	if msg != "" || raises < 0 {
		return e, dice.RollConfig{}, "invalid raises"
	}
	if ok && e.CalledRaises == 0 {
		e.CalledRaises = raises
	}
	mod, _, msg := parseInt(r, "modifier")
	if msg != "" {
		return e, dice.RollConfig{}, msg
	}
	e.Modifier += mod

	if err := e.Validate(); err != nil {
		return e, dice.RollConfig{}, err.Error()
	}
	cfg, err := e.Config()
	if err != nil {
		return e, dice.RollConfig{}, err.Error()
	}
	return e, cfg, ""
}

func tenDice(e dice.Expression, cfg dice.RollConfig) *tenDiceResp {
	t := e.TenDice()
	if !t.Applied {
		return nil
	}
	return &tenDiceResp{
		From:  fmt.Sprintf("%dk%d", e.Roll, e.Keep),
		To:    fmt.Sprintf("%dk%d", cfg.PoolSize, cfg.KeepCount),
		Bonus: t.Bonus,
	}
}

func (s *Server) handleProbability(w http.ResponseWriter, r *http.Request) {
	doc := s.current()
	if doc == nil {
		writeErr(w, http.StatusServiceUnavailable, ErrNoTable.Error())
		return
	}
	e, cfg, msg := parseExpression(r)
	if msg != "" {
		writeErr(w, http.StatusBadRequest, msg)
		return
	}
	if e.TargetNumber == 0 {
		writeErr(w, http.StatusBadRequest, "missing param tn")
		return
	}

	a, err := doc.Answer(table.Query{
		Config:       cfg,
		TargetNumber: e.TargetNumber,
		CalledRaises: e.CalledRaises,
		Modifier:     e.TotalModifier(),
	})
	if errors.Is(err, table.ErrNotFound) {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, probabilityResp{
		Expression:   e.String(),
		Label:        cfg.Label(),
		SuccessRate:  a.SuccessRate,
		EffectiveTN:  a.EffectiveTN,
		CalledRaises: e.CalledRaises,
		Modifier:     e.TotalModifier(),
		TenDice:      tenDice(e, cfg),
		Mean:         a.Entry.Statistics.Mean,
		StdDev:       a.Entry.Statistics.StdDev,
		Median:       a.Entry.Statistics.Median,
	})
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	doc := s.current()
	if doc == nil {
		writeErr(w, http.StatusServiceUnavailable, ErrNoTable.Error())
		return
	}
	_, cfg, msg := parseExpression(r)
	if msg != "" {
		writeErr(w, http.StatusBadRequest, msg)
		return
	}
	e, err := doc.Lookup(cfg)
	if err != nil {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	doc := s.current()
	if doc == nil {
		writeErr(w, http.StatusServiceUnavailable, ErrNoTable.Error())
		return
	}
	writeJSON(w, http.StatusOK, metaResp{
		Version:           doc.Version,
		GeneratedAt:       doc.GeneratedAt,
		ProbabilityCutoff: doc.ProbabilityCutoff,
		Tables:            len(doc.Tables),
	})
}

// handleRoll rolls the expression once. It needs no table.
func (s *Server) handleRoll(w http.ResponseWriter, r *http.Request) {
	e, cfg, msg := parseExpression(r)
	if msg != "" {
		writeErr(w, http.StatusBadRequest, msg)
		return
	}

	s.rollMu.Lock()
	pool, err := s.roller.Pool(cfg)
	out := make([]dieResp, len(pool))
	for i, d := range pool {
		out[i] = dieResp{Total: d.Total, Exploded: d.Exploded}
	}
	s.rollMu.Unlock()
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}

	kept := lo.Map(out[:cfg.KeepCount], func(d dieResp, _ int) int { return d.Total })
	resp := rollResp{
		Expression: e.String(),
		Label:      cfg.Label(),
		Dice:       out,
		Kept:       kept,
		Modifier:   e.TotalModifier(),
		Total:      lo.Sum(kept) + e.TotalModifier(),
		TenDice:    tenDice(e, cfg),
	}
	if e.TargetNumber > 0 {
		tn := e.EffectiveTN()
		hit := resp.Total >= tn
		resp.TargetNumber = tn
		resp.CalledRaises = e.CalledRaises
		resp.Success = &hit
		if hit {
			resp.Raises = dice.AchievedRaises(resp.Total, e.TargetNumber)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
