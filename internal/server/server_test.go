package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xtding233/dicepool-tables/internal/dice"
	"github.com/xtding233/dicepool-tables/internal/montecarlo"
	"github.com/xtding233/dicepool-tables/internal/stats"
	"github.com/xtding233/dicepool-tables/internal/table"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func writeDoc(t *testing.T, path string) {
	t.Helper()
	entry := func(pool, keep int, mode dice.ExplosionMode, s stats.Statistics, c stats.Cumulative) table.Entry {
		cfg, err := dice.NewRollConfig(pool, keep, mode, false)
		require.NoError(t, err)
		return table.NewEntry(cfg, s, c)
	}
	doc := table.NewDocument("", time.Now(), montecarlo.DefaultTrials, []table.Entry{
		entry(5, 3, dice.ExplodeOnMax,
			stats.Statistics{Mean: 24.1, StdDev: 7.5, Median: 23, P25: 18, P75: 29, Min: 3, Max: 90},
			stats.Cumulative{0: 1, 3: 1, 20: 0.6, 25: 0.4, 40: 0.05}),
		entry(10, 5, dice.ExplodeOnMax,
			stats.Statistics{Mean: 38.2, StdDev: 9.1, Median: 37, P25: 31, P75: 44, Min: 5, Max: 120},
			stats.Cumulative{0: 1, 5: 1, 30: 0.7, 40: 0.3}),
		entry(10, 10, dice.ExplodeOnTopTwo,
			stats.Statistics{Mean: 71.4, StdDev: 14.8, Median: 69, P25: 61, P75: 80, Min: 10, Max: 210},
			stats.Cumulative{0: 1, 10: 1, 60: 0.5, 100: 0.01}),
	})
	_, err := table.WriteFile(path, doc)
	require.NoError(t, err)
}

func newServer(t *testing.T) (*Server, string) {
	t.Helper()
	l, _ := test.NewNullLogger()
	path := filepath.Join(t.TempDir(), "tables.json")
	return New(path, logrus.NewEntry(l)), path
}

func get(t *testing.T, h http.Handler, url string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	if out != nil {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec.Code
}

func healthStatus(t *testing.T, s *Server) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.Health().Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestNoTable(t *testing.T) {
	s, _ := newServer(t)
	assert.Error(t, s.Reload())
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, healthStatus(t, s))

	var e errResp
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s.Handler(), "/meta", &e))
	assert.Equal(t, ErrNoTable.Error(), e.Err)
}

func TestProbability(t *testing.T) {
	s, path := newServer(t)
	writeDoc(t, path)
	require.NoError(t, s.Reload())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, healthStatus(t, s))
	h := s.Handler()

	var p probabilityResp
	require.Equal(t, http.StatusOK, get(t, h, "/probability?roll=5&keep=3&mode=skilled&tn=35&modifier=10", &p))
	assert.Equal(t, "5k3 s", p.Label)
	assert.Equal(t, 25, p.EffectiveTN)
	assert.Equal(t, 0.4, p.SuccessRate)
	assert.Equal(t, 23, p.Median)

	// mode defaults to skilled; between thresholds uses the lower one
	require.Equal(t, http.StatusOK, get(t, h, "/probability?roll=5&keep=3&tn=30", &p))
	assert.Equal(t, 0.4, p.SuccessRate)

	var e errResp
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/probability?roll=5&keep=3", &e))
	assert.Equal(t, "missing param tn", e.Err)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/probability?roll=5&keep=6&tn=1", &e))
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/probability?roll=x&keep=1&tn=1", &e))
	assert.Equal(t, "invalid roll", e.Err)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/probability?roll=5&keep=3&mode=m&tn=1", &e))
}

func exprURL(path, expr string, extra ...string) string {
	v := url.Values{"expr": {expr}}
	for i := 0; i+1 < len(extra); i += 2 {
		v.Set(extra[i], extra[i+1])
	}
	return path + "?" + v.Encode()
}

func TestProbabilityExpression(t *testing.T) {
	s, path := newServer(t)
	writeDoc(t, path)
	require.NoError(t, s.Reload())
	h := s.Handler()

	cases := []struct {
		name    string
		url     string
		label   string
		tn      int
		p       float64
		tenDice *tenDiceResp
	}{
		{"params ten dice", "/probability?roll=12&keep=4&tn=30", "10k5 s", 30, 0.7,
			&tenDiceResp{From: "12k4", To: "10k5"}},
		{"expr ten dice", exprURL("/probability", "12k4 tn:30"), "10k5 s", 30, 0.7,
			&tenDiceResp{From: "12k4", To: "10k5"}},
		{"ten dice bonus and raises", exprURL("/probability", "14k12 m tn:100 r:2"), "10k10 m", 98, 0.5,
			&tenDiceResp{From: "14k12", To: "10k10", Bonus: 12}},
		{"expr modifier and param modifier", exprURL("/probability", "5k3+5 tn:25 r:2", "modifier", "5"), "5k3 s", 25, 0.4, nil},
		{"raises param", exprURL("/probability", "5k3 tn:15", "raises", "2"), "5k3 s", 25, 0.4, nil},
		{"raises on plain params", "/probability?roll=5&keep=3&tn=20&raises=4", "5k3 s", 40, 0.05, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p probabilityResp
			require.Equal(t, http.StatusOK, get(t, h, tc.url, &p))
			assert.Equal(t, tc.label, p.Label)
			assert.Equal(t, tc.tn, p.EffectiveTN)
			assert.Equal(t, tc.p, p.SuccessRate)
			assert.Equal(t, tc.tenDice, p.TenDice)
		})
	}

	var e errResp
	assert.Equal(t, http.StatusBadRequest, get(t, h, exprURL("/probability", "5d3 tn:10"), &e))
	assert.Contains(t, e.Err, "invalid roll expression")
	assert.Equal(t, http.StatusBadRequest, get(t, h, exprURL("/probability", "5k3"), &e))
	assert.Equal(t, "missing param tn", e.Err)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/probability?roll=5&keep=3&tn=0", &e))
	assert.Equal(t, "invalid tn", e.Err)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/probability?roll=5&keep=3&tn=5&raises=-1", &e))
	assert.Equal(t, "invalid raises", e.Err)
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/probability?roll=101&keep=3&tn=5", &e))
	assert.Contains(t, e.Err, "roll 101 outside 1..100")
}

func TestRoll(t *testing.T) {
	s, _ := newServer(t)
	s.roller = dice.NewRoller(dice.NewSeededRNG(7))
	h := s.Handler()

	var r rollResp
	require.Equal(t, http.StatusOK, get(t, h, exprURL("/roll", "6k3+4 u tn:5"), &r))
	assert.Equal(t, "6k3+4 u tn:5", r.Expression)
	require.Len(t, r.Dice, 6)
	for i, d := range r.Dice {
		assert.False(t, d.Exploded)
		assert.GreaterOrEqual(t, d.Total, 1)
		assert.LessOrEqual(t, d.Total, 10)
		if i > 0 {
			assert.LessOrEqual(t, d.Total, r.Dice[i-1].Total)
		}
	}
	assert.Equal(t, []int{r.Dice[0].Total, r.Dice[1].Total, r.Dice[2].Total}, r.Kept)
	assert.Equal(t, r.Kept[0]+r.Kept[1]+r.Kept[2]+4, r.Total)
	require.NotNil(t, r.Success)
	assert.True(t, *r.Success)
	assert.Equal(t, (r.Total-5)/5, r.Raises)

	// unskilled 2k1 tops out at 10
	r = rollResp{}
	require.Equal(t, http.StatusOK, get(t, h, exprURL("/roll", "2k1 u tn:20 r:1"), &r))
	assert.Equal(t, 25, r.TargetNumber)
	assert.Equal(t, 1, r.CalledRaises)
	require.NotNil(t, r.Success)
	assert.False(t, *r.Success)
	assert.Zero(t, r.Raises)

	r = rollResp{}
	require.Equal(t, http.StatusOK, get(t, h, "/roll?roll=12&keep=4&mode=m&modifier=2", &r))
	assert.Equal(t, "10k5 m", r.Label)
	assert.Len(t, r.Dice, 10)
	assert.Len(t, r.Kept, 5)
	assert.Equal(t, 2, r.Modifier)
	assert.Equal(t, &tenDiceResp{From: "12k4", To: "10k5"}, r.TenDice)
	assert.Nil(t, r.Success)

	var e errResp
	assert.Equal(t, http.StatusBadRequest, get(t, h, "/roll?roll=3", &e))
	assert.Equal(t, "missing param keep", e.Err)
}

func TestRollDeterministic(t *testing.T) {
	roll := func() rollResp {
		s, _ := newServer(t)
		s.roller = dice.NewRoller(dice.NewSeededRNG(99))
		var r rollResp
		require.Equal(t, http.StatusOK, get(t, s.Handler(), exprURL("/roll", "10k5 m e"), &r))
		return r
	}
	assert.Equal(t, roll(), roll())
}

func TestTableAndMeta(t *testing.T) {
	s, path := newServer(t)
	writeDoc(t, path)
	require.NoError(t, s.Reload())
	h := s.Handler()

	var e table.Entry
	require.Equal(t, http.StatusOK, get(t, h, "/table?roll=5&keep=3&mode=s&emphasis=false", &e))
	assert.Equal(t, 0.6, e.Cumulative["20"])

	var m metaResp
	require.Equal(t, http.StatusOK, get(t, h, "/meta", &m))
	assert.Equal(t, 3, m.Tables)
	assert.Equal(t, table.FormatVersion, m.Version)
}

func TestReloadKeepsPreviousOnFailure(t *testing.T) {
	s, path := newServer(t)
	writeDoc(t, path)
	require.NoError(t, s.Reload())

	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))
	s.OnChange(path)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, healthStatus(t, s))

	var m metaResp
	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/meta", &m))
	assert.Equal(t, 3, m.Tables)
}
