package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/johnayoung/go-delta-candles/internal/collector"
	apperrors "github.com/johnayoung/go-delta-candles/internal/errors"
	"github.com/johnayoung/go-delta-candles/internal/exchange"
	"github.com/johnayoung/go-delta-candles/internal/indicators"
	"github.com/johnayoung/go-delta-candles/internal/models"
	"github.com/johnayoung/go-delta-candles/internal/storage"
)

// PipelineIntegrationTestSuite drives fetch, write, mirror and indicator
// stages against a mock Delta Exchange server.
type PipelineIntegrationTestSuite struct {
	suite.Suite
	ctx     context.Context
	server  *MockDeltaServer
	dataDir string
	now     time.Time
	start   time.Time
}

const lookback = 72 * time.Hour

// 72h of 1m candles, both ends inclusive
const expectedRows = 72*60 + 1

func TestPipelineIntegration(t *testing.T) {
	suite.Run(t, new(PipelineIntegrationTestSuite))
}

func (s *PipelineIntegrationTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.server = NewMockDeltaServer()
	s.dataDir = s.T().TempDir()
	s.now = time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	s.start = s.now.Add(-lookback)
}

func (s *PipelineIntegrationTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *PipelineIntegrationTestSuite) newOrchestrator(mirror storage.Mirror) *collector.Orchestrator {
	adapter := exchange.NewDeltaAdapter(exchange.DeltaConfig{
		BaseURL: s.server.URL,
		RetryPolicy: apperrors.RetryPolicy{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
		},
	}, nil)

	pacer, err := collector.NewRatePacer(1000)
	s.Require().NoError(err)

	orchestrator, err := collector.NewOrchestrator(collector.Config{
		Resolution: models.Resolution1m,
		Lookback:   lookback,
		Location:   time.UTC,
		Now:        func() time.Time { return s.now },
	}, adapter, pacer, storage.NewCSVWriter(s.dataDir, time.UTC, nil), mirror, nil)
	s.Require().NoError(err)
	return orchestrator
}

func (s *PipelineIntegrationTestSuite) TestFetchWritesCompleteSeries() {
	report, err := s.newOrchestrator(nil).Run(s.ctx, []string{"ETHUSD"})
	s.Require().NoError(err)
	s.Require().Len(report.Results, 1)

	result := report.Results[0]
	s.True(result.OK())
	s.Equal(expectedRows, result.Rows)
	s.Empty(result.Gaps)
	s.Zero(result.Anomalies)
	s.Equal(3, result.Stats.WindowsPlanned)
	s.Equal(filepath.Join(s.dataDir, "ETHUSD_1m_20240108_20240111.csv"), result.File)

	windows := s.server.Windows()
	s.Require().Len(windows, 3)
	s.Equal(s.start.Unix(), windows[0].Start)
	s.Equal(windows[0].End+1, windows[1].Start, "windows never overlap")
	s.Equal(s.now.Unix(), windows[2].End)

	table, err := storage.ReadTable(result.File, storage.SeriesHeader...)
	s.Require().NoError(err)
	s.Equal(expectedRows, table.Len())
	s.Equal("2024-01-08 00:00:00", table.Get(0, "datetime"))
	s.Equal("2024-01-11 00:00:00", table.Get(expectedRows-1, "datetime"))
}

func (s *PipelineIntegrationTestSuite) TestTransientFailuresAreRetried() {
	s.server.FailNext(2)

	report, err := s.newOrchestrator(nil).Run(s.ctx, []string{"ETHUSD"})
	s.Require().NoError(err)

	s.Equal(expectedRows, report.Results[0].Rows)
	s.Zero(report.Results[0].Stats.WindowsFailed)
	s.Equal(int64(5), s.server.RequestCount())
}

func (s *PipelineIntegrationTestSuite) TestRejectedSymbolDoesNotStopTheRun() {
	s.server.RejectSymbol("NOPEUSD")

	report, err := s.newOrchestrator(nil).Run(s.ctx, []string{"NOPEUSD", "ETHUSD"})
	s.Require().NoError(err)
	s.Require().Len(report.Results, 2)

	s.False(report.Results[0].OK())
	s.ErrorIs(report.Results[0].Err, collector.ErrNoData)
	s.Equal(3, report.Results[0].Stats.WindowsFailed)
	s.True(report.Results[1].OK())
	s.Equal(1, report.Succeeded())

	entries, err := os.ReadDir(s.dataDir)
	s.Require().NoError(err)
	s.Len(entries, 1, "only the successful symbol is written")
}

func (s *PipelineIntegrationTestSuite) TestMissingCandlesAreReportedNotFilled() {
	holeStart := s.start.Add(time.Hour).Unix()
	s.server.DropRange(holeStart, holeStart+600)

	report, err := s.newOrchestrator(nil).Run(s.ctx, []string{"ETHUSD"})
	s.Require().NoError(err)

	result := report.Results[0]
	s.Equal(expectedRows-10, result.Rows)
	s.Require().Len(result.Gaps, 1)
	s.Equal(10, result.MissingCandles)
	s.Equal(holeStart, result.Gaps[0].StartTime.Unix())
}

func (s *PipelineIntegrationTestSuite) TestMirrorAndIndicators() {
	mirror, err := storage.NewMirror(storage.MirrorSQLite, filepath.Join(s.dataDir, "candles.sqlite"), nil)
	s.Require().NoError(err)
	defer mirror.Close()
	s.Require().NoError(mirror.Initialize(s.ctx))

	report, err := s.newOrchestrator(mirror).Run(s.ctx, []string{"ETHUSD"})
	s.Require().NoError(err)
	s.Require().True(report.Results[0].OK())

	count, err := mirror.CountRows(s.ctx, "ETHUSD", models.Resolution1m)
	s.Require().NoError(err)
	s.Equal(expectedRows, count)

	s.Require().NoError(indicators.CheckCapabilities(s.dataDir))
	batch, err := indicators.NewEngine(s.dataDir, nil).ProcessDir(s.ctx, s.dataDir)
	s.Require().NoError(err)
	s.Empty(batch.Failures)
	s.Require().Len(batch.Summaries, 1)

	summary := batch.Summaries[0]
	s.Equal("ETHUSD", summary.Symbol)
	s.Equal(expectedRows, summary.TotalRecords)
	s.NotEmpty(summary.ADX)
	s.NotEqual("No Data", summary.RSISignal)

	consolidated, err := storage.ReadTable(summary.Output("consolidated"), indicators.ConsolidatedHeader...)
	s.Require().NoError(err)
	s.Equal(expectedRows, consolidated.Len())
	s.FileExists(filepath.Join(s.dataDir, indicators.SummaryFileName))
}
