package indicators

import (
	"path/filepath"
	"strconv"

	"github.com/johnayoung/go-delta-candles/internal/models"
	"github.com/johnayoung/go-delta-candles/internal/storage"
)

// ConsolidatedDir holds the all-indicator table of every input file.
const ConsolidatedDir = "consolidated"

// tableSpec describes one per-indicator output table.
type tableSpec struct {
	Key    string
	Dir    string
	Suffix string
	Header []string
	Row    func(f *Frame, i int) []string
}

func num(v models.Value) string {
	return v.Format(-1)
}

func stamp(f *Frame, i int) string {
	return f.Bars[i].Time.Format(storage.DateTimeLayout)
}

var indicatorTables = []tableSpec{
	{
		Key: "rsi", Dir: "RSI", Suffix: "_RSI14.csv",
		Header: []string{"datetime", "close", "RSI_14", "RSI_Signal", "RSI_Above_50", "RSI_Momentum"},
		Row: func(f *Frame, i int) []string {
			return []string{stamp(f, i), num(f.Bars[i].Close), num(f.RSI[i]), ClassifyRSI(f.RSI[i]).String(),
				pyBool(RSIAboveMidline(f.RSI[i])), num(f.RSIMomentum[i])}
		},
	},
	{
		Key: "sma", Dir: "SMA50", Suffix: "_SMA50.csv",
		Header: []string{"datetime", "close", "SMA_50", "Price_vs_SMA", "SMA_Trend"},
		Row: func(f *Frame, i int) []string {
			return []string{stamp(f, i), num(f.Bars[i].Close), num(f.SMA[i]),
				CompareToReference(f.Bars[i].Close, f.SMA[i]).String(), ClassifySlope(f.SMAChange[i]).String()}
		},
	},
	{
		Key: "ema_cross", Dir: "EMA_CROSSOVER", Suffix: "_EMA_CROSSOVER.csv",
		Header: []string{"datetime", "close", "EMA_9", "EMA_21", "EMA_Cross_Signal", "EMA_9_vs_21"},
		Row: func(f *Frame, i int) []string {
			return []string{stamp(f, i), num(f.Bars[i].Close), num(f.EMAFast[i]), num(f.EMASlow[i]),
				f.EMACross[i].String(), ComparePair(f.EMAFast[i], f.EMASlow[i]).String()}
		},
	},
	{
		Key: "atr", Dir: "ATR", Suffix: "_ATR14.csv",
		Header: []string{"datetime", "close", "ATR_14"},
		Row: func(f *Frame, i int) []string {
			return []string{stamp(f, i), num(f.Bars[i].Close), num(f.ATR[i])}
		},
	},
	{
		Key: "macd", Dir: "MACD", Suffix: "_MACD.csv",
		Header: []string{"datetime", "close", "MACD", "MACD_Signal", "MACD_Hist", "MACD_Cross"},
		Row: func(f *Frame, i int) []string {
			return []string{stamp(f, i), num(f.Bars[i].Close), num(f.MACD[i]), num(f.MACDSignal[i]), num(f.MACDHist[i]),
				ClassifyMACD(f.MACD[i], f.MACDSignal[i]).String()}
		},
	},
	{
		Key: "bbands", Dir: "BBANDS", Suffix: "_BBANDS.csv",
		Header: []string{"datetime", "close", "BB_Upper", "BB_Middle", "BB_Lower", "BB_Position"},
		Row: func(f *Frame, i int) []string {
			return []string{stamp(f, i), num(f.Bars[i].Close), num(f.BBUpper[i]), num(f.BBMiddle[i]), num(f.BBLower[i]),
				ClassifyBands(f.Bars[i].Close, f.BBUpper[i], f.BBLower[i]).String()}
		},
	},
	{
		Key: "vwap", Dir: "VWAP", Suffix: "_VWAP.csv",
		Header: []string{"datetime", "close", "VWAP", "Price_vs_VWAP"},
		Row: func(f *Frame, i int) []string {
			return []string{stamp(f, i), num(f.Bars[i].Close), num(f.VWAP[i]), CompareToVWAP(f.Bars[i].Close, f.VWAP[i]).String()}
		},
	},
	{
		Key: "obv", Dir: "OBV", Suffix: "_OBV.csv",
		Header: []string{"datetime", "close", "OBV", "OBV_Change"},
		Row: func(f *Frame, i int) []string {
			return []string{stamp(f, i), num(f.Bars[i].Close), num(f.OBV[i]), ClassifyFlow(f.OBVChange[i]).String()}
		},
	},
	{
		Key: "adx", Dir: "ADX", Suffix: "_ADX.csv",
		Header: []string{"datetime", "close", "ADX", "Trend_Strength"},
		Row: func(f *Frame, i int) []string {
			return []string{stamp(f, i), num(f.Bars[i].Close), num(f.ADX[i]), ClassifyADX(f.ADX[i]).String()}
		},
	},
}

// ConsolidatedHeader is the column order of the all-indicator table.
var ConsolidatedHeader = []string{
	"datetime", "open", "high", "low", "close", "volume",
	"RSI_14", "SMA_50", "EMA_9", "EMA_21", "EMA_Cross_Signal", "ATR_14",
	"MACD", "MACD_Signal", "MACD_Hist", "BB_Upper", "BB_Middle", "BB_Lower",
	"VWAP", "OBV", "ADX",
	"RSI_Signal", "RSI_Above_50", "RSI_Momentum", "Price_vs_SMA", "SMA_Trend",
	"EMA_9_vs_21", "MACD_Cross", "BB_Position", "Price_vs_VWAP", "OBV_Change",
	"ADX_Strength",
}

func consolidatedRow(f *Frame, i int) []string {
	b := f.Bars[i]
	return []string{
		stamp(f, i), num(b.Open), num(b.High), num(b.Low), num(b.Close), num(b.Volume),
		num(f.RSI[i]), num(f.SMA[i]), num(f.EMAFast[i]), num(f.EMASlow[i]), f.EMACross[i].String(), num(f.ATR[i]),
		num(f.MACD[i]), num(f.MACDSignal[i]), num(f.MACDHist[i]), num(f.BBUpper[i]), num(f.BBMiddle[i]), num(f.BBLower[i]),
		num(f.VWAP[i]), num(f.OBV[i]), num(f.ADX[i]),
		ClassifyRSI(f.RSI[i]).String(),
		pyBool(RSIAboveMidline(f.RSI[i])),
		num(f.RSIMomentum[i]),
		CompareToReference(b.Close, f.SMA[i]).String(),
		ClassifySlope(f.SMAChange[i]).String(),
		ComparePair(f.EMAFast[i], f.EMASlow[i]).String(),
		ClassifyMACD(f.MACD[i], f.MACDSignal[i]).String(),
		ClassifyBands(b.Close, f.BBUpper[i], f.BBLower[i]).String(),
		CompareToVWAP(b.Close, f.VWAP[i]).String(),
		ClassifyFlow(f.OBVChange[i]).String(),
		ClassifyADX(f.ADX[i]).String(),
	}
}

// pyBool renders booleans the way downstream notebooks expect them.
func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// OutputFile is one written table.
type OutputFile struct {
	Key  string
	Path string
}

// OutputDirs lists every directory the engine writes into, relative to the
// output root.
func OutputDirs() []string {
	dirs := make([]string, 0, len(indicatorTables)+1)
	for _, spec := range indicatorTables {
		dirs = append(dirs, spec.Dir)
	}
	return append(dirs, ConsolidatedDir)
}

func buildTable(f *Frame, header []string, row func(*Frame, int) []string) (*storage.Table, error) {
	table := storage.NewTable(header)
	for i := 0; i < f.Len(); i++ {
		if err := table.Append(row(f, i)); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// writeFrame writes every per-indicator table and the consolidated table for
// one source file stem.
func writeFrame(outputDir, stem string, f *Frame) ([]OutputFile, error) {
	files := make([]OutputFile, 0, len(indicatorTables)+1)
	for _, spec := range indicatorTables {
		table, err := buildTable(f, spec.Header, spec.Row)
		if err != nil {
			return files, err
		}
		path := filepath.Join(outputDir, spec.Dir, stem+spec.Suffix)
		if err := storage.WriteTable(path, table); err != nil {
			return files, err
		}
		files = append(files, OutputFile{Key: spec.Key, Path: path})
	}

	table, err := buildTable(f, ConsolidatedHeader, consolidatedRow)
	if err != nil {
		return files, err
	}
	path := filepath.Join(outputDir, ConsolidatedDir, stem+"_ALL_INDICATORS.csv")
	if err := storage.WriteTable(path, table); err != nil {
		return files, err
	}
	return append(files, OutputFile{Key: "consolidated", Path: path}), nil
}

// formatCount renders an integer cell.
func formatCount(n int) string {
	return strconv.Itoa(n)
}
