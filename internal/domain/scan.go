package domain

import "time"

// ScanCycle summarizes one scanner pass.
type ScanCycle struct {
	ID             string
	StartedAt      time.Time
	Duration       time.Duration
	PairsRequested int
	PairsAvailable int
	PathsEvaluated int
	Rejections     map[RejectReason]int
	Actionable     int
	Retained       int
	GasPriceGwei   float64
	Fast           bool // next interval shortened by volatility
	Suppressed     bool // quorum not met, no output
	Abandoned      bool // deadline expired, partial results discarded
}

// ScannerStatus is a summary of the scanner's current operational state.
type ScannerStatus struct {
	Mode           string
	Running        bool
	UptimeSeconds  int64
	Cycles         int64
	LastCycle      *ScanCycle
	Paths          int
	Sources        []string
	HistoryCount   int
	HistoryBestUSD float64
}
