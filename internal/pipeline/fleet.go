package pipeline

import (
	"bufio"
	"encoding/json"
	"os"

	"authsignal/internal/logger"
	"authsignal/pkg/models"
)

// LoadReports reads per-source report JSONL files and splits their lines
// into summaries and signals. Only canonical weekly summaries count;
// fleet rollups or unknown report types are ignored. An unreadable file
// is logged and skipped so one lost report never blocks fleet rollup.
func LoadReports(paths []string) ([]*models.SourceSummary, []*models.Signal) {
	var summaries []*models.SourceSummary
	var signals []*models.Signal

	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			logger.Warnf("report %s unreadable, skipping: %v", path, err)
			continue
		}

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 64*1024), maxLineSize)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var probe struct {
				ReportType string            `json:"report_type"`
				Signal     models.SignalType `json:"signal"`
			}
			if err := json.Unmarshal(line, &probe); err != nil {
				logger.Debugf("report %s: skipping malformed line: %v", path, err)
				continue
			}

			switch {
			case probe.ReportType == models.ReportTypeSourceSummary:
				var sum models.SourceSummary
				if err := json.Unmarshal(line, &sum); err != nil {
					logger.Debugf("report %s: skipping malformed summary: %v", path, err)
					continue
				}
				summaries = append(summaries, &sum)
			case probe.Signal != "":
				var sig models.Signal
				if err := json.Unmarshal(line, &sig); err != nil {
					logger.Debugf("report %s: skipping malformed signal: %v", path, err)
					continue
				}
				signals = append(signals, &sig)
			}
		}
		if err := scanner.Err(); err != nil {
			logger.Warnf("report %s: read aborted: %v", path, err)
		}
		f.Close()
	}

	return summaries, signals
}
