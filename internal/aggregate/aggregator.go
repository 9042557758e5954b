// Package aggregate assembles unit outcomes back into per-file and batch
// results, restoring document order regardless of completion order.
package aggregate

import (
	"sort"

	"github.com/MechanicalMaster/Universal-Classifier/internal/domain"
	"github.com/MechanicalMaster/Universal-Classifier/internal/metrics"
)

// Build groups unit results by source file, orders them by position and
// computes batch totals. Files that failed decomposition surface their error
// with zero units. Every unit result appears exactly once in the output.
func Build(batch *domain.Batch, unitResults map[string]domain.UnitResult, counters metrics.Counters) domain.BatchResult {
	out := domain.BatchResult{
		BatchID:        batch.ID,
		TotalDocuments: len(batch.Files),
		TotalPages:     batch.TotalUnits(),
	}

	succeeded, total := 0, 0
	for _, f := range batch.Files {
		fo := buildFile(f, unitResults)
		out.Files = append(out.Files, fo)

		for _, ur := range fo.Units {
			total++
			if ur.Succeeded() {
				succeeded++
			}
		}
	}

	out.Summary.TotalProcessingTime = counters.Elapsed
	out.Summary.APICallsMade = counters.APICalls
	out.Summary.EstimatedCost = counters.EstimatedCost
	out.Summary.SuccessRate = successRate(succeeded, total)
	out.Status = batchStatus(out.Files)
	return out
}

func buildFile(f *domain.SourceFile, unitResults map[string]domain.UnitResult) domain.FileOutcome {
	fo := domain.FileOutcome{
		FileID:    f.ID,
		FileName:  f.Name,
		Kind:      f.Kind,
		ParentID:  f.ParentID,
		PageCount: len(f.Units),
	}

	if f.DecompositionErr != nil {
		fo.Status = domain.StatusFailed
		fo.Errors = append(fo.Errors, f.DecompositionErr)
		return fo
	}

	for _, u := range f.Units {
		ur, ok := unitResults[u.ID]
		if !ok {
			// A unit the scheduler never reported; treat as cancelled so the
			// response stays complete.
			ur = domain.UnitResult{
				UnitID:   u.ID,
				Position: u.Position,
				Error:    domain.CancelledError("no outcome recorded for unit"),
			}
		}
		fo.Units = append(fo.Units, ur)
		fo.Cost += ur.Cost
		if ur.ProcessingTime > fo.ProcessingTime {
			fo.ProcessingTime = ur.ProcessingTime
		}
		if ur.Error != nil {
			fo.Errors = append(fo.Errors, ur.Error)
		}
	}

	sort.Slice(fo.Units, func(i, j int) bool { return fo.Units[i].Position < fo.Units[j].Position })
	fo.Status = fileStatus(fo.Units)
	return fo
}

// fileStatus is success when every unit succeeded, failed when none did,
// partial otherwise.
func fileStatus(units []domain.UnitResult) domain.ProcessingStatus {
	if len(units) == 0 {
		return domain.StatusFailed
	}
	ok := 0
	for _, u := range units {
		if u.Succeeded() {
			ok++
		}
	}
	switch ok {
	case len(units):
		return domain.StatusSuccess
	case 0:
		return domain.StatusFailed
	default:
		return domain.StatusPartial
	}
}

// batchStatus follows the same rule at file granularity; partial files make
// the batch partial.
func batchStatus(files []domain.FileOutcome) domain.ProcessingStatus {
	if len(files) == 0 {
		return domain.StatusSuccess
	}
	success, failed := 0, 0
	for _, f := range files {
		switch f.Status {
		case domain.StatusSuccess:
			success++
		case domain.StatusFailed:
			failed++
		}
	}
	switch {
	case success == len(files):
		return domain.StatusSuccess
	case failed == len(files):
		return domain.StatusFailed
	default:
		return domain.StatusPartial
	}
}

// successRate is a percentage; an empty batch counts as fully successful.
func successRate(succeeded, total int) float64 {
	if total == 0 {
		return 100.0
	}
	return float64(succeeded) / float64(total) * 100.0
}
