package shift

import (
	"context"
	"sort"
	"sync"

	"github.com/clubops/payroll-engine/compensation"
	"github.com/shopspring/decimal"
)

// =============================================================================
// BATCH INGESTION
// =============================================================================

// BatchRowResult is a successfully imported row.
type BatchRowResult struct {
	Index            int             `json:"index"`
	Row              int             `json:"row,omitempty"` // sheet row, workbook uploads only
	ShiftID          string          `json:"shift_id"`
	CalculatedSalary decimal.Decimal `json:"calculated_salary"`
}

// BatchRowError is a rejected row.
type BatchRowError struct {
	Index int    `json:"index"`
	Row   int    `json:"row,omitempty"` // sheet row, workbook uploads only
	Error string `json:"error"`
}

// BatchResult summarizes a batch. Results and Errors are sorted by row index.
type BatchResult struct {
	Imported int              `json:"imported"`
	Failed   int              `json:"failed"`
	Results  []BatchRowResult `json:"results"`
	Errors   []BatchRowError  `json:"errors"`
}

// ProcessBatch imports completed shifts. Each row succeeds or fails on its
// own; a bad row never aborts the batch.
//
// Rows are grouped by (employee, club) and each group runs in row order on
// one worker, so period bonuses resolve the same way on every run. Groups
// are spread over at most Config.Concurrency workers.
func (s *Service) ProcessBatch(ctx context.Context, rows []ShiftInput) BatchResult {
	res := BatchResult{Results: []BatchRowResult{}, Errors: []BatchRowError{}}
	if len(rows) == 0 {
		return res
	}

	groups := groupRows(rows)
	workers := s.cfg.Concurrency
	if workers > len(groups) {
		workers = len(groups)
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan []int)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idxs := range jobs {
				for _, i := range idxs {
					sh, err := s.importRow(ctx, rows[i])

					mu.Lock()
					if err != nil {
						res.Errors = append(res.Errors, BatchRowError{Index: i, Row: rows[i].Row, Error: err.Error()})
					} else {
						res.Results = append(res.Results, BatchRowResult{
							Index:            i,
							Row:              rows[i].Row,
							ShiftID:          sh.ID,
							CalculatedSalary: sh.CalculatedSalary,
						})
					}
					mu.Unlock()
				}
			}
		}()
	}
	for _, g := range groups {
		jobs <- g
	}
	close(jobs)
	wg.Wait()

	sort.Slice(res.Results, func(i, j int) bool { return res.Results[i].Index < res.Results[j].Index })
	sort.Slice(res.Errors, func(i, j int) bool { return res.Errors[i].Index < res.Errors[j].Index })
	res.Imported = len(res.Results)
	res.Failed = len(res.Errors)

	s.logger.InfoContext(ctx, "batch processed",
		"rows", len(rows),
		"imported", res.Imported,
		"failed", res.Failed,
		"workers", workers,
	)
	return res
}

func (s *Service) importRow(ctx context.Context, row ShiftInput) (*compensation.ShiftRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.CreateManual(ctx, row)
}

// groupRows returns row indexes grouped by (employee, club), groups ordered
// by their first row.
func groupRows(rows []ShiftInput) [][]int {
	pos := map[[2]string]int{}
	var groups [][]int
	for i, r := range rows {
		key := [2]string{r.EmployeeID, r.ClubID}
		g, ok := pos[key]
		if !ok {
			g = len(groups)
			pos[key] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}
